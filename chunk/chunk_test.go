package chunk

import (
	"strings"
	"testing"
)

func TestSplit_Empty(t *testing.T) {
	if chunks := Split("", Options{}); chunks != nil {
		t.Errorf("split empty: got %v, want nil", chunks)
	}
}

func TestSplit_ShortText(t *testing.T) {
	text := "A short paragraph that fits in a single chunk."
	chunks := Split(text, Options{})
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	if chunks[0].Text != text {
		t.Errorf("text: got %q", chunks[0].Text)
	}
	if chunks[0].OverlapPrev != 0 {
		t.Errorf("overlap: got %d, want 0", chunks[0].OverlapPrev)
	}
}

func TestSplit_BoundedLength(t *testing.T) {
	// WHAT: No chunk exceeds MaxChars, whatever the input shape.
	// WHY: Downstream consumers size buffers off the documented bound.
	inputs := []string{
		strings.Repeat("word ", 500),
		strings.Repeat("unbrokenrun", 100),
		strings.Repeat("One sentence here. Another one follows! A third? ", 40),
		strings.Repeat("para one\n\npara two\n\n", 30),
	}
	for _, text := range inputs {
		for i, c := range Split(text, Options{MaxChars: 300, OverlapChars: 20}) {
			if len(c.Text) > 300 {
				t.Errorf("chunk[%d]: %d bytes > 300 max", i, len(c.Text))
			}
		}
	}
}

func TestSplit_LosslessReconstruction(t *testing.T) {
	// WHAT: Join(Split(text)) == text for varied inputs.
	// WHY: Chunks are exact substrings; removing the recorded overlaps must
	// give back the original with no loss.
	inputs := []string{
		strings.Repeat("The quick brown fox jumps over the lazy dog. ", 30),
		strings.Repeat("première ligne — déjà vu et café. ", 25), // multibyte
		strings.Repeat("x", 1000),
		"para one\n\n" + strings.Repeat("body text here ", 60) + "\n\nlast para",
	}
	for _, text := range inputs {
		chunks := Split(text, Options{MaxChars: 300, OverlapChars: 20})
		if got := Join(chunks); got != text {
			t.Errorf("reconstruction mismatch: got %d bytes, want %d", len(got), len(text))
		}
	}
}

func TestSplit_OverlapRecorded(t *testing.T) {
	text := strings.Repeat("some words to fill the buffer nicely ", 40)
	chunks := Split(text, Options{MaxChars: 300, OverlapChars: 20})
	if len(chunks) < 2 {
		t.Fatalf("got %d chunks, want several", len(chunks))
	}
	if chunks[0].OverlapPrev != 0 {
		t.Errorf("chunk[0] overlap: got %d, want 0", chunks[0].OverlapPrev)
	}
	for i := 1; i < len(chunks); i++ {
		c := chunks[i]
		if c.OverlapPrev <= 0 || c.OverlapPrev > 20 {
			t.Errorf("chunk[%d] overlap: got %d, want in (0, 20]", i, c.OverlapPrev)
		}
		// The overlapping prefix must equal the predecessor's suffix.
		prev := chunks[i-1].Text
		if prev[len(prev)-c.OverlapPrev:] != c.Text[:c.OverlapPrev] {
			t.Errorf("chunk[%d]: overlap prefix does not match predecessor suffix", i)
		}
	}
}

func TestSplit_PrefersParagraphBoundary(t *testing.T) {
	para := strings.Repeat("alpha beta gamma ", 12)
	text := para + "\n\n" + para + "\n\n" + para
	chunks := Split(text, Options{MaxChars: 300, OverlapChars: 20})
	if !strings.HasSuffix(chunks[0].Text, "\n\n") {
		t.Errorf("first chunk should end at a paragraph break, got %q", chunks[0].Text[len(chunks[0].Text)-20:])
	}
}

func TestSplit_PrefersSentenceBoundary(t *testing.T) {
	text := strings.Repeat("This is a full sentence that runs on a little. ", 20)
	chunks := Split(text, Options{MaxChars: 300, OverlapChars: 20})
	first := strings.TrimRight(chunks[0].Text, " ")
	if !strings.HasSuffix(first, ".") {
		t.Errorf("first chunk should end at a sentence boundary, got ...%q", first[len(first)-15:])
	}
}

func TestSplit_HardCutWithoutBoundaries(t *testing.T) {
	text := strings.Repeat("z", 700)
	chunks := Split(text, Options{MaxChars: 300, OverlapChars: 20})
	if len(chunks[0].Text) != 300 {
		t.Errorf("hard cut: got %d bytes, want 300", len(chunks[0].Text))
	}
	if Join(chunks) != text {
		t.Error("hard-cut chunks do not reconstruct input")
	}
}

func TestSplit_Deterministic(t *testing.T) {
	text := strings.Repeat("Deterministic output matters. ", 40)
	a := Split(text, Options{})
	b := Split(text, Options{})
	if len(a) != len(b) {
		t.Fatalf("lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("chunk[%d] differs between runs", i)
		}
	}
}

func TestTexts(t *testing.T) {
	chunks := []Chunk{{Index: 0, Text: "a"}, {Index: 1, Text: "b"}}
	got := Texts(chunks)
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("texts: got %v", got)
	}
}
