// Package chunk splits extracted text into bounded, overlapping segments
// for downstream summarization and embedding.
//
// Splitting strategy:
//  1. Prefer paragraph boundaries (double newline)
//  2. Then sentence boundaries (terminator followed by whitespace)
//  3. Then word boundaries (single whitespace)
//  4. Hard cut as the last resort
//
// Every chunk is an exact substring of the input and overlaps its
// predecessor by a recorded number of bytes, so concatenating the chunks
// minus their recorded overlaps reconstructs the input losslessly. Output
// is deterministic for identical input.
package chunk

import (
	"strings"
	"unicode/utf8"
)

// Options configures the splitter.
type Options struct {
	// MaxChars is the maximum chunk length in bytes. Default: 300.
	MaxChars int
	// OverlapChars is how many trailing bytes of a chunk reappear at the
	// start of the next one. Default: 20.
	OverlapChars int
}

func (o *Options) defaults() {
	if o.MaxChars <= 0 {
		o.MaxChars = 300
	}
	if o.OverlapChars < 0 {
		o.OverlapChars = 0
	} else if o.OverlapChars == 0 {
		o.OverlapChars = 20
	}
	if o.OverlapChars >= o.MaxChars {
		o.OverlapChars = o.MaxChars / 4
	}
}

// Chunk is one text segment.
type Chunk struct {
	Index       int    // 0-based position in the sequence
	Text        string // exact substring of the input
	OverlapPrev int    // bytes shared with the end of the previous chunk
}

// Split divides text into overlapping chunks. Empty input yields nil.
func Split(text string, opts Options) []Chunk {
	opts.defaults()

	if text == "" {
		return nil
	}
	if len(text) <= opts.MaxChars {
		return []Chunk{{Index: 0, Text: text}}
	}

	var chunks []Chunk
	start, prevEnd := 0, 0
	for start < len(text) {
		end := start + opts.MaxChars
		if end >= len(text) {
			end = len(text)
		} else {
			end = cutPoint(text, start, end)
		}

		chunks = append(chunks, Chunk{
			Index:       len(chunks),
			Text:        text[start:end],
			OverlapPrev: prevEnd - start, // 0 for the first chunk
		})

		if end == len(text) {
			break
		}

		next := end - opts.OverlapChars
		// Never step onto a rune tail, and always make progress even when
		// the chunk is shorter than the overlap.
		for next > start && !utf8.RuneStart(text[next]) {
			next++
		}
		if next <= start {
			next = end
		}
		start, prevEnd = next, end
	}
	return chunks
}

// Texts flattens chunks into the ordered string list callers consume.
func Texts(chunks []Chunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Text
	}
	return out
}

// Join reconstructs the original text from chunks by dropping each chunk's
// recorded overlap with its predecessor. Inverse of Split.
func Join(chunks []Chunk) string {
	var sb strings.Builder
	for _, c := range chunks {
		sb.WriteString(c.Text[c.OverlapPrev:])
	}
	return sb.String()
}

// sentenceEnders terminate a sentence when followed by whitespace.
const sentenceEnders = ".!?"

// cutPoint picks the best split position in (start, limit], scanning
// backwards from the hard limit: paragraph break, then sentence end, then
// word break. The separator stays with the current chunk so chunks remain
// exact, contiguous substrings. Boundaries that would leave a chunk shorter
// than half the window are rejected in favour of the next boundary type.
func cutPoint(text string, start, limit int) int {
	minEnd := start + (limit-start)/2

	// Paragraph: cut just after "\n\n".
	if i := strings.LastIndex(text[start:limit], "\n\n"); i >= 0 {
		end := start + i + 2
		if end > minEnd {
			return end
		}
	}

	// Sentence: terminator followed by whitespace; cut after the terminator.
	for i := limit - 1; i > minEnd; i-- {
		if i+1 < len(text) && strings.IndexByte(sentenceEnders, text[i]) >= 0 && isSpace(text[i+1]) {
			return i + 1
		}
	}

	// Word: cut just after a whitespace byte.
	for i := limit - 1; i > minEnd; i-- {
		if isSpace(text[i]) {
			return i + 1
		}
	}

	// Hard cut, backed up to a rune boundary.
	end := limit
	for end > start && !utf8.RuneStart(text[end]) {
		end--
	}
	if end == start {
		end = limit // pathological input; keep moving
	}
	return end
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\n' || b == '\t' || b == '\r'
}
