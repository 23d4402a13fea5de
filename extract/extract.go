// Package extract turns raw page HTML into clean text plus metadata.
//
// The pipeline: parse → read metadata → strip non-content elements and
// comments → collect visible text, one trimmed line per text node, blank
// lines dropped. Extraction never fails on malformed markup: every metadata
// field degrades to a documented default and the worst case is an empty
// text with default metadata.
//
// Modes:
//   - dom:          element stripping + full visible-text collection
//   - readability:  article extraction via go-readability
//   - auto:         dom first, readability only when dom found nothing
package extract

import (
	"bytes"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/dyatlov/go-opengraph/opengraph"
	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
)

// Defaults substituted when a metadata field is absent from the source.
const (
	DefaultTitle       = "Untitled Page"
	DefaultDescription = "No description"
	DefaultDate        = "Unknown Date"
)

// nonContent lists the elements whose subtrees never contribute readable text.
const nonContent = "script, style, noscript, nav, header, footer, aside, iframe"

// Options controls extraction behaviour.
type Options struct {
	// Mode is "dom", "readability" or "auto". Default: "auto".
	Mode string
	// SourceURL resolves relative references in readability mode.
	SourceURL string
}

func (o *Options) defaults() {
	if o.Mode == "" {
		o.Mode = "auto"
	}
}

// Result is the output of one extraction.
type Result struct {
	Text          string // clean visible text, newline-joined
	Title         string
	Description   string
	PublishedDate string
	HTML          string // sanitized content fragment
	Markdown      string // markdown rendition of HTML
}

// Extract runs the extraction pipeline on raw HTML. It always returns a
// structurally complete Result; malformed markup degrades to defaults.
func Extract(rawHTML []byte, opts Options) *Result {
	opts.defaults()

	res := &Result{
		Title:         DefaultTitle,
		Description:   DefaultDescription,
		PublishedDate: DefaultDate,
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(rawHTML))
	if err != nil {
		return res
	}

	fillMetadata(res, doc, rawHTML)

	switch opts.Mode {
	case "readability":
		fillReadability(res, rawHTML, opts.SourceURL)
	case "dom":
		fillDOM(res, doc)
	default: // auto
		fillDOM(res, doc)
		if res.Text == "" {
			fillReadability(res, rawHTML, opts.SourceURL)
		}
	}

	return res
}

// fillMetadata reads title, description and publish date before any
// elements are removed. Open Graph tags are the fallback for both
// description and date.
func fillMetadata(res *Result, doc *goquery.Document, rawHTML []byte) {
	if t := strings.TrimSpace(doc.Find("title").First().Text()); t != "" {
		res.Title = t
	}

	og := opengraph.NewOpenGraph()
	// A parse failure here only disables the fallbacks.
	ogErr := og.ProcessHTML(bytes.NewReader(rawHTML))

	if d := metaContent(doc, `meta[name="description"]`); d != "" {
		res.Description = d
	} else if ogErr == nil && strings.TrimSpace(og.Description) != "" {
		res.Description = strings.TrimSpace(og.Description)
	}

	if d := metaContent(doc, `meta[property="article:published_time"]`); d != "" {
		res.PublishedDate = d
	} else if d := metaContent(doc, `meta[name="date"]`); d != "" {
		res.PublishedDate = d
	} else if ogErr == nil && og.Article != nil && og.Article.PublishedTime != nil {
		res.PublishedDate = og.Article.PublishedTime.Format(time.RFC3339)
	}
}

func metaContent(doc *goquery.Document, selector string) string {
	return strings.TrimSpace(doc.Find(selector).First().AttrOr("content", ""))
}

// fillDOM strips non-content subtrees and comments, then collects the
// visible text and the sanitized/markdown renditions of what remains.
func fillDOM(res *Result, doc *goquery.Document) {
	doc.Find(nonContent).Remove()
	for _, root := range doc.Selection.Nodes {
		removeComments(root)
	}

	var lines []string
	for _, root := range doc.Selection.Nodes {
		collectLines(root, &lines)
	}
	res.Text = strings.Join(lines, "\n")

	body := doc.Find("body").First()
	if fragment, err := body.Html(); err == nil && strings.TrimSpace(fragment) != "" {
		res.HTML = sanitizeHTML(fragment)
		res.Markdown = renderMarkdown(res.HTML)
	}
}

// fillReadability replaces text (and title, when the dom pass found none)
// with go-readability's article extraction.
func fillReadability(res *Result, rawHTML []byte, sourceURL string) {
	var base *url.URL
	if sourceURL != "" {
		base, _ = url.Parse(sourceURL)
	}
	article, err := readability.FromReader(bytes.NewReader(rawHTML), base)
	if err != nil {
		return
	}

	if text := normalizeLines(article.TextContent); text != "" {
		res.Text = text
	}
	if res.Title == DefaultTitle && strings.TrimSpace(article.Title) != "" {
		res.Title = strings.TrimSpace(article.Title)
	}
	if res.Description == DefaultDescription && strings.TrimSpace(article.Excerpt) != "" {
		res.Description = strings.TrimSpace(article.Excerpt)
	}
	if article.Content != "" {
		res.HTML = sanitizeHTML(article.Content)
		res.Markdown = renderMarkdown(res.HTML)
	}
}

// removeComments drops comment nodes from the subtree in place.
func removeComments(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.CommentNode {
			n.RemoveChild(c)
		} else {
			removeComments(c)
		}
		c = next
	}
}

// collectLines appends one trimmed line per non-blank text node.
func collectLines(n *html.Node, lines *[]string) {
	if n.Type == html.TextNode {
		if line := strings.TrimSpace(n.Data); line != "" {
			*lines = append(*lines, line)
		}
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectLines(c, lines)
	}
}

// normalizeLines applies the same line discipline as the dom pass: trim
// each line, drop blanks, join by newline.
func normalizeLines(text string) string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
