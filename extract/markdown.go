package extract

import (
	"sync"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"
)

var (
	sanitizerOnce sync.Once
	sanitizer     *bluemonday.Policy

	mdOnce sync.Once
	mdConv *converter.Converter
)

// sanitizeHTML strips event handlers, embedded scripts and other unsafe
// markup from the extracted fragment. The policy is shared; bluemonday
// policies are safe for concurrent use once built.
func sanitizeHTML(fragment string) string {
	sanitizerOnce.Do(func() {
		sanitizer = bluemonday.UGCPolicy()
	})
	return sanitizer.Sanitize(fragment)
}

// renderMarkdown converts sanitized HTML to markdown for downstream
// summarization. Conversion failures yield an empty string, never an error:
// markdown is a convenience rendition, Text stays authoritative.
func renderMarkdown(fragment string) string {
	mdOnce.Do(func() {
		mdConv = converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		)
	})
	md, err := mdConv.ConvertString(fragment)
	if err != nil {
		return ""
	}
	return md
}
