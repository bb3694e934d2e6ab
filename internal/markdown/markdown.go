// Package markdown renders Markdown bodies (frontmatter already removed) to
// HTML fragments using a fixed Goldmark dialect.
package markdown

import (
	"bytes"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// converter is built once with a fixed extension set so every page renders the
// same dialect. A goldmark.Markdown is safe for concurrent Convert calls.
var converter = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(html.WithUnsafe()),
)

// Render converts a Markdown body to an HTML fragment.
func Render(body []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := converter.Convert(body, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
