package markdown

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRender_Heading(t *testing.T) {
	out, err := Render([]byte("# Hello\n"))
	require.NoError(t, err)
	require.Equal(t, "<h1>Hello</h1>\n", string(out))
}

func TestRender_GFMTable(t *testing.T) {
	src := "| a | b |\n|---|---|\n| 1 | 2 |\n"

	out, err := Render([]byte(src))
	require.NoError(t, err)
	require.Contains(t, string(out), "<table>")
	require.Contains(t, string(out), "<td>1</td>")
}

func TestRender_RawHTMLPassesThrough(t *testing.T) {
	out, err := Render([]byte("<div class=\"note\">hi</div>\n"))
	require.NoError(t, err)
	require.Contains(t, string(out), "<div class=\"note\">hi</div>")
}

func TestRender_Deterministic(t *testing.T) {
	src := []byte("Some *emphasis* and a [link](/about.html).\n")

	first, err := Render(src)
	require.NoError(t, err)
	second, err := Render(src)
	require.NoError(t, err)
	require.Equal(t, first, second)
}
