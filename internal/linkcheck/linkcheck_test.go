package linkcheck

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for rel, body := range files {
		abs := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o750))
		require.NoError(t, os.WriteFile(abs, []byte(body), 0o644))
	}
	return dir
}

func TestExtract_CollectsLinkBearingAttributes(t *testing.T) {
	doc := `<html><head>
		<link rel="stylesheet" href="/css/site.css">
		<script src="/js/app.js"></script>
	</head><body>
		<a href="/about.html">about</a>
		<img src="logo.png" alt="">
		<a>no href</a>
	</body></html>`

	links, err := Extract(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, links, 4)

	urls := make([]string, 0, len(links))
	for _, l := range links {
		urls = append(urls, l.URL)
	}
	require.ElementsMatch(t, []string{"/css/site.css", "/js/app.js", "/about.html", "logo.png"}, urls)
}

func TestVerify_AllLinksResolve(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"index.html":       `<a href="/posts/hello.html">hello</a><img src="css/site.css">`,
		"posts/hello.html": `<a href="../index.html">home</a>`,
		"css/site.css":     "body{}",
	})

	broken, err := Verify(dir)
	require.NoError(t, err)
	require.Empty(t, broken)
}

func TestVerify_ReportsMissingTargets(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"index.html":       `<a href="/missing.html">gone</a><a href="posts/hello.html">ok</a>`,
		"posts/hello.html": `<img src="nope.png">`,
	})

	broken, err := Verify(dir)
	require.NoError(t, err)
	require.Equal(t, []Broken{
		{Source: "index.html", Target: "/missing.html"},
		{Source: "posts/hello.html", Target: "nope.png"},
	}, broken)
}

func TestVerify_IgnoresExternalAndFragmentLinks(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"index.html": `<a href="https://example.com/x">ext</a>` +
			`<a href="mailto:a@b.c">mail</a>` +
			`<a href="#section">frag</a>`,
	})

	broken, err := Verify(dir)
	require.NoError(t, err)
	require.Empty(t, broken)
}

func TestVerify_DirectoryLinkResolvesToIndex(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"index.html":       `<a href="/posts/">posts</a>`,
		"posts/index.html": `ok`,
	})

	broken, err := Verify(dir)
	require.NoError(t, err)
	require.Empty(t, broken)
}

func TestVerify_QueryStringIsIgnored(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"index.html": `<a href="/about.html?ref=home">about</a>`,
		"about.html": `ok`,
	})

	broken, err := Verify(dir)
	require.NoError(t, err)
	require.Empty(t, broken)
}
