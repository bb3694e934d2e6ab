package incremental

import (
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sitesmith/internal/content"
	"git.home.luguber.info/inful/sitesmith/internal/graph"
	"git.home.luguber.info/inful/sitesmith/internal/manifest"
)

// buildGraph wires pages {A,B} -> template post -> partial header.
func buildGraph(t *testing.T) *graph.Graph {
	t.Helper()
	nodes := []*content.Node{
		{Kind: content.KindPage, Path: "content/a.md", Body: []byte("a"), Meta: &content.PageMeta{Template: "post"}},
		{Kind: content.KindPage, Path: "content/b.md", Body: []byte("b"), Meta: &content.PageMeta{Template: "post"}},
		{Kind: content.KindTemplate, Path: "templates/post.html", Name: "post",
			Raw: []byte(`{{template "header" .}}{{.content}}`)},
		{Kind: content.KindPartial, Path: "templates/partials/header.html", Name: "header",
			Raw: []byte("<header></header>")},
	}
	g := graph.New(nodes)
	require.NoError(t, graph.Resolve(g, "default"))
	return g
}

func pathsOf(g *graph.Graph, ids map[content.ID]struct{}) []string {
	var out []string
	for id := range ids {
		out = append(out, g.Node(id).Path)
	}
	return out
}

func manifestFor(g *graph.Graph) *manifest.Manifest {
	m := manifest.New()
	for _, n := range g.Nodes() {
		m.Put(n.Path, manifest.Entry{Fingerprint: n.Fingerprint})
	}
	return m
}

func TestDetect_FirstBuild_EverythingDirty(t *testing.T) {
	g := buildGraph(t)

	res, err := Detect(g, manifest.New(), false)
	require.NoError(t, err)
	require.Len(t, res.Dirty, g.Len())
	require.Empty(t, res.Unchanged)
}

func TestDetect_NoChanges_NothingDirty(t *testing.T) {
	g := buildGraph(t)
	_, err := Detect(g, manifest.New(), false)
	require.NoError(t, err)
	prev := manifestFor(g)

	// Rebuild the graph from identical sources.
	g2 := buildGraph(t)
	res, err := Detect(g2, prev, false)
	require.NoError(t, err)
	require.Empty(t, res.Dirty)
	require.Len(t, res.Unchanged, g2.Len())
}

func TestDetect_ChangedPartial_DirtiesTemplateAndPages(t *testing.T) {
	g := buildGraph(t)
	_, err := Detect(g, manifest.New(), false)
	require.NoError(t, err)
	prev := manifestFor(g)

	g2 := buildGraph(t)
	partialID, ok := g2.ByPath("templates/partials/header.html")
	require.True(t, ok)
	g2.Node(partialID).Raw = []byte("<header>changed</header>")

	res, err := Detect(g2, prev, false)
	require.NoError(t, err)
	require.ElementsMatch(t,
		[]string{"content/a.md", "content/b.md", "templates/post.html", "templates/partials/header.html"},
		pathsOf(g2, map[content.ID]struct{}(res.Dirty)))
}

func TestDetect_ChangedPage_DirtiesOnlyThatPage(t *testing.T) {
	g := buildGraph(t)
	_, err := Detect(g, manifest.New(), false)
	require.NoError(t, err)
	prev := manifestFor(g)

	g2 := buildGraph(t)
	pageID, ok := g2.ByPath("content/a.md")
	require.True(t, ok)
	g2.Node(pageID).Body = []byte("a changed")

	res, err := Detect(g2, prev, false)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"content/a.md"}, pathsOf(g2, map[content.ID]struct{}(res.Dirty)))
}

func TestDetect_Force_MarksEverythingDirty(t *testing.T) {
	g := buildGraph(t)
	_, err := Detect(g, manifest.New(), false)
	require.NoError(t, err)
	prev := manifestFor(g)

	g2 := buildGraph(t)
	res, err := Detect(g2, prev, true)
	require.NoError(t, err)
	require.Len(t, res.Dirty, g2.Len())
}

func TestFingerprint_PageIgnoresDelimiterStyle(t *testing.T) {
	a := &content.Node{Kind: content.KindPage, FrontMatter: []byte("title: X\n"), Body: []byte("body\n")}
	b := &content.Node{Kind: content.KindPage, FrontMatter: []byte("title: X\n"), Body: []byte("body\n")}

	fa, err := Fingerprint(a)
	require.NoError(t, err)
	fb, err := Fingerprint(b)
	require.NoError(t, err)
	require.Equal(t, fa, fb)
}

func TestCombine_OrderSensitiveAndStable(t *testing.T) {
	own := "aaaa"
	require.Equal(t, Combine(own, []string{"x", "y"}), Combine(own, []string{"x", "y"}))
	require.NotEqual(t, Combine(own, []string{"x", "y"}), Combine(own, []string{"y", "x"}))
	require.Equal(t, own, Combine(own, nil))
}
