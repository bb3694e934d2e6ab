// Package linkcheck verifies internal links across a rendered output tree.
// It parses every HTML document, collects href/src references, and reports
// those that do not resolve to a file in the tree. External links are never
// fetched.
package linkcheck

import (
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/net/html"
)

// Link is one reference extracted from an HTML document.
type Link struct {
	URL       string // raw attribute value
	Tag       string // a, img, script, link
	Attribute string // href or src
}

// Broken is an internal link whose target does not exist in the output tree.
type Broken struct {
	Source string // output-relative document containing the link
	Target string // the unresolved reference
}

// Verify walks the output tree and returns every broken internal link,
// sorted by source document then target.
func Verify(outDir string) ([]Broken, error) {
	exists := map[string]bool{}
	var docs []string

	err := filepath.WalkDir(outDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(outDir, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		exists[rel] = true
		if strings.HasSuffix(rel, ".html") {
			docs = append(docs, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk output tree: %w", err)
	}

	var broken []Broken
	for _, doc := range docs {
		links, err := extractFile(filepath.Join(outDir, filepath.FromSlash(doc)))
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", doc, err)
		}
		for _, link := range links {
			target, internal := resolveInternal(doc, link.URL)
			if !internal {
				continue
			}
			if !exists[target] && !exists[path.Join(target, "index.html")] {
				broken = append(broken, Broken{Source: doc, Target: link.URL})
			}
		}
	}

	sort.Slice(broken, func(i, j int) bool {
		if broken[i].Source != broken[j].Source {
			return broken[i].Source < broken[j].Source
		}
		return broken[i].Target < broken[j].Target
	})
	return broken, nil
}

func extractFile(p string) ([]Link, error) {
	f, err := os.Open(p) // #nosec G304 -- path produced by the walk above
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return Extract(f)
}

// Extract collects link-bearing attributes from an HTML document.
func Extract(r io.Reader) ([]Link, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	var links []Link
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "a", "link":
				if href := attr(n, "href"); href != "" {
					links = append(links, Link{URL: href, Tag: n.Data, Attribute: "href"})
				}
			case "img", "script":
				if src := attr(n, "src"); src != "" {
					links = append(links, Link{URL: src, Tag: n.Data, Attribute: "src"})
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return links, nil
}

func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

// resolveInternal maps a reference to an output-relative path. References
// with a scheme or host are external; fragments and queries are dropped.
func resolveInternal(sourceDoc, ref string) (string, bool) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", false
	}
	if u.Scheme != "" || u.Host != "" {
		return "", false
	}
	if u.Path == "" {
		// Fragment-only reference within the same document.
		return "", false
	}

	p := u.Path
	if path.IsAbs(p) {
		p = strings.TrimPrefix(p, "/")
	} else {
		p = path.Join(path.Dir(sourceDoc), p)
	}
	p = path.Clean(p)
	p = strings.TrimSuffix(p, "/")
	return p, true
}
