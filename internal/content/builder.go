package content

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/sitesmith/internal/config"
	"git.home.luguber.info/inful/sitesmith/internal/errors"
	"git.home.luguber.info/inful/sitesmith/internal/frontmatter"
	"git.home.luguber.info/inful/sitesmith/internal/logfields"
)

// Builder walks a source tree once and classifies every eligible file into a
// graph node. It performs no output writes and records parse failures per
// node so a single pass can report all malformed documents.
type Builder struct {
	root   string
	cfg    *config.Config
	logger *slog.Logger
}

// NewBuilder creates a builder for one source root.
func NewBuilder(root string, cfg *config.Config) *Builder {
	return &Builder{root: root, cfg: cfg, logger: slog.Default()}
}

// WithLogger sets a custom logger.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// Build produces one node per eligible source file, sorted by source path.
// Only walk-level failures are fatal; malformed files become node errors.
func (b *Builder) Build() ([]*Node, error) {
	contentDir := filepath.Join(b.root, b.cfg.Paths.Content)
	if _, err := os.Stat(contentDir); err != nil {
		return nil, errors.Wrap(err, errors.CategoryConfig,
			fmt.Sprintf("content directory %s not found", b.cfg.Paths.Content))
	}

	var nodes []*Node

	collect := func(base string, visit func(abs, rel string) (*Node, error)) error {
		baseAbs := filepath.Join(b.root, base)
		if _, err := os.Stat(baseAbs); err != nil {
			return nil // optional directory
		}
		return filepath.WalkDir(baseAbs, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if strings.HasPrefix(d.Name(), ".") {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				return nil
			}
			rel, err := filepath.Rel(baseAbs, p)
			if err != nil {
				return err
			}
			node, err := visit(p, filepath.ToSlash(rel))
			if err != nil {
				return err
			}
			if node != nil {
				nodes = append(nodes, node)
			}
			return nil
		})
	}

	partialsAbs := filepath.Join(b.root, b.cfg.Paths.Partials)

	steps := []func() error{
		func() error {
			return collect(b.cfg.Paths.Content, b.visitContent)
		},
		func() error {
			return collect(b.cfg.Paths.Templates, func(abs, rel string) (*Node, error) {
				// The partials directory conventionally nests under templates;
				// those files are classified separately below.
				if isUnder(abs, partialsAbs) {
					return nil, nil
				}
				return b.visitTemplate(abs, rel, KindTemplate)
			})
		},
		func() error {
			return collect(b.cfg.Paths.Partials, func(abs, rel string) (*Node, error) {
				return b.visitTemplate(abs, rel, KindPartial)
			})
		},
		func() error {
			return collect(b.cfg.Paths.Data, b.visitData)
		},
		func() error {
			return collect(b.cfg.Paths.Static, b.visitStatic)
		},
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return nil, errors.Wrap(err, errors.CategoryConfig, "walk source tree")
		}
	}

	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Path < nodes[j].Path })
	return nodes, nil
}

func (b *Builder) visitContent(abs, rel string) (*Node, error) {
	node := &Node{
		Path:    path.Join(b.cfg.Paths.Content, rel),
		AbsPath: abs,
		Rel:     rel,
	}

	if !strings.HasSuffix(rel, ".md") {
		// Everything in the content tree that is not markdown passes through.
		node.Kind = KindAsset
		node.DestPath = rel
		return node, nil
	}

	node.Kind = KindPage
	raw, err := os.ReadFile(abs) // #nosec G304 -- path produced by the walk above
	if err != nil {
		node.Err = errors.Wrap(err, errors.CategoryFileSystem, "read page").WithPath(node.Path)
		return node, nil
	}
	node.Raw = raw

	fm, body, _, err := frontmatter.Split(raw)
	if err != nil {
		node.Err = errors.Wrap(err, errors.CategoryParse, "split frontmatter").WithPath(node.Path)
		return node, nil
	}
	node.FrontMatter = fm
	node.Body = body

	fields, err := frontmatter.Parse(fm)
	if err != nil {
		node.Err = errors.Wrap(err, errors.CategoryParse, "parse frontmatter").WithPath(node.Path)
		return node, nil
	}

	stem := strings.TrimSuffix(path.Base(rel), ".md")
	meta, err := NewPageMeta(fields, stem)
	if err != nil {
		node.Err = errors.Wrap(err, errors.CategoryParse, "invalid frontmatter").WithPath(node.Path)
		return node, nil
	}
	meta.ApplySectionDefaults(b.cfg.SectionDefault(sectionOf(rel)))
	node.Meta = meta

	if meta.Draft && !b.cfg.Build.IncludeDrafts {
		b.logger.Debug("Skipping draft page", logfields.Node(node.Path))
		return nil, nil
	}

	node.DestPath = outputPath(rel, meta)
	return node, nil
}

func (b *Builder) visitTemplate(abs, rel string, kind Kind) (*Node, error) {
	base := b.cfg.Paths.Templates
	if kind == KindPartial {
		base = b.cfg.Paths.Partials
	}
	node := &Node{
		Kind:    kind,
		Path:    path.Join(base, rel),
		AbsPath: abs,
		Rel:     rel,
		Name:    LookupName(rel),
	}
	raw, err := os.ReadFile(abs) // #nosec G304 -- path produced by the walk above
	if err != nil {
		node.Err = errors.Wrap(err, errors.CategoryFileSystem, "read template").WithPath(node.Path)
		return node, nil
	}
	node.Raw = raw
	return node, nil
}

func (b *Builder) visitData(abs, rel string) (*Node, error) {
	node := &Node{
		Kind:    KindData,
		Path:    path.Join(b.cfg.Paths.Data, rel),
		AbsPath: abs,
		Rel:     rel,
		Name:    LookupName(rel),
	}

	switch path.Ext(rel) {
	case ".yaml", ".yml", ".json":
	default:
		node.Err = errors.Newf(errors.CategoryParse,
			"unsupported data file extension %s", path.Ext(rel)).WithPath(node.Path)
		return node, nil
	}

	raw, err := os.ReadFile(abs) // #nosec G304 -- path produced by the walk above
	if err != nil {
		node.Err = errors.Wrap(err, errors.CategoryFileSystem, "read data file").WithPath(node.Path)
		return node, nil
	}
	node.Raw = raw

	var value any
	if err := yaml.Unmarshal(raw, &value); err != nil {
		node.Err = errors.Wrap(err, errors.CategoryParse, "parse data file").WithPath(node.Path)
		return node, nil
	}
	node.Data = value
	return node, nil
}

func (b *Builder) visitStatic(abs, rel string) (*Node, error) {
	return &Node{
		Kind:     KindAsset,
		Path:     path.Join(b.cfg.Paths.Static, rel),
		AbsPath:  abs,
		Rel:      rel,
		DestPath: rel,
	}, nil
}

// outputPath resolves a page's destination: explicit slug, or a deterministic
// default from the source path. `_index.md` maps to `index.html`.
func outputPath(rel string, meta *PageMeta) string {
	dir := path.Dir(rel)
	stem := strings.TrimSuffix(path.Base(rel), ".md")

	name := stem
	switch {
	case stem == "_index":
		name = "index"
	case meta.Slug != "":
		// A slug that normalizes to nothing keeps the filename stem instead
		// of producing a hidden ".html" output.
		if s := Slugify(meta.Slug); s != "" {
			name = s
		}
	}

	if dir == "." {
		return name + ".html"
	}
	return path.Join(dir, name+".html")
}

func sectionOf(rel string) string {
	idx := strings.IndexByte(rel, '/')
	if idx < 0 {
		return ""
	}
	return rel[:idx]
}

func isUnder(p, base string) bool {
	rel, err := filepath.Rel(base, p)
	if err != nil {
		return false
	}
	return rel == "." || (!strings.HasPrefix(rel, "..") && !filepath.IsAbs(rel))
}
