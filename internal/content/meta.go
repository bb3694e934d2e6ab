package content

import (
	"fmt"
	"time"

	"git.home.luguber.info/inful/sitesmith/internal/config"
)

// Frontmatter keys with engine-defined meaning. Everything else is preserved
// in Custom rather than rejected.
const (
	metaKeyTitle    = "title"
	metaKeySlug     = "slug"
	metaKeyDate     = "date"
	metaKeyTags     = "tags"
	metaKeyTemplate = "template"
	metaKeyDraft    = "draft"
	metaKeyData     = "data"
)

// PageMeta is the typed view over a page's parsed frontmatter.
type PageMeta struct {
	Title    string
	Slug     string
	Date     time.Time
	Tags     []string
	Template string
	Draft    bool
	DataRefs []string
	Custom   map[string]any
}

// dateFormats accepted in frontmatter, tried in order.
var dateFormats = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}

// NewPageMeta builds a PageMeta from parsed frontmatter fields.
// fallbackTitle is used when the frontmatter has no title (the filename stem).
func NewPageMeta(fields map[string]any, fallbackTitle string) (*PageMeta, error) {
	meta := &PageMeta{
		Title:  fallbackTitle,
		Custom: map[string]any{},
	}

	for key, value := range fields {
		switch key {
		case metaKeyTitle:
			s, ok := value.(string)
			if !ok {
				return nil, fmt.Errorf("frontmatter title must be a string, got %T", value)
			}
			meta.Title = s
		case metaKeySlug:
			s, ok := value.(string)
			if !ok {
				return nil, fmt.Errorf("frontmatter slug must be a string, got %T", value)
			}
			meta.Slug = s
		case metaKeyDate:
			d, err := parseDate(value)
			if err != nil {
				return nil, err
			}
			meta.Date = d
		case metaKeyTags:
			tags, err := stringList(value, metaKeyTags)
			if err != nil {
				return nil, err
			}
			meta.Tags = tags
		case metaKeyTemplate:
			s, ok := value.(string)
			if !ok {
				return nil, fmt.Errorf("frontmatter template must be a string, got %T", value)
			}
			meta.Template = s
		case metaKeyDraft:
			b, ok := value.(bool)
			if !ok {
				return nil, fmt.Errorf("frontmatter draft must be a boolean, got %T", value)
			}
			meta.Draft = b
		case metaKeyData:
			refs, err := stringList(value, metaKeyData)
			if err != nil {
				return nil, err
			}
			meta.DataRefs = refs
		default:
			meta.Custom[key] = value
		}
	}

	return meta, nil
}

// ApplySectionDefaults merges section-wide defaults into the metadata.
// Explicit page values always win over section params.
func (m *PageMeta) ApplySectionDefaults(sd *config.SectionDefaults) {
	if sd == nil {
		return
	}
	if m.Template == "" {
		m.Template = sd.Template
	}
	for k, v := range sd.Params {
		if _, exists := m.Custom[k]; !exists {
			m.Custom[k] = v
		}
	}
}

// ResolveTemplate returns the page's template name, falling back to the
// configured default. Every page resolves to exactly one template.
func (m *PageMeta) ResolveTemplate(defaultTemplate string) string {
	if m.Template != "" {
		return m.Template
	}
	return defaultTemplate
}

func parseDate(value any) (time.Time, error) {
	switch v := value.(type) {
	case time.Time:
		return v, nil
	case string:
		for _, layout := range dateFormats {
			if d, err := time.Parse(layout, v); err == nil {
				return d, nil
			}
		}
		return time.Time{}, fmt.Errorf("frontmatter date %q is not a recognized format", v)
	default:
		return time.Time{}, fmt.Errorf("frontmatter date must be a string or timestamp, got %T", value)
	}
}

func stringList(value any, key string) ([]string, error) {
	items, ok := value.([]any)
	if !ok {
		return nil, fmt.Errorf("frontmatter %s must be a sequence, got %T", key, value)
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("frontmatter %s entries must be strings, got %T", key, item)
		}
		out = append(out, s)
	}
	return out, nil
}
