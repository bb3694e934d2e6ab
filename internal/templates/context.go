package templates

import (
	"git.home.luguber.info/inful/sitesmith/internal/config"
	"git.home.luguber.info/inful/sitesmith/internal/content"
)

// Reserved context keys. Custom frontmatter keys are flattened into the
// context but can never shadow these.
const (
	ctxKeyTitle   = "title"
	ctxKeyContent = "content"
	ctxKeyDate    = "date"
	ctxKeyTags    = "tags"
	ctxKeySlug    = "slug"
	ctxKeySite    = "site"
	ctxKeyData    = "data"
)

// PageContext assembles the tagged value passed into template execution:
// page metadata plus the rendered HTML fragment, site-wide values, and the
// page's declared data files.
func PageContext(meta *content.PageMeta, htmlFragment string, site config.SiteConfig, data map[string]any) map[string]any {
	ctx := make(map[string]any, len(meta.Custom)+7)
	for k, v := range meta.Custom {
		ctx[k] = v
	}

	tags := meta.Tags
	if tags == nil {
		tags = []string{}
	}

	ctx[ctxKeyTitle] = meta.Title
	ctx[ctxKeyContent] = htmlFragment
	ctx[ctxKeyDate] = meta.Date
	ctx[ctxKeyTags] = tags
	ctx[ctxKeySlug] = meta.Slug
	ctx[ctxKeySite] = siteContext(site)
	if data == nil {
		data = map[string]any{}
	}
	ctx[ctxKeyData] = data
	return ctx
}

func siteContext(site config.SiteConfig) map[string]any {
	params := site.Params
	if params == nil {
		params = map[string]any{}
	}
	return map[string]any{
		"title":    site.Title,
		"base_url": site.BaseURL,
		"params":   params,
	}
}
