package config

import (
	"fmt"
	"os"
)

const starterConfig = `# sitesmith configuration
site:
  title: "My Site"
  base_url: "https://example.com"
  params:
    author: "anonymous"

# Source tree layout, relative to the source root. Shown values are defaults.
# paths:
#   content: content
#   templates: templates
#   partials: templates/partials
#   data: data
#   static: static
#   output: public

build:
  default_template: default
  # workers: 4
  # fail_fast: false
  # include_drafts: false
  # verify_links: false
  # history_db: .sitesmith/history.db

# Per-section page defaults, keyed by the first directory under content/.
# sections:
#   posts:
#     template: post
`

// Init writes a starter configuration file. Existing files are preserved
// unless force is set.
func Init(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", path)
		}
	}
	if err := os.WriteFile(path, []byte(starterConfig), 0o600); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}
