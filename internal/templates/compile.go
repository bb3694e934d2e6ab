// Package templates compiles page templates and partials and evaluates them
// against the per-render context value.
//
// Compilation follows Go's text/template engine: partials are attached to a
// template's namespace by name, so `{{template "nav" .}}` resolves included
// partials at execution time. A compiled template is safe for parallel
// execution, which lets independent page render tasks share one compiled
// form read-only.
package templates

import (
	"bytes"
	"fmt"
	"text/template"
)

// Compile parses template source and attaches the already-compiled parse
// trees of every partial in its include closure.
func Compile(name string, src []byte, partials map[string]*template.Template) (*template.Template, error) {
	tpl, err := template.New(name).Option("missingkey=error").Parse(string(src))
	if err != nil {
		return nil, fmt.Errorf("parse template %s: %w", name, err)
	}

	for pname, ptpl := range partials {
		if ptpl == nil || ptpl.Tree == nil {
			return nil, fmt.Errorf("partial %s has no compiled form", pname)
		}
		// A partial's namespace carries its inline {{define}} bodies alongside
		// its main tree; all of them must travel into the page's namespace.
		for _, assoc := range ptpl.Templates() {
			if assoc.Tree == nil || assoc.Name() == name {
				continue
			}
			if _, err := tpl.AddParseTree(assoc.Name(), assoc.Tree); err != nil {
				return nil, fmt.Errorf("attach partial %s to %s: %w", pname, name, err)
			}
		}
	}
	return tpl, nil
}

// Render evaluates a compiled template against the render context.
func Render(tpl *template.Template, ctx map[string]any) ([]byte, error) {
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, ctx); err != nil {
		return nil, fmt.Errorf("render template %s: %w", tpl.Name(), err)
	}
	return buf.Bytes(), nil
}
