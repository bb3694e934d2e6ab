package render

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Writer places rendered documents and copied assets under one output root.
// Parent directories are created on demand; existing files are overwritten,
// stale outputs are never removed.
type Writer struct {
	root string
}

// NewWriter creates a writer rooted at the output directory.
func NewWriter(root string) *Writer {
	return &Writer{root: root}
}

// Write stores a rendered document at the output-relative destination.
func (w *Writer) Write(dest string, data []byte) error {
	abs, err := w.prepare(dest)
	if err != nil {
		return err
	}
	if err := os.WriteFile(abs, data, 0o644); err != nil { // #nosec G306 -- published site output
		return fmt.Errorf("write output %s: %w", dest, err)
	}
	return nil
}

// Copy streams a source file to the output-relative destination.
func (w *Writer) Copy(src, dest string) error {
	abs, err := w.prepare(dest)
	if err != nil {
		return err
	}

	in, err := os.Open(src) // #nosec G304 -- path produced by the source walk
	if err != nil {
		return fmt.Errorf("open asset %s: %w", src, err)
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(abs) // #nosec G304 -- rooted under the output directory
	if err != nil {
		return fmt.Errorf("create output %s: %w", dest, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("copy asset %s: %w", dest, err)
	}
	return out.Close()
}

func (w *Writer) prepare(dest string) (string, error) {
	abs := filepath.Join(w.root, filepath.FromSlash(dest))
	if err := os.MkdirAll(filepath.Dir(abs), 0o750); err != nil {
		return "", fmt.Errorf("create output directory for %s: %w", dest, err)
	}
	return abs, nil
}
