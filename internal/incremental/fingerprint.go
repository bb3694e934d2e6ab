// Package incremental computes content fingerprints and the transitive dirty
// closure that decides which nodes a build must render.
package incremental

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/inful/mdfp"

	"git.home.luguber.info/inful/sitesmith/internal/content"
)

// Fingerprint computes a node's base fingerprint: a deterministic function of
// the node's own content and nothing else. Cross-node effects flow through
// edges, never through the fingerprint of an unrelated node.
//
// Pages use the markdown fingerprint over (frontmatter, body) parts so that
// delimiter style or trailing-newline differences outside the document do not
// churn the hash. All other kinds hash raw bytes.
func Fingerprint(n *content.Node) (string, error) {
	switch n.Kind {
	case content.KindPage:
		if n.Failed() {
			// Malformed page: no split parts available, hash what was read.
			return hashBytes(n.Raw), nil
		}
		return mdfp.CalculateFingerprintFromParts(string(n.FrontMatter), string(n.Body)), nil
	case content.KindAsset:
		// Assets are not loaded into memory during classification; stream.
		return hashFile(n.AbsPath)
	case content.KindTemplate, content.KindPartial, content.KindData:
		return hashBytes(n.Raw), nil
	default:
		return "", fmt.Errorf("unknown node kind %q", n.Kind)
	}
}

// Combine folds a node's own fingerprint with its resolved include set's
// fingerprints, so a changed partial propagates into every template that
// includes it. deps must already be deterministically ordered.
func Combine(own string, deps []string) string {
	if len(deps) == 0 {
		return own
	}
	h := sha256.New()
	_, _ = io.WriteString(h, own)
	_, _ = io.WriteString(h, "\x00")
	_, _ = io.WriteString(h, strings.Join(deps, "\x00"))
	return hex.EncodeToString(h.Sum(nil))
}

func hashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path) // #nosec G304 -- path produced by the source tree walk
	if err != nil {
		return "", fmt.Errorf("open for fingerprint: %w", err)
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
