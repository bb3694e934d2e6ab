package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyBuildID    = "build_id"
	KeyNode       = "node"
	KeyKind       = "kind"
	KeyOutput     = "output"
	KeyWorkers    = "workers"
	KeyDurationMS = "duration_ms"
	KeyDirty      = "dirty"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func BuildID(id string) slog.Attr     { return slog.String(KeyBuildID, id) }
func Node(path string) slog.Attr      { return slog.String(KeyNode, path) }
func Kind(k string) slog.Attr         { return slog.String(KeyKind, k) }
func Output(path string) slog.Attr    { return slog.String(KeyOutput, path) }
func Workers(n int) slog.Attr         { return slog.Int(KeyWorkers, n) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Dirty(n int) slog.Attr           { return slog.Int(KeyDirty, n) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
