package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyBuildID    = "build_id"
	KeyPage       = "page"
	KeyVersion    = "version"
	KeyTimestamp  = "timestamp"
	KeyPhase      = "phase"
	KeyTransform  = "transform"
	KeyIndex      = "index"
	KeyPath       = "path"
	KeyOutput     = "output"
	KeyFiles      = "files"
	KeyCharset    = "charset"
	KeyStatus     = "status"
	KeyDurationMS = "duration_ms"
	KeyTrigger    = "trigger"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func BuildID(id string) slog.Attr     { return slog.String(KeyBuildID, id) }
func Page(name string) slog.Attr      { return slog.String(KeyPage, name) }
func Version(v string) slog.Attr      { return slog.String(KeyVersion, v) }
func Timestamp(ts string) slog.Attr   { return slog.String(KeyTimestamp, ts) }
func Phase(name string) slog.Attr     { return slog.String(KeyPhase, name) }
func Transform(name string) slog.Attr { return slog.String(KeyTransform, name) }
func Index(i int) slog.Attr           { return slog.Int(KeyIndex, i) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func Output(p string) slog.Attr       { return slog.String(KeyOutput, p) }
func Files(n int) slog.Attr           { return slog.Int(KeyFiles, n) }
func Charset(cs string) slog.Attr     { return slog.String(KeyCharset, cs) }
func Status(s string) slog.Attr       { return slog.String(KeyStatus, s) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Trigger(t string) slog.Attr      { return slog.String(KeyTrigger, t) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
