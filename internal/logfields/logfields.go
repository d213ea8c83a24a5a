package logfields

import (
	"log/slog"
	"time"
)

// Canonical log field name constants to avoid drift across packages.
const (
	KeyBuildID    = "build_id"
	KeyStage      = "stage"
	KeyDurationMS = "duration_ms"
	KeyPath       = "path"
	KeyTheme      = "theme"
	KeyTemplate   = "template"
	KeyEvent      = "event"
	KeyAction     = "action"
	KeyCount      = "count"
	KeyOutcome    = "outcome"
	KeyPort       = "port"
	KeyMethod     = "method"
	KeyStatus     = "status"
	KeyRequestID  = "request_id"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func BuildID(id string) slog.Attr     { return slog.String(KeyBuildID, id) }
func Stage(name string) slog.Attr     { return slog.String(KeyStage, name) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func Theme(name string) slog.Attr     { return slog.String(KeyTheme, name) }
func Template(name string) slog.Attr  { return slog.String(KeyTemplate, name) }
func Event(kind string) slog.Attr     { return slog.String(KeyEvent, kind) }
func Action(a string) slog.Attr       { return slog.String(KeyAction, a) }
func Count(n int) slog.Attr           { return slog.Int(KeyCount, n) }
func Outcome(o string) slog.Attr      { return slog.String(KeyOutcome, o) }
func Port(p int) slog.Attr            { return slog.Int(KeyPort, p) }
func Method(m string) slog.Attr       { return slog.String(KeyMethod, m) }
func Status(code int) slog.Attr       { return slog.Int(KeyStatus, code) }
func RequestID(id string) slog.Attr   { return slog.String(KeyRequestID, id) }
func Since(start time.Time) slog.Attr { return DurationMS(float64(time.Since(start).Microseconds()) / 1000) }

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
