package editor

import (
	"log/slog"
	"time"

	"github.com/starford/geoplan/internal/snap"
)

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithSnap sets the initial snapping mode.
func WithSnap(cfg snap.Config) Option {
	return func(s *Session) { s.snapCfg = cfg }
}

// WithHistoryLimit bounds the undo stack.
func WithHistoryLimit(n int) Option {
	return func(s *Session) { s.historyLimit = n }
}

// WithSaveTimeout bounds each store call.
func WithSaveTimeout(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.saveTimeout = d
		}
	}
}

// WithMultiInstance allows several markers of one geo code on the plan.
func WithMultiInstance(on bool) Option {
	return func(s *Session) { s.multi = on }
}

// WithMarkerSize sets the default size of new markers in pixels.
func WithMarkerSize(w, h float64) Option {
	return func(s *Session) {
		if w > 0 && h > 0 {
			s.markerW, s.markerH = w, h
		}
	}
}

// WithNotify registers a callback for store notices. It runs on the session
// loop and must not block or call back into the session.
func WithNotify(fn func(Notice)) Option {
	return func(s *Session) { s.onNotice = fn }
}
