// Package diag provides the diagnostics sink used by the solver and the
// post-processing layers.
//
// Library code never logs on its own. It records named events with
// slog-style key/value attributes through an injected [Recorder]:
//
//	rec := diag.Multi(diag.NewSlog(slog.Default()), metrics)
//	s := solver.New(setup, rec)
//
// The zero configuration is [Nop].
package diag

import (
	"context"
	"log/slog"
	"sync"
)

// Event names.
const (
	EventSetup     = "setup"
	EventSolve     = "solve"
	EventSolveDone = "solve.done"
	EventStats     = "stats"
	EventRoot      = "root"
	EventFailure   = "failure"
	EventFallback  = "fallback"
	EventObserve   = "observe"
)

// Recorder receives diagnostics. Implementations must be safe for
// concurrent use.
type Recorder interface {
	Record(event string, attrs ...any)
}

type nop struct{}

func (nop) Record(string, ...any) {}

// Nop discards every record.
var Nop Recorder = nop{}

// OrNop returns r, or Nop when r is nil.
func OrNop(r Recorder) Recorder {
	if r == nil {
		return Nop
	}
	return r
}

// Slog writes records to a structured logger at debug level, failures at
// warn level.
type Slog struct {
	logger *slog.Logger
}

func NewSlog(logger *slog.Logger) *Slog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Slog{logger: logger}
}

func (s *Slog) Record(event string, attrs ...any) {
	level := slog.LevelDebug
	switch event {
	case EventFailure:
		level = slog.LevelWarn
	case EventStats:
		level = slog.LevelInfo
	}
	s.logger.Log(context.Background(), level, event, attrs...)
}

type multi []Recorder

func (m multi) Record(event string, attrs ...any) {
	for _, r := range m {
		r.Record(event, attrs...)
	}
}

// Multi fans records out to every non-nil recorder.
func Multi(rs ...Recorder) Recorder {
	var out multi
	for _, r := range rs {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

// Entry is one captured record.
type Entry struct {
	Event string
	Attrs map[string]any
}

// Memory keeps records in memory. Used by tests.
type Memory struct {
	mu      sync.Mutex
	entries []Entry
}

func (m *Memory) Record(event string, attrs ...any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, Entry{Event: event, Attrs: pairs(attrs)})
}

func (m *Memory) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Entry(nil), m.entries...)
}

// Find returns the captured entries with the given event name.
func (m *Memory) Find(event string) []Entry {
	var out []Entry
	for _, e := range m.Entries() {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

func pairs(attrs []any) map[string]any {
	out := make(map[string]any, len(attrs)/2)
	for i := 0; i+1 < len(attrs); i += 2 {
		key, ok := attrs[i].(string)
		if !ok {
			continue
		}
		out[key] = attrs[i+1]
	}
	return out
}
