package diag

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryAndMulti(t *testing.T) {
	a, b := &Memory{}, &Memory{}
	rec := Multi(a, nil, b)

	rec.Record(EventSolve, "run", "abc", "batches", 2)
	rec.Record(EventRoot, "t", 1.5)

	for _, m := range []*Memory{a, b} {
		require.Len(t, m.Entries(), 2)
		got := m.Find(EventSolve)
		require.Len(t, got, 1)
		assert.Equal(t, "abc", got[0].Attrs["run"])
		assert.Equal(t, 2, got[0].Attrs["batches"])
	}
}

func TestOrNop(t *testing.T) {
	assert.Equal(t, Nop, OrNop(nil))
	m := &Memory{}
	assert.Equal(t, Recorder(m), OrNop(m))
	Nop.Record("anything", "k", 1)
}

func TestSlogLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	rec := NewSlog(logger)

	rec.Record(EventObserve, "path", "batched")
	assert.Empty(t, buf.String(), "debug records are below the handler level")

	rec.Record(EventFailure, "flag", "-3")
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "flag=-3")
}

func TestMetricsRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)

	m.Record(EventSolveDone, "termination", "final time", "duration", 20*time.Millisecond)
	m.Record(EventSolveDone, "termination", "event", "duration", time.Second)
	m.Record(EventStats, "steps", 42)
	m.Record(EventFailure, "flag", "-4")
	m.Record(EventFallback)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Solves.WithLabelValues("final time")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Solves.WithLabelValues("event")))
	assert.Equal(t, 42.0, testutil.ToFloat64(m.Steps))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Failures.WithLabelValues("-4")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Fallbacks))

	again, err := NewMetrics(reg)
	require.NoError(t, err, "registering twice reuses collectors")
	again.Record(EventStats, "steps", 8)
	assert.Equal(t, 50.0, testutil.ToFloat64(m.Steps))
}
