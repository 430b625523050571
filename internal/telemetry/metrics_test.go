package telemetry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memorySink records every saved delta.
type memorySink struct {
	mu     sync.Mutex
	saved  []Delta
	failed int
}

func (s *memorySink) Save(_ context.Context, _ string, d Delta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failed > 0 {
		s.failed--
		return errors.New("disk I/O error")
	}
	s.saved = append(s.saved, d)
	return nil
}

func (s *memorySink) deltas() []Delta {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Delta(nil), s.saved...)
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLatencyToBucket(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want LatencyBucket
	}{
		{0, BucketP10},
		{9 * time.Millisecond, BucketP10},
		{10 * time.Millisecond, BucketP50},
		{75 * time.Millisecond, BucketP100},
		{499 * time.Millisecond, BucketP500},
		{2 * time.Second, BucketP1000},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, LatencyToBucket(tt.d), tt.d.String())
	}
}

func TestTerms(t *testing.T) {
	tests := []struct {
		query string
		want  []string
	}{
		{"flight", []string{"flight"}},
		{`"Flight Manifest" NOT draft`, []string{"flight", "manifest", "draft"}},
		{"budget* OR (palm AND beach)", []string{"budget", "palm", "beach"}},
		{"to of an", nil},
		{"flight flight FLIGHT", []string{"flight"}},
		{"café 2019", []string{"café", "2019"}},
		{"   ", nil},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Terms(tt.query), tt.query)
	}
}

func TestRing_EvictsOldest(t *testing.T) {
	r := newRing[string](3)
	assert.Empty(t, r.Items())

	for _, q := range []string{"a", "b", "c", "d", "e"} {
		r.Add(q)
	}

	assert.Equal(t, 3, r.Len())
	assert.Equal(t, []string{"c", "d", "e"}, r.Items())
}

func TestCollector_Snapshot(t *testing.T) {
	// Given: a collector fed a mix of queries
	c := New("content", nil, Options{}, discard())
	c.Record(Event{Query: "flight log", Mode: ModeChunks, Results: 4, Latency: 3 * time.Millisecond})
	c.Record(Event{Query: "Flight  LOG", Mode: ModeChunks, Results: 4, Latency: 20 * time.Millisecond})
	c.Record(Event{Query: "manifest", Mode: ModeDocs, Results: 0, Latency: time.Millisecond})
	c.Record(Event{Query: "zeppelin", Mode: ModeChunks, Results: 0})
	c.Record(Event{Query: "  ", Mode: ModeChunks})

	// When: taking a snapshot
	snap := c.Snapshot()

	// Then: blank queries are ignored and everything else is counted
	assert.Equal(t, "content", snap.RunID)
	assert.EqualValues(t, 4, snap.Total)
	assert.EqualValues(t, 2, snap.ZeroResults)
	assert.EqualValues(t, 1, snap.Repeats)
	assert.Equal(t, map[Mode]int64{ModeChunks: 3, ModeDocs: 1}, snap.Modes)
	assert.Equal(t, map[LatencyBucket]int64{BucketP10: 3, BucketP50: 1}, snap.Latency)
	assert.Equal(t, []string{"zeppelin", "manifest"}, snap.RecentZero)
	require.Len(t, snap.TopTerms, 4)
	assert.Equal(t, TermCount{Term: "flight", Count: 2}, snap.TopTerms[0])
	assert.Equal(t, TermCount{Term: "log", Count: 2}, snap.TopTerms[1])
	assert.Equal(t, TermCount{Term: "manifest", Count: 1}, snap.TopTerms[2])
	assert.InDelta(t, 50.0, snap.ZeroResultRate(), 0.001)
}

func TestCollector_TopTermsBounded(t *testing.T) {
	c := New("content", nil, Options{TopTerms: 2}, discard())

	c.Record(Event{Query: "alpha", Mode: ModeChunks, Results: 1})
	c.Record(Event{Query: "bravo", Mode: ModeChunks, Results: 1})
	c.Record(Event{Query: "charlie", Mode: ModeChunks, Results: 1})

	terms := c.Snapshot().TopTerms
	require.Len(t, terms, 2)
	assert.Equal(t, "bravo", terms[0].Term)
	assert.Equal(t, "charlie", terms[1].Term)
}

func TestCollector_FlushSendsOnlyNewEvents(t *testing.T) {
	// Given: a collector with a sink and a fixed clock
	sink := &memorySink{}
	c := New("content", sink, Options{}, discard())
	c.now = func() time.Time { return time.Date(2026, 3, 4, 23, 0, 0, 0, time.UTC) }

	c.Record(Event{Query: "flight", Mode: ModeChunks, Results: 0})
	require.NoError(t, c.Flush(context.Background()))

	// When: flushing again with and without new events
	require.NoError(t, c.Flush(context.Background()))
	c.Record(Event{Query: "manifest", Mode: ModeDocs, Results: 2})
	require.NoError(t, c.Flush(context.Background()))

	// Then: each delta carries only its own events
	saved := sink.deltas()
	require.Len(t, saved, 2)
	assert.Equal(t, "2026-03-04", saved[0].Date)
	assert.Equal(t, map[Mode]int64{ModeChunks: 1}, saved[0].Modes)
	assert.Equal(t, map[Mode]int64{ModeChunks: 1}, saved[0].Zero)
	assert.Equal(t, []string{"flight"}, saved[0].ZeroQueries)
	assert.Equal(t, map[Mode]int64{ModeDocs: 1}, saved[1].Modes)
	assert.Equal(t, map[string]int64{"manifest": 1}, saved[1].Terms)
	assert.Empty(t, saved[1].ZeroQueries)
}

func TestCollector_FailedFlushIsRetried(t *testing.T) {
	// Given: a sink that fails once
	sink := &memorySink{failed: 1}
	c := New("content", sink, Options{}, discard())
	c.Record(Event{Query: "flight", Mode: ModeChunks, Results: 0})

	// When: the first flush fails and a later one succeeds
	require.Error(t, c.Flush(context.Background()))
	c.Record(Event{Query: "flight", Mode: ModeChunks, Results: 1})
	require.NoError(t, c.Flush(context.Background()))

	// Then: nothing recorded before the failure is lost
	saved := sink.deltas()
	require.Len(t, saved, 1)
	assert.Equal(t, map[Mode]int64{ModeChunks: 2}, saved[0].Modes)
	assert.Equal(t, map[string]int64{"flight": 2}, saved[0].Terms)
	assert.Equal(t, []string{"flight"}, saved[0].ZeroQueries)
}

func TestCollector_RunFlushesOnCancel(t *testing.T) {
	sink := &memorySink{}
	c := New("content", sink, Options{}, discard())
	c.Record(Event{Query: "flight", Mode: ModeChunks, Results: 1})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, c.Run(ctx))
	assert.Len(t, sink.deltas(), 1)
}

func TestCollector_RunFlushesPeriodically(t *testing.T) {
	sink := &memorySink{}
	c := New("content", sink, Options{FlushInterval: 5 * time.Millisecond}, discard())
	c.Record(Event{Query: "flight", Mode: ModeChunks, Results: 1})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	assert.Eventually(t, func() bool { return len(sink.deltas()) == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
	assert.Len(t, sink.deltas(), 1)
}

func TestCollector_NilSinkFlushIsNoop(t *testing.T) {
	c := New("content", nil, Options{}, nil)
	c.Record(Event{Query: "flight", Mode: ModeChunks, Results: 1})

	assert.NoError(t, c.Flush(context.Background()))
	assert.EqualValues(t, 1, c.Snapshot().Total)
}
