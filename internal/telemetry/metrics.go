// Package telemetry records local query telemetry for one run: which search
// modes are used, frequent terms, queries that found nothing and latency.
// Aggregates are persisted next to the records; nothing is reported elsewhere.
package telemetry

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Mode is the search mode of a query.
type Mode string

const (
	ModeChunks Mode = "chunks"
	ModeDocs   Mode = "docs"
)

// LatencyBucket is a latency histogram bucket.
type LatencyBucket string

const (
	BucketP10   LatencyBucket = "p10"   // <10ms
	BucketP50   LatencyBucket = "p50"   // 10-50ms
	BucketP100  LatencyBucket = "p100"  // 50-100ms
	BucketP500  LatencyBucket = "p500"  // 100-500ms
	BucketP1000 LatencyBucket = "p1000" // >=500ms
)

// Buckets lists the latency buckets in ascending order.
var Buckets = []LatencyBucket{BucketP10, BucketP50, BucketP100, BucketP500, BucketP1000}

// LatencyToBucket converts a duration to its histogram bucket.
func LatencyToBucket(d time.Duration) LatencyBucket {
	ms := d.Milliseconds()
	switch {
	case ms < 10:
		return BucketP10
	case ms < 50:
		return BucketP50
	case ms < 100:
		return BucketP100
	case ms < 500:
		return BucketP500
	default:
		return BucketP1000
	}
}

// Event is one answered search query.
type Event struct {
	Query   string
	Mode    Mode
	Results int
	Latency time.Duration
}

// minTermLen drops short tokens such as "of" or "to".
const minTermLen = 3

var ftsOperators = map[string]bool{"and": true, "or": true, "not": true, "near": true}

// Terms splits an FTS query into lowercase search terms. Operators, quotes,
// parentheses and prefix stars are dropped and each term is returned once.
func Terms(query string) []string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	var terms []string
	for _, f := range fields {
		if ftsOperators[f] || utf8.RuneCountInString(f) < minTermLen || slices.Contains(terms, f) {
			continue
		}
		terms = append(terms, f)
	}
	return terms
}

// TermCount is a term and how often it was searched.
type TermCount struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

// Snapshot is a point-in-time view of the telemetry of a run.
type Snapshot struct {
	RunID       string                  `json:"run_id"`
	Since       time.Time               `json:"since"`
	Total       int64                   `json:"total_queries"`
	ZeroResults int64                   `json:"zero_result_queries"`
	Repeats     int64                   `json:"exact_repeats"`
	Modes       map[Mode]int64          `json:"modes"`
	Latency     map[LatencyBucket]int64 `json:"latency"`
	TopTerms    []TermCount             `json:"top_terms"`
	// RecentZero holds recent zero-result queries, newest first.
	RecentZero []string `json:"recent_zero_results"`
}

// ZeroResultRate returns the share of queries that found nothing, in percent.
func (s Snapshot) ZeroResultRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.ZeroResults) / float64(s.Total) * 100
}

// Delta holds the aggregates recorded since the previous flush.
type Delta struct {
	Date    string
	Modes   map[Mode]int64
	Zero    map[Mode]int64
	Latency map[LatencyBucket]int64
	Terms   map[string]int64
	// ZeroQueries is in recording order.
	ZeroQueries []string
}

func newDelta() Delta {
	return Delta{
		Modes:   map[Mode]int64{},
		Zero:    map[Mode]int64{},
		Latency: map[LatencyBucket]int64{},
		Terms:   map[string]int64{},
	}
}

func (d Delta) empty() bool {
	return len(d.Modes) == 0
}

// merge folds an unsaved delta back in front of newer events.
func (d *Delta) merge(older Delta) {
	for k, v := range older.Modes {
		d.Modes[k] += v
	}
	for k, v := range older.Zero {
		d.Zero[k] += v
	}
	for k, v := range older.Latency {
		d.Latency[k] += v
	}
	for k, v := range older.Terms {
		d.Terms[k] += v
	}
	d.ZeroQueries = append(slices.Clone(older.ZeroQueries), d.ZeroQueries...)
}

// Sink persists deltas.
type Sink interface {
	Save(ctx context.Context, runID string, d Delta) error
}

// Options configures a Collector.
type Options struct {
	// TopTerms bounds the number of distinct terms kept in memory.
	TopTerms int
	// ZeroResults bounds the zero-result queries kept in memory.
	ZeroResults int
	// RecentQueries bounds the window used to detect exact repeats.
	RecentQueries int
	// FlushInterval is the period of Run; zero flushes only on shutdown.
	FlushInterval time.Duration
}

func (o Options) withDefaults() Options {
	if o.TopTerms <= 0 {
		o.TopTerms = 100
	}
	if o.ZeroResults <= 0 {
		o.ZeroResults = 100
	}
	if o.RecentQueries <= 0 {
		o.RecentQueries = 500
	}
	return o
}

// Collector aggregates query events for one run. It is safe for
// concurrent use.
type Collector struct {
	runID  string
	opts   Options
	sink   Sink
	logger *slog.Logger
	now    func() time.Time

	mu        sync.Mutex
	since     time.Time
	total     int64
	zeroCount int64
	repeats   int64
	modes     map[Mode]int64
	latency   map[LatencyBucket]int64
	terms     *lru.Cache[string, int64]
	recent    *lru.Cache[string, struct{}]
	zero      *ring[string]
	pending   Delta
}

// New creates a Collector. A nil sink keeps telemetry in memory only; a nil
// logger means slog.Default().
func New(runID string, sink Sink, opts Options, logger *slog.Logger) *Collector {
	opts = opts.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}

	// lru.New only fails for a non-positive size.
	terms, _ := lru.New[string, int64](opts.TopTerms)
	recent, _ := lru.New[string, struct{}](opts.RecentQueries)

	return &Collector{
		runID:   runID,
		opts:    opts,
		sink:    sink,
		logger:  logger,
		now:     time.Now,
		since:   time.Now(),
		modes:   map[Mode]int64{},
		latency: map[LatencyBucket]int64{},
		terms:   terms,
		recent:  recent,
		zero:    newRing[string](opts.ZeroResults),
		pending: newDelta(),
	}
}

// Record adds one event. It never blocks on I/O.
func (c *Collector) Record(e Event) {
	query := strings.TrimSpace(e.Query)
	if query == "" {
		return
	}
	bucket := LatencyToBucket(e.Latency)
	terms := Terms(query)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.total++
	c.modes[e.Mode]++
	c.latency[bucket]++
	c.pending.Modes[e.Mode]++
	c.pending.Latency[bucket]++

	for _, t := range terms {
		n, _ := c.terms.Get(t)
		c.terms.Add(t, n+1)
		c.pending.Terms[t]++
	}

	if e.Results == 0 {
		c.zeroCount++
		c.zero.Add(query)
		c.pending.Zero[e.Mode]++
		c.pending.ZeroQueries = append(c.pending.ZeroQueries, query)
	}

	key := hashQuery(query)
	if _, seen := c.recent.Get(key); seen {
		c.repeats++
	}
	c.recent.Add(key, struct{}{})
}

// hashQuery normalises case and whitespace so "Flight  Log" repeats "flight log".
func hashQuery(query string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(query)), " ")
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:16])
}

// Snapshot returns the telemetry recorded by this collector.
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		RunID:       c.runID,
		Since:       c.since,
		Total:       c.total,
		ZeroResults: c.zeroCount,
		Repeats:     c.repeats,
		Modes:       make(map[Mode]int64, len(c.modes)),
		Latency:     make(map[LatencyBucket]int64, len(c.latency)),
		TopTerms:    []TermCount{},
		RecentZero:  c.zero.Items(),
	}
	for k, v := range c.modes {
		snap.Modes[k] = v
	}
	for k, v := range c.latency {
		snap.Latency[k] = v
	}
	for _, term := range c.terms.Keys() {
		if n, ok := c.terms.Peek(term); ok {
			snap.TopTerms = append(snap.TopTerms, TermCount{Term: term, Count: n})
		}
	}
	sortTerms(snap.TopTerms)
	slices.Reverse(snap.RecentZero)
	return snap
}

// sortTerms orders by count, most frequent first, then alphabetically.
func sortTerms(terms []TermCount) {
	slices.SortFunc(terms, func(a, b TermCount) int {
		if a.Count != b.Count {
			if a.Count > b.Count {
				return -1
			}
			return 1
		}
		return strings.Compare(a.Term, b.Term)
	})
}

// Flush hands the events recorded since the last flush to the sink. On
// failure they are kept and retried by the next flush.
func (c *Collector) Flush(ctx context.Context) error {
	if c.sink == nil {
		return nil
	}

	c.mu.Lock()
	d := c.pending
	c.pending = newDelta()
	c.mu.Unlock()

	if d.empty() {
		return nil
	}
	d.Date = c.now().UTC().Format(time.DateOnly)

	if err := c.sink.Save(ctx, c.runID, d); err != nil {
		c.mu.Lock()
		c.pending.merge(d)
		c.mu.Unlock()
		return err
	}
	return nil
}

// Run flushes every FlushInterval until ctx is cancelled, then flushes once
// more and returns the result of that final flush.
func (c *Collector) Run(ctx context.Context) error {
	var tick <-chan time.Time
	if c.opts.FlushInterval > 0 {
		ticker := time.NewTicker(c.opts.FlushInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-tick:
			if err := c.Flush(ctx); err != nil {
				c.logger.Warn("telemetry_flush_failed", slog.String("error", err.Error()))
			}
		case <-ctx.Done():
			return c.Flush(context.WithoutCancel(ctx))
		}
	}
}
