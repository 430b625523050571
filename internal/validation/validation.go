// Package validation runs a data-driven search quality suite against one run.
//
// Queries and the documents they must surface live in a YAML file, so the
// suite can change with the corpus without rebuilding recordex:
//
//	tier1:
//	  - id: T1-Q1
//	    name: flight logs
//	    query: flight
//	    expected: [EFTA00000001]
//	tier2:
//	  - id: T2-Q1
//	    query: '"boarding pass"'
//	    mode: docs
//	    expected: [EFTA000001]
//	negative:
//	  - id: N-1
//	    query: '"unbalanced'
//
// Tier 1 holds must-pass queries, tier 2 nice-to-have ones. Negative queries
// only have to be answered or rejected as invalid FTS syntax.
package validation

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	rxerrors "github.com/Aman-CERP/recordex/internal/errors"
	"github.com/Aman-CERP/recordex/internal/store"
)

// QuerySpec defines a query and the documents expected in its results.
type QuerySpec struct {
	ID    string `yaml:"id" json:"id"`
	Name  string `yaml:"name" json:"name,omitempty"`
	Query string `yaml:"query" json:"query"`
	// Mode is "chunks" (default) or "docs".
	Mode string `yaml:"mode" json:"mode"`
	// Expected lists doc ids or doc id prefixes; one of them must appear.
	Expected []string `yaml:"expected" json:"expected,omitempty"`
	Notes    string   `yaml:"notes" json:"notes,omitempty"`
	Tier     int      `yaml:"-" json:"tier"`
}

// QueryConfig holds the queries of a suite by tier.
type QueryConfig struct {
	Tier1    []QuerySpec `yaml:"tier1"`
	Tier2    []QuerySpec `yaml:"tier2"`
	Negative []QuerySpec `yaml:"negative"`
}

// Len returns the number of queries in the suite.
func (c *QueryConfig) Len() int {
	return len(c.Tier1) + len(c.Tier2) + len(c.Negative)
}

// LoadQueries reads a suite from path.
func LoadQueries(path string) (*QueryConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, rxerrors.New(rxerrors.ErrCodeFileRead, "cannot read query suite "+path, err)
	}
	return ParseQueries(data)
}

// ParseQueries decodes a suite, assigns tiers and defaults and rejects
// entries without a query.
func ParseQueries(data []byte) (*QueryConfig, error) {
	var cfg QueryConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, rxerrors.ValidationError("failed to parse query suite", err)
	}

	for tier, specs := range map[int][]QuerySpec{1: cfg.Tier1, 2: cfg.Tier2, 0: cfg.Negative} {
		for i := range specs {
			s := &specs[i]
			s.Tier = tier
			s.Mode = strings.ToLower(strings.TrimSpace(s.Mode))
			if s.Mode == "" {
				s.Mode = "chunks"
			}
			if s.ID == "" {
				s.ID = fmt.Sprintf("tier%d-%d", tier, i+1)
			}
			if strings.TrimSpace(s.Query) == "" {
				return nil, rxerrors.ValidationError(fmt.Sprintf("query %s has no query text", s.ID), nil)
			}
			if s.Mode != "chunks" && s.Mode != "docs" {
				return nil, rxerrors.ValidationError(fmt.Sprintf("query %s: mode must be chunks or docs, got %q", s.ID, s.Mode), nil)
			}
			if tier > 0 && len(s.Expected) == 0 {
				return nil, rxerrors.ValidationError(fmt.Sprintf("query %s lists no expected documents", s.ID), nil)
			}
		}
	}

	if cfg.Len() == 0 {
		return nil, rxerrors.ValidationError("query suite is empty", nil)
	}
	return &cfg, nil
}

// Searcher is the read side a Validator queries. *store.DB implements it.
type Searcher interface {
	SearchChunks(ctx context.Context, runID, query string, limit, offset int) ([]store.ChunkHit, error)
	SearchDocs(ctx context.Context, runID, query string, limit, offset int) ([]store.DocHit, error)
}

// TestResult captures the outcome of a single query.
type TestResult struct {
	Spec       QuerySpec     `json:"spec"`
	Passed     bool          `json:"passed"`
	Duration   time.Duration `json:"duration_ns"`
	TopResults []string      `json:"top_results"` // doc ids, best first
	MatchedAt  int           `json:"matched_at"`  // -1 if not found
	Error      string        `json:"error,omitempty"`
}

// ValidationResult captures a full suite run.
type ValidationResult struct {
	Timestamp  time.Time    `json:"timestamp"`
	RunID      string       `json:"run_id"`
	Tier1      []TestResult `json:"tier1"`
	Tier2      []TestResult `json:"tier2"`
	Negative   []TestResult `json:"negative"`
	Tier1Pass  int          `json:"tier1_pass"`
	Tier1Total int          `json:"tier1_total"`
	Tier2Pass  int          `json:"tier2_pass"`
	Tier2Total int          `json:"tier2_total"`
	NegPass    int          `json:"negative_pass"`
	NegTotal   int          `json:"negative_total"`
}

// Failed returns the number of failed queries across all tiers.
func (r *ValidationResult) Failed() int {
	return r.Tier1Total - r.Tier1Pass + r.Tier2Total - r.Tier2Pass + r.NegTotal - r.NegPass
}

// Total returns the number of queries run.
func (r *ValidationResult) Total() int {
	return r.Tier1Total + r.Tier2Total + r.NegTotal
}

// Validator runs suites against one run.
type Validator struct {
	searcher Searcher
	runID    string
	limit    int
}

// NewValidator creates a validator that looks for expected documents in the
// top limit results.
func NewValidator(s Searcher, runID string, limit int) *Validator {
	if limit <= 0 {
		limit = 10
	}
	return &Validator{searcher: s, runID: runID, limit: limit}
}

// RunQuery executes a single query and returns the result.
func (v *Validator) RunQuery(ctx context.Context, spec QuerySpec) TestResult {
	start := time.Now()
	result := TestResult{Spec: spec, MatchedAt: -1, TopResults: []string{}}

	ids, err := v.search(ctx, spec)
	result.Duration = time.Since(start)
	if err != nil {
		// Negative queries may be rejected, they just must not break the store.
		if spec.Tier == 0 && rxerrors.HasCode(err, rxerrors.ErrCodeInvalidQuery) {
			result.Passed = true
			return result
		}
		result.Error = err.Error()
		return result
	}

	result.TopResults = ids
	if spec.Tier == 0 {
		result.Passed = true
		return result
	}
	result.Passed, result.MatchedAt = checkExpected(ids, spec.Expected)
	return result
}

// search returns distinct doc ids in rank order.
func (v *Validator) search(ctx context.Context, spec QuerySpec) ([]string, error) {
	ids := []string{}
	seen := map[string]bool{}
	add := func(id string) {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	if spec.Mode == "docs" {
		hits, err := v.searcher.SearchDocs(ctx, v.runID, spec.Query, v.limit, 0)
		if err != nil {
			return nil, err
		}
		for _, h := range hits {
			add(h.DocID)
		}
		return ids, nil
	}

	hits, err := v.searcher.SearchChunks(ctx, v.runID, spec.Query, v.limit, 0)
	if err != nil {
		return nil, err
	}
	for _, h := range hits {
		add(h.DocID)
	}
	return ids, nil
}

// RunAll executes every query of cfg, tier by tier. It stops early only when
// ctx is cancelled.
func (v *Validator) RunAll(ctx context.Context, cfg *QueryConfig) (*ValidationResult, error) {
	result := &ValidationResult{Timestamp: time.Now(), RunID: v.runID}

	run := func(specs []QuerySpec, out *[]TestResult, pass, total *int) error {
		for _, spec := range specs {
			if err := ctx.Err(); err != nil {
				return rxerrors.New(rxerrors.ErrCodeInterrupted, "validation interrupted", err)
			}
			tr := v.RunQuery(ctx, spec)
			*out = append(*out, tr)
			*total++
			if tr.Passed {
				*pass++
			}
		}
		return nil
	}

	if err := run(cfg.Tier1, &result.Tier1, &result.Tier1Pass, &result.Tier1Total); err != nil {
		return result, err
	}
	if err := run(cfg.Tier2, &result.Tier2, &result.Tier2Pass, &result.Tier2Total); err != nil {
		return result, err
	}
	if err := run(cfg.Negative, &result.Negative, &result.NegPass, &result.NegTotal); err != nil {
		return result, err
	}
	return result, nil
}

// checkExpected reports the rank of the first result matching an expected
// doc id or prefix.
func checkExpected(results []string, expected []string) (bool, int) {
	for i, id := range results {
		for _, exp := range expected {
			if strings.HasPrefix(id, exp) {
				return true, i
			}
		}
	}
	return false, -1
}
