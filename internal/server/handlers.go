package server

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	rxerrors "github.com/Aman-CERP/recordex/internal/errors"
	"github.com/Aman-CERP/recordex/internal/telemetry"
)

const (
	defaultLimit    = 25
	maxOffset       = 2_000_000
	defaultMaxChars = 120_000
	minMaxChars     = 1_000
	maxMaxChars     = 2_000_000
)

// clampInt parses v as a number, truncates it and clamps it to [lo, hi].
// Missing or non-numeric input yields def.
func clampInt(v string, def, lo, hi int) int {
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return def
	}
	return int(math.Trunc(math.Max(float64(lo), math.Min(float64(hi), f))))
}

// truthy mirrors loose JSON truthiness for the mark state field.
func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case float64:
		return x != 0 && !math.IsNaN(x)
	case string:
		return x != ""
	default:
		return true
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	if rxerrors.HasCode(err, rxerrors.ErrCodeInvalidQuery) {
		status = http.StatusBadRequest
	}
	if status >= 500 {
		s.logger.Error("request_failed", rxerrors.LogAttrs(err)...)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// GET /api/search?q=&mode=chunks|docs&limit=&offset=
func (s *Server) handleSearch(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		c.JSON(http.StatusOK, gin.H{"items": []any{}})
		return
	}

	mode := strings.ToLower(c.DefaultQuery("mode", "chunks"))
	limit := clampInt(c.Query("limit"), defaultLimit, 1, s.cfg.MaxLimit)
	offset := clampInt(c.Query("offset"), 0, 0, maxOffset)
	ctx := c.Request.Context()
	start := time.Now()

	if mode == "docs" {
		items, err := s.db.SearchDocs(ctx, s.cfg.RunID, q, limit, offset)
		if err != nil {
			s.fail(c, err)
			return
		}
		s.recordQuery(q, telemetry.ModeDocs, len(items), start)
		c.JSON(http.StatusOK, gin.H{"items": items})
		return
	}

	items, err := s.db.SearchChunks(ctx, s.cfg.RunID, q, limit, offset)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.recordQuery(q, telemetry.ModeChunks, len(items), start)
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (s *Server) recordQuery(q string, mode telemetry.Mode, results int, start time.Time) {
	if s.cfg.Queries == nil {
		return
	}
	s.cfg.Queries.Record(telemetry.Event{Query: q, Mode: mode, Results: results, Latency: time.Since(start)})
}

// GET /api/doc?doc_id=&max_chars=
func (s *Server) handleDoc(c *gin.Context) {
	docID := strings.TrimSpace(c.Query("doc_id"))
	maxChars := clampInt(c.Query("max_chars"), defaultMaxChars, minMaxChars, maxMaxChars)
	if docID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing doc_id"})
		return
	}

	key := docKey{docID: docID, maxChars: maxChars}
	if doc, ok := s.docs.Get(key); ok {
		c.JSON(http.StatusOK, doc)
		return
	}

	doc, err := s.db.Document(c.Request.Context(), s.cfg.RunID, docID, maxChars)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.docs.Add(key, doc)
	c.JSON(http.StatusOK, doc)
}

type markRequest struct {
	DocID any `json:"doc_id"`
	State any `json:"state"`
}

// POST /api/mark {"doc_id": "...", "state": true}
func (s *Server) handleMark(c *gin.Context) {
	var req markRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body: " + err.Error()})
		return
	}

	var docID string
	switch v := req.DocID.(type) {
	case string:
		docID = strings.TrimSpace(v)
	case float64:
		docID = strconv.FormatFloat(v, 'f', -1, 64)
	}
	if docID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing doc_id"})
		return
	}

	state := truthy(req.State)
	if err := s.db.SetMark(c.Request.Context(), s.cfg.RunID, docID, state); err != nil {
		s.fail(c, err)
		return
	}
	s.forgetDoc(docID)
	s.logger.Debug("mark_updated", slog.String("doc_id", docID), slog.Bool("marked", state))
	c.JSON(http.StatusOK, gin.H{"ok": true, "marked": state})
}

// GET /api/marks
func (s *Server) handleMarks(c *gin.Context) {
	items, err := s.db.Marks(c.Request.Context(), s.cfg.RunID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// GET /api/export?format=json|csv
func (s *Server) handleExport(c *gin.Context) {
	items, err := s.db.Marks(c.Request.Context(), s.cfg.RunID)
	if err != nil {
		s.fail(c, err)
		return
	}

	if strings.ToLower(c.DefaultQuery("format", "json")) != "csv" {
		c.JSON(http.StatusOK, gin.H{"items": items})
		return
	}

	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Status(http.StatusOK)
	rows := make([][]string, 0, len(items)+1)
	rows = append(rows, []string{"doc_id", "source_file", "created_at"})
	for _, m := range items {
		rows = append(rows, []string{m.DocID, m.SourceFile, m.CreatedAt})
	}
	if err := writeCSV(c.Writer, rows); err != nil {
		s.logger.Error("export_failed", slog.String("error", err.Error()))
	}
}

// GET /api/stats
func (s *Server) handleStats(c *gin.Context) {
	st, err := s.db.Stats(c.Request.Context(), s.cfg.RunID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// GET /api/queries
func (s *Server) handleQueries(c *gin.Context) {
	c.JSON(http.StatusOK, s.cfg.Queries.Snapshot())
}

func writeCSV(w io.Writer, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write CSV: %w", err)
	}
	return nil
}
