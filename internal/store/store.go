// Package store persists analysis results, annotation results, learned
// code patterns, and per-variable inference history in a local sqlite
// database. A single connection with WAL keeps concurrent request
// handlers from tripping over each other.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const (
	driverName  = "sqlite"
	maxAttempts = 5
)

// ErrNotFound is returned by lookups that miss.
var ErrNotFound = sql.ErrNoRows

type Store struct {
	path string
	db   *sql.DB
	mu   sync.Mutex
}

func Open(path string) (*Store, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, fmt.Errorf("store path must not be empty")
	}
	if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
		return nil, fmt.Errorf("store path %q is a directory, expected file", cleanPath)
	}

	dir := filepath.Dir(cleanPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store directory %q: %w", dir, err)
		}
	}

	// busy_timeout + WAL reduce lock conflicts under concurrent requests.
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(2000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", cleanPath)
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store %q: %w", cleanPath, err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite store %q: %w", cleanPath, err)
	}
	if err := EnsureSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize sqlite schema %q: %w", cleanPath, err)
	}

	return &Store{path: cleanPath, db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// AnalysisRecord is a stored analysis keyed by the md5 of the source.
// SymbolTable, ASTGraph and Undeclared hold the JSON payloads as
// produced by the analysis layer; the store does not re-interpret them.
type AnalysisRecord struct {
	CodeHash    string          `json:"code_hash"`
	Code        string          `json:"code"`
	SymbolTable json.RawMessage `json:"symbol_table"`
	ASTGraph    json.RawMessage `json:"ast_graph"`
	Undeclared  json.RawMessage `json:"undeclared"`
	CreatedAt   time.Time       `json:"created_at"`
}

func (s *Store) SaveAnalysis(rec AnalysisRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.CodeHash == "" {
		return fmt.Errorf("analysis record needs a code hash")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	query := `
INSERT INTO analysis_records (code_hash, code, symbol_table, ast_graph, undeclared, created_at_utc)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(code_hash) DO UPDATE SET
  code=excluded.code,
  symbol_table=excluded.symbol_table,
  ast_graph=excluded.ast_graph,
  undeclared=excluded.undeclared,
  created_at_utc=excluded.created_at_utc
`
	return s.withRetry("save analysis", func() error {
		_, err := s.db.Exec(
			query,
			rec.CodeHash,
			rec.Code,
			rawOr(rec.SymbolTable, "{}"),
			rawOr(rec.ASTGraph, "{}"),
			rawOr(rec.Undeclared, "[]"),
			rec.CreatedAt.UTC().Format(time.RFC3339Nano),
		)
		return err
	})
}

func (s *Store) GetAnalysis(codeHash string) (AnalysisRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		rec   AnalysisRecord
		tsRaw string
		st    string
		ast   string
		und   string
	)
	err := s.withRetry("load analysis", func() error {
		return s.db.QueryRow(`
SELECT code_hash, code, symbol_table, ast_graph, undeclared, created_at_utc
FROM analysis_records WHERE code_hash = ?`, codeHash).
			Scan(&rec.CodeHash, &rec.Code, &st, &ast, &und, &tsRaw)
	})
	if err != nil {
		return AnalysisRecord{}, err
	}
	rec.SymbolTable = json.RawMessage(st)
	rec.ASTGraph = json.RawMessage(ast)
	rec.Undeclared = json.RawMessage(und)
	rec.CreatedAt = parseTimestamp(tsRaw)
	return rec, nil
}

// AnnotationRecord caches an annotation result. Results produced with
// oracle assistance are cached separately from pure-inference results.
type AnnotationRecord struct {
	CodeHash      string          `json:"code_hash"`
	UsedOracle    bool            `json:"used_oracle"`
	AnnotatedCode string          `json:"annotated_code"`
	TypeInfo      json.RawMessage `json:"type_info"`
	Count         int             `json:"annotations_count"`
	CreatedAt     time.Time       `json:"created_at"`
}

func (s *Store) SaveAnnotation(rec AnnotationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.CodeHash == "" {
		return fmt.Errorf("annotation record needs a code hash")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	query := `
INSERT INTO annotation_cache (code_hash, use_llm, annotated_code, type_info, annotations_count, created_at_utc)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(code_hash, use_llm) DO UPDATE SET
  annotated_code=excluded.annotated_code,
  type_info=excluded.type_info,
  annotations_count=excluded.annotations_count,
  created_at_utc=excluded.created_at_utc
`
	return s.withRetry("save annotation", func() error {
		_, err := s.db.Exec(
			query,
			rec.CodeHash,
			boolToInt(rec.UsedOracle),
			rec.AnnotatedCode,
			rawOr(rec.TypeInfo, "{}"),
			rec.Count,
			rec.CreatedAt.UTC().Format(time.RFC3339Nano),
		)
		return err
	})
}

func (s *Store) GetAnnotation(codeHash string, usedOracle bool) (AnnotationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		rec     AnnotationRecord
		tsRaw   string
		ti      string
		llmFlag int
	)
	err := s.withRetry("load annotation", func() error {
		return s.db.QueryRow(`
SELECT code_hash, use_llm, annotated_code, type_info, annotations_count, created_at_utc
FROM annotation_cache WHERE code_hash = ? AND use_llm = ?`, codeHash, boolToInt(usedOracle)).
			Scan(&rec.CodeHash, &llmFlag, &rec.AnnotatedCode, &ti, &rec.Count, &tsRaw)
	})
	if err != nil {
		return AnnotationRecord{}, err
	}
	rec.UsedOracle = llmFlag != 0
	rec.TypeInfo = json.RawMessage(ti)
	rec.CreatedAt = parseTimestamp(tsRaw)
	return rec, nil
}

// Pattern is a structural code pattern remembered across analyses.
// Saving an existing pattern bumps its usage count and confidence.
type Pattern struct {
	Pattern    string    `json:"pattern"`
	Type       string    `json:"pattern_type"`
	UsageCount int       `json:"usage_count"`
	Confidence float64   `json:"confidence"`
	LastUsed   time.Time `json:"last_used"`
}

func (s *Store) SavePattern(pattern, patternType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return fmt.Errorf("pattern must not be empty")
	}

	// Confidence starts at 0.5 and grows with reuse, capped at 1.0.
	query := `
INSERT INTO memory_store (pattern, pattern_type, usage_count, confidence, last_used_utc)
VALUES (?, ?, 1, 0.5, ?)
ON CONFLICT(pattern) DO UPDATE SET
  usage_count=usage_count+1,
  confidence=MIN(1.0, confidence+0.05),
  last_used_utc=excluded.last_used_utc
`
	return s.withRetry("save pattern", func() error {
		_, err := s.db.Exec(query, pattern, patternType, time.Now().UTC().Format(time.RFC3339Nano))
		return err
	})
}

func (s *Store) Patterns(limit int) ([]Pattern, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 100
	}

	var rows *sql.Rows
	err := s.withRetry("load patterns", func() error {
		var qErr error
		rows, qErr = s.db.Query(`
SELECT pattern, pattern_type, usage_count, confidence, last_used_utc
FROM memory_store ORDER BY usage_count DESC, pattern ASC LIMIT ?`, limit)
		return qErr
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	patterns := make([]Pattern, 0)
	for rows.Next() {
		var (
			p     Pattern
			tsRaw string
		)
		if err := rows.Scan(&p.Pattern, &p.Type, &p.UsageCount, &p.Confidence, &tsRaw); err != nil {
			return nil, fmt.Errorf("scan pattern row: %w", err)
		}
		p.LastUsed = parseTimestamp(tsRaw)
		patterns = append(patterns, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pattern rows: %w", err)
	}
	return patterns, nil
}

// InferenceEntry is one inferred variable type, kept for history queries.
type InferenceEntry struct {
	CodeHash  string    `json:"code_hash"`
	Variable  string    `json:"variable_name"`
	Type      string    `json:"inferred_type"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Store) SaveInference(entry InferenceEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if entry.Source == "" {
		entry.Source = "inferred"
	}

	return s.withRetry("save inference", func() error {
		_, err := s.db.Exec(`
INSERT INTO inference_history (code_hash, variable_name, inferred_type, source, created_at_utc)
VALUES (?, ?, ?, ?, ?)`,
			entry.CodeHash, entry.Variable, entry.Type, entry.Source,
			entry.CreatedAt.UTC().Format(time.RFC3339Nano))
		return err
	})
}

func (s *Store) History(codeHash string, limit int) ([]InferenceEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 200
	}

	base := `
SELECT code_hash, variable_name, inferred_type, source, created_at_utc
FROM inference_history`
	args := make([]any, 0, 2)
	if codeHash != "" {
		base += " WHERE code_hash = ?"
		args = append(args, codeHash)
	}
	base += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	var rows *sql.Rows
	err := s.withRetry("load inference history", func() error {
		var qErr error
		rows, qErr = s.db.Query(base, args...)
		return qErr
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]InferenceEntry, 0)
	for rows.Next() {
		var (
			e     InferenceEntry
			tsRaw string
		)
		if err := rows.Scan(&e.CodeHash, &e.Variable, &e.Type, &e.Source, &tsRaw); err != nil {
			return nil, fmt.Errorf("scan inference row: %w", err)
		}
		e.CreatedAt = parseTimestamp(tsRaw)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate inference rows: %w", err)
	}
	return entries, nil
}

// Stats summarizes cache occupancy for the cache-stats endpoint.
type Stats struct {
	AnalysisRecords   int `json:"analysis_records"`
	AnnotationRecords int `json:"annotation_records"`
	Patterns          int `json:"patterns"`
	InferenceEntries  int `json:"inference_entries"`
}

func (s *Store) CacheStats() (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stats Stats
	counts := []struct {
		query string
		dest  *int
	}{
		{`SELECT COUNT(*) FROM analysis_records`, &stats.AnalysisRecords},
		{`SELECT COUNT(*) FROM annotation_cache`, &stats.AnnotationRecords},
		{`SELECT COUNT(*) FROM memory_store`, &stats.Patterns},
		{`SELECT COUNT(*) FROM inference_history`, &stats.InferenceEntries},
	}
	for _, c := range counts {
		err := s.withRetry("count rows", func() error {
			return s.db.QueryRow(c.query).Scan(c.dest)
		})
		if err != nil {
			return Stats{}, err
		}
	}
	return stats, nil
}

// MemoryStats summarizes the pattern memory for the statistics endpoint.
type MemoryStats struct {
	Patterns         int            `json:"patterns"`
	InferenceEntries int            `json:"inference_entries"`
	TypeCounts       map[string]int `json:"type_counts"`
	AvgConfidence    float64        `json:"avg_confidence"`
}

func (s *Store) MemoryStatistics() (MemoryStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := MemoryStats{TypeCounts: map[string]int{}}

	err := s.withRetry("memory statistics", func() error {
		if err := s.db.QueryRow(
			`SELECT COUNT(*), COALESCE(AVG(confidence), 0) FROM memory_store`,
		).Scan(&stats.Patterns, &stats.AvgConfidence); err != nil {
			return err
		}
		if err := s.db.QueryRow(
			`SELECT COUNT(*) FROM inference_history`,
		).Scan(&stats.InferenceEntries); err != nil {
			return err
		}

		rows, err := s.db.Query(
			`SELECT pattern_type, COUNT(*) FROM memory_store GROUP BY pattern_type`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var (
				kind  string
				count int
			)
			if err := rows.Scan(&kind, &count); err != nil {
				return err
			}
			stats.TypeCounts[kind] = count
		}
		return rows.Err()
	})
	if err != nil {
		return MemoryStats{}, err
	}
	return stats, nil
}

// ClearCache drops all cached analyses and annotations. Patterns and
// inference history survive; they are memory, not cache.
func (s *Store) ClearCache() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withRetry("clear cache", func() error {
		if _, err := s.db.Exec(`DELETE FROM analysis_records`); err != nil {
			return err
		}
		_, err := s.db.Exec(`DELETE FROM annotation_cache`)
		return err
	})
}

// ClearEntry removes the cached analysis and annotations for one hash.
func (s *Store) ClearEntry(codeHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withRetry("clear cache entry", func() error {
		if _, err := s.db.Exec(`DELETE FROM analysis_records WHERE code_hash = ?`, codeHash); err != nil {
			return err
		}
		_, err := s.db.Exec(`DELETE FROM annotation_cache WHERE code_hash = ?`, codeHash)
		return err
	})
}

func (s *Store) withRetry(op string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !isLockError(err) || attempt == maxAttempts {
			break
		}
		time.Sleep(time.Duration(attempt*25) * time.Millisecond)
	}
	return fmt.Errorf("%s: %w", op, lastErr)
}

func isLockError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "busy")
}

func rawOr(raw json.RawMessage, fallback string) string {
	if len(raw) == 0 {
		return fallback
	}
	return string(raw)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func parseTimestamp(raw string) time.Time {
	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return ts.UTC()
}
