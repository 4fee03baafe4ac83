package store

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	_, err := Open("  ")
	assert.Error(t, err)
}

func TestOpenRejectsDirectory(t *testing.T) {
	_, err := Open(t.TempDir())
	assert.Error(t, err)
}

func TestOpenCreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deep", "test.db")
	s, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, path, s.Path())
	require.NoError(t, s.Close())
}

func TestAnalysisRoundTrip(t *testing.T) {
	s := openTestStore(t)

	rec := AnalysisRecord{
		CodeHash:    "abc123",
		Code:        "x = 1",
		SymbolTable: json.RawMessage(`{"variables":{"x":{}}}`),
		ASTGraph:    json.RawMessage(`{"nodes":[]}`),
		Undeclared:  json.RawMessage(`[]`),
	}
	require.NoError(t, s.SaveAnalysis(rec))

	got, err := s.GetAnalysis("abc123")
	require.NoError(t, err)
	assert.Equal(t, "x = 1", got.Code)
	assert.JSONEq(t, `{"variables":{"x":{}}}`, string(got.SymbolTable))
	assert.False(t, got.CreatedAt.IsZero())
}

func TestAnalysisUpsert(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.SaveAnalysis(AnalysisRecord{CodeHash: "h", Code: "old"}))
	require.NoError(t, s.SaveAnalysis(AnalysisRecord{CodeHash: "h", Code: "new"}))

	got, err := s.GetAnalysis("h")
	require.NoError(t, err)
	assert.Equal(t, "new", got.Code)

	stats, err := s.CacheStats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.AnalysisRecords)
}

func TestAnalysisMissIsNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetAnalysis("nope")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestAnalysisRequiresHash(t *testing.T) {
	s := openTestStore(t)
	assert.Error(t, s.SaveAnalysis(AnalysisRecord{Code: "x = 1"}))
}

func TestAnnotationKeyedByOracleFlag(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.SaveAnnotation(AnnotationRecord{
		CodeHash: "h", UsedOracle: false, AnnotatedCode: "static", Count: 1,
	}))
	require.NoError(t, s.SaveAnnotation(AnnotationRecord{
		CodeHash: "h", UsedOracle: true, AnnotatedCode: "assisted", Count: 2,
	}))

	static, err := s.GetAnnotation("h", false)
	require.NoError(t, err)
	assert.Equal(t, "static", static.AnnotatedCode)
	assert.False(t, static.UsedOracle)

	assisted, err := s.GetAnnotation("h", true)
	require.NoError(t, err)
	assert.Equal(t, "assisted", assisted.AnnotatedCode)
	assert.True(t, assisted.UsedOracle)
	assert.Equal(t, 2, assisted.Count)
}

func TestPatternUsageCountIncrements(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.SavePattern("assignment_x_1", "assignment"))
	require.NoError(t, s.SavePattern("assignment_x_1", "assignment"))
	require.NoError(t, s.SavePattern("control_flow_if", "control_flow"))

	patterns, err := s.Patterns(0)
	require.NoError(t, err)
	require.Len(t, patterns, 2)

	// Ordered by usage count, highest first.
	assert.Equal(t, "assignment_x_1", patterns[0].Pattern)
	assert.Equal(t, 2, patterns[0].UsageCount)
	assert.Equal(t, 1, patterns[1].UsageCount)

	// Confidence grows with reuse from the 0.5 baseline.
	assert.InDelta(t, 0.55, patterns[0].Confidence, 0.001)
	assert.InDelta(t, 0.5, patterns[1].Confidence, 0.001)
}

func TestPatternConfidenceCapped(t *testing.T) {
	s := openTestStore(t)

	for i := 0; i < 15; i++ {
		require.NoError(t, s.SavePattern("function_call_print", "call"))
	}

	patterns, err := s.Patterns(0)
	require.NoError(t, err)
	require.Len(t, patterns, 1)
	assert.Equal(t, 15, patterns[0].UsageCount)
	assert.InDelta(t, 1.0, patterns[0].Confidence, 0.001)
}

func TestMemoryStatistics(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.SavePattern("assignment_x_1", "assignment"))
	require.NoError(t, s.SavePattern("assignment_y_2", "assignment"))
	require.NoError(t, s.SavePattern("control_flow_for", "control_flow"))
	require.NoError(t, s.SaveInference(InferenceEntry{CodeHash: "h", Variable: "x", Type: "int"}))

	stats, err := s.MemoryStatistics()
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Patterns)
	assert.Equal(t, 1, stats.InferenceEntries)
	assert.Equal(t, 2, stats.TypeCounts["assignment"])
	assert.Equal(t, 1, stats.TypeCounts["control_flow"])
	assert.InDelta(t, 0.5, stats.AvgConfidence, 0.001)
}

func TestPatternRejectsEmpty(t *testing.T) {
	s := openTestStore(t)
	assert.Error(t, s.SavePattern("   ", "assignment"))
}

func TestInferenceHistory(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.SaveInference(InferenceEntry{CodeHash: "h1", Variable: "x", Type: "int"}))
	require.NoError(t, s.SaveInference(InferenceEntry{CodeHash: "h1", Variable: "y", Type: "str", Source: "annotation"}))
	require.NoError(t, s.SaveInference(InferenceEntry{CodeHash: "h2", Variable: "z", Type: "bool"}))

	entries, err := s.History("h1", 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	// Newest first.
	assert.Equal(t, "y", entries[0].Variable)
	assert.Equal(t, "annotation", entries[0].Source)
	assert.Equal(t, "inferred", entries[1].Source)

	all, err := s.History("", 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	limited, err := s.History("", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestClearCachePreservesMemory(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.SaveAnalysis(AnalysisRecord{CodeHash: "h", Code: "x"}))
	require.NoError(t, s.SaveAnnotation(AnnotationRecord{CodeHash: "h", AnnotatedCode: "x"}))
	require.NoError(t, s.SavePattern("p", "assignment"))
	require.NoError(t, s.SaveInference(InferenceEntry{CodeHash: "h", Variable: "x", Type: "int"}))

	require.NoError(t, s.ClearCache())

	stats, err := s.CacheStats()
	require.NoError(t, err)
	assert.Equal(t, 0, stats.AnalysisRecords)
	assert.Equal(t, 0, stats.AnnotationRecords)
	assert.Equal(t, 1, stats.Patterns)
	assert.Equal(t, 1, stats.InferenceEntries)
}

func TestClearEntry(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.SaveAnalysis(AnalysisRecord{CodeHash: "keep", Code: "a"}))
	require.NoError(t, s.SaveAnalysis(AnalysisRecord{CodeHash: "drop", Code: "b"}))
	require.NoError(t, s.SaveAnnotation(AnnotationRecord{CodeHash: "drop", AnnotatedCode: "b"}))

	require.NoError(t, s.ClearEntry("drop"))

	_, err := s.GetAnalysis("drop")
	assert.True(t, errors.Is(err, ErrNotFound))
	_, err = s.GetAnalysis("keep")
	assert.NoError(t, err)
	_, err = s.GetAnnotation("drop", false)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSchemaReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.SaveAnalysis(AnalysisRecord{CodeHash: "h", Code: "x"}))
	require.NoError(t, s.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	got, err := s2.GetAnalysis("h")
	require.NoError(t, err)
	assert.Equal(t, "x", got.Code)
}
