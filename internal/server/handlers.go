package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"typesage/internal/analysis"
	"typesage/internal/annotate"
	"typesage/internal/infer"
	"typesage/internal/observability"
	"typesage/internal/store"
	"typesage/internal/symbols"
	"typesage/internal/viz"
)

type analyzeRequest struct {
	Code         string `json:"code"`
	UseCache     *bool  `json:"use_cache,omitempty"`
	SaveToMemory bool   `json:"save_to_memory,omitempty"`
}

type analyzeResponse struct {
	Success     bool                 `json:"success"`
	CodeHash    string               `json:"code_hash"`
	Cached      bool                 `json:"cached"`
	SymbolTable json.RawMessage      `json:"symbol_table,omitempty"`
	Undeclared  []symbols.Undeclared `json:"undeclared_variables"`
	Error       string               `json:"error,omitempty"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Code == "" {
		writeError(w, http.StatusBadRequest, "code must not be empty")
		return
	}

	ctx, span := observability.Tracer.Start(r.Context(), "server.Analyze",
		trace.WithAttributes(attribute.Int("code.bytes", len(req.Code))))
	defer span.End()

	hash := analysis.Hash(req.Code)
	useCache := req.UseCache == nil || *req.UseCache

	if useCache {
		if rec, err := s.store.GetAnalysis(hash); err == nil {
			observability.CacheHitsTotal.WithLabelValues("analysis").Inc()

			und := make([]symbols.Undeclared, 0)
			_ = json.Unmarshal(rec.Undeclared, &und)
			writeJSON(w, http.StatusOK, analyzeResponse{
				Success:     true,
				CodeHash:    hash,
				Cached:      true,
				SymbolTable: rec.SymbolTable,
				Undeclared:  und,
			})
			return
		}
		observability.CacheMissesTotal.WithLabelValues("analysis").Inc()
	}

	start := time.Now()
	result := s.analyzer.Analyze(req.Code)
	observability.AnalysisDuration.WithLabelValues("analyze").Observe(time.Since(start).Seconds())

	if !result.Success {
		observability.AnalysisTotal.WithLabelValues("error").Inc()
		writeJSON(w, http.StatusOK, analyzeResponse{
			Success:  false,
			CodeHash: hash,
			Error:    result.Error,
		})
		return
	}
	observability.AnalysisTotal.WithLabelValues("success").Inc()
	observability.UndeclaredFound.Add(float64(len(result.Undeclared)))

	tableJSON, err := json.Marshal(result.Table)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "encode symbol table: "+err.Error())
		return
	}
	astJSON, _ := json.Marshal(viz.BuildAST(result.Tree))
	undJSON, _ := json.Marshal(result.Undeclared)

	if err := s.store.SaveAnalysis(store.AnalysisRecord{
		CodeHash:    hash,
		Code:        req.Code,
		SymbolTable: tableJSON,
		ASTGraph:    astJSON,
		Undeclared:  undJSON,
	}); err != nil {
		slog.Warn("persist analysis failed", "hash", hash, "error", err)
	}

	s.recordInferences(hash, result.Table)
	if req.SaveToMemory {
		s.rememberPatterns(ctx, req.Code)
	}

	writeJSON(w, http.StatusOK, analyzeResponse{
		Success:     true,
		CodeHash:    hash,
		SymbolTable: tableJSON,
		Undeclared:  result.Undeclared,
	})
}

// recordInferences appends the inferred variable types of one analysis to
// the history table. Failures are logged, never surfaced.
func (s *Server) recordInferences(hash string, table *symbols.Table) {
	for name, v := range table.Variables {
		typ := string(v.Inferred)
		source := "inferred"
		if v.Annotation != "" {
			typ = v.Annotation
			source = "annotation"
		}
		if typ == "" {
			continue
		}
		err := s.store.SaveInference(store.InferenceEntry{
			CodeHash: hash,
			Variable: name,
			Type:     typ,
			Source:   source,
		})
		if err != nil {
			slog.Warn("record inference failed", "variable", name, "error", err)
			return
		}
	}
}

func (s *Server) rememberPatterns(ctx context.Context, code string) {
	_, span := observability.Tracer.Start(ctx, "server.rememberPatterns")
	defer span.End()

	for _, pattern := range analysis.ExtractPatterns(code) {
		kind := "structure"
		if len(pattern) > 11 && pattern[:11] == "assignment_" {
			kind = "assignment"
		} else if len(pattern) > 14 && pattern[:14] == "function_call_" {
			kind = "call"
		} else if len(pattern) > 13 && pattern[:13] == "control_flow_" {
			kind = "control_flow"
		}
		if err := s.store.SavePattern(pattern, kind); err != nil {
			slog.Warn("remember pattern failed", "pattern", pattern, "error", err)
			return
		}
	}
}

type annotateRequest struct {
	Code     string `json:"code"`
	UseLLM   bool   `json:"use_llm,omitempty"`
	UseCache *bool  `json:"use_cache,omitempty"`
}

type annotateResponse struct {
	Success       bool               `json:"success"`
	CodeHash      string             `json:"code_hash"`
	Cached        bool               `json:"cached"`
	OriginalCode  string             `json:"original_code,omitempty"`
	AnnotatedCode string             `json:"annotated_code,omitempty"`
	TypeInfo      *annotate.TypeInfo `json:"type_info,omitempty"`
	Count         int                `json:"annotations_count"`
	Error         string             `json:"error,omitempty"`
}

func (s *Server) handleAnnotate(w http.ResponseWriter, r *http.Request) {
	var req annotateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Code == "" {
		writeError(w, http.StatusBadRequest, "code must not be empty")
		return
	}

	ctx, span := observability.Tracer.Start(r.Context(), "server.Annotate",
		trace.WithAttributes(attribute.Bool("oracle", req.UseLLM)))
	defer span.End()

	hash := analysis.Hash(req.Code)
	useCache := req.UseCache == nil || *req.UseCache
	useOracle := req.UseLLM && s.oracle != nil

	if useCache {
		if rec, err := s.store.GetAnnotation(hash, useOracle); err == nil {
			observability.CacheHitsTotal.WithLabelValues("annotation").Inc()

			var info annotate.TypeInfo
			_ = json.Unmarshal(rec.TypeInfo, &info)
			writeJSON(w, http.StatusOK, annotateResponse{
				Success:       true,
				CodeHash:      hash,
				Cached:        true,
				OriginalCode:  req.Code,
				AnnotatedCode: rec.AnnotatedCode,
				TypeInfo:      &info,
				Count:         rec.Count,
			})
			return
		}
		observability.CacheMissesTotal.WithLabelValues("annotation").Inc()
	}

	var sugg *annotate.Suggestions
	if useOracle {
		sugg = s.oracleSuggestions(ctx, req.Code)
	}

	start := time.Now()
	result := s.analyzer.Annotate(req.Code, sugg)
	observability.AnalysisDuration.WithLabelValues("annotate").Observe(time.Since(start).Seconds())

	if !result.Success {
		observability.AnalysisTotal.WithLabelValues("error").Inc()
		writeJSON(w, http.StatusOK, annotateResponse{
			Success:  false,
			CodeHash: hash,
			Error:    result.Error,
		})
		return
	}
	observability.AnalysisTotal.WithLabelValues("success").Inc()
	observability.AnnotationsApplied.Add(float64(result.Count))

	infoJSON, _ := json.Marshal(result.TypeInfo)
	if err := s.store.SaveAnnotation(store.AnnotationRecord{
		CodeHash:      hash,
		UsedOracle:    useOracle,
		AnnotatedCode: result.AnnotatedCode,
		TypeInfo:      infoJSON,
		Count:         result.Count,
	}); err != nil {
		slog.Warn("persist annotation failed", "hash", hash, "error", err)
	}

	writeJSON(w, http.StatusOK, annotateResponse{
		Success:       true,
		CodeHash:      hash,
		OriginalCode:  result.OriginalCode,
		AnnotatedCode: result.AnnotatedCode,
		TypeInfo:      result.TypeInfo,
		Count:         result.Count,
	})
}

// oracleSuggestions asks the oracle about names static inference left
// unresolved. Oracle failures degrade to no suggestions.
func (s *Server) oracleSuggestions(ctx context.Context, code string) *annotate.Suggestions {
	result := s.analyzer.Analyze(code)
	if !result.Success {
		return nil
	}

	var unresolvedVars []string
	for name, v := range result.Table.Variables {
		if v.Annotation != "" {
			continue
		}
		if v.Inferred == infer.Any || v.Inferred == "" || v.Inferred.IsDeferred() {
			unresolvedVars = append(unresolvedVars, name)
		}
	}
	sort.Strings(unresolvedVars)

	var unresolvedFuncs []string
	for name, fn := range result.Table.Functions {
		if fn.Returns == "" || len(fn.ParamAnnotations) < len(fn.Params) {
			unresolvedFuncs = append(unresolvedFuncs, name)
		}
	}
	sort.Strings(unresolvedFuncs)

	if len(unresolvedVars) == 0 && len(unresolvedFuncs) == 0 {
		return nil
	}

	sugg := &annotate.Suggestions{}
	start := time.Now()

	if len(unresolvedVars) > 0 {
		types, err := s.oracle.InferVariableTypes(ctx, code, unresolvedVars)
		if err != nil {
			observability.OracleRequestsTotal.WithLabelValues("error").Inc()
			slog.Warn("oracle variable inference failed", "error", err)
		} else {
			observability.OracleRequestsTotal.WithLabelValues("success").Inc()
			sugg.Inferences = types
		}
	}

	if len(unresolvedFuncs) > 0 {
		sigs, err := s.oracle.SuggestSignatures(ctx, code, unresolvedFuncs)
		if err != nil {
			observability.OracleRequestsTotal.WithLabelValues("error").Inc()
			slog.Warn("oracle signature suggestion failed", "error", err)
		} else {
			observability.OracleRequestsTotal.WithLabelValues("success").Inc()
			sugg.Functions = make(map[string]annotate.FunctionSuggestion, len(sigs))
			for name, sig := range sigs {
				sugg.Functions[name] = annotate.FunctionSuggestion{
					Params: sig.Params,
					Return: sig.Return,
				}
			}
		}
	}

	observability.OracleDuration.Observe(time.Since(start).Seconds())

	if sugg.Inferences == nil && sugg.Functions == nil {
		return nil
	}
	return sugg
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if s.oracle == nil {
		writeJSON(w, http.StatusOK, map[string]any{"available": false, "error": "oracle disabled"})
		return
	}
	writeJSON(w, http.StatusOK, s.oracle.CheckStatus(r.Context()))
}

func (s *Server) handleAST(w http.ResponseWriter, r *http.Request) {
	hash := r.PathValue("hash")
	rec, err := s.store.GetAnalysis(hash)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no cached analysis for hash "+hash)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	switch format := r.URL.Query().Get("format"); format {
	case "", "json":
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(rec.ASTGraph)
	case "dot", "mermaid":
		var graph viz.ASTGraph
		if err := json.Unmarshal(rec.ASTGraph, &graph); err != nil {
			writeError(w, http.StatusInternalServerError, "decode stored ast graph: "+err.Error())
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if format == "dot" {
			_, _ = io.WriteString(w, viz.RenderDOT(graph))
		} else {
			_, _ = io.WriteString(w, viz.RenderMermaid(graph))
		}
	default:
		writeError(w, http.StatusBadRequest, "unsupported format "+format)
	}
}

func (s *Server) handleSymbolTable(w http.ResponseWriter, r *http.Request) {
	hash := r.PathValue("hash")
	rec, err := s.store.GetAnalysis(hash)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no cached analysis for hash "+hash)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var table symbols.Table
	if err := json.Unmarshal(rec.SymbolTable, &table); err != nil {
		writeError(w, http.StatusInternalServerError, "decode stored symbol table: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, viz.BuildSymbols(&table))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := s.store.History(r.PathValue("hash"), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// handleMemoryHistory serves the full inference history, optionally
// filtered to one submission via ?code_hash=.
func (s *Server) handleMemoryHistory(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := s.store.History(r.URL.Query().Get("code_hash"), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (s *Server) handleMemoryStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.MemoryStatistics()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.CacheStats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	if err := s.store.ClearCache(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (s *Server) handleCacheClearEntry(w http.ResponseWriter, r *http.Request) {
	hash := r.PathValue("hash")
	if err := s.store.ClearEntry(hash); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared", "code_hash": hash})
}

func (s *Server) handlePatternsList(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	patterns, err := s.store.Patterns(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"patterns": patterns})
}

type patternRequest struct {
	Pattern string `json:"pattern"`
	Type    string `json:"pattern_type"`
}

func (s *Server) handlePatternsSave(w http.ResponseWriter, r *http.Request) {
	var req patternRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Pattern == "" {
		writeError(w, http.StatusBadRequest, "pattern must not be empty")
		return
	}
	if err := s.store.SavePattern(req.Pattern, req.Type); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}
