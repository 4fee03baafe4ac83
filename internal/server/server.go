// Package server exposes the analysis engine over HTTP.
package server

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"typesage/internal/analysis"
	"typesage/internal/oracle"
	"typesage/internal/store"
)

//go:embed openapi.yaml
var openapiSpec []byte

type Server struct {
	addr        string
	corsOrigins []string
	analyzer    *analysis.Analyzer
	store       *store.Store
	oracle      *oracle.Client
	started     time.Time
	apiDoc      []byte
	server      *http.Server
}

// New wires the HTTP surface. oracleClient may be nil; oracle-backed
// routes then degrade to pure static inference.
func New(addr string, corsOrigins []string, analyzer *analysis.Analyzer, st *store.Store, oracleClient *oracle.Client) (*Server, error) {
	apiDoc, err := loadAPIDoc()
	if err != nil {
		return nil, err
	}
	return &Server{
		addr:        addr,
		corsOrigins: corsOrigins,
		analyzer:    analyzer,
		store:       st,
		oracle:      oracleClient,
		started:     time.Now().UTC(),
		apiDoc:      apiDoc,
	}, nil
}

// loadAPIDoc validates the embedded spec at startup so a malformed
// document fails the boot instead of the first /openapi.json request.
func loadAPIDoc() ([]byte, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(openapiSpec)
	if err != nil {
		return nil, fmt.Errorf("load embedded api spec: %w", err)
	}
	if err := doc.Validate(loader.Context); err != nil {
		return nil, fmt.Errorf("validate embedded api spec: %w", err)
	}
	rendered, err := doc.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("render api spec: %w", err)
	}
	return rendered, nil
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /openapi.json", s.handleOpenAPI)

	mux.HandleFunc("POST /api/analysis/analyze", s.handleAnalyze)
	mux.HandleFunc("POST /api/analysis/annotate", s.handleAnnotate)
	mux.HandleFunc("GET /api/analysis/status", s.handleStatus)
	mux.HandleFunc("GET /api/analysis/ast/{hash}", s.handleAST)
	mux.HandleFunc("GET /api/analysis/symbol-table/{hash}", s.handleSymbolTable)
	mux.HandleFunc("GET /api/analysis/history/{hash}", s.handleHistory)
	mux.HandleFunc("GET /api/analysis/cache/stats", s.handleCacheStats)
	mux.HandleFunc("DELETE /api/analysis/cache", s.handleCacheClear)
	mux.HandleFunc("DELETE /api/analysis/cache/{hash}", s.handleCacheClearEntry)
	mux.HandleFunc("GET /api/memory/patterns", s.handlePatternsList)
	mux.HandleFunc("POST /api/memory/patterns", s.handlePatternsSave)
	mux.HandleFunc("GET /api/memory/history", s.handleMemoryHistory)
	mux.HandleFunc("GET /api/memory/statistics", s.handleMemoryStats)

	var handler http.Handler = mux
	handler = withMetrics(handler)
	handler = withLogging(handler)
	handler = withRequestID(handler)
	handler = withCORS(s.corsOrigins, handler)
	return handler
}

func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("api server starting", "addr", s.addr)

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("api server failed", "error", err)
		}
	}()

	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(s.apiDoc)
}

type healthStatus struct {
	Status  string            `json:"status"`
	Uptime  string            `json:"uptime"`
	Checks  map[string]string `json:"checks"`
	Version string            `json:"version,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := healthStatus{
		Status: "up",
		Uptime: time.Since(s.started).Round(time.Second).String(),
		Checks: map[string]string{"store": "up"},
	}
	if _, err := s.store.CacheStats(); err != nil {
		status.Status = "degraded"
		status.Checks["store"] = err.Error()
	}

	w.Header().Set("Content-Type", "application/json")
	if status.Status != "up" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(status)
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Warn("encode response failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
