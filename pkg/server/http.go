// Package server provides the HTTP API for analysing source and browsing
// stored findings.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/jestersw/codeparser/internal/version"
	"github.com/jestersw/codeparser/pkg/code"
	"github.com/jestersw/codeparser/pkg/engine"
	"github.com/jestersw/codeparser/pkg/findings"
	"github.com/jestersw/codeparser/pkg/rules"
	"github.com/jestersw/codeparser/pkg/store"
)

// MaxRequestBodySize limits request body size to 1MB.
const MaxRequestBodySize = 1 << 20

const shutdownTimeout = 5 * time.Second

// Server provides the HTTP API. The store may be nil, in which case the
// findings endpoints answer 503.
type Server struct {
	engine *engine.Engine
	store  store.FindingsStore
	addr   string
	mux    *http.ServeMux
	log    *zap.Logger
}

// NewServer creates a new HTTP server.
func NewServer(eng *engine.Engine, st store.FindingsStore, addr string, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		engine: eng,
		store:  st,
		addr:   addr,
		mux:    http.NewServeMux(),
		log:    log,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/analyze", s.handleAnalyze)

	s.mux.HandleFunc("/api/findings", s.handleFindings)
	s.mux.HandleFunc("/api/findings/search", s.handleSearch)
	s.mux.HandleFunc("/api/findings/stats", s.handleStats)

	s.mux.HandleFunc("/api/rules", s.handleRules)
	s.mux.HandleFunc("/api/languages", s.handleLanguages)

	s.mux.HandleFunc("/health", s.handleHealth)
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:      s.mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	s.log.Info("listening", zap.String("addr", ln.Addr().String()))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) jsonResponse(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Warn("failed to encode response", zap.Error(err))
	}
}

func (s *Server) errorResponse(w http.ResponseWriter, message string, status int) {
	s.jsonResponse(w, map[string]string{"error": message}, status)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, map[string]string{"status": "ok", "version": version.Short()}, http.StatusOK)
}

// AnalyzeRequest is the body of POST /api/analyze.
type AnalyzeRequest struct {
	Language string `json:"language"`
	Source   string `json:"source"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.errorResponse(w, "request too large", http.StatusRequestEntityTooLarge)
			return
		}
		s.errorResponse(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Language == "" {
		s.errorResponse(w, "language required", http.StatusBadRequest)
		return
	}

	report, err := s.engine.Analyze(r.Context(), req.Language, []byte(req.Source))
	if err != nil {
		var unsupported *engine.UnsupportedLanguageError
		var parseErr *code.ParseError
		switch {
		case errors.As(err, &unsupported):
			s.jsonResponse(w, map[string]interface{}{
				"error":       err.Error(),
				"suggestions": unsupported.Suggestions,
			}, http.StatusBadRequest)
		case errors.As(err, &parseErr):
			s.errorResponse(w, err.Error(), http.StatusUnprocessableEntity)
		default:
			s.errorResponse(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}
	s.jsonResponse(w, report, http.StatusOK)
}

func searchOptions(r *http.Request) (findings.SearchOptions, error) {
	q := r.URL.Query()
	opts := findings.SearchOptions{
		Analyzer: q.Get("analyzer"),
		Severity: q.Get("severity"),
		Category: q.Get("category"),
		FilePath: q.Get("file"),
		Language: q.Get("lang"),
	}
	if l := q.Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil {
			return opts, errors.New("limit must be an integer")
		}
		opts.Limit = n
	}
	return opts, nil
}

func (s *Server) findingsRequest(w http.ResponseWriter, r *http.Request) (findings.SearchOptions, bool) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return findings.SearchOptions{}, false
	}
	if s.store == nil {
		s.errorResponse(w, "no findings store", http.StatusServiceUnavailable)
		return findings.SearchOptions{}, false
	}
	opts, err := searchOptions(r)
	if err != nil {
		s.errorResponse(w, err.Error(), http.StatusBadRequest)
		return opts, false
	}
	return opts, true
}

func (s *Server) handleFindings(w http.ResponseWriter, r *http.Request) {
	opts, ok := s.findingsRequest(w, r)
	if !ok {
		return
	}
	list, err := s.store.ListFindings(opts)
	if err != nil {
		s.errorResponse(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []*findings.Finding{}
	}
	s.jsonResponse(w, list, http.StatusOK)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	opts, ok := s.findingsRequest(w, r)
	if !ok {
		return
	}
	query := r.URL.Query().Get("q")
	if query == "" {
		s.errorResponse(w, "query parameter 'q' required", http.StatusBadRequest)
		return
	}

	results, err := s.store.SearchFindings(query, opts)
	if err != nil {
		s.errorResponse(w, err.Error(), http.StatusInternalServerError)
		return
	}
	type hit struct {
		*findings.Finding
		Score float64 `json:"score"`
	}
	hits := make([]hit, 0, len(results))
	for _, res := range results {
		hits = append(hits, hit{Finding: res.Finding, Score: res.Score})
	}
	s.jsonResponse(w, hits, http.StatusOK)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	opts, ok := s.findingsRequest(w, r)
	if !ok {
		return
	}
	stats, err := s.store.Stats(opts)
	if err != nil {
		s.errorResponse(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.jsonResponse(w, stats, http.StatusOK)
}

// LanguageRules lists the compiled rules of one language in evaluation order.
type LanguageRules struct {
	Language string       `json:"language"`
	Rules    []rules.Spec `json:"rules"`
}

func (s *Server) handleRules(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var names []string
	if lang := r.URL.Query().Get("language"); lang != "" {
		name, err := s.engine.Resolve(lang)
		if err != nil {
			s.errorResponse(w, err.Error(), http.StatusBadRequest)
			return
		}
		names = []string{name}
	} else {
		for _, l := range s.engine.Languages() {
			names = append(names, l.Name)
		}
	}

	out := make([]LanguageRules, 0, len(names))
	for _, name := range names {
		catalog, err := s.engine.Catalog(name)
		if err != nil {
			s.errorResponse(w, err.Error(), http.StatusInternalServerError)
			return
		}
		lr := LanguageRules{Language: name}
		for _, rule := range catalog.Rules() {
			lr.Rules = append(lr.Rules, rule.Spec())
		}
		out = append(out, lr)
	}
	s.jsonResponse(w, out, http.StatusOK)
}

func (s *Server) handleLanguages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.jsonResponse(w, s.engine.Languages(), http.StatusOK)
}
