// Package server exposes the recommendation pipeline over HTTP: REST
// endpoints for one-shot search, filter enumeration, feedback and failure
// reporting, plus a WebSocket chat endpoint that streams responses.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/campusrag/advisor/internal/attemptlog"
	"github.com/campusrag/advisor/internal/catalog"
	"github.com/campusrag/advisor/internal/filter"
	"github.com/campusrag/advisor/internal/report"
	"github.com/campusrag/advisor/internal/session"
)

// Config holds server configuration.
type Config struct {
	Port     int
	AllowAll bool // allow all CORS origins (dev mode)
}

// Server is the HTTP front end over the advisor engine.
type Server struct {
	cfg        Config
	engine     *session.Engine
	meta       *catalog.Metadata
	store      *attemptlog.Store
	router     chi.Router
	httpServer *http.Server
}

// New creates a server over a ready engine.
func New(cfg Config, engine *session.Engine, meta *catalog.Metadata, store *attemptlog.Store) *Server {
	s := &Server{
		cfg:    cfg,
		engine: engine,
		meta:   meta,
		store:  store,
	}
	s.router = s.buildRouter()
	return s
}

// buildRouter creates and configures the chi router with all routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS
	corsOpts := cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	if s.cfg.AllowAll {
		corsOpts.AllowedOrigins = []string{"*"}
	}
	r.Use(cors.Handler(corsOpts))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/filters", s.handleFilters)
		r.Post("/search", s.handleSearch)
		r.Post("/feedback", s.handleFeedback)
		r.Get("/report", s.handleReport)
	})

	r.Get("/ws/chat", s.handleChat)

	return r
}

// Router returns the chi router, mainly for tests.
func (s *Server) Router() chi.Router { return s.router }

// Start begins listening on the configured port.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("advisor server listening on %s", addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

type searchRequest struct {
	Query   string            `json:"query"`
	Filters filter.Predicates `json:"filters"`
	K       int               `json:"k"`
}

type searchMatch struct {
	ID    string  `json:"id"`
	Code  string  `json:"code"`
	Score float32 `json:"score"`
	Text  string  `json:"text,omitempty"`
}

type searchResponse struct {
	Matches []searchMatch `json:"matches"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	matches, err := s.engine.Retrieve(r.Context(), req.Query, req.Filters, req.K)
	switch {
	case errors.Is(err, session.ErrNoCoursesMatch):
		writeJSON(w, http.StatusOK, searchResponse{Matches: []searchMatch{}})
		return
	case errors.Is(err, session.ErrEmptyMessage):
		writeError(w, http.StatusBadRequest, "query is required")
		return
	case err != nil:
		log.Printf("server: search: %v", err)
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}

	resp := searchResponse{Matches: make([]searchMatch, 0, len(matches))}
	for _, m := range matches {
		resp.Matches = append(resp.Matches, searchMatch{
			ID:    m.Doc.ID,
			Code:  m.Doc.Code,
			Score: m.Score,
			Text:  m.Doc.Text,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleFilters(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.meta.DistinctFilterValues())
}

type feedbackRequest struct {
	Query         string            `json:"query"`
	Filters       filter.Predicates `json:"filters"`
	ContextIDs    []string          `json:"context_ids"`
	ContextCodes  []string          `json:"context_codes"`
	Response      string            `json:"response"`
	Rating        string            `json:"rating"`
	ErrorCategory string            `json:"error_category"`
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Rating == "" {
		writeError(w, http.StatusBadRequest, "rating is required")
		return
	}

	err := s.store.LogFeedback(r.Context(), attemptlog.Feedback{
		Query:         req.Query,
		Filters:       req.Filters.String(),
		ContextIDs:    req.ContextIDs,
		ContextCodes:  req.ContextCodes,
		Response:      req.Response,
		Rating:        req.Rating,
		ErrorCategory: req.ErrorCategory,
	})
	if err != nil {
		log.Printf("server: feedback: %v", err)
		writeError(w, http.StatusInternalServerError, "saving feedback failed")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "saved"})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	gen := report.NewGenerator(s.store, "")
	summary, err := gen.Build(r.Context())
	if err != nil {
		log.Printf("server: report: %v", err)
		writeError(w, http.StatusInternalServerError, "building report failed")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("server: encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
