// Package server exposes the read API and manual triggers over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"dealwatch/config"
	"dealwatch/services"
	"dealwatch/storage"
)

type Server struct {
	cfg      *config.Config
	query    *services.QueryService
	pipeline *services.Pipeline
	market   *services.MarketEngine
	store    storage.Store
	http     *http.Server
}

func New(cfg *config.Config, query *services.QueryService, pipeline *services.Pipeline, market *services.MarketEngine, store storage.Store) *Server {
	s := &Server{
		cfg:      cfg,
		query:    query,
		pipeline: pipeline,
		market:   market,
		store:    store,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/listings", s.handleListings)
	mux.HandleFunc("GET /api/aggregates", s.handleAggregates)
	mux.HandleFunc("GET /api/classify", s.handleClassify)
	mux.HandleFunc("GET /api/runs", s.handleRuns)
	mux.HandleFunc("POST /api/scrape", s.handleScrape)
	mux.HandleFunc("GET /api/update-market-analysis", s.handleUpdateMarketAnalysis)
	mux.HandleFunc("GET /status", s.handleStatus)

	s.http = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) Start() {
	go func() {
		log.Printf("HTTP API listening on %s", s.cfg.ListenAddr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("HTTP server error: %v", err)
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) handleListings(w http.ResponseWriter, r *http.Request) {
	page := 1
	if p := r.URL.Query().Get("page"); p != "" {
		if n, err := strconv.Atoi(p); err == nil && n > 0 {
			page = n
		}
	}

	result, err := s.query.GetPage(r.Context(), page)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleAggregates(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	views, err := s.query.GetAggregates(r.Context(), q.Get("make"), q.Get("model"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	if url == "" {
		writeError(w, http.StatusBadRequest, errors.New("url parameter required"))
		return
	}

	deal, err := s.query.ClassifyURL(r.Context(), url)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url, "deal": string(deal)})
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.store.RecentRuns(r.Context(), 20)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

// handleScrape triggers one ingest cycle in the background. Overlapping
// triggers are dropped by the pipeline itself.
func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request) {
	go func() {
		if _, err := s.pipeline.Run(context.Background()); err != nil &&
			!errors.Is(err, services.ErrRunInProgress) {
			log.Printf("API-triggered ingest failed: %v", err)
		}
	}()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "triggered"})
}

// handleUpdateMarketAnalysis recomputes aggregates inline. Errors report
// success=false with a 200 so callers keep working off cached data.
func (s *Server) handleUpdateMarketAnalysis(w http.ResponseWriter, r *http.Request) {
	n, err := s.market.Recompute(r.Context())
	if err != nil {
		log.Printf("Market analysis update failed: %v", err)
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "aggregates": n})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	searches := make([]string, 0, len(s.cfg.Searches))
	for id := range s.cfg.Searches {
		searches = append(searches, id)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "running",
		"searches":        searches,
		"filter_keywords": s.cfg.FilterKeywords,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
