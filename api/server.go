package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"traktfm/internal/database"
	"traktfm/models"
	"traktfm/utils"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

type historyStore interface {
	Count(ctx context.Context, username string) (models.ScrobbleCounts, error)
	ListMovies(ctx context.Context, username string, limit int) ([]models.WatchedItem, error)
	ListEpisodes(ctx context.Context, username string, limit int) ([]models.WatchedItem, error)
}

var _ historyStore = (*database.HistoryRepository)(nil)

// Server exposes health, metrics and read-only views of the scrobble store.
type Server struct {
	store   historyStore
	limiter *KeyedRateLimiter
	checks  map[string]utils.HealthCheck
}

// NewServer builds the ops server. limiter may be nil to disable rate limiting.
func NewServer(store historyStore, limiter *KeyedRateLimiter, checks map[string]utils.HealthCheck) *Server {
	return &Server{store: store, limiter: limiter, checks: checks}
}

// Routes returns the router for the ops listener.
func (s *Server) Routes() *mux.Router {
	r := utils.NewRouter(s.checks)
	r.Use(RecoverMiddleware(), LoggingMiddleware())

	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	apiRouter := r.PathPrefix("/api").Subrouter()
	if s.limiter != nil {
		apiRouter.Use(RateLimitMiddleware(s.limiter))
	}
	apiRouter.HandleFunc("/users/{username}/counts", s.handleCounts).Methods(http.MethodGet)
	apiRouter.HandleFunc("/users/{username}/history", s.handleHistory).Methods(http.MethodGet)
	return r
}

type countsResponse struct {
	Username string `json:"username"`
	Movies   int    `json:"movies"`
	Shows    int    `json:"shows"`
	Total    int    `json:"total"`
}

func (s *Server) handleCounts(w http.ResponseWriter, r *http.Request) {
	username := mux.Vars(r)["username"]
	counts, err := s.store.Count(r.Context(), username)
	if err != nil {
		log.Printf("[api] count scrobbles for %s: %v", username, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "count failed"})
		return
	}
	writeJSON(w, http.StatusOK, countsResponse{
		Username: username,
		Movies:   counts.Movies,
		Shows:    counts.Shows,
		Total:    counts.Total(),
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	username := mux.Vars(r)["username"]
	query := r.URL.Query()

	limit := defaultHistoryLimit
	if raw := query.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	var (
		items []models.WatchedItem
		err   error
	)
	switch kind := query.Get("kind"); kind {
	case "", "movies":
		items, err = s.store.ListMovies(r.Context(), username, limit)
	case "episodes", "shows":
		items, err = s.store.ListEpisodes(r.Context(), username, limit)
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "kind must be movies or episodes"})
		return
	}
	if err != nil {
		log.Printf("[api] list history for %s: %v", username, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "list failed"})
		return
	}
	if items == nil {
		items = []models.WatchedItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

// Serve runs handler on addr until ctx is cancelled, then shuts down gracefully.
func Serve(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[api] ops server listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}
