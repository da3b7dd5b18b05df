package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"traktfm/models"
	"traktfm/utils"
)

type fakeStore struct {
	counts   models.ScrobbleCounts
	movies   []models.WatchedItem
	episodes []models.WatchedItem
	err      error
	limit    int
}

func (f *fakeStore) Count(context.Context, string) (models.ScrobbleCounts, error) {
	return f.counts, f.err
}

func (f *fakeStore) ListMovies(_ context.Context, _ string, limit int) ([]models.WatchedItem, error) {
	f.limit = limit
	return f.movies, f.err
}

func (f *fakeStore) ListEpisodes(_ context.Context, _ string, limit int) ([]models.WatchedItem, error) {
	f.limit = limit
	return f.episodes, f.err
}

func serve(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestCountsEndpoint(t *testing.T) {
	s := NewServer(&fakeStore{counts: models.ScrobbleCounts{Movies: 3, Shows: 7}}, nil, nil)

	rec := serve(t, s, "/api/users/alice/counts")
	require.Equal(t, http.StatusOK, rec.Code)

	var body countsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, countsResponse{Username: "alice", Movies: 3, Shows: 7, Total: 10}, body)
}

func TestCountsEndpointStoreFailure(t *testing.T) {
	s := NewServer(&fakeStore{err: errors.New("disk I/O error")}, nil, nil)
	rec := serve(t, s, "/api/users/alice/counts")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHistoryEndpoint(t *testing.T) {
	store := &fakeStore{
		movies:   []models.WatchedItem{{Kind: models.MediaMovie, Title: "Heat", TraktID: 1}},
		episodes: []models.WatchedItem{{Kind: models.MediaEpisode, Title: "Dark", TraktID: 2}},
	}
	s := NewServer(store, nil, nil)

	rec := serve(t, s, "/api/users/alice/history")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, defaultHistoryLimit, store.limit)
	var items []models.WatchedItem
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&items))
	require.Len(t, items, 1)
	assert.Equal(t, "Heat", items[0].Title)

	rec = serve(t, s, "/api/users/alice/history?kind=episodes&limit=500")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, maxHistoryLimit, store.limit)

	assert.Equal(t, http.StatusBadRequest, serve(t, s, "/api/users/alice/history?kind=books").Code)
	assert.Equal(t, http.StatusBadRequest, serve(t, s, "/api/users/alice/history?limit=-1").Code)
}

func TestHistoryEndpointEmptyIsArray(t *testing.T) {
	s := NewServer(&fakeStore{}, nil, nil)
	rec := serve(t, s, "/api/users/nobody/history")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestHealthAndMetricsRoutes(t *testing.T) {
	s := NewServer(&fakeStore{}, nil, map[string]utils.HealthCheck{
		"database": func(context.Context) error { return nil },
	})
	assert.Equal(t, http.StatusOK, serve(t, s, "/health").Code)

	rec := serve(t, s, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestAPIRoutesAreRateLimited(t *testing.T) {
	limiter := NewKeyedRateLimiter(1, 1)
	defer limiter.Close()
	s := NewServer(&fakeStore{}, limiter, nil)
	router := s.Routes()

	do := func() int {
		req := httptest.NewRequest(http.MethodGet, "/api/users/alice/counts", nil)
		req.RemoteAddr = "10.1.1.1:5555"
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec.Code
	}
	assert.Equal(t, http.StatusOK, do())
	assert.Equal(t, http.StatusTooManyRequests, do())
}
