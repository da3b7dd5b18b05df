package metadata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestTMDB(t *testing.T, handler http.HandlerFunc) *TMDBClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client := NewTMDBClient("tmdb-key", &http.Client{Timeout: time.Second})
	client.baseURL = server.URL
	return client
}

func TestBuildTMDBImage(t *testing.T) {
	if img := buildTMDBImage("", tmdbPosterSize); img != "" {
		t.Fatal("expected empty image when path empty")
	}
	img := buildTMDBImage("/poster.png", tmdbPosterSize)
	if img != "https://image.tmdb.org/t/p/w500/poster.png" {
		t.Fatalf("unexpected image url: %s", img)
	}
}

func TestSearchMoviePoster(t *testing.T) {
	client := newTestTMDB(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search/movie" {
			t.Errorf("expected /search/movie, got %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("api_key") != "tmdb-key" || q.Get("query") != "Heat" || q.Get("year") != "1995" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		if q.Get("include_adult") != "false" {
			t.Errorf("expected include_adult=false")
		}
		w.Write([]byte(`{"results":[{"id":949,"title":"Heat","poster_path":"/heat.jpg"},{"id":1,"poster_path":"/other.jpg"}]}`))
	})

	got, ok := client.SearchMoviePoster(context.Background(), "Heat", 1995)
	if !ok {
		t.Fatal("expected a poster")
	}
	if got != "https://image.tmdb.org/t/p/w500/heat.jpg" {
		t.Fatalf("unexpected poster %s", got)
	}
}

func TestSearchShowPosterUsesTVEndpoint(t *testing.T) {
	client := newTestTMDB(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search/tv" {
			t.Errorf("expected /search/tv, got %s", r.URL.Path)
		}
		w.Write([]byte(`{"results":[{"id":1,"name":"Dark","poster_path":"/dark.jpg"}]}`))
	})

	got, ok := client.SearchShowPoster(context.Background(), "Dark", 2017)
	if !ok || got != "https://image.tmdb.org/t/p/w500/dark.jpg" {
		t.Fatalf("unexpected result %q %v", got, ok)
	}
}

func TestSearchPosterSwallowsFailures(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"server error": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		},
		"no results": func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"results":[]}`))
		},
		"no poster path": func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"results":[{"id":1,"poster_path":null}]}`))
		},
		"garbage": func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`<html>`))
		},
	}
	for name, handler := range cases {
		t.Run(name, func(t *testing.T) {
			client := newTestTMDB(t, handler)
			if got, ok := client.SearchMoviePoster(context.Background(), "Anything", 2000); ok || got != "" {
				t.Fatalf("expected no poster, got %q", got)
			}
		})
	}
}

func TestSearchPosterUnreachable(t *testing.T) {
	client := NewTMDBClient("key", &http.Client{Timeout: 200 * time.Millisecond})
	client.baseURL = "http://127.0.0.1:1"
	if _, ok := client.SearchShowPoster(context.Background(), "Lost", 2004); ok {
		t.Fatal("expected no poster from unreachable host")
	}
}

func TestSearchPosterUnconfigured(t *testing.T) {
	client := NewTMDBClient("", nil)
	if _, ok := client.SearchMoviePoster(context.Background(), "Heat", 1995); ok {
		t.Fatal("expected no poster without an api key")
	}
}
