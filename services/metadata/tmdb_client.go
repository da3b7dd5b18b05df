package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	tmdbAPIBaseURL   = "https://api.themoviedb.org/3"
	tmdbImageBaseURL = "https://image.tmdb.org/t/p"
	tmdbPosterSize   = "w500"
)

// Search endpoints.
const (
	searchMovie = "movie"
	searchTV    = "tv"
)

// TMDBClient looks up poster artwork by title and year.
// Every lookup swallows its failures and reports "no poster" instead.
type TMDBClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

type tmdbSearchResponse struct {
	Results []struct {
		ID         int64  `json:"id"`
		Title      string `json:"title"`
		Name       string `json:"name"`
		PosterPath string `json:"poster_path"`
	} `json:"results"`
}

// NewTMDBClient builds a client for the public TMDB v3 API.
func NewTMDBClient(apiKey string, httpClient *http.Client) *TMDBClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &TMDBClient{apiKey: apiKey, baseURL: tmdbAPIBaseURL, httpClient: httpClient}
}

func (c *TMDBClient) isConfigured() bool {
	return c != nil && c.apiKey != ""
}

// SearchMoviePoster returns the poster URL of the first movie search hit.
func (c *TMDBClient) SearchMoviePoster(ctx context.Context, title string, year int) (string, bool) {
	return c.searchPoster(ctx, searchMovie, title, year)
}

// SearchShowPoster returns the poster URL of the first TV search hit.
func (c *TMDBClient) SearchShowPoster(ctx context.Context, title string, year int) (string, bool) {
	return c.searchPoster(ctx, searchTV, title, year)
}

func (c *TMDBClient) searchPoster(ctx context.Context, kind, title string, year int) (string, bool) {
	if !c.isConfigured() || title == "" {
		return "", false
	}

	path, err := c.search(ctx, kind, title, year)
	if err != nil {
		log.Printf("[metadata] tmdb %s search failed title=%q year=%d err=%v", kind, title, year, err)
		return "", false
	}
	img := buildTMDBImage(path, tmdbPosterSize)
	if img == "" {
		return "", false
	}
	return img, true
}

func (c *TMDBClient) search(ctx context.Context, kind, title string, year int) (string, error) {
	q := url.Values{}
	q.Set("api_key", c.apiKey)
	q.Set("query", title)
	if year > 0 {
		q.Set("year", strconv.Itoa(year))
	}
	q.Set("include_adult", "false")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search/"+kind+"?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("tmdb request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("tmdb search failed: %s - %s", resp.Status, string(body))
	}

	var payload tmdbSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(payload.Results) == 0 {
		return "", nil
	}
	return payload.Results[0].PosterPath, nil
}

// buildTMDBImage joins a TMDB file path with the image CDN base.
func buildTMDBImage(path, size string) string {
	if path == "" {
		return ""
	}
	return fmt.Sprintf("%s/%s%s", tmdbImageBaseURL, size, path)
}
