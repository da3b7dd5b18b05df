package trakt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	traktAPIVersion = "2"

	// HistoryPageSize is the page size used when walking a user's full history.
	HistoryPageSize = 100
)

var traktAPIBaseURL = "https://api.trakt.tv"

// setBaseURL points the package at a different API host (tests only).
func setBaseURL(u string) {
	traktAPIBaseURL = strings.TrimRight(u, "/")
}

// ErrUnknown is returned when a request failed and nothing is known about the
// result. It is distinct from an empty result.
var ErrUnknown = errors.New("trakt: result unknown")

// StatusError is a non-2xx response from the Trakt API.
type StatusError struct {
	Status string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("trakt api: %s - %s", e.Status, e.Body)
}

// Client reads public user data from the Trakt API using a static API key.
type Client struct {
	httpClient *http.Client
	apiKey     string
}

// IDs holds external identifiers for a media item
type IDs struct {
	Trakt int    `json:"trakt,omitempty"`
	Slug  string `json:"slug,omitempty"`
	IMDB  string `json:"imdb,omitempty"`
	TMDB  int    `json:"tmdb,omitempty"`
	TVDB  int    `json:"tvdb,omitempty"`
}

// Images holds the host-relative image URLs Trakt returns with extended=images.
type Images struct {
	Poster []string `json:"poster,omitempty"`
	Fanart []string `json:"fanart,omitempty"`
}

// Movie represents a Trakt movie
type Movie struct {
	Title  string  `json:"title"`
	Year   int     `json:"year"`
	IDs    IDs     `json:"ids"`
	Images *Images `json:"images,omitempty"`
}

// Show represents a Trakt TV show
type Show struct {
	Title  string  `json:"title"`
	Year   int     `json:"year"`
	IDs    IDs     `json:"ids"`
	Images *Images `json:"images,omitempty"`
}

// Episode represents a Trakt episode
type Episode struct {
	Season int    `json:"season"`
	Number int    `json:"number"`
	Title  string `json:"title"`
	IDs    IDs    `json:"ids"`
}

// WatchlistItem represents an item from the Trakt watchlist
type WatchlistItem struct {
	Rank     int       `json:"rank"`
	ListedAt time.Time `json:"listed_at"`
	Type     string    `json:"type"` // "movie" or "show"
	Movie    *Movie    `json:"movie,omitempty"`
	Show     *Show     `json:"show,omitempty"`
}

// HistoryItem represents an item from Trakt watch history
type HistoryItem struct {
	ID        int64     `json:"id"`
	WatchedAt time.Time `json:"watched_at"`
	Action    string    `json:"action"` // "watch" or "scrobble"
	Type      string    `json:"type"`   // "movie" or "episode"
	Movie     *Movie    `json:"movie,omitempty"`
	Episode   *Episode  `json:"episode,omitempty"`
	Show      *Show     `json:"show,omitempty"`
}

// UserProfile represents basic Trakt user information
type UserProfile struct {
	Username string `json:"username"`
	Name     string `json:"name,omitempty"`
	VIP      bool   `json:"vip"`
	Private  bool   `json:"private"`
	IDs      struct {
		Slug string `json:"slug"`
	} `json:"ids"`
}

// NewClient creates a new Trakt API client
func NewClient(apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		apiKey:     apiKey,
	}
}

// HasCredentials checks if the client has an API key configured
func (c *Client) HasCredentials() bool {
	return c.apiKey != ""
}

// setTraktHeaders adds required Trakt API headers to a request
func (c *Client) setTraktHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("trakt-api-version", traktAPIVersion)
	req.Header.Set("trakt-api-key", c.apiKey)
}

// historyScope maps a caller-supplied media type onto the history endpoint suffix.
// Unsupported values fall back to the unscoped endpoint.
func historyScope(mediaType string) string {
	switch mediaType {
	case "movies", "shows", "episodes":
		return "/" + mediaType
	default:
		return ""
	}
}

func userPath(username string) string {
	return traktAPIBaseURL + "/users/" + url.PathEscape(username)
}

// get performs a GET and decodes a JSON body into out. Non-2xx responses
// come back as *StatusError.
func (c *Client) get(ctx context.Context, rawURL string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	c.setTraktHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("trakt api request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Status: resp.Status, Code: resp.StatusCode, Body: string(respBody)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// GetHistory retrieves one page of a user's watch history.
// mediaType can be "movies", "shows", "episodes", or empty for all.
func (c *Client) GetHistory(ctx context.Context, username, mediaType string, page, limit int) ([]HistoryItem, error) {
	u := userPath(username) + "/history" + historyScope(mediaType)
	u += fmt.Sprintf("?page=%d&limit=%d&extended=full,images", page, limit)

	var items []HistoryItem
	if err := c.get(ctx, u, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// GetFullHistory walks the history from page 1 until an empty page.
// A failed page stops the walk and the pages gathered so far are returned.
func (c *Client) GetFullHistory(ctx context.Context, username, mediaType string) []HistoryItem {
	var allItems []HistoryItem
	page := 1

	for {
		items, err := c.GetHistory(ctx, username, mediaType, page, HistoryPageSize)
		if err != nil {
			var statusErr *StatusError
			if errors.As(err, &statusErr) {
				log.Printf("[trakt] history page failed user=%s page=%d status=%d body=%q", username, page, statusErr.Code, statusErr.Body)
			} else {
				log.Printf("[trakt] history page failed user=%s page=%d err=%v", username, page, err)
			}
			break
		}

		if len(items) == 0 {
			break
		}

		allItems = append(allItems, items...)
		page++
	}

	return allItems
}

// GetRecentHistory returns the first page of history, or an empty slice on failure.
func (c *Client) GetRecentHistory(ctx context.Context, username, mediaType string, limit int) []HistoryItem {
	if limit <= 0 {
		limit = HistoryPageSize
	}
	items, err := c.GetHistory(ctx, username, mediaType, 1, limit)
	if err != nil {
		log.Printf("[trakt] recent history failed user=%s type=%q err=%v", username, mediaType, err)
		return []HistoryItem{}
	}
	return items
}

// GetRecentActivity returns the default history page with images, or nil on failure.
func (c *Client) GetRecentActivity(ctx context.Context, username string) []HistoryItem {
	var items []HistoryItem
	if err := c.get(ctx, userPath(username)+"/history?extended=images", &items); err != nil {
		log.Printf("[trakt] recent activity failed user=%s err=%v", username, err)
		return nil
	}
	return items
}

// GetWatchlist retrieves the user's watchlist in one request.
// On failure it returns ErrUnknown; an empty watchlist is a non-nil empty slice.
func (c *Client) GetWatchlist(ctx context.Context, username string) ([]WatchlistItem, error) {
	var items []WatchlistItem
	if err := c.get(ctx, userPath(username)+"/watchlist?extended=images", &items); err != nil {
		log.Printf("[trakt] watchlist failed user=%s err=%v", username, err)
		return nil, fmt.Errorf("%w: %v", ErrUnknown, err)
	}
	if items == nil {
		items = []WatchlistItem{}
	}
	return items, nil
}

// UserExists reports whether a public Trakt profile exists for username.
func (c *Client) UserExists(ctx context.Context, username string) (bool, error) {
	var profile UserProfile
	err := c.get(ctx, userPath(username), &profile)
	if err == nil {
		return true, nil
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.Code == http.StatusNotFound {
		return false, nil
	}
	return false, err
}

// PosterURL returns the first poster of images, or "".
func PosterURL(images *Images) string {
	if images == nil || len(images.Poster) == 0 {
		return ""
	}
	return images.Poster[0]
}

// IsMovie reports whether the history entry is a movie watch.
func (h HistoryItem) IsMovie() bool {
	return h.Movie != nil
}

// IsEpisode reports whether the history entry is an episode watch.
func (h HistoryItem) IsEpisode() bool {
	return h.Show != nil
}
