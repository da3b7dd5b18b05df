package models

import "fmt"

// WatchlistEntry is one item of a Trakt watchlist. It is fetched per request and never stored.
type WatchlistEntry struct {
	MediaType string `json:"mediaType"` // movie | show
	Title     string `json:"title"`
	Year      int    `json:"year,omitempty"`
	Slug      string `json:"slug,omitempty"`
	PosterURL string `json:"posterUrl,omitempty"`
}

// DisplayTitle renders "Title (Year)", falling back to "Unknown" for missing parts.
func (e WatchlistEntry) DisplayTitle() string {
	return DisplayTitle(e.Title, e.Year)
}

// DisplayTitle formats a title with its parenthesised year.
func DisplayTitle(title string, year int) string {
	if title == "" {
		title = "Unknown"
	}
	if year <= 0 {
		return fmt.Sprintf("%s (Unknown)", title)
	}
	return fmt.Sprintf("%s (%d)", title, year)
}

// TraktURL links to the entry's Trakt page.
func (e WatchlistEntry) TraktURL() string {
	return fmt.Sprintf("https://trakt.tv/%ss/%s", e.MediaType, e.Slug)
}
