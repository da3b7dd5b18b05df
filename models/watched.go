package models

import "time"

// MediaKind distinguishes the two kinds of scrobble the store keeps.
type MediaKind string

const (
	MediaMovie   MediaKind = "movie"
	MediaEpisode MediaKind = "episode"
)

// WatchedItem is one scrobble as kept in the local store.
// Movies carry Year; episodes carry the show title in Title plus Season/Episode.
type WatchedItem struct {
	ID           int64     `json:"id,omitempty"`
	Username     string    `json:"username"`
	Kind         MediaKind `json:"kind"`
	Title        string    `json:"title"`
	Year         int       `json:"year,omitempty"`
	Season       int       `json:"season,omitempty"`
	Episode      int       `json:"episode,omitempty"`
	EpisodeTitle string    `json:"episodeTitle,omitempty"`
	WatchedAt    time.Time `json:"watchedAt"`
	TraktID      int64     `json:"traktId"`
}

// Validate reports why an item cannot be stored, or "" when it can.
func (w WatchedItem) Validate() string {
	switch {
	case w.TraktID <= 0:
		return "missing trakt id"
	case w.Title == "":
		return "missing title"
	case w.Kind == MediaEpisode && w.Season < 0:
		return "negative season"
	}
	return ""
}

// RejectedRecord describes an entry that was not stored because it was malformed.
type RejectedRecord struct {
	Kind    MediaKind `json:"kind"`
	TraktID int64     `json:"traktId"`
	Title   string    `json:"title,omitempty"`
	Reason  string    `json:"reason"`
}

// BatchResult summarises one Save call.
type BatchResult struct {
	Accepted   int              `json:"accepted"`
	Duplicates int              `json:"duplicates"`
	Rejected   []RejectedRecord `json:"rejected,omitempty"`
}

// Merge folds other into r.
func (r *BatchResult) Merge(other BatchResult) {
	r.Accepted += other.Accepted
	r.Duplicates += other.Duplicates
	r.Rejected = append(r.Rejected, other.Rejected...)
}

// ScrobbleCounts holds per-user totals from the store.
type ScrobbleCounts struct {
	Movies int `json:"movies"`
	Shows  int `json:"shows"`
}

// Total returns movies plus shows.
func (c ScrobbleCounts) Total() int {
	return c.Movies + c.Shows
}
