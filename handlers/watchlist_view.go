package handlers

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"traktfm/models"
)

// ViewTimeout is how long a watchlist view accepts button presses after the
// last accepted one.
const ViewTimeout = 60 * time.Second

// ViewAction is a button press on a watchlist view.
type ViewAction string

const (
	ActionPrev   ViewAction = "prev"
	ActionNext   ViewAction = "next"
	ActionExpand ViewAction = "expand"
)

var (
	ErrViewExpired   = errors.New("watchlist view expired")
	ErrViewClosed    = errors.New("watchlist view closed")
	ErrUnknownAction = errors.New("unknown watchlist action")
)

// ParseViewAction validates a raw action string.
func ParseViewAction(raw string) (ViewAction, error) {
	switch a := ViewAction(raw); a {
	case ActionPrev, ActionNext, ActionExpand:
		return a, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAction, raw)
}

// WatchlistView is the cursor over one watchlist reply. Prev and Next wrap
// around; Expand is terminal. Nothing is accepted once Deadline has passed.
type WatchlistView struct {
	mu sync.Mutex

	Index    int
	Total    int
	Deadline time.Time

	Entries    []models.WatchlistEntry
	Username   string
	AuthorName string

	closed bool
}

// NewWatchlistView starts a view at the first entry.
func NewWatchlistView(entries []models.WatchlistEntry, username, authorName string, now time.Time) *WatchlistView {
	return &WatchlistView{
		Total:      len(entries),
		Deadline:   now.Add(ViewTimeout),
		Entries:    entries,
		Username:   username,
		AuthorName: authorName,
	}
}

// Apply performs action at time now and returns the resulting index.
func (v *WatchlistView) Apply(action ViewAction, now time.Time) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return v.Index, ErrViewClosed
	}
	if now.After(v.Deadline) {
		return v.Index, ErrViewExpired
	}
	if v.Total == 0 {
		return 0, ErrViewClosed
	}

	switch action {
	case ActionPrev:
		v.Index = (v.Index - 1 + v.Total) % v.Total
	case ActionNext:
		v.Index = (v.Index + 1) % v.Total
	case ActionExpand:
		v.closed = true
		return v.Index, nil
	default:
		return v.Index, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}

	v.Deadline = now.Add(ViewTimeout)
	return v.Index, nil
}

// Current returns the cursor position and the entry under it.
func (v *WatchlistView) Current() (int, models.WatchlistEntry) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.Index, v.Entries[v.Index]
}

// Done reports whether the view no longer accepts transitions.
func (v *WatchlistView) Done(now time.Time) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.closed || now.After(v.Deadline)
}
