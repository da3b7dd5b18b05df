package bot

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"traktfm/handlers"
)

// viewRegistry holds live watchlist views keyed by id.
type viewRegistry struct {
	mu    sync.Mutex
	views map[string]*handlers.WatchlistView
}

func newViewRegistry() *viewRegistry {
	return &viewRegistry{views: make(map[string]*handlers.WatchlistView)}
}

// add stores view and returns its id.
func (r *viewRegistry) add(view *handlers.WatchlistView) string {
	id := uuid.NewString()
	r.mu.Lock()
	r.views[id] = view
	r.mu.Unlock()
	return id
}

func (r *viewRegistry) get(id string) (*handlers.WatchlistView, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.views[id]
	return v, ok
}

func (r *viewRegistry) remove(id string) {
	r.mu.Lock()
	delete(r.views, id)
	r.mu.Unlock()
}

func (r *viewRegistry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.views)
}

// sweep drops views that can no longer accept a transition.
func (r *viewRegistry) sweep(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, v := range r.views {
		if v.Done(now) {
			delete(r.views, id)
			removed++
		}
	}
	return removed
}

func (r *viewRegistry) run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			r.sweep(now)
		}
	}
}
