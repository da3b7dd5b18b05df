package history

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"traktfm/internal/telemetry"
	"traktfm/models"
	"traktfm/services/grid"
	"traktfm/services/metadata"
	"traktfm/services/trakt"
)

const (
	// RecentPageSize is how many history entries the grid commands fetch.
	RecentPageSize = 100
	// GridSize is how many posters the recent grids show.
	GridSize = 6
	// WatchlistLimit caps the watchlist to keep the view and grid readable.
	WatchlistLimit = 12
)

var (
	// ErrNoActivity means Trakt returned no history for the user.
	ErrNoActivity = errors.New("history: no recent activity")
	// ErrNoMatches means history exists but none of it is of the requested kind.
	ErrNoMatches = errors.New("history: no matching entries")
	// ErrEmptyWatchlist means the watchlist was fetched and has no entries.
	ErrEmptyWatchlist = errors.New("history: watchlist is empty")
)

type historySource interface {
	GetRecentHistory(ctx context.Context, username, mediaType string, limit int) []trakt.HistoryItem
	GetRecentActivity(ctx context.Context, username string) []trakt.HistoryItem
	GetFullHistory(ctx context.Context, username, mediaType string) []trakt.HistoryItem
	GetWatchlist(ctx context.Context, username string) ([]trakt.WatchlistItem, error)
}

type historyStore interface {
	Save(ctx context.Context, username string, shows, movies []models.WatchedItem) (models.BatchResult, error)
	Count(ctx context.Context, username string) (models.ScrobbleCounts, error)
}

type posterResolver interface {
	Resolve(ctx context.Context, q metadata.PosterQuery) string
}

type gridComposer interface {
	Compose(ctx context.Context, items []grid.Item, policy grid.Policy) (*grid.Result, error)
}

var (
	_ historySource  = (*trakt.Client)(nil)
	_ posterResolver = (*metadata.PosterResolver)(nil)
	_ gridComposer   = (*grid.Composer)(nil)
)

// GridReport is the outcome of a recent-movies or recent-shows request.
type GridReport struct {
	Image  *grid.Result
	Titles []string
	Counts models.ScrobbleCounts
	Saved  models.BatchResult
}

// LatestReport describes the most recent history entry.
type LatestReport struct {
	Item       trakt.HistoryItem
	Title      string
	Year       int
	PosterURL  string
	BingeCount int
}

// Service runs the fetch, persist, select, resolve and compose pipeline.
type Service struct {
	trakt    historySource
	store    historyStore
	posters  posterResolver
	composer gridComposer
	now      func() time.Time
}

// NewService wires the pipeline together.
func NewService(source historySource, store historyStore, posters posterResolver, composer gridComposer) *Service {
	return &Service{
		trakt:    source,
		store:    store,
		posters:  posters,
		composer: composer,
		now:      time.Now,
	}
}

// SplitHistory converts Trakt history entries into store rows, split into
// episodes and movies. Entries missing their payload are kept with empty
// fields so the store can reject and report them.
func SplitHistory(username string, items []trakt.HistoryItem) (shows, movies []models.WatchedItem) {
	for _, h := range items {
		switch {
		case h.IsMovie() || h.Type == "movie":
			w := models.WatchedItem{
				Username:  username,
				Kind:      models.MediaMovie,
				WatchedAt: h.WatchedAt,
				TraktID:   h.ID,
			}
			if h.Movie != nil {
				w.Title = h.Movie.Title
				w.Year = h.Movie.Year
			}
			movies = append(movies, w)
		case h.IsEpisode() || h.Type == "episode":
			w := models.WatchedItem{
				Username:  username,
				Kind:      models.MediaEpisode,
				WatchedAt: h.WatchedAt,
				TraktID:   h.ID,
			}
			if h.Show != nil {
				w.Title = h.Show.Title
				w.Year = h.Show.Year
			}
			if h.Episode != nil {
				w.Season = h.Episode.Season
				w.Episode = h.Episode.Number
				w.EpisodeTitle = h.Episode.Title
			}
			shows = append(shows, w)
		default:
			log.Printf("[history] skipping entry id=%d with unknown type %q", h.ID, h.Type)
		}
	}
	return shows, movies
}

// SaveRecent persists a mixed history slice for username.
func (s *Service) SaveRecent(ctx context.Context, username string, items []trakt.HistoryItem) (models.BatchResult, error) {
	shows, movies := SplitHistory(username, items)
	result, err := s.store.Save(ctx, username, shows, movies)
	if err != nil {
		return result, fmt.Errorf("save history for %s: %w", username, err)
	}
	telemetry.RecordBatch(result.Accepted, result.Duplicates, len(result.Rejected))
	return result, nil
}

// Backfill imports the user's complete Trakt history into the store.
func (s *Service) Backfill(ctx context.Context, username string) (models.BatchResult, error) {
	items := s.trakt.GetFullHistory(ctx, username, "")
	if len(items) == 0 {
		return models.BatchResult{}, ErrNoActivity
	}
	return s.SaveRecent(ctx, username, items)
}

// RecentMovies renders the user's six most recent movies.
func (s *Service) RecentMovies(ctx context.Context, username string) (*GridReport, error) {
	return s.recentGrid(ctx, username, "movies", selectMovies)
}

// RecentShows renders the user's six most recently watched distinct shows.
func (s *Service) RecentShows(ctx context.Context, username string) (*GridReport, error) {
	return s.recentGrid(ctx, username, "shows", selectShows)
}

type selector func([]trakt.HistoryItem) []metadata.PosterQuery

func (s *Service) recentGrid(ctx context.Context, username, mediaType string, pick selector) (*GridReport, error) {
	history := s.trakt.GetRecentHistory(ctx, username, mediaType, RecentPageSize)
	if len(history) == 0 {
		return nil, ErrNoActivity
	}

	saved, err := s.SaveRecent(ctx, username, history)
	if err != nil {
		// The grid can still be drawn from what Trakt returned.
		log.Printf("[history] %v", err)
	}

	queries := pick(history)
	if len(queries) == 0 {
		return nil, ErrNoMatches
	}

	items := make([]grid.Item, 0, len(queries))
	titles := make([]string, 0, len(queries))
	for _, q := range queries {
		title := models.DisplayTitle(q.Title, q.Year)
		items = append(items, grid.Item{URL: s.posters.Resolve(ctx, q), Title: title})
		titles = append(titles, title)
	}

	image, err := s.compose(ctx, items, grid.FixedPolicy())
	if err != nil {
		return nil, err
	}

	counts, err := s.store.Count(ctx, username)
	if err != nil {
		log.Printf("[history] count scrobbles for %s: %v", username, err)
	}

	return &GridReport{Image: image, Titles: titles, Counts: counts, Saved: saved}, nil
}

func selectMovies(history []trakt.HistoryItem) []metadata.PosterQuery {
	var out []metadata.PosterQuery
	for _, h := range history {
		if h.Movie == nil {
			continue
		}
		out = append(out, metadata.PosterQuery{
			Kind:     metadata.PosterMovie,
			Title:    h.Movie.Title,
			Year:     h.Movie.Year,
			Embedded: trakt.PosterURL(h.Movie.Images),
		})
		if len(out) == GridSize {
			break
		}
	}
	return out
}

// selectShows keeps the first entry of each (title, year) pair.
func selectShows(history []trakt.HistoryItem) []metadata.PosterQuery {
	type key struct {
		title string
		year  int
	}
	seen := make(map[key]struct{})
	var out []metadata.PosterQuery
	for _, h := range history {
		if h.Show == nil {
			continue
		}
		k := key{h.Show.Title, h.Show.Year}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, metadata.PosterQuery{
			Kind:     metadata.PosterShow,
			Title:    h.Show.Title,
			Year:     h.Show.Year,
			Embedded: trakt.PosterURL(h.Show.Images),
		})
		if len(out) == GridSize {
			break
		}
	}
	return out
}

// Latest returns the most recent history entry and how many episodes were
// watched on the current day.
func (s *Service) Latest(ctx context.Context, username string) (*LatestReport, error) {
	history := s.trakt.GetRecentActivity(ctx, username)
	if len(history) == 0 {
		return nil, ErrNoActivity
	}

	first := history[0]
	report := &LatestReport{Item: first}

	q := metadata.PosterQuery{Kind: metadata.PosterMovie}
	switch {
	case first.Movie != nil:
		report.Title, report.Year = first.Movie.Title, first.Movie.Year
		q.Embedded = trakt.PosterURL(first.Movie.Images)
	case first.Show != nil:
		report.Title, report.Year = first.Show.Title, first.Show.Year
		q.Kind = metadata.PosterShow
		q.Embedded = trakt.PosterURL(first.Show.Images)
	default:
		return nil, ErrNoMatches
	}
	q.Title, q.Year = report.Title, report.Year
	report.PosterURL = s.posters.Resolve(ctx, q)

	if first.Show != nil {
		report.BingeCount = bingeCount(history, s.now())
	}
	return report, nil
}

// bingeCount counts episode entries watched on now's calendar day, in now's location.
func bingeCount(history []trakt.HistoryItem, now time.Time) int {
	y, m, d := now.Date()
	count := 0
	for _, h := range history {
		if h.Show == nil {
			continue
		}
		wy, wm, wd := h.WatchedAt.In(now.Location()).Date()
		if wy == y && wm == m && wd == d {
			count++
		}
	}
	return count
}

// Watchlist fetches up to WatchlistLimit watchlist entries. A Trakt failure
// is returned as trakt.ErrUnknown, an empty list as ErrEmptyWatchlist.
func (s *Service) Watchlist(ctx context.Context, username string) ([]models.WatchlistEntry, error) {
	items, err := s.trakt.GetWatchlist(ctx, username)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrEmptyWatchlist
	}
	if len(items) > WatchlistLimit {
		items = items[:WatchlistLimit]
	}

	entries := make([]models.WatchlistEntry, 0, len(items))
	for _, it := range items {
		var media *trakt.Movie
		switch {
		case it.Movie != nil:
			media = it.Movie
		case it.Show != nil:
			media = &trakt.Movie{Title: it.Show.Title, Year: it.Show.Year, IDs: it.Show.IDs, Images: it.Show.Images}
		default:
			log.Printf("[history] skipping watchlist entry rank=%d with no media", it.Rank)
			continue
		}
		entries = append(entries, models.WatchlistEntry{
			MediaType: it.Type,
			Title:     media.Title,
			Year:      media.Year,
			Slug:      media.IDs.Slug,
			PosterURL: trakt.PosterURL(media.Images),
		})
	}
	if len(entries) == 0 {
		return nil, ErrEmptyWatchlist
	}
	return entries, nil
}

// ResolvePoster returns a displayable poster for a watchlist entry.
func (s *Service) ResolvePoster(ctx context.Context, e models.WatchlistEntry) string {
	kind := metadata.PosterMovie
	if e.MediaType == "show" {
		kind = metadata.PosterShow
	}
	return s.posters.Resolve(ctx, metadata.PosterQuery{
		Kind:     kind,
		Title:    e.Title,
		Year:     e.Year,
		Embedded: e.PosterURL,
	})
}

// WatchlistGrid composes every entry into an adaptive grid.
func (s *Service) WatchlistGrid(ctx context.Context, entries []models.WatchlistEntry) (*grid.Result, error) {
	items := make([]grid.Item, 0, len(entries))
	for _, e := range entries {
		items = append(items, grid.Item{URL: s.ResolvePoster(ctx, e), Title: e.DisplayTitle()})
	}
	return s.compose(ctx, items, grid.AdaptivePolicy())
}

func (s *Service) compose(ctx context.Context, items []grid.Item, policy grid.Policy) (*grid.Result, error) {
	res, err := s.composer.Compose(ctx, items, policy)
	if err != nil {
		telemetry.RecordGrid(false, len(items))
		return nil, err
	}
	telemetry.RecordGrid(true, res.Failed)
	return res, nil
}
