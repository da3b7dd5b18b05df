package handlers

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"traktfm/models"
	"traktfm/services/grid"
	"traktfm/services/history"
	"traktfm/services/trakt"
	"traktfm/services/users"
)

type fakeHistory struct {
	movies    *history.GridReport
	shows     *history.GridReport
	latest    *history.LatestReport
	entries   []models.WatchlistEntry
	err       error
	listErr   error
	gridCalls int
}

func (f *fakeHistory) RecentMovies(context.Context, string) (*history.GridReport, error) {
	return f.movies, f.err
}

func (f *fakeHistory) RecentShows(context.Context, string) (*history.GridReport, error) {
	return f.shows, f.err
}

func (f *fakeHistory) Latest(context.Context, string) (*history.LatestReport, error) {
	return f.latest, f.err
}

func (f *fakeHistory) Watchlist(context.Context, string) ([]models.WatchlistEntry, error) {
	return f.entries, f.listErr
}

func (f *fakeHistory) ResolvePoster(_ context.Context, e models.WatchlistEntry) string {
	return "https://posters.example/" + e.Slug + ".jpg"
}

func (f *fakeHistory) WatchlistGrid(_ context.Context, entries []models.WatchlistEntry) (*grid.Result, error) {
	f.gridCalls++
	return &grid.Result{Data: []byte("png"), ContentType: "image/png", Rendered: len(entries)}, nil
}

type fakeAccounts struct {
	exists bool
	err    error
}

func (f fakeAccounts) UserExists(context.Context, string) (bool, error) {
	return f.exists, f.err
}

func newTestHandler(t *testing.T, hist *fakeHistory, accounts accountChecker) (*CommandHandler, *users.Service) {
	t.Helper()
	store := users.NewService(afero.NewMemMapFs(), "users.json")
	return NewCommandHandler(store, hist, accounts, "!"), store
}

func alice() Invocation {
	return Invocation{UserID: "42", DisplayName: "Alice", Mention: "<@42>"}
}

func TestRegisterLinksAccount(t *testing.T) {
	h, store := newTestHandler(t, &fakeHistory{}, fakeAccounts{exists: true})

	inv := alice()
	inv.Args = []string{"alice_t"}
	reply := h.Register(context.Background(), inv)
	require.NotNil(t, reply.Embed)
	assert.Equal(t, "✅ Trakt Account Linked", reply.Embed.Title)
	assert.Contains(t, reply.Embed.Description, "https://trakt.tv/users/alice_t")
	assert.Contains(t, reply.Embed.Description, "<@42>")

	link, err := store.Get("42")
	require.NoError(t, err)
	assert.Equal(t, "alice_t", link.Username)
}

func TestRegisterRejectsUnknownTraktUser(t *testing.T) {
	h, store := newTestHandler(t, &fakeHistory{}, fakeAccounts{exists: false})

	inv := alice()
	inv.Args = []string{"ghost"}
	reply := h.Register(context.Background(), inv)
	assert.Contains(t, reply.Content, "was not found")

	_, err := store.Get("42")
	assert.ErrorIs(t, err, users.ErrNotRegistered)
}

func TestRegisterProceedsWhenCheckFails(t *testing.T) {
	h, store := newTestHandler(t, &fakeHistory{}, fakeAccounts{err: errors.New("timeout")})

	inv := alice()
	inv.Args = []string{"alice_t"}
	h.Register(context.Background(), inv)

	link, err := store.Get("42")
	require.NoError(t, err)
	assert.Equal(t, "alice_t", link.Username)
}

func TestRegisterUsage(t *testing.T) {
	h, _ := newTestHandler(t, &fakeHistory{}, nil)
	reply := h.Register(context.Background(), alice())
	assert.Contains(t, reply.Content, "!tset <username>")
}

func TestUnregisteredUserGetsEmbed(t *testing.T) {
	h, _ := newTestHandler(t, &fakeHistory{}, nil)

	for name, reply := range map[string]models.Reply{
		"tr":  h.Recent(context.Background(), alice()),
		"t6":  h.RecentMovies(context.Background(), alice()),
		"t6s": h.RecentShows(context.Background(), alice()),
	} {
		require.NotNil(t, reply.Embed, name)
		assert.Equal(t, "📌 Trakt Account Not Registered", reply.Embed.Title, name)
		assert.Contains(t, reply.Embed.Description, "!tset <username>", name)
	}

	reply, view := h.Watchlist(context.Background(), alice())
	assert.Nil(t, view)
	require.NotNil(t, reply.Embed)
}

func TestRecentMoviesGridReply(t *testing.T) {
	hist := &fakeHistory{movies: &history.GridReport{
		Image:  &grid.Result{Data: []byte("png-bytes"), ContentType: "image/png"},
		Counts: models.ScrobbleCounts{Movies: 12, Shows: 30},
	}}
	h, store := newTestHandler(t, hist, nil)
	_, err := store.Set("42", "alice_t")
	require.NoError(t, err)

	reply := h.RecentMovies(context.Background(), alice())
	require.NotNil(t, reply.Embed)
	require.NotNil(t, reply.Attachment)
	assert.Equal(t, "🎬 Recent Movies for Alice", reply.Embed.Title)
	assert.Equal(t, "🎬 Movies: 12 | 📺 Shows: 30 | 📊 Total: 42", reply.Embed.Footer)
	assert.Equal(t, "attachment://grid.png", reply.Embed.ImageURL)
	assert.Equal(t, "grid.png", reply.Attachment.Name)
	assert.Equal(t, []byte("png-bytes"), reply.Attachment.Data)
}

func TestRecentShowsErrors(t *testing.T) {
	cases := map[error]string{
		history.ErrNoActivity:   "❌ No recent activity found.",
		history.ErrNoMatches:    "❌ No recent shows found.",
		grid.ErrNothingToRender: "❌ Failed to generate grid image.",
	}
	for err, want := range cases {
		h, store := newTestHandler(t, &fakeHistory{err: err}, nil)
		_, setErr := store.Set("42", "alice_t")
		require.NoError(t, setErr)

		reply := h.RecentShows(context.Background(), alice())
		assert.Equal(t, want, reply.Content)
	}
}

func TestRecentEpisodeWithBinge(t *testing.T) {
	watched := time.Date(2024, 5, 3, 21, 0, 0, 0, time.UTC)
	hist := &fakeHistory{latest: &history.LatestReport{
		Item: trakt.HistoryItem{
			WatchedAt: watched,
			Show:      &trakt.Show{Title: "Dark", Year: 2017},
			Episode:   &trakt.Episode{Season: 1, Number: 3, Title: "Past and Present"},
		},
		Title:      "Dark",
		Year:       2017,
		PosterURL:  "https://posters.example/dark.jpg",
		BingeCount: 3,
	}}
	h, store := newTestHandler(t, hist, nil)
	_, err := store.Set("42", "alice_t")
	require.NoError(t, err)

	reply := h.Recent(context.Background(), alice())
	require.NotNil(t, reply.Embed)
	require.Len(t, reply.Embed.Fields, 1)
	assert.Equal(t, "Dark (2017)", reply.Embed.Fields[0].Name)
	assert.Contains(t, reply.Embed.Fields[0].Value, "S01E03")
	assert.Contains(t, reply.Embed.Fields[0].Value, "2024-05-03")
	assert.Contains(t, reply.Embed.Footer, "3 episodes watched today")
	assert.Equal(t, "https://posters.example/dark.jpg", reply.Embed.ThumbnailURL)
}

func TestRecentMovieHasNoFooter(t *testing.T) {
	hist := &fakeHistory{latest: &history.LatestReport{
		Item:  trakt.HistoryItem{WatchedAt: time.Now(), Movie: &trakt.Movie{Title: "Heat", Year: 1995}},
		Title: "Heat",
		Year:  1995,
	}}
	h, store := newTestHandler(t, hist, nil)
	_, err := store.Set("42", "alice_t")
	require.NoError(t, err)

	reply := h.Recent(context.Background(), alice())
	require.NotNil(t, reply.Embed)
	assert.Empty(t, reply.Embed.Footer)
	assert.True(t, strings.HasPrefix(reply.Embed.Fields[0].Value, "🎬 Watched on"))
}

func TestWatchlistPagingAndExpand(t *testing.T) {
	hist := &fakeHistory{entries: threeEntries()}
	h, store := newTestHandler(t, hist, nil)
	_, err := store.Set("42", "alice_t")
	require.NoError(t, err)

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	h.now = func() time.Time { return now }

	reply, view := h.Watchlist(context.Background(), alice())
	require.NotNil(t, view)
	require.NotNil(t, reply.Embed)
	assert.Equal(t, "🎬 Heat (1995)", reply.Embed.Title)
	assert.Equal(t, "https://trakt.tv/movies/heat-1995", reply.Embed.URL)
	assert.Contains(t, reply.Embed.Description, "Item 1 of 3")
	assert.Equal(t, "Media type: Movie", reply.Embed.Footer)
	assert.Len(t, reply.Buttons, 3)

	reply, err = h.HandleWatchlistAction(context.Background(), view, ActionPrev)
	require.NoError(t, err)
	assert.Contains(t, reply.Embed.Description, "Item 3 of 3")

	reply, err = h.HandleWatchlistAction(context.Background(), view, ActionExpand)
	require.NoError(t, err)
	require.NotNil(t, reply.Attachment)
	assert.Equal(t, "watchlist.png", reply.Attachment.Name)
	assert.Empty(t, reply.Buttons)
	assert.Equal(t, "https://trakt.tv/users/alice_t/watchlist", reply.Embed.URL)
	assert.Contains(t, reply.Embed.Description, "[Dark (2017)](https://trakt.tv/shows/dark)")
	assert.Equal(t, 1, hist.gridCalls)

	_, err = h.HandleWatchlistAction(context.Background(), view, ActionNext)
	assert.ErrorIs(t, err, ErrViewClosed)

	now = now.Add(2 * ViewTimeout)
	_, fresh := h.Watchlist(context.Background(), alice())
	h.now = func() time.Time { return now.Add(2 * ViewTimeout) }
	_, err = h.HandleWatchlistAction(context.Background(), fresh, ActionNext)
	assert.ErrorIs(t, err, ErrViewExpired)
}

func TestWatchlistFailures(t *testing.T) {
	h, store := newTestHandler(t, &fakeHistory{listErr: trakt.ErrUnknown}, nil)
	_, err := store.Set("42", "alice_t")
	require.NoError(t, err)
	reply, view := h.Watchlist(context.Background(), alice())
	assert.Nil(t, view)
	assert.Equal(t, "❌ Failed to fetch your watchlist.", reply.Content)

	h, store = newTestHandler(t, &fakeHistory{listErr: history.ErrEmptyWatchlist}, nil)
	_, err = store.Set("42", "alice_t")
	require.NoError(t, err)
	reply, view = h.Watchlist(context.Background(), alice())
	assert.Nil(t, view)
	assert.Contains(t, reply.Content, "empty")
}

func TestHelpUsesPrefix(t *testing.T) {
	store := users.NewService(afero.NewMemMapFs(), "users.json")
	h := NewCommandHandler(store, &fakeHistory{}, nil, "?")
	reply := h.Help(context.Background(), alice())
	require.NotNil(t, reply.Embed)
	for _, cmd := range []string{"?help", "?tset", "?tr", "?t6`", "?t6s", "?tw"} {
		assert.Contains(t, reply.Embed.Description, cmd)
	}
}
