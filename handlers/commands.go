package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"traktfm/models"
	"traktfm/services/grid"
	"traktfm/services/history"
	"traktfm/services/trakt"
	"traktfm/services/users"
)

const signupURL = "https://trakt.tv/signup"

// Invocation is one command as typed by a user.
type Invocation struct {
	UserID      string
	DisplayName string
	Mention     string
	Args        []string
}

type linkService interface {
	Get(userID string) (models.UserLink, error)
	Set(userID, username string) (models.UserLink, error)
}

var _ linkService = (*users.Service)(nil)

type historyService interface {
	RecentMovies(ctx context.Context, username string) (*history.GridReport, error)
	RecentShows(ctx context.Context, username string) (*history.GridReport, error)
	Latest(ctx context.Context, username string) (*history.LatestReport, error)
	Watchlist(ctx context.Context, username string) ([]models.WatchlistEntry, error)
	ResolvePoster(ctx context.Context, e models.WatchlistEntry) string
	WatchlistGrid(ctx context.Context, entries []models.WatchlistEntry) (*grid.Result, error)
}

var _ historyService = (*history.Service)(nil)

type accountChecker interface {
	UserExists(ctx context.Context, username string) (bool, error)
}

// CommandHandler answers bot commands. It keeps no per-command state; the
// only thing that outlives a call is the WatchlistView it hands back.
type CommandHandler struct {
	Users    linkService
	History  historyService
	Accounts accountChecker
	Prefix   string
	now      func() time.Time
}

// NewCommandHandler builds a handler. accounts may be nil to skip the
// existence check on registration.
func NewCommandHandler(links linkService, hist historyService, accounts accountChecker, prefix string) *CommandHandler {
	if prefix == "" {
		prefix = "!"
	}
	return &CommandHandler{
		Users:    links,
		History:  hist,
		Accounts: accounts,
		Prefix:   prefix,
		now:      time.Now,
	}
}

// Register links the caller to a Trakt username (tset).
func (h *CommandHandler) Register(ctx context.Context, inv Invocation) models.Reply {
	if len(inv.Args) == 0 || strings.TrimSpace(inv.Args[0]) == "" {
		return TextReply(fmt.Sprintf("❌ Usage: `%stset <username>`", h.Prefix))
	}
	username := strings.TrimSpace(inv.Args[0])

	if h.Accounts != nil {
		exists, err := h.Accounts.UserExists(ctx, username)
		switch {
		case err != nil:
			log.Printf("[handlers] trakt user check failed for %s, linking anyway: %v", username, err)
		case !exists:
			return TextReply(fmt.Sprintf("❌ Trakt user `%s` was not found.", username))
		}
	}

	link, err := h.Users.Set(inv.UserID, username)
	if err != nil {
		log.Printf("[handlers] register user=%s username=%s: %v", inv.UserID, username, err)
		return ErrorReply("Could not save your Trakt username. Please try again.")
	}

	mention := inv.Mention
	if mention == "" {
		mention = inv.DisplayName
	}
	return models.Reply{Embed: &models.Embed{
		Title:       "✅ Trakt Account Linked",
		Description: fmt.Sprintf("[**%s**](%s) has been linked to %s", link.Username, link.ProfileURL(), mention),
		Color:       models.ColorTrakt,
	}}
}

// Recent shows the most recently watched item (tr).
func (h *CommandHandler) Recent(ctx context.Context, inv Invocation) models.Reply {
	link, reply, ok := h.lookup(inv)
	if !ok {
		return reply
	}

	latest, err := h.History.Latest(ctx, link.Username)
	if err != nil {
		return h.historyError(err, "")
	}

	date := latest.Item.WatchedAt.Format("2006-01-02")
	embed := &models.Embed{
		Title:        fmt.Sprintf("📽️ Recent activity by %s", inv.DisplayName),
		URL:          link.ProfileURL(),
		Color:        models.ColorTrakt,
		ThumbnailURL: latest.PosterURL,
	}

	name := models.DisplayTitle(latest.Title, latest.Year)
	if ep := latest.Item.Episode; latest.Item.Show != nil && ep != nil {
		epTitle := ep.Title
		if epTitle == "" {
			epTitle = "Unknown Episode"
		}
		embed.Fields = append(embed.Fields, models.EmbedField{
			Name:  name,
			Value: fmt.Sprintf("🎞️ %s · S%02dE%02d\n📅 Watched on %s", epTitle, ep.Season, ep.Number, date),
		})
		if latest.BingeCount > 1 {
			embed.Footer = fmt.Sprintf("🔥 %d episodes watched today, binge mode!", latest.BingeCount)
		}
	} else {
		embed.Fields = append(embed.Fields, models.EmbedField{
			Name:  name,
			Value: fmt.Sprintf("🎬 Watched on %s", date),
		})
	}

	return models.Reply{Embed: embed}
}

// RecentMovies replies with a grid of the last six movies (t6).
func (h *CommandHandler) RecentMovies(ctx context.Context, inv Invocation) models.Reply {
	link, reply, ok := h.lookup(inv)
	if !ok {
		return reply
	}
	report, err := h.History.RecentMovies(ctx, link.Username)
	if err != nil {
		return h.historyError(err, "movies")
	}
	return gridReply(fmt.Sprintf("🎬 Recent Movies for %s", inv.DisplayName), link, report)
}

// RecentShows replies with a grid of the last six distinct shows (t6s).
func (h *CommandHandler) RecentShows(ctx context.Context, inv Invocation) models.Reply {
	link, reply, ok := h.lookup(inv)
	if !ok {
		return reply
	}
	report, err := h.History.RecentShows(ctx, link.Username)
	if err != nil {
		return h.historyError(err, "shows")
	}
	return gridReply(fmt.Sprintf("🎬 Recent Shows for %s", inv.DisplayName), link, report)
}

func gridReply(title string, link models.UserLink, report *history.GridReport) models.Reply {
	name := "grid" + extensionFor(report.Image.ContentType)
	return models.Reply{
		Embed: &models.Embed{
			Title:    title,
			URL:      link.ProfileURL(),
			Color:    models.ColorGrid,
			ImageURL: "attachment://" + name,
			Footer:   CountsFooter(report.Counts),
		},
		Attachment: &models.Attachment{
			Name:        name,
			ContentType: report.Image.ContentType,
			Data:        report.Image.Data,
		},
	}
}

// CountsFooter formats stored scrobble totals.
func CountsFooter(c models.ScrobbleCounts) string {
	return fmt.Sprintf("🎬 Movies: %d | 📺 Shows: %d | 📊 Total: %d", c.Movies, c.Shows, c.Total())
}

// Watchlist replies with the first watchlist entry and a view to page through
// the rest (tw). The view is nil when there is nothing to page.
func (h *CommandHandler) Watchlist(ctx context.Context, inv Invocation) (models.Reply, *WatchlistView) {
	link, reply, ok := h.lookup(inv)
	if !ok {
		return reply, nil
	}

	entries, err := h.History.Watchlist(ctx, link.Username)
	switch {
	case errors.Is(err, history.ErrEmptyWatchlist):
		return TextReply("📭 Your Trakt watchlist is empty."), nil
	case err != nil:
		log.Printf("[handlers] watchlist for %s: %v", link.Username, err)
		return TextReply("❌ Failed to fetch your watchlist."), nil
	}

	view := NewWatchlistView(entries, link.Username, inv.DisplayName, h.now())
	return h.WatchlistPage(ctx, view), view
}

// WatchlistPage renders the entry under the view's cursor.
func (h *CommandHandler) WatchlistPage(ctx context.Context, view *WatchlistView) models.Reply {
	index, entry := view.Current()
	return models.Reply{
		Embed: &models.Embed{
			Title:       "🎬 " + entry.DisplayTitle(),
			URL:         entry.TraktURL(),
			Description: fmt.Sprintf("**%s's Watchlist**\nItem %d of %d", view.AuthorName, index+1, view.Total),
			Color:       models.ColorWatchlist,
			ImageURL:    h.History.ResolvePoster(ctx, entry),
			Footer:      "Media type: " + mediaLabel(entry.MediaType),
		},
		Buttons: []models.Button{
			{Action: string(ActionPrev), Emoji: "⬅️"},
			{Action: string(ActionNext), Emoji: "➡️"},
			{Action: string(ActionExpand), Emoji: "📺", Label: "Show All", Primary: true},
		},
	}
}

// HandleWatchlistAction applies a button press to view and renders the result.
// Expired or closed views return the state machine's error.
func (h *CommandHandler) HandleWatchlistAction(ctx context.Context, view *WatchlistView, action ViewAction) (models.Reply, error) {
	if _, err := view.Apply(action, h.now()); err != nil {
		return models.Reply{}, err
	}
	if action == ActionExpand {
		return h.watchlistGrid(ctx, view), nil
	}
	return h.WatchlistPage(ctx, view), nil
}

func (h *CommandHandler) watchlistGrid(ctx context.Context, view *WatchlistView) models.Reply {
	res, err := h.History.WatchlistGrid(ctx, view.Entries)
	if err != nil {
		log.Printf("[handlers] watchlist grid for %s: %v", view.Username, err)
		return TextReply("❌ Failed to generate grid image.")
	}

	lines := make([]string, 0, len(view.Entries))
	for _, e := range view.Entries {
		lines = append(lines, fmt.Sprintf("[%s](%s)", e.DisplayTitle(), e.TraktURL()))
	}

	name := "watchlist" + extensionFor(res.ContentType)
	return models.Reply{
		Embed: &models.Embed{
			Title:       fmt.Sprintf("📺 %s's Trakt Watchlist", view.AuthorName),
			URL:         models.TraktProfileURL(view.Username) + "/watchlist",
			Description: strings.Join(lines, "\n"),
			Color:       models.ColorWatchlist,
			ImageURL:    "attachment://" + name,
		},
		Attachment: &models.Attachment{Name: name, ContentType: res.ContentType, Data: res.Data},
	}
}

// Help lists the available commands.
func (h *CommandHandler) Help(context.Context, Invocation) models.Reply {
	p := h.Prefix
	lines := []string{
		fmt.Sprintf("`%shelp` · Show this help message", p),
		fmt.Sprintf("`%stset <username>` · Link your Trakt username", p),
		fmt.Sprintf("`%str` · Show your most recently watched item", p),
		fmt.Sprintf("`%st6` · Show your six recently watched movies", p),
		fmt.Sprintf("`%st6s` · Show your six recently watched shows", p),
		fmt.Sprintf("`%stw` · Show your Trakt watchlist", p),
	}
	return models.Reply{Embed: &models.Embed{
		Title:       "🎬 trakt.fm Bot Commands",
		Description: strings.Join(lines, "\n"),
		Color:       models.ColorTrakt,
	}}
}

// NotRegisteredReply tells a user to link their account first.
func NotRegisteredReply(prefix string) models.Reply {
	return models.Reply{Embed: &models.Embed{
		Title: "📌 Trakt Account Not Registered",
		Description: fmt.Sprintf("You haven't linked your Trakt account yet.\n\n"+
			"**Register:** Use `%stset <username>` to link your account.\n"+
			"**Need an account?** [Sign up here](%s)", prefix, signupURL),
		Color: models.ColorError,
	}}
}

// ErrorReply is the generic failure embed.
func ErrorReply(message string) models.Reply {
	return models.Reply{Embed: &models.Embed{
		Title:       "❌ Something went wrong",
		Description: message,
		Color:       models.ColorError,
	}}
}

// TextReply is a plain message.
func TextReply(content string) models.Reply {
	return models.Reply{Content: content}
}

func (h *CommandHandler) lookup(inv Invocation) (models.UserLink, models.Reply, bool) {
	link, err := h.Users.Get(inv.UserID)
	if errors.Is(err, users.ErrNotRegistered) {
		return link, NotRegisteredReply(h.Prefix), false
	}
	if err != nil {
		log.Printf("[handlers] load user link %s: %v", inv.UserID, err)
		return link, ErrorReply("Could not read registered users."), false
	}
	return link, models.Reply{}, true
}

func (h *CommandHandler) historyError(err error, kind string) models.Reply {
	switch {
	case errors.Is(err, history.ErrNoActivity):
		return TextReply("❌ No recent activity found.")
	case errors.Is(err, history.ErrNoMatches):
		if kind == "" {
			return TextReply("❌ No recent activity found.")
		}
		return TextReply(fmt.Sprintf("❌ No recent %s found.", kind))
	case errors.Is(err, grid.ErrNothingToRender):
		return TextReply("❌ Failed to generate grid image.")
	case errors.Is(err, trakt.ErrUnknown):
		return TextReply("❌ Trakt did not answer. Please try again later.")
	}
	log.Printf("[handlers] history request failed: %v", err)
	return ErrorReply("Could not complete this request.")
}

func mediaLabel(mediaType string) string {
	if mediaType == "" {
		return "Unknown"
	}
	// Casers carry state, so each call gets its own.
	return cases.Title(language.English).String(mediaType)
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/webp":
		return ".webp"
	case "image/jpeg":
		return ".jpg"
	}
	return ".png"
}
