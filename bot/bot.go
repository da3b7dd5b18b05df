package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"traktfm/handlers"
	"traktfm/internal/telemetry"
	"traktfm/models"
)

// Config controls the Discord transport.
type Config struct {
	Token          string
	Prefix         string
	CommandTimeout time.Duration
	SweepInterval  time.Duration
}

// sender is the slice of *discordgo.Session the bot uses to talk back.
type sender interface {
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelTyping(channelID string, options ...discordgo.RequestOption) error
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	InteractionResponseEdit(interaction *discordgo.Interaction, newresp *discordgo.WebhookEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

var _ sender = (*discordgo.Session)(nil)

type limiter interface {
	Allow(key string) bool
}

type commandFunc func(ctx context.Context, inv handlers.Invocation) (models.Reply, *handlers.WatchlistView)

// Bot routes prefixed chat commands and watchlist button presses to the handlers.
type Bot struct {
	cfg      Config
	handler  *handlers.CommandHandler
	limiter  limiter
	views    *viewRegistry
	commands map[string]commandFunc
	baseCtx  context.Context
	now      func() time.Time
}

// New builds a Bot. limiter may be nil to disable per-user rate limiting.
func New(cfg Config, handler *handlers.CommandHandler, lim limiter) *Bot {
	if cfg.Prefix == "" {
		cfg.Prefix = "!"
	}
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = 60 * time.Second
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 30 * time.Second
	}

	b := &Bot{
		cfg:     cfg,
		handler: handler,
		limiter: lim,
		views:   newViewRegistry(),
		baseCtx: context.Background(),
		now:     time.Now,
	}

	stateless := func(fn func(context.Context, handlers.Invocation) models.Reply) commandFunc {
		return func(ctx context.Context, inv handlers.Invocation) (models.Reply, *handlers.WatchlistView) {
			return fn(ctx, inv), nil
		}
	}
	b.commands = map[string]commandFunc{
		"tset": stateless(handler.Register),
		"tr":   stateless(handler.Recent),
		"t6":   stateless(handler.RecentMovies),
		"t6s":  stateless(handler.RecentShows),
		"tw":   handler.Watchlist,
		"help": stateless(handler.Help),
	}
	return b
}

// Run connects to Discord and serves until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	session, err := discordgo.New("Bot " + b.cfg.Token)
	if err != nil {
		return fmt.Errorf("create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent

	b.baseCtx = ctx
	session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		log.Printf("[bot] connected as %s#%s", r.User.Username, r.User.Discriminator)
	})
	session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		b.handleMessage(s, m.Message)
	})
	session.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		b.handleInteraction(s, i.Interaction)
	})

	if err := session.Open(); err != nil {
		return fmt.Errorf("open discord session: %w", err)
	}
	log.Printf("[bot] listening for %q commands", b.cfg.Prefix)

	go b.views.run(ctx, b.cfg.SweepInterval)

	<-ctx.Done()
	log.Printf("[bot] shutting down")
	return session.Close()
}

// parseCommand splits "!t6 foo" into ("t6", ["foo"]).
func parseCommand(content, prefix string) (string, []string, bool) {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, prefix) {
		return "", nil, false
	}
	fields := strings.Fields(strings.TrimPrefix(content, prefix))
	if len(fields) == 0 {
		return "", nil, false
	}
	return strings.ToLower(fields[0]), fields[1:], true
}

func (b *Bot) handleMessage(s sender, m *discordgo.Message) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	name, args, ok := parseCommand(m.Content, b.cfg.Prefix)
	if !ok {
		return
	}
	cmd, known := b.commands[name]
	if !known {
		return
	}

	if b.limiter != nil && !b.limiter.Allow(m.Author.ID) {
		telemetry.RecordCommand(name, "rate_limited", 0)
		b.send(s, m.ChannelID, handlers.TextReply("⏳ You're sending commands too quickly. Try again in a moment."), "")
		return
	}

	if err := s.ChannelTyping(m.ChannelID); err != nil {
		log.Printf("[bot] typing indicator in %s: %v", m.ChannelID, err)
	}

	ctx, cancel := context.WithTimeout(b.baseCtx, b.cfg.CommandTimeout)
	defer cancel()

	start := time.Now()
	inv := handlers.Invocation{
		UserID:      m.Author.ID,
		DisplayName: displayName(m),
		Mention:     m.Author.Mention(),
		Args:        args,
	}
	reply, view := cmd(ctx, inv)

	viewID := ""
	if view != nil {
		viewID = b.views.add(view)
	}
	outcome := "ok"
	if err := b.send(s, m.ChannelID, reply, viewID); err != nil {
		outcome = "send_failed"
		if viewID != "" {
			b.views.remove(viewID)
		}
	}
	telemetry.RecordCommand(name, outcome, time.Since(start))
}

func (b *Bot) send(s sender, channelID string, reply models.Reply, viewID string) error {
	if _, err := s.ChannelMessageSendComplex(channelID, toMessageSend(reply, viewID)); err != nil {
		log.Printf("[bot] send reply to %s: %v", channelID, err)
		return err
	}
	return nil
}

func (b *Bot) handleInteraction(s sender, i *discordgo.Interaction) {
	if i.Type != discordgo.InteractionMessageComponent {
		return
	}
	data := i.MessageComponentData()
	viewID, action, err := parseCustomID(data.CustomID)
	if err != nil {
		log.Printf("[bot] ignoring component %q: %v", data.CustomID, err)
		return
	}

	view, ok := b.views.get(viewID)
	if !ok || view.Done(b.now()) {
		b.views.remove(viewID)
		b.respondEphemeral(s, i, "⌛ This watchlist view has expired. Run the command again.")
		return
	}

	// Poster lookups and grid rendering can outlast the interaction deadline.
	if err := s.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredMessageUpdate,
	}); err != nil {
		log.Printf("[bot] defer interaction %s: %v", viewID, err)
		return
	}

	ctx, cancel := context.WithTimeout(b.baseCtx, b.cfg.CommandTimeout)
	defer cancel()

	start := time.Now()
	reply, err := b.handler.HandleWatchlistAction(ctx, view, action)
	switch {
	case errors.Is(err, handlers.ErrViewExpired), errors.Is(err, handlers.ErrViewClosed):
		b.views.remove(viewID)
		telemetry.RecordCommand("tw:"+string(action), "expired", time.Since(start))
		return
	case err != nil:
		log.Printf("[bot] watchlist action %s on %s: %v", action, viewID, err)
		telemetry.RecordCommand("tw:"+string(action), "error", time.Since(start))
		return
	}

	nextID := viewID
	if action == handlers.ActionExpand {
		b.views.remove(viewID)
		nextID = ""
	}
	outcome := "ok"
	if _, err := s.InteractionResponseEdit(i, toWebhookEdit(reply, nextID)); err != nil {
		log.Printf("[bot] update watchlist message %s: %v", viewID, err)
		outcome = "send_failed"
	}
	telemetry.RecordCommand("tw:"+string(action), outcome, time.Since(start))
}

func (b *Bot) respondEphemeral(s sender, i *discordgo.Interaction, content string) {
	err := s.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		log.Printf("[bot] ephemeral reply: %v", err)
	}
}

func displayName(m *discordgo.Message) string {
	if m.Member != nil && m.Member.Nick != "" {
		return m.Member.Nick
	}
	if m.Author.GlobalName != "" {
		return m.Author.GlobalName
	}
	return m.Author.Username
}
