// Package bot is the Discord surface: slash commands, paginated embeds, and
// watchlist announcements.
package bot

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/sealldev/playerscope/battlemetrics"
	"github.com/sealldev/playerscope/correlate"
	"github.com/sealldev/playerscope/steamhistory"
)

// Options configures a Bot beyond the gateway token.
type Options struct {
	DB               *sql.DB
	BattleMetrics    *battlemetrics.Client
	Correlator       *correlate.Correlator
	SteamHistory     *steamhistory.Client
	MonitorChannelID string
	DefaultDays      int
	MaxPlayers       int
}

// Bot owns the Discord session and dispatches slash commands.
type Bot struct {
	session *discordgo.Session
	opts    Options
	pager   *pager
}

func New(token string, opts Options) (*Bot, error) {
	if token == "" {
		return nil, fmt.Errorf("bot: empty discord token")
	}
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("bot: create session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages
	if opts.DefaultDays <= 0 {
		opts.DefaultDays = 30
	}
	if opts.MaxPlayers <= 0 {
		opts.MaxPlayers = 10
	}

	b := &Bot{session: session, opts: opts, pager: newPager()}
	session.AddHandler(b.onReady)
	session.AddHandler(b.onInteraction)
	return b, nil
}

// Start opens the gateway connection. Command registration happens in the
// ready handler so reconnects re-register too.
func (b *Bot) Start(ctx context.Context) error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("bot: open gateway: %w", err)
	}
	go func() {
		<-ctx.Done()
		if err := b.session.Close(); err != nil {
			slog.Error("discord session close", slog.String("component", "bot"), slog.Any("err", err))
		}
	}()
	return nil
}

// Ready reports whether the gateway session is usable; wired into /readyz.
func (b *Bot) Ready(context.Context) error {
	if b.session.State == nil || b.session.State.User == nil {
		return fmt.Errorf("discord gateway not connected")
	}
	return nil
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	slog.Info("discord gateway ready",
		slog.String("component", "bot"),
		slog.String("user", r.User.Username))
	if _, err := s.ApplicationCommandBulkOverwrite(r.User.ID, "", commandDefinitions()); err != nil {
		slog.Error("register slash commands", slog.String("component", "bot"), slog.Any("err", err))
	}
}

func (b *Bot) onInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		b.dispatchCommand(s, i)
	case discordgo.InteractionMessageComponent:
		b.pager.handleComponent(s, i)
	}
}

func (b *Bot) dispatchCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()
	slog.Info("slash command",
		slog.String("component", "bot"),
		slog.String("command", data.Name),
		slog.String("user_id", interactionUserID(i)))

	switch data.Name {
	case "correlate":
		b.handleCorrelate(s, i)
	case "search":
		b.handleSearch(s, i)
	case "monitor":
		b.handleMonitor(s, i)
	case "monitorrm":
		b.handleMonitorRemove(s, i)
	case "personahistory":
		b.handlePersonaHistory(s, i)
	case "steamfind":
		b.handleSteamFind(s, i)
	case "streamername":
		b.handleStreamerName(s, i)
	default:
		slog.Warn("unknown command", slog.String("component", "bot"), slog.String("command", data.Name))
	}
}

func interactionUserID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

// optionMap indexes interaction options by name.
func optionMap(data discordgo.ApplicationCommandInteractionData) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	out := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(data.Options))
	for _, opt := range data.Options {
		out[opt.Name] = opt
	}
	return out
}

func commandDefinitions() []*discordgo.ApplicationCommand {
	minDays := float64(1)
	return []*discordgo.ApplicationCommand{
		{
			Name:        "correlate",
			Description: "Find overlapping play sessions between players",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "players",
					Description: "Comma-separated BattleMetrics player IDs (2-10)",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "days",
					Description: "How many days back to search (default 30)",
					MinValue:    &minDays,
					MaxValue:    365,
				},
			},
		},
		{
			Name:        "search",
			Description: "Search for a player on BattleMetrics",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "username",
					Description: "Exact player name to search for",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "game",
					Description: "Restrict matches to one game",
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "Rust", Value: "rust"},
						{Name: "Squad", Value: "squad"},
						{Name: "ARK", Value: "ark"},
						{Name: "DayZ", Value: "dayz"},
					},
				},
			},
		},
		{
			Name:        "monitor",
			Description: "Add a player to the persistent watchlist",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "battlemetrics_id",
					Description: "BattleMetrics player ID",
					Required:    true,
				},
			},
		},
		{
			Name:        "monitorrm",
			Description: "Remove a player from the watchlist",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "battlemetrics_id",
					Description: "BattleMetrics player ID",
					Required:    true,
				},
			},
		},
		{
			Name:        "personahistory",
			Description: "Get persona history for a Steam ID",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "steam_id",
					Description: "64-bit Steam ID",
					Required:    true,
				},
			},
		},
		{
			Name:        "steamfind",
			Description: "Build search links for locating a Steam profile",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "username",
					Description: "Username to look for",
					Required:    true,
				},
			},
		},
		{
			Name:        "streamername",
			Description: "Rust streamer-mode name for a Steam ID",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "steam_id",
					Description: "64-bit Steam ID",
					Required:    true,
				},
			},
		},
	}
}
