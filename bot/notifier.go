package bot

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/sealldev/playerscope/battlemetrics"
	"github.com/sealldev/playerscope/monitor"
)

// bannerURL renders BattleMetrics' server activity banner.
func bannerURL(serverID string) string {
	return "https://cdn.battlemetrics.com/b/horizontal500x80px/" + serverID +
		".png?foreground=%23EEEEEE&background=%23222222&lines=%23333333&linkColor=%231185ec&chartColor=%23FF0700"
}

func joinLinks(detail *battlemetrics.ServerDetail) string {
	return fmt.Sprintf("**Console Join Command**: `connect %s:%d`\n[**Steam URI Redirect**](https://sealldeveloper.github.io/steam-uri-http-proxy/?ip=%s&port=%d) (Only works when game is closed)",
		detail.IP, detail.Port, detail.IP, detail.Port)
}

// Notify posts a status-change embed to the configured monitor channel. It
// satisfies the watch loop's Notifier interface.
func (b *Bot) Notify(ctx context.Context, ev monitor.Event) error {
	if b.opts.MonitorChannelID == "" {
		return fmt.Errorf("monitor channel not configured")
	}

	var embed *discordgo.MessageEmbed
	switch ev.Kind {
	case monitor.EventOnline:
		embed = b.onlineEmbed(ctx, ev)
	case monitor.EventOffline:
		embed = &discordgo.MessageEmbed{
			Title:       fmt.Sprintf("`%s` (%s) is Offline :red_circle:", ev.PlayerName, ev.PlayerID),
			Description: "No longer on any server.",
			Color:       colorRed,
		}
	case monitor.EventServerChange:
		embed = b.serverChangeEmbed(ctx, ev)
	default:
		return fmt.Errorf("unknown event kind %d", ev.Kind)
	}

	if _, err := b.session.ChannelMessageSendEmbed(b.opts.MonitorChannelID, embed); err != nil {
		return fmt.Errorf("send monitor embed: %w", err)
	}
	return nil
}

func (b *Bot) onlineEmbed(ctx context.Context, ev monitor.Event) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title: fmt.Sprintf("`%s` (%s) is Online :green_circle:", ev.PlayerName, ev.PlayerID),
		Color: colorGreen,
		Image: &discordgo.MessageEmbedImage{URL: bannerURL(ev.ServerID)},
	}

	detail, err := b.opts.BattleMetrics.Server(ctx, ev.ServerID)
	if err != nil {
		// Announce anyway; the detail block is decoration.
		slog.Warn("server detail fetch failed",
			slog.String("component", "bot"), slog.String("server_id", ev.ServerID), slog.Any("err", err))
		embed.Description = fmt.Sprintf("Now playing on server `%s`.", ev.ServerID)
		return embed
	}

	embed.Description = joinLinks(detail)
	embed.Fields = []*discordgo.MessageEmbedField{
		{
			Name: fmt.Sprintf("**Server:** `%s` (%s)", detail.Name, detail.ID),
			Value: fmt.Sprintf(
				"**Players:** `%d/%d`\n**Server Type:** `%s`\n**URL:** `%s`\n**World Size:** `%d`\n**Queued Players:** `%d`\n**Server Steam ID:** `%s`\n**Description:** ```%s```",
				detail.Players, detail.MaxPlayers, detail.ServerType, detail.URL,
				detail.WorldSize, detail.QueuedPlayers, detail.SteamID, detail.Description),
		},
	}
	if detail.HeaderImage != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: detail.HeaderImage}
	}
	return embed
}

func (b *Bot) serverChangeEmbed(ctx context.Context, ev monitor.Event) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title: fmt.Sprintf("`%s` (%s) has changed servers! :yellow_circle:", ev.PlayerName, ev.PlayerID),
		Color: colorYellow,
		Image: &discordgo.MessageEmbedImage{URL: bannerURL(ev.ServerID)},
	}

	detail, err := b.opts.BattleMetrics.Server(ctx, ev.ServerID)
	if err != nil {
		slog.Warn("server detail fetch failed",
			slog.String("component", "bot"), slog.String("server_id", ev.ServerID), slog.Any("err", err))
		embed.Description = fmt.Sprintf("Now playing on server `%s`.", ev.ServerID)
		return embed
	}

	embed.Description = joinLinks(detail)
	embed.Fields = []*discordgo.MessageEmbedField{
		{
			Name:  fmt.Sprintf("**Server:** `%s` (%s)", detail.Name, detail.ID),
			Value: fmt.Sprintf("**Players:** `%d/%d`", detail.Players, detail.MaxPlayers),
		},
	}
	return embed
}
