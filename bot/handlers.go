package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/sealldev/playerscope/battlemetrics"
	"github.com/sealldev/playerscope/correlate"
	"github.com/sealldev/playerscope/db"
	"github.com/sealldev/playerscope/steamfind"
	"github.com/sealldev/playerscope/steamhistory"
	"github.com/sealldev/playerscope/streamermode"
	"github.com/sealldev/playerscope/telemetry"
)

const (
	colorGreen  = 0x57F287
	colorRed    = 0xED4245
	colorYellow = 0xFEE75C
	colorBlue   = 0x5865F2

	overlapsPerPage = 5
	resultsPerPage  = 5
	personasPerPage = 10

	commandTimeout = 2 * time.Minute
)

func deferResponse(s *discordgo.Session, i *discordgo.InteractionCreate) bool {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	})
	if err != nil {
		slog.Error("defer interaction", slog.String("component", "bot"), slog.Any("err", err))
		return false
	}
	return true
}

func (b *Bot) editText(s *discordgo.Session, i *discordgo.InteractionCreate, text string) {
	if _, err := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{Content: &text}); err != nil {
		slog.Warn("edit response", slog.String("component", "bot"), slog.Any("err", err))
	}
}

func respondEmbed(s *discordgo.Session, i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Embeds: []*discordgo.MessageEmbed{embed}},
	})
	if err != nil {
		slog.Warn("respond embed", slog.String("component", "bot"), slog.Any("err", err))
	}
}

// discordTime renders a timestamp as Discord's client-local format.
func discordTime(t time.Time) string {
	return fmt.Sprintf("<t:%d:f>", t.Unix())
}

func (b *Bot) handleCorrelate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !deferResponse(s, i) {
		return
	}
	opts := optionMap(i.ApplicationCommandData())

	var ids []string
	for _, id := range strings.Split(opts["players"].StringValue(), ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) < 2 {
		b.editText(s, i, "Provide at least two comma-separated player IDs.")
		return
	}
	if len(ids) > b.opts.MaxPlayers {
		b.editText(s, i, fmt.Sprintf("At most %d players per correlation.", b.opts.MaxPlayers))
		return
	}
	days := b.opts.DefaultDays
	if opt, ok := opts["days"]; ok {
		days = int(opt.IntValue())
	}

	b.editText(s, i, fmt.Sprintf("Fetching sessions for %d players over the last %d days...", len(ids), days))

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	if telemetry.CorrelationsStarted != nil {
		telemetry.CorrelationsStarted.Inc()
	}
	var (
		overlaps []correlate.Overlap
		err      error
	)
	telemetry.TimeFunc(telemetry.CorrelationDuration, func() {
		overlaps, err = b.opts.Correlator.Correlate(ctx, ids, correlate.LastDays(days))
	})
	if err != nil {
		slog.Warn("correlation degraded", slog.String("component", "bot"), slog.Any("err", err))
	}
	if len(overlaps) == 0 {
		msg := fmt.Sprintf("No overlapping sessions found in the last %d days.", days)
		if err != nil {
			msg += "\nSome players could not be fetched: `" + err.Error() + "`"
		}
		b.editText(s, i, msg)
		return
	}

	// Engine order is unspecified; sort for display.
	sort.Slice(overlaps, func(a, b int) bool { return overlaps[a].Start.Before(overlaps[b].Start) })

	var pages []*discordgo.MessageEmbed
	for start := 0; start < len(overlaps); start += overlapsPerPage {
		end := start + overlapsPerPage
		if end > len(overlaps) {
			end = len(overlaps)
		}
		var sb strings.Builder
		for _, o := range overlaps[start:end] {
			players := append([]string(nil), o.Players...)
			sort.Strings(players)
			fmt.Fprintf(&sb, "**Server** [`%s`](https://www.battlemetrics.com/servers/rust/%s)\n", o.ServerID, o.ServerID)
			fmt.Fprintf(&sb, "%s → %s (%s)\n", discordTime(o.Start), discordTime(o.Stop), o.Duration.Round(time.Second))
			fmt.Fprintf(&sb, "**Players:** `%s`\n\n", strings.Join(players, "`, `"))
		}
		if err != nil {
			sb.WriteString("⚠ Some players could not be fetched; results are partial.\n")
		}
		pages = append(pages, &discordgo.MessageEmbed{
			Title:       fmt.Sprintf("Session Overlaps (%d found)", len(overlaps)),
			Description: sb.String(),
			Color:       colorBlue,
			Footer: &discordgo.MessageEmbedFooter{
				Text: fmt.Sprintf("Page %d/%d • Window: last %d days", len(pages)+1, (len(overlaps)+overlapsPerPage-1)/overlapsPerPage, days),
			},
		})
	}
	b.pager.respondPaged(s, i, pages)
}

func (b *Bot) handleSearch(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !deferResponse(s, i) {
		return
	}
	opts := optionMap(i.ApplicationCommandData())
	username := opts["username"].StringValue()
	game := ""
	if opt, ok := opts["game"]; ok {
		game = opt.StringValue()
	}

	b.editText(s, i, fmt.Sprintf("Searching for `%s`...", username))

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	// Several sort passes widen the net; the shared seen set dedups.
	seen := make(map[string]struct{})
	var results []battlemetrics.SearchResult
	for _, sortOrder := range []string{"", "-lastSeen", "firstSeen"} {
		found, err := b.opts.BattleMetrics.SearchPlayers(ctx, username, seen,
			battlemetrics.SearchOptions{Sort: sortOrder, Game: game})
		if err != nil {
			slog.Warn("player search pass failed",
				slog.String("component", "bot"), slog.String("sort", sortOrder), slog.Any("err", err))
			continue
		}
		results = append(results, found...)
	}

	if len(results) == 0 {
		b.editText(s, i, fmt.Sprintf("No players found with the exact name `%s`.", username))
		return
	}
	sort.Slice(results, func(a, b int) bool { return results[a].LastSeen.After(results[b].LastSeen) })

	var pages []*discordgo.MessageEmbed
	for start := 0; start < len(results); start += resultsPerPage {
		end := start + resultsPerPage
		if end > len(results) {
			end = len(results)
		}
		var sb strings.Builder
		for _, r := range results[start:end] {
			fmt.Fprintf(&sb, "[`%s`](https://www.battlemetrics.com/players/%s)\nLast seen %s\n\n",
				r.ID, r.ID, discordTime(r.LastSeen))
		}
		pages = append(pages, &discordgo.MessageEmbed{
			Title:       fmt.Sprintf("Players named %s (%d found)", username, len(results)),
			Description: sb.String(),
			Color:       colorBlue,
			Footer: &discordgo.MessageEmbedFooter{
				Text: fmt.Sprintf("Page %d/%d", len(pages)+1, (len(results)+resultsPerPage-1)/resultsPerPage),
			},
		})
	}
	b.pager.respondPaged(s, i, pages)
}

func (b *Bot) handleMonitor(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !deferResponse(s, i) {
		return
	}
	playerID := optionMap(i.ApplicationCommandData())["battlemetrics_id"].StringValue()

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	player, err := b.opts.BattleMetrics.Player(ctx, playerID)
	if err != nil {
		b.editText(s, i, fmt.Sprintf("Could not look up player `%s`: %v", playerID, err))
		return
	}
	if err := db.AddWatch(ctx, b.opts.DB, player.ID, player.Name); err != nil {
		slog.Error("add watch", slog.String("component", "bot"), slog.Any("err", err))
		b.editText(s, i, "Failed to add player to the watchlist.")
		return
	}

	embed := &discordgo.MessageEmbed{
		Title: fmt.Sprintf("Monitoring %s (%s)", player.Name, player.ID),
		URL:   "https://www.battlemetrics.com/players/" + player.ID,
		Color: colorGreen,
	}
	if current, ok := player.OnlineServer(); ok {
		embed.Description = fmt.Sprintf(":green_circle: Currently online on `%s` (%s)", current.Name, current.ID)
	} else {
		embed.Description = ":red_circle: Currently offline"
	}
	recent := player.RecentServers(5)
	if len(recent) > 0 {
		var sb strings.Builder
		for idx := len(recent) - 1; idx >= 0; idx-- {
			srv := recent[idx]
			fmt.Fprintf(&sb, "`%s` (%s) — last seen %s\n", srv.Name, srv.ID, discordTime(srv.LastSeen))
		}
		embed.Fields = []*discordgo.MessageEmbedField{
			{Name: "Recently visited servers", Value: sb.String()},
		}
	}
	embed.Footer = &discordgo.MessageEmbedFooter{Text: "Player added to persistent monitoring"}

	embeds := []*discordgo.MessageEmbed{embed}
	if _, err := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{Embeds: &embeds}); err != nil {
		slog.Warn("monitor response", slog.String("component", "bot"), slog.Any("err", err))
	}
}

func (b *Bot) handleMonitorRemove(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !deferResponse(s, i) {
		return
	}
	playerID := optionMap(i.ApplicationCommandData())["battlemetrics_id"].StringValue()

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	removed, err := db.RemoveWatch(ctx, b.opts.DB, playerID)
	if err != nil {
		slog.Error("remove watch", slog.String("component", "bot"), slog.Any("err", err))
		b.editText(s, i, "Failed to update the watchlist.")
		return
	}

	embed := &discordgo.MessageEmbed{Color: colorGreen}
	if removed {
		embed.Title = "Monitoring stopped"
		embed.Description = fmt.Sprintf("`%s` has been removed from monitoring.", playerID)
	} else {
		embed.Title = "Not monitored"
		embed.Description = fmt.Sprintf("Player with ID `%s` was not being monitored.", playerID)
		embed.Color = colorRed
	}
	embeds := []*discordgo.MessageEmbed{embed}
	if _, err := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{Embeds: &embeds}); err != nil {
		slog.Warn("monitorrm response", slog.String("component", "bot"), slog.Any("err", err))
	}
}

func (b *Bot) handlePersonaHistory(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !deferResponse(s, i) {
		return
	}
	steamID := optionMap(i.ApplicationCommandData())["steam_id"].StringValue()

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	profile, err := b.opts.SteamHistory.Profile(ctx, steamID)
	if errors.Is(err, steamhistory.ErrProfileNotFound) {
		b.editText(s, i, fmt.Sprintf("Steam ID `%s` does not exist.", steamID))
		return
	}
	if err != nil {
		b.editText(s, i, fmt.Sprintf("Unable to fetch data for Steam ID `%s`.", steamID))
		return
	}
	if len(profile.Personas) == 0 {
		b.editText(s, i, fmt.Sprintf("No persona history found for Steam ID `%s`.", steamID))
		return
	}

	var pages []*discordgo.MessageEmbed
	total := len(profile.Personas)
	for start := 0; start < total; start += personasPerPage {
		end := start + personasPerPage
		if end > total {
			end = total
		}
		var sb strings.Builder
		for _, persona := range profile.Personas[start:end] {
			ts := persona.Seen.Unix()
			fmt.Fprintf(&sb, "**%s** 👤\nTimestamp ⏰ <t:%d:f> (<t:%d:R>)", persona.Name, ts, ts)
			if persona.Estimated {
				sb.WriteString("\n[Estimated Timestamp]")
			}
			sb.WriteString("\n\n")
		}
		page := &discordgo.MessageEmbed{
			Title:       "Persona History for Steam ID: " + steamID,
			URL:         profile.URL,
			Description: sb.String(),
			Color:       colorBlue,
			Footer: &discordgo.MessageEmbedFooter{
				Text: fmt.Sprintf("Page %d • Entries %d-%d of %d", len(pages)+1, start+1, end, total),
			},
		}
		if profile.AvatarURL != "" {
			page.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: profile.AvatarURL}
		}
		pages = append(pages, page)
	}
	b.pager.respondPaged(s, i, pages)
}

func (b *Bot) handleSteamFind(s *discordgo.Session, i *discordgo.InteractionCreate) {
	username := optionMap(i.ApplicationCommandData())["username"].StringValue()

	embed := &discordgo.MessageEmbed{
		Title: "Search links for " + username,
		Color: colorBlue,
	}
	for _, group := range steamfind.Groups(username) {
		var sb strings.Builder
		for _, link := range group.Links {
			fmt.Fprintf(&sb, "[%s](%s)\n", link.Label, link.URL)
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  group.Title,
			Value: sb.String(),
		})
	}
	respondEmbed(s, i, embed)
}

func (b *Bot) handleStreamerName(s *discordgo.Session, i *discordgo.InteractionCreate) {
	steamID := optionMap(i.ApplicationCommandData())["steam_id"].StringValue()

	name, err := streamermode.Name(steamID)
	if err != nil {
		respondEmbed(s, i, &discordgo.MessageEmbed{
			Title:       "Invalid Steam ID",
			Description: fmt.Sprintf("`%s` is not a numeric 64-bit Steam ID.", steamID),
			Color:       colorRed,
		})
		return
	}
	respondEmbed(s, i, &discordgo.MessageEmbed{
		Title:       "Streamer-mode name",
		Description: fmt.Sprintf("Steam ID `%s` appears on stream as **%s**.", steamID, name),
		Color:       colorGreen,
	})
}
