package bot

import (
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
)

const (
	pageFirst = "page_first"
	pagePrev  = "page_prev"
	pageNext  = "page_next"
	pageLast  = "page_last"

	// pagerTTL bounds how long button navigation stays live per message.
	pagerTTL = time.Hour
)

// pager tracks the page sets behind button-navigable messages, keyed by
// message ID.
type pager struct {
	mu      sync.Mutex
	entries map[string]*pagerEntry
}

type pagerEntry struct {
	pages   []*discordgo.MessageEmbed
	index   int
	touched time.Time
}

func newPager() *pager {
	return &pager{entries: make(map[string]*pagerEntry)}
}

// navButtons builds the navigation row with bound buttons disabled.
func navButtons(index, total int) []discordgo.MessageComponent {
	atStart := index == 0
	atEnd := index >= total-1
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{Label: "⏮", Style: discordgo.SecondaryButton, CustomID: pageFirst, Disabled: atStart},
				discordgo.Button{Label: "◀", Style: discordgo.PrimaryButton, CustomID: pagePrev, Disabled: atStart},
				discordgo.Button{Label: "▶", Style: discordgo.PrimaryButton, CustomID: pageNext, Disabled: atEnd},
				discordgo.Button{Label: "⏭", Style: discordgo.SecondaryButton, CustomID: pageLast, Disabled: atEnd},
			},
		},
	}
}

// respondPaged sends the first page of a multi-page result as the deferred
// interaction's response and registers the rest for button navigation.
func (p *pager) respondPaged(s *discordgo.Session, i *discordgo.InteractionCreate, pages []*discordgo.MessageEmbed) {
	if len(pages) == 0 {
		return
	}
	embeds := []*discordgo.MessageEmbed{pages[0]}
	edit := &discordgo.WebhookEdit{Embeds: &embeds}
	if len(pages) > 1 {
		components := navButtons(0, len(pages))
		edit.Components = &components
	}
	msg, err := s.InteractionResponseEdit(i.Interaction, edit)
	if err != nil {
		slog.Error("paginated response", slog.String("component", "bot"), slog.Any("err", err))
		return
	}
	if len(pages) > 1 {
		p.register(msg.ID, pages)
	}
}

func (p *pager) register(messageID string, pages []*discordgo.MessageEmbed) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prune()
	p.entries[messageID] = &pagerEntry{pages: pages, touched: time.Now()}
}

// prune drops stale entries; called with the lock held.
func (p *pager) prune() {
	cutoff := time.Now().Add(-pagerTTL)
	for id, e := range p.entries {
		if e.touched.Before(cutoff) {
			delete(p.entries, id)
		}
	}
}

func (p *pager) handleComponent(s *discordgo.Session, i *discordgo.InteractionCreate) {
	customID := i.MessageComponentData().CustomID
	switch customID {
	case pageFirst, pagePrev, pageNext, pageLast:
	default:
		return
	}

	p.mu.Lock()
	entry, ok := p.entries[i.Message.ID]
	if ok {
		switch customID {
		case pageFirst:
			entry.index = 0
		case pagePrev:
			if entry.index > 0 {
				entry.index--
			}
		case pageNext:
			if entry.index < len(entry.pages)-1 {
				entry.index++
			}
		case pageLast:
			entry.index = len(entry.pages) - 1
		}
		entry.touched = time.Now()
	}
	p.mu.Unlock()

	if !ok {
		// Expired: acknowledge so the button does not error client-side.
		_ = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseDeferredMessageUpdate,
		})
		return
	}

	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Embeds:     []*discordgo.MessageEmbed{entry.pages[entry.index]},
			Components: navButtons(entry.index, len(entry.pages)),
		},
	})
	if err != nil {
		slog.Warn("page navigation", slog.String("component", "bot"), slog.Any("err", err))
	}
}
