package battlemetrics

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"time"
)

// VisitedServer is one server a player has connected to, with its last-seen
// timestamp and whether the player is on it right now.
type VisitedServer struct {
	LastSeen time.Time
	ID       string
	Name     string
	Online   bool
}

// Player is a BattleMetrics player profile with the servers it has visited,
// sorted by last seen ascending.
type Player struct {
	ID      string
	Name    string
	Servers []VisitedServer
}

// OnlineServer returns the server the player is currently on, if any.
func (p *Player) OnlineServer() (VisitedServer, bool) {
	for _, s := range p.Servers {
		if s.Online {
			return s, true
		}
	}
	return VisitedServer{}, false
}

// RecentServers returns the n most recently visited servers, most recent last.
func (p *Player) RecentServers(n int) []VisitedServer {
	if n <= 0 || len(p.Servers) == 0 {
		return nil
	}
	if n > len(p.Servers) {
		n = len(p.Servers)
	}
	return p.Servers[len(p.Servers)-n:]
}

// Player fetches a player profile including current/visited server state.
func (c *Client) Player(ctx context.Context, playerID string) (*Player, error) {
	if playerID == "" {
		return nil, fmt.Errorf("playerID empty")
	}
	var body struct {
		Data struct {
			ID         string `json:"id"`
			Attributes struct {
				Name string `json:"name"`
			} `json:"attributes"`
		} `json:"data"`
		Included []struct {
			ID         string `json:"id"`
			Attributes struct {
				Name string `json:"name"`
			} `json:"attributes"`
			Meta struct {
				Online   bool   `json:"online"`
				LastSeen string `json:"lastSeen"`
			} `json:"meta"`
		} `json:"included"`
	}
	u := BaseURL + "/players/" + url.PathEscape(playerID) + "?include=server"
	if err := c.get(ctx, u, &body); err != nil {
		return nil, fmt.Errorf("fetch player %s: %w", playerID, err)
	}
	p := &Player{ID: body.Data.ID, Name: body.Data.Attributes.Name}
	if p.ID == "" {
		return nil, fmt.Errorf("player %s not found", playerID)
	}
	for _, inc := range body.Included {
		seen, err := time.Parse(time.RFC3339, inc.Meta.LastSeen)
		if err != nil {
			// lastSeen is required for ordering; drop servers without it
			continue
		}
		p.Servers = append(p.Servers, VisitedServer{
			ID:       inc.ID,
			Name:     inc.Attributes.Name,
			Online:   inc.Meta.Online,
			LastSeen: seen.UTC(),
		})
	}
	sort.Slice(p.Servers, func(i, j int) bool { return p.Servers[i].LastSeen.Before(p.Servers[j].LastSeen) })
	return p, nil
}

// ServerDetail is the subset of server attributes the bot renders, including
// the Rust-specific details block.
type ServerDetail struct {
	ID            string
	Name          string
	IP            string
	Port          int
	Players       int
	MaxPlayers    int
	ServerType    string
	HeaderImage   string
	URL           string
	WorldSize     int
	Description   string
	QueuedPlayers int
	SteamID       string
}

// Server fetches detailed server information.
func (c *Client) Server(ctx context.Context, serverID string) (*ServerDetail, error) {
	if serverID == "" {
		return nil, fmt.Errorf("serverID empty")
	}
	var body struct {
		Data struct {
			ID         string `json:"id"`
			Attributes struct {
				Name       string `json:"name"`
				IP         string `json:"ip"`
				Port       int    `json:"port"`
				Players    int    `json:"players"`
				MaxPlayers int    `json:"maxPlayers"`
				Details    struct {
					RustType          string `json:"rust_type"`
					RustHeaderImage   string `json:"rust_headerimage"`
					RustURL           string `json:"rust_url"`
					RustWorldSize     int    `json:"rust_worldsize"`
					RustDescription   string `json:"rust_description"`
					RustQueuedPlayers int    `json:"rust_queued_players"`
					ServerSteamID     string `json:"serverSteamId"`
				} `json:"details"`
			} `json:"attributes"`
		} `json:"data"`
	}
	u := BaseURL + "/servers/" + url.PathEscape(serverID)
	if err := c.get(ctx, u, &body); err != nil {
		return nil, fmt.Errorf("fetch server %s: %w", serverID, err)
	}
	a := body.Data.Attributes
	return &ServerDetail{
		ID:            body.Data.ID,
		Name:          a.Name,
		IP:            a.IP,
		Port:          a.Port,
		Players:       a.Players,
		MaxPlayers:    a.MaxPlayers,
		ServerType:    a.Details.RustType,
		HeaderImage:   a.Details.RustHeaderImage,
		URL:           a.Details.RustURL,
		WorldSize:     a.Details.RustWorldSize,
		Description:   a.Details.RustDescription,
		QueuedPlayers: a.Details.RustQueuedPlayers,
		SteamID:       a.Details.ServerSteamID,
	}, nil
}
