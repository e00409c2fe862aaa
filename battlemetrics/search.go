package battlemetrics

import (
	"context"
	"fmt"
	"net/url"
	"time"
)

// searchResultCap bounds how many exact matches one search pass collects.
const searchResultCap = 100

// SearchOptions tune one search pass.
type SearchOptions struct {
	// Sort is the API sort parameter ("" relevance, "-lastSeen", "firstSeen").
	Sort string
	// Game restricts matches to servers of one game (e.g. "rust").
	Game string
	// Max caps collected results; 0 uses the default cap of 100.
	Max int
}

// SearchResult is one exact-name match with the most recent server sighting.
type SearchResult struct {
	LastSeen time.Time
	ID       string
	Name     string
}

// SearchPlayers pages through player search results collecting exact name
// matches that have at least one server sighting. Matches whose id is already
// present in seen are skipped and every returned id is added to seen, so
// multiple passes with different sort orders can share one dedup set.
func (c *Client) SearchPlayers(ctx context.Context, name string, seen map[string]struct{}, opts SearchOptions) ([]SearchResult, error) {
	if name == "" {
		return nil, fmt.Errorf("name empty")
	}
	if seen == nil {
		seen = make(map[string]struct{})
	}
	maxResults := opts.Max
	if maxResults <= 0 || maxResults > searchResultCap {
		maxResults = searchResultCap
	}

	q := url.Values{}
	q.Set("page[size]", "90")
	q.Set("sort", opts.Sort)
	q.Set("filter[search]", name)
	q.Set("filter[playerFlags]", "")
	q.Set("include", "flagPlayer,playerFlag,server")
	if c.Token != "" {
		q.Set("access_token", c.Token)
	}
	if opts.Game != "" && opts.Game != "none" {
		q.Set("filter[server][game]", opts.Game)
	}
	next := BaseURL + "/players?" + q.Encode()

	var results []SearchResult
	for next != "" && len(results) < maxResults {
		var body struct {
			Data []struct {
				ID         string `json:"id"`
				Attributes struct {
					Name string `json:"name"`
				} `json:"attributes"`
				Relationships struct {
					Servers struct {
						Data []struct {
							ID   string `json:"id"`
							Meta struct {
								LastSeen string `json:"lastSeen"`
							} `json:"meta"`
						} `json:"data"`
					} `json:"servers"`
				} `json:"relationships"`
			} `json:"data"`
			Links struct {
				Next string `json:"next"`
			} `json:"links"`
		}
		if err := c.get(ctx, next, &body); err != nil {
			return results, fmt.Errorf("search %q: %w", name, err)
		}
		for _, p := range body.Data {
			if p.Attributes.Name != name {
				continue
			}
			if _, dup := seen[p.ID]; dup {
				continue
			}
			seen[p.ID] = struct{}{}
			if len(p.Relationships.Servers.Data) == 0 {
				continue
			}
			lastSeen, err := time.Parse(time.RFC3339, p.Relationships.Servers.Data[0].Meta.LastSeen)
			if err != nil {
				continue
			}
			results = append(results, SearchResult{ID: p.ID, Name: p.Attributes.Name, LastSeen: lastSeen.UTC()})
			if len(results) >= maxResults {
				break
			}
		}
		next = body.Links.Next
	}
	return results, nil
}
