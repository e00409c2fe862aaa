// Package steamhistory scrapes player profiles from steamhistory.net, which
// has no API. It extracts the avatar image and the persona (display name)
// history table.
package steamhistory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const BaseURL = "https://steamhistory.net"

// ErrProfileNotFound means the site reports no record for the Steam ID.
var ErrProfileNotFound = errors.New("steamhistory: profile does not exist")

// Persona is one row of the name-history table. Estimated marks timestamps
// the site flags as approximate.
type Persona struct {
	Name      string    `json:"name"`
	Seen      time.Time `json:"seen"`
	Estimated bool      `json:"estimated"`
}

// Profile is the scraped result for one Steam ID.
type Profile struct {
	SteamID   string    `json:"steam_id"`
	URL       string    `json:"url"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	Personas  []Persona `json:"personas"`
}

type Client struct {
	// BaseURL defaults to the production site; tests point it elsewhere.
	BaseURL    string
	HTTPClient *http.Client
}

func (c *Client) baseURL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return BaseURL
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

// Profile fetches and parses the profile page for steamID. It returns
// ErrProfileNotFound when the site says the ID does not exist.
func (c *Client) Profile(ctx context.Context, steamID string) (*Profile, error) {
	if steamID == "" {
		return nil, fmt.Errorf("steamhistory: empty steam id")
	}
	pageURL := c.baseURL() + "/id/" + steamID

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", pageURL, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	html := string(body)
	// The site serves a 200 page with this marker for unknown ids.
	if strings.Contains(html, "does not exist!</p>") && strings.Contains(html, "<p>ID: ") {
		return nil, ErrProfileNotFound
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}

	p := &Profile{
		SteamID: steamID,
		URL:     BaseURL + "/id/" + steamID,
	}
	if src, ok := doc.Find("img#userimage").First().Attr("src"); ok {
		p.AvatarURL = src
	}
	p.Personas = parsePersonas(doc)
	return p, nil
}

// parsePersonas walks the table following the "Persona History" heading.
// Rows that do not parse cleanly are dropped, matching the site's uneven
// markup.
func parsePersonas(doc *goquery.Document) []Persona {
	var heading *goquery.Selection
	doc.Find("h1").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if strings.TrimSpace(s.Text()) == "Persona History" {
			heading = s
			return false
		}
		return true
	})
	if heading == nil {
		return nil
	}
	table := heading.NextAllFiltered("table").First()
	if table.Length() == 0 {
		table = heading.Parent().Find("table").First()
	}
	if table.Length() == 0 {
		return nil
	}

	var personas []Persona
	table.Find("tr").Each(func(i int, row *goquery.Selection) {
		if i == 0 {
			// Header row.
			return
		}
		cols := row.Find("td")
		if cols.Length() != 2 {
			return
		}
		name := strings.TrimSpace(cols.Eq(0).Text())
		timeStr := strings.TrimSpace(cols.Eq(1).Text())
		estimated := false
		if strings.Contains(timeStr, "Estimated") {
			estimated = true
			timeStr = strings.TrimSpace(strings.SplitN(timeStr, " [Estimated", 2)[0])
		}
		seen, err := time.ParseInLocation("2006-01-02 15:04:05", timeStr, time.UTC)
		if err != nil {
			return
		}
		personas = append(personas, Persona{Name: name, Seen: seen, Estimated: estimated})
	})
	return personas
}
