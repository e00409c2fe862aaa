// Package steamfind builds search-engine queries that locate a player's
// profiles across Steam and per-game community sites.
package steamfind

import "net/url"

const googleSearch = "https://www.google.com/search?"

// Link is one named search URL.
type Link struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// Group is a set of links for one game or platform.
type Group struct {
	Title string `json:"title"`
	Links []Link `json:"links"`
}

// siteQuery builds a `site:<site> "<username>"` Google query, with an
// optional extra clause appended verbatim.
func siteQuery(site, username, extra string) string {
	q := `site:` + site + ` "` + username + `"`
	if extra != "" {
		q += " " + extra
	}
	return googleSearch + url.Values{"q": {q}}.Encode()
}

// SteamSearchURL is Steam's own user search, which matches poorly for common
// usernames but is still worth listing.
func SteamSearchURL(username string) string {
	return "https://steamcommunity.com/search/users/#" + url.Values{"text": {username}}.Encode()
}

// communityFilter strips Steam profile sub-pages out of the community dork so
// only profile roots surface.
const communityFilter = "-inurl:/groups -inurl:/friends -inurl:/games -inurl:/inventory " +
	"-inurl:/screenshots -inurl:/allcomments -inurl:/myworkshopfiles -inurl:/stats " +
	"-inurl:/sharedfiles -inurl:/market -inurl:/discussions"

// Groups returns every dork group for username, in display order.
func Groups(username string) []Group {
	return []Group{
		{
			Title: "Steam",
			Links: []Link{
				{"steamcommunity.com", siteQuery("steamcommunity.com", username, "")},
				{"steamcommunity.com (filtered)", siteQuery("steamcommunity.com", username, communityFilter)},
				{"steamhistory.net", siteQuery("steamhistory.net", username, "")},
				{"exophase.com", siteQuery("exophase.com", username, `AND "Profile"`)},
				{"steamidfinder.com", siteQuery("steamidfinder.com", username, "")},
				{"steamhunters.com", siteQuery("steamhunters.com", username, "")},
				{"steamladder.com", siteQuery("steamladder.com", username, "")},
				{"steamrep.com", siteQuery("steamrep.com", username, "")},
				{"steamcollector.com", siteQuery("steamcollector.com", username, "")},
				{"steamid.pro", siteQuery("steamid.pro", username, "")},
				{"battlemetrics.com", siteQuery("battlemetrics.com", username, "")},
				{"Steam user search", SteamSearchURL(username)},
			},
		},
		{
			Title: "Rocket League",
			Links: []Link{
				{"ballchasing.com", siteQuery("ballchasing.com", username, "")},
			},
		},
		{
			Title: "CS2",
			Links: []Link{
				{"fplleaderboards.com", siteQuery("fplleaderboards.com", username, "")},
				{"faceit.com", siteQuery("faceit.com", username, "")},
				{"faceitfinder.com", siteQuery("faceitfinder.com", username, `AND "profile"`)},
				{"settings.gg", siteQuery("settings.gg", username, "")},
			},
		},
		{
			Title: "Deadlock",
			Links: []Link{
				{"tracklock.gg", siteQuery("tracklock.gg", username, "")},
			},
		},
		{
			Title: "TF2",
			Links: []Link{
				{"backpack.tf", siteQuery("backpack.tf", username, "")},
				{"scrap.tf", siteQuery("scrap.tf", username, "")},
				{"stntrading.eu", siteQuery("stntrading.eu", username, "")},
				{"trends.tf", siteQuery("trends.tf", username, "")},
				{"logs.tf", siteQuery("logs.tf", username, "")},
				{"demos.tf", siteQuery("demos.tf", username, "")},
				{"rgl.gg", siteQuery("rgl.gg", username, "")},
				{"etf2l.org", siteQuery("etf2l.org", username, "")},
				{"ugcleague.com", siteQuery("ugcleague.com", username, "")},
				{"cltf2.com", siteQuery("cltf2.com", username, "")},
				{"ozfortress.com", siteQuery("ozfortress.com", username, "")},
			},
		},
	}
}
