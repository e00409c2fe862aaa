// Package streamermode reproduces Rust's streamer-mode display names. The
// game derives a stable pseudonym from the Steam ID, so the same player
// always appears under the same fake name on stream.
package streamermode

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strconv"
)

//go:embed data/usernames.json
var usernamesJSON []byte

var usernames = mustLoad()

func mustLoad() []string {
	var names []string
	if err := json.Unmarshal(usernamesJSON, &names); err != nil {
		panic(fmt.Sprintf("streamermode: bad embedded username list: %v", err))
	}
	if len(names) == 0 {
		panic("streamermode: embedded username list is empty")
	}
	return names
}

// Name returns the streamer-mode pseudonym for a numeric 64-bit Steam ID.
// The index math matches the game: id mod 2^31-1, then mod the list length.
func Name(steamID string) (string, error) {
	id, err := strconv.ParseUint(steamID, 10, 64)
	if err != nil {
		return "", fmt.Errorf("streamermode: steam id %q is not numeric", steamID)
	}
	idx := id % 2147483647 % uint64(len(usernames))
	return usernames[idx], nil
}

// Count reports the size of the embedded name list.
func Count() int { return len(usernames) }
