// Package media defines the normalized entities shared by every provider:
// search hits, episodes, dub groups and playlist variants.
package media

import "fmt"

// NotSpecified is the translated-title placeholder used when a source has none.
const NotSpecified = "Not Specified"

// SearchHit is a single title returned by a provider search.
// Identity is Link; a provider never returns two hits with the same Link.
type SearchHit struct {
	Title           string // Display title
	TitleTranslated string // Secondary (usually original-language) title
	Link            string // Canonical content page or API URL
	PosterURL       string // Absolute poster URL, may be empty
	Provider        string // Registry identifier of the owning provider
}

// Episode is one playable item inside a dub group.
// URLs holds mirrors of the same content in first-seen order, without duplicates.
type Episode struct {
	DubGroupID   string
	DubGroupName string
	Label        string // Free text, e.g. "Серія 3" or "Episode 1"
	URLs         []string
	Provider     string
}

// NewEpisode builds an episode with a single player URL.
func NewEpisode(groupID, groupName, label, url, provider string) Episode {
	ep := Episode{
		DubGroupID:   groupID,
		DubGroupName: groupName,
		Label:        label,
		Provider:     provider,
	}
	ep.AddURL(url)
	return ep
}

// URL returns the primary player URL, or "" when the episode has none.
func (e Episode) URL() string {
	if len(e.URLs) == 0 {
		return ""
	}
	return e.URLs[0]
}

// AddURL appends url unless it is empty or already present.
// It reports whether the set changed.
func (e *Episode) AddURL(url string) bool {
	if url == "" {
		return false
	}
	for _, u := range e.URLs {
		if u == url {
			return false
		}
	}
	e.URLs = append(e.URLs, url)
	return true
}

func (e Episode) String() string {
	return fmt.Sprintf("%s [%s]", e.Label, e.DubGroupName)
}

// DubGroup is a voice-over or subtitling group with its episodes in source order.
type DubGroup struct {
	ID       string
	Name     string
	Episodes []Episode
}

// Variant is one quality rendition from a master playlist.
type Variant struct {
	Bandwidth int64  // bits per second
	URI       string // absolute URI of the variant's media playlist
}
