package provider

import (
	"fmt"

	"github.com/PuerkitoBio/goquery"

	"stream2media/internal/media"
)

// Family is the protocol a source speaks. The set is closed.
type Family int

const (
	// FamilyHandshake sources need a session token scraped from the home page
	// before they accept a search POST.
	FamilyHandshake Family = iota
	// FamilyJSONAPI sources expose a JSON REST search and details API.
	FamilyJSONAPI
	// FamilyPlainHTML sources answer a plain GET with an HTML results page.
	FamilyPlainHTML
)

func (f Family) String() string {
	switch f {
	case FamilyHandshake:
		return "hash-handshake"
	case FamilyJSONAPI:
		return "json-api"
	case FamilyPlainHTML:
		return "plain-html"
	default:
		return fmt.Sprintf("Family(%d)", int(f))
	}
}

// Site holds the constants that bind a family strategy to one source.
type Site struct {
	ID      string
	Family  Family
	BaseURL string

	// SearchPath is appended to BaseURL. For plain-HTML sources the
	// percent-encoded query is appended to it.
	SearchPath string

	// Handshake form fields.
	QueryField string
	TokenField string
	ExtraForm  map[string]string

	// SearchEnvelope marks responses wrapped as {"content": "<html>"}.
	SearchEnvelope bool

	// DetailsToken sends the handshake token as this query parameter on
	// the playlists endpoint. Empty sends a timestamp instead.
	DetailsToken string

	parseHits     func(doc *goquery.Document, site Site) []media.SearchHit
	parseEpisodes func(doc *goquery.Document, provider string) []media.Episode
}

func (s Site) url(path string) string {
	return s.BaseURL + path
}

func (s Site) playlistsURL() string {
	return s.url("/engine/ajax/playlists.php")
}

// UAKino returns the uakino.club site definition.
func UAKino() Site {
	return Site{
		ID:             "uakino",
		Family:         FamilyHandshake,
		BaseURL:        "https://uakino.club",
		SearchPath:     "/engine/lazydev/dle_search/ajax.php",
		QueryField:     "story",
		TokenField:     "dle_hash",
		ExtraForm:      map[string]string{"thisUrl": "/index.php"},
		SearchEnvelope: true,
		parseHits:      parseUAKinoHits,
		parseEpisodes:  parseVoicedItems,
	}
}

// AniTube returns the anitube.in.ua site definition.
func AniTube() Site {
	return Site{
		ID:            "anitube",
		Family:        FamilyHandshake,
		BaseURL:       "https://anitube.in.ua",
		SearchPath:    "/engine/ajax/controller.php?mod=search",
		QueryField:    "query",
		TokenField:    "user_hash",
		DetailsToken:  "user_hash",
		parseHits:     parseAniTubeHits,
		parseEpisodes: parseCompoundItems,
	}
}

// AnimeOn returns the animeon.club site definition.
func AnimeOn() Site {
	return Site{
		ID:         "animeon",
		Family:     FamilyJSONAPI,
		BaseURL:    "https://animeon.club",
		SearchPath: "/api/anime/search?text=",
	}
}

// UAFlix returns the uafix.net site definition.
func UAFlix() Site {
	return Site{
		ID:            "uaflix",
		Family:        FamilyPlainHTML,
		BaseURL:       "https://uafix.net",
		SearchPath:    "/index.php?do=search&subaction=search&story=",
		parseHits:     parseUAFlixHits,
		parseEpisodes: parseVoicedItems,
	}
}
