package provider

import (
	"fmt"
	"html"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/samber/lo"

	"stream2media/internal/httputil"
	"stream2media/internal/media"
)

var (
	tokenPattern = regexp.MustCompile(`var dle_login_hash = '(\w+)';`)
	idPattern    = regexp.MustCompile(`/(\d+)-|/(\d+)\.html`)

	// Tried in order; DLE pages embed the id in links, inline config or data attributes.
	newsIDPatterns = []*regexp.Regexp{
		regexp.MustCompile(`playlists\.php\?[^"'\s]*news_id=(\d+)`),
		regexp.MustCompile(`news_id['"]?\s*[=:]\s*['"]?(\d+)`),
		regexp.MustCompile(`(?i)newsid['"]?\s*[=:]\s*['"]?(\d+)`),
	}
)

// CleanText decodes HTML entities, drops carriage returns, collapses
// whitespace runs to single spaces and trims the result.
func CleanText(s string) string {
	s = html.UnescapeString(s)
	s = strings.ReplaceAll(s, "\r", "")
	return strings.Join(strings.Fields(s), " ")
}

// ExtractID returns the numeric content id of a DLE-style URL such as
// "/1234-title" or "/987.html". Slug-only URLs report false.
func ExtractID(rawURL string) (string, bool) {
	m := idPattern.FindStringSubmatch(rawURL)
	if m == nil {
		return "", false
	}
	if m[1] != "" {
		return m[1], true
	}
	return m[2], true
}

// ExtractToken finds the session token in the inline scripts of a home page.
func ExtractToken(doc *goquery.Document) (string, bool) {
	var token string
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := s.Text()
		if !strings.Contains(text, "var dle_login_hash") {
			return true
		}
		if m := tokenPattern.FindStringSubmatch(text); m != nil {
			token = m[1]
			return false
		}
		return true
	})
	return token, token != ""
}

// FindNewsID scans a raw page for the numeric id used by the playlists endpoint.
func FindNewsID(body string) (string, bool) {
	for _, re := range newsIDPatterns {
		if m := re.FindStringSubmatch(body); m != nil {
			return m[1], true
		}
	}
	return "", false
}

// animeOnID extracts the trailing numeric id of an API or player URL,
// e.g. ".../api/anime/7326" or ".../anime/7326/".
func animeOnID(rawURL string) (string, bool) {
	trimmed := strings.TrimRight(rawURL, "/")
	last := trimmed[strings.LastIndex(trimmed, "/")+1:]
	if httputil.ValidateNumericID(last) != nil {
		return "", false
	}
	return last, true
}

// splitTitle derives the display and translated titles. An explicit
// translated title wins; otherwise "Title / Original" is split.
func splitTitle(title, translated string) (string, string) {
	if translated != "" {
		return title, translated
	}
	if before, after, ok := strings.Cut(title, "/"); ok {
		return strings.TrimSpace(before), strings.TrimSpace(after)
	}
	return title, media.NotSpecified
}

func unescapeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if u, err := url.PathUnescape(raw); err == nil {
		return u
	}
	return raw
}

// normalizeFileURL gives protocol-relative player URLs an https scheme.
func normalizeFileURL(file string) string {
	if strings.HasPrefix(file, "//") {
		return "https:" + file
	}
	return file
}

func uniqueHits(hits []media.SearchHit) []media.SearchHit {
	return lo.UniqBy(hits, func(h media.SearchHit) string { return h.Link })
}

// parseUAKinoHits reads the HTML fragment of the uakino search envelope.
func parseUAKinoHits(doc *goquery.Document, site Site) []media.SearchHit {
	var hits []media.SearchHit

	doc.Find("a.search-result-link").Each(func(_ int, s *goquery.Selection) {
		link := unescapeURL(s.AttrOr("href", ""))
		if link == "" {
			return
		}

		poster := unescapeURL(s.Find("img").First().AttrOr("src", ""))
		if poster != "" {
			poster = httputil.ResolveReference(site.BaseURL, poster)
		}

		title, translated := splitTitle(
			CleanText(s.Find("span.searchheading").Text()),
			CleanText(s.Find("span.search-orig-title").Text()),
		)

		hits = append(hits, media.SearchHit{
			Title:           title,
			TitleTranslated: translated,
			Link:            link,
			PosterURL:       poster,
			Provider:        site.ID,
		})
	})

	return uniqueHits(hits)
}

// parseAniTubeHits reads the raw HTML returned by the anitube search controller.
func parseAniTubeHits(doc *goquery.Document, site Site) []media.SearchHit {
	var hits []media.SearchHit

	doc.Find(`a[style="display: block;"]`).Each(func(_ int, s *goquery.Selection) {
		link := unescapeURL(s.AttrOr("href", ""))
		if link == "" {
			return
		}

		poster := unescapeURL(s.Find("img").First().AttrOr("src", ""))
		if poster != "" {
			poster = httputil.ResolveReference(site.BaseURL, poster)
		}

		title, translated := splitTitle(CleanText(s.Find("b.searchheading_title").Text()), "")

		hits = append(hits, media.SearchHit{
			Title:           title,
			TitleTranslated: translated,
			Link:            link,
			PosterURL:       poster,
			Provider:        site.ID,
		})
	})

	return uniqueHits(hits)
}

// parseUAFlixHits reads the uafix.net search results page.
func parseUAFlixHits(doc *goquery.Document, site Site) []media.SearchHit {
	var hits []media.SearchHit

	doc.Find("a.sres-wrap").Each(func(_ int, s *goquery.Selection) {
		link := unescapeURL(s.AttrOr("href", ""))
		if link == "" {
			return
		}

		poster := unescapeURL(s.Find("img").First().AttrOr("src", ""))
		if poster != "" && !strings.HasPrefix(poster, "http") {
			poster = site.BaseURL + poster
		}

		title, translated := splitTitle(CleanText(s.Find("h2").First().Text()), "")

		hits = append(hits, media.SearchHit{
			Title:           title,
			TitleTranslated: translated,
			Link:            link,
			PosterURL:       poster,
			Provider:        site.ID,
		})
	})

	return uniqueHits(hits)
}

// parseVoicedItems reads playlist items that carry their dub group on the
// element itself: <li data-id data-file data-voice>.
func parseVoicedItems(doc *goquery.Document, provider string) []media.Episode {
	var episodes []media.Episode

	doc.Find("li[data-id][data-file]").Each(func(_ int, s *goquery.Selection) {
		id := s.AttrOr("data-id", "")
		file := strings.TrimSpace(s.AttrOr("data-file", ""))
		voice, ok := s.Attr("data-voice")
		if id == "" || file == "" || !ok {
			return
		}

		episodes = append(episodes, media.NewEpisode(
			id, CleanText(voice), CleanText(s.Text()), normalizeFileURL(file), provider,
		))
	})

	return episodes
}

// parseCompoundItems reads playlist items whose dub group is declared by a
// sibling element. An item "base_1" belongs to the group named by the
// element whose data-id is "base".
func parseCompoundItems(doc *goquery.Document, provider string) []media.Episode {
	names := make(map[string]string)
	doc.Find("li[data-id]").Each(func(_ int, s *goquery.Selection) {
		if _, isItem := s.Attr("data-file"); isItem {
			return
		}
		id := s.AttrOr("data-id", "")
		if _, seen := names[id]; !seen {
			names[id] = CleanText(s.Text())
		}
	})

	var episodes []media.Episode
	doc.Find("li[data-file]").Each(func(_ int, s *goquery.Selection) {
		id := s.AttrOr("data-id", "")
		file := strings.TrimSpace(s.AttrOr("data-file", ""))
		if id == "" || file == "" {
			return
		}

		base := ""
		if i := strings.LastIndex(id, "_"); i >= 0 {
			base = id[:i]
		}
		name, ok := names[base]
		if !ok {
			name = "Unknown"
		}

		episodes = append(episodes, media.NewEpisode(
			id, name, CleanText(s.Text()), normalizeFileURL(file), provider,
		))
	})

	return episodes
}

// parseUAFlixSeriesPage reads the episode strip of a slug-only series page.
// Each entry links to an episode page that hosts the player.
func parseUAFlixSeriesPage(doc *goquery.Document, site Site) []media.Episode {
	container := doc.Find("#sers-wr").First()
	if container.Length() == 0 {
		container = doc.Find(".frels2").First()
	}
	if container.Length() == 0 {
		return nil
	}

	var episodes []media.Episode
	container.Find(".video-item").Each(func(idx int, s *goquery.Selection) {
		href := unescapeURL(s.Find("a.vi-img").First().AttrOr("href", ""))
		lower := strings.ToLower(href)
		if href == "" || !strings.Contains(lower, "season") || !strings.Contains(lower, "episode") {
			return
		}
		if !strings.HasPrefix(href, "http") {
			href = httputil.ResolveReference(site.BaseURL+"/", href)
		}

		parts := lo.Compact([]string{
			CleanText(s.Find(".vi-title").Text()),
			CleanText(s.Find(".vi-rate").Text()),
		})
		label := strings.Join(parts, " ")
		if label == "" {
			label = fmt.Sprintf("Episode %d", idx+1)
		}

		episodes = append(episodes, media.NewEpisode(site.ID, "UAFlix", label, href, site.ID))
	})

	return episodes
}
