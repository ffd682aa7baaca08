package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"stream2media/internal/media"
	"stream2media/internal/orchestrator"
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#2563EB"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	errStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#DC2626"))
)

// formatHit renders "Title / Translated (provider)". The placeholder
// translated title is omitted.
func formatHit(h media.SearchHit) string {
	s := h.Title
	if h.TitleTranslated != "" && h.TitleTranslated != media.NotSpecified {
		s += " / " + h.TitleTranslated
	}
	return fmt.Sprintf("%s (%s)", s, h.Provider)
}

func formatHits(hits []media.SearchHit) []string {
	items := make([]string, len(hits))
	for i, h := range hits {
		items[i] = formatHit(h)
	}
	return items
}

func formatGroups(groups []media.DubGroup) []string {
	items := make([]string, len(groups))
	for i, g := range groups {
		items[i] = fmt.Sprintf("%s (%d episodes)", g.Name, len(g.Episodes))
	}
	return items
}

func formatEpisodes(eps []media.Episode) []string {
	items := make([]string, len(eps))
	for i, ep := range eps {
		items[i] = ep.Label
		if n := len(ep.URLs); n > 1 {
			items[i] += fmt.Sprintf(" (%d mirrors)", n)
		}
	}
	return items
}

// printGroups writes a plain listing of dub groups and their episodes.
func printGroups(w io.Writer, groups []media.DubGroup) {
	for _, g := range groups {
		fmt.Fprintln(w, headingStyle.Render(g.Name))
		for _, ep := range g.Episodes {
			fmt.Fprintf(w, "  %s  %s\n", ep.Label, dimStyle.Render(ep.URL()))
		}
	}
}

// printPopulated writes one line per hit with its episode count or error.
func printPopulated(w io.Writer, details []orchestrator.Details) {
	for _, d := range details {
		if d.Err != nil {
			fmt.Fprintf(w, "%s  %s\n", formatHit(d.Hit), errStyle.Render(d.Err.Error()))
			continue
		}
		fmt.Fprintf(w, "%s  %s\n", formatHit(d.Hit),
			dimStyle.Render(fmt.Sprintf("%d groups, %d episodes", len(d.Groups), d.Episodes())))
	}
}

type hitJSON struct {
	Title           string `json:"title"`
	TitleTranslated string `json:"title_translated,omitempty"`
	Link            string `json:"link"`
	Poster          string `json:"poster,omitempty"`
	Provider        string `json:"provider"`
}

func hitsJSON(hits []media.SearchHit) []hitJSON {
	out := make([]hitJSON, len(hits))
	for i, h := range hits {
		out[i] = hitJSON{
			Title:           h.Title,
			TitleTranslated: h.TitleTranslated,
			Link:            h.Link,
			Poster:          h.PosterURL,
			Provider:        h.Provider,
		}
	}
	return out
}

type episodeJSON struct {
	Label string   `json:"label"`
	URLs  []string `json:"urls"`
}

type groupJSON struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Episodes []episodeJSON `json:"episodes"`
}

func groupsJSON(groups []media.DubGroup) []groupJSON {
	out := make([]groupJSON, len(groups))
	for i, g := range groups {
		out[i] = groupJSON{ID: g.ID, Name: g.Name, Episodes: make([]episodeJSON, len(g.Episodes))}
		for j, ep := range g.Episodes {
			out[i].Episodes[j] = episodeJSON{Label: ep.Label, URLs: ep.URLs}
		}
	}
	return out
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
