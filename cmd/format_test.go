package cmd

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/pkg/errors"

	"stream2media/internal/config"
	"stream2media/internal/media"
	"stream2media/internal/orchestrator"
	"stream2media/internal/provider"
)

func TestFormatHit(t *testing.T) {
	tests := []struct {
		name string
		hit  media.SearchHit
		want string
	}{
		{
			"with translated title",
			media.SearchHit{Title: "Тіні", TitleTranslated: "Shadows", Provider: "uakino"},
			"Тіні / Shadows (uakino)",
		},
		{
			"placeholder translated title",
			media.SearchHit{Title: "Тіні", TitleTranslated: media.NotSpecified, Provider: "anitube"},
			"Тіні (anitube)",
		},
		{
			"no translated title",
			media.SearchHit{Title: "Naruto", Provider: "animeon"},
			"Naruto (animeon)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatHit(tt.hit); got != tt.want {
				t.Errorf("formatHit() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatEpisodes(t *testing.T) {
	ep := media.NewEpisode("g", "G", "Серія 1", "u1", "p")
	ep.AddURL("u2")
	items := formatEpisodes([]media.Episode{ep, media.NewEpisode("g", "G", "Серія 2", "u3", "p")})

	want := []string{"Серія 1 (2 mirrors)", "Серія 2"}
	for i := range want {
		if items[i] != want[i] {
			t.Errorf("items[%d] = %q, want %q", i, items[i], want[i])
		}
	}
}

func TestFormatGroups(t *testing.T) {
	groups := []media.DubGroup{{Name: "Studio", Episodes: make([]media.Episode, 3)}}
	if got := formatGroups(groups)[0]; got != "Studio (3 episodes)" {
		t.Errorf("formatGroups() = %q", got)
	}
}

func TestPrintGroups(t *testing.T) {
	groups := media.GroupByDubGroup([]media.Episode{
		media.NewEpisode("g", "Studio", "Серія 1", "https://x/1", "p"),
	})

	var buf bytes.Buffer
	printGroups(&buf, groups)

	out := buf.String()
	if !strings.Contains(out, "Studio") || !strings.Contains(out, "Серія 1") || !strings.Contains(out, "https://x/1") {
		t.Errorf("printGroups output missing fields: %q", out)
	}
}

func TestPrintPopulated(t *testing.T) {
	details := []orchestrator.Details{
		{Hit: media.SearchHit{Title: "A", Provider: "p"}, Groups: []media.DubGroup{{Episodes: make([]media.Episode, 2)}}},
		{Hit: media.SearchHit{Title: "B", Provider: "q"}, Err: errors.New("timeout")},
	}

	var buf bytes.Buffer
	printPopulated(&buf, details)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], "1 groups, 2 episodes") {
		t.Errorf("line 0 = %q", lines[0])
	}
	if !strings.Contains(lines[1], "timeout") {
		t.Errorf("line 1 = %q", lines[1])
	}
}

func TestGroupsJSON(t *testing.T) {
	groups := media.GroupByDubGroup([]media.Episode{
		media.NewEpisode("g", "Studio", "Серія 1", "https://x/1", "p"),
	})

	var buf bytes.Buffer
	if err := writeJSON(&buf, groupsJSON(groups)); err != nil {
		t.Fatalf("writeJSON() error: %v", err)
	}

	var decoded []map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if decoded[0]["name"] != "Studio" {
		t.Errorf("name = %v", decoded[0]["name"])
	}
}

func TestPrintProviders(t *testing.T) {
	c := config.Default()
	c.SetEnabled("uaflix", false)

	var buf bytes.Buffer
	printProviders(&buf, provider.Default(), c)

	out := buf.String()
	for _, want := range []string{"animeon", "json-api", "uakino", "hash-handshake"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q: %q", want, out)
		}
	}
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "uaflix") && !strings.Contains(line, "disabled") {
			t.Errorf("uaflix should be disabled: %q", line)
		}
	}
}
