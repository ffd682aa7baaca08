// Package capture dumps raw provider responses to disk for debugging parsers.
// Which provider, case and action a response belongs to is carried in the
// request context rather than in global state.
package capture

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/spf13/afero"
)

type tagsKey struct{}

// Tags label a captured response.
type Tags struct {
	Provider string
	Case     string
	Action   string
}

// WithTags returns ctx carrying t. Empty fields inherit from the parent tags.
func WithTags(ctx context.Context, t Tags) context.Context {
	parent := TagsFrom(ctx)
	if t.Provider == "" {
		t.Provider = parent.Provider
	}
	if t.Case == "" {
		t.Case = parent.Case
	}
	if t.Action == "" {
		t.Action = parent.Action
	}
	return context.WithValue(ctx, tagsKey{}, t)
}

// TagsFrom returns the tags in ctx with defaults for anything unset.
func TagsFrom(ctx context.Context) Tags {
	t, _ := ctx.Value(tagsKey{}).(Tags)
	if t.Provider == "" {
		t.Provider = "unknown"
	}
	if t.Case == "" {
		t.Case = "unspecified"
	}
	if t.Action == "" {
		t.Action = "response"
	}
	return t
}

// Recorder writes response bodies plus a .meta.json sidecar into a directory.
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	fs  afero.Fs
	dir string
	now func() time.Time
}

// NewRecorder returns a recorder writing under dir on fs.
func NewRecorder(fs afero.Fs, dir string) *Recorder {
	return &Recorder{fs: fs, dir: dir, now: time.Now}
}

type meta struct {
	URL        string              `json:"url"`
	StatusCode int                 `json:"status_code"`
	Headers    map[string][]string `json:"headers"`
	Error      string              `json:"error,omitempty"`
}

// Record stores body and its metadata. Write failures are returned but callers
// are expected to ignore them; capture must never break a request.
func (r *Recorder) Record(ctx context.Context, url string, status int, header http.Header, body []byte, reqErr error) (string, error) {
	if r == nil {
		return "", nil
	}
	if err := r.fs.MkdirAll(r.dir, 0o755); err != nil {
		return "", fmt.Errorf("creating capture dir: %w", err)
	}

	t := TagsFrom(ctx)
	name := fmt.Sprintf("%s_%s_%s.%s.%s",
		sanitize(t.Provider), sanitize(t.Case), sanitize(t.Action),
		r.now().UTC().Format("02012006150405"), extension(header))
	path := filepath.Join(r.dir, name)

	if err := afero.WriteFile(r.fs, path, body, 0o644); err != nil {
		return "", fmt.Errorf("writing capture: %w", err)
	}

	m := meta{URL: url, StatusCode: status, Headers: header}
	if reqErr != nil {
		m.Error = reqErr.Error()
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return path, err
	}
	if err := afero.WriteFile(r.fs, path+".meta.json", data, 0o644); err != nil {
		return path, fmt.Errorf("writing capture metadata: %w", err)
	}
	return path, nil
}

func extension(h http.Header) string {
	ct := h.Get("Content-Type")
	switch {
	case strings.Contains(ct, "json"):
		return "json"
	case strings.Contains(ct, "html"):
		return "html"
	case strings.Contains(ct, "xml"):
		return "xml"
	default:
		return "txt"
	}
}

func sanitize(s string) string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return '_'
	}, s)
	cleaned = strings.ToLower(strings.Trim(cleaned, "_"))
	if cleaned == "" {
		return "unknown"
	}
	return cleaned
}
