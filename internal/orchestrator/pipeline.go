package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"

	"stream2media/internal/download"
	"stream2media/internal/history"
	"stream2media/internal/logger"
	"stream2media/internal/media"
	"stream2media/internal/provider"
)

// ErrNoStream is returned when none of an episode's mirrors yields segments.
var ErrNoStream = errors.New("no playable stream")

// Ledger records processed episodes.
type Ledger interface {
	Record(ctx context.Context, e history.Entry) error
}

// Pipeline is the default Converter: it resolves the episode's player page
// to local segments, assembles them into one file and records the outcome.
type Pipeline struct {
	Registry  *provider.Registry
	Deps      provider.Deps
	Assembler *download.Assembler
	Format    string
	Ledger    Ledger // optional
	Now       func() time.Time
}

// Convert implements Converter.
func (p *Pipeline) Convert(ctx context.Context, title string, ep media.Episode) error {
	prov, err := p.Registry.New(ep.Provider, p.Deps)
	if err != nil {
		return err
	}

	var out string
	segments, err := p.segments(ctx, prov, ep)
	if err == nil {
		out, err = p.Assembler.Assemble(ctx, segments, OutputName(title, ep), p.Format)
		if err == nil {
			p.Assembler.Cleanup(segments)
			logger.From(ctx).Info("saved", "path", out, "segments", len(segments))
		}
	}

	p.record(ctx, title, ep, out, err)
	return err
}

// segments tries each mirror in order until one yields a stream.
func (p *Pipeline) segments(ctx context.Context, prov provider.Provider, ep media.Episode) ([]string, error) {
	lastErr := ErrNoStream
	for _, u := range ep.URLs {
		found, err := prov.LoadPlayerPage(ctx, u)
		if err != nil {
			logger.From(ctx).Warn("mirror failed", "url", u, "err", err)
			lastErr = err
			continue
		}
		if paths, ok := found.Get(); ok {
			return paths, nil
		}
	}
	return nil, errors.Wrap(lastErr, ep.String())
}

func (p *Pipeline) record(ctx context.Context, title string, ep media.Episode, out string, convErr error) {
	if p.Ledger == nil {
		return
	}

	entry := history.Entry{
		Provider:   ep.Provider,
		Title:      title,
		Label:      ep.Label,
		DubGroup:   ep.DubGroupName,
		URL:        ep.URL(),
		OutputPath: out,
		Status:     history.StatusDone,
	}
	if p.Now != nil {
		entry.ProcessedAt = p.Now()
	}
	if convErr != nil {
		entry.Status = history.StatusFailed
		entry.Error = convErr.Error()
	}

	if err := p.Ledger.Record(ctx, entry); err != nil {
		logger.From(ctx).Warn("could not record history", "err", err)
	}
}

// OutputName builds the base file name for an episode, without extension.
func OutputName(title string, ep media.Episode) string {
	name := fmt.Sprintf("%s [%s]", ep.Label, ep.DubGroupName)
	if title != "" {
		name = title + " - " + name
	}
	// Slashes would be taken as directories before sanitizing.
	return strings.ReplaceAll(name, "/", "_")
}
