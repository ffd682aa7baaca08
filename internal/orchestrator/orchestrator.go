// Package orchestrator fans searches and detail requests out across the
// enabled providers and hands selected items to a Converter.
package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/samber/mo"

	"stream2media/internal/config"
	"stream2media/internal/httputil"
	"stream2media/internal/logger"
	"stream2media/internal/media"
	"stream2media/internal/provider"
)

var (
	// ErrUnsupportedItem is returned by ProcessItem for anything that is not
	// a search hit or an episode.
	ErrUnsupportedItem = errors.New("unsupported item type")
	// ErrNoDetails is returned when a hit has no episodes.
	ErrNoDetails = errors.New("no episodes found")
	// ErrNoURL is returned for an episode without a player URL.
	ErrNoURL = errors.New("episode has no player url")
	// ErrUnknownProvider mirrors provider.ErrUnknownProvider at this boundary.
	ErrUnknownProvider = provider.ErrUnknownProvider
)

// Converter turns one episode into an output file. title is the owning hit's
// title and is empty when an episode is processed on its own.
type Converter interface {
	Convert(ctx context.Context, title string, ep media.Episode) error
}

// Orchestrator is safe for concurrent use; it holds no per-request state.
type Orchestrator struct {
	cfg  *config.Config
	reg  *provider.Registry
	conv Converter
	deps provider.Deps
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithDeps sets the collaborators handed to every adapter.
func WithDeps(deps provider.Deps) Option {
	return func(o *Orchestrator) {
		o.deps = deps
	}
}

// New returns an orchestrator over the providers enabled in cfg. Without
// WithDeps adapters share a client built from cfg.
func New(cfg *config.Config, reg *provider.Registry, conv Converter, opts ...Option) *Orchestrator {
	o := &Orchestrator{cfg: cfg, reg: reg, conv: conv}
	for _, opt := range opts {
		opt(o)
	}
	if o.deps.Client == nil {
		o.deps.Client = httputil.NewClient(httputil.Options{
			Timeout:      cfg.Timeout.Duration,
			MinHostDelay: cfg.MinHostDelay.Duration,
			UserAgent:    cfg.UserAgent,
		})
	}
	return o
}

// Deps returns the adapter collaborators.
func (o *Orchestrator) Deps() provider.Deps {
	return o.deps
}

type outcome struct {
	provider string
	result   mo.Result[[]media.SearchHit]
}

// Search queries every enabled provider concurrently. Failed providers are
// logged and contribute nothing. Hits are ordered by provider declaration
// order, each provider's hits in source order.
func (o *Orchestrator) Search(ctx context.Context, query string) []media.SearchHit {
	ids := o.cfg.EnabledProviders()
	outcomes := make([]outcome, len(ids))

	var wg sync.WaitGroup
	wg.Add(len(ids))
	for i, id := range ids {
		go func(i int, id string) {
			defer wg.Done()
			outcomes[i] = o.searchOne(ctx, id, query)
		}(i, id)
	}
	wg.Wait()

	log := logger.From(ctx)
	var hits []media.SearchHit
	for _, out := range outcomes {
		found, err := out.result.Get()
		if err != nil {
			log.Warn("search failed", "provider", out.provider, "err", err)
			continue
		}
		log.Debug("search done", "provider", out.provider, "hits", len(found))
		hits = append(hits, found...)
	}
	return hits
}

func (o *Orchestrator) searchOne(ctx context.Context, id, query string) (out outcome) {
	out.provider = id
	defer func() {
		if r := recover(); r != nil {
			out.result = mo.Err[[]media.SearchHit](errors.Errorf("provider %s panicked: %v", id, r))
		}
	}()

	ctx = logger.With(ctx, "provider", id)
	p, err := o.reg.New(id, o.deps)
	if err != nil {
		out.result = mo.Err[[]media.SearchHit](err)
		return out
	}

	hits, err := p.SearchTitle(ctx, query)
	if err != nil {
		out.result = mo.Err[[]media.SearchHit](err)
		return out
	}
	out.result = mo.Ok(hits)
	return out
}

// LoadDetails asks a single provider for the dub groups behind url.
func (o *Orchestrator) LoadDetails(ctx context.Context, providerID, url string) ([]media.DubGroup, error) {
	ctx = logger.With(ctx, "provider", providerID)
	p, err := o.reg.New(providerID, o.deps)
	if err != nil {
		logger.From(ctx).Error("cannot load details", "err", err)
		return nil, err
	}
	return p.LoadDetailsPage(ctx, url)
}

// ProcessItem converts a search hit (its first episode) or a single episode.
// Both values and pointers are accepted.
func (o *Orchestrator) ProcessItem(ctx context.Context, item any) error {
	switch v := item.(type) {
	case media.SearchHit:
		return o.processHit(ctx, v)
	case *media.SearchHit:
		if v == nil {
			return errors.Wrap(ErrUnsupportedItem, "nil search hit")
		}
		return o.processHit(ctx, *v)
	case media.Episode:
		return o.ProcessEpisode(ctx, "", v)
	case *media.Episode:
		if v == nil {
			return errors.Wrap(ErrUnsupportedItem, "nil episode")
		}
		return o.ProcessEpisode(ctx, "", *v)
	default:
		return errors.Wrapf(ErrUnsupportedItem, "%T", item)
	}
}

func (o *Orchestrator) processHit(ctx context.Context, hit media.SearchHit) error {
	groups, err := o.LoadDetails(ctx, hit.Provider, hit.Link)
	if err != nil {
		return errors.Wrapf(err, "loading details of %q", hit.Title)
	}
	ep, ok := media.First(groups)
	if !ok {
		return errors.Wrapf(ErrNoDetails, "%s (%s)", hit.Title, hit.Provider)
	}
	return o.ProcessEpisode(ctx, hit.Title, ep)
}

// ProcessEpisode converts ep, naming the output after title when it is set.
func (o *Orchestrator) ProcessEpisode(ctx context.Context, title string, ep media.Episode) error {
	if ep.URL() == "" {
		return errors.Wrap(ErrNoURL, ep.String())
	}
	if o.conv == nil {
		return errors.New("no converter configured")
	}
	ctx = logger.With(ctx, "provider", ep.Provider)
	logger.From(ctx).Info("processing", "episode", ep.Label, "group", ep.DubGroupName)
	return o.conv.Convert(ctx, title, ep)
}

// Providers splits the enabled ids into those the registry knows and the rest.
func (o *Orchestrator) Providers() (known, unknown []string) {
	return lo.FilterReject(o.cfg.EnabledProviders(), func(id string, _ int) bool {
		return o.reg.Has(id)
	})
}

func describe(hit media.SearchHit) string {
	return fmt.Sprintf("%s [%s]", hit.Title, hit.Provider)
}
