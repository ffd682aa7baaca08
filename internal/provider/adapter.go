package provider

import (
	"context"
	"net/url"
	"strings"

	"github.com/pkg/errors"
	"github.com/samber/mo"

	"stream2media/internal/capture"
	"stream2media/internal/logger"
	"stream2media/internal/media"
	"stream2media/internal/playlist"
)

// Adapter implements Provider for one Site by dispatching on its Family.
// Adapters hold no mutable state; a fresh one may be built per call.
type Adapter struct {
	site Site
	deps Deps
}

// NewAdapter binds a site definition to the shared collaborators.
func NewAdapter(site Site, deps Deps) *Adapter {
	return &Adapter{site: site, deps: deps}
}

// ID returns the registry identifier of the adapter's site.
func (a *Adapter) ID() string {
	return a.site.ID
}

// Site returns the bound site definition.
func (a *Adapter) Site() Site {
	return a.site
}

func (a *Adapter) tagged(ctx context.Context, subject, action string) context.Context {
	ctx = logger.With(ctx, "provider", a.site.ID)
	return capture.WithTags(ctx, capture.Tags{Provider: a.site.ID, Case: subject, Action: action})
}

// SearchTitle returns the site's hits for query in source order.
func (a *Adapter) SearchTitle(ctx context.Context, query string) ([]media.SearchHit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	ctx = a.tagged(ctx, query, "search")

	var (
		hits []media.SearchHit
		err  error
	)
	switch a.site.Family {
	case FamilyHandshake:
		hits, err = searchHandshake(ctx, a.deps, a.site, query)
	case FamilyJSONAPI:
		hits, err = searchJSONAPI(ctx, a.deps, a.site, query)
	case FamilyPlainHTML:
		hits, err = searchPlainHTML(ctx, a.deps, a.site, query)
	default:
		return nil, errors.Errorf("%s: unsupported family %s", a.site.ID, a.site.Family)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "%s search %q", a.site.ID, query)
	}

	logger.From(ctx).Debug("search complete", "query", query, "hits", len(hits))
	return hits, nil
}

// LoadDetailsPage returns the dub groups of the content page at pageURL.
func (a *Adapter) LoadDetailsPage(ctx context.Context, pageURL string) ([]media.DubGroup, error) {
	ctx = a.tagged(ctx, pageURL, "details")

	var (
		groups []media.DubGroup
		err    error
	)
	switch a.site.Family {
	case FamilyHandshake:
		groups, err = detailsHandshake(ctx, a.deps, a.site, pageURL)
	case FamilyJSONAPI:
		groups, err = detailsJSONAPI(ctx, a.deps, a.site, pageURL)
	case FamilyPlainHTML:
		groups, err = detailsPlainHTML(ctx, a.deps, a.site, pageURL)
	default:
		return nil, errors.Errorf("%s: unsupported family %s", a.site.ID, a.site.Family)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "%s details %s", a.site.ID, pageURL)
	}
	return groups, nil
}

// LoadPlayerPage downloads the stream behind an episode player page.
func (a *Adapter) LoadPlayerPage(ctx context.Context, pageURL string) (mo.Option[[]string], error) {
	if a.deps.Resolver == nil {
		return mo.None[[]string](), errors.Errorf("%s: no segment resolver configured", a.site.ID)
	}
	ctx = a.tagged(ctx, pageURL, "player")

	target := a.playerURL(pageURL)
	paths, err := a.deps.Resolver.Resolve(ctx, target)
	if errors.Is(err, playlist.ErrManifestNotFound) {
		logger.From(ctx).Warn("no stream on player page", "url", target)
		return mo.None[[]string](), nil
	}
	if err != nil {
		return mo.None[[]string](), errors.Wrapf(err, "%s player %s", a.site.ID, target)
	}
	if len(paths) == 0 {
		return mo.None[[]string](), nil
	}
	return mo.Some(paths), nil
}

// playerURL maps API links of JSON sources to their HTML player page.
// Links on other hosts are direct player URLs and pass through unchanged.
func (a *Adapter) playerURL(pageURL string) string {
	if a.site.Family != FamilyJSONAPI {
		return pageURL
	}
	page, err := url.Parse(pageURL)
	if err != nil {
		return pageURL
	}
	base, err := url.Parse(a.site.BaseURL)
	if err != nil || page.Host != base.Host {
		return pageURL
	}
	if id, ok := animeOnID(pageURL); ok {
		return a.site.url("/anime/" + id)
	}
	return pageURL
}
