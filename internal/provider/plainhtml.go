package provider

import (
	"context"
	"net/url"

	"github.com/pkg/errors"

	"stream2media/internal/capture"
	"stream2media/internal/httputil"
	"stream2media/internal/logger"
	"stream2media/internal/media"
)

// searchPlainHTML appends the encoded query to the search prefix and parses
// the returned page.
func searchPlainHTML(ctx context.Context, deps Deps, site Site, query string) ([]media.SearchHit, error) {
	resp, err := deps.Client.Get(ctx, site.url(site.SearchPath)+httputil.EncodeQuery(query), map[string]string{
		"Referer": site.BaseURL,
	})
	if err != nil {
		return nil, errors.Wrap(err, "search request")
	}

	doc, err := resp.Document()
	if err != nil {
		return nil, errors.Wrapf(ErrParse, "search results: %v", err)
	}
	return site.parseHits(doc, site), nil
}

// detailsPlainHTML prefers the playlists endpoint and falls back to the
// episode strip of the series page when the id is missing or the playlist
// is empty.
func detailsPlainHTML(ctx context.Context, deps Deps, site Site, pageURL string) ([]media.DubGroup, error) {
	log := logger.From(ctx)

	newsID, page, err := resolveNewsID(ctx, deps, pageURL)
	if err == nil {
		episodes, err := loadPlaylists(ctx, deps, site, newsID, pageURL, url.Values{})
		if err == nil && len(episodes) > 0 {
			return media.GroupByDubGroup(episodes), nil
		}
		log.Debug("playlist unavailable, scraping series page", "news_id", newsID, "err", err)
	} else if page == nil {
		return nil, err
	}

	if page == nil {
		page, err = deps.Client.Get(capture.WithTags(ctx, capture.Tags{Action: "page"}), pageURL, nil)
		if err != nil {
			return nil, errors.Wrap(err, "series page")
		}
	}

	doc, err := page.Document()
	if err != nil {
		return nil, errors.Wrapf(ErrParse, "series page: %v", err)
	}
	return media.GroupByDubGroup(parseUAFlixSeriesPage(doc, site)), nil
}
