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

// fetchToken loads the home page and scrapes the session token from its
// inline scripts. The token is never cached: every search and details call
// performs its own handshake.
func fetchToken(ctx context.Context, deps Deps, site Site) (string, error) {
	ctx = capture.WithTags(ctx, capture.Tags{Action: "handshake"})

	resp, err := deps.Client.Get(ctx, site.BaseURL+"/", nil)
	if err != nil {
		return "", errors.Wrapf(ErrHandshake, "%s: %v", site.ID, err)
	}
	doc, err := resp.Document()
	if err != nil {
		return "", errors.Wrapf(ErrHandshake, "%s: %v", site.ID, err)
	}

	token, ok := ExtractToken(doc)
	if !ok {
		logger.From(ctx).Warn("session token missing from home page", "url", resp.URL)
		return "", errors.Wrapf(ErrHandshake, "%s", site.ID)
	}
	return token, nil
}

// searchHandshake posts the raw query together with a fresh session token.
func searchHandshake(ctx context.Context, deps Deps, site Site, query string) ([]media.SearchHit, error) {
	token, err := fetchToken(ctx, deps, site)
	if err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set(site.QueryField, query)
	form.Set(site.TokenField, token)
	for k, v := range site.ExtraForm {
		form.Set(k, v)
	}

	resp, err := deps.Client.PostForm(ctx, site.url(site.SearchPath), form, map[string]string{
		"X-Requested-With": "XMLHttpRequest",
		"Referer":          site.BaseURL + "/",
		"Origin":           site.BaseURL,
	})
	if err != nil {
		return nil, errors.Wrap(err, "search request")
	}

	body := resp.Text()
	if site.SearchEnvelope {
		var envelope struct {
			Content string `json:"content"`
		}
		if err := resp.JSON(&envelope); err != nil {
			return nil, errors.Wrapf(ErrParse, "search envelope: %v", err)
		}
		body = envelope.Content
	}

	doc, err := httputil.NewDocument(body)
	if err != nil {
		return nil, errors.Wrapf(ErrParse, "search results: %v", err)
	}
	return site.parseHits(doc, site), nil
}

// detailsHandshake loads the playlists fragment for a content page. Sources
// that require it get a freshly fetched token on the request.
func detailsHandshake(ctx context.Context, deps Deps, site Site, pageURL string) ([]media.DubGroup, error) {
	newsID, _, err := resolveNewsID(ctx, deps, pageURL)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	if site.DetailsToken != "" {
		token, err := fetchToken(ctx, deps, site)
		if err != nil {
			return nil, err
		}
		params.Set(site.DetailsToken, token)
	}

	episodes, err := loadPlaylists(ctx, deps, site, newsID, pageURL, params)
	if err != nil {
		return nil, err
	}
	return media.GroupByDubGroup(episodes), nil
}
