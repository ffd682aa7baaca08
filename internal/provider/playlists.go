package provider

import (
	"context"
	"net/url"
	"strconv"

	"github.com/pkg/errors"

	"stream2media/internal/capture"
	"stream2media/internal/httputil"
	"stream2media/internal/logger"
	"stream2media/internal/media"
)

// resolveNewsID returns the numeric id of a content page. DLE URLs carry it
// in the path; slug-only URLs require fetching the page, which is returned
// so callers can fall back to scraping it.
func resolveNewsID(ctx context.Context, deps Deps, pageURL string) (string, *httputil.Response, error) {
	if id, ok := ExtractID(pageURL); ok {
		return id, nil, nil
	}

	resp, err := deps.Client.Get(capture.WithTags(ctx, capture.Tags{Action: "page"}), pageURL, nil)
	if err != nil {
		return "", nil, errors.Wrap(err, "content page")
	}
	id, ok := FindNewsID(resp.Text())
	if !ok {
		logger.From(ctx).Debug("no content id on page", "url", pageURL)
		return "", resp, errors.Wrapf(ErrParse, "no content id in %s", pageURL)
	}
	return id, resp, nil
}

// loadPlaylists fetches the episode list fragment served by the DLE
// playlists endpoint: {"response": "<html>"}.
func loadPlaylists(ctx context.Context, deps Deps, site Site, newsID, referer string, params url.Values) ([]media.Episode, error) {
	params.Set("news_id", newsID)
	params.Set("xfield", "playlist")
	if site.DetailsToken == "" {
		params.Set("time", strconv.FormatInt(deps.now().Unix(), 10))
	}

	ctx = capture.WithTags(ctx, capture.Tags{Action: "playlists"})
	resp, err := deps.Client.Get(ctx, site.playlistsURL()+"?"+params.Encode(), map[string]string{
		"X-Requested-With": "XMLHttpRequest",
		"Referer":          referer,
	})
	if err != nil {
		return nil, errors.Wrap(err, "playlists request")
	}

	var envelope struct {
		Response string `json:"response"`
	}
	if err := resp.JSON(&envelope); err != nil {
		return nil, errors.Wrapf(ErrParse, "playlists envelope: %v", err)
	}

	doc, err := httputil.NewDocument(envelope.Response)
	if err != nil {
		return nil, errors.Wrapf(ErrParse, "playlists fragment: %v", err)
	}

	episodes := site.parseEpisodes(doc, site.ID)
	logger.From(ctx).Debug("parsed playlist", "news_id", newsID, "episodes", len(episodes))
	return episodes, nil
}
