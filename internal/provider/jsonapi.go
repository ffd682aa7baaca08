package provider

import (
	"context"
	"fmt"
	"net/url"

	"github.com/pkg/errors"

	"stream2media/internal/capture"
	"stream2media/internal/logger"
	"stream2media/internal/media"
)

const (
	animeOnImages   = "/api/uploads/images/"
	animeOnPageSize = 100
)

type animeOnSearchResponse struct {
	Result []animeOnTitle `json:"result"`
}

type animeOnTitle struct {
	ID      int64  `json:"id"`
	TitleUa string `json:"titleUa"`
	TitleEn string `json:"titleEn"`
	Poster  string `json:"poster"`
	Image   *struct {
		Original string `json:"original"`
		Preview  string `json:"preview"`
	} `json:"image"`
}

type animeOnTranslationsResponse struct {
	Translations []struct {
		Translation struct {
			ID   int64  `json:"id"`
			Name string `json:"name"`
		} `json:"translation"`
		Player []struct {
			ID            int64 `json:"id"`
			EpisodesCount int   `json:"episodesCount"`
		} `json:"player"`
	} `json:"translations"`
}

type animeOnEpisodesResponse struct {
	Episodes []struct {
		ID       int64  `json:"id"`
		Episode  *int   `json:"episode"`
		VideoURL string `json:"videoUrl"`
		FileURL  string `json:"fileUrl"`
	} `json:"episodes"`
}

func jsonHeaders(site Site) map[string]string {
	return map[string]string{
		"Accept":           "application/json",
		"X-Requested-With": "XMLHttpRequest",
		"Origin":           site.BaseURL,
		"Referer":          site.BaseURL + "/",
	}
}

// poster applies the poster → image.original → image.preview fallback.
func (t animeOnTitle) poster(site Site) string {
	name := t.Poster
	if name == "" && t.Image != nil {
		name = t.Image.Original
		if name == "" {
			name = t.Image.Preview
		}
	}
	if name == "" {
		return ""
	}
	return site.url(animeOnImages + name)
}

func searchJSONAPI(ctx context.Context, deps Deps, site Site, query string) ([]media.SearchHit, error) {
	resp, err := deps.Client.Get(ctx, site.url(site.SearchPath)+url.QueryEscape(query), jsonHeaders(site))
	if err != nil {
		return nil, errors.Wrap(err, "search request")
	}

	var body animeOnSearchResponse
	if err := resp.JSON(&body); err != nil {
		return nil, errors.Wrapf(ErrParse, "search response: %v", err)
	}

	hits := make([]media.SearchHit, 0, len(body.Result))
	for _, item := range body.Result {
		if item.ID == 0 {
			continue
		}
		title, translated := splitTitle(item.TitleUa, item.TitleEn)
		hits = append(hits, media.SearchHit{
			Title:           title,
			TitleTranslated: translated,
			Link:            site.url(fmt.Sprintf("/api/anime/%d", item.ID)),
			PosterURL:       item.poster(site),
			Provider:        site.ID,
		})
	}
	return uniqueHits(hits), nil
}

// detailsJSONAPI walks translations and, for each, the episode list of its
// first player. When the episode list is unavailable, placeholders pointing
// at the title's player page are produced from the advertised count.
func detailsJSONAPI(ctx context.Context, deps Deps, site Site, pageURL string) ([]media.DubGroup, error) {
	log := logger.From(ctx)

	id, ok := animeOnID(pageURL)
	if !ok {
		return nil, errors.Wrapf(ErrParse, "no anime id in %s", pageURL)
	}

	resp, err := deps.Client.Get(
		capture.WithTags(ctx, capture.Tags{Action: "translations"}),
		site.url("/api/player/"+id+"/translations"), jsonHeaders(site))
	if err != nil {
		return nil, errors.Wrap(err, "translations request")
	}

	var translations animeOnTranslationsResponse
	if err := resp.JSON(&translations); err != nil {
		return nil, errors.Wrapf(ErrParse, "translations response: %v", err)
	}

	playerPage := site.url("/anime/" + id)
	var flat []media.Episode

	for _, item := range translations.Translations {
		if len(item.Player) == 0 {
			continue
		}
		groupID := fmt.Sprintf("%d", item.Translation.ID)
		groupName := item.Translation.Name
		if groupName == "" {
			groupName = "Translation " + groupID
		}

		q := url.Values{}
		q.Set("take", fmt.Sprintf("%d", animeOnPageSize))
		q.Set("skip", "-1")
		q.Set("playerId", fmt.Sprintf("%d", item.Player[0].ID))
		q.Set("translationId", groupID)

		epResp, err := deps.Client.Get(
			capture.WithTags(ctx, capture.Tags{Action: "episodes"}),
			site.url("/api/player/"+id+"/episodes?"+q.Encode()), jsonHeaders(site))

		var episodes animeOnEpisodesResponse
		if err == nil {
			err = epResp.JSON(&episodes)
		}
		if err != nil {
			count := 0
			for _, p := range item.Player {
				count = max(count, p.EpisodesCount)
			}
			log.Debug("episode list unavailable, using placeholders", "translation", groupID, "count", count, "err", err)
			for n := 1; n <= count; n++ {
				flat = append(flat, media.NewEpisode(groupID, groupName, fmt.Sprintf("Серія %d", n), playerPage, site.ID))
			}
			continue
		}

		for _, ep := range episodes.Episodes {
			link := ep.VideoURL
			if link == "" {
				link = ep.FileURL
			}
			if link == "" {
				continue
			}
			label := fmt.Sprintf("Episode %d", ep.ID)
			if ep.Episode != nil {
				label = fmt.Sprintf("Серія %d", *ep.Episode)
			}
			flat = append(flat, media.NewEpisode(groupID, groupName, label, link, site.ID))
		}
	}

	return media.GroupByDubGroup(flat), nil
}
