package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stream2media/internal/httputil"
	"stream2media/internal/playlist"
)

func fixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile("testdata/" + name)
	require.NoError(t, err)
	return data
}

func testDeps() Deps {
	return Deps{
		Client: httputil.NewClient(httputil.Options{Timeout: 5 * time.Second}),
		Now:    func() time.Time { return time.Unix(1700000000, 0) },
	}
}

func onServer(site Site, srv *httptest.Server) Site {
	site.BaseURL = srv.URL
	return site
}

func TestHandshakeSearchPostsTokenAndRawQuery(t *testing.T) {
	var homeHits, searchHits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			homeHits.Add(1)
			w.Write(fixture(t, "anitube_home.html"))
		case "/engine/lazydev/dle_search/ajax.php":
			searchHits.Add(1)
			_ = r.ParseForm()
			if r.Method != http.MethodPost || r.PostForm.Get("story") != "the new gate" ||
				r.PostForm.Get("dle_hash") != "a1b2c3d4e5" || r.PostForm.Get("thisUrl") != "/index.php" {
				http.Error(w, "bad form", http.StatusBadRequest)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write(fixture(t, "uakino_search.json"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	a := NewAdapter(onServer(UAKino(), srv), testDeps())

	hits, err := a.SearchTitle(context.Background(), "the new gate")
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "uakino", hits[0].Provider)

	_, err = a.SearchTitle(context.Background(), "the new gate")
	require.NoError(t, err)
	assert.Equal(t, int32(2), homeHits.Load(), "token must be fetched for every search")
	assert.Equal(t, int32(2), searchHits.Load())
}

func TestHandshakeSearchFailsClosedWithoutToken(t *testing.T) {
	var searchHits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			fmt.Fprint(w, `<html><script>var dle_root = '/';</script></html>`)
			return
		}
		searchHits.Add(1)
		fmt.Fprint(w, `{"content":""}`)
	}))
	defer srv.Close()

	a := NewAdapter(onServer(AniTube(), srv), testDeps())
	hits, err := a.SearchTitle(context.Background(), "naruto")

	assert.Empty(t, hits)
	assert.True(t, errors.Is(err, ErrHandshake), "got %v", err)
	assert.Zero(t, searchHits.Load(), "search must not be attempted without a token")
}

func TestHandshakeDetailsSendsFreshToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			w.Write(fixture(t, "anitube_home.html"))
		case "/engine/ajax/playlists.php":
			q := r.URL.Query()
			if q.Get("news_id") != "4321" || q.Get("user_hash") != "a1b2c3d4e5" || q.Get("xfield") != "playlist" {
				http.Error(w, "bad query", http.StatusBadRequest)
				return
			}
			w.Write(fixture(t, "anitube_playlist.json"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	a := NewAdapter(onServer(AniTube(), srv), testDeps())
	groups, err := a.LoadDetailsPage(context.Background(), srv.URL+"/4321-naruto.html")
	require.NoError(t, err)
	require.Len(t, groups, 3)
	assert.Equal(t, "Studio Base", groups[0].Name)
	assert.Len(t, groups[0].Episodes, 2)
}

func TestHandshakeDetailsUsesTimestampWithoutToken(t *testing.T) {
	var homeHits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			homeHits.Add(1)
			w.Write(fixture(t, "anitube_home.html"))
		case "/engine/ajax/playlists.php":
			if r.URL.Query().Get("time") != "1700000000" {
				http.Error(w, "missing time", http.StatusBadRequest)
				return
			}
			w.Write(fixture(t, "uakino_playlist.json"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	a := NewAdapter(onServer(UAKino(), srv), testDeps())
	groups, err := a.LoadDetailsPage(context.Background(), srv.URL+"/animeukr/1234-brama.html")
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, []string{"https://ashdi.vip/vod/101", "https://zetvideo.net/vod/101"}, groups[0].Episodes[0].URLs)
	assert.Zero(t, homeHits.Load())
}

func TestJSONAPISearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/anime/search" || r.URL.Query().Get("text") != "naruto shippuden" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"result":[
			{"id":7326,"titleUa":"Наруто","titleEn":"Naruto","poster":"p.jpg"},
			{"id":7327,"titleUa":"Наруто 2","titleEn":"Naruto 2","image":{"original":"o.jpg","preview":"s.jpg"}},
			{"id":7328,"titleUa":"Наруто 3","titleEn":"","image":{"preview":"s3.jpg"}},
			{"id":7326,"titleUa":"Дубль","titleEn":"Dup"}
		]}`)
	}))
	defer srv.Close()

	a := NewAdapter(onServer(AnimeOn(), srv), testDeps())
	hits, err := a.SearchTitle(context.Background(), "naruto shippuden")
	require.NoError(t, err)
	require.Len(t, hits, 3)

	assert.Equal(t, srv.URL+"/api/anime/7326", hits[0].Link)
	assert.Equal(t, srv.URL+"/api/uploads/images/p.jpg", hits[0].PosterURL)
	assert.Equal(t, srv.URL+"/api/uploads/images/o.jpg", hits[1].PosterURL)
	assert.Equal(t, srv.URL+"/api/uploads/images/s3.jpg", hits[2].PosterURL)
	assert.Equal(t, "Naruto", hits[0].TitleTranslated)
}

func TestJSONAPIDetailsWithPlaceholders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/player/7326/translations":
			fmt.Fprint(w, `{"translations":[
				{"translation":{"id":11,"name":"Dub One"},"player":[{"id":1,"episodesCount":2}]},
				{"translation":{"id":12,"name":""},"player":[{"id":2,"episodesCount":1},{"id":3,"episodesCount":3}]},
				{"translation":{"id":13,"name":"No Player"},"player":[]}
			]}`)
		case "/api/player/7326/episodes":
			if r.URL.Query().Get("translationId") == "12" {
				http.Error(w, "boom", http.StatusInternalServerError)
				return
			}
			fmt.Fprint(w, `{"episodes":[
				{"id":100,"episode":1,"videoUrl":"https://ashdi.vip/vod/100"},
				{"id":101,"episode":2,"fileUrl":"https://ashdi.vip/file/101"},
				{"id":102,"episode":3}
			]}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	a := NewAdapter(onServer(AnimeOn(), srv), testDeps())
	groups, err := a.LoadDetailsPage(context.Background(), srv.URL+"/api/anime/7326")
	require.NoError(t, err)
	require.Len(t, groups, 2)

	assert.Equal(t, "Dub One", groups[0].Name)
	require.Len(t, groups[0].Episodes, 2)
	assert.Equal(t, "Серія 2", groups[0].Episodes[1].Label)
	assert.Equal(t, "https://ashdi.vip/file/101", groups[0].Episodes[1].URL())

	assert.Equal(t, "Translation 12", groups[1].Name)
	require.Len(t, groups[1].Episodes, 3)
	assert.Equal(t, "Серія 3", groups[1].Episodes[2].Label)
	assert.Equal(t, srv.URL+"/anime/7326", groups[1].Episodes[0].URL())
}

func TestPlainHTMLSearchEncodesQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if r.URL.Path != "/index.php" || q.Get("do") != "search" || q.Get("story") != "rick & morty" {
			http.NotFound(w, r)
			return
		}
		w.Write(fixture(t, "uaflix_search.html"))
	}))
	defer srv.Close()

	site := onServer(UAFlix(), srv)
	hits, err := NewAdapter(site, testDeps()).SearchTitle(context.Background(), "rick & morty")
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, srv.URL+"/uploads/posts/rick.jpg", hits[0].PosterURL)
}

func TestPlainHTMLDetailsFallsBackToSeriesPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/serials/rik-i-morti/" {
			w.Write(fixture(t, "uaflix_series.html"))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	a := NewAdapter(onServer(UAFlix(), srv), testDeps())
	groups, err := a.LoadDetailsPage(context.Background(), srv.URL+"/serials/rik-i-morti/")
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Len(t, groups[0].Episodes, 2)
}

func TestPlainHTMLDetailsUsesDiscoveredNewsID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/serials/slug/":
			fmt.Fprint(w, `<script>$.get("/engine/ajax/playlists.php?news_id=2024&xfield=playlist");</script>`)
		case "/engine/ajax/playlists.php":
			if r.URL.Query().Get("news_id") != "2024" {
				http.NotFound(w, r)
				return
			}
			w.Write(fixture(t, "uakino_playlist.json"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	a := NewAdapter(onServer(UAFlix(), srv), testDeps())
	groups, err := a.LoadDetailsPage(context.Background(), srv.URL+"/serials/slug/")
	require.NoError(t, err)
	assert.Len(t, groups, 2)
}

type fakeResolver struct {
	paths []string
	err   error
	seen  string
}

func (f *fakeResolver) Resolve(_ context.Context, pageURL string) ([]string, error) {
	f.seen = pageURL
	return f.paths, f.err
}

func TestLoadPlayerPage(t *testing.T) {
	t.Run("segments", func(t *testing.T) {
		deps := testDeps()
		deps.Resolver = &fakeResolver{paths: []string{"/w/1.ts", "/w/2.ts"}}
		got, err := NewAdapter(UAKino(), deps).LoadPlayerPage(context.Background(), "https://ashdi.vip/vod/1")
		require.NoError(t, err)
		paths, ok := got.Get()
		require.True(t, ok)
		assert.Len(t, paths, 2)
	})

	t.Run("no manifest is none", func(t *testing.T) {
		deps := testDeps()
		deps.Resolver = &fakeResolver{err: errors.Wrap(playlist.ErrManifestNotFound, "page")}
		got, err := NewAdapter(UAKino(), deps).LoadPlayerPage(context.Background(), "https://ashdi.vip/vod/1")
		require.NoError(t, err)
		assert.True(t, got.IsAbsent())
	})

	t.Run("no variants is an error", func(t *testing.T) {
		deps := testDeps()
		deps.Resolver = &fakeResolver{err: playlist.ErrNoVariants}
		_, err := NewAdapter(UAKino(), deps).LoadPlayerPage(context.Background(), "https://ashdi.vip/vod/1")
		assert.True(t, errors.Is(err, playlist.ErrNoVariants))
	})

	t.Run("api link maps to player page", func(t *testing.T) {
		res := &fakeResolver{paths: []string{"/w/1.ts"}}
		deps := testDeps()
		deps.Resolver = res
		_, err := NewAdapter(AnimeOn(), deps).LoadPlayerPage(context.Background(), "https://animeon.club/api/anime/7326")
		require.NoError(t, err)
		assert.Equal(t, "https://animeon.club/anime/7326", res.seen)

		_, err = NewAdapter(AnimeOn(), deps).LoadPlayerPage(context.Background(), "https://ashdi.vip/vod/555")
		require.NoError(t, err)
		assert.Equal(t, "https://ashdi.vip/vod/555", res.seen)
	})
}

func TestAdapterRejectsUnknownFamily(t *testing.T) {
	site := UAKino()
	site.Family = Family(42)
	_, err := NewAdapter(site, testDeps()).SearchTitle(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Family(42)")
}

func TestEmptyQueryReturnsNothing(t *testing.T) {
	hits, err := NewAdapter(UAKino(), testDeps()).SearchTitle(context.Background(), "   ")
	assert.NoError(t, err)
	assert.Empty(t, hits)
}
