// Package playlist resolves an episode player page to its HLS manifest,
// picks the best rendition and downloads its segments.
package playlist

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/grafov/m3u8"
	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"stream2media/internal/httputil"
	"stream2media/internal/logger"
	"stream2media/internal/media"
)

var (
	// ErrManifestNotFound means the player page embeds no HLS manifest.
	ErrManifestNotFound = errors.New("manifest not found")
	// ErrNoVariants means a master playlist declared no renditions.
	ErrNoVariants = errors.New("no variants available")
)

var (
	manifestPattern = regexp.MustCompile(`file:"(https[^"]+\.m3u8)"`)
	filePattern     = regexp.MustCompile(`file:"([^"]+)"`)
)

// Resolver downloads streams into a work directory.
type Resolver struct {
	client *httputil.Client
	fs     afero.Fs
	dir    string
}

// NewResolver returns a resolver writing segments under dir on fs.
func NewResolver(client *httputil.Client, fs afero.Fs, dir string) *Resolver {
	return &Resolver{client: client, fs: fs, dir: dir}
}

// MasterPlaylist returns the manifest URL embedded in a player page.
// Direct manifest links are returned as is.
func (r *Resolver) MasterPlaylist(ctx context.Context, pageURL string) (string, error) {
	if isManifestURL(pageURL) {
		return pageURL, nil
	}
	body, err := r.page(ctx, pageURL)
	if err != nil {
		return "", err
	}
	return findManifest(body, pageURL)
}

func (r *Resolver) page(ctx context.Context, pageURL string) (string, error) {
	resp, err := r.client.Get(ctx, pageURL, map[string]string{"Referer": pageURL})
	if err != nil {
		return "", errors.Wrap(err, "player page")
	}
	return resp.Text(), nil
}

func findManifest(body, pageURL string) (string, error) {
	m := manifestPattern.FindStringSubmatch(body)
	if m == nil {
		return "", errors.Wrapf(ErrManifestNotFound, "%s", pageURL)
	}
	return m[1], nil
}

func isManifestURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && strings.HasSuffix(u.Path, ".m3u8")
}

// Variants lists the renditions of a master playlist with absolute URIs.
// A media playlist is reported as a single variant of itself.
func (r *Resolver) Variants(ctx context.Context, manifestURL string) ([]media.Variant, error) {
	resp, err := r.client.Get(ctx, manifestURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "master playlist")
	}

	p, listType, err := m3u8.DecodeFrom(bytes.NewReader(resp.Body), false)
	if err != nil {
		return nil, errors.Wrapf(err, "decoding %s", manifestURL)
	}

	switch listType {
	case m3u8.MASTER:
		master := p.(*m3u8.MasterPlaylist)
		variants := make([]media.Variant, 0, len(master.Variants))
		for _, v := range master.Variants {
			if v == nil || v.URI == "" {
				continue
			}
			variants = append(variants, media.Variant{
				Bandwidth: int64(v.Bandwidth),
				URI:       httputil.ResolveReference(manifestURL, v.URI),
			})
		}
		return variants, nil
	case m3u8.MEDIA:
		return []media.Variant{{URI: manifestURL}}, nil
	default:
		return nil, errors.Errorf("unknown playlist type in %s", manifestURL)
	}
}

// SelectBestVariant returns the variant with the highest bandwidth. Ties
// keep the earliest variant.
func SelectBestVariant(variants []media.Variant) (media.Variant, error) {
	if len(variants) == 0 {
		return media.Variant{}, ErrNoVariants
	}
	best := variants[0]
	for _, v := range variants[1:] {
		if v.Bandwidth > best.Bandwidth {
			best = v
		}
	}
	return best, nil
}

// DownloadSegments fetches every segment of a media playlist in order.
// Segments that fail to download are logged and left out, so the result
// can be shorter than the playlist.
func (r *Resolver) DownloadSegments(ctx context.Context, variantURL string) ([]string, error) {
	log := logger.From(ctx)

	resp, err := r.client.Get(ctx, variantURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "media playlist")
	}

	p, listType, err := m3u8.DecodeFrom(bytes.NewReader(resp.Body), false)
	if err != nil {
		return nil, errors.Wrapf(err, "decoding %s", variantURL)
	}
	if listType != m3u8.MEDIA {
		return nil, errors.Errorf("%s is not a media playlist", variantURL)
	}
	mediaList := p.(*m3u8.MediaPlaylist)

	dir := r.workDir(variantURL)
	if err := r.fs.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "creating segment dir")
	}

	var (
		paths []string
		total int
	)
	for _, seg := range mediaList.Segments {
		if seg == nil {
			continue
		}
		total++

		segURL := httputil.ResolveReference(variantURL, seg.URI)
		dest := filepath.Join(dir, segmentName(segURL, total))

		if err := r.fetch(ctx, segURL, dest); err != nil {
			log.Warn("segment skipped", "url", segURL, "err", err)
			continue
		}
		paths = append(paths, dest)
	}

	log.Info("segments downloaded", "ok", len(paths), "total", total)
	return paths, nil
}

func (r *Resolver) fetch(ctx context.Context, rawURL, dest string) error {
	f, err := r.fs.Create(dest)
	if err != nil {
		return err
	}
	_, err = r.client.Download(ctx, rawURL, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = r.fs.Remove(dest)
	}
	return err
}

// workDir isolates the segments of one stream so concurrent downloads with
// identical segment names never collide.
func (r *Resolver) workDir(streamURL string) string {
	sum := sha256.Sum256([]byte(streamURL))
	return filepath.Join(r.dir, hex.EncodeToString(sum[:6]))
}

func segmentName(segURL string, n int) string {
	name := "segment.ts"
	if u, err := url.Parse(segURL); err == nil && path.Base(u.Path) != "/" && path.Base(u.Path) != "." {
		name = path.Base(u.Path)
	}
	return httputil.SanitizeFilename(fmt.Sprintf("%05d_%s", n, name))
}

// Resolve runs the whole chain for a player page: manifest, best variant,
// segments. Pages without a manifest but with quality-tagged direct files
// download the best file instead.
func (r *Resolver) Resolve(ctx context.Context, pageURL string) ([]string, error) {
	log := logger.From(ctx)

	manifest := pageURL
	if !isManifestURL(pageURL) {
		body, err := r.page(ctx, pageURL)
		if err != nil {
			return nil, err
		}
		manifest, err = findManifest(body, pageURL)
		if errors.Is(err, ErrManifestNotFound) {
			if file, ok := progressiveFile(body); ok {
				log.Info("no manifest, downloading progressive file", "url", file)
				return r.downloadFile(ctx, file)
			}
		}
		if err != nil {
			return nil, err
		}
	}
	log.Debug("manifest found", "url", manifest)

	variants, err := r.Variants(ctx, manifest)
	if err != nil {
		return nil, err
	}
	best, err := SelectBestVariant(variants)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", manifest)
	}
	log.Debug("variant selected", "bandwidth", best.Bandwidth, "uri", best.URI)

	return r.DownloadSegments(ctx, best.URI)
}

func (r *Resolver) downloadFile(ctx context.Context, fileURL string) ([]string, error) {
	dir := r.workDir(fileURL)
	if err := r.fs.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "creating download dir")
	}
	dest := filepath.Join(dir, segmentName(fileURL, 1))
	if err := r.fetch(ctx, fileURL, dest); err != nil {
		return nil, errors.Wrap(err, "progressive download")
	}
	return []string{dest}, nil
}
