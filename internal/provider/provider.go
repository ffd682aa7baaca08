// Package provider defines the interface for media content providers,
// the per-family parsing strategies and the registry that binds them to
// stable identifiers.
package provider

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/mo"

	"stream2media/internal/httputil"
	"stream2media/internal/media"
)

var (
	// ErrHandshake is returned when a source's session token cannot be obtained.
	ErrHandshake = errors.New("handshake token not found")
	// ErrParse is returned when a response lacks the expected structure.
	ErrParse = errors.New("unexpected response structure")
	// ErrUnknownProvider is returned by the registry on a lookup miss.
	ErrUnknownProvider = errors.New("unknown provider")
)

// Provider is the capability set every source adapter implements.
type Provider interface {
	// SearchTitle returns matching titles in source order.
	SearchTitle(ctx context.Context, query string) ([]media.SearchHit, error)

	// LoadDetailsPage returns the dub groups of a content page.
	LoadDetailsPage(ctx context.Context, url string) ([]media.DubGroup, error)

	// LoadPlayerPage resolves an episode player page to local segment paths.
	// None means the page carried no playable stream.
	LoadPlayerPage(ctx context.Context, url string) (mo.Option[[]string], error)
}

// SegmentResolver turns a player page into downloaded local files.
type SegmentResolver interface {
	Resolve(ctx context.Context, pageURL string) ([]string, error)
}

// Deps are the shared collaborators handed to every adapter at construction.
type Deps struct {
	Client   *httputil.Client
	Resolver SegmentResolver
	Now      func() time.Time
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}
