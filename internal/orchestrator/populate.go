package orchestrator

import (
	"context"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"stream2media/internal/logger"
	"stream2media/internal/media"
)

// Details is the outcome of loading one hit's episodes.
type Details struct {
	Hit    media.SearchHit
	Groups []media.DubGroup
	Err    error
}

// Episodes counts episodes across all groups.
func (d Details) Episodes() int {
	return len(media.Flatten(d.Groups))
}

// Populate loads details for every hit, at most cfg.MaxParallel at a time.
// Results keep the order of hits. A failing hit records its error and never
// stops the others.
func (o *Orchestrator) Populate(ctx context.Context, hits []media.SearchHit) []Details {
	out := make([]Details, len(hits))

	limit := o.cfg.MaxParallel
	if limit < 1 {
		limit = 1
	}

	var g errgroup.Group
	g.SetLimit(limit)
	for i, hit := range hits {
		i, hit := i, hit
		g.Go(func() error {
			out[i] = o.populateOne(ctx, hit)
			return nil
		})
	}
	g.Wait()

	return out
}

func (o *Orchestrator) populateOne(ctx context.Context, hit media.SearchHit) (d Details) {
	d.Hit = hit
	defer func() {
		if r := recover(); r != nil {
			d.Groups = nil
			d.Err = errors.Errorf("provider %s panicked: %v", hit.Provider, r)
		}
	}()

	groups, err := o.LoadDetails(ctx, hit.Provider, hit.Link)
	if err != nil {
		logger.From(ctx).Warn("details failed", "hit", describe(hit), "err", err)
		d.Err = err
		return d
	}
	if len(groups) == 0 {
		d.Err = errors.Wrap(ErrNoDetails, describe(hit))
	}
	d.Groups = groups
	return d
}
