package tasks

import (
	"context"
	"fmt"

	"github.com/desertthunder/podx/internal/models"
	"github.com/desertthunder/podx/internal/shared"
)

const (
	// DefaultPageSize is the number of items requested per page, the upstream maximum.
	DefaultPageSize = 50
	// DefaultMaxPages bounds a single collection to 10,000 items at the default page size.
	DefaultMaxPages = 200
)

// FetchFunc retrieves one page of items at the given limit and offset.
type FetchFunc[T any] func(ctx context.Context, limit, offset int) (*models.Page[T], error)

// CollectOptions configures [Collect].
type CollectOptions struct {
	PageSize int // items per page, clamped to 1..DefaultPageSize
	MaxPages int // pages fetched before giving up with [shared.ErrPageLimit]
}

// OptionsFromConfig builds [CollectOptions] from the application config.
func OptionsFromConfig(cfg *shared.Config) CollectOptions {
	return CollectOptions{PageSize: cfg.App.PageSize, MaxPages: cfg.App.MaxPages}
}

func (o CollectOptions) normalize() CollectOptions {
	if o.PageSize <= 0 || o.PageSize > DefaultPageSize {
		o.PageSize = DefaultPageSize
	}
	if o.MaxPages <= 0 {
		o.MaxPages = DefaultMaxPages
	}
	return o
}

// Collect calls fetch from offset 0, advancing by the page size, and concatenates the items of every page in order.
//
// It stops on the first page whose HasNext is false, which means at least one fetch is always made.
// A page with no items also ends the collection even when HasNext is set, so an upstream that
// keeps returning a cursor cannot loop forever. Errors are not retried; the failing offset is
// included in the returned error.
func Collect[T any](ctx context.Context, fetch FetchFunc[T], opts CollectOptions) ([]T, error) {
	opts = opts.normalize()

	items := []T{}
	for page, offset := 0, 0; ; page, offset = page+1, offset+opts.PageSize {
		if page >= opts.MaxPages {
			return items, fmt.Errorf("%w: stopped after %d pages", shared.ErrPageLimit, opts.MaxPages)
		}
		if err := ctx.Err(); err != nil {
			return items, err
		}

		p, err := fetch(ctx, opts.PageSize, offset)
		if err != nil {
			return items, fmt.Errorf("fetch page at offset %d: %w", offset, err)
		}
		if p == nil {
			return items, nil
		}

		items = append(items, p.Items...)
		if !p.HasNext || len(p.Items) == 0 {
			return items, nil
		}
	}
}
