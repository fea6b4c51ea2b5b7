package tasks

import (
	"context"
	"fmt"

	"github.com/desertthunder/podx/internal/models"
	"github.com/desertthunder/podx/internal/services"
	"github.com/desertthunder/podx/internal/shared"
)

// Library reads a user's saved shows and episode progress through a [services.PodcastService].
//
// The web handlers, the CLI and the TUI all load data through it.
type Library struct {
	svc  services.PodcastService
	opts CollectOptions
}

// NewLibrary creates a [Library] that pages through svc with opts.
func NewLibrary(svc services.PodcastService, opts CollectOptions) *Library {
	return &Library{svc: svc, opts: opts.normalize()}
}

// Service returns the underlying podcast service.
func (l *Library) Service() services.PodcastService {
	return l.svc
}

// SavedShows collects every show in the user's library.
func (l *Library) SavedShows(ctx context.Context) ([]models.SavedShow, error) {
	if l.svc == nil {
		return nil, fmt.Errorf("%w: podcast service not initialized", shared.ErrServiceUnavailable)
	}
	return Collect[models.SavedShow](ctx, l.svc.SavedShows, l.opts)
}

// Episodes collects every episode of showID and enriches them with progress fields.
func (l *Library) Episodes(ctx context.Context, showID string) ([]models.EnrichedEpisode, error) {
	if l.svc == nil {
		return nil, fmt.Errorf("%w: podcast service not initialized", shared.ErrServiceUnavailable)
	}

	fetch := func(ctx context.Context, limit, offset int) (*models.Page[models.Episode], error) {
		return l.svc.ShowEpisodes(ctx, showID, limit, offset)
	}

	episodes, err := Collect[models.Episode](ctx, fetch, l.opts)
	if err != nil {
		return nil, err
	}
	return EnrichEpisodes(episodes), nil
}

// ShowWithEpisodes loads a show's metadata along with its enriched episodes.
func (l *Library) ShowWithEpisodes(ctx context.Context, showID string) (*models.Show, []models.EnrichedEpisode, error) {
	episodes, err := l.Episodes(ctx, showID)
	if err != nil {
		return nil, nil, err
	}

	show, err := l.svc.Show(ctx, showID)
	if err != nil {
		return nil, nil, err
	}
	return show, episodes, nil
}
