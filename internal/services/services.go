// package services defines interfaces for the Spotify Web API and its authorization service
package services

import (
	"context"

	"github.com/desertthunder/podx/internal/models"
)

// PodcastService reads the signed-in user's podcast library.
type PodcastService interface {
	// UserProfile retrieves the current user's profile.
	UserProfile(ctx context.Context) (*models.Profile, error)

	// SavedShows retrieves one page of the user's saved shows.
	SavedShows(ctx context.Context, limit, offset int) (*models.Page[models.SavedShow], error)

	// ShowEpisodes retrieves one page of a show's episodes, including the user's resume points.
	ShowEpisodes(ctx context.Context, showID string, limit, offset int) (*models.Page[models.Episode], error)

	// Show retrieves a single show by ID.
	Show(ctx context.Context, showID string) (*models.Show, error)

	// Name returns the name of the service (e.g., "Spotify")
	Name() string
}

// Refresher exchanges a refresh token for a new token record.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (models.TokenRecord, error)
}

// Authorizer drives the OAuth2 authorization-code grant.
type Authorizer interface {
	Refresher

	// AuthURL returns the URL the user is sent to in order to grant access.
	AuthURL(state string) string

	// Exchange trades a one-time authorization code for a token record.
	Exchange(ctx context.Context, code string) (models.TokenRecord, error)
}

// ServiceFactory builds a [PodcastService] that acts with the given access token.
type ServiceFactory func(token models.TokenRecord) PodcastService
