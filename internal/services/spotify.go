// Spotify Web API implementation of [PodcastService]
//
// Response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/podx/internal/models"
	"github.com/desertthunder/podx/internal/shared"
	"golang.org/x/time/rate"
)

const (
	spotifyBaseURL = "https://api.spotify.com/v1"

	defaultPageLimit = 20
	maxPageLimit     = 50
	maxRetryDelay    = 30 * time.Second
)

var _ PodcastService = (*SpotifyService)(nil)

// spotifyPaging is the envelope Spotify wraps every paginated collection in.
type spotifyPaging[T any] struct {
	Items    []T     `json:"items"`
	Total    int     `json:"total"`
	Limit    int     `json:"limit"`
	Offset   int     `json:"offset"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
}

func (p spotifyPaging[T]) page() *models.Page[T] {
	return &models.Page[T]{Items: p.Items, HasNext: p.Next != nil}
}

// spotifyError is the body Spotify returns with non-2xx responses.
type spotifyError struct {
	Error struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
}

// ClientOptions configures a [SpotifyService].
type ClientOptions struct {
	BaseURL    string
	HTTPClient *http.Client
	Limiter    *rate.Limiter // shared across requests; nil disables pacing
	MaxRetries int           // retries for 429 and 5xx responses
	Logger     *log.Logger
}

// ClientOptionsFromConfig builds [ClientOptions] from the application config.
//
// The returned limiter is meant to be shared by every client the process creates.
func ClientOptionsFromConfig(cfg *shared.Config, logger *log.Logger) ClientOptions {
	opts := ClientOptions{
		BaseURL:    cfg.API.BaseURL,
		HTTPClient: &http.Client{Timeout: cfg.APITimeout()},
		MaxRetries: cfg.API.MaxRetries,
		Logger:     logger,
	}
	if cfg.API.RateLimit > 0 {
		opts.Limiter = rate.NewLimiter(rate.Limit(cfg.API.RateLimit), max(1, int(cfg.API.RateLimit)))
	}
	return opts
}

// SpotifyService reads podcast data from the Spotify Web API on behalf of one access token.
//
// Instances are cheap and meant to be created per request.
type SpotifyService struct {
	token   models.TokenRecord
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	retries int
	logger  *log.Logger
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewSpotifyService creates a [SpotifyService] that authenticates with token.
func NewSpotifyService(token models.TokenRecord, opts ClientOptions) *SpotifyService {
	if opts.BaseURL == "" {
		opts.BaseURL = spotifyBaseURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}

	return &SpotifyService{
		token:   token,
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		client:  opts.HTTPClient,
		limiter: opts.Limiter,
		retries: opts.MaxRetries,
		logger:  opts.Logger,
		sleep:   sleepContext,
	}
}

// NewSpotifyFactory returns a [ServiceFactory] that builds clients sharing opts.
func NewSpotifyFactory(opts ClientOptions) ServiceFactory {
	return func(token models.TokenRecord) PodcastService {
		return NewSpotifyService(token, opts)
	}
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// UserProfile retrieves the current authenticated user's profile.
func (s *SpotifyService) UserProfile(ctx context.Context) (*models.Profile, error) {
	var profile models.Profile
	if err := s.doRequest(ctx, "/me", nil, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// SavedShows retrieves the user's saved shows with pagination.
func (s *SpotifyService) SavedShows(ctx context.Context, limit, offset int) (*models.Page[models.SavedShow], error) {
	return fetchPage[models.SavedShow](ctx, s, "/me/shows", limit, offset)
}

// ShowEpisodes retrieves a show's episodes with pagination.
func (s *SpotifyService) ShowEpisodes(ctx context.Context, showID string, limit, offset int) (*models.Page[models.Episode], error) {
	if showID == "" {
		return nil, fmt.Errorf("%w: show id is required", shared.ErrMissingArgument)
	}
	return fetchPage[models.Episode](ctx, s, "/shows/"+url.PathEscape(showID)+"/episodes", limit, offset)
}

// Show retrieves a show by ID.
func (s *SpotifyService) Show(ctx context.Context, showID string) (*models.Show, error) {
	if showID == "" {
		return nil, fmt.Errorf("%w: show id is required", shared.ErrMissingArgument)
	}

	var show models.Show
	if err := s.doRequest(ctx, "/shows/"+url.PathEscape(showID), nil, &show); err != nil {
		return nil, err
	}
	return &show, nil
}

func fetchPage[T any](ctx context.Context, s *SpotifyService, endpoint string, limit, offset int) (*models.Page[T], error) {
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	if offset < 0 {
		offset = 0
	}

	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))
	query.Set("offset", strconv.Itoa(offset))

	var response spotifyPaging[T]
	if err := s.doRequest(ctx, endpoint, query, &response); err != nil {
		return nil, err
	}

	return response.page(), nil
}

// doRequest performs an authenticated GET against the Web API and decodes the JSON body into result.
//
// 429 and 5xx responses are retried up to the configured limit, honoring Retry-After.
func (s *SpotifyService) doRequest(ctx context.Context, endpoint string, query url.Values, result any) error {
	if s.token.AccessToken == "" {
		return shared.ErrNotAuthenticated
	}

	apiURL := s.baseURL + endpoint
	if len(query) > 0 {
		apiURL += "?" + query.Encode()
	}

	for attempt := 0; ; attempt++ {
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
			}
		}

		retryAfter, err := s.do(ctx, apiURL, result)
		if err == nil {
			return nil
		}

		var retryable *retryableError
		if !errors.As(err, &retryable) || attempt >= s.retries {
			return err
		}

		delay := retryAfter
		if delay <= 0 {
			delay = time.Duration(1<<attempt) * 500 * time.Millisecond
		}
		delay = min(delay, maxRetryDelay)

		s.logger.Warn("retrying spotify request", "endpoint", endpoint, "attempt", attempt+1, "delay", delay, "error", err)
		if err := s.sleep(ctx, delay); err != nil {
			return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
		}
	}
}

type retryableError struct {
	err error
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

func (s *SpotifyService) do(ctx context.Context, apiURL string, result any) (time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+s.token.AccessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: request failed: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if result == nil {
			return 0, nil
		}
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return 0, fmt.Errorf("%w: failed to decode response: %v", shared.ErrAPIRequest, err)
		}
		return 0, nil
	}

	message := readErrorMessage(resp.Body)

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return 0, fmt.Errorf("%w: %s", shared.ErrTokenExpired, message)
	case resp.StatusCode == http.StatusNotFound:
		return 0, fmt.Errorf("%w: %s", shared.ErrShowNotFound, message)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return parseRetryAfter(resp.Header.Get("Retry-After")), &retryableError{
			err: fmt.Errorf("%w: spotify API error: status %d: %s", shared.ErrAPIRequest, resp.StatusCode, message),
		}
	default:
		return 0, fmt.Errorf("%w: spotify API error: status %d: %s", shared.ErrAPIRequest, resp.StatusCode, message)
	}
}

func readErrorMessage(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(data) == 0 {
		return "no response body"
	}

	var apiErr spotifyError
	if err := json.Unmarshal(data, &apiErr); err == nil && apiErr.Error.Message != "" {
		return apiErr.Error.Message
	}
	return strings.TrimSpace(string(data))
}

// parseRetryAfter reads a Retry-After header given in seconds.
func parseRetryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
