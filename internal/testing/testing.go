// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sync"
	"testing"

	"github.com/desertthunder/podx/internal/models"
	"github.com/desertthunder/podx/internal/shared"
)

// MockService is a test double for [services.PodcastService] that pages over in-memory fixtures.
type MockService struct {
	mu sync.Mutex

	Profile  *models.Profile
	Shows    []models.SavedShow
	Episodes map[string][]models.Episode // keyed by show ID

	Err          error            // returned by every call when set
	EpisodeErrs  map[string]error // per-show errors for ShowEpisodes
	ShowPages    int              // SavedShows calls made
	EpisodePages map[string]int   // ShowEpisodes calls made per show
}

func (m *MockService) Name() string { return "mock" }

func (m *MockService) UserProfile(ctx context.Context) (*models.Profile, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Profile == nil {
		return &models.Profile{ID: "mock-user", DisplayName: "Mock User"}, nil
	}
	p := *m.Profile
	return &p, nil
}

func (m *MockService) SavedShows(ctx context.Context, limit, offset int) (*models.Page[models.SavedShow], error) {
	m.mu.Lock()
	m.ShowPages++
	m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}
	return Paginate(m.Shows, limit, offset), nil
}

func (m *MockService) ShowEpisodes(ctx context.Context, showID string, limit, offset int) (*models.Page[models.Episode], error) {
	m.mu.Lock()
	if m.EpisodePages == nil {
		m.EpisodePages = make(map[string]int)
	}
	m.EpisodePages[showID]++
	m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}
	if err := m.EpisodeErrs[showID]; err != nil {
		return nil, err
	}
	episodes, ok := m.Episodes[showID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrShowNotFound, showID)
	}
	return Paginate(episodes, limit, offset), nil
}

func (m *MockService) Show(ctx context.Context, showID string) (*models.Show, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	for _, s := range m.Shows {
		if s.Show.ID == showID {
			show := s.Show
			return &show, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", shared.ErrShowNotFound, showID)
}

// Paginate returns the limit/offset window of items, with HasNext set while items remain.
func Paginate[T any](items []T, limit, offset int) *models.Page[T] {
	if limit <= 0 {
		limit = 20
	}
	if offset >= len(items) {
		return &models.Page[T]{Items: []T{}}
	}
	end := min(offset+limit, len(items))
	return &models.Page[T]{Items: items[offset:end], HasNext: end < len(items)}
}

// MockAuthorizer is a test double for [services.Authorizer].
type MockAuthorizer struct {
	mu sync.Mutex

	Token       models.TokenRecord // returned by Refresh and Exchange
	RefreshErr  error
	ExchangeErr error

	RefreshCalls  int
	ExchangeCalls int
	LastRefresh   string // refresh token passed to the last Refresh call
	LastCode      string
	lastState     string
}

func (m *MockAuthorizer) Refresh(ctx context.Context, refreshToken string) (models.TokenRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RefreshCalls++
	m.LastRefresh = refreshToken
	if m.RefreshErr != nil {
		return models.TokenRecord{}, m.RefreshErr
	}
	return m.Token, nil
}

func (m *MockAuthorizer) AuthURL(state string) string {
	m.mu.Lock()
	m.lastState = state
	m.mu.Unlock()
	return "https://accounts.example.com/authorize?state=" + url.QueryEscape(state)
}

// State returns the state passed to the most recent AuthURL call.
func (m *MockAuthorizer) State() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastState
}

func (m *MockAuthorizer) Exchange(ctx context.Context, code string) (models.TokenRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ExchangeCalls++
	m.LastCode = code
	if m.ExchangeErr != nil {
		return models.TokenRecord{}, m.ExchangeErr
	}
	return m.Token, nil
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

// NopBody wraps a reader so it can be used as an [http.Response] body.
func NopBody(r io.Reader) io.ReadCloser { return io.NopCloser(r) }

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("Directory does not exist: %s", path)
		return
	}
	if !info.IsDir() {
		t.Errorf("Path is not a directory: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
