package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/podx/internal/models"
	"github.com/desertthunder/podx/internal/shared"
	th "github.com/desertthunder/podx/internal/testing"
)

func newTestAuth(t *testing.T, tokenURL string) *SpotifyAuth {
	t.Helper()
	auth, err := NewSpotifyAuth(AuthOptions{
		ClientID:     "test_client_id",
		ClientSecret: "test_client_secret",
		RedirectURL:  "http://localhost:8000/callback",
		TokenURL:     tokenURL,
		Now:          func() time.Time { return time.Unix(1_700_000_000, 0) },
	})
	if err != nil {
		t.Fatalf("failed to create auth: %v", err)
	}
	return auth
}

func TestSpotifyAuth(t *testing.T) {
	t.Run("NewSpotifyAuth", func(t *testing.T) {
		t.Run("Missing Client ID", func(t *testing.T) {
			_, err := NewSpotifyAuth(AuthOptions{ClientSecret: "secret", RedirectURL: "http://x/callback"})
			if !errors.Is(err, shared.ErrMissingCredentials) {
				t.Errorf("expected ErrMissingCredentials, got %v", err)
			}
		})

		t.Run("Missing Client Secret", func(t *testing.T) {
			_, err := NewSpotifyAuth(AuthOptions{ClientID: "id", RedirectURL: "http://x/callback"})
			if !errors.Is(err, shared.ErrMissingCredentials) {
				t.Errorf("expected ErrMissingCredentials, got %v", err)
			}
		})

		t.Run("Missing Redirect", func(t *testing.T) {
			_, err := NewSpotifyAuth(AuthOptions{ClientID: "id", ClientSecret: "secret"})
			if !errors.Is(err, shared.ErrMissingCredentials) {
				t.Errorf("expected ErrMissingCredentials, got %v", err)
			}
		})

		t.Run("Default Scopes", func(t *testing.T) {
			auth := newTestAuth(t, "")
			got := strings.Join(auth.OAuthConfig().Scopes, ",")
			if got != "user-library-read,user-read-playback-position" {
				t.Errorf("unexpected scopes %s", got)
			}
		})
	})

	t.Run("AuthURL", func(t *testing.T) {
		authURL := newTestAuth(t, "").AuthURL("test_state")

		for _, want := range []string{"accounts.spotify.com", "test_client_id", "test_state", "user-read-playback-position", "redirect_uri="} {
			if !strings.Contains(authURL, want) {
				t.Errorf("auth URL %s should contain %s", authURL, want)
			}
		}
	})

	t.Run("Exchange", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := r.ParseForm(); err != nil {
				t.Fatalf("failed to parse form: %v", err)
			}
			if r.Form.Get("grant_type") != "authorization_code" || r.Form.Get("code") != "the_code" {
				http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
				return
			}
			if user, _, ok := r.BasicAuth(); !ok || user != "test_client_id" {
				t.Errorf("expected client credentials in basic auth header")
			}
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"access_token":"new_access","refresh_token":"new_refresh","token_type":"Bearer","expires_in":3600}`)
		}))
		defer srv.Close()

		auth := newTestAuth(t, srv.URL)

		rec, err := auth.Exchange(context.Background(), "the_code")
		if err != nil {
			t.Fatalf("Exchange() error = %v", err)
		}
		if rec.AccessToken != "new_access" || rec.RefreshToken != "new_refresh" {
			t.Errorf("unexpected token %+v", rec)
		}
		if rec.ExpiresAt <= time.Now().Unix() {
			t.Errorf("expected expiry in the future, got %d", rec.ExpiresAt)
		}

		if _, err := auth.Exchange(context.Background(), "bad_code"); !errors.Is(err, shared.ErrAuthFailed) {
			t.Errorf("expected ErrAuthFailed, got %v", err)
		}

		if _, err := auth.Exchange(context.Background(), ""); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("Refresh", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			_ = r.ParseForm()
			if r.Form.Get("grant_type") != "refresh_token" {
				t.Errorf("expected refresh_token grant, got %s", r.Form.Get("grant_type"))
			}
			if r.Form.Get("refresh_token") == "revoked" {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadRequest)
				fmt.Fprint(w, `{"error":"invalid_grant","error_description":"Refresh token revoked"}`)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"access_token":"refreshed","token_type":"Bearer","expires_in":3600}`)
		}))
		defer srv.Close()

		auth := newTestAuth(t, srv.URL)

		t.Run("keeps refresh token when not rotated", func(t *testing.T) {
			rec, err := auth.Refresh(context.Background(), "old_refresh")
			if err != nil {
				t.Fatalf("Refresh() error = %v", err)
			}
			if rec.AccessToken != "refreshed" {
				t.Errorf("expected refreshed access token, got %s", rec.AccessToken)
			}
			if rec.RefreshToken != "old_refresh" {
				t.Errorf("expected refresh token to be kept, got %s", rec.RefreshToken)
			}
		})

		t.Run("revoked grant", func(t *testing.T) {
			_, err := auth.Refresh(context.Background(), "revoked")
			if !errors.Is(err, shared.ErrRefreshFailed) {
				t.Errorf("expected ErrRefreshFailed, got %v", err)
			}
		})

		t.Run("missing refresh token", func(t *testing.T) {
			before := calls.Load()
			_, err := auth.Refresh(context.Background(), "")
			if !errors.Is(err, shared.ErrNoRefreshToken) {
				t.Errorf("expected ErrNoRefreshToken, got %v", err)
			}
			if calls.Load() != before {
				t.Error("no request should be made without a refresh token")
			}
		})
	})
}

func newTestService(t *testing.T, handler http.HandlerFunc, retries int) *SpotifyService {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	s := NewSpotifyService(models.TokenRecord{AccessToken: "test_token"}, ClientOptions{
		BaseURL:    srv.URL,
		HTTPClient: srv.Client(),
		MaxRetries: retries,
	})
	s.sleep = func(context.Context, time.Duration) error { return nil }
	return s
}

func TestSpotifyService(t *testing.T) {
	t.Run("Service Interface", func(t *testing.T) {
		var _ PodcastService = NewSpotifyService(models.TokenRecord{}, ClientOptions{})
	})

	t.Run("Not Authenticated", func(t *testing.T) {
		s := NewSpotifyService(models.TokenRecord{}, ClientOptions{})
		if _, err := s.UserProfile(context.Background()); !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
	})

	t.Run("UserProfile", func(t *testing.T) {
		s := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/me" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			if r.Header.Get("Authorization") != "Bearer test_token" {
				t.Errorf("unexpected auth header %q", r.Header.Get("Authorization"))
			}
			fmt.Fprint(w, `{"id":"user1","display_name":"Listener","country":"US"}`)
		}, 0)

		profile, err := s.UserProfile(context.Background())
		if err != nil {
			t.Fatalf("UserProfile() error = %v", err)
		}
		if profile.Name() != "Listener" || profile.Country != "US" {
			t.Errorf("unexpected profile %+v", profile)
		}
	})

	t.Run("SavedShows", func(t *testing.T) {
		s := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/me/shows" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			if r.URL.Query().Get("limit") != "50" || r.URL.Query().Get("offset") != "100" {
				t.Errorf("unexpected query %s", r.URL.RawQuery)
			}
			fmt.Fprint(w, `{"items":[{"added_at":"2024-01-01T00:00:00Z","show":{"id":"s1","name":"Show One","publisher":"Pub"}}],"next":"https://api.spotify.com/v1/me/shows?offset=150"}`)
		}, 0)

		page, err := s.SavedShows(context.Background(), 80, 100)
		if err != nil {
			t.Fatalf("SavedShows() error = %v", err)
		}
		if len(page.Items) != 1 || page.Items[0].Show.Name != "Show One" {
			t.Errorf("unexpected items %+v", page.Items)
		}
		if !page.HasNext {
			t.Error("expected HasNext with non-null next")
		}
	})

	t.Run("ShowEpisodes", func(t *testing.T) {
		s := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/shows/abc/episodes" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			if r.URL.Query().Get("limit") != "20" {
				t.Errorf("expected default limit, got %s", r.URL.Query().Get("limit"))
			}
			fmt.Fprint(w, `{"items":[{"id":"e1","name":"Ep","duration_ms":120000,"resume_point":{"fully_played":false,"resume_position_ms":30000}}],"next":null}`)
		}, 0)

		page, err := s.ShowEpisodes(context.Background(), "abc", 0, 0)
		if err != nil {
			t.Fatalf("ShowEpisodes() error = %v", err)
		}
		if page.HasNext {
			t.Error("expected HasNext false with null next")
		}
		if page.Items[0].ResumePoint.ResumePositionMS != 30000 {
			t.Errorf("unexpected resume point %+v", page.Items[0].ResumePoint)
		}

		if _, err := s.ShowEpisodes(context.Background(), "", 0, 0); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("Error Mapping", func(t *testing.T) {
		tc := []struct {
			name    string
			status  int
			wantErr error
		}{
			{name: "unauthorized", status: http.StatusUnauthorized, wantErr: shared.ErrTokenExpired},
			{name: "not found", status: http.StatusNotFound, wantErr: shared.ErrShowNotFound},
			{name: "forbidden", status: http.StatusForbidden, wantErr: shared.ErrAPIRequest},
			{name: "server error", status: http.StatusBadGateway, wantErr: shared.ErrAPIRequest},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				s := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(tt.status)
					json.NewEncoder(w).Encode(map[string]any{
						"error": map[string]any{"status": tt.status, "message": "boom"},
					})
				}, 0)

				_, err := s.Show(context.Background(), "abc")
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				if !strings.Contains(err.Error(), "boom") {
					t.Errorf("expected upstream message in error, got %v", err)
				}
			})
		}
	})

	t.Run("Transport", func(t *testing.T) {
		newService := func(rt http.RoundTripper) *SpotifyService {
			return NewSpotifyService(models.TokenRecord{AccessToken: "token"}, ClientOptions{
				BaseURL:    "https://api.example.com/v1",
				HTTPClient: &http.Client{Transport: rt},
			})
		}

		t.Run("request failure", func(t *testing.T) {
			s := newService(th.NewMockRoundTripper(nil, errors.New("connection refused")))

			_, err := s.UserProfile(context.Background())
			if !errors.Is(err, shared.ErrAPIRequest) {
				t.Fatalf("expected ErrAPIRequest, got %v", err)
			}
			if !strings.Contains(err.Error(), "connection refused") {
				t.Errorf("expected transport error in message, got %v", err)
			}
		})

		t.Run("unreadable body", func(t *testing.T) {
			s := newService(th.NewMockRoundTripper(&http.Response{
				StatusCode: http.StatusOK,
				Header:     make(http.Header),
				Body:       &th.FCloser{},
			}, nil))

			if _, err := s.UserProfile(context.Background()); !errors.Is(err, shared.ErrAPIRequest) {
				t.Errorf("expected ErrAPIRequest, got %v", err)
			}
		})

		t.Run("malformed json", func(t *testing.T) {
			s := newService(th.NewMockRoundTripper(&http.Response{
				StatusCode: http.StatusOK,
				Header:     make(http.Header),
				Body:       th.NopBody(strings.NewReader("{not json")),
			}, nil))

			_, err := s.Show(context.Background(), "abc")
			if !errors.Is(err, shared.ErrAPIRequest) || !strings.Contains(err.Error(), "decode") {
				t.Errorf("expected decode failure, got %v", err)
			}
		})

		t.Run("empty error body", func(t *testing.T) {
			s := newService(th.NewMockRoundTripper(&http.Response{
				StatusCode: http.StatusForbidden,
				Header:     make(http.Header),
				Body:       th.NopBody(strings.NewReader("")),
			}, nil))

			_, err := s.UserProfile(context.Background())
			if !errors.Is(err, shared.ErrAPIRequest) || !strings.Contains(err.Error(), "no response body") {
				t.Errorf("expected empty body message, got %v", err)
			}
		})
	})

	t.Run("Retries", func(t *testing.T) {
		t.Run("recovers after 429", func(t *testing.T) {
			var calls atomic.Int32
			var delays []time.Duration
			s := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
				if calls.Add(1) == 1 {
					w.Header().Set("Retry-After", "2")
					w.WriteHeader(http.StatusTooManyRequests)
					return
				}
				fmt.Fprint(w, `{"id":"abc","name":"Show"}`)
			}, 2)
			s.sleep = func(_ context.Context, d time.Duration) error {
				delays = append(delays, d)
				return nil
			}

			show, err := s.Show(context.Background(), "abc")
			if err != nil {
				t.Fatalf("Show() error = %v", err)
			}
			if show.Name != "Show" {
				t.Errorf("unexpected show %+v", show)
			}
			if calls.Load() != 2 {
				t.Errorf("expected 2 calls, got %d", calls.Load())
			}
			if len(delays) != 1 || delays[0] != 2*time.Second {
				t.Errorf("expected one 2s delay, got %v", delays)
			}
		})

		t.Run("gives up after max retries", func(t *testing.T) {
			var calls atomic.Int32
			s := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(http.StatusServiceUnavailable)
			}, 2)

			_, err := s.Show(context.Background(), "abc")
			if !errors.Is(err, shared.ErrAPIRequest) {
				t.Errorf("expected ErrAPIRequest, got %v", err)
			}
			if calls.Load() != 3 {
				t.Errorf("expected 3 calls, got %d", calls.Load())
			}
		})

		t.Run("does not retry client errors", func(t *testing.T) {
			var calls atomic.Int32
			s := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(http.StatusBadRequest)
			}, 2)

			if _, err := s.Show(context.Background(), "abc"); err == nil {
				t.Fatal("expected error")
			}
			if calls.Load() != 1 {
				t.Errorf("expected 1 call, got %d", calls.Load())
			}
		})
	})
}

func TestParseRetryAfter(t *testing.T) {
	tc := []struct {
		in   string
		want time.Duration
	}{
		{in: "3", want: 3 * time.Second},
		{in: " 0 ", want: 0},
		{in: "", want: 0},
		{in: "-1", want: 0},
		{in: "Wed, 21 Oct 2015 07:28:00 GMT", want: 0},
	}

	for _, tt := range tc {
		if got := parseRetryAfter(tt.in); got != tt.want {
			t.Errorf("parseRetryAfter(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
