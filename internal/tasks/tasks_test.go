package tasks

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"testing"

	"github.com/desertthunder/podx/internal/models"
	"github.com/desertthunder/podx/internal/shared"
	th "github.com/desertthunder/podx/internal/testing"
)

// fetchRecorder serves items in pages of the requested size and records each call.
type fetchRecorder struct {
	items   []int
	calls   []int // offsets requested
	failAt  int   // offset that fails, -1 for none
	alwaysN bool  // report HasNext on every page
}

func (f *fetchRecorder) fetch(ctx context.Context, limit, offset int) (*models.Page[int], error) {
	f.calls = append(f.calls, offset)
	if offset == f.failAt {
		return nil, fmt.Errorf("%w: boom", shared.ErrAPIRequest)
	}
	page := th.Paginate(f.items, limit, offset)
	if f.alwaysN {
		page.HasNext = true
	}
	return page, nil
}

func seq(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func TestCollect(t *testing.T) {
	ctx := context.Background()

	t.Run("concatenates pages in order", func(t *testing.T) {
		tc := []struct {
			name      string
			items     int
			pageSize  int
			wantCalls int
		}{
			{name: "partial last page", items: 120, pageSize: 50, wantCalls: 3},
			{name: "single partial page", items: 7, pageSize: 50, wantCalls: 1},
			{name: "small pages", items: 10, pageSize: 3, wantCalls: 4},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				rec := &fetchRecorder{items: seq(tt.items), failAt: -1}

				got, err := Collect[int](ctx, rec.fetch, CollectOptions{PageSize: tt.pageSize})
				if err != nil {
					t.Fatalf("Collect() error = %v", err)
				}
				if !slices.Equal(got, rec.items) {
					t.Errorf("expected items in order, got %v", got)
				}
				if len(rec.calls) != tt.wantCalls {
					t.Errorf("expected %d fetch calls, got %d", tt.wantCalls, len(rec.calls))
				}
				for i, offset := range rec.calls {
					if offset != i*tt.pageSize {
						t.Errorf("call %d: expected offset %d, got %d", i, i*tt.pageSize, offset)
					}
				}
			})
		}
	})

	t.Run("zero items still fetches once", func(t *testing.T) {
		rec := &fetchRecorder{failAt: -1}

		got, err := Collect[int](ctx, rec.fetch, CollectOptions{})
		if err != nil {
			t.Fatalf("Collect() error = %v", err)
		}
		if got == nil || len(got) != 0 {
			t.Errorf("expected empty non-nil slice, got %#v", got)
		}
		if len(rec.calls) != 1 {
			t.Errorf("expected 1 fetch call, got %d", len(rec.calls))
		}
	})

	t.Run("page size defaults and clamps to 50", func(t *testing.T) {
		for _, size := range []int{0, -1, 80} {
			var limits []int
			fetch := func(ctx context.Context, limit, offset int) (*models.Page[int], error) {
				limits = append(limits, limit)
				return &models.Page[int]{}, nil
			}
			if _, err := Collect[int](ctx, fetch, CollectOptions{PageSize: size}); err != nil {
				t.Fatalf("Collect() error = %v", err)
			}
			if limits[0] != DefaultPageSize {
				t.Errorf("page size %d: expected limit %d, got %d", size, DefaultPageSize, limits[0])
			}
		}
	})

	t.Run("empty page with next cursor terminates", func(t *testing.T) {
		rec := &fetchRecorder{items: seq(5), failAt: -1, alwaysN: true}

		got, err := Collect[int](ctx, rec.fetch, CollectOptions{PageSize: 5})
		if err != nil {
			t.Fatalf("Collect() error = %v", err)
		}
		if len(got) != 5 {
			t.Errorf("expected 5 items, got %d", len(got))
		}
		if len(rec.calls) != 2 {
			t.Errorf("expected 2 fetch calls, got %d", len(rec.calls))
		}
	})

	t.Run("max pages", func(t *testing.T) {
		rec := &fetchRecorder{items: seq(100), failAt: -1}

		got, err := Collect[int](ctx, rec.fetch, CollectOptions{PageSize: 10, MaxPages: 3})
		if !errors.Is(err, shared.ErrPageLimit) {
			t.Fatalf("expected ErrPageLimit, got %v", err)
		}
		if len(got) != 30 || len(rec.calls) != 3 {
			t.Errorf("expected 30 items over 3 calls, got %d items over %d calls", len(got), len(rec.calls))
		}
	})

	t.Run("fetch error aborts with offset", func(t *testing.T) {
		rec := &fetchRecorder{items: seq(100), failAt: 20}

		_, err := Collect[int](ctx, rec.fetch, CollectOptions{PageSize: 10})
		if !errors.Is(err, shared.ErrAPIRequest) {
			t.Fatalf("expected ErrAPIRequest, got %v", err)
		}
		if want := "fetch page at offset 20"; !strings.Contains(err.Error(), want) {
			t.Errorf("expected %q in error, got %v", want, err)
		}
		if len(rec.calls) != 3 {
			t.Errorf("expected no retry after failure, got %d calls", len(rec.calls))
		}
	})

	t.Run("canceled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		rec := &fetchRecorder{items: seq(10), failAt: -1}

		if _, err := Collect[int](cctx, rec.fetch, CollectOptions{}); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if len(rec.calls) != 0 {
			t.Errorf("expected no fetch after cancel, got %d", len(rec.calls))
		}
	})
}

func TestEnrichEpisodes(t *testing.T) {
	tc := []struct {
		name         string
		durationMS   int64
		resumeMS     int64
		wantDuration int
		wantResume   int
		wantPct      int
	}{
		{name: "quarter listened", durationMS: 120000, resumeMS: 30000, wantDuration: 2, wantResume: 1, wantPct: 25},
		{name: "not started", durationMS: 3_600_000, resumeMS: 0, wantDuration: 60, wantResume: 0, wantPct: 0},
		{name: "finished", durationMS: 1_800_000, resumeMS: 1_800_000, wantDuration: 30, wantResume: 30, wantPct: 100},
		{name: "rounds half up", durationMS: 90000, resumeMS: 45000, wantDuration: 2, wantResume: 1, wantPct: 50},
		{name: "fractional percent", durationMS: 3_000_000, resumeMS: 80000, wantDuration: 50, wantResume: 1, wantPct: 3},
		{name: "zero duration", durationMS: 0, resumeMS: 15000, wantDuration: 0, wantResume: 0, wantPct: 0},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			ep := models.Episode{
				ID:          "ep",
				DurationMS:  tt.durationMS,
				ResumePoint: models.ResumePoint{ResumePositionMS: tt.resumeMS},
			}

			got := EnrichEpisode(ep)
			if got.DurationMinutes != tt.wantDuration {
				t.Errorf("DurationMinutes = %d, want %d", got.DurationMinutes, tt.wantDuration)
			}
			if got.ResumeMinutes != tt.wantResume {
				t.Errorf("ResumeMinutes = %d, want %d", got.ResumeMinutes, tt.wantResume)
			}
			if got.PctCompleted != tt.wantPct {
				t.Errorf("PctCompleted = %d, want %d", got.PctCompleted, tt.wantPct)
			}
			if got.ID != "ep" {
				t.Errorf("expected embedded episode to be kept, got %+v", got.Episode)
			}
		})
	}

	t.Run("preserves order", func(t *testing.T) {
		eps := []models.Episode{{ID: "a"}, {ID: "b"}, {ID: "c"}}
		got := EnrichEpisodes(eps)
		if len(got) != 3 || got[0].ID != "a" || got[2].ID != "c" {
			t.Errorf("unexpected order %+v", got)
		}
	})
}

func libraryFixture(shows, episodesPerShow int) *th.MockService {
	svc := &th.MockService{Episodes: make(map[string][]models.Episode)}
	for i := range shows {
		id := fmt.Sprintf("show%d", i+1)
		svc.Shows = append(svc.Shows, models.SavedShow{Show: models.Show{ID: id, Name: fmt.Sprintf("Show %d", i+1)}})

		eps := make([]models.Episode, episodesPerShow)
		for j := range eps {
			eps[j] = models.Episode{
				ID:          fmt.Sprintf("%s-ep%d", id, j+1),
				Name:        fmt.Sprintf("Episode %d", j+1),
				DurationMS:  120000,
				ResumePoint: models.ResumePoint{ResumePositionMS: 30000},
			}
		}
		svc.Episodes[id] = eps
	}
	return svc
}

func TestLibrary(t *testing.T) {
	ctx := context.Background()

	t.Run("SavedShows", func(t *testing.T) {
		svc := libraryFixture(120, 0)
		lib := NewLibrary(svc, CollectOptions{})

		shows, err := lib.SavedShows(ctx)
		if err != nil {
			t.Fatalf("SavedShows() error = %v", err)
		}
		if len(shows) != 120 {
			t.Errorf("expected 120 shows, got %d", len(shows))
		}
		if svc.ShowPages != 3 {
			t.Errorf("expected 3 page fetches, got %d", svc.ShowPages)
		}
	})

	t.Run("Episodes", func(t *testing.T) {
		svc := libraryFixture(1, 51)
		lib := NewLibrary(svc, CollectOptions{PageSize: 50})

		episodes, err := lib.Episodes(ctx, "show1")
		if err != nil {
			t.Fatalf("Episodes() error = %v", err)
		}
		if len(episodes) != 51 {
			t.Fatalf("expected 51 episodes, got %d", len(episodes))
		}
		if episodes[0].PctCompleted != 25 || episodes[0].DurationMinutes != 2 {
			t.Errorf("expected enriched episodes, got %+v", episodes[0])
		}
		if svc.EpisodePages["show1"] != 2 {
			t.Errorf("expected 2 page fetches, got %d", svc.EpisodePages["show1"])
		}
	})

	t.Run("ShowWithEpisodes", func(t *testing.T) {
		lib := NewLibrary(libraryFixture(2, 3), CollectOptions{})

		show, episodes, err := lib.ShowWithEpisodes(ctx, "show2")
		if err != nil {
			t.Fatalf("ShowWithEpisodes() error = %v", err)
		}
		if show.Name != "Show 2" || len(episodes) != 3 {
			t.Errorf("unexpected result %+v, %d episodes", show, len(episodes))
		}

		if _, _, err := lib.ShowWithEpisodes(ctx, "missing"); !errors.Is(err, shared.ErrShowNotFound) {
			t.Errorf("expected ErrShowNotFound, got %v", err)
		}
	})

	t.Run("service errors", func(t *testing.T) {
		svc := libraryFixture(1, 1)
		svc.Err = shared.ErrTokenExpired
		lib := NewLibrary(svc, CollectOptions{})

		if _, err := lib.SavedShows(ctx); !errors.Is(err, shared.ErrTokenExpired) {
			t.Errorf("expected ErrTokenExpired, got %v", err)
		}
	})

	t.Run("nil service", func(t *testing.T) {
		lib := NewLibrary(nil, CollectOptions{})
		if _, err := lib.SavedShows(ctx); !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})
}

func TestPhaseString(t *testing.T) {
	tc := map[Phase]string{
		FetchShows:    "fetch_shows",
		FetchEpisodes: "fetch_episodes",
		ExportShow:    "export_show",
		WriteManifest: "write_manifest",
		Phase(99):     "",
	}
	for phase, want := range tc {
		if got := phase.String(); got != want {
			t.Errorf("Phase(%d).String() = %q, want %q", phase, got, want)
		}
	}
}
