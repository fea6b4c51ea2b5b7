package ui

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/podx/internal/formatter"
	"github.com/desertthunder/podx/internal/models"
	"github.com/desertthunder/podx/internal/tasks"
	th "github.com/desertthunder/podx/internal/testing"
)

func newTestModel(t *testing.T, svc *th.MockService) (*Model, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "export")
	lib := tasks.NewLibrary(svc, tasks.CollectOptions{PageSize: 2})
	m := NewModel(context.Background(), lib, ExportOptions{Format: formatter.FormatJSON, OutputDir: dir})
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return m, dir
}

func fixtureService() *th.MockService {
	return &th.MockService{
		Shows: []models.SavedShow{
			{Show: models.Show{ID: "s1", Name: "First Show", Publisher: "Pub", TotalEpisodes: 2}},
			{Show: models.Show{ID: "s2", Name: "Second Show", TotalEpisodes: 0}},
		},
		Episodes: map[string][]models.Episode{
			"s1": {
				{ID: "e1", Name: "Opening", DurationMS: 600000, ResumePoint: models.ResumePoint{ResumePositionMS: 300000}},
				{ID: "e2", Name: "Closing", DurationMS: 600000, ResumePoint: models.ResumePoint{FullyPlayed: true, ResumePositionMS: 600000}},
			},
			"s2": {},
		},
	}
}

// run executes cmd and feeds every resulting message back into the model until no command remains.
func run(m *Model, cmd tea.Cmd) {
	for cmd != nil {
		msg := cmd()
		if msg == nil {
			return
		}
		_, cmd = m.Update(msg)
	}
}

func press(m *Model, k string) tea.Cmd {
	var msg tea.KeyMsg
	switch k {
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		msg = tea.KeyMsg{Type: tea.KeyEsc}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
	}
	_, cmd := m.Update(msg)
	return cmd
}

func TestModel(t *testing.T) {
	t.Run("loads saved shows", func(t *testing.T) {
		m, _ := newTestModel(t, fixtureService())
		msg := m.Init()()

		fetched, ok := msg.(showsFetchedMsg)
		if !ok {
			t.Fatalf("expected showsFetchedMsg, got %T", msg)
		}
		if len(fetched.shows) != 2 {
			t.Fatalf("expected 2 shows, got %d", len(fetched.shows))
		}

		m.Update(msg)
		if got := len(m.showList.Items()); got != 2 {
			t.Errorf("expected 2 list items, got %d", got)
		}
		if !strings.Contains(m.View(), "First Show") {
			t.Error("show list should render show names")
		}
	})

	t.Run("show fetch error", func(t *testing.T) {
		svc := fixtureService()
		svc.Err = errors.New("boom")
		m, _ := newTestModel(t, svc)

		run(m, m.Init())
		if v := m.View(); !strings.Contains(v, "Error:") || !strings.Contains(v, "boom") {
			t.Errorf("expected error view, got %q", m.View())
		}

		run(m, press(m, "esc"))
		if m.err != nil {
			t.Error("esc should dismiss the error")
		}
	})

	t.Run("browse episodes and back", func(t *testing.T) {
		m, _ := newTestModel(t, fixtureService())
		run(m, m.Init())

		run(m, press(m, "enter"))
		if m.ViewState() != EpisodeListView {
			t.Fatalf("expected episode view, got %v", m.ViewState())
		}
		if m.selectedShow == nil || m.selectedShow.ID != "s1" {
			t.Fatalf("expected s1 selected, got %+v", m.selectedShow)
		}
		if len(m.episodes) != 2 || m.episodes[0].PctCompleted != 50 {
			t.Errorf("expected enriched episodes, got %+v", m.episodes)
		}

		run(m, press(m, "esc"))
		if m.ViewState() != ShowListView {
			t.Errorf("esc should return to shows, got %v", m.ViewState())
		}
	})

	t.Run("episode fetch error returns to shows", func(t *testing.T) {
		svc := fixtureService()
		svc.EpisodeErrs = map[string]error{"s1": errors.New("upstream down")}
		m, _ := newTestModel(t, svc)
		run(m, m.Init())

		run(m, press(m, "enter"))
		if m.ViewState() != ShowListView {
			t.Errorf("expected show list view, got %v", m.ViewState())
		}
		if !strings.Contains(m.View(), "upstream down") {
			t.Error("expected the error to be shown")
		}
	})

	t.Run("export selected show", func(t *testing.T) {
		m, dir := newTestModel(t, fixtureService())
		run(m, m.Init())
		run(m, press(m, "enter"))

		run(m, press(m, "x"))
		if m.ViewState() != ConfirmView {
			t.Fatalf("expected confirm view, got %v", m.ViewState())
		}
		if !strings.Contains(m.View(), "1 fully played") {
			t.Errorf("confirm view should count played episodes: %q", m.View())
		}

		run(m, press(m, "y"))
		if m.ViewState() != ResultView {
			t.Fatalf("expected result view, got %v", m.ViewState())
		}
		if m.err != nil {
			t.Fatalf("export failed: %v", m.err)
		}
		if m.summary == nil || m.summary.TotalShows != 1 {
			t.Fatalf("expected one exported show, got %+v", m.summary)
		}

		th.AssertFileExists(t, filepath.Join(dir, "s1.json"))
		th.AssertFileExists(t, filepath.Join(dir, "export_manifest.json"))
		if !strings.Contains(m.View(), "Export Complete") {
			t.Errorf("expected success view, got %q", m.View())
		}

		press(m, "r")
		if m.ViewState() != ShowListView || m.summary != nil {
			t.Error("restart should return to a clean show list")
		}
	})

	t.Run("declining export", func(t *testing.T) {
		m, _ := newTestModel(t, fixtureService())
		run(m, m.Init())
		run(m, press(m, "enter"))
		press(m, "x")

		press(m, "n")
		if m.ViewState() != EpisodeListView {
			t.Errorf("expected episode view, got %v", m.ViewState())
		}
	})

	t.Run("quit", func(t *testing.T) {
		m, _ := newTestModel(t, fixtureService())
		run(m, m.Init())

		cmd := press(m, "q")
		if cmd == nil {
			t.Fatal("expected quit command")
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Error("expected tea.QuitMsg")
		}
	})
}

func TestItems(t *testing.T) {
	show := showItem{saved: models.SavedShow{Show: models.Show{Name: "Daily", Publisher: "News Co", TotalEpisodes: 12}}}
	if show.Title() != "Daily" || show.FilterValue() != "Daily" {
		t.Errorf("unexpected show title %q", show.Title())
	}
	if show.Description() != "News Co • 12 episodes" {
		t.Errorf("unexpected show description %q", show.Description())
	}

	ep := episodeItem{episode: models.EnrichedEpisode{
		Episode:         models.Episode{Name: "Part 1", ReleaseDate: "2024-01-02"},
		ResumeMinutes:   15,
		DurationMinutes: 60,
		PctCompleted:    25,
	}}
	desc := ep.Description()
	for _, want := range []string{"[#####", " 25%", "15m of 1h 00m", "2024-01-02"} {
		if !strings.Contains(desc, want) {
			t.Errorf("episode description %q missing %q", desc, want)
		}
	}
}
