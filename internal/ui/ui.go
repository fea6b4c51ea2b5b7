package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/podx/internal/formatter"
	"github.com/desertthunder/podx/internal/models"
	"github.com/desertthunder/podx/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	ShowListView ViewState = iota
	EpisodeListView
	ConfirmView
	ExportView
	ResultView
)

// ExportOptions controls exports started from the TUI.
type ExportOptions struct {
	Format    string
	OutputDir string
}

// Model represents the TUI application state.
type Model struct {
	ctx          context.Context
	view         ViewState
	library      *tasks.Library
	export       ExportOptions
	width        int
	height       int
	showList     list.Model
	episodeList  list.Model
	selectedShow *models.Show
	episodes     []models.EnrichedEpisode
	progressChan chan tasks.ProgressUpdate
	doneChan     chan exportCompleteMsg
	progress     tasks.ProgressUpdate
	summary      *formatter.ExportSummary
	err          error
	help         help.Model
	keys         keyMap
}

// NewModel creates a new TUI model reading from library.
func NewModel(ctx context.Context, library *tasks.Library, export ExportOptions) *Model {
	if export.Format == "" {
		export.Format = formatter.FormatMarkdown
	}
	return &Model{
		ctx:         ctx,
		view:        ShowListView,
		library:     library,
		export:      export,
		showList:    list.New(nil, list.NewDefaultDelegate(), 0, 0),
		episodeList: list.New(nil, list.NewDefaultDelegate(), 0, 0),
		help:        help.New(),
		keys:        newKeyMap(),
	}
}

// ViewState returns the view currently shown.
func (m *Model) ViewState() ViewState {
	return m.view
}

// Init initializes the TUI by fetching saved shows.
func (m *Model) Init() tea.Cmd {
	return m.fetchShows()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.showList.SetSize(msg.Width-4, msg.Height-8)
		m.episodeList.SetSize(msg.Width-4, msg.Height-8)
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case ShowListView:
			return m.handleShowListKeys(msg)
		case EpisodeListView:
			return m.handleEpisodeListKeys(msg)
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case ExportView:
			if msg.String() == "ctrl+c" {
				return m, tea.Quit
			}
			return m, nil
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case showsFetchedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		items := make([]list.Item, len(msg.shows))
		for i, s := range msg.shows {
			items[i] = showItem{saved: s}
		}
		m.showList = list.New(items, list.NewDefaultDelegate(), 0, 0)
		m.showList.Title = fmt.Sprintf("Saved Shows (%d)", len(msg.shows))
		m.showList.SetSize(m.width-4, m.height-8)
		return m, nil

	case episodesFetchedMsg:
		if msg.err != nil {
			m.err = msg.err
			m.view = ShowListView
			return m, nil
		}
		m.selectedShow = msg.show
		m.episodes = msg.episodes
		items := make([]list.Item, len(msg.episodes))
		for i, ep := range msg.episodes {
			items[i] = episodeItem{episode: ep}
		}
		m.episodeList = list.New(items, list.NewDefaultDelegate(), 0, 0)
		m.episodeList.Title = fmt.Sprintf("Episodes of '%s'", msg.show.Name)
		m.episodeList.SetSize(m.width-4, m.height-8)
		m.view = EpisodeListView
		return m, nil

	case progressUpdateMsg:
		m.progress = tasks.ProgressUpdate(msg)
		return m, m.waitForProgress()

	case exportCompleteMsg:
		m.summary = msg.summary
		m.err = msg.err
		m.view = ResultView
		m.progressChan = nil
		m.doneChan = nil
		return m, nil
	}

	return m.updateLists(msg)
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil && m.view != ResultView {
		return styles.error.Render(fmt.Sprintf("Error: %v\n\nPress esc to go back, q to quit", m.err))
	}

	switch m.view {
	case ShowListView:
		return m.renderShowList()
	case EpisodeListView:
		return m.renderEpisodeList()
	case ConfirmView:
		return m.renderConfirm()
	case ExportView:
		return m.renderExport()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) handleShowListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showList.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.showList, cmd = m.showList.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back) && m.err != nil:
		m.err = nil
		return m, nil
	case key.Matches(msg, m.keys.enter):
		if item, ok := m.showList.SelectedItem().(showItem); ok {
			return m, m.fetchEpisodes(item.saved.Show.ID)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.showList, cmd = m.showList.Update(msg)
	return m, cmd
}

func (m *Model) handleEpisodeListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.episodeList.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.episodeList, cmd = m.episodeList.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.view = ShowListView
		return m, nil
	case key.Matches(msg, m.keys.export):
		m.view = ConfirmView
		return m, nil
	}

	var cmd tea.Cmd
	m.episodeList, cmd = m.episodeList.Update(msg)
	return m, cmd
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.no), key.Matches(msg, m.keys.back), key.Matches(msg, m.keys.quit):
		m.view = EpisodeListView
		return m, nil
	case key.Matches(msg, m.keys.yes):
		m.view = ExportView
		return m, m.startExport()
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.restart):
		m.view = ShowListView
		m.selectedShow = nil
		m.summary = nil
		m.err = nil
		return m, nil
	}
	return m, nil
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case ShowListView:
		m.showList, cmd = m.showList.Update(msg)
	case EpisodeListView:
		m.episodeList, cmd = m.episodeList.Update(msg)
	}
	return m, cmd
}

func (m *Model) fetchShows() tea.Cmd {
	return func() tea.Msg {
		shows, err := m.library.SavedShows(m.ctx)
		return showsFetchedMsg{shows: shows, err: err}
	}
}

func (m *Model) fetchEpisodes(showID string) tea.Cmd {
	return func() tea.Msg {
		show, episodes, err := m.library.ShowWithEpisodes(m.ctx, showID)
		return episodesFetchedMsg{show: show, episodes: episodes, err: err}
	}
}

// startExport runs the export in the background. Progress arrives on progressChan;
// the result is delivered on doneChan after progressChan is closed.
func (m *Model) startExport() tea.Cmd {
	progress := make(chan tasks.ProgressUpdate, 50)
	done := make(chan exportCompleteMsg, 1)
	m.progressChan = progress
	m.doneChan = done
	m.progress = tasks.ProgressUpdate{}

	opts := tasks.ExportOpts{
		Format:     m.export.Format,
		OutputDir:  m.export.OutputDir,
		NumWorkers: 1,
		ShowIDs:    []string{m.selectedShow.ID},
	}

	go func() {
		summary, err := m.library.Export(m.ctx, progress, opts)
		close(progress)
		done <- exportCompleteMsg{summary: summary, err: err}
	}()

	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	progress, done := m.progressChan, m.doneChan
	return func() tea.Msg {
		if update, ok := <-progress; ok {
			return progressUpdateMsg(update)
		}
		return <-done
	}
}

func (m *Model) renderShowList() string {
	helpKeys := []key.Binding{m.keys.enter, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)
	return fmt.Sprintf("%s\n\n%s", m.showList.View(), helpView)
}

func (m *Model) renderEpisodeList() string {
	helpKeys := []key.Binding{m.keys.export, m.keys.back, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)
	return fmt.Sprintf("%s\n\n%s", m.episodeList.View(), helpView)
}

func (m *Model) renderConfirm() string {
	title := styles.title.Render(fmt.Sprintf("Export '%s'?", m.selectedShow.Name))

	played := 0
	for _, ep := range m.episodes {
		if ep.ResumePoint.FullyPlayed {
			played++
		}
	}
	info := fmt.Sprintf("\nEpisodes: %d (%d fully played)\nFormat: %s\n", len(m.episodes), played, m.export.Format)

	helpKeys := []key.Binding{m.keys.yes, m.keys.no}
	helpView := m.help.ShortHelpView(helpKeys)

	return fmt.Sprintf("%s\n%s\n%s", title, info, helpView)
}

func (m *Model) renderExport() string {
	title := styles.title.Render("Exporting Show")

	var phase string
	switch m.progress.Phase {
	case tasks.FetchShows:
		phase = "Fetching saved shows..."
	case tasks.FetchEpisodes:
		phase = fmt.Sprintf("Fetching episodes (%d/%d)", m.progress.Step, m.progress.Total)
	case tasks.ExportShow:
		phase = fmt.Sprintf("Writing files (%d/%d)", m.progress.Step, m.progress.Total)
	case tasks.WriteManifest:
		phase = "Writing manifest..."
	default:
		phase = "Processing..."
	}

	return fmt.Sprintf("%s\n\n%s\n%s", title, phase, styles.help.Render(m.progress.Message))
}

func (m *Model) renderResult() string {
	restart := m.help.ShortHelpView([]key.Binding{m.keys.restart, m.keys.quit})

	if m.err != nil {
		return styles.error.Render(fmt.Sprintf("Export failed: %v", m.err)) + "\n\n" + restart
	}
	if m.summary == nil || len(m.summary.Results) == 0 {
		return styles.warning.Render("Nothing was exported") + "\n\n" + restart
	}

	result := m.summary.Results[0]
	if !result.Success {
		return styles.error.Render(fmt.Sprintf("Export of '%s' failed: %v", result.ShowName, result.Error)) + "\n\n" + restart
	}

	var b strings.Builder
	b.WriteString(styles.success.Render("✓ Export Complete!"))
	fmt.Fprintf(&b, "\n\nShow: %s (%d episodes)\nFiles:", result.ShowName, result.Episodes)
	for _, f := range result.Files {
		fmt.Fprintf(&b, "\n  • %s", f)
	}
	if m.summary.ManifestPath != "" {
		fmt.Fprintf(&b, "\nManifest: %s", m.summary.ManifestPath)
	}
	b.WriteString("\n\n" + restart)
	return b.String()
}
