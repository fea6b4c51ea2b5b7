package ui

import (
	"github.com/desertthunder/podx/internal/formatter"
	"github.com/desertthunder/podx/internal/models"
	"github.com/desertthunder/podx/internal/tasks"
)

// showsFetchedMsg carries the saved shows loaded at startup.
type showsFetchedMsg struct {
	shows []models.SavedShow
	err   error
}

// episodesFetchedMsg carries a show's enriched episodes.
type episodesFetchedMsg struct {
	show     *models.Show
	episodes []models.EnrichedEpisode
	err      error
}

type progressUpdateMsg tasks.ProgressUpdate

// exportCompleteMsg carries the outcome of an export started from the episode view.
type exportCompleteMsg struct {
	summary *formatter.ExportSummary
	err     error
}
