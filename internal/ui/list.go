package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/podx/internal/formatter"
	"github.com/desertthunder/podx/internal/models"
)

var (
	_ list.Item = showItem{}
	_ list.Item = episodeItem{}
)

// showItem wraps [models.SavedShow] to implement [list.Item].
type showItem struct {
	saved models.SavedShow
}

func (i showItem) FilterValue() string { return i.saved.Show.Name }
func (i showItem) Title() string       { return i.saved.Show.Name }
func (i showItem) Description() string {
	desc := fmt.Sprintf("%d episodes", i.saved.Show.TotalEpisodes)
	if i.saved.Show.Publisher != "" {
		desc = fmt.Sprintf("%s • %s", i.saved.Show.Publisher, desc)
	}
	return desc
}

// episodeItem wraps [models.EnrichedEpisode] to implement [list.Item].
type episodeItem struct {
	episode models.EnrichedEpisode
}

func (i episodeItem) FilterValue() string { return i.episode.Name }

func (i episodeItem) Title() string {
	if i.episode.ResumePoint.FullyPlayed {
		return styles.played.Render("✓ " + i.episode.Name)
	}
	return i.episode.Name
}

func (i episodeItem) Description() string {
	return fmt.Sprintf("%s %3d%%  %s of %s • %s",
		formatter.ProgressBar(i.episode.PctCompleted, 20),
		i.episode.PctCompleted,
		formatter.FormatMinutes(i.episode.ResumeMinutes),
		formatter.FormatMinutes(i.episode.DurationMinutes),
		i.episode.ReleaseDate,
	)
}
