package tasks

import (
	"math"

	"github.com/desertthunder/podx/internal/models"
)

const msPerMinute = 60000

// EnrichEpisode derives listened minutes, duration minutes and percent completed for e.
//
// Values are rounded half away from zero. An episode with no duration reports 0% completed.
func EnrichEpisode(e models.Episode) models.EnrichedEpisode {
	resume := float64(e.ResumePoint.ResumePositionMS)
	duration := float64(e.DurationMS)

	enriched := models.EnrichedEpisode{
		Episode:         e,
		ResumeMinutes:   int(math.Round(resume / msPerMinute)),
		DurationMinutes: int(math.Round(duration / msPerMinute)),
	}
	if e.DurationMS > 0 {
		enriched.PctCompleted = int(math.Round(resume / duration * 100))
	}
	return enriched
}

// EnrichEpisodes applies [EnrichEpisode] to every episode, preserving order.
func EnrichEpisodes(episodes []models.Episode) []models.EnrichedEpisode {
	out := make([]models.EnrichedEpisode, len(episodes))
	for i, e := range episodes {
		out[i] = EnrichEpisode(e)
	}
	return out
}
