package tasks

import (
	"fmt"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	FetchShows Phase = iota
	FetchEpisodes
	ExportShow
	WriteManifest
)

func (p Phase) String() string {
	switch p {
	case FetchShows:
		return "fetch_shows"
	case FetchEpisodes:
		return "fetch_episodes"
	case ExportShow:
		return "export_show"
	case WriteManifest:
		return "write_manifest"
	default:
		return ""
	}
}

// sendProgress sends an update without blocking; updates are dropped when the channel is full.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

func fetchShowsUpdate() ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchShows,
		Step:    1,
		Total:   1,
		Message: "Fetching saved shows from Spotify...",
	}
}

func foundShowsUpdate(count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchShows,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Found %d saved shows", count),
		Data:    count,
	}
}

func fetchEpisodesUpdate(step, total int, name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchEpisodes,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Fetching episodes: %s...", step, total, name),
	}
}

func exportCompletedUpdate(step, total int, name string, filesCount int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportShow,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s (%d files)", step, total, name, filesCount),
	}
}

func exportFailedUpdate(step, total int, name string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportShow,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, name, err),
	}
}

func manifestUpdate(path string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   WriteManifest,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Wrote manifest %s", path),
		Data:    path,
	}
}
