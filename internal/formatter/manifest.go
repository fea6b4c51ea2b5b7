package formatter

import (
	"fmt"
	"os"
	"time"

	"github.com/desertthunder/podx/internal/shared"
)

// ExportResult is the outcome of exporting a single show.
type ExportResult struct {
	ShowID   string
	ShowName string
	Episodes int
	Success  bool
	Files    []string
	Error    error
}

// ExportSummary aggregates the results of a library export.
type ExportSummary struct {
	TotalShows        int
	SuccessfulExports int
	FailedExports     int
	Results           []ExportResult
	OutputDirectory   string
	ManifestPath      string
}

type manifest struct {
	Format            string          `json:"format"`
	CreatedAt         time.Time       `json:"created_at"`
	OutputDirectory   string          `json:"output_directory"`
	TotalShows        int             `json:"total_shows"`
	SuccessfulExports int             `json:"successful_exports"`
	FailedExports     int             `json:"failed_exports"`
	Shows             []manifestEntry `json:"shows"`
}

type manifestEntry struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Episodes int      `json:"episodes"`
	Status   string   `json:"status"`
	Files    []string `json:"files,omitempty"`
	Error    string   `json:"error,omitempty"`
}

// WriteExportManifest writes a JSON manifest describing summary to path.
func WriteExportManifest(summary ExportSummary, format, path string) error {
	m := manifest{
		Format:            format,
		CreatedAt:         time.Now().UTC(),
		OutputDirectory:   summary.OutputDirectory,
		TotalShows:        summary.TotalShows,
		SuccessfulExports: summary.SuccessfulExports,
		FailedExports:     summary.FailedExports,
		Shows:             make([]manifestEntry, 0, len(summary.Results)),
	}

	for _, r := range summary.Results {
		entry := manifestEntry{
			ID:       r.ShowID,
			Name:     r.ShowName,
			Episodes: r.Episodes,
			Status:   "success",
			Files:    r.Files,
		}
		if !r.Success {
			entry.Status = "failed"
		}
		if r.Error != nil {
			entry.Error = r.Error.Error()
		}
		m.Shows = append(m.Shows, entry)
	}

	data, err := shared.MarshalJSON(m, true)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}
