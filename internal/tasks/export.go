package tasks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/desertthunder/podx/internal/formatter"
	"github.com/desertthunder/podx/internal/models"
	"github.com/desertthunder/podx/internal/shared"
	"golang.org/x/time/rate"
)

// ExportOpts contains configuration for exporting the library.
type ExportOpts struct {
	Format         string   // Export format: json, csv, markdown, text
	OutputDir      string   // Base output directory (default: podx_export_{epoch})
	NumWorkers     int      // Concurrent workers (default: 4, max: 10)
	RateLimit      float64  // Shows dispatched per second (default: 2)
	DownloadCovers bool     // Fetch show artwork for markdown exports
	ShowIDs        []string // Restrict the export to these shows; empty exports every saved show
}

type exportJob struct {
	show models.Show
}

// Export writes every saved show's enriched episodes to files under opts.OutputDir.
//
// Shows are dispatched to a bounded pool of workers at a rate of opts.RateLimit per second.
// A failing show is recorded in the summary and does not stop the others. A manifest
// describing every result is written to {OutputDir}/export_manifest.json.
func (l *Library) Export(ctx context.Context, prog chan<- ProgressUpdate, opts ExportOpts) (*formatter.ExportSummary, error) {
	if l.svc == nil {
		return nil, fmt.Errorf("%w: podcast service not initialized", shared.ErrServiceUnavailable)
	}

	format, err := formatter.ParseFormat(opts.Format)
	if err != nil {
		return nil, err
	}
	opts.Format = format

	if opts.OutputDir == "" {
		opts.OutputDir = fmt.Sprintf("podx_export_%d", time.Now().Unix())
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 4
	}
	if opts.NumWorkers > 10 {
		opts.NumWorkers = 10
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 2.0
	}

	sendProgress(prog, fetchShowsUpdate())
	saved, err := l.SavedShows(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch saved shows: %w", err)
	}

	shows := make([]models.Show, 0, len(saved))
	for _, s := range saved {
		if len(opts.ShowIDs) == 0 || slices.Contains(opts.ShowIDs, s.Show.ID) {
			shows = append(shows, s.Show)
		}
	}
	sendProgress(prog, foundShowsUpdate(len(shows)))

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	summary := &formatter.ExportSummary{
		TotalShows:      len(shows),
		OutputDirectory: opts.OutputDir,
		Results:         make([]formatter.ExportResult, 0, len(shows)),
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)

	jobs := make(chan exportJob)
	results := make(chan formatter.ExportResult, len(shows))

	var wg sync.WaitGroup
	for range opts.NumWorkers {
		wg.Add(1)
		go l.exportWorker(ctx, &wg, jobs, results, opts)
	}

	go func() {
		defer close(jobs)
		for i, show := range shows {
			if err := limiter.Wait(ctx); err != nil {
				return
			}
			sendProgress(prog, fetchEpisodesUpdate(i+1, len(shows), show.Name))

			select {
			case jobs <- exportJob{show: show}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for res := range results {
		completed++
		summary.Results = append(summary.Results, res)

		if res.Success {
			summary.SuccessfulExports++
			sendProgress(prog, exportCompletedUpdate(completed, len(shows), res.ShowName, len(res.Files)))
		} else {
			summary.FailedExports++
			sendProgress(prog, exportFailedUpdate(completed, len(shows), res.ShowName, res.Error))
		}
	}

	if err := ctx.Err(); err != nil {
		return summary, fmt.Errorf("export interrupted after %d of %d shows: %w", completed, len(shows), err)
	}

	manifestPath := filepath.Join(opts.OutputDir, "export_manifest.json")
	if err := formatter.WriteExportManifest(*summary, opts.Format, manifestPath); err != nil {
		return summary, fmt.Errorf("export completed but failed to write manifest: %w", err)
	}
	summary.ManifestPath = manifestPath
	sendProgress(prog, manifestUpdate(manifestPath))

	return summary, nil
}

// exportWorker exports shows received on jobs until the channel is closed.
func (l *Library) exportWorker(
	ctx context.Context,
	wg *sync.WaitGroup,
	jobs <-chan exportJob,
	results chan<- formatter.ExportResult,
	opts ExportOpts,
) {
	defer wg.Done()

	for job := range jobs {
		results <- l.exportShow(ctx, job.show, opts)
	}
}

func (l *Library) exportShow(ctx context.Context, show models.Show, opts ExportOpts) formatter.ExportResult {
	result := formatter.ExportResult{
		ShowID:   show.ID,
		ShowName: show.Name,
		Files:    []string{},
	}

	episodes, err := l.Episodes(ctx, show.ID)
	if err != nil {
		result.Error = fmt.Errorf("failed to fetch episodes: %w", err)
		return result
	}
	result.Episodes = len(episodes)

	files, err := formatter.WriteShowExport(formatter.ShowExport{Show: show, Episodes: episodes}, opts.Format, opts.OutputDir, opts.DownloadCovers)
	if err != nil {
		result.Error = fmt.Errorf("%s export failed: %w", opts.Format, err)
		return result
	}

	result.Files = files
	result.Success = true
	return result
}
