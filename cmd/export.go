package main

import (
	"context"

	"github.com/desertthunder/podx/internal/formatter"
	"github.com/desertthunder/podx/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Export writes every saved show's enriched episodes to files and prints a summary.
func (r *Runner) Export(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	lib, err := r.library(ctx)
	if err != nil {
		return err
	}

	opts := tasks.ExportOpts{
		Format:         format,
		OutputDir:      cmd.String("output"),
		NumWorkers:     cmd.Int("workers"),
		RateLimit:      cmd.Float("rate"),
		DownloadCovers: cmd.Bool("covers"),
		ShowIDs:        cmd.StringSlice("show"),
	}

	summary, err := r.export(ctx, lib, opts)
	if err != nil {
		return err
	}
	r.printExportSummary(summary)
	return nil
}

// export runs lib.Export, printing progress updates as they arrive.
func (r *Runner) export(ctx context.Context, lib *tasks.Library, opts tasks.ExportOpts) (*formatter.ExportSummary, error) {
	prog := make(chan tasks.ProgressUpdate, 32)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for u := range prog {
			if u.Total > 0 {
				r.writePlain("[%d/%d] %s\n", u.Step, u.Total, u.Message)
			} else {
				r.writePlain("%s\n", u.Message)
			}
		}
	}()

	summary, err := lib.Export(ctx, prog, opts)
	close(prog)
	<-done

	return summary, err
}

func (r *Runner) printExportSummary(summary *formatter.ExportSummary) {
	r.writePlainln("")
	r.writePlainHeader("Export complete")
	r.writePlain("Shows:     %d\n", summary.TotalShows)
	r.writePlain("Exported:  %d\n", summary.SuccessfulExports)
	r.writePlain("Failed:    %d\n", summary.FailedExports)
	r.writePlain("Directory: %s\n", summary.OutputDirectory)
	if summary.ManifestPath != "" {
		r.writePlain("Manifest:  %s\n", summary.ManifestPath)
	}

	if summary.FailedExports == 0 {
		return
	}

	r.writePlain("\nFailures:\n")
	for _, res := range summary.Results {
		if !res.Success {
			r.writePlain("  ✗ %s (%s): %v\n", res.ShowName, res.ShowID, res.Error)
		}
	}
}
