package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/podx/internal/formatter"
	"github.com/desertthunder/podx/internal/shared"
	"github.com/urfave/cli/v3"
)

// ShowsList prints the user's saved shows.
func (r *Runner) ShowsList(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	lib, err := r.library(ctx)
	if err != nil {
		return err
	}

	r.logger.Info("listing saved shows", "format", format)

	shows, err := lib.SavedShows(ctx)
	if err != nil {
		return err
	}

	if limit := cmd.Int("limit"); limit > 0 && limit < len(shows) {
		shows = shows[:limit]
	}

	return formatter.RenderShows(r.output, format, shows)
}

// ShowsEpisodes prints a show's episodes with listening progress.
func (r *Runner) ShowsEpisodes(ctx context.Context, cmd *cli.Command) error {
	showID := cmd.StringArg("id")
	if showID == "" {
		return fmt.Errorf("%w: show id", shared.ErrMissingArgument)
	}

	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	lib, err := r.library(ctx)
	if err != nil {
		return err
	}

	r.logger.Info("listing episodes", "show", showID, "format", format)

	show, episodes, err := lib.ShowWithEpisodes(ctx, showID)
	if err != nil {
		return err
	}

	return formatter.RenderEpisodes(r.output, format, *show, episodes)
}
