package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/fanlist/internal/shared"
	"github.com/urfave/cli/v3"
)

// APIGet makes an authenticated GET against the Web API and prints the body.
//
// Paths are relative to the API base URL; absolute URLs (e.g. a paging "next" link) are used as given.
func (r *Runner) APIGet(ctx context.Context, cmd *cli.Command) error {
	path := cmd.StringArg("path")
	if path == "" {
		return fmt.Errorf("%w: path", shared.ErrMissingArgument)
	}
	if err := r.connect(); err != nil {
		return err
	}
	if r.api == nil {
		return fmt.Errorf("%w: API client not initialized", shared.ErrServiceUnavailable)
	}

	r.logger.Debug("GET request", "path", path)

	resp, err := r.api.Get(ctx, path)
	if err != nil {
		return err
	}

	if resp.IsJSON {
		return r.writeJSON(resp.JSONData, cmd.Bool("pretty"))
	}

	if _, err := r.output.Write(resp.Body); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return r.writePlain("\n")
}
