package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/desertthunder/fanlist/internal/shared"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)
	runner := NewRunner(RunnerOpts{Logger: logger})
	defer runner.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp(runner).Run(ctx, os.Args); err != nil {
		stop()
		runner.Close()
		logger.Fatal("fanlist", "error", err)
	}
}

func newApp(r *Runner) *cli.Command {
	return &cli.Command{
		Name:     "fanlist",
		Usage:    "Build a Spotify playlist from every track of the artists you follow",
		Version:  "0.3.0",
		Flags:    rootFlags(),
		Before:   r.setup,
		Commands: r.register(),
	}
}
