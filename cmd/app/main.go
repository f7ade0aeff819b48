package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/timelapse/internal"
	pkgconfig "github.com/starford/timelapse/pkg/config"
)

const usage = "Usage: timelapse <start-year> <end-year> <output-dir>"

func run(ctx context.Context, cmd *cli.Command) error {
	if cmd.NArg() != 3 {
		return cli.Exit(usage, 1)
	}
	args := cmd.Args().Slice()

	start, err := strconv.Atoi(args[0])
	if err != nil {
		return cli.Exit(fmt.Sprintf("invalid start year %q\n%s", args[0], usage), 1)
	}
	end, err := strconv.Atoi(args[1])
	if err != nil {
		return cli.Exit(fmt.Sprintf("invalid end year %q\n%s", args[1], usage), 1)
	}

	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(os.Getenv("TIMELAPSE_CONFIG"), cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	opts := []internal.Option{
		internal.WithConfig(cfg),
		internal.WithYears(start, end),
		internal.WithOutputDir(args[2]),
	}

	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}

	return nil
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:        "timelapse",
		Usage:       "Build yearly Landsat composites for a region of interest",
		ArgsUsage:   "<start-year> <end-year> <output-dir>",
		HideHelp:    true,
		HideVersion: true,
		Action:      run,
	}
}

func main() {
	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
