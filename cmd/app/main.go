package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/geoplan/internal"
	"github.com/starford/geoplan/internal/client"
	"github.com/starford/geoplan/internal/editor"
	"github.com/starford/geoplan/internal/replay"
	pkgconfig "github.com/starford/geoplan/pkg/config"
)

var version = "dev"

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.Load(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func run(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	opts := []internal.Option{
		internal.WithConfig(cfg),
		internal.WithVersion(version),
	}

	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}

	return nil
}

func runMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.RunMCP(ctx, internal.WithConfig(cfg), internal.WithVersion(version)); err != nil {
		return fmt.Errorf("mcp server error: %w", err)
	}
	return nil
}

func runReplay(ctx context.Context, cmd *cli.Command) error {
	path := cmd.Args().First()
	if path == "" {
		return fmt.Errorf("script path is required")
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open script: %w", err)
	}
	defer f.Close()

	script, err := replay.Parse(f)
	if err != nil {
		return err
	}
	if plan := int64(cmd.Int("plan")); plan > 0 {
		script.PlanID = plan
	}

	// The config file is optional here; its editor section tunes snapping.
	cfg := internal.NewDefaultConfig()
	if _, err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.App.LogLevel}))
	remote := client.New(cmd.String("server"), client.WithToken(cmd.String("token")))

	res, err := replay.Run(ctx, remote, script, logger,
		editor.WithSnap(cfg.Editor.Snap()),
		editor.WithHistoryLimit(cfg.Editor.HistoryLimit),
		editor.WithSaveTimeout(cfg.Editor.SaveTimeout),
		editor.WithMultiInstance(cfg.Editor.MultiInstance),
		editor.WithMarkerSize(cfg.Editor.MarkerSize, cfg.Editor.MarkerSize),
	)
	if err != nil {
		return fmt.Errorf("replay: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

func main() {
	configFlag := &cli.StringFlag{
		Name:        "config",
		Aliases:     []string{"c"},
		Usage:       "Path to config file",
		DefaultText: "config/config.yaml",
		Value:       "config/config.yaml",
		Sources:     cli.EnvVars("APP_CONFIG_FILE"),
	}

	cmd := &cli.Command{
		Name:    "geoplan",
		Usage:   "Place geo-code markers on floor plans and keep them in sync with the position store",
		Version: version,
		Action:  run,
		Flags:   []cli.Flag{configFlag},
		Commands: []*cli.Command{
			{
				Name:   "mcp",
				Usage:  "Serve placement tools over MCP on stdio",
				Action: runMCP,
			},
			{
				Name:      "replay",
				Usage:     "Replay an editing script against a running geoplan server",
				ArgsUsage: "<script.yaml>",
				Action:    runReplay,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "server",
						Usage:   "Base URL of the geoplan API",
						Value:   "http://localhost:8080/api",
						Sources: cli.EnvVars("GEOPLAN_SERVER"),
					},
					&cli.StringFlag{
						Name:    "token",
						Usage:   "Bearer token for the API",
						Sources: cli.EnvVars("GEOPLAN_TOKEN"),
					},
					&cli.IntFlag{
						Name:  "plan",
						Usage: "Override the plan id named in the script",
					},
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
