package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/schemaview/internal"
	pkgconfig "github.com/starford/schemaview/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func run(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func runMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.RunMCP(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("mcp run error: %w", err)
	}
	return nil
}

func runTree(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 1 {
		return fmt.Errorf("usage: schemaview tree [flags] <schema-path>")
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	req := internal.TreeRequest{
		Path:   cmd.Args().First(),
		Unwrap: cmd.StringSlice("unwrap"),
	}
	if cmd.IsSet("depth") {
		d := int(cmd.Int("depth"))
		req.Options.ExpandedDepth = &d
	}
	if cmd.IsSet("merge-all-of") {
		m := cmd.Bool("merge-all-of")
		req.Options.MergeAllOf = &m
	}
	if cmd.IsSet("limit") {
		l := int(cmd.Int("limit"))
		req.Options.LimitPropertyCount = &l
	}
	return internal.RenderTree(ctx, os.Stdout, req, internal.WithConfig(cfg))
}

func main() {
	cmd := &cli.Command{
		Name:   "schemaview",
		Usage:  "Browse JSON Schema catalogs as lazily expanded trees",
		Action: run,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "mcp",
				Usage:  "Serve catalog and tree tools over MCP stdio",
				Action: runMCP,
			},
			{
				Name:      "tree",
				Usage:     "Print the tree outline of a schema",
				ArgsUsage: "<schema-path>",
				Action:    runTree,
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "depth", Aliases: []string{"d"}, Usage: "Levels populated and shown open"},
					&cli.BoolFlag{Name: "merge-all-of", Usage: "Fold allOf branches into their parent"},
					&cli.IntFlag{Name: "limit", Usage: "Property listing limit"},
					&cli.StringSliceFlag{Name: "unwrap", Aliases: []string{"u"}, Usage: "JSON Pointer of a node to unwrap; repeatable"},
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
