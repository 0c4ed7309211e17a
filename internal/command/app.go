package command

import (
	"context"
	"errors"
	"strings"

	"github.com/urfave/cli/v2"

	"tokentrim/cli/internal/config"
)

type Deps struct {
	LoadConfig     func() config.Config
	RunServe       func(context.Context, config.Config) error
	AnalyzeFiles   func(context.Context, config.Config, []string) error
	CompressFiles  func(context.Context, config.Config, []string) error
	ExportFiles    func(context.Context, config.Config, string, []string) error
	LosslessEncode func(context.Context, config.Config, []string) error
	LosslessDecode func(context.Context, config.Config, string, bool) error
	ListArtifacts  func(context.Context, config.Config, int) error
	ClearArtifacts func(context.Context, config.Config) error
}

func BuildApp(deps Deps) *cli.App {
	return &cli.App{
		Name:  "tokentrim",
		Usage: "token-aware file compression client",
		Action: func(ctx *cli.Context) error {
			return runServe(ctx.Context, deps, loadConfig(deps))
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "start the local API server",
				Action: func(ctx *cli.Context) error {
					return runServe(ctx.Context, deps, loadConfig(deps))
				},
			},
			{
				Name:      "analyze",
				Usage:     "analyze files and print token estimates",
				ArgsUsage: "FILE...",
				Action: func(ctx *cli.Context) error {
					if ctx.NArg() == 0 {
						return errors.New("at least one file is required")
					}
					if deps.AnalyzeFiles == nil {
						return errors.New("analyze runner is not configured")
					}
					return deps.AnalyzeFiles(ctx.Context, loadConfig(deps), ctx.Args().Slice())
				},
			},
			{
				Name:      "compress",
				Usage:     "compress files and print the reports",
				ArgsUsage: "FILE...",
				Action: func(ctx *cli.Context) error {
					if ctx.NArg() == 0 {
						return errors.New("at least one file is required")
					}
					if deps.CompressFiles == nil {
						return errors.New("compress runner is not configured")
					}
					return deps.CompressFiles(ctx.Context, loadConfig(deps), ctx.Args().Slice())
				},
			},
			{
				Name:      "export",
				Usage:     "run the export pipeline and save the artifact",
				ArgsUsage: "FILE...",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "mode",
						Value: "raw",
						Usage: "pipeline mode: raw, compressed, no-extension or with-extension",
					},
				},
				Action: func(ctx *cli.Context) error {
					if ctx.NArg() == 0 {
						return errors.New("at least one file is required")
					}
					mode := strings.TrimSpace(ctx.String("mode"))
					if deps.ExportFiles == nil {
						return errors.New("export runner is not configured")
					}
					return deps.ExportFiles(ctx.Context, loadConfig(deps), mode, ctx.Args().Slice())
				},
			},
			{
				Name:  "lossless",
				Usage: "lossless bundle codec",
				Subcommands: []*cli.Command{
					{
						Name:      "encode",
						Usage:     "encode files into a lossless bundle",
						ArgsUsage: "FILE...",
						Action: func(ctx *cli.Context) error {
							if ctx.NArg() == 0 {
								return errors.New("at least one file is required")
							}
							if deps.LosslessEncode == nil {
								return errors.New("lossless encode runner is not configured")
							}
							return deps.LosslessEncode(ctx.Context, loadConfig(deps), ctx.Args().Slice())
						},
					},
					{
						Name:      "decode",
						Usage:     "decode a lossless bundle back into files",
						ArgsUsage: "BUNDLE",
						Flags: []cli.Flag{
							&cli.BoolFlag{
								Name:  "embedded",
								Usage: "treat the input as an export with embedded decode tables",
							},
						},
						Action: func(ctx *cli.Context) error {
							if ctx.NArg() != 1 {
								return errors.New("exactly one bundle file is required")
							}
							if deps.LosslessDecode == nil {
								return errors.New("lossless decode runner is not configured")
							}
							return deps.LosslessDecode(ctx.Context, loadConfig(deps), ctx.Args().First(), ctx.Bool("embedded"))
						},
					},
				},
			},
			{
				Name:  "artifacts",
				Usage: "saved export artifact history",
				Subcommands: []*cli.Command{
					{
						Name:  "list",
						Usage: "list saved artifacts, newest first",
						Flags: []cli.Flag{
							&cli.IntFlag{
								Name:  "limit",
								Value: 20,
								Usage: "maximum number of entries to show",
							},
						},
						Action: func(ctx *cli.Context) error {
							if deps.ListArtifacts == nil {
								return errors.New("artifact list runner is not configured")
							}
							return deps.ListArtifacts(ctx.Context, loadConfig(deps), ctx.Int("limit"))
						},
					},
					{
						Name:  "clear",
						Usage: "delete the artifact history",
						Action: func(ctx *cli.Context) error {
							if deps.ClearArtifacts == nil {
								return errors.New("artifact clear runner is not configured")
							}
							return deps.ClearArtifacts(ctx.Context, loadConfig(deps))
						},
					},
				},
			},
		},
	}
}

func loadConfig(deps Deps) config.Config {
	if deps.LoadConfig != nil {
		return deps.LoadConfig()
	}
	return config.LoadConfig()
}

func runServe(ctx context.Context, deps Deps, cfg config.Config) error {
	if deps.RunServe == nil {
		return errors.New("serve runner is not configured")
	}
	return deps.RunServe(ctx, cfg)
}
