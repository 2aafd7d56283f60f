package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"ragchat/cmd/ragchat/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &cli.Command{
		Name:  "ragchat",
		Usage: "persona chat assistant grounded in a local knowledge base",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "path to YAML config (default ./config.yaml, then ~/.config/ragchat/config.yaml)",
			},
			&cli.StringFlag{
				Name:  "env",
				Usage: "environment file with API keys",
				Value: ".env",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "build",
				Usage: "chunk, embed and index the corpus, then save the knowledge base",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "corpus", Usage: "corpus directory (overrides kb.corpus_dir)"},
					&cli.StringFlag{Name: "out", Usage: "output directory (overrides kb.index_dir)"},
					&cli.IntFlag{Name: "chunk-size", Usage: "words per chunk (overrides chunker.chunk_size)"},
					&cli.IntFlag{Name: "chunk-overlap", Usage: "words shared by consecutive chunks (overrides chunker.chunk_overlap)"},
				},
				Action: commands.BuildAction,
			},
			{
				Name:      "query",
				Usage:     "search the knowledge base",
				ArgsUsage: "[TEXT...]",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "k", Usage: "number of results (overrides retrieval.top_k)"},
					&cli.BoolFlag{Name: "interactive", Aliases: []string{"i"}, Usage: "open the search browser"},
				},
				Action: commands.QueryAction,
			},
			{
				Name:   "chat",
				Usage:  "chat with the persona",
				Action: commands.ChatAction,
			},
			{
				Name:  "config",
				Usage: "configuration helpers",
				Commands: []*cli.Command{
					{
						Name:      "init",
						Usage:     "write the default configuration",
						ArgsUsage: "[PATH]",
						Flags: []cli.Flag{
							&cli.BoolFlag{Name: "force", Usage: "overwrite an existing file"},
						},
						Action: commands.ConfigInitAction,
					},
				},
			},
		},
	}

	if err := app.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "ragchat:", err)
		os.Exit(1)
	}
}
