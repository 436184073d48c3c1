package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/charadev96/repguard/internal/config"
	"github.com/charadev96/repguard/internal/shared/log"
)

func main() {
	app := &cli.App{
		Name:  "repguard",
		Usage: "reputation and moderation bot for chat communities",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to the TOML configuration file",
				Value:   config.DefaultPath,
				EnvVars: []string{"REPGUARD_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "override the configured log level",
			},
		},
		Commands: []*cli.Command{
			serveCommand,
			initCommand,
			reinitCommand,
			statusesCommand,
			ledgerCommand,
			userCommand,
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := app.RunContext(ctx, os.Args)
	stop()
	if err != nil {
		logger := log.New("main")
		logger.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

// loadConfig reads the configuration named by the global flags and
// applies the log level.
func loadConfig(cctx *cli.Context) (config.Config, error) {
	cfg, err := config.Load(cctx.String("config"))
	if err != nil {
		return cfg, err
	}
	if lvl := cctx.String("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}
	if err := log.SetLevel(cfg.Log.Level); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}
