package main

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/manifoldco/promptui"
	"github.com/urfave/cli/v2"

	"github.com/charadev96/repguard/internal/bot"
	"github.com/charadev96/repguard/internal/bot/domain"
	"github.com/charadev96/repguard/internal/bot/handler/telegram"
	"github.com/charadev96/repguard/internal/bot/repository"
	"github.com/charadev96/repguard/internal/bot/service"
	"github.com/charadev96/repguard/internal/config"
	"github.com/charadev96/repguard/internal/shared/log"
)

var serveCommand = &cli.Command{
	Name:   "serve",
	Usage:  "run the bot with its admin and metrics listeners",
	Action: serve,
}

var initCommand = &cli.Command{
	Name:  "init",
	Usage: "create the document store, or repair a damaged one",
	Action: func(cctx *cli.Context) error {
		return withStack(cctx, func(ctx context.Context, cfg config.Config, st *stack) error {
			if err := st.runner.Init(ctx); err != nil {
				return fmt.Errorf("failed to init document store: %w", err)
			}
			logger := log.New("main")
			logger.Info().
				Str("backend", cfg.Store.Backend).
				Msg("document store ready")
			return nil
		})
	},
}

var reinitCommand = &cli.Command{
	Name:  "reinit",
	Usage: "replace the document with a fresh default one",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "yes",
			Usage: "do not ask for confirmation",
		},
	},
	Action: func(cctx *cli.Context) error {
		if !cctx.Bool("yes") {
			prompt := promptui.Prompt{
				Label:     "All users, moderators and ledger entries will be lost. Continue",
				IsConfirm: true,
			}
			if _, err := prompt.Run(); err != nil {
				if errors.Is(err, promptui.ErrAbort) || errors.Is(err, promptui.ErrInterrupt) {
					return fmt.Errorf("reinit aborted")
				}
				return err
			}
		}
		return withStack(cctx, func(ctx context.Context, cfg config.Config, st *stack) error {
			doc, err := st.store.Reinitialize(ctx)
			if err != nil {
				return fmt.Errorf("failed to reinitialize document store: %w", err)
			}
			logger := log.New("main")
			logger.Warn().
				Str("backend", cfg.Store.Backend).
				Int64("revision", doc.Revision).
				Msg("document store reinitialized")
			return nil
		})
	},
}

var statusesCommand = &cli.Command{
	Name:  "statuses",
	Usage: "print the status taxonomy",
	Action: func(cctx *cli.Context) error {
		return withStack(cctx, func(ctx context.Context, cfg config.Config, st *stack) error {
			var (
				statuses map[string]domain.StatusCategory
				counts   map[string]int
			)
			err := st.runner.View(ctx, func(ctx context.Context) error {
				var err error
				if statuses, err = st.statuses.List(ctx); err != nil {
					return err
				}
				counts, err = st.users.CountByStatus(ctx)
				return err
			})
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cctx.App.Writer, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CODE\tTITLE\tUSERS\tDESCRIPTION")
			for _, code := range slices.Sorted(maps.Keys(statuses)) {
				c := statuses[code]
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", code, c.Title, counts[code], c.Description)
			}
			return w.Flush()
		})
	},
}

var ledgerCommand = &cli.Command{
	Name:  "ledger",
	Usage: "print the most recent status changes",
	Flags: []cli.Flag{
		&cli.IntFlag{
			Name:    "limit",
			Aliases: []string{"n"},
			Value:   service.DefaultRecentEntries,
		},
		&cli.BoolFlag{
			Name:  "mirror",
			Usage: "read the sqlite ledger mirror instead of the document",
		},
	},
	Action: func(cctx *cli.Context) error {
		return withStack(cctx, func(ctx context.Context, cfg config.Config, st *stack) error {
			var (
				entries []domain.LedgerEntry
				err     error
			)
			n := cctx.Int("limit")
			if cctx.Bool("mirror") {
				if st.mirror == nil {
					return fmt.Errorf("store.mirror is not enabled")
				}
				entries, err = st.mirror.Recent(ctx, n)
			} else {
				err = st.runner.View(ctx, func(ctx context.Context) error {
					var err error
					entries, err = st.ledger.Recent(ctx, n)
					return err
				})
			}
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cctx.App.Writer, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tMODERATOR\tTARGET\tCHANGE\tPROOF\tCOMMENT")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%d\t%d\t%s -> %s\t%s\t%s\n",
					e.Time.UTC().Format(time.RFC3339), e.ModeratorID, e.TargetID,
					e.OldStatus, e.NewStatus, e.Proof, e.Comment)
			}
			return w.Flush()
		})
	},
}

var userCommand = &cli.Command{
	Name:      "user",
	Usage:     "print the stored record of a user",
	ArgsUsage: "<@username|id123>",
	Action: func(cctx *cli.Context) error {
		query := strings.TrimSpace(cctx.Args().First())
		if query == "" {
			return fmt.Errorf("a username or id is required")
		}
		return withStack(cctx, func(ctx context.Context, cfg config.Config, st *stack) error {
			var u domain.UserRecord
			err := st.runner.View(ctx, func(ctx context.Context) error {
				var err error
				if id, ok := service.ParseUserID(query); ok {
					u, err = st.users.GetByID(ctx, id)
				} else {
					u, err = st.users.GetByUsername(ctx, strings.TrimPrefix(query, "@"))
				}
				return err
			})
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cctx.App.Writer, 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "id\t%d\n", u.ID)
			fmt.Fprintf(w, "username\t%s\n", u.Username)
			fmt.Fprintf(w, "status\t%s\n", u.Status)
			fmt.Fprintf(w, "proof\t%s\n", u.Proof)
			fmt.Fprintf(w, "comment\t%s\n", u.Comment)
			if u.UpdatedAt != nil {
				fmt.Fprintf(w, "updated\t%s\n", u.UpdatedAt.UTC().Format(time.RFC3339))
			}
			return w.Flush()
		})
	},
}

func withStack(cctx *cli.Context, fn func(ctx context.Context, cfg config.Config, st *stack) error) error {
	cfg, err := loadConfig(cctx)
	if err != nil {
		return err
	}
	logger := log.New("store")
	st, err := openStack(cctx.Context, cfg, &logger)
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(cctx.Context, cfg, st)
}

func serve(cctx *cli.Context) error {
	cfg, err := loadConfig(cctx)
	if err != nil {
		return err
	}
	if err := cfg.ValidateServe(); err != nil {
		return err
	}
	ctx := cctx.Context

	var (
		mainLogger    = log.New("main")
		storeLogger   = log.New("store")
		botLogger     = log.New("bot")
		modLogger     = log.New("moderation")
		adminLogger   = log.New("admin")
		metricsLogger = log.New("metrics")
	)

	st, err := openStack(ctx, cfg, &storeLogger)
	if err != nil {
		return err
	}
	defer st.Close()
	if err := st.runner.Init(ctx); err != nil {
		return fmt.Errorf("failed to init document store: %w", err)
	}

	api, err := tgbotapi.NewBotAPI(cfg.Bot.Token)
	if err != nil {
		return fmt.Errorf("failed to connect to telegram: %w", err)
	}
	mainLogger.Info().
		Str("username", api.Self.UserName).
		Msg("authorized")

	subs := &telegram.ChannelSubscriptionChecker{
		API:      api,
		Channels: cfg.Bot.Channels,
		Logger:   &botLogger,
	}
	access := service.NewAccessPolicy(cfg.Bot.Admins, st.moderators, subs)
	moderation := &service.ModerationService{
		Users:    st.users,
		Statuses: st.statuses,
		Ledger:   st.ledger,
		Access:   access,
		TXRunner: st.runner,
		Observers: []domain.StatusChangeObserver{&telegram.AdminNotifier{
			API:      api,
			Admins:   access.Admins(),
			Statuses: st.statuses,
		}},
		Logger: &modLogger,
	}
	admin := &service.AdminService{
		Statuses:   st.statuses,
		Moderators: st.moderators,
		Users:      st.users,
		Access:     access,
		TXRunner:   st.runner,
		Logger:     &modLogger,
	}
	pending := &service.PendingService{
		Actions:    repository.NewCachePendingActionRepository(cfg.Pending.TTL.Duration),
		Admin:      admin,
		Moderation: moderation,
		Access:     access,
		Logger:     &modLogger,
	}

	srv := &bot.Server{
		Admin: bot.AdminConfig{
			Addr:   cfg.Admin.GRPCAddr,
			Logger: &adminLogger,
		},
		Metrics: bot.MetricsConfig{
			Addr:   cfg.Admin.MetricsAddr,
			Logger: &metricsLogger,
		},
		Bot: &telegram.Bot{
			API:           api,
			Moderation:    moderation,
			Admin:         admin,
			Pending:       pending,
			Subscriptions: subs,
			Footer:        cfg.Bot.Footer,
			Logger:        &botLogger,
		},
		Store:  st.runner,
		Logger: &storeLogger,
	}
	return srv.Run(ctx)
}
