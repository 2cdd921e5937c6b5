package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonathan/deal-tracker/internal/config"
	"github.com/jonathan/deal-tracker/internal/pipeline"
	"github.com/jonathan/deal-tracker/internal/scheduler"
	"github.com/jonathan/deal-tracker/internal/server"
	"github.com/jonathan/deal-tracker/internal/server/ratelimit"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	servePort        int
	serveNoScheduler bool
	serveNoBot       bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the triage API server",
	Long: `Start an HTTP server that exposes the triage API and the signed action-link endpoint.

The cron scheduler and the Telegram bot run in the same process unless disabled. The bot
only starts when TELEGRAM_BOT_TOKEN is set. The schema is applied on startup.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (defaults to PORT env var)")
	serveCmd.Flags().BoolVar(&serveNoScheduler, "no-scheduler", false, "Do not run scheduled cycles")
	serveCmd.Flags().BoolVar(&serveNoBot, "no-bot", false, "Do not start the Telegram bot")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.migrate(ctx); err != nil {
		return err
	}

	srvCfg, err := a.serverConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("port") {
		srvCfg.Port = servePort
	}

	deps := server.Deps{
		Store:     a.store,
		Triage:    a.triage(),
		Submitter: a.gateway(),
		Logger:    a.logger,
	}

	g, ctx := errgroup.WithContext(ctx)

	if !serveNoScheduler {
		sched, err := a.scheduler(ctx)
		if err != nil {
			return err
		}
		deps.Cycles = sched
		g.Go(func() error { return sched.Run(ctx) })
	}

	if !serveNoBot && a.cfg.TelegramToken != "" {
		bot, err := a.bot()
		if err != nil {
			return err
		}
		g.Go(func() error { return bot.Run(ctx) })
	}

	srv, err := server.New(srvCfg, deps)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	g.Go(func() error { return srv.Start(ctx) })

	return g.Wait()
}

// serverConfig builds the HTTP config. Operator auth is enabled by JWT_SECRET.
func (a *app) serverConfig() (server.Config, error) {
	rl, err := ratelimit.LoadConfig()
	if err != nil {
		return server.Config{}, err
	}
	cfg := server.Config{Port: a.cfg.Port, RateLimit: rl}

	if !a.cfg.AuthEnabled() {
		return cfg, nil
	}
	if cfg.JWT, err = config.NewJWTConfig(a.cfg); err != nil {
		return cfg, err
	}
	if cfg.Passwords, err = config.NewPasswordConfig(a.cfg); err != nil {
		return cfg, err
	}
	if a.cfg.AdminPasswordHash == "" {
		a.logger.Warn("ADMIN_PASSWORD_HASH not set; operator login is disabled")
	}
	cfg.Operator = server.Operator{Username: a.cfg.AdminUsername, PasswordHash: a.cfg.AdminPasswordHash}
	return cfg, nil
}

// scheduler wires the cron scheduler over a full pipeline runner.
func (a *app) scheduler(ctx context.Context) (*scheduler.Scheduler, error) {
	runner, err := a.runner(ctx)
	if err != nil {
		return nil, err
	}
	options := func() (pipeline.RunOptions, error) { return a.cycleOptions(nil, nil) }
	sched, err := scheduler.New(a.cfg.CronSchedule, runner, options, a.logger)
	if err != nil {
		return nil, err
	}
	a.logger.Info("scheduler configured", zap.String("schedule", a.cfg.CronSchedule))
	return sched, nil
}
