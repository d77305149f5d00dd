package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okton/shopfloor/internal/api"
	"github.com/okton/shopfloor/internal/config"
	"github.com/okton/shopfloor/internal/notify"
	"github.com/okton/shopfloor/internal/scheduler"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long: `Serves the schedule and shop state over HTTP. With scheduler.cron set in
the config, scheduling passes also run periodically and their results go to
the configured notifiers.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, port)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "shopfloor.yaml", "path to config file")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (default: from config)")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string, port int) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	if port <= 0 {
		port = cfg.API.Port
	}

	notifiers, err := notify.FromConfig(cfg.Notify)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(cmd.OutOrStdout(), "\nReceived %s, shutting down...\n", sig)
		cancel()
	}()

	if cfg.Scheduler.Cron != "" {
		if err := startCronPasses(ctx, gormDB, cfg, notifiers); err != nil {
			return err
		}
	}

	return api.Start(ctx, api.StartOpts{
		DB:        gormDB,
		Scheduler: cfg.Scheduler,
		Port:      port,
		Out:       cmd.OutOrStdout(),
	})
}

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// startCronPasses runs a scheduling pass at every cron fire time until ctx is
// cancelled. Pass failures are logged and reported, never fatal to the server.
func startCronPasses(ctx context.Context, gormDB *gorm.DB, cfg *config.Config, notifiers []notify.Notifier) error {
	sched, err := cronParser.Parse(cfg.Scheduler.Cron)
	if err != nil {
		return fmt.Errorf("parse scheduler.cron %q: %w", cfg.Scheduler.Cron, err)
	}

	go func() {
		for {
			next := sched.Next(time.Now())
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Until(next)):
			}

			result, err := scheduler.RunSchedulingPass(gormDB, cfg.Scheduler, time.Now().UTC(), 0)
			if err != nil {
				log.Printf("sf: periodic pass: %v", err)
				continue
			}
			if len(notifiers) > 0 {
				if err := notify.Fanout(ctx, notifiers, notify.Render(result)); err != nil {
					log.Printf("sf: periodic pass notifications incomplete: %v", err)
				}
			}
		}
	}()
	return nil
}
