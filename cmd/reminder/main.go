package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cmlabs-hris/leave-engine/internal/app"
	"github.com/cmlabs-hris/leave-engine/internal/config"
	"github.com/cmlabs-hris/leave-engine/internal/pkg/cron"
)

func main() {
	runOnce := flag.Bool("run-once", false, "Run one reminder sweep and exit")
	at := flag.String("at", "", "Evaluate the sweep as of this RFC3339 time (with -run-once)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Println("Error loading config:", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		slog.Error("Failed to initialize application", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	sweep := func(ctx context.Context, now time.Time) error {
		result, err := a.Reminders.Run(ctx, now)
		if err != nil {
			return err
		}
		slog.InfoContext(ctx, "Reminder sweep finished",
			"window_start", result.WindowStart.Format(time.DateOnly),
			"candidates", result.Candidates,
			"sent", result.Sent,
			"failed", result.Failed,
			"skipped", result.Skipped,
		)
		return nil
	}

	if *runOnce {
		now := time.Now()
		if *at != "" {
			now, err = time.Parse(time.RFC3339, *at)
			if err != nil {
				slog.Error("Invalid -at time", "error", err)
				a.Close()
				os.Exit(1)
			}
		}
		if err := sweep(ctx, now); err != nil {
			slog.Error("Reminder sweep failed", "error", err)
			a.Close()
			os.Exit(1)
		}
		return
	}

	schedule := cfg.Reminder.Schedule
	if schedule == "" {
		schedule = "0 8 * * *"
	}
	scheduler := cron.NewScheduler(cfg.Reminder.Location())
	if err := scheduler.AddJob("leave-reminders", schedule, func(ctx context.Context) error {
		return sweep(ctx, time.Now())
	}); err != nil {
		slog.Error("Failed to schedule reminders", "error", err)
		a.Close()
		os.Exit(1)
	}

	scheduler.Start()
	slog.Info("Reminder scheduler is running. Press Ctrl+C to stop.", "schedule", schedule, "timezone", cfg.Reminder.Timezone)
	<-ctx.Done()
	scheduler.Stop()
}
