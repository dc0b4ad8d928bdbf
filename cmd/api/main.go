package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cmlabs-hris/leave-engine/internal/app"
	"github.com/cmlabs-hris/leave-engine/internal/config"
	"github.com/cmlabs-hris/leave-engine/internal/domain/user"
	appHTTP "github.com/cmlabs-hris/leave-engine/internal/handler/http"
	"github.com/cmlabs-hris/leave-engine/internal/pkg/authz"
	"github.com/cmlabs-hris/leave-engine/internal/pkg/cron"
	"github.com/cmlabs-hris/leave-engine/internal/pkg/jwt"
	"github.com/ulule/limiter/v3"
	limitermemory "github.com/ulule/limiter/v3/drivers/store/memory"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

func main() {
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

	JWTService := jwt.NewJWTService(cfg.JWT.Secret, cfg.JWT.AccessExpiration)
	enforcer, err := authz.NewEnforcer(user.RolePermissions)
	if err != nil {
		slog.Error("Failed to initialize authorization", "error", err)
		a.Close()
		os.Exit(1)
	}

	var rateLimiter *limiter.Limiter
	if cfg.RateLimit.Enabled {
		rateLimiter, err = newRateLimiter(cfg, a)
		if err != nil {
			slog.Error("Failed to initialize rate limiter", "error", err)
			a.Close()
			os.Exit(1)
		}
	}

	if cfg.Reminder.Schedule != "" {
		scheduler := cron.NewScheduler(cfg.Reminder.Location())
		err := scheduler.AddJob("leave-reminders", cfg.Reminder.Schedule, func(ctx context.Context) error {
			result, err := a.Reminders.Run(ctx, time.Now())
			if err != nil {
				return err
			}
			slog.InfoContext(ctx, "Reminder sweep finished", "candidates", result.Candidates, "sent", result.Sent, "failed", result.Failed, "skipped", result.Skipped)
			return nil
		})
		if err != nil {
			slog.Error("Failed to schedule reminders", "error", err)
			a.Close()
			os.Exit(1)
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	router := appHTTP.NewRouter(
		appHTTP.RouterOptions{
			Logger:         a.Logger,
			AllowedOrigins: cfg.App.AllowedOrigins,
			RateLimiter:    rateLimiter,
		},
		JWTService,
		a.Directory,
		enforcer,
		appHTTP.Handlers{
			Leave:    appHTTP.NewLeaveHandler(a.Leaves, a.Queries),
			Balance:  appHTTP.NewBalanceHandler(a.Balances),
			Reminder: appHTTP.NewReminderHandler(a.Reminders),
		},
	)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("Server running", "addr", srv.Addr, "storage", cfg.App.Storage)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server shutdown error", "error", err)
	}
}

// newRateLimiter shares counters through Redis when it is configured.
func newRateLimiter(cfg *config.Config, a *app.App) (*limiter.Limiter, error) {
	rate, err := limiter.NewRateFromFormatted(cfg.RateLimit.Rate)
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT: %w", err)
	}

	if a.Redis == nil {
		return limiter.New(limitermemory.NewStore(), rate), nil
	}
	store, err := limiterredis.NewStoreWithOptions(a.Redis, limiter.StoreOptions{Prefix: "leave-engine:limiter"})
	if err != nil {
		return nil, err
	}
	return limiter.New(store, rate), nil
}
