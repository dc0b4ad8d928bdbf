// Package app wires configuration, storage and services for the binaries.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/cmlabs-hris/leave-engine/internal/config"
	"github.com/cmlabs-hris/leave-engine/internal/domain/employee"
	"github.com/cmlabs-hris/leave-engine/internal/domain/leave"
	"github.com/cmlabs-hris/leave-engine/internal/domain/notification"
	"github.com/cmlabs-hris/leave-engine/internal/pkg/database"
	"github.com/cmlabs-hris/leave-engine/internal/pkg/email"
	"github.com/cmlabs-hris/leave-engine/internal/pkg/eventbus"
	"github.com/cmlabs-hris/leave-engine/internal/pkg/kafka"
	"github.com/cmlabs-hris/leave-engine/internal/pkg/lock"
	"github.com/cmlabs-hris/leave-engine/internal/repository/memory"
	"github.com/cmlabs-hris/leave-engine/internal/repository/postgresql"
	"github.com/cmlabs-hris/leave-engine/internal/service/audit"
	"github.com/cmlabs-hris/leave-engine/internal/service/ledger"
	leavesvc "github.com/cmlabs-hris/leave-engine/internal/service/leave"
	notificationsvc "github.com/cmlabs-hris/leave-engine/internal/service/notification"
	"github.com/go-chi/httplog/v3"
	"github.com/redis/go-redis/v9"
)

const lockPrefix = "leave-engine"

type App struct {
	Config *config.Config
	Logger *slog.Logger

	Directory employee.Directory
	Requests  leave.LeaveRequestRepository
	Notifier  notification.Notifier
	Events    *eventbus.Bus
	Redis     *redis.Client

	Ledger    *ledger.Service
	Leaves    *leavesvc.RequestService
	Queries   *leavesvc.QueryService
	Balances  *leavesvc.BalanceService
	Reminders *leavesvc.ReminderService

	closers []func()
}

// NewLogger builds the JSON logger used by the process and the request logger.
func NewLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.App.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	logFormat := httplog.SchemaECS.Concise(cfg.App.Env != "production")
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: logFormat.ReplaceAttr,
	})).With(
		slog.String("app", "leave-engine"),
		slog.String("env", cfg.App.Env),
	)
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg, Logger: NewLogger(cfg)}
	slog.SetDefault(a.Logger)

	var (
		tx        leave.Transactor
		accounts  leave.AccountRepository
		policies  leave.PolicyRepository
		requests  leave.LeaveRequestRepository
		directory employee.Directory
	)

	switch cfg.App.Storage {
	case "memory":
		store := memory.NewStore()
		if cfg.App.DirectorySeedFile != "" {
			employees, err := LoadDirectorySeed(cfg.App.DirectorySeedFile)
			if err != nil {
				return nil, err
			}
			for _, e := range employees {
				store.PutEmployee(e)
			}
			slog.Info("Memory directory seeded", "employees", len(employees))
		}
		tx = store
		accounts = memory.NewLeaveAccountRepository(store)
		policies = memory.NewLeavePolicyRepository(store)
		requests = memory.NewLeaveRequestRepository(store)
		directory = memory.NewEmployeeDirectory(store)
	default:
		dsn := cfg.DatabaseURL()
		if cfg.Database.MigrateOnStart {
			if err := database.Migrate(dsn); err != nil {
				return nil, fmt.Errorf("failed to run migrations: %w", err)
			}
		}
		db, err := database.NewPostgreSQLDBWithConfig(ctx, dsn, database.PoolConfig{MaxConns: cfg.Database.MaxConns})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		tx = postgresql.NewTransactor(db)
		accounts = postgresql.NewLeaveAccountRepository(db)
		policies = postgresql.NewLeavePolicyRepository(db)
		requests = postgresql.NewLeaveRequestRepository(db)
		directory = postgresql.NewEmployeeDirectory(db)
	}

	if err := syncPolicies(ctx, cfg.Policies, policies); err != nil {
		a.Close()
		return nil, err
	}

	if cfg.Redis.Addr != "" {
		rdb, err := lock.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		a.Redis = rdb
		a.closers = append(a.closers, func() { _ = rdb.Close() })
	}

	notifier, err := newNotifier(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	var publisher *kafka.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		publisher = kafka.NewEventPublisher(kafka.NewWriter(cfg.Kafka.Brokers), cfg.Kafka.Topic)
		a.closers = append(a.closers, func() { _ = publisher.Close() })
		slog.Info("Kafka event forwarding enabled", "topic", cfg.Kafka.Topic, "brokers", strings.Join(cfg.Kafka.Brokers, ","))
	}

	a.Events = eventbus.New(eventbus.Config{
		WorkerCount: cfg.Events.WorkerCount,
		QueueSize:   cfg.Events.QueueSize,
	})
	a.closers = append(a.closers, a.Events.Close)
	a.Events.Subscribe("audit", audit.NewSubscriber(a.Logger))
	a.Events.Subscribe("decision-email", notificationsvc.NewDecisionSubscriber(notifier))
	if publisher != nil {
		a.Events.Subscribe("kafka", publisher)
	}

	var locker leavesvc.Locker
	if a.Redis != nil {
		locker = lock.NewRedisLocker(a.Redis, lockPrefix)
	}

	a.Directory = directory
	a.Requests = requests
	a.Notifier = notifier
	a.Ledger = ledger.NewService(tx, accounts, policies, a.Events)
	a.Leaves = leavesvc.NewRequestService(tx, requests, a.Ledger, directory, a.Events)
	a.Queries = leavesvc.NewQueryService(requests, directory)
	a.Balances = leavesvc.NewBalanceService(a.Ledger, directory)
	a.Reminders = leavesvc.NewReminderService(requests, notifier, locker, a.Events, leavesvc.ReminderConfig{
		Location: cfg.Reminder.Location(),
		LockTTL:  cfg.Reminder.LockTTL,
	})

	return a, nil
}

// Close releases resources in reverse creation order, so the event bus
// drains before its sinks and stores go away.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func syncPolicies(ctx context.Context, cfg config.PoliciesConfig, repo leave.PolicyRepository) error {
	policies, err := cfg.LoadPolicies()
	if err != nil {
		return err
	}
	for _, p := range policies {
		if err := repo.Upsert(ctx, p); err != nil {
			return fmt.Errorf("failed to store leave policy %s: %w", p.LeaveType, err)
		}
	}
	slog.Info("Leave policies loaded", "count", len(policies))
	return nil
}

func newNotifier(cfg *config.Config) (notification.Notifier, error) {
	renderer, err := email.NewRenderer()
	if err != nil {
		return nil, err
	}

	var transport email.Transport
	switch cfg.Notifier.Transport {
	case "sendgrid":
		transport = email.NewSendGridTransport(cfg.SendGrid)
	case "log":
		transport = email.LogTransport{}
	default:
		transport = email.NewSMTPTransport(cfg.SMTP)
	}
	slog.Info("Email transport configured", "transport", cfg.Notifier.Transport)

	return notificationsvc.NewEmailNotifier(renderer, transport), nil
}
