package http

import (
	"log/slog"
	"net/http"

	"github.com/cmlabs-hris/leave-engine/internal/domain/employee"
	"github.com/cmlabs-hris/leave-engine/internal/domain/user"
	"github.com/cmlabs-hris/leave-engine/internal/handler/http/middleware"
	"github.com/cmlabs-hris/leave-engine/internal/pkg/authz"
	"github.com/cmlabs-hris/leave-engine/internal/pkg/jwt"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v3"
	"github.com/go-chi/jwtauth/v5"
	"github.com/ulule/limiter/v3"
)

type RouterOptions struct {
	// Logger should use the httplog ECS ReplaceAttr.
	Logger         *slog.Logger
	AllowedOrigins []string
	// RateLimiter is optional.
	RateLimiter *limiter.Limiter
}

type Handlers struct {
	Leave    LeaveHandler
	Balance  BalanceHandler
	Reminder ReminderHandler
}

func NewRouter(opts RouterOptions, JWTService jwt.Service, directory employee.Directory, enforcer *authz.Enforcer, h Handlers) *chi.Mux {
	r := chi.NewRouter()
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		MaxAge:           300,
	}))

	r.Use(chiMiddleware.RequestID)
	r.Use(httplog.RequestLogger(logger, &httplog.Options{
		Level:  slog.LevelDebug,
		Schema: httplog.SchemaECS,
	}))

	r.Use(chiMiddleware.AllowContentEncoding("application/json"))
	r.Use(chiMiddleware.CleanPath)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/"))

	if opts.RateLimiter != nil {
		r.Use(middleware.RateLimit(opts.RateLimiter))
	}

	can := func(p user.Permission) func(http.Handler) http.Handler {
		return middleware.RequirePermission(enforcer, p)
	}

	r.Route("/api/v1", func(r chi.Router) {
		// Requires authentication
		r.Group(func(r chi.Router) {
			r.Use(jwtauth.Verifier(JWTService.JWTAuth()))
			r.Use(middleware.AuthRequired(JWTService))
			r.Use(middleware.ResolveActor(directory))

			r.Route("/leaves", func(r chi.Router) {
				r.With(can(user.PermissionLeaveCreate)).Post("/", h.Leave.Submit)
				r.With(can(user.PermissionLeaveViewOwn)).Get("/", h.Leave.List)
				r.With(can(user.PermissionLeaveExport)).Get("/export", h.Leave.Export)
				r.With(can(user.PermissionLeaveStats)).Get("/stats", h.Leave.Stats)

				r.Route("/{id}", func(r chi.Router) {
					r.With(can(user.PermissionLeaveViewOwn)).Get("/", h.Leave.Get)
					r.With(can(user.PermissionLeaveApprove)).Post("/approve", h.Leave.Approve)
					r.With(can(user.PermissionLeaveApprove)).Post("/reject", h.Leave.Reject)
					r.With(can(user.PermissionLeaveCancel)).Post("/cancel", h.Leave.Cancel)
				})
			})

			r.Route("/balances", func(r chi.Router) {
				r.Group(func(r chi.Router) {
					r.Use(can(user.PermissionBalanceViewOwn))
					r.Get("/me", h.Balance.MyBalances)
					r.Get("/check", h.Balance.Check)
					r.Get("/{employeeID}/{leaveType}/{year}/history", h.Balance.History)
				})

				// Admin only
				r.Group(func(r chi.Router) {
					r.Use(can(user.PermissionBalanceManage))
					r.Post("/initialize", h.Balance.Initialize)
					r.Post("/adjust", h.Balance.Adjust)
					r.Post("/carry-forward", h.Balance.CarryForward)
					r.Get("/{employeeID}/{leaveType}/{year}/reconcile", h.Balance.Reconcile)
				})
			})

			r.With(can(user.PermissionReminderRun)).Post("/reminders/run", h.Reminder.Run)
		})
	})
	return r
}
