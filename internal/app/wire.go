package app

import (
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pitchside/contest/internal/auth"
	"github.com/pitchside/contest/internal/domain"
	"github.com/pitchside/contest/internal/guard"
	"github.com/pitchside/contest/internal/handler"
	"github.com/pitchside/contest/internal/projection"
	"github.com/pitchside/contest/internal/repository"
	"github.com/pitchside/contest/internal/service"
)

// RouterDeps holds all dependencies needed by NewRouter.
type RouterDeps struct {
	Pool   *pgxpool.Pool
	JWTMgr *auth.JWTManager
	Logger *slog.Logger
	// Projection cache for leaderboard reads
	Cache projection.Store
	// Deadline gate; match create/reschedule keep it in sync
	Gate service.DeadlineScheduler
	// Leaderboard config
	TieBreak            domain.TieBreak
	LeaderboardCacheTTL time.Duration
	// Betting window config
	WindowPolicy domain.WindowClosurePolicy
	// Prediction write rate limit
	PredictionRateLimit  int
	PredictionRateWindow time.Duration
}

// NewRouter assembles the chi.Router with all routes and middleware.
func NewRouter(deps RouterDeps) chi.Router {
	pool := deps.Pool
	jwtMgr := deps.JWTMgr
	logger := deps.Logger

	// Repositories
	matchRepo := repository.NewMatchRepository()
	predictionRepo := repository.NewPredictionRepository()
	resultRepo := repository.NewResultRepository()
	settlementRepo := repository.NewSettlementRepository()
	leaderboardRepo := repository.NewLeaderboardRepository()
	groupRepo := repository.NewGroupRepository()
	outboxRepo := repository.NewOutboxRepository()

	// Services
	limiter := guard.NewRateLimiter(deps.PredictionRateLimit, deps.PredictionRateWindow)

	predictionSvc := service.NewPredictionService(pool, groupRepo, matchRepo, predictionRepo, limiter, logger)
	resultSvc := service.NewResultService(pool, matchRepo, resultRepo, outboxRepo, logger)
	leaderboardSvc := service.NewLeaderboardService(pool, leaderboardRepo, settlementRepo, deps.Cache, deps.TieBreak, deps.LeaderboardCacheTTL, logger)
	groupSvc := service.NewGroupService(pool, groupRepo, logger)
	matchSvc := service.NewMatchService(pool, matchRepo, deps.Gate, deps.WindowPolicy, logger)

	// Handlers
	predictionHandler := handler.NewPredictionHandler(predictionSvc)
	resultHandler := handler.NewResultHandler(resultSvc)
	leaderboardHandler := handler.NewLeaderboardHandler(leaderboardSvc)
	groupHandler := handler.NewGroupHandler(groupSvc)
	matchHandler := handler.NewMatchHandler(matchSvc)
	adminHandler := handler.NewAdminHandler(pool, outboxRepo)

	// Router
	r := chi.NewRouter()

	// Global middleware (order matters)
	r.Use(handler.Recovery(logger))
	r.Use(handler.RequestID)
	r.Use(handler.RequestLogger(logger))
	r.Use(handler.CORS)
	r.Use(handler.JSONContentType)

	// Health (no auth)
	r.Get("/health", handler.HealthHandler(pool))

	// User-authenticated routes
	r.Group(func(r chi.Router) {
		r.Use(auth.AuthenticateUser(jwtMgr))

		r.Route("/predictions", func(r chi.Router) {
			r.Post("/", predictionHandler.Submit)
			r.Get("/", predictionHandler.ListMine)
			r.Get("/{id}", predictionHandler.Get)
			r.Put("/{id}", predictionHandler.Update)
			r.Delete("/{id}", predictionHandler.Cancel)
		})

		r.Route("/groups", func(r chi.Router) {
			r.Post("/", groupHandler.Create)
			r.Get("/{id}", groupHandler.Get)
			r.Post("/{id}/join", groupHandler.Join)
			r.Post("/{id}/leave", groupHandler.Leave)
		})

		r.Route("/groups/{groupID}/seasons/{seasonID}/leaderboard", func(r chi.Router) {
			r.Get("/", leaderboardHandler.Top)
			r.Get("/me", leaderboardHandler.Me)
			r.Get("/around", leaderboardHandler.Around)
		})

		r.Get("/matches/{id}", matchHandler.Get)
		r.Post("/results/{id}/dispute", resultHandler.Dispute)
	})

	// Admin-authenticated routes
	r.Route("/admin", func(r chi.Router) {
		r.Use(auth.AuthenticateAdmin(jwtMgr))

		r.Route("/matches", func(r chi.Router) {
			r.Use(auth.RequireRole(auth.RoleAdmin))
			r.Post("/", matchHandler.Create)
			r.Put("/{id}/schedule", matchHandler.Reschedule)
			r.Post("/{id}/status", matchHandler.Transition)
		})

		r.Route("/results", func(r chi.Router) {
			r.Post("/", resultHandler.Record)
			r.Get("/{id}", resultHandler.Get)
			r.Post("/{id}/confirm", resultHandler.Confirm)
			r.Get("/{id}/disputes", resultHandler.ListDisputes)

			// Destructive transitions need the full admin role.
			r.Group(func(r chi.Router) {
				r.Use(auth.RequireRole(auth.RoleAdmin))
				r.Post("/{id}/resolve", resultHandler.ResolveDispute)
				r.Post("/{id}/amend", resultHandler.Amend)
				r.Post("/{id}/void", resultHandler.Void)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(auth.RoleAdmin))
			r.Post("/groups/{groupID}/seasons/{seasonID}/rebuild", leaderboardHandler.Rebuild)
			r.Get("/deadletters", adminHandler.ListDeadLetters)
		})
	})

	return r
}
