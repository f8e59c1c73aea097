package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/coopera/coopera-api/internal/config"
	"github.com/coopera/coopera-api/internal/domain/auth"
	"github.com/coopera/coopera-api/internal/domain/credit"
	"github.com/coopera/coopera-api/internal/domain/group"
	"github.com/coopera/coopera-api/internal/domain/notification"
	"github.com/coopera/coopera-api/internal/domain/payment"
	"github.com/coopera/coopera-api/internal/domain/plan"
	"github.com/coopera/coopera-api/internal/domain/referral"
	"github.com/coopera/coopera-api/internal/domain/trigger"
	"github.com/coopera/coopera-api/internal/domain/user"
	"github.com/coopera/coopera-api/internal/middleware"
	"github.com/coopera/coopera-api/internal/pkg/database"
	"github.com/coopera/coopera-api/internal/pkg/jwt"
	"github.com/coopera/coopera-api/internal/pkg/logger"
	pkgresponse "github.com/coopera/coopera-api/internal/pkg/response"
)

func main() {
	cfg := config.Load()
	if err := logger.Init(logger.Config{Level: cfg.LogLevel, Environment: cfg.Env}); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialise logger")
	}

	log.Info().
		Str("env", cfg.Env).
		Str("port", cfg.Port).
		Msg("Starting Coopera API")

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	redis, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer database.CloseRedis(redis)

	jwtService := jwt.NewService(cfg.JWTSecret, cfg.JWTAccessTTL, cfg.JWTRefreshTTL)

	// ---------- Repositories ----------
	userRepo := user.NewRepository(db)
	planRepo := plan.NewRepository(db)
	groupRepo := group.NewRepository(db)
	referralRepo := referral.NewRepository(db)
	paymentRepo := payment.NewRepository(db)
	triggerRepo := trigger.NewRepository(db)
	notificationRepo := notification.NewRepository(db)

	// ---------- WebSocket hub ----------
	hub := notification.NewHub(redis)
	go hub.Run()

	// ---------- Services ----------
	authService := auth.NewService(userRepo, jwtService, redis)
	creditService := credit.NewService(db, cfg.MinWithdrawalCents)
	notificationService := notification.NewService(notificationRepo, notification.NewWSPublisher(hub))

	referralService := referral.NewService(
		referralRepo,
		&userDirectoryAdapter{repo: userRepo},
		planRepo,
		&referralLedgerAdapter{credits: creditService},
		int64(cfg.PixReferralPercent),
		int64(cfg.StripeReferralPercent),
	)
	referralService.SetNotifier(notificationService)

	triggerService := trigger.NewService(triggerRepo, groupRepo, creditService, &triggerNotifierAdapter{
		svc:       notificationService,
		referrals: referralService,
	})
	groupService := group.NewService(groupRepo, planRepo, triggerService, notificationService)

	paymentService := payment.NewService(paymentRepo, &groupManagerAdapter{svc: groupService}, referralService)

	// ---------- Handlers ----------
	authHandler := auth.NewHandler(authService)
	creditHandler := credit.NewHandler(creditService)
	planHandler := plan.NewHandler(planRepo)
	groupHandler := group.NewHandler(groupService)
	referralHandler := referral.NewHandler(referralService)
	paymentHandler := payment.NewHandler(paymentService, cfg.AsaasWebhookToken, cfg.StripeWebhookSecret)
	notificationHandler := notification.NewHandler(notificationService, hub)
	triggerHandler := trigger.NewHandler(triggerService)

	authMiddleware := middleware.Auth(jwtService)
	adminMiddleware := middleware.RequireAdmin()
	influencerMiddleware := middleware.RequireInfluencer()

	// ---------- Background worker ----------
	worker := trigger.NewWorker(triggerService, cfg.TriggerSweepInterval)
	worker.Start()

	// ---------- Router ----------
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recover)
	r.Use(middleware.CORSHandler(cfg.AllowedOrigins))

	// WebSocket endpoint (before Compress)
	r.Get("/ws/notifications", func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		if token != "" {
			r.Header.Set("Authorization", "Bearer "+token)
		}
		authMiddleware(http.HandlerFunc(notificationHandler.WebSocket)).ServeHTTP(w, r)
	})

	r.Group(func(r chi.Router) {
		r.Use(chimw.Compress(5))

		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			pkgresponse.OK(w, map[string]string{
				"status":  "ok",
				"version": "1.0.0",
			})
		})

		r.Route("/api/v1", func(r chi.Router) {
			r.Mount("/auth", authHandler.Routes(authMiddleware))
			r.Mount("/plans", planHandler.Routes())
			r.Mount("/credits", creditHandler.Routes(authMiddleware))
			r.Mount("/groups", groupHandler.Routes(authMiddleware))
			r.Mount("/referrals", referralHandler.Routes(authMiddleware, influencerMiddleware))
			r.Mount("/payments", paymentHandler.Routes(authMiddleware))
			r.Mount("/notifications", notificationHandler.Routes(authMiddleware))

			r.Route("/admin", func(r chi.Router) {
				r.Mount("/plans", planHandler.AdminRoutes(authMiddleware, adminMiddleware))
				r.Mount("/groups", groupHandler.AdminRoutes(authMiddleware, adminMiddleware))
				r.Mount("/credits", creditHandler.AdminRoutes(authMiddleware, adminMiddleware))
				r.Mount("/triggers", triggerHandler.AdminRoutes(authMiddleware, adminMiddleware))
			})
		})

		r.Mount("/webhooks", paymentHandler.WebhookRoutes())
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	worker.Stop()
	hub.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited properly")
}

// Adapter implementations to bridge interface mismatches

// userDirectoryAdapter adapts user.Repository to referral.UserDirectory
type userDirectoryAdapter struct {
	repo user.Repository
}

func (a *userDirectoryAdapter) ResolveReferralCode(ctx context.Context, code string) (uuid.UUID, error) {
	u, err := a.repo.GetByReferralCode(ctx, code)
	if err != nil {
		return uuid.Nil, err
	}
	return u.ID, nil
}

func (a *userDirectoryAdapter) SetReferredBy(ctx context.Context, userID, referrerID uuid.UUID) error {
	return a.repo.SetReferredBy(ctx, userID, referrerID)
}

// referralLedgerAdapter adapts credit.Service to referral.CreditLedger
type referralLedgerAdapter struct {
	credits credit.Service
}

func (a *referralLedgerAdapter) AddReferralBonus(ctx context.Context, userID uuid.UUID, amountCents int64, description, referenceID string) error {
	return a.credits.AddCredits(ctx, userID, amountCents, credit.SourceReferralBonus, description, referenceID)
}

// groupManagerAdapter adapts group.Service to payment.GroupManager
type groupManagerAdapter struct {
	svc *group.Service
}

func (a *groupManagerAdapter) JoinGroup(ctx context.Context, planID, userID uuid.UUID, amountCents int64) (uuid.UUID, error) {
	g, _, err := a.svc.JoinOrCreateGroup(ctx, planID, userID, amountCents, true)
	if err != nil {
		return uuid.Nil, err
	}
	return g.ID, nil
}

func (a *groupManagerAdapter) MarkPaid(ctx context.Context, groupID, userID uuid.UUID) error {
	return a.svc.MarkPaid(ctx, groupID, userID)
}

// triggerNotifierAdapter adapts notification.Service to trigger.Notifier
type triggerNotifierAdapter struct {
	svc       *notification.Service
	referrals *referral.Service
}

func (a *triggerNotifierAdapter) NotifyMilestone(ctx context.Context, userID, groupID uuid.UUID, milestone trigger.Type) {
	referred := 0
	if stats, err := a.referrals.GetStats(ctx, userID); err == nil {
		referred = stats.ReferredCount
	}
	a.svc.NotifyMilestone(ctx, userID, groupID, string(milestone), referred)
}

func (a *triggerNotifierAdapter) NotifyCreditsConverted(ctx context.Context, userID, groupID uuid.UUID, amountCents int64) {
	a.svc.NotifyCreditsConverted(ctx, userID, groupID, amountCents)
}
