// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/unclebandit/phishguard-backend/internal/app"
	"github.com/unclebandit/phishguard-backend/internal/auth"
	"github.com/unclebandit/phishguard-backend/internal/cache"
	"github.com/unclebandit/phishguard-backend/internal/config"
	"github.com/unclebandit/phishguard-backend/internal/controller"
	"github.com/unclebandit/phishguard-backend/internal/db"
	"github.com/unclebandit/phishguard-backend/internal/generator"
	"github.com/unclebandit/phishguard-backend/internal/handler"
	"github.com/unclebandit/phishguard-backend/internal/logger"
	"github.com/unclebandit/phishguard-backend/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("failed to load config")
	}
	log := logger.New(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := db.Open(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer conn.Close()

	repos := app.NewRepositories(conn)

	dispatcher, err := app.NewDispatcher(ctx, cfg, repos, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up mailer")
	}
	dispatchQueue, err := app.NewDispatchQueue(cfg.Queue, dispatcher, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up dispatch queue")
	}
	defer dispatchQueue.Close()

	analytics := &service.AnalyticsService{
		Repo:            repos.Analytics,
		RecentCampaigns: cfg.Analytics.RecentCampaigns,
		TrendDays:       cfg.Analytics.TrendDays,
		Log:             log,
	}
	analytics.Cache = cache.NewMemoryDashboardCache(cfg.Redis.CacheTTL)
	if cfg.Redis.URL != "" {
		client, err := cache.NewRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			log.Warn().Err(err).Msg("⚠️ redis unavailable, using in-process dashboard cache")
		} else {
			defer client.Close()
			analytics.Cache = &cache.DashboardCache{Client: client, TTL: cfg.Redis.CacheTTL, Log: log}
		}
	}

	tokens := auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	campaignController := &controller.CampaignController{
		CampaignService: &service.CampaignService{
			Campaigns: repos.Campaigns,
			Targets:   repos.Targets,
			Templates: repos.Templates,
			Users:     repos.Users,
			Resolver:  &service.TargetResolver{Users: repos.Users},
			Queue:     dispatchQueue,
			BaseURL:   cfg.App.TrackingBaseURL,
			Log:       log,
		},
	}
	drafts, err := generator.New(ctx, cfg.AI, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up template generator")
	}
	templateController := &controller.TemplateController{
		TemplateService: &service.TemplateService{Templates: repos.Templates},
		Generator:       drafts,
	}
	orgController := &controller.OrganizationController{
		OrganizationService: &service.OrganizationService{Orgs: repos.Organizations},
		UserService:         &service.UserService{Users: repos.Users},
		Tokens:              tokens,
	}
	authController := &controller.AuthController{
		AuthService: &service.AuthService{Users: repos.Users, Log: log},
		Tokens:      tokens,
	}
	analyticsController := &controller.AnalyticsController{AnalyticsService: analytics}
	trackingHandler := &handler.TrackingHandler{
		Recorder: &service.EventRecorder{Targets: repos.Targets, Log: log},
		Log:      log,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(logger.RequestLogger(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.App.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := conn.PingContext(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	})

	// Public routes
	r.Post("/organizations", orgController.Register)
	r.Post("/auth/login", authController.Login)
	r.Route("/track", trackingHandler.Routes)

	// Authenticated routes
	r.Group(func(r chi.Router) {
		r.Use(tokens.Authenticate)

		r.Get("/auth/me", authController.Me)
		r.Get("/users", orgController.ListUsers)
		r.Get("/templates", templateController.ListTemplates)
		r.Get("/templates/{id}", templateController.GetTemplate)
		r.Get("/campaigns", campaignController.ListCampaigns)
		r.Get("/campaigns/{id}", campaignController.GetCampaignDetails)
		r.Get("/campaigns/{id}/targets", campaignController.ListTargets)
		r.Post("/campaigns/{id}/preview", campaignController.PersonalizedPreview)
		r.Get("/analytics/dashboard", analyticsController.Dashboard)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(service.RoleAdmin))

			r.Post("/users", orgController.CreateUser)
			r.Post("/templates", templateController.CreateTemplate)
			r.Post("/templates/generate", templateController.GenerateTemplate)
			r.Post("/campaigns", campaignController.CreateCampaign)
			r.Post("/campaigns/{id}/launch", campaignController.LaunchCampaign)
			r.Post("/campaigns/{id}/cancel", campaignController.CancelCampaign)
			r.Post("/campaigns/{id}/complete", campaignController.CompleteCampaign)
		})
	})

	srv := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("queue_mode", cfg.Queue.Mode).Msg("🚀 Server running")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
