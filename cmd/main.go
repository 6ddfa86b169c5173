package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/nikhil/worktrack/internal/config"
	"github.com/nikhil/worktrack/internal/database"
	"github.com/nikhil/worktrack/internal/logger"
	"github.com/nikhil/worktrack/internal/middleware"
	"github.com/nikhil/worktrack/internal/realtime"
	"github.com/nikhil/worktrack/internal/routes"
	"github.com/nikhil/worktrack/internal/scheduler"
	"github.com/nikhil/worktrack/internal/service/kpi"
	"github.com/nikhil/worktrack/internal/service/timer"
	"github.com/nikhil/worktrack/internal/store"
	"github.com/nikhil/worktrack/internal/supervisor"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.NewLogger("main").Fatal("Failed to load configuration", "error", err)
	}
	logger.Configure(logger.Options{Env: cfg.App.Env, Level: cfg.Logging.Level})
	log := logger.NewLogger("main")
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg.DB)
	if err != nil {
		log.Fatal("Failed to connect to database", "error", err)
	}
	defer db.Close()

	loc := cfg.Location()
	hub := realtime.NewHub(logger.NewLogger("websocket-hub"))

	timerService := timer.NewTimerService(store.NewTimeEntries(db), timer.WithNotifier(hub))
	kpiService := kpi.NewKPIService(store.NewAnalytics(db), kpi.WithLocation(loc))
	organizations := store.NewOrganizations(db)
	reportScheduler := scheduler.NewScheduler(
		organizations,
		kpiService,
		scheduler.NewLogDeliverer(logger.NewLogger("report-delivery")),
		cfg.Scheduler,
		scheduler.WithLocation(loc),
	)

	router := routes.RegisterAllRoutes(&routes.Dependencies{
		Timer:       timerService,
		KPI:         kpiService,
		Hub:         hub,
		JWTSecret:   cfg.Auth.JWTSecret,
		RateLimiter: middleware.NewOrgRateLimiter(cfg.KPI.RequestsPerMinute, cfg.KPI.Burst),
		Members:     organizations,
		Location:    loc,
		Log:         logger.NewLogger("http"),
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	tree := supervisor.NewTree(logger.NewLogger("supervisor"), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	tree.AddAPIService(supervisor.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	tree.AddAPIService(supervisor.NewRunService("websocket-hub", hub))
	tree.AddBackgroundService(supervisor.NewRunService("report-scheduler", reportScheduler))

	log.Info("Server is running", "addr", server.Addr, "timezone", loc.String(), "env", cfg.App.Env)
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("Supervisor stopped", "error", err)
	}
	log.Info("Server stopped")
}
