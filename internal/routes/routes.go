package routes

import (
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nikhil/worktrack/internal/handlers"
	"github.com/nikhil/worktrack/internal/logger"
	"github.com/nikhil/worktrack/internal/middleware"
	"github.com/nikhil/worktrack/internal/realtime"
)

// Dependencies are the handlers' collaborators, built once in main.
type Dependencies struct {
	Timer       handlers.TimerService
	KPI         handlers.KPIService
	Hub         *realtime.Hub
	JWTSecret   string
	RateLimiter *middleware.OrgRateLimiter
	Members     middleware.MembershipLookup

	// Location is the default timezone of timer statistics.
	Location *time.Location
	Log      *logger.Logger
}

// List of all route registration functions
var routeModules = []func(*mux.Router, *Dependencies){
	TimerRoutes,
	KPIRoutes,
	RegisterWebSocketRoutes,
	MetricsRoutes,
}

// Register all routes dynamically
func RegisterAllRoutes(deps *Dependencies) *mux.Router {
	if deps.Log == nil {
		deps.Log = logger.NewLogger("http")
	}
	router := mux.NewRouter()
	router.Use(middleware.RequestID, middleware.Metrics, middleware.RequestLogger(deps.Log))

	for _, register := range routeModules {
		register(router, deps)
	}

	return router
}

// MetricsRoutes exposes the Prometheus registry.
func MetricsRoutes(router *mux.Router, _ *Dependencies) {
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")
}
