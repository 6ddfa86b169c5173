package routes

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/nikhil/worktrack/internal/handlers"
	"github.com/nikhil/worktrack/internal/middleware"
	"github.com/nikhil/worktrack/internal/models"
)

func KPIRoutes(router *mux.Router, deps *Dependencies) {
	kpiHandler := handlers.NewKPIHandler(deps.KPI, deps.Log)

	kpiRouter := router.PathPrefix("/kpi/{orgId:[0-9]+}").Subrouter()
	kpiRouter.Use(middleware.AuthMiddleware(deps.JWTSecret), middleware.ResponseWrapperMiddleware)
	// owners and admins only
	kpiRouter.Use(middleware.RequireMembership(deps.Members, models.RoleOwner, models.RoleAdmin))
	if deps.RateLimiter != nil {
		kpiRouter.Use(deps.RateLimiter.Middleware)
	}
	kpiRouter.HandleFunc("/report", kpiHandler.GetReport).Methods(http.MethodGet)
	kpiRouter.HandleFunc("/summary", kpiHandler.GetSummary).Methods(http.MethodGet)
	kpiRouter.HandleFunc("/performance", kpiHandler.GetPerformance).Methods(http.MethodGet)
}
