package routes

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/nikhil/worktrack/internal/handlers"
	"github.com/nikhil/worktrack/internal/middleware"
)

func TimerRoutes(router *mux.Router, deps *Dependencies) {
	timerHandler := handlers.NewTimerHandler(deps.Timer, deps.Location, deps.Log)

	timerRouter := router.PathPrefix("/timer").Subrouter()
	timerRouter.Use(middleware.AuthMiddleware(deps.JWTSecret), middleware.ResponseWrapperMiddleware)

	// cross-organization
	timerRouter.HandleFunc("/active", timerHandler.ListActive).Methods(http.MethodGet)
	timerRouter.HandleFunc("/stop-all", timerHandler.StopAll).Methods(http.MethodPost)
	timerRouter.HandleFunc("/entry/{id:[0-9]+}", timerHandler.UpdateEntry).Methods(http.MethodPut)
	timerRouter.HandleFunc("/entry/{id:[0-9]+}", timerHandler.DeleteEntry).Methods(http.MethodDelete)
	timerRouter.HandleFunc("/entry/{id:[0-9]+}/stop", timerHandler.StopEntry).Methods(http.MethodPost)

	orgRouter := timerRouter.PathPrefix("/{orgId:[0-9]+}").Subrouter()
	orgRouter.Use(middleware.RequireMembership(deps.Members))
	orgRouter.HandleFunc("/start", timerHandler.StartTimer).Methods(http.MethodPost)
	orgRouter.HandleFunc("/stop", timerHandler.StopTimer).Methods(http.MethodPost)
	orgRouter.HandleFunc("/active", timerHandler.GetActiveTimer).Methods(http.MethodGet)
	orgRouter.HandleFunc("/entries/active", timerHandler.ListActive).Methods(http.MethodGet)
	orgRouter.HandleFunc("/stats", timerHandler.GetTimerStats).Methods(http.MethodGet)
	orgRouter.HandleFunc("/stop-all", timerHandler.StopAll).Methods(http.MethodPost)
	orgRouter.HandleFunc("/entry/{id:[0-9]+}/restart", timerHandler.RestartEntry).Methods(http.MethodPost)
}
