package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/nikhil/worktrack/internal/apperr"
	"github.com/nikhil/worktrack/internal/logger"
	"github.com/nikhil/worktrack/internal/middleware"
	"github.com/nikhil/worktrack/internal/models"
	"github.com/nikhil/worktrack/internal/validation"
)

// TimerService is the part of the timer manager exposed over HTTP.
type TimerService interface {
	ListActive(ctx context.Context, userID int64, orgID *int64) ([]models.TimeEntry, error)
	GetActive(ctx context.Context, userID, orgID int64) (*models.TimeEntry, error)
	Start(ctx context.Context, userID, orgID int64, opts models.StartOptions) (*models.TimeEntry, error)
	Stop(ctx context.Context, entryID, userID int64) (*models.TimeEntry, error)
	StopActive(ctx context.Context, userID, orgID int64) (*models.TimeEntry, error)
	StopAllActive(ctx context.Context, userID int64, orgID *int64) (int64, error)
	Restart(ctx context.Context, entryID, userID, orgID int64) (*models.TimeEntry, error)
	Update(ctx context.Context, entryID, userID int64, patch models.EntryPatch) (*models.TimeEntry, error)
	Remove(ctx context.Context, entryID, userID int64) (*models.TimeEntry, error)
	Statistics(ctx context.Context, userID int64, orgID *int64, loc *time.Location) (*models.TimerStats, error)
}

type TimerHandler struct {
	Service TimerService
	// Location is the default timezone of statistics when no tz is given.
	Location *time.Location
	Log      *logger.Logger
}

// NewTimerHandler creates a new instance of TimerHandler
func NewTimerHandler(service TimerService, loc *time.Location, log *logger.Logger) *TimerHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &TimerHandler{Service: service, Location: loc, Log: log}
}

// caller resolves the authenticated user, writing 401 when there is none.
func (h *TimerHandler) caller(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		h.Log.WithContext(r.Context()).Warn("Failed to extract user details from context")
		respondWithError(w, http.StatusUnauthorized, "Invalid token")
		return 0, false
	}
	return userID, true
}

// callerAndOrg resolves the user and the {orgId} path variable.
func (h *TimerHandler) callerAndOrg(w http.ResponseWriter, r *http.Request) (int64, int64, bool) {
	userID, ok := h.caller(w, r)
	if !ok {
		return 0, 0, false
	}
	orgID, err := pathID(r, "orgId")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return 0, 0, false
	}
	return userID, orgID, true
}

// StartTimer handles POST /timer/{orgId}/start
func (h *TimerHandler) StartTimer(w http.ResponseWriter, r *http.Request) {
	userID, orgID, ok := h.callerAndOrg(w, r)
	if !ok {
		return
	}

	var opts models.StartOptions
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&opts); err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid request payload")
			return
		}
	}
	if err := validation.ValidateStruct(opts); err != nil {
		respondWithServiceError(w, r, h.Log, err)
		return
	}

	entry, err := h.Service.Start(r.Context(), userID, orgID, opts)
	if err != nil {
		respondWithServiceError(w, r, h.Log, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, entry)
}

// StopTimer handles POST /timer/{orgId}/stop, stopping the caller's running timer.
func (h *TimerHandler) StopTimer(w http.ResponseWriter, r *http.Request) {
	userID, orgID, ok := h.callerAndOrg(w, r)
	if !ok {
		return
	}
	entry, err := h.Service.StopActive(r.Context(), userID, orgID)
	if err != nil {
		respondWithServiceError(w, r, h.Log, err)
		return
	}
	respondWithJSON(w, http.StatusOK, entry)
}

// StopEntry handles POST /timer/entry/{id}/stop
func (h *TimerHandler) StopEntry(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	entryID, err := pathID(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	entry, err := h.Service.Stop(r.Context(), entryID, userID)
	if err != nil {
		respondWithServiceError(w, r, h.Log, err)
		return
	}
	respondWithJSON(w, http.StatusOK, entry)
}

// GetActiveTimer handles GET /timer/{orgId}/active. The body is null when idle.
func (h *TimerHandler) GetActiveTimer(w http.ResponseWriter, r *http.Request) {
	userID, orgID, ok := h.callerAndOrg(w, r)
	if !ok {
		return
	}
	entry, err := h.Service.GetActive(r.Context(), userID, orgID)
	if err != nil {
		respondWithServiceError(w, r, h.Log, err)
		return
	}
	respondWithJSON(w, http.StatusOK, entry)
}

// ListActive handles GET /timer/{orgId}/entries/active and GET /timer/active.
func (h *TimerHandler) ListActive(w http.ResponseWriter, r *http.Request) {
	userID, orgID, ok := h.optionalOrg(w, r)
	if !ok {
		return
	}
	entries, err := h.Service.ListActive(r.Context(), userID, orgID)
	if err != nil {
		respondWithServiceError(w, r, h.Log, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"entries": entries, "count": len(entries)})
}

// StopAll handles POST /timer/{orgId}/stop-all and POST /timer/stop-all.
func (h *TimerHandler) StopAll(w http.ResponseWriter, r *http.Request) {
	userID, orgID, ok := h.optionalOrg(w, r)
	if !ok {
		return
	}
	n, err := h.Service.StopAllActive(r.Context(), userID, orgID)
	if err != nil {
		respondWithServiceError(w, r, h.Log, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]int64{"stopped": n})
}

// optionalOrg resolves the user and, on org-scoped routes, the organization.
func (h *TimerHandler) optionalOrg(w http.ResponseWriter, r *http.Request) (int64, *int64, bool) {
	userID, ok := h.caller(w, r)
	if !ok {
		return 0, nil, false
	}
	if !hasVar(r, "orgId") {
		return userID, nil, true
	}
	orgID, err := pathID(r, "orgId")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return 0, nil, false
	}
	return userID, &orgID, true
}

// GetTimerStats handles GET /timer/{orgId}/stats?tz=Area/City
func (h *TimerHandler) GetTimerStats(w http.ResponseWriter, r *http.Request) {
	userID, orgID, ok := h.callerAndOrg(w, r)
	if !ok {
		return
	}
	loc := h.Location
	if tz := r.URL.Query().Get("tz"); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			respondWithServiceError(w, r, h.Log, apperr.Validation("unknown timezone %q", tz))
			return
		}
		loc = l
	}
	stats, err := h.Service.Statistics(r.Context(), userID, &orgID, loc)
	if err != nil {
		respondWithServiceError(w, r, h.Log, err)
		return
	}
	respondWithJSON(w, http.StatusOK, stats)
}

// UpdateEntry handles PUT /timer/entry/{id}
func (h *TimerHandler) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	entryID, err := pathID(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	var patch models.EntryPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if patch.IsEmpty() {
		respondWithError(w, http.StatusBadRequest, "Nothing to update")
		return
	}
	if err := validation.ValidateStruct(patch); err != nil {
		respondWithServiceError(w, r, h.Log, err)
		return
	}

	entry, err := h.Service.Update(r.Context(), entryID, userID, patch)
	if err != nil {
		respondWithServiceError(w, r, h.Log, err)
		return
	}
	respondWithJSON(w, http.StatusOK, entry)
}

// DeleteEntry handles DELETE /timer/entry/{id} and returns the removed entry.
func (h *TimerHandler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	entryID, err := pathID(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	entry, err := h.Service.Remove(r.Context(), entryID, userID)
	if err != nil {
		respondWithServiceError(w, r, h.Log, err)
		return
	}
	respondWithJSON(w, http.StatusOK, entry)
}

// RestartEntry handles POST /timer/{orgId}/entry/{id}/restart
func (h *TimerHandler) RestartEntry(w http.ResponseWriter, r *http.Request) {
	userID, orgID, ok := h.callerAndOrg(w, r)
	if !ok {
		return
	}
	entryID, err := pathID(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	entry, err := h.Service.Restart(r.Context(), entryID, userID, orgID)
	if err != nil {
		respondWithServiceError(w, r, h.Log, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, entry)
}
