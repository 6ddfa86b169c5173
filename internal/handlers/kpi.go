package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/nikhil/worktrack/internal/daterange"
	"github.com/nikhil/worktrack/internal/logger"
	"github.com/nikhil/worktrack/internal/models"
)

// KPIService generates the three report projections.
type KPIService interface {
	GenerateReport(ctx context.Context, orgID int64, period daterange.Period, ref time.Time) (*models.KPIReport, error)
	GenerateSummary(ctx context.Context, orgID int64, period daterange.Period, ref time.Time) (*models.KPISummary, error)
	GeneratePerformance(ctx context.Context, orgID int64, period daterange.Period, ref time.Time) (*models.KPIPerformance, error)
	Location() *time.Location
}

// DefaultPeriod applies when the period query parameter is omitted.
const DefaultPeriod = daterange.Weekly

type KPIHandler struct {
	Service KPIService
	Log     *logger.Logger
	now     func() time.Time
}

// NewKPIHandler creates a new instance of KPIHandler
func NewKPIHandler(service KPIService, log *logger.Logger) *KPIHandler {
	return &KPIHandler{Service: service, Log: log, now: time.Now}
}

type kpiQuery struct {
	orgID  int64
	period daterange.Period
	ref    time.Time
}

// parseQuery reads {orgId}, ?period= and ?date= and writes 400 on bad input.
func (h *KPIHandler) parseQuery(w http.ResponseWriter, r *http.Request) (kpiQuery, bool) {
	orgID, err := pathID(r, "orgId")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return kpiQuery{}, false
	}

	period := DefaultPeriod
	if raw := r.URL.Query().Get("period"); raw != "" {
		period, err = daterange.ParsePeriod(raw)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, err.Error())
			return kpiQuery{}, false
		}
	}

	ref, err := daterange.ParseDate(r.URL.Query().Get("date"), h.now(), h.Service.Location())
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return kpiQuery{}, false
	}
	return kpiQuery{orgID: orgID, period: period, ref: ref}, true
}

// GetReport handles GET /kpi/{orgId}/report
func (h *KPIHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	q, ok := h.parseQuery(w, r)
	if !ok {
		return
	}
	report, err := h.Service.GenerateReport(r.Context(), q.orgID, q.period, q.ref)
	if err != nil {
		respondWithServiceError(w, r, h.Log.WithOrg(q.orgID), err)
		return
	}
	respondWithJSON(w, http.StatusOK, report)
}

// GetSummary handles GET /kpi/{orgId}/summary
func (h *KPIHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	q, ok := h.parseQuery(w, r)
	if !ok {
		return
	}
	summary, err := h.Service.GenerateSummary(r.Context(), q.orgID, q.period, q.ref)
	if err != nil {
		respondWithServiceError(w, r, h.Log.WithOrg(q.orgID), err)
		return
	}
	respondWithJSON(w, http.StatusOK, summary)
}

// GetPerformance handles GET /kpi/{orgId}/performance
func (h *KPIHandler) GetPerformance(w http.ResponseWriter, r *http.Request) {
	q, ok := h.parseQuery(w, r)
	if !ok {
		return
	}
	perf, err := h.Service.GeneratePerformance(r.Context(), q.orgID, q.period, q.ref)
	if err != nil {
		respondWithServiceError(w, r, h.Log.WithOrg(q.orgID), err)
		return
	}
	respondWithJSON(w, http.StatusOK, perf)
}
