package scheduler

import (
	"context"

	"github.com/nikhil/worktrack/internal/logger"
	"github.com/nikhil/worktrack/internal/models"
)

// LogDeliverer records finished reports in the log. Email transport lives
// outside this service.
type LogDeliverer struct {
	Log *logger.Logger
}

func NewLogDeliverer(log *logger.Logger) *LogDeliverer {
	if log == nil {
		log = logger.NewLogger("report-delivery")
	}
	return &LogDeliverer{Log: log}
}

func (d *LogDeliverer) Deliver(ctx context.Context, org models.Organization, recipients []models.Membership, report *models.KPIReport) error {
	log := d.Log.WithContext(ctx).WithOrg(org.ID)
	if len(recipients) == 0 {
		log.Warn("No owners to deliver report to", "period", report.Period.Type)
		return nil
	}

	emails := make([]string, 0, len(recipients))
	for _, r := range recipients {
		emails = append(emails, r.Email)
	}
	summary := report.SummaryView()
	log.Info("KPI report ready",
		"organization", org.Name,
		"period", report.Period.Type,
		"start", report.Period.Start,
		"recipients", emails,
		"total_hours", summary.Summary.TotalHours,
		"completion_rate", summary.Summary.CompletionRate,
		"top_performers", len(summary.TopPerformers),
		"action_items", summary.ActionItemCount)
	return nil
}
