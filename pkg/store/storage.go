package store

import (
	"context"
	"time"

	"github.com/meetpulse/backend/pkg/common"
)

// ReportStatus tracks a report job through its lifecycle. Synchronous reports
// jump straight to completed; queued jobs move pending -> processing ->
// completed or failed.
type ReportStatus string

const (
	StatusPending    ReportStatus = "pending"
	StatusProcessing ReportStatus = "processing"
	StatusCompleted  ReportStatus = "completed"
	StatusFailed     ReportStatus = "failed"
)

// ReportRecord is the database row for one report. The report body itself
// lives in object storage under FileKey; the row only carries metadata.
type ReportRecord struct {
	ID                string       `json:"id"`
	SelfName          string       `json:"self_name"`
	SelfEmail         string       `json:"self_email"`
	Status            ReportStatus `json:"status"`
	CollaboratorCount int          `json:"collaborator_count"`
	FileKey           string       `json:"file_key,omitempty"`
	ErrorMessage      string       `json:"error_message,omitempty"`
	CreatedAt         time.Time    `json:"created_at"`
	CompletedAt       *time.Time   `json:"completed_at,omitempty"`
}

// CollaboratorRecord is one ranked collaborator flattened into a queryable
// row. Rank is 1-based in ranking order.
type CollaboratorRecord struct {
	ReportID             string    `json:"report_id"`
	Rank                 int       `json:"rank"`
	PersonID             string    `json:"person_id"`
	Name                 string    `json:"name"`
	Email                string    `json:"email"`
	Score                float64   `json:"score"`
	Dormancy             string    `json:"dormancy"`
	DaysSinceLastContact int       `json:"days_since_last_contact"`
	LastContact          time.Time `json:"last_contact"`
}

// CollaboratorRecordsFromReport flattens a finished report into rows for the
// collaborator table.
func CollaboratorRecordsFromReport(reportID string, report *common.Report) []CollaboratorRecord {
	rows := make([]CollaboratorRecord, 0, len(report.Collaborators))
	for i, c := range report.Collaborators {
		email := ""
		if len(c.Emails) > 0 {
			email = c.Emails[0]
		}
		rows = append(rows, CollaboratorRecord{
			ReportID:             reportID,
			Rank:                 i + 1,
			PersonID:             c.PersonID,
			Name:                 c.Name,
			Email:                email,
			Score:                c.Score.Total,
			Dormancy:             string(c.Dormancy),
			DaysSinceLastContact: c.DaysSinceLastContact,
			LastContact:          c.LastContact,
		})
	}
	return rows
}

// ReportStorage defines the interface for persisting report metadata. It
// covers the full job lifecycle plus listing and deletion for the API.
type ReportStorage interface {
	SaveReport(ctx context.Context, rec *ReportRecord) error
	GetReport(ctx context.Context, id string) (*ReportRecord, error)
	ListReports(ctx context.Context, limit, offset int) ([]ReportRecord, error)
	MarkReportProcessing(ctx context.Context, id string) error
	MarkReportCompleted(ctx context.Context, id string, collaboratorCount int, fileKey string) error
	MarkReportFailed(ctx context.Context, id string, errorMessage string) error
	DeleteReport(ctx context.Context, id string) error

	SaveReportCollaborators(ctx context.Context, reportID string, rows []CollaboratorRecord) error
	ListReportCollaborators(ctx context.Context, reportID string) ([]CollaboratorRecord, error)
}
