package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"
	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/meetpulse/backend/internal/queue"
	"github.com/meetpulse/backend/internal/server/middleware"
	"github.com/meetpulse/backend/internal/storage"
	"github.com/meetpulse/backend/internal/util"
	"github.com/meetpulse/backend/pkg/common"
	"github.com/meetpulse/backend/pkg/engine"
	"github.com/meetpulse/backend/pkg/logger"
	"github.com/meetpulse/backend/pkg/store"
	reportstore "github.com/meetpulse/backend/pkg/store/pgx"
)

// CreateReportHandler builds a report synchronously and returns it in the
// response. The request and the finished report are archived to S3 and a
// completed row is written so the report shows up in listings.
func CreateReportHandler(c echo.Context) error {
	type createReportBody struct {
		Config engine.Config `json:"config" validate:"required"`
		Input  engine.Input  `json:"input" validate:"required"`
	}

	type createReportResponse struct {
		Message  string         `json:"message"`
		ReportID string         `json:"report_id,omitempty"`
		Report   *common.Report `json:"report,omitempty"`
	}

	data := new(createReportBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, createReportResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, createReportResponse{
			Message: "Invalid request body",
		})
	}

	user := c.(*middleware.AppContext).User
	if user == nil {
		return c.JSON(http.StatusUnauthorized, createReportResponse{
			Message: "Unauthorized",
		})
	}

	eng, err := engine.NewEngine(data.Config)
	if err != nil {
		logger.Error("Failed to configure engine", "err", err)
		return c.JSON(http.StatusBadRequest, createReportResponse{
			Message: "Invalid report configuration",
		})
	}

	ctx := c.Request().Context()
	report, err := eng.BuildReport(ctx, data.Input)
	if err != nil {
		logger.Error("Failed to build report", "err", err)
		return c.JSON(http.StatusInternalServerError, createReportResponse{
			Message: "Internal server error",
		})
	}

	reportID, err := gonanoid.New()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, createReportResponse{
			Message: "Internal server error",
		})
	}

	s3Client := c.(*middleware.AppContext).App.S3
	request := queue.ReportRequest{Config: data.Config, Input: data.Input}
	if err := storage.PutJSON(ctx, s3Client, storage.InputKey(reportID), []byte(util.ConvertStructToJson(request))); err != nil {
		logger.Error("Failed to archive report request", "report", reportID, "err", err)
		return c.JSON(http.StatusInternalServerError, createReportResponse{
			Message: "Internal server error",
		})
	}
	reportKey := storage.ReportKey(reportID)
	if err := storage.PutJSON(ctx, s3Client, reportKey, []byte(util.ConvertStructToJson(report))); err != nil {
		logger.Error("Failed to archive report", "report", reportID, "err", err)
		return c.JSON(http.StatusInternalServerError, createReportResponse{
			Message: "Internal server error",
		})
	}

	conn := c.(*middleware.AppContext).App.DBConn
	db := reportstore.NewReportDBStorageWithConnection(conn)
	rec := &store.ReportRecord{
		ID:        reportID,
		SelfName:  data.Config.SelfIdentity.Name,
		SelfEmail: firstEmail(data.Config.SelfIdentity.Emails),
		Status:    store.StatusPending,
	}
	if err := db.SaveReport(ctx, rec); err != nil {
		logger.Error("Failed to save report", "report", reportID, "err", err)
		return c.JSON(http.StatusInternalServerError, createReportResponse{
			Message: "Internal server error",
		})
	}
	if err := db.SaveReportCollaborators(ctx, reportID, store.CollaboratorRecordsFromReport(reportID, report)); err != nil {
		logger.Error("Failed to store collaborators", "report", reportID, "err", err)
		return c.JSON(http.StatusInternalServerError, createReportResponse{
			Message: "Internal server error",
		})
	}
	if err := db.MarkReportCompleted(ctx, reportID, len(report.Collaborators), reportKey); err != nil {
		logger.Error("Failed to complete report", "report", reportID, "err", err)
		return c.JSON(http.StatusInternalServerError, createReportResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusOK, createReportResponse{
		Message:  "Report created successfully",
		ReportID: reportID,
		Report:   report,
	})
}

func firstEmail(emails []string) string {
	if len(emails) == 0 {
		return ""
	}
	return emails[0]
}
