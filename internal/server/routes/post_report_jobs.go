package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"
	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/meetpulse/backend/internal/queue"
	"github.com/meetpulse/backend/internal/server/middleware"
	"github.com/meetpulse/backend/internal/storage"
	"github.com/meetpulse/backend/internal/util"
	"github.com/meetpulse/backend/pkg/engine"
	"github.com/meetpulse/backend/pkg/logger"
	"github.com/meetpulse/backend/pkg/store"
	reportstore "github.com/meetpulse/backend/pkg/store/pgx"
)

// CreateReportJobHandler accepts a report request, archives it to S3 and
// queues it for the worker. The response carries the report id the client
// polls for completion.
func CreateReportJobHandler(c echo.Context) error {
	type createReportJobBody struct {
		Config engine.Config `json:"config" validate:"required"`
		Input  engine.Input  `json:"input" validate:"required"`
	}

	type createReportJobResponse struct {
		Message  string `json:"message"`
		ReportID string `json:"report_id,omitempty"`
		Status   string `json:"status,omitempty"`
	}

	data := new(createReportJobBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, createReportJobResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, createReportJobResponse{
			Message: "Invalid request body",
		})
	}

	user := c.(*middleware.AppContext).User
	if user == nil {
		return c.JSON(http.StatusUnauthorized, createReportJobResponse{
			Message: "Unauthorized",
		})
	}

	// Reject unusable configs before queueing so the client gets a 400
	// instead of a failed job.
	if _, err := engine.NewEngine(data.Config); err != nil {
		logger.Error("Failed to configure engine", "err", err)
		return c.JSON(http.StatusBadRequest, createReportJobResponse{
			Message: "Invalid report configuration",
		})
	}

	reportID, err := gonanoid.New()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, createReportJobResponse{
			Message: "Internal server error",
		})
	}

	ctx := c.Request().Context()
	s3Client := c.(*middleware.AppContext).App.S3
	inputKey := storage.InputKey(reportID)
	request := queue.ReportRequest{Config: data.Config, Input: data.Input}
	if err := storage.PutJSON(ctx, s3Client, inputKey, []byte(util.ConvertStructToJson(request))); err != nil {
		logger.Error("Failed to archive report request", "report", reportID, "err", err)
		return c.JSON(http.StatusInternalServerError, createReportJobResponse{
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
		return c.JSON(http.StatusInternalServerError, createReportJobResponse{
			Message: "Internal server error",
		})
	}

	queueData := queue.ReportJobMsg{
		ReportID: reportID,
		InputKey: inputKey,
	}

	ch := c.(*middleware.AppContext).App.Queue
	if err := queue.PublishFIFO(ch, queue.ReportQueue, []byte(util.ConvertStructToJson(queueData))); err != nil {
		logger.Error("Failed to publish to report_queue", "report", reportID, "err", err)
		return c.JSON(http.StatusInternalServerError, createReportJobResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusAccepted, createReportJobResponse{
		Message:  "Report job queued",
		ReportID: reportID,
		Status:   string(store.StatusPending),
	})
}
