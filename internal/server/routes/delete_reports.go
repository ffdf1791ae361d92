package routes

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/meetpulse/backend/internal/server/middleware"
	"github.com/meetpulse/backend/internal/storage"
	"github.com/meetpulse/backend/pkg/logger"
	reportstore "github.com/meetpulse/backend/pkg/store/pgx"
)

// DeleteReportHandler removes a report row and its archived objects. Missing
// S3 objects are logged and ignored so a half-written job can still be
// cleaned up.
func DeleteReportHandler(c echo.Context) error {
	type deleteReportParams struct {
		ReportID string `param:"id" validate:"required"`
	}

	type deleteReportResponse struct {
		Message string `json:"message"`
	}

	params := new(deleteReportParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, deleteReportResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, deleteReportResponse{
			Message: "Invalid request body",
		})
	}

	user := c.(*middleware.AppContext).User
	if user == nil {
		return c.JSON(http.StatusUnauthorized, deleteReportResponse{
			Message: "Unauthorized",
		})
	}

	ctx := c.Request().Context()
	conn := c.(*middleware.AppContext).App.DBConn
	db := reportstore.NewReportDBStorageWithConnection(conn)

	rec, err := db.GetReport(ctx, params.ReportID)
	if err != nil {
		if errors.Is(err, reportstore.ErrReportNotFound) {
			return c.JSON(http.StatusNotFound, deleteReportResponse{
				Message: "Report not found",
			})
		}
		logger.Error("Failed to get report", "report", params.ReportID, "err", err)
		return c.JSON(http.StatusInternalServerError, deleteReportResponse{
			Message: "Internal server error",
		})
	}

	s3Client := c.(*middleware.AppContext).App.S3
	if err := storage.DeleteFile(ctx, s3Client, storage.InputKey(rec.ID)); err != nil {
		logger.Warn("Failed to delete report input", "report", rec.ID, "err", err)
	}
	if rec.FileKey != "" {
		if err := storage.DeleteFile(ctx, s3Client, rec.FileKey); err != nil {
			logger.Warn("Failed to delete report body", "report", rec.ID, "err", err)
		}
	}

	if err := db.DeleteReport(ctx, rec.ID); err != nil {
		logger.Error("Failed to delete report", "report", rec.ID, "err", err)
		return c.JSON(http.StatusInternalServerError, deleteReportResponse{
			Message: "Internal server error",
		})
	}

	logger.Info("Report deleted", "report", rec.ID)
	return c.JSON(http.StatusOK, deleteReportResponse{
		Message: "Report deleted successfully",
	})
}
