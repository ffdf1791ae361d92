package routes

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/meetpulse/backend/internal/server/middleware"
	"github.com/meetpulse/backend/internal/storage"
	"github.com/meetpulse/backend/pkg/common"
	"github.com/meetpulse/backend/pkg/logger"
	"github.com/meetpulse/backend/pkg/store"
	reportstore "github.com/meetpulse/backend/pkg/store/pgx"
)

// GetReportsHandler lists report rows, newest first.
func GetReportsHandler(c echo.Context) error {
	type getReportsParams struct {
		Limit  int `query:"limit" validate:"gte=0"`
		Offset int `query:"offset" validate:"gte=0"`
	}

	type getReportsResponse struct {
		Message string               `json:"message"`
		Reports []store.ReportRecord `json:"reports"`
	}

	params := new(getReportsParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, getReportsResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, getReportsResponse{
			Message: "Invalid request body",
		})
	}

	user := c.(*middleware.AppContext).User
	if user == nil {
		return c.JSON(http.StatusUnauthorized, getReportsResponse{
			Message: "Unauthorized",
		})
	}

	ctx := c.Request().Context()
	conn := c.(*middleware.AppContext).App.DBConn
	db := reportstore.NewReportDBStorageWithConnection(conn)

	reports, err := db.ListReports(ctx, params.Limit, params.Offset)
	if err != nil {
		logger.Error("Failed to list reports", "err", err)
		return c.JSON(http.StatusInternalServerError, getReportsResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusOK, getReportsResponse{
		Message: "Reports listed successfully",
		Reports: reports,
	})
}

// GetReportHandler returns one report row together with the archived report
// body when the job is completed. With download=true a presigned link is
// returned instead of the inlined body.
func GetReportHandler(c echo.Context) error {
	type getReportParams struct {
		ReportID string `param:"id" validate:"required"`
		Download bool   `query:"download"`
	}

	type getReportResponse struct {
		Message      string              `json:"message"`
		Record       *store.ReportRecord `json:"record,omitempty"`
		Report       *common.Report      `json:"report,omitempty"`
		DownloadLink string              `json:"download_link,omitempty"`
	}

	params := new(getReportParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, getReportResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, getReportResponse{
			Message: "Invalid request body",
		})
	}

	user := c.(*middleware.AppContext).User
	if user == nil {
		return c.JSON(http.StatusUnauthorized, getReportResponse{
			Message: "Unauthorized",
		})
	}

	ctx := c.Request().Context()
	conn := c.(*middleware.AppContext).App.DBConn
	db := reportstore.NewReportDBStorageWithConnection(conn)

	rec, err := db.GetReport(ctx, params.ReportID)
	if err != nil {
		if errors.Is(err, reportstore.ErrReportNotFound) {
			return c.JSON(http.StatusNotFound, getReportResponse{
				Message: "Report not found",
			})
		}
		logger.Error("Failed to get report", "report", params.ReportID, "err", err)
		return c.JSON(http.StatusInternalServerError, getReportResponse{
			Message: "Internal server error",
		})
	}

	resp := getReportResponse{
		Message: "Report fetched successfully",
		Record:  rec,
	}

	if rec.Status != store.StatusCompleted || rec.FileKey == "" {
		return c.JSON(http.StatusOK, resp)
	}

	s3Client := c.(*middleware.AppContext).App.S3

	if params.Download {
		link, err := storage.GenerateDownloadLink(ctx, s3Client, rec.FileKey)
		if err != nil {
			logger.Error("Failed to generate download link", "report", params.ReportID, "err", err)
			return c.JSON(http.StatusInternalServerError, getReportResponse{
				Message: "Internal server error",
			})
		}
		resp.DownloadLink = link
		return c.JSON(http.StatusOK, resp)
	}

	raw, err := storage.GetJSON(ctx, s3Client, rec.FileKey)
	if err != nil {
		logger.Error("Failed to load report body", "report", params.ReportID, "err", err)
		return c.JSON(http.StatusInternalServerError, getReportResponse{
			Message: "Internal server error",
		})
	}
	report := new(common.Report)
	if err := json.Unmarshal(raw, report); err != nil {
		logger.Error("Failed to parse report body", "report", params.ReportID, "err", err)
		return c.JSON(http.StatusInternalServerError, getReportResponse{
			Message: "Internal server error",
		})
	}
	resp.Report = report

	return c.JSON(http.StatusOK, resp)
}

// GetReportCollaboratorsHandler returns the flattened collaborator rows for
// one report, in ranking order.
func GetReportCollaboratorsHandler(c echo.Context) error {
	type getCollaboratorsParams struct {
		ReportID string `param:"id" validate:"required"`
	}

	type getCollaboratorsResponse struct {
		Message       string                     `json:"message"`
		Collaborators []store.CollaboratorRecord `json:"collaborators"`
	}

	params := new(getCollaboratorsParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, getCollaboratorsResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, getCollaboratorsResponse{
			Message: "Invalid request body",
		})
	}

	user := c.(*middleware.AppContext).User
	if user == nil {
		return c.JSON(http.StatusUnauthorized, getCollaboratorsResponse{
			Message: "Unauthorized",
		})
	}

	ctx := c.Request().Context()
	conn := c.(*middleware.AppContext).App.DBConn
	db := reportstore.NewReportDBStorageWithConnection(conn)

	if _, err := db.GetReport(ctx, params.ReportID); err != nil {
		if errors.Is(err, reportstore.ErrReportNotFound) {
			return c.JSON(http.StatusNotFound, getCollaboratorsResponse{
				Message: "Report not found",
			})
		}
		logger.Error("Failed to get report", "report", params.ReportID, "err", err)
		return c.JSON(http.StatusInternalServerError, getCollaboratorsResponse{
			Message: "Internal server error",
		})
	}

	collaborators, err := db.ListReportCollaborators(ctx, params.ReportID)
	if err != nil {
		logger.Error("Failed to list collaborators", "report", params.ReportID, "err", err)
		return c.JSON(http.StatusInternalServerError, getCollaboratorsResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusOK, getCollaboratorsResponse{
		Message:       "Collaborators listed successfully",
		Collaborators: collaborators,
	})
}
