package server

import (
	"github.com/meetpulse/backend/internal/server/middleware"
	"github.com/meetpulse/backend/internal/server/routes"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})

	apiRoutes := e.Group("/api", middleware.AuthMiddleware)

	// Report routes
	apiRoutes.POST("/reports", routes.CreateReportHandler, middleware.RequirePermission("report.create"))
	apiRoutes.POST("/report-jobs", routes.CreateReportJobHandler, middleware.RequirePermission("report.create"))
	apiRoutes.GET("/reports", routes.GetReportsHandler, middleware.RequireAnyPermission("report.view", "report.view:all"))
	apiRoutes.GET("/reports/:id", routes.GetReportHandler, middleware.RequireAnyPermission("report.view", "report.view:all"))
	apiRoutes.GET("/reports/:id/collaborators", routes.GetReportCollaboratorsHandler, middleware.RequireAnyPermission("report.view", "report.view:all"))
	apiRoutes.DELETE("/reports/:id", routes.DeleteReportHandler, middleware.RequirePermission("report.delete"))
}
