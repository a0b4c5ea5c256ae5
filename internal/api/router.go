package api

import (
	httpSwagger "github.com/swaggo/http-swagger"

	_ "referendum-pipeline/docs"
	"referendum-pipeline/internal/api/handler"
	"referendum-pipeline/pkg/router"
)

func RegisterRoutes(r *router.Router) {
	r.POST("/api/v1/runs", handler.CreateRun)
	r.GET("/api/v1/runs", handler.ListRuns)
	// Wildcards match in registration order: specific routes first
	r.GET("/api/v1/runs/*/results", handler.GetRunResults)
	r.GET("/api/v1/runs/*/map", handler.GetRunMap)
	r.GET("/api/v1/runs/*/diagnostics", handler.GetRunDiagnostics)
	r.GET("/api/v1/runs/*/errors", handler.GetRunErrors)
	r.POST("/api/v1/runs/*/retry", handler.RetryRun)
	r.GET("/api/v1/runs/*", handler.GetRun)

	r.GET("/swagger/*", router.HandlerFunc(httpSwagger.WrapHandler))
}
