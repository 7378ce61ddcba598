package api

import (
	httpSwagger "github.com/swaggo/http-swagger"

	_ "go-student-batch/docs"
	"go-student-batch/internal/api/handler"
	"go-student-batch/pkg/router"
)

func RegisterRoutes(r *router.Router, h *handler.Handler) {
	r.POST("/api/v1/jobs/importStudents", h.LaunchImport)
	r.GET("/api/v1/jobs", h.ListJobs)
	// More specific routes first
	r.GET("/api/v1/jobs/*/errors", h.GetJobErrors)
	r.GET("/api/v1/jobs/*/progress", h.GetJobProgress)
	// Generic job route last
	r.GET("/api/v1/jobs/*", h.GetJob)
	r.GET("/api/v1/students", h.ListStudents)
	r.GET("/healthz", h.Health)
	r.Handle("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))
}
