package server

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

// RegisterRoutes wires every endpoint onto router.
//
//	GET  /health
//	GET  /metrics
//	GET  /api/symptoms       vocabulary, or ranked lookup with ?q=
//	GET  /api/diseases
//	POST /api/diagnose
//	POST /api/symptoms       add a symptom to a disease rule
//	POST /api/diseases       register a disease
//	POST /api/feedback       add missed symptoms reported by a user
//	POST /api/upload_csv     ingest a disease/symptom table
//
// The mutating routes share limiter.
func RegisterRoutes(router gin.IRouter, h *Handlers, limiter *rate.Limiter) {
	router.GET("/health", h.HandleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	{
		api.GET("/symptoms", h.HandleSymptoms)
		api.GET("/diseases", h.HandleDiseases)
		api.POST("/diagnose", h.HandleDiagnose)

		mutations := api.Group("", rateLimit(limiter))
		mutations.POST("/symptoms", h.HandleAddSymptom)
		mutations.POST("/diseases", h.HandleAddDisease)
		mutations.POST("/feedback", h.HandleFeedback)
		mutations.POST("/upload_csv", h.HandleUploadCSV)
	}
}
