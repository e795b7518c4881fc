package router

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/user/quiz-runner-service/internal/delivery/http/handler"
	"github.com/user/quiz-runner-service/internal/delivery/http/middleware"
)

func New(h *handler.Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", h.HandleHealthCheck)
	mux.HandleFunc("POST /api/tasks", h.HandleSubmitTask)
	mux.HandleFunc("GET /api/runs", h.HandleGetRunStatus)
	mux.HandleFunc("GET /api/runs/history", h.HandleGetRunHistory)

	// Prometheus metrics endpoint
	mux.Handle("/metrics", promhttp.Handler())

	// Apply middlewares
	var chainedHandler http.Handler = mux
	chainedHandler = middleware.Metrics(chainedHandler)
	chainedHandler = middleware.Logging(chainedHandler)

	return chainedHandler
}
