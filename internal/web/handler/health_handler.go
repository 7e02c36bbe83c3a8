package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/truxe-io/heimdall/internal/health"
	"github.com/truxe-io/heimdall/internal/web/response"
)

type HealthHandler struct {
	Checker *health.Checker
}

func NewHealthHandler(checker *health.Checker) HealthHandler {
	return HealthHandler{Checker: checker}
}

func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health/live", h.HandleLiveness)
	mux.HandleFunc("/health/ready", h.HandleReadiness)
}

func (h *HealthHandler) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	response.JSONResponse(w, http.StatusOK, h.Checker.CheckLiveness(ctx))
}

func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := h.Checker.CheckReadiness(ctx)

	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")

	httpStatus := http.StatusOK
	if status.Status == "unhealthy" {
		httpStatus = http.StatusServiceUnavailable
	}

	response.JSONResponse(w, httpStatus, status)
}
