package health

import (
	"net/http"

	"github.com/go-chi/render"

	apphealth "selsup/crptgateway/internal/application/health"
)

// Handler bridges HTTP traffic with the health application service.
type Handler struct {
	service *apphealth.Service
}

func NewHandler(service *apphealth.Service) *Handler {
	return &Handler{service: service}
}

// Status answers 200 while the gateway can accept submissions. A degraded
// audit database is reported in the body but does not fail the probe.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusOK)
	render.JSON(w, r, h.service.Status(r.Context()))
}
