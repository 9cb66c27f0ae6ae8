package summary

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/harborline-erp/harborline/internal/platform/httpx"
)

// Handler wires the read-only summary endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers summary routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/orders", h.orders)
	r.Get("/materials", h.materials)
	r.Post("/refresh", h.refresh)
}

func (h *Handler) orders(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.Orders(r.Context())
	if err != nil {
		h.respondError(w, r, "order summary", err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) materials(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.Materials(r.Context())
	if err != nil {
		h.respondError(w, r, "material summary", err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Refresh(r.Context()); err != nil {
		h.respondError(w, r, "refresh summaries", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, op string, err error) {
	h.logger.Error(op, slog.String("path", r.URL.Path), slog.Any("error", err))
	httpx.RespondError(w, err)
}
