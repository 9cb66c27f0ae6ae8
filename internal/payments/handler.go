package payments

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/harborline-erp/harborline/internal/platform/httpx"
)

// Handler wires HTTP endpoints for payment requests.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers payment request routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.delete)
	r.Post("/{id}/complete", h.complete)
	r.Post("/complete", h.batchComplete)
}

type createRequest struct {
	SourceType  string          `json:"source_type" validate:"required,oneof=order packing_list"`
	SourceRef   string          `json:"source_ref" validate:"required"`
	PaymentType string          `json:"payment_type" validate:"required,oneof=advance balance shipping"`
	Amount      decimal.Decimal `json:"amount"`
	RequestedAt string          `json:"requested_at"`
	Note        string          `json:"note"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	requestedAt, ok := parseDate(w, req.RequestedAt)
	if !ok {
		return
	}
	pr, err := h.service.Create(r.Context(), CreateInput{
		SourceType:  SourceType(req.SourceType),
		SourceRef:   req.SourceRef,
		PaymentType: PaymentType(req.PaymentType),
		Amount:      req.Amount,
		RequestedAt: requestedAt,
		Note:        req.Note,
	})
	if err != nil {
		h.respondError(w, r, "create payment request", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, pr)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	pr, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, r, "get payment request", err)
		return
	}
	httpx.JSON(w, http.StatusOK, pr)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	filter := ListFilter{
		Status:      Status(q.Get("status")),
		SourceType:  SourceType(q.Get("source_type")),
		PaymentType: PaymentType(q.Get("payment_type")),
		SourceRef:   q.Get("source_ref"),
	}
	requests, pagination, err := h.service.List(r.Context(), page, perPage, filter)
	if err != nil {
		h.respondError(w, r, "list payment requests", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"items":      requests,
		"pagination": pagination,
	})
}

type updateRequest struct {
	Amount      *decimal.Decimal `json:"amount"`
	RequestedAt *string          `json:"requested_at"`
	Note        *string          `json:"note"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req updateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	input := UpdateInput{Amount: req.Amount, Note: req.Note}
	if req.RequestedAt != nil {
		t, ok := parseDate(w, *req.RequestedAt)
		if !ok {
			return
		}
		input.RequestedAt = &t
	}
	pr, err := h.service.Update(r.Context(), id, input)
	if err != nil {
		h.respondError(w, r, "update payment request", err)
		return
	}
	httpx.JSON(w, http.StatusOK, pr)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.respondError(w, r, "delete payment request", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) complete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	pr, err := h.service.Complete(r.Context(), id)
	if err != nil {
		h.respondError(w, r, "complete payment request", err)
		return
	}
	httpx.JSON(w, http.StatusOK, pr)
}

type batchCompleteRequest struct {
	IDs []int64 `json:"ids" validate:"required,min=1"`
}

func (h *Handler) batchComplete(w http.ResponseWriter, r *http.Request) {
	var req batchCompleteRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	completed, err := h.service.BatchComplete(r.Context(), req.IDs)
	if err != nil {
		h.respondError(w, r, "batch complete payment requests", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"completed": completed})
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, op string, err error) {
	h.logger.Error(op, slog.String("path", r.URL.Path), slog.Any("error", err))
	httpx.RespondError(w, err)
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", fmt.Sprintf("invalid %s", name))
		return 0, false
	}
	return id, true
}

func parseDate(w http.ResponseWriter, value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, true
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid date, want YYYY-MM-DD")
		return time.Time{}, false
	}
	return t, true
}
