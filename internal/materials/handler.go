package materials

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

// Handler wires HTTP endpoints for materials and their stock ledger.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers material routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.delete)
	r.Get("/{id}/transactions", h.listTransactions)
	r.Post("/{id}/transactions", h.applyTransaction)
	r.Delete("/transactions/{txID}", h.reverseTransaction)
}

type createMaterialRequest struct {
	Name         string          `json:"name" validate:"required"`
	Unit         string          `json:"unit"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	InitialStock int64           `json:"initial_stock" validate:"gte=0"`
	ImageURL     string          `json:"image_url"`
	Note         string          `json:"note"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createMaterialRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	m, err := h.service.CreateMaterial(r.Context(), CreateMaterialInput{
		Name:         req.Name,
		Unit:         req.Unit,
		UnitPrice:    req.UnitPrice,
		InitialStock: req.InitialStock,
		ImageURL:     req.ImageURL,
		Note:         req.Note,
	})
	if err != nil {
		h.respondError(w, r, "create material", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, m)
}

type updateMaterialRequest struct {
	Name      *string          `json:"name"`
	Unit      *string          `json:"unit"`
	UnitPrice *decimal.Decimal `json:"unit_price"`
	ImageURL  *string          `json:"image_url"`
	Note      *string          `json:"note"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req updateMaterialRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	m, err := h.service.UpdateMaterial(r.Context(), id, UpdateMaterialInput{
		Name:      req.Name,
		Unit:      req.Unit,
		UnitPrice: req.UnitPrice,
		ImageURL:  req.ImageURL,
		Note:      req.Note,
	})
	if err != nil {
		h.respondError(w, r, "update material", err)
		return
	}
	httpx.JSON(w, http.StatusOK, m)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.service.DeleteMaterial(r.Context(), id); err != nil {
		h.respondError(w, r, "delete material", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	m, err := h.service.GetMaterial(r.Context(), id)
	if err != nil {
		h.respondError(w, r, "get material", err)
		return
	}
	httpx.JSON(w, http.StatusOK, m)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	ms, err := h.service.ListMaterials(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		h.respondError(w, r, "list materials", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": ms})
}

func (h *Handler) listTransactions(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	txs, err := h.service.ListTransactions(r.Context(), id)
	if err != nil {
		h.respondError(w, r, "list stock transactions", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": txs})
}

type transactionRequest struct {
	Direction      string `json:"direction" validate:"required,oneof=in out"`
	Quantity       int64  `json:"quantity" validate:"required,gt=0"`
	OccurredAt     string `json:"occurred_at"`
	Note           string `json:"note"`
	RelatedOrderID *int64 `json:"related_order_id"`
}

func (h *Handler) applyTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req transactionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	var occurredAt time.Time
	if req.OccurredAt != "" {
		t, err := time.Parse("2006-01-02", req.OccurredAt)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid date, want YYYY-MM-DD")
			return
		}
		occurredAt = t
	}
	stx, err := h.service.ApplyTransaction(r.Context(), ApplyTransactionInput{
		MaterialID:     id,
		Direction:      Direction(req.Direction),
		Quantity:       req.Quantity,
		OccurredAt:     occurredAt,
		Note:           req.Note,
		RelatedOrderID: req.RelatedOrderID,
	})
	if err != nil {
		h.respondError(w, r, "apply stock transaction", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, stx)
}

func (h *Handler) reverseTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "txID")
	if !ok {
		return
	}
	if err := h.service.ReverseTransaction(r.Context(), id); err != nil {
		h.respondError(w, r, "reverse stock transaction", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
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
