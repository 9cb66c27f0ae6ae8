package freight

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

// Handler wires HTTP endpoints for packing lists.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers packing list routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.detail)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.delete)
	r.Post("/{id}/items", h.addItem)
	r.Put("/items/{itemID}", h.updateItem)
	r.Delete("/items/{itemID}", h.deleteItem)
	r.Post("/items/{itemID}/arrivals", h.addArrival)
	r.Delete("/arrivals/{arrivalID}", h.deleteArrival)
	r.Get("/proration/{orderID}", h.proration)
}

type createListRequest struct {
	Code        string           `json:"code" validate:"required"`
	ShippedAt   string           `json:"shipped_at"`
	ArrivedAt   string           `json:"arrived_at"`
	FreightCost decimal.Decimal  `json:"freight_cost"`
	Weight      decimal.Decimal  `json:"weight"`
	WeightRatio *decimal.Decimal `json:"weight_ratio"`
	Note        string           `json:"note"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createListRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	shippedAt, ok := parseDate(w, req.ShippedAt)
	if !ok {
		return
	}
	var arrivedAt *time.Time
	if req.ArrivedAt != "" {
		t, ok := parseDate(w, req.ArrivedAt)
		if !ok {
			return
		}
		arrivedAt = &t
	}
	pl, err := h.service.CreateList(r.Context(), CreateListInput{
		Code:        req.Code,
		ShippedAt:   shippedAt,
		ArrivedAt:   arrivedAt,
		FreightCost: req.FreightCost,
		Weight:      req.Weight,
		WeightRatio: req.WeightRatio,
		Note:        req.Note,
	})
	if err != nil {
		h.respondError(w, r, "create packing list", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, pl)
}

type updateListRequest struct {
	Code        *string          `json:"code"`
	ShippedAt   *string          `json:"shipped_at"`
	ArrivedAt   *string          `json:"arrived_at"`
	FreightCost *decimal.Decimal `json:"freight_cost"`
	Weight      *decimal.Decimal `json:"weight"`
	WeightRatio *decimal.Decimal `json:"weight_ratio"`
	ClearRatio  bool             `json:"clear_weight_ratio"`
	Note        *string          `json:"note"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req updateListRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	input := UpdateListInput{
		Code:        req.Code,
		FreightCost: req.FreightCost,
		Weight:      req.Weight,
		WeightRatio: req.WeightRatio,
		ClearRatio:  req.ClearRatio,
		Note:        req.Note,
	}
	if req.ShippedAt != nil {
		t, ok := parseDate(w, *req.ShippedAt)
		if !ok {
			return
		}
		input.ShippedAt = &t
	}
	if req.ArrivedAt != nil {
		// Empty string clears the arrival date.
		if *req.ArrivedAt == "" {
			input.ClearArrive = true
		} else {
			t, ok := parseDate(w, *req.ArrivedAt)
			if !ok {
				return
			}
			input.ArrivedAt = &t
		}
	}
	pl, err := h.service.UpdateList(r.Context(), id, input)
	if err != nil {
		h.respondError(w, r, "update packing list", err)
		return
	}
	httpx.JSON(w, http.StatusOK, pl)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.service.DeleteList(r.Context(), id); err != nil {
		h.respondError(w, r, "delete packing list", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) detail(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	detail, err := h.service.GetDetail(r.Context(), id)
	if err != nil {
		h.respondError(w, r, "packing list detail", err)
		return
	}
	httpx.JSON(w, http.StatusOK, detail)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	filter := ListFilter{
		Code:      q.Get("code"),
		Unarrived: q.Get("unarrived") == "true",
	}
	if from := q.Get("from"); from != "" {
		if t, err := time.Parse("2006-01-02", from); err == nil {
			filter.ShippedFrom = &t
		}
	}
	if to := q.Get("to"); to != "" {
		if t, err := time.Parse("2006-01-02", to); err == nil {
			end := t.Add(24*time.Hour - time.Nanosecond)
			filter.ShippedTo = &end
		}
	}
	rows, pagination, err := h.service.List(r.Context(), page, perPage, filter)
	if err != nil {
		h.respondError(w, r, "list packing lists", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"items":      rows,
		"pagination": pagination,
	})
}

type itemRequest struct {
	OrderID  *int64 `json:"order_id"`
	Quantity int64  `json:"quantity" validate:"required,gt=0"`
	PackUnit string `json:"pack_unit" validate:"required,oneof=box sack"`
	Note     string `json:"note"`
}

func (h *Handler) addItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req itemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	item, err := h.service.AddItem(r.Context(), AddItemInput{
		PackingListID: id,
		OrderID:       req.OrderID,
		Quantity:      req.Quantity,
		PackUnit:      PackUnit(req.PackUnit),
		Note:          req.Note,
	})
	if err != nil {
		h.respondError(w, r, "add packing list item", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, item)
}

func (h *Handler) updateItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "itemID")
	if !ok {
		return
	}
	var req itemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	item, err := h.service.UpdateItem(r.Context(), id, req.Quantity, req.OrderID, PackUnit(req.PackUnit), req.Note)
	if err != nil {
		h.respondError(w, r, "update packing list item", err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) deleteItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "itemID")
	if !ok {
		return
	}
	if err := h.service.DeleteItem(r.Context(), id); err != nil {
		h.respondError(w, r, "delete packing list item", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type arrivalRequest struct {
	Quantity  int64  `json:"quantity" validate:"required,gt=0"`
	ArrivedAt string `json:"arrived_at"`
}

func (h *Handler) addArrival(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "itemID")
	if !ok {
		return
	}
	var req arrivalRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	arrivedAt, ok := parseDate(w, req.ArrivedAt)
	if !ok {
		return
	}
	arrival, err := h.service.AddArrival(r.Context(), AddArrivalInput{
		ItemID:    id,
		Quantity:  req.Quantity,
		ArrivedAt: arrivedAt,
	})
	if err != nil {
		h.respondError(w, r, "add arrival", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, arrival)
}

func (h *Handler) deleteArrival(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "arrivalID")
	if !ok {
		return
	}
	if err := h.service.DeleteArrival(r.Context(), id); err != nil {
		h.respondError(w, r, "delete arrival", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// proration exposes the freight allocation for one order, mostly for
// debugging and back-office checks.
func (h *Handler) proration(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(w, r, "orderID")
	if !ok {
		return
	}
	allocated, err := h.service.AllocatedFreight(r.Context(), orderID)
	if err != nil {
		h.respondError(w, r, "order proration", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"order_id":          orderID,
		"allocated_freight": allocated,
	})
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
