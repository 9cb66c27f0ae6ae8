package orders

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

// Handler wires HTTP endpoints for the orders module.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the orders handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers order routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.detail)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.delete)
	r.Get("/{id}/quantities", h.quantities)
	r.Post("/{id}/recompute", h.recompute)
	r.Post("/{id}/shipments", h.addShipment)
	r.Put("/shipments/{shipmentID}", h.updateShipment)
	r.Delete("/shipments/{shipmentID}", h.deleteShipment)
	r.Post("/{id}/cost-items", h.addCostItem)
	r.Put("/cost-items/{itemID}", h.updateCostItem)
	r.Delete("/cost-items/{itemID}", h.deleteCostItem)
}

type createOrderRequest struct {
	Number           string          `json:"number" validate:"required"`
	Quantity         int64           `json:"quantity" validate:"gte=0"`
	UnitPrice        decimal.Decimal `json:"unit_price"`
	BackMargin       decimal.Decimal `json:"back_margin"`
	CommissionRate   decimal.Decimal `json:"commission_rate"`
	CommissionBasis  string          `json:"commission_basis"`
	DirectFreight    decimal.Decimal `json:"direct_freight"`
	WarehouseFreight decimal.Decimal `json:"warehouse_freight"`
	AdvanceAmount    decimal.Decimal `json:"advance_amount"`
	BalanceAmount    decimal.Decimal `json:"balance_amount"`
	OrderedAt        string          `json:"ordered_at"`
	ImageURL         string          `json:"image_url"`
	Note             string          `json:"note"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	orderedAt, ok := parseDate(w, req.OrderedAt)
	if !ok {
		return
	}
	po, err := h.service.CreateOrder(r.Context(), CreateOrderInput{
		Number:           req.Number,
		Quantity:         req.Quantity,
		UnitPrice:        req.UnitPrice,
		BackMargin:       req.BackMargin,
		CommissionRate:   req.CommissionRate,
		CommissionBasis:  req.CommissionBasis,
		DirectFreight:    req.DirectFreight,
		WarehouseFreight: req.WarehouseFreight,
		AdvanceAmount:    req.AdvanceAmount,
		BalanceAmount:    req.BalanceAmount,
		OrderedAt:        orderedAt,
		ImageURL:         req.ImageURL,
		Note:             req.Note,
	})
	if err != nil {
		h.respondError(w, r, "create order", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, orderResponse(po))
}

type updateOrderRequest struct {
	Quantity         *int64           `json:"quantity"`
	UnitPrice        *decimal.Decimal `json:"unit_price"`
	BackMargin       *decimal.Decimal `json:"back_margin"`
	CommissionRate   *decimal.Decimal `json:"commission_rate"`
	CommissionBasis  *string          `json:"commission_basis"`
	DirectFreight    *decimal.Decimal `json:"direct_freight"`
	WarehouseFreight *decimal.Decimal `json:"warehouse_freight"`
	AdvanceAmount    *decimal.Decimal `json:"advance_amount"`
	BalanceAmount    *decimal.Decimal `json:"balance_amount"`
	Confirmed        *bool            `json:"confirmed"`
	Status           *string          `json:"status"`
	ImageURL         *string          `json:"image_url"`
	Note             *string          `json:"note"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req updateOrderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	input := UpdateOrderInput{
		Quantity:         req.Quantity,
		UnitPrice:        req.UnitPrice,
		BackMargin:       req.BackMargin,
		CommissionRate:   req.CommissionRate,
		CommissionBasis:  req.CommissionBasis,
		DirectFreight:    req.DirectFreight,
		WarehouseFreight: req.WarehouseFreight,
		AdvanceAmount:    req.AdvanceAmount,
		BalanceAmount:    req.BalanceAmount,
		Confirmed:        req.Confirmed,
		ImageURL:         req.ImageURL,
		Note:             req.Note,
	}
	if req.Status != nil {
		status := DeliveryStatus(*req.Status)
		input.Status = &status
	}
	po, err := h.service.UpdateOrder(r.Context(), id, input)
	if err != nil {
		h.respondError(w, r, "update order", err)
		return
	}
	httpx.JSON(w, http.StatusOK, orderResponse(po))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.service.DeleteOrder(r.Context(), id); err != nil {
		h.respondError(w, r, "delete order", err)
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
		h.respondError(w, r, "order detail", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"order":      orderResponse(detail.Order),
		"quantities": detail.Quantities,
		"cost":       detail.Cost,
		"shipments":  detail.Shipments,
		"cost_items": detail.CostItems,
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	filter := ListFilter{
		Status:  DeliveryStatus(q.Get("status")),
		Search:  q.Get("q"),
		SortBy:  q.Get("sort"),
		SortDir: q.Get("dir"),
	}
	if from := q.Get("from"); from != "" {
		if t, err := time.Parse("2006-01-02", from); err == nil {
			filter.From = t
		}
	}
	if to := q.Get("to"); to != "" {
		if t, err := time.Parse("2006-01-02", to); err == nil {
			filter.To = t.Add(24*time.Hour - time.Nanosecond)
		}
	}
	rows, pagination, err := h.service.List(r.Context(), page, perPage, filter)
	if err != nil {
		h.respondError(w, r, "list orders", err)
		return
	}
	items := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		items = append(items, map[string]any{
			"order":      orderResponse(row.Order),
			"quantities": row.Quantities,
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"items":      items,
		"pagination": pagination,
	})
}

func (h *Handler) quantities(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	quantities, err := h.service.Quantities(r.Context(), id)
	if err != nil {
		h.respondError(w, r, "order quantities", err)
		return
	}
	httpx.JSON(w, http.StatusOK, quantities)
}

func (h *Handler) recompute(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	breakdown, err := h.service.RecomputeDerived(r.Context(), id)
	if err != nil {
		h.respondError(w, r, "recompute order", err)
		return
	}
	httpx.JSON(w, http.StatusOK, breakdown)
}

type shipmentRequest struct {
	Quantity   int64  `json:"quantity" validate:"required,gt=0"`
	ShippedAt  string `json:"shipped_at"`
	TrackingNo string `json:"tracking_no"`
}

func (h *Handler) addShipment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req shipmentRequest
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
	shipment, err := h.service.AddFactoryShipment(r.Context(), AddFactoryShipmentInput{
		OrderID:    id,
		Quantity:   req.Quantity,
		ShippedAt:  shippedAt,
		TrackingNo: req.TrackingNo,
	})
	if err != nil {
		h.respondError(w, r, "add shipment", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, shipment)
}

func (h *Handler) updateShipment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "shipmentID")
	if !ok {
		return
	}
	var req shipmentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	shippedAt, ok := parseDate(w, req.ShippedAt)
	if !ok {
		return
	}
	shipment, err := h.service.UpdateFactoryShipment(r.Context(), id, req.Quantity, shippedAt, req.TrackingNo)
	if err != nil {
		h.respondError(w, r, "update shipment", err)
		return
	}
	httpx.JSON(w, http.StatusOK, shipment)
}

func (h *Handler) deleteShipment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "shipmentID")
	if !ok {
		return
	}
	if err := h.service.DeleteFactoryShipment(r.Context(), id); err != nil {
		h.respondError(w, r, "delete shipment", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type costItemRequest struct {
	Kind      string          `json:"kind" validate:"required,oneof=option labor"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int64           `json:"quantity" validate:"required,gt=0"`
	AdminOnly bool            `json:"admin_only"`
}

func (h *Handler) addCostItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req costItemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	item, err := h.service.AddCostItem(r.Context(), AddCostItemInput{
		OrderID:   id,
		Kind:      CostKind(req.Kind),
		Name:      req.Name,
		UnitPrice: req.UnitPrice,
		Quantity:  req.Quantity,
		AdminOnly: req.AdminOnly,
	})
	if err != nil {
		h.respondError(w, r, "add cost item", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, item)
}

func (h *Handler) updateCostItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "itemID")
	if !ok {
		return
	}
	var req costItemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	item, err := h.service.UpdateCostItem(r.Context(), id, AddCostItemInput{
		Kind:      CostKind(req.Kind),
		Name:      req.Name,
		UnitPrice: req.UnitPrice,
		Quantity:  req.Quantity,
		AdminOnly: req.AdminOnly,
	})
	if err != nil {
		h.respondError(w, r, "update cost item", err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) deleteCostItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "itemID")
	if !ok {
		return
	}
	if err := h.service.DeleteCostItem(r.Context(), id); err != nil {
		h.respondError(w, r, "delete cost item", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, op string, err error) {
	h.logger.Error(op, slog.String("path", r.URL.Path), slog.Any("error", err))
	httpx.RespondError(w, err)
}

func orderResponse(po PurchaseOrder) map[string]any {
	resp := map[string]any{
		"id":                po.ID,
		"number":            po.Number,
		"quantity":          po.Quantity,
		"unit_price":        po.UnitPrice,
		"back_margin":       po.BackMargin,
		"order_unit_price":  po.OrderUnitPrice(),
		"commission_rate":   po.CommissionRate,
		"commission_basis":  po.CommissionBasis,
		"direct_freight":    po.DirectFreight,
		"warehouse_freight": po.WarehouseFreight,
		"advance_amount":    po.AdvanceAmount,
		"balance_amount":    po.BalanceAmount,
		"confirmed":         po.Confirmed,
		"status":            po.Status,
		"ordered_at":        po.OrderedAt,
		"image_url":         po.ImageURL,
		"note":              po.Note,
	}
	if po.ExpectedFinalUnitPrice != nil {
		resp["expected_final_unit_price"] = po.ExpectedFinalUnitPrice
	}
	if po.AdvancePaidAt != nil {
		resp["advance_paid_at"] = po.AdvancePaidAt
	}
	if po.BalancePaidAt != nil {
		resp["balance_paid_at"] = po.BalancePaidAt
	}
	return resp
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", fmt.Sprintf("invalid %s", name))
		return 0, false
	}
	return id, true
}

// parseDate accepts an empty string (meaning "now") or a 2006-01-02 date.
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
