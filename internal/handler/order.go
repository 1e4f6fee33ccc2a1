package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dukerupert/verdandi/internal/domain"
	"github.com/dukerupert/verdandi/internal/middleware"
	"github.com/dukerupert/verdandi/internal/service"
)

// OrderHandler exposes order management over HTTP.
type OrderHandler struct {
	orders *service.OrderService
	logger *slog.Logger
}

// NewOrderHandler creates an order handler.
func NewOrderHandler(orders *service.OrderService, logger *slog.Logger) *OrderHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OrderHandler{orders: orders, logger: logger}
}

// CreateOrderRequest is the body of POST /api/orders.
type CreateOrderRequest struct {
	Items []CreateOrderItem `json:"items" validate:"required,min=1,dive"`
}

// CreateOrderItem is one line of a new order.
type CreateOrderItem struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Quantity  int32 `json:"quantity" validate:"required,gt=0"`
}

// OrderResponse is the JSON shape of an order.
type OrderResponse struct {
	ID     int64               `json:"id"`
	Status string              `json:"status"`
	Items  []OrderItemResponse `json:"items,omitempty"`
}

// OrderItemResponse is one line of an order in responses.
type OrderItemResponse struct {
	ProductID int64 `json:"product_id"`
	Quantity  int32 `json:"quantity"`
}

func orderToResponse(o *domain.Order) OrderResponse {
	resp := OrderResponse{
		ID:     o.ID,
		Status: string(o.Status),
	}
	for _, it := range o.Items {
		resp.Items = append(resp.Items, OrderItemResponse{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
		})
	}
	return resp
}

// CreateOrder handles POST /api/orders.
func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := bindJSON(r, &req); err != nil {
		ErrorResponse(w, r, err)
		return
	}

	items := make([]service.NewOrderItem, len(req.Items))
	for i, it := range req.Items {
		items[i] = service.NewOrderItem{ProductID: it.ProductID, Quantity: it.Quantity}
	}

	order, err := h.orders.CreateOrder(r.Context(), items)
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}

	middleware.GetLogger(r.Context(), h.logger).Info("order created", "order_id", order.ID)
	respondJSON(w, http.StatusCreated, orderToResponse(order))
}

// GetOrder handles GET /api/orders/{id}.
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := pathID(r, "id")
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}

	order, err := h.orders.GetOrder(r.Context(), orderID)
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, orderToResponse(order))
}

// ListOrders handles GET /api/orders.
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListOrders(r.Context())
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}

	resp := make([]OrderResponse, len(orders))
	for i := range orders {
		resp[i] = orderToResponse(&orders[i])
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"orders": resp})
}

// CancelOrder handles POST /api/orders/{id}/cancel. Cancelling a
// completed order refunds its payment and restores its stock.
func (h *OrderHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := pathID(r, "id")
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}

	if err := h.orders.CancelOrder(r.Context(), orderID); err != nil {
		ErrorResponse(w, r, err)
		return
	}

	middleware.GetLogger(r.Context(), h.logger).Info("order cancelled", "order_id", orderID)
	respondJSON(w, http.StatusOK, map[string]string{
		"status": string(domain.OrderStatusCancelled),
	})
}

// pathID parses a positive integer path parameter.
func pathID(r *http.Request, name string) (int64, error) {
	raw := r.PathValue(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.Errorf(domain.EINVALID, "handler.path", "invalid %s", name)
	}
	return id, nil
}
