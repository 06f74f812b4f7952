package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-ecommerce-saga/internal/orders"
)

type OrderPlacer interface {
	PlaceOrder(ctx context.Context, o orders.Order) (orders.Order, error)
}

type OrderReader interface {
	Get(ctx context.Context, id int64) (orders.Order, error)
	List(ctx context.Context) ([]orders.Order, error)
}

type OrdersHandler struct {
	Placer OrderPlacer
	Orders OrderReader
	Logger *zap.Logger
}

type CreateOrderReq struct {
	Customer string             `json:"customer"`
	Items    []orders.OrderLine `json:"items"`
}

// Register mounts the order routes. Every route needs a bearer credential, which is
// forwarded to the inventory on placement.
func (h *OrdersHandler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(RequireBearer)
		r.Post("/pedidos", h.createOrder)
		r.Get("/pedidos", h.listOrders)
		r.Get("/pedidos/{id}", h.getOrder)
	})
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	o, err := h.Placer.PlaceOrder(r.Context(), orders.Order{Customer: req.Customer, Items: req.Items})
	var rej *orders.RejectedError
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, o)
	case errors.As(err, &rej), errors.Is(err, orders.ErrInvalidOrder):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.Logger.Error("place order", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not record order")
	}
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	list, err := h.Orders.List(ctx)
	if err != nil {
		h.Logger.Error("list orders", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not list orders")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Orders.Get(ctx, id)
	switch {
	case errors.Is(err, orders.ErrOrderNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case err != nil:
		h.Logger.Error("get order", zap.Int64("order_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not load order")
	default:
		writeJSON(w, http.StatusOK, o)
	}
}
