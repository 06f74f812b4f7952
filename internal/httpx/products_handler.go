package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-ecommerce-saga/internal/inventory"
)

type ProductsHandler struct {
	Store  inventory.Store
	Logger *zap.Logger
}

func (h *ProductsHandler) Register(r chi.Router) {
	r.Get("/produtos", h.list)
	r.Post("/produtos", h.create)
	r.Get("/produtos/{id}", h.get)
	r.Put("/produtos/{id}", h.update)
	r.Delete("/produtos/{id}", h.delete)
}

func (h *ProductsHandler) list(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ps, err := h.Store.List(ctx)
	if err != nil {
		h.fail(w, "list products", err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *ProductsHandler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	p, err := h.Store.Get(ctx, id)
	switch {
	case errors.Is(err, inventory.ErrProductNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case err != nil:
		h.fail(w, "get product", err)
	default:
		writeJSON(w, http.StatusOK, p)
	}
}

func (h *ProductsHandler) create(w http.ResponseWriter, r *http.Request) {
	var p inventory.Product
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := p.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	p.ID = 0
	created, err := h.Store.Create(ctx, p)
	if err != nil {
		h.fail(w, "create product", err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *ProductsHandler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var p inventory.Product
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := p.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	p.ID = id
	err := h.Store.Update(ctx, p)
	switch {
	case errors.Is(err, inventory.ErrProductNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case err != nil:
		h.fail(w, "update product", err)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *ProductsHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	err := h.Store.Delete(ctx, id)
	switch {
	case errors.Is(err, inventory.ErrProductNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case err != nil:
		h.fail(w, "delete product", err)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *ProductsHandler) fail(w http.ResponseWriter, op string, err error) {
	h.Logger.Error(op, zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}
