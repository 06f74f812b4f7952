package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ariefcatur/go-ecommerce-saga/internal/auth"
	"github.com/ariefcatur/go-ecommerce-saga/internal/orders"
)

type fakePlacer struct {
	got  orders.Order
	cred string
	resp orders.Order
	err  error
}

func (f *fakePlacer) PlaceOrder(ctx context.Context, o orders.Order) (orders.Order, error) {
	f.got = o
	f.cred, _ = auth.Credential(ctx)
	if f.err != nil {
		return orders.Order{}, f.err
	}
	return f.resp, nil
}

func newOrdersRouter(t *testing.T, p OrderPlacer, store OrderReader) http.Handler {
	r := NewRouter(zaptest.NewLogger(t), nil)
	(&OrdersHandler{Placer: p, Orders: store, Logger: zaptest.NewLogger(t)}).Register(r)
	return r
}

func do(h http.Handler, method, path, body string, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

const bearer = "Bearer token-123"

func TestCreateOrderCreated(t *testing.T) {
	p := &fakePlacer{resp: orders.Order{ID: 4, Customer: "ana", Items: []orders.OrderLine{{ProductID: 1, Quantity: 5}}}}
	h := newOrdersRouter(t, p, orders.NewMemoryStore())

	rr := do(h, http.MethodPost, "/pedidos", `{"customer":"ana","items":[{"productId":1,"quantity":5}]}`, "Authorization", bearer)
	require.Equal(t, http.StatusCreated, rr.Code)

	var got orders.Order
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, int64(4), got.ID)
	assert.Equal(t, []orders.OrderLine{{ProductID: 1, Quantity: 5}}, p.got.Items)
	assert.Equal(t, "ana", p.got.Customer)
	assert.Equal(t, bearer, p.cred)
}

func TestCreateOrderRejected(t *testing.T) {
	rej := &orders.RejectedError{Kind: orders.ErrInsufficientStock, Line: 1, ProductID: 2, ProductName: "Teclado Mecânico", Requested: 20, Available: 15}
	h := newOrdersRouter(t, &fakePlacer{err: rej}, orders.NewMemoryStore())

	rr := do(h, http.MethodPost, "/pedidos", `{"items":[{"productId":2,"quantity":20}]}`, "Authorization", bearer)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Contains(t, body["error"], "Teclado Mecânico")
}

func TestCreateOrderErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		body   string
		auth   string
		status int
	}{
		{"no bearer", nil, `{}`, "", http.StatusUnauthorized},
		{"basic auth", nil, `{}`, "Basic Zm9vOmJhcg==", http.StatusUnauthorized},
		{"bad json", nil, `{`, bearer, http.StatusBadRequest},
		{"invalid order", orders.ErrInvalidOrder, `{"items":[]}`, bearer, http.StatusBadRequest},
		{"store down", errors.New("persist order: conn refused"), `{"items":[{"productId":1,"quantity":1}]}`, bearer, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newOrdersRouter(t, &fakePlacer{err: tc.err}, orders.NewMemoryStore())
			var rr *httptest.ResponseRecorder
			if tc.auth == "" {
				rr = do(h, http.MethodPost, "/pedidos", tc.body)
			} else {
				rr = do(h, http.MethodPost, "/pedidos", tc.body, "Authorization", tc.auth)
			}
			assert.Equal(t, tc.status, rr.Code)
		})
	}
}

func TestReadOrders(t *testing.T) {
	store := orders.NewMemoryStore()
	o := orders.Order{Customer: "bia", Items: []orders.OrderLine{{ProductID: 1, Quantity: 2}}}
	require.NoError(t, store.Create(context.Background(), &o, nil))
	h := newOrdersRouter(t, &fakePlacer{}, store)

	rr := do(h, http.MethodGet, "/pedidos", "", "Authorization", bearer)
	require.Equal(t, http.StatusOK, rr.Code)
	var list []orders.Order
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "bia", list[0].Customer)

	rr = do(h, http.MethodGet, "/pedidos/1", "", "Authorization", bearer)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = do(h, http.MethodGet, "/pedidos/42", "", "Authorization", bearer)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(h, http.MethodGet, "/pedidos/abc", "", "Authorization", bearer)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHealthz(t *testing.T) {
	rr := do(NewRouter(zaptest.NewLogger(t), nil), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", rr.Body.String())
}
