package httpx

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-ecommerce-saga/internal/auth"
)

const (
	salesPrefix     = "/gateway/vendas"
	inventoryPrefix = "/gateway/estoque"
)

// Gateway forwards authenticated requests to the order and inventory services unchanged,
// minus the gateway prefix. It never retries.
type Gateway struct {
	validator *auth.Validator
	orders    *httputil.ReverseProxy
	inventory *httputil.ReverseProxy
	logger    *zap.Logger
}

func NewGateway(ordersURL, inventoryURL string, v *auth.Validator, logger *zap.Logger) (*Gateway, error) {
	ou, err := url.Parse(ordersURL)
	if err != nil {
		return nil, fmt.Errorf("orders url: %w", err)
	}
	iu, err := url.Parse(inventoryURL)
	if err != nil {
		return nil, fmt.Errorf("inventory url: %w", err)
	}
	return &Gateway{
		validator: v,
		orders:    newProxy(ou, salesPrefix, logger),
		inventory: newProxy(iu, inventoryPrefix, logger),
		logger:    logger,
	}, nil
}

func (g *Gateway) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(RequireJWT(g.validator, g.logger))
		r.Handle(salesPrefix+"/pedidos", g.orders)
		r.Handle(salesPrefix+"/pedidos/{id}", g.orders)
		r.Handle(inventoryPrefix+"/produtos", g.inventory)
		r.Handle(inventoryPrefix+"/produtos/{id}", g.inventory)
	})
}

func newProxy(target *url.URL, prefix string, logger *zap.Logger) *httputil.ReverseProxy {
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.Out.URL.Path = strings.TrimRight(target.Path, "/") + strings.TrimPrefix(pr.In.URL.Path, prefix)
			pr.Out.URL.RawPath = ""
			pr.Out.Host = target.Host
			pr.SetXForwarded()
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			logger.Warn("upstream request failed", zap.String("upstream", target.Host),
				zap.String("path", r.URL.Path), zap.Error(err))
			writeError(w, http.StatusBadGateway, "upstream unavailable")
		},
	}
}
