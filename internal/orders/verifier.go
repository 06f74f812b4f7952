package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/ariefcatur/go-ecommerce-saga/internal/auth"
)

// Stock is what the inventory reports for one product at the time of the call.
type Stock struct {
	ProductID int64
	Name      string
	Quantity  int
}

// StockVerifier reads the current stock of a product. Implementations return
// ErrUnknownProduct or ErrServiceUnavailable (possibly wrapped).
type StockVerifier interface {
	Verify(ctx context.Context, productID int64) (Stock, error)
}

// HTTPVerifier queries the inventory service's GET /produtos/{id}, forwarding the caller's
// Authorization header verbatim.
type HTTPVerifier struct {
	baseURL string
	client  *http.Client
	tracer  trace.Tracer
}

func NewHTTPVerifier(baseURL string, timeout time.Duration) *HTTPVerifier {
	return &HTTPVerifier{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 100,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		tracer: otel.Tracer("orders/verifier"),
	}
}

type productBody struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

func (v *HTTPVerifier) Verify(ctx context.Context, productID int64) (Stock, error) {
	ctx, span := v.tracer.Start(ctx, "inventory.GetProduct", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	url := v.baseURL + "/produtos/" + strconv.FormatInt(productID, 10)
	span.SetAttributes(attribute.Int64("product.id", productID), attribute.String("http.url", url))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Stock{}, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	if cred, ok := auth.Credential(ctx); ok {
		req.Header.Set("Authorization", cred)
	}
	req.Header.Set("Accept", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := v.client.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Stock{}, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return Stock{}, fmt.Errorf("%w: %d", ErrUnknownProduct, productID)
	default:
		_, _ = io.Copy(io.Discard, resp.Body)
		err := fmt.Errorf("%w: inventory returned %s", ErrServiceUnavailable, resp.Status)
		span.SetStatus(codes.Error, err.Error())
		return Stock{}, err
	}

	var body productBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Stock{}, fmt.Errorf("%w: decode product: %v", ErrServiceUnavailable, err)
	}
	return Stock{ProductID: productID, Name: body.Name, Quantity: body.Quantity}, nil
}
