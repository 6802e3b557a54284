// internal/adapters/backend/client.go
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/ammerola/clothify-cart/internal/core/domain"
	"github.com/ammerola/clothify-cart/internal/core/ports"
	"github.com/ammerola/clothify-cart/internal/pkg/logger"
	"github.com/ammerola/clothify-cart/internal/pkg/metrics"
)

const (
	cartPath    = "/api/cart"
	productPath = "/api/products"

	errorBodyReadLimit int64 = 4096
	responseReadLimit  int64 = 4 << 20
)

var errBaseURLRequired = errors.New("backend base url is required")

// Config holds backend connection settings.
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	RateLimit float64
	Burst     int
	UserAgent string
}

// Client talks to the CLOTHIFY REST API on behalf of a customer session.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	limiter    *rate.Limiter
	metrics    *metrics.CartMetrics
	logger     *slog.Logger
}

var _ ports.CartBackend = (*Client)(nil)

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithMetrics records request latency per route.
func WithMetrics(m *metrics.CartMetrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// NewClient builds a backend client. A zero RateLimit disables client side
// throttling.
func NewClient(cfg Config, log *slog.Logger, opts ...Option) (*Client, error) {
	base := strings.TrimSuffix(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errBaseURLRequired
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("invalid backend base url: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	c := &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    base,
		userAgent:  cfg.UserAgent,
		limiter:    limiter,
		logger:     log.With(slog.String("component", "backend_client")),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// GetCart returns the raw cart payload for the session's customer.
func (c *Client) GetCart(ctx context.Context, session domain.Session) (json.RawMessage, error) {
	body, err := c.do(ctx, "get_cart", http.MethodGet, customerPath(session, ""), session.Token, nil)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(body), nil
}

// UpdateQuantity sets the absolute quantity of a cart line.
func (c *Client) UpdateQuantity(ctx context.Context, session domain.Session, lineID string, quantity int) error {
	path := customerPath(session, "/item/"+url.PathEscape(lineID)) + "?quantity=" + strconv.Itoa(quantity)
	_, err := c.do(ctx, "update_quantity", http.MethodPut, path, session.Token, nil)
	return err
}

// RemoveLine deletes a cart line.
func (c *Client) RemoveLine(ctx context.Context, session domain.Session, lineID string) error {
	_, err := c.do(ctx, "remove_line", http.MethodDelete, customerPath(session, "/item/"+url.PathEscape(lineID)), session.Token, nil)
	return err
}

// ClearCart empties the customer's cart.
func (c *Client) ClearCart(ctx context.Context, session domain.Session) error {
	_, err := c.do(ctx, "clear_cart", http.MethodDelete, customerPath(session, "/clear"), session.Token, nil)
	return err
}

type addRequest struct {
	ProductID any    `json:"productId"`
	Quantity  int    `json:"quantity"`
	Color     string `json:"color,omitempty"`
	Size      string `json:"size,omitempty"`
}

// AddToCart adds units of a product variant.
func (c *Client) AddToCart(ctx context.Context, session domain.Session, item domain.AddItem) error {
	req := addRequest{
		ProductID: productIDValue(item.ProductID),
		Quantity:  item.Quantity,
		Color:     item.Color,
		Size:      item.Size,
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to encode add request: %w", err)
	}
	_, err = c.do(ctx, "add_to_cart", http.MethodPost, customerPath(session, "/add"), session.Token, payload)
	return err
}

// GetProduct fetches a product detail with its variants.
func (c *Client) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	body, err := c.do(ctx, "get_product", http.MethodGet, productPath+"/"+url.PathEscape(productID), "", nil)
	if err != nil {
		return nil, err
	}
	product, err := domain.UnpackProduct(body)
	if err != nil {
		return nil, domain.NewError(domain.KindNetwork, "get product", "", err)
	}
	return &product, nil
}

// Ping checks that the backend answers at all. Any HTTP response counts.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.baseURL+"/", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("backend unreachable: %w", err)
	}
	resp.Body.Close()
	return nil
}

func (c *Client) do(ctx context.Context, route, method, path, token string, body []byte) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, domain.NewError(domain.KindNetwork, route, "", err)
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, domain.NewError(domain.KindNetwork, route, "", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	requestID := logger.RequestIDFromContext(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	req.Header.Set("X-Request-ID", requestID)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ObserveBackend(method, route, 0, time.Since(start))
		c.logger.WarnContext(ctx, "backend request failed",
			slog.String("route", route),
			slog.String("error", err.Error()))
		return nil, domain.NewError(domain.KindNetwork, route, "", err)
	}
	defer resp.Body.Close()
	c.metrics.ObserveBackend(method, route, resp.StatusCode, time.Since(start))

	if resp.StatusCode >= http.StatusBadRequest {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyReadLimit))
		apiErr := statusError(route, resp.StatusCode, snippet)
		c.logger.DebugContext(ctx, "backend returned error status",
			slog.String("route", route),
			slog.Int("status", resp.StatusCode),
			slog.String("kind", string(apiErr.Kind)))
		return nil, apiErr
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, responseReadLimit))
	if err != nil {
		return nil, domain.NewError(domain.KindNetwork, route, "", fmt.Errorf("failed to read response: %w", err))
	}
	return data, nil
}

// statusError maps a backend status to the cart error taxonomy. Rejections
// carry the backend's own message so it can be shown verbatim.
func statusError(route string, status int, body []byte) *domain.Error {
	var e *domain.Error
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		e = domain.NewError(domain.KindUnauthenticated, route, domain.ErrUnauthenticated.Message, nil)
	case status == http.StatusNotFound:
		e = domain.NewError(domain.KindNotFound, route, backendMessage(body), nil)
	case status >= http.StatusInternalServerError:
		e = domain.NewError(domain.KindNetwork, route, "", fmt.Errorf("backend status %d", status))
	default:
		e = domain.NewError(domain.KindRejected, route, backendMessage(body), nil)
	}
	e.Status = status
	return e
}

func backendMessage(body []byte) string {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	for _, key := range []string{"message", "error", "detail"} {
		if s, ok := payload[key].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func customerPath(session domain.Session, suffix string) string {
	return cartPath + "/customer/" + url.PathEscape(session.CustomerID) + suffix
}

func productIDValue(id string) any {
	if n, err := strconv.ParseInt(id, 10, 64); err == nil {
		return n
	}
	return id
}
