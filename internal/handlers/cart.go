// internal/handlers/cart.go
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ammerola/clothify-cart/internal/core/domain"
	"github.com/ammerola/clothify-cart/internal/core/ports"
	"github.com/ammerola/clothify-cart/internal/pkg/auth"
)

// DefaultKeepAlive is the comment-frame interval on the events stream.
const DefaultKeepAlive = 25 * time.Second

// NoticeSource yields and clears pending notices for a customer.
type NoticeSource interface {
	Drain(customerID string) []domain.Notice
}

// CartHandler serves the storefront cart API.
type CartHandler struct {
	service   ports.CartService
	notices   NoticeSource
	validate  *validator.Validate
	keepAlive time.Duration
	logger    *slog.Logger
}

// NewCartHandler creates a cart handler. notices may be nil.
func NewCartHandler(service ports.CartService, notices NoticeSource, keepAlive time.Duration, logger *slog.Logger) *CartHandler {
	if keepAlive <= 0 {
		keepAlive = DefaultKeepAlive
	}
	return &CartHandler{
		service:   service,
		notices:   notices,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		keepAlive: keepAlive,
		logger:    logger.With(slog.String("handler", "cart")),
	}
}

// Register mounts the cart routes under prefix.
func (h *CartHandler) Register(mux *http.ServeMux, prefix string) {
	mux.HandleFunc("GET "+prefix+"/cart", h.GetCart)
	mux.HandleFunc("DELETE "+prefix+"/cart", h.ClearCart)
	mux.HandleFunc("POST "+prefix+"/cart/items", h.AddItem)
	mux.HandleFunc("POST "+prefix+"/cart/items/{lineId}/increase", h.IncreaseItem)
	mux.HandleFunc("POST "+prefix+"/cart/items/{lineId}/decrease", h.DecreaseItem)
	mux.HandleFunc("DELETE "+prefix+"/cart/items/{lineId}", h.RemoveItem)
	mux.HandleFunc("GET "+prefix+"/cart/quantity", h.Quantity)
	mux.HandleFunc("GET "+prefix+"/cart/events", h.Events)
}

// CartResponse is the body of every successful cart call.
type CartResponse struct {
	Cart    *domain.CartView `json:"cart"`
	Notices []domain.Notice  `json:"notices"`
	Error   string           `json:"error,omitempty"`
	Code    string           `json:"code,omitempty"`
}

// AddItemRequest represents the request body for adding to the cart
type AddItemRequest struct {
	ProductID string `json:"productId" validate:"required,max=64"`
	Quantity  int    `json:"quantity" validate:"gte=1,lte=99"`
	Color     string `json:"color,omitempty" validate:"max=32"`
	Size      string `json:"size,omitempty" validate:"max=16"`
}

// UnmarshalJSON accepts productId as a string or a number. A missing
// quantity means one unit.
func (r *AddItemRequest) UnmarshalJSON(b []byte) error {
	type alias AddItemRequest
	var raw struct {
		alias
		ProductID json.RawMessage `json:"productId"`
		Quantity  *int            `json:"quantity"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*r = AddItemRequest(raw.alias)
	r.Quantity = 1
	if raw.Quantity != nil {
		r.Quantity = *raw.Quantity
	}
	if len(raw.ProductID) == 0 || string(raw.ProductID) == "null" {
		r.ProductID = ""
		return nil
	}
	var id auth.CustomerID
	if err := id.UnmarshalJSON(raw.ProductID); err != nil {
		return fmt.Errorf("productId: %w", err)
	}
	r.ProductID = string(id)
	return nil
}

// ToDomain converts the request to a domain add-to-cart item
func (r AddItemRequest) ToDomain() domain.AddItem {
	return domain.AddItem{
		ProductID: strings.TrimSpace(r.ProductID),
		Quantity:  r.Quantity,
		Color:     r.Color,
		Size:      r.Size,
	}
}

// QuantityResponse answers "how many of this product are in my cart".
type QuantityResponse struct {
	ProductID string `json:"productId"`
	Color     string `json:"color,omitempty"`
	Size      string `json:"size,omitempty"`
	Quantity  int    `json:"quantity"`
}

// GetCart handles GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	session := auth.SessionFromContext(r.Context())
	view, err := h.service.Load(r.Context(), session)
	h.respondCart(w, r, session, view, err)
}

// AddItem handles POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	session := auth.SessionFromContext(ctx)
	if session.Anonymous() {
		h.respondError(w, r, domain.ErrUnauthenticated)
		return
	}

	var req AddItemRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&req); err != nil {
		h.respondError(w, r, fmt.Errorf("%w: invalid request body", errBadRequest))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.respondError(w, r, validationError(err))
		return
	}

	view, err := h.service.SetQuantity(ctx, session, req.ToDomain())
	h.respondCart(w, r, session, view, err)
}

// IncreaseItem handles POST /api/v1/cart/items/{lineId}/increase
func (h *CartHandler) IncreaseItem(w http.ResponseWriter, r *http.Request) {
	session := auth.SessionFromContext(r.Context())
	view, err := h.service.Increase(r.Context(), session, r.PathValue("lineId"))
	h.respondCart(w, r, session, view, err)
}

// DecreaseItem handles POST /api/v1/cart/items/{lineId}/decrease
func (h *CartHandler) DecreaseItem(w http.ResponseWriter, r *http.Request) {
	session := auth.SessionFromContext(r.Context())
	view, err := h.service.Decrease(r.Context(), session, r.PathValue("lineId"))
	h.respondCart(w, r, session, view, err)
}

// RemoveItem handles DELETE /api/v1/cart/items/{lineId}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	session := auth.SessionFromContext(r.Context())
	view, err := h.service.Remove(r.Context(), session, r.PathValue("lineId"))
	h.respondCart(w, r, session, view, err)
}

// ClearCart handles DELETE /api/v1/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	session := auth.SessionFromContext(r.Context())
	view, err := h.service.Clear(r.Context(), session)
	h.respondCart(w, r, session, view, err)
}

type quantityQuery struct {
	ProductID string `validate:"required,max=64"`
	Color     string `validate:"max=32"`
	Size      string `validate:"max=16"`
}

// Quantity handles GET /api/v1/cart/quantity. It reads local state only.
func (h *CartHandler) Quantity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	query := quantityQuery{
		ProductID: strings.TrimSpace(q.Get("productId")),
		Color:     q.Get("color"),
		Size:      q.Get("size"),
	}
	if err := h.validate.Struct(query); err != nil {
		h.respondError(w, r, validationError(err))
		return
	}

	resp := QuantityResponse{
		ProductID: query.ProductID,
		Color:     domain.NormalizeVariantValue(query.Color),
		Size:      domain.NormalizeVariantValue(query.Size),
	}
	session := auth.SessionFromContext(ctx)
	if session.CustomerID != "" {
		if err := h.service.Prime(ctx, session.CustomerID); err != nil {
			h.logger.WarnContext(ctx, "failed to prime ledger",
				slog.String("customer_id", session.CustomerID),
				slog.String("error", err.Error()))
		}
		resp.Quantity = h.service.QuantityInCart(session.CustomerID, query.ProductID, query.Color, query.Size)
	}
	respondJSON(w, h.logger, http.StatusOK, resp)
}

// Events handles GET /api/v1/cart/events as a server-sent event stream.
// Each change is a bare cart-changed signal; clients re-read the cart.
func (h *CartHandler) Events(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	session := auth.SessionFromContext(ctx)
	if session.Anonymous() {
		h.respondError(w, r, domain.ErrUnauthenticated)
		return
	}

	rc := http.NewResponseController(w)
	// Streams outlive the server write timeout.
	if err := rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		h.logger.DebugContext(ctx, "could not clear write deadline", slog.String("error", err.Error()))
	}

	events, unsubscribe := h.service.Subscribe(session.CustomerID)
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	if _, err := io.WriteString(w, ": connected\n\n"); err != nil {
		return
	}
	if err := rc.Flush(); err != nil {
		h.logger.WarnContext(ctx, "event stream not supported", slog.String("error", err.Error()))
		return
	}

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	for {
		var frame string
		select {
		case <-ctx.Done():
			return
		case _, ok := <-events:
			if !ok {
				return
			}
			frame = "event: cart-changed\ndata:\n\n"
		case <-ticker.C:
			frame = ": keepalive\n\n"
		}
		if _, err := io.WriteString(w, frame); err != nil {
			return
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

func (h *CartHandler) respondCart(w http.ResponseWriter, r *http.Request, session domain.Session, view *domain.CartView, err error) {
	if err != nil && (view == nil || domain.KindOf(err) == domain.KindUnauthenticated) {
		h.respondError(w, r, err)
		return
	}

	resp := CartResponse{Cart: view, Notices: h.drain(session.CustomerID)}
	status := http.StatusOK
	if err != nil {
		status = statusFor(err)
		body := errorBody(err)
		resp.Error, resp.Code = body.Error, body.Code
		h.logRequestError(r, status, err)
	}
	respondJSON(w, h.logger, status, resp)
}

func (h *CartHandler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	h.logRequestError(r, status, err)
	respondJSON(w, h.logger, status, errorBody(err))
}

func (h *CartHandler) logRequestError(r *http.Request, status int, err error) {
	level := slog.LevelInfo
	if status >= 500 {
		level = slog.LevelError
	}
	h.logger.Log(r.Context(), level, "cart request failed",
		slog.String("path", r.URL.Path),
		slog.Int("status", status),
		slog.String("error", err.Error()))
}

func (h *CartHandler) drain(customerID string) []domain.Notice {
	out := []domain.Notice{}
	if h.notices == nil || customerID == "" {
		return out
	}
	return append(out, h.notices.Drain(customerID)...)
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return domain.NewError(domain.KindValidation, "validate", "Invalid request", err)
	}
	fe := verrs[0]
	return domain.NewError(domain.KindValidation, "validate",
		fmt.Sprintf("%s failed %s validation", fieldName(fe.Field()), fe.Tag()), err)
}

func fieldName(f string) string {
	if f == "" {
		return f
	}
	return strings.ToLower(f[:1]) + f[1:]
}
