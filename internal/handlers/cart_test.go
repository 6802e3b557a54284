package handlers_test

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/ammerola/clothify-cart/internal/adapters/notify"
	"github.com/ammerola/clothify-cart/internal/core/domain"
	"github.com/ammerola/clothify-cart/internal/handlers"
	"github.com/ammerola/clothify-cart/internal/pkg/auth"
	"github.com/ammerola/clothify-cart/test/mocks"
)

var customer = domain.Session{CustomerID: "7", Token: "tok"}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type cartFixture struct {
	service  *mocks.MockCartService
	recorder *notify.Recorder
	server   http.Handler
}

func newCartFixture(t *testing.T, session domain.Session) *cartFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	f := &cartFixture{
		service:  mocks.NewMockCartService(ctrl),
		recorder: notify.NewRecorder(10),
	}
	h := handlers.NewCartHandler(f.service, f.recorder, 20*time.Millisecond, quietLogger())
	mux := http.NewServeMux()
	h.Register(mux, "/api/v1")
	f.server = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mux.ServeHTTP(w, r.WithContext(auth.WithSession(r.Context(), session)))
	})
	return f
}

func (f *cartFixture) do(method, target, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	w := httptest.NewRecorder()
	f.server.ServeHTTP(w, req)
	return w
}

func sampleView() *domain.CartView {
	return domain.NewCartView("7", []domain.CartLine{
		{LineID: "10", ProductID: "42", Variant: domain.NewVariant("black", "m"), Quantity: 2, AvailableStock: domain.IntPtr(2)},
	}, nil)
}

type cartBody struct {
	Cart    *domain.CartView `json:"cart"`
	Notices []domain.Notice  `json:"notices"`
	Error   string           `json:"error"`
	Code    string           `json:"code"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) cartBody {
	t.Helper()
	var body cartBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func TestCartHandler_GetCart(t *testing.T) {
	f := newCartFixture(t, customer)
	f.service.EXPECT().Load(gomock.Any(), customer).DoAndReturn(
		func(ctx context.Context, s domain.Session) (*domain.CartView, error) {
			f.recorder.Notify(ctx, s.CustomerID, domain.StockAdjustedNotice(1))
			return sampleView(), nil
		})

	w := f.do(http.MethodGet, "/api/v1/cart", "")

	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	require.Len(t, body.Cart.Lines, 1)
	assert.Equal(t, 2, body.Cart.ItemCount)
	require.Len(t, body.Notices, 1)
	assert.Equal(t, "1 item in your cart was adjusted to available stock", body.Notices[0].Message)
	assert.Empty(t, f.recorder.Peek("7"), "notices are drained into the response")
}

func TestCartHandler_ErrorStatus(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		view       *domain.CartView
		wantStatus int
		wantError  string
	}{
		{
			name:       "rejected_keeps_cart",
			err:        fmt.Errorf("failed to increase: %w", domain.WithCode(domain.ErrMaxStockReached, "increase", "")),
			view:       sampleView(),
			wantStatus: http.StatusConflict,
			wantError:  "Maximum available quantity reached",
		},
		{
			name:       "not_found",
			err:        domain.WithCode(domain.ErrLineNotFound, "increase", ""),
			view:       sampleView(),
			wantStatus: http.StatusNotFound,
			wantError:  "Cart item not found",
		},
		{
			name:       "network",
			err:        domain.NewError(domain.KindNetwork, "increase", "", io.ErrUnexpectedEOF),
			view:       sampleView(),
			wantStatus: http.StatusBadGateway,
		},
		{
			name:       "unexpected_without_view",
			err:        io.ErrClosedPipe,
			wantStatus: http.StatusInternalServerError,
			wantError:  "Internal Server Error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newCartFixture(t, customer)
			f.service.EXPECT().Increase(gomock.Any(), customer, "10").Return(tt.view, tt.err)

			w := f.do(http.MethodPost, "/api/v1/cart/items/10/increase", "")

			assert.Equal(t, tt.wantStatus, w.Code)
			body := decode(t, w)
			if tt.view != nil {
				assert.NotNil(t, body.Cart)
			}
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, body.Error)
			}
		})
	}
}

func TestCartHandler_Unauthenticated(t *testing.T) {
	f := newCartFixture(t, domain.Session{})
	f.service.EXPECT().Decrease(gomock.Any(), domain.Session{}, "10").
		Return(nil, domain.WithCode(domain.ErrUnauthenticated, "decrease", ""))

	w := f.do(http.MethodPost, "/api/v1/cart/items/10/decrease", "")
	require.Equal(t, http.StatusUnauthorized, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "/login", body["redirect"])
	assert.Equal(t, "Please log in to manage your cart", body["error"])

	// Add and events short-circuit without touching the service.
	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodPost, "/api/v1/cart/items", `{"productId":1}`).Code)
	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodGet, "/api/v1/cart/events", "").Code)
}

func TestCartHandler_AddItem(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		want       *domain.AddItem
		wantStatus int
	}{
		{
			name:       "numeric_product_id",
			body:       `{"productId": 42, "quantity": 5, "color": "Black", "size": "M"}`,
			want:       &domain.AddItem{ProductID: "42", Quantity: 5, Color: "Black", Size: "M"},
			wantStatus: http.StatusOK,
		},
		{
			name:       "quantity_defaults_to_one",
			body:       `{"productId": "42"}`,
			want:       &domain.AddItem{ProductID: "42", Quantity: 1},
			wantStatus: http.StatusOK,
		},
		{
			name:       "zero_quantity",
			body:       `{"productId": "42", "quantity": 0}`,
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "missing_product",
			body:       `{"quantity": 2}`,
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "malformed_json",
			body:       `{"productId":`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newCartFixture(t, customer)
			if tt.want != nil {
				f.service.EXPECT().SetQuantity(gomock.Any(), customer, *tt.want).Return(sampleView(), nil)
			}

			w := f.do(http.MethodPost, "/api/v1/cart/items", tt.body)
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
		})
	}
}

func TestCartHandler_RemoveAndClear(t *testing.T) {
	f := newCartFixture(t, customer)
	empty := domain.NewCartView("7", nil, nil)
	f.service.EXPECT().Remove(gomock.Any(), customer, "10").Return(empty, nil)
	f.service.EXPECT().Clear(gomock.Any(), customer).Return(empty, nil)

	assert.Equal(t, http.StatusOK, f.do(http.MethodDelete, "/api/v1/cart/items/10", "").Code)
	w := f.do(http.MethodDelete, "/api/v1/cart", "")
	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.True(t, body.Cart.Empty())
	assert.NotNil(t, body.Notices)
}

func TestCartHandler_Quantity(t *testing.T) {
	f := newCartFixture(t, customer)
	gomock.InOrder(
		f.service.EXPECT().Prime(gomock.Any(), "7").Return(nil),
		f.service.EXPECT().QuantityInCart("7", "42", "black", "m").Return(2),
	)

	w := f.do(http.MethodGet, "/api/v1/cart/quantity?productId=42&color=black&size=m", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp handlers.QuantityResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, handlers.QuantityResponse{ProductID: "42", Color: "BLACK", Size: "M", Quantity: 2}, resp)

	assert.Equal(t, http.StatusUnprocessableEntity, f.do(http.MethodGet, "/api/v1/cart/quantity", "").Code)
}

func TestCartHandler_QuantityAnonymous(t *testing.T) {
	f := newCartFixture(t, domain.Session{})

	w := f.do(http.MethodGet, "/api/v1/cart/quantity?productId=42", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"quantity":0`)
}

func TestCartHandler_Events(t *testing.T) {
	f := newCartFixture(t, customer)
	events := make(chan struct{}, 1)
	var unsubscribed atomic.Bool
	f.service.EXPECT().Subscribe("7").Return((<-chan struct{})(events), func() { unsubscribed.Store(true) })

	srv := httptest.NewServer(f.server)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/cart/events", nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	events <- struct{}{}
	reader := bufio.NewReader(resp.Body)
	var sawEvent, sawKeepAlive bool
	deadline := time.After(2 * time.Second)
	for !(sawEvent && sawKeepAlive) {
		lineCh := make(chan string, 1)
		go func() {
			line, _ := reader.ReadString('\n')
			lineCh <- line
		}()
		select {
		case line := <-lineCh:
			switch strings.TrimSpace(line) {
			case "event: cart-changed":
				sawEvent = true
			case ": keepalive":
				sawKeepAlive = true
			}
		case <-deadline:
			t.Fatalf("stream incomplete: event=%v keepalive=%v", sawEvent, sawKeepAlive)
		}
	}

	cancel()
	assert.Eventually(t, unsubscribed.Load, time.Second, 10*time.Millisecond)
}
