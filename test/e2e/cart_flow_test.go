//go:build e2e

package e2e

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/ammerola/clothify-cart/internal/adapters/backend"
	"github.com/ammerola/clothify-cart/internal/adapters/eventbus"
	"github.com/ammerola/clothify-cart/internal/adapters/memory"
	"github.com/ammerola/clothify-cart/internal/adapters/notify"
	"github.com/ammerola/clothify-cart/internal/core/domain"
	"github.com/ammerola/clothify-cart/internal/core/services"
	"github.com/ammerola/clothify-cart/internal/handlers"
	"github.com/ammerola/clothify-cart/internal/handlers/middleware"
	"github.com/ammerola/clothify-cart/internal/pkg/auth"
	"github.com/ammerola/clothify-cart/internal/pkg/metrics"
	"github.com/ammerola/clothify-cart/test/helpers"
)

const jwtSecret = "e2e-secret-with-at-least-32-characters"

// CartFlowSuite drives the BFF over HTTP against a fake CLOTHIFY backend.
type CartFlowSuite struct {
	suite.Suite
	fake     *helpers.FakeBackend
	upstream *httptest.Server
	api      *httptest.Server
	bus      *eventbus.Bus
	token    string
}

func TestCartFlowSuite(t *testing.T) {
	suite.Run(t, new(CartFlowSuite))
}

func (s *CartFlowSuite) SetupTest() {
	log := helpers.TestLogger()
	reg := prometheus.NewRegistry()
	cartMetrics := metrics.NewCartMetrics(reg)

	s.fake = helpers.NewFakeBackend()
	s.fake.AddProduct(helpers.FakeProduct{
		ID:    "42",
		Name:  "Heavyweight Tee",
		Price: decimal.RequireFromString("29.99"),
		Variants: []helpers.FakeVariant{
			{Color: "BLACK", Size: "M", Quantity: 2},
			{Color: "BLACK", Size: "L", Quantity: 9},
		},
	})
	s.fake.AddProduct(helpers.FakeProduct{
		ID:    "7",
		Name:  "Canvas Tote",
		Price: decimal.NewFromInt(15),
		Stock: domain.IntPtr(3),
	})
	s.upstream = httptest.NewServer(s.fake.Handler())

	client, err := backend.NewClient(backend.Config{BaseURL: s.upstream.URL, Timeout: 5 * time.Second}, log,
		backend.WithMetrics(cartMetrics))
	s.Require().NoError(err)

	s.bus = eventbus.New(log)
	notices := notify.NewRecorder(20)
	svc := services.NewCartService(services.CartServiceDeps{
		Backend:  client,
		Ledgers:  memory.NewLedgerStore(),
		Events:   s.bus,
		Notifier: notices,
		Metrics:  cartMetrics,
		Logger:   log,
	}, services.CartServiceOptions{RemoveDelay: 10 * time.Millisecond, CorrectionConcurrency: 4})

	mux := http.NewServeMux()
	handlers.NewCartHandler(svc, notices, 50*time.Millisecond, log).Register(mux, "/api/v1")

	s.api = httptest.NewServer(middleware.Chain(mux,
		middleware.Recovery(log),
		middleware.RequestID(middleware.DefaultRequestIDHeader),
		middleware.Metrics(metrics.NewHTTPMetrics(reg)),
		middleware.Session(auth.NewResolver(jwtSecret)),
	))

	s.token, err = auth.MintToken(jwtSecret, "7", time.Hour, time.Now())
	s.Require().NoError(err)
}

func (s *CartFlowSuite) TearDownTest() {
	s.bus.Close()
	s.api.Close()
	s.upstream.Close()
}

func (s *CartFlowSuite) do(method, path, body string) (int, handlers.CartResponse) {
	req, err := http.NewRequest(method, s.api.URL+path, strings.NewReader(body))
	s.Require().NoError(err)
	req.Header.Set("Authorization", "Bearer "+s.token)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	var out handlers.CartResponse
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func (s *CartFlowSuite) TestLoadClampsOverStockLine() {
	lineID := s.fake.SeedLine("7", helpers.FakeLine{ProductID: "42", Color: "BLACK", Size: "M", Quantity: 5})

	status, resp := s.do(http.MethodGet, "/api/v1/cart", "")
	s.Equal(http.StatusOK, status)

	line, ok := resp.Cart.Line(lineID)
	s.Require().True(ok)
	s.Equal(2, line.Quantity)
	s.Require().Len(resp.Notices, 1)
	s.Equal("1 item in your cart was adjusted to available stock", resp.Notices[0].Message)
	s.Equal([]helpers.FakeCall{
		{Method: helpers.MethodUpdateQuantity, CustomerID: "7", LineID: lineID, Quantity: 2},
	}, s.fake.Calls(helpers.MethodUpdateQuantity))
}

func (s *CartFlowSuite) TestShoppingFlow() {
	status, resp := s.do(http.MethodPost, "/api/v1/cart/items", `{"productId": 7, "quantity": 2}`)
	s.Require().Equal(http.StatusOK, status)
	s.Require().Len(resp.Cart.Lines, 1)
	lineID := resp.Cart.Lines[0].LineID
	s.Equal(2, resp.Cart.Lines[0].Quantity)

	status, resp = s.do(http.MethodPost, "/api/v1/cart/items/"+lineID+"/increase", "")
	s.Equal(http.StatusOK, status)
	s.Equal(3, resp.Cart.ItemCount)

	// Stock is 3; the next increase is refused locally.
	status, resp = s.do(http.MethodPost, "/api/v1/cart/items/"+lineID+"/increase", "")
	s.Equal(http.StatusConflict, status)
	s.Equal(domain.CodeMaxStock, resp.Code)
	s.Equal(3, resp.Cart.ItemCount)

	status, resp = s.do(http.MethodPost, "/api/v1/cart/items", `{"productId": "7", "quantity": 1}`)
	s.Equal(http.StatusConflict, status)
	s.Equal("Product is out of stock", resp.Error)

	status, resp = s.do(http.MethodPost, "/api/v1/cart/items/"+lineID+"/decrease", "")
	s.Equal(http.StatusOK, status)
	s.Equal(2, resp.Cart.ItemCount)

	qty := s.quantity("/api/v1/cart/quantity?productId=7")
	s.Equal(2, qty)

	status, resp = s.do(http.MethodDelete, "/api/v1/cart/items/"+lineID, "")
	s.Equal(http.StatusOK, status)
	s.True(resp.Cart.Empty())
	s.Empty(s.fake.Lines("7"))
}

func (s *CartFlowSuite) TestVariantRulesAndClear() {
	status, resp := s.do(http.MethodPost, "/api/v1/cart/items", `{"productId": 42, "quantity": 1}`)
	s.Equal(http.StatusUnprocessableEntity, status)
	s.Equal(domain.CodeVariantRequired, resp.Code)

	status, resp = s.do(http.MethodPost, "/api/v1/cart/items", `{"productId": 42, "quantity": 5, "color": "black", "size": "m"}`)
	s.Equal(http.StatusOK, status)
	s.Equal(2, resp.Cart.ItemCount, "clamped to variant stock")

	s.Equal(2, s.quantity("/api/v1/cart/quantity?productId=42&color=Black&size=M"))

	status, resp = s.do(http.MethodDelete, "/api/v1/cart", "")
	s.Equal(http.StatusOK, status)
	s.True(resp.Cart.Empty())
	s.Zero(s.quantity("/api/v1/cart/quantity?productId=42"))
}

func (s *CartFlowSuite) TestAnonymousIsRedirected() {
	resp, err := http.Get(s.api.URL + "/api/v1/cart/items/1/increase")
	s.Require().NoError(err)
	resp.Body.Close()
	s.Equal(http.StatusMethodNotAllowed, resp.StatusCode)

	req, _ := http.NewRequest(http.MethodPost, s.api.URL+"/api/v1/cart/items/1/increase", nil)
	resp, err = http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	var body struct {
		Error    string `json:"error"`
		Redirect string `json:"redirect"`
	}
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&body))
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
	s.Equal(handlers.LoginRedirect, body.Redirect)
	s.Empty(s.fake.Calls())
}

func (s *CartFlowSuite) TestEventsStream() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.api.URL+"/api/v1/cart/events", nil)
	s.Require().NoError(err)
	req.Header.Set("Authorization", "Bearer "+s.token)
	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Equal("text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	s.Require().NoError(err)
	s.Equal(": connected\n", line)

	status, _ := s.do(http.MethodPost, "/api/v1/cart/items", `{"productId": 7}`)
	s.Require().Equal(http.StatusOK, status)

	found := false
	for !found {
		line, err = reader.ReadString('\n')
		s.Require().NoError(err)
		found = line == "event: cart-changed\n"
	}
}

func (s *CartFlowSuite) quantity(path string) int {
	req, err := http.NewRequest(http.MethodGet, s.api.URL+path, nil)
	s.Require().NoError(err)
	req.Header.Set("Authorization", "Bearer "+s.token)
	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	var out handlers.QuantityResponse
	require.NoError(s.T(), json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(s.T(), http.StatusOK, resp.StatusCode)
	return out.Quantity
}
