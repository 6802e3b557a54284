// test/helpers/fake_backend.go
package helpers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/ammerola/clothify-cart/internal/core/domain"
	"github.com/ammerola/clothify-cart/internal/core/ports"
)

var _ ports.CartBackend = (*FakeBackend)(nil)

// Fake backend method names, used for call counts and failure injection.
const (
	MethodGetCart        = "GetCart"
	MethodUpdateQuantity = "UpdateQuantity"
	MethodRemoveLine     = "RemoveLine"
	MethodClearCart      = "ClearCart"
	MethodAddToCart      = "AddToCart"
	MethodGetProduct     = "GetProduct"
)

// FakeVariant is a stock-tracked color/size of a FakeProduct.
type FakeVariant struct {
	Color    string
	Size     string
	Quantity int
}

// FakeProduct is a catalog entry. Stock is ignored when Variants is set.
type FakeProduct struct {
	ID       string
	Name     string
	Price    decimal.Decimal
	Stock    *int
	Variants []FakeVariant
}

func (p FakeProduct) stockFor(color, size string) *int {
	if len(p.Variants) == 0 {
		return p.Stock
	}
	for _, v := range p.Variants {
		if strings.EqualFold(v.Color, color) && strings.EqualFold(v.Size, size) {
			q := v.Quantity
			return &q
		}
	}
	zero := 0
	return &zero
}

// FakeLine is one cart row held by the fake backend.
type FakeLine struct {
	LineID    string
	ProductID string
	Color     string
	Size      string
	Quantity  int
}

// FakeCall records one backend call.
type FakeCall struct {
	Method     string
	CustomerID string
	LineID     string
	Quantity   int
}

// FakeBackend is an in-memory CLOTHIFY backend. It implements
// ports.CartBackend directly and serves the same state over REST through
// Handler, so tests can exercise either the core or the HTTP client.
type FakeBackend struct {
	mu       sync.Mutex
	products map[string]FakeProduct
	carts    map[string][]FakeLine
	nextID   int
	calls    []FakeCall
	failNext map[string][]error
	failAll  map[string]error
}

// NewFakeBackend creates an empty fake backend
func NewFakeBackend() *FakeBackend {
	return &FakeBackend{
		products: make(map[string]FakeProduct),
		carts:    make(map[string][]FakeLine),
		nextID:   100,
		failNext: make(map[string][]error),
		failAll:  make(map[string]error),
	}
}

// AddProduct registers or replaces a catalog product.
func (f *FakeBackend) AddProduct(p FakeProduct) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.products[p.ID] = p
}

// SetVariantStock changes stock for one variant, or flat stock when color
// and size are empty.
func (f *FakeBackend) SetVariantStock(productID, color, size string, quantity int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.products[productID]
	if color == "" && size == "" {
		p.Stock = &quantity
	}
	for i, v := range p.Variants {
		if strings.EqualFold(v.Color, color) && strings.EqualFold(v.Size, size) {
			p.Variants[i].Quantity = quantity
		}
	}
	f.products[productID] = p
}

// SeedLine puts a line in a cart without any stock check and returns its id.
func (f *FakeBackend) SeedLine(customerID string, line FakeLine) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if line.LineID == "" {
		line.LineID = f.newID()
	}
	f.carts[customerID] = append(f.carts[customerID], line)
	return line.LineID
}

// Lines returns a copy of a customer's cart.
func (f *FakeBackend) Lines(customerID string) []FakeLine {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]FakeLine(nil), f.carts[customerID]...)
}

// FailNext makes the next call to method fail with err. Calls queue up.
func (f *FakeBackend) FailNext(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failNext[method] = append(f.failNext[method], err)
}

// FailAlways makes every call to method fail until cleared with a nil err.
func (f *FakeBackend) FailAlways(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.failAll, method)
		return
	}
	f.failAll[method] = err
}

// Calls returns every recorded call, optionally filtered by method.
func (f *FakeBackend) Calls(methods ...string) []FakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(methods) == 0 {
		return append([]FakeCall(nil), f.calls...)
	}
	var out []FakeCall
	for _, c := range f.calls {
		for _, m := range methods {
			if c.Method == m {
				out = append(out, c)
			}
		}
	}
	return out
}

// CallCount returns how many times method was called.
func (f *FakeBackend) CallCount(method string) int {
	return len(f.Calls(method))
}

// GetCart implements ports.CartBackend
func (f *FakeBackend) GetCart(_ context.Context, session domain.Session) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(FakeCall{Method: MethodGetCart, CustomerID: session.CustomerID}, session); err != nil {
		return nil, err
	}
	return f.cartPayload(session.CustomerID)
}

// UpdateQuantity implements ports.CartBackend
func (f *FakeBackend) UpdateQuantity(_ context.Context, session domain.Session, lineID string, quantity int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(FakeCall{Method: MethodUpdateQuantity, CustomerID: session.CustomerID, LineID: lineID, Quantity: quantity}, session); err != nil {
		return err
	}
	lines := f.carts[session.CustomerID]
	i := indexOf(lines, lineID)
	if i < 0 {
		return domain.NewError(domain.KindNotFound, "update_quantity", "Cart item not found", nil)
	}
	if quantity < 1 {
		return domain.NewError(domain.KindRejected, "update_quantity", "Quantity must be at least 1", nil)
	}
	if err := f.checkStock(lines[i].ProductID, lines[i].Color, lines[i].Size, quantity); err != nil {
		return err
	}
	lines[i].Quantity = quantity
	return nil
}

// RemoveLine implements ports.CartBackend
func (f *FakeBackend) RemoveLine(_ context.Context, session domain.Session, lineID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(FakeCall{Method: MethodRemoveLine, CustomerID: session.CustomerID, LineID: lineID}, session); err != nil {
		return err
	}
	lines := f.carts[session.CustomerID]
	i := indexOf(lines, lineID)
	if i < 0 {
		return domain.NewError(domain.KindNotFound, "remove_line", "Cart item not found", nil)
	}
	f.carts[session.CustomerID] = append(lines[:i:i], lines[i+1:]...)
	return nil
}

// ClearCart implements ports.CartBackend
func (f *FakeBackend) ClearCart(_ context.Context, session domain.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(FakeCall{Method: MethodClearCart, CustomerID: session.CustomerID}, session); err != nil {
		return err
	}
	delete(f.carts, session.CustomerID)
	return nil
}

// AddToCart implements ports.CartBackend. Adding an existing product and
// variant grows that line.
func (f *FakeBackend) AddToCart(_ context.Context, session domain.Session, item domain.AddItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(FakeCall{Method: MethodAddToCart, CustomerID: session.CustomerID, Quantity: item.Quantity}, session); err != nil {
		return err
	}
	if _, ok := f.products[item.ProductID]; !ok {
		return domain.NewError(domain.KindNotFound, "add_to_cart", "Product not found", nil)
	}
	lines := f.carts[session.CustomerID]
	for i, l := range lines {
		if l.ProductID == item.ProductID && strings.EqualFold(l.Color, item.Color) && strings.EqualFold(l.Size, item.Size) {
			if err := f.checkStock(l.ProductID, l.Color, l.Size, l.Quantity+item.Quantity); err != nil {
				return err
			}
			lines[i].Quantity += item.Quantity
			return nil
		}
	}
	if err := f.checkStock(item.ProductID, item.Color, item.Size, item.Quantity); err != nil {
		return err
	}
	f.carts[session.CustomerID] = append(lines, FakeLine{
		LineID:    f.newID(),
		ProductID: item.ProductID,
		Color:     item.Color,
		Size:      item.Size,
		Quantity:  item.Quantity,
	})
	return nil
}

// GetProduct implements ports.CartBackend
func (f *FakeBackend) GetProduct(_ context.Context, productID string) (*domain.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(FakeCall{Method: MethodGetProduct}, domain.Session{CustomerID: "-", Token: "-"}); err != nil {
		return nil, err
	}
	raw, err := f.productPayload(productID)
	if err != nil {
		return nil, err
	}
	p, err := domain.UnpackProduct(raw)
	if err != nil {
		return nil, domain.NewError(domain.KindNetwork, "get_product", "", err)
	}
	return &p, nil
}

// Ping implements ports.CartBackend
func (f *FakeBackend) Ping(context.Context) error {
	return nil
}

// begin records the call and returns any injected failure. Caller holds mu.
func (f *FakeBackend) begin(call FakeCall, session domain.Session) error {
	f.calls = append(f.calls, call)
	if session.Anonymous() {
		return domain.NewError(domain.KindUnauthenticated, strings.ToLower(call.Method), domain.ErrUnauthenticated.Message, nil)
	}
	if queued := f.failNext[call.Method]; len(queued) > 0 {
		f.failNext[call.Method] = queued[1:]
		return queued[0]
	}
	return f.failAll[call.Method]
}

func (f *FakeBackend) checkStock(productID, color, size string, quantity int) error {
	p, ok := f.products[productID]
	if !ok {
		return nil
	}
	if stock := p.stockFor(color, size); stock != nil && quantity > *stock {
		return domain.NewError(domain.KindRejected, "stock", "Insufficient stock", nil)
	}
	return nil
}

func (f *FakeBackend) newID() string {
	f.nextID++
	return strconv.Itoa(f.nextID)
}

// cartPayload renders a cart the way the CLOTHIFY backend does: an items
// envelope with numeric ids, product reference and variant stock.
func (f *FakeBackend) cartPayload(customerID string) (json.RawMessage, error) {
	items := make([]map[string]any, 0, len(f.carts[customerID]))
	for _, l := range f.carts[customerID] {
		item := map[string]any{
			"cartItemId": json.Number(l.LineID),
			"productId":  numberOrString(l.ProductID),
			"quantity":   l.Quantity,
		}
		if l.Color != "" {
			item["color"] = l.Color
		}
		if l.Size != "" {
			item["size"] = l.Size
		}
		if p, ok := f.products[l.ProductID]; ok {
			item["productName"] = p.Name
			item["price"] = p.Price
			product := map[string]any{"id": numberOrString(p.ID), "name": p.Name}
			if len(p.Variants) > 0 {
				product["variants"] = variantsPayload(p.Variants)
			} else if p.Stock != nil {
				item["stockQuantity"] = *p.Stock
			}
			item["product"] = product
		}
		items = append(items, item)
	}
	return json.Marshal(map[string]any{"customerId": customerID, "items": items})
}

func (f *FakeBackend) productPayload(productID string) (json.RawMessage, error) {
	p, ok := f.products[productID]
	if !ok {
		return nil, domain.NewError(domain.KindNotFound, "get_product", "Product not found", nil)
	}
	body := map[string]any{"id": numberOrString(p.ID), "name": p.Name, "price": p.Price}
	if len(p.Variants) > 0 {
		body["variants"] = variantsPayload(p.Variants)
	} else if p.Stock != nil {
		body["stockQuantity"] = *p.Stock
	}
	return json.Marshal(map[string]any{"product": body})
}

func variantsPayload(variants []FakeVariant) []map[string]any {
	out := make([]map[string]any, len(variants))
	for i, v := range variants {
		out[i] = map[string]any{"color": v.Color, "size": v.Size, "quantity": v.Quantity}
	}
	return out
}

func numberOrString(id string) any {
	if _, err := strconv.ParseInt(id, 10, 64); err == nil {
		return json.Number(id)
	}
	return id
}

func indexOf(lines []FakeLine, lineID string) int {
	for i, l := range lines {
		if l.LineID == lineID {
			return i
		}
	}
	return -1
}

// Handler serves the fake over the CLOTHIFY REST routes. The customer
// token is any non-empty bearer.
func (f *FakeBackend) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("HEAD /", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.HandleFunc("GET /api/cart/customer/{id}", func(w http.ResponseWriter, r *http.Request) {
		raw, err := f.GetCart(r.Context(), restSession(r))
		writeREST(w, raw, err)
	})
	mux.HandleFunc("PUT /api/cart/customer/{id}/item/{lineId}", func(w http.ResponseWriter, r *http.Request) {
		q, err := strconv.Atoi(r.URL.Query().Get("quantity"))
		if err != nil {
			writeREST(w, nil, domain.NewError(domain.KindRejected, "update_quantity", "quantity is required", nil))
			return
		}
		writeREST(w, nil, f.UpdateQuantity(r.Context(), restSession(r), r.PathValue("lineId"), q))
	})
	mux.HandleFunc("DELETE /api/cart/customer/{id}/item/{lineId}", func(w http.ResponseWriter, r *http.Request) {
		writeREST(w, nil, f.RemoveLine(r.Context(), restSession(r), r.PathValue("lineId")))
	})
	mux.HandleFunc("DELETE /api/cart/customer/{id}/clear", func(w http.ResponseWriter, r *http.Request) {
		writeREST(w, nil, f.ClearCart(r.Context(), restSession(r)))
	})
	mux.HandleFunc("POST /api/cart/customer/{id}/add", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			ProductID json.Number `json:"productId"`
			Quantity  int         `json:"quantity"`
			Color     string      `json:"color"`
			Size      string      `json:"size"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeREST(w, nil, domain.NewError(domain.KindRejected, "add_to_cart", "invalid body", err))
			return
		}
		item := domain.AddItem{ProductID: body.ProductID.String(), Quantity: body.Quantity, Color: body.Color, Size: body.Size}
		writeREST(w, nil, f.AddToCart(r.Context(), restSession(r), item))
	})
	mux.HandleFunc("GET /api/products/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		raw, err := f.productPayload(r.PathValue("id"))
		f.mu.Unlock()
		writeREST(w, raw, err)
	})
	return mux
}

func restSession(r *http.Request) domain.Session {
	token, _ := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	return domain.Session{CustomerID: r.PathValue("id"), Token: token}
}

func writeREST(w http.ResponseWriter, raw json.RawMessage, err error) {
	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		status := http.StatusInternalServerError
		switch domain.KindOf(err) {
		case domain.KindUnauthenticated:
			status = http.StatusUnauthorized
		case domain.KindNotFound:
			status = http.StatusNotFound
		case domain.KindRejected, domain.KindValidation:
			status = http.StatusBadRequest
		}
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": domain.UserMessage(err, err.Error())})
		return
	}
	if raw == nil {
		raw = json.RawMessage(`{"success":true}`)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}

// String summarizes the fake's carts for test failure output.
func (f *FakeBackend) String() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var b strings.Builder
	for id, lines := range f.carts {
		fmt.Fprintf(&b, "%s: %+v\n", id, lines)
	}
	return b.String()
}
