// internal/core/services/cart.go
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/ammerola/clothify-cart/internal/core/domain"
	"github.com/ammerola/clothify-cart/internal/core/ports"
	"github.com/ammerola/clothify-cart/internal/pkg/metrics"
)

// DefaultRemoveDelay is how long a removed line stays in the "removing" state.
const DefaultRemoveDelay = 300 * time.Millisecond

// Fallback messages used when the backend supplies none.
const (
	increaseFailedMessage = "Maximum stock reached for this item"
	decreaseFailedMessage = "Failed to update quantity. Please try again."
	removeFailedMessage   = "Failed to remove item. Please try again."
	addFailedMessage      = "Failed to add item to cart"
	clearFailedMessage    = "Failed to clear cart. Please try again."
)

// CartServiceDeps are the collaborators of CartService. Events, Notifier
// and Corrections are optional.
type CartServiceDeps struct {
	Backend     ports.CartBackend
	Ledgers     ports.LedgerStore
	Events      ports.CartEvents
	Notifier    ports.Notifier
	Corrections ports.CorrectionQueue
	Metrics     *metrics.CartMetrics
	Logger      *slog.Logger
}

// CartServiceOptions tunes CartService.
type CartServiceOptions struct {
	RemoveDelay           time.Duration
	CorrectionConcurrency int
}

// CartService is the per-customer cart state container. It applies
// mutations optimistically, confirms them against the backend and re-syncs
// through the fetcher and reconciler.
type CartService struct {
	fetcher     *CartFetcher
	reconciler  *StockReconciler
	backend     ports.CartBackend
	ledgers     ports.LedgerStore
	events      ports.CartEvents
	notifier    ports.Notifier
	metrics     *metrics.CartMetrics
	logger      *slog.Logger
	removeDelay time.Duration

	mu    sync.Mutex
	carts map[string]*cartState
}

// Statically assert that *CartService implements the CartService interface.
var _ ports.CartService = (*CartService)(nil)

type cartState struct {
	lines    []domain.CartLine
	removing map[string]bool
	ledger   *domain.Ledger
	inFlight map[string]int
}

func newCartState(ledger *domain.Ledger) *cartState {
	if ledger == nil {
		ledger = domain.NewLedger()
	}
	return &cartState{
		removing: make(map[string]bool),
		ledger:   ledger,
		inFlight: make(map[string]int),
	}
}

func (st *cartState) index(lineID string) int {
	for i, l := range st.lines {
		if l.LineID == lineID {
			return i
		}
	}
	return -1
}

func (st *cartState) quantity(key string) int {
	total := 0
	for _, l := range st.lines {
		if l.Key() == key {
			total += l.Quantity
		}
	}
	return total
}

func (st *cartState) productQuantity(productID string) int {
	total := 0
	for _, l := range st.lines {
		if l.ProductID == productID {
			total += l.Quantity
		}
	}
	return total
}

// NewCartService creates a new cart service
func NewCartService(deps CartServiceDeps, opts CartServiceOptions) *CartService {
	if opts.RemoveDelay < 0 {
		opts.RemoveDelay = 0
	}
	events := deps.Events
	if events == nil {
		events = noopEvents{}
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = noopNotifier{}
	}

	return &CartService{
		fetcher:     NewCartFetcher(deps.Backend, deps.Metrics, deps.Logger),
		reconciler:  NewStockReconciler(deps.Backend, deps.Corrections, opts.CorrectionConcurrency, deps.Metrics, deps.Logger),
		backend:     deps.Backend,
		ledgers:     deps.Ledgers,
		events:      events,
		notifier:    notifier,
		metrics:     deps.Metrics,
		logger:      deps.Logger.With(slog.String("service", "cart")),
		removeDelay: opts.RemoveDelay,
		carts:       make(map[string]*cartState),
	}
}

// Load fetches and reconciles the customer's cart and replaces local state.
func (s *CartService) Load(ctx context.Context, session domain.Session) (*domain.CartView, error) {
	if session.Anonymous() {
		return domain.NewCartView(session.CustomerID, nil, nil), nil
	}
	return s.refresh(ctx, session)
}

// Increase adds one unit to a line. At known stock it only notifies.
func (s *CartService) Increase(ctx context.Context, session domain.Session, lineID string) (*domain.CartView, error) {
	const op = "increase"
	if err := requireSession(session, op); err != nil {
		return nil, err
	}

	st := s.state(ctx, session.CustomerID)
	if err := s.ensureLine(ctx, session, st, lineID); err != nil {
		return s.View(session.CustomerID), fmt.Errorf("failed to %s: %w", op, err)
	}
	s.mu.Lock()
	idx := st.index(lineID)
	if idx < 0 {
		s.mu.Unlock()
		return s.View(session.CustomerID), domain.WithCode(domain.ErrLineNotFound, op, "")
	}
	if st.removing[lineID] {
		s.mu.Unlock()
		return s.View(session.CustomerID), nil
	}
	line := st.lines[idx]
	if line.AtStockLimit() {
		s.mu.Unlock()
		s.notify(ctx, session.CustomerID, domain.NoticeWarning, domain.NoticeMaxReached, domain.ErrMaxStockReached.Message)
		return s.View(session.CustomerID), domain.WithCode(domain.ErrMaxStockReached, op, "")
	}
	return s.updateQuantity(ctx, session, st, op, line, line.Quantity+1, increaseFailedMessage)
}

// Decrease removes one unit from a line. Lines at quantity 1 must be removed instead.
func (s *CartService) Decrease(ctx context.Context, session domain.Session, lineID string) (*domain.CartView, error) {
	const op = "decrease"
	if err := requireSession(session, op); err != nil {
		return nil, err
	}

	st := s.state(ctx, session.CustomerID)
	if err := s.ensureLine(ctx, session, st, lineID); err != nil {
		return s.View(session.CustomerID), fmt.Errorf("failed to %s: %w", op, err)
	}
	s.mu.Lock()
	idx := st.index(lineID)
	if idx < 0 {
		s.mu.Unlock()
		return s.View(session.CustomerID), domain.WithCode(domain.ErrLineNotFound, op, "")
	}
	if st.removing[lineID] {
		s.mu.Unlock()
		return s.View(session.CustomerID), nil
	}
	line := st.lines[idx]
	if line.Quantity <= 1 {
		s.mu.Unlock()
		s.notify(ctx, session.CustomerID, domain.NoticeInfo, domain.NoticeMinQuantity, domain.ErrMinQuantity.Message)
		return s.View(session.CustomerID), domain.WithCode(domain.ErrMinQuantity, op, "")
	}
	return s.updateQuantity(ctx, session, st, op, line, line.Quantity-1, decreaseFailedMessage)
}

// updateQuantity must be called with s.mu held; it releases it.
func (s *CartService) updateQuantity(ctx context.Context, session domain.Session, st *cartState, op string, line domain.CartLine, next int, fallback string) (*domain.CartView, error) {
	customerID := session.CustomerID
	key := line.Key()
	prevQuantity := line.Quantity
	prevLedger := st.ledger.Get(key)

	st.lines[st.index(line.LineID)].Quantity = next
	st.ledger.Set(key, next)
	st.ledger.SetProduct(key, line.ProductID)
	st.inFlight[key]++
	ledger := st.ledger.Clone()
	s.mu.Unlock()
	s.persist(ctx, customerID, ledger)

	err := s.backend.UpdateQuantity(ctx, session, line.LineID, next)
	s.metrics.Mutation(op, err)

	s.mu.Lock()
	st.inFlight[key]--
	if err != nil {
		// Roll back only what this call changed.
		if i := st.index(line.LineID); i >= 0 && st.lines[i].Quantity == next {
			st.lines[i].Quantity = prevQuantity
		}
		if st.ledger.Get(key) == next {
			st.ledger.Set(key, prevLedger)
		}
		ledger = st.ledger.Clone()
	}
	s.mu.Unlock()

	if err != nil {
		s.persist(ctx, customerID, ledger)
		return s.failed(ctx, session, op, err, fallback)
	}

	s.logger.InfoContext(ctx, "updated cart line quantity",
		slog.String("customer_id", customerID),
		slog.String("line_id", line.LineID),
		slog.Int("quantity", next))
	return s.settle(ctx, session)
}

// Remove deletes a line. The line is flagged as removing until the backend
// confirms and the display delay elapses; on failure the flag is cleared.
func (s *CartService) Remove(ctx context.Context, session domain.Session, lineID string) (*domain.CartView, error) {
	const op = "remove"
	if err := requireSession(session, op); err != nil {
		return nil, err
	}

	customerID := session.CustomerID
	st := s.state(ctx, customerID)
	if err := s.ensureLine(ctx, session, st, lineID); err != nil {
		return s.View(customerID), fmt.Errorf("failed to %s: %w", op, err)
	}
	s.mu.Lock()
	idx := st.index(lineID)
	if idx < 0 {
		s.mu.Unlock()
		return s.View(customerID), domain.WithCode(domain.ErrLineNotFound, op, "")
	}
	if st.removing[lineID] {
		s.mu.Unlock()
		return s.View(customerID), nil
	}
	st.removing[lineID] = true
	line := st.lines[idx]
	s.mu.Unlock()

	err := s.backend.RemoveLine(ctx, session, lineID)
	s.metrics.Mutation(op, err)
	if err != nil {
		s.mu.Lock()
		delete(st.removing, lineID)
		s.mu.Unlock()
		return s.failed(ctx, session, op, err, removeFailedMessage)
	}

	sleep(ctx, s.removeDelay)

	s.mu.Lock()
	if i := st.index(lineID); i >= 0 {
		st.lines = append(st.lines[:i], st.lines[i+1:]...)
	}
	delete(st.removing, lineID)
	st.ledger.Add(line.Key(), -line.Quantity)
	ledger := st.ledger.Clone()
	s.mu.Unlock()
	s.persist(ctx, customerID, ledger)

	s.notify(ctx, customerID, domain.NoticeSuccess, domain.NoticeRemoved, "Item removed from cart")
	return s.settle(ctx, session)
}

// SetQuantity adds item to the cart, clamped to the stock headroom left after
// what the customer already holds. The ledger is raised before the call and
// lowered again if the backend rejects it.
func (s *CartService) SetQuantity(ctx context.Context, session domain.Session, item domain.AddItem) (*domain.CartView, error) {
	const op = "set_quantity"
	if err := requireSession(session, op); err != nil {
		return nil, err
	}
	customerID := session.CustomerID
	if item.ProductID == "" || item.Quantity < 1 {
		return s.View(customerID), domain.WithCode(domain.ErrInvalidQuantity, op, "")
	}
	item.Color = domain.NormalizeVariantValue(item.Color)
	item.Size = domain.NormalizeVariantValue(item.Size)

	var (
		stock *int
		name  string
	)
	product, err := s.backend.GetProduct(ctx, item.ProductID)
	switch {
	case err == nil:
		name = product.Name
		if product.HasVariants() && (item.Color == "" || item.Size == "") {
			s.notify(ctx, customerID, domain.NoticeWarning, domain.NoticeVariantRequired, domain.ErrVariantRequired.Message)
			return s.View(customerID), domain.WithCode(domain.ErrVariantRequired, op, "")
		}
		stock = product.StockFor(item.Color, item.Size)
	case errors.Is(err, domain.ErrNotFound):
		return s.View(customerID), domain.NewError(domain.KindNotFound, op, "Product not found", err)
	default:
		s.logger.WarnContext(ctx, "product lookup failed, adding without stock check",
			slog.String("product_id", item.ProductID),
			slog.String("error", err.Error()))
	}

	key := item.Key()
	st := s.state(ctx, customerID)
	s.mu.Lock()
	inCart := max(st.ledger.Get(key), st.quantity(key))
	quantity := item.Quantity
	clamped := false
	if stock != nil {
		headroom := max(0, *stock-inCart)
		if headroom == 0 {
			s.mu.Unlock()
			msg := "Product is out of stock"
			if item.Color != "" || item.Size != "" {
				msg = "This variant is out of stock or all in cart"
			}
			s.notify(ctx, customerID, domain.NoticeWarning, domain.NoticeOutOfStock, msg)
			return s.View(customerID), domain.WithCode(domain.ErrOutOfStock, op, msg)
		}
		if quantity > headroom {
			quantity, clamped = headroom, true
		}
	}
	st.ledger.Add(key, quantity)
	st.ledger.SetProduct(key, item.ProductID)
	st.inFlight[key]++
	ledger := st.ledger.Clone()
	s.mu.Unlock()
	s.persist(ctx, customerID, ledger)

	if clamped {
		s.notifier.Notify(ctx, customerID, domain.ClampedNotice(quantity))
	}

	item.Quantity = quantity
	err = s.backend.AddToCart(ctx, session, item)
	s.metrics.Mutation(op, err)

	s.mu.Lock()
	st.inFlight[key]--
	if err != nil {
		st.ledger.Add(key, -quantity)
		ledger = st.ledger.Clone()
	}
	s.mu.Unlock()

	if err != nil {
		s.persist(ctx, customerID, ledger)
		return s.failed(ctx, session, op, err, addFailedMessage)
	}

	s.logger.InfoContext(ctx, "added item to cart",
		slog.String("customer_id", customerID),
		slog.String("key", key),
		slog.Int("quantity", quantity),
		slog.Bool("clamped", clamped))
	s.notifier.Notify(ctx, customerID, domain.AddedNotice(name, item))
	return s.settle(ctx, session)
}

// Clear empties the cart. Local state is only touched once the backend confirms.
func (s *CartService) Clear(ctx context.Context, session domain.Session) (*domain.CartView, error) {
	const op = "clear"
	if err := requireSession(session, op); err != nil {
		return nil, err
	}
	customerID := session.CustomerID
	st := s.state(ctx, customerID)

	err := s.backend.ClearCart(ctx, session)
	s.metrics.Mutation(op, err)
	if err != nil {
		return s.failed(ctx, session, op, err, clearFailedMessage)
	}

	s.mu.Lock()
	st.lines = nil
	st.removing = make(map[string]bool)
	st.ledger = domain.NewLedger()
	s.mu.Unlock()

	if err := s.ledgers.Delete(ctx, customerID); err != nil {
		s.logger.WarnContext(ctx, "failed to delete ledger",
			slog.String("customer_id", customerID),
			slog.String("error", err.Error()))
	}

	s.logger.InfoContext(ctx, "cleared cart", slog.String("customer_id", customerID))
	s.notify(ctx, customerID, domain.NoticeSuccess, domain.NoticeCleared, "Cart cleared")
	s.events.Publish(ctx, customerID)
	return s.View(customerID), nil
}

// QuantityInCart reports units in cart for a product, or for one variant
// when color or size is given. It reads local state only.
func (s *CartService) QuantityInCart(customerID, productID, color, size string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.carts[customerID]
	if !ok {
		return 0
	}
	if domain.NormalizeVariantValue(color) == "" && domain.NormalizeVariantValue(size) == "" {
		return max(st.ledger.ProductTotal(productID), st.productQuantity(productID))
	}
	key := domain.LedgerKey(productID, color, size)
	return max(st.ledger.Get(key), st.quantity(key))
}

// View returns a snapshot of the customer's cart.
func (s *CartService) View(customerID string) *domain.CartView {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.carts[customerID]
	if !ok {
		return domain.NewCartView(customerID, nil, nil)
	}
	removing := make([]string, 0, len(st.removing))
	for id := range st.removing {
		removing = append(removing, id)
	}
	sort.Strings(removing)
	return domain.NewCartView(customerID, st.lines, removing)
}

// Ledger returns a copy of the customer's in-memory ledger.
func (s *CartService) Ledger(customerID string) *domain.Ledger {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.carts[customerID]; ok {
		return st.ledger.Clone()
	}
	return domain.NewLedger()
}

// Subscribe registers for cart-changed signals for one customer.
func (s *CartService) Subscribe(customerID string) (<-chan struct{}, func()) {
	return s.events.Subscribe(customerID)
}

// Prime loads the persisted ledger so QuantityInCart can answer before the
// first fetch.
func (s *CartService) Prime(ctx context.Context, customerID string) error {
	if customerID == "" {
		return nil
	}
	s.state(ctx, customerID)
	return nil
}

// ensureLine re-syncs once when lineID is not in local state. The cart may
// have been loaded by another instance, or before this one restarted.
func (s *CartService) ensureLine(ctx context.Context, session domain.Session, st *cartState, lineID string) error {
	s.mu.Lock()
	known := st.index(lineID) >= 0
	s.mu.Unlock()
	if known {
		return nil
	}
	s.logger.DebugContext(ctx, "line not in local state, re-syncing",
		slog.String("customer_id", session.CustomerID),
		slog.String("line_id", lineID))
	_, err := s.refresh(ctx, session)
	return err
}

func (s *CartService) refresh(ctx context.Context, session domain.Session) (*domain.CartView, error) {
	customerID := session.CustomerID
	st := s.state(ctx, customerID)

	lines, err := s.fetcher.Fetch(ctx, session)
	if err != nil {
		if !errors.Is(err, domain.ErrUnauthenticated) {
			s.notify(ctx, customerID, domain.NoticeError, domain.NoticeFetchFailed, domain.UserMessage(err, fetchFailedMessage))
		}
		return s.View(customerID), err
	}

	result := s.reconciler.Reconcile(ctx, session, lines)
	if result.Adjusted > 0 {
		s.notifier.Notify(ctx, customerID, domain.StockAdjustedNotice(result.Adjusted))
	}

	s.mu.Lock()
	st.lines = result.Lines
	for id := range st.removing {
		if st.index(id) < 0 {
			delete(st.removing, id)
		}
	}
	st.ledger.Reconcile(result.Lines, st.inFlight)
	ledger := st.ledger.Clone()
	s.mu.Unlock()
	s.persist(ctx, customerID, ledger)

	if result.Adjusted > 0 {
		s.events.Publish(ctx, customerID)
	}
	return s.View(customerID), nil
}

// settle re-syncs after a confirmed mutation and broadcasts the change. A
// failed re-sync keeps the optimistic state; refresh has already notified.
func (s *CartService) settle(ctx context.Context, session domain.Session) (*domain.CartView, error) {
	view, err := s.refresh(ctx, session)
	if err != nil {
		s.logger.WarnContext(ctx, "re-sync after mutation failed",
			slog.String("customer_id", session.CustomerID),
			slog.String("error", err.Error()))
	}
	s.events.Publish(ctx, session.CustomerID)
	return view, nil
}

func (s *CartService) failed(ctx context.Context, session domain.Session, op string, err error, fallback string) (*domain.CartView, error) {
	customerID := session.CustomerID
	s.logger.WarnContext(ctx, "cart mutation failed",
		slog.String("customer_id", customerID),
		slog.String("op", op),
		slog.String("error", err.Error()))
	if !errors.Is(err, domain.ErrUnauthenticated) {
		s.notify(ctx, customerID, domain.NoticeError, domain.NoticeMutationFailed, domain.UserMessage(err, fallback))
	}
	s.events.Publish(ctx, customerID)
	return s.View(customerID), fmt.Errorf("failed to %s: %w", op, err)
}

func (s *CartService) state(ctx context.Context, customerID string) *cartState {
	s.mu.Lock()
	st, ok := s.carts[customerID]
	s.mu.Unlock()
	if ok {
		return st
	}

	ledger, err := s.ledgers.Load(ctx, customerID)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to load ledger, starting empty",
			slog.String("customer_id", customerID),
			slog.String("error", err.Error()))
		ledger = nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.carts[customerID]; ok {
		return st
	}
	st = newCartState(ledger)
	s.carts[customerID] = st
	return st
}

func (s *CartService) persist(ctx context.Context, customerID string, ledger *domain.Ledger) {
	if err := s.ledgers.Save(ctx, customerID, ledger); err != nil {
		s.logger.WarnContext(ctx, "failed to persist ledger",
			slog.String("customer_id", customerID),
			slog.String("error", err.Error()))
	}
}

func (s *CartService) notify(ctx context.Context, customerID string, level domain.NoticeLevel, code, message string) {
	s.notifier.Notify(ctx, customerID, domain.NewNotice(level, code, message))
}

func requireSession(session domain.Session, op string) error {
	if session.Anonymous() {
		return domain.WithCode(domain.ErrUnauthenticated, op, "")
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

type noopEvents struct{}

func (noopEvents) Publish(context.Context, string) {}

func (noopEvents) Subscribe(string) (<-chan struct{}, func()) {
	ch := make(chan struct{})
	return ch, func() {}
}

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, string, domain.Notice) {}
