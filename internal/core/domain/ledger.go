// internal/core/domain/ledger.go
package domain

// Ledger tracks optimistic quantities per product/variant key, plus the
// backend line id last seen for each key. It is advisory; the backend cart
// is authoritative.
//
// Products maps each key to the product it belongs to. Product ids are
// opaque and may contain the key separator, so keys are never split.
type Ledger struct {
	Quantities map[string]int    `json:"quantities"`
	LineIDs    map[string]string `json:"line_ids"`
	Products   map[string]string `json:"products"`
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		Quantities: make(map[string]int),
		LineIDs:    make(map[string]string),
		Products:   make(map[string]string),
	}
}

// Get returns the optimistic quantity for key.
func (l *Ledger) Get(key string) int {
	if l == nil {
		return 0
	}
	return l.Quantities[key]
}

// LineID returns the backend line id recorded for key.
func (l *Ledger) LineID(key string) (string, bool) {
	if l == nil {
		return "", false
	}
	id, ok := l.LineIDs[key]
	return id, ok
}

// Set records quantity for key. Non-positive quantities delete the entry.
func (l *Ledger) Set(key string, quantity int) {
	l.ensure()
	if quantity <= 0 {
		delete(l.Quantities, key)
		if _, ok := l.LineIDs[key]; !ok {
			delete(l.Products, key)
		}
		return
	}
	l.Quantities[key] = quantity
}

// Add adjusts the quantity for key by delta and returns the new value.
func (l *Ledger) Add(key string, delta int) int {
	next := l.Get(key) + delta
	l.Set(key, next)
	return max(next, 0)
}

// SetLineID records the backend line id for key.
func (l *Ledger) SetLineID(key, lineID string) {
	l.ensure()
	if lineID == "" {
		delete(l.LineIDs, key)
		return
	}
	l.LineIDs[key] = lineID
}

// SetProduct records which product key belongs to.
func (l *Ledger) SetProduct(key, productID string) {
	l.ensure()
	if productID == "" {
		delete(l.Products, key)
		return
	}
	l.Products[key] = productID
}

// ProductOf returns the product recorded for key. Keys without a record
// are only known to belong to the product of the same id.
func (l *Ledger) ProductOf(key string) string {
	if l != nil {
		if id, ok := l.Products[key]; ok {
			return id
		}
	}
	return key
}

// ProductTotal sums quantities across every variant of productID.
func (l *Ledger) ProductTotal(productID string) int {
	if l == nil {
		return 0
	}
	total := 0
	for key, q := range l.Quantities {
		if l.ProductOf(key) == productID {
			total += q
		}
	}
	return total
}

// Reconcile replaces the ledger with server quantities. For keys with a write
// still in flight the larger of the local and server value is kept, so the
// ledger never drops below what the customer just did.
func (l *Ledger) Reconcile(lines []CartLine, inFlight map[string]int) {
	server := make(map[string]int, len(lines))
	lineIDs := make(map[string]string, len(lines))
	products := make(map[string]string, len(lines))
	for _, line := range lines {
		key := line.Key()
		server[key] += line.Quantity
		products[key] = line.ProductID
		if line.LineID != "" {
			lineIDs[key] = line.LineID
		}
	}

	next := make(map[string]int, len(server))
	for key, q := range server {
		next[key] = q
	}
	for key, pending := range inFlight {
		if pending <= 0 {
			continue
		}
		if local := l.Get(key); local > next[key] {
			next[key] = local
			if _, ok := products[key]; !ok {
				if id, ok := l.Products[key]; ok {
					products[key] = id
				}
			}
		}
	}

	l.Quantities = next
	l.LineIDs = lineIDs
	l.Products = products
}

// Clone returns a deep copy.
func (l *Ledger) Clone() *Ledger {
	c := NewLedger()
	if l == nil {
		return c
	}
	for k, v := range l.Quantities {
		c.Quantities[k] = v
	}
	for k, v := range l.LineIDs {
		c.LineIDs[k] = v
	}
	for k, v := range l.Products {
		c.Products[k] = v
	}
	return c
}

// Empty reports whether the ledger holds no entries.
func (l *Ledger) Empty() bool {
	return l == nil || (len(l.Quantities) == 0 && len(l.LineIDs) == 0)
}

func (l *Ledger) ensure() {
	if l.Quantities == nil {
		l.Quantities = make(map[string]int)
	}
	if l.LineIDs == nil {
		l.LineIDs = make(map[string]string)
	}
	if l.Products == nil {
		l.Products = make(map[string]string)
	}
}
