// Package cart holds the per-session shopping cart: an insertion-ordered list of
// product lines with derived totals and change notification.
package cart

import (
	"errors"
	"sync"

	"github.com/shopspring/decimal"

	"storefront/internal/domain"
)

// ErrInvalidQuantity is returned when an add is attempted with a non-positive quantity.
var ErrInvalidQuantity = errors.New("quantity must be positive")

// Line is one product entry in the cart. Quantity is always >= 1.
type Line struct {
	ProductID      string          `json:"product_id"`
	Name           string          `json:"name"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	Quantity       int             `json:"quantity"`
	ImageRef       string          `json:"image_ref,omitempty"`
	Category       string          `json:"category,omitempty"`
	AvailableStock int             `json:"available_stock"`
}

// Subtotal is UnitPrice x Quantity, unrounded.
func (l Line) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// LineFromProduct snapshots the product fields a cart line displays.
func LineFromProduct(p domain.Product, quantity int) Line {
	return Line{
		ProductID:      p.ID,
		Name:           p.Name,
		UnitPrice:      p.Price,
		Quantity:       quantity,
		ImageRef:       p.ImageURL,
		Category:       p.Category,
		AvailableStock: p.Stock,
	}
}

// Snapshot is an immutable view of the cart handed to observers.
type Snapshot struct {
	Lines     []Line          `json:"items"`
	ItemCount int             `json:"item_count"`
	Total     decimal.Decimal `json:"total"`
}

// Store is the cart state container. All methods are safe for concurrent use;
// observers run after the mutation is applied, outside the lock.
type Store struct {
	mu      sync.Mutex
	lines   []Line
	subs    map[int]func(Snapshot)
	nextSub int
}

func NewStore() *Store {
	return &Store{subs: make(map[int]func(Snapshot))}
}

// AddItem increments the line for p by quantity, or appends a new line.
// Stock is not checked here.
func (s *Store) AddItem(p domain.Product, quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	s.mu.Lock()
	if i := s.indexOf(p.ID); i >= 0 {
		s.lines[i].Quantity += quantity
	} else {
		s.lines = append(s.lines, LineFromProduct(p, quantity))
	}
	s.unlockAndNotify()
	return nil
}

// SetQuantity replaces the quantity for productID. A quantity <= 0 removes the
// line; otherwise it is clamped to [1, AvailableStock]. Unknown ids are ignored.
func (s *Store) SetQuantity(productID string, quantity int) {
	s.mu.Lock()
	i := s.indexOf(productID)
	if i < 0 {
		s.mu.Unlock()
		return
	}
	if quantity <= 0 {
		s.lines = append(s.lines[:i], s.lines[i+1:]...)
		s.unlockAndNotify()
		return
	}
	s.lines[i].Quantity = clamp(quantity, s.lines[i].AvailableStock)
	s.unlockAndNotify()
}

// RemoveItem drops the line for productID if present.
func (s *Store) RemoveItem(productID string) {
	s.mu.Lock()
	i := s.indexOf(productID)
	if i < 0 {
		s.mu.Unlock()
		return
	}
	s.lines = append(s.lines[:i], s.lines[i+1:]...)
	s.unlockAndNotify()
}

// Clear empties the cart.
func (s *Store) Clear() {
	s.mu.Lock()
	s.lines = nil
	s.unlockAndNotify()
}

// Deduct subtracts the quantities of ordered from the matching lines, dropping
// lines that reach zero. Quantities added after ordered was read survive.
func (s *Store) Deduct(ordered []Line) {
	s.mu.Lock()
	changed := false
	for _, o := range ordered {
		i := s.indexOf(o.ProductID)
		if i < 0 || o.Quantity <= 0 {
			continue
		}
		changed = true
		if s.lines[i].Quantity <= o.Quantity {
			s.lines = append(s.lines[:i], s.lines[i+1:]...)
			continue
		}
		s.lines[i].Quantity -= o.Quantity
	}
	if !changed {
		s.mu.Unlock()
		return
	}
	s.unlockAndNotify()
}

// Total returns the sum of line subtotals rounded to two fractional digits.
func (s *Store) Total() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return total(s.lines)
}

// ItemCount returns the sum of quantities, not the number of lines.
func (s *Store) ItemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return itemCount(s.lines)
}

// Lines returns a copy of the lines in insertion order.
func (s *Store) Lines() []Line {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneLines(s.lines)
}

// Len returns the number of distinct lines.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lines)
}

func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Restore replaces the lines with a previously persisted set without notifying
// observers. Invalid lines (empty id, quantity < 1) and duplicates are dropped.
func (s *Store) Restore(lines []Line) {
	restored := make([]Line, 0, len(lines))
	seen := make(map[string]struct{}, len(lines))
	for _, l := range lines {
		if l.ProductID == "" || l.Quantity < 1 {
			continue
		}
		if _, dup := seen[l.ProductID]; dup {
			continue
		}
		seen[l.ProductID] = struct{}{}
		restored = append(restored, l)
	}
	s.mu.Lock()
	s.lines = restored
	s.mu.Unlock()
}

// Subscribe registers fn to be called with a snapshot after every mutation.
// The returned func cancels the subscription.
func (s *Store) Subscribe(fn func(Snapshot)) (cancel func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *Store) indexOf(productID string) int {
	for i := range s.lines {
		if s.lines[i].ProductID == productID {
			return i
		}
	}
	return -1
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{
		Lines:     cloneLines(s.lines),
		ItemCount: itemCount(s.lines),
		Total:     total(s.lines),
	}
}

// unlockAndNotify must be called with mu held.
func (s *Store) unlockAndNotify() {
	snap := s.snapshotLocked()
	subs := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()
	for _, fn := range subs {
		fn(snap)
	}
}

func clamp(quantity, available int) int {
	if quantity > available {
		quantity = available
	}
	if quantity < 1 {
		quantity = 1
	}
	return quantity
}

func total(lines []Line) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.Subtotal())
	}
	return sum.Round(2)
}

func itemCount(lines []Line) int {
	n := 0
	for _, l := range lines {
		n += l.Quantity
	}
	return n
}

func cloneLines(lines []Line) []Line {
	if len(lines) == 0 {
		return []Line{}
	}
	out := make([]Line, len(lines))
	copy(out, lines)
	return out
}
