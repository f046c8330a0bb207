// Package cart is the shopping cart of one device: line items with merged
// quantities, derived totals, and synchronous local persistence.
package cart

import (
	"encoding/json"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"storefront-service/internal/domain"
	"storefront-service/internal/localstore"
)

// StorageKey is the local store key of a cart. Hosted carts append ":<device id>".
const StorageKey = "cart-storage"

const stateVersion = 1

type persistedState struct {
	Items   []domain.CartLineItem `json:"items"`
	Version int                   `json:"version"`
}

// Store owns the line items of one cart. All methods are safe for concurrent
// use; mutations apply in the order they acquire the lock.
type Store struct {
	mu    sync.Mutex
	items []domain.CartLineItem
	kv    localstore.Store
	key   string
	log   logrus.FieldLogger
}

// New rehydrates the cart persisted under key. Unreadable or malformed state
// is logged and replaced by an empty cart.
func New(kv localstore.Store, key string, log logrus.FieldLogger) *Store {
	s := &Store{
		kv:    kv,
		key:   key,
		log:   log.WithField("cart", key),
		items: []domain.CartLineItem{},
	}
	s.rehydrate()
	return s
}

func (s *Store) rehydrate() {
	raw, ok, err := s.kv.Get(s.key)
	if err != nil {
		s.log.WithError(err).Warn("could not read persisted cart, starting empty")
		return
	}
	if !ok {
		return
	}

	var st persistedState
	if err := json.Unmarshal(raw, &st); err != nil {
		s.log.WithError(err).Warn("discarding malformed persisted cart")
		return
	}

	seen := make(map[string]int, len(st.Items))
	for _, it := range st.Items {
		if it.ProductID == "" || it.Quantity < 1 || it.UnitPrice.IsNegative() {
			s.log.WithField("product_id", it.ProductID).Warn("dropping invalid persisted line item")
			continue
		}
		if i, dup := seen[it.ProductID]; dup {
			s.items[i].Quantity += it.Quantity
			continue
		}
		seen[it.ProductID] = len(s.items)
		s.items = append(s.items, it)
	}
}

// persist must be called with mu held. Failures are logged, never returned.
func (s *Store) persist() {
	raw, err := json.Marshal(persistedState{Items: s.items, Version: stateVersion})
	if err != nil {
		s.log.WithError(err).Warn("could not encode cart")
		return
	}
	if err := s.kv.Set(s.key, raw); err != nil {
		s.log.WithError(err).Warn("could not persist cart")
	}
}

func (s *Store) index(productID string) int {
	for i := range s.items {
		if s.items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// AddItem adds qty (at least 1) of the product. A product already in the cart
// has its quantity increased instead of getting a second line.
func (s *Store) AddItem(p domain.ProductSnapshot, qty int) {
	if qty < 1 {
		qty = 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.index(p.ProductID); i >= 0 {
		s.items[i].Quantity += qty
	} else {
		s.items = append(s.items, domain.CartLineItem{ProductSnapshot: p, Quantity: qty})
	}
	s.persist()
}

// RemoveItem deletes the product's line. Absent products are ignored.
func (s *Store) RemoveItem(productID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.index(productID)
	if i < 0 {
		return
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
	s.persist()
}

// UpdateQuantity sets the product's quantity; n <= 0 removes the line.
// Absent products are ignored.
func (s *Store) UpdateQuantity(productID string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.index(productID)
	if i < 0 {
		return
	}
	if n <= 0 {
		s.items = append(s.items[:i], s.items[i+1:]...)
	} else {
		s.items[i].Quantity = n
	}
	s.persist()
}

// Clear empties the cart.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = []domain.CartLineItem{}
	s.persist()
}

// Items returns a copy of the line items in insertion order.
func (s *Store) Items() []domain.CartLineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.CartLineItem{}, s.items...)
}

func (s *Store) TotalItems() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return totalItems(s.items)
}

func (s *Store) TotalPrice() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return totalPrice(s.items)
}

func (s *Store) IsEmpty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items) == 0
}

// Snapshot is a consistent view of the cart: items and totals read under one lock.
type Snapshot struct {
	Items      []domain.CartLineItem `json:"items"`
	TotalItems int                   `json:"total_items"`
	TotalPrice decimal.Decimal       `json:"total_price"`
}

func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Items:      append([]domain.CartLineItem{}, s.items...),
		TotalItems: totalItems(s.items),
		TotalPrice: totalPrice(s.items),
	}
}

func totalItems(items []domain.CartLineItem) int {
	n := 0
	for _, it := range items {
		n += it.Quantity
	}
	return n
}

func totalPrice(items []domain.CartLineItem) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(it.Subtotal())
	}
	return sum
}
