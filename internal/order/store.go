package order

import (
	"fmt"
	"sync"
)

// Store is the volatile, in-process order table plus the per-user order-id
// index. Orders are stored by value; every read hands out a deep copy, so a
// handler must go through Update to mutate a record.
type Store struct {
	mu        sync.Mutex
	orders    map[string]Order
	userIndex map[string][]string
	sequence  int64
}

// NewStore creates an empty order store.
func NewStore() *Store {
	return &Store{
		orders:    make(map[string]Order),
		userIndex: make(map[string][]string),
	}
}

// NextID allocates the next sequential order id, formatted ORD-NNNNN.
// Allocation is atomic; ids are distinct and strictly increasing in
// issuance order.
func (s *Store) NextID() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sequence++

	return fmt.Sprintf("ORD-%05d", s.sequence)
}

// Insert stores the order and appends its id to the owner's index.
func (s *Store) Insert(o Order) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.orders[o.ID] = o.Clone()
	s.userIndex[o.UserID] = append(s.userIndex[o.UserID], o.ID)
}

// Get returns a copy of the order, if present.
func (s *Store) Get(orderID string) (Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[orderID]
	if !ok {
		return Order{}, false
	}

	return o.Clone(), true
}

// ListByUser returns copies of the user's orders in creation order.
func (s *Store) ListByUser(userID string) []Order {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := s.userIndex[userID]
	orders := make([]Order, 0, len(ids))

	for _, id := range ids {
		if o, ok := s.orders[id]; ok {
			orders = append(orders, o.Clone())
		}
	}

	return orders
}

// Update applies fn to a copy of the order under the store lock and writes
// the result back only if fn succeeds. If fn returns an error the stored
// record is left untouched. A missing id yields ErrOrderNotFound.
func (s *Store) Update(orderID string, fn func(o *Order) error) (Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.orders[orderID]
	if !ok {
		return Order{}, ErrOrderNotFound
	}

	working := stored.Clone()
	if err := fn(&working); err != nil {
		return Order{}, err
	}

	s.orders[orderID] = working

	return working.Clone(), nil
}

// Count returns the number of stored orders.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.orders)
}
