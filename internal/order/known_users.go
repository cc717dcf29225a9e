package order

import "sync"

// KnownUsers is the append-only set of user ids ever seen, used to classify
// new vs. returning customers. It never shrinks.
type KnownUsers struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewKnownUsers creates an empty known-users set.
func NewKnownUsers() *KnownUsers {
	return &KnownUsers{seen: make(map[string]struct{})}
}

// MarkSeen records userID and reports whether it had been seen before.
func (k *KnownUsers) MarkSeen(userID string) (returning bool) {
	k.mu.Lock()
	defer k.mu.Unlock()

	_, returning = k.seen[userID]
	k.seen[userID] = struct{}{}

	return returning
}

// Size returns the number of distinct users ever seen.
func (k *KnownUsers) Size() int {
	k.mu.Lock()
	defer k.mu.Unlock()

	return len(k.seen)
}
