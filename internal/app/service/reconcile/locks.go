package reconcile

import "sync"

// orderLocks serializes reconciliation per order id. Concurrent deliveries for
// the same order (a redirect racing a webhook, or two retried webhooks) must
// not interleave the read-modify-write of status, total and the installment
// accumulator, or one increment is silently lost.
type orderLocks struct {
	mu      sync.Mutex
	entries map[int64]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newOrderLocks() *orderLocks {
	return &orderLocks{entries: make(map[int64]*lockEntry)}
}

func (l *orderLocks) Lock(orderID int64) {
	l.mu.Lock()
	e, ok := l.entries[orderID]
	if !ok {
		e = &lockEntry{}
		l.entries[orderID] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
}

func (l *orderLocks) Unlock(orderID int64) {
	l.mu.Lock()
	e := l.entries[orderID]
	e.refs--
	if e.refs == 0 {
		delete(l.entries, orderID)
	}
	l.mu.Unlock()

	e.mu.Unlock()
}
