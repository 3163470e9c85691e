package ledger

import (
	"context"
	"sync"

	"github.com/payflexi/reconciler/pkg/types"
)

// MemoryLedger is a mutex-guarded in-memory Ledger. It backs engine and
// handler tests and is usable as a dev-mode store.
type MemoryLedger struct {
	mu     sync.Mutex
	nextID int64
	orders map[int64]*OrderSnapshot
	meta   map[int64]map[string]string
	notes  map[int64][]string
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		nextID: 1,
		orders: make(map[int64]*OrderSnapshot),
		meta:   make(map[int64]map[string]string),
		notes:  make(map[int64][]string),
	}
}

func (l *MemoryLedger) CreateOrder(_ context.Context, p CreateOrderParams) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	id := l.nextID
	l.nextID++
	l.orders[id] = &OrderSnapshot{
		ID:          id,
		Email:       p.Email,
		Currency:    p.Currency,
		Total:       p.Total,
		Status:      types.OrderStatusPending,
		Description: p.Description,
	}
	return id, nil
}

func (l *MemoryLedger) GetOrder(_ context.Context, orderID int64) (*OrderSnapshot, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	order, ok := l.orders[orderID]
	if !ok {
		return nil, ErrOrderNotFound
	}
	cp := *order
	return &cp, nil
}

func (l *MemoryLedger) FindOrderByTransactionReference(_ context.Context, ref string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for id, order := range l.orders {
		if order.TransactionID == ref {
			return id, nil
		}
	}
	return 0, ErrOrderNotFound
}

func (l *MemoryLedger) UpdateOrder(_ context.Context, orderID int64, u OrderUpdate) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	order, ok := l.orders[orderID]
	if !ok {
		return ErrOrderNotFound
	}
	if u.Status != nil {
		order.Status = *u.Status
	}
	if u.Total != nil {
		order.Total = *u.Total
	}
	if u.TransactionID != nil {
		order.TransactionID = *u.TransactionID
	}
	return nil
}

func (l *MemoryLedger) GetMeta(_ context.Context, orderID int64, key string) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	v, ok := l.meta[orderID][key]
	return v, ok, nil
}

func (l *MemoryLedger) SetMeta(_ context.Context, orderID int64, key, value string, overwrite bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.meta[orderID] == nil {
		l.meta[orderID] = make(map[string]string)
	}
	if _, exists := l.meta[orderID][key]; exists && !overwrite {
		return nil
	}
	l.meta[orderID][key] = value
	return nil
}

func (l *MemoryLedger) AppendNote(_ context.Context, orderID int64, note string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.notes[orderID] = append(l.notes[orderID], note)
	return nil
}

// InTx snapshots the store, runs fn, and restores the snapshot when fn
// errors, so a failed multi-write sequence leaves no partial state.
func (l *MemoryLedger) InTx(_ context.Context, fn func(Ledger) error) error {
	snap := l.snapshot()
	if err := fn(l); err != nil {
		l.restore(snap)
		return err
	}
	return nil
}

type memorySnapshot struct {
	nextID int64
	orders map[int64]*OrderSnapshot
	meta   map[int64]map[string]string
	notes  map[int64][]string
}

func (l *MemoryLedger) snapshot() *memorySnapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	snap := &memorySnapshot{
		nextID: l.nextID,
		orders: make(map[int64]*OrderSnapshot, len(l.orders)),
		meta:   make(map[int64]map[string]string, len(l.meta)),
		notes:  make(map[int64][]string, len(l.notes)),
	}
	for id, order := range l.orders {
		cp := *order
		snap.orders[id] = &cp
	}
	for id, kv := range l.meta {
		cp := make(map[string]string, len(kv))
		for k, v := range kv {
			cp[k] = v
		}
		snap.meta[id] = cp
	}
	for id, ns := range l.notes {
		cp := make([]string, len(ns))
		copy(cp, ns)
		snap.notes[id] = cp
	}
	return snap
}

func (l *MemoryLedger) restore(snap *memorySnapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextID = snap.nextID
	l.orders = snap.orders
	l.meta = snap.meta
	l.notes = snap.notes
}

// Notes returns a copy of the notes appended to orderID, oldest first.
func (l *MemoryLedger) Notes(orderID int64) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.notes[orderID]))
	copy(out, l.notes[orderID])
	return out
}
