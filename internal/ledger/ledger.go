package ledger

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/payflexi/reconciler/pkg/types"
)

var (
	ErrOrderNotFound = errors.New("order not found")
)

// Metadata keys the reconciliation engine persists per order.
const (
	// MetaKeyOrderAmount is the full-order-amount snapshot, seeded once from
	// the first observation and never overwritten.
	MetaKeyOrderAmount = "payflexi_order_amount"
	// MetaKeyAmountPaid accumulates the installments credited so far.
	MetaKeyAmountPaid = "payflexi_amount_paid"
)

// OrderSnapshot is a read view of one order.
type OrderSnapshot struct {
	ID            int64
	Email         string
	Currency      string
	Total         decimal.Decimal
	Status        types.OrderStatus
	TransactionID string
	Description   string
}

// OrderUpdate mutates status, total and transaction reference together. Nil
// fields are left untouched.
type OrderUpdate struct {
	Status        *types.OrderStatus
	Total         *decimal.Decimal
	TransactionID *string
}

// CreateOrderParams seeds a new pending order at checkout time.
type CreateOrderParams struct {
	Email       string
	Currency    string
	Total       decimal.Decimal
	Description string
}

// Ledger is the order store the reconciliation engine reads and writes. All
// operations are durable and order-scoped; no cross-order transactionality is
// assumed or provided.
type Ledger interface {
	CreateOrder(ctx context.Context, p CreateOrderParams) (int64, error)
	GetOrder(ctx context.Context, orderID int64) (*OrderSnapshot, error)
	// FindOrderByTransactionReference resolves the order whose current
	// transaction reference equals ref, or ErrOrderNotFound.
	FindOrderByTransactionReference(ctx context.Context, ref string) (int64, error)
	UpdateOrder(ctx context.Context, orderID int64, u OrderUpdate) error
	// GetMeta returns (value, true, nil) when the key exists for the order.
	GetMeta(ctx context.Context, orderID int64, key string) (string, bool, error)
	// SetMeta writes a metadata value. With overwrite false the write is
	// first-wins: an existing value is kept and no error is returned.
	SetMeta(ctx context.Context, orderID int64, key, value string, overwrite bool) error
	// AppendNote adds an audit note. Notes are append-only.
	AppendNote(ctx context.Context, orderID int64, note string) error
	// InTx runs fn against a transactional view of the ledger. Every write fn
	// performs commits or rolls back as one unit.
	InTx(ctx context.Context, fn func(Ledger) error) error
}
