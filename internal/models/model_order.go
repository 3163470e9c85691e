package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/payflexi/reconciler/pkg/types"
)

// Order is the ledger record a payment observation reconciles against.
// Total reflects the amount credited so far; once the order is paid it equals
// the full order amount. The full-amount snapshot and the installment
// accumulator live in OrderMeta, keyed per order.
type Order struct {
	ID       int64             `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Email    string            `gorm:"column:email;type:varchar(255);not null" json:"email"`
	Currency string            `gorm:"column:currency;type:varchar(8);not null" json:"currency"`
	Total    decimal.Decimal   `gorm:"column:total;type:decimal(20,8);not null" json:"total"`
	Status   types.OrderStatus `gorm:"column:status;type:varchar(32);not null;index" json:"status"`
	// TransactionID is the provider reference of the most recent payment
	// attempt credited to this order.
	TransactionID string    `gorm:"column:transaction_id;type:varchar(128);index" json:"transaction_id"`
	Description   string    `gorm:"column:description;type:varchar(255)" json:"description"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (Order) TableName() string { return "orders" }
