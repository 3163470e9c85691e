package models

import "time"

// OrderMeta is a per-order key/value row. The reconciliation engine keeps the
// full-amount snapshot and the installment accumulator here.
type OrderMeta struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	OrderID   int64     `gorm:"column:order_id;not null;uniqueIndex:unique_order_meta_key,priority:1" json:"order_id"`
	Key       string    `gorm:"column:key;type:varchar(128);not null;uniqueIndex:unique_order_meta_key,priority:2" json:"key"`
	Value     string    `gorm:"column:value;type:text;not null" json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (OrderMeta) TableName() string { return "order_meta" }
