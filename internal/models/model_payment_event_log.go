package models

import (
	"time"

	"gorm.io/datatypes"

	"github.com/payflexi/reconciler/pkg/types"
)

type PaymentEventLogStatus string

const (
	PaymentEventLogStatusReceived     PaymentEventLogStatus = "received"
	PaymentEventLogStatusHandled      PaymentEventLogStatus = "handled"
	PaymentEventLogStatusHandleFailed PaymentEventLogStatus = "handle_failed"
)

// PaymentEventLog records every inbound webhook or redirect observation and
// its handling result, for operator forensics.
type PaymentEventLog struct {
	ID        string                   `gorm:"column:id;type:uuid;primary_key" json:"id"`
	Source    types.PaymentEventSource `gorm:"column:source;type:varchar(32);not null" json:"source"`
	Event     string                   `gorm:"column:event;type:varchar(64)" json:"event"`
	Reference string                   `gorm:"column:reference;type:varchar(128);index" json:"reference"`
	TraceID   string                   `gorm:"column:trace_id;type:varchar(128)" json:"trace_id"`
	EventTime time.Time                `gorm:"column:event_time" json:"event_time"`
	Data      datatypes.JSON           `gorm:"column:data;type:jsonb" json:"data"`
	Result    *datatypes.JSON          `gorm:"column:result;type:jsonb" json:"result"`
	Status    PaymentEventLogStatus    `gorm:"column:status;type:varchar(64);not null" json:"status"`
	CreatedAt time.Time                `json:"created_at"`
	UpdatedAt time.Time                `json:"updated_at"`
}

func (PaymentEventLog) TableName() string { return "payment_event_log" }
