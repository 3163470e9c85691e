package ledger

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/fx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/payflexi/reconciler/internal/models"
	"github.com/payflexi/reconciler/pkg/types"
)

// GormLedger persists orders, notes and metadata in Postgres.
type GormLedger struct {
	db *gorm.DB
}

func NewGormLedger(db *gorm.DB) *GormLedger { return &GormLedger{db: db} }

// NewLedger exposes the gorm implementation under the Ledger interface for fx.
func NewLedger(db *gorm.DB) Ledger { return NewGormLedger(db) }

func (l *GormLedger) CreateOrder(ctx context.Context, p CreateOrderParams) (int64, error) {
	order := &models.Order{
		Email:       p.Email,
		Currency:    p.Currency,
		Total:       p.Total,
		Status:      types.OrderStatusPending,
		Description: p.Description,
	}
	if err := l.db.WithContext(ctx).Create(order).Error; err != nil {
		return 0, fmt.Errorf("failed to create order: %w", err)
	}
	return order.ID, nil
}

func (l *GormLedger) GetOrder(ctx context.Context, orderID int64) (*OrderSnapshot, error) {
	var order models.Order
	if err := l.db.WithContext(ctx).First(&order, orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to load order %d: %w", orderID, err)
	}
	return snapshotOf(&order), nil
}

func (l *GormLedger) FindOrderByTransactionReference(ctx context.Context, ref string) (int64, error) {
	var order models.Order
	err := l.db.WithContext(ctx).Where("transaction_id = ?", ref).First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrOrderNotFound
		}
		return 0, fmt.Errorf("failed to find order by reference: %w", err)
	}
	return order.ID, nil
}

func (l *GormLedger) UpdateOrder(ctx context.Context, orderID int64, u OrderUpdate) error {
	updates := map[string]any{}
	if u.Status != nil {
		updates["status"] = *u.Status
	}
	if u.Total != nil {
		updates["total"] = *u.Total
	}
	if u.TransactionID != nil {
		updates["transaction_id"] = *u.TransactionID
	}
	if len(updates) == 0 {
		return nil
	}

	res := l.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", orderID).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("failed to update order %d: %w", orderID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (l *GormLedger) GetMeta(ctx context.Context, orderID int64, key string) (string, bool, error) {
	var meta models.OrderMeta
	err := l.db.WithContext(ctx).Where("order_id = ? AND key = ?", orderID, key).First(&meta).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read order meta: %w", err)
	}
	return meta.Value, true, nil
}

func (l *GormLedger) SetMeta(ctx context.Context, orderID int64, key, value string, overwrite bool) error {
	meta := &models.OrderMeta{OrderID: orderID, Key: key, Value: value}
	conflict := clause.OnConflict{
		Columns: []clause.Column{{Name: "order_id"}, {Name: "key"}},
	}
	if overwrite {
		conflict.DoUpdates = clause.AssignmentColumns([]string{"value", "updated_at"})
	} else {
		// first-write-wins: keep the existing row untouched
		conflict.DoNothing = true
	}
	if err := l.db.WithContext(ctx).Clauses(conflict).Create(meta).Error; err != nil {
		return fmt.Errorf("failed to set order meta: %w", err)
	}
	return nil
}

func (l *GormLedger) AppendNote(ctx context.Context, orderID int64, note string) error {
	rec := &models.OrderNote{OrderID: orderID, Note: note}
	if err := l.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("failed to append order note: %w", err)
	}
	return nil
}

func (l *GormLedger) InTx(ctx context.Context, fn func(Ledger) error) error {
	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewGormLedger(tx))
	})
}

func snapshotOf(order *models.Order) *OrderSnapshot {
	return &OrderSnapshot{
		ID:            order.ID,
		Email:         order.Email,
		Currency:      order.Currency,
		Total:         order.Total,
		Status:        order.Status,
		TransactionID: order.TransactionID,
		Description:   order.Description,
	}
}

var Module = fx.Options(
	fx.Provide(NewLedger),
)
