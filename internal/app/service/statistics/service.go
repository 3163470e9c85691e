package statistics

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/payflexi/reconciler/internal/models"
	"github.com/payflexi/reconciler/pkg/types"
)

// DailyOrderStat is one day's paid order count and gross value.
type DailyOrderStat struct {
	Day       time.Time       `json:"day"`
	PaidCount int64           `json:"paid_count"`
	Gmv       decimal.Decimal `json:"gmv"`
}

type OrderStatisticsResponse struct {
	Daily []*DailyOrderStat `json:"daily"`
	// PartiallyPaidCount is the open installment backlog.
	PartiallyPaidCount int64           `json:"partially_paid_count"`
	TotalGmv           decimal.Decimal `json:"total_gmv"`
}

// Service computes order statistics for the admin dashboard.
type Service struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func NewService(db *gorm.DB, log *zap.SugaredLogger) *Service {
	return &Service{db: db, log: log}
}

// OrderStatistics aggregates paid orders per day over [from, to).
func (s *Service) OrderStatistics(ctx context.Context, from, to time.Time) (*OrderStatisticsResponse, error) {
	if !to.After(from) {
		return nil, fmt.Errorf("invalid statistics range: from=%s to=%s", from, to)
	}

	var daily []*DailyOrderStat
	err := s.db.WithContext(ctx).
		Model(&models.Order{}).
		Select("date_trunc('day', updated_at) AS day, count(*) AS paid_count, coalesce(sum(total), 0) AS gmv").
		Where("status = ? AND updated_at >= ? AND updated_at < ?", types.OrderStatusPaid, from, to).
		Group("day").
		Order("day asc").
		Scan(&daily).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate daily orders: %w", err)
	}

	var partial int64
	if err := s.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("status = ?", types.OrderStatusPartiallyPaid).
		Count(&partial).Error; err != nil {
		return nil, fmt.Errorf("failed to count partially paid orders: %w", err)
	}

	total := decimal.Zero
	row := struct{ Gmv decimal.Decimal }{}
	if err := s.db.WithContext(ctx).
		Model(&models.Order{}).
		Select("coalesce(sum(total), 0) AS gmv").
		Where("status = ?", types.OrderStatusPaid).
		Scan(&row).Error; err != nil {
		return nil, fmt.Errorf("failed to sum gmv: %w", err)
	}
	total = row.Gmv

	return &OrderStatisticsResponse{
		Daily:              daily,
		PartiallyPaidCount: partial,
		TotalGmv:           total,
	}, nil
}

// Module exposes the statistics service via Fx.
var Module = fx.Options(
	fx.Provide(NewService),
)
