package orders

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/payflexi/reconciler/internal/models"
	"github.com/payflexi/reconciler/pkg/types"
)

// ScanOrdersRequest is the admin listing request: filters, paging, sorting.
type ScanOrdersRequest struct {
	Filters   []*types.CommonFilter `json:"filters"`
	From      int                   `json:"from"`
	Size      int                   `json:"size"`
	SortBy    string                `json:"sort_by"`
	SortOrder string                `json:"sort_order"`
}

type ScanOrdersResponse struct {
	Items []*models.Order `json:"items"`
	Total int64           `json:"total"`
}

// OrderDetail is the full admin view: the order row plus its audit notes and
// reconciliation metadata.
type OrderDetail struct {
	Order *models.Order       `json:"order"`
	Notes []*models.OrderNote `json:"notes"`
	Meta  map[string]string   `json:"meta"`
}

// Service serves admin order queries.
type Service struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func NewService(db *gorm.DB, log *zap.SugaredLogger) *Service {
	return &Service{db: db, log: log}
}

// filtersAnd combines multiple CommonFilter into a single clause.Expression.
type filtersAnd struct{ filters []*types.CommonFilter }

func (w filtersAnd) Build(builder clause.Builder) {
	if len(w.filters) == 0 {
		builder.WriteString("1=1")
		return
	}
	exprs := make([]clause.Expression, 0, len(w.filters))
	for _, f := range w.filters {
		exprs = append(exprs, f)
	}
	clause.And(exprs...).Build(builder)
}

// ScanOrders implements paginated admin listing with filters.
func (s *Service) ScanOrders(ctx context.Context, req *ScanOrdersRequest) (*ScanOrdersResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("nil request")
	}
	if req.Size <= 0 {
		req.Size = 10
	}
	if req.From < 0 {
		req.From = 0
	}

	tx := s.db.WithContext(ctx).Model(&models.Order{})
	if len(req.Filters) > 0 {
		tx = tx.Where(clause.Where{Exprs: []clause.Expression{filtersAnd{filters: req.Filters}}})
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count orders: %w", err)
	}

	var rows []*models.Order

	q := tx.Limit(req.Size)

	if req.From > 0 {
		q = q.Offset(req.From)
	}

	if req.SortBy != "" {
		q = q.Order(clause.OrderBy{Columns: []clause.OrderByColumn{{Column: clause.Column{Name: req.SortBy}, Desc: req.SortOrder != "asc"}}})
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}

	return &ScanOrdersResponse{Items: rows, Total: total}, nil
}

// GetOrderDetail loads one order with its notes and metadata.
func (s *Service) GetOrderDetail(ctx context.Context, orderID int64) (*OrderDetail, error) {
	var order models.Order
	if err := s.db.WithContext(ctx).First(&order, orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("order %d not found", orderID)
		}
		return nil, fmt.Errorf("failed to load order %d: %w", orderID, err)
	}

	var notes []*models.OrderNote
	if err := s.db.WithContext(ctx).Where("order_id = ?", orderID).Order("created_at asc").Find(&notes).Error; err != nil {
		return nil, fmt.Errorf("failed to load order notes: %w", err)
	}

	var metaRows []*models.OrderMeta
	if err := s.db.WithContext(ctx).Where("order_id = ?", orderID).Find(&metaRows).Error; err != nil {
		return nil, fmt.Errorf("failed to load order meta: %w", err)
	}
	meta := make(map[string]string, len(metaRows))
	for _, m := range metaRows {
		meta[m.Key] = m.Value
	}

	return &OrderDetail{Order: &order, Notes: notes, Meta: meta}, nil
}

// Module exposes the admin orders service via Fx.
var Module = fx.Options(
	fx.Provide(NewService),
)
