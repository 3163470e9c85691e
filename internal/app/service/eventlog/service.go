package eventlog

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/payflexi/reconciler/internal/models"
	"github.com/payflexi/reconciler/pkg/logctx"
	"github.com/payflexi/reconciler/pkg/tool"
)

// Service persists payment event audit records. Writes are fire-and-forget:
// a failed log write must never fail the payment path.
type Service struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func New(db *gorm.DB, log *zap.SugaredLogger) *Service { return &Service{db: db, log: log} }

// Save asynchronously persists a payment event log. Nil input is ignored.
func (s *Service) Save(ctx context.Context, rec *models.PaymentEventLog) {
	go func() {
		if rec == nil {
			return
		}
		if rec.ID == "" {
			rec.ID = tool.GenerateUUIDV7()
		}
		if err := s.db.Save(rec).Error; err != nil {
			logctx.FromCtx(ctx, s.log).Errorf("failed to save payment event log: %v", err)
		}
	}()
}

// Module exposes the event log service via Fx.
var Module = fx.Options(
	fx.Provide(New),
)
