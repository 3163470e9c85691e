package checkout

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/payflexi/reconciler/internal/ledger"
	"github.com/payflexi/reconciler/internal/platform/payflexi"
	"github.com/payflexi/reconciler/pkg/config"
	"github.com/payflexi/reconciler/pkg/logctx"
)

// ErrNotConfigured is returned when the merchant keys for the current mode are
// missing. Checkout must be refused rather than sending the buyer to a broken
// gateway session.
var ErrNotConfigured = errors.New("payflexi gateway is not configured")

// Gateway is the slice of the PayFlexi client the checkout flow needs.
type Gateway interface {
	CreateTransaction(ctx context.Context, req *payflexi.CreateTransactionRequest) (*payflexi.CreateTransactionResult, error)
}

type CreateCheckoutRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Email       string          `json:"email"`
	Currency    string          `json:"currency"`
	Description string          `json:"description"`
}

type CreateCheckoutResult struct {
	OrderID     int64  `json:"order_id"`
	Reference   string `json:"reference"`
	CheckoutURL string `json:"checkout_url"`
}

// Service creates the pending order and the remote checkout transaction.
type Service struct {
	cfg     *config.Config
	log     *zap.SugaredLogger
	gateway Gateway
	ledger  ledger.Ledger
}

func NewService(cfg *config.Config, log *zap.SugaredLogger, gw *payflexi.Client, l ledger.Ledger) *Service {
	return &Service{cfg: cfg, log: log, gateway: gw, ledger: l}
}

// CreateCheckout inserts a pending order, mints its payment reference and
// registers the transaction with the provider. On a gateway error the order
// stays pending with a note and the buyer is not redirected anywhere.
func (s *Service) CreateCheckout(ctx context.Context, req *CreateCheckoutRequest) (*CreateCheckoutResult, error) {
	if !s.cfg.Payflexi.Configured() {
		return nil, ErrNotConfigured
	}
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("invalid checkout amount: %s", req.Amount)
	}
	if req.Email == "" {
		return nil, errors.New("buyer email is required")
	}

	orderID, err := s.ledger.CreateOrder(ctx, ledger.CreateOrderParams{
		Email:       req.Email,
		Currency:    req.Currency,
		Total:       req.Amount,
		Description: req.Description,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	reference := payflexi.NewReference(orderID)
	if err := s.ledger.UpdateOrder(ctx, orderID, ledger.OrderUpdate{TransactionID: &reference}); err != nil {
		return nil, fmt.Errorf("failed to record payment reference: %w", err)
	}

	res, err := s.gateway.CreateTransaction(ctx, &payflexi.CreateTransactionRequest{
		Name:        fmt.Sprintf("Order #%d", orderID),
		Amount:      req.Amount,
		Email:       req.Email,
		Reference:   reference,
		Currency:    req.Currency,
		CallbackURL: s.cfg.Payflexi.CallbackURL,
		Domain:      s.cfg.Payflexi.Domain,
		Meta:        payflexi.TransactionMeta{Title: s.cfg.Payflexi.StoreTitle},
	})
	if err != nil {
		logctx.FromCtx(ctx, s.log).Errorw("checkout_gateway_error", "order_id", orderID, "error", err.Error())
		if nerr := s.ledger.AppendNote(ctx, orderID, fmt.Sprintf("Checkout creation failed at the gateway: %v", err)); nerr != nil {
			logctx.FromCtx(ctx, s.log).Errorf("failed to append gateway error note: %v", nerr)
		}
		return nil, err
	}

	logctx.FromCtx(ctx, s.log).Infow("checkout_created", "order_id", orderID, "reference", reference)
	return &CreateCheckoutResult{
		OrderID:     orderID,
		Reference:   reference,
		CheckoutURL: res.CheckoutURL,
	}, nil
}
