package reconcile

import (
	"context"
	"fmt"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/payflexi/reconciler/internal/ledger"
	"github.com/payflexi/reconciler/pkg/logctx"
	"github.com/payflexi/reconciler/pkg/types"
)

// Outcome is the engine's verdict for one observation.
type Outcome string

const (
	// OutcomeFinalized means this observation completed the order.
	OutcomeFinalized Outcome = "finalized"
	// OutcomePartiallyApplied means the installment was credited but the order
	// amount is not yet covered (or the installment was a known duplicate).
	OutcomePartiallyApplied Outcome = "partially_applied"
	// OutcomeAlreadyFinalized means the order was already paid; the
	// observation is an idempotent no-op.
	OutcomeAlreadyFinalized Outcome = "already_finalized"
)

// Engine is the single authority for mutating order state from payment
// observations. Both the redirect path and the webhook path feed it.
type Engine struct {
	ledger ledger.Ledger
	log    *zap.SugaredLogger
	locks  *orderLocks
}

func NewEngine(l ledger.Ledger, log *zap.SugaredLogger) *Engine {
	return &Engine{ledger: l, log: log, locks: newOrderLocks()}
}

// Reconcile applies one observed payment to orderID and returns the verdict.
// It holds a per-order lock across the whole read-modify-write so that racing
// deliveries for the same order serialize instead of dropping an increment.
// Returns ledger.ErrOrderNotFound when orderID resolves to nothing.
func (e *Engine) Reconcile(ctx context.Context, orderID int64, observed *ObservedPayment) (Outcome, error) {
	e.locks.Lock(orderID)
	defer e.locks.Unlock(orderID)

	log := logctx.FromCtx(ctx, e.log).With("order_id", orderID, "reference", observed.Reference)

	order, err := e.ledger.GetOrder(ctx, orderID)
	if err != nil {
		return "", err
	}

	// Idempotent short-circuit: a paid order is terminal. Redirect and webhook
	// may both observe a finalized order; neither may regress it.
	if order.Status.Terminal() {
		log.Infow("reconcile_already_finalized")
		return OutcomeAlreadyFinalized, nil
	}

	// A reference that already drove a credit is a retried delivery. The
	// accumulator meta only exists once the engine has credited something, so
	// its presence distinguishes a retry from the first observation of a
	// reference that checkout pre-saved on the order.
	if order.TransactionID == observed.Reference {
		if _, credited, err := e.ledger.GetMeta(ctx, orderID, ledger.MetaKeyAmountPaid); err != nil {
			return "", err
		} else if credited {
			log.Infow("reconcile_duplicate_delivery")
			return OutcomePartiallyApplied, nil
		}
	}

	orderAmount, err := e.orderAmount(ctx, orderID, observed)
	if err != nil {
		return "", err
	}

	if observed.TxnAmount.GreaterThanOrEqual(orderAmount) {
		// Paid in full by this transaction alone; exact equality counts.
		note := fmt.Sprintf(
			"Payment transaction was successful. PayFlexi Transaction Reference: %s",
			observed.Reference,
		)
		if err := e.finalize(ctx, orderID, orderAmount, observed.TxnAmount, observed, note); err != nil {
			return "", err
		}
		log.Infow("reconcile_finalized", "order_amount", orderAmount)
		return OutcomeFinalized, nil
	}

	if !observed.FollowUp() {
		return e.applyFirstInstallment(ctx, log, order, orderAmount, observed)
	}
	return e.applyFollowUpInstallment(ctx, log, order, orderAmount, observed)
}

// orderAmount returns the authoritative full order amount: the persisted
// snapshot when present, otherwise the observed amount, seeded first-wins so a
// stale webhook retry can never overwrite it.
func (e *Engine) orderAmount(ctx context.Context, orderID int64, observed *ObservedPayment) (decimal.Decimal, error) {
	raw, ok, err := e.ledger.GetMeta(ctx, orderID, ledger.MetaKeyOrderAmount)
	if err != nil {
		return decimal.Zero, err
	}
	if ok {
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return decimal.Zero, fmt.Errorf("corrupt order amount snapshot for order %d: %w", orderID, err)
		}
		return amount, nil
	}
	if err := e.ledger.SetMeta(ctx, orderID, ledger.MetaKeyOrderAmount, observed.OrderAmount.String(), false); err != nil {
		return decimal.Zero, err
	}
	return observed.OrderAmount, nil
}

func (e *Engine) applyFirstInstallment(ctx context.Context, log *zap.SugaredLogger, order *ledger.OrderSnapshot, orderAmount decimal.Decimal, observed *ObservedPayment) (Outcome, error) {
	raw, ok, err := e.ledger.GetMeta(ctx, order.ID, ledger.MetaKeyAmountPaid)
	if err != nil {
		return "", err
	}
	if ok {
		// The series already credited something under another initial
		// reference. The accumulator never decreases; only credit the
		// difference upward, never downward.
		prior, perr := decimal.NewFromString(raw)
		if perr != nil {
			return "", fmt.Errorf("corrupt amount paid for order %d: %w", order.ID, perr)
		}
		if prior.GreaterThanOrEqual(observed.TxnAmount) {
			log.Infow("reconcile_stale_first_installment", "prior", prior)
			return OutcomePartiallyApplied, nil
		}
	}

	note := fmt.Sprintf(
		"Partial payment received. Amount paid is %s %s while the total order amount is %s %s. PayFlexi Transaction Reference: %s",
		observed.TxnAmount, order.Currency, orderAmount, order.Currency, observed.Reference,
	)
	if err := e.applyPartial(ctx, order.ID, observed.TxnAmount, observed, note); err != nil {
		return "", err
	}
	log.Infow("reconcile_partial_applied", "amount_paid", observed.TxnAmount, "order_amount", orderAmount)
	return OutcomePartiallyApplied, nil
}

func (e *Engine) applyFollowUpInstallment(ctx context.Context, log *zap.SugaredLogger, order *ledger.OrderSnapshot, orderAmount decimal.Decimal, observed *ObservedPayment) (Outcome, error) {
	accumulated := decimal.Zero
	if raw, ok, err := e.ledger.GetMeta(ctx, order.ID, ledger.MetaKeyAmountPaid); err != nil {
		return "", err
	} else if ok {
		accumulated, err = decimal.NewFromString(raw)
		if err != nil {
			return "", fmt.Errorf("corrupt amount paid for order %d: %w", order.ID, err)
		}
	}

	newTotal := accumulated.Add(observed.TxnAmount)

	if newTotal.GreaterThanOrEqual(orderAmount) {
		note := fmt.Sprintf(
			"Final installment received. Total amount paid is %s %s covering the order amount of %s %s. PayFlexi Transaction Reference: %s",
			newTotal, order.Currency, orderAmount, order.Currency, observed.Reference,
		)
		if err := e.finalize(ctx, order.ID, orderAmount, newTotal, observed, note); err != nil {
			return "", err
		}
		log.Infow("reconcile_finalized", "amount_paid", newTotal, "order_amount", orderAmount)
		return OutcomeFinalized, nil
	}

	note := fmt.Sprintf(
		"Installment received. Amount paid so far is %s %s of the total order amount %s %s. PayFlexi Transaction Reference: %s",
		newTotal, order.Currency, orderAmount, order.Currency, observed.Reference,
	)
	if err := e.applyPartial(ctx, order.ID, newTotal, observed, note); err != nil {
		return "", err
	}
	log.Infow("reconcile_partial_applied", "amount_paid", newTotal, "order_amount", orderAmount)
	return OutcomePartiallyApplied, nil
}

// finalize marks the order paid. The accumulator, status/total and note are
// one transactional write; a failure mid-sequence leaves no partial state.
func (e *Engine) finalize(ctx context.Context, orderID int64, orderAmount, amountPaid decimal.Decimal, observed *ObservedPayment, note string) error {
	return e.ledger.InTx(ctx, func(l ledger.Ledger) error {
		if err := l.SetMeta(ctx, orderID, ledger.MetaKeyAmountPaid, amountPaid.String(), true); err != nil {
			return err
		}
		if err := l.UpdateOrder(ctx, orderID, ledger.OrderUpdate{
			Status:        lo.ToPtr(types.OrderStatusPaid),
			Total:         &orderAmount,
			TransactionID: &observed.Reference,
		}); err != nil {
			return err
		}
		return l.AppendNote(ctx, orderID, note)
	})
}

func (e *Engine) applyPartial(ctx context.Context, orderID int64, amountPaid decimal.Decimal, observed *ObservedPayment, note string) error {
	return e.ledger.InTx(ctx, func(l ledger.Ledger) error {
		if err := l.SetMeta(ctx, orderID, ledger.MetaKeyAmountPaid, amountPaid.String(), true); err != nil {
			return err
		}
		if err := l.UpdateOrder(ctx, orderID, ledger.OrderUpdate{
			Status:        lo.ToPtr(types.OrderStatusPartiallyPaid),
			Total:         &amountPaid,
			TransactionID: &observed.Reference,
		}); err != nil {
			return err
		}
		return l.AppendNote(ctx, orderID, note)
	})
}
