package types

type OrderStatus string

const (
	// OrderStatusPending is set when checkout begins, before any payment is observed.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusPaid is terminal: the accumulated amount covers the full order amount.
	OrderStatusPaid OrderStatus = "paid"
	// OrderStatusPartiallyPaid means at least one installment landed but the order
	// amount is not yet covered.
	OrderStatusPartiallyPaid OrderStatus = "partially_paid"
	// OrderStatusRevoked is a legacy status from the single-shot gateway design.
	// It does not block further installments.
	OrderStatusRevoked OrderStatus = "revoked"
)

// Terminal reports whether no further payment observation may change the order.
// Only paid is terminal; revoked orders keep accumulating installments.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusPaid
}

type PaymentEventSource string

const (
	PaymentEventSourceWebhook  PaymentEventSource = "webhook"
	PaymentEventSourceRedirect PaymentEventSource = "redirect"
)
