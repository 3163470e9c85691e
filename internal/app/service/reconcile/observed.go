package reconcile

import "github.com/shopspring/decimal"

// ObservedPayment is the normalized view of one payment event, built from
// either a webhook payload or a redirect verification. It is consumed once by
// the engine and never persisted.
type ObservedPayment struct {
	// Reference identifies this payment attempt.
	Reference string
	// InitialReference is the reference of the first attempt in the
	// installment series. Equal to Reference unless this is a follow-up.
	InitialReference string
	// Status is the provider-reported transaction status.
	Status string
	// OrderAmount is the full price the provider believes is owed.
	OrderAmount decimal.Decimal
	// TxnAmount is what this transaction instance actually paid.
	TxnAmount decimal.Decimal
}

// FollowUp reports whether this observation is a later installment in a
// series started by a different reference.
func (o *ObservedPayment) FollowUp() bool {
	return o.InitialReference != "" && o.Reference != o.InitialReference
}
