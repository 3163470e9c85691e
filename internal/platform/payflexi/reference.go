package payflexi

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// referencePrefix tags references minted by this service. Kept for
// compatibility with the store integration that preceded it.
const referencePrefix = "EDD"

// ErrMalformedReference is returned when a reference cannot be resolved to an
// order id.
var ErrMalformedReference = errors.New("malformed transaction reference")

// NewReference mints a provider-visible reference for a payment attempt on
// orderID. The nonce must be unique per call: a collision would misroute a
// later lookup by reference.
func NewReference(orderID int64) string {
	return fmt.Sprintf("%s-%d-%s", referencePrefix, orderID, uuid.New().String())
}

// DecodeReference extracts the order id from an initial payment reference.
// The id is always the second '-'-separated segment; everything after it is
// nonce and may itself contain separators. Follow-up installment references
// carry a different nonce and must not be decoded directly: resolve those
// through the observation's initial reference instead.
func DecodeReference(reference string) (int64, error) {
	parts := strings.SplitN(reference, "-", 3)
	if len(parts) < 2 || parts[1] == "" {
		return 0, fmt.Errorf("%w: %q", ErrMalformedReference, reference)
	}
	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrMalformedReference, reference)
	}
	return id, nil
}
