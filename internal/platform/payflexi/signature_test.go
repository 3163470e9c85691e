package payflexi

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVerifySignature_ValidBody(t *testing.T) {
	body := []byte(`{"event":"transaction.approved","data":{"reference":"EDD-1-x"}}`)
	sig := SignBody(body, "sk_test_secret")
	require.True(t, VerifySignature(body, sig, "sk_test_secret"))
}

func TestVerifySignature_TamperedBody(t *testing.T) {
	body := []byte(`{"event":"transaction.approved","data":{"txn_amount":100}}`)
	sig := SignBody(body, "sk_test_secret")

	tampered := []byte(`{"event":"transaction.approved","data":{"txn_amount":999}}`)
	require.False(t, VerifySignature(tampered, sig, "sk_test_secret"))
}

func TestVerifySignature_WrongSecret(t *testing.T) {
	body := []byte(`{}`)
	sig := SignBody(body, "sk_live_a")
	require.False(t, VerifySignature(body, sig, "sk_live_b"))
}

func TestVerifySignature_EmptyInputsRejected(t *testing.T) {
	body := []byte(`{}`)
	require.False(t, VerifySignature(body, "", "secret"))
	require.False(t, VerifySignature(body, SignBody(body, ""), ""))
	require.False(t, VerifySignature(body, "not-hex-at-all", "secret"))
}
