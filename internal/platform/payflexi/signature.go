package payflexi

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
)

// SignatureHeader carries the webhook body HMAC, hex encoded.
const SignatureHeader = "X-Payflexi-Signature"

// VerifySignature checks that rawBody was signed with secret. The comparison
// must run over the raw, unparsed body: re-serialized JSON is not guaranteed
// to be byte-identical to what the provider signed.
func VerifySignature(rawBody []byte, signature, secret string) bool {
	if signature == "" || secret == "" {
		return false
	}
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(rawBody)
	expected := hex.EncodeToString(mac.Sum(nil))
	// hmac.Equal keeps the comparison constant-time.
	return hmac.Equal([]byte(expected), []byte(signature))
}

// SignBody computes the hex HMAC-SHA-512 of body. Test helper and reference
// implementation of the provider's signing scheme.
func SignBody(body []byte, secret string) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
