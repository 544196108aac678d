package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"strings"
)

// ExpectedSignature holds both encodings of the payment signature digest.
type ExpectedSignature struct {
	Hex    string
	Base64 string
}

// SignatureVerifier checks checkout signatures against the gateway key secret.
type SignatureVerifier struct {
	secret []byte
}

func NewSignatureVerifier(secret string) *SignatureVerifier {
	return &SignatureVerifier{secret: []byte(secret)}
}

// Expected computes HMAC-SHA256(secret, orderID + "|" + paymentID).
func (v *SignatureVerifier) Expected(orderID, paymentID string) ExpectedSignature {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(orderID + "|" + paymentID))
	sum := mac.Sum(nil)
	return ExpectedSignature{
		Hex:    hex.EncodeToString(sum),
		Base64: base64.StdEncoding.EncodeToString(sum),
	}
}

// Verify reports whether signature authenticates the order/payment pair. The
// trimmed signature may be the hex digest in any case or the exact base64 digest.
func (v *SignatureVerifier) Verify(orderID, paymentID, signature string) (bool, ExpectedSignature) {
	expected := v.Expected(orderID, paymentID)
	provided := strings.TrimSpace(signature)

	hexMatch := subtle.ConstantTimeCompare([]byte(expected.Hex), []byte(strings.ToLower(provided))) == 1
	b64Match := subtle.ConstantTimeCompare([]byte(expected.Base64), []byte(provided)) == 1

	return hexMatch || b64Match, expected
}
