package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// ExpectedSignature is hex(HMAC-SHA256(secret, orderID + "|" + paymentID)).
func ExpectedSignature(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature compares in constant time, byte for byte against the lowercase hex digest.
func VerifySignature(secret, orderID, paymentID, signature string) bool {
	expected := ExpectedSignature(secret, orderID, paymentID)
	return hmac.Equal([]byte(expected), []byte(signature))
}
