// Package payment holds the processor signature check.
package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Signは hex(HMAC-SHA256(secret, orderRef + "|" + paymentRef))
func Sign(externalOrderRef, externalPaymentRef string, secret []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(externalOrderRef + "|" + externalPaymentRef))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignatureは定数時間で比較する。不一致はfalseのみ（エラーにしない）
func VerifySignature(externalOrderRef, externalPaymentRef, claimedSignature string, secret []byte) bool {
	if claimedSignature == "" {
		return false
	}
	expected := Sign(externalOrderRef, externalPaymentRef, secret)
	return hmac.Equal([]byte(expected), []byte(claimedSignature))
}
