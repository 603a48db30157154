package paystack

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
)

// ValidSignature verifies the HMAC-SHA512 signature the gateway computes over
// the raw webhook body with the shared secret key.
func (c *Client) ValidSignature(payload []byte, header string) bool {
	return ValidSignature(payload, c.SigningSecret(), header)
}

// ValidSignature checks the hex-encoded HMAC-SHA512 of payload against header.
func ValidSignature(payload []byte, secret, header string) bool {
	if header == "" || secret == "" {
		return false
	}
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(header))
}
