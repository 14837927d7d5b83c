package paystack

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
)

func signBody(body []byte, secret string) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignature(t *testing.T) {
	secret := "sk_test_abc123"
	body := []byte(`{"event":"charge.succeeded","data":{"reference":"ref_123","id":999,"amount":500000}}`)

	t.Run("valid signature", func(t *testing.T) {
		sig := signBody(body, secret)
		assert.True(t, VerifySignature(body, sig, secret))
	})

	t.Run("wrong secret", func(t *testing.T) {
		sig := signBody(body, "sk_test_other")
		assert.False(t, VerifySignature(body, sig, secret))
	})

	t.Run("tampered body", func(t *testing.T) {
		sig := signBody(body, secret)
		tampered := []byte(`{"event":"charge.succeeded","data":{"reference":"ref_123","id":999,"amount":900000}}`)
		assert.False(t, VerifySignature(tampered, sig, secret))
	})

	t.Run("signature corrupted by one byte", func(t *testing.T) {
		sig := signBody(body, secret)
		corrupted := []byte(sig)
		if corrupted[0] == 'a' {
			corrupted[0] = 'b'
		} else {
			corrupted[0] = 'a'
		}
		assert.False(t, VerifySignature(body, string(corrupted), secret))
	})

	t.Run("truncated signature", func(t *testing.T) {
		sig := signBody(body, secret)
		assert.False(t, VerifySignature(body, sig[:len(sig)-2], secret))
	})

	t.Run("missing signature header", func(t *testing.T) {
		assert.False(t, VerifySignature(body, "", secret))
	})

	t.Run("missing secret fails closed", func(t *testing.T) {
		sig := signBody(body, "")
		assert.False(t, VerifySignature(body, sig, ""))
	})
}
