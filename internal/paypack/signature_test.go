package paypack

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
)

func sign(t *testing.T, body []byte, secret string) string {
	t.Helper()
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestVerifySignature_Valid(t *testing.T) {
	body := []byte(`{"event_kind":"transaction:processed","data":{"ref":"abc123","status":"successful"}}`)
	secret := "webhook-secret"

	assert.True(t, VerifySignature(sign(t, body, secret), body, secret))
}

func TestVerifySignature_MutatedBody(t *testing.T) {
	body := []byte(`{"data":{"ref":"abc123","status":"successful"}}`)
	secret := "webhook-secret"
	signature := sign(t, body, secret)

	mutated := make([]byte, len(body))
	copy(mutated, body)
	mutated[10] ^= 0x01

	assert.False(t, VerifySignature(signature, mutated, secret))
}

func TestVerifySignature_MutatedSignature(t *testing.T) {
	body := []byte(`{"data":{"ref":"abc123","status":"successful"}}`)
	secret := "webhook-secret"
	signature := sign(t, body, secret)

	tampered := "A" + signature[1:]
	if tampered == signature {
		tampered = "B" + signature[1:]
	}

	assert.False(t, VerifySignature(tampered, body, secret))
}

func TestVerifySignature_WrongSecret(t *testing.T) {
	body := []byte(`{"data":{"ref":"abc123","status":"successful"}}`)
	signature := sign(t, body, "webhook-secret")

	assert.False(t, VerifySignature(signature, body, "other-secret"))
}

func TestVerifySignature_MissingSignature(t *testing.T) {
	body := []byte(`{"data":{"ref":"abc123","status":"successful"}}`)

	assert.False(t, VerifySignature("", body, "webhook-secret"))
}

func TestVerifySignature_GarbageSignature(t *testing.T) {
	body := []byte(`{"data":{"ref":"abc123","status":"successful"}}`)

	assert.False(t, VerifySignature("not-base64-%%%", body, "webhook-secret"))
	assert.False(t, VerifySignature("dG9vc2hvcnQ=", body, "webhook-secret"))
}

func TestVerifySignature_EmptySecret(t *testing.T) {
	body := []byte(`{}`)

	assert.False(t, VerifySignature(sign(t, body, "x"), body, ""))
}

func TestVerifySignature_EmptyBody(t *testing.T) {
	secret := "webhook-secret"
	body := []byte{}

	// An empty body still has a well-defined HMAC.
	assert.True(t, VerifySignature(sign(t, body, secret), body, secret))
}
