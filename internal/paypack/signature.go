package paypack

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
)

// VerifySignature reports whether signature matches the base64-encoded
// HMAC-SHA256 of rawBody keyed with secret.
//
// rawBody must be the exact bytes received on the wire: re-serialized JSON is
// not guaranteed byte-identical to the original payload and would fail
// verification. Any malformed input yields false, never an error, and the
// comparison is constant-time.
func VerifySignature(signature string, rawBody []byte, secret string) bool {
	if signature == "" || secret == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(rawBody)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(signature), []byte(expected))
}
