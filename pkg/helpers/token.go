package helpers

import (
	"crypto/rand"
	"encoding/base64"
)

// Redis keys for one-shot tokens issued by the verify/reset flows.

// KeyVerifyToken maps an email verification token to a user id.
func KeyVerifyToken(t string) string { return "email:verify:token:" + t }

// KeyResetToken maps a password reset token to a user id.
func KeyResetToken(t string) string { return "pwd:reset:token:" + t }

// KeyVerified caches the verified flag for a user id.
func KeyVerified(uid string) string { return "user:verified:" + uid }

// GenToken returns n random bytes encoded as an URL-safe string.
func GenToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
