package crypto

import (
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// Purposes for the sub-keys expanded from the configured session key.
const (
	PurposeCookieAuth       = "cookie-auth"
	PurposeCookieEncryption = "cookie-encryption"
	PurposeCSRF             = "csrf"
	PurposeToken            = "session-token"
)

// Keys holds one independent 32-byte key per consumer of the session key.
type Keys struct {
	CookieAuth       []byte
	CookieEncryption []byte
	CSRF             []byte
	Token            []byte
}

// DeriveKey expands secret into a 32-byte key bound to purpose (HKDF-SHA256).
func DeriveKey(secret, purpose string) []byte {
	r := hkdf.New(sha256.New, []byte(secret), nil, []byte(purpose))
	key := make([]byte, 32)
	if _, err := io.ReadFull(r, key); err != nil {
		// HKDF only fails past 255*32 bytes of output.
		panic(fmt.Sprintf("critical security error: failed to derive key: %v", err))
	}
	return key
}

func DeriveKeys(secret string) Keys {
	return Keys{
		CookieAuth:       DeriveKey(secret, PurposeCookieAuth),
		CookieEncryption: DeriveKey(secret, PurposeCookieEncryption),
		CSRF:             DeriveKey(secret, PurposeCSRF),
		Token:            DeriveKey(secret, PurposeToken),
	}
}
