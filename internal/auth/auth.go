package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrInvalidKey is returned for keys that do not match any configured hash.
var ErrInvalidKey = errors.New("invalid API key")

// Key is a named API key hash
type Key struct {
	Name    string
	KeyHash string
}

// Authenticator validates API keys against stored SHA-256 hashes
type Authenticator struct {
	keys map[string]Key // keyhash -> key
}

// NewAuthenticator creates a new authenticator from key hashes
func NewAuthenticator(keys []Key) *Authenticator {
	a := &Authenticator{
		keys: make(map[string]Key, len(keys)),
	}
	for _, k := range keys {
		a.keys[strings.ToLower(k.KeyHash)] = k
	}
	return a
}

// ValidateAPIKey validates an API key and returns the matching key entry
func (a *Authenticator) ValidateAPIKey(apiKey string) (Key, error) {
	keyHash := HashAPIKey(apiKey)

	k, ok := a.keys[keyHash]
	if !ok {
		return Key{}, ErrInvalidKey
	}

	// Constant-time comparison to prevent timing attacks
	if subtle.ConstantTimeCompare([]byte(keyHash), []byte(strings.ToLower(k.KeyHash))) != 1 {
		return Key{}, ErrInvalidKey
	}
	return k, nil
}

// ExtractAPIKey extracts the API key from the Authorization header
func ExtractAPIKey(r *http.Request) (string, error) {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return "", fmt.Errorf("missing Authorization header")
	}

	// Support "Bearer <key>" format
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid Authorization header format")
	}

	if strings.ToLower(parts[0]) != "bearer" {
		return "", fmt.Errorf("unsupported authorization scheme")
	}

	return parts[1], nil
}

// HashAPIKey creates a SHA-256 hash of an API key for storage
func HashAPIKey(apiKey string) string {
	hash := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(hash[:])
}
