// Package apikey provides an API key authenticator that validates keys
// presented in a request header against a static key store using SHA-256
// hashing and constant-time comparison. Each key maps to a fixed identity
// UUID, so service accounts own projects like any other caller.
package apikey

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rhuss/missive/pkg/auth"
)

// KeyEntry maps a key hash to an identity.
type KeyEntry struct {
	KeyHash  [32]byte
	Identity auth.Identity
}

// Authenticator validates keys against a static key store.
type Authenticator struct {
	header string
	keys   []KeyEntry
}

// RawKeyEntry is the configuration format for API keys.
type RawKeyEntry struct {
	Key     string
	Subject string
}

// New creates an API key authenticator reading keys from header. Keys are
// hashed immediately; plaintext keys are not stored. Every subject must be
// a UUID.
func New(header string, entries []RawKeyEntry) (*Authenticator, error) {
	if header == "" {
		header = "Authorization"
	}
	a := &Authenticator{header: header}
	for i, e := range entries {
		if e.Key == "" {
			return nil, fmt.Errorf("apikey: entry %d has an empty key", i)
		}
		id, err := uuid.Parse(e.Subject)
		if err != nil || len(e.Subject) != 36 {
			return nil, fmt.Errorf("apikey: entry %d subject %q is not a UUID", i, e.Subject)
		}
		a.keys = append(a.keys, KeyEntry{
			KeyHash: sha256.Sum256([]byte(e.Key)),
			Identity: auth.Identity{
				Subject: id.String(),
				Method:  "apikey",
			},
		})
	}
	return a, nil
}

// Authenticate extracts the key and validates it.
// Returns Yes if valid, No if a non-JWT value is present but unknown,
// Abstain if the header is absent or carries a JWT (left to the jwt
// authenticator sharing the header).
func (a *Authenticator) Authenticate(_ context.Context, r *http.Request) auth.AuthResult {
	value := strings.TrimSpace(r.Header.Get(a.header))
	if value == "" {
		return auth.AuthResult{Decision: auth.Abstain}
	}
	value = strings.TrimPrefix(value, "Bearer ")

	if looksLikeJWT(value) {
		return auth.AuthResult{Decision: auth.Abstain}
	}

	// Hash the key and compare against stored hashes.
	keyHash := sha256.Sum256([]byte(value))

	for _, entry := range a.keys {
		if subtle.ConstantTimeCompare(keyHash[:], entry.KeyHash[:]) == 1 {
			// Copy identity to avoid shared state.
			id := entry.Identity
			return auth.AuthResult{Decision: auth.Yes, Identity: &id}
		}
	}

	return auth.AuthResult{Decision: auth.No, Err: auth.ErrUnauthenticated}
}

// looksLikeJWT reports whether v has the three dot-separated segments of a
// compact JWS.
func looksLikeJWT(v string) bool {
	return strings.Count(v, ".") == 2
}
