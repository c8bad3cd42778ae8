// Package jwt provides an authenticator for the signed identity token that
// the upstream gateway forwards in a configurable request header.
//
// Tokens are HMAC-signed (HS256/384/512) with a shared secret. The payload
// must carry a UUID in the configured claim (default "uuid"); that UUID
// becomes the identity subject.
package jwt

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rhuss/missive/pkg/auth"
	"github.com/rhuss/missive/pkg/debug"
)

// DefaultHeader is the request header the gateway uses for the token.
const DefaultHeader = "x-gateway-jwt"

// Config holds the JWT authenticator configuration.
type Config struct {
	// Secret is the shared HMAC secret (required).
	Secret []byte

	// Header is the request header carrying the token. Default: "x-gateway-jwt".
	Header string

	// Issuer is the expected JWT issuer (iss claim). If empty, issuer is not validated.
	Issuer string

	// Audience is the expected JWT audience (aud claim). If empty, audience is not validated.
	Audience string

	// IdentityClaim is the claim holding the caller UUID. Default: "uuid".
	IdentityClaim string

	// Leeway tolerates clock skew when checking exp and nbf. Default: 0.
	Leeway time.Duration
}

// applyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) applyDefaults() {
	if c.Header == "" {
		c.Header = DefaultHeader
	}
	if c.IdentityClaim == "" {
		c.IdentityClaim = "uuid"
	}
}

// Authenticator validates gateway tokens.
type Authenticator struct {
	config Config
}

// New creates a JWT authenticator with the given configuration.
func New(cfg Config) (*Authenticator, error) {
	cfg.applyDefaults()
	if len(cfg.Secret) == 0 {
		return nil, errors.New("jwt: secret is required")
	}
	return &Authenticator{config: cfg}, nil
}

// Header returns the request header the authenticator reads.
func (a *Authenticator) Header() string {
	return a.config.Header
}

// Authenticate reads the token from the configured header, verifies it,
// and returns an identity on success.
//
// Decision outcomes:
//   - Abstain: header absent, so another authenticator may handle the request
//   - No: header present but empty, or the token is invalid (bad signature,
//     expired, wrong issuer, malformed or missing identity claim)
//   - Yes: valid token with a UUID identity
func (a *Authenticator) Authenticate(_ context.Context, r *http.Request) auth.AuthResult {
	values, present := r.Header[http.CanonicalHeaderKey(a.config.Header)]
	if !present {
		return auth.AuthResult{Decision: auth.Abstain}
	}

	tokenStr := ""
	if len(values) > 0 {
		tokenStr = strings.TrimSpace(values[0])
	}
	tokenStr = strings.TrimPrefix(tokenStr, "Bearer ")
	if tokenStr == "" {
		return auth.AuthResult{
			Decision: auth.No,
			Err:      fmt.Errorf("empty %s header", a.config.Header),
		}
	}

	token, err := jwtlib.Parse(tokenStr, func(token *jwtlib.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.config.Secret, nil
	}, a.parserOptions()...)
	if err != nil {
		debug.Log("auth", "JWT validation failed", "error", err)
		return auth.AuthResult{
			Decision: auth.No,
			Err:      fmt.Errorf("invalid JWT: %w", err),
		}
	}

	claims, ok := token.Claims.(jwtlib.MapClaims)
	if !ok || !token.Valid {
		return auth.AuthResult{
			Decision: auth.No,
			Err:      fmt.Errorf("invalid JWT claims"),
		}
	}

	subject, err := identityFromClaims(claims, a.config.IdentityClaim)
	if err != nil {
		return auth.AuthResult{Decision: auth.No, Err: err}
	}

	identity := &auth.Identity{
		Subject:  subject,
		Method:   "jwt",
		Metadata: make(map[string]string),
	}
	if iss := claimString(claims, "iss"); iss != "" {
		identity.Metadata["issuer"] = iss
	}

	return auth.AuthResult{
		Decision: auth.Yes,
		Identity: identity,
	}
}

// parserOptions builds JWT parser options based on the configuration.
func (a *Authenticator) parserOptions() []jwtlib.ParserOption {
	opts := []jwtlib.ParserOption{
		jwtlib.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
	}

	if a.config.Issuer != "" {
		opts = append(opts, jwtlib.WithIssuer(a.config.Issuer))
	}

	if a.config.Audience != "" {
		opts = append(opts, jwtlib.WithAudience(a.config.Audience))
	}

	if a.config.Leeway > 0 {
		opts = append(opts, jwtlib.WithLeeway(a.config.Leeway))
	}

	return opts
}

// identityFromClaims extracts the identity claim and checks that it is a
// canonical UUID. The subject is normalized to lower case so that ownership
// comparisons are exact.
func identityFromClaims(claims jwtlib.MapClaims, key string) (string, error) {
	raw := claimString(claims, key)
	if raw == "" {
		return "", fmt.Errorf("JWT missing %q claim", key)
	}
	if len(raw) != 36 {
		return "", fmt.Errorf("JWT %q claim is not a UUID", key)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("JWT %q claim is not a UUID: %w", key, err)
	}
	return id.String(), nil
}

// claimString extracts a string value from JWT claims.
// Returns empty string if the claim is missing or not a string.
func claimString(claims jwtlib.MapClaims, key string) string {
	val, ok := claims[key]
	if !ok {
		return ""
	}
	s, ok := val.(string)
	if !ok {
		return ""
	}
	return s
}

// Sign issues a token for subject, signed with secret. It is used by the
// mintoken command and by tests; production tokens come from the gateway.
func Sign(secret []byte, subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwtlib.MapClaims{
		"uuid": subject,
		"iat":  now.Unix(),
	}
	if ttl > 0 {
		claims["exp"] = now.Add(ttl).Unix()
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(secret)
}
