package jwt

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/rhuss/missive/pkg/auth"
)

var testSecret = []byte("test-gateway-secret")

const testUUID = "3f1c2a64-8a4e-4a7b-9a59-1c0b7d1f2e3a"

// createSignedToken creates a JWT signed with the given secret and method.
func createSignedToken(t *testing.T, method jwtlib.SigningMethod, key any, claims jwtlib.MapClaims) string {
	t.Helper()
	token := jwtlib.NewWithClaims(method, claims)
	tokenStr, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("signing test token: %v", err)
	}
	return tokenStr
}

func newTestAuthenticator(t *testing.T, cfgOverride func(*Config)) *Authenticator {
	t.Helper()
	cfg := Config{Secret: testSecret}
	if cfgOverride != nil {
		cfgOverride(&cfg)
	}
	authn, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return authn
}

func authenticate(authn *Authenticator, header, value string) auth.AuthResult {
	r := httptest.NewRequest("GET", "/project/list/all", nil)
	if header != "" {
		r.Header.Set(header, value)
	}
	return authn.Authenticate(context.Background(), r)
}

func TestNew_RequiresSecret(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("New without secret: error = nil, want error")
	}
}

func TestNew_DefaultHeader(t *testing.T) {
	authn := newTestAuthenticator(t, nil)
	if authn.Header() != DefaultHeader {
		t.Errorf("Header() = %q, want %q", authn.Header(), DefaultHeader)
	}
}

func TestJWT_ValidToken(t *testing.T) {
	authn := newTestAuthenticator(t, nil)

	token := createSignedToken(t, jwtlib.SigningMethodHS256, testSecret, jwtlib.MapClaims{
		"uuid": testUUID,
		"exp":  time.Now().Add(time.Hour).Unix(),
		"iat":  time.Now().Unix(),
	})

	result := authenticate(authn, DefaultHeader, token)

	if result.Decision != auth.Yes {
		t.Fatalf("Decision = %v, want Yes; err=%v", result.Decision, result.Err)
	}
	if result.Identity.Subject != testUUID {
		t.Errorf("Subject = %q, want %q", result.Identity.Subject, testUUID)
	}
	if result.Identity.Method != "jwt" {
		t.Errorf("Method = %q, want %q", result.Identity.Method, "jwt")
	}
}

func TestJWT_BearerPrefixAccepted(t *testing.T) {
	authn := newTestAuthenticator(t, nil)
	token := createSignedToken(t, jwtlib.SigningMethodHS256, testSecret, jwtlib.MapClaims{"uuid": testUUID})

	result := authenticate(authn, DefaultHeader, "Bearer "+token)
	if result.Decision != auth.Yes {
		t.Fatalf("Decision = %v, want Yes; err=%v", result.Decision, result.Err)
	}
}

func TestJWT_UppercaseUUIDNormalized(t *testing.T) {
	authn := newTestAuthenticator(t, nil)
	token := createSignedToken(t, jwtlib.SigningMethodHS256, testSecret, jwtlib.MapClaims{
		"uuid": strings.ToUpper(testUUID),
	})

	result := authenticate(authn, DefaultHeader, token)
	if result.Decision != auth.Yes {
		t.Fatalf("Decision = %v, want Yes; err=%v", result.Decision, result.Err)
	}
	if result.Identity.Subject != testUUID {
		t.Errorf("Subject = %q, want %q", result.Identity.Subject, testUUID)
	}
}

func TestJWT_OtherHMACMethods(t *testing.T) {
	authn := newTestAuthenticator(t, nil)
	for _, m := range []jwtlib.SigningMethod{jwtlib.SigningMethodHS384, jwtlib.SigningMethodHS512} {
		t.Run(m.Alg(), func(t *testing.T) {
			token := createSignedToken(t, m, testSecret, jwtlib.MapClaims{"uuid": testUUID})
			if result := authenticate(authn, DefaultHeader, token); result.Decision != auth.Yes {
				t.Errorf("Decision = %v, want Yes; err=%v", result.Decision, result.Err)
			}
		})
	}
}

func TestJWT_HeaderAbsentAbstains(t *testing.T) {
	authn := newTestAuthenticator(t, nil)

	result := authenticate(authn, "", "")
	if result.Decision != auth.Abstain {
		t.Errorf("Decision = %v, want Abstain", result.Decision)
	}

	// A token in a different header is not ours either.
	token := createSignedToken(t, jwtlib.SigningMethodHS256, testSecret, jwtlib.MapClaims{"uuid": testUUID})
	result = authenticate(authn, "Authorization", "Bearer "+token)
	if result.Decision != auth.Abstain {
		t.Errorf("Decision = %v, want Abstain for Authorization header", result.Decision)
	}
}

func TestJWT_CustomHeader(t *testing.T) {
	authn := newTestAuthenticator(t, func(c *Config) { c.Header = "x-identity" })
	token := createSignedToken(t, jwtlib.SigningMethodHS256, testSecret, jwtlib.MapClaims{"uuid": testUUID})

	if result := authenticate(authn, "X-Identity", token); result.Decision != auth.Yes {
		t.Errorf("Decision = %v, want Yes; err=%v", result.Decision, result.Err)
	}
	if result := authenticate(authn, DefaultHeader, token); result.Decision != auth.Abstain {
		t.Errorf("Decision = %v, want Abstain for default header", result.Decision)
	}
}

func TestJWT_Rejections(t *testing.T) {
	authn := newTestAuthenticator(t, func(c *Config) {
		c.Issuer = "gateway"
		c.Audience = "missive"
	})
	good := jwtlib.MapClaims{"uuid": testUUID, "iss": "gateway", "aud": "missive"}

	with := func(k string, v any) jwtlib.MapClaims {
		c := jwtlib.MapClaims{}
		for key, val := range good {
			c[key] = val
		}
		if v == nil {
			delete(c, k)
		} else {
			c[k] = v
		}
		return c
	}

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not-a-jwt"},
		{"wrong secret", createSignedToken(t, jwtlib.SigningMethodHS256, []byte("other"), good)},
		{"expired", createSignedToken(t, jwtlib.SigningMethodHS256, testSecret, with("exp", time.Now().Add(-time.Hour).Unix()))},
		{"not yet valid", createSignedToken(t, jwtlib.SigningMethodHS256, testSecret, with("nbf", time.Now().Add(time.Hour).Unix()))},
		{"wrong issuer", createSignedToken(t, jwtlib.SigningMethodHS256, testSecret, with("iss", "evil"))},
		{"wrong audience", createSignedToken(t, jwtlib.SigningMethodHS256, testSecret, with("aud", "other"))},
		{"missing uuid", createSignedToken(t, jwtlib.SigningMethodHS256, testSecret, with("uuid", nil))},
		{"uuid not a string", createSignedToken(t, jwtlib.SigningMethodHS256, testSecret, with("uuid", 42))},
		{"uuid malformed", createSignedToken(t, jwtlib.SigningMethodHS256, testSecret, with("uuid", "user-123"))},
		{"uuid urn form", createSignedToken(t, jwtlib.SigningMethodHS256, testSecret, with("uuid", "urn:uuid:"+testUUID))},
		{"alg none", createSignedToken(t, jwtlib.SigningMethodNone, jwtlib.UnsafeAllowNoneSignatureType, good)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := authenticate(authn, DefaultHeader, tt.token)
			if result.Decision != auth.No {
				t.Errorf("Decision = %v, want No", result.Decision)
			}
			if result.Identity != nil {
				t.Errorf("Identity = %+v, want nil", result.Identity)
			}
		})
	}
}

func TestJWT_Leeway(t *testing.T) {
	authn := newTestAuthenticator(t, func(c *Config) { c.Leeway = time.Minute })
	token := createSignedToken(t, jwtlib.SigningMethodHS256, testSecret, jwtlib.MapClaims{
		"uuid": testUUID,
		"exp":  time.Now().Add(-10 * time.Second).Unix(),
	})

	if result := authenticate(authn, DefaultHeader, token); result.Decision != auth.Yes {
		t.Errorf("Decision = %v, want Yes within leeway; err=%v", result.Decision, result.Err)
	}
}

func TestSign(t *testing.T) {
	authn := newTestAuthenticator(t, nil)

	token, err := Sign(testSecret, testUUID, time.Hour)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	result := authenticate(authn, DefaultHeader, token)
	if result.Decision != auth.Yes {
		t.Fatalf("Decision = %v, want Yes; err=%v", result.Decision, result.Err)
	}
	if result.Identity.Subject != testUUID {
		t.Errorf("Subject = %q, want %q", result.Identity.Subject, testUUID)
	}
}
