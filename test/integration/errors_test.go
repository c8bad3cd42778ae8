package integration

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/rhuss/missive/pkg/api"
	"github.com/rhuss/missive/pkg/auth/jwt"
)

func TestMissingAndInvalidToken(t *testing.T) {
	tests := []struct {
		name  string
		token string
	}{
		{"no token", ""},
		{"garbage token", "not-a-jwt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := send(t, request{method: http.MethodGet, path: "/project/list/all", token: tt.token})
			requireError(t, resp, http.StatusUnauthorized, api.ErrorTypeUnauthenticated)
		})
	}
}

func TestForeignProjectIsForbidden(t *testing.T) {
	owner := newUser(t)
	other := newUser(t)
	p := createProject(t, owner, "private")

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/project/" + p.ID},
		{http.MethodGet, "/admin/message/list/" + p.ID},
		{http.MethodDelete, "/admin/message/" + p.ID},
		{http.MethodDelete, "/project/" + p.ID},
	}
	for _, tc := range paths {
		resp := send(t, request{method: tc.method, path: tc.path, token: other.token})
		requireError(t, resp, http.StatusForbidden, api.ErrorTypeForbidden)
	}

	// The project is still there for its owner.
	resp := send(t, request{method: http.MethodGet, path: "/project/" + p.ID, token: owner.token})
	requireStatus(t, resp, http.StatusOK)
	resp.Body.Close()
}

func TestInvalidJSON(t *testing.T) {
	owner := newUser(t)
	req, err := http.NewRequest(http.MethodPost, testEnv.BaseURL()+"/project", bytes.NewReader([]byte(`{invalid json`)))
	if err != nil {
		t.Fatalf("creating request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(jwt.DefaultHeader, owner.token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	requireError(t, resp, http.StatusBadRequest, api.ErrorTypeInvalidRequest)
}

func TestUnknownMessage(t *testing.T) {
	requireError(t, readMessage(t, "does-not-exist", nil), http.StatusNotFound, api.ErrorTypeNotFound)
}

func TestDuplicateMessageID(t *testing.T) {
	owner := newUser(t)
	p := createProject(t, owner, "dupes")
	id := uuid.NewString()
	createMessage(t, owner, p.ID, api.CreateMessageRequest{Content: json.RawMessage(`{}`), MessageID: id})

	resp := send(t, request{
		method: http.MethodPost,
		path:   "/admin/message/" + p.ID,
		token:  owner.token,
		body:   api.CreateMessageRequest{Content: json.RawMessage(`{}`), MessageID: id},
	})
	requireError(t, resp, http.StatusConflict, api.ErrorTypeConflict)
}

func TestPasswordAttemptsAreLimited(t *testing.T) {
	owner := newUser(t)
	p := createProject(t, owner, "limited")
	m := createMessage(t, owner, p.ID, api.CreateMessageRequest{
		Content:         json.RawMessage(`{}`),
		InitialPassword: "secret",
	})

	for range attemptLimit {
		requireError(t, readMessage(t, m.ID, strPtr("wrong")), http.StatusUnauthorized, api.ErrorTypeUnauthenticated)
	}

	// Once exhausted, even the right password is turned away.
	requireError(t, readMessage(t, m.ID, strPtr("secret")), http.StatusTooManyRequests, api.ErrorTypeTooManyRequests)

	// Attempts are counted per message.
	other := createMessage(t, owner, p.ID, api.CreateMessageRequest{
		Content:         json.RawMessage(`{}`),
		InitialPassword: "secret",
	})
	resp := readMessage(t, other.ID, strPtr("secret"))
	requireStatus(t, resp, http.StatusOK)
	resp.Body.Close()
}

func TestCORS(t *testing.T) {
	req, err := http.NewRequest(http.MethodOptions, testEnv.BaseURL()+"/message/anything", nil)
	if err != nil {
		t.Fatalf("creating request: %v", err)
	}
	req.Header.Set("Origin", testOrigin)
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("preflight failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("preflight status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != testOrigin {
		t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, testOrigin)
	}
	if got := resp.Header.Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Errorf("Access-Control-Allow-Credentials = %q, want true", got)
	}

	// Unknown origins get no CORS headers.
	req.Header.Set("Origin", "http://evil.example.com")
	resp2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("preflight failed: %v", err)
	}
	defer resp2.Body.Close()
	if got := resp2.Header.Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Access-Control-Allow-Origin = %q for unknown origin, want empty", got)
	}
}

func TestPasswordAttemptsArePerCaller(t *testing.T) {
	owner := newUser(t)
	p := createProject(t, owner, "guessed")
	m := createMessage(t, owner, p.ID, api.CreateMessageRequest{
		Content:         json.RawMessage(`{}`),
		InitialPassword: "secret",
	})
	readFrom := func(addr, password string) *http.Response {
		return send(t, request{
			method:  http.MethodPost,
			path:    "/message/" + m.ID,
			body:    api.ReadMessageRequest{Password: strPtr(password)},
			headers: map[string]string{"X-Forwarded-For": addr},
		})
	}

	for range attemptLimit {
		requireError(t, readFrom("203.0.113.66", "wrong"), http.StatusUnauthorized, api.ErrorTypeUnauthenticated)
	}
	requireError(t, readFrom("203.0.113.66", "secret"), http.StatusTooManyRequests, api.ErrorTypeTooManyRequests)

	resp := readFrom("198.51.100.7", "secret")
	requireStatus(t, resp, http.StatusOK)
	resp.Body.Close()
}

func TestOverlongPasswordIsInvalid(t *testing.T) {
	owner := newUser(t)
	p := createProject(t, owner, "overlong")

	resp := send(t, request{
		method: http.MethodPost,
		path:   "/admin/message/" + p.ID,
		token:  owner.token,
		body: api.CreateMessageRequest{
			Content:         json.RawMessage(`{}`),
			InitialPassword: strings.Repeat("x", 100),
		},
	})
	apiErr := requireError(t, resp, http.StatusBadRequest, api.ErrorTypeInvalidRequest)
	if apiErr.Param != "initialPassword" {
		t.Errorf("param = %q, want %q", apiErr.Param, "initialPassword")
	}
}
