package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"slices"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rhuss/missive/pkg/api"
	"github.com/rhuss/missive/pkg/auth"
	"github.com/rhuss/missive/pkg/auth/ownership"
	"github.com/rhuss/missive/pkg/debug"
	"github.com/rhuss/missive/pkg/transport"
)

// Adapter serves the project and message API over HTTP.
// It routes requests through the guard pipelines to the services and
// serializes their results.
type Adapter struct {
	projects transport.ProjectService
	messages transport.MessageService
	mux      *http.ServeMux
	handler  http.Handler
	config   Config
}

// Config holds configuration for the HTTP adapter.
type Config struct {
	MaxBodySize         int64
	MaxFileSize         int64
	AllowedContentTypes []string

	// Development enables the gateway feedback routes under /dev.
	Development bool

	// MetricsPath mounts the Prometheus handler on the API mux. Empty
	// disables it (metrics may be served on a dedicated port instead).
	MetricsPath string

	// Health is consulted by /readyz. Nil means always ready.
	Health transport.HealthChecker
}

// DefaultConfig returns the default adapter configuration.
func DefaultConfig() Config {
	return Config{
		MaxBodySize:         1 << 20, // 1 MB
		MaxFileSize:         10 << 20, // 10 MB
		AllowedContentTypes: []string{"image/jpeg", "image/png"},
		MetricsPath:         "/metrics",
	}
}

// NewAdapter creates an HTTP adapter. Project routes require an identity
// resolved by chain; project-scoped routes additionally require that the
// caller owns the project. Message routes addressed by message id carry no
// identity and are gated by the message password inside the service.
// The given middleware wraps the whole mux in order.
func NewAdapter(projects transport.ProjectService, messages transport.MessageService, chain *auth.AuthChain, cfg Config, middlewares ...transport.Middleware) *Adapter {
	a := &Adapter{
		projects: projects,
		messages: messages,
		mux:      http.NewServeMux(),
		config:   cfg,
	}

	authed := transport.Chain(auth.Middleware(chain))
	owned := transport.Chain(auth.Middleware(chain), ownership.Require(projects))

	a.mux.Handle("GET /project/list/all", authed(http.HandlerFunc(a.handleListProjects)))
	a.mux.Handle("GET /project/{projectId}", owned(http.HandlerFunc(a.handleGetProject)))
	a.mux.Handle("POST /project", authed(http.HandlerFunc(a.handleCreateProject)))
	a.mux.Handle("PATCH /project/update/{projectId}", owned(http.HandlerFunc(a.handleRenameProject)))
	a.mux.Handle("DELETE /project/{projectId}", owned(http.HandlerFunc(a.handleDeleteProject)))

	a.mux.Handle("GET /admin/message/list/{projectId}", owned(http.HandlerFunc(a.handleListMessages)))
	a.mux.Handle("POST /admin/message/{projectId}", owned(http.HandlerFunc(a.handleCreateMessage)))
	a.mux.Handle("PATCH /admin/message/{projectId}/{messageId}", owned(http.HandlerFunc(a.handleUpdateMessage)))
	a.mux.Handle("DELETE /admin/message/{projectId}/{messageId}", owned(http.HandlerFunc(a.handleDeleteMessage)))
	a.mux.Handle("DELETE /admin/message/{projectId}", owned(http.HandlerFunc(a.handleDeleteMessages)))

	a.mux.HandleFunc("GET /message/{messageId}", a.handleMessageSummary)
	a.mux.HandleFunc("POST /message/{messageId}", a.handleReadMessage)
	a.mux.HandleFunc("PATCH /message/{messageId}/password", a.handleUpdatePassword)
	a.mux.HandleFunc("GET /message/{messageId}/image", a.handleDownload)
	a.mux.HandleFunc("POST /message/{messageId}/image", a.handleUpload)

	a.mux.HandleFunc("GET /healthz", a.handleHealthz)
	a.mux.HandleFunc("GET /readyz", a.handleReadyz)
	if cfg.MetricsPath != "" {
		a.mux.Handle("GET "+cfg.MetricsPath, promhttp.Handler())
	}

	if cfg.Development {
		a.mux.HandleFunc("GET /dev/gateway-feedback/headers", a.handleEchoHeaders)
		a.mux.Handle("GET /dev/gateway-feedback/uuid", authed(http.HandlerFunc(a.handleEchoUUID)))
	}

	a.handler = a.mux
	if len(middlewares) > 0 {
		a.handler = transport.Chain(middlewares...)(a.mux)
	}
	return a
}

// Handler returns the http.Handler for this adapter. Use this to integrate
// with an http.Server or test with httptest.
func (a *Adapter) Handler() http.Handler {
	return a.handler
}

// decodeJSON reads a size-limited JSON body into v. An empty body leaves v
// untouched so that validation reports the missing fields. It writes the
// error response and returns false on failure.
func (a *Adapter) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if ct := r.Header.Get("Content-Type"); ct != "" {
		if mt, _, err := mime.ParseMediaType(ct); err != nil || mt != "application/json" {
			transport.WriteErrorResponse(w,
				api.NewInvalidRequestError("content_type", "Content-Type must be application/json"),
				http.StatusUnsupportedMediaType,
			)
			return false
		}
	}

	r.Body = http.MaxBytesReader(w, r.Body, a.config.MaxBodySize)

	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			transport.WriteAPIError(w,
				api.NewTooLargeError("body", fmt.Sprintf("request body too large (max %d bytes)", a.config.MaxBodySize)),
			)
			return false
		}
		debug.Log("http", "request body rejected", "path", r.URL.Path, "error", err)
		transport.WriteAPIError(w, api.NewInvalidRequestError("body", "invalid JSON: "+err.Error()))
		return false
	}
	return true
}

// allowedContentType reports whether the media type of ct is accepted for
// attachments.
func (a *Adapter) allowedContentType(ct string) bool {
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return false
	}
	return slices.Contains(a.config.AllowedContentTypes, mt)
}

// password normalizes a client supplied password: empty means none.
func password(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func passwordPtr(p *string) *string {
	if p == nil {
		return nil
	}
	return password(*p)
}

func (a *Adapter) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	transport.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *Adapter) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if a.config.Health != nil {
		if err := a.config.Health.HealthCheck(r.Context()); err != nil {
			transport.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unavailable",
				"error":  err.Error(),
			})
			return
		}
	}
	transport.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleEchoHeaders returns the request headers as the gateway forwarded
// them.
func (a *Adapter) handleEchoHeaders(w http.ResponseWriter, r *http.Request) {
	headers := make(map[string]string, len(r.Header))
	for name := range r.Header {
		headers[http.CanonicalHeaderKey(name)] = r.Header.Get(name)
	}
	transport.WriteJSON(w, http.StatusOK, map[string]any{"headers": headers})
}

// handleEchoUUID returns the identity resolved from the gateway token.
func (a *Adapter) handleEchoUUID(w http.ResponseWriter, r *http.Request) {
	id := auth.RequireIdentity(w, r)
	if id == nil {
		return
	}
	transport.WriteJSON(w, http.StatusOK, map[string]string{"uuid": id.Subject})
}
