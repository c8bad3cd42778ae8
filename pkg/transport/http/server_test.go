package http

import (
	"context"
	"net"
	gohttp "net/http"
	"testing"
	"time"

	"github.com/rhuss/missive/pkg/api"
	"github.com/rhuss/missive/pkg/auth"
	"github.com/rhuss/missive/pkg/transport"
)

// slowProjects answers project listings after a delay, everything else is
// unused by these tests.
type slowProjects struct {
	transport.ProjectService
	delay time.Duration
}

func (p *slowProjects) ListByOwner(ctx context.Context, _ string) ([]*api.Project, error) {
	select {
	case <-time.After(p.delay):
		return []*api.Project{}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type staticAuth struct{}

func (staticAuth) Authenticate(context.Context, *gohttp.Request) auth.AuthResult {
	return auth.AuthResult{Decision: auth.Yes, Identity: &auth.Identity{Subject: "0b5e0c3c-6a3e-4bd5-8f7a-5c1f3e0a9d21"}}
}

func newTestServer(delay time.Duration, opts ...ServerOption) *Server {
	chain := &auth.AuthChain{Authenticators: []auth.Authenticator{staticAuth{}}}
	return NewServer(&slowProjects{delay: delay}, nil, chain, opts...)
}

func serve(t *testing.T, srv *Server) (string, context.CancelFunc, <-chan error) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.ServeOn(ctx, ln) }()
	return "http://" + ln.Addr().String(), cancel, done
}

func TestServerStartsAndAcceptsRequests(t *testing.T) {
	srv := newTestServer(0)
	base, cancel, done := serve(t, srv)

	resp, err := gohttp.Get(base + "/healthz")
	if err != nil {
		t.Fatalf("GET error: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != gohttp.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, gohttp.StatusOK)
	}
	if resp.Header.Get(transport.RequestIDHeader) == "" {
		t.Error("default middleware did not set a request ID")
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("ServeOn returned %v", err)
	}
}

func TestServerGracefulShutdown(t *testing.T) {
	srv := newTestServer(200*time.Millisecond, WithShutdownTimeout(5*time.Second))
	base, cancel, done := serve(t, srv)

	responseCh := make(chan int, 1)
	go func() {
		resp, err := gohttp.Get(base + "/project/list/all")
		if err != nil {
			responseCh <- 0
			return
		}
		defer resp.Body.Close()
		responseCh <- resp.StatusCode
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	if status := <-responseCh; status != gohttp.StatusOK {
		t.Errorf("slow request status = %d, want %d", status, gohttp.StatusOK)
	}
	if err := <-done; err != nil {
		t.Errorf("ServeOn returned %v", err)
	}
}

func TestServerExtraMiddleware(t *testing.T) {
	srv := newTestServer(0, WithMiddleware(transport.SecurityHeaders()))
	base, cancel, done := serve(t, srv)
	defer func() { cancel(); <-done }()

	resp, err := gohttp.Get(base + "/healthz")
	if err != nil {
		t.Fatalf("GET error: %v", err)
	}
	resp.Body.Close()

	if got := resp.Header.Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want %q", got, "nosniff")
	}
}

func TestServerFunctionalOptions(t *testing.T) {
	adapterCfg := DefaultConfig()
	adapterCfg.MaxFileSize = 1024

	srv := newTestServer(0,
		WithAddr(":9999"),
		WithTimeouts(time.Second, 2*time.Second, 3*time.Second),
		WithShutdownTimeout(10*time.Second),
		WithAdapterConfig(adapterCfg),
	)

	if srv.config.Addr != ":9999" {
		t.Errorf("addr = %q, want %q", srv.config.Addr, ":9999")
	}
	if srv.httpServer.ReadTimeout != time.Second || srv.httpServer.WriteTimeout != 2*time.Second || srv.httpServer.IdleTimeout != 3*time.Second {
		t.Errorf("timeouts = %v/%v/%v, want 1s/2s/3s",
			srv.httpServer.ReadTimeout, srv.httpServer.WriteTimeout, srv.httpServer.IdleTimeout)
	}
	if srv.config.ShutdownTimeout != 10*time.Second {
		t.Errorf("shutdown timeout = %v, want %v", srv.config.ShutdownTimeout, 10*time.Second)
	}
	if srv.adapter.config.MaxFileSize != 1024 {
		t.Errorf("max file size = %d, want %d", srv.adapter.config.MaxFileSize, 1024)
	}
}
