// Command server runs the missive message service.
//
// Configuration is read from a YAML file and the environment; see
// pkg/config for the layering. Common variables:
//
//	MISSIVE_CONFIG      - Path to the config file
//	MISSIVE_PORT        - Listen port (default: 3000)
//	MISSIVE_JWT_SECRET  - Shared secret of the gateway token
//	MISSIVE_STORAGE     - Store type: "memory", "postgres" or "gorm"
//	MISSIVE_BLOB        - Attachment store: "filesystem", "minio" or "s3"
//	MISSIVE_DEBUG       - Debug categories (auth,message,blob,storage,http)
//	MISSIVE_LOG_LEVEL   - TRACE, DEBUG, INFO, WARN or ERROR
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rhuss/missive/pkg/config"
	"github.com/rhuss/missive/pkg/credential"
	"github.com/rhuss/missive/pkg/debug"
	"github.com/rhuss/missive/pkg/message"
	"github.com/rhuss/missive/pkg/project"
	"github.com/rhuss/missive/pkg/transport"
	transporthttp "github.com/rhuss/missive/pkg/transport/http"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := debug.Init(debug.Options{JSON: !cfg.Server.Development()})
	if cats := debug.Categories(); len(cats) > 0 {
		logger.Info("debug categories enabled", "categories", cats)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := buildStore(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("creating store: %w", err)
	}
	defer store.Close()
	slog.Info("storage enabled", "type", cfg.Storage.Type)

	blobs, err := buildBlobs(ctx, cfg.Blob)
	if err != nil {
		return fmt.Errorf("creating attachment store: %w", err)
	}
	slog.Info("attachments enabled", "type", cfg.Blob.Type)

	limiter, err := buildLimiter(cfg.RateLimit)
	if err != nil {
		return fmt.Errorf("creating rate limiter: %w", err)
	}
	defer limiter.Close()

	chain, err := buildAuthChain(cfg.Auth)
	if err != nil {
		return fmt.Errorf("creating authenticator: %w", err)
	}

	messages := message.New(store, blobs, credential.NewBcrypt(credential.DefaultCost),
		message.WithRateLimiter(limiter),
	)
	projects := project.New(store, messages)

	adapterCfg := transporthttp.Config{
		MaxBodySize:         cfg.Server.MaxBodySize,
		MaxFileSize:         cfg.Blob.MaxFileSize,
		AllowedContentTypes: cfg.Blob.AllowedContentTypes,
		Development:         cfg.Server.Development(),
		Health:              healthChecks{store, limiter},
	}
	metrics := cfg.Observability.Metrics
	if metrics.Enabled && metrics.Port == 0 {
		adapterCfg.MetricsPath = metrics.Path
	}

	proxies, err := transport.NewTrustedProxies(cfg.Server.TrustedProxies)
	if err != nil {
		return fmt.Errorf("parsing trusted proxies: %w", err)
	}

	srv := transporthttp.NewServer(projects, messages, chain,
		transporthttp.WithAddr(":"+strconv.Itoa(cfg.Server.Port)),
		transporthttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.IdleTimeout),
		transporthttp.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
		transporthttp.WithAdapterConfig(adapterCfg),
		transporthttp.WithLogger(logger),
		transporthttp.WithTrustedProxies(proxies),
		transporthttp.WithMiddleware(
			transport.CORS(transport.CORSConfig{
				Origins:     cfg.CORS.Origins,
				Methods:     cfg.CORS.Methods,
				Credentials: cfg.CORS.Credentials,
			}, cfg.Auth.Header, transporthttp.PasswordHeader),
			transport.SecurityHeaders(),
		),
	)

	if metrics.Enabled && metrics.Port != 0 {
		go serveMetrics(ctx, metrics.Port, metrics.Path)
	}

	slog.Info("missive starting",
		"port", cfg.Server.Port,
		"environment", cfg.Server.Environment,
		"auth", cfg.Auth.Type,
		"rate_limit", cfg.RateLimit.Type,
	)
	return srv.Run(ctx)
}

// serveMetrics exposes Prometheus metrics on a dedicated port until ctx is
// done.
func serveMetrics(ctx context.Context, port int, path string) {
	mux := http.NewServeMux()
	mux.Handle("GET "+path, promhttp.Handler())

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	slog.Info("metrics server starting", "port", port, "path", path)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("metrics server failed", "error", err)
	}
}
