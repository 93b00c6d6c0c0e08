// Command foreman-mcp-http starts the Foreman MCP HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"foreman-mcp/internal/config"
	"foreman-mcp/internal/foreman"
	"foreman-mcp/internal/logging"
	"foreman-mcp/internal/server"
	"foreman-mcp/internal/tools"
)

var version = "dev"

func main() {
	fs := config.Flags()
	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	cfg, err := config.Load(fs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(2)
	}
	logger, err := logging.New(cfg.Log.Level)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Server error", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Server.Token == "" {
		logger.Warn("No token set; MCP endpoints are open. Set server.token to secure them.")
	}
	if !cfg.Foreman.VerifySSL {
		logger.Info("Foreman TLS certificate verification is disabled")
	}

	initCtx, cancel := context.WithTimeout(ctx, cfg.Foreman.Timeout)
	client, err := foreman.New(initCtx, foreman.Config{
		BaseURL:   cfg.Foreman.URL,
		Username:  cfg.Foreman.Username,
		Password:  cfg.Foreman.Password,
		VerifySSL: cfg.Foreman.VerifySSL,
	}, nil, logger)
	cancel()
	if err != nil {
		return fmt.Errorf("connect to foreman: %w", err)
	}

	dispatcher, err := tools.NewDispatcher(client,
		tools.WithLogger(logger.Named("tools")),
		tools.WithCallTimeout(cfg.Foreman.Timeout))
	if err != nil {
		return err
	}

	srv := server.New(server.Config{
		Name:      "foreman-mcp",
		Version:   version,
		Token:     cfg.Server.Token,
		RateLimit: cfg.Server.RateLimit,
		RateBurst: cfg.Server.RateBurst,
	}, dispatcher, logger)

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting MCP HTTP server",
			zap.String("addr", httpServer.Addr),
			zap.Bool("tls", cfg.Server.TLSEnabled()),
			zap.String("foreman", client.BaseURL))
		var err error
		if cfg.Server.TLSEnabled() {
			err = httpServer.ListenAndServeTLS(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile)
		} else {
			err = httpServer.ListenAndServe()
		}
		if !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	srv.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
