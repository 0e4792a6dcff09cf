// Command verifierd serves presentation verification over HTTP and websocket.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"tlsn-verifier/inspect"
	"tlsn-verifier/notary"
	"tlsn-verifier/server"
	"tlsn-verifier/shared"
)

func main() {
	cfg, err := server.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := shared.NewLoggerFromEnv("verifierd")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	notary.SetLogger(logger)
	inspect.SetLogger(logger.Logger)

	logger.Info("Starting verifier service",
		zap.Int("port", cfg.Port),
		zap.Bool("development", cfg.Development),
		zap.Bool("receipts", cfg.ReceiptSecret != ""),
		zap.Int64("max_body_bytes", cfg.MaxBodyBytes),
		zap.String("format_version", notary.FormatVersion))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.New(cfg, logger).ListenAndServe(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Verifier service stopped", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("Verifier service stopped")
}
