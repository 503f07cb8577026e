package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/rentledger/internal/audit"
	auditStore "github.com/MrJamesThe3rd/rentledger/internal/audit/store"
	"github.com/MrJamesThe3rd/rentledger/internal/auth"
	"github.com/MrJamesThe3rd/rentledger/internal/config"
	"github.com/MrJamesThe3rd/rentledger/internal/database"
	rlHttp "github.com/MrJamesThe3rd/rentledger/internal/http"
	invoiceHandler "github.com/MrJamesThe3rd/rentledger/internal/http/invoice"
	paymentHandler "github.com/MrJamesThe3rd/rentledger/internal/http/payment"
	"github.com/MrJamesThe3rd/rentledger/internal/settlement"
	"github.com/MrJamesThe3rd/rentledger/internal/settlement/memstore"
	ledgerStore "github.com/MrJamesThe3rd/rentledger/internal/settlement/store"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	slog.SetDefault(newLogger(cfg))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ledger, auditRepo, closeStorage, err := openStorage(ctx, cfg)
	if err != nil {
		slog.Error("failed to open storage", "storage", cfg.App.Storage, "error", err)
		os.Exit(1)
	}
	defer closeStorage()

	settlementService := settlement.NewService(ledger, audit.NewService(auditRepo))

	var (
		paymentH = paymentHandler.NewHandler(settlementService)
		invoiceH = invoiceHandler.NewHandler(settlementService)
	)

	router := rlHttp.New(
		rlHttp.Options{AllowedOrigins: cfg.CORS.AllowedOrigins, Timeout: cfg.Server.Timeout},
		auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer),
		paymentH,
		invoiceH,
	)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.Timeout + 5*time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("failed to shut down server", "error", err)
		}
	}()

	slog.Info("starting server", "app", cfg.App.Name, "addr", srv.Addr, "storage", cfg.App.Storage)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel()}

	if cfg.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}

	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func openStorage(ctx context.Context, cfg *config.Config) (settlement.Repository, audit.Repository, func(), error) {
	if cfg.App.Storage == config.StorageMemory {
		return seededMemstore(), audit.LogRepository{}, func() {}, nil
	}

	db, err := database.New(cfg.ConnectionString(), database.Options{MaxOpenConns: cfg.DB.MaxOpenConns})
	if err != nil {
		return nil, nil, nil, err
	}

	if err := database.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, nil, nil, err
	}

	return ledgerStore.New(db), auditStore.New(db), closer(db), nil
}

func closer(db *sql.DB) func() {
	return func() {
		if err := db.Close(); err != nil {
			slog.Error("failed to close database", "error", err)
		}
	}
}

// seededMemstore starts memory mode with one payment and two invoices to apply it to.
func seededMemstore() *memstore.Store {
	store := memstore.New()

	pago := store.AddPayment(decimal.NewFromInt(1000))
	f1 := store.AddInvoice(decimal.NewFromInt(500), settlement.InvoiceOpen)
	f2 := store.AddInvoice(decimal.NewFromInt(750), settlement.InvoiceOverdue)

	slog.Info("memory storage seeded", "pago_id", pago, "factura_ids", []int64{f1, f2})

	return store
}
