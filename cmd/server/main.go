package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"razorpay-be/internal/billing"
	"razorpay-be/internal/checkout"
	"razorpay-be/internal/config"
	"razorpay-be/internal/db"
	"razorpay-be/internal/handler"
	"razorpay-be/internal/logger"
	"razorpay-be/internal/middleware"
	"razorpay-be/internal/razorpay"
	"razorpay-be/internal/reconcile"
	"razorpay-be/internal/settlement"

	"go.uber.org/zap"
)

func main() {
	cfg := config.LoadConfig()
	logger.Init(cfg.AppEnv)
	defer logger.Sync()

	database := db.InitDB(cfg)
	defer database.Close()

	srv, cleanup, err := newServer(cfg, database)
	if err != nil {
		logger.L().Fatal("failed to build server", zap.Error(err))
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.L().Info("🚀 server running", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.L().Fatal("server stopped", zap.Error(err))
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.L().Error("graceful shutdown failed", zap.Error(err))
	}
}

// newServer wires every dependency. The returned cleanup stops background
// work and closes the settlement guard.
func newServer(cfg *config.Config, database *sql.DB) (*http.Server, func(), error) {
	rzp, err := razorpay.NewClient(razorpay.Config{
		KeyID:         cfg.RazorpayKeyID,
		KeySecret:     cfg.RazorpayKeySecret,
		TestKeyID:     cfg.RazorpayTestKeyID,
		TestKeySecret: cfg.RazorpayTestKeySecret,
		TestMode:      cfg.RazorpayTestMode,
	})
	if err != nil {
		return nil, nil, err
	}

	repo := billing.NewRepository(database)
	invoiceSvc := billing.NewInvoiceService(database)

	guard, closeGuard, err := newGuard(cfg, repo)
	if err != nil {
		return nil, nil, err
	}

	settler := settlement.NewSettler(guard, repo, billing.NewLedger(database), invoiceSvc)
	reconciler := reconcile.NewReconciler(repo, repo, rzp, settler, nil)
	checkoutSvc := checkout.NewService(repo, repo, invoiceSvc, billing.NewPayGatewayService(cfg.AppURL), rzp)
	h := handler.NewHandler(repo, checkoutSvc, reconciler, reconciler.Stats(), cfg.AppURL)

	limiter := middleware.NewRateLimiter(cfg.InternalSecretKey)
	stopLimiter := make(chan struct{})
	go limiter.Run(time.Minute, stopLimiter)

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           setupRouter(h, limiter, []byte(cfg.JWTSecret)),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	cleanup := func() {
		close(stopLimiter)
		if err := closeGuard(); err != nil {
			logger.L().Error("failed to close settlement guard", zap.Error(err))
		}
	}
	return srv, cleanup, nil
}

func newGuard(cfg *config.Config, repo billing.SettlementRepository) (settlement.Guard, func() error, error) {
	switch cfg.SettlementGuard {
	case config.GuardBolt:
		g, err := settlement.NewBoltGuard(cfg.BoltPath)
		if err != nil {
			return nil, nil, fmt.Errorf("open bolt guard %s: %w", cfg.BoltPath, err)
		}
		logger.L().Info("settlement guard: bolt", zap.String("path", cfg.BoltPath))
		return g, g.Close, nil
	case config.GuardPostgres, "":
		logger.L().Info("settlement guard: postgres")
		return settlement.NewPostgresGuard(repo), func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unknown settlement guard %q", cfg.SettlementGuard)
	}
}

func setupRouter(h *handler.Handler, limiter *middleware.RateLimiter, jwtSecret []byte) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, "OK")
	})
	h.Register(mux)

	var chain http.Handler = mux
	chain = limiter.Middleware(chain)
	chain = middleware.AuthMiddleware(jwtSecret)(chain)
	chain = logger.LoggingMiddleware(chain)
	chain = logger.RequestIDMiddleware(chain)
	return chain
}
