package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/contrib/instrumentation/runtime"

	"github.com/MrItzreal/izzy-go-stack/internal/auth"
	"github.com/MrItzreal/izzy-go-stack/internal/catalog"
	"github.com/MrItzreal/izzy-go-stack/internal/checkout"
	"github.com/MrItzreal/izzy-go-stack/internal/config"
	"github.com/MrItzreal/izzy-go-stack/internal/messaging"
	"github.com/MrItzreal/izzy-go-stack/internal/orders"
	"github.com/MrItzreal/izzy-go-stack/internal/payment"
	"github.com/MrItzreal/izzy-go-stack/internal/telemetry"
	"github.com/MrItzreal/izzy-go-stack/internal/webhook"
)

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, "checkout-api", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider("checkout-api", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize meter", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMeter(ctx) }()

	if err := runtime.Start(); err != nil {
		logger.Error("failed to start runtime instrumentation", "error", err)
		os.Exit(1)
	}

	db, err := telemetry.OpenDB("postgres", cfg.PostgresURL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if err := db.Ping(); err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	var publisher webhook.EventPublisher
	if len(cfg.KafkaBrokers) > 0 {
		producer := messaging.NewProducer(cfg.KafkaBrokers, messaging.TopicOrderPaid)
		defer func() { _ = producer.Close() }()
		publisher = producer
	}

	orderRepo := orders.NewRepository(db)
	catalogRepo := catalog.NewRepository(db)
	provider := payment.NewStripeProvider(cfg.StripeSecretKey, cfg.StripeWebhookSecret, cfg.AppBaseURL)

	checkoutHandler := checkout.NewHandler(orderRepo, catalogRepo, provider, logger)
	catalogHandler := catalog.NewHandler(catalogRepo, logger)
	webhookHandler := webhook.NewHandler(orderRepo, provider, publisher, logger)

	secret := []byte(cfg.JWTSecret)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /checkout", telemetry.WithHTTPRoute(auth.RequireUser(secret, checkoutHandler.HandleCheckout)))
	mux.HandleFunc("GET /orders", telemetry.WithHTTPRoute(auth.RequireUser(secret, checkoutHandler.HandleListOrders)))
	mux.HandleFunc("GET /orders/{id}", telemetry.WithHTTPRoute(auth.RequireUser(secret, checkoutHandler.HandleGetOrder)))
	mux.HandleFunc("GET /products", telemetry.WithHTTPRoute(catalogHandler.HandleList))
	mux.HandleFunc("GET /products/{id}", telemetry.WithHTTPRoute(catalogHandler.HandleGet))
	mux.HandleFunc("POST /webhooks/stripe", telemetry.WithHTTPRoute(webhookHandler.HandleStripeWebhook))
	mux.Handle("GET /metrics", metricsHandler)

	server := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: otelhttp.NewHandler(mux, "checkout-api",
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				if r.Pattern != "" {
					return r.Pattern
				}
				return r.Method + " " + r.URL.Path
			}),
		),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting checkout api", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
