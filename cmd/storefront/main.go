package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"

	"github.com/yohannesjx/jsfashion-frontend/internal/cart"
	"github.com/yohannesjx/jsfashion-frontend/internal/cartsync"
	"github.com/yohannesjx/jsfashion-frontend/internal/checkout"
	"github.com/yohannesjx/jsfashion-frontend/internal/commerce"
	"github.com/yohannesjx/jsfashion-frontend/internal/payment"
	"github.com/yohannesjx/jsfashion-frontend/internal/web"
)

const defaultPort = "8080"

var log *logrus.Logger

func init() {
	log = logrus.New()
	log.Level = logrus.DebugLevel
	log.Formatter = &logrus.JSONFormatter{
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "severity",
			logrus.FieldKeyMsg:   "message",
		},
		TimestampFormat: time.RFC3339Nano,
	}
	log.Out = os.Stdout
}

func initTracerProvider(ctx context.Context) (*sdktrace.TracerProvider, error) {
	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if endpoint == "" {
		endpoint = "localhost:4317"
	}
	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String("storefront"),
			semconv.ServiceVersionKey.String("v1.0.0"),
		),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(sdktrace.NewBatchSpanProcessor(exporter)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return tp, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	ctx := context.Background()

	tp, err := initTracerProvider(ctx)
	if err != nil {
		log.Fatalf("failed to initialize tracer provider: %v", err)
	}
	defer func() {
		if err := tp.Shutdown(ctx); err != nil {
			log.Errorf("error shutting down tracer provider: %v", err)
		}
	}()

	shopAPIURL := os.Getenv("VENDURE_SHOP_API_URL")
	if shopAPIURL == "" {
		log.Fatal("VENDURE_SHOP_API_URL environment variable is required")
	}
	authToken := os.Getenv("VENDURE_AUTH_TOKEN")

	chapaBase := getenv("CHAPA_BASE_URL", "https://api.chapa.co/v1")
	chapaKey := os.Getenv("CHAPA_SECRET_KEY")
	baseURL := getenv("BASE_URL", "http://localhost:"+defaultPort)

	// Cart snapshots live in Redis when REDIS_ADDR is set; otherwise they
	// only last the process lifetime.
	var snapshots cart.SnapshotStore
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		log.Infof("using Redis snapshot store at %s", redisAddr)
		snapshots = cart.NewRedisSnapshotStore(redisAddr, getenv("CART_ID", "default"), log)
	} else {
		log.Info("REDIS_ADDR not set, using in-memory snapshot store")
		snapshots = cart.NewMemorySnapshotStore()
	}
	if err := snapshots.Initialize(ctx); err != nil {
		log.Fatalf("failed to initialize snapshot store: %v", err)
	}

	store := cart.NewStore(snapshots, log)
	if err := store.Load(ctx); err != nil {
		log.Errorf("failed to load cart snapshot: %v", err)
	}

	shopAPI := commerce.NewClient(shopAPIURL, authToken, log)
	gateway := payment.NewClient(chapaBase, chapaKey, baseURL, log)
	syncer := cartsync.NewSyncer(store, shopAPI, log)
	flow := checkout.NewFlow(shopAPI, gateway, store, log)

	handlers := web.NewHandlers(shopAPI, gateway, log)
	cartHandlers := web.NewCartHandlers(store, syncer, log)
	checkoutHandlers := web.NewCheckoutHandlers(flow, log)
	router := web.NewRouter(handlers, cartHandlers, checkoutHandlers, log)

	addr := ":" + getenv("PORT", defaultPort)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		log.Info("received shutdown signal, shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Errorf("server shutdown: %v", err)
		}
		if err := store.Flush(shutdownCtx); err != nil {
			log.Errorf("cart flush: %v", err)
		}
	}()

	log.Infof("storefront listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server failed: %v", err)
	}
}
