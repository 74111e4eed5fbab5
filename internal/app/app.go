// Package app собирает сервис корзины: хранилище, очередь записи, HTTP API, gRPC health и метрики.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	promgrpc "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/Leonardofps/gomarketplace/internal/cart"
	"github.com/Leonardofps/gomarketplace/internal/domain"
	healthcheck "github.com/Leonardofps/gomarketplace/internal/health"
	"github.com/Leonardofps/gomarketplace/internal/messaging/kafka"
	"github.com/Leonardofps/gomarketplace/internal/metrics"
	"github.com/Leonardofps/gomarketplace/internal/money"
	"github.com/Leonardofps/gomarketplace/internal/service/httpapi"
	"github.com/Leonardofps/gomarketplace/internal/service/persist"
	"github.com/Leonardofps/gomarketplace/internal/telemetry"
	"github.com/Leonardofps/gomarketplace/internal/version"
)

// CartHealthService — имя сервиса в grpc.health.v1.
const CartHealthService = "gomarketplace.cart.v1.Cart"

// Run поднимает сервис корзины и блокируется до отмены ctx, после чего дожидается записи очереди.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	if err := cfg.Validate(); err != nil {
		return err
	}

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Options{
		ServiceName:    "cartd",
		ServiceVersion: version.GetVersion(),
		Endpoint:       cfg.OTELEndpoint,
		Disabled:       cfg.OTELDisabled,
	})
	if err != nil {
		logger.WithError(err).Warn("failed to set up tracing, continuing without it")
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.WithError(err).Warn("tracing shutdown with error")
		}
	}()

	deps, err := initRuntimeDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := deps.closeFn(); err != nil {
			logger.WithError(err).Warn("failed to close storage")
		}
	}()

	formatter, err := money.NewFormatter(cfg.CurrencySymbol, cfg.CurrencyLocale)
	if err != nil {
		return err
	}

	cartMetrics := metrics.NewCartMetrics()

	// Kafka опциональна: без брокеров события не публикуются.
	kafkaProducer, _ := initKafkaProducer(cfg.KafkaBrokers, logger)
	writerOpts := []persist.Option{
		persist.WithLogger(logger.WithField("layer", "writer")),
		persist.WithMetrics(cartMetrics),
		persist.WithMaxAttempts(cfg.WriteMaxAttempts),
		persist.WithRetryBaseDelay(cfg.WriteRetryBaseDelay),
		persist.WithErrorBuffer(cfg.WriteErrorBuffer),
	}
	if kafkaProducer != nil {
		writerOpts = append(writerOpts, persist.WithEventPublisher(kafka.NewCartEventPublisher(kafkaProducer, cfg.KafkaTopic)))
	}
	writer := persist.NewWriter(deps.kv, writerOpts...)

	writerCtx, stopWriter := context.WithCancel(context.Background())
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		writer.Run(writerCtx)
	}()
	go reportWriteErrors(writerCtx, writer.Errors(), logger)

	store := cart.NewStore(deps.kv, writer,
		cart.WithLogger(logger.WithField("layer", "cart")),
		cart.WithKey(cfg.StorageKey),
		cart.WithMetrics(cartMetrics),
	)
	provider := cart.NewProvider(store)

	grpcMetrics := promgrpc.NewServerMetrics()
	grpcServer := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(grpcMetrics.UnaryServerInterceptor()),
	)
	if err := prometheus.Register(grpcMetrics); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*promgrpc.ServerMetrics); ok {
				grpcMetrics = existing
			}
		} else {
			logger.WithError(err).Warn("failed to register grpc metrics")
		}
	}

	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	healthServer.SetServingStatus(CartHealthService, healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)
	grpcMetrics.InitializeMetrics(grpcServer)

	healthHandler := healthcheck.NewHandler(version.GetVersion())
	healthHandler.RegisterChecker("storage", deps.storageChecker)
	healthHandler.RegisterChecker("cart", healthcheck.NewLoadedChecker("cart", store.Loaded))

	go func() {
		if err := loadCart(ctx, store, cfg.LoadRetryInterval, logger); err != nil {
			return
		}
		healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
		healthServer.SetServingStatus(CartHealthService, healthpb.HealthCheckResponse_SERVING)
	}()

	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, healthHandler)

	apiMux := http.NewServeMux()
	httpapi.NewHandler(provider, formatter.Format, logger.WithField("layer", "http")).Register(apiMux)
	apiSrv := startHTTPServer(ctx, "api", cfg.HTTPAddr, apiMux, logger)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		shutdownHTTP(apiSrv, logger)
		shutdownHTTP(metricsSrv, logger)
		stopWriter()
		closeKafka(kafkaProducer, logger)
		return fmt.Errorf("listen grpc %s: %w", cfg.GRPCAddr, err)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("gRPC сервер слушает %s", cfg.GRPCAddr)
		errCh <- grpcServer.Serve(lis)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем серверы")
		healthServer.Shutdown()
		stopGRPC(grpcServer, cfg.ShutdownTimeout, logger)
		runErr = ctx.Err()
	case err := <-errCh:
		if !errors.Is(err, grpc.ErrServerStopped) {
			runErr = err
		}
	}

	shutdownHTTP(apiSrv, logger)
	shutdownHTTP(metricsSrv, logger)
	flushWriter(writer, cfg.ShutdownTimeout, logger)
	stopWriter()
	<-writerDone
	closeKafka(kafkaProducer, logger)

	return runErr
}

// loadCart повторяет Initialize, пока загрузка не удастся или ctx не отменится.
func loadCart(ctx context.Context, store *cart.Store, retryInterval time.Duration, logger *log.Entry) error {
	if retryInterval <= 0 {
		retryInterval = time.Second
	}

	for attempt := 1; ; attempt++ {
		err := store.Initialize(ctx)
		if err == nil {
			logger.WithField("attempt", attempt).Info("cart is ready")
			return nil
		}
		if errors.Is(err, domain.ErrCartNotProvided) {
			return err
		}

		logger.WithError(err).WithField("attempt", attempt).Warn("cart load failed, retrying")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
		}
	}
}

// reportWriteErrors выводит ошибки записи, которые writer не смог исправить повторами.
func reportWriteErrors(ctx context.Context, errs <-chan persist.WriteError, logger *log.Entry) {
	for {
		select {
		case <-ctx.Done():
			return
		case writeErr := <-errs:
			logger.WithError(writeErr.Err).WithFields(log.Fields{
				"seq":      writeErr.Seq,
				"key":      writeErr.Key,
				"attempts": writeErr.Attempts,
			}).Error("cart snapshot was not persisted")
		}
	}
}

func flushWriter(writer *persist.Writer, timeout time.Duration, logger *log.Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := writer.Flush(ctx); err != nil {
		logger.WithError(err).WithField("pending", writer.Pending()).Warn("cart writes were not flushed before shutdown")
		return
	}
	logger.Info("pending cart writes flushed")
}

func stopGRPC(server *grpc.Server, timeout time.Duration, logger *log.Entry) {
	stopped := make(chan struct{})
	go func() {
		server.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(timeout):
		logger.Warn("graceful stop превысил таймаут, принудительно останавливаем")
		server.Stop()
	}
}

// startMetricsServer запускает /metrics и health-пробы.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)

	logger.Infof("health checks: %s/healthz, %s/livez, %s/readyz", addr, addr, addr)
	return startHTTPServer(ctx, "metrics", addr, mux, logger)
}

// startHTTPServer запускает сервер в фоне и останавливает его при отмене ctx.
func startHTTPServer(ctx context.Context, name, addr string, handler http.Handler, logger *log.Entry) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	entry := logger.WithField("server", name)

	go func() {
		entry.Infof("HTTP сервер слушает %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			entry.WithError(err).Warn("http server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, entry)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}
