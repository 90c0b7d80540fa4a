package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alicebob/miniredis/v2"
	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"golang.org/x/sync/errgroup"

	goOnboard "github.com/MrEthical07/goOnboard"
	"github.com/MrEthical07/goOnboard/audit/kafka"
	"github.com/MrEthical07/goOnboard/identity"
	"github.com/MrEthical07/goOnboard/internal/config"
	"github.com/MrEthical07/goOnboard/internal/host"
	"github.com/MrEthical07/goOnboard/internal/logging"
	"github.com/MrEthical07/goOnboard/jwt"
	otelexport "github.com/MrEthical07/goOnboard/metrics/export/otel"
	"github.com/MrEthical07/goOnboard/metrics/export/prometheus"
	"github.com/MrEthical07/goOnboard/profilestore"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the onboarding HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger := logging.New(cfg.LogLevel, cfg.ServiceName, cfg.Env, cmd.ErrOrStderr())

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := buildStack(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer st.close()

		return serve(ctx, cfg, st.handler, logger)
	},
}

// stack holds everything the host runs on. close releases it in reverse order.
type stack struct {
	handler http.Handler
	engine  *goOnboard.Engine
	closers []func() error
}

func (s *stack) onClose(fn func() error) {
	s.closers = append(s.closers, fn)
}

func (s *stack) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		_ = s.closers[i]()
	}
	s.closers = nil
}

func buildStack(ctx context.Context, cfg *config.Config, logger *slog.Logger) (st *stack, err error) {
	st = &stack{}
	defer func() {
		if err != nil {
			st.close()
		}
	}()

	rdb, err := openRedis(cfg.Redis, logger)
	if err != nil {
		return nil, err
	}
	st.onClose(rdb.Close)

	svc, err := openIdentity(cfg)
	if err != nil {
		return nil, err
	}

	b := goOnboard.New().
		WithConfig(cfg.EngineConfig()).
		WithRedis(rdb).
		WithAuthService(svc).
		WithLogger(logger)

	switch cfg.Profiles.Driver {
	case config.DriverPostgres:
		store, err := profilestore.OpenPostgres(ctx, cfg.Profiles.DSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres profiles: %w", err)
		}
		st.onClose(store.Close)
		b = b.WithProfileStore(store)
	case config.DriverSQLite:
		store, err := profilestore.OpenSQLite(ctx, cfg.Profiles.DSN)
		if err != nil {
			return nil, fmt.Errorf("open sqlite profiles: %w", err)
		}
		st.onClose(store.Close)
		b = b.WithProfileStore(store)
	}

	if len(cfg.Kafka.Brokers) > 0 {
		sink, err := kafka.NewSink(kafka.Config{
			Brokers:    cfg.Kafka.Brokers,
			Topic:      cfg.Kafka.Topic,
			ClientID:   cfg.ServiceName,
			EventTypes: cfg.Kafka.EventTypes,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("open kafka audit sink: %w", err)
		}
		st.onClose(sink.Close)
		b = b.WithAuditSink(sink)
	} else if cfg.Audit.Enabled {
		b = b.WithAuditSink(goOnboard.NewJSONWriterSink(os.Stdout))
	}

	engine, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("build engine: %w", err)
	}
	st.engine = engine
	st.onClose(func() error {
		engine.Close()
		return nil
	})

	opts := host.Options{
		Engine:        engine,
		Logger:        logger,
		CookieName:    cfg.HTTP.CookieName,
		SecureCookies: cfg.HTTP.SecureCookies,
	}
	if cfg.Metrics.Enabled {
		reg := promclient.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		if err := prometheus.NewPrometheusExporter(engine).Register(reg); err != nil {
			return nil, fmt.Errorf("register prometheus metrics: %w", err)
		}
		opts.Metrics = prometheus.Handler(reg)
		opts.MetricsPath = cfg.Metrics.Path
	}
	if cfg.Metrics.OTel.Endpoint != "" {
		if err := pushMetrics(ctx, st, cfg, engine); err != nil {
			return nil, err
		}
	}
	srv, err := host.New(opts)
	if err != nil {
		return nil, err
	}
	st.handler = srv.Handler()

	engineCfg := cfg.EngineConfig()
	for _, w := range engineCfg.Lint().BySeverity(goOnboard.LintWarn) {
		logger.Warn("config lint", slog.String("code", w.Code), slog.String("message", w.Message))
	}
	return st, nil
}

// pushMetrics exports engine metrics to an OTLP/HTTP collector every
// metrics.otel.interval. Closing the stack flushes a final collection.
func pushMetrics(ctx context.Context, st *stack, cfg *config.Config, engine *goOnboard.Engine) error {
	exp, err := otlpmetrichttp.New(ctx, otlpmetrichttp.WithEndpointURL(strings.TrimSuffix(cfg.Metrics.OTel.Endpoint, "/")+"/v1/metrics"))
	if err != nil {
		return fmt.Errorf("create otlp metric exporter: %w", err)
	}
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(cfg.Metrics.OTel.Interval))),
		sdkmetric.WithResource(resource.NewSchemaless(
			attribute.String("service.name", cfg.ServiceName),
			attribute.String("deployment.environment", cfg.Env),
		)),
	)
	shutdown := func() error {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return provider.Shutdown(shutdownCtx)
	}

	otelExp, err := otelexport.NewOTelExporter(provider.Meter("github.com/MrEthical07/goOnboard"), engine)
	if err != nil {
		_ = shutdown()
		return fmt.Errorf("register otel metrics: %w", err)
	}
	// Closers run in reverse, so the provider flushes before the callback goes.
	st.onClose(otelExp.Close)
	st.onClose(shutdown)
	return nil
}

// openRedis connects to cfg.Addr, or starts an embedded server when it is empty.
func openRedis(cfg config.RedisConfig, logger *slog.Logger) (redis.UniversalClient, error) {
	if cfg.Addr != "" {
		return redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}), nil
	}

	mr, err := miniredis.Run()
	if err != nil {
		return nil, fmt.Errorf("start embedded redis: %w", err)
	}
	logger.Warn("redis.addr is empty, using an embedded in-memory redis", slog.String("addr", mr.Addr()))
	return &embeddedRedis{Client: redis.NewClient(&redis.Options{Addr: mr.Addr()}), server: mr}, nil
}

type embeddedRedis struct {
	*redis.Client
	server *miniredis.Miniredis
}

func (r *embeddedRedis) Close() error {
	err := r.Client.Close()
	r.server.Close()
	return err
}

func openIdentity(cfg *config.Config) (identity.AuthService, error) {
	if !cfg.MemoryIdentity() {
		return identity.NewClient(identity.ClientConfig{
			BaseURL:           cfg.Identity.URL,
			APIKey:            cfg.Identity.APIKey,
			Timeout:           cfg.Identity.Timeout,
			RequestsPerSecond: cfg.Identity.RequestsPerSecond,
			Burst:             cfg.Identity.Burst,
		})
	}

	signer, err := jwt.NewManager(jwt.Config{
		AccessTTL:     time.Hour,
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    []byte(cfg.Identity.SigningKey),
	})
	if err != nil {
		return nil, fmt.Errorf("memory identity signer: %w", err)
	}
	return identity.NewMemory(identity.MemoryConfig{Signer: signer})
}

func serve(ctx context.Context, cfg *config.Config, handler http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", slog.String("addr", cfg.HTTP.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
