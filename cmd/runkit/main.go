// Command runkit serves a set of demo runnables over HTTP.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kbukum/runkit/callbacks"
	"github.com/kbukum/runkit/config"
	"github.com/kbukum/runkit/logger"
	"github.com/kbukum/runkit/observability"
	"github.com/kbukum/runkit/runnable"
	"github.com/kbukum/runkit/serve"
	"github.com/kbukum/runkit/version"
)

const serviceName = "runkit"

func main() {
	cfg, err := config.Load(serviceName)
	if err != nil {
		logger.Fatal("Failed to load configuration", map[string]interface{}{
			"error": err.Error(),
		})
	}
	if cfg.Version == "" {
		cfg.Version = version.Get().Version
	}

	logger.Init(&cfg.Logging)
	logger.RegisterDefaults("runs", "callbacks")
	log := logger.GetGlobalLogger()
	log.Info("Starting runkit", version.Get().Fields())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("runkit stopped with error", map[string]interface{}{
			"error": err.Error(),
		})
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	handlers := []callbacks.Handler{callbacks.NewLoggingHandler(logger.Get("runs"))}
	opts := []serve.Option{serve.WithHealth(cfg.Name, cfg.Version)}

	if cfg.Observability.Tracing {
		tp, err := observability.InitTracer(ctx, cfg.Observability.TracerConfig(&cfg.ServiceConfig))
		if err != nil {
			return err
		}
		defer shutdown(log, "tracer", tp.Shutdown)
		handlers = append(handlers, callbacks.NewTracingHandler(cfg.Name))
	}
	if cfg.Observability.Metrics {
		mp, err := observability.InitMeter(ctx, cfg.Observability.MeterConfig(&cfg.ServiceConfig))
		if err != nil {
			return err
		}
		defer shutdown(log, "meter", mp.Shutdown)
		metrics, err := observability.NewMetrics(observability.Meter(observability.TracerName))
		if err != nil {
			return err
		}
		handlers = append(handlers, callbacks.NewMetricsHandler(metrics))
		opts = append(opts, serve.WithMetrics(metrics))
	}

	engine := cfg.Engine
	opts = append(opts,
		serve.WithCallbacks(handlers...),
		serve.WithBaseConfig(func() runnable.Config { return engine.RunConfig() }),
	)
	srv := serve.New(cfg.Server, log, opts...)
	for path, r := range demoRunnables() {
		srv.Register(path, engine.Retry.Wrap(r))
	}

	if err := srv.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	log.Info("Shutdown signal received")

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Stop(stopCtx)
}

func shutdown(log *logger.Logger, name string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := fn(ctx); err != nil {
		log.Warn("Telemetry shutdown failed", map[string]interface{}{
			"provider": name,
			"error":    err.Error(),
		})
	}
}
