package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/hmgle/harcapture/internal/config"
	"github.com/hmgle/harcapture/pkg/logger"
	"github.com/hmgle/harcapture/pkg/sdk"
	"github.com/hmgle/harcapture/pkg/transport"
)

const shutdownTimeout = 5 * time.Second

// listenPort extracts the numeric port of a listen address such as ":8080"
func listenPort(addr string) (int, error) {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, fmt.Errorf("invalid listen address %q: %w", addr, err)
	}
	if portStr == "" {
		return 0, nil
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 0, fmt.Errorf("invalid listen port %q", portStr)
	}
	return port, nil
}

func runServe(cmd *cobra.Command, opts *options) error {
	cfg, err := opts.load()
	if err != nil {
		return err
	}

	log := cfg.NewLogger(os.Stderr)
	log.Info("Starting harcapture v%s", sdk.Version)

	sink, err := buildSink(cfg, log)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	dispatcher := transport.NewDispatcher(sink, transport.DispatcherOptions{
		QueueSize: cfg.QueueSize,
		Workers:   cfg.Workers,
		Timeout:   cfg.Timeout,
		Logger:    log.WithField("component", "dispatcher"),
		Metrics:   transport.NewMetrics(registry),
	})

	sdkConfig, err := cfg.SDKConfig(dispatcher, log.WithField("component", "capture"))
	if err != nil {
		return err
	}
	recorder, err := sdk.New(sdkConfig)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.Handle("/", recorder.Middleware(newDemoMux()))

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("Listening on %s (recorded as port %d)", cfg.ListenAddr, cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("demo server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		err := server.Shutdown(shutdownCtx)
		if closeErr := dispatcher.Close(shutdownCtx); closeErr != nil {
			log.Warn("Failed to close delivery sink: %v", closeErr)
		}
		return err
	})

	return g.Wait()
}

// buildSink combines every configured delivery target
func buildSink(cfg *config.Config, log logger.Logger) (transport.Sink, error) {
	var sinks []transport.Sink

	if cfg.IngestEnabled() {
		sinks = append(sinks, transport.NewHTTPSink(cfg.HTTPSinkConfig()))
		log.Info("Delivering exchanges to %s", cfg.ServerURL)
	}

	if cfg.OutputFile != "" {
		fileSink, err := transport.NewFileSink(cfg.OutputFile, cfg.OutputFormat, sdk.Name, sdk.Version)
		if err != nil {
			return nil, fmt.Errorf("failed to open output file: %w", err)
		}
		sinks = append(sinks, fileSink)
		log.Info("Writing exchanges to %s (%s)", cfg.OutputFile, cfg.OutputFormat)
	}

	if cfg.RedisAddr != "" {
		redisSink, err := transport.NewRedisSink(cfg.RedisSinkConfig())
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, redisSink)
		log.Info("Writing exchanges to Redis at %s", cfg.RedisAddr)
	}

	switch len(sinks) {
	case 0:
		return nil, errors.New("no delivery target: enable ingest or set --output or --redis-addr")
	case 1:
		return sinks[0], nil
	default:
		return transport.NewFanOutSink(sinks...), nil
	}
}
