// Package main implements the cachestream command line client. It issues
// a cache request against a message-cache cluster over NATS while
// receiving live data on the same topic, and prints every delivered
// message together with the terminal outcome.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/c360/cachestream/cache"
	"github.com/c360/cachestream/message"
	"github.com/c360/cachestream/metric"
	"github.com/c360/cachestream/natstransport"
)

const appName = "cachestream"

func main() {
	if err := run(); err != nil {
		slog.Error("request failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		natsURL     = flag.String("nats-url", "nats://localhost:4222", "NATS server URL")
		configPath  = flag.String("config", "", "cache session properties file (YAML)")
		cacheName   = flag.String("cache", "", "cache name (overrides config)")
		topic       = flag.String("topic", "", "topic to retrieve")
		policy      = flag.String("policy", "fulfill", "live-data policy: fulfill, queue or flow-through")
		metricsPort = flag.Int("metrics-port", 0, "serve Prometheus metrics on this port (0 disables)")
		verbose     = flag.Bool("verbose", false, "enable debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if *topic == "" {
		return fmt.Errorf("-topic is required")
	}

	cfg := cache.DefaultConfig()
	if *configPath != "" {
		loaded, err := cache.LoadProperties(*configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if *cacheName != "" {
		cfg.CacheName = *cacheName
	}

	flags, err := policyFlag(*policy)
	if err != nil {
		return err
	}

	registry := metric.NewMetricsRegistry()
	if err := message.RegisterPoolMetrics(registry); err != nil {
		return err
	}
	if *metricsPort > 0 {
		server := metric.NewServer(*metricsPort, "/metrics", registry)
		go func() {
			if err := server.Start(); err != nil {
				logger.Error("metrics server stopped", "error", err)
			}
		}()
		defer func() { _ = server.Stop() }()
	}

	transport := natstransport.New(*natsURL,
		natstransport.WithClientName(appName),
		natstransport.WithTransportLogger(logger),
		natstransport.WithTransportMetrics(registry))
	if err := transport.Connect(); err != nil {
		return err
	}
	defer func() { _ = transport.Close() }()

	session, err := cache.NewSession(transport, cfg, printMessage,
		cache.WithLogger(logger),
		cache.WithMetrics(registry))
	if err != nil {
		return err
	}
	defer session.Destroy()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	outcome, err := session.CacheRequest(ctx, cache.Request{
		RequestID: 1,
		Topic:     *topic,
		Flags:     flags,
	})
	if err != nil {
		return err
	}

	fmt.Printf("request %d on %q: %s", outcome.RequestID, outcome.Topic, outcome.Status)
	if outcome.Status == cache.StatusIncomplete {
		fmt.Printf(" (%s)", outcome.Reason)
	}
	fmt.Println()
	return nil
}

func policyFlag(name string) (cache.RequestFlags, error) {
	switch name {
	case "fulfill":
		return cache.LiveDataFulfill, nil
	case "queue":
		return cache.LiveDataQueue, nil
	case "flow-through":
		return cache.LiveDataFlowThrough, nil
	default:
		return 0, fmt.Errorf("unknown policy %q", name)
	}
}

func printMessage(m *message.Message) {
	fmt.Print(m.Dump(message.DumpBrief, 0))
	if err := m.Free(); err != nil {
		slog.Warn("free failed", "error", err)
	}
}
