// Copyright 2016 The Netstack Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux

// Command netstackd runs one network-stack instance bound to a single
// interface, per spec.md §6. It is a thin wiring layer: flags and a YAML
// config file select the interface and tunables, then stack.Stack owns
// everything else.
//
// Grounded on
// _examples/malbeclabs-doublezero/client/doublezerod/cmd/doublezerod/main.go's
// flag-parse, slog-JSON-logger, signal.NotifyContext, optional-prometheus-
// listener shape.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/coolheart77/netstack/config"
	"github.com/coolheart77/netstack/link"
	"github.com/coolheart77/netstack/metrics"
	"github.com/coolheart77/netstack/stack"
	"github.com/coolheart77/netstack/tcp"
)

var (
	configPath  = flag.String("config", "/etc/netstackd/config.yaml", "path to YAML configuration file")
	verbose     = flag.Bool("v", false, "enable debug logging")
	metricsAddr = flag.String("metrics-addr", "", "address to serve Prometheus metrics on (disabled if empty)")

	version = "dev"
	commit  = "none"
)

func main() {
	flag.Parse()

	opts := &slog.HandlerOptions{}
	if *verbose {
		opts.Level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, opts))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	if *metricsAddr != "" {
		go serveMetrics(logger, *metricsAddr, registry)
	}

	protoAddr, err := cfg.ProtocolAddress()
	if err != nil {
		logger.Error("failed to parse configured address", "error", err)
		os.Exit(1)
	}

	intf, err := link.Open(logger, cfg.Interface, protoAddr)
	if err != nil {
		logger.Error("failed to open interface", "interface", cfg.Interface, "error", err)
		os.Exit(1)
	}

	s := stack.New(intf, cfg.ResolveTCP(), logger, m)
	go s.Run()

	for _, port := range cfg.ListenTCP {
		l := s.Listen(port, 16)
		go acceptLoop(logger, l, port)
	}

	logger.Info("netstackd started", "interface", cfg.Interface, "address", cfg.Address, "version", version, "commit", commit)

	<-ctx.Done()
	logger.Info("shutting down")
	s.Close()
}

// acceptLoop drains a listener's backlog, logging each accepted connection.
// netstackd has no application protocol of its own; wiring an accepted
// Endpoint to a real handler is left to whatever embeds this package.
func acceptLoop(logger *slog.Logger, l *tcp.Listener, port uint16) {
	for {
		ep := l.Accept()
		if ep == nil {
			return
		}
		logger.Debug("accepted connection", "port", port, "state", ep.State().String())
	}
}

func serveMetrics(logger *slog.Logger, addr string, reg *prometheus.Registry) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		logger.Error("failed to start metrics listener", "error", err)
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	logger.Info("metrics server listening", "address", listener.Addr().String())
	if err := http.Serve(listener, mux); err != nil {
		logger.Error("metrics server stopped", "error", err)
	}
}
