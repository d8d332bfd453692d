package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/infodancer/popd/internal/config"
	"github.com/infodancer/popd/internal/logging"
	"github.com/infodancer/popd/internal/manager"
	"github.com/infodancer/popd/internal/metrics"
	"github.com/infodancer/popd/internal/pop3"
	"github.com/infodancer/popd/internal/reactor"
	"github.com/infodancer/popd/internal/retr"
)

// metricsRingCapacity bounds the in-process recent-events ring the
// Prometheus collector keeps; spec.md §9 defers any larger read surface.
const metricsRingCapacity = 256

func main() {
	flags := config.ParseFlags()
	if flags.Help {
		flagUsage()
		return
	}

	cfg, err := config.LoadWithFlags(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg.LogLevel)

	registry := config.NewRegistry(cfg.Maildir)
	registry.SetTransformer(cfg.Transformer)
	for _, u := range flags.Users {
		if err := registry.AddUser(u.Username, u.Password); err != nil {
			logger.Error("failed to seed user", "user", u.Username, "err", err)
			os.Exit(1)
		}
	}
	for _, a := range flags.Admins {
		if err := registry.AddAdmin(a.Username, a.Password); err != nil {
			logger.Error("failed to seed admin", "admin", a.Username, "err", err)
			os.Exit(1)
		}
	}

	var collector metrics.Collector = &metrics.NoopCollector{}
	promReg := prometheus.NewRegistry()
	if cfg.Metrics.Enabled {
		collector = metrics.NewPrometheusCollector(promReg, metricsRingCapacity)
	}

	eng := reactor.New(logger, collector)

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}

	pop3IP, pop3Port, err := splitListenAddr(cfg.Pop3Address)
	if err != nil {
		logger.Error("invalid pop3_address", "address", cfg.Pop3Address, "err", err)
		os.Exit(1)
	}
	pop3Handler := pop3.NewHandler(eng, registry, hostname, cfg.ByteStuffer, logger)
	if _, err := eng.AddListener(pop3IP, pop3Port, pop3Handler); err != nil {
		logger.Error("failed to bind POP3 listener", "address", cfg.Pop3Address, "err", err)
		os.Exit(1)
	}

	mgrIP, mgrPort, err := splitListenAddr(cfg.ManagerAddress)
	if err != nil {
		logger.Error("invalid manager_address", "address", cfg.ManagerAddress, "err", err)
		os.Exit(1)
	}
	mgrHandler := manager.NewHandler(eng, registry, manager.DefaultMaxSessions, logger)
	if _, err := eng.AddListener(mgrIP, mgrPort, mgrHandler); err != nil {
		logger.Error("failed to bind manager listener", "address", cfg.ManagerAddress, "err", err)
		os.Exit(1)
	}

	reaper := retr.NewReaper(logger)
	go reaper.Run()
	defer reaper.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("received signal, shutting down", "signal", sig.String())
		eng.Stop()
		cancel()
	}()

	if cfg.Metrics.Enabled {
		metricsServer := metrics.NewHTTPServer(cfg.Metrics.Address, cfg.Metrics.Path, promReg)
		go func() {
			if err := metricsServer.Start(ctx); err != nil && err != context.Canceled {
				logger.Error("metrics server error", "err", err)
			}
		}()
		logger.Info("metrics server started", "address", cfg.Metrics.Address, "path", cfg.Metrics.Path)
	}

	logger.Info("starting popd", "pop3_address", cfg.Pop3Address, "manager_address", cfg.ManagerAddress, "maildir", cfg.Maildir)

	if err := eng.Run(); err != nil {
		logger.Error("reactor stopped", "err", err)
	}

	logger.Info("popd stopped")
}

func flagUsage() {
	fmt.Fprintln(os.Stderr, "popd: concurrent POP3 server")
	fmt.Fprintln(os.Stderr, "usage: popd [-config path] [-l ip] [-L ip] [-p port] [-P port] [-d maildir] [-t transformer] [-u user:pass] [-a admin:pass] [-v]")
}

// splitListenAddr splits a "host:port" listen address into the bind IP
// (possibly empty, for the wildcard address) and numeric port
// internal/reactor.AddListener expects.
func splitListenAddr(addr string) (ip string, port int, err error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, err
	}
	port, err = strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid port %q: %w", portStr, err)
	}
	return host, port, nil
}
