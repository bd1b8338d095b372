package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/kelseyhightower/envconfig"

	"proplend/config"
	"proplend/core"
	"proplend/core/events"
	"proplend/observability"
	"proplend/observability/audit"
	"proplend/observability/logging"
	telemetry "proplend/observability/otel"
	ledgerdconfig "proplend/services/ledgerd/config"
	"proplend/services/ledgerd/server"
)

type runtimeEnv struct {
	Env string `envconfig:"ENV" default:"dev"`
}

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "services/ledgerd/config.yaml", "path to ledgerd config")
	flag.Parse()

	var rt runtimeEnv
	if err := envconfig.Process("ledgerd", &rt); err != nil {
		log.Fatalf("read environment: %v", err)
	}
	env := strings.TrimSpace(rt.Env)

	cfg, err := ledgerdconfig.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	level, _ := cfg.Log.SlogLevel()
	logger := logging.SetupWithOptions("ledgerd", env, logging.Options{
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Level:      level,
	})

	otelCfg, err := telemetry.FromEnv(telemetry.Config{
		ServiceName: "ledgerd",
		Environment: env,
		Insecure:    true,
		Metrics:     true,
		Traces:      true,
	})
	if err != nil {
		log.Fatalf("telemetry config: %v", err)
	}
	shutdownTelemetry, err := telemetry.Init(context.Background(), otelCfg)
	if err != nil {
		log.Fatalf("init telemetry: %v", err)
	}
	defer func() {
		if shutdownTelemetry != nil {
			_ = shutdownTelemetry(context.Background())
		}
	}()

	ledgerCfg, err := config.Load(cfg.Ledger.ConfigPath)
	if err != nil {
		log.Fatalf("load ledger config: %v", err)
	}
	db, err := ledgerCfg.OpenStorage()
	if err != nil {
		log.Fatalf("open storage: %v", err)
	}
	defer db.Close()

	hub := server.NewHub(logger)
	emitters := events.Fanout{hub, observability.Events()}
	var auditStore *audit.Store
	if cfg.Audit.DSN != "" {
		auditStore, err = audit.Open(cfg.Audit.DSN, logger)
		if err != nil {
			log.Fatalf("open audit log: %v", err)
		}
		defer auditStore.Close()
		emitters = append(emitters, auditStore)
	}

	ledger, err := core.NewLedger(db, ledgerCfg.Params(),
		core.WithEmitter(emitters),
		core.WithLogger(logger),
		core.WithPauses(ledgerCfg.PauseView()),
	)
	if err != nil {
		log.Fatalf("open ledger: %v", err)
	}

	adminKey, err := ledgerCfg.AdminKey()
	if err != nil {
		log.Fatalf("load admin key: %v", err)
	}
	admin, err := adminKey.Address()
	if err != nil {
		log.Fatalf("derive admin address: %v", err)
	}
	ran, err := server.EnsureBootstrapped(context.Background(), ledger, admin, server.BootstrapAddresses{
		Treasury:        cfg.Ledger.Treasury,
		MarketTreasury:  cfg.Ledger.MarketTreasury,
		SeniorRecipient: cfg.Ledger.SeniorRecipient,
		JuniorRecipient: cfg.Ledger.JuniorRecipient,
		Operators:       cfg.Ledger.Operators,
	})
	if err != nil {
		log.Fatalf("bootstrap ledger: %v", err)
	}
	if ran {
		logger.Info("ledger bootstrapped", "admin", admin.String())
	}

	idem, err := server.NewIdempotencyStore(cfg.Idempotency.Path, cfg.Idempotency.TTL)
	if err != nil {
		log.Fatalf("open idempotency store: %v", err)
	}
	defer idem.Close()

	srv, err := server.New(server.Config{
		Ledger: ledger,
		Auth: server.NewAuthenticator(server.AuthConfig{
			HMACSecret: cfg.Auth.HMACSecret,
			Issuer:     cfg.Auth.Issuer,
			Audience:   cfg.Auth.Audience,
			ClockSkew:  cfg.Auth.ClockSkew,
		}, logger),
		RateLimiter: server.NewRateLimiter(server.RateLimit{
			RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
			Burst:             cfg.RateLimit.Burst,
		}),
		Idempotency: idem,
		Hub:         hub,
		Audit:       auditStore,
		Logger:      logger,
	})
	if err != nil {
		log.Fatalf("build server: %v", err)
	}

	listener, err := net.Listen("tcp", cfg.ListenAddress)
	if err != nil {
		log.Fatalf("listen on %s: %v", cfg.ListenAddress, err)
	}
	if cfg.TLS.AllowInsecure {
		tcpAddr, _ := listener.Addr().(*net.TCPAddr)
		loopback := tcpAddr != nil && tcpAddr.IP != nil && tcpAddr.IP.IsLoopback()
		if !strings.EqualFold(env, "dev") && !loopback {
			log.Fatalf("plaintext ledgerd mode is restricted to loopback listeners or dev environment")
		}
	}

	httpServer := &http.Server{
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go pruneIdempotency(ctx, idem, logger)

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("ledgerd listening", "addr", cfg.ListenAddress)
		if cfg.TLS.CertPath != "" {
			serverErr <- httpServer.ServeTLS(listener, cfg.TLS.CertPath, cfg.TLS.KeyPath)
			return
		}
		serverErr <- httpServer.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("forcing server stop", "error", err)
			_ = httpServer.Close()
		}
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("serve http: %v", err)
		}
	}
}
