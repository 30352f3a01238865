package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	authmw "market/internal/auth/middleware"
	authservice "market/internal/auth/service"
	"market/internal/auth/store/lock"
	userstore "market/internal/auth/store/user"
	"market/internal/auth/token"
	markethandler "market/internal/market/handler"
	marketservice "market/internal/market/service"
	"market/internal/market/store/legalform"
	"market/internal/market/store/marketuser"
	"market/internal/platform/config"
	"market/internal/platform/httpserver"
	"market/internal/platform/logger"
	"market/internal/platform/metrics"
	"market/internal/platform/postgres"
	"market/internal/platform/redis"
	httptransport "market/internal/transport/http"
	"market/pkg/platform/audit"
	auditkafka "market/pkg/platform/audit/store/kafka"
	auditmemory "market/pkg/platform/audit/store/memory"
	auditpostgres "market/pkg/platform/audit/store/postgres"
	"market/pkg/platform/audit/worker"
)

// main wires dependencies, serves HTTP and drains the audit pipeline on shutdown.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}

type legalFormStore interface {
	marketservice.LegalFormStore
	legalform.Saver
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	m := metrics.New(prometheus.DefaultRegisterer)

	db, err := postgres.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
		if err := postgres.Migrate(ctx, db); err != nil {
			return err
		}
	}

	rc, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if rc != nil {
		defer rc.Close()
	}

	auditStore, closeAudit, err := buildAuditStore(ctx, cfg.Audit, db, log)
	if err != nil {
		return err
	}
	defer closeAudit()
	publisher := audit.NewPublisher(cfg.Audit.BufferSize, log)
	auditWorker := worker.NewWorker(auditStore, publisher.Inbox(), log)

	var (
		users       authservice.UserStore
		forms       legalFormStore
		marketUsers marketservice.MarketUserStore
	)
	if db != nil {
		users = userstore.NewPostgres(db)
		forms = legalform.NewPostgres(db)
		marketUsers = marketuser.NewPostgres(db)
	} else {
		log.Warn("no DATABASE_URL configured, using in-memory stores")
		users = userstore.New()
		forms = legalform.New()
		marketUsers = marketuser.New()
	}
	if cfg.SeedLegalForms {
		if err := legalform.Seed(ctx, forms, legalform.Defaults); err != nil {
			return fmt.Errorf("seed legal forms: %w", err)
		}
	}

	authOpts := []authservice.Option{
		authservice.WithLogger(log),
		authservice.WithMetrics(m),
		authservice.WithAuditPublisher(publisher),
	}
	if rc != nil {
		authOpts = append(authOpts, authservice.WithLocker(lock.NewRedis(rc.Client, cfg.Auth.ProvisionLockTTL)))
	}
	identity := authservice.New(users, authOpts...)

	marketOpts := []marketservice.Option{
		marketservice.WithLogger(log),
		marketservice.WithMetrics(m),
		marketservice.WithAuditPublisher(publisher),
	}
	if db != nil {
		marketOpts = append(marketOpts, marketservice.WithTxRunner(postgres.NewTxRunner(db, cfg.Database.TxTimeout)))
	}
	market := marketservice.New(forms, marketUsers, identity, marketOpts...)

	authenticator := authmw.NewRemoteAuthenticator(identity,
		authmw.WithLogger(log),
		authmw.WithMetrics(m),
		authmw.WithAuditPublisher(publisher),
	)

	routerCfg := httptransport.Config{
		Logger:  log,
		Modules: []httptransport.RouteRegistrar{markethandler.New(market, log, authenticator.RequireRemoteUser(cfg.Auth.RemoteUserHeader))},
		Health:  healthChecks(db, rc),
		Metrics: promhttp.Handler(),
	}
	if cfg.Auth.JWTSigningKey != "" {
		jwtService := token.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.JWTIssuer, cfg.Auth.JWTAudience)
		routerCfg.Principal = authmw.OptionalBearer(jwtService, m, log)
	}

	srv := httpserver.New(cfg.Server.Addr, httptransport.NewRouter(routerCfg))

	log.Info("starting market service", "addr", cfg.Server.Addr)
	return serve(ctx, srv, auditWorker, cfg.Server.ShutdownTimeout, log)
}

// buildAuditStore picks Kafka when brokers are configured, then Postgres, then memory.
func buildAuditStore(ctx context.Context, cfg config.AuditConfig, db *sql.DB, log *slog.Logger) (audit.Store, func(), error) {
	if len(cfg.KafkaBrokers) > 0 {
		store, err := auditkafka.New(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			return nil, nil, fmt.Errorf("create kafka audit store: %w", err)
		}
		if err := store.EnsureTopic(ctx, 1, 1); err != nil {
			store.Close()
			return nil, nil, fmt.Errorf("ensure audit topic: %w", err)
		}
		log.Info("audit events go to kafka", "topic", cfg.KafkaTopic)
		return store, store.Close, nil
	}
	if db != nil {
		return auditpostgres.New(db), func() {}, nil
	}
	return auditmemory.NewInMemoryStore(), func() {}, nil
}

func healthChecks(db *sql.DB, rc *redis.Client) []httptransport.HealthCheck {
	var checks []httptransport.HealthCheck
	if db != nil {
		checks = append(checks, httptransport.HealthCheck{Name: "postgres", Check: db.PingContext})
	}
	if rc != nil {
		checks = append(checks, httptransport.HealthCheck{Name: "redis", Check: rc.Health})
	}
	return checks
}
