// Command server assembles and runs the enrolld registration service.
// main wires stores, services, background workers, and the HTTP router;
// business logic lives in the internal packages.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	accesshandler "enrolld/internal/access/handler"
	accessmetrics "enrolld/internal/access/metrics"
	accessservice "enrolld/internal/access/service"
	"enrolld/internal/access/session"
	"enrolld/internal/notify"
	orghandler "enrolld/internal/organization/handler"
	orgservice "enrolld/internal/organization/service"
	orgstore "enrolld/internal/organization/store"
	"enrolld/internal/platform/config"
	"enrolld/internal/platform/database"
	"enrolld/internal/platform/httpserver"
	"enrolld/internal/platform/logger"
	platformredis "enrolld/internal/platform/redis"
	"enrolld/internal/ratelimit"
	ratelimitmetrics "enrolld/internal/ratelimit/metrics"
	"enrolld/internal/ratelimit/store/bucket"
	reghandler "enrolld/internal/registration/handler"
	regmetrics "enrolld/internal/registration/metrics"
	regservice "enrolld/internal/registration/service"
	regstore "enrolld/internal/registration/store"
	"enrolld/internal/reminder"
	staffhandler "enrolld/internal/staff/handler"
	staffservice "enrolld/internal/staff/service"
	staffstore "enrolld/internal/staff/store"
	transporthttp "enrolld/internal/transport/http"
	"enrolld/pkg/platform/audit"
	auditkafka "enrolld/pkg/platform/audit/publishers/kafka"
	auditmemory "enrolld/pkg/platform/audit/store/memory"
	auditpostgres "enrolld/pkg/platform/audit/store/postgres"
	"enrolld/pkg/platform/audit/worker"
	"enrolld/pkg/platform/keylock"
	"enrolld/pkg/platform/middleware/auth"
)

const (
	auditBuffer     = 256
	shutdownTimeout = 10 * time.Second
)

func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	if err := run(context.Background(), cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Persistence: Postgres when configured, in-memory otherwise.
	var (
		registrations regstore.Store
		orgs          orgstore.Store
		templates     orgstore.TemplateStore
		staffAccounts staffstore.Store
		auditStore    audit.Store
	)
	if cfg.DatabaseURL != "" {
		db, err := database.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		registrations = regstore.NewPostgresStore(db)
		orgs = orgstore.NewPostgresStore(db)
		templates = orgstore.NewPostgresTemplateStore(db)
		staffAccounts = staffstore.NewPostgresStore(db)
		auditStore = auditpostgres.New(db)
		log.Info("using postgres stores")
	} else {
		registrations = regstore.NewInMemoryStore()
		orgs = orgstore.NewInMemoryStore()
		templates = orgstore.NewInMemoryTemplateStore()
		staffAccounts = staffstore.NewInMemoryStore()
		auditStore = auditmemory.NewInMemoryStore()
		log.Warn("no database configured, using in-memory stores")
	}

	// Redis backs sessions and rate-limit buckets when configured.
	var (
		sessions session.Store
		buckets  ratelimit.BucketStore
	)
	if cfg.Redis.URL != "" {
		client, err := platformredis.New(cfg.Redis)
		if err != nil {
			return err
		}
		defer client.Close()
		sessions = session.NewRedisStore(client.Client)
		buckets = bucket.NewRedisStore(client.Client)
		log.Info("using redis session and rate-limit stores")
	} else {
		sessions = session.NewMemoryStore()
		buckets = bucket.NewInMemoryStore()
		log.Warn("no redis configured, using in-memory session and rate-limit stores")
	}

	// Audit events flow through a buffered channel into the store worker.
	// With Kafka configured they fan out to the topic as well.
	publisher, inbox := audit.NewChannelPublisher(auditBuffer, log)
	auditWorker := worker.New(auditStore, inbox, log)

	var auditor audit.Publisher = publisher
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaPub, err := auditkafka.New(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
		if err != nil {
			return err
		}
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := kafkaPub.Close(closeCtx); err != nil {
				log.Error("kafka publisher close failed", "error", err)
			}
		}()
		auditor = audit.Fanout{publisher, kafkaPub}
		log.Info("audit events fan out to kafka", "topic", cfg.Kafka.Topic)
	}

	notifier := notify.New(
		notify.NewSMTPSender(cfg.SMTP),
		notify.NewLogSMSSender(log),
		notify.WithLogger(log),
	)

	// All registration mutations across the staff and public surfaces
	// serialize on the same per-record locks.
	locks := keylock.New()

	orgSvc := orgservice.New(orgs, templates,
		orgservice.WithLogger(log),
		orgservice.WithAuditPublisher(auditor),
	)
	regSvc := regservice.New(registrations, locks,
		regservice.WithLogger(log),
		regservice.WithAuditPublisher(auditor),
		regservice.WithMetrics(regmetrics.New()),
		regservice.WithOrgGate(orgSvc),
		regservice.WithAccessTokenTTL(cfg.Verification.AccessTokenTTL),
	)
	accessSvc := accessservice.New(registrations, sessions, locks, cfg.Verification,
		accessservice.WithLogger(log),
		accessservice.WithAuditPublisher(auditor),
		accessservice.WithMetrics(accessmetrics.New()),
		accessservice.WithNotifier(notifier),
		accessservice.WithOrgGate(orgSvc),
	)
	staffSvc := staffservice.New(staffAccounts, cfg.JWTSigningKey,
		staffservice.WithLogger(log),
		staffservice.WithAuditPublisher(auditor),
	)
	reminderSvc := reminder.New(registrations, locks, cfg.Reminder, cfg.PublicBaseURL,
		reminder.WithLogger(log),
		reminder.WithAuditPublisher(auditor),
		reminder.WithSender(notifier),
		reminder.WithTokenTTLs(cfg.Verification.AccessTokenTTL, cfg.Verification.ReminderTokenTTL),
		reminder.WithCodeTTL(cfg.Verification.CodeTTL),
	)

	limiter := ratelimit.NewLimiter(buckets,
		ratelimit.WithLogger(log),
		ratelimit.WithAuditPublisher(auditor),
		ratelimit.WithMetrics(ratelimitmetrics.New()),
	)

	router := transporthttp.New(transporthttp.Config{
		Registration: reghandler.New(regSvc, log),
		Access:       accesshandler.New(accessSvc, log),
		Organization: orghandler.New(orgSvc, log),
		Staff:        staffhandler.New(staffSvc, log),
		Reminder:     reminder.NewHandler(reminderSvc, log),
		Auth:         auth.RequireStaff(staffSvc, log),
		RateLimit:    ratelimit.NewMiddleware(limiter, log, ratelimit.WithDisabled(cfg.RateLimitDisabled)),
		Logger:       log,
	})

	srv := httpserver.New(cfg.Addr, router)
	scheduler := reminder.NewScheduler(reminderSvc, cfg.Reminder.CronSpec, log)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := auditWorker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		if err := scheduler.Start(ctx); err != nil {
			return err
		}
		<-ctx.Done()
		scheduler.Stop()
		return nil
	})

	g.Go(func() error {
		log.Info("starting enrolld", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("shutdown complete")
	return nil
}
