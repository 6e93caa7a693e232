package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/mediq-platform/internal/accounts"
	"github.com/wolfman30/mediq-platform/internal/advice"
	"github.com/wolfman30/mediq-platform/internal/api/router"
	"github.com/wolfman30/mediq-platform/internal/app/bootstrap"
	"github.com/wolfman30/mediq-platform/internal/appointments"
	appconfig "github.com/wolfman30/mediq-platform/internal/config"
	"github.com/wolfman30/mediq-platform/internal/doctors"
	httpmiddleware "github.com/wolfman30/mediq-platform/internal/http/middleware"
	"github.com/wolfman30/mediq-platform/internal/observability/metrics"
	"github.com/wolfman30/mediq-platform/internal/quota"
	"github.com/wolfman30/mediq-platform/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting mediq API server", "env", cfg.Env, "port", cfg.Port)

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	fmt.Println("Server exited gracefully")
}

func run(cfg *appconfig.Config, logger *logging.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.AuthJWTSecret == "" {
		return errors.New("AUTH_JWT_SECRET is required")
	}
	pool := connectPostgresPool(ctx, cfg.DatabaseURL, logger)
	if pool == nil {
		return errors.New("DATABASE_URL is required and must be reachable")
	}
	defer pool.Close()
	auditDB := stdlib.OpenDBFromPool(pool)
	defer func() { _ = auditDB.Close() }()

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	var awsCfg *aws.Config
	if needsAWS(cfg) {
		loaded, err := bootstrap.LoadAWSConfig(ctx, cfg)
		if err != nil {
			return err
		}
		awsCfg = &loaded
	}

	metricsHandler, consultMetrics := setupMetrics()

	accountsSvc := accounts.NewService(accounts.NewPostgresRepository(pool), cfg.SubscriptionPeriod, logger.Component("accounts"))

	apptSvc := appointments.NewService(appointments.NewPostgresRepository(pool), appointments.Pricing{
		CommissionPercent:    int64(cfg.CommissionPercent),
		GeneralPayout:        cfg.GeneralDoctorPayout,
		GeneralStandardPrice: cfg.GeneralStandardPrice,
		GeneralPremiumPrice:  cfg.GeneralPremiumPrice,
	}, logger.Component("appointments"))
	apptSvc.SetMetrics(consultMetrics)
	for _, o := range bootstrap.BuildAppointmentObservers(cfg, bootstrap.ObserverDeps{
		AuditDB:  auditDB,
		Email:    bootstrap.BuildEmailSender(cfg, awsCfg, logger.Component("notify")),
		Accounts: accountsSvc,
		AWS:      awsCfg,
		Logger:   logger.Component("notify"),
	}) {
		apptSvc.AddObserver(o)
	}

	doctorsSvc := doctors.NewService(doctors.NewPostgresRepository(pool), logger.Component("doctors"))

	quotaStore, err := bootstrap.BuildQuotaStore(cfg, bootstrap.QuotaDeps{Redis: redisClient, Pool: pool, AWS: awsCfg, Logger: logger})
	if err != nil {
		return err
	}
	gate := quota.NewGate(quotaStore, quota.Limits{
		DailyFree:   cfg.QuotaDailyFree,
		Burst:       cfg.QuotaBurstLimit,
		BurstWindow: cfg.QuotaBurstWindow,
	}, logger.Component("quota"))
	gate.SetMetrics(consultMetrics)

	var adviceHandler *advice.Handler
	adviceClient, err := bootstrap.BuildAdviceClient(ctx, cfg, awsCfg, logger.Component("advice"))
	if err != nil {
		logger.Warn("advice endpoint disabled", "error", err)
	} else {
		adviceSvc := advice.NewService(adviceClient, gate, accountsSvc, advice.Options{
			MaxTokens: int32(cfg.AdviceMaxTokens),
			Timeout:   cfg.AdviceTimeout,
		}, logger.Component("advice"))
		adviceSvc.SetMetrics(consultMetrics)
		adviceHandler = advice.NewHandler(adviceSvc, logger)
	}

	limiter := httpmiddleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	go limiter.RunEviction(ctx, 5*time.Minute, 10*time.Minute)

	checks := map[string]router.Pinger{"postgres": pool}
	if redisClient != nil {
		checks["redis"] = redisPinger{client: redisClient}
	}

	r := router.New(&router.Config{
		Logger:         logger,
		AuthSecret:     cfg.AuthJWTSecret,
		CORS:           httpmiddleware.CORSConfig{AllowedOrigins: cfg.CORSAllowedOrigins},
		RateLimiter:    limiter,
		MetricsHandler: metricsHandler,
		HealthChecks:   checks,
		Appointments:   appointments.NewHandler(apptSvc, accountsSvc, logger),
		Doctors:        doctors.NewHandler(doctorsSvc, logger),
		Accounts:       accounts.NewHandler(accountsSvc, logger),
		Advice:         adviceHandler,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.AdviceTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

// needsAWS reports whether any configured component talks to AWS.
func needsAWS(cfg *appconfig.Config) bool {
	return cfg.QuotaStore == "dynamodb" ||
		cfg.AdviceProvider == "bedrock" || cfg.AdviceFallback == "bedrock" ||
		cfg.EmailProvider == "ses" ||
		cfg.EventsQueueURL != ""
}

func setupMetrics() (http.Handler, *metrics.ConsultMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), metrics.NewConsultMetrics(reg)
}

func connectPostgresPool(ctx context.Context, url string, logger *logging.Logger) *pgxpool.Pool {
	if url == "" {
		return nil
	}
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		logger.Error("failed to create postgres pool", "error", err)
		return nil
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		logger.Error("postgres not reachable", "error", err)
		pool.Close()
		return nil
	}
	return pool
}

type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}
