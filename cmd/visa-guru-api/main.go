// cmd/visa-guru-api/main.go
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

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"visa-guru/internal/api"
	awsclients "visa-guru/internal/common/aws"
	"visa-guru/internal/common/config"
	"visa-guru/internal/common/database"
	"visa-guru/internal/common/genai"
	commonhttp "visa-guru/internal/common/http"
	"visa-guru/internal/common/logger"
	"visa-guru/internal/common/observability"
	"visa-guru/internal/common/payment"
	"visa-guru/internal/store"

	gc "visa-guru/internal/steps/consultation/generate-checklist"
	gcl "visa-guru/internal/steps/consultation/generate-cover-letter"
	orc "visa-guru/internal/steps/consultation/orchestrate"
	rr "visa-guru/internal/steps/consultation/research-requirements"
	sc "visa-guru/internal/steps/delivery/send-consultation"
	cc "visa-guru/internal/steps/payment/create-checkout"
	vp "visa-guru/internal/steps/payment/verify-payment"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting visa guru API...",
		zap.String("environment", cfg.App.Environment),
		zap.String("storeDriver", cfg.Store.Driver),
		zap.String("researchSource", cfg.Research.Source),
	)

	obs := observability.New(api.ServiceName)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = obs.Shutdown(shutdownCtx)
	}()

	ctx := context.Background()
	readiness := map[string]api.ReadinessCheck{}

	// --- Backing services, connected only when configuration needs them ---
	var pg *database.PostgresClient
	if cfg.Store.Driver == "postgres" {
		err = retryWithBackoff(func() error {
			var err error
			pg, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			if err := pg.Ping(ctx); err != nil {
				pg.Close()
				return err
			}
			return pg.EnsureSchema(ctx)
		}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
		if err != nil {
			zapLog.Fatal("postgres failed after retries", zap.Error(err))
		}
		defer pg.Close()
		readiness["postgres"] = pg.Ping
		zapLog.Info("PostgreSQL connected successfully")
	}

	var redisClient *redis.Client
	var leases vp.Locker
	if cfg.Database.Redis.Address != "" {
		var rc *database.RedisClient
		err = retryWithBackoff(func() error {
			var err error
			rc, err = database.NewRedis(cfg.Database.Redis)
			if err != nil {
				return err
			}
			return rc.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer rc.Close()
		redisClient = rc.Client
		leases = rc
		readiness["redis"] = rc.Ping
		zapLog.Info("Redis connected successfully")
	}

	var esClient *elasticsearch.Client
	if cfg.Research.Source == "elasticsearch" {
		var es *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			es, err = database.NewElasticsearch(cfg.Database.Elasticsearch, nil)
			if err != nil {
				return err
			}
			return es.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		esClient = es.Client
		readiness["elasticsearch"] = es.Ping
		zapLog.Info("Elasticsearch connected successfully")
	}

	storeDeps := store.Dependencies{Redis: redisClient, Logger: log}
	if pg != nil {
		storeDeps.DB = pg.DB
	}
	consultations, err := store.New(cfg.Store, storeDeps)
	if err != nil {
		zapLog.Fatal("store init failed", zap.Error(err))
	}

	// --- External service clients ---
	generator := genai.NewClient(genai.Config{
		APIKey:     cfg.APIs.GenAI.APIKey,
		BaseURL:    cfg.APIs.GenAI.BaseURL,
		Model:      cfg.APIs.GenAI.Model,
		Timeout:    config.GetDuration(cfg.APIs.GenAI.Timeout),
		MaxRetries: cfg.APIs.GenAI.MaxRetries,
	}, log)

	processor := payment.NewStripeProcessor(payment.StripeConfig{
		SecretKey:     cfg.Payment.StripeSecretKey,
		WebhookSecret: cfg.Payment.StripeWebhookSecret,
		BaseURL:       cfg.Payment.StripeBaseURL,
		HTTPClient:    commonhttp.NewClient("stripe", 30*time.Second).Standard(),
		MaxRetries:    2,
	})

	var aws *awsclients.Clients
	if cfg.Delivery.Enabled {
		aws, err = awsclients.NewClients(ctx, cfg.Delivery.Region)
		if err != nil {
			zapLog.Fatal("aws clients failed", zap.Error(err))
		}
	}

	zapLog.Info("All external service clients initialized")

	// --- Consultation pipeline ---
	researchCfg := &rr.Config{
		Index:    cfg.Research.Index,
		Timeout:  config.GetDuration(config.GetStepConfig(cfg, rr.StepName).Timeout),
		CacheTTL: time.Duration(cfg.Research.CacheTTL) * time.Second,
	}
	var source rr.Source
	if esClient != nil {
		source = rr.NewElasticsearchSource(esClient, redisClient, researchCfg)
	}
	researcher := rr.NewHandler(researchCfg, source, log)

	checklistStep := config.GetStepConfig(cfg, gc.StepName)
	checklist := gc.NewHandler(&gc.Config{
		Timeout:     config.GetDuration(checklistStep.Timeout),
		Temperature: orDefault(checklistStep.Temperature, 0.3),
		MaxTokens:   checklistStep.MaxTokens,
		ParseOutput: checklistStep.ParseOutput,
	}, generator, log)

	letterStep := config.GetStepConfig(cfg, gcl.StepName)
	letter := gcl.NewHandler(&gcl.Config{
		Timeout:     config.GetDuration(letterStep.Timeout),
		Temperature: orDefault(letterStep.Temperature, 0.4),
		MaxTokens:   letterStep.MaxTokens,
	}, generator, log)

	orchestrator := orc.NewHandler(researcher, checklist, letter, obs, log)

	// --- Payment & delivery ---
	deliveryCfg := &sc.Config{
		Enabled:   cfg.Delivery.Enabled,
		FromEmail: cfg.Delivery.FromEmail,
		TopicARN:  cfg.Delivery.TopicARN,
		Timeout:   config.GetDuration(cfg.Delivery.Timeout),
	}
	if err := deliveryCfg.Validate(); err != nil {
		zapLog.Fatal("invalid delivery config", zap.Error(err))
	}
	delivery := sc.NewHandler(deliveryCfg, aws, log)

	checkoutCfg := &cc.Config{
		AmountCents: cfg.Payment.AmountCents,
		Currency:    cfg.Payment.Currency,
		FrontendURL: cfg.Server.FrontendURL,
		Timeout:     config.GetDuration(config.GetStepConfig(cfg, cc.StepName).Timeout),
	}
	if err := checkoutCfg.Validate(); err != nil {
		zapLog.Fatal("invalid checkout config", zap.Error(err))
	}
	checkout := cc.NewHandler(checkoutCfg, processor, consultations, log)

	verify := vp.NewHandler(&vp.Config{
		Timeout: config.GetDuration(config.GetStepConfig(cfg, vp.StepName).Timeout),
	}, processor, consultations, orchestrator, delivery, log)
	if leases != nil {
		verify.WithLocker(leases)
	}

	// --- HTTP server ---
	router := api.NewRouter(api.Config{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RequestTimeout: config.GetDuration(cfg.Server.RequestTimeout),
	}, api.Dependencies{
		Consultations: orchestrator,
		Checkout:      checkout,
		Verify:        verify,
		Webhooks:      processor,
		Store:         consultations,
		Readiness:     readiness,
		Logger:        log,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zapLog.Info("HTTP server listening", zap.String("address", cfg.Server.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Fatal("http server failed", zap.Error(err))
		}
	}()

	// --- Graceful shutdown ---
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	zapLog.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("graceful shutdown failed", zap.Error(err))
	}
	zapLog.Info("Shutdown complete")
}

func orDefault(v float64, fallback float32) float32 {
	if v == 0 {
		return fallback
	}
	return float32(v)
}
