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

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"

	"github.com/AnshRaj112/salvioris-moderation/internal/clients"
	"github.com/AnshRaj112/salvioris-moderation/internal/config"
	"github.com/AnshRaj112/salvioris-moderation/internal/database"
	"github.com/AnshRaj112/salvioris-moderation/internal/events"
	"github.com/AnshRaj112/salvioris-moderation/internal/handlers"
	"github.com/AnshRaj112/salvioris-moderation/internal/middleware"
	"github.com/AnshRaj112/salvioris-moderation/internal/models"
	"github.com/AnshRaj112/salvioris-moderation/internal/repository"
	"github.com/AnshRaj112/salvioris-moderation/internal/routes"
	"github.com/AnshRaj112/salvioris-moderation/internal/services"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found")
	}

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	var handler slog.Handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	if cfg.IsProduction() {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	}
	logger := slog.New(handler).With("service", "moderation")
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("moderation service stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Connecting to PostgreSQL...")
	pg, err := database.ConnectPostgres(cfg.PostgresURI)
	if err != nil {
		return err
	}
	defer pg.Close()

	logger.Info("Connecting to Redis...")
	rdb, err := database.ConnectRedis(cfg.RedisURI)
	if err != nil {
		return err
	}
	defer rdb.Close()

	logger.Info("Connecting to MongoDB...")
	mongoClient, mongoDB, err := database.ConnectMongo(cfg.MongoURI)
	if err != nil {
		return err
	}
	defer database.DisconnectMongo(mongoClient)

	analyses := repository.NewAnalysisStore(mongoDB)
	ledger := repository.NewActionLedger(mongoDB)
	indexCtx, cancelIndex := context.WithTimeout(ctx, 30*time.Second)
	if err := analyses.EnsureIndexes(indexCtx); err != nil {
		cancelIndex()
		return err
	}
	if err := ledger.EnsureIndexes(indexCtx); err != nil {
		cancelIndex()
		return err
	}
	cancelIndex()
	logger.Info("MongoDB moderation indexes ensured")

	accounts := repository.NewAccountStore(pg)
	moderators := repository.NewModeratorStore(pg)

	hc := clients.NewHTTPClient(cfg.ExternalTimeout)
	var domains []services.ContentDomain
	for _, d := range []struct {
		domain models.Domain
		url    string
	}{
		{models.DomainService, cfg.ServicesDomainURL},
		{models.DomainProject, cfg.ProjectsDomainURL},
		{models.DomainPublication, cfg.PublicationsDomainURL},
	} {
		if d.url == "" {
			logger.Warn("content domain not configured; its reports are skipped", "domain", string(d.domain))
			continue
		}
		domains = append(domains, clients.NewDomainClient(d.domain, d.url, cfg.DomainAPIKey, hc, logger))
	}
	classifier := clients.NewClassifierClient(cfg.ClassifierURL, cfg.ClassifierAPIKey, cfg.ClassifierModel, cfg.ClassifierRPS, hc)
	completion := clients.NewCompletionClient(cfg.SummarizerURL, cfg.SummarizerAPIKey, cfg.SummarizerModel, hc)
	mailer := clients.NewMailClient(cfg.MailerURL, cfg.MailerAPIKey, cfg.MailerFrom, hc)

	var publisher events.Publisher
	switch cfg.EventBackend {
	case "kafka":
		kp, err := events.NewKafkaPublisher(cfg.KafkaBrokers, nil)
		if err != nil {
			return err
		}
		publisher = kp
	default:
		publisher = events.NewRedisPublisher(rdb, cfg.EventChannelPrefix)
	}
	defer publisher.Close()
	bus := events.NewBus(publisher)
	logger.Info("Event publisher ready", "backend", cfg.EventBackend)

	dispatcher := services.NewDispatcher(logger, cfg.ExternalTimeout)
	locks := services.NewRedisJobLock(rdb)
	sessions := services.NewSessionStore(rdb)
	feed := services.NewFeedHub(rdb, logger)
	go feed.Run(ctx)

	aggregator := services.NewReportAggregator(logger, cfg.ExternalTimeout, domains...)
	safety := services.NewContentSafety(classifier, logger, cfg.ExternalTimeout)
	summarizer := services.NewSummarizer(completion, logger, cfg.ExternalTimeout)
	matcher := services.NewViolationMatcher(cfg.ViolationKeywords)

	notifier := services.NewNotifier(analyses, bus, feed, locks, dispatcher, cfg.ExternalTimeout, logger)
	engine := services.NewEngine(aggregator, safety, summarizer, analyses, matcher, notifier, locks, services.EngineConfig{
		BatchSize:       cfg.BatchSize,
		BatchPause:      cfg.BatchPause,
		ReportRetention: cfg.ReportRetention,
	}, logger)
	sanctions := services.NewSanctions(analyses, accounts, ledger, domains, aggregator, bus, mailer, locks, dispatcher, cfg.Location(), logger)
	reportDetail := services.NewCachedReports(services.NewRedisKV(rdb), aggregator, services.ReportDetailTTL, logger)
	reactivator := services.NewReactivator(accounts, ledger, sessions, bus, mailer, locks, dispatcher, cfg.Location(), logger)

	if cfg.SchedulerEnabled {
		scheduler := services.NewScheduler(cfg.Location(), logger,
			services.DailyJob{
				Name: "batch_analysis", Hour: cfg.AnalysisHour, Minute: cfg.AnalysisMinute,
				Run: func(ctx context.Context) error {
					_, err := engine.RunBatchAnalysis(ctx, "scheduler")
					return err
				},
			},
			services.DailyJob{
				Name: "reactivation_sweep", Hour: cfg.ReactivationHour, Minute: cfg.ReactivationMin,
				Run: func(ctx context.Context) error {
					_, err := reactivator.ReactivateExpiredSuspensions(ctx, "scheduler")
					return err
				},
			},
		)
		scheduler.Start(ctx)
		defer scheduler.Wait()
		logger.Info("Daily moderation jobs scheduled", "timezone", cfg.SchedulerTimezone)
	}

	r := chi.NewRouter()
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	if cfg.IsProduction() {
		for _, mw := range middleware.ProductionSecurity(ctx, cfg.AllowedHost) {
			r.Use(mw)
		}
		logger.Info("Production security enabled (security headers, host check, per-IP + login rate limiting)")
	} else {
		r.Use(middleware.NewRedisRateLimiter(rdb).Middleware)
	}

	routes.SetupRoutes(r, routes.Handlers{
		Auth:             handlers.NewAuthHandler(moderators, sessions, logger),
		Moderation:       handlers.NewModerationHandler(engine, analyses, reportDetail, sanctions, reactivator, logger),
		Feed:             handlers.NewFeedHandler(sessions, feed, logger),
		RequireModerator: middleware.RequireModerator(sessions),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Moderation service running", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		stop()
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
