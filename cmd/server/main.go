package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/erp/refundengine/cmd/internal/bootstrap"
	"github.com/erp/refundengine/internal/application/refundmgr"
	"github.com/erp/refundengine/internal/domain/approval"
	"github.com/erp/refundengine/internal/domain/compliance"
	"github.com/erp/refundengine/internal/domain/parameter"
	"github.com/erp/refundengine/internal/infrastructure/auth"
	"github.com/erp/refundengine/internal/infrastructure/cache"
	"github.com/erp/refundengine/internal/infrastructure/config"
	"github.com/erp/refundengine/internal/infrastructure/logger"
	"github.com/erp/refundengine/internal/infrastructure/persistence"
	"github.com/erp/refundengine/internal/infrastructure/persistence/repository"
	"github.com/erp/refundengine/internal/infrastructure/queue"
	"github.com/erp/refundengine/internal/infrastructure/scheduler"
	"github.com/erp/refundengine/internal/infrastructure/secrets"
	"github.com/erp/refundengine/internal/interfaces/http/handler"
	"github.com/erp/refundengine/internal/interfaces/http/middleware"
	"github.com/erp/refundengine/internal/interfaces/http/router"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer func() { _ = logger.Sync(log) }()

	log.Info("starting refund engine",
		zap.String("app", cfg.App.Name), zap.String("env", cfg.App.Env), zap.String("port", cfg.App.Port))

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog, log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("error closing database", zap.Error(err))
		}
	}()

	redisCache := cache.RedisConfig{Host: cfg.Redis.Host, Port: cfg.Redis.Port, Password: cfg.Redis.Password, DB: cfg.Redis.DB}

	locker, err := cache.NewRedisLocker(redisCache, log)
	if err != nil {
		log.Fatal("failed to connect to redis for locking", zap.Error(err))
	}

	idempotency, err := cache.NewRedisIdempotencyStore(redisCache)
	if err != nil {
		log.Fatal("failed to connect to redis for idempotency", zap.Error(err))
	}
	defer func() { _ = idempotency.Close() }()

	paramCache, err := cache.NewTieredParameterCache(redisCache, log)
	if err != nil {
		log.Fatal("failed to build parameter cache", zap.Error(err))
	}

	refundRepo := repository.NewGormRefundRepository(db.DB)
	bankAcctRepo := repository.NewGormBankAccountRepository(db.DB)
	approvalRepo := repository.NewGormApprovalRepository(db.DB)
	ruleRepo := repository.NewGormRuleRepository(db.DB)
	paramRepo := repository.NewGormParameterRepository(db.DB)
	credStore := repository.NewGormCredentialStore(db.DB)
	txReader := repository.NewGormTransactionReader(db.DB)
	hierarchy := repository.NewGormHierarchyProvider(db.DB)

	ctx := context.Background()
	kmsManager, err := secrets.NewKMSCredentialManager(ctx, secrets.Config{
		Region:    cfg.KMS.Region,
		AccessKey: cfg.KMS.AccessKey,
		SecretKey: cfg.KMS.SecretKey,
		KeyID:     cfg.KMS.KeyID,
		CacheTTL:  cfg.KMS.CacheTTL,
	}, credStore, log)
	if err != nil {
		log.Fatal("failed to initialize credential manager", zap.Error(err))
	}

	registry := bootstrap.BuildGatewayRegistry(log)

	validator := compliance.NewValidator()
	approvalEngine := approval.NewEngine(ruleRepo, approvalRepo)
	paramResolver := parameter.NewResolver(paramRepo, paramCache, hierarchy, 0)

	js, err := queue.Connect(queue.Config{URL: cfg.Queue.URL, MaxAge: cfg.Queue.MaxAge, Replicas: cfg.Queue.Replicas})
	if err != nil {
		log.Fatal("failed to connect to queue", zap.Error(err))
	}
	defer js.Close()
	publisher := queue.NewPublisher(js, log)

	manager := refundmgr.NewManager(
		refundRepo, txReader, bankAcctRepo, validator, approvalEngine, paramResolver,
		locker, idempotency, publisher, log,
	)

	authSvc := auth.NewService([]byte(cfg.JWT.Secret), cfg.App.Name)

	handlers := router.Handlers{
		Refund:      handler.NewRefundHandler(manager, refundRepo),
		BankAccount: handler.NewBankAccountHandler(bankAcctRepo, kmsManager),
		Parameter:   handler.NewParameterHandler(paramResolver),
		Approval:    handler.NewApprovalHandler(approvalEngine, manager, approvalRepo, log),
		Webhook:     handler.NewWebhookHandler(registry, refundRepo, locker, cfg.Webhook.Secrets, log),
		Auth:        authSvc,
	}

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.CORS())

	engine.GET("/health", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "database": "error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "time": time.Now().Format(time.RFC3339)})
	})

	r := router.New(engine, handlers)
	r.Setup()

	jobScheduler := scheduler.NewScheduler(scheduler.DefaultConfig(), &scheduler.PublishExecutor{Publisher: publisher}, log)
	if err := jobScheduler.Start(ctx); err != nil {
		log.Fatal("failed to start job scheduler", zap.Error(err))
	}
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer stopCancel()
		_ = jobScheduler.Stop(stopCtx)
	}()

	cronScheduler := scheduler.NewCronScheduler(jobScheduler, log)
	tickSpec := approvalTickCronSpec(cfg.Approval.TickInterval)
	if err := cronScheduler.AddApprovalTick(tickSpec, 3); err != nil {
		log.Error("failed to schedule approval tick", zap.Error(err))
	}
	cronScheduler.Start()
	defer cronScheduler.Stop()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("server forced to shutdown", zap.Error(err))
	}
	log.Info("server exited gracefully")
}

// approvalTickCronSpec renders interval as a robfig/cron "@every" spec,
// falling back to one minute if unset.
func approvalTickCronSpec(interval time.Duration) string {
	if interval <= 0 {
		interval = time.Minute
	}
	return "@every " + interval.String()
}
