package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/erp/refundengine/cmd/internal/bootstrap"
	"github.com/erp/refundengine/internal/application/notify"
	"github.com/erp/refundengine/internal/application/worker"
	"github.com/erp/refundengine/internal/domain/approval"
	"github.com/erp/refundengine/internal/domain/queuemsg"
	"github.com/erp/refundengine/internal/infrastructure/cache"
	"github.com/erp/refundengine/internal/infrastructure/config"
	"github.com/erp/refundengine/internal/infrastructure/logger"
	"github.com/erp/refundengine/internal/infrastructure/persistence"
	"github.com/erp/refundengine/internal/infrastructure/persistence/repository"
	"github.com/erp/refundengine/internal/infrastructure/queue"
	"github.com/erp/refundengine/internal/infrastructure/secrets"
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

	log.Info("starting refund worker", zap.String("app", cfg.App.Name), zap.String("env", cfg.App.Env))

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

	refundRepo := repository.NewGormRefundRepository(db.DB)
	bankAcctRepo := repository.NewGormBankAccountRepository(db.DB)
	approvalRepo := repository.NewGormApprovalRepository(db.DB)
	ruleRepo := repository.NewGormRuleRepository(db.DB)
	credStore := repository.NewGormCredentialStore(db.DB)
	deadLetter := repository.NewGormDeadLetterSink(db.DB)

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

	approvalEngine := approval.NewEngine(ruleRepo, approvalRepo)

	js, err := queue.Connect(queue.Config{URL: cfg.Queue.URL, MaxAge: cfg.Queue.MaxAge, Replicas: cfg.Queue.Replicas})
	if err != nil {
		log.Fatal("failed to connect to queue", zap.Error(err))
	}
	defer js.Close()
	publisher := queue.NewPublisher(js, log)

	dispatcher := notify.NewDispatcher(notify.DefaultTemplates(), []notify.Channel{notify.NewLogChannel(log)}, log)

	pipeline := worker.NewPipeline(publisher, deadLetter, worker.DefaultRetryConfig(), log)
	pipeline.RegisterHandler(queuemsg.TypeProcessRefund, &worker.ProcessRefundHandler{
		Refunds: refundRepo, BankAccts: bankAcctRepo, Gateways: registry, Credentials: kmsManager,
		Locker: locker, Publisher: publisher, Logger: log,
	})
	pipeline.RegisterHandler(queuemsg.TypeCheckGateway, &worker.CheckGatewayHandler{
		Refunds: refundRepo, Gateways: registry, Credentials: kmsManager,
		Locker: locker, Publisher: publisher, Logger: log,
	})
	pipeline.RegisterHandler(queuemsg.TypeApprovalTick, &worker.ApprovalTickHandler{
		Engine: approvalEngine, Refunds: refundRepo, Locker: locker, Publisher: publisher,
		EscalationAfter: cfg.Approval.EscalationAfter, Fallback: approval.FallbackAutoReject, Logger: log,
	})
	pipeline.RegisterHandler(queuemsg.TypeNotify, &worker.NotifyHandler{Notifier: dispatcher})

	consumer := queue.NewConsumer(js, queue.ConsumerConfig{Name: "refund-worker", MaxDeliver: 5, AckWait: 30 * time.Second}, log)

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := pipeline.Run(runCtx, consumer); err != nil {
			log.Error("pipeline stopped", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down worker")
	cancel()
	log.Info("worker exited")
}
