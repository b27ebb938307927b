package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/confirmaparty/confirma/internal/api"
	"github.com/confirmaparty/confirma/internal/app"
	"github.com/confirmaparty/confirma/internal/app/worker"
	"github.com/confirmaparty/confirma/internal/database"
	"github.com/confirmaparty/confirma/internal/services"
	"github.com/confirmaparty/confirma/internal/whatsapp"
)

// runtimeStack bundles long-lived components used by the HTTP server.
type runtimeStack struct {
	DB        *gorm.DB
	Transport whatsapp.Transport
	Worker    *worker.Worker
	Router    *gin.Engine
}

// bootstrapRuntime initialises the database, transport, services, the
// dispatch worker, and the HTTP router.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			stack.Shutdown(context.Background(), log)
		}
	}()

	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.DB, err = initialiseDatabase(cfg)
	if err != nil {
		return nil, err
	}

	stack.Transport, err = buildTransport(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	queueSvc, err := services.NewQueueService(stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise queue service: %w", err)
	}
	partySvc, err := services.NewPartyService(stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise party service: %w", err)
	}
	templateSvc, err := services.NewTemplateService(stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise template service: %w", err)
	}
	schedulerSvc, err := services.NewSchedulerService(stack.DB, queueSvc,
		services.WithSendSpacing(cfg.Scheduler.SendSpacing))
	if err != nil {
		return nil, fmt.Errorf("initialise scheduler service: %w", err)
	}
	followUpSvc, err := services.NewFollowUpService(stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise followup service: %w", err)
	}
	replySvc, err := services.NewReplyService(stack.DB, queueSvc)
	if err != nil {
		return nil, fmt.Errorf("initialise reply service: %w", err)
	}

	dispatchSvc, err := services.NewDispatchService(stack.DB, queueSvc, stack.Transport,
		services.WithBatchSize(cfg.Scheduler.BatchSize),
		services.WithMaxAttempts(cfg.Scheduler.MaxAttempts),
		services.WithRetryDelay(cfg.Scheduler.RetryDelay),
		services.WithPacing(cfg.Scheduler.Pacing),
		services.WithSendTimeout(cfg.Scheduler.SendTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("initialise dispatch service: %w", err)
	}

	stack.Worker, err = worker.New(stack.DB, schedulerSvc, dispatchSvc,
		worker.WithSpec(cfg.Scheduler.Spec))
	if err != nil {
		return nil, fmt.Errorf("initialise worker: %w", err)
	}

	// The live session feeds replies straight into the listener; the Cloud
	// API delivers them via the webhook instead.
	if meow, ok := stack.Transport.(*whatsapp.MeowTransport); ok {
		meow.SetInboundHandler(func(msg whatsapp.InboundMessage) {
			if _, err := replySvc.OnInboundMessage(context.Background(), services.InboundReply{
				Phone:      msg.Phone,
				Text:       msg.Text,
				ReceivedAt: msg.Timestamp,
			}); err != nil {
				log.Warn("inbound message handling failed", zap.Error(err))
			}
		})
	}

	stack.Router, err = api.NewRouter(api.Dependencies{
		DB:        stack.DB,
		Config:    cfg,
		Parties:   partySvc,
		Templates: templateSvc,
		Scheduler: schedulerSvc,
		FollowUps: followUpSvc,
		Queue:     queueSvc,
		Replies:   replySvc,
		Transport: stack.Transport,
		Worker:    stack.Worker,
	})
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

// Shutdown releases everything the stack holds, tolerating partial
// initialisation.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) {
	if s == nil {
		return
	}

	if s.Worker != nil {
		select {
		case <-s.Worker.Stop().Done():
		case <-ctx.Done():
		}
	}

	if meow, ok := s.Transport.(*whatsapp.MeowTransport); ok {
		meow.Disconnect()
	}

	if s.DB != nil {
		closeDatabase(s.DB, log)
	}
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	db, err := database.Open(cfg.Database.DatabaseSettings())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return db, nil
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("database handle unavailable during shutdown", zap.Error(err))
		return
	}
	if err := sqlDB.Close(); err != nil {
		log.Warn("database close failed", zap.Error(err))
	}
}

// buildTransport selects the outbound channel from configuration.
func buildTransport(ctx context.Context, cfg *app.Config, log *zap.Logger) (whatsapp.Transport, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.WhatsApp.Mode)) {
	case "cloud":
		transport, err := whatsapp.NewCloudTransport(whatsapp.CloudConfig{
			BaseURL:       cfg.WhatsApp.Cloud.BaseURL,
			AccessToken:   cfg.WhatsApp.Cloud.AccessToken,
			PhoneNumberID: cfg.WhatsApp.Cloud.PhoneNumberID,
			Timeout:       cfg.WhatsApp.Cloud.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("initialise cloud transport: %w", err)
		}
		log.Info("whatsapp transport ready", zap.String("mode", "cloud"))
		return transport, nil

	case "meow":
		transport, err := whatsapp.NewMeowTransport(ctx, whatsapp.MeowConfig{
			DataDir: cfg.WhatsApp.Meow.DataDir,
		})
		if err != nil {
			return nil, fmt.Errorf("initialise session transport: %w", err)
		}
		if err := transport.Connect(ctx); err != nil {
			return nil, fmt.Errorf("connect session transport: %w", err)
		}
		log.Info("whatsapp transport ready", zap.String("mode", "meow"))
		return transport, nil

	case "", "mock":
		log.Warn("using mock whatsapp transport; no messages will leave the process")
		return whatsapp.NewMockTransport(), nil

	default:
		return nil, fmt.Errorf("unknown whatsapp mode %q", cfg.WhatsApp.Mode)
	}
}
