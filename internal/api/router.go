package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/confirmaparty/confirma/internal/app"
	"github.com/confirmaparty/confirma/internal/app/worker"
	"github.com/confirmaparty/confirma/internal/handlers"
	"github.com/confirmaparty/confirma/internal/middleware"
	"github.com/confirmaparty/confirma/internal/services"
	"github.com/confirmaparty/confirma/internal/whatsapp"
)

// Dependencies carries the wired services the router exposes over HTTP.
type Dependencies struct {
	DB        *gorm.DB
	Config    *app.Config
	Parties   *services.PartyService
	Templates *services.TemplateService
	Scheduler *services.SchedulerService
	FollowUps *services.FollowUpService
	Queue     *services.QueueService
	Replies   *services.ReplyService
	Transport whatsapp.Transport
	Worker    *worker.Worker
}

// NewRouter builds the Gin engine, wires middleware and registers all routes.
func NewRouter(deps Dependencies) (*gin.Engine, error) {
	if deps.DB == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if deps.Config == nil {
		return nil, fmt.Errorf("config must be provided")
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS())

	// Health endpoint (public)
	r.GET("/health", handlers.Health(deps.DB))

	partyHandler, err := handlers.NewPartyHandler(deps.Parties, deps.Queue)
	if err != nil {
		return nil, err
	}
	templateHandler, err := handlers.NewTemplateHandler(deps.Templates)
	if err != nil {
		return nil, err
	}
	scheduleHandler, err := handlers.NewScheduleHandler(deps.Scheduler)
	if err != nil {
		return nil, err
	}
	followUpHandler, err := handlers.NewFollowUpHandler(deps.FollowUps)
	if err != nil {
		return nil, err
	}
	queueHandler, err := handlers.NewQueueHandler(deps.Queue, deps.Worker)
	if err != nil {
		return nil, err
	}
	webhookHandler, err := handlers.NewWebhookHandler(deps.Replies, deps.Config.WhatsApp.WebhookVerifyToken)
	if err != nil {
		return nil, err
	}
	whatsappHandler := handlers.NewWhatsAppHandler(deps.Transport)

	api := r.Group("/api")

	parties := api.Group("/parties")
	{
		parties.POST("", partyHandler.Create)
		parties.GET("", partyHandler.List)
		parties.GET("/:id", partyHandler.Get)
		parties.POST("/:id/guests", partyHandler.AddGuests)
		parties.GET("/:id/guests", partyHandler.ListGuests)
		parties.POST("/:id/cancel-pending", partyHandler.CancelPending)

		parties.POST("/:id/template", templateHandler.Submit)
		parties.GET("/:id/template", templateHandler.Status)

		parties.POST("/:id/schedule/invites", scheduleHandler.Invites)
		parties.POST("/:id/schedule/followups", scheduleHandler.FollowUps)

		parties.PUT("/:id/followups", followUpHandler.Upsert)
		parties.GET("/:id/followups", followUpHandler.List)
		parties.DELETE("/:id/followups/:order", followUpHandler.Delete)

		parties.GET("/:id/queue/stats", queueHandler.Stats)
		parties.GET("/:id/queue/upcoming", queueHandler.Upcoming)
	}

	api.PATCH("/guests/:guestID/status", partyHandler.SetGuestStatus)

	api.POST("/template/validate", templateHandler.Validate)
	api.GET("/template/guidelines", templateHandler.Guidelines)

	api.GET("/whatsapp/status", whatsappHandler.Status)
	api.GET("/whatsapp/qr", whatsappHandler.QR)

	// External cron trigger, guarded by the shared secret.
	api.POST("/queue/process",
		middleware.CronSecret(deps.Config.Server.CronSecret),
		queueHandler.Process)

	// Cloud API webhook
	r.GET("/webhook/whatsapp", webhookHandler.Verify)
	r.POST("/webhook/whatsapp", webhookHandler.Receive)

	// Metrics endpoint
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// NotFound fallback
	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
