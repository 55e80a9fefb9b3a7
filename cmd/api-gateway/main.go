package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/clefbook/clefbook-api/api/swagger"
	"github.com/clefbook/clefbook-api/internal/handler"
	"github.com/clefbook/clefbook-api/internal/middleware"
	"github.com/clefbook/clefbook-api/internal/models"
	"github.com/clefbook/clefbook-api/internal/repository"
	"github.com/clefbook/clefbook-api/internal/service"
	"github.com/clefbook/clefbook-api/pkg/cache"
	"github.com/clefbook/clefbook-api/pkg/config"
	"github.com/clefbook/clefbook-api/pkg/database"
	"github.com/clefbook/clefbook-api/pkg/email"
	"github.com/clefbook/clefbook-api/pkg/jobs"
	"github.com/clefbook/clefbook-api/pkg/logger"
	corsmiddleware "github.com/clefbook/clefbook-api/pkg/middleware/cors"
	reqidmiddleware "github.com/clefbook/clefbook-api/pkg/middleware/requestid"
	"github.com/clefbook/clefbook-api/pkg/retry"
)

// @title ClefBook API
// @version 1.0.0
// @description Lesson booking and billing for independent music teachers
// @BasePath /
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck
	sugar := logr.Sugar()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		sugar.Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		sugar.Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close()

	// Repositories.
	teacherRepo := repository.NewTeacherRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	userRepo := repository.NewUserRepository(db)
	availRepo := repository.NewAvailabilityRepository(db)
	lessonRepo := repository.NewLessonRepository(db)
	slotRepo := repository.NewRecurringSlotRepository(db)
	billingRepo := repository.NewBillingRepository(db)
	jobRepo := repository.NewJobRecordRepository(db)
	rateCardCache := repository.NewRateCardCache(redisClient, cfg.Booking.RateCardCacheTTL, logr)

	// Outbound email.
	var sender email.Sender
	if cfg.Email.Enabled {
		sender = email.NewSMTPSender(cfg.Email)
	} else {
		sender = email.NewNoopSender(logr)
	}
	metricsSvc := service.NewMetricsService()
	emailQueue := jobs.NewEmailQueue(sender, jobs.EmailQueueConfig{
		Workers:    cfg.Jobs.EmailWorkers,
		BufferSize: cfg.Jobs.EmailQueueSize,
		Policy:     retry.EmailPolicy(),
		Logger:     logr,
		OnDrop:     metricsSvc.EmailDropped,
	})
	emailQueue.Start(context.Background())
	defer emailQueue.Stop()

	// Services.
	validate := validator.New()
	calculator := service.NewBillingCalculator()
	authSvc := service.NewAuthService(userRepo, cfg.JWT, validate, logr)
	teacherSvc := service.NewTeacherService(teacherRepo, rateCardCache, validate, logr)
	availSvc := service.NewAvailabilityService(teacherRepo, availRepo, lessonRepo, rateCardCache, cfg.Booking, validate, logr)
	bookingSvc := service.NewBookingService(lessonRepo, teacherRepo, studentRepo, availRepo, emailQueue, validate, logr)
	recurringSvc := service.NewRecurringSlotService(slotRepo, teacherRepo, studentRepo, billingRepo, calculator, emailQueue, validate, logr)
	materializer := service.NewLessonMaterializer(slotRepo, lessonRepo, availRepo, teacherRepo, jobRepo, cfg.Jobs.MaterializeHorizonWeeks, logr)
	invoices := service.NewInvoiceGenerator(slotRepo, billingRepo, jobRepo, calculator, cfg.Billing.Currency, logr)
	jobSvc := service.NewJobService(jobRepo, materializer, invoices, db, redisClient, cfg.Jobs.HistoryDefaultLimit, logr)
	exportSvc := service.NewBillingExportService(billingRepo, logr)

	// Handlers.
	authH := handler.NewAuthHandler(authSvc)
	teacherH := handler.NewTeacherHandler(teacherSvc)
	availH := handler.NewAvailabilityHandler(availSvc)
	lessonH := handler.NewLessonHandler(bookingSvc, metricsSvc)
	recurringH := handler.NewRecurringSlotHandler(recurringSvc, metricsSvc)
	adminH := handler.NewAdminHandler(jobSvc, exportSvc)
	metricsH := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsH.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	api.POST("/auth/login", authH.Login)

	authed := api.Group("")
	authed.Use(middleware.JWT(authSvc))
	{
		authed.GET("/auth/me", authH.Me)

		authed.GET("/teachers", teacherH.List)
		authed.GET("/teachers/:id", teacherH.Get)
		authed.POST("/teachers", middleware.RequireRoles(models.RoleAdmin), teacherH.Create)
		authed.PUT("/teachers/:id", middleware.RBAC(string(models.RoleAdmin), "SELF"), teacherH.Update)

		authed.GET("/teachers/:id/slots", availH.Slots)
		authed.GET("/teachers/:id/availability", availH.GetSchedule)
		authed.PUT("/teachers/:id/availability", middleware.RBAC(string(models.RoleAdmin), "SELF"), availH.ReplaceSchedule)
		authed.POST("/teachers/:id/blocked", middleware.RBAC(string(models.RoleAdmin), "SELF"), availH.Block)
		authed.DELETE("/teachers/:id/blocked/:bid", middleware.RBAC(string(models.RoleAdmin), "SELF"), availH.Unblock)

		authed.POST("/lessons", lessonH.Book)
		authed.PATCH("/lessons/:id/status", lessonH.UpdateStatus)
		authed.GET("/teachers/:id/lessons", lessonH.ListByTeacher)

		authed.POST("/recurring-slots", recurringH.Book)
		authed.DELETE("/recurring-slots/:id", recurringH.Cancel)
		authed.GET("/recurring-slots/:id/billing-preview", recurringH.PreviewBilling)
		authed.GET("/teachers/:id/recurring-slots", recurringH.ListByTeacher)

		admin := authed.Group("/admin")
		admin.Use(middleware.RequireRoles(models.RoleAdmin))
		{
			admin.GET("/jobs", adminH.JobHistory)
			admin.POST("/jobs/lesson-generation", adminH.TriggerLessonGeneration)
			admin.POST("/jobs/invoice-generation", adminH.TriggerInvoiceGeneration)
			admin.GET("/health", adminH.Health)
			admin.GET("/billing", adminH.BillingRecords)
			admin.GET("/billing/subscriptions/:id", adminH.SubscriptionHistory)
			admin.GET("/billing/export", adminH.ExportBilling)
		}
	}

	jobCtx, stopJobs := context.WithCancel(context.Background())
	defer stopJobs()
	go runScheduledJobs(jobCtx, materializer, invoices, metricsSvc, cfg.Billing.InvoiceDayOfMonth, sugar)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		sugar.Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	sugar.Infow("shutting down")
	stopJobs()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		sugar.Errorw("forced shutdown", "error", err)
	}
}

// runScheduledJobs drives the background jobs: the lesson materializer once
// a day, the invoice generator once a month on the configured day. Both jobs
// are idempotent, so an extra run after a restart is harmless.
func runScheduledJobs(
	ctx context.Context,
	materializer *service.LessonMaterializer,
	invoices *service.InvoiceGenerator,
	metrics *service.MetricsService,
	invoiceDay int,
	sugar *zap.SugaredLogger,
) {
	if invoiceDay < 1 || invoiceDay > 28 {
		invoiceDay = 1
	}

	runMaterializer := func() {
		started := time.Now()
		result, err := materializer.Run(ctx)
		if err != nil {
			sugar.Errorw("lesson generation failed", "error", err)
			return
		}
		metrics.ObserveJobRun(models.JobGenerateLessons, result, time.Since(started))
	}
	runInvoices := func() {
		started := time.Now()
		result, err := invoices.Run(ctx)
		if err != nil {
			sugar.Errorw("invoice generation failed", "error", err)
			return
		}
		metrics.ObserveJobRun(models.JobGenerateInvoices, result, time.Since(started))
	}

	// Catch-up pass on boot.
	runMaterializer()
	if time.Now().UTC().Day() == invoiceDay {
		runInvoices()
	}

	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	lastMaterialized := time.Now().UTC()
	lastInvoiced := ""
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			now = now.UTC()
			if now.Sub(lastMaterialized) >= 24*time.Hour {
				runMaterializer()
				lastMaterialized = now
			}
			if month := now.Format("2006-01"); now.Day() == invoiceDay && month != lastInvoiced {
				runInvoices()
				lastInvoiced = month
			}
		}
	}
}
