package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/generyand/umdc-cec-system-sub001/api/swagger"
	"github.com/generyand/umdc-cec-system-sub001/internal/app"
	"github.com/generyand/umdc-cec-system-sub001/internal/handler"
	"github.com/generyand/umdc-cec-system-sub001/internal/middleware"
	"github.com/generyand/umdc-cec-system-sub001/internal/models"
	"github.com/generyand/umdc-cec-system-sub001/pkg/config"
	"github.com/generyand/umdc-cec-system-sub001/pkg/logger"
	corsmiddleware "github.com/generyand/umdc-cec-system-sub001/pkg/middleware/cors"
	reqidmiddleware "github.com/generyand/umdc-cec-system-sub001/pkg/middleware/requestid"
)

// @title CEC Workflow API
// @version 1.0.0
// @description Community extension proposal approvals, activities and notifications
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	container, err := app.New(cfg, logr)
	if err != nil {
		logr.Fatal("failed to build application", zap.Error(err))
	}
	defer container.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	container.StartWorkers(ctx)
	if err := container.Scheduler.Start(); err != nil {
		logr.Fatal("failed to start scheduler", zap.Error(err))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           newRouter(cfg, container, logr),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "approval_chain", container.Approval.Chain().Roles())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	container.Scheduler.Stop(shutdownCtx)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

func newRouter(cfg *config.Config, c *app.Container, logr *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(c.Metrics))

	metricsHandler := handler.NewMetricsHandler(c.Metrics, map[string]handler.Pinger{
		"postgres": c.PingPostgres,
		"redis":    c.PingRedis,
	})
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	proposals := handler.NewProposalHandler(c.Approval, c.Export)
	activities := handler.NewActivityHandler(c.Activity)
	notifications := handler.NewNotificationHandler(c.Notifications)
	schoolYears := handler.NewSchoolYearHandler(c.SchoolYear)
	scheduler := handler.NewSchedulerHandler(c.Scheduler)

	admin := middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin)

	api := r.Group(cfg.APIPrefix, middleware.JWT(c.Auth))
	{
		api.POST("/proposals", proposals.Submit)
		api.POST("/proposals/:id/approve", proposals.Approve)
		api.POST("/proposals/:id/return", proposals.Return)
		api.POST("/proposals/:id/resubmit", proposals.Resubmit)
		api.GET("/proposals/:id/approvals", proposals.History)
		api.GET("/proposals/:id/approvals/export", proposals.Export)
		api.GET("/approvals/pending", proposals.Pending)

		api.GET("/activities", activities.List)
		api.GET("/activities/:id", activities.Get)
		api.PATCH("/activities/:id/status", admin, activities.UpdateStatus)

		api.GET("/notifications", notifications.List)
		api.GET("/notifications/unread-count", notifications.UnreadCount)
		api.PATCH("/notifications/read-all", notifications.MarkAllRead)
		api.PATCH("/notifications/:id/read", notifications.MarkRead)
		api.PATCH("/notifications/:id/archive", notifications.Archive)

		api.GET("/school-years", schoolYears.List)
		api.GET("/school-years/current", schoolYears.Current)
		api.POST("/school-years", admin,
			middleware.Audit(c.Users, logr, models.AuditActionSchoolYearCreate, "school_year", ""),
			schoolYears.Create)
		api.POST("/school-years/:id/current", admin, schoolYears.SetCurrent)

		api.GET("/scheduler/jobs", admin, scheduler.Jobs)
		api.POST("/scheduler/:job/run", admin,
			middleware.Audit(c.Users, logr, models.AuditActionSchedulerRun, "scheduler", "job"),
			scheduler.Run)
	}

	return r
}
