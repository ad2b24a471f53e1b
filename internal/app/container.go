// Package app assembles repositories and services from configuration. Both the HTTP server and
// the operator CLI build on the same container.
package app

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/generyand/umdc-cec-system-sub001/internal/repository"
	"github.com/generyand/umdc-cec-system-sub001/internal/service"
	"github.com/generyand/umdc-cec-system-sub001/pkg/cache"
	"github.com/generyand/umdc-cec-system-sub001/pkg/config"
	"github.com/generyand/umdc-cec-system-sub001/pkg/database"
	"github.com/generyand/umdc-cec-system-sub001/pkg/jobs"
	"github.com/generyand/umdc-cec-system-sub001/pkg/mailer"
)

// Container holds the wired dependency graph.
type Container struct {
	Config *config.Config
	Logger *zap.Logger
	DB     *sqlx.DB
	Redis  *redis.Client

	Users       *repository.UserRepository
	Proposals   *repository.ProposalRepository
	Approvals   *repository.ApprovalRepository
	Activities  *repository.ActivityRepository
	SchoolYears *repository.SchoolYearRepository

	Metrics       *service.MetricsService
	Cache         *service.CacheService
	Auth          *service.AuthService
	Notifications *service.NotificationService
	Approval      *service.ApprovalService
	Activity      *service.ActivityService
	Escalation    *service.EscalationService
	Scheduler     *service.SchedulerService
	SchoolYear    *service.SchoolYearService
	Export        *service.ExportService

	notificationQueue *jobs.Queue
}

// New connects to postgres (and redis when enabled) and wires every service.
func New(cfg *config.Config, logger *zap.Logger) (*Container, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	chain, err := service.ParseApprovalChain(cfg.Workflow.ApprovalChain)
	if err != nil {
		return nil, fmt.Errorf("approval chain: %w", err)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	c := &Container{Config: cfg, Logger: logger, DB: db, Redis: redisClient}
	c.wire(chain)
	return c, nil
}

func (c *Container) wire(chain service.ApprovalChain) {
	cfg := c.Config
	loc := cfg.Workflow.Location()

	c.Users = repository.NewUserRepository(c.DB)
	c.Proposals = repository.NewProposalRepository(c.DB)
	c.Approvals = repository.NewApprovalRepository(c.DB)
	c.Activities = repository.NewActivityRepository(c.DB)
	c.SchoolYears = repository.NewSchoolYearRepository(c.DB)
	organizations := repository.NewOrganizationRepository(c.DB)
	notificationRepo := repository.NewNotificationRepository(c.DB)

	c.Metrics = service.NewMetricsService()
	cacheRepo := repository.NewCacheRepository(c.Redis, c.Logger)
	c.Cache = service.NewCacheService(cacheRepo, c.Metrics, cfg.Cache.TTL, c.Logger, cfg.Cache.Enabled && c.Redis != nil)

	c.Auth = service.NewAuthService(c.Logger, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		Issuer:            cfg.JWT.Issuer,
		Audience:          cfg.JWT.Audience,
	})

	c.Notifications = service.NewNotificationService(notificationRepo, c.DB, c.Logger,
		service.WithNotificationCache(c.Cache),
		service.WithNotificationMetrics(c.Metrics),
	)
	c.notificationQueue = jobs.NewQueue("notifications", c.Notifications.HandleJob, jobs.QueueConfig{
		Workers:    cfg.Notifications.Workers,
		BufferSize: cfg.Notifications.BufferSize,
		MaxRetries: cfg.Notifications.MaxRetries,
		RetryDelay: cfg.Notifications.RetryDelay,
		Logger:     c.Logger,
		OnDrop:     c.Notifications.OnJobDropped,
	})
	c.Notifications.SetQueue(c.notificationQueue)

	templates := service.NewNotificationTemplates(cfg.Workflow.PortalBaseURL)
	materializer := service.NewActivityMaterializer(c.Activities, c.SchoolYears, organizations, c.Logger)

	c.Approval = service.NewApprovalService(c.Proposals, c.Approvals, c.Users, materializer, c.Notifications, c.Users, c.DB, c.Logger,
		service.WithApprovalChain(chain),
		service.WithApprovalTemplates(templates),
		service.WithApprovalCache(c.Cache),
		service.WithApprovalMetrics(c.Metrics),
	)

	c.Activity = service.NewActivityService(c.Activities, c.Proposals, c.Notifications, templates, c.Users, c.Metrics,
		service.ActivityServiceConfig{Location: loc, CatchUp: cfg.Workflow.ActivityCatchUp}, c.Logger)

	c.Escalation = service.NewEscalationService(c.Approvals, c.Users, c.Notifications, mailer.New(cfg.SMTP, c.Logger),
		templates, c.Metrics, cfg.Workflow.EscalationThreshold, c.Logger)

	c.Scheduler = service.NewSchedulerService(c.Activity, c.Escalation, cache.NewRedisLocker(c.Redis), service.SchedulerConfig{
		Enabled:        cfg.Scheduler.Enabled,
		Location:       loc,
		ActivitySpec:   cfg.Scheduler.ActivityCron,
		EscalationSpec: cfg.Scheduler.EscalationCron,
		LockTTL:        cfg.Scheduler.LockTTL,
	}, c.Logger)

	c.SchoolYear = service.NewSchoolYearService(c.SchoolYears, c.Users, c.Logger)
	c.Export = service.NewExportService(c.Approval, c.Users, loc, c.Logger, nil, nil, nil)
}

// StartWorkers begins asynchronous notification delivery.
func (c *Container) StartWorkers(ctx context.Context) {
	c.notificationQueue.Start(ctx)
}

// Close stops workers and releases connections.
func (c *Container) Close() {
	if c.notificationQueue != nil {
		c.notificationQueue.Stop()
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			c.Logger.Warn("close redis", zap.Error(err))
		}
	}
	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			c.Logger.Warn("close postgres", zap.Error(err))
		}
	}
}

// PingPostgres reports database reachability.
func (c *Container) PingPostgres(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

// PingRedis reports redis reachability; a disabled redis is always healthy.
func (c *Container) PingRedis(ctx context.Context) error {
	if c.Redis == nil {
		return nil
	}
	return c.Redis.Ping(ctx).Err()
}
