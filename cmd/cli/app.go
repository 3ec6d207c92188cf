package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cspulse/internal/config"
	"cspulse/internal/models"
	"cspulse/internal/notify"
	"cspulse/internal/observability"
	"cspulse/internal/services"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	gormtracing "gorm.io/plugin/opentelemetry/tracing"
)

// app 命令共享的运行时依赖
type app struct {
	cfg    *config.Config
	logger *logrus.Logger
	db     *gorm.DB
	redis  *redis.Client
	outbox *notify.OutboxNotifier

	sla     *services.SLAService
	tickets *services.TicketService
	alerts  *services.AlertService
	surveys *services.SurveyService
	sweeps  *services.SweepService

	shutdownTracing func(context.Context) error
}

// loadConfig 加载配置并初始化日志
func loadConfig() (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, nil, err
	}
	logger, err := config.NewLogger(cfg.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, logger, nil
}

// newApp 连接数据库、装配通知 sink 与服务
func newApp(ctx context.Context) (*app, error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, err
	}

	shutdownTracing, err := observability.SetupTracing(ctx, cfg.Monitoring.Tracing)
	if err != nil {
		logger.Warnf("Tracing disabled: %v", err)
		shutdownTracing = func(context.Context) error { return nil }
	}

	db, err := openDatabase(cfg, logger)
	if err != nil {
		_ = shutdownTracing(ctx)
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, db: db, shutdownTracing: shutdownTracing}

	notifier, err := a.buildNotifier()
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	loc, err := cfg.Engine.Location()
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	a.sla = services.NewSLAService(db, logger)
	a.tickets = services.NewTicketService(db, logger, a.sla)
	a.alerts = services.NewAlertService(db, logger)
	a.alerts.SetOptions(services.AlertOptions{
		ContractWindowDays:   cfg.Engine.Alerts.ContractWindowDays,
		LicenseWindowDays:    cfg.Engine.Alerts.LicenseWindowDays,
		InactivityWindowDays: cfg.Engine.Alerts.InactivityWindowDays,
		Location:             loc,
	})
	a.surveys = services.NewSurveyService(db, logger, a.alerts, notifier)
	a.surveys.SetOptions(services.SurveyOptions{
		TTL:           cfg.Engine.Surveys.TTL,
		FatigueLimit:  cfg.Engine.Surveys.FatigueLimit,
		FatigueWindow: cfg.Engine.Surveys.FatigueWindow,
		ReminderAfter: cfg.Engine.Surveys.ReminderAfter,
		MaxReminders:  cfg.Engine.Surveys.MaxReminders,
		PublicBaseURL: cfg.Engine.Surveys.PublicBaseURL,
	})
	a.sweeps = services.NewSweepService(a.alerts, a.sla, a.surveys, logger)
	return a, nil
}

// openDatabase 按驱动打开数据库连接
func openDatabase(cfg *config.Config, logger *logrus.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Database.Driver {
	case "sqlite":
		dsn := cfg.Database.DSN
		if dsn == "" {
			dsn = "cspulse.db"
		}
		dialector = sqlite.Open(dsn)
	default:
		dialector = postgres.Open(cfg.Database.PostgresDSN())
	}

	level := gormlogger.Warn
	if logger.IsLevelEnabled(logrus.DebugLevel) {
		level = gormlogger.Info
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.New(logger, gormlogger.Config{
			SlowThreshold:             500 * time.Millisecond,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.Monitoring.Tracing.Enabled {
		if err := db.Use(gormtracing.NewPlugin()); err != nil {
			logger.Warnf("Failed to enable gorm tracing: %v", err)
		}
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql db: %w", err)
	}
	if cfg.Database.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	}
	if cfg.Database.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	}
	if cfg.Database.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)
	}
	return db, nil
}

// redisClient 延迟创建 redis 客户端
func (a *app) redisClient() *redis.Client {
	if a.redis == nil {
		r := a.cfg.Redis
		a.redis = notify.NewRedisClient(r.Addr(), r.Password, r.DB, r.PoolSize, r.MinIdleConns)
	}
	return a.redis
}

func (a *app) outboxNotifier() *notify.OutboxNotifier {
	if a.outbox == nil {
		a.outbox = notify.NewOutboxNotifier(a.db)
	}
	return a.outbox
}

// sink 按驱动名创建单个通知 sink
func (a *app) sink(driver string) (notify.Notifier, error) {
	switch strings.ToLower(driver) {
	case "outbox":
		return a.outboxNotifier(), nil
	case "redis":
		return notify.NewRedisNotifier(a.redisClient(), a.cfg.Notifier.Redis.ListKey), nil
	case "webhook":
		wh := a.cfg.Notifier.Webhook
		if wh.URL == "" {
			return nil, errors.New("notifier.webhook.url is not configured")
		}
		return notify.NewWebhookNotifier(wh.URL, wh.Secret, wh.Timeout), nil
	case "log":
		return notify.NewLogNotifier(a.logger), nil
	}
	return nil, fmt.Errorf("unknown notifier driver %q", driver)
}

func (a *app) buildNotifier() (notify.Notifier, error) {
	var sinks []notify.Notifier
	for _, d := range a.cfg.Notifier.Drivers {
		s, err := a.sink(d)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, s)
	}
	multi := notify.NewMultiNotifier(sinks...)
	if multi.Len() == 0 {
		return notify.NewLogNotifier(a.logger), nil
	}
	return multi, nil
}

// Close 释放连接并刷新追踪数据
func (a *app) Close(ctx context.Context) {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warnf("Failed to close redis client: %v", err)
		}
	}
	if a.db != nil {
		if sqlDB, err := a.db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	if a.shutdownTracing != nil {
		if err := a.shutdownTracing(ctx); err != nil {
			a.logger.Warnf("Failed to shutdown tracing: %v", err)
		}
	}
}

// migrate 自动迁移全部模型
func migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(models.AllModels()...); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}
