package config

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server" yaml:"server"`
	Database   DatabaseConfig   `mapstructure:"database" yaml:"database"`
	Redis      RedisConfig      `mapstructure:"redis" yaml:"redis"`
	Log        LogConfig        `mapstructure:"log" yaml:"log"`
	Monitoring MonitoringConfig `mapstructure:"monitoring" yaml:"monitoring"`
	Engine     EngineConfig     `mapstructure:"engine" yaml:"engine"`
	Notifier   NotifierConfig   `mapstructure:"notifier" yaml:"notifier"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler" yaml:"scheduler"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host" yaml:"host"`
	Port            int           `mapstructure:"port" yaml:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver" yaml:"driver"` // postgres, sqlite
	DSN             string        `mapstructure:"dsn" yaml:"dsn"`       // 非空时优先使用
	Host            string        `mapstructure:"host" yaml:"host"`
	Port            int           `mapstructure:"port" yaml:"port"`
	User            string        `mapstructure:"user" yaml:"user"`
	Password        string        `mapstructure:"password" yaml:"password"`
	Name            string        `mapstructure:"name" yaml:"name"`
	SSLMode         string        `mapstructure:"sslmode" yaml:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" yaml:"conn_max_lifetime"`
}

// PostgresDSN 拼接 postgres 连接串
func (d DatabaseConfig) PostgresDSN() string {
	if d.DSN != "" {
		return d.DSN
	}
	sslmode := d.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s TimeZone=UTC",
		d.Host, d.User, d.Password, d.Name, d.Port, sslmode)
}

type RedisConfig struct {
	Host         string `mapstructure:"host" yaml:"host"`
	Port         int    `mapstructure:"port" yaml:"port"`
	Password     string `mapstructure:"password" yaml:"password"`
	DB           int    `mapstructure:"db" yaml:"db"`
	PoolSize     int    `mapstructure:"pool_size" yaml:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns" yaml:"min_idle_conns"`
}

// Addr host:port
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type LogConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`
	Format     string `mapstructure:"format" yaml:"format"` // json, text
	Output     string `mapstructure:"output" yaml:"output"` // stdout, file, both
	FilePath   string `mapstructure:"file_path" yaml:"file_path"`
	MaxSize    int    `mapstructure:"max_size" yaml:"max_size"`       // MB
	MaxAge     int    `mapstructure:"max_age" yaml:"max_age"`         // days
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"` // number of backup files
	Compress   bool   `mapstructure:"compress" yaml:"compress"`       // compress backup files
}

type MonitoringConfig struct {
	Enabled     bool          `mapstructure:"enabled" yaml:"enabled"`
	MetricsPath string        `mapstructure:"metrics_path" yaml:"metrics_path"`
	Tracing     TracingConfig `mapstructure:"tracing" yaml:"tracing"`
}

// TracingConfig OpenTelemetry 追踪配置
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled" yaml:"enabled"`
	Endpoint    string  `mapstructure:"endpoint" yaml:"endpoint"`         // OTLP gRPC 端点，例如 http://otel-collector:4317
	Insecure    bool    `mapstructure:"insecure" yaml:"insecure"`         // 是否使用明文（本地/开发）
	SampleRatio float64 `mapstructure:"sample_ratio" yaml:"sample_ratio"` // 采样率 0.0~1.0
	ServiceName string  `mapstructure:"service_name" yaml:"service_name"`
}

// EngineConfig 规则引擎参数
type EngineConfig struct {
	Timezone string             `mapstructure:"timezone" yaml:"timezone"` // 告警去重自然日使用的时区
	Alerts   AlertsEngineConfig `mapstructure:"alerts" yaml:"alerts"`
	Surveys  SurveyEngineConfig `mapstructure:"surveys" yaml:"surveys"`
}

// Location 解析时区，空值为 UTC
func (e EngineConfig) Location() (*time.Location, error) {
	if e.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(e.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid engine timezone %q: %w", e.Timezone, err)
	}
	return loc, nil
}

type AlertsEngineConfig struct {
	ContractWindowDays   int `mapstructure:"contract_window_days" yaml:"contract_window_days"`
	LicenseWindowDays    int `mapstructure:"license_window_days" yaml:"license_window_days"`
	InactivityWindowDays int `mapstructure:"inactivity_window_days" yaml:"inactivity_window_days"`
}

type SurveyEngineConfig struct {
	TTL           time.Duration `mapstructure:"ttl" yaml:"ttl"`
	FatigueLimit  int           `mapstructure:"fatigue_limit" yaml:"fatigue_limit"`
	FatigueWindow time.Duration `mapstructure:"fatigue_window" yaml:"fatigue_window"`
	ReminderAfter time.Duration `mapstructure:"reminder_after" yaml:"reminder_after"`
	MaxReminders  int           `mapstructure:"max_reminders" yaml:"max_reminders"`
	PublicBaseURL string        `mapstructure:"public_base_url" yaml:"public_base_url"`
}

// NotifierConfig 通知意图的输出 sink
type NotifierConfig struct {
	Drivers []string            `mapstructure:"drivers" yaml:"drivers"` // outbox, redis, webhook, log
	Webhook WebhookNotifyConfig `mapstructure:"webhook" yaml:"webhook"`
	Redis   RedisNotifyConfig   `mapstructure:"redis" yaml:"redis"`
}

type WebhookNotifyConfig struct {
	URL     string        `mapstructure:"url" yaml:"url"`
	Secret  string        `mapstructure:"secret" yaml:"secret"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type RedisNotifyConfig struct {
	ListKey string `mapstructure:"list_key" yaml:"list_key"`
}

// SchedulerConfig cron 表达式，空串表示不调度
type SchedulerConfig struct {
	Alerts    string `mapstructure:"alerts" yaml:"alerts"`
	SLA       string `mapstructure:"sla" yaml:"sla"`
	Surveys   string `mapstructure:"surveys" yaml:"surveys"`
	Reminders string `mapstructure:"reminders" yaml:"reminders"`
}

// Load 在默认配置之上叠加 viper 中的配置（文件与环境变量）
func Load(v *viper.Viper) (*Config, error) {
	if v == nil {
		v = viper.GetViper()
	}
	cfg := GetDefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 校验配置
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if _, err := c.Engine.Location(); err != nil {
		return err
	}
	for _, d := range c.Notifier.Drivers {
		switch strings.ToLower(d) {
		case "outbox", "redis", "log":
		case "webhook":
			if c.Notifier.Webhook.URL == "" {
				return fmt.Errorf("notifier.webhook.url is required when the webhook driver is enabled")
			}
		default:
			return fmt.Errorf("unknown notifier driver %q", d)
		}
	}
	return nil
}

// BindEnv 为所有配置键注册环境变量，例如 CSPULSE_DATABASE_HOST
func BindEnv(v *viper.Viper, prefix string) {
	v.SetEnvPrefix(prefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range configKeys(reflect.TypeOf(Config{}), "") {
		_ = v.BindEnv(key)
	}
}

// configKeys 由 mapstructure 标签展开出点分隔的键
func configKeys(t reflect.Type, prefix string) []string {
	var keys []string
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name := strings.Split(f.Tag.Get("mapstructure"), ",")[0]
		if name == "" || name == "-" {
			continue
		}
		key := name
		if prefix != "" {
			key = prefix + "." + name
		}
		if f.Type.Kind() == reflect.Struct && f.Type != reflect.TypeOf(time.Time{}) {
			keys = append(keys, configKeys(f.Type, key)...)
			continue
		}
		keys = append(keys, key)
	}
	return keys
}

// GetDefaultConfig 返回默认配置
func GetDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:          "postgres",
			Host:            "localhost",
			Port:            5432,
			User:            "postgres",
			Password:        "password",
			Name:            "cspulse",
			SSLMode:         "disable",
			MaxOpenConns:    100,
			MaxIdleConns:    10,
			ConnMaxLifetime: 3600 * time.Second,
		},
		Redis: RedisConfig{
			Host:         "localhost",
			Port:         6379,
			Password:     "",
			DB:           0,
			PoolSize:     10,
			MinIdleConns: 5,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "json",
			Output:     "stdout",
			FilePath:   "./logs/cspulse.log",
			MaxSize:    100,
			MaxAge:     7,
			MaxBackups: 3,
			Compress:   true,
		},
		Monitoring: MonitoringConfig{
			Enabled:     true,
			MetricsPath: "/metrics",
			Tracing: TracingConfig{
				Enabled:     false,
				Endpoint:    "http://localhost:4317",
				Insecure:    true,
				SampleRatio: 0.1,
				ServiceName: "cspulse",
			},
		},
		Engine: EngineConfig{
			Timezone: "UTC",
			Alerts: AlertsEngineConfig{
				ContractWindowDays:   30,
				LicenseWindowDays:    30,
				InactivityWindowDays: 30,
			},
			Surveys: SurveyEngineConfig{
				TTL:           7 * 24 * time.Hour,
				FatigueLimit:  2,
				FatigueWindow: 30 * 24 * time.Hour,
				ReminderAfter: 72 * time.Hour,
				MaxReminders:  1,
				PublicBaseURL: "http://localhost:8080/api/v1/public/surveys",
			},
		},
		Notifier: NotifierConfig{
			Drivers: []string{"outbox"},
			Webhook: WebhookNotifyConfig{
				Timeout: 5 * time.Second,
			},
			Redis: RedisNotifyConfig{
				ListKey: "cspulse:notifications",
			},
		},
		Scheduler: SchedulerConfig{
			Alerts:    "0 6 * * *",
			SLA:       "*/15 * * * *",
			Surveys:   "0 * * * *",
			Reminders: "30 9 * * *",
		},
	}
}
