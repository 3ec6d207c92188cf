package config

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

const logTimestampFormat = "2006-01-02 15:04:05"

// NewLogger 按配置创建日志实例，同时设置为 logrus 全局 logger 的配置
func NewLogger(cfg LogConfig) (*logrus.Logger, error) {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		logger.Warnf("Invalid log level '%s', using 'info'", cfg.Level)
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	switch strings.ToLower(cfg.Format) {
	case "text":
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: logTimestampFormat,
		})
	default:
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: logTimestampFormat,
		})
	}

	out, err := logOutput(cfg)
	if err != nil {
		return nil, err
	}
	logger.SetOutput(out)

	// 第三方组件仍可能使用全局 logrus
	logrus.SetLevel(logger.GetLevel())
	logrus.SetFormatter(logger.Formatter)
	logrus.SetOutput(out)

	logger.Debugf("Logger initialized - Level: %s, Format: %s, Output: %s",
		cfg.Level, cfg.Format, cfg.Output)
	return logger, nil
}

func logOutput(cfg LogConfig) (io.Writer, error) {
	switch strings.ToLower(cfg.Output) {
	case "file":
		return rotatingFile(cfg)
	case "both":
		rotate, err := rotatingFile(cfg)
		if err != nil {
			return nil, err
		}
		return io.MultiWriter(os.Stdout, rotate), nil
	default:
		return os.Stdout, nil
	}
}

// rotatingFile 配置日志轮转
func rotatingFile(cfg LogConfig) (io.Writer, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0755); err != nil {
		return nil, err
	}
	return &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSize,    // MB
		MaxBackups: cfg.MaxBackups, // 保留文件数
		MaxAge:     cfg.MaxAge,     // 保留天数
		Compress:   cfg.Compress,
		LocalTime:  true,
	}, nil
}
