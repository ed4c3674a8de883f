package logger

import (
	"io"
	"os"
	"path/filepath"
	"runtime"

	"reqwatch/internal/config"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger 定义日志接口
type Logger interface {
	// Debug 记录调试信息
	Debug(msg string, fields ...any)

	// Info 记录一般信息
	Info(msg string, fields ...any)

	// Warn 记录警告信息
	Warn(msg string, fields ...any)

	// Error 记录错误信息
	Error(msg string, fields ...any)

	// Err 记录带原因的错误信息
	Err(err error, msg string, fields ...any)

	// With 派生携带固定字段的子日志器
	With(fields ...any) Logger
}

// NoopLogger 空日志实现，不输出任何日志
type NoopLogger struct{}

// NewNop 创建空日志记录器
func NewNop() *NoopLogger { return &NoopLogger{} }

// Debug 不执行任何操作
func (l *NoopLogger) Debug(msg string, fields ...any) {}

// Info 不执行任何操作
func (l *NoopLogger) Info(msg string, fields ...any) {}

// Warn 不执行任何操作
func (l *NoopLogger) Warn(msg string, fields ...any) {}

// Error 不执行任何操作
func (l *NoopLogger) Error(msg string, fields ...any) {}

// Err 不执行任何操作
func (l *NoopLogger) Err(err error, msg string, fields ...any) {}

// With 返回自身
func (l *NoopLogger) With(fields ...any) Logger { return l }

// ZeroLogger 基于 zerolog 的日志组件
type ZeroLogger struct {
	logger   zerolog.Logger
	logLevel zerolog.Level
}

// New 根据配置创建日志组件
func New(cfg *config.Config) *ZeroLogger {
	if cfg == nil {
		return Nop()
	}

	logLevel := zerolog.DebugLevel
	switch cfg.Log.Level {
	case "info":
		logLevel = zerolog.InfoLevel
	case "warn":
		logLevel = zerolog.WarnLevel
	case "error":
		logLevel = zerolog.ErrorLevel
	}

	writers := make([]io.Writer, 0)
	for _, writer := range cfg.Log.Writer {
		switch writer {
		case "console":
			writers = append(writers, os.Stderr)
		case "file":
			filename, err := getLogPath()
			if err != nil {
				continue
			}
			writers = append(writers, &lumberjack.Logger{
				Filename:   filename,
				MaxSize:    1,
				MaxAge:     30,
				MaxBackups: 3,
				LocalTime:  true,
				Compress:   false,
			})
		}
	}

	if len(writers) == 0 {
		return Nop()
	}

	multiWriter := io.MultiWriter(writers...)
	zerolog.TimeFieldFormat = "2006-01-02 15:04:05"
	logger := zerolog.New(multiWriter).
		With().
		Caller().
		Timestamp().
		Logger().
		Level(logLevel)

	return &ZeroLogger{logger: logger, logLevel: logLevel}
}

// Nop 创建一个空的 zerolog 日志记录器
func Nop() *ZeroLogger { return &ZeroLogger{logger: zerolog.Nop(), logLevel: zerolog.Disabled} }

// Debug 记录调试信息
func (z *ZeroLogger) Debug(msg string, fields ...any) {
	z.logger.Debug().CallerSkipFrame(1).Fields(fields).Msg(msg)
}

// Info 记录信息
func (z *ZeroLogger) Info(msg string, fields ...any) {
	z.logger.Info().CallerSkipFrame(1).Fields(fields).Msg(msg)
}

// Warn 记录警告
func (z *ZeroLogger) Warn(msg string, fields ...any) {
	z.logger.Warn().CallerSkipFrame(1).Fields(fields).Msg(msg)
}

// Error 记录错误
func (z *ZeroLogger) Error(msg string, fields ...any) {
	z.logger.Error().CallerSkipFrame(1).Fields(fields).Msg(msg)
}

// Err 记录带原因的错误信息
func (z *ZeroLogger) Err(err error, msg string, fields ...any) {
	z.logger.Err(err).CallerSkipFrame(1).Fields(fields).Msg(msg)
}

// With 派生携带固定字段的子日志器
func (z *ZeroLogger) With(fields ...any) Logger {
	return &ZeroLogger{
		logger:   z.logger.With().Fields(fields).Logger(),
		logLevel: z.logLevel,
	}
}

// getLogPath 获取日志文件路径
func getLogPath() (string, error) {
	var baseDir string

	switch runtime.GOOS {
	case "windows":
		baseDir = os.Getenv("APPDATA")
		if baseDir == "" {
			baseDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		baseDir = filepath.Join(home, "Library", "Application Support")
	default:
		baseDir = os.Getenv("XDG_DATA_HOME")
		if baseDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			baseDir = filepath.Join(home, ".local", "share")
		}
	}

	return filepath.Join(baseDir, "reqwatch", "logs", "app.log"), nil
}
