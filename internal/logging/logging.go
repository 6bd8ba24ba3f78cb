package logging

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	initOnce sync.Once
	logger   *zap.Logger

	// exitFunc is swapped out in tests.
	exitFunc = os.Exit
)

// L returns the shared application logger, initializing it on first use.
func L() *zap.Logger {
	initOnce.Do(func() {
		logger = newLogger()
	})
	return logger
}

// Sync flushes buffered log entries. Call it before process exit.
func Sync() error {
	if logger != nil {
		return logger.Sync()
	}
	return nil
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(parseLevel(os.Getenv("SMARTEVENTS_LOG_LEVEL")))

	format := strings.ToLower(os.Getenv("SMARTEVENTS_LOG_FORMAT"))
	if format == "json" || format == "structured" {
		config.Encoding = "json"
	} else {
		config.Encoding = "console"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	if strings.EqualFold(os.Getenv("SMARTEVENTS_LOG_SOURCE"), "true") {
		config.Development = true
	}

	config.OutputPaths = []string{"stderr"}
	config.ErrorOutputPaths = []string{"stderr"}

	built, err := config.Build()
	if err != nil {
		built, _ = zap.NewDevelopment()
	}
	return built
}

func parseLevel(value string) zapcore.Level {
	switch strings.ToLower(value) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Fatal logs the message at error level and exits with status 1.
func Fatal(msg string, fields ...zap.Field) {
	L().Error(msg, fields...)
	exitFunc(1)
}
