// Package log provides centralized logging functionality using zap logger.
package log

import (
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var log *zap.SugaredLogger
var baseLogger *zap.Logger
var fallbackOnce sync.Once

// Init initializes the package-level logger
func Init(debug bool) error {
	zapLogger, err := newZap(debug)
	if err != nil {
		return fmt.Errorf("can't initialize zap logger: %v", err)
	}

	baseLogger = zapLogger
	log = zapLogger.Sugar()
	return nil
}

func newZap(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment(zap.AddCallerSkip(1))
	}
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build(zap.AddCallerSkip(1))
}

// GetZapLogger returns the base zap logger
func GetZapLogger() *zap.Logger {
	fallbackOnce.Do(func() {
		if baseLogger == nil {
			// Fallback logger if not initialized
			fallback, err := newZap(false)
			if err != nil {
				fallback = zap.NewNop()
			}
			baseLogger = fallback
			log = fallback.Sugar()
		}
	})
	return baseLogger
}

// GetSugaredLogger returns the sugared logger instance. Components that take a
// logger receive a child of this one without the package caller skip.
func GetSugaredLogger() *zap.SugaredLogger {
	return GetZapLogger().WithOptions(zap.AddCallerSkip(-1)).Sugar()
}

// Named returns a child logger tagged with the component name.
func Named(component string) *zap.SugaredLogger {
	return GetSugaredLogger().Named(component)
}

// Sync flushes any buffered log entries
func Sync() {
	if log != nil {
		_ = log.Sync()
	}
}

// Package-level convenience functions
func Debugf(template string, args ...interface{}) {
	GetZapLogger()
	log.Debugf(template, args...)
}

func Debugw(msg string, keysAndValues ...interface{}) {
	GetZapLogger()
	log.Debugw(msg, keysAndValues...)
}

func Info(args ...interface{}) {
	GetZapLogger()
	log.Info(args...)
}

func Infof(template string, args ...interface{}) {
	GetZapLogger()
	log.Infof(template, args...)
}

func Infow(msg string, keysAndValues ...interface{}) {
	GetZapLogger()
	log.Infow(msg, keysAndValues...)
}

func Warnf(template string, args ...interface{}) {
	GetZapLogger()
	log.Warnf(template, args...)
}

func Errorf(template string, args ...interface{}) {
	GetZapLogger()
	log.Errorf(template, args...)
}

func Errorw(msg string, keysAndValues ...interface{}) {
	GetZapLogger()
	log.Errorw(msg, keysAndValues...)
}

func Fatal(args ...interface{}) {
	GetZapLogger()
	log.Fatal(args...)
	os.Exit(1)
}

func Fatalf(template string, args ...interface{}) {
	GetZapLogger()
	log.Fatalf(template, args...)
	os.Exit(1)
}
