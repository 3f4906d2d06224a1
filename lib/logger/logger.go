// Package logger wraps zap behind the small surface the rest of the
// codebase uses. Without Setup it logs to stdout at info level.
package logger

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Settings stores config for the logger
type Settings struct {
	Path       string `yaml:"path"`
	Name       string `yaml:"name"`
	Ext        string `yaml:"ext"`
	Level      string `yaml:"level"`
	MaxSizeMB  int    `yaml:"max-size-mb"`
	MaxBackups int    `yaml:"max-backups"`
}

var defaultLogger = newStdoutLogger(zapcore.InfoLevel)

func newStdoutLogger(level zapcore.Level) *zap.SugaredLogger {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderCfg),
		zapcore.Lock(os.Stdout),
		level,
	)
	return zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)).Sugar()
}

// Setup initializes the logger with file output and rotation
func Setup(settings *Settings) error {
	level, err := zapcore.ParseLevel(settings.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}
	if err := os.MkdirAll(settings.Path, 0o755); err != nil {
		return err
	}
	rotator := &lumberjack.Logger{
		Filename:   filepath.Join(settings.Path, settings.Name+settings.Ext),
		MaxSize:    settings.MaxSizeMB,
		MaxBackups: settings.MaxBackups,
	}
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewTee(
		zapcore.NewCore(zapcore.NewConsoleEncoder(encoderCfg), zapcore.Lock(os.Stdout), level),
		zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.AddSync(rotator), level),
	)
	defaultLogger = zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)).Sugar()
	return nil
}

// Debug logs a debug message
func Debug(args ...interface{}) {
	defaultLogger.Debug(args...)
}

// Debugf logs a formatted debug message
func Debugf(template string, args ...interface{}) {
	defaultLogger.Debugf(template, args...)
}

// Info logs an info message
func Info(args ...interface{}) {
	defaultLogger.Info(args...)
}

// Infof logs a formatted info message
func Infof(template string, args ...interface{}) {
	defaultLogger.Infof(template, args...)
}

// Warn logs a warning message
func Warn(args ...interface{}) {
	defaultLogger.Warn(args...)
}

// Error logs an error message
func Error(args ...interface{}) {
	defaultLogger.Error(args...)
}

// Errorf logs a formatted error message
func Errorf(template string, args ...interface{}) {
	defaultLogger.Errorf(template, args...)
}
