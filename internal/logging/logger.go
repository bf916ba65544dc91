// Package logging provides config-driven categorized logging for the storefront engine.
// Every subsystem asks for its own category logger; categories can be switched off
// individually and output can be tee'd into a rotated log file.
package logging

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Category represents a log category/subsystem
type Category string

const (
	CategoryBoot      Category = "boot"      // Startup and teardown of a context
	CategoryStore     Category = "store"     // Durable key-value store and backends
	CategorySync      Category = "sync"      // Notifier, bus and reconciliation loop
	CategoryState     Category = "state"     // In-memory application state
	CategoryBackup    Category = "backup"    // Export, restore and scheduled backups
	CategoryCapacity  Category = "capacity"  // Storage quota and durability
	CategoryAssistant Category = "assistant" // Text-generation collaborator
	CategoryAuth      Category = "auth"      // Credential checks
	CategoryCLI       Category = "cli"       // Command line surface
)

// Options mirrors config.LoggingConfig to avoid an import cycle.
type Options struct {
	Level      string          // debug, info, warn, error
	Format     string          // console or json
	File       string          // optional log file, rotated by lumberjack
	MaxSizeMB  int             // rotate after this many megabytes
	MaxBackups int             // rotated files to keep
	MaxAgeDays int             // days to keep rotated files
	Categories map[string]bool // per-category switch; missing means enabled
}

var (
	mu         sync.RWMutex
	base       *zap.Logger
	categories map[string]bool
	loggers    = make(map[Category]*zap.SugaredLogger)
	rotator    *lumberjack.Logger
)

// Initialize builds the process-wide logger. It may be called again to reconfigure.
func Initialize(opts Options) error {
	level, err := parseLevel(opts.Level)
	if err != nil {
		return err
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	var consoleEnc zapcore.Encoder
	if strings.EqualFold(opts.Format, "json") {
		consoleEnc = zapcore.NewJSONEncoder(encCfg)
	} else {
		devCfg := zap.NewDevelopmentEncoderConfig()
		devCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		consoleEnc = zapcore.NewConsoleEncoder(devCfg)
	}

	cores := []zapcore.Core{
		zapcore.NewCore(consoleEnc, zapcore.Lock(os.Stderr), level),
	}

	var rot *lumberjack.Logger
	if opts.File != "" {
		rot = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    orDefault(opts.MaxSizeMB, 64),
			MaxBackups: orDefault(opts.MaxBackups, 7),
			MaxAge:     orDefault(opts.MaxAgeDays, 7),
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(rot), level))
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.AddCaller())
	replace(logger, opts.Categories, rot)
	return nil
}

// UseLogger installs an already built logger. Tests use it with zaptest/observer.
func UseLogger(l *zap.Logger) {
	replace(l, nil, nil)
}

func replace(l *zap.Logger, cats map[string]bool, rot *lumberjack.Logger) {
	mu.Lock()
	defer mu.Unlock()
	if base != nil {
		_ = base.Sync()
	}
	if rotator != nil {
		_ = rotator.Close()
	}
	base = l
	rotator = rot
	categories = cats
	loggers = make(map[Category]*zap.SugaredLogger)
}

// IsCategoryEnabled returns whether a specific category is enabled
func IsCategoryEnabled(category Category) bool {
	mu.RLock()
	defer mu.RUnlock()
	return categoryEnabledLocked(category)
}

func categoryEnabledLocked(category Category) bool {
	if base == nil {
		return false
	}
	if categories == nil {
		return true
	}
	enabled, exists := categories[string(category)]
	if !exists {
		return true
	}
	return enabled
}

// Get returns (or creates) the logger for the given category.
// Returns a no-op logger before Initialize or when the category is disabled.
func Get(category Category) *zap.SugaredLogger {
	mu.RLock()
	if l, ok := loggers[category]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}

	var l *zap.SugaredLogger
	if categoryEnabledLocked(category) {
		l = base.Named(string(category)).Sugar()
	} else {
		l = zap.NewNop().Sugar()
	}
	loggers[category] = l
	return l
}

// Flush syncs buffered entries. Call it before the process exits.
func Flush() {
	mu.RLock()
	defer mu.RUnlock()
	if base != nil {
		_ = base.Sync()
	}
}

// Reset drops the installed logger; every category goes back to no-op.
func Reset() {
	replace(nil, nil, nil)
}

func parseLevel(s string) (zapcore.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", s)
	}
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
