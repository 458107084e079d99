package logging

import (
	"path/filepath"
	"time"

	"github.com/matjazt/svcwatchdog/internal/config"
)

// Config mirrors the "log" section of the configuration document.
// Section defaults to "log"; callers may pass a different section name
// for multi-instance deployments alongside SetFilenamePostfix.
type Config struct {
	MinConsoleLevel Level
	MinFileLevel    Level
	FilePath        string // absolute or resolved to absolute; empty disables file output
	MaxFileSize     int64  // bytes
	MaxWriteDelay   time.Duration
	MaxOldFiles     int // retention count; 0 = unlimited
	LogThreadID     bool
}

const defaultSection = "log"

const (
	defaultMaxFileSize   = 20 * 1024 * 1024
	defaultMaxWriteDelay = 500 * time.Millisecond
)

// LoadConfig reads section (or "log" if empty) from cfg, applying the
// documented defaults for anything absent.
func LoadConfig(cfg *config.Store, section string) (Config, error) {
	if section == "" {
		section = defaultSection
	}

	out := Config{
		MinConsoleLevel: ParseLevel(cfg.GetString(section, "minConsoleLevel", "information")),
		MinFileLevel:    ParseLevel(cfg.GetString(section, "minFileLevel", "information")),
		FilePath:        cfg.GetString(section, "filePath", ""),
		MaxFileSize:     config.GetNumber[int64](cfg, section, "maxFileSize", defaultMaxFileSize),
		MaxWriteDelay:   time.Duration(config.GetNumber[int64](cfg, section, "maxWriteDelay", int64(defaultMaxWriteDelay/time.Millisecond))) * time.Millisecond,
		MaxOldFiles:     config.GetNumber[int](cfg, section, "maxOldFiles", 0),
		LogThreadID:     cfg.GetBool(section, "logThreadId", false),
	}

	if out.FilePath != "" && !filepath.IsAbs(out.FilePath) {
		abs, err := filepath.Abs(out.FilePath)
		if err == nil {
			out.FilePath = abs
		}
	}
	return out, nil
}

// minLevel returns the least restrictive level check across console,
// file, and every registered sink: min(minConsole, minFile,
// min_plugin_level).
func (c Config) minLevel(sinks []Sink) Level {
	m := c.MinConsoleLevel
	if c.MinFileLevel < m {
		m = c.MinFileLevel
	}
	for _, s := range sinks {
		if lvl := s.MinLevel(); lvl < m {
			m = lvl
		}
	}
	return m
}
