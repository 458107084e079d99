// Package supervisor implements the watchdog's core: it spawns and
// monitors a single child process per generation, runs an authenticated
// UDP liveness server, and restarts the child according to policy.
package supervisor

import (
	"time"

	"github.com/matjazt/svcwatchdog/internal/config"
)

const defaultSection = "svcWatchDog"

// Config mirrors the "svcWatchDog" configuration section.
type Config struct {
	Args            []string
	UsePath         bool
	WorkDir         string
	WatchdogTimeout time.Duration // <=0 disables heartbeat
	ShutdownTime    time.Duration
	RestartDelay    time.Duration
	LoadOrderGroup  string
	AutoStart       bool
}

// LoadConfig reads section (or "svcWatchDog" if empty) from cfg.
func LoadConfig(cfg *config.Store, section string) Config {
	if section == "" {
		section = defaultSection
	}

	return Config{
		Args:            cfg.GetStringVector(section, "args", nil),
		UsePath:         cfg.GetBool(section, "usePath", false),
		WorkDir:         cfg.GetString(section, "workDir", ""),
		WatchdogTimeout: time.Duration(config.GetNumber[int64](cfg, section, "watchdogTimeout", 0)) * time.Millisecond,
		ShutdownTime:    time.Duration(config.GetNumber[int64](cfg, section, "shutdownTime", 10000)) * time.Millisecond,
		RestartDelay:    time.Duration(config.GetNumber[int64](cfg, section, "restartDelay", 5000)) * time.Millisecond,
		LoadOrderGroup:  cfg.GetString(section, "loadOrderGroup", ""),
		AutoStart:       cfg.GetBool(section, "autoStart", true),
	}
}
