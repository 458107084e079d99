package main

import (
	"fmt"
	"net"
	"os"

	"go.uber.org/multierr"

	"github.com/matjazt/svcwatchdog/internal/config"
	"github.com/matjazt/svcwatchdog/internal/logging"
	"github.com/matjazt/svcwatchdog/internal/logging/emailsink"
	"github.com/matjazt/svcwatchdog/internal/supervisor"
	"github.com/matjazt/svcwatchdog/internal/svcplatform"
	"github.com/matjazt/svcwatchdog/internal/wdcrypto"
)

// defaultCryptoPassword is a deployment placeholder, not a secret: real
// deployments are expected to override it via the "passwordFile" key in
// the crypto config section.
const defaultCryptoPassword = "SvcWatchDog-Default-Password-Change-Me"

// Exit codes for the bare-invocation entry point, matching the original
// watchdog's return convention: 0 on a clean service stop (propagated
// from the recorded service status), -1 if the socket subsystem can't
// be used at all, -2 on a configuration load failure. Any other value
// is the service's recorded Win32 exit code.
const (
	exitSocketInitFailed = -1
	exitConfigLoadFailed = -2
)

// checkSocketSubsystem verifies the platform's socket layer is usable
// before anything else starts, standing in for the original's
// WSAStartup call: Go's net package needs no explicit initialization,
// but a loopback UDP bind/close still catches a broken network stack
// early, in the same spot the original checked it.
func checkSocketSubsystem() error {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		return err
	}
	return conn.Close()
}

// runService is the bare-invocation entry point: load config, bring up
// the logger, crypto helper, and email sinks, then hand off to the
// supervisor under service dispatch. Shutdown order is the strict
// reverse of startup.
func runService(configPath string) int {
	if err := checkSocketSubsystem(); err != nil {
		fmt.Fprintf(os.Stderr, "svcwatchdog: socket subsystem unavailable: %v\n", err)
		return exitSocketInitFailed
	}

	cfg := config.New()
	if err := cfg.Load(configPath); err != nil {
		fmt.Fprintf(os.Stderr, "svcwatchdog: %v\n", err)
		return exitConfigLoadFailed
	}

	logger := logging.NewLogger()
	if err := logger.Configure(cfg, ""); err != nil {
		fmt.Fprintf(os.Stderr, "svcwatchdog: configuring logger: %v\n", err)
		return 1
	}
	logging.SetCurrent(logger)

	crypt := wdcrypto.New()
	if err := crypt.Configure(cfg, "cryptoTools", defaultCryptoPassword); err != nil {
		fmt.Fprintf(os.Stderr, "svcwatchdog: configuring crypto helper: %v\n", err)
		return 1
	}

	decrypt := func(section, key, def string) string {
		return crypt.GetPossiblyEncrypted(cfg, section, key, def, func(format string, args ...any) {
			logger.Msg(logging.LevelWarning, format, args...)
		})
	}
	if err := emailsink.ConfigureAll(cfg, logger, "log.email", decrypt); err != nil {
		logger.Msg(logging.LevelError, "configuring email sinks: %v", err)
	}
	logger.SetSmtpOriginTag("emailsink.sender")

	if err := logger.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "svcwatchdog: starting logger: %v\n", err)
		return 1
	}

	svCfg := supervisor.LoadConfig(cfg, "")
	sup := supervisor.New(logger, svCfg)

	code, err := svcplatform.Dispatch(serviceName, sup)
	if err != nil {
		logger.Msg(logging.LevelError, "service dispatch failed: %v", err)
	}

	shutdownErr := multierr.Combine(
		logger.Shutdown(),
	)
	if shutdownErr != nil {
		fmt.Fprintf(os.Stderr, "svcwatchdog: shutdown: %v\n", shutdownErr)
	}

	return code
}

func installService(configPath string) error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("svcwatchdog: cannot resolve own executable path: %w", err)
	}

	cfg := config.New()
	autoStart := true
	loadOrderGroup := ""
	if err := cfg.Load(configPath); err == nil {
		svCfg := supervisor.LoadConfig(cfg, "")
		autoStart = svCfg.AutoStart
		loadOrderGroup = svCfg.LoadOrderGroup
	}

	return svcplatform.Install(svcplatform.InstallOptions{
		Name:           serviceName,
		DisplayName:    serviceDisplayName,
		Description:    "Supervises a child process, restarting it per policy.",
		LoadOrderGroup: loadOrderGroup,
		AutoStart:      autoStart,
		BinaryPath:     exe,
	})
}

func uninstallService() error {
	return svcplatform.Uninstall(serviceName)
}

func reportInstalled() error {
	installed, err := svcplatform.ReportInstalled(serviceName)
	if err != nil {
		return err
	}
	if installed {
		fmt.Printf("%s is installed\n", serviceName)
	} else {
		fmt.Printf("%s is not installed\n", serviceName)
	}
	return nil
}
