//go:build !windows

package svcplatform

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// Dispatch runs runner directly in the foreground, translating SIGINT
// and SIGTERM into the Stop/Shutdown opcodes this platform has no real
// service-control-manager analogue for. There is no service state
// machine to drive here: a foreground process is either running or it
// isn't.
func Dispatch(_ string, runner ServiceRunner) (int, error) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	done := make(chan int, 1)
	go func() {
		done <- runner.Run()
	}()

	select {
	case code := <-done:
		return code, nil
	case <-sigCh:
		runner.RequestStop()
		return <-done, nil
	}
}

// Install, Uninstall, and ReportInstalled have no meaning outside a real
// Windows service host; they return a descriptive error so callers can
// surface it rather than silently no-op.
func Install(opts InstallOptions) error {
	return fmt.Errorf("svcplatform: service installation is only supported on Windows")
}

func Uninstall(name string) error {
	return fmt.Errorf("svcplatform: service removal is only supported on Windows")
}

func ReportInstalled(name string) (bool, error) {
	return false, fmt.Errorf("svcplatform: service registration is only supported on Windows")
}
