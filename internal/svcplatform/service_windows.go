//go:build windows

package svcplatform

import (
	"fmt"
	"os"

	"golang.org/x/sys/windows/svc"
	"golang.org/x/sys/windows/svc/eventlog"
	"golang.org/x/sys/windows/svc/mgr"
)

// winHandler adapts a ServiceRunner to svc.Handler, translating SCM
// control opcodes into the state machine described for the supervisor:
// Stopped -> StartPending -> Running -> StopPending -> Stopped, with
// Pause/Continue/Interrogate as no-ops and Stop/Shutdown both tearing
// down the child and exiting the main loop.
type winHandler struct {
	runner   ServiceRunner
	name     string
	exitCode int
}

func (h *winHandler) Execute(_ []string, r <-chan svc.ChangeRequest, s chan<- svc.Status) (bool, uint32) {
	const accepts = svc.AcceptStop | svc.AcceptShutdown

	s <- svc.Status{State: svc.StartPending}

	done := make(chan int, 1)
	go func() {
		done <- h.runner.Run()
	}()

	s <- svc.Status{State: svc.Running, Accepts: accepts}

loop:
	for {
		select {
		case exitCode := <-done:
			h.exitCode = exitCode
			break loop
		case req := <-r:
			switch req.Cmd {
			case svc.Interrogate:
				s <- req.CurrentStatus
			case svc.Pause, svc.Continue:
				// no-ops for this supervisor
				s <- req.CurrentStatus
			case svc.Stop, svc.Shutdown:
				s <- svc.Status{State: svc.StopPending}
				h.runner.RequestStop()
			default:
				// opcodes >= 128 are service-specific/user-defined; this
				// supervisor defines none, so they are acknowledged and
				// otherwise ignored.
				s <- req.CurrentStatus
			}
		}
	}

	s <- svc.Status{State: svc.Stopped, Win32ExitCode: uint32(h.exitCode)}
	return false, uint32(h.exitCode)
}

// Dispatch runs runner either under the Windows Service Control Manager
// (when launched as a service) or directly in the foreground (when
// launched interactively, e.g. during development), returning the
// process exit code either way.
func Dispatch(name string, runner ServiceRunner) (int, error) {
	isService, err := svc.IsWindowsService()
	if err != nil {
		return 1, fmt.Errorf("svcplatform: cannot determine session type: %w", err)
	}

	if !isService {
		return runner.Run(), nil
	}

	elog, err := eventlog.Open(name)
	if err == nil {
		defer elog.Close()
		elog.Info(1, "starting under service control manager")
	}

	h := &winHandler{runner: runner, name: name}
	if err := svc.Run(name, h); err != nil {
		return 1, fmt.Errorf("svcplatform: service run failed: %w", err)
	}
	return h.exitCode, nil
}

// Install registers the service with the SCM and adds an event log
// source so eventlog.Open(name) succeeds afterward.
func Install(opts InstallOptions) error {
	m, err := mgr.Connect()
	if err != nil {
		return fmt.Errorf("svcplatform: cannot connect to service manager: %w", err)
	}
	defer m.Disconnect()

	startType := uint32(mgr.StartManual)
	if opts.AutoStart {
		startType = mgr.StartAutomatic
	}

	s, err := m.CreateService(opts.Name, opts.BinaryPath, mgr.Config{
		DisplayName:    opts.DisplayName,
		Description:    opts.Description,
		StartType:      startType,
		LoadOrderGroup: opts.LoadOrderGroup,
	})
	if err != nil {
		return fmt.Errorf("svcplatform: cannot create service '%s': %w", opts.Name, err)
	}
	defer s.Close()

	if err := eventlog.InstallAsEventCreate(opts.Name, eventlog.Error|eventlog.Warning|eventlog.Info); err != nil {
		// Non-fatal: the service still runs, just without SCM event log
		// integration.
		fmt.Fprintf(os.Stderr, "svcplatform: could not install event source: %v\n", err)
	}
	return nil
}

// Uninstall removes the service registration and its event log source.
func Uninstall(name string) error {
	m, err := mgr.Connect()
	if err != nil {
		return fmt.Errorf("svcplatform: cannot connect to service manager: %w", err)
	}
	defer m.Disconnect()

	s, err := m.OpenService(name)
	if err != nil {
		return fmt.Errorf("svcplatform: service '%s' is not installed: %w", name, err)
	}
	defer s.Close()

	if err := s.Delete(); err != nil {
		return fmt.Errorf("svcplatform: cannot delete service '%s': %w", name, err)
	}
	eventlog.Remove(name)
	return nil
}

// ReportInstalled reports whether name is currently registered with the
// SCM.
func ReportInstalled(name string) (bool, error) {
	m, err := mgr.Connect()
	if err != nil {
		return false, fmt.Errorf("svcplatform: cannot connect to service manager: %w", err)
	}
	defer m.Disconnect()

	s, err := m.OpenService(name)
	if err != nil {
		return false, nil
	}
	s.Close()
	return true, nil
}
