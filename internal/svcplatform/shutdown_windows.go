//go:build windows

package svcplatform

import (
	"fmt"

	"golang.org/x/sys/windows"
)

// winShutdownEvent wraps a real Win32 manual-reset event object, openable
// by a cooperating child via OpenEvent(name).
type winShutdownEvent struct {
	name   string
	handle windows.Handle
}

// NewShutdownSignaler creates a fresh manual-reset event named per
// EventName(workDir), in the not-signaled state.
func NewShutdownSignaler(workDir string) (ShutdownSignaler, error) {
	name := EventName(workDir)
	namePtr, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return nil, fmt.Errorf("svcplatform: invalid event name '%s': %w", name, err)
	}

	handle, err := windows.CreateEvent(nil, 1 /* manual reset */, 0 /* initial state: not signaled */, namePtr)
	if err != nil {
		return nil, fmt.Errorf("svcplatform: CreateEvent('%s') failed: %w", name, err)
	}
	return &winShutdownEvent{name: name, handle: handle}, nil
}

func (e *winShutdownEvent) Name() string { return e.name }

func (e *winShutdownEvent) Reset() error {
	return windows.ResetEvent(e.handle)
}

func (e *winShutdownEvent) Signal() error {
	return windows.SetEvent(e.handle)
}

func (e *winShutdownEvent) Close() error {
	return windows.CloseHandle(e.handle)
}
