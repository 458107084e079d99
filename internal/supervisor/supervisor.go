package supervisor

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/matjazt/svcwatchdog/internal/logging"
	"github.com/matjazt/svcwatchdog/internal/svcplatform"
)

const (
	monitorInterval  = 200 * time.Millisecond
	postSpawnSettle  = 250 * time.Millisecond
	preconditionWait = 1 * time.Second
)

// Supervisor implements svcplatform.ServiceRunner: it drives one child
// generation at a time until asked to stop.
type Supervisor struct {
	cfg    Config
	logger *logging.Logger

	running       atomic.Bool
	stopRequested atomic.Bool
	loopTrigger   chan struct{}

	lastExitCode atomic.Int32
}

// New returns a Supervisor ready for Run.
func New(logger *logging.Logger, cfg Config) *Supervisor {
	return &Supervisor{
		cfg:         cfg,
		logger:      logger,
		loopTrigger: make(chan struct{}, 1),
	}
}

// RequestStop asks the running generation (if any) and the outer loop to
// wind down. Safe to call multiple times, and before Run has started.
func (s *Supervisor) RequestStop() {
	s.stopRequested.Store(true)
	s.wake()
}

func (s *Supervisor) wake() {
	select {
	case s.loopTrigger <- struct{}{}:
	default:
	}
}

// wait blocks for d or until wake() is called, whichever comes first.
func (s *Supervisor) wait(d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-s.loopTrigger:
	}
}

// Run is the supervisor's main loop: precondition checks, workdir
// resolution, then one generation after another until RequestStop is
// observed. It returns the process exit code the OS should see, taken
// from the last generation's child exit code.
func (s *Supervisor) Run() int {
	s.running.Store(true)
	defer s.running.Store(false)

	if len(s.cfg.Args) == 0 || s.cfg.Args[0] == "" {
		s.logf(logging.LevelError, "target executable is not configured; idling")
		for !s.stopRequested.Load() {
			s.wait(preconditionWait)
		}
		return 1
	}

	workDir := s.cfg.WorkDir
	if workDir == "" {
		workDir = supervisorOwnDir()
	}
	if err := os.Chdir(workDir); err != nil {
		s.logf(logging.LevelWarning, "cannot chdir to '%s' (%v), falling back to supervisor's own directory", workDir, err)
		os.Chdir(supervisorOwnDir())
	}

	for !s.stopRequested.Load() {
		s.runGeneration()
		if s.stopRequested.Load() {
			break
		}
		s.wait(s.cfg.RestartDelay)
	}

	return int(s.lastExitCode.Load())
}

func supervisorOwnDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// runGeneration drives one full spawn-to-exit cycle of the child.
func (s *Supervisor) runGeneration() {
	signaler, err := svcplatform.NewShutdownSignaler(s.cfg.WorkDir)
	if err != nil {
		s.logf(logging.LevelError, "cannot create shutdown signaler: %v", err)
		return
	}
	defer signaler.Close()
	signaler.Reset()

	var killTime time.Time // zero value means "not counting down"

	hb, err := newHeartbeatServer(s.cfg.WatchdogTimeout)
	if err != nil {
		s.logf(logging.LevelError, "heartbeat setup failed, disabling heartbeat for this generation: %v", err)
		hb = nil
	}
	if hb != nil {
		defer hb.close()
	}

	env := []string{"SHUTDOWN_EVENT=" + signaler.Name()}
	if hb != nil {
		env = append(env, fmt.Sprintf("WATCHDOG_PORT=%d", hb.port()), "WATCHDOG_SECRET="+hb.secretEnv())
	}

	child, err := spawnChild(s.cfg.Args, s.cfg.UsePath, env)
	if err != nil {
		s.logf(logging.LevelWarning, "spawn failed: %v", err)
		s.lastExitCode.Store(-1)
		return
	}
	s.logf(logging.LevelInformation, "spawned child pid=%d", child.cmd.Process.Pid)

	if attacher, ok := signaler.(svcplatform.Attacher); ok {
		attacher.Attach(child.cmd.Process)
	}

	s.wait(postSpawnSettle)

	ticker := time.NewTicker(monitorInterval)
	defer ticker.Stop()

monitor:
	for {
		select {
		case <-child.exited:
			break monitor
		case <-s.loopTrigger:
			if s.stopRequested.Load() && killTime.IsZero() {
				s.initiateProcessShutdown(signaler, &killTime)
			}
		case now := <-ticker.C:
			if !killTime.IsZero() && !now.Before(killTime) {
				break monitor
			}
			if hb != nil && killTime.IsZero() {
				s.processHeartbeats(hb, now)
				if hb.expired(now) {
					s.logf(logging.LevelWarning, "child missed its heartbeat window, initiating shutdown")
					s.initiateProcessShutdown(signaler, &killTime)
				}
			}
			if s.stopRequested.Load() && killTime.IsZero() {
				s.initiateProcessShutdown(signaler, &killTime)
			}
		}
	}

	if child.alive() {
		child.terminate()
	}

	code, ok := child.exitCode()
	if !ok {
		s.logf(logging.LevelWarning, "child exit code unknown, treating as failure")
		code = -1
	} else {
		s.logf(logging.LevelInformation, "child exited with code %d", code)
	}
	s.lastExitCode.Store(int32(code))
}

// processHeartbeats drains pending datagrams and logs anything that
// isn't a valid liveness token.
func (s *Supervisor) processHeartbeats(hb *heartbeatServer, now time.Time) {
	result := hb.drain()
	if result.valid > 0 {
		s.logf(logging.LevelVerbose, "received %d valid heartbeat datagram(s)", result.valid)
	}
	for _, malformed := range result.malformed {
		s.logf(logging.LevelWarning, "received malformed heartbeat datagram: %q", malformed)
	}
}

// initiateProcessShutdown signals the named shutdown event and arms
// killTime shutdownTime in the future; the monitor loop force-kills the
// child if it hasn't exited by then.
func (s *Supervisor) initiateProcessShutdown(signaler svcplatform.ShutdownSignaler, killTime *time.Time) {
	if err := signaler.Signal(); err != nil {
		s.logf(logging.LevelWarning, "failed to signal shutdown event: %v", err)
	}
	*killTime = time.Now().Add(s.cfg.ShutdownTime)
}

func (s *Supervisor) logf(level logging.Level, format string, args ...any) {
	if s.logger == nil {
		return
	}
	s.logger.Msg(level, format, args...)
}
