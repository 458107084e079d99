// Package emailsink implements the logger's batching SMTP plugin: it
// accumulates lines and flushes them as a single email once a size or age
// threshold is reached.
package emailsink

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/matjazt/svcwatchdog/internal/config"
	"github.com/matjazt/svcwatchdog/internal/logging"
	"github.com/matjazt/svcwatchdog/internal/mailer"
)

// smtpOriginTag identifies log lines that originated from this package's
// own send path; the Logger uses it to keep the sink from re-ingesting
// its own SMTP diagnostics and looping forever.
const smtpOriginTag = "emailsink.sender"

// Sink accumulates formatted lines and periodically emails them as a
// single batch. It implements logging.Sink.
type Sink struct {
	minLevel        logging.Level
	recipients      []string
	subject         string
	maxDelay        time.Duration
	maxLogs         int
	timeoutOnShutdn time.Duration

	sender *mailer.Sender

	mu         sync.Mutex
	batch      []string
	batchStart time.Time

	group *errgroup.Group
}

// ConfigureAll enumerates the immediate object children of parentSection
// (defaulting to "log.email") and registers one Sink per child section
// against logger, mirroring the source's static-registration replacement:
// explicit construction in bootstrap rather than factory auto-discovery.
func ConfigureAll(cfg *config.Store, logger *logging.Logger, parentSection string, decrypt func(section, key, def string) string) error {
	if parentSection == "" {
		parentSection = "log.email"
	}
	for _, name := range cfg.GetKeys(parentSection, true, false, false) {
		section := parentSection + "." + name
		sink, err := New(cfg, section, decrypt)
		if err != nil {
			return fmt.Errorf("emailsink: configuring '%s': %w", section, err)
		}
		if sink == nil {
			continue // disabled: not fully configured
		}
		if err := logger.RegisterPlugin(sink); err != nil {
			return fmt.Errorf("emailsink: registering '%s': %w", section, err)
		}
	}
	return nil
}

// New builds a Sink from section. It returns (nil, nil) — not an error —
// when the section is missing required fields, matching the source's
// "disabled or not fully configured" soft-failure behaviour.
func New(cfg *config.Store, section string, decrypt func(section, key, def string) string) (*Sink, error) {
	minLevel := logging.Level(config.GetNumber[int](cfg, section, "minLogLevel", int(logging.LevelVerbose)))
	recipients := cfg.GetStringVector(section, "recipients", nil)
	emailSection := cfg.GetString(section, "emailSection", "")

	if emailSection == "" || len(recipients) == 0 || minLevel >= logging.LevelMaskAll {
		return nil, nil
	}

	subject := cfg.GetString(section, "subject", "")
	if subject == "" {
		exe, _ := os.Executable()
		host, _ := os.Hostname()
		subject = fmt.Sprintf("%s @ %s", exe, host)
	}

	maxDelay := time.Duration(config.GetNumber[int64](cfg, section, "maxDelay", 300)) * time.Second
	maxLogs := config.GetNumber[int](cfg, section, "maxLogs", 1000)
	timeoutOnShutdown := time.Duration(config.GetNumber[int64](cfg, section, "timeoutOnShutdown", 3000)) * time.Millisecond

	password := ""
	if decrypt != nil {
		password = decrypt(emailSection, "password", "")
	}
	mailerCfg := mailer.LoadConfig(cfg, emailSection, password)

	return &Sink{
		minLevel:        minLevel,
		recipients:      recipients,
		subject:         subject,
		maxDelay:        maxDelay,
		maxLogs:         maxLogs,
		timeoutOnShutdn: timeoutOnShutdown,
		sender:          mailer.New(mailerCfg),
		group:           &errgroup.Group{},
	}, nil
}

// MinLevel implements logging.Sink.
func (s *Sink) MinLevel() logging.Level {
	return s.minLevel
}

// Log implements logging.Sink. Lines produced by this package's own
// sender are dropped: the Logger already keeps lines carrying the tag
// set via SetSmtpOriginTag away from its sinks, and this check is a
// second line of defense matching the source's substring filter.
func (s *Sink) Log(level logging.Level, line string) {
	if level < s.minLevel {
		return
	}
	if strings.Contains(line, smtpOriginTag) {
		return
	}

	s.mu.Lock()
	if len(s.batch) == 0 {
		s.batchStart = time.Now()
	}
	s.batch = append(s.batch, line)
	s.mu.Unlock()
}

// Flush implements logging.Sink. It sends when forced, or when the batch
// holds at least maxLogs lines, or when it has aged past maxDelay.
func (s *Sink) Flush(stillRunning, force bool) {
	s.mu.Lock()
	due := force || len(s.batch) >= s.maxLogs || (len(s.batch) > 0 && time.Since(s.batchStart) >= s.maxDelay)
	if len(s.batch) == 0 || !due {
		s.mu.Unlock()
		return
	}
	batch := s.batch
	s.batch = nil
	s.mu.Unlock()

	body := strings.Join(batch, "")

	if stillRunning {
		// Fire-and-forget, but tracked by an errgroup rather than a
		// detached goroutine, so a later forced shutdown flush can still
		// wait for stragglers instead of racing them.
		s.group.Go(func() error {
			ctx, cancel := context.WithTimeout(context.Background(), mailer.DefaultSendTimeout)
			defer cancel()
			return s.send(ctx, body)
		})
		return
	}

	// Shutting down: join outstanding sends and this one, bounded by the
	// shortened timeout, instead of detaching and sleeping.
	ctx, cancel := context.WithTimeout(context.Background(), s.timeoutOnShutdn)
	defer cancel()
	s.group.Go(func() error {
		return s.send(ctx, body)
	})
	waited := make(chan error, 1)
	go func() { waited <- s.group.Wait() }()
	select {
	case err := <-waited:
		if err != nil {
			s.logSendFailure(err)
		}
	case <-ctx.Done():
	}
}

func (s *Sink) send(ctx context.Context, body string) error {
	err := s.sender.Send(ctx, mailer.Message{
		To:      s.recipients,
		Subject: s.subject,
		Body:    body,
	})
	if err != nil {
		s.logSendFailure(err)
	}
	return err
}

func (s *Sink) logSendFailure(err error) {
	if l := logging.Current(); l != nil {
		l.Msg(logging.LevelError, "%s: send failed: %v", smtpOriginTag, err)
	}
}
