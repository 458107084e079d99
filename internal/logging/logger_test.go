package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matjazt/svcwatchdog/internal/config"
)

func newTestLogger(t *testing.T, cfgJSON string) (*Logger, string) {
	tmpDir := t.TempDir()
	if cfgJSON == "" {
		cfgJSON = `{"log": {"filePath": "` + filepath.Join(tmpDir, "log.log") + `", "maxWriteDelay": 10}}`
	}

	store := config.New()
	require.NoError(t, store.LoadJSON([]byte(cfgJSON)))

	logger := NewLogger()
	require.NoError(t, logger.Configure(store, "log"))
	require.NoError(t, logger.Start())
	return logger, tmpDir
}

func TestNewLoggerStartsUninitialised(t *testing.T) {
	logger := NewLogger()
	assert.Equal(t, stateUninitialised, loggerState(logger.state.Load()))
}

func TestLogWritesToFile(t *testing.T) {
	logger, tmpDir := newTestLogger(t, "")
	defer logger.Shutdown()

	logger.Log(LevelInformation, "hello world", "logger_test.go", "TestLogWritesToFile")
	logger.Flush(true)
	time.Sleep(20 * time.Millisecond)

	data, err := os.ReadFile(filepath.Join(tmpDir, "log.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello world")
	assert.Contains(t, string(data), "[INF]")
}

func TestLogBelowMinLevelIsDropped(t *testing.T) {
	cfgJSON := `{"log": {"filePath": "%s", "minFileLevel": "error", "minConsoleLevel": "error", "maxWriteDelay": 10}}`
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "log.log")

	store := config.New()
	require.NoError(t, store.LoadJSON([]byte(strings.Replace(cfgJSON, "%s", path, 1))))

	logger := NewLogger()
	require.NoError(t, logger.Configure(store, "log"))
	require.NoError(t, logger.Start())
	defer logger.Shutdown()

	logger.Log(LevelDebug, "should not appear", "", "")
	logger.Flush(true)
	time.Sleep(20 * time.Millisecond)

	data, _ := os.ReadFile(path)
	assert.NotContains(t, string(data), "should not appear")
}

func TestMuteSuppressesOutput(t *testing.T) {
	logger, tmpDir := newTestLogger(t, "")
	defer logger.Shutdown()

	logger.Mute(true)
	logger.Log(LevelError, "muted line", "", "")
	logger.Flush(true)
	time.Sleep(20 * time.Millisecond)

	data, _ := os.ReadFile(filepath.Join(tmpDir, "log.log"))
	assert.NotContains(t, string(data), "muted line")
}

type recordingSink struct {
	lines []string
	min   Level
}

func (r *recordingSink) Log(level Level, line string) { r.lines = append(r.lines, line) }
func (r *recordingSink) MinLevel() Level               { return r.min }
func (r *recordingSink) Flush(stillRunning, force bool) {}

func TestRegisteredSinkReceivesLines(t *testing.T) {
	logger := NewLogger()

	sink := &recordingSink{min: LevelWarning}
	require.NoError(t, logger.RegisterPlugin(sink))
	require.NoError(t, logger.Start())
	defer logger.Shutdown()

	logger.Log(LevelInformation, "not for the sink", "", "")
	logger.Log(LevelError, "for the sink", "", "")

	require.Len(t, sink.lines, 1)
	assert.Contains(t, sink.lines[0], "for the sink")
}

func TestAntiLoopDropsSmtpOriginatedLinesFromSinks(t *testing.T) {
	logger := NewLogger()
	logger.SetSmtpOriginTag("mailer.smtp")

	sink := &recordingSink{min: LevelVerbose}
	require.NoError(t, logger.RegisterPlugin(sink))
	require.NoError(t, logger.Start())
	defer logger.Shutdown()

	logger.Log(LevelError, "mailer.smtp: send failed", "", "")
	assert.Empty(t, sink.lines)
}

func TestShutdownIsIdempotent(t *testing.T) {
	logger, _ := newTestLogger(t, "")
	require.NoError(t, logger.Shutdown())
	require.NoError(t, logger.Shutdown())
}

func TestLoggerStreamEmitsThroughCurrent(t *testing.T) {
	logger, tmpDir := newTestLogger(t, "")
	defer logger.Shutdown()

	SetCurrent(logger)
	defer SetCurrent(nil)

	Stream(LevelWarning).WriteString("assembled ").WriteString("message").At("x.go", "Fn").Emit()
	logger.Flush(true)
	time.Sleep(20 * time.Millisecond)

	data, _ := os.ReadFile(filepath.Join(tmpDir, "log.log"))
	assert.Contains(t, string(data), "assembled message")
}

func TestLoggerStreamNoopWithoutCurrent(t *testing.T) {
	SetCurrent(nil)
	assert.NotPanics(t, func() {
		Stream(LevelError).WriteString("nobody home").Emit()
	})
}
