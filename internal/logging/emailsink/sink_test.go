package emailsink

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matjazt/svcwatchdog/internal/config"
	"github.com/matjazt/svcwatchdog/internal/logging"
)

func TestNewReturnsNilWhenNotConfigured(t *testing.T) {
	store := config.New()
	require.NoError(t, store.LoadJSON([]byte(`{"log": {"email": {"ops": {}}}}`)))

	sink, err := New(store, "log.email.ops", nil)
	require.NoError(t, err)
	assert.Nil(t, sink)
}

func TestNewBuildsSinkFromSection(t *testing.T) {
	store := config.New()
	require.NoError(t, store.LoadJSON([]byte(`{
		"log": {"email": {"ops": {
			"minLogLevel": 3,
			"recipients": ["ops@example.com"],
			"emailSection": "smtp",
			"maxDelay": 60,
			"maxLogs": 5
		}}},
		"smtp": {"host": "mail.example.com", "port": 587, "from": "watchdog@example.com"}
	}`)))

	sink, err := New(store, "log.email.ops", func(section, key, def string) string { return def })
	require.NoError(t, err)
	require.NotNil(t, sink)
	assert.Equal(t, logging.LevelWarning, sink.MinLevel())
}

func TestLogAccumulatesAndDropsOwnOriginLines(t *testing.T) {
	store := config.New()
	require.NoError(t, store.LoadJSON([]byte(`{
		"log": {"email": {"ops": {
			"minLogLevel": 0,
			"recipients": ["ops@example.com"],
			"emailSection": "smtp",
			"maxDelay": 3600,
			"maxLogs": 1000
		}}},
		"smtp": {"host": "mail.example.com"}
	}`)))

	sink, err := New(store, "log.email.ops", nil)
	require.NoError(t, err)
	require.NotNil(t, sink)

	sink.Log(logging.LevelError, "regular line\n")
	sink.Log(logging.LevelError, "emailsink.sender: send failed: boom\n")

	assert.Len(t, sink.batch, 1)
	assert.Contains(t, sink.batch[0], "regular line")
}

func TestFlushWithoutForceOrThresholdDoesNothing(t *testing.T) {
	store := config.New()
	require.NoError(t, store.LoadJSON([]byte(`{
		"log": {"email": {"ops": {
			"recipients": ["ops@example.com"],
			"emailSection": "smtp",
			"maxDelay": 3600,
			"maxLogs": 1000
		}}},
		"smtp": {"host": "127.0.0.1", "port": 1}
	}`)))

	sink, err := New(store, "log.email.ops", nil)
	require.NoError(t, err)

	sink.Log(logging.LevelError, "one line\n")
	sink.Flush(true, false)

	assert.Len(t, sink.batch, 1, "batch should remain buffered until a threshold is crossed")
}

func TestFlushForcedSendsAndClearsBatch(t *testing.T) {
	store := config.New()
	require.NoError(t, store.LoadJSON([]byte(`{
		"log": {"email": {"ops": {
			"recipients": ["ops@example.com"],
			"emailSection": "smtp",
			"maxDelay": 3600,
			"maxLogs": 1000,
			"timeoutOnShutdown": 50
		}}},
		"smtp": {"host": "127.0.0.1", "port": 1}
	}`)))

	sink, err := New(store, "log.email.ops", nil)
	require.NoError(t, err)

	sink.Log(logging.LevelError, "one line\n")
	sink.Flush(false, true)

	assert.Empty(t, sink.batch)
}

func TestFlushAgesOutOnMaxDelay(t *testing.T) {
	store := config.New()
	require.NoError(t, store.LoadJSON([]byte(`{
		"log": {"email": {"ops": {
			"recipients": ["ops@example.com"],
			"emailSection": "smtp",
			"maxDelay": 0,
			"maxLogs": 1000
		}}},
		"smtp": {"host": "127.0.0.1", "port": 1}
	}`)))

	sink, err := New(store, "log.email.ops", nil)
	require.NoError(t, err)

	sink.Log(logging.LevelError, "one line\n")
	time.Sleep(5 * time.Millisecond)
	sink.Flush(true, false)

	assert.Empty(t, sink.batch)
}
