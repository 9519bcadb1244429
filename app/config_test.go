package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"minigram/core/transport"
)

func writeFile(t *testing.T, name, content string) string {
	file := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(file, []byte(content), 0o600))
	return file
}

func TestEnviron(t *testing.T) {
	m := environ(EnvironPrefix, []string{
		"MINIGRAM__TELEGRAM__TOKEN=123:ABC",
		"MINIGRAM__POLLING__LIMIT=50",
		"MINIGRAM__TRANSPORT__INSECURE_SKIP_VERIFY=true",
		"MINIGRAM_TOKEN=ignored",
		"HOME=/root",
	})

	assert.Equal(t, map[string]interface{}{
		"telegram":  map[string]interface{}{"token": "123:ABC"},
		"polling":   map[string]interface{}{"limit": int64(50)},
		"transport": map[string]interface{}{"insecure_skip_verify": true},
	}, m)
}

func TestMerge(t *testing.T) {
	merged, err := merge(
		map[string]interface{}{"a": map[string]interface{}{"b": 1, "c": 2}, "d": 3},
		map[string]interface{}{"a": map[string]interface{}{"c": 4}, "e": 5},
	)

	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{
		"a": map[string]interface{}{"b": 1, "c": 4},
		"d": 3,
		"e": 5,
	}, merged)

	_, err = merge(map[string]interface{}{"a": 1}, map[string]interface{}{"a": map[string]interface{}{}})
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	t.Setenv("MINIGRAM_TEST_ENDPOINT", "http://localhost:8081")
	t.Setenv("MINIGRAM__POLLING__ERROR_DELAY", "5s")

	base := writeFile(t, "base.yml", `
telegram:
  token: from-file
  endpoint: ${MINIGRAM_TEST_ENDPOINT}
polling:
  timeout: 30
  allowed_updates: [message, callback_query]
  error_delay: 1s
transport:
  strategy: raw
  read_timeout: 90s
`)

	override := writeFile(t, "override.yml", `
polling:
  yield: 250ms
logging:
  level: debug
`)

	config, err := Load(Environ{Config: []string{base, override}, Token: "123:ABC"})
	require.NoError(t, err)

	assert.Equal(t, "123:ABC", config.Telegram.Token)
	assert.Equal(t, "http://localhost:8081", config.Telegram.Endpoint)
	assert.Equal(t, 30, config.Polling.Timeout)
	assert.Equal(t, []string{"message", "callback_query"}, config.Polling.AllowedUpdates)
	assert.Equal(t, 250*time.Millisecond, config.Polling.Yield)
	assert.Equal(t, 5*time.Second, config.Polling.ErrorDelay)
	assert.Equal(t, transport.StrategyRaw, config.Transport.Strategy)
	assert.Equal(t, 90*time.Second, config.Transport.ReadTimeout)
	assert.Equal(t, "debug", config.Logging.Level)
	assert.Equal(t, "/webhook", config.Webhook.Path)
	assert.Equal(t, time.Minute, config.Graphite.Interval)
}

func TestLoad_NoToken(t *testing.T) {
	_, err := Load(Environ{})
	assert.Error(t, err)
}
