package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"minigram/core/api"
	"minigram/core/dispatch"
	"minigram/core/transport"
	"minigram/core/update"
)

type remote struct {
	mu      sync.Mutex
	methods []string
	sent    chan map[string]interface{}
	served  bool
}

func (r *remote) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	var body map[string]interface{}
	_ = json.NewDecoder(req.Body).Decode(&body)

	method := path.Base(req.URL.Path)
	r.mu.Lock()
	r.methods = append(r.methods, method)
	first := !r.served && method == "getUpdates"
	if first {
		r.served = true
	}
	r.mu.Unlock()

	result := interface{}(true)
	switch method {
	case "getUpdates":
		updates := []interface{}{}
		if first {
			updates = append(updates, map[string]interface{}{
				"update_id": 100,
				"message": map[string]interface{}{
					"message_id": 1,
					"chat":       map[string]interface{}{"id": 1},
					"text":       "hi",
				},
			})
		}

		result = updates
	case "sendMessage":
		r.sent <- body
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"ok": true, "result": result})
}

func TestInstance_Polling(t *testing.T) {
	remote := &remote{sent: make(chan map[string]interface{}, 1)}
	server := httptest.NewServer(remote)
	defer server.Close()

	app, err := Create(&Config{
		Telegram:  api.Config{Token: "123:ABC", Endpoint: server.URL},
		Polling:   dispatch.Config{Yield: 10 * time.Millisecond},
		Transport: transport.Config{Strategy: transport.StrategyFastHTTP},
	})

	require.NoError(t, err)
	app.Dispatcher.OnFunc(update.Message, func(ctx context.Context, u *update.Update) (*api.Reply, error) {
		return api.Text(strings.ToUpper(u.Text.String)), nil
	})

	current, ok := api.Current()
	require.True(t, ok)
	assert.Same(t, app.Client, current)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	select {
	case body := <-remote.sent:
		assert.Equal(t, "HI", body["text"])
		assert.Equal(t, float64(1), body["reply_to_message_id"])
	case <-time.After(5 * time.Second):
		t.Fatal("reply was not sent")
	}

	cancel()
	require.NoError(t, <-done)
	require.NoError(t, app.Shutdown(context.Background()))
	assert.Equal(t, int64(100), app.Dispatcher.Cursor().Int64)

	remote.mu.Lock()
	defer remote.mu.Unlock()
	assert.Contains(t, remote.methods, "deleteWebhook")
}
