package api_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	null "gopkg.in/guregu/null.v3"

	"minigram/core/api"
	"minigram/core/exec"
	"minigram/core/transport"
	"minigram/core/update"
)

type request struct {
	URL  string
	Body map[string]interface{}
	Mode exec.Mode
}

type fakeTransport struct {
	mu       sync.Mutex
	requests []request
	results  []transport.Result
	err      error
}

func (f *fakeTransport) Name() string {
	return "fake"
}

func (f *fakeTransport) Post(ctx context.Context, url string, body interface{}) (transport.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, request{URL: url, Body: body.(map[string]interface{}), Mode: exec.ModeOf(ctx)})
	if f.err != nil {
		return transport.Result{}, f.err
	}

	if len(f.results) == 0 {
		return transport.Result{Status: 200, Body: map[string]interface{}{"ok": true, "result": true}}, nil
	}

	result := f.results[0]
	f.results = f.results[1:]
	return result, nil
}

func (f *fakeTransport) last() request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func newClient(t *testing.T, results ...transport.Result) (*api.Client, *fakeTransport) {
	fake := &fakeTransport{results: results}
	client, err := api.New(fake, api.Config{Token: "123:ABC", Endpoint: "https://example.org/"})
	require.NoError(t, err)
	return client, fake
}

func TestNew_EmptyToken(t *testing.T) {
	_, err := api.New(&fakeTransport{}, api.Config{})
	assert.Error(t, err)
}

func TestCall_ParamsMapOneToOne(t *testing.T) {
	refusal := transport.Result{Status: 400, Body: map[string]interface{}{"ok": false, "description": "Bad Request"}}
	client, fake := newClient(t, refusal)

	resp, err := client.Call(context.Background(), "sendPoll", api.Params{
		"chat_id":  int64(1),
		"question": "?",
		"options":  []string{"a", "b"},
	})

	require.NoError(t, err)
	assert.Equal(t, api.Response(refusal.Body), resp)
	assert.True(t, resp.Refused())

	req := fake.last()
	assert.Equal(t, "https://example.org/bot123:ABC/sendPoll", req.URL)
	assert.Equal(t, map[string]interface{}{
		"chat_id":  int64(1),
		"question": "?",
		"options":  []string{"a", "b"},
	}, req.Body)
}

func TestCall_NoParamsIsEmptyObject(t *testing.T) {
	client, fake := newClient(t)
	_, err := client.GetMe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{}, fake.last().Body)
}

func TestSendText(t *testing.T) {
	client, fake := newClient(t)
	ctx := context.Background()

	_, err := client.SendText(ctx, 42, "hello", nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{
		"chat_id":    int64(42),
		"text":       "hello",
		"parse_mode": api.ParseModeHTML,
	}, fake.last().Body)

	_, err = client.SendText(ctx, 42, "hello", api.Params{"parse_mode": nil, "disable_notification": true})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{
		"chat_id":              int64(42),
		"text":                 "hello",
		"disable_notification": true,
	}, fake.last().Body)

	_, err = client.SendText(ctx, 42, strings.Repeat("ж", api.MaxTextLength+10), nil)
	require.NoError(t, err)
	assert.Equal(t, api.MaxTextLength, len([]rune(fake.last().Body["text"].(string))))
}

func TestReply(t *testing.T) {
	client, fake := newClient(t)
	u := &update.Update{
		ID:        100,
		Kind:      update.Message,
		ChatID:    null.IntFrom(1),
		MessageID: null.IntFrom(5),
	}

	_, err := client.Reply(context.Background(), u, &api.Reply{Text: "hi", ParseMode: api.ParseModeMarkdownV2})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{
		"chat_id":             int64(1),
		"text":                "hi",
		"parse_mode":          api.ParseModeMarkdownV2,
		"reply_to_message_id": int64(5),
	}, fake.last().Body)

	_, err = client.Reply(context.Background(), &update.Update{Kind: update.Poll}, api.Text("hi"))
	assert.Error(t, err)
}

func TestSetMessageReaction(t *testing.T) {
	client, fake := newClient(t)
	_, err := client.SetMessageReaction(context.Background(), 1, 5, "👍", true)
	require.NoError(t, err)

	req := fake.last()
	assert.True(t, strings.HasSuffix(req.URL, "/setMessageReaction"))
	assert.Equal(t, map[string]interface{}{
		"chat_id":    int64(1),
		"message_id": int64(5),
		"reaction":   []interface{}{map[string]interface{}{"type": "emoji", "emoji": "👍"}},
		"is_big":     true,
	}, req.Body)
}

func TestGetUpdates_Params(t *testing.T) {
	client, fake := newClient(t,
		transport.Result{Status: 200, Body: map[string]interface{}{"ok": true, "result": []interface{}{}}},
		transport.Result{Status: 200, Body: map[string]interface{}{"ok": true, "result": []interface{}{}}},
	)

	ctx := context.Background()
	_, err := client.GetUpdates(ctx, api.UpdatesOptions{Timeout: 60, AllowedUpdates: []update.Kind{update.Message}})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{
		"timeout":         60,
		"allowed_updates": []string{"message"},
	}, fake.last().Body)

	_, err = client.GetUpdates(ctx, api.UpdatesOptions{Offset: null.IntFrom(101), Timeout: 60, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(101), fake.last().Body["offset"])
	assert.Equal(t, 10, fake.last().Body["limit"])
}

func TestGetUpdates_TimeoutResultIsEmptyBatch(t *testing.T) {
	client, _ := newClient(t, transport.TimeoutResult())
	batch, err := client.GetUpdates(context.Background(), api.UpdatesOptions{Timeout: 60})
	require.NoError(t, err)
	assert.Empty(t, batch)
}

func TestGetUpdates_Refusal(t *testing.T) {
	client, _ := newClient(t, transport.Result{Status: 429, Body: map[string]interface{}{
		"ok":          false,
		"error_code":  429,
		"description": "Too Many Requests",
		"parameters":  map[string]interface{}{"retry_after": 5},
	}})

	_, err := client.GetUpdates(context.Background(), api.UpdatesOptions{})
	var apiErr *api.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 429, apiErr.Code)
	assert.Equal(t, "Too Many Requests", apiErr.Description)
	assert.Equal(t, 5*time.Second, apiErr.RetryAfter)
}

func TestGetUpdates_ErrorStatusWithoutBody(t *testing.T) {
	client, _ := newClient(t, transport.Result{Status: 502, Body: map[string]interface{}{}})
	_, err := client.GetUpdates(context.Background(), api.UpdatesOptions{})
	var apiErr *api.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 502, apiErr.Code)
}

func TestTransportErrorPassesThrough(t *testing.T) {
	client, fake := newClient(t)
	fake.err = &transport.Error{Op: "dial", URL: "x", Err: errors.New("refused")}

	_, err := client.GetUpdates(context.Background(), api.UpdatesOptions{})
	var transportErr *transport.Error
	assert.True(t, errors.As(err, &transportErr))
}

func TestExecutionModeTransparency(t *testing.T) {
	result := transport.Result{Status: 200, Body: map[string]interface{}{"ok": true, "result": map[string]interface{}{"message_id": 7}}}
	client, fake := newClient(t, result, result)
	ctx := context.Background()

	blocking, err := client.SendText(ctx, 1, "x", nil)
	require.NoError(t, err)
	blockingReq := fake.last()

	async, err := client.SendTextAsync(ctx, 1, "x", nil).Get(ctx)
	require.NoError(t, err)
	asyncReq := fake.last()

	assert.Equal(t, blocking, async)
	assert.Equal(t, blockingReq.URL, asyncReq.URL)
	assert.Equal(t, blockingReq.Body, asyncReq.Body)
	assert.Equal(t, exec.Blocking, blockingReq.Mode)
	assert.Equal(t, exec.Async, asyncReq.Mode)
}

func TestRegistry(t *testing.T) {
	client, _ := newClient(t)
	api.Register(client)
	current, ok := api.Current()
	require.True(t, ok)
	assert.Same(t, client, current)
}

func TestChatActionAndWebhookMethods(t *testing.T) {
	client, fake := newClient(t)
	ctx := context.Background()

	_, err := client.SendChatAction(ctx, 1, api.ActionTyping)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"chat_id": int64(1), "action": "typing"}, fake.last().Body)

	_, err = client.SetWebhook(ctx, api.WebhookOptions{
		URL:            "https://bot.example.org/webhook",
		SecretToken:    "s3cret",
		AllowedUpdates: []update.Kind{update.Message},
	})

	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{
		"url":             "https://bot.example.org/webhook",
		"secret_token":    "s3cret",
		"allowed_updates": []string{"message"},
	}, fake.last().Body)

	_, err = client.DeleteWebhookAsync(ctx, true).Get(ctx)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(fake.last().URL, "/deleteWebhook"))
	assert.Equal(t, map[string]interface{}{"drop_pending_updates": true}, fake.last().Body)
}
