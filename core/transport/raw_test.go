package transport_test

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"minigram/core/transport"
)

// serveOnce accepts a single connection, consumes the request head and
// writes the response parts with a short pause between them.
func serveOnce(t *testing.T, parts ...string) string {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = listener.Close() })

	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}

		defer conn.Close()
		reader := bufio.NewReader(conn)
		for {
			line, err := reader.ReadString('\n')
			if err != nil || line == "\r\n" {
				break
			}
		}

		for _, part := range parts {
			_, _ = io.WriteString(conn, part)
			time.Sleep(20 * time.Millisecond)
		}
	}()

	return "http://" + listener.Addr().String()
}

func TestRaw_ShortReads(t *testing.T) {
	url := serveOnce(t,
		"HTTP/1.1 200 OK\r\nContent-Type: application/json\r\nContent-Length: 26\r\n\r\n",
		`{"ok":true,`,
		`"result":[1,2]}`,
	)

	raw, err := transport.NewRaw(transport.Config{})
	require.NoError(t, err)

	result, err := raw.Post(context.Background(), url+"/botTOKEN/getUpdates", nil)
	require.NoError(t, err)
	assert.Equal(t, 200, result.Status)
	assert.Equal(t, true, result.Body["ok"])
	assert.Len(t, result.Body["result"], 2)
}

func TestRaw_NoContentLength(t *testing.T) {
	url := serveOnce(t,
		"HTTP/1.1 429 Too Many Requests\r\n\r\n",
		`{"ok":false,"error_code":429,"parameters":{"retry_after":5}}`,
	)

	raw, err := transport.NewRaw(transport.Config{})
	require.NoError(t, err)

	result, err := raw.Post(context.Background(), url+"/botTOKEN/sendMessage", map[string]interface{}{"text": "x"})
	require.NoError(t, err)
	assert.Equal(t, 429, result.Status)
	assert.Equal(t, false, result.Body["ok"])
}

func TestRaw_Chunked(t *testing.T) {
	url := serveOnce(t,
		"HTTP/1.1 200 OK\r\nTransfer-Encoding: chunked\r\n\r\n",
		"b\r\n{\"ok\":true}\r\n",
		"0\r\n\r\n",
	)

	raw, err := transport.NewRaw(transport.Config{})
	require.NoError(t, err)

	result, err := raw.Post(context.Background(), url+"/botTOKEN/getMe", nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"ok": true}, result.Body)
}

func TestRaw_MalformedStatusLine(t *testing.T) {
	url := serveOnce(t, "garbage\r\n\r\n")

	raw, err := transport.NewRaw(transport.Config{})
	require.NoError(t, err)

	_, err = raw.Post(context.Background(), url+"/botTOKEN/getMe", nil)
	assert.Error(t, err)
}

func TestRaw_UnsupportedScheme(t *testing.T) {
	raw, err := transport.NewRaw(transport.Config{})
	require.NoError(t, err)

	_, err = raw.Post(context.Background(), "ftp://example.com/botTOKEN/getMe", nil)
	assert.Error(t, err)
}

func TestRaw_HTTPS(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"ok": true, "result": r.URL.Path})
	}))
	defer server.Close()

	raw, err := transport.NewRaw(transport.Config{InsecureSkipVerify: true})
	require.NoError(t, err)

	result, err := raw.Post(context.Background(), server.URL+"/botTOKEN/getMe", nil)
	require.NoError(t, err)
	assert.Equal(t, 200, result.Status)
	assert.Equal(t, "/botTOKEN/getMe", result.Body["result"])
}
