package transport

import (
	"bufio"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http/httputil"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/net/proxy"
)

// Raw is a minimal HTTP/1.1 client. It opens a fresh connection per request
// and closes it after the response has been read.
type Raw struct {
	dialer proxy.ContextDialer
	config Config
}

func NewRaw(config Config) (*Raw, error) {
	config = config.withDefaults()
	base := &net.Dialer{Timeout: config.DialTimeout}
	raw := &Raw{dialer: base, config: config}

	proxyURL, err := config.proxyURL()
	if err != nil {
		return nil, err
	}

	if proxyURL != nil {
		dialer, err := proxy.FromURL(proxyURL, base)
		if err != nil {
			return nil, errors.Wrap(err, "create proxy dialer")
		}

		contextDialer, ok := dialer.(proxy.ContextDialer)
		if !ok {
			return nil, errors.Errorf("proxy dialer for %s does not support context", proxyURL.Scheme)
		}

		raw.dialer = contextDialer
	}

	return raw, nil
}

func (t *Raw) Name() string {
	return StrategyRaw
}

func (t *Raw) Post(ctx context.Context, rawURL string, body interface{}) (Result, error) {
	data, err := encode(body)
	if err != nil {
		return Result{}, fail("post", rawURL, err)
	}

	target, err := url.Parse(rawURL)
	if err != nil {
		return Result{}, fail("parse", rawURL, err)
	}

	var port string
	switch target.Scheme {
	case "https":
		port = "443"
	case "http":
		port = "80"
	default:
		return Result{}, fail("parse", rawURL, errors.Errorf("unsupported scheme: %s", target.Scheme))
	}

	if target.Port() != "" {
		port = target.Port()
	}

	host := target.Hostname()
	conn, err := t.dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, port))
	if err != nil {
		return Result{}, t.failure(ctx, "dial", rawURL, err)
	}

	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	if target.Scheme == "https" {
		// the handshake is connection setup: its timeout is never a read timeout
		at, _ := deadline(ctx, t.config.DialTimeout)
		if err := conn.SetDeadline(at); err != nil {
			return Result{}, t.failure(ctx, "handshake", rawURL, err)
		}

		tlsConn := tls.Client(conn, &tls.Config{
			ServerName:         host,
			InsecureSkipVerify: t.config.InsecureSkipVerify,
		})

		if err := tlsConn.HandshakeContext(ctx); err != nil {
			return Result{}, t.failure(ctx, "handshake", rawURL, err)
		}

		conn = tlsConn
	}

	at, bound := deadline(ctx, t.config.ReadTimeout)
	if err := conn.SetDeadline(at); err != nil {
		return Result{}, t.failure(ctx, "write", rawURL, err)
	}

	path := target.RequestURI()
	if path == "" {
		path = "/"
	}

	writer := bufio.NewWriter(conn)
	fmt.Fprintf(writer, "POST %s HTTP/1.1\r\n", path)
	fmt.Fprintf(writer, "Host: %s\r\n", target.Host)
	fmt.Fprintf(writer, "User-Agent: %s\r\n", userAgent)
	fmt.Fprintf(writer, "Content-Type: %s\r\n", contentType)
	fmt.Fprintf(writer, "Content-Length: %d\r\n", len(data))
	fmt.Fprint(writer, "Connection: close\r\n\r\n")
	writer.Write(data)
	if err := writer.Flush(); err != nil {
		return Result{}, t.failure(ctx, "write", rawURL, err)
	}

	status, payload, err := readResponse(bufio.NewReader(conn))
	if err != nil {
		switch {
		case ctx.Err() != nil:
			return Result{}, fail("read", rawURL, ctx.Err())
		case bound && isReadTimeout(err):
			return Result{}, fail("read", rawURL, context.DeadlineExceeded)
		case isReadTimeout(err):
			return TimeoutResult(), nil
		default:
			return Result{}, fail("read", rawURL, err)
		}
	}

	decoded, err := decode(payload)
	if err != nil {
		return Result{}, fail("read", rawURL, err)
	}

	return Result{Status: status, Body: decoded}, nil
}

func (t *Raw) failure(ctx context.Context, op, url string, err error) *Error {
	if ctx.Err() != nil {
		return fail(op, url, ctx.Err())
	}

	return fail(op, url, err)
}

func readResponse(reader *bufio.Reader) (int, []byte, error) {
	line, err := reader.ReadString('\n')
	if err != nil {
		return 0, nil, errors.Wrap(err, "read status line")
	}

	fields := strings.Fields(line)
	if len(fields) < 2 || !strings.HasPrefix(fields[0], "HTTP/") {
		return 0, nil, errors.Errorf("malformed status line: %q", strings.TrimSpace(line))
	}

	status, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0, nil, errors.Wrapf(err, "parse status code %q", fields[1])
	}

	headers := make(map[string]string)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return 0, nil, errors.Wrap(err, "read headers")
		}

		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}

		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}

		headers[textproto.CanonicalMIMEHeaderKey(strings.TrimSpace(key))] = strings.TrimSpace(value)
	}

	var body io.Reader = reader
	if strings.EqualFold(headers["Transfer-Encoding"], "chunked") {
		body = httputil.NewChunkedReader(reader)
	} else if value, ok := headers["Content-Length"]; ok {
		length, err := strconv.Atoi(value)
		if err != nil || length < 0 {
			return 0, nil, errors.Errorf("invalid content length: %q", value)
		}

		payload := make([]byte, length)
		if _, err := io.ReadFull(reader, payload); err != nil {
			return 0, nil, errors.Wrap(err, "read body")
		}

		return status, payload, nil
	}

	payload, err := io.ReadAll(body)
	if err != nil {
		return 0, nil, errors.Wrap(err, "read body")
	}

	return status, payload, nil
}
