package transport

import (
	"context"
	"crypto/tls"
	"net"

	"github.com/pkg/errors"
	"github.com/valyala/fasthttp"
	"golang.org/x/net/proxy"
)

// FastHTTP posts requests with a pooled fasthttp client.
type FastHTTP struct {
	client *fasthttp.Client
	config Config
}

func NewFastHTTP(config Config) (*FastHTTP, error) {
	config = config.withDefaults()
	client := &fasthttp.Client{
		Name:         userAgent,
		ReadTimeout:  config.ReadTimeout,
		// also bounds the tls handshake
		WriteTimeout: config.DialTimeout,
		TLSConfig:    &tls.Config{InsecureSkipVerify: config.InsecureSkipVerify},
	}

	proxyURL, err := config.proxyURL()
	if err != nil {
		return nil, err
	}

	if proxyURL != nil {
		dialer, err := proxy.FromURL(proxyURL, &net.Dialer{Timeout: config.DialTimeout})
		if err != nil {
			return nil, errors.Wrap(err, "create proxy dialer")
		}

		client.Dial = func(addr string) (net.Conn, error) {
			return dialer.Dial("tcp", addr)
		}
	} else {
		dialTimeout := config.DialTimeout
		client.Dial = func(addr string) (net.Conn, error) {
			return fasthttp.DialTimeout(addr, dialTimeout)
		}
	}

	return &FastHTTP{client: client, config: config}, nil
}

func (t *FastHTTP) Name() string {
	return StrategyFastHTTP
}

func (t *FastHTTP) Post(ctx context.Context, url string, body interface{}) (Result, error) {
	data, err := encode(body)
	if err != nil {
		return Result{}, fail("post", url, err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	release := func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType(contentType)
	req.SetBody(data)

	at, bound := deadline(ctx, t.config.ReadTimeout)
	done := make(chan error, 1)
	go func() { done <- t.client.DoDeadline(req, resp, at) }()
	select {
	case err := <-done:
		defer release()
		return t.result(ctx, url, resp, bound, err)
	case <-ctx.Done():
		go func() {
			<-done
			release()
		}()

		return Result{}, fail("post", url, ctx.Err())
	}
}

func (t *FastHTTP) result(ctx context.Context, url string, resp *fasthttp.Response, bound bool, err error) (Result, error) {
	if err != nil {
		switch {
		case ctx.Err() != nil:
			return Result{}, fail("post", url, ctx.Err())
		case errors.Is(err, fasthttp.ErrTimeout) && bound:
			return Result{}, fail("post", url, context.DeadlineExceeded)
		case errors.Is(err, fasthttp.ErrTimeout), isReadTimeout(err):
			return TimeoutResult(), nil
		default:
			return Result{}, fail("post", url, err)
		}
	}

	decoded, err := decode(resp.Body())
	if err != nil {
		return Result{}, fail("read", url, err)
	}

	return Result{Status: resp.StatusCode(), Body: decoded}, nil
}
