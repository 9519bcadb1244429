package transport

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"net/http/httptrace"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"

	"minigram/common/logx"
)

// Resty posts requests with a resty client on top of net/http.
type Resty struct {
	client *resty.Client
}

func NewResty(config Config) (*Resty, error) {
	config = config.withDefaults()
	proxyURL, err := config.proxyURL()
	if err != nil {
		return nil, err
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   config.DialTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSClientConfig:       &tls.Config{InsecureSkipVerify: config.InsecureSkipVerify},
		TLSHandshakeTimeout:   config.DialTimeout,
		ResponseHeaderTimeout: config.ReadTimeout,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       90 * time.Second,
	}

	if proxyURL != nil {
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	client := resty.NewWithClient(&http.Client{
		Transport: transport,
		Timeout:   config.ReadTimeout,
	}).
		SetLogger(logx.Get("resty")).
		SetHeader("User-Agent", userAgent).
		SetHeader("Content-Type", contentType)

	return &Resty{client: client}, nil
}

func (t *Resty) Name() string {
	return StrategyResty
}

func (t *Resty) Post(ctx context.Context, url string, body interface{}) (Result, error) {
	data, err := encode(body)
	if err != nil {
		return Result{}, fail("post", url, err)
	}

	var connected atomic.Bool
	trace := &httptrace.ClientTrace{
		GotConn: func(httptrace.GotConnInfo) { connected.Store(true) },
	}

	resp, err := t.client.R().
		SetContext(httptrace.WithClientTrace(ctx, trace)).
		SetBody(data).
		Post(url)
	if err != nil {
		switch {
		case ctx.Err() != nil:
			return Result{}, fail("post", url, ctx.Err())
		case connected.Load() && isReadTimeout(err):
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
