// Package api is a thin facade over the remote method-call contract.
//
// Every method is implemented once as an exec.Op and exposed twice:
// X runs in the mode of the caller (blocking, or inline inside a task),
// XAsync starts a cancellable task.
package api

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"minigram/common/logx"
	"minigram/core/exec"
	"minigram/core/transport"
)

const DefaultEndpoint = "https://api.telegram.org"

type Config struct {
	Token    string `yaml:"token"`
	Endpoint string `yaml:"endpoint,omitempty"`
}

// Client calls remote methods through a transport.
type Client struct {
	transport transport.Transport
	endpoint  string
	token     string
	log       *logrus.Entry
}

func New(transport transport.Transport, config Config) (*Client, error) {
	if config.Token == "" {
		return nil, errors.New("empty token")
	}

	endpoint := config.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}

	return &Client{
		transport: transport,
		endpoint:  strings.TrimRight(endpoint, "/"),
		token:     config.Token,
		log:       logx.Get("api"),
	}, nil
}

// URL returns the request URL of the method.
func (c *Client) URL(method string) string {
	return c.endpoint + "/bot" + c.token + "/" + method
}

func (c *Client) post(ctx context.Context, method string, body map[string]interface{}) (transport.Result, error) {
	if body == nil {
		body = make(map[string]interface{})
	}

	log := c.log.WithField("method", method)
	quiet := method == "getUpdates"
	if !quiet {
		log.WithField("body", body).Debug("request")
	}

	result, err := c.transport.Post(ctx, c.URL(method), body)
	if err != nil {
		return result, err
	}

	if quiet {
		log.WithField("status", result.Status).Trace("response")
	} else {
		log.WithField("status", result.Status).WithField("body", result.Body).Debug("response")
	}

	return result, nil
}

func (c *Client) call(method string, body map[string]interface{}) exec.Op[Response] {
	return func(ctx context.Context, mode exec.Mode) (Response, error) {
		result, err := c.post(ctx, method, body)
		if err != nil {
			return nil, err
		}

		return Response(result.Body), nil
	}
}

// checked is like call, but converts a refusal or an error status into *Error.
func (c *Client) checked(method string, body map[string]interface{}) exec.Op[Response] {
	return func(ctx context.Context, mode exec.Mode) (Response, error) {
		result, err := c.post(ctx, method, body)
		if err != nil {
			return nil, err
		}

		resp := Response(result.Body)
		if resp.Refused() || result.Status >= 400 {
			err := resp.err()
			if err.Code == 0 {
				err.Code = result.Status
			}

			return resp, errors.Wrap(err, method)
		}

		return resp, nil
	}
}

// Call invokes an arbitrary method and returns the decoded response unmodified.
// A refusal by the remote is not an error here.
func (c *Client) Call(ctx context.Context, method string, params Params) (Response, error) {
	return exec.Run(ctx, c.call(method, params.apply(make(map[string]interface{}))))
}

func (c *Client) CallAsync(ctx context.Context, method string, params Params) *exec.Task[Response] {
	return exec.Go(ctx, c.call(method, params.apply(make(map[string]interface{}))))
}
