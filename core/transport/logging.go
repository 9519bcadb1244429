package transport

import (
	"context"
	"path"
	"time"

	"github.com/gofrs/uuid"
	"github.com/sirupsen/logrus"

	"minigram/common/logx"
	"minigram/core/exec"
)

type logging struct {
	Transport
	log *logrus.Entry
}

// WithLogging logs every request with a generated request id and its duration.
func WithLogging(transport Transport) Transport {
	return &logging{
		Transport: transport,
		log:       logx.Get("transport").WithField("strategy", transport.Name()),
	}
}

func (l *logging) Post(ctx context.Context, url string, body interface{}) (Result, error) {
	log := l.log.WithFields(logrus.Fields{
		"method": path.Base(url),
		"mode":   exec.ModeOf(ctx),
	})

	if id, err := uuid.NewV4(); err == nil {
		log = log.WithField("request", id.String())
	}

	start := time.Now()
	log.Trace("sending request")
	result, err := l.Transport.Post(ctx, url, body)
	log = log.WithField("duration", time.Since(start).Round(time.Millisecond))
	if err != nil {
		log.WithError(err).Debug("request failed")
		return result, err
	}

	log.WithField("status", result.Status).Trace("received response")
	return result, nil
}
