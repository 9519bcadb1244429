// Package webhook adapts a dispatcher to net/http for push mode.
package webhook

import (
	"context"
	"crypto/subtle"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"

	"minigram/common/logx"
)

const (
	// SecretHeader carries the secret token configured with setWebhook.
	SecretHeader = "X-Telegram-Bot-Api-Secret-Token"

	maxBodySize = 1 << 20
)

// Receiver processes a single JSON-encoded update.
type Receiver interface {
	HandleJSON(ctx context.Context, data []byte) error
}

// Handler always answers 200 {"status":"ok"} so that the remote never redelivers.
// Failures are only logged.
type Handler struct {
	Receiver Receiver
	// Secret is compared with SecretHeader when set. Mismatching requests are dropped.
	Secret string

	log *logrus.Entry
}

func New(receiver Receiver, secret string) *Handler {
	return &Handler{
		Receiver: receiver,
		Secret:   secret,
		log:      logx.Get("webhook"),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	defer ok(w)

	log := h.log
	if log == nil {
		log = logx.Get("webhook")
	}

	if r.Method != http.MethodPost {
		log.WithField("method", r.Method).Warn("unexpected request method")
		return
	}

	if h.Secret != "" && subtle.ConstantTimeCompare([]byte(r.Header.Get(SecretHeader)), []byte(h.Secret)) != 1 {
		log.WithField("remote", r.RemoteAddr).Warn("secret token mismatch, dropping update")
		return
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		log.WithError(err).Warn("failed to read body")
		return
	}

	if err := h.Receiver.HandleJSON(r.Context(), data); err != nil {
		log.WithError(err).Debug("update failed")
	}
}

func ok(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, `{"status":"ok"}`)
}
