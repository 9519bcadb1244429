// Package dispatch runs the long-poll loop and routes updates to handlers.
//
// Updates are processed one at a time in the order received. The cursor
// (last seen update_id) only moves forward and is advanced after every
// update, including ones whose handler failed.
package dispatch

import (
	"context"
	"sync"

	"github.com/jfk9w-go/flu"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	null "gopkg.in/guregu/null.v3"

	"minigram/common/logx"
	"minigram/core/api"
	"minigram/core/exec"
	"minigram/core/update"
	"minigram/metrics"
)

// Client is the part of *api.Client the dispatcher uses.
type Client interface {
	GetUpdates(ctx context.Context, options api.UpdatesOptions) ([]interface{}, error)
	Reply(ctx context.Context, u *update.Update, reply *api.Reply) (api.Response, error)
	DeleteWebhook(ctx context.Context, dropPending bool) (api.Response, error)
}

type Dispatcher struct {
	client   Client
	config   Config
	kinds    []update.Kind
	metrics  metrics.Metrics
	log      *logrus.Entry
	handlers map[update.Kind]Handler
	cursor   null.Int
	task     *exec.Task[struct{}]
	mu       sync.RWMutex
}

func New(client Client, config Config, m metrics.Metrics) (*Dispatcher, error) {
	config = config.withDefaults()
	kinds, err := update.ParseKinds(config.AllowedUpdates)
	if err != nil {
		return nil, errors.Wrap(err, "allowed updates")
	}

	if m == nil {
		m = metrics.Dummy
	}

	return &Dispatcher{
		client:   client,
		config:   config,
		kinds:    kinds,
		metrics:  m,
		log:      logx.Get("dispatch"),
		handlers: make(map[update.Kind]Handler),
	}, nil
}

// On registers the handler for the kind, replacing the previous one.
func (d *Dispatcher) On(kind update.Kind, handler Handler) *Dispatcher {
	d.mu.Lock()
	defer d.mu.Unlock()
	if handler == nil {
		delete(d.handlers, kind)
	} else {
		d.handlers[kind] = handler
	}

	return d
}

func (d *Dispatcher) OnFunc(kind update.Kind, fun HandlerFunc) *Dispatcher {
	return d.On(kind, fun)
}

// Kinds returns the subscribed kinds.
func (d *Dispatcher) Kinds() []update.Kind {
	return append([]update.Kind(nil), d.kinds...)
}

// Cursor returns the last seen update_id, invalid before the first update.
func (d *Dispatcher) Cursor() null.Int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cursor
}

func (d *Dispatcher) handler(kind update.Kind) Handler {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.handlers[kind]
}

func (d *Dispatcher) advance(id int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.cursor.Valid || id > d.cursor.Int64 {
		d.cursor = null.IntFrom(id)
		d.metrics.Gauge("cursor", nil).Set(float64(id))
	}
}

// Run polls until ctx is done. It returns the context error.
func (d *Dispatcher) Run(ctx context.Context) error {
	_, err := exec.Run(ctx, d.loop)
	return err
}

// Start runs the poll loop in a background task.
// Calling Start on a running dispatcher returns the running task.
func (d *Dispatcher) Start(ctx context.Context) *exec.Task[struct{}] {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.task == nil {
		d.task = exec.Go(ctx, d.loop)
	} else {
		select {
		case <-d.task.Done():
			d.task = exec.Go(ctx, d.loop)
		default:
		}
	}

	return d.task
}

// Shutdown stops the poll loop started with Start, if any, and deletes the webhook.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	task := d.task
	d.task = nil
	d.mu.Unlock()

	if task != nil {
		task.Cancel()
		if _, err := task.Get(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return errors.Wrap(err, "stop polling")
		}
	}

	if _, err := d.client.DeleteWebhook(ctx, false); err != nil {
		return errors.Wrap(err, "delete webhook")
	}

	d.log.Info("shut down")
	return nil
}

func (d *Dispatcher) loop(ctx context.Context, mode exec.Mode) (struct{}, error) {
	d.log.WithFields(logrus.Fields{
		"mode":  mode,
		"kinds": update.Strings(d.kinds),
	}).Info("started polling")

	for {
		if err := ctx.Err(); err != nil {
			d.log.Info("stopped polling")
			return struct{}{}, err
		}

		delay := d.config.Yield
		if _, err := d.Poll(ctx); err != nil {
			if ctx.Err() != nil {
				continue
			}

			d.metrics.Counter("poll_errors", nil).Inc()
			d.log.WithError(err).Warnf("poll failed, retrying in %s", d.config.ErrorDelay)
			delay = d.config.ErrorDelay
		}

		_ = flu.Sleep(ctx, delay)
	}
}

// Poll fetches one batch and processes it. It returns the number of updates
// passed on to processing.
func (d *Dispatcher) Poll(ctx context.Context) (int, error) {
	batch, err := d.client.GetUpdates(ctx, api.UpdatesOptions{
		Offset:         d.offset(),
		Timeout:        d.config.Timeout,
		Limit:          d.config.Limit,
		AllowedUpdates: d.kinds,
	})

	if err != nil {
		return 0, errors.Wrap(err, "get updates")
	}

	processed := 0
	for _, item := range batch {
		if err := ctx.Err(); err != nil {
			return processed, err
		}

		raw, _ := item.(map[string]interface{})
		id, ok := update.Int64(raw["update_id"])
		if !ok {
			d.metrics.Counter("updates_skipped", metrics.Labels{"reason": "no_id"}).Inc()
			d.log.WithField("update", item).Warn("skipping update without update_id")
			continue
		}

		if cursor := d.Cursor(); cursor.Valid && id <= cursor.Int64 {
			d.metrics.Counter("updates_skipped", metrics.Labels{"reason": "duplicate"}).Inc()
			d.log.WithField("update_id", id).Debug("skipping already seen update")
			continue
		}

		d.metrics.Counter("updates_received", nil).Inc()
		_ = d.process(ctx, id, raw)
		d.advance(id)
		processed++
	}

	return processed, nil
}

func (d *Dispatcher) offset() null.Int {
	cursor := d.Cursor()
	if !cursor.Valid {
		return cursor
	}

	return null.IntFrom(cursor.Int64 + 1)
}

// Handle processes a pushed update without touching the cursor.
func (d *Dispatcher) Handle(ctx context.Context, raw map[string]interface{}) error {
	id, _ := update.Int64(raw["update_id"])
	d.metrics.Counter("updates_received", nil).Inc()
	return d.process(ctx, id, raw)
}

// HandleJSON decodes and processes a pushed update.
func (d *Dispatcher) HandleJSON(ctx context.Context, data []byte) error {
	raw, err := update.DecodeRaw(data)
	if err != nil {
		d.metrics.Counter("handler_errors", metrics.Labels{"kind": "invalid"}).Inc()
		return err
	}

	return d.Handle(ctx, raw)
}

func (d *Dispatcher) process(ctx context.Context, id int64, raw map[string]interface{}) error {
	ctx = context.WithoutCancel(ctx)
	u, err := update.Parse(raw)
	if err != nil {
		err = &HandlerError{Kind: "unknown", UpdateID: id, Err: err}
		d.metrics.Counter("handler_errors", metrics.Labels{"kind": "unknown"}).Inc()
		d.log.WithError(err).Warn("failed to parse update")
		return err
	}

	d.log.WithField("update", u).Info("received update")

	handler := d.handler(u.Kind)
	if handler == nil {
		return nil
	}

	reply, err := invoke(ctx, handler, u)
	if err == nil && reply != nil {
		if _, replyErr := d.client.Reply(ctx, u, reply); replyErr != nil {
			err = errors.Wrap(replyErr, "send reply")
		}
	}

	if err != nil {
		err = &HandlerError{Kind: u.Kind, UpdateID: u.ID, Err: err}
		d.metrics.Counter("handler_errors", metrics.Labels{"kind": string(u.Kind)}).Inc()
		d.log.WithError(err).Error("failed to handle update")
		return err
	}

	d.metrics.Counter("updates_handled", metrics.Labels{"kind": string(u.Kind)}).Inc()
	return nil
}

func invoke(ctx context.Context, handler Handler, u *update.Update) (reply *api.Reply, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &exec.PanicError{Value: r}
		}
	}()

	return handler.Handle(ctx, u)
}
