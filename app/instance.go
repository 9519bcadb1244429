package app

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"minigram/common/logx"
	"minigram/core/api"
	"minigram/core/dispatch"
	"minigram/core/transport"
	"minigram/core/webhook"
	"minigram/metrics"
)

const shutdownTimeout = 10 * time.Second

// Instance wires the transport, the client and the dispatcher from Config.
type Instance struct {
	Config     *Config
	Client     *api.Client
	Dispatcher *dispatch.Dispatcher

	transport  transport.Transport
	prometheus *metrics.Prometheus
	graphite   *metrics.Graphite
	servers    []*http.Server
	log        *logrus.Entry
}

func Create(config *Config) (*Instance, error) {
	if err := logx.Configure(config.Logging); err != nil {
		return nil, errors.Wrap(err, "configure logging")
	}

	app := &Instance{
		Config: config,
		log:    logx.Get("app"),
	}

	var backends metrics.Multi
	if config.Prometheus.Listen != "" {
		prometheus := metrics.NewPrometheus()
		app.prometheus = &prometheus
		backends = append(backends, prometheus)
	}

	if config.Graphite.Address != "" {
		graphite := metrics.NewGraphite(config.Graphite.Address)
		app.graphite = &graphite
		backends = append(backends, graphite)
	}

	var registry metrics.Metrics = metrics.Dummy
	switch len(backends) {
	case 0:
	case 1:
		registry = backends[0].WithPrefix("minigram")
	default:
		registry = backends.WithPrefix("minigram")
	}

	tr, err := transport.New(config.Transport)
	if err != nil {
		return nil, errors.Wrap(err, "create transport")
	}

	app.transport = tr
	if app.Client, err = api.New(tr, config.Telegram); err != nil {
		return nil, errors.Wrap(err, "create client")
	}

	if app.Dispatcher, err = dispatch.New(app.Client, config.Polling, registry); err != nil {
		return nil, errors.Wrap(err, "create dispatcher")
	}

	api.Register(app.Client)
	app.log.WithField("transport", tr.Name()).Info("init ok")
	return app, nil
}

// Webhook returns the push mode handler.
func (app *Instance) Webhook() http.Handler {
	return webhook.New(app.Dispatcher, app.Config.Webhook.Secret)
}

// Run serves metrics and either polls or serves the webhook until ctx is done.
func (app *Instance) Run(ctx context.Context) error {
	if app.prometheus != nil {
		mux := http.NewServeMux()
		mux.Handle("/metrics", app.prometheus.Handler())
		if err := app.serve(ctx, app.Config.Prometheus.Listen, mux); err != nil {
			return errors.Wrap(err, "serve metrics")
		}
	}

	if app.graphite != nil {
		go app.graphite.Run(ctx, app.Config.Graphite.Interval)
	}

	if app.Config.Webhook.Listen == "" {
		err := app.Dispatcher.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}

		return err
	}

	mux := http.NewServeMux()
	mux.Handle(app.Config.Webhook.Path, app.Webhook())
	if err := app.serve(ctx, app.Config.Webhook.Listen, mux); err != nil {
		return errors.Wrap(err, "serve webhook")
	}

	if url := app.Config.Webhook.URL; url != "" {
		if _, err := app.Client.SetWebhook(ctx, api.WebhookOptions{
			URL:            url,
			SecretToken:    app.Config.Webhook.Secret,
			AllowedUpdates: app.Dispatcher.Kinds(),
			DropPending:    app.Config.Webhook.DropPending,
		}); err != nil {
			return errors.Wrap(err, "set webhook")
		}

		app.log.WithField("url", url).Info("webhook registered")
	}

	<-ctx.Done()
	return nil
}

func (app *Instance) serve(ctx context.Context, addr string, handler http.Handler) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	server := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	app.servers = append(app.servers, server)
	log := app.log.WithField("addr", listener.Addr().String())
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("server stopped")
		}
	}()

	log.Info("listening")
	return nil
}

// Shutdown stops the servers, stops polling and deletes the webhook.
func (app *Instance) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	for _, server := range app.servers {
		if err := server.Shutdown(ctx); err != nil {
			app.log.WithError(err).Warn("server shutdown")
		}
	}

	err := app.Dispatcher.Shutdown(ctx)
	if closeErr := logx.Close(); err == nil {
		err = closeErr
	}

	return err
}
