package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"minigram/app"
	"minigram/common/logx"
	"minigram/core/api"
	"minigram/core/update"
)

var GitCommit = "dev"

// echo replies to every text message with the same text.
func echo(ctx context.Context, u *update.Update) (*api.Reply, error) {
	if !u.Text.Valid || u.Text.String == "" {
		return nil, nil
	}

	return &api.Reply{Text: u.Text.String, Params: api.Params{"parse_mode": nil}}, nil
}

func main() {
	log := logx.Get("main").WithField("version", GitCommit)
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Fatalf("load .env: %+v", err)
	}

	environ, err := app.ParseEnviron()
	if err != nil {
		log.Fatalf("%+v", err)
	}

	config, err := app.Load(environ)
	if err != nil {
		log.Fatalf("load config: %+v", err)
	}

	instance, err := app.Create(config)
	if err != nil {
		log.Fatalf("create instance: %+v", err)
	}

	instance.Dispatcher.OnFunc(update.Message, echo)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("starting")
	if err := instance.Run(ctx); err != nil {
		log.Errorf("run: %+v", err)
	}

	if err := instance.Shutdown(context.Background()); err != nil {
		log.Errorf("shutdown: %+v", err)
	}
}
