package main

import (
	"context"
	"errors"

	"cv-generator/internal/adapter/queue"

	"github.com/urfave/cli/v3"
)

func workerAction(ctx context.Context, cmd *cli.Command) error {
	a, err := build(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	cfg := a.cfg

	if cfg.Queue.Driver != "rabbitmq" {
		return errors.New("the worker command requires queue.driver = \"rabbitmq\"")
	}
	consumer := queue.NewRabbitConsumer(cfg.Queue.RabbitURL, cfg.Queue.RabbitQueue, a.worker.Handle,
		queue.WithConcurrency(cfg.Queue.Workers),
		queue.WithMaxDelivery(cfg.Queue.MaxDelivery),
		queue.WithRedeliveryDelay(cfg.Queue.RetryDelay),
		queue.WithConsumerLogger(a.logger),
	)
	return consumer.Consume(ctx)
}
