package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/bulk-mailer/config"
	"github.com/oksasatya/bulk-mailer/internal/infrastructure/search"
	"github.com/oksasatya/bulk-mailer/internal/metrics"
	"github.com/oksasatya/bulk-mailer/pkg/helpers"
)

// The worker indexes delivery events published after each log write so
// history search stays in step with the delivery log.
func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := helpers.NewLogger(cfg.AppName+"-worker", cfg.Env)

	if cfg.RabbitMQURL == "" || cfg.RabbitMQEventsQueue == "" {
		log.Fatal("RabbitMQ not configured")
	}
	addrs := cfg.ESAddrs()
	if len(addrs) == 0 {
		log.Fatal("Elasticsearch not configured")
	}

	es, err := helpers.NewESClient(addrs, cfg.ElasticsearchUser, cfg.ElasticsearchPass)
	if err != nil {
		log.Fatalf("elasticsearch client: %v", err)
	}
	idx := search.NewDeliveryIndex(es, cfg.ESDeliveryIndex)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := idx.Ensure(ctx); err != nil {
		log.Fatalf("ensure index: %v", err)
	}

	consumer, err := helpers.NewRabbitConsumer(cfg.RabbitMQURL, cfg.RabbitMQEventsQueue, 16)
	if err != nil {
		log.Fatalf("amqp: %v", err)
	}
	defer consumer.Close()

	msgs, err := consumer.Deliveries()
	if err != nil {
		log.Fatalf("consume: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range msgs {
			handle(ctx, idx, msg, logger)
		}
	}()

	logger.WithField("queue", cfg.RabbitMQEventsQueue).Info("delivery event worker listening")
	<-ctx.Done()
	logger.Info("shutting down...")
	consumer.Close()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
	}
}

// handle acks indexed events, drops malformed ones and requeues the rest.
func handle(ctx context.Context, idx *search.DeliveryIndex, msg amqp.Delivery, logger *logrus.Logger) {
	err := idx.HandleEvent(ctx, msg.Body)
	switch {
	case err == nil:
		metrics.IncEventIndexed("indexed")
		_ = msg.Ack(false)
	case errors.Is(err, search.ErrMalformedEvent):
		metrics.IncEventIndexed("dropped")
		logger.WithError(err).Warn("dropping delivery event")
		_ = msg.Nack(false, false)
	default:
		metrics.IncEventIndexed("retry")
		logger.WithError(err).Warn("index delivery event failed; requeueing")
		_ = msg.Nack(false, true)
	}
}
