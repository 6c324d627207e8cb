package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/suPer8Hu/helpdesk-triage/internal/app"
	"github.com/suPer8Hu/helpdesk-triage/internal/config"
	"github.com/suPer8Hu/helpdesk-triage/internal/logger"
	"github.com/suPer8Hu/helpdesk-triage/internal/store/rabbitmq"
	"github.com/suPer8Hu/helpdesk-triage/internal/worker"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "worker:", err)
		os.Exit(1)
	}
}

func workerConcurrency(n int) int {
	if n <= 0 {
		return 2
	}
	if n > 50 {
		return 50
	}
	return n
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := logger.Init(cfg.Logger, false); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	log := logger.WithComponent("worker")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger.Get())
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Error("shutdown flush failed", "error", err)
		}
	}()

	conn, err := amqp.Dial(cfg.Rabbit.URL)
	if err != nil {
		return fmt.Errorf("rabbit dial: %w", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbit channel: %w", err)
	}
	defer ch.Close()

	queue := cfg.Rabbit.Queue
	if err := rabbitmq.DeclareTopology(ch, queue); err != nil {
		return fmt.Errorf("declare topology: %w", err)
	}

	// strict concurrency control
	concurrency := workerConcurrency(cfg.Rabbit.Concurrency)
	if err := ch.Qos(concurrency, 0, false); err != nil {
		return fmt.Errorf("qos: %w", err)
	}

	msgs, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	// retries are published on a separate channel
	pubCh, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbit publish channel: %w", err)
	}
	defer pubCh.Close()
	proc := worker.NewProcessor(a.Notify, rabbitmq.NewPublisherOnChannel(pubCh, queue), cfg.Rabbit.MaxRetries, rabbitmq.RetryDelay, log)

	log.Info("worker started", "queue", queue, "concurrency", concurrency, "max_retries", cfg.Rabbit.MaxRetries)

	// worker pool
	jobs := make(chan amqp.Delivery, concurrency*2)

	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			for d := range jobs {
				switch proc.Process(ctx, d.Body) {
				case worker.Reject:
					if err := d.Nack(false, false); err != nil {
						log.Error("nack failed", "worker", workerID, "error", err)
					}
				default:
					if err := d.Ack(false); err != nil {
						log.Error("ack failed", "worker", workerID, "error", err)
					}
				}
			}
		}(i)
	}

	// dispatcher
	for {
		select {
		case <-ctx.Done():
			log.Info("worker shutting down")
			close(jobs)
			wg.Wait()
			return nil

		case d, ok := <-msgs:
			if !ok {
				log.Warn("delivery channel closed")
				close(jobs)
				wg.Wait()
				return errors.New("delivery channel closed")
			}
			jobs <- d
		}
	}
}
