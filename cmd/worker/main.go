package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/streadway/amqp"

	"github.com/unclebandit/phishguard-backend/internal/app"
	"github.com/unclebandit/phishguard-backend/internal/config"
	"github.com/unclebandit/phishguard-backend/internal/db"
	"github.com/unclebandit/phishguard-backend/internal/logger"
	"github.com/unclebandit/phishguard-backend/internal/queue"
	"github.com/unclebandit/phishguard-backend/internal/service"
)

// The worker launches due scheduled campaigns and, with QUEUE_MODE=amqp,
// consumes the dispatch jobs published by the server.
func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("failed to load config")
	}
	log := logger.New(cfg.Log).With().Str("process", "worker").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := db.Open(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer conn.Close()

	repos := app.NewRepositories(conn)
	dispatcher, err := app.NewDispatcher(ctx, cfg, repos, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up mailer")
	}
	dispatchQueue, err := app.NewDispatchQueue(cfg.Queue, dispatcher, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up dispatch queue")
	}
	defer dispatchQueue.Close()

	var wg sync.WaitGroup

	scheduler := &service.Scheduler{
		Campaigns: repos.Campaigns,
		Queue:     dispatchQueue,
		Interval:  cfg.Scheduler.PollInterval,

		RecoverAfter: cfg.Scheduler.RecoverAfter,
		ClaimTTL:     cfg.Mail.ClaimTTL,

		Log: log,
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		scheduler.Run(ctx)
	}()

	if cfg.Queue.Mode == "amqp" {
		mq, err := amqp.Dial(cfg.Queue.AMQPURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
		}
		defer mq.Close()

		ch, err := mq.Channel()
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open a channel")
		}
		defer ch.Close()

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := queue.Consume(ctx, ch, cfg.Queue.Name, dispatcher, log); err != nil {
				log.Error().Err(err).Msg("consumer stopped")
				stop()
			}
		}()
	}

	<-ctx.Done()
	log.Info().Msg("worker shutting down")
	wg.Wait()
}
