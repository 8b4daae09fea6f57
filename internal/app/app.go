// Package app builds the components shared by cmd/server and cmd/worker.
package app

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/streadway/amqp"
	"golang.org/x/time/rate"

	"github.com/unclebandit/phishguard-backend/internal/config"
	"github.com/unclebandit/phishguard-backend/internal/mailer"
	"github.com/unclebandit/phishguard-backend/internal/queue"
	"github.com/unclebandit/phishguard-backend/internal/repository"
	"github.com/unclebandit/phishguard-backend/internal/service"
)

const dispatchTopic = "campaign_dispatch"

type Repositories struct {
	Campaigns     *repository.CampaignRepository
	Targets       *repository.TargetRepository
	Templates     *repository.TemplateRepository
	Users         *repository.UserRepository
	Organizations *repository.OrganizationRepository
	Analytics     *repository.AnalyticsRepository
}

func NewRepositories(conn *sql.DB) *Repositories {
	return &Repositories{
		Campaigns:     &repository.CampaignRepository{DB: conn},
		Targets:       &repository.TargetRepository{DB: conn},
		Templates:     &repository.TemplateRepository{DB: conn},
		Users:         &repository.UserRepository{DB: conn},
		Organizations: &repository.OrganizationRepository{DB: conn},
		Analytics:     &repository.AnalyticsRepository{DB: conn},
	}
}

// NewLimiter returns nil when perSecond is not positive, which disables throttling.
func NewLimiter(perSecond float64) *rate.Limiter {
	if perSecond <= 0 {
		return nil
	}
	burst := int(perSecond)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

// NewDispatcher builds the dispatch loop with the configured mailer.
func NewDispatcher(ctx context.Context, cfg *config.Config, repos *Repositories, log zerolog.Logger) (*service.Dispatcher, error) {
	m, err := mailer.New(ctx, cfg.Mail, log)
	if err != nil {
		return nil, err
	}
	return &service.Dispatcher{
		Campaigns:   repos.Campaigns,
		Targets:     repos.Targets,
		Templates:   repos.Templates,
		Mailer:      m,
		Limiter:     NewLimiter(cfg.Mail.RatePerSec),
		SendTimeout: cfg.Mail.SendTimeout,
		ClaimTTL:    cfg.Mail.ClaimTTL,
		FromAddress: cfg.Mail.FromAddress,
		BaseURL:     cfg.App.TrackingBaseURL,
		Log:         log.With().Str("component", "dispatcher").Logger(),
	}, nil
}

// DispatchQueue is a launch queue plus whatever must happen on shutdown.
type DispatchQueue struct {
	service.DispatchQueue
	Close func()
}

// NewDispatchQueue picks how launched campaigns reach the dispatcher: in the request,
// on an in-process queue, or through RabbitMQ to cmd/worker.
func NewDispatchQueue(cfg config.QueueConfig, d *service.Dispatcher, log zerolog.Logger) (*DispatchQueue, error) {
	switch cfg.Mode {
	case "memory":
		q := queue.NewInMemoryQueue(cfg.MaxRetries, log)
		if err := queue.StartDispatchSubscriber(q, dispatchTopic, d, log); err != nil {
			return nil, err
		}
		return &DispatchQueue{
			DispatchQueue: &queue.Publisher{Queue: q, Topic: dispatchTopic},
			Close:         q.Wait,
		}, nil

	case "amqp":
		conn, err := amqp.Dial(cfg.AMQPURL)
		if err != nil {
			return nil, fmt.Errorf("connect to rabbitmq: %w", err)
		}
		p, err := queue.NewAMQPPublisher(conn, cfg.Name)
		if err != nil {
			conn.Close()
			return nil, err
		}
		return &DispatchQueue{
			DispatchQueue: p,
			Close: func() {
				p.Close()
				conn.Close()
			},
		}, nil

	default:
		return &DispatchQueue{
			DispatchQueue: &service.InlineDispatch{Dispatcher: d},
			Close:         func() {},
		}, nil
	}
}
