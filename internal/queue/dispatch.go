package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/streadway/amqp"

	appErrors "github.com/unclebandit/phishguard-backend/internal/errors"
	"github.com/unclebandit/phishguard-backend/internal/service"
)

// DispatchJob is the message body published when a campaign is launched.
type DispatchJob struct {
	CampaignID uuid.UUID `json:"campaign_id"`
}

// Publisher enqueues dispatch jobs on a Queue topic.
type Publisher struct {
	Queue Queue
	Topic string
}

func (p *Publisher) Enqueue(ctx context.Context, campaignID uuid.UUID) error {
	return p.Queue.Publish(p.Topic, campaignID)
}

// StartDispatchSubscriber runs the dispatcher for every campaign id published on topic.
func StartDispatchSubscriber(q Queue, topic string, d *service.Dispatcher, log zerolog.Logger) error {
	return q.Subscribe(topic, func(payload any) error {
		campaignID, ok := payload.(uuid.UUID)
		if !ok {
			log.Warn().Interface("payload", payload).Msg("⚠️ invalid dispatch payload, expected campaign id")
			return nil
		}
		return HandleDispatch(context.Background(), d, campaignID, log)
	})
}

// HandleDispatch runs one dispatch job. Errors that a retry cannot fix are logged and swallowed.
func HandleDispatch(ctx context.Context, d *service.Dispatcher, campaignID uuid.UUID, log zerolog.Logger) error {
	log.Info().Str("campaign_id", campaignID.String()).Msg("📩 processing dispatch job")

	res, err := d.Dispatch(ctx, campaignID)
	if err != nil {
		if appErrors.IsInvalidState(err) || appErrors.IsNotFound(err) {
			log.Warn().Err(err).Str("campaign_id", campaignID.String()).Msg("dispatch job dropped")
			return nil
		}
		return err
	}
	log.Info().Str("campaign_id", campaignID.String()).Int("sent", res.Sent).Int("failed", res.Failed).Msg("dispatch job done")
	return nil
}

// AMQPPublisher publishes dispatch jobs to a durable RabbitMQ queue consumed by cmd/worker.
type AMQPPublisher struct {
	Channel *amqp.Channel
	Queue   string
}

// NewAMQPPublisher opens a channel and declares the queue.
func NewAMQPPublisher(conn *amqp.Connection, queueName string) (*AMQPPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if _, err := DeclareQueue(ch, queueName); err != nil {
		ch.Close()
		return nil, err
	}
	return &AMQPPublisher{Channel: ch, Queue: queueName}, nil
}

// DeclareQueue declares the durable dispatch queue shared by publisher and worker.
func DeclareQueue(ch *amqp.Channel, name string) (amqp.Queue, error) {
	q, err := ch.QueueDeclare(
		name,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return q, fmt.Errorf("declare queue %s: %w", name, err)
	}
	return q, nil
}

func (p *AMQPPublisher) Enqueue(ctx context.Context, campaignID uuid.UUID) error {
	body, err := json.Marshal(DispatchJob{CampaignID: campaignID})
	if err != nil {
		return err
	}
	return p.Channel.Publish("", p.Queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    campaignID.String(),
		Body:         body,
	})
}

func (p *AMQPPublisher) Close() error {
	return p.Channel.Close()
}

// DecodeDispatchJob parses a delivery body published by AMQPPublisher.
func DecodeDispatchJob(body []byte) (DispatchJob, error) {
	var job DispatchJob
	if err := json.Unmarshal(body, &job); err != nil {
		return job, err
	}
	if job.CampaignID == uuid.Nil {
		return job, errors.New("dispatch job without campaign_id")
	}
	return job, nil
}

// Consume processes dispatch jobs from the named queue until ctx is done or the channel closes.
func Consume(ctx context.Context, ch *amqp.Channel, queueName string, d *service.Dispatcher, log zerolog.Logger) error {
	if _, err := DeclareQueue(ch, queueName); err != nil {
		return err
	}
	// one campaign at a time per worker
	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}
	msgs, err := ch.Consume(
		queueName,
		"",
		false, // autoAck = false for reliability
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("register consumer: %w", err)
	}

	log.Info().Str("queue", queueName).Msg("👷 worker waiting for dispatch jobs")
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return errors.New("delivery channel closed")
			}
			HandleDelivery(ctx, msg, d, log)
		}
	}
}

// HandleDelivery runs one AMQP delivery. A failed job is requeued once and then dropped.
// Rerunning a dispatch only touches targets that are still pending.
func HandleDelivery(ctx context.Context, msg amqp.Delivery, d *service.Dispatcher, log zerolog.Logger) {
	job, err := DecodeDispatchJob(msg.Body)
	if err != nil {
		log.Warn().Err(err).Msg("⚠️ invalid dispatch job")
		msg.Ack(false)
		return
	}

	if err := HandleDispatch(ctx, d, job.CampaignID, log); err != nil {
		// an interrupted job handed its targets back, so it is always worth another go
		requeue := !msg.Redelivered || errors.Is(err, service.ErrInterrupted)
		log.Error().Err(err).Str("campaign_id", job.CampaignID.String()).Bool("requeue", requeue).Msg("❌ dispatch job failed")
		msg.Nack(false, requeue)
		return
	}
	msg.Ack(false)
}
