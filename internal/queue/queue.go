package queue

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Queue interface
type Queue interface {
	Publish(topic string, payload any) error
	Subscribe(topic string, handler func(payload any) error) error
}

// InMemoryQueue runs every published job on its own goroutine with retry.
type InMemoryQueue struct {
	mu         sync.Mutex
	handlers   map[string][]func(payload any) error
	wg         sync.WaitGroup
	maxRetries int
	backoff    time.Duration
	log        zerolog.Logger
}

// NewInMemoryQueue creates a new queue. A failing job is retried maxRetries times.
func NewInMemoryQueue(maxRetries int, log zerolog.Logger) *InMemoryQueue {
	return &InMemoryQueue{
		handlers:   make(map[string][]func(payload any) error),
		maxRetries: maxRetries,
		backoff:    500 * time.Millisecond,
		log:        log,
	}
}

// JobPayload wraps a message payload with retry info
type JobPayload struct {
	Payload    any
	RetryCount int
	MaxRetries int
}

// Publish sends a message to all subscribers
func (q *InMemoryQueue) Publish(topic string, payload any) error {
	q.mu.Lock()
	handlers := q.handlers[topic]
	q.mu.Unlock()

	if len(handlers) == 0 {
		return fmt.Errorf("no subscribers for topic %s", topic)
	}

	for _, handler := range handlers {
		job := JobPayload{Payload: payload, MaxRetries: q.maxRetries}
		q.wg.Add(1)
		go func(handler func(payload any) error) {
			defer q.wg.Done()
			q.processJob(topic, handler, job)
		}(handler)
	}
	return nil
}

// processJob retries with linear backoff and gives up after MaxRetries.
func (q *InMemoryQueue) processJob(topic string, handler func(payload any) error, job JobPayload) {
	for {
		err := handler(job.Payload)
		if err == nil {
			q.log.Debug().Str("topic", topic).Interface("payload", job.Payload).Msg("job processed")
			return
		}

		job.RetryCount++
		if job.RetryCount > job.MaxRetries {
			q.log.Error().Err(err).Str("topic", topic).Interface("payload", job.Payload).
				Int("attempts", job.RetryCount).Msg("job permanently failed")
			return
		}
		q.log.Warn().Err(err).Str("topic", topic).Int("attempt", job.RetryCount).Msg("job failed, retrying")
		time.Sleep(time.Duration(job.RetryCount) * q.backoff)
	}
}

// Subscribe adds a handler for a topic
func (q *InMemoryQueue) Subscribe(topic string, handler func(payload any) error) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.handlers[topic] = append(q.handlers[topic], handler)
	return nil
}

// Wait blocks until every published job has finished. Used on shutdown.
func (q *InMemoryQueue) Wait() {
	q.wg.Wait()
}
