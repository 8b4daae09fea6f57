package service_test

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/unclebandit/phishguard-backend/internal/mailer"
)

type RecordingQueue struct {
	mu  sync.Mutex
	IDs []uuid.UUID
	Err error
}

func (q *RecordingQueue) Enqueue(ctx context.Context, campaignID uuid.UUID) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.IDs = append(q.IDs, campaignID)
	return q.Err
}

func (q *RecordingQueue) Last() uuid.UUID {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.IDs) == 0 {
		return uuid.Nil
	}
	return q.IDs[len(q.IDs)-1]
}

// cancellingMailer delivers normally and cancels the dispatch context after the given number of sends.
type cancellingMailer struct {
	mu     sync.Mutex
	after  int
	cancel context.CancelFunc
	sent   []string
}

func (m *cancellingMailer) Send(ctx context.Context, msg *mailer.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == m.after {
		m.cancel()
		return ctx.Err()
	}
	m.sent = append(m.sent, msg.To)
	return nil
}
