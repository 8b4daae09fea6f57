// Package mailertest provides mailers for tests.
package mailertest

import (
	"context"
	"sync"
	"time"

	"github.com/unclebandit/phishguard-backend/internal/mailer"
)

// Recorder fails for the recipients listed in FailFor and records every attempt.
// Delay makes each send take that long, like a slow relay.
type Recorder struct {
	mu       sync.Mutex
	FailFor  map[string]error
	Attempts []*mailer.Message
	Delay    time.Duration
}

func (m *Recorder) Send(ctx context.Context, msg *mailer.Message) error {
	if m.Delay > 0 {
		time.Sleep(m.Delay)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Attempts = append(m.Attempts, msg)
	if err, ok := m.FailFor[msg.To]; ok {
		return err
	}
	return nil
}

// Hanging blocks until released, ignoring its context.
type Hanging struct {
	Release chan struct{}
}

func (m *Hanging) Send(ctx context.Context, msg *mailer.Message) error {
	<-m.Release
	return nil
}

// Count returns the number of recorded attempts.
func (m *Recorder) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Attempts)
}
