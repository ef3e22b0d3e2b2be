// Package events publishes reward events to live subscribers and history.
package events

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/aman-zulfiqar/solana-task-rewards/internal/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Sink receives reward events.
type Sink interface {
	Publish(ctx context.Context, ev *models.RewardEvent) error
}

// Feed serves the most recent events, newest first.
type Feed interface {
	Recent(ctx context.Context, limit int) ([]*models.RewardEvent, error)
}

// Fanout publishes to every sink and joins their errors.
type Fanout []Sink

func (f Fanout) Publish(ctx context.Context, ev *models.RewardEvent) error {
	var errs []error
	for _, s := range f {
		if s == nil {
			continue
		}
		if err := s.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Emit stamps ev with an id and timestamp and publishes it. Failures are
// logged and dropped: events never fail the operation that produced them.
func Emit(ctx context.Context, sink Sink, logger *logrus.Logger, ev *models.RewardEvent) {
	if sink == nil || ev == nil {
		return
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	if err := sink.Publish(ctx, ev); err != nil && logger != nil {
		logger.WithError(err).WithFields(logrus.Fields{
			"kind":    ev.Kind,
			"address": ev.Address,
		}).Warn("failed to publish reward event")
	}
}

// MemorySink keeps the last events in process.
type MemorySink struct {
	mu     sync.Mutex
	max    int
	events []*models.RewardEvent
}

func NewMemorySink(max int) *MemorySink {
	if max <= 0 {
		max = 100
	}
	return &MemorySink{max: max}
}

func (m *MemorySink) Publish(_ context.Context, ev *models.RewardEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *ev
	m.events = append(m.events, &cp)
	if len(m.events) > m.max {
		m.events = m.events[len(m.events)-m.max:]
	}
	return nil
}

func (m *MemorySink) Recent(_ context.Context, limit int) ([]*models.RewardEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if limit <= 0 || limit > len(m.events) {
		limit = len(m.events)
	}
	out := make([]*models.RewardEvent, 0, limit)
	for i := len(m.events) - 1; i >= 0 && len(out) < limit; i-- {
		cp := *m.events[i]
		out = append(out, &cp)
	}
	return out, nil
}

// Events returns every retained event, oldest first.
func (m *MemorySink) Events() []*models.RewardEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.RewardEvent, len(m.events))
	copy(out, m.events)
	return out
}
