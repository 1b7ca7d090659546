package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/sifan077/linkpulse/internal/app/model"
	infraPrometheus "github.com/sifan077/linkpulse/internal/infra/prometheus"
	"go.uber.org/zap"
)

const defaultMaxInflight = 1024

// jetStreamPublisher is the part of nats.JetStreamContext the publisher uses.
type jetStreamPublisher interface {
	Publish(subj string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error)
}

// ClickPublisher publishes click events to NATS JetStream. Each event id is
// sent as the message id so the stream discards redeliveries.
type ClickPublisher struct {
	js       jetStreamPublisher
	logger   *zap.Logger
	metrics  *infraPrometheus.Metrics
	inflight chan struct{}
	now      func() time.Time

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewClickPublisher creates a new click event publisher. maxInflight bounds
// concurrent publishes; clicks beyond it are dropped.
func NewClickPublisher(js jetStreamPublisher, logger *zap.Logger, metrics *infraPrometheus.Metrics, maxInflight int) *ClickPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxInflight <= 0 {
		maxInflight = defaultMaxInflight
	}
	return &ClickPublisher{
		js:       js,
		logger:   logger,
		metrics:  metrics,
		inflight: make(chan struct{}, maxInflight),
		now:      time.Now,
	}
}

func (p *ClickPublisher) Dispatch(linkID string, cc ClientContext) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.drop(linkID, "publisher closed")
		return
	}
	select {
	case p.inflight <- struct{}{}:
	default:
		p.drop(linkID, "too many in-flight publishes")
		return
	}

	msg := p.message(linkID, cc)
	p.wg.Add(1)
	go func() {
		defer func() {
			<-p.inflight
			p.wg.Done()
		}()
		if err := p.Publish(msg); err != nil {
			p.metrics.ClickFailed()
			p.logger.Error("failed to publish click",
				zap.String("link_id", msg.LinkID),
				zap.String("event_id", msg.EventID),
				zap.Error(err),
			)
		}
	}()
}

// Publish sends one click message synchronously.
func (p *ClickPublisher) Publish(msg model.ClickMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal click: %w", err)
	}
	if _, err := p.js.Publish(model.ClickStreamSubject, data, nats.MsgId(msg.EventID)); err != nil {
		return fmt.Errorf("publish click: %w", err)
	}
	return nil
}

// Close waits for in-flight publishes.
func (p *ClickPublisher) Close(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *ClickPublisher) message(linkID string, cc ClientContext) model.ClickMessage {
	id := cc.EventID
	if id == "" {
		id = uuid.NewString()
	}
	occurred := cc.OccurredAt
	if occurred.IsZero() {
		occurred = p.now()
	}
	return model.ClickMessage{
		EventID:    id,
		LinkID:     linkID,
		IP:         cc.IP,
		UserAgent:  cc.UserAgent,
		Referrer:   cc.Referrer,
		Country:    cc.Country,
		City:       cc.City,
		OccurredAt: occurred.UTC(),
	}
}

func (p *ClickPublisher) drop(linkID, reason string) {
	p.metrics.ClickDropped()
	p.logger.Warn("click dropped", zap.String("link_id", linkID), zap.String("reason", reason))
}
