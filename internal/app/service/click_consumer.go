package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sifan077/linkpulse/internal/app/apperror"
	"github.com/sifan077/linkpulse/internal/app/model"
	"go.uber.org/zap"
)

const (
	consumerBatchSize = 10
	consumerMaxWait   = 2 * time.Second
	consumerErrorWait = time.Second

	// clickMaxDeliver bounds redeliveries of a click that keeps failing.
	clickMaxDeliver = 5
)

// clickRedeliveryBackoff is the wait before each redelivery; the last value
// repeats. JetStream requires MaxDeliver to exceed its length.
var clickRedeliveryBackoff = []time.Duration{time.Second, 5 * time.Second, 30 * time.Second, 2 * time.Minute}

type ackDecision int

const (
	decisionAck ackDecision = iota
	decisionNak
	decisionTerm
)

// ClickConsumer records click events fetched from NATS JetStream.
type ClickConsumer struct {
	js       nats.JetStreamContext
	logger   *zap.Logger
	recorder clickRecorder
	timeout  time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewClickConsumer creates a new click event consumer
func NewClickConsumer(js nats.JetStreamContext, logger *zap.Logger, recorder clickRecorder, recordTimeout time.Duration) *ClickConsumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if recordTimeout <= 0 {
		recordTimeout = defaultRecordTimeout
	}
	return &ClickConsumer{js: js, logger: logger, recorder: recorder, timeout: recordTimeout}
}

// Start ensures the stream and durable consumer exist, then consumes in the
// background until Stop is called or ctx ends.
func (c *ClickConsumer) Start(ctx context.Context) error {
	if err := EnsureClickStream(c.js); err != nil {
		return err
	}

	cfg := clickConsumerConfig()
	if _, err := c.js.ConsumerInfo(model.ClickStreamName, model.ClickConsumerName); err != nil {
		if _, err := c.js.AddConsumer(model.ClickStreamName, cfg); err != nil {
			return fmt.Errorf("failed to create consumer: %w", err)
		}
	} else if _, err := c.js.UpdateConsumer(model.ClickStreamName, cfg); err != nil {
		c.logger.Warn("failed to update click consumer config", zap.Error(err))
	}

	sub, err := c.js.PullSubscribe(model.ClickStreamSubject, model.ClickConsumerName, nats.Bind(model.ClickStreamName, model.ClickConsumerName))
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	ctx, c.cancel = context.WithCancel(ctx)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.consume(ctx, sub)
	}()
	return nil
}

// Stop ends the fetch loop and waits for the in-flight batch.
func (c *ClickConsumer) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
}

func clickConsumerConfig() *nats.ConsumerConfig {
	return &nats.ConsumerConfig{
		Durable:       model.ClickConsumerName,
		AckPolicy:     nats.AckExplicitPolicy,
		FilterSubject: model.ClickStreamSubject,
		MaxDeliver:    clickMaxDeliver,
		BackOff:       clickRedeliveryBackoff,
	}
}

// EnsureClickStream creates the clicks stream when it does not exist yet.
// The duplicate window lets JetStream drop republished event ids.
func EnsureClickStream(js nats.JetStreamManager) error {
	if _, err := js.StreamInfo(model.ClickStreamName); err == nil {
		return nil
	}
	_, err := js.AddStream(&nats.StreamConfig{
		Name:       model.ClickStreamName,
		Subjects:   []string{model.ClickStreamSubject},
		MaxBytes:   model.ClickStreamMaxBytes,
		Duplicates: 2 * time.Minute,
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}
	return nil
}

func (c *ClickConsumer) consume(ctx context.Context, sub *nats.Subscription) {
	defer func() {
		if err := sub.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
			c.logger.Warn("failed to unsubscribe click consumer", zap.Error(err))
		}
		c.logger.Info("click consumer stopped")
	}()

	for {
		if ctx.Err() != nil {
			return
		}

		msgs, err := sub.Fetch(consumerBatchSize, nats.MaxWait(consumerMaxWait))
		if err != nil {
			if errors.Is(err, nats.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			c.logger.Error("failed to fetch messages", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(consumerErrorWait):
			}
			continue
		}

		for _, msg := range msgs {
			var delivered uint64 = 1
			if meta, err := msg.Metadata(); err == nil {
				delivered = meta.NumDelivered
			}
			handled := c.handle(ctx, msg.Data)
			decision, delay := retryDecision(handled, delivered)
			if handled == decisionNak && decision == decisionTerm {
				c.logger.Error("click message dropped after max deliveries",
					zap.Uint64("delivered", delivered), zap.String("subject", msg.Subject))
			}
			c.settle(msg, decision, delay)
		}
	}
}

func (c *ClickConsumer) handle(ctx context.Context, data []byte) ackDecision {
	var msg model.ClickMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.logger.Error("failed to unmarshal click message", zap.Error(err))
		return decisionTerm
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	_, err := c.recorder.Record(ctx, msg.LinkID, ClientContext{
		EventID:    msg.EventID,
		IP:         msg.IP,
		UserAgent:  msg.UserAgent,
		Referrer:   msg.Referrer,
		Country:    msg.Country,
		City:       msg.City,
		OccurredAt: msg.OccurredAt,
	})
	switch {
	case err == nil, errors.Is(err, apperror.ErrDuplicateClick):
		return decisionAck
	case errors.Is(err, apperror.ErrLinkNotFound):
		c.logger.Warn("click for unknown link discarded",
			zap.String("link_id", msg.LinkID), zap.String("event_id", msg.EventID))
		return decisionTerm
	default:
		c.logger.Error("failed to store click event",
			zap.String("link_id", msg.LinkID),
			zap.String("event_id", msg.EventID),
			zap.Error(err))
		return decisionNak
	}
}

// retryDecision turns a Nak on the final delivery into Term and picks the
// redelivery delay for the delivered-th attempt.
func retryDecision(decision ackDecision, delivered uint64) (ackDecision, time.Duration) {
	if decision != decisionNak {
		return decision, 0
	}
	if delivered >= clickMaxDeliver {
		return decisionTerm, 0
	}
	i := int(delivered) - 1
	if i < 0 {
		i = 0
	}
	if i >= len(clickRedeliveryBackoff) {
		i = len(clickRedeliveryBackoff) - 1
	}
	return decisionNak, clickRedeliveryBackoff[i]
}

func (c *ClickConsumer) settle(msg *nats.Msg, decision ackDecision, delay time.Duration) {
	var err error
	switch decision {
	case decisionAck:
		err = msg.Ack()
	case decisionNak:
		err = msg.NakWithDelay(delay)
	case decisionTerm:
		err = msg.Term()
	}
	if err != nil {
		c.logger.Warn("failed to settle click message", zap.Error(err))
	}
}
