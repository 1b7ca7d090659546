package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sifan077/linkpulse/internal/app/apperror"
	"github.com/sifan077/linkpulse/internal/app/model"
	infraPrometheus "github.com/sifan077/linkpulse/internal/infra/prometheus"
	"go.uber.org/zap"
)

const (
	defaultDispatchWorkers = 4
	defaultDispatchQueue   = 1024
	defaultRecordTimeout   = 3 * time.Second
)

// ClickDispatcher hands clicks off for recording without blocking the caller.
type ClickDispatcher interface {
	Dispatch(linkID string, cc ClientContext)
	Close(ctx context.Context) error
}

type clickRecorder interface {
	Record(ctx context.Context, linkID string, cc ClientContext) (*model.ClickEvent, error)
}

type clickJob struct {
	linkID string
	cc     ClientContext
}

// DispatcherConfig tunes the in-process worker pool.
type DispatcherConfig struct {
	Workers       int
	QueueSize     int
	RecordTimeout time.Duration
	Logger        *zap.Logger
	Metrics       *infraPrometheus.Metrics
}

// InProcessDispatcher records clicks on a fixed pool of goroutines fed by a
// bounded queue. A full queue drops the click.
type InProcessDispatcher struct {
	recorder clickRecorder
	logger   *zap.Logger
	metrics  *infraPrometheus.Metrics
	timeout  time.Duration

	mu     sync.RWMutex
	closed bool
	jobs   chan clickJob
	wg     sync.WaitGroup
}

func NewInProcessDispatcher(recorder clickRecorder, cfg DispatcherConfig) *InProcessDispatcher {
	workers := cfg.Workers
	if workers <= 0 {
		workers = defaultDispatchWorkers
	}
	queue := cfg.QueueSize
	if queue <= 0 {
		queue = defaultDispatchQueue
	}
	timeout := cfg.RecordTimeout
	if timeout <= 0 {
		timeout = defaultRecordTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	d := &InProcessDispatcher{
		recorder: recorder,
		logger:   logger,
		metrics:  cfg.Metrics,
		timeout:  timeout,
		jobs:     make(chan clickJob, queue),
	}
	d.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go d.work()
	}
	return d
}

func (d *InProcessDispatcher) Dispatch(linkID string, cc ClientContext) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.drop(linkID, "dispatcher closed")
		return
	}
	select {
	case d.jobs <- clickJob{linkID: linkID, cc: cc}:
	default:
		d.drop(linkID, "queue full")
	}
}

// Close stops accepting clicks and waits for queued ones to be recorded.
func (d *InProcessDispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.jobs)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *InProcessDispatcher) work() {
	defer d.wg.Done()
	for job := range d.jobs {
		d.record(job)
	}
}

func (d *InProcessDispatcher) record(job clickJob) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if _, err := d.recorder.Record(ctx, job.linkID, job.cc); err != nil && !errors.Is(err, apperror.ErrDuplicateClick) {
		d.logger.Error("failed to record click",
			zap.String("link_id", job.linkID),
			zap.String("event_id", job.cc.EventID),
			zap.Error(err),
		)
	}
}

func (d *InProcessDispatcher) drop(linkID, reason string) {
	d.metrics.ClickDropped()
	d.logger.Warn("click dropped", zap.String("link_id", linkID), zap.String("reason", reason))
}
