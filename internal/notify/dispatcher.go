package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/KretovDmitry/gophermart-pricing-service/internal/metrics"
	"github.com/KretovDmitry/gophermart-pricing-service/pkg/logger"
	"github.com/google/uuid"
)

var (
	ErrQueueFull = errors.New("notification queue is full")
	ErrStopped   = errors.New("notification dispatcher is stopped")
)

type job struct {
	enqueued time.Time
	msg      Message
	id       uuid.UUID
}

// Dispatcher sends messages on background workers, detached from the
// request that produced them.
type Dispatcher struct {
	sink            Sink
	logger          logger.Logger
	metrics         *metrics.Metrics
	queue           chan job
	ctx             context.Context
	cancel          context.CancelFunc
	wg              *sync.WaitGroup
	mu              sync.RWMutex
	workers         int
	sendTimeout     time.Duration
	shutdownTimeout time.Duration
	stopped         bool
}

func NewDispatcher(
	sink Sink,
	logger logger.Logger,
	metrics *metrics.Metrics,
	workers, queueSize int,
	sendTimeout, shutdownTimeout time.Duration,
) (*Dispatcher, error) {
	if sink == nil {
		return nil, errors.New("nil dependency: sink")
	}
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Dispatcher{
		sink:            sink,
		logger:          logger,
		metrics:         metrics,
		queue:           make(chan job, queueSize),
		ctx:             ctx,
		cancel:          cancel,
		wg:              &sync.WaitGroup{},
		workers:         workers,
		sendTimeout:     sendTimeout,
		shutdownTimeout: shutdownTimeout,
	}, nil
}

// Enqueue schedules msg for delivery and returns the job id. It never
// blocks: a full queue drops the message.
func (d *Dispatcher) Enqueue(ctx context.Context, msg Message) (uuid.UUID, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.stopped {
		return uuid.Nil, ErrStopped
	}

	j := job{enqueued: time.Now(), msg: msg, id: uuid.New()}

	select {
	case d.queue <- j:
		return j.id, nil
	default:
		d.metrics.Notification("dropped")
		d.logger.With(ctx, "job_id", j.id.String(), "order", msg.OrderNumber).
			Error("notification dropped: queue is full")
		return uuid.Nil, fmt.Errorf("%w: order %s", ErrQueueFull, msg.OrderNumber)
	}
}

func (d *Dispatcher) Run() {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for j := range d.queue {
				d.send(j)
			}
		}()
	}
}

// Stop rejects new messages and waits for the queued ones, at most
// the shutdown timeout. Sends still running after that are cancelled.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.stopped {
		d.stopped = true
		close(d.queue)
	}
	d.mu.Unlock()

	ready := make(chan struct{})
	go func() {
		defer close(ready)
		d.wg.Wait()
	}()

	select {
	case <-time.After(d.shutdownTimeout):
		d.logger.Error("notification dispatcher stop: shutdown timeout exceeded")
		d.cancel()
	case <-ready:
		d.cancel()
	}
}

func (d *Dispatcher) send(j job) {
	ctx := d.ctx
	if d.sendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.sendTimeout)
		defer cancel()
	}

	l := d.logger.With(ctx, "job_id", j.id.String(), "order", j.msg.OrderNumber)

	if err := d.sink.Send(ctx, j.msg); err != nil {
		d.metrics.Notification("failed")
		l.Errorf("send payment confirmation: %s", err)
		return
	}

	d.metrics.Notification("sent")
	l.Debugf("payment confirmation sent in %s", time.Since(j.enqueued))
}
