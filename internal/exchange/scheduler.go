package exchange

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/KretovDmitry/gophermart-pricing-service/pkg/logger"
)

// Scheduler refreshes exchange rates on a fixed interval.
type Scheduler struct {
	service  *Service
	logger   logger.Logger
	interval time.Duration
	onStart  bool
	timeout  time.Duration
	wg       *sync.WaitGroup
	done     chan struct{}
	stop     func()
}

func NewScheduler(
	service *Service, logger logger.Logger, interval time.Duration, onStart bool, timeout time.Duration,
) (*Scheduler, error) {
	if service == nil {
		return nil, errors.New("nil dependency: exchange service")
	}

	done := make(chan struct{})

	return &Scheduler{
		service:  service,
		logger:   logger,
		interval: interval,
		onStart:  onStart,
		timeout:  timeout,
		wg:       &sync.WaitGroup{},
		done:     done,
		stop:     sync.OnceFunc(func() { close(done) }),
	}, nil
}

// Run starts the background loop. A non-positive interval disables it.
func (s *Scheduler) Run() {
	if s.interval <= 0 {
		s.logger.Info("exchange rates scheduler disabled")
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run()
	}()
}

// Stop waits for an in-flight refresh, at most timeout.
func (s *Scheduler) Stop() {
	s.stop()

	ready := make(chan struct{})
	go func() {
		defer close(ready)
		s.wg.Wait()
	}()

	select {
	case <-time.After(s.timeout):
		s.logger.Error("exchange rates scheduler stop: shutdown timeout exceeded")
	case <-ready:
	}
}

func (s *Scheduler) run() {
	if s.onStart {
		s.refresh()
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.refresh()
		}
	}
}

func (s *Scheduler) refresh() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Abort the refresh when the scheduler is stopped.
	go func() {
		select {
		case <-s.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	er, err := s.service.Refresh(ctx)
	if err != nil {
		s.logger.Errorf("scheduled exchange rates refresh: %s", err)
		return
	}

	s.logger.With(ctx, "source", er.Source).Info("scheduled exchange rates refresh done")
}
