package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultFlushInterval is how often a dirty ledger is retried.
const DefaultFlushInterval = 30 * time.Second

// FlushScheduler retries failed ledger flushes in the background until the
// store accepts the snapshot again.
type FlushScheduler struct {
	ledger    *CreditLedger
	interval  time.Duration
	ticker    *time.Ticker
	stopCh    chan struct{}
	done      chan struct{}
	stopOnce  sync.Once
	isRunning bool
	mu        sync.Mutex
	log       *zap.Logger
}

// NewFlushScheduler creates a scheduler for ledger.
func NewFlushScheduler(ledger *CreditLedger, interval time.Duration, log *zap.Logger) *FlushScheduler {
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	return &FlushScheduler{
		ledger:   ledger,
		interval: interval,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
		log:      log,
	}
}

// Start begins the retry loop.
func (s *FlushScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return
	}
	s.isRunning = true
	s.ticker = time.NewTicker(s.interval)

	s.log.Info("ledger flush scheduler started", zap.Duration("interval", s.interval))
	go s.run()
}

func (s *FlushScheduler) run() {
	defer close(s.done)
	for {
		select {
		case <-s.ticker.C:
			_ = s.RunNow()
		case <-s.stopCh:
			return
		}
	}
}

// RunNow retries the flush once if the ledger is dirty.
func (s *FlushScheduler) RunNow() error {
	if !s.ledger.Dirty() {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.interval)
	defer cancel()

	if err := s.ledger.Flush(ctx); err != nil {
		s.log.Warn("ledger still not persisted", zap.Error(err))
		return err
	}
	s.log.Info("ledger persisted after earlier failure")
	return nil
}

// Stop ends the loop and makes one last attempt to persist a dirty ledger.
func (s *FlushScheduler) Stop() error {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		running := s.isRunning
		if s.ticker != nil {
			s.ticker.Stop()
		}
		close(s.stopCh)
		s.isRunning = false
		s.mu.Unlock()

		if running {
			<-s.done
		}
	})
	return s.RunNow()
}
