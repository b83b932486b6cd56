package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"halaqa-points-api/internal/logger"
	"halaqa-points-api/internal/store"
)

// RepairConfig holds configuration for the repair scheduler.
type RepairConfig struct {
	// Interval is how often all ledgers are scanned.
	// Default: 10 minutes
	Interval time.Duration

	// PageSize is the number of documents read per scan page.
	// Default: 200
	PageSize int

	// InitialDelay postpones the first run after Start. Negative runs
	// immediately.
	// Default: 1 minute
	InitialDelay time.Duration
}

// DefaultRepairConfig returns default repair configuration.
func DefaultRepairConfig() RepairConfig {
	return RepairConfig{
		Interval:     10 * time.Minute,
		PageSize:     200,
		InitialDelay: time.Minute,
	}
}

// RepairReport summarizes one repair run.
type RepairReport struct {
	Scanned  int `json:"scanned"`
	Repaired int `json:"repaired"`
	Failed   int `json:"failed"`
}

var errAlreadyClean = errors.New("document already clean")

// RepairScheduler periodically rewrites ledger documents whose numeric or
// inventory fields had to be coerced on read. Rewrites go through the
// transactional path so they never clobber a concurrent mutation.
type RepairScheduler struct {
	store     Store
	config    RepairConfig
	ticker    *time.Ticker
	stopCh    chan struct{}
	stopOnce  sync.Once
	isRunning bool
	mu        sync.Mutex
}

// NewRepairScheduler creates a new repair scheduler.
func NewRepairScheduler(s Store, config RepairConfig) *RepairScheduler {
	def := DefaultRepairConfig()
	if config.Interval <= 0 {
		config.Interval = def.Interval
	}
	if config.PageSize <= 0 {
		config.PageSize = def.PageSize
	}
	switch {
	case config.InitialDelay == 0:
		config.InitialDelay = def.InitialDelay
	case config.InitialDelay < 0:
		config.InitialDelay = 0
	}

	return &RepairScheduler{
		store:  s,
		config: config,
		stopCh: make(chan struct{}),
	}
}

// Start begins the repair scheduler.
func (s *RepairScheduler) Start() {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.ticker = time.NewTicker(s.config.Interval)
	s.mu.Unlock()

	logger.Info("[RepairScheduler] Started - Interval: %v, PageSize: %d", s.config.Interval, s.config.PageSize)

	go func() {
		select {
		case <-time.After(s.config.InitialDelay):
			s.runRepair()
		case <-s.stopCh:
		}
	}()

	go s.run()
}

func (s *RepairScheduler) run() {
	for {
		select {
		case <-s.ticker.C:
			s.runRepair()
		case <-s.stopCh:
			logger.Info("[RepairScheduler] Stopped")
			return
		}
	}
}

func (s *RepairScheduler) runRepair() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	report, err := s.RunNow(ctx)
	if err != nil {
		logger.Error("[RepairScheduler] Error during repair: %v", err)
		return
	}

	if report.Repaired > 0 || report.Failed > 0 {
		logger.Info("[RepairScheduler] Scanned %d ledgers, repaired %d, failed %d", report.Scanned, report.Repaired, report.Failed)
	} else {
		logger.Debug("[RepairScheduler] Scanned %d ledgers, nothing to repair", report.Scanned)
	}
}

// Stop stops the repair scheduler.
func (s *RepairScheduler) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		if s.ticker != nil {
			s.ticker.Stop()
		}
		close(s.stopCh)
		s.isRunning = false
	})
}

// RunNow scans every ledger once and normalizes the corrupt ones.
func (s *RepairScheduler) RunNow(ctx context.Context) (RepairReport, error) {
	var report RepairReport

	after := ""
	for {
		page, err := s.store.Scan(ctx, after, s.config.PageSize)
		if err != nil {
			return report, storeError(err)
		}
		if len(page) == 0 {
			return report, nil
		}

		for _, snap := range page {
			report.Scanned++
			if len(snap.Repaired) == 0 {
				continue
			}
			switch err := s.repair(ctx, snap.Record.UserID); {
			case err == nil:
				report.Repaired++
			case errors.Is(err, errAlreadyClean):
			default:
				report.Failed++
				logger.Warn("[RepairScheduler] Failed to repair ledger %s: %v", snap.Record.UserID, err)
			}
		}

		after = page[len(page)-1].Record.UserID
		if len(page) < s.config.PageSize {
			return report, nil
		}
	}
}

// repair rewrites the coerced record. The store clamps and deduplicates on
// decode, so committing the decoded state normalizes the document.
func (s *RepairScheduler) repair(ctx context.Context, userID string) error {
	_, err := s.store.RunTransaction(ctx, userID, func(cur store.Snapshot) (store.TxResult, error) {
		if !cur.Exists || len(cur.Repaired) == 0 {
			return store.TxResult{}, errAlreadyClean
		}
		logger.Info("[RepairScheduler] Normalizing fields %v of ledger %s", cur.Repaired, userID)
		return store.TxResult{Record: cur.Record}, nil
	})
	return err
}
