// Package store implements the ledger document store: lenient decoding,
// optimistic read-modify-write transactions with a bounded retry budget,
// plain atomic field updates, append-only audit records and change
// subscriptions for single records and the lifetime-ordered collection.
package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"halaqa-points-api/internal/logger"
	"halaqa-points-api/internal/model"
	"halaqa-points-api/internal/repository"
)

var (
	// ErrNotFound indicates the ledger record does not exist.
	ErrNotFound = errors.New("ledger record not found")

	// ErrTransient indicates a storage failure or an exhausted retry budget.
	// The operation may be re-invoked.
	ErrTransient = errors.New("transient store failure")

	// ErrOverflow indicates an increment would exceed the int64 range.
	// Nothing is written.
	ErrOverflow = errors.New("counter overflow")
)

// Defaults for Config.
const (
	DefaultMaxAttempts = 5
	DefaultBackoff     = 20 * time.Millisecond
	maxBackoff         = time.Second
	subscribeTimeout   = 10 * time.Second
)

// Snapshot is a decoded ledger record together with its storage metadata.
type Snapshot struct {
	Record   model.LedgerRecord
	Exists   bool
	Version  int64
	Repaired []string
}

// TxResult is what a transaction function decides to write.
type TxResult struct {
	Record      model.LedgerRecord
	Redemptions []model.RedemptionRecord
}

// TxFunc computes the next state from the current one. Returning an error
// aborts the transaction without writing and without retrying.
type TxFunc func(cur Snapshot) (TxResult, error)

// FieldDeltas is an atomic per-call update: increments to the counters and
// assignments to equipment slots. A missing record is created from zero state.
type FieldDeltas struct {
	Balance       int64
	LifetimeTotal int64
	Equip         map[model.Slot]model.ItemID
}

// Publisher propagates change notifications beyond this process.
type Publisher interface {
	Publish(ctx context.Context, key string) error
}

// Config holds store tuning.
type Config struct {
	MaxAttempts int
	Backoff     time.Duration
	Publisher   Publisher
	Now         func() time.Time
}

// Store is the ledger document store.
type Store struct {
	repo        repository.LedgerRepository
	feed        *Feed
	publisher   Publisher
	maxAttempts int
	backoff     time.Duration
	now         func() time.Time
}

// New creates a store over repo publishing changes on feed.
func New(repo repository.LedgerRepository, feed *Feed, cfg Config) *Store {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = DefaultBackoff
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	if feed == nil {
		feed = NewFeed()
	}
	return &Store{
		repo:        repo,
		feed:        feed,
		publisher:   cfg.Publisher,
		maxAttempts: cfg.MaxAttempts,
		backoff:     cfg.Backoff,
		now:         cfg.Now,
	}
}

// Feed returns the store's local change feed.
func (s *Store) Feed() *Feed {
	return s.feed
}

// Get reads the current record. Returns ErrNotFound (with a zero-state
// snapshot) when it does not exist.
func (s *Store) Get(ctx context.Context, key string) (Snapshot, error) {
	snap, err := s.load(ctx, key)
	if err != nil {
		return snap, err
	}
	if !snap.Exists {
		return snap, ErrNotFound
	}
	return snap, nil
}

func (s *Store) load(ctx context.Context, key string) (Snapshot, error) {
	zero := Snapshot{Record: model.LedgerRecord{UserID: key, Inventory: []model.ItemID{}}}

	doc, err := s.repo.GetDocument(ctx, key)
	if errors.Is(err, repository.ErrNotFound) {
		return zero, nil
	}
	if err != nil {
		return zero, fmt.Errorf("%w: %w", ErrTransient, err)
	}

	rec, repaired := DecodeLedger(key, doc.Body)
	if len(repaired) > 0 {
		logger.Warn("[Store] Repaired fields %v while reading ledger %s (version %d)", repaired, key, doc.Version)
	}
	return Snapshot{Record: rec, Exists: true, Version: doc.Version, Repaired: repaired}, nil
}

// RunTransaction runs fn against the current stored state and commits its
// result with a version check. On a concurrent modification the whole
// read-decide-write cycle is retried, up to the configured number of
// attempts, after which ErrTransient is returned.
func (s *Store) RunTransaction(ctx context.Context, key string, fn TxFunc) (model.LedgerRecord, error) {
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		cur, err := s.load(ctx, key)
		if err != nil {
			return cur.Record, err
		}

		res, err := fn(cur)
		if err != nil {
			return cur.Record, err
		}

		next := res.Record
		next.UserID = key
		next.UpdatedAt = s.now()
		body, err := EncodeLedger(next)
		if err != nil {
			return cur.Record, fmt.Errorf("failed to encode ledger %s: %w", key, err)
		}

		doc := model.LedgerDocument{
			UserID:        key,
			Body:          body,
			LifetimeTotal: next.LifetimeTotal,
			UpdatedAt:     next.UpdatedAt,
		}
		err = s.repo.CommitDocument(ctx, doc, cur.Version, res.Redemptions...)
		if err == nil {
			s.publish(ctx, key)
			return next, nil
		}
		if !errors.Is(err, repository.ErrVersionConflict) {
			return cur.Record, fmt.Errorf("%w: %w", ErrTransient, err)
		}

		logger.Debug("[Store] Version conflict on ledger %s (attempt %d/%d)", key, attempt, s.maxAttempts)
		if attempt < s.maxAttempts {
			if err := s.sleep(ctx, attempt); err != nil {
				return cur.Record, fmt.Errorf("%w: %w", ErrTransient, err)
			}
		}
	}
	return model.LedgerRecord{}, fmt.Errorf("%w: ledger %s still contended after %d attempts", ErrTransient, key, s.maxAttempts)
}

// Update applies deltas to a record as one atomic write, creating the record
// from zero state when missing. Counters never go below zero; an increment
// past math.MaxInt64 fails with ErrOverflow.
func (s *Store) Update(ctx context.Context, key string, deltas FieldDeltas) (model.LedgerRecord, error) {
	return s.RunTransaction(ctx, key, func(cur Snapshot) (TxResult, error) {
		next := cur.Record.Clone()
		var err error
		if next.Balance, err = clampAdd(next.Balance, deltas.Balance); err != nil {
			return TxResult{}, fmt.Errorf("%w: balance of %s", err, key)
		}
		if next.LifetimeTotal, err = clampAdd(next.LifetimeTotal, deltas.LifetimeTotal); err != nil {
			return TxResult{}, fmt.Errorf("%w: lifetime total of %s", err, key)
		}
		for slot, item := range deltas.Equip {
			next.Equipped = next.Equipped.With(slot, item)
		}
		return TxResult{Record: next}, nil
	})
}

// AppendNew stores a standalone audit record.
func (s *Store) AppendNew(ctx context.Context, rec model.RedemptionRecord) error {
	if err := s.repo.AppendRedemption(ctx, rec); err != nil {
		return fmt.Errorf("%w: %w", ErrTransient, err)
	}
	return nil
}

// Redemptions lists a user's audit records, newest first.
func (s *Store) Redemptions(ctx context.Context, key string, limit int) ([]model.RedemptionRecord, error) {
	records, err := s.repo.ListRedemptions(ctx, key, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransient, err)
	}
	return records, nil
}

// Scan pages through every record ordered by key.
func (s *Store) Scan(ctx context.Context, afterKey string, limit int) ([]Snapshot, error) {
	docs, err := s.repo.ScanDocuments(ctx, afterKey, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransient, err)
	}
	return decodeAll(docs), nil
}

// Top returns up to limit records ordered by lifetime total descending.
func (s *Store) Top(ctx context.Context, limit int) ([]Snapshot, error) {
	docs, err := s.repo.TopByLifetime(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransient, err)
	}
	return decodeAll(docs), nil
}

// Subscribe delivers the current state of key to onChange and again after
// every observed change, until the returned func is called. If a read fails,
// onError is called once and the subscription stops.
func (s *Store) Subscribe(key string, onChange func(Snapshot), onError func(error)) func() {
	return s.subscribe(key, func(ctx context.Context) error {
		snap, err := s.load(ctx, key)
		if err != nil {
			return err
		}
		onChange(snap)
		return nil
	}, onError)
}

// SubscribeQuery delivers the top limit records by lifetime total and again
// after every change anywhere in the collection.
func (s *Store) SubscribeQuery(limit int, onChange func([]Snapshot), onError func(error)) func() {
	return s.subscribe("", func(ctx context.Context) error {
		snaps, err := s.Top(ctx, limit)
		if err != nil {
			return err
		}
		onChange(snaps)
		return nil
	}, onError)
}

func (s *Store) subscribe(key string, deliver func(ctx context.Context) error, onError func(error)) func() {
	signal, stopWatch := s.feed.Watch(key)
	done := make(chan struct{})

	var once sync.Once
	stop := func() {
		once.Do(func() {
			stopWatch()
			close(done)
		})
	}

	go func() {
		defer stopWatch()
		for {
			ctx, cancel := context.WithTimeout(context.Background(), subscribeTimeout)
			err := deliver(ctx)
			cancel()
			if err != nil {
				logger.Error("[Store] Subscription on %q stopped: %v", key, err)
				if onError != nil {
					onError(err)
				}
				return
			}

			select {
			case <-signal:
			case <-done:
				return
			}

			select {
			case <-done:
				return
			default:
			}
		}
	}()

	return stop
}

func (s *Store) publish(ctx context.Context, key string) {
	s.feed.Notify(key)
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, key); err != nil {
		logger.Warn("[Store] Failed to publish change for %s: %v", key, err)
	}
}

func (s *Store) sleep(ctx context.Context, attempt int) error {
	d := s.backoff << (attempt - 1)
	if d > maxBackoff || d <= 0 {
		d = maxBackoff
	}
	d = d/2 + rand.N(d/2+1)

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func decodeAll(docs []model.LedgerDocument) []Snapshot {
	snaps := make([]Snapshot, 0, len(docs))
	for _, doc := range docs {
		rec, repaired := DecodeLedger(doc.UserID, doc.Body)
		if len(repaired) > 0 {
			logger.Warn("[Store] Repaired fields %v while reading ledger %s (version %d)", repaired, doc.UserID, doc.Version)
		}
		snaps = append(snaps, Snapshot{Record: rec, Exists: true, Version: doc.Version, Repaired: repaired})
	}
	return snaps
}

// clampAdd adds delta to a non-negative counter, flooring at zero.
func clampAdd(v, delta int64) (int64, error) {
	if delta > 0 && v > math.MaxInt64-delta {
		return v, ErrOverflow
	}
	v += delta
	if v < 0 {
		return 0, nil
	}
	return v, nil
}
