package service

import (
	"errors"
	"sync"

	"halaqa-points-api/internal/logger"
	"halaqa-points-api/internal/model"
	"halaqa-points-api/internal/store"
)

// MirrorState is the read model of one user's ledger.
type MirrorState struct {
	Balance       int64          `json:"balance"`
	LifetimeTotal int64          `json:"lifetime_total"`
	Inventory     []model.ItemID `json:"inventory"`
	Equipped      model.Equipped `json:"equipped"`
	Loading       bool           `json:"loading"`
	Err           error          `json:"-"`
}

type mirrorObserver struct {
	id int
	fn func(MirrorState)
}

// Mirror keeps a live, read-only copy of a single ledger record. It is not a
// source of truth for mutations; DebitAndGrant always reads stored state.
type Mirror struct {
	mu        sync.Mutex
	userID    string
	state     MirrorState
	observers []mirrorObserver
	nextID    int
	closed    bool
	stop      func()
}

// NewMirror subscribes to userID's record. An empty userID yields a zero
// mirror with no subscription.
func NewMirror(s Store, userID string) *Mirror {
	m := &Mirror{
		userID: userID,
		state:  MirrorState{Inventory: []model.ItemID{}},
	}
	if userID == "" {
		return m
	}

	m.state.Loading = true
	stop := s.Subscribe(userID, m.apply, m.fail)

	m.mu.Lock()
	m.stop = stop
	m.mu.Unlock()
	return m
}

// UserID returns the mirrored user, empty for a zero mirror.
func (m *Mirror) UserID() string {
	return m.userID
}

// State returns the current mirror contents.
func (m *Mirror) State() MirrorState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyState(m.state)
}

// Observe registers fn, calls it with the current state and then again on
// every change. Observers run synchronously in registration order while the
// mirror is locked, so they must not call back into it.
func (m *Mirror) Observe(fn func(MirrorState)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	id := m.nextID
	m.observers = append(m.observers, mirrorObserver{id: id, fn: fn})
	fn(copyState(m.state))

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for i, o := range m.observers {
			if o.id == id {
				m.observers = append(m.observers[:i:i], m.observers[i+1:]...)
				return
			}
		}
	}
}

// Close ends the subscription. The last state stays readable.
func (m *Mirror) Close() {
	m.mu.Lock()
	stop := m.stop
	m.closed = true
	m.stop = nil
	m.observers = nil
	m.mu.Unlock()

	if stop != nil {
		stop()
	}
}

func (m *Mirror) apply(snap store.Snapshot) {
	if len(snap.Repaired) > 0 {
		logger.Warn("[Mirror] Coerced corrupt fields %v of %s to safe defaults", snap.Repaired, m.userID)
	}

	rec := snap.Record.Clone()
	m.publish(func(st *MirrorState) {
		st.Balance = rec.Balance
		st.LifetimeTotal = rec.LifetimeTotal
		st.Inventory = rec.Inventory
		st.Equipped = rec.Equipped
		st.Loading = false
	})
}

func (m *Mirror) fail(err error) {
	logger.Error("[Mirror] Subscription for %s failed, mirror is frozen: %v", m.userID, err)
	m.publish(func(st *MirrorState) {
		st.Loading = false
		st.Err = errors.Join(ErrTransientStoreFailure, err)
	})
}

func (m *Mirror) publish(mutate func(*MirrorState)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}

	mutate(&m.state)
	for _, o := range m.observers {
		o.fn(copyState(m.state))
	}
}

func copyState(st MirrorState) MirrorState {
	inv := make([]model.ItemID, len(st.Inventory))
	copy(inv, st.Inventory)
	st.Inventory = inv
	return st
}
