package service

import (
	"context"

	"halaqa-points-api/internal/model"
)

// Auth supplies the identity of the current caller.
type Auth interface {
	CurrentUserID(ctx context.Context) (string, bool)
}

// Session binds the ledger operations and a live mirror to the current user.
type Session struct {
	userID string
	ledger *LedgerService
	mirror *Mirror
}

// NewSession opens a session for the user auth reports for ctx. Without a
// current user the mirror stays empty and every mutation fails with
// ErrUnauthenticated.
func NewSession(ctx context.Context, auth Auth, s Store) *Session {
	userID, ok := auth.CurrentUserID(ctx)
	if !ok {
		userID = ""
	}
	return &Session{
		userID: userID,
		ledger: NewLedgerService(s),
		mirror: NewMirror(s, userID),
	}
}

// UserID returns the session's user, empty when unauthenticated.
func (s *Session) UserID() string {
	return s.userID
}

// State returns the mirrored ledger.
func (s *Session) State() MirrorState {
	return s.mirror.State()
}

// Observe forwards mirror updates to fn.
func (s *Session) Observe(fn func(MirrorState)) func() {
	return s.mirror.Observe(fn)
}

// Credit awards points to the session user.
func (s *Session) Credit(ctx context.Context, amount int64) (model.LedgerRecord, error) {
	return s.ledger.Credit(ctx, s.userID, amount)
}

// Spend buys a cosmetic item. Fails with ErrAlreadyOwned or ErrInsufficientFunds.
func (s *Session) Spend(ctx context.Context, cost int64, item model.ItemID) (model.LedgerRecord, error) {
	return s.ledger.DebitAndGrant(ctx, s.userID, cost, item)
}

// Equip selects the item shown in slot.
func (s *Session) Equip(ctx context.Context, slot model.Slot, item model.ItemID) (model.LedgerRecord, error) {
	return s.ledger.Equip(ctx, s.userID, slot, item)
}

// Close releases the mirror subscription.
func (s *Session) Close() {
	s.mirror.Close()
}
