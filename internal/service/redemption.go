package service

import (
	"context"
	"time"

	"halaqa-points-api/internal/logger"
	"halaqa-points-api/internal/model"
	"halaqa-points-api/internal/store"
	"halaqa-points-api/pkg/uid"
)

// RedeemRequest describes a real-world reward redeemed for a student.
type RedeemRequest struct {
	UserID     string
	RewardID   string
	Cost       int64
	RedeemedBy string

	// ObservedBalance is the balance the caller last saw in its mirror.
	// When set, the request is rejected early if it cannot cover Cost.
	ObservedBalance *int64
}

// RedemptionService debits reward costs and keeps the audit trail.
type RedemptionService struct {
	store Store
	now   func() time.Time
}

// NewRedemptionService creates a new redemption service.
func NewRedemptionService(s Store) *RedemptionService {
	return &RedemptionService{
		store: s,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Redeem debits the cost and appends the audit record in one transaction:
// either both are stored or neither is.
func (s *RedemptionService) Redeem(ctx context.Context, req RedeemRequest) (model.RedemptionRecord, model.LedgerRecord, error) {
	if req.UserID == "" {
		return model.RedemptionRecord{}, model.LedgerRecord{}, ErrUnauthenticated
	}
	if req.Cost <= 0 {
		return model.RedemptionRecord{}, model.LedgerRecord{}, ErrInvalidAmount
	}
	if req.RewardID == "" {
		return model.RedemptionRecord{}, model.LedgerRecord{}, ErrInvalidItem
	}
	if req.ObservedBalance != nil && *req.ObservedBalance < req.Cost {
		return model.RedemptionRecord{}, model.LedgerRecord{}, ErrInsufficientFunds
	}

	audit := model.RedemptionRecord{
		ID:         uid.New(),
		UserID:     req.UserID,
		RewardID:   req.RewardID,
		Cost:       req.Cost,
		RedeemedBy: req.RedeemedBy,
	}

	rec, err := s.store.RunTransaction(ctx, req.UserID, func(cur store.Snapshot) (store.TxResult, error) {
		next, err := decideRedeem(cur, req.Cost)
		if err != nil {
			return store.TxResult{}, err
		}
		audit.Timestamp = s.now()
		return store.TxResult{Record: next, Redemptions: []model.RedemptionRecord{audit}}, nil
	})
	if err != nil {
		return model.RedemptionRecord{}, rec, storeError(err)
	}

	logger.Info("[Redemption] %s redeemed %s for %s at cost %d (balance=%d)",
		req.RedeemedBy, req.RewardID, req.UserID, req.Cost, rec.Balance)
	return audit, rec, nil
}

// History lists a user's redemptions, newest first.
func (s *RedemptionService) History(ctx context.Context, userID string, limit int) ([]model.RedemptionRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	records, err := s.store.Redemptions(ctx, userID, limit)
	return records, storeError(err)
}

// Record appends an audit entry without touching the balance. Used for
// imports of redemptions settled outside the service.
func (s *RedemptionService) Record(ctx context.Context, rec model.RedemptionRecord) (model.RedemptionRecord, error) {
	if rec.UserID == "" {
		return rec, ErrUnauthenticated
	}
	if rec.Cost <= 0 {
		return rec, ErrInvalidAmount
	}
	if rec.RewardID == "" {
		return rec, ErrInvalidItem
	}
	if rec.ID == "" {
		rec.ID = uid.New()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = s.now()
	}
	return rec, storeError(s.store.AppendNew(ctx, rec))
}
