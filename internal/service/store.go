package service

import (
	"context"

	"halaqa-points-api/internal/model"
	"halaqa-points-api/internal/store"
)

// Store is the document store the ledger services run against.
// *store.Store implements it.
type Store interface {
	Get(ctx context.Context, key string) (store.Snapshot, error)
	Update(ctx context.Context, key string, deltas store.FieldDeltas) (model.LedgerRecord, error)
	RunTransaction(ctx context.Context, key string, fn store.TxFunc) (model.LedgerRecord, error)
	Subscribe(key string, onChange func(store.Snapshot), onError func(error)) func()
	SubscribeQuery(limit int, onChange func([]store.Snapshot), onError func(error)) func()
	AppendNew(ctx context.Context, rec model.RedemptionRecord) error
	Redemptions(ctx context.Context, key string, limit int) ([]model.RedemptionRecord, error)
	Scan(ctx context.Context, afterKey string, limit int) ([]store.Snapshot, error)
	Top(ctx context.Context, limit int) ([]store.Snapshot, error)
}

var _ Store = (*store.Store)(nil)
