package repository

import (
	"context"
	"sort"
	"sync"

	"halaqa-points-api/internal/model"
)

// MemoryLedgerRepository is an in-memory implementation of LedgerRepository.
// Use this for development/testing or single-instance deployments.
type MemoryLedgerRepository struct {
	mu          sync.RWMutex
	docs        map[string]model.LedgerDocument
	redemptions []model.RedemptionRecord
}

// NewMemoryLedgerRepository creates an empty in-memory ledger repository.
func NewMemoryLedgerRepository() *MemoryLedgerRepository {
	return &MemoryLedgerRepository{
		docs: make(map[string]model.LedgerDocument),
	}
}

// GetDocument retrieves the ledger document of a user.
func (r *MemoryLedgerRepository) GetDocument(ctx context.Context, userID string) (*model.LedgerDocument, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	doc, ok := r.docs[userID]
	if !ok {
		return nil, ErrNotFound
	}
	doc.Body = cloneBytes(doc.Body)
	return &doc, nil
}

// CommitDocument performs a versioned write plus any redemption appends atomically.
func (r *MemoryLedgerRepository) CommitDocument(ctx context.Context, doc model.LedgerDocument, expectedVersion int64, redemptions ...model.RedemptionRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current, exists := r.docs[doc.UserID]
	switch {
	case expectedVersion == 0 && exists:
		return ErrVersionConflict
	case expectedVersion != 0 && (!exists || current.Version != expectedVersion):
		return ErrVersionConflict
	}

	doc.Body = cloneBytes(doc.Body)
	doc.Version = expectedVersion + 1
	r.docs[doc.UserID] = doc
	r.redemptions = append(r.redemptions, redemptions...)
	return nil
}

// SetDocument overwrites a document without a version check. Intended for
// seeding fixtures and legacy data in tests.
func (r *MemoryLedgerRepository) SetDocument(doc model.LedgerDocument) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.docs[doc.UserID]; ok && doc.Version <= current.Version {
		doc.Version = current.Version + 1
	}
	if doc.Version == 0 {
		doc.Version = 1
	}
	doc.Body = cloneBytes(doc.Body)
	r.docs[doc.UserID] = doc
}

// TopByLifetime returns the highest lifetime totals.
func (r *MemoryLedgerRepository) TopByLifetime(ctx context.Context, limit int) ([]model.LedgerDocument, error) {
	docs := r.sorted(func(a, b model.LedgerDocument) bool {
		if a.LifetimeTotal != b.LifetimeTotal {
			return a.LifetimeTotal > b.LifetimeTotal
		}
		return a.UserID < b.UserID
	})
	if limit > 0 && len(docs) > limit {
		docs = docs[:limit]
	}
	return docs, nil
}

// ScanDocuments pages through all ledger documents ordered by user id.
func (r *MemoryLedgerRepository) ScanDocuments(ctx context.Context, afterUserID string, limit int) ([]model.LedgerDocument, error) {
	docs := r.sorted(func(a, b model.LedgerDocument) bool { return a.UserID < b.UserID })

	out := []model.LedgerDocument{}
	for _, doc := range docs {
		if doc.UserID <= afterUserID {
			continue
		}
		out = append(out, doc)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *MemoryLedgerRepository) sorted(less func(a, b model.LedgerDocument) bool) []model.LedgerDocument {
	r.mu.RLock()
	defer r.mu.RUnlock()

	docs := make([]model.LedgerDocument, 0, len(r.docs))
	for _, doc := range r.docs {
		doc.Body = cloneBytes(doc.Body)
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool { return less(docs[i], docs[j]) })
	return docs
}

// AppendRedemption stores a standalone redemption record.
func (r *MemoryLedgerRepository) AppendRedemption(ctx context.Context, rec model.RedemptionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.redemptions = append(r.redemptions, rec)
	return nil
}

// ListRedemptions returns the newest redemptions of a user first.
func (r *MemoryLedgerRepository) ListRedemptions(ctx context.Context, userID string, limit int) ([]model.RedemptionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	records := []model.RedemptionRecord{}
	for i := len(r.redemptions) - 1; i >= 0; i-- {
		if r.redemptions[i].UserID != userID {
			continue
		}
		records = append(records, r.redemptions[i])
		if limit > 0 && len(records) == limit {
			break
		}
	}
	return records, nil
}

// GetStats returns statistics about the in-memory ledger.
func (r *MemoryLedgerRepository) GetStats(ctx context.Context) (map[string]interface{}, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return map[string]interface{}{
		"total_ledgers":     int64(len(r.docs)),
		"total_redemptions": int64(len(r.redemptions)),
	}, nil
}

// Close is a no-op.
func (r *MemoryLedgerRepository) Close() error {
	return nil
}

func cloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Ensure MemoryLedgerRepository implements LedgerRepository
var _ LedgerRepository = (*MemoryLedgerRepository)(nil)
