package repository

import (
	"context"
	"errors"

	"halaqa-points-api/internal/model"
)

var (
	// ErrNotFound is returned when no document or profile exists for a key.
	ErrNotFound = errors.New("not found")

	// ErrVersionConflict is returned by CommitDocument when the stored version
	// no longer matches the expected one.
	ErrVersionConflict = errors.New("version conflict")

	// ErrInvalidAccessKey is returned when a profile is missing, inactive or
	// the key does not match.
	ErrInvalidAccessKey = errors.New("invalid access key or profile not found")
)

// LedgerRepository defines versioned ledger document storage.
type LedgerRepository interface {
	// GetDocument retrieves the ledger document of a user. Returns ErrNotFound if missing.
	GetDocument(ctx context.Context, userID string) (*model.LedgerDocument, error)

	// CommitDocument stores doc if the current version equals expectedVersion
	// (0 means the document must not exist yet) and stores it with version
	// expectedVersion+1. Redemptions are appended in the same transaction.
	// Returns ErrVersionConflict when another writer got there first.
	CommitDocument(ctx context.Context, doc model.LedgerDocument, expectedVersion int64, redemptions ...model.RedemptionRecord) error

	// TopByLifetime returns up to limit documents ordered by lifetime total
	// descending, ties broken by user id ascending.
	TopByLifetime(ctx context.Context, limit int) ([]model.LedgerDocument, error)

	// ScanDocuments pages through all documents ordered by user id, starting after afterUserID.
	ScanDocuments(ctx context.Context, afterUserID string, limit int) ([]model.LedgerDocument, error)

	// AppendRedemption stores a standalone redemption record.
	AppendRedemption(ctx context.Context, rec model.RedemptionRecord) error

	// ListRedemptions returns the newest redemptions of a user first.
	ListRedemptions(ctx context.Context, userID string, limit int) ([]model.RedemptionRecord, error)

	// GetStats returns statistics about the ledger database.
	GetStats(ctx context.Context) (map[string]interface{}, error)

	// Close closes the repository connection.
	Close() error
}

// ProfileRepository defines read access to the user directory.
type ProfileRepository interface {
	// GetProfile finds a profile by user id. Returns ErrNotFound if missing.
	GetProfile(ctx context.Context, userID string) (*model.Profile, error)

	// ValidateAccessKey checks a user's access key and returns the profile on success.
	ValidateAccessKey(ctx context.Context, userID, accessKey string) (*model.Profile, error)
}
