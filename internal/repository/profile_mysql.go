package repository

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"

	"halaqa-points-api/internal/logger"
	"halaqa-points-api/internal/model"
)

// MySQLProfileRepository implements ProfileRepository using the platform's MySQL user directory.
type MySQLProfileRepository struct {
	db *sql.DB
}

// NewMySQLProfileRepository creates a new MySQL profile repository.
func NewMySQLProfileRepository(db *sql.DB) *MySQLProfileRepository {
	return &MySQLProfileRepository{db: db}
}

// GetProfile finds an active profile by user id.
func (r *MySQLProfileRepository) GetProfile(ctx context.Context, userID string) (*model.Profile, error) {
	query := `SELECT user_id, display_name, role FROM profiles WHERE user_id = ? AND is_active = 1 LIMIT 1`

	var p model.Profile
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&p.UserID, &p.DisplayName, &p.Role)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return &p, nil
}

// ValidateAccessKey validates a user id + access key combination for token generation.
func (r *MySQLProfileRepository) ValidateAccessKey(ctx context.Context, userID, accessKey string) (*model.Profile, error) {
	logger.Info("[ProfileRepository] Validating access key for user_id=%s", userID)

	query := `
		SELECT user_id, display_name, role, access_key
		FROM profiles
		WHERE user_id = ? AND is_active = 1
		LIMIT 1`

	var p model.Profile
	var storedKey string
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&p.UserID, &p.DisplayName, &p.Role, &storedKey)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvalidAccessKey
		}
		return nil, fmt.Errorf("failed to validate access key: %w", err)
	}

	if storedKey == "" || subtle.ConstantTimeCompare([]byte(storedKey), []byte(accessKey)) != 1 {
		return nil, ErrInvalidAccessKey
	}
	return &p, nil
}

// Ensure MySQLProfileRepository implements ProfileRepository
var _ ProfileRepository = (*MySQLProfileRepository)(nil)
