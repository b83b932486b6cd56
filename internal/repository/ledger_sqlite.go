package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"halaqa-points-api/internal/logger"
	"halaqa-points-api/internal/model"

	_ "modernc.org/sqlite" // Pure Go SQLite driver - no CGO required
)

// SQLiteLedgerRepository implements LedgerRepository using SQLite.
// Thread-safe with WAL mode for high-concurrency reads.
type SQLiteLedgerRepository struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteLedgerRepository creates a new SQLite ledger repository.
// dbPath is the path to the SQLite database file (e.g., "./data/ledger.db")
func NewSQLiteLedgerRepository(dbPath string) (*SQLiteLedgerRepository, error) {
	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)", dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite: %w", err)
	}

	// SQLite only supports 1 writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := createSQLiteTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info("[SQLiteLedgerRepository] Initialized with database: %s", dbPath)
	return &SQLiteLedgerRepository{db: db}, nil
}

func createSQLiteTables(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS ledger_records (
		user_id TEXT PRIMARY KEY,
		doc TEXT NOT NULL,
		version INTEGER NOT NULL,
		lifetime_total INTEGER NOT NULL DEFAULT 0,
		updated_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_ledger_lifetime ON ledger_records(lifetime_total DESC, user_id);

	CREATE TABLE IF NOT EXISTS redemptions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		reward_id TEXT NOT NULL,
		cost INTEGER NOT NULL,
		redeemed_by TEXT NOT NULL DEFAULT '',
		redeemed_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_redemptions_user ON redemptions(user_id, redeemed_at);
	`
	_, err := db.Exec(query)
	return err
}

// GetDocument retrieves the ledger document of a user.
func (r *SQLiteLedgerRepository) GetDocument(ctx context.Context, userID string) (*model.LedgerDocument, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	query := `SELECT user_id, doc, version, lifetime_total, updated_at FROM ledger_records WHERE user_id = ?`

	doc, err := scanSQLiteDocument(r.db.QueryRowContext(ctx, query, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get ledger document: %w", err)
	}
	return doc, nil
}

// CommitDocument performs a versioned write plus any redemption appends in one transaction.
func (r *SQLiteLedgerRepository) CommitDocument(ctx context.Context, doc model.LedgerDocument, expectedVersion int64, redemptions ...model.RedemptionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var res sql.Result
	if expectedVersion == 0 {
		res, err = tx.ExecContext(ctx, `
			INSERT INTO ledger_records (user_id, doc, version, lifetime_total, updated_at)
			VALUES (?, ?, 1, ?, ?)
			ON CONFLICT(user_id) DO NOTHING`,
			doc.UserID, string(doc.Body), doc.LifetimeTotal, doc.UpdatedAt)
	} else {
		res, err = tx.ExecContext(ctx, `
			UPDATE ledger_records
			SET doc = ?, version = version + 1, lifetime_total = ?, updated_at = ?
			WHERE user_id = ? AND version = ?`,
			string(doc.Body), doc.LifetimeTotal, doc.UpdatedAt, doc.UserID, expectedVersion)
	}
	if err != nil {
		return fmt.Errorf("failed to write ledger document %s: %w", doc.UserID, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return ErrVersionConflict
	}

	for _, rec := range redemptions {
		if err := insertSQLiteRedemption(ctx, tx, rec); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// TopByLifetime returns the highest lifetime totals.
func (r *SQLiteLedgerRepository) TopByLifetime(ctx context.Context, limit int) ([]model.LedgerDocument, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id, doc, version, lifetime_total, updated_at
		FROM ledger_records
		ORDER BY lifetime_total DESC, user_id ASC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer rows.Close()

	return collectSQLiteDocuments(rows)
}

// ScanDocuments pages through all ledger documents ordered by user id.
func (r *SQLiteLedgerRepository) ScanDocuments(ctx context.Context, afterUserID string, limit int) ([]model.LedgerDocument, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id, doc, version, lifetime_total, updated_at
		FROM ledger_records
		WHERE user_id > ?
		ORDER BY user_id ASC
		LIMIT ?`, afterUserID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to scan ledger documents: %w", err)
	}
	defer rows.Close()

	return collectSQLiteDocuments(rows)
}

// AppendRedemption stores a standalone redemption record.
func (r *SQLiteLedgerRepository) AppendRedemption(ctx context.Context, rec model.RedemptionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO redemptions (id, user_id, reward_id, cost, redeemed_by, redeemed_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.UserID, rec.RewardID, rec.Cost, rec.RedeemedBy, rec.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to append redemption: %w", err)
	}
	return nil
}

// ListRedemptions returns the newest redemptions of a user first.
func (r *SQLiteLedgerRepository) ListRedemptions(ctx context.Context, userID string, limit int) ([]model.RedemptionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, reward_id, cost, redeemed_by, redeemed_at
		FROM redemptions
		WHERE user_id = ?
		ORDER BY redeemed_at DESC, id DESC
		LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list redemptions: %w", err)
	}
	defer rows.Close()

	records := []model.RedemptionRecord{}
	for rows.Next() {
		var rec model.RedemptionRecord
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.RewardID, &rec.Cost, &rec.RedeemedBy, &rec.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan redemption: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// GetStats returns statistics about the ledger database.
func (r *SQLiteLedgerRepository) GetStats(ctx context.Context) (map[string]interface{}, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := make(map[string]interface{})

	var count int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM ledger_records").Scan(&count); err != nil {
		return nil, err
	}
	stats["total_ledgers"] = count

	var redemptions int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM redemptions").Scan(&redemptions); err != nil {
		return nil, err
	}
	stats["total_redemptions"] = redemptions

	// Database file size (approximate from page count)
	var pageCount, pageSize int64
	r.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount)
	r.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
	stats["db_size_bytes"] = pageCount * pageSize

	return stats, nil
}

// Close closes the database connection.
func (r *SQLiteLedgerRepository) Close() error {
	return r.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteDocument(row rowScanner) (*model.LedgerDocument, error) {
	var doc model.LedgerDocument
	var body string
	if err := row.Scan(&doc.UserID, &body, &doc.Version, &doc.LifetimeTotal, &doc.UpdatedAt); err != nil {
		return nil, err
	}
	doc.Body = []byte(body)
	return &doc, nil
}

func collectSQLiteDocuments(rows *sql.Rows) ([]model.LedgerDocument, error) {
	docs := []model.LedgerDocument{}
	for rows.Next() {
		doc, err := scanSQLiteDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger document: %w", err)
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

func insertSQLiteRedemption(ctx context.Context, tx *sql.Tx, rec model.RedemptionRecord) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO redemptions (id, user_id, reward_id, cost, redeemed_by, redeemed_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.UserID, rec.RewardID, rec.Cost, rec.RedeemedBy, rec.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to append redemption %s: %w", rec.ID, err)
	}
	return nil
}

// Ensure SQLiteLedgerRepository implements LedgerRepository
var _ LedgerRepository = (*SQLiteLedgerRepository)(nil)
