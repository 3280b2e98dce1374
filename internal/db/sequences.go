package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/LenPushai/erha-ops/backend/workflow-service/internal/sequence"
	"github.com/jackc/pgx/v5"
)

// NextValue atomically increments and returns the counter for a document
// type within a period. The upsert takes the row lock, so concurrent callers
// serialize on the counter and every caller sees a distinct value. A counter
// row is created on first use with value 1.
func (db *Database) NextValue(ctx context.Context, docType string, period int) (int, error) {
	var value int
	err := db.Pool.QueryRow(ctx, `
		INSERT INTO sequence_counters (doc_type, period, last_value)
		VALUES ($1, $2, 1)
		ON CONFLICT (doc_type, period) DO UPDATE
		SET last_value = sequence_counters.last_value + 1, updated_at = now()
		RETURNING last_value
	`, docType, period).Scan(&value)
	if err != nil {
		return 0, fmt.Errorf("failed to advance sequence %s/%d: %w", docType, period, err)
	}
	return value, nil
}

// HighestSuffix returns the lexically greatest suffix issued under a parent
// job number, or "" when the parent has no children yet. Longer suffixes
// sort after shorter ones so "AA" beats "Z".
func (db *Database) HighestSuffix(ctx context.Context, parentNumber string) (string, error) {
	var suffix string
	err := db.Pool.QueryRow(ctx, `
		SELECT suffix FROM child_suffixes
		WHERE parent_number = $1
		ORDER BY length(suffix) DESC, suffix DESC
		LIMIT 1
	`, parentNumber).Scan(&suffix)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read highest suffix for %s: %w", parentNumber, err)
	}
	return suffix, nil
}

// ClaimSuffix permanently records a suffix under a parent job number. The
// primary key makes the claim exclusive; rows are never deleted, so a
// suffix is never reissued even if its child document is cancelled.
func (db *Database) ClaimSuffix(ctx context.Context, parentNumber, suffix string) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO child_suffixes (parent_number, suffix)
		VALUES ($1, $2)
	`, parentNumber, suffix)
	if err != nil {
		if isUniqueViolation(err) {
			return sequence.ErrSuffixTaken
		}
		return fmt.Errorf("failed to claim suffix %s under %s: %w", suffix, parentNumber, err)
	}
	return nil
}
