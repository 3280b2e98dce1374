package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/LenPushai/erha-ops/backend/workflow-service/internal/models"
	"github.com/LenPushai/erha-ops/backend/workflow-service/internal/signature"
	"github.com/jackc/pgx/v5"
)

// CreateToken stores a new signing token record. Only the hash of the plain
// token is persisted.
func (db *Database) CreateToken(ctx context.Context, t *models.SignatureToken) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO signature_tokens (
			id, document_id, stage, token_hash, signer_email, signer_name,
			expires_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, t.ID, t.DocumentID, t.Stage, t.TokenHash, t.SignerEmail, t.SignerName,
		t.ExpiresAt, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create signature token: %w", err)
	}
	return nil
}

// InvalidateOutstanding revokes every unconsumed token for a document/stage
// pair so that only the most recently issued link works.
func (db *Database) InvalidateOutstanding(ctx context.Context, documentID string, stage models.SignatureStage) error {
	_, err := db.Pool.Exec(ctx, `
		UPDATE signature_tokens
		SET invalidated = true
		WHERE document_id = $1 AND stage = $2 AND used_at IS NULL AND NOT invalidated
	`, documentID, stage)
	if err != nil {
		return fmt.Errorf("failed to invalidate outstanding tokens: %w", err)
	}
	return nil
}

// GetTokenByHash resolves a token hash to its record regardless of state; the
// coordinator decides expired/used/invalidated from the fields.
func (db *Database) GetTokenByHash(ctx context.Context, hash string) (*models.SignatureToken, error) {
	var t models.SignatureToken
	err := db.Pool.QueryRow(ctx, `
		SELECT id, document_id, stage, token_hash, signer_email, signer_name,
		       expires_at, used_at, invalidated, created_at
		FROM signature_tokens
		WHERE token_hash = $1
	`, hash).Scan(
		&t.ID, &t.DocumentID, &t.Stage, &t.TokenHash, &t.SignerEmail, &t.SignerName,
		&t.ExpiresAt, &t.UsedAt, &t.Invalidated, &t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, signature.ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to get signature token: %w", err)
	}
	return &t, nil
}

// ConsumeToken marks the token used, records the signature, and applies the
// stage's document update in one transaction. The conditional UPDATE on
// used_at is the single-use guarantee: of two racing submissions only one
// matches the row, the other gets ErrTokenUsed.
func (db *Database) ConsumeToken(ctx context.Context, hash string, sig *models.Signature, update models.SignedUpdate) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE signature_tokens
		SET used_at = $2
		WHERE token_hash = $1 AND used_at IS NULL AND NOT invalidated
	`, hash, update.SignedAt)
	if err != nil {
		return fmt.Errorf("failed to consume token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if chkErr := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM signature_tokens WHERE token_hash = $1 AND NOT invalidated)`,
			hash).Scan(&exists); chkErr == nil && exists {
			return signature.ErrTokenUsed
		}
		return signature.ErrTokenNotFound
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO signatures (
			id, document_id, stage, quote_number, signer_name, signer_email,
			signer_title, signer_company, consent_type, consent_data,
			ip_address, user_agent, quote_total, description, signed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`, sig.ID, sig.DocumentID, sig.Stage, sig.QuoteNumber, sig.SignerName, sig.SignerEmail,
		sig.SignerTitle, sig.SignerCompany, sig.ConsentType, sig.ConsentData,
		sig.IPAddress, sig.UserAgent, sig.QuoteTotal, sig.Description, sig.SignedAt)
	if err != nil {
		return fmt.Errorf("failed to record signature: %w", err)
	}

	var setClause string
	switch update.Stage {
	case models.StageManager:
		setClause = `manager_signed_at = $2, manager_signed_by = $3, status = $4`
	case models.StageClient:
		setClause = `client_signed_at = $2, client_signed_by = $3, status = $4`
	default:
		return fmt.Errorf("unknown signature stage %q", update.Stage)
	}
	_, err = tx.Exec(ctx, `
		UPDATE documents
		SET `+setClause+`, version = version + 1, updated_at = now()
		WHERE id = $1
	`, update.DocumentID, update.SignedAt, update.SignedBy, update.Status)
	if err != nil {
		return fmt.Errorf("failed to apply signed update: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit signature: %w", err)
	}
	return nil
}
