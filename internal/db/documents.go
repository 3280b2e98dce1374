package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/LenPushai/erha-ops/backend/workflow-service/internal/models"
	"github.com/jackc/pgx/v5"
)

const documentColumns = `
	id, direction, enquiry_number, client_name, contact_email, description, status,
	assigned_quoter, quote_number, quote_date, quote_total,
	order_number, order_date, job_number, invoice_number, invoice_date,
	is_emergency, parent_id, child_suffix,
	manager_signed_at, manager_signed_by, client_signed_at, client_signed_by,
	created_by, created_at, updated_at, version`

func scanDocument(row pgx.Row) (*models.Document, error) {
	var d models.Document
	err := row.Scan(
		&d.ID, &d.Direction, &d.EnquiryNumber, &d.ClientName, &d.ContactEmail, &d.Description, &d.Status,
		&d.AssignedQuoter, &d.QuoteNumber, &d.QuoteDate, &d.QuoteTotal,
		&d.OrderNumber, &d.OrderDate, &d.JobNumber, &d.InvoiceNumber, &d.InvoiceDate,
		&d.IsEmergency, &d.ParentID, &d.ChildSuffix,
		&d.ManagerSignedAt, &d.ManagerSignedBy, &d.ClientSignedAt, &d.ClientSignedBy,
		&d.CreatedBy, &d.CreatedAt, &d.UpdatedAt, &d.Version,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// CreateDocument inserts a new document row
func (db *Database) CreateDocument(ctx context.Context, d *models.Document) error {
	query := `
		INSERT INTO documents (
			id, direction, enquiry_number, client_name, contact_email, description, status,
			job_number, is_emergency, parent_id, child_suffix, created_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)
	`
	_, err := db.Pool.Exec(ctx, query,
		d.ID, d.Direction, d.EnquiryNumber, d.ClientName, d.ContactEmail, d.Description, d.Status,
		d.JobNumber, d.IsEmergency, d.ParentID, d.ChildSuffix, d.CreatedBy, d.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}
	return nil
}

// GetDocument fetches a document by id
func (db *Database) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`
	doc, err := scanDocument(db.Pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("document %s not found", id)
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return doc, nil
}

// ListDocuments returns documents newest first, optionally filtered by status
func (db *Database) ListDocuments(ctx context.Context, status models.Status) ([]models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents`
	args := []interface{}{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	docs := []models.Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

// ListChildren returns the live child documents of a parent job
func (db *Database) ListChildren(ctx context.Context, parentID string) ([]models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE parent_id = $1 ORDER BY child_suffix`
	rows, err := db.Pool.Query(ctx, query, parentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list children: %w", err)
	}
	defer rows.Close()

	docs := []models.Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

// updateDocument runs an optimistic-concurrency guarded update. setClause must
// use placeholders starting at $3; id and version are $1 and $2.
func (db *Database) updateDocument(ctx context.Context, id string, version int, setClause string, args ...interface{}) (*models.Document, error) {
	query := `
		UPDATE documents
		SET ` + setClause + `, version = version + 1, updated_at = now()
		WHERE id = $1 AND version = $2
		RETURNING ` + documentColumns
	full := append([]interface{}{id, version}, args...)
	doc, err := scanDocument(db.Pool.QueryRow(ctx, query, full...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Either the document does not exist or the version is stale;
			// distinguish so the caller can retry only real conflicts.
			var exists bool
			if chkErr := db.Pool.QueryRow(ctx,
				`SELECT EXISTS (SELECT 1 FROM documents WHERE id = $1)`, id).Scan(&exists); chkErr == nil && !exists {
				return nil, fmt.Errorf("document %s not found", id)
			}
			return nil, ErrVersionConflict
		}
		return nil, fmt.Errorf("failed to update document: %w", err)
	}
	return doc, nil
}

// AssignEstimator sets the quoter responsible for pricing the enquiry
func (db *Database) AssignEstimator(ctx context.Context, id string, version int, quoter string) (*models.Document, error) {
	return db.updateDocument(ctx, id, version, `assigned_quoter = $3`, quoter)
}

// RecordQuote records the quote reference, date and total
func (db *Database) RecordQuote(ctx context.Context, id string, version int, quoteNumber string, quoteDate time.Time, total float64) (*models.Document, error) {
	return db.updateDocument(ctx, id, version,
		`quote_number = $3, quote_date = $4, quote_total = $5`, quoteNumber, quoteDate, total)
}

// RecordOrder records the client purchase order and moves the document to WON
func (db *Database) RecordOrder(ctx context.Context, id string, version int, orderNumber string, orderDate time.Time) (*models.Document, error) {
	return db.updateDocument(ctx, id, version,
		`order_number = $3, order_date = $4, status = $5`, orderNumber, orderDate, models.StatusWon)
}

// SetJobNumber records the allocator-issued job number
func (db *Database) SetJobNumber(ctx context.Context, id string, version int, jobNumber string) (*models.Document, error) {
	return db.updateDocument(ctx, id, version, `job_number = $3`, jobNumber)
}

// RecordInvoice records the invoice closing the pipeline
func (db *Database) RecordInvoice(ctx context.Context, id string, version int, invoiceNumber string, invoiceDate time.Time) (*models.Document, error) {
	return db.updateDocument(ctx, id, version,
		`invoice_number = $3, invoice_date = $4`, invoiceNumber, invoiceDate)
}

// UpdateStatus moves the document to a new commercial status
func (db *Database) UpdateStatus(ctx context.Context, id string, version int, status models.Status) (*models.Document, error) {
	return db.updateDocument(ctx, id, version, `status = $3`, status)
}

// CancelDocument is the soft delete: documents are never removed while a job
// or invoice references them, they are only marked CANCELLED.
func (db *Database) CancelDocument(ctx context.Context, id string, version int) (*models.Document, error) {
	return db.updateDocument(ctx, id, version, `status = $3`, models.StatusCancelled)
}
