package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ametelin/docinsights/internal/core/domain"
)

type DocumentRepository struct {
	db *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

const documentColumns = `id, account_id, file_name, file_type, size_bytes, page_count, storage_path, status, result_ref, error_message, created_at, updated_at`

// Create inserts the record and increments the owner's usage counters in
// one transaction.
func (r *DocumentRepository) Create(ctx context.Context, doc *domain.Document) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx, `
INSERT INTO documents (`+documentColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
`,
		doc.ID, doc.AccountID, doc.FileName, doc.FileType, doc.SizeBytes, doc.PageCount,
		doc.StoragePath, string(doc.Status), doc.ResultRef, doc.Error, doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
INSERT INTO quota_usage (account_id, bytes_used, document_count, updated_at)
VALUES ($1, $2, 1, now())
ON CONFLICT (account_id) DO UPDATE
SET bytes_used = quota_usage.bytes_used + EXCLUDED.bytes_used,
    document_count = quota_usage.document_count + 1,
    updated_at = now()
`, doc.AccountID, doc.SizeBytes)
	if err != nil {
		return fmt.Errorf("increment quota usage: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create tx: %w", err)
	}
	return nil
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+documentColumns+`
FROM documents
WHERE id = $1
`, id)

	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}
	return doc, nil
}

func (r *DocumentRepository) ListByAccount(ctx context.Context, accountID string) ([]domain.Document, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+documentColumns+`
FROM documents
WHERE account_id = $1
ORDER BY created_at DESC, id DESC
`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	docs := make([]domain.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document row: %w", err)
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return docs, nil
}

// UpdateStatus applies a guarded transition: the row must currently be in
// one of the from statuses. An empty resultRef keeps the stored reference.
func (r *DocumentRepository) UpdateStatus(ctx context.Context, id string, from []domain.DocumentStatus, to domain.DocumentStatus, resultRef, errMessage string) error {
	if len(from) == 0 {
		return domain.WrapError(domain.ErrInvalidInput, "update status", fmt.Errorf("empty from set"))
	}

	args := []any{id, string(to), resultRef, errMessage, time.Now().UTC()}
	placeholders := make([]string, 0, len(from))
	for _, s := range from {
		args = append(args, string(s))
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
	}

	res, err := r.db.ExecContext(ctx, `
UPDATE documents
SET status = $2,
    result_ref = CASE WHEN $3 = '' THEN result_ref ELSE $3 END,
    error_message = $4,
    updated_at = $5
WHERE id = $1 AND status IN (`+strings.Join(placeholders, ",")+`)
`, args...)
	if err != nil {
		return fmt.Errorf("update document status: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update status rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	// Nothing matched: tell the caller whether the document is missing or
	// just in a state the transition does not start from.
	var current string
	err = r.db.QueryRowContext(ctx, `SELECT status FROM documents WHERE id = $1`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.WrapError(domain.ErrDocumentNotFound, "update status", fmt.Errorf("id=%s", id))
	}
	if err != nil {
		return fmt.Errorf("read current status: %w", err)
	}
	return domain.WrapError(domain.ErrInvalidTransition, "update status",
		fmt.Errorf("document %s is %s, cannot move to %s", id, current, to))
}

// Delete removes the record and decrements the owner's usage counters in
// one transaction, returning the deleted document.
func (r *DocumentRepository) Delete(ctx context.Context, id string) (*domain.Document, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin delete tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	row := tx.QueryRowContext(ctx, `
DELETE FROM documents
WHERE id = $1
RETURNING `+documentColumns+`
`, id)

	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "delete document", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("delete document: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
UPDATE quota_usage
SET bytes_used = GREATEST(bytes_used - $2, 0),
    document_count = GREATEST(document_count - 1, 0),
    updated_at = now()
WHERE account_id = $1
`, doc.AccountID, doc.SizeBytes)
	if err != nil {
		return nil, fmt.Errorf("decrement quota usage: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit delete tx: %w", err)
	}
	return doc, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*domain.Document, error) {
	var doc domain.Document
	var status string

	err := row.Scan(
		&doc.ID, &doc.AccountID, &doc.FileName, &doc.FileType, &doc.SizeBytes, &doc.PageCount,
		&doc.StoragePath, &status, &doc.ResultRef, &doc.Error, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	doc.Status = domain.DocumentStatus(status)
	return &doc, nil
}
