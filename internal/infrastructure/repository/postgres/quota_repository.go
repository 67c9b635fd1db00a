package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ametelin/docinsights/internal/core/domain"
)

// QuotaRepository reads the usage counters maintained by the document
// repository's create/delete transactions. Plan assignment lives in the
// same row and is written by the billing integration, not by this service.
type QuotaRepository struct {
	db *sql.DB
}

func NewQuotaRepository(db *sql.DB) *QuotaRepository {
	return &QuotaRepository{db: db}
}

func (r *QuotaRepository) GetUsage(ctx context.Context, accountID string) (domain.Usage, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT plan_id, bytes_used, document_count
FROM quota_usage
WHERE account_id = $1
`, accountID)

	usage := domain.Usage{AccountID: accountID}
	err := row.Scan(&usage.PlanID, &usage.BytesUsed, &usage.DocumentCount)
	if errors.Is(err, sql.ErrNoRows) {
		// Fresh account: zero usage on the default plan.
		return usage, nil
	}
	if err != nil {
		return domain.Usage{}, fmt.Errorf("scan quota usage: %w", err)
	}
	return usage, nil
}
