package ports

import (
	"context"

	"github.com/ametelin/docinsights/internal/core/domain"
)

// DocumentLifecycle is the inbound contract for everything that moves a
// document through its states: upload acceptance, analyzer callbacks,
// manual retry, and deletion.
type DocumentLifecycle interface {
	SubmitUpload(ctx context.Context, accountID string, upload UploadRequest) (*domain.Document, error)
	OnAnalysisResult(ctx context.Context, documentID string, outcome domain.AnalysisOutcome) error
	Retry(ctx context.Context, accountID, documentID string) (*domain.Document, error)
	Delete(ctx context.Context, accountID, documentID string) error
	Get(ctx context.Context, accountID, documentID string) (*domain.Document, error)
	List(ctx context.Context, accountID string) ([]domain.Document, error)
}

// DocumentProcessor is the inbound contract for asynchronous analysis
// dispatch performed by the worker.
type DocumentProcessor interface {
	ProcessByID(ctx context.Context, documentID string) error
}

// InsightsService computes the analytics view over an account's documents.
type InsightsService interface {
	Summarize(ctx context.Context, accountID string) (domain.InsightsSummary, error)
	ExportXLSX(ctx context.Context, accountID string) ([]byte, error)
}

// QuotaService is the read model for the dashboard quota widget.
type QuotaService interface {
	Report(ctx context.Context, accountID string) (domain.QuotaReport, error)
}
