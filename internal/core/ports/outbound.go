package ports

import (
	"context"
	"io"

	"github.com/ametelin/docinsights/internal/core/domain"
)

// UploadRequest carries the validated pieces of one incoming file.
type UploadRequest struct {
	FileName  string
	FileType  string
	SizeBytes int64
	Body      io.Reader
}

// DocumentRepository persists and reads document state. Create and Delete
// adjust the owning account's usage counters in the same transaction as the
// record change, so a crash can never leave the two out of step.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	// ListByAccount returns the account's documents ordered by creation
	// time, newest first.
	ListByAccount(ctx context.Context, accountID string) ([]domain.Document, error)
	// UpdateStatus moves a document to a new status only when its current
	// status is one of from. It fails with ErrInvalidTransition when the row
	// exists in a different state and ErrDocumentNotFound when it does not
	// exist at all. An empty resultRef leaves the stored reference untouched.
	UpdateStatus(ctx context.Context, id string, from []domain.DocumentStatus, to domain.DocumentStatus, resultRef, errMessage string) error
	// Delete removes the record and returns the deleted document.
	Delete(ctx context.Context, id string) (*domain.Document, error)
}

// QuotaStore reads the persisted per-account usage counters.
type QuotaStore interface {
	GetUsage(ctx context.Context, accountID string) (domain.Usage, error)
}

// ObjectStorage stores uploaded file blobs.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// MessageQueue publishes/consumes analysis request events.
type MessageQueue interface {
	PublishAnalysisRequested(ctx context.Context, documentID string) error
	SubscribeAnalysisRequested(ctx context.Context, handler func(context.Context, string) error) error
}

// Analyzer is the external analysis collaborator. Analyze blocks until the
// analyzer produces a result reference or the context deadline expires.
type Analyzer interface {
	Analyze(ctx context.Context, doc *domain.Document) (string, error)
}

// MetadataProbe inspects a stored blob for cheap display metadata. Probe
// failures are advisory, never fatal to an upload.
type MetadataProbe interface {
	Probe(ctx context.Context, doc *domain.Document) (domain.FileMetadata, error)
}

// ReportRenderer turns an insights summary into a downloadable report.
type ReportRenderer interface {
	RenderSummary(summary domain.InsightsSummary) ([]byte, error)
}

// QuotaLedger mediates admission of new uploads. Reserve must serialize per
// account so concurrent uploads cannot jointly overshoot a limit. Commit
// folds a reservation into the cached committed usage after the repository
// persisted it; Release drops a reservation that never got that far.
type QuotaLedger interface {
	Reserve(ctx context.Context, accountID string, sizeBytes int64) error
	Commit(accountID string, sizeBytes int64)
	Release(accountID string, sizeBytes int64)
	// Invalidate drops the cached committed usage so the next Reserve
	// re-reads the store. Pending reservations survive.
	Invalidate(accountID string)
	Report(ctx context.Context, accountID string) (domain.QuotaReport, error)
}
