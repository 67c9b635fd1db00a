package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ametelin/docinsights/internal/core/domain"
	"github.com/ametelin/docinsights/internal/core/ports"
)

// LifecycleUseCase drives documents through the upload/processing/terminal
// states and keeps quota usage in step with record creation and deletion.
type LifecycleUseCase struct {
	repo    ports.DocumentRepository
	ledger  ports.QuotaLedger
	storage ports.ObjectStorage
	queue   ports.MessageQueue
	probe   ports.MetadataProbe
	logger  *slog.Logger

	maxUploadBytes int64
}

func NewLifecycleUseCase(
	repo ports.DocumentRepository,
	ledger ports.QuotaLedger,
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
	probe ports.MetadataProbe,
	logger *slog.Logger,
	maxUploadBytes int64,
) *LifecycleUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &LifecycleUseCase{
		repo:           repo,
		ledger:         ledger,
		storage:        storage,
		queue:          queue,
		probe:          probe,
		logger:         logger,
		maxUploadBytes: maxUploadBytes,
	}
}

func (uc *LifecycleUseCase) SubmitUpload(ctx context.Context, accountID string, upload ports.UploadRequest) (*domain.Document, error) {
	if err := validateUpload(accountID, upload, uc.maxUploadBytes); err != nil {
		return nil, err
	}

	if err := uc.ledger.Reserve(ctx, accountID, upload.SizeBytes); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	storageKey := fmt.Sprintf("%s_%s", id, sanitizeFileName(upload.FileName))
	now := time.Now().UTC()

	// No retry here: the body is a one-shot stream.
	if err := uc.storage.Save(ctx, storageKey, upload.Body); err != nil {
		uc.ledger.Release(accountID, upload.SizeBytes)
		return nil, domain.WrapError(domain.ErrStorage, "save blob", err)
	}

	doc := &domain.Document{
		ID:          id,
		AccountID:   accountID,
		FileName:    upload.FileName,
		FileType:    upload.FileType,
		SizeBytes:   upload.SizeBytes,
		StoragePath: storageKey,
		Status:      domain.StatusUploaded,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if uc.probe != nil {
		if meta, err := uc.probe.Probe(ctx, doc); err == nil {
			doc.PageCount = meta.PageCount
		} else {
			uc.logger.Debug("metadata probe failed", "document_id", id, "error", err)
		}
	}

	if err := withStorageRetry(func() error {
		return uc.repo.Create(ctx, doc)
	}); err != nil {
		uc.ledger.Release(accountID, upload.SizeBytes)
		uc.removeBlob(ctx, storageKey)
		return nil, domain.WrapError(domain.ErrStorage, "create document record", err)
	}

	uc.ledger.Commit(accountID, upload.SizeBytes)

	// Dispatch is fire-and-forget: the upload already succeeded, a failed
	// publish leaves the document in uploaded and is logged for operators.
	if err := uc.queue.PublishAnalysisRequested(ctx, doc.ID); err != nil {
		uc.logger.Warn("analysis dispatch failed", "document_id", doc.ID, "error", err)
	}

	return doc, nil
}

// OnAnalysisResult applies an analyzer outcome. A duplicate or late result
// for a document already in a terminal state is a no-op.
func (uc *LifecycleUseCase) OnAnalysisResult(ctx context.Context, documentID string, outcome domain.AnalysisOutcome) error {
	to, resultRef, errMessage, err := outcomeTarget(outcome)
	if err != nil {
		return err
	}

	err = uc.repo.UpdateStatus(ctx, documentID, []domain.DocumentStatus{domain.StatusProcessing}, to, resultRef, errMessage)
	if err == nil {
		return nil
	}
	if !domain.IsKind(err, domain.ErrInvalidTransition) {
		return err
	}

	doc, getErr := uc.repo.GetByID(ctx, documentID)
	if getErr != nil {
		return getErr
	}
	if doc.Status == domain.StatusAnalyzed || doc.Status == domain.StatusFailed {
		uc.logger.Debug("duplicate analysis result ignored",
			"document_id", documentID, "status", string(doc.Status), "outcome", string(outcome.Status))
		return nil
	}
	return err
}

// Retry re-dispatches a failed document. Legal only from failed.
func (uc *LifecycleUseCase) Retry(ctx context.Context, accountID, documentID string) (*domain.Document, error) {
	doc, err := uc.owned(ctx, accountID, documentID)
	if err != nil {
		return nil, err
	}

	if err := uc.repo.UpdateStatus(ctx, documentID,
		[]domain.DocumentStatus{domain.StatusFailed}, domain.StatusProcessing, "", ""); err != nil {
		return nil, err
	}

	if err := uc.queue.PublishAnalysisRequested(ctx, documentID); err != nil {
		// Dispatch never happened; put the document back so the user can
		// retry again once the queue recovers.
		revertErr := uc.repo.UpdateStatus(ctx, documentID,
			[]domain.DocumentStatus{domain.StatusProcessing}, domain.StatusFailed, "", "retry dispatch failed")
		if revertErr != nil {
			uc.logger.Error("retry revert failed", "document_id", documentID, "error", revertErr)
		}
		return nil, domain.WrapError(domain.ErrTemporary, "dispatch retry", err)
	}

	doc.Status = domain.StatusProcessing
	doc.Error = ""
	doc.UpdatedAt = time.Now().UTC()
	return doc, nil
}

// Delete removes the record (the repository decrements usage in the same
// transaction) and then the blob.
func (uc *LifecycleUseCase) Delete(ctx context.Context, accountID, documentID string) error {
	doc, err := uc.owned(ctx, accountID, documentID)
	if err != nil {
		return err
	}

	if _, err := uc.repo.Delete(ctx, documentID); err != nil {
		if domain.IsKind(err, domain.ErrDocumentNotFound) {
			return err
		}
		return domain.WrapError(domain.ErrStorage, "delete document record", err)
	}

	uc.ledger.Invalidate(accountID)
	uc.removeBlob(ctx, doc.StoragePath)
	return nil
}

func (uc *LifecycleUseCase) Get(ctx context.Context, accountID, documentID string) (*domain.Document, error) {
	return uc.owned(ctx, accountID, documentID)
}

func (uc *LifecycleUseCase) List(ctx context.Context, accountID string) ([]domain.Document, error) {
	if accountID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "list documents", errAccountRequired)
	}
	return uc.repo.ListByAccount(ctx, accountID)
}

// owned fetches a document and hides other accounts' documents behind
// not-found rather than leaking their existence.
func (uc *LifecycleUseCase) owned(ctx context.Context, accountID, documentID string) (*domain.Document, error) {
	if accountID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "resolve document", errAccountRequired)
	}
	doc, err := uc.repo.GetByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.AccountID != accountID {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "resolve document",
			fmt.Errorf("document %s not owned by account", documentID))
	}
	return doc, nil
}

func (uc *LifecycleUseCase) removeBlob(ctx context.Context, key string) {
	if err := uc.storage.Delete(ctx, key); err != nil {
		uc.logger.Warn("blob removal failed", "storage_key", key, "error", err)
	}
}

var errAccountRequired = fmt.Errorf("account id is required")

func validateUpload(accountID string, upload ports.UploadRequest, maxUploadBytes int64) error {
	switch {
	case accountID == "":
		return domain.WrapError(domain.ErrInvalidInput, "submit upload", errAccountRequired)
	case strings.TrimSpace(upload.FileName) == "":
		return domain.WrapError(domain.ErrInvalidInput, "submit upload", fmt.Errorf("file name is required"))
	case upload.SizeBytes < 0:
		return domain.WrapError(domain.ErrInvalidInput, "submit upload", fmt.Errorf("negative file size %d", upload.SizeBytes))
	case maxUploadBytes > 0 && upload.SizeBytes > maxUploadBytes:
		return domain.WrapError(domain.ErrInvalidInput, "submit upload",
			fmt.Errorf("file size %d exceeds upload cap %d", upload.SizeBytes, maxUploadBytes))
	case upload.Body == nil:
		return domain.WrapError(domain.ErrInvalidInput, "submit upload", fmt.Errorf("file body is required"))
	}
	return nil
}

func outcomeTarget(outcome domain.AnalysisOutcome) (domain.DocumentStatus, string, string, error) {
	switch outcome.Status {
	case domain.OutcomeSuccess:
		if outcome.ResultRef == "" {
			return "", "", "", domain.WrapError(domain.ErrInvalidInput, "apply analysis result",
				fmt.Errorf("success outcome without result reference"))
		}
		return domain.StatusAnalyzed, outcome.ResultRef, "", nil
	case domain.OutcomeError:
		reason := outcome.Reason
		if reason == "" {
			reason = "analysis failed"
		}
		return domain.StatusFailed, "", reason, nil
	case domain.OutcomeTimeout:
		reason := outcome.Reason
		if reason == "" {
			reason = "analysis timed out"
		}
		return domain.StatusFailed, "", reason, nil
	default:
		return "", "", "", domain.WrapError(domain.ErrInvalidInput, "apply analysis result",
			fmt.Errorf("unknown outcome status %q", outcome.Status))
	}
}

// withStorageRetry gives persistence one internal retry before surfacing.
func withStorageRetry(fn func() error) error {
	err := fn()
	if err != nil {
		err = fn()
	}
	return err
}

func sanitizeFileName(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" {
		return "document.bin"
	}
	return base
}
