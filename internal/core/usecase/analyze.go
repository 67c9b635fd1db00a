package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ametelin/docinsights/internal/core/domain"
	"github.com/ametelin/docinsights/internal/core/ports"
)

// AnalyzeDocumentUseCase is the worker side of the lifecycle: it marks a
// document processing, calls the analyzer under a deadline, and feeds the
// outcome back through the lifecycle callback.
type AnalyzeDocumentUseCase struct {
	repo      ports.DocumentRepository
	analyzer  ports.Analyzer
	lifecycle ports.DocumentLifecycle
	logger    *slog.Logger
	timeout   time.Duration
}

func NewAnalyzeDocumentUseCase(
	repo ports.DocumentRepository,
	analyzer ports.Analyzer,
	lifecycle ports.DocumentLifecycle,
	logger *slog.Logger,
	timeout time.Duration,
) *AnalyzeDocumentUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &AnalyzeDocumentUseCase{
		repo:      repo,
		analyzer:  analyzer,
		lifecycle: lifecycle,
		logger:    logger,
		timeout:   timeout,
	}
}

func (uc *AnalyzeDocumentUseCase) ProcessByID(ctx context.Context, documentID string) error {
	doc, err := uc.repo.GetByID(ctx, documentID)
	if err != nil {
		return fmt.Errorf("fetch document for analysis: %w", err)
	}

	proceed, err := uc.markProcessing(ctx, doc)
	if err != nil {
		return err
	}
	if !proceed {
		// Redelivered message for a finished document.
		return nil
	}

	outcome := uc.runAnalysis(ctx, doc)
	if err := uc.lifecycle.OnAnalysisResult(ctx, documentID, outcome); err != nil {
		return fmt.Errorf("apply analysis outcome: %w", err)
	}
	return nil
}

// markProcessing handles both the fresh upload path and the retry path,
// where the lifecycle already moved the document to processing before
// republishing.
func (uc *AnalyzeDocumentUseCase) markProcessing(ctx context.Context, doc *domain.Document) (bool, error) {
	switch doc.Status {
	case domain.StatusProcessing:
		return true, nil
	case domain.StatusAnalyzed, domain.StatusFailed:
		// failed re-enters processing only through a manual retry, which
		// republishes after flipping the status itself.
		return false, nil
	}

	err := uc.repo.UpdateStatus(ctx, doc.ID,
		[]domain.DocumentStatus{domain.StatusUploaded}, domain.StatusProcessing, "", "")
	if err == nil {
		return true, nil
	}
	if !domain.IsKind(err, domain.ErrInvalidTransition) {
		return false, fmt.Errorf("set status=processing: %w", err)
	}

	current, getErr := uc.repo.GetByID(ctx, doc.ID)
	if getErr != nil {
		return false, getErr
	}
	if current.Status == domain.StatusProcessing {
		return true, nil
	}
	return false, nil
}

func (uc *AnalyzeDocumentUseCase) runAnalysis(ctx context.Context, doc *domain.Document) domain.AnalysisOutcome {
	analyzeCtx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	resultRef, err := uc.analyzer.Analyze(analyzeCtx, doc)
	switch {
	case err == nil:
		return domain.AnalysisOutcome{Status: domain.OutcomeSuccess, ResultRef: resultRef}
	case domain.IsKind(err, domain.ErrTimeout) || errors.Is(err, context.DeadlineExceeded):
		uc.logger.Warn("analysis timed out", "document_id", doc.ID, "timeout", uc.timeout.String())
		return domain.AnalysisOutcome{Status: domain.OutcomeTimeout, Reason: err.Error()}
	default:
		uc.logger.Warn("analysis failed", "document_id", doc.ID, "error", err)
		return domain.AnalysisOutcome{Status: domain.OutcomeError, Reason: err.Error()}
	}
}
