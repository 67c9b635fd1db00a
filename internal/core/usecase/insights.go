package usecase

import (
	"context"
	"time"

	"github.com/ametelin/docinsights/internal/core/domain"
	"github.com/ametelin/docinsights/internal/core/ports"
)

const defaultActivityWindowDays = 14

// InsightsUseCase computes the analytics view from the current document
// records. It is a pure read; freshness follows the store.
type InsightsUseCase struct {
	repo     ports.DocumentRepository
	renderer ports.ReportRenderer

	activityWindowDays int
	now                func() time.Time
}

func NewInsightsUseCase(repo ports.DocumentRepository, renderer ports.ReportRenderer) *InsightsUseCase {
	return &InsightsUseCase{
		repo:               repo,
		renderer:           renderer,
		activityWindowDays: defaultActivityWindowDays,
		now:                time.Now,
	}
}

func (uc *InsightsUseCase) Summarize(ctx context.Context, accountID string) (domain.InsightsSummary, error) {
	docs, err := uc.repo.ListByAccount(ctx, accountID)
	if err != nil {
		return domain.InsightsSummary{}, err
	}

	summary := domain.InsightsSummary{
		ByStatus: map[domain.DocumentStatus]int{
			domain.StatusUploaded:   0,
			domain.StatusProcessing: 0,
			domain.StatusAnalyzed:   0,
			domain.StatusFailed:     0,
		},
	}

	byDay := make(map[string]int)
	for _, doc := range docs {
		summary.TotalDocuments++
		summary.TotalStorageBytes += doc.SizeBytes
		summary.ByStatus[doc.Status]++
		byDay[doc.CreatedAt.UTC().Format("2006-01-02")]++
	}

	summary.RecentActivity = uc.activitySeries(byDay)
	return summary, nil
}

func (uc *InsightsUseCase) ExportXLSX(ctx context.Context, accountID string) ([]byte, error) {
	summary, err := uc.Summarize(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return uc.renderer.RenderSummary(summary)
}

// activitySeries zero-fills the trailing window so the dashboard chart gets
// one point per day, oldest first.
func (uc *InsightsUseCase) activitySeries(byDay map[string]int) []domain.ActivityPoint {
	today := uc.now().UTC().Truncate(24 * time.Hour)
	points := make([]domain.ActivityPoint, 0, uc.activityWindowDays)
	for i := uc.activityWindowDays - 1; i >= 0; i-- {
		date := today.AddDate(0, 0, -i).Format("2006-01-02")
		points = append(points, domain.ActivityPoint{Date: date, Count: byDay[date]})
	}
	return points
}
