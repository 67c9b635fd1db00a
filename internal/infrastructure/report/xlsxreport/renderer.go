// Package xlsxreport renders the insights summary as a spreadsheet for the
// dashboard's export action.
package xlsxreport

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/ametelin/docinsights/internal/core/domain"
)

type Renderer struct{}

func NewRenderer() *Renderer {
	return &Renderer{}
}

func (r *Renderer) RenderSummary(summary domain.InsightsSummary) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	const summarySheet = "Summary"
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, fmt.Errorf("rename summary sheet: %w", err)
	}

	rows := [][]any{
		{"Metric", "Value"},
		{"Total documents", summary.TotalDocuments},
		{"Total storage (bytes)", summary.TotalStorageBytes},
		{"Uploaded", summary.ByStatus[domain.StatusUploaded]},
		{"Processing", summary.ByStatus[domain.StatusProcessing]},
		{"Analyzed", summary.ByStatus[domain.StatusAnalyzed]},
		{"Failed", summary.ByStatus[domain.StatusFailed]},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return nil, fmt.Errorf("summary cell name: %w", err)
		}
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return nil, fmt.Errorf("write summary row: %w", err)
		}
	}

	const activitySheet = "Recent Activity"
	if _, err := f.NewSheet(activitySheet); err != nil {
		return nil, fmt.Errorf("create activity sheet: %w", err)
	}
	header := []any{"Date", "Documents created"}
	if err := f.SetSheetRow(activitySheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("write activity header: %w", err)
	}
	for i, point := range summary.RecentActivity {
		row := []any{point.Date, point.Count}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, fmt.Errorf("activity cell name: %w", err)
		}
		if err := f.SetSheetRow(activitySheet, cell, &row); err != nil {
			return nil, fmt.Errorf("write activity row: %w", err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("serialize workbook: %w", err)
	}
	return buf.Bytes(), nil
}
