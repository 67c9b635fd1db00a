package domain

import "time"

type DocumentStatus string

const (
	StatusUploaded   DocumentStatus = "uploaded"
	StatusProcessing DocumentStatus = "processing"
	StatusAnalyzed   DocumentStatus = "analyzed"
	StatusFailed     DocumentStatus = "failed"
)

// legalTransitions is the full lifecycle table. analyzed is terminal;
// failed may only re-enter processing through a manual retry.
var legalTransitions = map[DocumentStatus][]DocumentStatus{
	StatusUploaded:   {StatusProcessing},
	StatusProcessing: {StatusAnalyzed, StatusFailed},
	StatusAnalyzed:   {},
	StatusFailed:     {StatusProcessing},
}

func (s DocumentStatus) CanTransitionTo(next DocumentStatus) bool {
	for _, allowed := range legalTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s DocumentStatus) IsTerminal() bool {
	return s == StatusAnalyzed
}

func (s DocumentStatus) Valid() bool {
	_, ok := legalTransitions[s]
	return ok
}

type Document struct {
	ID          string         `json:"id"`
	AccountID   string         `json:"account_id"`
	FileName    string         `json:"file_name"`
	FileType    string         `json:"file_type"`
	SizeBytes   int64          `json:"file_size"`
	PageCount   int            `json:"page_count,omitempty"`
	StoragePath string         `json:"storage_path"`
	Status      DocumentStatus `json:"status"`
	ResultRef   string         `json:"result_ref,omitempty"`
	Error       string         `json:"error,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

type OutcomeStatus string

const (
	OutcomeSuccess OutcomeStatus = "success"
	OutcomeError   OutcomeStatus = "error"
	OutcomeTimeout OutcomeStatus = "timeout"
)

// AnalysisOutcome is what the analyzer collaborator reports back for a
// dispatched document.
type AnalysisOutcome struct {
	Status    OutcomeStatus `json:"status"`
	ResultRef string        `json:"result_ref,omitempty"`
	Reason    string        `json:"reason,omitempty"`
}

type FileMetadata struct {
	PageCount int
}
