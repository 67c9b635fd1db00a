package domain

// ActivityPoint counts documents created on one calendar day (UTC).
type ActivityPoint struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

type InsightsSummary struct {
	TotalDocuments    int                    `json:"total_documents"`
	ByStatus          map[DocumentStatus]int `json:"by_status"`
	TotalStorageBytes int64                  `json:"total_storage_bytes"`
	RecentActivity    []ActivityPoint        `json:"recent_activity"`
}
