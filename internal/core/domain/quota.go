package domain

// Usage is the persisted per-account consumption snapshot.
type Usage struct {
	AccountID     string `json:"account_id"`
	PlanID        string `json:"plan_id"`
	BytesUsed     int64  `json:"bytes_used"`
	DocumentCount int64  `json:"document_count"`
}

// ResourceQuota is one resource line of the quota readout, shaped the way
// the dashboard quota widget consumes it.
type ResourceQuota struct {
	Current int64  `json:"current"`
	Limit   int64  `json:"limit"`
	Unit    string `json:"unit"`
}

type QuotaReport struct {
	PlanID    string        `json:"plan_id"`
	PlanName  string        `json:"plan_name"`
	Storage   ResourceQuota `json:"storage"`
	Documents ResourceQuota `json:"documents"`
}
