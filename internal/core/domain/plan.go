package domain

// Unlimited marks a plan limit with no enforcement.
const Unlimited int64 = -1

type Plan struct {
	ID              string   `json:"id" yaml:"id"`
	Name            string   `json:"name" yaml:"name"`
	MaxStorageBytes int64    `json:"max_storage_bytes" yaml:"max_storage_bytes"`
	MaxDocuments    int64    `json:"max_documents" yaml:"max_documents"`
	Features        []string `json:"features" yaml:"features"`
}

// PlanCatalog is the static plan configuration. Read-only at runtime.
type PlanCatalog struct {
	plans     map[string]Plan
	defaultID string
}

func NewPlanCatalog(plans []Plan, defaultID string) *PlanCatalog {
	byID := make(map[string]Plan, len(plans))
	for _, p := range plans {
		byID[p.ID] = p
	}
	if _, ok := byID[defaultID]; !ok && len(plans) > 0 {
		defaultID = plans[0].ID
	}
	return &PlanCatalog{plans: byID, defaultID: defaultID}
}

// Resolve returns the plan for id, falling back to the default plan for
// unknown or empty ids.
func (c *PlanCatalog) Resolve(id string) Plan {
	if p, ok := c.plans[id]; ok {
		return p
	}
	return c.plans[c.defaultID]
}

func (c *PlanCatalog) DefaultID() string {
	return c.defaultID
}

// DefaultPlans is the built-in catalog used when no plan file is configured.
func DefaultPlans() []Plan {
	return []Plan{
		{
			ID:              "free",
			Name:            "Free",
			MaxStorageBytes: 100 << 20,
			MaxDocuments:    100,
			Features:        []string{"insights"},
		},
		{
			ID:              "pro",
			Name:            "Pro",
			MaxStorageBytes: 10 << 30,
			MaxDocuments:    2000,
			Features:        []string{"insights", "export"},
		},
		{
			ID:              "business",
			Name:            "Business",
			MaxStorageBytes: Unlimited,
			MaxDocuments:    Unlimited,
			Features:        []string{"insights", "export", "priority"},
		},
	}
}
