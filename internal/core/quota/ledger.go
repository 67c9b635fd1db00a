// Package quota implements the per-account usage ledger. Reservations are
// tentative increments held in memory until committed to the store or
// released; the per-account lock is what keeps two concurrent uploads from
// both passing a check only one of them fits in.
package quota

import (
	"context"
	"fmt"
	"sync"

	"github.com/ametelin/docinsights/internal/core/domain"
	"github.com/ametelin/docinsights/internal/core/ports"
)

type Ledger struct {
	store ports.QuotaStore
	plans *domain.PlanCatalog

	mu       sync.Mutex
	accounts map[string]*accountState
}

type accountState struct {
	mu           sync.Mutex
	loaded       bool
	usage        domain.Usage
	pendingBytes int64
	pendingDocs  int64
}

func NewLedger(store ports.QuotaStore, plans *domain.PlanCatalog) *Ledger {
	return &Ledger{
		store:    store,
		plans:    plans,
		accounts: make(map[string]*accountState),
	}
}

func (l *Ledger) state(accountID string) *accountState {
	l.mu.Lock()
	defer l.mu.Unlock()

	st, ok := l.accounts[accountID]
	if !ok {
		st = &accountState{}
		l.accounts[accountID] = st
	}
	return st
}

// load refreshes the committed usage from the store. Callers hold st.mu.
func (l *Ledger) load(ctx context.Context, accountID string, st *accountState) error {
	if st.loaded {
		return nil
	}
	usage, err := l.store.GetUsage(ctx, accountID)
	if err != nil {
		// One internal retry before surfacing, per the storage error policy.
		usage, err = l.store.GetUsage(ctx, accountID)
	}
	if err != nil {
		return domain.WrapError(domain.ErrStorage, "load quota usage", err)
	}
	st.usage = usage
	st.loaded = true
	return nil
}

func (l *Ledger) Reserve(ctx context.Context, accountID string, sizeBytes int64) error {
	if sizeBytes < 0 {
		return domain.WrapError(domain.ErrInvalidInput, "reserve quota", fmt.Errorf("negative size %d", sizeBytes))
	}

	st := l.state(accountID)
	st.mu.Lock()
	defer st.mu.Unlock()

	if err := l.load(ctx, accountID, st); err != nil {
		return err
	}

	plan := l.plans.Resolve(st.usage.PlanID)
	if plan.MaxStorageBytes != domain.Unlimited {
		if st.usage.BytesUsed+st.pendingBytes+sizeBytes > plan.MaxStorageBytes {
			return domain.WrapError(domain.ErrQuotaExceeded, "reserve quota",
				fmt.Errorf("storage: %d+%d bytes over limit %d", st.usage.BytesUsed+st.pendingBytes, sizeBytes, plan.MaxStorageBytes))
		}
	}
	if plan.MaxDocuments != domain.Unlimited {
		if st.usage.DocumentCount+st.pendingDocs+1 > plan.MaxDocuments {
			return domain.WrapError(domain.ErrQuotaExceeded, "reserve quota",
				fmt.Errorf("documents: %d over limit %d", st.usage.DocumentCount+st.pendingDocs+1, plan.MaxDocuments))
		}
	}

	st.pendingBytes += sizeBytes
	st.pendingDocs++
	return nil
}

// Commit finalizes a reservation after the repository persisted the record
// together with the usage increment. Only the cache moves here.
func (l *Ledger) Commit(accountID string, sizeBytes int64) {
	st := l.state(accountID)
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.loaded {
		st.usage.BytesUsed += sizeBytes
		st.usage.DocumentCount++
	}
	st.pendingBytes -= sizeBytes
	st.pendingDocs--
	l.clampPending(st)
}

// Release reverts a reservation that never reached Commit.
func (l *Ledger) Release(accountID string, sizeBytes int64) {
	st := l.state(accountID)
	st.mu.Lock()
	defer st.mu.Unlock()

	st.pendingBytes -= sizeBytes
	st.pendingDocs--
	l.clampPending(st)
}

// Invalidate marks the cached committed usage stale. Used after deletions,
// where the record removal and the usage decrement happen in one store
// transaction outside the ledger.
func (l *Ledger) Invalidate(accountID string) {
	st := l.state(accountID)
	st.mu.Lock()
	defer st.mu.Unlock()
	st.loaded = false
}

func (l *Ledger) Report(ctx context.Context, accountID string) (domain.QuotaReport, error) {
	st := l.state(accountID)
	st.mu.Lock()
	defer st.mu.Unlock()

	if err := l.load(ctx, accountID, st); err != nil {
		return domain.QuotaReport{}, err
	}

	plan := l.plans.Resolve(st.usage.PlanID)
	return domain.QuotaReport{
		PlanID:   plan.ID,
		PlanName: plan.Name,
		Storage: domain.ResourceQuota{
			Current: st.usage.BytesUsed,
			Limit:   plan.MaxStorageBytes,
			Unit:    "bytes",
		},
		Documents: domain.ResourceQuota{
			Current: st.usage.DocumentCount,
			Limit:   plan.MaxDocuments,
			Unit:    "documents",
		},
	}, nil
}

func (l *Ledger) clampPending(st *accountState) {
	if st.pendingBytes < 0 {
		st.pendingBytes = 0
	}
	if st.pendingDocs < 0 {
		st.pendingDocs = 0
	}
}
