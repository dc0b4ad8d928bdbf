package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/cmlabs-hris/leave-engine/internal/domain/leave"
)

type leavePolicyRepository struct {
	store *Store
}

func NewLeavePolicyRepository(store *Store) leave.PolicyRepository {
	return &leavePolicyRepository{store: store}
}

func (r *leavePolicyRepository) ListActive(_ context.Context) ([]leave.LeavePolicy, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	policies := make([]leave.LeavePolicy, 0, len(r.store.policies))
	for _, p := range r.store.policies {
		if p.IsActive {
			policies = append(policies, p)
		}
	}
	sort.Slice(policies, func(i, j int) bool {
		return policies[i].LeaveType < policies[j].LeaveType
	})
	return policies, nil
}

func (r *leavePolicyRepository) Get(_ context.Context, leaveType leave.LeaveType) (leave.LeavePolicy, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	p, ok := r.store.policies[leaveType]
	if !ok {
		return leave.LeavePolicy{}, fmt.Errorf("%w: %s", leave.ErrPolicyNotFound, leaveType)
	}
	return p, nil
}

func (r *leavePolicyRepository) Upsert(ctx context.Context, p leave.LeavePolicy) error {
	return r.store.WithinTransaction(ctx, func(ctx context.Context) error {
		r.store.mu.Lock()
		defer r.store.mu.Unlock()
		r.store.policies[p.LeaveType] = p
		return nil
	})
}
