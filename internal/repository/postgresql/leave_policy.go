package postgresql

import (
	"context"
	"errors"
	"fmt"

	"github.com/cmlabs-hris/leave-engine/internal/domain/leave"
	"github.com/cmlabs-hris/leave-engine/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

type leavePolicyRepositoryImpl struct {
	db *database.DB
}

func NewLeavePolicyRepository(db *database.DB) leave.PolicyRepository {
	return &leavePolicyRepositoryImpl{db: db}
}

// ListActive implements leave.PolicyRepository.
func (r *leavePolicyRepositoryImpl) ListActive(ctx context.Context) ([]leave.LeavePolicy, error) {
	q := GetQuerier(ctx, r.db)

	rows, err := q.Query(ctx, `
		SELECT leave_type, default_allocation, is_active, allow_carry_forward, max_carry_forward
		FROM leave_policies
		WHERE is_active = TRUE
		ORDER BY leave_type
	`)
	if err != nil {
		return nil, fmt.Errorf("list leave policies: %w", err)
	}
	defer rows.Close()

	policies := make([]leave.LeavePolicy, 0)
	for rows.Next() {
		var p leave.LeavePolicy
		if err := rows.Scan(&p.LeaveType, &p.DefaultAllocation, &p.IsActive, &p.AllowCarryForward, &p.MaxCarryForward); err != nil {
			return nil, err
		}
		policies = append(policies, p)
	}
	return policies, rows.Err()
}

// Get implements leave.PolicyRepository.
func (r *leavePolicyRepositoryImpl) Get(ctx context.Context, leaveType leave.LeaveType) (leave.LeavePolicy, error) {
	q := GetQuerier(ctx, r.db)

	var p leave.LeavePolicy
	err := q.QueryRow(ctx, `
		SELECT leave_type, default_allocation, is_active, allow_carry_forward, max_carry_forward
		FROM leave_policies
		WHERE leave_type = $1
	`, leaveType).Scan(&p.LeaveType, &p.DefaultAllocation, &p.IsActive, &p.AllowCarryForward, &p.MaxCarryForward)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return leave.LeavePolicy{}, fmt.Errorf("%w: %s", leave.ErrPolicyNotFound, leaveType)
		}
		return leave.LeavePolicy{}, fmt.Errorf("get leave policy: %w", err)
	}
	return p, nil
}

// Upsert implements leave.PolicyRepository.
func (r *leavePolicyRepositoryImpl) Upsert(ctx context.Context, p leave.LeavePolicy) error {
	q := GetQuerier(ctx, r.db)

	_, err := q.Exec(ctx, `
		INSERT INTO leave_policies (leave_type, default_allocation, is_active, allow_carry_forward, max_carry_forward, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (leave_type) DO UPDATE SET
			default_allocation = EXCLUDED.default_allocation,
			is_active = EXCLUDED.is_active,
			allow_carry_forward = EXCLUDED.allow_carry_forward,
			max_carry_forward = EXCLUDED.max_carry_forward,
			updated_at = NOW()
	`, p.LeaveType, p.DefaultAllocation, p.IsActive, p.AllowCarryForward, p.MaxCarryForward)
	if err != nil {
		return fmt.Errorf("upsert leave policy: %w", err)
	}
	return nil
}
