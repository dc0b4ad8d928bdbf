// Package ledger is the system of record for leave-day balances.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/leave-engine/internal/domain/leave"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Service struct {
	tx       leave.Transactor
	accounts leave.AccountRepository
	policies leave.PolicyRepository
	events   leave.EventPublisher
	now      func() time.Time
}

type Option func(*Service)

// WithClock overrides time.Now for ledger timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(tx leave.Transactor, accounts leave.AccountRepository, policies leave.PolicyRepository, events leave.EventPublisher, opts ...Option) *Service {
	s := &Service{
		tx:       tx,
		accounts: accounts,
		policies: policies,
		events:   events,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ leave.LedgerService = (*Service)(nil)

func newID() string {
	return uuid.Must(uuid.NewV7()).String()
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (s *Service) InitializeAccounts(ctx context.Context, employeeID string, year int) ([]leave.LeaveAccount, error) {
	if employeeID == "" {
		return nil, fmt.Errorf("%w: employee id is required", leave.ErrValidation)
	}

	var accounts []leave.LeaveAccount
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		policies, err := s.policies.ListActive(ctx)
		if err != nil {
			return fmt.Errorf("failed to list active leave policies: %w", err)
		}

		now := s.now()
		for _, p := range policies {
			key := leave.AccountKey{EmployeeID: employeeID, LeaveType: p.LeaveType, Year: year}
			created, err := s.accounts.CreateIfAbsent(ctx, leave.NewAccount(newID(), key, p, newID(), now))
			if err != nil {
				return fmt.Errorf("failed to create leave account %s: %w", key, err)
			}
			if created {
				slog.InfoContext(ctx, "leave account initialized", "account", key.String(), "allocation", p.DefaultAllocation.String())
			}
		}

		accounts, err = s.accounts.ListByEmployee(ctx, employeeID, year)
		if err != nil {
			return fmt.Errorf("failed to list leave accounts: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return accounts, nil
}

// ensureAccount returns the account for key, seeding it from the active
// policy when it does not exist yet.
func (s *Service) ensureAccount(ctx context.Context, key leave.AccountKey) (leave.LeaveAccount, error) {
	account, err := s.accounts.Get(ctx, key)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, leave.ErrAccountNotFound) {
		return leave.LeaveAccount{}, fmt.Errorf("failed to get leave account: %w", err)
	}

	policy, err := s.policies.Get(ctx, key.LeaveType)
	if err != nil {
		if errors.Is(err, leave.ErrPolicyNotFound) {
			return leave.LeaveAccount{}, fmt.Errorf("%w: no policy for %s", leave.ErrAccountNotFound, key.LeaveType)
		}
		return leave.LeaveAccount{}, fmt.Errorf("failed to get leave policy: %w", err)
	}
	if !policy.IsActive {
		return leave.LeaveAccount{}, fmt.Errorf("%w: policy for %s is inactive", leave.ErrAccountNotFound, key.LeaveType)
	}

	if _, err := s.accounts.CreateIfAbsent(ctx, leave.NewAccount(newID(), key, policy, newID(), s.now())); err != nil {
		return leave.LeaveAccount{}, fmt.Errorf("failed to create leave account %s: %w", key, err)
	}
	return s.accounts.Get(ctx, key)
}

func (s *Service) CheckBalance(ctx context.Context, employeeID string, leaveType leave.LeaveType, days decimal.Decimal, year int) (leave.BalanceCheck, error) {
	if !leaveType.IsValid() {
		return leave.BalanceCheck{}, fmt.Errorf("%w: unknown leave type %q", leave.ErrValidation, leaveType)
	}
	if !days.IsPositive() {
		return leave.BalanceCheck{}, fmt.Errorf("%w: days must be positive", leave.ErrValidation)
	}

	key := leave.AccountKey{EmployeeID: employeeID, LeaveType: leaveType, Year: year}
	var account leave.LeaveAccount
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		account, err = s.ensureAccount(ctx, key)
		return err
	})
	if err != nil {
		return leave.BalanceCheck{}, err
	}

	return leave.NewBalanceCheck(leaveType, account.Available(), days), nil
}

func validateMutation(p leave.MutationParams) error {
	if p.EmployeeID == "" || !p.LeaveType.IsValid() {
		return fmt.Errorf("%w: employee id and a known leave type are required", leave.ErrValidation)
	}
	if !p.Days.IsPositive() {
		return fmt.Errorf("%w: days must be positive", leave.ErrValidation)
	}
	return nil
}

// mutate applies tx to the locked account unless the request already has
// an entry for the same operation.
func (s *Service) mutate(ctx context.Context, p leave.MutationParams, build func(a *leave.LeaveAccount) (leave.LedgerTransaction, error)) (leave.LeaveAccount, error) {
	if err := validateMutation(p); err != nil {
		return leave.LeaveAccount{}, err
	}

	key := p.Key()
	var result leave.LeaveAccount
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		result, err = s.accounts.Mutate(ctx, key, func(a *leave.LeaveAccount) error {
			tx, err := build(a)
			if err != nil {
				return err
			}
			if a.HasOperation(tx.Operation, p.LeaveRequestID) {
				slog.InfoContext(ctx, "ledger operation already recorded",
					"account", key.String(), "operation", tx.Operation, "leave_request_id", p.LeaveRequestID)
				return nil
			}
			a.Apply(tx)
			return a.Validate()
		})
		return err
	})
	if err != nil {
		return leave.LeaveAccount{}, err
	}
	return result, nil
}

func (s *Service) Reserve(ctx context.Context, p leave.MutationParams) (leave.LeaveAccount, error) {
	return s.mutate(ctx, p, func(a *leave.LeaveAccount) (leave.LedgerTransaction, error) {
		return leave.LedgerTransaction{
			ID:             newID(),
			Type:           leave.TransactionUsed,
			Operation:      leave.OperationReserve,
			Amount:         p.Days,
			PendingDelta:   p.Days,
			Date:           s.now(),
			Description:    "reserved for pending request",
			LeaveRequestID: strPtr(p.LeaveRequestID),
		}, nil
	})
}

func (s *Service) Confirm(ctx context.Context, p leave.MutationParams) (leave.LeaveAccount, error) {
	return s.mutate(ctx, p, func(a *leave.LeaveAccount) (leave.LedgerTransaction, error) {
		if !a.HasOperation(leave.OperationConfirm, p.LeaveRequestID) && a.Pending.LessThan(p.Days) {
			return leave.LedgerTransaction{}, fmt.Errorf("%w: confirm %s exceeds pending %s on %s",
				leave.ErrInvariantViolation, p.Days, a.Pending, a.Key())
		}
		return leave.LedgerTransaction{
			ID:             newID(),
			Type:           leave.TransactionUsed,
			Operation:      leave.OperationConfirm,
			Amount:         p.Days,
			PendingDelta:   p.Days.Neg(),
			UsedDelta:      p.Days,
			Date:           s.now(),
			Description:    "confirmed on approval",
			LeaveRequestID: strPtr(p.LeaveRequestID),
		}, nil
	})
}

func (s *Service) Release(ctx context.Context, p leave.MutationParams) (leave.LeaveAccount, error) {
	return s.mutate(ctx, p, func(a *leave.LeaveAccount) (leave.LedgerTransaction, error) {
		if !a.HasOperation(leave.OperationRelease, p.LeaveRequestID) && a.Pending.LessThan(p.Days) {
			return leave.LedgerTransaction{}, fmt.Errorf("%w: release %s exceeds pending %s on %s",
				leave.ErrInvariantViolation, p.Days, a.Pending, a.Key())
		}
		description := "released"
		if p.Reason != "" {
			description = "released: " + p.Reason
		}
		return leave.LedgerTransaction{
			ID:             newID(),
			Type:           leave.TransactionAdjustment,
			Operation:      leave.OperationRelease,
			Amount:         p.Days,
			PendingDelta:   p.Days.Neg(),
			Date:           s.now(),
			Description:    description,
			LeaveRequestID: strPtr(p.LeaveRequestID),
		}, nil
	})
}

// Adjust changes TotalAllocated by a signed delta. Callers check that the
// actor is an admin.
func (s *Service) Adjust(ctx context.Context, p leave.AdjustParams) (leave.LeaveAccount, error) {
	if p.EmployeeID == "" || !p.LeaveType.IsValid() {
		return leave.LeaveAccount{}, fmt.Errorf("%w: employee id and a known leave type are required", leave.ErrValidation)
	}
	if p.Delta.IsZero() {
		return leave.LeaveAccount{}, fmt.Errorf("%w: delta must not be zero", leave.ErrValidation)
	}
	if p.Reason == "" {
		return leave.LeaveAccount{}, fmt.Errorf("%w: adjustment reason is required", leave.ErrValidation)
	}

	key := leave.AccountKey{EmployeeID: p.EmployeeID, LeaveType: p.LeaveType, Year: p.Year}
	var result leave.LeaveAccount
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.ensureAccount(ctx, key); err != nil {
			return err
		}
		var err error
		result, err = s.accounts.Mutate(ctx, key, func(a *leave.LeaveAccount) error {
			a.Apply(leave.LedgerTransaction{
				ID:             newID(),
				Type:           leave.TransactionAdjustment,
				Operation:      leave.OperationAdjust,
				Amount:         p.Delta,
				AllocatedDelta: p.Delta,
				Date:           s.now(),
				Description:    p.Reason,
				ActorID:        strPtr(p.ActorID),
			})
			return a.Validate()
		})
		return err
	})
	if err != nil {
		return leave.LeaveAccount{}, err
	}

	slog.InfoContext(ctx, "leave balance adjusted",
		"account", key.String(), "delta", p.Delta.String(), "actor_id", p.ActorID)
	s.publish(ctx, leave.Event{
		Type:    leave.EventBalanceAdjusted,
		ActorID: p.ActorID,
		Account: &result,
		Delta:   p.Delta,
		Reason:  p.Reason,
	})
	return result, nil
}

func carryForwardTag(fromYear int) string {
	return fmt.Sprintf("carry-forward-%d", fromYear)
}

// CarryForward credits the capped remaining balance of fromYear to the
// CarriedForward counter of fromYear+1. It runs at most once per key.
func (s *Service) CarryForward(ctx context.Context, employeeID string, leaveType leave.LeaveType, fromYear int, actorID string) (leave.LeaveAccount, error) {
	if employeeID == "" || !leaveType.IsValid() {
		return leave.LeaveAccount{}, fmt.Errorf("%w: employee id and a known leave type are required", leave.ErrValidation)
	}

	policy, err := s.policies.Get(ctx, leaveType)
	if err != nil {
		return leave.LeaveAccount{}, fmt.Errorf("failed to get leave policy: %w", err)
	}
	if !policy.AllowCarryForward {
		return leave.LeaveAccount{}, fmt.Errorf("%w: %s leave cannot be carried forward", leave.ErrValidation, leaveType)
	}

	from := leave.AccountKey{EmployeeID: employeeID, LeaveType: leaveType, Year: fromYear}
	to := leave.AccountKey{EmployeeID: employeeID, LeaveType: leaveType, Year: fromYear + 1}
	tag := carryForwardTag(fromYear)

	var result leave.LeaveAccount
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		// Lock the source so the amount comes from a consistent snapshot.
		source, err := s.accounts.Mutate(ctx, from, func(*leave.LeaveAccount) error { return nil })
		if err != nil {
			return err
		}
		amount := decimal.Max(source.Available(), decimal.Zero)
		if policy.MaxCarryForward.IsPositive() {
			amount = decimal.Min(amount, policy.MaxCarryForward)
		}

		if _, err := s.ensureAccount(ctx, to); err != nil {
			return err
		}
		result, err = s.accounts.Mutate(ctx, to, func(a *leave.LeaveAccount) error {
			if a.HasOperation(leave.OperationCarryForward, tag) {
				return leave.ErrCarryForwardDone
			}
			a.Apply(leave.LedgerTransaction{
				ID:                  newID(),
				Type:                leave.TransactionAllocation,
				Operation:           leave.OperationCarryForward,
				Amount:              amount,
				CarriedForwardDelta: amount,
				Date:                s.now(),
				Description:         fmt.Sprintf("carried forward from %d", fromYear),
				LeaveRequestID:      &tag,
				ActorID:             strPtr(actorID),
			})
			return a.Validate()
		})
		return err
	})
	if err != nil {
		return leave.LeaveAccount{}, err
	}

	slog.InfoContext(ctx, "leave balance carried forward", "account", to.String(), "from_year", fromYear)
	return result, nil
}

func (s *Service) GetAccount(ctx context.Context, key leave.AccountKey) (leave.LeaveAccount, error) {
	return s.accounts.Get(ctx, key)
}

func (s *Service) ListAccounts(ctx context.Context, employeeID string, year int) ([]leave.LeaveAccount, error) {
	return s.accounts.ListByEmployee(ctx, employeeID, year)
}

func (s *Service) History(ctx context.Context, key leave.AccountKey) ([]leave.LedgerTransaction, error) {
	if _, err := s.accounts.Get(ctx, key); err != nil {
		return nil, err
	}
	return s.accounts.Transactions(ctx, key)
}

// Reconcile replays the transaction log and compares it with the stored counters.
func (s *Service) Reconcile(ctx context.Context, key leave.AccountKey) (leave.ReconcileResult, error) {
	account, err := s.accounts.Get(ctx, key)
	if err != nil {
		return leave.ReconcileResult{}, err
	}
	txs, err := s.accounts.Transactions(ctx, key)
	if err != nil {
		return leave.ReconcileResult{}, fmt.Errorf("failed to load ledger transactions: %w", err)
	}

	stored := account.Counters()
	replayed := leave.Replay(txs)
	result := leave.ReconcileResult{
		Key:      key,
		Stored:   stored,
		Replayed: replayed,
		Drift:    !stored.Equal(replayed) || !account.Remaining.Equal(replayed.Remaining()),
		Stale:    account.Remaining.Sub(stored.Remaining()),
	}
	if result.Drift {
		slog.WarnContext(ctx, "ledger drift detected", "account", key.String(),
			"stored_remaining", account.Remaining.String(), "replayed_remaining", replayed.Remaining().String())
	}
	return result, nil
}

func (s *Service) publish(ctx context.Context, event leave.Event) {
	if s.events == nil {
		return
	}
	event.ID = newID()
	event.OccurredAt = s.now()
	s.events.Publish(ctx, event)
}
