package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/cmlabs-hris/leave-engine/internal/domain/leave"
)

type leaveAccountRepository struct {
	store *Store
}

func NewLeaveAccountRepository(store *Store) leave.AccountRepository {
	return &leaveAccountRepository{store: store}
}

func (r *leaveAccountRepository) Get(_ context.Context, key leave.AccountKey) (leave.LeaveAccount, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	account, ok := r.store.accounts[key]
	if !ok {
		return leave.LeaveAccount{}, fmt.Errorf("%w: %s", leave.ErrAccountNotFound, key)
	}
	return cloneAccount(account), nil
}

func (r *leaveAccountRepository) ListByEmployee(_ context.Context, employeeID string, year int) ([]leave.LeaveAccount, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	accounts := make([]leave.LeaveAccount, 0)
	for key, account := range r.store.accounts {
		if key.EmployeeID == employeeID && key.Year == year {
			a := cloneAccount(account)
			a.Transactions = nil
			accounts = append(accounts, a)
		}
	}
	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].LeaveType < accounts[j].LeaveType
	})
	return accounts, nil
}

func (r *leaveAccountRepository) CreateIfAbsent(ctx context.Context, account leave.LeaveAccount) (bool, error) {
	created := false
	err := r.store.WithinTransaction(ctx, func(ctx context.Context) error {
		r.store.mu.Lock()
		defer r.store.mu.Unlock()

		key := account.Key()
		if _, exists := r.store.accounts[key]; exists {
			return nil
		}
		r.store.accounts[key] = cloneAccount(account)
		created = true
		return nil
	})
	return created, err
}

func (r *leaveAccountRepository) Mutate(ctx context.Context, key leave.AccountKey, fn leave.MutateFunc) (leave.LeaveAccount, error) {
	var result leave.LeaveAccount
	err := r.store.WithinTransaction(ctx, func(ctx context.Context) error {
		account, err := r.Get(ctx, key)
		if err != nil {
			return err
		}
		if err := fn(&account); err != nil {
			return err
		}

		r.store.mu.Lock()
		r.store.accounts[key] = cloneAccount(account)
		r.store.mu.Unlock()

		result = account
		return nil
	})
	return result, err
}

func (r *leaveAccountRepository) Transactions(ctx context.Context, key leave.AccountKey) ([]leave.LedgerTransaction, error) {
	account, err := r.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return account.Transactions, nil
}

// PutAccount overwrites an account. Used to seed fixtures.
func (s *Store) PutAccount(account leave.LeaveAccount) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[account.Key()] = cloneAccount(account)
}
