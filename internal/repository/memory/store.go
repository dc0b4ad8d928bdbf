// Package memory provides in-process repositories for tests and local runs.
package memory

import (
	"context"
	"maps"
	"sync"

	"github.com/cmlabs-hris/leave-engine/internal/domain/employee"
	"github.com/cmlabs-hris/leave-engine/internal/domain/leave"
)

// Store holds every table. Stored values are never mutated in place, so a
// shallow copy of the maps is a consistent snapshot.
type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex

	accounts  map[leave.AccountKey]leave.LeaveAccount
	policies  map[leave.LeaveType]leave.LeavePolicy
	requests  map[string]leave.LeaveRequest
	employees map[string]employee.Employee
}

func NewStore() *Store {
	return &Store{
		accounts:  make(map[leave.AccountKey]leave.LeaveAccount),
		policies:  make(map[leave.LeaveType]leave.LeavePolicy),
		requests:  make(map[string]leave.LeaveRequest),
		employees: make(map[string]employee.Employee),
	}
}

type txKey struct{}

type snapshot struct {
	accounts  map[leave.AccountKey]leave.LeaveAccount
	policies  map[leave.LeaveType]leave.LeavePolicy
	requests  map[string]leave.LeaveRequest
	employees map[string]employee.Employee
}

func (s *Store) snapshot() snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshot{
		accounts:  maps.Clone(s.accounts),
		policies:  maps.Clone(s.policies),
		requests:  maps.Clone(s.requests),
		employees: maps.Clone(s.employees),
	}
}

func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts = snap.accounts
	s.policies = snap.policies
	s.requests = snap.requests
	s.employees = snap.employees
}

// WithinTransaction implements leave.Transactor. Transactions are fully
// serialized and rolled back from a snapshot on error or panic.
func (s *Store) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if inTx(ctx) {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	snap := s.snapshot()
	defer func() {
		if p := recover(); p != nil {
			s.restore(snap)
			panic(p)
		}
	}()

	if err = fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.restore(snap)
	}
	return err
}

func inTx(ctx context.Context) bool {
	v, _ := ctx.Value(txKey{}).(bool)
	return v
}

// Transactor returns the store as a leave.Transactor.
func (s *Store) Transactor() leave.Transactor {
	return s
}

func cloneAccount(a leave.LeaveAccount) leave.LeaveAccount {
	a.Transactions = append([]leave.LedgerTransaction(nil), a.Transactions...)
	return a
}

func cloneRequest(r leave.LeaveRequest) leave.LeaveRequest {
	r.ConflictDetails = append([]string(nil), r.ConflictDetails...)
	r.ApprovalWorkflow = append([]leave.ApprovalStep(nil), r.ApprovalWorkflow...)
	return r
}
