package postgresql

import (
	"context"
	"errors"
	"fmt"

	"github.com/cmlabs-hris/leave-engine/internal/domain/leave"
	"github.com/cmlabs-hris/leave-engine/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

const selectLeaveAccount = `
	SELECT id, employee_id, leave_type, year,
		   total_allocated, carried_forward, used, pending, remaining,
		   last_updated, created_at
	FROM leave_accounts
`

type leaveAccountRepositoryImpl struct {
	db *database.DB
}

func NewLeaveAccountRepository(db *database.DB) leave.AccountRepository {
	return &leaveAccountRepositoryImpl{db: db}
}

func scanLeaveAccount(row pgx.Row) (leave.LeaveAccount, error) {
	var a leave.LeaveAccount
	err := row.Scan(
		&a.ID, &a.EmployeeID, &a.LeaveType, &a.Year,
		&a.TotalAllocated, &a.CarriedForward, &a.Used, &a.Pending, &a.Remaining,
		&a.LastUpdated, &a.CreatedAt,
	)
	return a, err
}

// Get implements leave.AccountRepository.
func (r *leaveAccountRepositoryImpl) Get(ctx context.Context, key leave.AccountKey) (leave.LeaveAccount, error) {
	q := GetQuerier(ctx, r.db)

	account, err := scanLeaveAccount(q.QueryRow(ctx,
		selectLeaveAccount+` WHERE employee_id = $1 AND leave_type = $2 AND year = $3`,
		key.EmployeeID, key.LeaveType, key.Year,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return leave.LeaveAccount{}, fmt.Errorf("%w: %s", leave.ErrAccountNotFound, key)
		}
		return leave.LeaveAccount{}, fmt.Errorf("get leave account: %w", err)
	}
	return account, nil
}

// ListByEmployee implements leave.AccountRepository.
func (r *leaveAccountRepositoryImpl) ListByEmployee(ctx context.Context, employeeID string, year int) ([]leave.LeaveAccount, error) {
	q := GetQuerier(ctx, r.db)

	rows, err := q.Query(ctx, selectLeaveAccount+` WHERE employee_id = $1 AND year = $2 ORDER BY leave_type`, employeeID, year)
	if err != nil {
		return nil, fmt.Errorf("list leave accounts: %w", err)
	}
	defer rows.Close()

	accounts := make([]leave.LeaveAccount, 0)
	for rows.Next() {
		account, err := scanLeaveAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

// CreateIfAbsent implements leave.AccountRepository.
func (r *leaveAccountRepositoryImpl) CreateIfAbsent(ctx context.Context, account leave.LeaveAccount) (bool, error) {
	created := false
	err := NewTransactor(r.db).WithinTransaction(ctx, func(ctx context.Context) error {
		q := GetQuerier(ctx, r.db)

		tag, err := q.Exec(ctx, `
			INSERT INTO leave_accounts (
				id, employee_id, leave_type, year,
				total_allocated, carried_forward, used, pending, remaining,
				last_updated, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (employee_id, leave_type, year) DO NOTHING
		`,
			account.ID, account.EmployeeID, account.LeaveType, account.Year,
			account.TotalAllocated, account.CarriedForward, account.Used, account.Pending, account.Remaining,
			account.LastUpdated, account.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert leave account: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return nil
		}

		for _, tx := range account.Transactions {
			if err := insertLedgerTransaction(ctx, q, account.ID, tx); err != nil {
				return err
			}
		}
		created = true
		return nil
	})
	return created, err
}

// Mutate implements leave.AccountRepository. The account row stays locked
// until the surrounding transaction ends.
func (r *leaveAccountRepositoryImpl) Mutate(ctx context.Context, key leave.AccountKey, fn leave.MutateFunc) (leave.LeaveAccount, error) {
	var result leave.LeaveAccount

	err := NewTransactor(r.db).WithinTransaction(ctx, func(ctx context.Context) error {
		q := GetQuerier(ctx, r.db)

		account, err := scanLeaveAccount(q.QueryRow(ctx,
			selectLeaveAccount+` WHERE employee_id = $1 AND leave_type = $2 AND year = $3 FOR UPDATE`,
			key.EmployeeID, key.LeaveType, key.Year,
		))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("%w: %s", leave.ErrAccountNotFound, key)
			}
			return fmt.Errorf("lock leave account: %w", err)
		}

		account.Transactions, err = queryLedgerTransactions(ctx, q, account.ID)
		if err != nil {
			return err
		}
		before := len(account.Transactions)

		if err := fn(&account); err != nil {
			return err
		}

		_, err = q.Exec(ctx, `
			UPDATE leave_accounts
			SET total_allocated = $2, carried_forward = $3, used = $4, pending = $5,
				remaining = $6, last_updated = $7
			WHERE id = $1
		`,
			account.ID, account.TotalAllocated, account.CarriedForward, account.Used, account.Pending,
			account.Remaining, account.LastUpdated,
		)
		if err != nil {
			return fmt.Errorf("update leave account: %w", err)
		}

		for _, tx := range account.Transactions[before:] {
			if err := insertLedgerTransaction(ctx, q, account.ID, tx); err != nil {
				return err
			}
		}

		result = account
		return nil
	})
	return result, err
}

// Transactions implements leave.AccountRepository.
func (r *leaveAccountRepositoryImpl) Transactions(ctx context.Context, key leave.AccountKey) ([]leave.LedgerTransaction, error) {
	account, err := r.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return queryLedgerTransactions(ctx, GetQuerier(ctx, r.db), account.ID)
}

func queryLedgerTransactions(ctx context.Context, q database.Querier, accountID string) ([]leave.LedgerTransaction, error) {
	rows, err := q.Query(ctx, `
		SELECT id, type, operation, amount,
			   allocated_delta, carried_forward_delta, used_delta, pending_delta,
			   date, description, leave_request_id, actor_id
		FROM leave_transactions
		WHERE account_id = $1
		ORDER BY seq
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("query ledger transactions: %w", err)
	}
	defer rows.Close()

	txs := make([]leave.LedgerTransaction, 0)
	for rows.Next() {
		var tx leave.LedgerTransaction
		if err := rows.Scan(
			&tx.ID, &tx.Type, &tx.Operation, &tx.Amount,
			&tx.AllocatedDelta, &tx.CarriedForwardDelta, &tx.UsedDelta, &tx.PendingDelta,
			&tx.Date, &tx.Description, &tx.LeaveRequestID, &tx.ActorID,
		); err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

func insertLedgerTransaction(ctx context.Context, q database.Querier, accountID string, tx leave.LedgerTransaction) error {
	_, err := q.Exec(ctx, `
		INSERT INTO leave_transactions (
			id, account_id, type, operation, amount,
			allocated_delta, carried_forward_delta, used_delta, pending_delta,
			date, description, leave_request_id, actor_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`,
		tx.ID, accountID, tx.Type, tx.Operation, tx.Amount,
		tx.AllocatedDelta, tx.CarriedForwardDelta, tx.UsedDelta, tx.PendingDelta,
		tx.Date, tx.Description, tx.LeaveRequestID, tx.ActorID,
	)
	if err != nil {
		return fmt.Errorf("insert ledger transaction: %w", err)
	}
	return nil
}
