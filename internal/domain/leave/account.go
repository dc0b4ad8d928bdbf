package leave

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionAllocation TransactionType = "allocation"
	TransactionUsed       TransactionType = "used"
	TransactionAdjustment TransactionType = "adjustment"
)

// Operation names the ledger primitive that produced a transaction.
type Operation string

const (
	OperationAllocate     Operation = "allocate"
	OperationReserve      Operation = "reserve"
	OperationConfirm      Operation = "confirm"
	OperationRelease      Operation = "release"
	OperationAdjust       Operation = "adjust"
	OperationCarryForward Operation = "carry_forward"
)

type AccountKey struct {
	EmployeeID string    `json:"employee_id"`
	LeaveType  LeaveType `json:"leave_type"`
	Year       int       `json:"year"`
}

func (k AccountKey) String() string {
	return fmt.Sprintf("%s/%s/%d", k.EmployeeID, k.LeaveType, k.Year)
}

// LedgerTransaction is an append-only ledger entry. The per-counter deltas
// make the log replayable into the four account counters.
type LedgerTransaction struct {
	ID                  string          `json:"id"`
	Type                TransactionType `json:"type"`
	Operation           Operation       `json:"operation"`
	Amount              decimal.Decimal `json:"amount"`
	AllocatedDelta      decimal.Decimal `json:"allocated_delta"`
	CarriedForwardDelta decimal.Decimal `json:"carried_forward_delta"`
	UsedDelta           decimal.Decimal `json:"used_delta"`
	PendingDelta        decimal.Decimal `json:"pending_delta"`
	Date                time.Time       `json:"date"`
	Description         string          `json:"description"`
	LeaveRequestID      *string         `json:"leave_request_id,omitempty"`
	ActorID             *string         `json:"actor_id,omitempty"`
}

type LeaveAccount struct {
	ID             string              `json:"id"`
	EmployeeID     string              `json:"employee_id"`
	LeaveType      LeaveType           `json:"leave_type"`
	Year           int                 `json:"year"`
	TotalAllocated decimal.Decimal     `json:"total_allocated"`
	CarriedForward decimal.Decimal     `json:"carried_forward"`
	Used           decimal.Decimal     `json:"used"`
	Pending        decimal.Decimal     `json:"pending"`
	Remaining      decimal.Decimal     `json:"remaining"`
	LastUpdated    time.Time           `json:"last_updated"`
	CreatedAt      time.Time           `json:"created_at"`
	Transactions   []LedgerTransaction `json:"transactions,omitempty"`
}

func (a *LeaveAccount) Key() AccountKey {
	return AccountKey{EmployeeID: a.EmployeeID, LeaveType: a.LeaveType, Year: a.Year}
}

// Available may be negative when requests over-subscribe the account.
func (a *LeaveAccount) Available() decimal.Decimal {
	return a.TotalAllocated.Add(a.CarriedForward).Sub(a.Used).Sub(a.Pending)
}

// Recompute is the only writer of Remaining.
func (a *LeaveAccount) Recompute() {
	a.Remaining = a.Available()
}

// Validate checks the counter invariants.
func (a *LeaveAccount) Validate() error {
	counters := []struct {
		name  string
		value decimal.Decimal
	}{
		{"total_allocated", a.TotalAllocated},
		{"carried_forward", a.CarriedForward},
		{"used", a.Used},
		{"pending", a.Pending},
	}
	for _, c := range counters {
		if c.value.IsNegative() {
			return fmt.Errorf("%w: %s is negative (%s) on %s", ErrInvariantViolation, c.name, c.value, a.Key())
		}
	}
	if !a.Remaining.Equal(a.Available()) {
		return fmt.Errorf("%w: remaining %s does not match counters on %s", ErrInvariantViolation, a.Remaining, a.Key())
	}
	return nil
}

// Apply adds the transaction deltas to the counters and appends it to the log.
// The caller validates the result.
func (a *LeaveAccount) Apply(tx LedgerTransaction) {
	a.TotalAllocated = a.TotalAllocated.Add(tx.AllocatedDelta)
	a.CarriedForward = a.CarriedForward.Add(tx.CarriedForwardDelta)
	a.Used = a.Used.Add(tx.UsedDelta)
	a.Pending = a.Pending.Add(tx.PendingDelta)
	a.Recompute()
	a.LastUpdated = tx.Date
	a.Transactions = append(a.Transactions, tx)
}

// HasOperation reports whether op was already recorded for the leave request.
func (a *LeaveAccount) HasOperation(op Operation, leaveRequestID string) bool {
	if leaveRequestID == "" {
		return false
	}
	for _, tx := range a.Transactions {
		if tx.Operation == op && tx.LeaveRequestID != nil && *tx.LeaveRequestID == leaveRequestID {
			return true
		}
	}
	return false
}

// Counters is the result of replaying a transaction log.
type Counters struct {
	TotalAllocated decimal.Decimal `json:"total_allocated"`
	CarriedForward decimal.Decimal `json:"carried_forward"`
	Used           decimal.Decimal `json:"used"`
	Pending        decimal.Decimal `json:"pending"`
}

func (c Counters) Remaining() decimal.Decimal {
	return c.TotalAllocated.Add(c.CarriedForward).Sub(c.Used).Sub(c.Pending)
}

func Replay(txs []LedgerTransaction) Counters {
	var c Counters
	for _, tx := range txs {
		c.TotalAllocated = c.TotalAllocated.Add(tx.AllocatedDelta)
		c.CarriedForward = c.CarriedForward.Add(tx.CarriedForwardDelta)
		c.Used = c.Used.Add(tx.UsedDelta)
		c.Pending = c.Pending.Add(tx.PendingDelta)
	}
	return c
}

func (a *LeaveAccount) Counters() Counters {
	return Counters{
		TotalAllocated: a.TotalAllocated,
		CarriedForward: a.CarriedForward,
		Used:           a.Used,
		Pending:        a.Pending,
	}
}

func (c Counters) Equal(o Counters) bool {
	return c.TotalAllocated.Equal(o.TotalAllocated) &&
		c.CarriedForward.Equal(o.CarriedForward) &&
		c.Used.Equal(o.Used) &&
		c.Pending.Equal(o.Pending)
}

// NewAccount seeds an account from a policy with its allocation entry.
func NewAccount(id string, key AccountKey, policy LeavePolicy, txID string, now time.Time) LeaveAccount {
	account := LeaveAccount{
		ID:         id,
		EmployeeID: key.EmployeeID,
		LeaveType:  key.LeaveType,
		Year:       key.Year,
		CreatedAt:  now,
	}
	account.Apply(LedgerTransaction{
		ID:             txID,
		Type:           TransactionAllocation,
		Operation:      OperationAllocate,
		Amount:         policy.DefaultAllocation,
		AllocatedDelta: policy.DefaultAllocation,
		Date:           now,
		Description:    fmt.Sprintf("initial %s allocation for %d", key.LeaveType, key.Year),
	})
	return account
}
