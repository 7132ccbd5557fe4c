package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// AccountType enumerates chart-of-accounts categories.
type AccountType string

const (
	AccountTypeAsset     AccountType = "asset"
	AccountTypeLiability AccountType = "liability"
	AccountTypeEquity    AccountType = "equity"
	AccountTypeRevenue   AccountType = "revenue"
	AccountTypeExpense   AccountType = "expense"
)

// Valid reports whether the account type is a known category.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeRevenue, AccountTypeExpense:
		return true
	}
	return false
}

// BalanceSign states whether debits or credits increase an account balance.
type BalanceSign int

const (
	DebitIncreases BalanceSign = iota
	CreditIncreases
)

// BalanceSignFor is the single place the balance-sign rule is encoded.
// Every balance computation in the module goes through it.
func BalanceSignFor(t AccountType) BalanceSign {
	if t == AccountTypeAsset || t == AccountTypeExpense {
		return DebitIncreases
	}
	return CreditIncreases
}

// Apply folds one debit/credit movement into a balance per the sign rule.
func Apply(sign BalanceSign, balance, debit, credit decimal.Decimal) decimal.Decimal {
	if sign == DebitIncreases {
		return balance.Add(debit).Sub(credit)
	}
	return balance.Add(credit).Sub(debit)
}

// Epsilon is the tolerance for every balance equality check in the module.
var Epsilon = decimal.New(1, -2)

// WithinEpsilon reports whether |a-b| < 0.01.
func WithinEpsilon(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThan(Epsilon)
}

// EntrySource tags which historical shape a ledger line comes from.
type EntrySource string

const (
	SourceTransaction EntrySource = "transaction"
	SourceJournal     EntrySource = "journal"
)

// LedgerLine is one debit-or-credit movement against one account on one date.
// It unifies flat transaction rows and journal entry items: both shapes share
// one id sequence, so (Date asc, ID asc) is a total order across sources.
type LedgerLine struct {
	ID             int64
	Source         EntrySource
	AccountID      int64
	JournalID      *int64
	CustomerID     *int64
	EmployeeID     *int64
	Date           time.Time
	Debit          decimal.Decimal
	Credit         decimal.Decimal
	Description    string
	Reference      string
	RunningBalance decimal.Decimal
	CreatedBy      int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// JournalEntry is a balanced group of at least two lines posted together.
type JournalEntry struct {
	ID          int64
	Date        time.Time
	Description string
	Reference   string
	CustomerID  *int64
	EmployeeID  *int64
	TotalDebit  decimal.Decimal
	TotalCredit decimal.Decimal
	CreatedBy   int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Lines       []LedgerLine
}

// AccountRef is the slice of an account the ledger core needs: enough to
// validate a posting and to drive the balance walk.
type AccountRef struct {
	ID             int64
	Code           string
	Name           string
	Type           AccountType
	OpeningBalance decimal.Decimal
	Active         bool
}

// SortField enumerates entry listing sort columns.
type SortField string

const (
	SortByDate      SortField = "date"
	SortByDebit     SortField = "debit_amount"
	SortByCredit    SortField = "credit_amount"
	SortByReference SortField = "reference_number"
	SortByCreatedAt SortField = "created_at"
)

// EntryQuery is the one filter/sort descriptor consumed by the repository for
// listings and views, instead of per-endpoint ad-hoc query building.
type EntryQuery struct {
	AccountID  *int64
	CustomerID *int64
	EmployeeID *int64
	DateFrom   *time.Time
	DateTo     *time.Time
	Search     string
	SortBy     SortField
	SortDesc   bool
	Limit      int
	Offset     int
}

var (
	// ErrUnbalanced indicates journal debits and credits differ by >= 0.01.
	ErrUnbalanced = errors.New("ledger: journal entry is not balanced")
	// ErrBothAmounts indicates a line with debit and credit both positive.
	ErrBothAmounts = errors.New("ledger: line cannot carry both debit and credit")
	// ErrNeitherAmount indicates a line with debit and credit both zero.
	ErrNeitherAmount = errors.New("ledger: line requires a debit or credit amount")
	// ErrNegativeAmount indicates a negative debit or credit.
	ErrNegativeAmount = errors.New("ledger: amounts must not be negative")
	// ErrTooFewLines indicates a journal with fewer than two lines.
	ErrTooFewLines = errors.New("ledger: journal requires at least two lines")
	// ErrAccountNotFound indicates a referenced account does not exist.
	ErrAccountNotFound = errors.New("ledger: account not found")
	// ErrAccountInactive indicates a posting against a deactivated account.
	ErrAccountInactive = errors.New("ledger: account is inactive")
	// ErrEntryNotFound indicates a missing ledger entry.
	ErrEntryNotFound = errors.New("ledger: entry not found")
	// ErrJournalNotFound indicates a missing journal entry.
	ErrJournalNotFound = errors.New("ledger: journal entry not found")
	// ErrSelfParent indicates an account referencing itself as parent.
	ErrSelfParent = errors.New("ledger: account cannot be its own parent")
	// ErrCircularParent indicates a parent assignment that would form a cycle.
	ErrCircularParent = errors.New("ledger: parent assignment creates a cycle")
	// ErrDuplicateCode indicates an account code collision.
	ErrDuplicateCode = errors.New("ledger: account code already exists")
	// ErrInfrastructure wraps persistence or recompute failures; the whole
	// mutation transaction has been rolled back when it is returned.
	ErrInfrastructure = errors.New("ledger: infrastructure failure")
)

// UnbalancedError reports the totals behind an ErrUnbalanced rejection.
type UnbalancedError struct {
	TotalDebit  decimal.Decimal
	TotalCredit decimal.Decimal
	Difference  decimal.Decimal
}

func (e *UnbalancedError) Error() string {
	return fmt.Sprintf("ledger: journal entry is not balanced: debits %s, credits %s, difference %s",
		e.TotalDebit.StringFixed(2), e.TotalCredit.StringFixed(2), e.Difference.StringFixed(2))
}

// Is makes errors.Is(err, ErrUnbalanced) hold for the typed error.
func (e *UnbalancedError) Is(target error) bool { return target == ErrUnbalanced }

// LineError attaches a line index to a per-line validation failure so a
// caller submitting N invalid lines sees all N problems.
type LineError struct {
	Index int
	Err   error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Index+1, e.Err)
}

func (e *LineError) Unwrap() error { return e.Err }

// InfrastructureError preserves the cause of an aborted mutation while
// keeping it distinguishable from validation errors.
func InfrastructureError(err error) error {
	return fmt.Errorf("%w: %v", ErrInfrastructure, err)
}
