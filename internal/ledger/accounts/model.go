// Package accounts manages the chart of accounts: hierarchy, activation
// state and point-in-time balances.
package accounts

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/openbooks/openbooks/internal/ledger"
)

// Account is a chart-of-accounts node.
type Account struct {
	ID             int64
	Code           string
	Name           string
	Type           ledger.AccountType
	ParentID       *int64
	OpeningBalance decimal.Decimal
	Description    string
	Active         bool
	CreatedBy      int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Ref converts to the slim shape the ledger core consumes.
func (a Account) Ref() ledger.AccountRef {
	return ledger.AccountRef{
		ID:             a.ID,
		Code:           a.Code,
		Name:           a.Name,
		Type:           a.Type,
		OpeningBalance: a.OpeningBalance,
		Active:         a.Active,
	}
}

// ListQuery filters account listings.
type ListQuery struct {
	Type     *ledger.AccountType
	Active   *bool
	ParentID *int64
	Search   string
	Limit    int
	Offset   int
}

// Patch lists the mutable account fields; nil means unchanged.
type Patch struct {
	Code           *string
	Name           *string
	Type           *ledger.AccountType
	ParentID       *int64
	ClearParent    bool
	OpeningBalance *decimal.Decimal
	Description    *string
	Active         *bool
}
