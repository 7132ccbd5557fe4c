package accounts

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/openbooks/openbooks/internal/ledger"
	"github.com/openbooks/openbooks/internal/shared"
)

type CreateAccountRequest struct {
	Code           string          `json:"code" validate:"required,max=50"`
	Name           string          `json:"name" validate:"required,max=200"`
	Type           string          `json:"type" validate:"required,oneof=asset liability equity revenue expense"`
	ParentID       *int64          `json:"parent_id,omitempty" validate:"omitempty,gt=0"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	Description    string          `json:"description" validate:"max=1000"`
	Active         *bool           `json:"active,omitempty"`
}

type UpdateAccountRequest struct {
	Code           *string          `json:"code,omitempty" validate:"omitempty,max=50"`
	Name           *string          `json:"name,omitempty" validate:"omitempty,max=200"`
	Type           *string          `json:"type,omitempty" validate:"omitempty,oneof=asset liability equity revenue expense"`
	ParentID       *int64           `json:"parent_id,omitempty" validate:"omitempty,gt=0"`
	ClearParent    bool             `json:"clear_parent,omitempty"`
	OpeningBalance *decimal.Decimal `json:"opening_balance,omitempty"`
	Description    *string          `json:"description,omitempty" validate:"omitempty,max=1000"`
	Active         *bool            `json:"active,omitempty"`
}

type AccountResponse struct {
	ID             int64           `json:"id"`
	Code           string          `json:"code"`
	Name           string          `json:"name"`
	Type           string          `json:"type"`
	ParentID       *int64          `json:"parent_id,omitempty"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	Description    string          `json:"description,omitempty"`
	Active         bool            `json:"active"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

type ListAccountsResponse struct {
	Accounts   []AccountResponse `json:"accounts"`
	Pagination shared.Pagination `json:"pagination"`
}

type BalanceResponse struct {
	AccountID int64           `json:"account_id"`
	AsOf      string          `json:"as_of,omitempty"`
	Balance   decimal.Decimal `json:"balance"`
}

func toAccountResponse(a Account) AccountResponse {
	return AccountResponse{
		ID:             a.ID,
		Code:           a.Code,
		Name:           a.Name,
		Type:           string(a.Type),
		ParentID:       a.ParentID,
		OpeningBalance: a.OpeningBalance,
		Description:    a.Description,
		Active:         a.Active,
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
}

func accountTypePtr(s *string) *ledger.AccountType {
	if s == nil {
		return nil
	}
	t := ledger.AccountType(*s)
	return &t
}
