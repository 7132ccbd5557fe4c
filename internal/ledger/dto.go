package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/openbooks/openbooks/internal/shared"
)

const dateLayout = "2006-01-02"

type CreateEntryRequest struct {
	Date        string          `json:"date" validate:"required,datetime=2006-01-02"`
	AccountID   int64           `json:"account_id" validate:"required,gt=0"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Description string          `json:"description" validate:"required,max=500"`
	Reference   *string         `json:"reference,omitempty" validate:"omitempty,max=100"`
	CustomerID  *int64          `json:"customer_id,omitempty" validate:"omitempty,gt=0"`
	EmployeeID  *int64          `json:"employee_id,omitempty" validate:"omitempty,gt=0"`
}

type UpdateEntryRequest struct {
	Date        *string          `json:"date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	AccountID   *int64           `json:"account_id,omitempty" validate:"omitempty,gt=0"`
	Debit       *decimal.Decimal `json:"debit,omitempty"`
	Credit      *decimal.Decimal `json:"credit,omitempty"`
	Description *string          `json:"description,omitempty" validate:"omitempty,max=500"`
	Reference   *string          `json:"reference,omitempty" validate:"omitempty,max=100"`
	CustomerID  *int64           `json:"customer_id,omitempty" validate:"omitempty,gt=0"`
	EmployeeID  *int64           `json:"employee_id,omitempty" validate:"omitempty,gt=0"`
}

type JournalLineRequest struct {
	AccountID   int64           `json:"account_id" validate:"required,gt=0"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Description string          `json:"description" validate:"max=500"`
}

type CreateJournalRequest struct {
	Date        string               `json:"date" validate:"required,datetime=2006-01-02"`
	Description string               `json:"description" validate:"required,max=500"`
	Reference   *string              `json:"reference,omitempty" validate:"omitempty,max=100"`
	CustomerID  *int64               `json:"customer_id,omitempty" validate:"omitempty,gt=0"`
	EmployeeID  *int64               `json:"employee_id,omitempty" validate:"omitempty,gt=0"`
	Lines       []JournalLineRequest `json:"lines" validate:"required,min=2,dive"`
}

type UpdateJournalRequest struct {
	Date        *string              `json:"date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Description *string              `json:"description,omitempty" validate:"omitempty,max=500"`
	Reference   *string              `json:"reference,omitempty" validate:"omitempty,max=100"`
	CustomerID  *int64               `json:"customer_id,omitempty" validate:"omitempty,gt=0"`
	EmployeeID  *int64               `json:"employee_id,omitempty" validate:"omitempty,gt=0"`
	Lines       []JournalLineRequest `json:"lines,omitempty" validate:"omitempty,min=2,dive"`
}

type ValidateJournalRequest struct {
	Lines []JournalLineRequest `json:"lines" validate:"required,dive"`
}

type EntryResponse struct {
	ID             int64           `json:"id"`
	Source         EntrySource     `json:"source"`
	JournalID      *int64          `json:"journal_id,omitempty"`
	AccountID      int64           `json:"account_id"`
	CustomerID     *int64          `json:"customer_id,omitempty"`
	EmployeeID     *int64          `json:"employee_id,omitempty"`
	Date           string          `json:"date"`
	Debit          decimal.Decimal `json:"debit"`
	Credit         decimal.Decimal `json:"credit"`
	Description    string          `json:"description"`
	Reference      string          `json:"reference,omitempty"`
	RunningBalance decimal.Decimal `json:"running_balance"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

type JournalResponse struct {
	ID          int64           `json:"id"`
	Date        string          `json:"date"`
	Description string          `json:"description"`
	Reference   string          `json:"reference,omitempty"`
	CustomerID  *int64          `json:"customer_id,omitempty"`
	EmployeeID  *int64          `json:"employee_id,omitempty"`
	TotalDebit  decimal.Decimal `json:"total_debit"`
	TotalCredit decimal.Decimal `json:"total_credit"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	Lines       []EntryResponse `json:"lines,omitempty"`
}

type ValidationResponse struct {
	Valid       bool            `json:"valid"`
	Errors      []string        `json:"errors"`
	TotalDebit  decimal.Decimal `json:"total_debit"`
	TotalCredit decimal.Decimal `json:"total_credit"`
	Difference  decimal.Decimal `json:"difference"`
}

type ListEntriesResponse struct {
	Entries    []EntryResponse   `json:"entries"`
	Pagination shared.Pagination `json:"pagination"`
}

type ListJournalsResponse struct {
	Journals   []JournalResponse `json:"journals"`
	Pagination shared.Pagination `json:"pagination"`
}

func toEntryResponse(line LedgerLine) EntryResponse {
	return EntryResponse{
		ID:             line.ID,
		Source:         line.Source,
		JournalID:      line.JournalID,
		AccountID:      line.AccountID,
		CustomerID:     line.CustomerID,
		EmployeeID:     line.EmployeeID,
		Date:           line.Date.Format(dateLayout),
		Debit:          line.Debit,
		Credit:         line.Credit,
		Description:    line.Description,
		Reference:      line.Reference,
		RunningBalance: line.RunningBalance,
		CreatedAt:      line.CreatedAt,
		UpdatedAt:      line.UpdatedAt,
	}
}

func toJournalResponse(entry JournalEntry) JournalResponse {
	resp := JournalResponse{
		ID:          entry.ID,
		Date:        entry.Date.Format(dateLayout),
		Description: entry.Description,
		Reference:   entry.Reference,
		CustomerID:  entry.CustomerID,
		EmployeeID:  entry.EmployeeID,
		TotalDebit:  entry.TotalDebit,
		TotalCredit: entry.TotalCredit,
		CreatedAt:   entry.CreatedAt,
		UpdatedAt:   entry.UpdatedAt,
	}
	for _, line := range entry.Lines {
		resp.Lines = append(resp.Lines, toEntryResponse(line))
	}
	return resp
}

func toValidationResponse(result JournalValidation) ValidationResponse {
	resp := ValidationResponse{
		Valid:       result.Valid,
		Errors:      make([]string, 0, len(result.Errors)),
		TotalDebit:  result.TotalDebit,
		TotalCredit: result.TotalCredit,
		Difference:  result.Difference,
	}
	for _, err := range result.Errors {
		resp.Errors = append(resp.Errors, err.Error())
	}
	return resp
}

func toLineInputs(lines []JournalLineRequest) []LineInput {
	out := make([]LineInput, 0, len(lines))
	for _, line := range lines {
		out = append(out, LineInput{
			AccountID:   line.AccountID,
			Debit:       line.Debit,
			Credit:      line.Credit,
			Description: line.Description,
		})
	}
	return out
}
