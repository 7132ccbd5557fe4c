package view

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openbooks/openbooks/internal/ledger"
)

// Repository reads ledger lines for display. All queries are plain reads
// against the pool; no locks are taken.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) GetAccountRef(ctx context.Context, id int64) (ledger.AccountRef, error) {
	var ref ledger.AccountRef
	err := r.pool.QueryRow(ctx, `SELECT id, code, name, type, opening_balance, is_active FROM accounts WHERE id=$1`, id).
		Scan(&ref.ID, &ref.Code, &ref.Name, &ref.Type, &ref.OpeningBalance, &ref.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ledger.AccountRef{}, fmt.Errorf("%w: id %d", ledger.ErrAccountNotFound, id)
		}
		return ledger.AccountRef{}, err
	}
	return ref, nil
}

// fkColumn maps the entity kind to the filter column on each shape. Journal
// items inherit customer/employee links from their header.
func fkColumn(kind FKKind) (txCol, headerCol string, ok bool) {
	switch kind {
	case KindAccount:
		return "t.account_id", "i.account_id", true
	case KindCustomer:
		return "t.customer_id", "e.customer_id", true
	case KindEmployee:
		return "t.employee_id", "e.employee_id", true
	}
	return "", "", false
}

func (r *Repository) EntityLines(ctx context.Context, kind FKKind, entityID int64) ([]ledger.LedgerLine, error) {
	txCol, headerCol, ok := fkColumn(kind)
	if !ok {
		return nil, fmt.Errorf("view: unknown entity kind %q", kind)
	}

	sql := fmt.Sprintf(`
SELECT t.id, 'transaction' AS source, t.date, t.account_id, t.debit_amount, t.credit_amount, t.description, t.reference_number
FROM transactions t
WHERE %s = $1
UNION ALL
SELECT i.id, 'journal', e.entry_date, i.account_id, i.debit_amount, i.credit_amount, i.description, e.reference_number
FROM journal_entry_items i
JOIN journal_entries e ON e.id = i.journal_entry_id
WHERE %s = $1`, txCol, headerCol)

	rows, err := r.pool.Query(ctx, sql, entityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ledger.LedgerLine
	for rows.Next() {
		var line ledger.LedgerLine
		var reference pgtype.Text
		if err := rows.Scan(&line.ID, &line.Source, &line.Date, &line.AccountID, &line.Debit, &line.Credit, &line.Description, &reference); err != nil {
			return nil, err
		}
		line.Reference = reference.String
		out = append(out, line)
	}
	return out, rows.Err()
}
