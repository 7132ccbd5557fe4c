package reports

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/openbooks/openbooks/internal/ledger"
)

// Repository aggregates per-account activity in SQL, one row per active
// account, split at the window boundary.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var (
	farPast   = time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC)
	farFuture = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)
)

// FetchActivity returns every active account with pre-window activity folded
// into Opening and windowed debit/credit sums. Nil bounds mean unbounded.
func (r *Repository) FetchActivity(ctx context.Context, dateFrom, dateTo *time.Time) ([]AccountActivity, error) {
	from, to := farPast, farFuture
	if dateFrom != nil {
		from = *dateFrom
	}
	if dateTo != nil {
		to = *dateTo
	}

	rows, err := r.pool.Query(ctx, `
SELECT a.id, a.code, a.name, a.type, a.opening_balance,
       COALESCE(SUM(l.debit) FILTER (WHERE l.line_date < $1), 0),
       COALESCE(SUM(l.credit) FILTER (WHERE l.line_date < $1), 0),
       COALESCE(SUM(l.debit) FILTER (WHERE l.line_date >= $1 AND l.line_date <= $2), 0),
       COALESCE(SUM(l.credit) FILTER (WHERE l.line_date >= $1 AND l.line_date <= $2), 0)
FROM accounts a
LEFT JOIN (
    SELECT account_id, date AS line_date, debit_amount AS debit, credit_amount AS credit
    FROM transactions
    UNION ALL
    SELECT i.account_id, e.entry_date, i.debit_amount, i.credit_amount
    FROM journal_entry_items i
    JOIN journal_entries e ON e.id = i.journal_entry_id
) l ON l.account_id = a.id
WHERE a.is_active
GROUP BY a.id, a.code, a.name, a.type, a.opening_balance
ORDER BY a.code ASC`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AccountActivity
	for rows.Next() {
		var acc AccountActivity
		var opening, preDebit, preCredit decimal.Decimal
		if err := rows.Scan(&acc.ID, &acc.Code, &acc.Name, &acc.Type, &opening, &preDebit, &preCredit, &acc.Debit, &acc.Credit); err != nil {
			return nil, err
		}
		acc.Opening = ledger.Apply(ledger.BalanceSignFor(acc.Type), opening, preDebit, preCredit)
		out = append(out, acc)
	}
	return out, rows.Err()
}
