package view

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/openbooks/openbooks/internal/ledger"
	"github.com/openbooks/openbooks/internal/platform/httpx"
)

type Handler struct {
	logger  *slog.Logger
	service *Service
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

type rowResponse struct {
	ID          int64           `json:"id,omitempty"`
	Source      string          `json:"source,omitempty"`
	AccountID   int64           `json:"account_id,omitempty"`
	Date        string          `json:"date"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Description string          `json:"description"`
	Reference   string          `json:"reference,omitempty"`
	Balance     decimal.Decimal `json:"balance"`
	Opening     bool            `json:"opening,omitempty"`
}

type ledgerResponse struct {
	Kind           FKKind          `json:"kind"`
	EntityID       int64           `json:"entity_id"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	ClosingBalance decimal.Decimal `json:"closing_balance"`
	TotalDebit     decimal.Decimal `json:"total_debit"`
	TotalCredit    decimal.Decimal `json:"total_credit"`
	Count          int             `json:"count"`
	Rows           []rowResponse   `json:"rows"`
}

func (h *Handler) EntityLedger(w http.ResponseWriter, r *http.Request) {
	kind := FKKind(chi.URLParam(r, "kind"))
	if !kind.Valid() {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Query", "unknown entity kind "+string(kind))
		return
	}
	entityID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}

	values := r.URL.Query()
	q := Query{
		Kind:        kind,
		EntityID:    entityID,
		Search:      values.Get("search"),
		NewestFirst: values.Get("order") == "desc",
	}
	parseDate := func(name string) (*time.Time, bool) {
		raw := values.Get(name)
		if raw == "" {
			return nil, true
		}
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return nil, false
		}
		return &t, true
	}
	var ok bool
	if q.DateFrom, ok = parseDate("date_from"); !ok {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Query", "date_from must be YYYY-MM-DD")
		return
	}
	if q.DateTo, ok = parseDate("date_to"); !ok {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Query", "date_to must be YYYY-MM-DD")
		return
	}

	result, err := h.service.EntityLedger(r.Context(), q)
	if err != nil {
		if errors.Is(err, ledger.ErrAccountNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
			return
		}
		h.logger.Error("ledger view failed", "kind", kind, "entity_id", entityID, "error", err)
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}

	resp := ledgerResponse{
		Kind:           kind,
		EntityID:       entityID,
		OpeningBalance: result.OpeningBalance,
		ClosingBalance: result.ClosingBalance,
		TotalDebit:     result.TotalDebit,
		TotalCredit:    result.TotalCredit,
		Count:          result.Count,
		Rows:           make([]rowResponse, 0, len(result.Rows)),
	}
	for _, row := range result.Rows {
		resp.Rows = append(resp.Rows, rowResponse{
			ID:          row.Line.ID,
			Source:      string(row.Line.Source),
			AccountID:   row.Line.AccountID,
			Date:        row.Line.Date.Format("2006-01-02"),
			Debit:       row.Line.Debit,
			Credit:      row.Line.Credit,
			Description: row.Line.Description,
			Reference:   row.Line.Reference,
			Balance:     row.Balance,
			Opening:     row.Opening,
		})
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/ledger/{kind}/{id}", h.EntityLedger)
}
