package reports

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/openbooks/openbooks/internal/platform/httpx"
)

type Handler struct {
	logger  *slog.Logger
	service *Service
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

func (h *Handler) TrialBalance(w http.ResponseWriter, r *http.Request) {
	dateFrom, ok := queryDate(w, r, "date_from")
	if !ok {
		return
	}
	dateTo, ok := queryDate(w, r, "date_to")
	if !ok {
		return
	}
	report, err := h.service.TrialBalance(r.Context(), dateFrom, dateTo)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) BalanceSheet(w http.ResponseWriter, r *http.Request) {
	dateTo, ok := queryDate(w, r, "date_to")
	if !ok {
		return
	}
	report, err := h.service.BalanceSheet(r.Context(), dateTo)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) IncomeStatement(w http.ResponseWriter, r *http.Request) {
	dateFrom, ok := queryDate(w, r, "date_from")
	if !ok {
		return
	}
	dateTo, ok := queryDate(w, r, "date_to")
	if !ok {
		return
	}
	report, err := h.service.IncomeStatement(r.Context(), dateFrom, dateTo)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) ClosePeriod(w http.ResponseWriter, r *http.Request) {
	through, ok := queryDate(w, r, "through")
	if !ok {
		return
	}
	if through == nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Query", "through is required")
		return
	}
	report, err := h.service.ClosePeriod(r.Context(), *through)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Error("report generation failed", "path", r.URL.Path, "error", err)
	httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
}

func queryDate(w http.ResponseWriter, r *http.Request, name string) (*time.Time, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, true
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Query", name+" must be YYYY-MM-DD")
		return nil, false
	}
	return &t, true
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/reports", func(r chi.Router) {
		r.Get("/trial-balance", h.TrialBalance)
		r.Get("/balance-sheet", h.BalanceSheet)
		r.Get("/income-statement", h.IncomeStatement)
		r.Get("/period-close", h.ClosePeriod)
	})
}
