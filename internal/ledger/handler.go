package ledger

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/openbooks/openbooks/internal/platform/httpx"
	"github.com/openbooks/openbooks/internal/shared"
)

// Handler exposes the posting and listing endpoints for both entry shapes.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		validator: validator.New(),
	}
}

func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	query, page, err := parseEntryQuery(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Query", err.Error())
		return
	}

	lines, total, err := h.service.ListEntries(r.Context(), query)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	resp := ListEntriesResponse{
		Entries:    make([]EntryResponse, 0, len(lines)),
		Pagination: shared.NewPagination(page.Page, page.PerPage, total),
	}
	for _, line := range lines {
		resp.Entries = append(resp.Entries, toEntryResponse(line))
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) GetEntry(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}

	line, err := h.service.GetEntry(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toEntryResponse(line))
}

func (h *Handler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	var req CreateEntryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	date, _ := time.Parse(dateLayout, req.Date)
	in := CreateEntryInput{
		AccountID:   req.AccountID,
		Date:        date,
		Debit:       req.Debit,
		Credit:      req.Credit,
		Description: req.Description,
		CustomerID:  req.CustomerID,
		EmployeeID:  req.EmployeeID,
		CreatedBy:   shared.PrincipalFromContext(r.Context()),
	}
	if req.Reference != nil {
		in.Reference = *req.Reference
	}

	line, err := h.service.CreateEntry(r.Context(), in)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toEntryResponse(line))
}

func (h *Handler) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}

	var req UpdateEntryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	patch := EntryPatch{
		AccountID:   req.AccountID,
		CustomerID:  req.CustomerID,
		EmployeeID:  req.EmployeeID,
		Description: req.Description,
		Debit:       req.Debit,
		Credit:      req.Credit,
		Reference:   req.Reference,
	}
	if req.Date != nil {
		date, _ := time.Parse(dateLayout, *req.Date)
		patch.Date = &date
	}

	line, err := h.service.UpdateEntry(r.Context(), id, patch)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toEntryResponse(line))
}

func (h *Handler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	if err := h.service.DeleteEntry(r.Context(), id); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListJournals(w http.ResponseWriter, r *http.Request) {
	query, page, err := parseEntryQuery(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Query", err.Error())
		return
	}

	entries, total, err := h.service.ListJournalEntries(r.Context(), query)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	resp := ListJournalsResponse{
		Journals:   make([]JournalResponse, 0, len(entries)),
		Pagination: shared.NewPagination(page.Page, page.PerPage, total),
	}
	for _, entry := range entries {
		resp.Journals = append(resp.Journals, toJournalResponse(entry))
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) GetJournal(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}

	entry, err := h.service.GetJournalEntry(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toJournalResponse(entry))
}

func (h *Handler) CreateJournal(w http.ResponseWriter, r *http.Request) {
	var req CreateJournalRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	date, _ := time.Parse(dateLayout, req.Date)
	in := CreateJournalInput{
		Date:        date,
		Description: req.Description,
		CustomerID:  req.CustomerID,
		EmployeeID:  req.EmployeeID,
		CreatedBy:   shared.PrincipalFromContext(r.Context()),
		Lines:       toLineInputs(req.Lines),
	}
	if req.Reference != nil {
		in.Reference = *req.Reference
	}

	entry, err := h.service.CreateJournalEntry(r.Context(), in)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toJournalResponse(entry))
}

func (h *Handler) UpdateJournal(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}

	var req UpdateJournalRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	patch := JournalPatch{
		Description: req.Description,
		Reference:   req.Reference,
		CustomerID:  req.CustomerID,
		EmployeeID:  req.EmployeeID,
	}
	if req.Date != nil {
		date, _ := time.Parse(dateLayout, *req.Date)
		patch.Date = &date
	}
	if req.Lines != nil {
		patch.Lines = toLineInputs(req.Lines)
	}

	entry, err := h.service.UpdateJournalEntry(r.Context(), id, patch)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toJournalResponse(entry))
}

func (h *Handler) DeleteJournal(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	if err := h.service.DeleteJournalEntry(r.Context(), id); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ValidateJournal is a dry run of the posting checks. It always answers 200;
// the verdict is in the payload.
func (h *Handler) ValidateJournal(w http.ResponseWriter, r *http.Request) {
	var req ValidateJournalRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	result, err := h.service.ValidateJournal(r.Context(), toLineInputs(req.Lines))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toValidationResponse(result))
}

// Recalculate triggers a forward balance recompute for one account.
func (h *Handler) Recalculate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}

	var req struct {
		From string `json:"from" validate:"omitempty,datetime=2006-01-02"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	// Missing from means the whole history.
	from := time.Time{}
	if req.From != "" {
		from, _ = time.Parse(dateLayout, req.From)
	}

	lines, err := h.service.Recalculate(r.Context(), id, from)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"account_id": id, "lines": lines})
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var vErr *JournalValidationError
	switch {
	case errors.As(err, &vErr):
		httpx.JSON(w, http.StatusUnprocessableEntity, toValidationResponse(vErr.Result))
	case errors.Is(err, ErrEntryNotFound), errors.Is(err, ErrJournalNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrAccountNotFound),
		errors.Is(err, ErrAccountInactive),
		errors.Is(err, ErrUnbalanced),
		errors.Is(err, ErrBothAmounts),
		errors.Is(err, ErrNeitherAmount),
		errors.Is(err, ErrNegativeAmount),
		errors.Is(err, ErrTooFewLines):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Posting Rejected", err.Error())
	default:
		h.logger.Error("ledger request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func parseEntryQuery(r *http.Request) (EntryQuery, shared.Pagination, error) {
	values := r.URL.Query()
	query := EntryQuery{Search: values.Get("search")}

	parseID := func(name string) (*int64, error) {
		raw := values.Get(name)
		if raw == "" {
			return nil, nil
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, err
		}
		return &id, nil
	}
	var err error
	if query.AccountID, err = parseID("account_id"); err != nil {
		return EntryQuery{}, shared.Pagination{}, err
	}
	if query.CustomerID, err = parseID("customer_id"); err != nil {
		return EntryQuery{}, shared.Pagination{}, err
	}
	if query.EmployeeID, err = parseID("employee_id"); err != nil {
		return EntryQuery{}, shared.Pagination{}, err
	}

	parseDate := func(name string) (*time.Time, error) {
		raw := values.Get(name)
		if raw == "" {
			return nil, nil
		}
		t, err := time.Parse(dateLayout, raw)
		if err != nil {
			return nil, err
		}
		return &t, nil
	}
	if query.DateFrom, err = parseDate("date_from"); err != nil {
		return EntryQuery{}, shared.Pagination{}, err
	}
	if query.DateTo, err = parseDate("date_to"); err != nil {
		return EntryQuery{}, shared.Pagination{}, err
	}

	switch SortField(values.Get("sort_by")) {
	case SortByDebit:
		query.SortBy = SortByDebit
	case SortByCredit:
		query.SortBy = SortByCredit
	case SortByReference:
		query.SortBy = SortByReference
	case SortByCreatedAt:
		query.SortBy = SortByCreatedAt
	default:
		query.SortBy = SortByDate
	}
	query.SortDesc = values.Get("sort_dir") == "desc"

	page, _ := strconv.Atoi(values.Get("page"))
	perPage, _ := strconv.Atoi(values.Get("per_page"))
	pagination := shared.NewPagination(page, perPage, 0)
	query.Limit = pagination.PerPage
	query.Offset = pagination.Offset()

	return query, pagination, nil
}
