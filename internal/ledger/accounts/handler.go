package accounts

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/openbooks/openbooks/internal/ledger"
	"github.com/openbooks/openbooks/internal/platform/httpx"
	"github.com/openbooks/openbooks/internal/shared"
)

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

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	q := ListQuery{Search: values.Get("search")}

	if raw := values.Get("type"); raw != "" {
		t := ledger.AccountType(raw)
		if !t.Valid() {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Query", "unknown account type "+raw)
			return
		}
		q.Type = &t
	}
	if raw := values.Get("active"); raw != "" {
		active := raw == "true"
		q.Active = &active
	}
	if raw := values.Get("parent_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Query", err.Error())
			return
		}
		q.ParentID = &id
	}

	page, _ := strconv.Atoi(values.Get("page"))
	perPage, _ := strconv.Atoi(values.Get("per_page"))
	pagination := shared.NewPagination(page, perPage, 0)
	q.Limit = pagination.PerPage
	q.Offset = pagination.Offset()

	list, total, err := h.service.List(r.Context(), q)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	resp := ListAccountsResponse{
		Accounts:   make([]AccountResponse, 0, len(list)),
		Pagination: shared.NewPagination(pagination.Page, pagination.PerPage, total),
	}
	for _, a := range list {
		resp.Accounts = append(resp.Accounts, toAccountResponse(a))
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	account, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toAccountResponse(account))
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}
	account, err := h.service.Create(r.Context(), CreateAccountInput{
		Code:           req.Code,
		Name:           req.Name,
		Type:           ledger.AccountType(req.Type),
		ParentID:       req.ParentID,
		OpeningBalance: req.OpeningBalance,
		Description:    req.Description,
		Active:         active,
		CreatedBy:      shared.PrincipalFromContext(r.Context()),
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toAccountResponse(account))
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}

	var req UpdateAccountRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	account, err := h.service.Update(r.Context(), id, Patch{
		Code:           req.Code,
		Name:           req.Name,
		Type:           accountTypePtr(req.Type),
		ParentID:       req.ParentID,
		ClearParent:    req.ClearParent,
		OpeningBalance: req.OpeningBalance,
		Description:    req.Description,
		Active:         req.Active,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toAccountResponse(account))
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}

	account, deactivated, err := h.service.Delete(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if deactivated {
		httpx.JSON(w, http.StatusOK, toAccountResponse(account))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}

	var asOf *time.Time
	resp := BalanceResponse{AccountID: id}
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Query", err.Error())
			return
		}
		asOf = &t
		resp.AsOf = raw
	}

	balance, err := h.service.CurrentBalance(r.Context(), id, asOf)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	resp.Balance = balance
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ledger.ErrAccountNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ledger.ErrDuplicateCode):
		httpx.Problem(w, http.StatusConflict, "Duplicate Code", err.Error())
	case errors.Is(err, ledger.ErrSelfParent),
		errors.Is(err, ledger.ErrCircularParent),
		errors.Is(err, ledger.ErrAccountInactive),
		errors.Is(err, ErrInvalidType),
		errors.Is(err, ErrTypeHasLines):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Invalid Account", err.Error())
	default:
		h.logger.Error("accounts request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
