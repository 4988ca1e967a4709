package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/freshcart-vn/freshcart-backend/api/middleware"
	"github.com/freshcart-vn/freshcart-backend/api/responses"
	"github.com/freshcart-vn/freshcart-backend/api/validators"
	"github.com/freshcart-vn/freshcart-backend/internal/ledger"
	"github.com/freshcart-vn/freshcart-backend/pkg/enums"
	pkgerrors "github.com/freshcart-vn/freshcart-backend/pkg/errors"
	"github.com/freshcart-vn/freshcart-backend/pkg/logger"
	"github.com/freshcart-vn/freshcart-backend/pkg/pagination"
)

// AdminTransactionList pages the ledger with optional type/category/date filters.
func AdminTransactionList(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params := pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		}

		filters, err := buildLedgerFilters(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.List(r.Context(), params, filters)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

type createTransactionRequest struct {
	Date        *time.Time `json:"date"`
	Type        string     `json:"type" validate:"required,oneof=inflow outflow"`
	Category    string     `json:"category" validate:"required"`
	Amount      string     `json:"amount" validate:"required"`
	Method      string     `json:"method" validate:"required,oneof=cash bank_transfer gateway"`
	Description string     `json:"description" validate:"max=1000"`
}

// AdminTransactionCreate records a manual ledger entry authored by the admin.
func AdminTransactionCreate(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}

		var req createTransactionRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		txType, err := enums.ParseTransactionType(req.Type)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid type"))
			return
		}
		category := enums.TransactionCategory(req.Category)
		method, err := enums.ParseTransactionMethod(req.Method)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid method"))
			return
		}
		amount, err := decimal.NewFromString(req.Amount)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid amount"))
			return
		}

		author, err := uuid.Parse(middleware.UserIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing author identity"))
			return
		}

		input := ledger.ManualInput{
			Type:        txType,
			Category:    category,
			Amount:      amount,
			Method:      method,
			Description: validators.SanitizeString(req.Description, 1000),
			Author:      author,
		}
		if req.Date != nil {
			input.Date = *req.Date
		}

		entry, err := svc.CreateManual(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, entry)
	}
}

// AdminTransactionDelete soft deletes a manual entry.
func AdminTransactionDelete(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}

		raw := strings.TrimSpace(chi.URLParam(r, "transactionID"))
		id, err := uuid.Parse(raw)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid transaction id"))
			return
		}

		author, err := uuid.Parse(middleware.UserIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing author identity"))
			return
		}

		if err := svc.SoftDelete(r.Context(), id, author); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}

func buildLedgerFilters(r *http.Request) (ledger.Filters, error) {
	filters := ledger.Filters{}

	if raw := strings.TrimSpace(r.URL.Query().Get("type")); raw != "" {
		txType, err := enums.ParseTransactionType(raw)
		if err != nil {
			return filters, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid type filter")
		}
		filters.Type = &txType
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("category")); raw != "" {
		category := enums.TransactionCategory(raw)
		if !category.IsValid() {
			return filters, pkgerrors.New(pkgerrors.CodeValidation, "invalid category filter")
		}
		filters.Category = &category
	}

	var err error
	if filters.DateFrom, err = validators.ParseQueryTime(r, "date_from"); err != nil {
		return filters, err
	}
	if filters.DateTo, err = validators.ParseQueryTime(r, "date_to"); err != nil {
		return filters, err
	}
	return filters, nil
}
