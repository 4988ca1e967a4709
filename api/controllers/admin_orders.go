package controllers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/freshcart-vn/freshcart-backend/api/responses"
	"github.com/freshcart-vn/freshcart-backend/api/validators"
	internalorders "github.com/freshcart-vn/freshcart-backend/internal/orders"
	"github.com/freshcart-vn/freshcart-backend/pkg/enums"
	pkgerrors "github.com/freshcart-vn/freshcart-backend/pkg/errors"
	"github.com/freshcart-vn/freshcart-backend/pkg/logger"
	"github.com/freshcart-vn/freshcart-backend/pkg/pagination"
)

// AdminOrderList pages all orders with optional status/customer/date filters.
func AdminOrderList(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
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

		filters, err := buildOrderFilters(r)
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

type updateOrderStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=confirmed shipped delivered"`
}

// AdminOrderStatus advances an order along the fulfilment path.
func AdminOrderStatus(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		raw := strings.TrimSpace(chi.URLParam(r, "orderID"))
		orderID, err := uuid.Parse(raw)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id"))
			return
		}

		var req updateOrderStatusRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := enums.ParseOrderStatus(req.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
			return
		}

		order, err := svc.UpdateStatus(r.Context(), orderID, status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// AdminOrderExport streams the filtered orders as an XLSX workbook.
func AdminOrderExport(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		filters, err := buildOrderFilters(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		workbook, err := svc.ExportXLSX(r.Context(), filters)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		filename := fmt.Sprintf("orders-%s.xlsx", time.Now().Format("20060102-150405"))
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(workbook); err != nil && logg != nil {
			logg.Error(r.Context(), "failed to stream order export", err)
		}
	}
}

func buildOrderFilters(r *http.Request) (internalorders.Filters, error) {
	filters := internalorders.Filters{}

	var err error
	if filters.CustomerID, err = validators.ParseQueryUUID(r, "customer_id"); err != nil {
		return filters, err
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("order_status")); raw != "" {
		status, err := enums.ParseOrderStatus(raw)
		if err != nil {
			return filters, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order status filter")
		}
		filters.OrderStatus = &status
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("payment_status")); raw != "" {
		status, err := enums.ParsePaymentStatus(raw)
		if err != nil {
			return filters, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment status filter")
		}
		filters.PaymentStatus = &status
	}
	if filters.DateFrom, err = validators.ParseQueryTime(r, "date_from"); err != nil {
		return filters, err
	}
	if filters.DateTo, err = validators.ParseQueryTime(r, "date_to"); err != nil {
		return filters, err
	}
	return filters, nil
}
