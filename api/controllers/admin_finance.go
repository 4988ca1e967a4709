package controllers

import (
	"net/http"
	"strings"

	"github.com/freshcart-vn/freshcart-backend/api/responses"
	"github.com/freshcart-vn/freshcart-backend/internal/summary"
	"github.com/freshcart-vn/freshcart-backend/pkg/enums"
	pkgerrors "github.com/freshcart-vn/freshcart-backend/pkg/errors"
	"github.com/freshcart-vn/freshcart-backend/pkg/logger"
)

// AdminFinanceSummary serves the cached inflow/outflow aggregate for a window.
func AdminFinanceSummary(svc summary.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "summary service unavailable"))
			return
		}

		raw := strings.TrimSpace(r.URL.Query().Get("window"))
		if raw == "" {
			raw = enums.SummaryWindowToday.String()
		}
		window, err := enums.ParseSummaryWindow(raw)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid window"))
			return
		}

		result, err := svc.Get(r.Context(), window)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// AdminFinanceRefresh recomputes every summary window from the ledger and
// re-caches it, ignoring TTLs.
func AdminFinanceRefresh(svc summary.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "summary service unavailable"))
			return
		}

		if err := svc.Refresh(r.Context()); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "refreshed"})
	}
}

// AdminFinanceChart serves the cached bucketed series for a period.
func AdminFinanceChart(svc summary.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "summary service unavailable"))
			return
		}

		raw := strings.TrimSpace(r.URL.Query().Get("period"))
		if raw == "" {
			raw = enums.ChartPeriodMonth.String()
		}
		period, err := enums.ParseChartPeriod(raw)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid period"))
			return
		}

		result, err := svc.GetChart(r.Context(), period)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
