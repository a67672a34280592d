package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/mrkadirov2005/shopPos/internal/domain"
)

func (a *API) handleSales(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		sales, err := a.service.ListSales(r.Context(), r.URL.Query().Get("shop_id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"sales": sales})
	case http.MethodPost:
		// Point-of-sale clients send whole cart rows, so unknown fields are
		// ignored here.
		var req domain.SaleSubmitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeDecodeError(w, err)
			return
		}

		resp, err := a.service.SubmitSale(r.Context(), req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, resp)
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleSaleByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	id, action := pathID(r.URL.Path, "/api/v1/sales/")
	if id == "" || action != "" {
		writeError(w, http.StatusNotFound, errors.New("sale not found"))
		return
	}

	detail, err := a.service.GetSale(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (a *API) handleProducts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		products, err := a.service.ListProducts(r.Context(), r.URL.Query().Get("shop_id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"products": products})
	case http.MethodPost:
		var req domain.ProductCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeDecodeError(w, err)
			return
		}

		product, err := a.service.CreateProduct(r.Context(), req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"product": product})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleProductActions(w http.ResponseWriter, r *http.Request) {
	id, action := pathID(r.URL.Path, "/api/v1/products/")
	if id == "" {
		writeError(w, http.StatusBadRequest, errors.New("product id required"))
		return
	}

	if action == "restock" {
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w)
			return
		}
		var req domain.RestockRequest
		if err := decodeJSON(r, &req); err != nil {
			writeDecodeError(w, err)
			return
		}
		product, err := a.service.RestockProduct(r.Context(), id, req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"product": product})
		return
	}
	if action != "" {
		writeError(w, http.StatusNotFound, errors.New("unknown product action"))
		return
	}

	switch r.Method {
	case http.MethodGet:
		product, err := a.service.GetProduct(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"product": product})
	case http.MethodPatch:
		var req domain.ProductUpdateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeDecodeError(w, err)
			return
		}
		product, err := a.service.UpdateProduct(r.Context(), id, req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"product": product})
	case http.MethodDelete:
		if err := a.service.DeleteProduct(r.Context(), id); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"message": "Product deleted successfully"})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleDebts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		query := r.URL.Query()
		filter := domain.DebtFilter{
			ShopID:         query.Get("shop_id"),
			Customer:       query.Get("customer"),
			UnreturnedOnly: strings.EqualFold(strings.TrimSpace(query.Get("unreturned")), "true"),
		}
		if raw := strings.TrimSpace(query.Get("branch_id")); raw != "" {
			branch, err := strconv.Atoi(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, errors.New("branch_id must be an integer"))
				return
			}
			filter.BranchID = &branch
		}

		debts, err := a.service.ListDebts(r.Context(), filter)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"debts": debts})
	case http.MethodPost:
		var req domain.DebtCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeDecodeError(w, err)
			return
		}
		debt, err := a.service.CreateDebt(r.Context(), req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"debt": debt})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleDebtStatistics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	stats, err := a.service.DebtStatistics(r.Context(), r.URL.Query().Get("shop_id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (a *API) handleDebtActions(w http.ResponseWriter, r *http.Request) {
	id, action := pathID(r.URL.Path, "/api/v1/debts/")
	if id == "" {
		writeError(w, http.StatusBadRequest, errors.New("debt id required"))
		return
	}

	if action == "returned" {
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w)
			return
		}
		debt, err := a.service.MarkDebtReturned(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"debt": debt})
		return
	}
	if action != "" {
		writeError(w, http.StatusNotFound, errors.New("unknown debt action"))
		return
	}

	switch r.Method {
	case http.MethodGet:
		debt, err := a.service.GetDebt(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"debt": debt})
	case http.MethodPatch:
		var req domain.DebtUpdateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeDecodeError(w, err)
			return
		}
		debt, err := a.service.UpdateDebt(r.Context(), id, req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"debt": debt})
	case http.MethodDelete:
		if err := a.service.DeleteDebt(r.Context(), id); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"message": "Debt deleted successfully"})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleFinanceSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	summary, err := a.service.FinanceSummary(r.Context(), r.URL.Query().Get("shop_id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (a *API) handleDayStatistics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	day, err := calendarDayFromQuery(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	stats, err := a.service.DayStatistics(r.Context(), r.URL.Query().Get("shop_id"), day)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (a *API) handleDayExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	day, err := calendarDayFromQuery(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	export, err := a.service.ExportDayStatistics(r.Context(), r.URL.Query().Get("shop_id"), day, r.URL.Query().Get("format"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName))
	w.Header().Set("Content-Length", strconv.Itoa(len(export.Body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(export.Body)
}

func (a *API) handleWeekStatistics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	week, err := a.service.WeekStatistics(r.Context(), r.URL.Query().Get("shop_id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, week)
}

func (a *API) handleHighStock(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	products, err := a.service.HighStockProducts(r.Context(), r.URL.Query().Get("shop_id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": products})
}

func (a *API) handleLowStock(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	products, err := a.service.LowStockProducts(r.Context(), r.URL.Query().Get("shop_id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": products})
}

func (a *API) handleReports(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	limit := parsePositiveLimit(r.URL.Query().Get("limit"), 100, 500)

	events, err := a.service.ListAuditEvents(r.Context(), r.URL.Query().Get("shop_id"), limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reports": events})
}

func calendarDayFromQuery(r *http.Request) (domain.CalendarDay, error) {
	var day domain.CalendarDay
	var err error
	if day.Day, err = queryInt(r, "day"); err != nil {
		return domain.CalendarDay{}, err
	}
	if day.Month, err = queryInt(r, "month"); err != nil {
		return domain.CalendarDay{}, err
	}
	if day.Year, err = queryInt(r, "year"); err != nil {
		return domain.CalendarDay{}, err
	}
	return day, nil
}
