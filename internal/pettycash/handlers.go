package pettycash

import (
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"trcinventory/internal/middleware"
)

func init() {
	middleware.RegisterError(middleware.ErrorRule{
		Target: ErrInvalidAmount, Status: http.StatusBadRequest,
		Code: "invalid_amount", Message: "Amount must be greater than zero",
	})
	middleware.RegisterError(middleware.ErrorRule{
		Target: ErrInvalidDate, Status: http.StatusBadRequest,
		Code: "invalid_date", Message: "Date must be YYYY-MM-DD",
	})
}

// CapitalRequest is the body of POST /api/petty-cash/capitals.
type CapitalRequest struct {
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
}

// CapitalsHandler handles GET and POST /api/petty-cash/capitals
func (s *Service) CapitalsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		caps, err := s.ListCapitals(r.Context())
		if err != nil {
			middleware.WriteError(w, r, err)
			return
		}
		middleware.WriteAPISuccess(w, r, caps)
	case http.MethodPost:
		var req CapitalRequest
		if err := middleware.ParseJSONRequest(r, &req); err != nil {
			middleware.InvalidRequest(w, r, err)
			return
		}
		capital, err := s.CreateCapital(r.Context(), req.Description, req.Amount)
		if err != nil {
			middleware.WriteError(w, r, err)
			return
		}
		middleware.WriteAPICreated(w, r, capital)
	default:
		middleware.WriteAPIError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed", "")
	}
}

// ExpensesHandler handles GET and POST /api/petty-cash/capitals/{group}/expenses
func (s *Service) ExpensesHandler(w http.ResponseWriter, r *http.Request) {
	group := r.PathValue("group")

	switch r.Method {
	case http.MethodGet:
		exps, err := s.Expenses(r.Context(), group)
		if err != nil {
			middleware.WriteError(w, r, err)
			return
		}
		middleware.WriteAPISuccess(w, r, exps)
	case http.MethodPost:
		var req ExpenseInput
		if err := middleware.ParseJSONRequest(r, &req); err != nil {
			middleware.InvalidRequest(w, r, err)
			return
		}
		result, err := s.AddExpense(r.Context(), group, req)
		if err != nil {
			middleware.WriteError(w, r, err)
			return
		}
		middleware.WriteAPICreated(w, r, result)
	default:
		middleware.WriteAPIError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed", "")
	}
}

// ExpenseHandler handles PUT /api/petty-cash/expenses/{id}
func (s *Service) ExpenseHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		middleware.WriteAPIError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed", "")
		return
	}

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		middleware.WriteAPIError(w, r, http.StatusBadRequest, "invalid_request", "Invalid expense id", r.PathValue("id"))
		return
	}

	var req ExpenseInput
	if err := middleware.ParseJSONRequest(r, &req); err != nil {
		middleware.InvalidRequest(w, r, err)
		return
	}
	result, err := s.UpdateExpense(r.Context(), id, req)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	middleware.WriteAPISuccess(w, r, result)
}
