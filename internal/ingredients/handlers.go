package ingredients

import (
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"trcinventory/internal/data"
	"trcinventory/internal/middleware"
)

// UpdateRequest is the body of PUT /api/ingredients/{id}.
type UpdateRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Supplier    string          `json:"supplier"`
	Price       decimal.Decimal `json:"price"`
}

// CollectionHandler handles GET and POST /api/ingredients
func (s *Service) CollectionHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		items, err := s.List(r.Context())
		if err != nil {
			middleware.WriteError(w, r, err)
			return
		}
		middleware.WriteAPISuccess(w, r, items)
	case http.MethodPost:
		item, err := s.Add(r.Context())
		if err != nil {
			middleware.WriteError(w, r, err)
			return
		}
		middleware.WriteAPICreated(w, r, item)
	default:
		middleware.WriteAPIError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed", "")
	}
}

// ItemHandler handles PUT /api/ingredients/{id}
func (s *Service) ItemHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		middleware.WriteAPIError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed", "")
		return
	}

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		middleware.WriteAPIError(w, r, http.StatusBadRequest, "invalid_request", "Invalid ingredient id", r.PathValue("id"))
		return
	}

	var req UpdateRequest
	if err := middleware.ParseJSONRequest(r, &req); err != nil {
		middleware.InvalidRequest(w, r, err)
		return
	}

	item, err := s.Update(r.Context(), data.Ingredient{
		ID:          id,
		Name:        req.Name,
		Description: req.Description,
		Supplier:    req.Supplier,
		Price:       req.Price,
	})
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	middleware.WriteAPISuccess(w, r, item)
}
