package inventory

import (
	"net/http"
	"strconv"

	"trcinventory/internal/data"
	"trcinventory/internal/middleware"
)

func init() {
	middleware.RegisterError(middleware.ErrorRule{
		Target: ErrSnapshotExists, Status: http.StatusConflict,
		Code: "snapshot_exists", Message: "Today's inventory snapshot already exists",
	})
}

// SnapshotsHandler handles GET and POST /api/inventory/snapshots
func (s *Service) SnapshotsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		snaps, err := s.ListSnapshots(r.Context())
		if err != nil {
			middleware.WriteError(w, r, err)
			return
		}
		middleware.WriteAPISuccess(w, r, snaps)
	case http.MethodPost:
		created, err := s.CreateSnapshot(r.Context())
		if err != nil {
			middleware.WriteError(w, r, err)
			return
		}
		middleware.WriteAPICreated(w, r, created)
	default:
		middleware.WriteAPIError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed", "")
	}
}

// LinesHandler handles GET and POST /api/inventory/snapshots/{group}/lines
func (s *Service) LinesHandler(w http.ResponseWriter, r *http.Request) {
	group := r.PathValue("group")
	if group == "" {
		middleware.WriteAPIError(w, r, http.StatusBadRequest, "invalid_request", "Snapshot group is required", "")
		return
	}

	switch r.Method {
	case http.MethodGet:
		lines, err := s.SnapshotLines(r.Context(), group)
		if err != nil {
			middleware.WriteError(w, r, err)
			return
		}
		middleware.WriteAPISuccess(w, r, lines)
	case http.MethodPost:
		line, err := s.AddLine(r.Context(), group)
		if err != nil {
			middleware.WriteError(w, r, err)
			return
		}
		middleware.WriteAPICreated(w, r, line)
	default:
		middleware.WriteAPIError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed", "")
	}
}

// LineHandler handles PUT /api/inventory/lines/{id}
func (s *Service) LineHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		middleware.WriteAPIError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed", "")
		return
	}

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		middleware.WriteAPIError(w, r, http.StatusBadRequest, "invalid_request", "Invalid line id", r.PathValue("id"))
		return
	}

	var req UpdateLineRequest
	if err := middleware.ParseJSONRequest(r, &req); err != nil {
		middleware.InvalidRequest(w, r, err)
		return
	}

	line, err := s.UpdateLine(r.Context(), data.InventoryLine{
		ID:             id,
		ItemName:       req.ItemName,
		BeginningStock: req.BeginningStock,
		QtyUsed:        req.QtyUsed,
		EndingStock:    req.EndingStock,
	})
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	middleware.WriteAPISuccess(w, r, line)
}
