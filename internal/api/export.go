package api

import (
	"fmt"
	"net/http"

	"zenbook/internal/export"
	"zenbook/internal/metrics"
	"zenbook/internal/schedule"
)

// handleExportReservations streams an xlsx workbook of reservations in a
// date range, any status included.
// GET /api/reservations/export?from=YYYY-MM-DD&to=YYYY-MM-DD
func (s *HTTPServer) handleExportReservations(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("export_reservations")
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use GET")
		return
	}

	q := r.URL.Query()
	from, to := q.Get("from"), q.Get("to")
	if from == "" || to == "" {
		writeError(w, http.StatusBadRequest, "from and to are required")
		return
	}
	if _, err := schedule.ParseDate(from); err != nil {
		writeError(w, http.StatusBadRequest, "invalid from date; expected YYYY-MM-DD")
		return
	}
	if _, err := schedule.ParseDate(to); err != nil {
		writeError(w, http.StatusBadRequest, "invalid to date; expected YYYY-MM-DD")
		return
	}
	if from > to {
		writeError(w, http.StatusBadRequest, "from must be before or equal to to")
		return
	}

	account := accountID(r)

	reservations, err := s.db.ListReservationsByDateRange(r.Context(), account, from, to)
	if err != nil {
		s.log.Error().Err(err).Msg("export query failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	staffNames := make(map[string]string)
	staff, err := s.db.ListActiveStaff(r.Context(), account)
	if err != nil {
		s.log.Error().Err(err).Msg("export staff lookup failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	for _, m := range staff {
		staffNames[m.ID] = m.Name
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=reservations_%s_%s.xlsx", from, to))
	if err := export.WriteReservations(w, reservations, staffNames); err != nil {
		s.log.Error().Err(err).Msg("workbook write failed")
	}
}
