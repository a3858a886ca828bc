package api

import (
	"net/http"
	"strconv"

	"zenbook/internal/metrics"
)

// SlotsResponse is the response for GET /api/slots.
type SlotsResponse struct {
	Success bool        `json:"success"`
	Date    string      `json:"date"`
	Slots   interface{} `json:"slots"`
}

// handleSlots returns open slots for a date.
// GET /api/slots?date=YYYY-MM-DD&staff_id=...&duration=60
func (s *HTTPServer) handleSlots(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("slots")
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use GET")
		return
	}

	q := r.URL.Query()
	date := q.Get("date")
	if date == "" {
		writeError(w, http.StatusBadRequest, "date is required")
		return
	}

	duration := s.engine.DefaultDuration()
	if raw := q.Get("duration"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			writeError(w, http.StatusBadRequest, "invalid duration; expected positive minutes")
			return
		}
		duration = v
	}

	slots, err := s.engine.GenerateSlots(r.Context(), accountID(r), q.Get("staff_id"), date, duration)
	if err != nil {
		s.writeBookingError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, SlotsResponse{
		Success: true,
		Date:    date,
		Slots:   slots,
	})
}
