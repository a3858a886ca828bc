package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"zenbook/internal/availability"
	"zenbook/internal/database"
	"zenbook/internal/metrics"
	"zenbook/internal/models"
	"zenbook/internal/schedule"
)

// CreateReservationRequest is the request body for POST /api/reservations.
type CreateReservationRequest struct {
	CustomerName    string `json:"customer_name"`
	CustomerPhone   string `json:"customer_phone,omitempty"`
	CustomerEmail   string `json:"customer_email,omitempty"`
	Date            string `json:"date"` // Format: YYYY-MM-DD
	Time            string `json:"time"` // Format: HH:MM
	StaffID         string `json:"staff_id,omitempty"`
	ProductID       string `json:"product_id,omitempty"`
	DurationMinutes int    `json:"duration_minutes,omitempty"`
	Source          string `json:"source,omitempty"`
	Notes           string `json:"notes,omitempty"`
}

// CreateReservationResponse is the response for POST /api/reservations.
type CreateReservationResponse struct {
	Success       bool   `json:"success"`
	ReservationID string `json:"reservation_id,omitempty"`
	EndTime       string `json:"end_time,omitempty"`
	Message       string `json:"message,omitempty"`
}

// CancelReservationRequest is the request body for POST /api/reservations/cancel.
// Either reservation_id or the customer_phone+date pair identifies the target.
type CancelReservationRequest struct {
	ReservationID string `json:"reservation_id,omitempty"`
	CustomerPhone string `json:"customer_phone,omitempty"`
	Date          string `json:"date,omitempty"` // Format: YYYY-MM-DD
}

// CancelReservationResponse is the response for POST /api/reservations/cancel.
type CancelReservationResponse struct {
	Success        bool   `json:"success"`
	CancelledCount int    `json:"cancelled_count"`
	Message        string `json:"message,omitempty"`
}

// handleCreateReservation validates and books a slot.
// POST /api/reservations
func (s *HTTPServer) handleCreateReservation(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("create_reservation")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use POST")
		return
	}

	var req CreateReservationRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.CustomerName == "" {
		writeError(w, http.StatusBadRequest, "customer_name is required")
		return
	}
	if req.Date == "" || req.Time == "" {
		writeError(w, http.StatusBadRequest, "date and time are required")
		return
	}
	if _, err := schedule.ParseDate(req.Date); err != nil {
		writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
		return
	}
	start, err := schedule.ParseClock(req.Time)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid time format; expected HH:MM")
		return
	}

	account := accountID(r)

	duration, err := s.resolveDuration(r, account, &req)
	if err != nil {
		s.writeBookingError(w, err)
		return
	}

	source := req.Source
	if source == "" {
		source = models.SourceVoiceAgent
	}

	var endTime string
	if req.StaffID != "" {
		endTime, err = s.engine.CanBook(r.Context(), account, req.StaffID, req.Date, req.Time, duration)
		if err != nil {
			s.writeBookingError(w, err)
			return
		}
	} else {
		// Unassigned bookings skip the working-hours check: there is no
		// shift to check them against. The store still records them as
		// blockers. The end time must stay a valid wall-clock value.
		end := schedule.NewInterval(start, duration).End
		if end >= 24*60 {
			writeError(w, http.StatusBadRequest, "booking must end before midnight")
			return
		}
		endTime = schedule.FormatClock(end)
	}

	reservation := &models.Reservation{
		ID:            uuid.NewString(),
		UserID:        account,
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
		CustomerEmail: req.CustomerEmail,
		Date:          req.Date,
		Time:          req.Time,
		EndTime:       endTime,
		StaffMemberID: req.StaffID,
		ProductID:     req.ProductID,
		Status:        models.StatusConfirmed,
		Source:        source,
		Notes:         req.Notes,
	}

	if err := s.db.CreateReservation(r.Context(), reservation, s.engine.DefaultDuration()); err != nil {
		// The tx re-check losing to a concurrent insert is the engine's
		// concurrent-conflict case, not a generic store failure.
		if errors.Is(err, database.ErrConflict) {
			err = fmt.Errorf("%w: %s at %s", availability.ErrConcurrentConflict, req.Date, req.Time)
		}
		s.writeBookingError(w, err)
		return
	}

	// Contact bookkeeping must not fail the booking.
	if err := s.db.RecordContactVisit(r.Context(), account, req.CustomerName, req.CustomerPhone, req.CustomerEmail, req.Date); err != nil {
		s.log.Warn().Err(err).Str("reservation_id", reservation.ID).Msg("contact upsert failed")
	}

	metrics.IncReservationCreated(source)
	s.log.Info().
		Str("reservation_id", reservation.ID).
		Str("date", req.Date).
		Str("time", req.Time).
		Str("staff_id", req.StaffID).
		Msg("reservation created")

	writeJSON(w, http.StatusOK, CreateReservationResponse{
		Success:       true,
		ReservationID: reservation.ID,
		EndTime:       endTime,
		Message:       fmt.Sprintf("Reservation confirmed for %s at %s", req.Date, req.Time),
	})
}

// resolveDuration picks the booking length: explicit request value, then the
// product's duration, then the configured default.
func (s *HTTPServer) resolveDuration(r *http.Request, account string, req *CreateReservationRequest) (int, error) {
	if req.DurationMinutes < 0 {
		return 0, fmt.Errorf("%w: duration must be positive", availability.ErrInvalidInput)
	}
	if req.DurationMinutes > 0 {
		return req.DurationMinutes, nil
	}
	if req.ProductID != "" {
		product, err := s.db.GetProduct(r.Context(), account, req.ProductID)
		if err != nil {
			return 0, err
		}
		if product != nil && product.DurationMinutes > 0 {
			return product.DurationMinutes, nil
		}
	}
	return s.engine.DefaultDuration(), nil
}

// handleCancelReservation soft-cancels one or more reservations.
// POST /api/reservations/cancel
func (s *HTTPServer) handleCancelReservation(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("cancel_reservation")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use POST")
		return
	}

	var req CancelReservationRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	account := accountID(r)

	var (
		count int
		err   error
	)
	switch {
	case req.ReservationID != "":
		count, err = s.db.CancelReservationByID(r.Context(), account, req.ReservationID)
	case req.CustomerPhone != "" && req.Date != "":
		if _, derr := schedule.ParseDate(req.Date); derr != nil {
			writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
			return
		}
		count, err = s.db.CancelReservationsByPhoneDate(r.Context(), account, req.CustomerPhone, req.Date)
	default:
		writeError(w, http.StatusBadRequest, "reservation_id or customer_phone with date is required")
		return
	}
	if err != nil {
		s.log.Error().Err(err).Msg("cancel failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if count == 0 {
		writeError(w, http.StatusNotFound, "no matching reservations found")
		return
	}

	metrics.AddReservationsCancelled(count)
	s.log.Info().
		Int("cancelled", count).
		Str("reservation_id", req.ReservationID).
		Str("date", req.Date).
		Msg("reservations cancelled")

	writeJSON(w, http.StatusOK, CancelReservationResponse{
		Success:        true,
		CancelledCount: count,
		Message:        fmt.Sprintf("Cancelled %d reservation(s)", count),
	})
}
