package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"zenbook/internal/apikey"
	"zenbook/internal/availability"
	"zenbook/internal/database"
	"zenbook/internal/models"
	"zenbook/internal/schedule"
)

const (
	testAPIKey  = "zen-test-key"
	testAccount = "acct-1"
	otherKey    = "zen-other-key"
	otherAcct   = "acct-2"

	// 2026-01-06 is a Tuesday.
	tuesday = "2026-01-06"
)

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func newTestServer(t *testing.T, ratePerMinute int) (*HTTPServer, *database.DB, string) {
	t.Helper()

	db, err := database.NewDB(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	if err := db.CreateAPIKey(ctx, testAccount, apikey.HashKey(testAPIKey), "test"); err != nil {
		t.Fatalf("seed api key: %v", err)
	}
	if err := db.CreateAPIKey(ctx, otherAcct, apikey.HashKey(otherKey), "other"); err != nil {
		t.Fatalf("seed api key: %v", err)
	}

	logger := zerolog.Nop()
	keys := apikey.NewValidator(db, nil, time.Minute, logger)
	engine := availability.NewEngine(db, availability.DefaultConfig(), logger)

	staff := &models.StaffMember{UserID: testAccount, Name: "Sarah", IsActive: true}
	if err := db.CreateStaffMember(ctx, staff); err != nil {
		t.Fatalf("seed staff: %v", err)
	}
	// Working Tuesdays 09:00-17:00.
	shift := &models.StaffShift{StaffMemberID: staff.ID, DayOfWeek: 2, StartTime: "09:00", EndTime: "17:00", IsWorking: true}
	if err := db.UpsertShift(ctx, shift); err != nil {
		t.Fatalf("seed shift: %v", err)
	}

	return NewHTTPServer(":0", db, engine, keys, ratePerMinute, logger), db, staff.ID
}

func doRequest(t *testing.T, s *HTTPServer, method, target, key string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if raw, ok := body.(string); ok {
		reader = bytes.NewReader([]byte(raw))
	} else if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("X-Api-Key", key)
	}

	w := httptest.NewRecorder()
	s.server.Handler.ServeHTTP(w, req)
	return w
}

func slotTimes(t *testing.T, w *httptest.ResponseRecorder) []string {
	t.Helper()

	var resp struct {
		Success bool `json:"success"`
		Slots   []struct {
			Time string `json:"time"`
		} `json:"slots"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal slots: %v", err)
	}
	if !resp.Success {
		t.Fatalf("success = false, body: %s", w.Body.String())
	}
	times := make([]string, 0, len(resp.Slots))
	for _, s := range resp.Slots {
		times = append(times, s.Time)
	}
	return times
}

func TestAuth(t *testing.T) {
	srv, _, _ := newTestServer(t, 0)

	tests := []struct {
		name       string
		key        string
		wantStatus int
	}{
		{"missing key", "", http.StatusUnauthorized},
		{"unknown key", "bogus", http.StatusUnauthorized},
		{"valid key", testAPIKey, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(t, srv, http.MethodGet, "/api/slots?date="+tuesday, tt.key, nil)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestRateLimit(t *testing.T) {
	srv, _, _ := newTestServer(t, 2)

	for i := 0; i < 2; i++ {
		w := doRequest(t, srv, http.MethodGet, "/api/slots?date="+tuesday, testAPIKey, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, want %d", i, w.Code, http.StatusOK)
		}
	}

	w := doRequest(t, srv, http.MethodGet, "/api/slots?date="+tuesday, testAPIKey, nil)
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}

	// The limit is per account, other accounts are unaffected.
	w = doRequest(t, srv, http.MethodGet, "/api/slots?date="+tuesday, otherKey, nil)
	if w.Code != http.StatusOK {
		t.Errorf("other account status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestHandleSlots_Validation(t *testing.T) {
	srv, _, _ := newTestServer(t, 0)

	tests := []struct {
		name       string
		target     string
		method     string
		wantStatus int
	}{
		{"missing date", "/api/slots", http.MethodGet, http.StatusBadRequest},
		{"bad date", "/api/slots?date=06-01-2026", http.MethodGet, http.StatusBadRequest},
		{"bad duration", "/api/slots?date=" + tuesday + "&duration=abc", http.MethodGet, http.StatusBadRequest},
		{"negative duration", "/api/slots?date=" + tuesday + "&duration=-30", http.MethodGet, http.StatusBadRequest},
		{"wrong method", "/api/slots?date=" + tuesday, http.MethodPost, http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(t, srv, tt.method, tt.target, testAPIKey, nil)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d, body: %s", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}

func TestHandleSlots_FullDay(t *testing.T) {
	srv, _, _ := newTestServer(t, 0)

	w := doRequest(t, srv, http.MethodGet, "/api/slots?date="+tuesday, testAPIKey, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", w.Code, w.Body.String())
	}

	times := slotTimes(t, w)
	if len(times) != 15 {
		t.Fatalf("got %d slots, want 15: %v", len(times), times)
	}
	if times[0] != "09:00" {
		t.Errorf("first slot = %q, want %q", times[0], "09:00")
	}
	if times[len(times)-1] != "16:00" {
		t.Errorf("last slot = %q, want %q", times[len(times)-1], "16:00")
	}
}

func TestHandleSlots_NonWorkingDay(t *testing.T) {
	srv, _, _ := newTestServer(t, 0)

	// 2026-01-05 is a Monday; no shift exists.
	w := doRequest(t, srv, http.MethodGet, "/api/slots?date=2026-01-05", testAPIKey, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", w.Code, w.Body.String())
	}
	if times := slotTimes(t, w); len(times) != 0 {
		t.Errorf("got %d slots, want 0", len(times))
	}
}

func TestCreateReservation_Flow(t *testing.T) {
	srv, _, staffID := newTestServer(t, 0)

	body := CreateReservationRequest{
		CustomerName:  "Anna",
		CustomerPhone: "+49111222333",
		Date:          tuesday,
		Time:          "10:00",
		StaffID:       staffID,
	}
	w := doRequest(t, srv, http.MethodPost, "/api/reservations", testAPIKey, body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", w.Code, w.Body.String())
	}

	var resp CreateReservationResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !resp.Success || resp.ReservationID == "" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.EndTime != "11:00" {
		t.Errorf("end_time = %q, want %q", resp.EndTime, "11:00")
	}

	// The booked hour and the starts colliding with it disappear.
	w = doRequest(t, srv, http.MethodGet, "/api/slots?date="+tuesday, testAPIKey, nil)
	times := slotTimes(t, w)
	for _, gone := range []string{"09:30", "10:00", "10:30"} {
		for _, got := range times {
			if got == gone {
				t.Errorf("slot %s still offered after booking", gone)
			}
		}
	}

	// Same slot again conflicts.
	w = doRequest(t, srv, http.MethodPost, "/api/reservations", testAPIKey, body)
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate booking status = %d, want %d", w.Code, http.StatusConflict)
	}

	// Touching booking right after the first one is fine.
	body.Time = "11:00"
	w = doRequest(t, srv, http.MethodPost, "/api/reservations", testAPIKey, body)
	if w.Code != http.StatusOK {
		t.Errorf("touching booking status = %d, body: %s", w.Code, w.Body.String())
	}
}

func TestCreateReservation_Validation(t *testing.T) {
	srv, _, staffID := newTestServer(t, 0)

	tests := []struct {
		name       string
		body       any
		wantStatus int
		wantError  string
	}{
		{
			name:       "invalid JSON",
			body:       "not json",
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid JSON body",
		},
		{
			name:       "unknown field",
			body:       map[string]string{"customer": "Anna"},
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid JSON body",
		},
		{
			name:       "missing customer name",
			body:       CreateReservationRequest{Date: tuesday, Time: "10:00", StaffID: staffID},
			wantStatus: http.StatusBadRequest,
			wantError:  "customer_name is required",
		},
		{
			name:       "missing date",
			body:       CreateReservationRequest{CustomerName: "Anna", Time: "10:00"},
			wantStatus: http.StatusBadRequest,
			wantError:  "date and time are required",
		},
		{
			name:       "bad time",
			body:       CreateReservationRequest{CustomerName: "Anna", Date: tuesday, Time: "25:00"},
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid time format; expected HH:MM",
		},
		{
			name:       "unknown staff",
			body:       CreateReservationRequest{CustomerName: "Anna", Date: tuesday, Time: "10:00", StaffID: "nope"},
			wantStatus: http.StatusBadRequest,
			wantError:  "unknown or inactive staff member",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(t, srv, http.MethodPost, "/api/reservations", testAPIKey, tt.body)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d, body: %s", w.Code, tt.wantStatus, w.Body.String())
			}
			var resp errorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err == nil {
				if resp.Error != tt.wantError {
					t.Errorf("error = %q, want %q", resp.Error, tt.wantError)
				}
			}
		})
	}
}

func TestCreateReservation_OutsideWorkingHours(t *testing.T) {
	srv, _, staffID := newTestServer(t, 0)

	tests := []struct {
		name string
		date string
		time string
	}{
		{"before opening", tuesday, "08:00"},
		{"runs past closing", tuesday, "16:30"},
		{"non-working day", "2026-01-05", "10:00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := CreateReservationRequest{
				CustomerName: "Anna",
				Date:         tt.date,
				Time:         tt.time,
				StaffID:      staffID,
			}
			w := doRequest(t, srv, http.MethodPost, "/api/reservations", testAPIKey, body)
			if w.Code != http.StatusConflict {
				t.Errorf("status = %d, want %d, body: %s", w.Code, http.StatusConflict, w.Body.String())
			}
		})
	}
}

func TestCreateReservation_UnassignedStaff(t *testing.T) {
	srv, _, _ := newTestServer(t, 0)

	// No staff member means no working-hours check applies.
	body := CreateReservationRequest{
		CustomerName: "Walk In",
		Date:         "2026-01-05",
		Time:         "07:00",
	}
	w := doRequest(t, srv, http.MethodPost, "/api/reservations", testAPIKey, body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", w.Code, w.Body.String())
	}

	var resp CreateReservationResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.EndTime != "08:00" {
		t.Errorf("end_time = %q, want %q", resp.EndTime, "08:00")
	}
}

func TestCreateReservation_StaffIDWireName(t *testing.T) {
	srv, _, staffID := newTestServer(t, 0)

	// Callers send "staff_id", exactly as the slots query names it.
	raw := `{"customer_name":"Anna","date":"` + tuesday + `","time":"09:00","staff_id":"` + staffID + `"}`
	w := doRequest(t, srv, http.MethodPost, "/api/reservations", testAPIKey, raw)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", w.Code, w.Body.String())
	}

	var resp CreateReservationResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.EndTime != "10:00" {
		t.Errorf("end_time = %q, want %q", resp.EndTime, "10:00")
	}

	// The booking landed on the staff member, not unassigned.
	w = doRequest(t, srv, http.MethodGet, "/api/slots?date="+tuesday+"&staff_id="+staffID, testAPIKey, nil)
	for _, got := range slotTimes(t, w) {
		if got == "09:00" || got == "09:30" {
			t.Errorf("slot %s still offered after booking", got)
		}
	}
}

func TestCreateReservation_EndsPastMidnight(t *testing.T) {
	srv, _, _ := newTestServer(t, 0)

	// Unassigned, so no working window caps the end time.
	body := CreateReservationRequest{
		CustomerName:    "Night Owl",
		Date:            tuesday,
		Time:            "23:30",
		DurationMinutes: 90,
	}
	w := doRequest(t, srv, http.MethodPost, "/api/reservations", testAPIKey, body)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d, body: %s", w.Code, http.StatusBadRequest, w.Body.String())
	}

	// Ending exactly at midnight is rejected too: "24:00" is not a
	// storable wall-clock value.
	body.Time = "23:00"
	body.DurationMinutes = 60
	w = doRequest(t, srv, http.MethodPost, "/api/reservations", testAPIKey, body)
	if w.Code != http.StatusBadRequest {
		t.Errorf("midnight end status = %d, want %d", w.Code, http.StatusBadRequest)
	}

	body.Time = "22:30"
	body.DurationMinutes = 60
	w = doRequest(t, srv, http.MethodPost, "/api/reservations", testAPIKey, body)
	if w.Code != http.StatusOK {
		t.Errorf("23:30 end status = %d, body: %s", w.Code, w.Body.String())
	}
}

func TestBookingErrorMapping(t *testing.T) {
	srv, _, _ := newTestServer(t, 0)

	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"invalid input", availability.ErrInvalidInput, http.StatusBadRequest},
		{"invalid staff", availability.ErrInvalidStaff, http.StatusBadRequest},
		{"outside working hours", availability.ErrOutsideWorkingHours, http.StatusConflict},
		{"slot conflict", &availability.ConflictError{StaffID: "s", Date: tuesday, Blocking: schedule.Interval{Start: 600, End: 660}}, http.StatusConflict},
		{"concurrent conflict", availability.ErrConcurrentConflict, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			srv.writeBookingError(w, tt.err)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}

	// Only the concurrent case invites a retry.
	w := httptest.NewRecorder()
	srv.writeBookingError(w, availability.ErrConcurrentConflict)
	var retry struct {
		Retryable bool `json:"retryable"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &retry); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !retry.Retryable {
		t.Error("retryable = false, want true")
	}

	// Slot conflicts carry the blocking interval.
	w = httptest.NewRecorder()
	srv.writeBookingError(w, &availability.ConflictError{StaffID: "s", Date: tuesday, Blocking: schedule.Interval{Start: 600, End: 660}})
	var conflict struct {
		Conflict string `json:"conflict"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &conflict); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if conflict.Conflict != "10:00-11:00" {
		t.Errorf("conflict = %q, want %q", conflict.Conflict, "10:00-11:00")
	}
}

func TestCreateReservation_ProductDuration(t *testing.T) {
	srv, db, staffID := newTestServer(t, 0)

	product := &models.Product{UserID: testAccount, Name: "Coloring", DurationMinutes: 90, IsActive: true}
	if err := db.CreateProduct(context.Background(), product); err != nil {
		t.Fatalf("seed product: %v", err)
	}

	body := CreateReservationRequest{
		CustomerName: "Anna",
		Date:         tuesday,
		Time:         "10:00",
		StaffID:      staffID,
		ProductID:    product.ID,
	}
	w := doRequest(t, srv, http.MethodPost, "/api/reservations", testAPIKey, body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", w.Code, w.Body.String())
	}

	var resp CreateReservationResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.EndTime != "11:30" {
		t.Errorf("end_time = %q, want %q", resp.EndTime, "11:30")
	}
}

func TestCreateReservation_AccountIsolation(t *testing.T) {
	srv, _, staffID := newTestServer(t, 0)

	// Another account cannot book this account's staff.
	body := CreateReservationRequest{
		CustomerName: "Intruder",
		Date:         tuesday,
		Time:         "10:00",
		StaffID:      staffID,
	}
	w := doRequest(t, srv, http.MethodPost, "/api/reservations", otherKey, body)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d, body: %s", w.Code, http.StatusBadRequest, w.Body.String())
	}
}

func TestCancelReservation(t *testing.T) {
	srv, _, staffID := newTestServer(t, 0)

	create := CreateReservationRequest{
		CustomerName:  "Anna",
		CustomerPhone: "+49111222333",
		Date:          tuesday,
		Time:          "10:00",
		StaffID:       staffID,
	}
	w := doRequest(t, srv, http.MethodPost, "/api/reservations", testAPIKey, create)
	if w.Code != http.StatusOK {
		t.Fatalf("create status = %d, body: %s", w.Code, w.Body.String())
	}
	var created CreateReservationResponse
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	w = doRequest(t, srv, http.MethodPost, "/api/reservations/cancel", testAPIKey,
		CancelReservationRequest{ReservationID: created.ReservationID})
	if w.Code != http.StatusOK {
		t.Fatalf("cancel status = %d, body: %s", w.Code, w.Body.String())
	}
	var cancelled CancelReservationResponse
	if err := json.Unmarshal(w.Body.Bytes(), &cancelled); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if cancelled.CancelledCount != 1 {
		t.Errorf("cancelled_count = %d, want 1", cancelled.CancelledCount)
	}

	// The slot opens again.
	w = doRequest(t, srv, http.MethodPost, "/api/reservations", testAPIKey, create)
	if w.Code != http.StatusOK {
		t.Errorf("re-book status = %d, body: %s", w.Code, w.Body.String())
	}

	// Cancelling an already cancelled id finds nothing.
	w = doRequest(t, srv, http.MethodPost, "/api/reservations/cancel", testAPIKey,
		CancelReservationRequest{ReservationID: created.ReservationID})
	if w.Code != http.StatusNotFound {
		t.Errorf("repeat cancel status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestCancelReservation_ByPhoneAndDate(t *testing.T) {
	srv, _, staffID := newTestServer(t, 0)

	phone := "+49111222333"
	for _, at := range []string{"10:00", "14:00"} {
		body := CreateReservationRequest{
			CustomerName:  "Anna",
			CustomerPhone: phone,
			Date:          tuesday,
			Time:          at,
			StaffID:       staffID,
		}
		w := doRequest(t, srv, http.MethodPost, "/api/reservations", testAPIKey, body)
		if w.Code != http.StatusOK {
			t.Fatalf("create at %s status = %d, body: %s", at, w.Code, w.Body.String())
		}
	}

	w := doRequest(t, srv, http.MethodPost, "/api/reservations/cancel", testAPIKey,
		CancelReservationRequest{CustomerPhone: phone, Date: tuesday})
	if w.Code != http.StatusOK {
		t.Fatalf("cancel status = %d, body: %s", w.Code, w.Body.String())
	}
	var resp CancelReservationResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.CancelledCount != 2 {
		t.Errorf("cancelled_count = %d, want 2", resp.CancelledCount)
	}
}

func TestCancelReservation_Validation(t *testing.T) {
	srv, _, _ := newTestServer(t, 0)

	tests := []struct {
		name       string
		body       any
		wantStatus int
	}{
		{"empty body", CancelReservationRequest{}, http.StatusBadRequest},
		{"phone without date", CancelReservationRequest{CustomerPhone: "+49111"}, http.StatusBadRequest},
		{"bad date", CancelReservationRequest{CustomerPhone: "+49111", Date: "06-01-2026"}, http.StatusBadRequest},
		{"unknown id", CancelReservationRequest{ReservationID: "missing"}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(t, srv, http.MethodPost, "/api/reservations/cancel", testAPIKey, tt.body)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d, body: %s", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}

func TestExportReservations(t *testing.T) {
	srv, _, staffID := newTestServer(t, 0)

	body := CreateReservationRequest{
		CustomerName: "Anna",
		Date:         tuesday,
		Time:         "10:00",
		StaffID:      staffID,
	}
	w := doRequest(t, srv, http.MethodPost, "/api/reservations", testAPIKey, body)
	if w.Code != http.StatusOK {
		t.Fatalf("create status = %d, body: %s", w.Code, w.Body.String())
	}

	w = doRequest(t, srv, http.MethodGet, "/api/reservations/export?from=2026-01-01&to=2026-01-31", testAPIKey, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("export status = %d, body: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" {
		t.Errorf("content type = %q", ct)
	}
	if w.Body.Len() == 0 {
		t.Error("empty workbook body")
	}

	w = doRequest(t, srv, http.MethodGet, "/api/reservations/export?from=2026-02-01&to=2026-01-01", testAPIKey, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("inverted range status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}
