// Package models holds the domain entities shared by the store, the
// availability engine and the HTTP API.
package models

import "time"

// Reservation statuses.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
	StatusCompleted = "completed"
	StatusNoShow    = "no_show"
)

// Reservation sources.
const (
	SourceVoiceAgent = "voice_agent"
	SourceManual     = "manual"
	SourceWebsite    = "website"
	SourcePhone      = "phone"
	SourceN8N        = "n8n"
)

// StaffMember is a bookable member of a salon team. Referenced by shifts,
// exceptions and reservations; deactivated via IsActive, never deleted.
type StaffMember struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"` // owning salon account
	Name      string    `json:"name"`
	Role      string    `json:"role,omitempty"`
	Color     string    `json:"color,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StaffShift is the recurring weekly working window for a staff member.
// At most one row exists per (staff member, day of week); writes upsert.
type StaffShift struct {
	ID            string    `json:"id"`
	StaffMemberID string    `json:"staff_member_id"`
	DayOfWeek     int       `json:"day_of_week"` // 0=Sunday..6=Saturday
	StartTime     string    `json:"start_time"`  // "HH:MM"
	EndTime       string    `json:"end_time"`    // "HH:MM"
	IsWorking     bool      `json:"is_working"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ShiftException overrides the recurring shift on a specific date.
// Without times it blocks the whole day; with times it blocks a sub-range
// (a break) inside an otherwise working day.
type ShiftException struct {
	ID            string    `json:"id"`
	StaffMemberID string    `json:"staff_member_id"`
	Date          string    `json:"exception_date"` // "YYYY-MM-DD"
	StartTime     string    `json:"start_time,omitempty"`
	EndTime       string    `json:"end_time,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// IsFullDay reports whether the exception blocks the entire date.
func (e *ShiftException) IsFullDay() bool {
	return e.StartTime == "" && e.EndTime == ""
}

// Reservation is a booking record. Cancellation flips Status to cancelled;
// rows are never deleted so the overlap check stays valid against history.
type Reservation struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	CustomerName  string    `json:"customer_name"`
	CustomerPhone string    `json:"customer_phone,omitempty"`
	CustomerEmail string    `json:"customer_email,omitempty"`
	Date          string    `json:"date"` // "YYYY-MM-DD"
	Time          string    `json:"time"` // "HH:MM"
	EndTime       string    `json:"end_time,omitempty"`
	StaffMemberID string    `json:"staff_member_id,omitempty"`
	ProductID     string    `json:"product_id,omitempty"`
	Status        string    `json:"status"`
	Source        string    `json:"source"`
	Notes         string    `json:"notes,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Product is a bookable service. DurationMinutes feeds the booking length
// when the caller does not supply one.
type Product struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	Name            string    `json:"name"`
	DurationMinutes int       `json:"duration_minutes"`
	Price           float64   `json:"price"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
}

// Contact is the customer record maintained as a side effect of bookings.
type Contact struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Name         string    `json:"name"`
	Phone        string    `json:"phone,omitempty"`
	Email        string    `json:"email,omitempty"`
	BookingCount int       `json:"booking_count"`
	LastVisit    string    `json:"last_visit,omitempty"` // "YYYY-MM-DD"
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
