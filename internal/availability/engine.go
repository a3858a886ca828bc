// Package availability computes bookable time windows for salon staff and
// validates new bookings against the same model: weekly recurring shifts,
// date-specific exceptions and existing reservations.
package availability

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"zenbook/internal/models"
	"zenbook/internal/schedule"
)

// Store is the read side the engine needs. Every query is scoped to the
// owning account; implementations must never leak rows across accounts.
type Store interface {
	GetStaffMember(ctx context.Context, accountID, staffID string) (*models.StaffMember, error)
	ListActiveStaff(ctx context.Context, accountID string) ([]models.StaffMember, error)
	GetShift(ctx context.Context, staffID string, dayOfWeek int) (*models.StaffShift, error)
	ListExceptions(ctx context.Context, staffID, date string) ([]models.ShiftException, error)
	ListActiveReservations(ctx context.Context, accountID, staffID, date string) ([]models.Reservation, error)
}

// Config holds the tunable booking policy.
type Config struct {
	// DefaultDurationMinutes is assumed for reservations without an end
	// time and for requests that do not specify a duration.
	DefaultDurationMinutes int
	// GranularityMinutes is the step between candidate slot starts.
	GranularityMinutes int
}

// DefaultConfig mirrors the policy of the original booking flow.
func DefaultConfig() Config {
	return Config{
		DefaultDurationMinutes: 60,
		GranularityMinutes:     30,
	}
}

// Slot is a bookable start time for a specific staff member.
type Slot struct {
	Time      string `json:"time"` // "HH:MM"
	StaffID   string `json:"staff_id"`
	StaffName string `json:"staff_name"`
}

// Engine is a stateless computation over data read immediately before use.
// It performs no locking; the store's transactional insert is the sole
// arbiter of concurrent bookings.
type Engine struct {
	store Store
	cfg   Config
	log   zerolog.Logger
}

// NewEngine creates an availability engine.
func NewEngine(store Store, cfg Config, logger zerolog.Logger) *Engine {
	if cfg.DefaultDurationMinutes <= 0 {
		cfg.DefaultDurationMinutes = DefaultConfig().DefaultDurationMinutes
	}
	if cfg.GranularityMinutes <= 0 {
		cfg.GranularityMinutes = DefaultConfig().GranularityMinutes
	}
	return &Engine{
		store: store,
		cfg:   cfg,
		log:   logger.With().Str("component", "availability").Logger(),
	}
}

// DefaultDuration returns the configured fallback duration in minutes.
func (e *Engine) DefaultDuration() int {
	return e.cfg.DefaultDurationMinutes
}

// dayPlan is the resolved picture of one staff member's date: the working
// window plus every blocked sub-interval (partial exceptions, reservations).
type dayPlan struct {
	window  schedule.Interval
	blocked []schedule.Interval
	working bool
}

// ResolveWindow returns the effective working window for a staff member on
// a date. ok is false when the staff member does not work that date, either
// because no working shift exists for that weekday or because a full-day
// exception overrides it.
func (e *Engine) ResolveWindow(ctx context.Context, staffID, date string) (win schedule.Interval, ok bool, err error) {
	plan, err := e.resolveDay(ctx, staffID, date)
	if err != nil {
		return schedule.Interval{}, false, err
	}
	return plan.window, plan.working, nil
}

// resolveDay applies the recurring shift and the date's exceptions.
// Partial exceptions are collected, not merged: any one of them
// disqualifies a colliding candidate on its own.
func (e *Engine) resolveDay(ctx context.Context, staffID, date string) (*dayPlan, error) {
	day, err := schedule.ParseDate(date)
	if err != nil {
		return nil, invalidInput("invalid date %q; expected YYYY-MM-DD", date)
	}

	shift, err := e.store.GetShift(ctx, staffID, schedule.DayOfWeek(day))
	if err != nil {
		return nil, fmt.Errorf("get shift: %w", err)
	}
	if shift == nil || !shift.IsWorking {
		return &dayPlan{}, nil
	}

	exceptions, err := e.store.ListExceptions(ctx, staffID, date)
	if err != nil {
		return nil, fmt.Errorf("list exceptions: %w", err)
	}

	var blocked []schedule.Interval
	for i := range exceptions {
		exc := &exceptions[i]
		if exc.IsFullDay() {
			// Full-day exception wins regardless of the shift.
			return &dayPlan{}, nil
		}
		if exc.StartTime == "" || exc.EndTime == "" {
			// Half-set range, cannot block anything.
			continue
		}
		iv, err := parseRange(exc.StartTime, exc.EndTime)
		if err != nil {
			return nil, fmt.Errorf("exception %s: %w", exc.ID, err)
		}
		blocked = append(blocked, iv)
	}

	start, err := schedule.ParseClock(shift.StartTime)
	if err != nil {
		return nil, fmt.Errorf("shift %s start: %w", shift.ID, err)
	}
	end, err := schedule.ParseClock(shift.EndTime)
	if err != nil {
		return nil, fmt.Errorf("shift %s end: %w", shift.ID, err)
	}

	return &dayPlan{
		window:  schedule.Interval{Start: start, End: end},
		blocked: blocked,
		working: true,
	}, nil
}

// GenerateSlots enumerates open slots of the requested duration on a date,
// across all active staff or a single staff member when staffID is set.
// An unknown staff filter or a staff-less account yields an empty list,
// not an error; malformed input does error.
func (e *Engine) GenerateSlots(ctx context.Context, accountID, staffID, date string, durationMinutes int) ([]Slot, error) {
	if _, err := schedule.ParseDate(date); err != nil {
		return nil, invalidInput("invalid date %q; expected YYYY-MM-DD", date)
	}
	if durationMinutes <= 0 {
		return nil, invalidInput("duration must be positive, got %d", durationMinutes)
	}

	var staff []models.StaffMember
	if staffID != "" {
		member, err := e.store.GetStaffMember(ctx, accountID, staffID)
		if err != nil {
			return nil, fmt.Errorf("get staff member: %w", err)
		}
		if member != nil && member.IsActive {
			staff = append(staff, *member)
		}
	} else {
		all, err := e.store.ListActiveStaff(ctx, accountID)
		if err != nil {
			return nil, fmt.Errorf("list staff: %w", err)
		}
		staff = all
	}

	slots := make([]Slot, 0)
	for i := range staff {
		member := &staff[i]
		open, err := e.staffSlots(ctx, accountID, member, date, durationMinutes)
		if err != nil {
			return nil, err
		}
		slots = append(slots, open...)
	}

	// Stable sort keeps staff enumeration order for equal times.
	sort.SliceStable(slots, func(i, j int) bool {
		return slots[i].Time < slots[j].Time
	})

	e.log.Debug().
		Str("date", date).
		Int("duration", durationMinutes).
		Int("staff", len(staff)).
		Int("slots", len(slots)).
		Msg("slots generated")

	return slots, nil
}

func (e *Engine) staffSlots(ctx context.Context, accountID string, member *models.StaffMember, date string, durationMinutes int) ([]Slot, error) {
	plan, err := e.resolveDay(ctx, member.ID, date)
	if err != nil {
		return nil, err
	}
	if !plan.working {
		return nil, nil
	}

	blocked, err := e.blockedIntervals(ctx, accountID, member.ID, date, plan)
	if err != nil {
		return nil, err
	}

	var slots []Slot
	for start := plan.window.Start; start+durationMinutes <= plan.window.End; start += e.cfg.GranularityMinutes {
		candidate := schedule.NewInterval(start, durationMinutes)
		if overlapsAny(candidate, blocked) {
			continue
		}
		slots = append(slots, Slot{
			Time:      schedule.FormatClock(start),
			StaffID:   member.ID,
			StaffName: member.Name,
		})
	}
	return slots, nil
}

// blockedIntervals collects every range a candidate must not intersect:
// the day's partial exceptions plus all non-cancelled reservations.
func (e *Engine) blockedIntervals(ctx context.Context, accountID, staffID, date string, plan *dayPlan) ([]schedule.Interval, error) {
	blocked := make([]schedule.Interval, 0, len(plan.blocked))
	blocked = append(blocked, plan.blocked...)

	reservations, err := e.store.ListActiveReservations(ctx, accountID, staffID, date)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	for i := range reservations {
		iv, err := e.reservationInterval(&reservations[i])
		if err != nil {
			return nil, err
		}
		blocked = append(blocked, iv)
	}
	return blocked, nil
}

// reservationInterval converts a reservation to a blocked interval. A
// missing end time gets the default duration, mirroring how the booking
// path itself defaults missing durations.
func (e *Engine) reservationInterval(r *models.Reservation) (schedule.Interval, error) {
	start, err := schedule.ParseClock(r.Time)
	if err != nil {
		return schedule.Interval{}, fmt.Errorf("reservation %s time: %w", r.ID, err)
	}
	if r.EndTime == "" {
		return schedule.NewInterval(start, e.cfg.DefaultDurationMinutes), nil
	}
	end, err := schedule.ParseClock(r.EndTime)
	if err != nil {
		return schedule.Interval{}, fmt.Errorf("reservation %s end time: %w", r.ID, err)
	}
	return schedule.Interval{Start: start, End: end}, nil
}

// CanBook decides whether a single booking may be accepted and returns the
// derived end time ("HH:MM") on acceptance. It applies the exact inputs and
// overlap predicate the generator uses, so any slot the generator offered
// is accepted here absent a concurrent booking in between.
func (e *Engine) CanBook(ctx context.Context, accountID, staffID, date, startTime string, durationMinutes int) (string, error) {
	if durationMinutes <= 0 {
		return "", invalidInput("duration must be positive, got %d", durationMinutes)
	}
	start, err := schedule.ParseClock(startTime)
	if err != nil {
		return "", invalidInput("invalid time %q; expected HH:MM", startTime)
	}
	candidate := schedule.NewInterval(start, durationMinutes)

	member, err := e.store.GetStaffMember(ctx, accountID, staffID)
	if err != nil {
		return "", fmt.Errorf("get staff member: %w", err)
	}
	if member == nil || !member.IsActive {
		return "", fmt.Errorf("%w: %s", ErrInvalidStaff, staffID)
	}

	plan, err := e.resolveDay(ctx, staffID, date)
	if err != nil {
		return "", err
	}
	if !plan.working || !plan.window.Contains(candidate) {
		return "", fmt.Errorf("%w: staff %s on %s", ErrOutsideWorkingHours, staffID, date)
	}

	blocked, err := e.blockedIntervals(ctx, accountID, staffID, date, plan)
	if err != nil {
		return "", err
	}
	for _, b := range blocked {
		if candidate.Overlaps(b) {
			return "", &ConflictError{StaffID: staffID, Date: date, Blocking: b}
		}
	}

	return schedule.FormatClock(candidate.End), nil
}

func parseRange(startTime, endTime string) (schedule.Interval, error) {
	start, err := schedule.ParseClock(startTime)
	if err != nil {
		return schedule.Interval{}, err
	}
	end, err := schedule.ParseClock(endTime)
	if err != nil {
		return schedule.Interval{}, err
	}
	return schedule.Interval{Start: start, End: end}, nil
}

func overlapsAny(candidate schedule.Interval, blocked []schedule.Interval) bool {
	for _, b := range blocked {
		if candidate.Overlaps(b) {
			return true
		}
	}
	return false
}
