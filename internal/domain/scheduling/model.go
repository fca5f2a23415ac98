package scheduling

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is an appointment lifecycle state.
type Status string

const (
	StatusScheduled   Status = "SCHEDULED"
	StatusRescheduled Status = "RESCHEDULED"
	StatusConfirmed   Status = "CONFIRMED"
	StatusInProgress  Status = "IN_PROGRESS"
	StatusCompleted   Status = "COMPLETED"
	StatusCancelled   Status = "CANCELLED"
	StatusNoShow      Status = "NO_SHOW"
)

const (
	// MinDuration is the shortest bookable appointment.
	MinDuration = 15 * time.Minute

	// DefaultReason is used when a booking omits the reason.
	DefaultReason = "Routine checkup"

	// DefaultLocation is used when a booking omits the location.
	DefaultLocation = "Clinic"

	// DefaultCancellationReason is recorded when a cancellation gives none.
	DefaultCancellationReason = "No reason provided"
)

// allowedTransitions is the lifecycle state machine. RESCHEDULED, CANCELLED,
// COMPLETED, and NO_SHOW are terminal: they have no outgoing edges, so any
// transition attempted from them fails.
var allowedTransitions = map[Status][]Status{
	StatusScheduled:  {StatusConfirmed, StatusCancelled, StatusRescheduled},
	StatusConfirmed:  {StatusInProgress, StatusCancelled, StatusNoShow, StatusRescheduled},
	StatusInProgress: {StatusCompleted, StatusCancelled},
}

// canTransition reports whether the state machine permits from -> to.
func canTransition(from, to Status) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether s has no outgoing transitions.
func (s Status) IsTerminal() bool {
	return len(allowedTransitions[s]) == 0
}

// Appointment is a scheduled clinical encounter between one patient and one
// doctor. Instances are mutated only by the Engine, through Store.Update under
// the owning doctor's serialization lock; callers receive copies.
type Appointment struct {
	ID                 string        `json:"id"`
	PatientID          string        `json:"patient_id"`
	DoctorID           string        `json:"doctor_id"`
	StartTime          time.Time     `json:"start_time"`
	Duration           time.Duration `json:"duration"`
	Reason             string        `json:"reason"`
	Location           string        `json:"location"`
	Status             Status        `json:"status"`
	CancellationReason string        `json:"cancellation_reason,omitempty"`
	StatusNote         string        `json:"status_note,omitempty"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

// newAppointment validates the inputs and builds a SCHEDULED appointment.
func newAppointment(patientID, doctorID string, start time.Time, duration time.Duration, reason, location string, now time.Time) (*Appointment, error) {
	patientID = strings.TrimSpace(patientID)
	if patientID == "" {
		return nil, fmt.Errorf("%w: patient id cannot be empty", ErrInvalidInput)
	}
	doctorID = strings.TrimSpace(doctorID)
	if doctorID == "" {
		return nil, fmt.Errorf("%w: doctor id cannot be empty", ErrInvalidInput)
	}
	if start.IsZero() {
		return nil, fmt.Errorf("%w: start time is required", ErrInvalidInput)
	}
	if duration < MinDuration {
		return nil, fmt.Errorf("%w: duration must be at least %s", ErrInvalidInput, MinDuration)
	}

	return &Appointment{
		ID:        newAppointmentID(),
		PatientID: patientID,
		DoctorID:  doctorID,
		StartTime: start,
		Duration:  duration,
		Reason:    textOrDefault(reason, DefaultReason),
		Location:  textOrDefault(location, DefaultLocation),
		Status:    StatusScheduled,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// newAppointmentID produces the "APT-" + 8 hex chars identifier format.
func newAppointmentID() string {
	return "APT-" + uuid.New().String()[:8]
}

func textOrDefault(s, def string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	return s
}

// EndTime is start plus duration.
func (a *Appointment) EndTime() time.Time {
	return a.StartTime.Add(a.Duration)
}

// IsActive reports whether the appointment can still change state.
func (a *Appointment) IsActive() bool {
	return !a.Status.IsTerminal()
}

// updateStatus applies a lifecycle transition, recording the audit note and,
// on cancellation, the cancellation reason. Mutation goes through Store.Update
// so schedule queries never see a partial write.
func (a *Appointment) updateStatus(to Status, note string, now time.Time) error {
	if a.Status.IsTerminal() {
		return fmt.Errorf("%w: cannot change status from %s", ErrInvalidState, a.Status)
	}
	if !canTransition(a.Status, to) {
		return fmt.Errorf("%w: cannot transition from %s to %s", ErrInvalidState, a.Status, to)
	}
	if to == StatusCancelled {
		a.CancellationReason = textOrDefault(note, DefaultCancellationReason)
	}
	a.Status = to
	a.StatusNote = note
	a.UpdatedAt = now
	return nil
}

// overlaps reports whether [start, start+duration) overlaps the appointment's
// own interval: s1 < e2 && s2 < e1.
func (a *Appointment) overlaps(start time.Time, duration time.Duration) bool {
	end := start.Add(duration)
	return start.Before(a.EndTime()) && a.StartTime.Before(end)
}

// sameCalendarDay reports whether the appointment starts on the given date,
// compared in the date's location.
func (a *Appointment) sameCalendarDay(date time.Time) bool {
	y1, m1, d1 := a.StartTime.In(date.Location()).Date()
	y2, m2, d2 := date.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}
