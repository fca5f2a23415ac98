package scheduling

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/carebridge/carebridge/internal/platform/clock"
)

// Engine owns the appointment lifecycle. It is the only component that
// mutates the Store: every operation validates its input, acquires the
// owning doctor's lock so conflict checks and commits are atomic, applies
// the transition, and then emits notifications and reminders.
type Engine struct {
	store     *Store
	reminders *ReminderScheduler
	clock     clock.Clock
	logger    zerolog.Logger
}

// NewEngine creates an Engine.
func NewEngine(store *Store, reminders *ReminderScheduler, clk clock.Clock, logger zerolog.Logger) *Engine {
	return &Engine{
		store:     store,
		reminders: reminders,
		clock:     clk,
		logger:    logger.With().Str("component", "scheduling").Logger(),
	}
}

// Schedule books a new appointment in SCHEDULED status. The appointment is
// pending -- it does not reserve the doctor's confirmed schedule -- but the
// booking itself is rejected when the interval overlaps an appointment that
// is already confirmed for that doctor on the same calendar date.
func (e *Engine) Schedule(ctx context.Context, patientID, doctorID string, start time.Time, duration time.Duration, reason, location string) (Appointment, error) {
	appt, err := newAppointment(patientID, doctorID, start, duration, reason, location, e.clock.Now())
	if err != nil {
		return Appointment{}, err
	}

	lock := e.store.DoctorLock(appt.DoctorID)
	lock.Lock()
	if e.hasConflictOnDate(appt.DoctorID, start, duration) {
		lock.Unlock()
		return Appointment{}, fmt.Errorf("%w: doctor %s is booked during the requested slot", ErrConflict, appt.DoctorID)
	}
	for e.store.Contains(appt.ID) {
		appt.ID = newAppointmentID()
	}
	e.store.Insert(appt)
	e.store.AddPending(appt)
	out := *appt
	lock.Unlock()

	e.logger.Info().
		Str("appointment_id", out.ID).
		Str("doctor_id", out.DoctorID).
		Str("patient_id", out.PatientID).
		Time("start", out.StartTime).
		Msg("appointment scheduled")

	e.reminders.NotifyStatusChange(ctx, out, StatusScheduled)
	e.reminders.ScheduleReminders(out)
	return out, nil
}

// Confirm transitions SCHEDULED -> CONFIRMED and moves the appointment from
// the pending set into the doctor and patient schedule indices.
func (e *Engine) Confirm(ctx context.Context, doctorID, appointmentID string) (Appointment, error) {
	lock := e.store.DoctorLock(doctorID)
	lock.Lock()

	appt, err := e.ownedByDoctor(doctorID, appointmentID)
	if err != nil {
		lock.Unlock()
		return Appointment{}, err
	}
	if appt.Status != StatusScheduled {
		lock.Unlock()
		return Appointment{}, fmt.Errorf("%w: only scheduled appointments can be confirmed", ErrInvalidState)
	}
	// Pending bookings never blocked each other, so the slot must be
	// re-checked now that it is about to be reserved.
	if e.hasConflictOnDate(appt.DoctorID, appt.StartTime, appt.Duration) {
		lock.Unlock()
		return Appointment{}, fmt.Errorf("%w: slot was taken by another confirmed appointment", ErrConflict)
	}
	out, err := e.store.Update(appt.ID, func(a *Appointment) error {
		return a.updateStatus(StatusConfirmed, "Doctor confirmed", e.clock.Now())
	})
	if err != nil {
		lock.Unlock()
		return Appointment{}, err
	}
	e.store.RemovePending(doctorID, appointmentID)
	e.store.AddToSchedules(appt)
	lock.Unlock()

	e.logger.Info().Str("appointment_id", out.ID).Msg("appointment confirmed")
	e.reminders.NotifyStatusChange(ctx, out, StatusConfirmed)
	return out, nil
}

// CancelByDoctor cancels an appointment on the owning doctor's behalf.
func (e *Engine) CancelByDoctor(ctx context.Context, doctorID, appointmentID, reason string) (Appointment, error) {
	lock := e.store.DoctorLock(doctorID)
	lock.Lock()

	appt, err := e.ownedByDoctor(doctorID, appointmentID)
	if err != nil {
		lock.Unlock()
		return Appointment{}, err
	}
	out, err := e.cancelLocked(appt, reason)
	lock.Unlock()
	if err != nil {
		return Appointment{}, err
	}

	e.reminders.NotifyStatusChange(ctx, out, StatusCancelled)
	return out, nil
}

// CancelByPatient cancels an appointment on the patient's behalf.
func (e *Engine) CancelByPatient(ctx context.Context, patientID, appointmentID, reason string) (Appointment, error) {
	appt, ok := e.store.Get(appointmentID)
	if !ok {
		return Appointment{}, fmt.Errorf("%w: %s", ErrNotFound, appointmentID)
	}
	if appt.PatientID != patientID {
		return Appointment{}, fmt.Errorf("%w: patient %s", ErrNotOwner, patientID)
	}

	lock := e.store.DoctorLock(appt.DoctorID)
	lock.Lock()
	out, err := e.cancelLocked(appt, reason)
	lock.Unlock()
	if err != nil {
		return Appointment{}, err
	}

	e.reminders.NotifyStatusChange(ctx, out, StatusCancelled)
	return out, nil
}

// cancelLocked applies the cancellation under the doctor lock.
func (e *Engine) cancelLocked(appt *Appointment, reason string) (Appointment, error) {
	out, err := e.store.Update(appt.ID, func(a *Appointment) error {
		return a.updateStatus(StatusCancelled, reason, e.clock.Now())
	})
	if err != nil {
		return Appointment{}, err
	}
	e.store.RemovePending(appt.DoctorID, appt.ID)
	e.store.RemoveFromSchedules(appt)
	e.reminders.CancelReminders(appt.ID)
	e.logger.Info().
		Str("appointment_id", out.ID).
		Str("reason", out.CancellationReason).
		Msg("appointment cancelled")
	return out, nil
}

// Reschedule creates a successor appointment at the new time and marks the
// original RESCHEDULED with an audit note. The successor starts its own
// SCHEDULED lifecycle in the pending set, with fresh reminders; the
// original's unfired reminders are cancelled. Conflict detection runs
// against the doctor's confirmed schedule, excluding the original's slot.
func (e *Engine) Reschedule(ctx context.Context, appointmentID string, newStart time.Time, newDuration time.Duration, requestedBy string) (Appointment, error) {
	original, ok := e.store.Get(appointmentID)
	if !ok {
		return Appointment{}, fmt.Errorf("%w: %s", ErrNotFound, appointmentID)
	}

	lock := e.store.DoctorLock(original.DoctorID)
	lock.Lock()

	if original.Status == StatusCancelled {
		lock.Unlock()
		return Appointment{}, fmt.Errorf("%w: cannot reschedule a cancelled appointment", ErrInvalidState)
	}
	if !canTransition(original.Status, StatusRescheduled) {
		lock.Unlock()
		return Appointment{}, fmt.Errorf("%w: cannot reschedule an appointment in status %s", ErrInvalidState, original.Status)
	}
	if e.hasConflictExcluding(original.DoctorID, original.ID, newStart, newDuration) {
		lock.Unlock()
		return Appointment{}, fmt.Errorf("%w: new time overlaps an existing appointment", ErrConflict)
	}

	now := e.clock.Now()
	reason := fmt.Sprintf("%s (Rescheduled from %s)", original.Reason, original.StartTime.Format(time.RFC3339))
	successor, err := newAppointment(original.PatientID, original.DoctorID, newStart, newDuration, reason, original.Location, now)
	if err != nil {
		lock.Unlock()
		return Appointment{}, err
	}
	for e.store.Contains(successor.ID) {
		successor.ID = newAppointmentID()
	}

	note := fmt.Sprintf("Rescheduled to %s by %s", newStart.Format(time.RFC3339), requestedBy)
	if _, err := e.store.Update(original.ID, func(a *Appointment) error {
		return a.updateStatus(StatusRescheduled, note, now)
	}); err != nil {
		lock.Unlock()
		return Appointment{}, err
	}
	e.store.RemovePending(original.DoctorID, original.ID)
	e.store.RemoveFromSchedules(original)
	e.reminders.CancelReminders(original.ID)

	e.store.Insert(successor)
	e.store.AddPending(successor)
	out := *successor
	lock.Unlock()

	e.logger.Info().
		Str("appointment_id", appointmentID).
		Str("successor_id", out.ID).
		Time("new_start", newStart).
		Msg("appointment rescheduled")

	e.reminders.NotifyStatusChange(ctx, out, StatusRescheduled)
	e.reminders.ScheduleReminders(out)
	return out, nil
}

// Start transitions CONFIRMED -> IN_PROGRESS, provided the appointment has
// not already ended.
func (e *Engine) Start(ctx context.Context, doctorID, appointmentID string) (Appointment, error) {
	lock := e.store.DoctorLock(doctorID)
	lock.Lock()

	appt, err := e.ownedByDoctor(doctorID, appointmentID)
	if err != nil {
		lock.Unlock()
		return Appointment{}, err
	}
	if appt.Status != StatusConfirmed {
		lock.Unlock()
		return Appointment{}, fmt.Errorf("%w: only confirmed appointments can be started", ErrInvalidState)
	}
	now := e.clock.Now()
	if now.After(appt.EndTime()) {
		lock.Unlock()
		return Appointment{}, fmt.Errorf("%w: cannot start an appointment that already ended", ErrInvalidState)
	}
	out, err := e.store.Update(appt.ID, func(a *Appointment) error {
		return a.updateStatus(StatusInProgress, "Patient arrived", now)
	})
	if err != nil {
		lock.Unlock()
		return Appointment{}, err
	}
	lock.Unlock()

	e.logger.Info().Str("appointment_id", out.ID).Msg("appointment started")
	e.reminders.NotifyStatusChange(ctx, out, StatusInProgress)
	return out, nil
}

// Complete transitions IN_PROGRESS -> COMPLETED and releases the schedule
// slot. Clinical notes are recorded on the status note when supplied.
func (e *Engine) Complete(ctx context.Context, doctorID, appointmentID, notes string) (Appointment, error) {
	lock := e.store.DoctorLock(doctorID)
	lock.Lock()

	appt, err := e.ownedByDoctor(doctorID, appointmentID)
	if err != nil {
		lock.Unlock()
		return Appointment{}, err
	}
	if appt.Status != StatusInProgress {
		lock.Unlock()
		return Appointment{}, fmt.Errorf("%w: only in-progress appointments can be completed", ErrInvalidState)
	}
	out, err := e.store.Update(appt.ID, func(a *Appointment) error {
		return a.updateStatus(StatusCompleted, textOrDefault(notes, "Visit completed"), e.clock.Now())
	})
	if err != nil {
		lock.Unlock()
		return Appointment{}, err
	}
	e.store.RemoveFromSchedules(appt)
	e.reminders.CancelReminders(appt.ID)
	lock.Unlock()

	e.logger.Info().Str("appointment_id", out.ID).Msg("appointment completed")
	e.reminders.NotifyStatusChange(ctx, out, StatusCompleted)
	return out, nil
}

// MarkNoShow transitions CONFIRMED -> NO_SHOW once the scheduled end time
// has passed.
func (e *Engine) MarkNoShow(ctx context.Context, doctorID, appointmentID string) (Appointment, error) {
	lock := e.store.DoctorLock(doctorID)
	lock.Lock()

	appt, err := e.ownedByDoctor(doctorID, appointmentID)
	if err != nil {
		lock.Unlock()
		return Appointment{}, err
	}
	if appt.Status != StatusConfirmed {
		lock.Unlock()
		return Appointment{}, fmt.Errorf("%w: only confirmed appointments can be marked as no-show", ErrInvalidState)
	}
	now := e.clock.Now()
	if now.Before(appt.EndTime()) {
		lock.Unlock()
		return Appointment{}, fmt.Errorf("%w: too early to mark as no-show", ErrInvalidState)
	}
	out, err := e.store.Update(appt.ID, func(a *Appointment) error {
		return a.updateStatus(StatusNoShow, "Patient didn't arrive", now)
	})
	if err != nil {
		lock.Unlock()
		return Appointment{}, err
	}
	e.store.RemoveFromSchedules(appt)
	e.reminders.CancelReminders(appt.ID)
	lock.Unlock()

	e.logger.Info().Str("appointment_id", out.ID).Msg("appointment marked as no-show")
	e.reminders.NotifyStatusChange(ctx, out, StatusNoShow)
	return out, nil
}

// GetAppointment returns a copy of the appointment.
func (e *Engine) GetAppointment(appointmentID string) (Appointment, error) {
	appt, ok := e.store.Get(appointmentID)
	if !ok {
		return Appointment{}, fmt.Errorf("%w: %s", ErrNotFound, appointmentID)
	}
	return *appt, nil
}

// DoctorSchedule lists a doctor's confirmed appointments for one calendar
// date, sorted by start time ascending.
func (e *Engine) DoctorSchedule(doctorID string, date time.Time) []Appointment {
	return e.store.DoctorScheduleForDate(doctorID, date)
}

// PatientSchedule lists a patient's confirmed appointments for one calendar
// date, sorted by start time ascending.
func (e *Engine) PatientSchedule(patientID string, date time.Time) []Appointment {
	return e.store.PatientScheduleForDate(patientID, date)
}

// ActiveAppointments lists a doctor's IN_PROGRESS appointments.
func (e *Engine) ActiveAppointments(doctorID string) []Appointment {
	return e.store.ActiveAppointments(doctorID)
}

// PendingAppointments lists a doctor's unconfirmed appointments.
func (e *Engine) PendingAppointments(doctorID string) []Appointment {
	return e.store.PendingForDoctor(doctorID)
}

// hasConflictOnDate checks the candidate interval against the doctor's
// confirmed schedule for the candidate's calendar date. Pending appointments
// do not block: only confirmed or active commitments reserve time.
func (e *Engine) hasConflictOnDate(doctorID string, start time.Time, duration time.Duration) bool {
	for _, existing := range e.store.DoctorScheduleForDate(doctorID, start) {
		if existing.overlaps(start, duration) {
			return true
		}
	}
	return false
}

// hasConflictExcluding checks the candidate interval against the doctor's
// whole confirmed schedule, skipping the appointment being rescheduled.
func (e *Engine) hasConflictExcluding(doctorID, excludeID string, start time.Time, duration time.Duration) bool {
	for _, existing := range e.store.DoctorAppointments(doctorID, excludeID) {
		if existing.overlaps(start, duration) {
			return true
		}
	}
	return false
}

func (e *Engine) ownedByDoctor(doctorID, appointmentID string) (*Appointment, error) {
	appt, ok := e.store.Get(appointmentID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, appointmentID)
	}
	if appt.DoctorID != doctorID {
		return nil, fmt.Errorf("%w: doctor %s", ErrNotOwner, doctorID)
	}
	return appt, nil
}
