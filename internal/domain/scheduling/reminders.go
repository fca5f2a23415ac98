package scheduling

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/carebridge/carebridge/internal/domain/directory"
	"github.com/carebridge/carebridge/internal/platform/clock"
)

// Notifier is the external collaborator that delivers patient-facing
// messages. Failures are logged by the scheduling core, never propagated.
type Notifier interface {
	SendAppointmentReminder(ctx context.Context, appt Appointment, patient directory.Patient) error
	SendStatusNotification(ctx context.Context, appt Appointment, status Status, patient directory.Patient) error
}

// PatientLookup resolves a patient id to contact details.
type PatientLookup interface {
	PatientByID(id string) (directory.Patient, error)
}

const (
	// DefaultFirstReminderOffset fires one day before the appointment.
	DefaultFirstReminderOffset = 24 * time.Hour

	// DefaultSecondReminderOffset fires one hour before the appointment.
	DefaultSecondReminderOffset = time.Hour
)

// ReminderScheduler submits deferred reminder deliveries and forwards
// synchronous status-change notifications. Reminders are tracked per
// appointment so a terminal transition or reschedule cancels any that have
// not fired yet.
type ReminderScheduler struct {
	notifier Notifier
	patients PatientLookup
	clock    clock.Clock
	offsets  []time.Duration
	logger   zerolog.Logger

	mu      sync.Mutex
	pending map[string]*pendingReminders
}

// pendingReminders tracks one appointment's unfired reminder timers. The
// entry is dropped when the last timer fires or the set is cancelled.
type pendingReminders struct {
	timers    []clock.Timer
	remaining int
}

// NewReminderScheduler creates a ReminderScheduler. Zero offsets fall back to
// the 24h/1h defaults.
func NewReminderScheduler(notifier Notifier, patients PatientLookup, clk clock.Clock, first, second time.Duration, logger zerolog.Logger) *ReminderScheduler {
	if first <= 0 {
		first = DefaultFirstReminderOffset
	}
	if second <= 0 {
		second = DefaultSecondReminderOffset
	}
	return &ReminderScheduler{
		notifier: notifier,
		patients: patients,
		clock:    clk,
		offsets:  []time.Duration{first, second},
		logger:   logger.With().Str("component", "reminders").Logger(),
		pending:  make(map[string]*pendingReminders),
	}
}

// ScheduleReminders enqueues one deferred reminder per configured offset. A
// fire time already in the past is clamped to zero delay: the reminder is
// sent immediately rather than dropped.
func (s *ReminderScheduler) ScheduleReminders(appt Appointment) {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := &pendingReminders{remaining: len(s.offsets)}
	s.pending[appt.ID] = entry
	for _, offset := range s.offsets {
		fireAt := appt.StartTime.Add(-offset)
		delay := fireAt.Sub(now)
		if delay < 0 {
			delay = 0
		}
		a := appt
		timer := s.clock.AfterFunc(delay, func() { s.deliver(a) })
		entry.timers = append(entry.timers, timer)
	}
}

// CancelReminders stops any reminders that have not fired for the
// appointment. It is a no-op for unknown ids.
func (s *ReminderScheduler) CancelReminders(appointmentID string) {
	s.mu.Lock()
	entry := s.pending[appointmentID]
	delete(s.pending, appointmentID)
	s.mu.Unlock()
	if entry == nil {
		return
	}
	for _, t := range entry.timers {
		t.Stop()
	}
}

// Stop cancels every tracked reminder. Called on server shutdown.
func (s *ReminderScheduler) Stop() {
	s.mu.Lock()
	pending := s.pending
	s.pending = make(map[string]*pendingReminders)
	s.mu.Unlock()
	for _, entry := range pending {
		for _, t := range entry.timers {
			t.Stop()
		}
	}
}

// PendingCount reports how many appointments still have tracked reminders.
func (s *ReminderScheduler) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

func (s *ReminderScheduler) deliver(appt Appointment) {
	s.reminderFired(appt.ID)
	patient, err := s.patients.PatientByID(appt.PatientID)
	if err != nil {
		s.logger.Error().Err(err).
			Str("appointment_id", appt.ID).
			Str("patient_id", appt.PatientID).
			Msg("reminder dropped: patient lookup failed")
		return
	}
	if err := s.notifier.SendAppointmentReminder(context.Background(), appt, patient); err != nil {
		s.logger.Error().Err(err).
			Str("appointment_id", appt.ID).
			Msg("failed to send appointment reminder")
	}
}

// reminderFired drops the appointment's pending entry once its last timer
// has gone off, so unconfirmed appointments do not accumulate entries for
// the process lifetime.
func (s *ReminderScheduler) reminderFired(appointmentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.pending[appointmentID]
	if !ok {
		return
	}
	entry.remaining--
	if entry.remaining <= 0 {
		delete(s.pending, appointmentID)
	}
}

// NotifyStatusChange synchronously forwards a status notification to the
// Notifier. Delivery failures are logged and swallowed.
func (s *ReminderScheduler) NotifyStatusChange(ctx context.Context, appt Appointment, status Status) {
	patient, err := s.patients.PatientByID(appt.PatientID)
	if err != nil {
		s.logger.Error().Err(err).
			Str("appointment_id", appt.ID).
			Str("patient_id", appt.PatientID).
			Msg("status notification dropped: patient lookup failed")
		return
	}
	if err := s.notifier.SendStatusNotification(ctx, appt, status, patient); err != nil {
		s.logger.Error().Err(err).
			Str("appointment_id", appt.ID).
			Str("status", string(status)).
			Msg("failed to send status notification")
	}
}
