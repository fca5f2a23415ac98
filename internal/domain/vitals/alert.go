package vitals

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/carebridge/carebridge/internal/domain/directory"
	"github.com/carebridge/carebridge/internal/platform/clock"
)

// Priority ranks a critical-vitals alert.
type Priority string

const (
	PriorityHigh   Priority = "HIGH"
	PriorityMedium Priority = "MEDIUM"
)

// NotificationService delivers clinical alerts to doctors. Implementations
// live in the notification platform.
type NotificationService interface {
	SendEmergencyAlert(ctx context.Context, emails, phones []string, patientID, emergencyType string) error
	SendCriticalResults(ctx context.Context, email, phone, patientName, testName, abnormalValue string) error
}

// DefaultAlertCooldown suppresses repeat alerts for the same patient.
const DefaultAlertCooldown = 15 * time.Minute

// AlertDispatcher routes critical readings to the patient's primary doctor,
// rate-limited per patient. A failed delivery does not start the cooldown, so
// the next critical reading retries.
type AlertDispatcher struct {
	notifier NotificationService
	clock    clock.Clock
	cooldown time.Duration
	logger   zerolog.Logger

	mu        sync.Mutex
	lastAlert map[string]time.Time
}

// NewAlertDispatcher creates an AlertDispatcher. A non-positive cooldown
// falls back to the default.
func NewAlertDispatcher(notifier NotificationService, clk clock.Clock, cooldown time.Duration, logger zerolog.Logger) *AlertDispatcher {
	if cooldown <= 0 {
		cooldown = DefaultAlertCooldown
	}
	return &AlertDispatcher{
		notifier:  notifier,
		clock:     clk,
		cooldown:  cooldown,
		logger:    logger.With().Str("component", "vitals_alerts").Logger(),
		lastAlert: make(map[string]time.Time),
	}
}

// classify ranks the reading: HIGH means page-immediately, anything else
// critical is MEDIUM.
func classify(v VitalSigns) Priority {
	if v.OxygenSaturation < 90 || v.BloodPressure.Category() == CategoryHypertensiveCrisis {
		return PriorityHigh
	}
	return PriorityMedium
}

// TriggerAlert notifies the doctor about a critical reading unless the
// patient is on alert cooldown.
func (d *AlertDispatcher) TriggerAlert(ctx context.Context, patientID string, v VitalSigns, doctor directory.Doctor) {
	if d.onCooldown(patientID) {
		d.logger.Debug().Str("patient_id", patientID).Msg("alert suppressed by cooldown")
		return
	}

	priority := classify(v)
	var err error
	if priority == PriorityHigh {
		err = d.notifier.SendEmergencyAlert(ctx,
			[]string{doctor.Contact.Email}, []string{doctor.Contact.Phone},
			patientID, "CRITICAL Vital Signs")
	} else {
		err = d.notifier.SendCriticalResults(ctx,
			doctor.Contact.Email, doctor.Contact.Phone,
			"Patient "+patientID, "Abnormal Vitals", v.AbnormalSummary())
	}
	if err != nil {
		d.logger.Error().Err(err).
			Str("patient_id", patientID).
			Str("priority", string(priority)).
			Msg("alert delivery failed")
		return
	}

	d.mu.Lock()
	d.lastAlert[patientID] = d.clock.Now()
	d.mu.Unlock()

	d.logger.Warn().
		Str("patient_id", patientID).
		Str("priority", string(priority)).
		Str("doctor_id", doctor.ID).
		Msg("critical vitals alert sent")
}

func (d *AlertDispatcher) onCooldown(patientID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	last, ok := d.lastAlert[patientID]
	return ok && last.Add(d.cooldown).After(d.clock.Now())
}
