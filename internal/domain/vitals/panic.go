package vitals

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/carebridge/carebridge/internal/domain/directory"
	"github.com/carebridge/carebridge/internal/platform/clock"
)

// EmergencyNotifier delivers a panic alert to a patient's emergency contact
// over every available channel.
type EmergencyNotifier interface {
	SendEmergencyContactAlert(ctx context.Context, contact directory.EmergencyContact, message string) error
}

// PatientLookup resolves a patient id to profile details.
type PatientLookup interface {
	PatientByID(id string) (directory.Patient, error)
}

// DefaultPanicCooldown throttles repeat activations per patient.
const DefaultPanicCooldown = 2 * time.Minute

// PanicButton lets a patient summon their emergency contact. Activations are
// rate-limited per patient; the cooldown starts when the activation is
// accepted, whether or not delivery succeeds, so a stuck button cannot flood
// the contact.
type PanicButton struct {
	patients PatientLookup
	notifier EmergencyNotifier
	clock    clock.Clock
	cooldown time.Duration
	logger   zerolog.Logger

	mu            sync.Mutex
	lastActivated map[string]time.Time
}

// NewPanicButton creates a PanicButton. A non-positive cooldown falls back
// to the default.
func NewPanicButton(patients PatientLookup, notifier EmergencyNotifier, clk clock.Clock, cooldown time.Duration, logger zerolog.Logger) *PanicButton {
	if cooldown <= 0 {
		cooldown = DefaultPanicCooldown
	}
	return &PanicButton{
		patients:      patients,
		notifier:      notifier,
		clock:         clk,
		cooldown:      cooldown,
		logger:        logger.With().Str("component", "panic_button").Logger(),
		lastActivated: make(map[string]time.Time),
	}
}

// Activate alerts the patient's emergency contact with the patient's name,
// last known location, and the activation time.
func (b *PanicButton) Activate(ctx context.Context, patientID string) error {
	patient, err := b.patients.PatientByID(patientID)
	if err != nil {
		return err
	}

	now := b.clock.Now()
	b.mu.Lock()
	if last, ok := b.lastActivated[patientID]; ok && last.Add(b.cooldown).After(now) {
		b.mu.Unlock()
		return fmt.Errorf("%w: patient %s", ErrPanicCooldown, patientID)
	}
	b.lastActivated[patientID] = now
	b.mu.Unlock()

	message := fmt.Sprintf("EMERGENCY ALERT\nPatient: %s\nLocation: %s\nTime: %s",
		patient.FullName(), patient.CurrentLocation, now.Format(time.RFC3339))

	if err := b.notifier.SendEmergencyContactAlert(ctx, patient.Emergency, message); err != nil {
		b.logger.Error().Err(err).
			Str("patient_id", patientID).
			Msg("panic alert delivery failed")
		return fmt.Errorf("send panic alert: %w", err)
	}

	b.logger.Warn().
		Str("patient_id", patientID).
		Str("contact", patient.Emergency.Name).
		Msg("panic button activated")
	return nil
}
