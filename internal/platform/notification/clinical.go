package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/carebridge/carebridge/internal/domain/directory"
	"github.com/carebridge/carebridge/internal/domain/scheduling"
)

// ClinicalNotifier adapts the notification manager to the delivery interfaces
// of the scheduling and vitals cores. Email carries the detailed message;
// where a phone number is known an SMS companion goes out too, and its
// failure does not fail the notification as long as the email landed.
type ClinicalNotifier struct {
	manager *Manager
	logger  zerolog.Logger
}

// NewClinicalNotifier creates a ClinicalNotifier.
func NewClinicalNotifier(manager *Manager, logger zerolog.Logger) *ClinicalNotifier {
	return &ClinicalNotifier{
		manager: manager,
		logger:  logger.With().Str("component", "clinical_notifier").Logger(),
	}
}

// SendAppointmentReminder delivers the pre-visit reminder to the patient.
func (n *ClinicalNotifier) SendAppointmentReminder(ctx context.Context, appt scheduling.Appointment, patient directory.Patient) error {
	data := map[string]string{
		"patient_name": patient.FullName(),
		"date":         appt.StartTime.Format("Monday, 2 January 2006"),
		"time":         appt.StartTime.Format("15:04"),
		"location":     appt.Location,
		"reason":       appt.Reason,
	}
	if _, err := n.manager.SendFromTemplate(ctx, "appointment-reminder", data, patient.Contact.Email); err != nil {
		return fmt.Errorf("appointment reminder: %w", err)
	}
	n.sendCompanionSMS(ctx, patient.Contact.Phone, fmt.Sprintf(
		"Reminder: appointment on %s at %s (%s)",
		appt.StartTime.Format("2 Jan"), appt.StartTime.Format("15:04"), appt.Location))
	return nil
}

// SendStatusNotification tells the patient about a lifecycle change.
func (n *ClinicalNotifier) SendStatusNotification(ctx context.Context, appt scheduling.Appointment, status scheduling.Status, patient directory.Patient) error {
	note := appt.StatusNote
	if status == scheduling.StatusCancelled {
		note = appt.CancellationReason
	}
	data := map[string]string{
		"patient_name": patient.FullName(),
		"date":         appt.StartTime.Format("Monday, 2 January 2006"),
		"time":         appt.StartTime.Format("15:04"),
		"status":       string(status),
		"note":         note,
	}
	if _, err := n.manager.SendFromTemplate(ctx, "appointment-status", data, patient.Contact.Email); err != nil {
		return fmt.Errorf("status notification: %w", err)
	}
	return nil
}

// SendMedicationReminder nudges the patient about a due dose over SMS.
func (n *ClinicalNotifier) SendMedicationReminder(ctx context.Context, p directory.Prescription, patient directory.Patient) error {
	data := map[string]string{
		"patient_name": patient.FullName(),
		"medication":   p.Medication,
		"dosage":       p.Dosage,
		"prescriber":   p.PrescribedBy,
	}
	if _, err := n.manager.SendFromTemplate(ctx, "medication-reminder", data, patient.Contact.Phone); err != nil {
		return fmt.Errorf("medication reminder: %w", err)
	}
	return nil
}

// SendEmergencyAlert pages every doctor on the list about a patient
// emergency. "Code Blue" escalates the required response to IMMEDIATE.
func (n *ClinicalNotifier) SendEmergencyAlert(ctx context.Context, emails, phones []string, patientID, emergencyType string) error {
	priority := "URGENT"
	if emergencyType == "Code Blue" {
		priority = "IMMEDIATE"
	}
	data := map[string]string{
		"priority":       priority,
		"patient_id":     patientID,
		"emergency_type": emergencyType,
	}

	for _, email := range emails {
		if _, err := n.manager.SendFromTemplate(ctx, "emergency-alert", data, email); err != nil {
			return fmt.Errorf("emergency alert to %s: %w", email, err)
		}
	}
	for _, phone := range phones {
		sms := &Notification{
			Channel:   ChannelSMS,
			Recipient: phone,
			Priority:  "high",
			Body: fmt.Sprintf("%s EMERGENCY\nPatient: %s\nType: %s\nReply: 1-Accepting case, 2-Not available",
				priority, patientID, emergencyType),
		}
		if err := n.manager.Send(ctx, sms); err != nil {
			return fmt.Errorf("emergency SMS to %s: %w", phone, err)
		}
	}
	return nil
}

// SendCriticalResults flags abnormal findings to the treating doctor.
func (n *ClinicalNotifier) SendCriticalResults(ctx context.Context, email, phone, patientName, testName, abnormalValue string) error {
	data := map[string]string{
		"patient_name":   patientName,
		"test_name":      testName,
		"abnormal_value": abnormalValue,
	}
	if _, err := n.manager.SendFromTemplate(ctx, "critical-results", data, email); err != nil {
		return fmt.Errorf("critical results to %s: %w", email, err)
	}
	n.sendCompanionSMS(ctx, phone, fmt.Sprintf("Critical Results\nPatient: %s\n%s: %s\nUrgent review needed",
		patientName, testName, abnormalValue))
	return nil
}

// SendEmergencyContactAlert relays a panic-button message over both of the
// contact's channels. The alert counts as delivered when at least one channel
// accepts it.
func (n *ClinicalNotifier) SendEmergencyContactAlert(ctx context.Context, contact directory.EmergencyContact, message string) error {
	var emailErr, smsErr error
	if contact.Email != "" {
		emailErr = n.manager.Send(ctx, &Notification{
			Channel:   ChannelEmail,
			Recipient: contact.Email,
			Subject:   "EMERGENCY ALERT",
			Body:      message,
			Priority:  "high",
		})
	}
	if contact.Phone != "" {
		smsErr = n.manager.Send(ctx, &Notification{
			Channel:   ChannelSMS,
			Recipient: contact.Phone,
			Body:      message,
			Priority:  "high",
		})
	}

	if contact.Email == "" && contact.Phone == "" {
		return fmt.Errorf("emergency contact %q has no reachable channel", contact.Name)
	}
	if (contact.Email == "" || emailErr != nil) && (contact.Phone == "" || smsErr != nil) {
		return fmt.Errorf("all channels failed for emergency contact %q", contact.Name)
	}
	return nil
}

func (n *ClinicalNotifier) sendCompanionSMS(ctx context.Context, phone, body string) {
	if phone == "" {
		return
	}
	err := n.manager.Send(ctx, &Notification{
		Channel:   ChannelSMS,
		Recipient: phone,
		Body:      body,
	})
	if err != nil {
		n.logger.Warn().Err(err).Str("recipient", phone).Msg("companion SMS failed")
	}
}

// LogEmailSender is the development transport: it records the send in the
// log instead of talking to a mail provider.
type LogEmailSender struct {
	Logger zerolog.Logger
}

// SendEmail logs the message.
func (s LogEmailSender) SendEmail(_ context.Context, to, subject, _ string) error {
	s.Logger.Info().
		Str("channel", "email").
		Str("to", to).
		Str("subject", subject).
		Time("at", time.Now()).
		Msg("notification delivered")
	return nil
}

// LogSMSSender is the development SMS transport.
type LogSMSSender struct {
	Logger zerolog.Logger
}

// SendSMS logs the message.
func (s LogSMSSender) SendSMS(_ context.Context, to, _ string) error {
	s.Logger.Info().
		Str("channel", "sms").
		Str("to", to).
		Time("at", time.Now()).
		Msg("notification delivered")
	return nil
}
