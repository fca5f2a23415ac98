package scheduling

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/carebridge/carebridge/internal/domain/directory"
	"github.com/carebridge/carebridge/internal/platform/clock"
)

// fakeNotifier records every delivery and can simulate transport failure.
type fakeNotifier struct {
	mu        sync.Mutex
	reminders []string
	statuses  []Status
	fail      bool
}

func (f *fakeNotifier) SendAppointmentReminder(_ context.Context, appt Appointment, _ directory.Patient) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("transport down")
	}
	f.reminders = append(f.reminders, appt.ID)
	return nil
}

func (f *fakeNotifier) SendStatusNotification(_ context.Context, _ Appointment, status Status, _ directory.Patient) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("transport down")
	}
	f.statuses = append(f.statuses, status)
	return nil
}

func (f *fakeNotifier) reminderCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reminders)
}

func (f *fakeNotifier) lastStatus() (Status, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.statuses) == 0 {
		return "", false
	}
	return f.statuses[len(f.statuses)-1], true
}

type testEnv struct {
	engine   *Engine
	store    *Store
	notifier *fakeNotifier
	clock    *clock.Fake
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	registry := directory.NewRegistry()
	if err := registry.AddPatient(directory.Patient{ID: "PAT-1", FirstName: "Ada", LastName: "Boone"}); err != nil {
		t.Fatalf("seed patient: %v", err)
	}
	if err := registry.AddPatient(directory.Patient{ID: "PAT-2", FirstName: "Ben", LastName: "Okafor"}); err != nil {
		t.Fatalf("seed patient: %v", err)
	}

	clk := clock.NewFake(testNow)
	notifier := &fakeNotifier{}
	store := NewStore()
	reminders := NewReminderScheduler(notifier, registry, clk, 0, 0, zerolog.Nop())
	return &testEnv{
		engine:   NewEngine(store, reminders, clk, zerolog.Nop()),
		store:    store,
		notifier: notifier,
		clock:    clk,
	}
}

func (env *testEnv) mustSchedule(t *testing.T, patientID, doctorID string, start time.Time, d time.Duration) Appointment {
	t.Helper()
	appt, err := env.engine.Schedule(context.Background(), patientID, doctorID, start, d, "", "")
	if err != nil {
		t.Fatalf("schedule failed: %v", err)
	}
	return appt
}

func (env *testEnv) mustConfirm(t *testing.T, doctorID, apptID string) Appointment {
	t.Helper()
	appt, err := env.engine.Confirm(context.Background(), doctorID, apptID)
	if err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	return appt
}

func TestSchedule_ConflictAgainstConfirmedSlot(t *testing.T) {
	env := newTestEnv(t)
	start := testNow.Add(48 * time.Hour)

	first := env.mustSchedule(t, "PAT-1", "DOC-1", start, time.Hour)
	env.mustConfirm(t, "DOC-1", first.ID)

	_, err := env.engine.Schedule(context.Background(), "PAT-2", "DOC-1", start.Add(30*time.Minute), time.Hour, "", "")
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestSchedule_PendingDoesNotBlock(t *testing.T) {
	env := newTestEnv(t)
	start := testNow.Add(48 * time.Hour)

	// First booking stays SCHEDULED: it must not reserve the slot.
	env.mustSchedule(t, "PAT-1", "DOC-1", start, time.Hour)
	second := env.mustSchedule(t, "PAT-2", "DOC-1", start, time.Hour)

	if second.Status != StatusScheduled {
		t.Errorf("expected SCHEDULED, got %s", second.Status)
	}
}

func TestSchedule_BackToBackSlotsDoNotConflict(t *testing.T) {
	env := newTestEnv(t)
	start := testNow.Add(48 * time.Hour)

	first := env.mustSchedule(t, "PAT-1", "DOC-1", start, time.Hour)
	env.mustConfirm(t, "DOC-1", first.ID)

	if _, err := env.engine.Schedule(context.Background(), "PAT-2", "DOC-1", start.Add(time.Hour), time.Hour, "", ""); err != nil {
		t.Fatalf("back-to-back booking should succeed: %v", err)
	}
}

func TestSchedule_OtherDoctorUnaffected(t *testing.T) {
	env := newTestEnv(t)
	start := testNow.Add(48 * time.Hour)

	first := env.mustSchedule(t, "PAT-1", "DOC-1", start, time.Hour)
	env.mustConfirm(t, "DOC-1", first.ID)

	if _, err := env.engine.Schedule(context.Background(), "PAT-2", "DOC-2", start, time.Hour, "", ""); err != nil {
		t.Fatalf("different doctor must not conflict: %v", err)
	}
}

func TestConfirm_MovesToScheduleIndices(t *testing.T) {
	env := newTestEnv(t)
	start := testNow.Add(48 * time.Hour)

	appt := env.mustSchedule(t, "PAT-1", "DOC-1", start, time.Hour)
	if got := len(env.engine.PendingAppointments("DOC-1")); got != 1 {
		t.Fatalf("expected 1 pending appointment, got %d", got)
	}

	confirmed := env.mustConfirm(t, "DOC-1", appt.ID)
	if confirmed.Status != StatusConfirmed {
		t.Errorf("expected CONFIRMED, got %s", confirmed.Status)
	}
	if got := len(env.engine.PendingAppointments("DOC-1")); got != 0 {
		t.Errorf("expected pending set to empty, got %d", got)
	}

	day := env.engine.DoctorSchedule("DOC-1", start)
	if len(day) != 1 || day[0].ID != appt.ID {
		t.Errorf("expected appointment in doctor schedule, got %v", day)
	}
	pday := env.engine.PatientSchedule("PAT-1", start)
	if len(pday) != 1 || pday[0].ID != appt.ID {
		t.Errorf("expected appointment in patient schedule, got %v", pday)
	}
}

func TestConfirm_WrongDoctorIsForbidden(t *testing.T) {
	env := newTestEnv(t)
	appt := env.mustSchedule(t, "PAT-1", "DOC-1", testNow.Add(48*time.Hour), time.Hour)

	_, err := env.engine.Confirm(context.Background(), "DOC-2", appt.ID)
	if !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
}

func TestCancelByPatient_ChecksOwnership(t *testing.T) {
	env := newTestEnv(t)
	appt := env.mustSchedule(t, "PAT-1", "DOC-1", testNow.Add(48*time.Hour), time.Hour)

	if _, err := env.engine.CancelByPatient(context.Background(), "PAT-2", appt.ID, "mix-up"); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}

	cancelled, err := env.engine.CancelByPatient(context.Background(), "PAT-1", appt.ID, "feeling better")
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if cancelled.Status != StatusCancelled {
		t.Errorf("expected CANCELLED, got %s", cancelled.Status)
	}
	if cancelled.CancellationReason != "feeling better" {
		t.Errorf("unexpected cancellation reason %q", cancelled.CancellationReason)
	}
}

func TestCancel_ReleasesSlotForRebooking(t *testing.T) {
	env := newTestEnv(t)
	start := testNow.Add(48 * time.Hour)

	first := env.mustSchedule(t, "PAT-1", "DOC-1", start, time.Hour)
	env.mustConfirm(t, "DOC-1", first.ID)

	if _, err := env.engine.CancelByDoctor(context.Background(), "DOC-1", first.ID, "emergency surgery"); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	if _, err := env.engine.Schedule(context.Background(), "PAT-2", "DOC-1", start, time.Hour, "", ""); err != nil {
		t.Fatalf("slot should be free after cancellation: %v", err)
	}
	if len(env.engine.DoctorSchedule("DOC-1", start)) != 0 {
		t.Error("cancelled appointment must leave the schedule index")
	}
}

func TestReschedule_OriginalTerminalSuccessorPending(t *testing.T) {
	env := newTestEnv(t)
	start := testNow.Add(48 * time.Hour)

	original := env.mustSchedule(t, "PAT-1", "DOC-1", start, time.Hour)
	env.mustConfirm(t, "DOC-1", original.ID)

	newStart := start.Add(24 * time.Hour)
	successor, err := env.engine.Reschedule(context.Background(), original.ID, newStart, time.Hour, "PAT-1")
	if err != nil {
		t.Fatalf("reschedule failed: %v", err)
	}

	if successor.ID == original.ID {
		t.Error("successor must get a fresh id")
	}
	if successor.Status != StatusScheduled {
		t.Errorf("successor must start SCHEDULED, got %s", successor.Status)
	}
	if !successor.StartTime.Equal(newStart) {
		t.Errorf("successor start = %v, want %v", successor.StartTime, newStart)
	}

	got, err := env.engine.GetAppointment(original.ID)
	if err != nil {
		t.Fatalf("original lookup failed: %v", err)
	}
	if got.Status != StatusRescheduled {
		t.Errorf("original must be RESCHEDULED, got %s", got.Status)
	}

	// The original slot is free again.
	if _, err := env.engine.Schedule(context.Background(), "PAT-2", "DOC-1", start, time.Hour, "", ""); err != nil {
		t.Fatalf("original slot should be rebookable: %v", err)
	}
}

func TestReschedule_ExcludesOwnSlotFromConflictCheck(t *testing.T) {
	env := newTestEnv(t)
	start := testNow.Add(48 * time.Hour)

	original := env.mustSchedule(t, "PAT-1", "DOC-1", start, time.Hour)
	env.mustConfirm(t, "DOC-1", original.ID)

	// Shifting within the original's own window must not self-conflict.
	if _, err := env.engine.Reschedule(context.Background(), original.ID, start.Add(30*time.Minute), time.Hour, "PAT-1"); err != nil {
		t.Fatalf("reschedule into own slot failed: %v", err)
	}
}

func TestReschedule_CancelledAppointmentRejected(t *testing.T) {
	env := newTestEnv(t)
	appt := env.mustSchedule(t, "PAT-1", "DOC-1", testNow.Add(48*time.Hour), time.Hour)
	if _, err := env.engine.CancelByPatient(context.Background(), "PAT-1", appt.ID, ""); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	_, err := env.engine.Reschedule(context.Background(), appt.ID, testNow.Add(72*time.Hour), time.Hour, "PAT-1")
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestStartCompleteLifecycle(t *testing.T) {
	env := newTestEnv(t)
	start := testNow.Add(time.Hour)

	appt := env.mustSchedule(t, "PAT-1", "DOC-1", start, time.Hour)
	env.mustConfirm(t, "DOC-1", appt.ID)

	env.clock.Advance(time.Hour)
	started, err := env.engine.Start(context.Background(), "DOC-1", appt.ID)
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if started.Status != StatusInProgress {
		t.Errorf("expected IN_PROGRESS, got %s", started.Status)
	}

	active := env.engine.ActiveAppointments("DOC-1")
	if len(active) != 1 || active[0].ID != appt.ID {
		t.Errorf("expected one active appointment, got %v", active)
	}

	completed, err := env.engine.Complete(context.Background(), "DOC-1", appt.ID, "BP stable, follow up in 3 months")
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if completed.Status != StatusCompleted {
		t.Errorf("expected COMPLETED, got %s", completed.Status)
	}
	if len(env.engine.ActiveAppointments("DOC-1")) != 0 {
		t.Error("completed appointment must leave the active set")
	}
}

func TestStart_AfterEndTimeRejected(t *testing.T) {
	env := newTestEnv(t)
	start := testNow.Add(time.Hour)

	appt := env.mustSchedule(t, "PAT-1", "DOC-1", start, time.Hour)
	env.mustConfirm(t, "DOC-1", appt.ID)

	env.clock.Advance(3 * time.Hour)
	if _, err := env.engine.Start(context.Background(), "DOC-1", appt.ID); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestMarkNoShow_OnlyAfterEndTime(t *testing.T) {
	env := newTestEnv(t)
	start := testNow.Add(time.Hour)

	appt := env.mustSchedule(t, "PAT-1", "DOC-1", start, time.Hour)
	env.mustConfirm(t, "DOC-1", appt.ID)

	if _, err := env.engine.MarkNoShow(context.Background(), "DOC-1", appt.ID); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState before end time, got %v", err)
	}

	env.clock.Advance(3 * time.Hour)
	marked, err := env.engine.MarkNoShow(context.Background(), "DOC-1", appt.ID)
	if err != nil {
		t.Fatalf("no-show failed: %v", err)
	}
	if marked.Status != StatusNoShow {
		t.Errorf("expected NO_SHOW, got %s", marked.Status)
	}
	if got, ok := env.notifier.lastStatus(); !ok || got != StatusNoShow {
		t.Errorf("expected NO_SHOW notification, got %v", got)
	}
}

func TestGetAppointment_NotFound(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.engine.GetAppointment("APT-missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSchedule_UniqueIDsUnderLoad(t *testing.T) {
	env := newTestEnv(t)
	const n = 200

	ids := make(map[string]struct{}, n)
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			start := testNow.Add(time.Duration(24+i) * time.Hour)
			appt, err := env.engine.Schedule(context.Background(), "PAT-1", fmt.Sprintf("DOC-%d", i%10), start, time.Hour, "", "")
			if err != nil {
				t.Errorf("schedule failed: %v", err)
				return
			}
			mu.Lock()
			ids[appt.ID] = struct{}{}
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	if len(ids) != n {
		t.Errorf("expected %d unique ids, got %d", n, len(ids))
	}
}

func TestSchedule_ConcurrentOverlapAdmitsOne(t *testing.T) {
	env := newTestEnv(t)
	start := testNow.Add(48 * time.Hour)

	seed := env.mustSchedule(t, "PAT-1", "DOC-1", start.Add(-24*time.Hour), time.Hour)
	env.mustConfirm(t, "DOC-1", seed.ID)

	// Race many bookings for the same slot; confirm each winner immediately so
	// later attempts see a reserved schedule. At most one booking per slot can
	// end up confirmed.
	const n = 50
	var confirmed int
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			appt, err := env.engine.Schedule(context.Background(), "PAT-2", "DOC-1", start, time.Hour, "", "")
			if err != nil {
				if !errors.Is(err, ErrConflict) {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if _, err := env.engine.Confirm(context.Background(), "DOC-1", appt.ID); err == nil {
				mu.Lock()
				confirmed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if confirmed != 1 {
		t.Errorf("expected exactly 1 confirmation to win, got %d", confirmed)
	}
	day := env.engine.DoctorSchedule("DOC-1", start)
	overlapping := 0
	for _, a := range day {
		if a.overlaps(start, time.Hour) {
			overlapping++
		}
	}
	if overlapping != 1 {
		t.Errorf("confirmed schedule admitted %d overlapping appointments, want 1", overlapping)
	}
}

func TestTransitions_ConcurrentWithScheduleReads(t *testing.T) {
	env := newTestEnv(t)
	start := testNow.Add(30 * time.Minute)

	appt := env.mustSchedule(t, "PAT-1", "DOC-1", start, time.Hour)
	env.mustConfirm(t, "DOC-1", appt.ID)

	// Readers copy appointments out of the schedule indices while the
	// lifecycle advances underneath them; every copy must be a consistent
	// snapshot of the transition fields.
	done := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				for _, a := range env.engine.DoctorSchedule("DOC-1", start) {
					if a.Status == StatusInProgress && a.StatusNote != "Patient arrived" {
						t.Errorf("torn snapshot: status %s with note %q", a.Status, a.StatusNote)
					}
				}
				env.engine.PatientSchedule("PAT-1", start)
				env.engine.ActiveAppointments("DOC-1")
			}
		}()
	}

	if _, err := env.engine.Start(context.Background(), "DOC-1", appt.ID); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if _, err := env.engine.Complete(context.Background(), "DOC-1", appt.ID, ""); err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	close(done)
	wg.Wait()

	got, err := env.engine.GetAppointment(appt.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Status != StatusCompleted {
		t.Errorf("status = %s, want %s", got.Status, StatusCompleted)
	}
}
