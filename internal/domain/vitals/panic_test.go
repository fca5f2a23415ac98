package vitals

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/carebridge/carebridge/internal/domain/directory"
	"github.com/carebridge/carebridge/internal/platform/clock"
)

type fakeEmergencyNotifier struct {
	mu       sync.Mutex
	messages []string
	contacts []directory.EmergencyContact
	fail     bool
}

func (f *fakeEmergencyNotifier) SendEmergencyContactAlert(_ context.Context, contact directory.EmergencyContact, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("transport down")
	}
	f.contacts = append(f.contacts, contact)
	f.messages = append(f.messages, message)
	return nil
}

func (f *fakeEmergencyNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages)
}

func panicFixture(t *testing.T) (*PanicButton, *fakeEmergencyNotifier, *clock.Fake) {
	t.Helper()
	registry := directory.NewRegistry()
	err := registry.AddPatient(directory.Patient{
		ID:              "PAT-1",
		FirstName:       "Ada",
		LastName:        "Boone",
		CurrentLocation: "Ward 3, Room 12",
		Emergency: directory.EmergencyContact{
			Name:  "Rosa Boone",
			Email: "rosa@home.test",
			Phone: "555-0199",
		},
	})
	if err != nil {
		t.Fatalf("seed patient: %v", err)
	}

	clk := clock.NewFake(testNow)
	notifier := &fakeEmergencyNotifier{}
	return NewPanicButton(registry, notifier, clk, 2*time.Minute, zerolog.Nop()), notifier, clk
}

func TestPanicActivate_SendsToEmergencyContact(t *testing.T) {
	b, notifier, _ := panicFixture(t)

	if err := b.Activate(context.Background(), "PAT-1"); err != nil {
		t.Fatalf("activate failed: %v", err)
	}
	if notifier.count() != 1 {
		t.Fatalf("expected 1 alert, got %d", notifier.count())
	}
	if notifier.contacts[0].Name != "Rosa Boone" {
		t.Errorf("alert went to wrong contact: %+v", notifier.contacts[0])
	}

	msg := notifier.messages[0]
	for _, want := range []string{"EMERGENCY ALERT", "Ada Boone", "Ward 3, Room 12"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q:\n%s", want, msg)
		}
	}
}

func TestPanicActivate_Cooldown(t *testing.T) {
	b, notifier, clk := panicFixture(t)

	if err := b.Activate(context.Background(), "PAT-1"); err != nil {
		t.Fatalf("activate failed: %v", err)
	}

	clk.Advance(time.Minute)
	if err := b.Activate(context.Background(), "PAT-1"); !errors.Is(err, ErrPanicCooldown) {
		t.Fatalf("expected ErrPanicCooldown, got %v", err)
	}
	if notifier.count() != 1 {
		t.Fatalf("cooldown breach sent an alert")
	}

	clk.Advance(2 * time.Minute)
	if err := b.Activate(context.Background(), "PAT-1"); err != nil {
		t.Fatalf("activate after cooldown failed: %v", err)
	}
}

func TestPanicActivate_UnknownPatient(t *testing.T) {
	b, _, _ := panicFixture(t)
	if err := b.Activate(context.Background(), "PAT-404"); !errors.Is(err, directory.ErrPatientNotFound) {
		t.Fatalf("expected ErrPatientNotFound, got %v", err)
	}
}

func TestPanicActivate_DeliveryFailureSurfacesButStartsCooldown(t *testing.T) {
	b, notifier, _ := panicFixture(t)

	notifier.fail = true
	if err := b.Activate(context.Background(), "PAT-1"); err == nil {
		t.Fatal("expected delivery error")
	}

	// The accepted activation still arms the cooldown, so an immediate retry
	// is rejected rather than hammering the transport.
	notifier.fail = false
	if err := b.Activate(context.Background(), "PAT-1"); !errors.Is(err, ErrPanicCooldown) {
		t.Fatalf("expected ErrPanicCooldown, got %v", err)
	}
}

func TestPanicActivate_ConcurrentPressesAdmitOne(t *testing.T) {
	b, notifier, _ := panicFixture(t)

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = b.Activate(context.Background(), "PAT-1")
		}()
	}
	wg.Wait()

	if notifier.count() != 1 {
		t.Fatalf("expected exactly 1 alert from concurrent presses, got %d", notifier.count())
	}
}
