package scheduling

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Store is the canonical in-memory appointment map plus its derived indices:
// doctor id -> confirmed schedule, patient id -> confirmed schedule, and
// doctor id -> pending (scheduled-but-unconfirmed) appointments.
//
// The maps are individually guarded by mu, but multi-step sequences such as
// "check conflict, then insert" are not atomic at this level. The Engine
// closes that window by holding the per-doctor lock from DoctorLock across
// the whole check-and-commit; relying on map safety alone would let two
// concurrent bookings for overlapping slots both pass the conflict check.
type Store struct {
	mu               sync.RWMutex
	appointments     map[string]*Appointment
	doctorSchedules  map[string]map[string]struct{}
	patientSchedules map[string]map[string]struct{}
	pending          map[string]map[string]*Appointment

	lockMu      sync.Mutex
	doctorLocks map[string]*sync.Mutex
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		appointments:     make(map[string]*Appointment),
		doctorSchedules:  make(map[string]map[string]struct{}),
		patientSchedules: make(map[string]map[string]struct{}),
		pending:          make(map[string]map[string]*Appointment),
		doctorLocks:      make(map[string]*sync.Mutex),
	}
}

// DoctorLock returns the serialization lock for one doctor's schedule.
func (s *Store) DoctorLock(doctorID string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	l, ok := s.doctorLocks[doctorID]
	if !ok {
		l = &sync.Mutex{}
		s.doctorLocks[doctorID] = l
	}
	return l
}

// Insert adds a new appointment to the canonical map. The id must be fresh.
func (s *Store) Insert(a *Appointment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appointments[a.ID] = a
}

// Contains reports whether an id is already in the canonical map.
func (s *Store) Contains(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.appointments[id]
	return ok
}

// Get returns the live appointment record. Field mutation goes through
// Update; callers only read.
func (s *Store) Get(id string) (*Appointment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.appointments[id]
	return a, ok
}

// Update applies fn to the live appointment under the store's write lock and
// returns a copy of the result. Schedule queries copy appointments under the
// same lock, so a concurrent reader never observes a half-written transition.
// Callers also hold the owning doctor's lock to keep the surrounding
// check-and-commit sequence atomic.
func (s *Store) Update(id string, fn func(*Appointment) error) (Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.appointments[id]
	if !ok {
		return Appointment{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err := fn(a); err != nil {
		return Appointment{}, err
	}
	return *a, nil
}

// AddPending records an unconfirmed appointment under its doctor.
func (s *Store) AddPending(a *Appointment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.pending[a.DoctorID]
	if !ok {
		m = make(map[string]*Appointment)
		s.pending[a.DoctorID] = m
	}
	m[a.ID] = a
}

// RemovePending drops an appointment from the doctor's pending set.
func (s *Store) RemovePending(doctorID, appointmentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.pending[doctorID]
	if !ok {
		return
	}
	delete(m, appointmentID)
	if len(m) == 0 {
		delete(s.pending, doctorID)
	}
}

// PendingForDoctor returns copies of a doctor's pending appointments sorted by
// start time ascending.
func (s *Store) PendingForDoctor(doctorID string) []Appointment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Appointment
	for _, a := range s.pending[doctorID] {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out
}

// AddToSchedules indexes a confirmed appointment under both doctor and patient.
func (s *Store) AddToSchedules(a *Appointment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	addToIndex(s.doctorSchedules, a.DoctorID, a.ID)
	addToIndex(s.patientSchedules, a.PatientID, a.ID)
}

// RemoveFromSchedules drops an appointment from both schedule indices.
func (s *Store) RemoveFromSchedules(a *Appointment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removeFromIndex(s.doctorSchedules, a.DoctorID, a.ID)
	removeFromIndex(s.patientSchedules, a.PatientID, a.ID)
}

func addToIndex(index map[string]map[string]struct{}, key, id string) {
	set, ok := index[key]
	if !ok {
		set = make(map[string]struct{})
		index[key] = set
	}
	set[id] = struct{}{}
}

func removeFromIndex(index map[string]map[string]struct{}, key, id string) {
	if set, ok := index[key]; ok {
		delete(set, id)
	}
}

// DoctorAppointments returns the live records in a doctor's confirmed
// schedule, optionally excluding one appointment id.
func (s *Store) DoctorAppointments(doctorID, excludeID string) []*Appointment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Appointment
	for id := range s.doctorSchedules[doctorID] {
		if id == excludeID {
			continue
		}
		if a, ok := s.appointments[id]; ok {
			out = append(out, a)
		}
	}
	return out
}

// DoctorScheduleForDate copies a doctor's confirmed appointments on the given
// calendar date, sorted by start time ascending.
func (s *Store) DoctorScheduleForDate(doctorID string, date time.Time) []Appointment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return scheduleForDate(s.appointments, s.doctorSchedules, doctorID, date)
}

// PatientScheduleForDate copies a patient's confirmed appointments on the
// given calendar date, sorted by start time ascending.
func (s *Store) PatientScheduleForDate(patientID string, date time.Time) []Appointment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return scheduleForDate(s.appointments, s.patientSchedules, patientID, date)
}

func scheduleForDate(appointments map[string]*Appointment, index map[string]map[string]struct{}, key string, date time.Time) []Appointment {
	var out []Appointment
	for id := range index[key] {
		a, ok := appointments[id]
		if !ok {
			continue
		}
		if a.sameCalendarDay(date) {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out
}

// ActiveAppointments copies a doctor's IN_PROGRESS appointments.
func (s *Store) ActiveAppointments(doctorID string) []Appointment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Appointment
	for id := range s.doctorSchedules[doctorID] {
		a, ok := s.appointments[id]
		if !ok {
			continue
		}
		if a.Status == StatusInProgress {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out
}
