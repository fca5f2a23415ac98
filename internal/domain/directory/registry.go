// Package directory holds the in-memory patient and doctor registry that the
// scheduling and vitals cores read for contact information and primary-doctor
// assignment. Profile modeling beyond that boundary is out of scope.
package directory

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Errors returned by the registry.
var (
	ErrPatientNotFound = errors.New("patient not found")
	ErrDoctorNotFound  = errors.New("doctor not found")
	ErrNoPrimaryDoctor = errors.New("patient has no primary doctor assigned")
	ErrMissingID       = errors.New("id is required")
)

// ContactInfo is a reachable email/phone pair.
type ContactInfo struct {
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// EmergencyContact is the person alerted by the panic button.
type EmergencyContact struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// Patient is the slice of a patient profile the core depends on.
type Patient struct {
	ID              string           `json:"id"`
	FirstName       string           `json:"first_name"`
	LastName        string           `json:"last_name"`
	Contact         ContactInfo      `json:"contact"`
	Emergency       EmergencyContact `json:"emergency_contact"`
	PrimaryDoctorID string           `json:"primary_doctor_id,omitempty"`
	CurrentLocation string           `json:"current_location,omitempty"`
}

// FullName returns "First Last".
func (p Patient) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// Doctor is the slice of a doctor profile the core depends on.
type Doctor struct {
	ID        string      `json:"id"`
	FirstName string      `json:"first_name"`
	LastName  string      `json:"last_name"`
	Specialty string      `json:"specialty,omitempty"`
	Contact   ContactInfo `json:"contact"`
}

// FullName returns "First Last".
func (d Doctor) FullName() string {
	return strings.TrimSpace(d.FirstName + " " + d.LastName)
}

// Prescription carries the fields a medication reminder needs.
type Prescription struct {
	Medication   string `json:"medication"`
	Dosage       string `json:"dosage"`
	PrescribedBy string `json:"prescribed_by"`
}

// Registry is a concurrency-safe in-memory patient/doctor directory.
type Registry struct {
	mu       sync.RWMutex
	patients map[string]Patient
	doctors  map[string]Doctor
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		patients: make(map[string]Patient),
		doctors:  make(map[string]Doctor),
	}
}

// AddPatient registers or replaces a patient record.
func (r *Registry) AddPatient(p Patient) error {
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("%w: patient id", ErrMissingID)
	}
	p.ID = strings.TrimSpace(p.ID)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.patients[p.ID] = p
	return nil
}

// AddDoctor registers or replaces a doctor record.
func (r *Registry) AddDoctor(d Doctor) error {
	if strings.TrimSpace(d.ID) == "" {
		return fmt.Errorf("%w: doctor id", ErrMissingID)
	}
	d.ID = strings.TrimSpace(d.ID)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.doctors[d.ID] = d
	return nil
}

// PatientByID looks up a patient.
func (r *Registry) PatientByID(id string) (Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.patients[id]
	if !ok {
		return Patient{}, fmt.Errorf("%w: %s", ErrPatientNotFound, id)
	}
	return p, nil
}

// DoctorByID looks up a doctor.
func (r *Registry) DoctorByID(id string) (Doctor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.doctors[id]
	if !ok {
		return Doctor{}, fmt.Errorf("%w: %s", ErrDoctorNotFound, id)
	}
	return d, nil
}

// AssignPrimaryDoctor sets a patient's primary doctor. Both records must exist.
func (r *Registry) AssignPrimaryDoctor(patientID, doctorID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.patients[patientID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrPatientNotFound, patientID)
	}
	if _, ok := r.doctors[doctorID]; !ok {
		return fmt.Errorf("%w: %s", ErrDoctorNotFound, doctorID)
	}
	p.PrimaryDoctorID = doctorID
	r.patients[patientID] = p
	return nil
}

// PrimaryDoctor resolves a patient's primary doctor. Returns
// ErrNoPrimaryDoctor when the patient exists but has no assignment.
func (r *Registry) PrimaryDoctor(patientID string) (Doctor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.patients[patientID]
	if !ok {
		return Doctor{}, fmt.Errorf("%w: %s", ErrPatientNotFound, patientID)
	}
	if p.PrimaryDoctorID == "" {
		return Doctor{}, fmt.Errorf("%w: %s", ErrNoPrimaryDoctor, patientID)
	}
	d, ok := r.doctors[p.PrimaryDoctorID]
	if !ok {
		return Doctor{}, fmt.Errorf("%w: %s", ErrDoctorNotFound, p.PrimaryDoctorID)
	}
	return d, nil
}

// ListPatients returns all patients sorted by id.
func (r *Registry) ListPatients() []Patient {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Patient, 0, len(r.patients))
	for _, p := range r.patients {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ListDoctors returns all doctors sorted by id.
func (r *Registry) ListDoctors() []Doctor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Doctor, 0, len(r.doctors))
	for _, d := range r.doctors {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
