package vitals

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/carebridge/carebridge/internal/domain/directory"
	"github.com/carebridge/carebridge/internal/platform/clock"
)

// DoctorDirectory resolves a patient's primary doctor for alert routing.
type DoctorDirectory interface {
	PrimaryDoctor(patientID string) (directory.Doctor, error)
}

// DefaultMaxEntriesPerPatient bounds each patient's retained history.
const DefaultMaxEntriesPerPatient = 30

// dateKey is a calendar date in the reading's location, the retention unit:
// one reading per patient per date.
type dateKey struct {
	year  int
	month time.Month
	day   int
}

func toDateKey(t time.Time) dateKey {
	y, m, d := t.Date()
	return dateKey{year: y, month: m, day: d}
}

func (k dateKey) time() time.Time {
	return time.Date(k.year, k.month, k.day, 0, 0, 0, 0, time.UTC)
}

func (k dateKey) before(other dateKey) bool {
	return k.time().Before(other.time())
}

// Entry pairs a reading with its retention date.
type Entry struct {
	Date   time.Time  `json:"date"`
	Vitals VitalSigns `json:"vitals"`
}

// Store is the bounded in-memory vitals history. Each patient holds at most
// maxEntries readings, one per calendar date, newest first; recording past
// the bound evicts the oldest date. Critical readings are routed to the
// patient's primary doctor through the dispatcher.
type Store struct {
	mu         sync.RWMutex
	records    map[string]map[dateKey]VitalSigns
	maxEntries int
	dispatcher *AlertDispatcher
	doctors    DoctorDirectory
	clock      clock.Clock
	logger     zerolog.Logger
}

// NewStore creates a Store. maxEntries must be positive; non-positive values
// fall back to the default bound.
func NewStore(maxEntries int, dispatcher *AlertDispatcher, doctors DoctorDirectory, clk clock.Clock, logger zerolog.Logger) *Store {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntriesPerPatient
	}
	return &Store{
		records:    make(map[string]map[dateKey]VitalSigns),
		maxEntries: maxEntries,
		dispatcher: dispatcher,
		doctors:    doctors,
		clock:      clk,
		logger:     logger.With().Str("component", "vitals_store").Logger(),
	}
}

// Record stores today's reading for the patient. It returns
// ErrDuplicateReading when a reading already exists for the date -- the
// existing one wins. When the patient is at the retention bound the oldest
// date is evicted first. A critical reading triggers the alert pipeline;
// a patient without a primary doctor is logged and skipped, the recording
// still succeeds.
func (s *Store) Record(ctx context.Context, patientID string, v VitalSigns) error {
	if patientID == "" {
		return fmt.Errorf("%w: patient id is required", ErrInvalidReading)
	}

	key := toDateKey(s.clock.Now())
	s.mu.Lock()
	history, ok := s.records[patientID]
	if !ok {
		history = make(map[dateKey]VitalSigns)
		s.records[patientID] = history
	}
	if _, exists := history[key]; exists {
		s.mu.Unlock()
		return fmt.Errorf("%w: patient %s", ErrDuplicateReading, patientID)
	}
	if len(history) >= s.maxEntries {
		s.evictOldestLocked(history)
	}
	history[key] = v
	s.mu.Unlock()

	s.logger.Info().
		Str("patient_id", patientID).
		Bool("critical", v.IsCritical()).
		Msg("vitals recorded")

	if v.IsCritical() {
		doctor, err := s.doctors.PrimaryDoctor(patientID)
		if err != nil {
			s.logger.Error().Err(err).
				Str("patient_id", patientID).
				Msg("critical vitals but no primary doctor to alert")
			return nil
		}
		s.dispatcher.TriggerAlert(ctx, patientID, v, doctor)
	}
	return nil
}

// evictOldestLocked removes the oldest dates until the history is below the
// bound. Callers hold mu.
func (s *Store) evictOldestLocked(history map[dateKey]VitalSigns) {
	for len(history) >= s.maxEntries {
		var oldest dateKey
		first := true
		for k := range history {
			if first || k.before(oldest) {
				oldest = k
				first = false
			}
		}
		delete(history, oldest)
	}
}

// Latest returns the most recent reading for the patient.
func (s *Store) Latest(patientID string) (VitalSigns, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	history := s.records[patientID]
	if len(history) == 0 {
		return VitalSigns{}, fmt.Errorf("%w: patient %s", ErrNoReadings, patientID)
	}
	var newest dateKey
	first := true
	for k := range history {
		if first || newest.before(k) {
			newest = k
			first = false
		}
	}
	return history[newest], nil
}

// History returns the patient's readings newest first.
func (s *Store) History(patientID string) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entriesLocked(patientID, func(dateKey) bool { return true })
}

// InRange returns the readings whose dates fall in [from, to], inclusive,
// newest first.
func (s *Store) InRange(patientID string, from, to time.Time) []Entry {
	fromKey, toKey := toDateKey(from), toDateKey(to)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entriesLocked(patientID, func(k dateKey) bool {
		return !k.before(fromKey) && !toKey.before(k)
	})
}

// RecordedDates returns the dates with readings, newest first.
func (s *Store) RecordedDates(patientID string) []time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []time.Time
	for k := range s.records[patientID] {
		out = append(out, k.time())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].After(out[j]) })
	return out
}

// Count returns the number of retained readings for the patient.
func (s *Store) Count(patientID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records[patientID])
}

func (s *Store) entriesLocked(patientID string, keep func(dateKey) bool) []Entry {
	var out []Entry
	for k, v := range s.records[patientID] {
		if keep(k) {
			out = append(out, Entry{Date: k.time(), Vitals: v})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out
}

// TrendStats summarizes one component over a lookback window.
type TrendStats struct {
	Average float64 `json:"average"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Latest  float64 `json:"latest"`
}

// Trends computes component statistics over the last lookbackDays calendar
// days, today inclusive. A window with no readings yields all-zero stats
// rather than an error.
func (s *Store) Trends(patientID string, component Component, lookbackDays int) (TrendStats, error) {
	if lookbackDays <= 0 {
		return TrendStats{}, fmt.Errorf("%w: lookback must be positive", ErrInvalidReading)
	}
	now := s.clock.Now()
	entries := s.InRange(patientID, now.AddDate(0, 0, -lookbackDays), now)
	if len(entries) == 0 {
		return TrendStats{}, nil
	}

	stats := TrendStats{Latest: entries[0].Vitals.Component(component)}
	var sum float64
	for i, e := range entries {
		val := e.Vitals.Component(component)
		sum += val
		if i == 0 || val < stats.Min {
			stats.Min = val
		}
		if i == 0 || val > stats.Max {
			stats.Max = val
		}
	}
	stats.Average = sum / float64(len(entries))
	return stats, nil
}
