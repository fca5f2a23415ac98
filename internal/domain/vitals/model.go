// Package vitals holds the bounded per-patient vital-sign history, trend
// analysis, and the critical-value alerting pipeline.
package vitals

import (
	"fmt"
	"strings"
	"time"
)

// BloodPressureCategory classifies a reading per the AHA staging thresholds.
type BloodPressureCategory string

const (
	CategoryNormal             BloodPressureCategory = "NORMAL"
	CategoryElevated           BloodPressureCategory = "ELEVATED"
	CategoryStage1Hypertension BloodPressureCategory = "STAGE_1_HYPERTENSION"
	CategoryStage2Hypertension BloodPressureCategory = "STAGE_2_HYPERTENSION"
	CategoryHypertensiveCrisis BloodPressureCategory = "HYPERTENSIVE_CRISIS"
)

// Description returns the human-readable category name.
func (c BloodPressureCategory) Description() string {
	switch c {
	case CategoryElevated:
		return "Elevated"
	case CategoryStage1Hypertension:
		return "Stage 1 Hypertension"
	case CategoryStage2Hypertension:
		return "Stage 2 Hypertension"
	case CategoryHypertensiveCrisis:
		return "Hypertensive Crisis"
	default:
		return "Normal"
	}
}

// BloodPressure is a systolic/diastolic pair in mmHg.
type BloodPressure struct {
	Systolic  int `json:"systolic"`
	Diastolic int `json:"diastolic"`
}

// NewBloodPressure validates and builds a reading. Both values must be
// positive and systolic must be at least diastolic.
func NewBloodPressure(systolic, diastolic int) (BloodPressure, error) {
	if systolic <= 0 || diastolic <= 0 || systolic < diastolic {
		return BloodPressure{}, fmt.Errorf("%w: blood pressure %d/%d", ErrInvalidReading, systolic, diastolic)
	}
	return BloodPressure{Systolic: systolic, Diastolic: diastolic}, nil
}

// Category stages the reading. Thresholds check systolic first at each stage
// so the higher of the two classifications wins.
func (bp BloodPressure) Category() BloodPressureCategory {
	switch {
	case bp.Systolic >= 180 || bp.Diastolic >= 120:
		return CategoryHypertensiveCrisis
	case bp.Systolic >= 140 || bp.Diastolic >= 90:
		return CategoryStage2Hypertension
	case bp.Systolic >= 130 || bp.Diastolic >= 80:
		return CategoryStage1Hypertension
	case bp.Systolic >= 120:
		return CategoryElevated
	default:
		return CategoryNormal
	}
}

// IsCritical reports hypertensive crisis or hypotension.
func (bp BloodPressure) IsCritical() bool {
	return bp.Category() == CategoryHypertensiveCrisis || bp.Systolic < 90 || bp.Diastolic < 60
}

// Reading formats the pair as "120/80 mmHg".
func (bp BloodPressure) Reading() string {
	return fmt.Sprintf("%d/%d mmHg", bp.Systolic, bp.Diastolic)
}

// PainLevel is a 0-5 self-reported pain score.
type PainLevel int

const (
	PainNone PainLevel = iota
	PainMild
	PainModerate
	PainSevere
	PainVerySevere
	PainWorstPossible
)

// Description returns the clinical wording for the score.
func (p PainLevel) Description() string {
	switch p {
	case PainMild:
		return "Mild pain"
	case PainModerate:
		return "Moderate pain"
	case PainSevere:
		return "Severe pain"
	case PainVerySevere:
		return "Very severe pain"
	case PainWorstPossible:
		return "Worst possible pain"
	default:
		return "No pain"
	}
}

// Valid reports whether the score is in range.
func (p PainLevel) Valid() bool {
	return p >= PainNone && p <= PainWorstPossible
}

// Component names one measurable dimension of a vitals reading, for trend
// queries.
type Component string

const (
	ComponentBodyTemperature  Component = "BODY_TEMPERATURE"
	ComponentPulseRate        Component = "PULSE_RATE"
	ComponentRespiratoryRate  Component = "RESPIRATORY_RATE"
	ComponentSystolicBP       Component = "SYSTOLIC_BP"
	ComponentDiastolicBP      Component = "DIASTOLIC_BP"
	ComponentOxygenSaturation Component = "OXYGEN_SATURATION"
	ComponentBMI              Component = "BMI"
)

// ParseComponent resolves a case-insensitive component name.
func ParseComponent(s string) (Component, error) {
	c := Component(strings.ToUpper(strings.TrimSpace(s)))
	switch c {
	case ComponentBodyTemperature, ComponentPulseRate, ComponentRespiratoryRate,
		ComponentSystolicBP, ComponentDiastolicBP, ComponentOxygenSaturation, ComponentBMI:
		return c, nil
	}
	return "", fmt.Errorf("%w: unknown component %q", ErrInvalidReading, s)
}

// Physiological acceptance limits. Readings outside these bounds are treated
// as measurement errors, not emergencies.
const (
	MinTemperature      = 25.0
	MaxTemperature      = 43.0
	MinPulseRate        = 20
	MaxPulseRate        = 250
	MinRespiratoryRate  = 4
	MaxRespiratoryRate  = 60
	MinOxygenSaturation = 50.0
	MaxOxygenSaturation = 100.0
)

// VitalSigns is one validated reading. Height, weight, and BMI are optional;
// BMI is derived, never supplied.
type VitalSigns struct {
	Timestamp        time.Time     `json:"timestamp"`
	BodyTemperature  float64       `json:"body_temperature"`
	PulseRate        int           `json:"pulse_rate"`
	RespiratoryRate  int           `json:"respiratory_rate"`
	BloodPressure    BloodPressure `json:"blood_pressure"`
	OxygenSaturation float64       `json:"oxygen_saturation"`
	HeightCm         *float64      `json:"height_cm,omitempty"`
	WeightKg         *float64      `json:"weight_kg,omitempty"`
	BMI              *float64      `json:"bmi,omitempty"`
	PainLevel        PainLevel     `json:"pain_level"`
}

// NewVitalSigns validates each measurement against the physiological limits
// and derives BMI when both height and weight are present and positive.
func NewVitalSigns(ts time.Time, temperature float64, pulse, respiratory int, bp BloodPressure, spo2 float64, heightCm, weightKg *float64) (VitalSigns, error) {
	if ts.IsZero() {
		return VitalSigns{}, fmt.Errorf("%w: timestamp is required", ErrInvalidReading)
	}
	if temperature < MinTemperature || temperature > MaxTemperature {
		return VitalSigns{}, fmt.Errorf("%w: body temperature %.1f°C", ErrInvalidReading, temperature)
	}
	if pulse < MinPulseRate || pulse > MaxPulseRate {
		return VitalSigns{}, fmt.Errorf("%w: pulse rate %d bpm", ErrInvalidReading, pulse)
	}
	if respiratory < MinRespiratoryRate || respiratory > MaxRespiratoryRate {
		return VitalSigns{}, fmt.Errorf("%w: respiratory rate %d breaths/min", ErrInvalidReading, respiratory)
	}
	if spo2 < MinOxygenSaturation || spo2 > MaxOxygenSaturation {
		return VitalSigns{}, fmt.Errorf("%w: oxygen saturation %.1f%%", ErrInvalidReading, spo2)
	}

	v := VitalSigns{
		Timestamp:        ts,
		BodyTemperature:  temperature,
		PulseRate:        pulse,
		RespiratoryRate:  respiratory,
		BloodPressure:    bp,
		OxygenSaturation: spo2,
		HeightCm:         heightCm,
		WeightKg:         weightKg,
		PainLevel:        PainNone,
	}
	if heightCm != nil && weightKg != nil && *heightCm > 0 && *weightKg > 0 {
		m := *heightCm / 100
		bmi := *weightKg / (m * m)
		v.BMI = &bmi
	}
	return v, nil
}

// IsCritical reports whether any measurement is in its emergency band.
func (v VitalSigns) IsCritical() bool {
	return v.BodyTemperature > 39.0 || v.BodyTemperature < 35.0 ||
		v.PulseRate > 120 || v.PulseRate < 50 ||
		v.RespiratoryRate > 24 || v.RespiratoryRate < 10 ||
		v.BloodPressure.IsCritical() ||
		v.OxygenSaturation < 92.0
}

// Component returns the numeric value of one dimension. Missing BMI reads as
// zero.
func (v VitalSigns) Component(c Component) float64 {
	switch c {
	case ComponentBodyTemperature:
		return v.BodyTemperature
	case ComponentPulseRate:
		return float64(v.PulseRate)
	case ComponentRespiratoryRate:
		return float64(v.RespiratoryRate)
	case ComponentSystolicBP:
		return float64(v.BloodPressure.Systolic)
	case ComponentDiastolicBP:
		return float64(v.BloodPressure.Diastolic)
	case ComponentOxygenSaturation:
		return v.OxygenSaturation
	case ComponentBMI:
		if v.BMI != nil {
			return *v.BMI
		}
		return 0
	}
	return 0
}

// Summary is the compact one-line clinical rendering.
func (v VitalSigns) Summary() string {
	return fmt.Sprintf("Vital Signs [%s]: Temp %.1f°C, Pulse %d bpm, Resp %d/min, BP %s, SpO2 %.1f%%",
		v.Timestamp.Format("15:04:05"),
		v.BodyTemperature, v.PulseRate, v.RespiratoryRate,
		v.BloodPressure.Reading(), v.OxygenSaturation)
}

// AbnormalSummary lists only the measurements in their emergency bands, one
// per line, in temperature, pulse, blood pressure, oxygen order. Empty when
// nothing is abnormal.
func (v VitalSigns) AbnormalSummary() string {
	var lines []string
	if v.BodyTemperature > 39.0 || v.BodyTemperature < 35.0 {
		lines = append(lines, fmt.Sprintf("Abnormal Temp: %.1f°C", v.BodyTemperature))
	}
	if v.PulseRate > 120 || v.PulseRate < 50 {
		lines = append(lines, fmt.Sprintf("Abnormal Pulse: %d bpm", v.PulseRate))
	}
	if v.BloodPressure.IsCritical() {
		lines = append(lines, "Critical BP: "+v.BloodPressure.Reading())
	}
	if v.OxygenSaturation < 92 {
		lines = append(lines, fmt.Sprintf("Low SpO2: %.1f%%", v.OxygenSaturation))
	}
	return strings.Join(lines, "\n")
}
