package vitals

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/carebridge/carebridge/internal/domain/directory"
	"github.com/carebridge/carebridge/internal/platform/clock"
	"github.com/carebridge/carebridge/pkg/pagination"
)

// Handler exposes the vitals history and panic button over HTTP.
type Handler struct {
	store *Store
	panic *PanicButton
	clock clock.Clock
}

// NewHandler creates a Handler.
func NewHandler(store *Store, panicButton *PanicButton, clk clock.Clock) *Handler {
	return &Handler{store: store, panic: panicButton, clock: clk}
}

// RegisterRoutes registers the vitals API routes on the given Echo group.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/patients/:patientID/vitals", h.Record)
	g.GET("/patients/:patientID/vitals", h.History)
	g.GET("/patients/:patientID/vitals/latest", h.Latest)
	g.GET("/patients/:patientID/vitals/dates", h.RecordedDates)
	g.GET("/patients/:patientID/vitals/trends", h.Trends)
	g.POST("/patients/:patientID/panic", h.Panic)
}

// recordRequest is the JSON body for recording a reading.
type recordRequest struct {
	BodyTemperature  float64  `json:"body_temperature"`
	PulseRate        int      `json:"pulse_rate"`
	RespiratoryRate  int      `json:"respiratory_rate"`
	Systolic         int      `json:"systolic"`
	Diastolic        int      `json:"diastolic"`
	OxygenSaturation float64  `json:"oxygen_saturation"`
	HeightCm         *float64 `json:"height_cm"`
	WeightKg         *float64 `json:"weight_kg"`
	PainLevel        *int     `json:"pain_level"`
}

// Record handles POST /patients/:patientID/vitals.
func (h *Handler) Record(c echo.Context) error {
	var req recordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	bp, err := NewBloodPressure(req.Systolic, req.Diastolic)
	if err != nil {
		return mapError(err)
	}
	v, err := NewVitalSigns(h.clock.Now(), req.BodyTemperature, req.PulseRate, req.RespiratoryRate,
		bp, req.OxygenSaturation, req.HeightCm, req.WeightKg)
	if err != nil {
		return mapError(err)
	}
	if req.PainLevel != nil {
		level := PainLevel(*req.PainLevel)
		if !level.Valid() {
			return echo.NewHTTPError(http.StatusBadRequest, "pain_level must be between 0 and 5")
		}
		v.PainLevel = level
	}

	if err := h.store.Record(c.Request().Context(), c.Param("patientID"), v); err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, v)
}

// History handles GET /patients/:patientID/vitals. Optional from/to query
// parameters (YYYY-MM-DD) restrict the range.
func (h *Handler) History(c echo.Context) error {
	patientID := c.Param("patientID")
	fromStr, toStr := c.QueryParam("from"), c.QueryParam("to")

	var entries []Entry
	if fromStr != "" || toStr != "" {
		from, err := time.Parse("2006-01-02", fromStr)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid from date: use YYYY-MM-DD")
		}
		to, err := time.Parse("2006-01-02", toStr)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid to date: use YYYY-MM-DD")
		}
		entries = h.store.InRange(patientID, from, to)
	} else {
		entries = h.store.History(patientID)
	}

	p := pagination.FromContext(c)
	start, end := p.Slice(len(entries))
	return c.JSON(http.StatusOK, pagination.NewResponse(entries[start:end], len(entries), p.Limit, p.Offset))
}

// Latest handles GET /patients/:patientID/vitals/latest.
func (h *Handler) Latest(c echo.Context) error {
	v, err := h.store.Latest(c.Param("patientID"))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, v)
}

// RecordedDates handles GET /patients/:patientID/vitals/dates.
func (h *Handler) RecordedDates(c echo.Context) error {
	dates := h.store.RecordedDates(c.Param("patientID"))
	out := make([]string, 0, len(dates))
	for _, d := range dates {
		out = append(out, d.Format("2006-01-02"))
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"dates": out})
}

// Trends handles GET /patients/:patientID/vitals/trends.
func (h *Handler) Trends(c echo.Context) error {
	component, err := ParseComponent(c.QueryParam("component"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	days := 7
	if d := c.QueryParam("days"); d != "" {
		days, err = strconv.Atoi(d)
		if err != nil || days <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "days must be a positive integer")
		}
	}

	stats, err := h.store.Trends(c.Param("patientID"), component, days)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, stats)
}

// Panic handles POST /patients/:patientID/panic.
func (h *Handler) Panic(c echo.Context) error {
	if err := h.panic.Activate(c.Request().Context(), c.Param("patientID")); err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusAccepted, map[string]string{"status": "alert sent"})
}

// mapError translates domain errors to HTTP status codes.
func mapError(err error) error {
	switch {
	case errors.Is(err, ErrInvalidReading):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, directory.ErrPatientNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrNoReadings):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrDuplicateReading):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrPanicCooldown):
		return echo.NewHTTPError(http.StatusTooManyRequests, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
