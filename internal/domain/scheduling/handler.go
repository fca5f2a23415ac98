package scheduling

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/carebridge/carebridge/pkg/pagination"
)

// Handler exposes the appointment lifecycle over HTTP.
type Handler struct {
	engine *Engine
}

// NewHandler creates a Handler.
func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

// RegisterRoutes registers the appointment API routes on the given Echo group.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/appointments", h.Schedule)
	g.GET("/appointments/:id", h.Get)
	g.POST("/appointments/:id/confirm", h.Confirm)
	g.POST("/appointments/:id/cancel", h.Cancel)
	g.POST("/appointments/:id/reschedule", h.Reschedule)
	g.POST("/appointments/:id/start", h.Start)
	g.POST("/appointments/:id/complete", h.Complete)
	g.POST("/appointments/:id/no-show", h.MarkNoShow)
	g.GET("/doctors/:doctorID/schedule", h.DoctorSchedule)
	g.GET("/doctors/:doctorID/appointments/active", h.ActiveAppointments)
	g.GET("/doctors/:doctorID/appointments/pending", h.PendingAppointments)
	g.GET("/patients/:patientID/schedule", h.PatientSchedule)
}

// scheduleRequest is the JSON body for booking an appointment.
type scheduleRequest struct {
	PatientID       string `json:"patient_id"`
	DoctorID        string `json:"doctor_id"`
	StartTime       string `json:"start_time"`
	DurationMinutes int    `json:"duration_minutes"`
	Reason          string `json:"reason"`
	Location        string `json:"location"`
}

// Schedule handles POST /appointments.
func (h *Handler) Schedule(c echo.Context) error {
	var req scheduleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	start, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid start_time: must be RFC 3339")
	}

	appt, err := h.engine.Schedule(c.Request().Context(), req.PatientID, req.DoctorID,
		start, time.Duration(req.DurationMinutes)*time.Minute, req.Reason, req.Location)
	if err != nil {
		return mapError(err)
	}

	return c.JSON(http.StatusCreated, appt)
}

// Get handles GET /appointments/:id.
func (h *Handler) Get(c echo.Context) error {
	appt, err := h.engine.GetAppointment(c.Param("id"))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, appt)
}

// actorRequest is the JSON body for operations performed by the owning doctor.
type actorRequest struct {
	DoctorID string `json:"doctor_id"`
	Notes    string `json:"notes"`
}

// Confirm handles POST /appointments/:id/confirm.
func (h *Handler) Confirm(c echo.Context) error {
	var req actorRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.DoctorID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "doctor_id is required")
	}

	appt, err := h.engine.Confirm(c.Request().Context(), req.DoctorID, c.Param("id"))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, appt)
}

// cancelRequest is the JSON body for the cancel endpoint. Exactly one of
// doctor_id or patient_id identifies the caller.
type cancelRequest struct {
	DoctorID  string `json:"doctor_id"`
	PatientID string `json:"patient_id"`
	Reason    string `json:"reason"`
}

// Cancel handles POST /appointments/:id/cancel.
func (h *Handler) Cancel(c echo.Context) error {
	var req cancelRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	var (
		appt Appointment
		err  error
	)
	switch {
	case req.DoctorID != "" && req.PatientID != "":
		return echo.NewHTTPError(http.StatusBadRequest, "provide doctor_id or patient_id, not both")
	case req.DoctorID != "":
		appt, err = h.engine.CancelByDoctor(c.Request().Context(), req.DoctorID, c.Param("id"), req.Reason)
	case req.PatientID != "":
		appt, err = h.engine.CancelByPatient(c.Request().Context(), req.PatientID, c.Param("id"), req.Reason)
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "doctor_id or patient_id is required")
	}
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, appt)
}

// rescheduleRequest is the JSON body for the reschedule endpoint.
type rescheduleRequest struct {
	StartTime       string `json:"start_time"`
	DurationMinutes int    `json:"duration_minutes"`
	RequestedBy     string `json:"requested_by"`
}

// Reschedule handles POST /appointments/:id/reschedule.
func (h *Handler) Reschedule(c echo.Context) error {
	var req rescheduleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	start, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid start_time: must be RFC 3339")
	}
	requestedBy := req.RequestedBy
	if requestedBy == "" {
		requestedBy = "staff"
	}

	appt, err := h.engine.Reschedule(c.Request().Context(), c.Param("id"),
		start, time.Duration(req.DurationMinutes)*time.Minute, requestedBy)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, appt)
}

// Start handles POST /appointments/:id/start.
func (h *Handler) Start(c echo.Context) error {
	var req actorRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.DoctorID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "doctor_id is required")
	}

	appt, err := h.engine.Start(c.Request().Context(), req.DoctorID, c.Param("id"))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, appt)
}

// Complete handles POST /appointments/:id/complete.
func (h *Handler) Complete(c echo.Context) error {
	var req actorRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.DoctorID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "doctor_id is required")
	}

	appt, err := h.engine.Complete(c.Request().Context(), req.DoctorID, c.Param("id"), req.Notes)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, appt)
}

// MarkNoShow handles POST /appointments/:id/no-show.
func (h *Handler) MarkNoShow(c echo.Context) error {
	var req actorRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.DoctorID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "doctor_id is required")
	}

	appt, err := h.engine.MarkNoShow(c.Request().Context(), req.DoctorID, c.Param("id"))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, appt)
}

// DoctorSchedule handles GET /doctors/:doctorID/schedule.
func (h *Handler) DoctorSchedule(c echo.Context) error {
	date, err := parseDateParam(c)
	if err != nil {
		return err
	}
	return paginated(c, h.engine.DoctorSchedule(c.Param("doctorID"), date))
}

// PatientSchedule handles GET /patients/:patientID/schedule.
func (h *Handler) PatientSchedule(c echo.Context) error {
	date, err := parseDateParam(c)
	if err != nil {
		return err
	}
	return paginated(c, h.engine.PatientSchedule(c.Param("patientID"), date))
}

// ActiveAppointments handles GET /doctors/:doctorID/appointments/active.
func (h *Handler) ActiveAppointments(c echo.Context) error {
	return paginated(c, h.engine.ActiveAppointments(c.Param("doctorID")))
}

// PendingAppointments handles GET /doctors/:doctorID/appointments/pending.
func (h *Handler) PendingAppointments(c echo.Context) error {
	return paginated(c, h.engine.PendingAppointments(c.Param("doctorID")))
}

func parseDateParam(c echo.Context) (time.Time, error) {
	dateStr := c.QueryParam("date")
	if dateStr == "" {
		return time.Time{}, echo.NewHTTPError(http.StatusBadRequest, "date query parameter is required")
	}
	date, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		return time.Time{}, echo.NewHTTPError(http.StatusBadRequest, "invalid date format: use YYYY-MM-DD")
	}
	return date, nil
}

func paginated(c echo.Context, appts []Appointment) error {
	p := pagination.FromContext(c)
	start, end := p.Slice(len(appts))
	return c.JSON(http.StatusOK, pagination.NewResponse(appts[start:end], len(appts), p.Limit, p.Offset))
}

// mapError translates domain errors to HTTP status codes.
func mapError(err error) error {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrNotOwner):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalidState):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
