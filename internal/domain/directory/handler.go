package directory

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Handler exposes the registry over HTTP so the scheduling and vitals APIs
// have identities to operate against.
type Handler struct {
	registry *Registry
}

// NewHandler creates a Handler.
func NewHandler(r *Registry) *Handler {
	return &Handler{registry: r}
}

// RegisterRoutes registers directory routes on the given Echo group.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/patients", h.CreatePatient)
	g.GET("/patients/:patientID", h.GetPatient)
	g.GET("/patients", h.ListPatients)
	g.POST("/doctors", h.CreateDoctor)
	g.GET("/doctors/:doctorID", h.GetDoctor)
	g.GET("/doctors", h.ListDoctors)
	g.PUT("/patients/:patientID/primary-doctor/:doctorID", h.AssignPrimaryDoctor)
}

// CreatePatient handles POST /patients.
func (h *Handler) CreatePatient(c echo.Context) error {
	var p Patient
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.registry.AddPatient(p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, p)
}

// GetPatient handles GET /patients/:patientID.
func (h *Handler) GetPatient(c echo.Context) error {
	p, err := h.registry.PatientByID(c.Param("patientID"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.JSON(http.StatusOK, p)
}

// ListPatients handles GET /patients.
func (h *Handler) ListPatients(c echo.Context) error {
	return c.JSON(http.StatusOK, h.registry.ListPatients())
}

// CreateDoctor handles POST /doctors.
func (h *Handler) CreateDoctor(c echo.Context) error {
	var d Doctor
	if err := c.Bind(&d); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.registry.AddDoctor(d); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, d)
}

// GetDoctor handles GET /doctors/:doctorID.
func (h *Handler) GetDoctor(c echo.Context) error {
	d, err := h.registry.DoctorByID(c.Param("doctorID"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.JSON(http.StatusOK, d)
}

// ListDoctors handles GET /doctors.
func (h *Handler) ListDoctors(c echo.Context) error {
	return c.JSON(http.StatusOK, h.registry.ListDoctors())
}

// AssignPrimaryDoctor handles PUT /patients/:patientID/primary-doctor/:doctorID.
func (h *Handler) AssignPrimaryDoctor(c echo.Context) error {
	err := h.registry.AssignPrimaryDoctor(c.Param("patientID"), c.Param("doctorID"))
	if err != nil {
		if errors.Is(err, ErrPatientNotFound) || errors.Is(err, ErrDoctorNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	p, err := h.registry.PatientByID(c.Param("patientID"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, p)
}
