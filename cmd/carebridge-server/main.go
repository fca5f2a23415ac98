package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/carebridge/carebridge/internal/config"
	"github.com/carebridge/carebridge/internal/domain/directory"
	"github.com/carebridge/carebridge/internal/domain/scheduling"
	"github.com/carebridge/carebridge/internal/domain/vitals"
	"github.com/carebridge/carebridge/internal/platform/clock"
	"github.com/carebridge/carebridge/internal/platform/middleware"
	"github.com/carebridge/carebridge/internal/platform/notification"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "carebridge-server",
		Short: "Appointment scheduling and patient vitals API server",
	}

	rootCmd.AddCommand(serveCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	var seedDemo bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(seedDemo)
		},
	}
	cmd.Flags().BoolVar(&seedDemo, "seed-demo", false, "load demo patients and doctors on startup")
	return cmd
}

func runServer(seedDemo bool) error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	clk := clock.System()

	// Directory
	registry := directory.NewRegistry()
	if seedDemo {
		if err := seedDemoData(registry); err != nil {
			logger.Fatal().Err(err).Msg("failed to seed demo data")
		}
		logger.Info().Msg("demo patients and doctors loaded")
	}

	// Notification stack. The log senders stand in for real Email/SMS
	// providers; swap them out here when a provider is wired up.
	templates := notification.NewTemplateEngine()
	manager := notification.NewManager(
		notification.LogEmailSender{Logger: logger},
		notification.LogSMSSender{Logger: logger},
		templates,
	)
	notifier := notification.NewClinicalNotifier(manager, logger)

	// Scheduling core
	apptStore := scheduling.NewStore()
	reminders := scheduling.NewReminderScheduler(notifier, registry, clk,
		cfg.ReminderFirstOffset, cfg.ReminderSecondOffset, logger)
	engine := scheduling.NewEngine(apptStore, reminders, clk, logger)

	// Vitals core
	dispatcher := vitals.NewAlertDispatcher(notifier, clk, cfg.AlertCooldown, logger)
	vitalsStore := vitals.NewStore(cfg.VitalsMaxEntries, dispatcher, registry, clk, logger)
	panicButton := vitals.NewPanicButton(registry, notifier, clk, cfg.PanicCooldown, logger)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.SanitizeWithLogger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))

	// API group
	apiV1 := e.Group("/api/v1")

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})

	// Route registration
	directory.NewHandler(registry).RegisterRoutes(apiV1)
	scheduling.NewHandler(engine).RegisterRoutes(apiV1)
	vitals.NewHandler(vitalsStore, panicButton, clk).RegisterRoutes(apiV1)
	notification.NewHandler(manager).RegisterRoutes(apiV1)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}

	// Unfired reminders die with the process; they are rebuilt from upcoming
	// appointments on the next boot in a persistent deployment.
	reminders.Stop()

	logger.Info().Msg("server stopped")
	return nil
}

// seedDemoData loads a small roster so the API is usable immediately after
// boot with an empty in-memory store.
func seedDemoData(r *directory.Registry) error {
	doctors := []directory.Doctor{
		{
			ID: "DOC-1", FirstName: "Greta", LastName: "Shaw", Specialty: "Cardiology",
			Contact: directory.ContactInfo{Email: "gshaw@carebridge.test", Phone: "+1-555-0101"},
		},
		{
			ID: "DOC-2", FirstName: "Omar", LastName: "Haddad", Specialty: "Internal Medicine",
			Contact: directory.ContactInfo{Email: "ohaddad@carebridge.test", Phone: "+1-555-0102"},
		},
	}
	patients := []directory.Patient{
		{
			ID: "PAT-1", FirstName: "Ada", LastName: "Boone",
			Contact:         directory.ContactInfo{Email: "ada.boone@example.com", Phone: "+1-555-0201"},
			Emergency:       directory.EmergencyContact{Name: "Rosa Boone", Email: "rosa.boone@example.com", Phone: "+1-555-0202"},
			CurrentLocation: "Ward 3, Room 12",
		},
		{
			ID: "PAT-2", FirstName: "Ben", LastName: "Okafor",
			Contact:   directory.ContactInfo{Email: "ben.okafor@example.com", Phone: "+1-555-0203"},
			Emergency: directory.EmergencyContact{Name: "Chi Okafor", Phone: "+1-555-0204"},
		},
	}

	for _, d := range doctors {
		if err := r.AddDoctor(d); err != nil {
			return err
		}
	}
	for _, p := range patients {
		if err := r.AddPatient(p); err != nil {
			return err
		}
	}
	return r.AssignPrimaryDoctor("PAT-1", "DOC-1")
}
