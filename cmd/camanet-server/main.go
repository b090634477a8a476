package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/camanet/camanet/internal/config"
	"github.com/camanet/camanet/internal/domain/assign"
	"github.com/camanet/camanet/internal/domain/compat"
	"github.com/camanet/camanet/internal/domain/patient"
	"github.com/camanet/camanet/internal/domain/priority"
	"github.com/camanet/camanet/internal/domain/registry"
	"github.com/camanet/camanet/internal/domain/transition"
	"github.com/camanet/camanet/internal/domain/waitlist"
	"github.com/camanet/camanet/internal/platform/db"
	"github.com/camanet/camanet/internal/platform/middleware"
	"github.com/camanet/camanet/internal/platform/sweep"
	"github.com/camanet/camanet/internal/platform/websocket"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "camanet-server",
		Short: "Hospital bed management server",
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	var migrationsDir string

	migrateUpCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(migrationsDir, func(ctx context.Context, m *db.Migrator) error {
				n, err := m.Up(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("applied %d migration(s)\n", n)
				return nil
			})
		},
	}

	migrateStatusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(migrationsDir, func(ctx context.Context, m *db.Migrator) error {
				statuses, err := m.Status(ctx)
				if err != nil {
					return err
				}
				for _, s := range statuses {
					state := "pending"
					if s.Applied {
						state = "applied"
					}
					fmt.Printf("%04d  %-40s  %s\n", s.Version, s.Name, state)
				}
				return nil
			})
		},
	}

	migrateCmd.PersistentFlags().StringVar(&migrationsDir, "dir", "migrations", "migrations directory")
	migrateCmd.AddCommand(migrateUpCmd, migrateStatusCmd)
	rootCmd.AddCommand(serveCmd, migrateCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runMigrate(dir string, fn func(context.Context, *db.Migrator) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	return fn(ctx, db.NewMigrator(pool, dir))
}

func runServer() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" || os.Getenv("ENV") == "" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	tuning, err := config.LoadTuning(cfg.TuningFile)
	if err != nil {
		return fmt.Errorf("load tuning: %w", err)
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	logger.Info().Msg("database pool established")

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, "X-Request-ID"},
	}))

	// Repositories
	hospitals := registry.NewHospitalRepoPG(pool)
	wards := registry.NewWardRepoPG(pool)
	rooms := registry.NewRoomRepoPG(pool)
	beds := registry.NewBedRepoPG(pool)
	patients := patient.NewRepoPG(pool)

	// Domain engines
	checker, err := compat.NewChecker(tuning.Compatibility)
	if err != nil {
		return fmt.Errorf("build compatibility checker: %w", err)
	}
	engine, err := priority.NewEngine(tuning.Priority)
	if err != nil {
		return fmt.Errorf("build priority engine: %w", err)
	}

	// Services
	registrySvc := registry.NewService(hospitals, wards, rooms, beds)
	queues := waitlist.NewRegistry(patients, engine, logger)
	patientSvc := patient.NewService(patients, engine, tuning.Oxygen.KeywordTiers, queues)

	hub := websocket.NewHub()

	transitionSvc := transition.NewService(pool, beds, registrySvc, patients, checker, engine, queues, hub, tuning, logger)
	patientSvc.SetReevaluator(transitionSvc)

	assignSvc := assign.NewService(beds, hospitals, patients, checker, engine, queues, transitionSvc, logger)

	// Waiting lists are kept in memory and rebuilt from persisted
	// patient state on startup.
	if err := queues.Rebuild(ctx); err != nil {
		return fmt.Errorf("rebuild waiting lists: %w", err)
	}
	logger.Info().Msg("waiting lists rebuilt")

	// Routes
	api := e.Group("/api/v1")
	registry.NewHandler(registrySvc).RegisterRoutes(api)
	patient.NewHandler(patientSvc).RegisterRoutes(api)
	transition.NewHandler(transitionSvc).RegisterRoutes(api)
	assign.NewHandler(assignSvc).RegisterRoutes(api)
	websocket.NewHandler(hub).RegisterRoutes(api)

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))

	// Background sweep: elapsed cleaning timers, oxygen pauses and,
	// unless manual assignment is configured, automatic bed matching.
	runner := sweep.NewRunner(beds, hospitals, transitionSvc, assignSvc, tuning,
		time.Duration(cfg.SweepIntervalSecs)*time.Second, cfg.ManualAssignment, logger)
	runner.Start()
	defer runner.Stop()

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
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
