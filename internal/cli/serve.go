package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	fiberzap "github.com/gofiber/contrib/v3/zap"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ferreiramx/smart-events/internal/config"
	"github.com/ferreiramx/smart-events/internal/database"
	"github.com/ferreiramx/smart-events/internal/geocode"
	"github.com/ferreiramx/smart-events/internal/handlers"
	"github.com/ferreiramx/smart-events/internal/logging"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard server",
	Long: `Start the HTTP server that renders the dashboard and exposes the
section API under /api/events/:event_id.

Examples:
  smart-events serve
  SMARTEVENTS_LISTEN_ADDR=:8080 smart-events serve`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer func() { _ = db.Close() }()

	app := newApp()
	handlers.New(db, geocode.NewClient(cfg.GeocoderBaseURL), cfg).Register(app)

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(cfg.ListenAddr)
	}()
	logging.L().Info("server started",
		zap.String("addr", cfg.ListenAddr),
		zap.Int64("event_id", cfg.EventID))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logging.L().Info("shutting down", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(ctx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	_ = logging.Sync()
	return nil
}

// newApp assembles the fiber app with the shared middleware chain.
func newApp() *fiber.App {
	fiberCfg := createFiberConfig("smart-events")
	fiberCfg.Views = handlers.ViewEngine()
	app := fiber.New(fiberCfg)

	app.Use(requestID())
	app.Use(fiberzap.New(fiberzap.Config{
		Logger: logging.L(),
	}))
	return app
}

// requestID tags every request so log lines across one render can be
// correlated.
func requestID() fiber.Handler {
	return func(c fiber.Ctx) error {
		id := c.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("X-Request-Id", id)
		return c.Next()
	}
}

func init() {
	RootCmd.AddCommand(serveCmd)
}
