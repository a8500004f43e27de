// Package httpapi is the REST surface of the matching engine: registration,
// comparison, record listing and deletion, plus health and metrics routes.
package httpapi

import (
	"crypto/subtle"
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hupe1980/biomatch"
	"github.com/hupe1980/biomatch/internal/telemetry"
)

// Options configures the HTTP server.
type Options struct {
	// APIKey protects the /api routes when non-empty. Clients send it in
	// the X-API-Key header. Health and metrics routes stay open.
	APIKey string
	// LogJSON switches the request log to JSON output.
	LogJSON bool
}

// Server wraps the Fiber application.
type Server struct {
	app *fiber.App
}

// NewServer builds the Fiber application and wires all routes.
func NewServer(engine *biomatch.Engine, opts Options) *Server {
	app := fiber.New(fiber.Config{
		AppName:               "biomatchd",
		DisableStartupMessage: true,
		BodyLimit:             16 << 20, // raw image uploads
	})

	app.Use(recover.New())

	logFormat := logger.ConfigDefault.Format
	if opts.LogJSON {
		logFormat = `{"time":"${time}","status":${status},"latency":"${latency}","method":"${method}","path":"${path}"}` + "\n"
	}
	app.Use(logger.New(logger.Config{Format: logFormat}))

	app.Use(instrument)

	handler := NewHandler(engine)

	app.Get("/healthz", handler.Health)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api/v1", apiKeyAuth(opts.APIKey))

	bio := api.Group("/biometric")
	bio.Post("/register", handler.Register)
	bio.Post("/compare", handler.Compare)
	bio.Get("/", handler.List)
	bio.Get("/:id", handler.Get)
	bio.Delete("/:id", handler.Delete)

	return &Server{app: app}
}

// App exposes the underlying Fiber application for testing.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves on addr until Shutdown.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// apiKeyAuth rejects /api requests without the configured X-API-Key header.
func apiKeyAuth(key string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if key == "" {
			return c.Next()
		}

		got := c.Get("X-API-Key")
		if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
			return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{Error: "invalid or missing api key"})
		}

		return c.Next()
	}
}

// instrument records per-route request counts and latency.
func instrument(c *fiber.Ctx) error {
	start := time.Now()

	err := c.Next()

	route := c.Route().Path
	telemetry.HTTPRequests.WithLabelValues(route, statusLabel(c, err)).Inc()
	telemetry.HTTPDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())

	return err
}

func statusLabel(c *fiber.Ctx, err error) string {
	code := c.Response().StatusCode()
	if err != nil {
		code = fiber.StatusInternalServerError
		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
		}
	}

	return strconv.Itoa(code)
}
