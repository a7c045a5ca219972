package api

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/streamrelay/streamrelay/pkg/kv"
	"github.com/streamrelay/streamrelay/pkg/quota"
)

// Server is the quota service.
type Server struct {
	config Config
	driver kv.Driver
	logger *slog.Logger
	app    *fiber.App
}

// NewServer creates a new quota service.
// The driver is injected so the relay can share it when both run in one
// process.
func NewServer(config Config, driver kv.Driver, logger *slog.Logger) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	app.Use(recover.New())

	s := &Server{
		config: config,
		driver: driver,
		logger: logger,
		app:    app,
	}

	app.Get("/ping", s.handlePing)

	q := app.Group("/quota", s.requireCredential)
	q.Get("/:token", s.handleGet)
	q.Post("/:token", s.handleSet)
	q.Post("/:token/decr", s.handleDecr)

	return s
}

// Run starts the quota service on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting quota service",
		"listen", s.config.ListenAddr,
		"auth", s.config.Credential != "",
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the quota service.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// Handler returns the service as a net/http handler, for mounting under
// another server or serving from httptest.
func (s *Server) Handler() http.Handler {
	return adaptor.FiberApp(s.app)
}

// App exposes the underlying fiber app, mainly for app.Test in tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// requireCredential rejects requests without the configured bearer token.
func (s *Server) requireCredential(c *fiber.Ctx) error {
	if s.config.Credential == "" {
		return c.Next()
	}

	got, ok := strings.CutPrefix(c.Get(fiber.HeaderAuthorization), "Bearer ")
	if !ok || subtle.ConstantTimeCompare([]byte(strings.TrimSpace(got)), []byte(s.config.Credential)) != 1 {
		return c.Status(fiber.StatusUnauthorized).JSON(quota.Failure("unauthorized"))
	}
	return c.Next()
}
