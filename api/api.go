package api

import (
	"errors"
	"log/slog"
	"net"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"

	"github.com/papercomputeco/courier/pkg/cas"
	"github.com/papercomputeco/courier/pkg/storage"
)

// Server is the courier HTTP API server.
type Server struct {
	config   Config
	driver   storage.Driver
	pictures *cas.Store
	uploads  *uploadLimiter
	logger   *slog.Logger
	app      *fiber.App
}

// NewServer creates a new API server.
// The driver and picture store are injected so the same backend can be
// shared with other components such as the ingest command.
func NewServer(config Config, driver storage.Driver, pictures *cas.Store, logger *slog.Logger) (*Server, error) {
	if driver == nil {
		return nil, errors.New("api server requires a storage driver")
	}
	if pictures == nil {
		return nil, errors.New("api server requires a picture store")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	config.applyDefaults()

	s := &Server{
		config:   config,
		driver:   driver,
		pictures: pictures,
		uploads:  newUploadLimiter(config.UploadRate, config.UploadBurst),
		logger:   logger,
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,

		// Parsed bodies and params outlive the request in the in-memory driver.
		Immutable:    true,
		BodyLimit:    config.BodyLimit,
		ErrorHandler: s.handleError,
	})
	app.Use(compress.New())
	app.Use(s.authenticate)

	app.Get("/ping", s.handlePing)
	app.Get("/hello", s.handleHello)

	app.Post("/register", s.handleRegister)
	app.Post("/login", s.handleLogin)
	app.Post("/logout", s.requireUser, s.handleLogout)

	users := app.Group("/users", s.requireUser)
	users.Get("/me", s.handleMe)
	users.Get("/suggest/:query", s.handleSuggest)
	users.Get("/:username", s.handleGetUser)

	dialogues := app.Group("/dialogues", s.requireUser)
	dialogues.Get("/", s.handleListDialogues)
	dialogues.Post("/", s.handleCreateDialogue)
	dialogues.Get("/:id/messages", s.handleListMessages)
	dialogues.Post("/:id/messages", s.limitUploads, s.handleSendMessage)

	app.Get("/pictures/:id", s.handleGetPicture)

	s.app = app
	return s, nil
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		"listen", s.config.ListenAddr,
	)
	return s.app.Listen(s.config.ListenAddr)
}

// RunWithListener starts the API server using the provided listener.
func (s *Server) RunWithListener(listener net.Listener) error {
	s.logger.Info("starting API server",
		"listen", listener.Addr().String(),
	)
	return s.app.Listener(listener)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
