// Package api exposes the intake service over HTTP and WebSocket.
package api

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/ironsheep/inverif/internal/intake"
	"github.com/ironsheep/inverif/internal/logger"
	"github.com/ironsheep/inverif/internal/ocr"
)

// Options configures the HTTP server.
type Options struct {
	Port           string
	AllowOrigins   string
	MaxUploadBytes int64
	Version        string
}

// Server wraps the fiber application.
type Server struct {
	app    *fiber.App
	opts   Options
	log    logger.Logger
	cancel context.CancelFunc
}

// New builds the application and registers every route. engineInfo may be
// nil when no OCR engine status is available.
func New(svc *intake.Service, engineInfo func() ocr.Info, log logger.Logger, opts Options) *Server {
	if log == nil {
		log = logger.NewNop()
	}
	if opts.AllowOrigins == "" {
		opts.AllowOrigins = "*"
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = svc.Options().MaxUploadBytes
	}

	app := fiber.New(fiber.Config{
		AppName:               "inverif",
		BodyLimit:             int(opts.MaxUploadBytes) + 1<<20,
		ErrorHandler:          ErrorHandler(log),
		DisableStartupMessage: true,
		// handlers hand route params to background checks
		Immutable: true,
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: opts.AllowOrigins,
		AllowHeaders: "Origin, Content-Type, Accept",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))

	ctx, cancel := context.WithCancel(context.Background())
	registerRoutes(ctx, app, svc, engineInfo, log, opts)

	return &Server{app: app, opts: opts, log: log, cancel: cancel}
}

func registerRoutes(ctx context.Context, app *fiber.App, svc *intake.Service, engineInfo func() ocr.Info, log logger.Logger, opts Options) {
	newHealthController(engineInfo, opts.Version).RegisterRoutes(app)

	v1 := app.Group("/api/v1")
	newCatalogController().RegisterRoutes(v1)
	newFormController(ctx, svc, opts.MaxUploadBytes).RegisterRoutes(v1)

	newEventController(svc, log).RegisterRoutes(app)
}

func (s *Server) App() *fiber.App {
	return s.app
}

// Run listens until the server is shut down.
func (s *Server) Run() error {
	s.log.Info("api", "server listening", map[string]interface{}{"port": s.opts.Port})
	return s.app.Listen(":" + s.opts.Port)
}

// Shutdown aborts in-flight submissions and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()
	deadline, ok := ctx.Deadline()
	if !ok {
		return s.app.Shutdown()
	}
	return s.app.ShutdownWithTimeout(time.Until(deadline))
}
