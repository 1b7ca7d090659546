package server

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/sifan077/linkpulse/internal/app/service"
	inthttp "github.com/sifan077/linkpulse/internal/http/handler"
	"github.com/sifan077/linkpulse/internal/http/middleware"
	infraPrometheus "github.com/sifan077/linkpulse/internal/infra/prometheus"
	"go.uber.org/zap"
)

const (
	readTimeout  = 10 * time.Second
	writeTimeout = 10 * time.Second
	idleTimeout  = 60 * time.Second
	bodyLimit    = 64 * 1024
)

// Dependencies bundles everything the HTTP server routes to.
type Dependencies struct {
	Logger    *zap.Logger
	Metrics   *infraPrometheus.Metrics
	Links     service.LinkService
	Resolver  inthttp.LinkResolver
	Analytics inthttp.Summarizer
	Clicks    service.ClickDispatcher
	Checks    map[string]inthttp.HealthCheck
	// ProxyHeader names the header carrying the client IP, e.g. X-Forwarded-For.
	ProxyHeader string
}

// Server wraps the Fiber application and its dependencies.
type Server struct {
	app  *fiber.App
	deps Dependencies
}

// New creates a new HTTP server instance with default routes.
func New(deps Dependencies) *Server {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	app := fiber.New(fiber.Config{
		AppName:               "linkpulse",
		ReadTimeout:           readTimeout,
		WriteTimeout:          writeTimeout,
		IdleTimeout:           idleTimeout,
		BodyLimit:             bodyLimit,
		ProxyHeader:           deps.ProxyHeader,
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler(deps.Logger),
	})

	s := &Server{
		app:  app,
		deps: deps,
	}

	s.registerMiddleware()
	s.registerRoutes()
	return s
}

// App exposes the Fiber application, mainly for app.Test in tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen starts the Fiber server on the given address.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the Fiber server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) registerMiddleware() {
	s.app.Use(
		middleware.RequestID(),
		middleware.Recovery(s.deps.Logger),
		middleware.Logger(s.deps.Logger.Named("http")),
		middleware.Metrics(s.deps.Metrics),
		middleware.CORS(),
	)
}

func (s *Server) registerRoutes() {
	apiHandler := inthttp.NewAPIHandler(inthttp.APIDeps{
		Logger:      s.deps.Logger.Named("api"),
		LinkService: s.deps.Links,
		Analytics:   s.deps.Analytics,
	})
	apiHandler.Register(s.app)

	redirectHandler := inthttp.NewRedirectHandler(inthttp.RedirectDeps{
		Logger:   s.deps.Logger.Named("redirect"),
		Resolver: s.deps.Resolver,
		Clicks:   s.deps.Clicks,
		Checks:   s.deps.Checks,
	})
	redirectHandler.Register(s.app)
}

func errorHandler(logger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
		}
		if code >= fiber.StatusInternalServerError {
			logger.Error("unhandled request error", zap.String("path", c.Path()), zap.Error(err))
		}
		message := "internal server error"
		if fe != nil {
			message = fe.Message
		}
		return c.Status(code).JSON(fiber.Map{"error": message, "code": statusCode(code)})
	}
}

// statusCode turns 404 into "NOT_FOUND", 405 into "METHOD_NOT_ALLOWED" and so on.
func statusCode(code int) string {
	return strings.ToUpper(strings.ReplaceAll(utils.StatusMessage(code), " ", "_"))
}
