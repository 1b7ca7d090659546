package handler

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/google/uuid"
	"github.com/sifan077/linkpulse/internal/app/apperror"
	"github.com/sifan077/linkpulse/internal/app/service"
	"github.com/sifan077/linkpulse/internal/http/view"
	"go.uber.org/zap"
)

const readyTimeout = 2 * time.Second

// Geo headers set by the edge proxy in front of the service.
var (
	countryHeaders = []string{"CF-IPCountry", "X-Country"}
	cityHeaders    = []string{"CF-IPCity", "X-City"}
)

// LinkResolver resolves slugs to redirect targets.
type LinkResolver interface {
	Resolve(ctx context.Context, slug string) (*service.Resolution, error)
}

// HealthCheck reports whether a backing service is reachable.
type HealthCheck func(ctx context.Context) error

// RedirectDeps groups dependencies required by redirect handlers.
type RedirectDeps struct {
	Logger   *zap.Logger
	Resolver LinkResolver
	Clicks   service.ClickDispatcher
	Checks   map[string]HealthCheck
}

// RedirectHandler serves short links and health endpoints.
type RedirectHandler struct {
	logger   *zap.Logger
	resolver LinkResolver
	clicks   service.ClickDispatcher
	checks   map[string]HealthCheck
}

// NewRedirectHandler creates a redirect handler with the provided dependencies.
func NewRedirectHandler(deps RedirectDeps) *RedirectHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedirectHandler{
		logger:   logger,
		resolver: deps.Resolver,
		clicks:   deps.Clicks,
		checks:   deps.Checks,
	}
}

// Register wires redirect routes onto the provided router. It must be
// registered after the API so /:slug does not shadow other routes.
func (h *RedirectHandler) Register(router fiber.Router) {
	router.Get("/", h.Health)
	router.Get("/health", h.Health)
	router.Get("/health/ready", h.Ready)
	router.Get("/api/resolve/:slug", h.Lookup)
	router.Get("/:slug", h.Redirect)
}

// Health is a simple root endpoint so we know the service is running.
func (h *RedirectHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"service": "linkpulse",
		"status":  "ok",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// Ready pings every configured backend.
func (h *RedirectHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), readyTimeout)
	defer cancel()

	status := fiber.StatusOK
	results := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			h.logger.Warn("readiness check failed", zap.String("check", name), zap.Error(err))
			results[name] = err.Error()
			status = fiber.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}

	state := "ready"
	if status != fiber.StatusOK {
		state = "degraded"
	}
	return c.Status(status).JSON(fiber.Map{"status": state, "checks": results})
}

// Redirect handles GET /:slug. The click is handed to the dispatcher and the
// client is redirected without waiting for it to be stored.
func (h *RedirectHandler) Redirect(c *fiber.Ctx) error {
	slug := c.Params("slug")

	res, err := h.resolver.Resolve(c.UserContext(), slug)
	if err != nil {
		return h.renderStatus(c, slug, err)
	}

	if h.clicks != nil {
		h.clicks.Dispatch(res.LinkID, clientContext(c))
	}

	h.logger.Debug("redirecting short link", zap.String("slug", res.Slug), zap.String("target", res.TargetURL))
	c.Set(fiber.HeaderCacheControl, "private, max-age=0")
	return c.Redirect(res.TargetURL, fiber.StatusFound)
}

// Lookup handles GET /api/resolve/:slug without redirecting or recording a click.
func (h *RedirectHandler) Lookup(c *fiber.Ctx) error {
	res, err := h.resolver.Resolve(c.UserContext(), c.Params("slug"))
	if err != nil {
		if status, _ := statusFor(err); status == fiber.StatusInternalServerError {
			h.logger.Error("failed to resolve link", zap.String("slug", c.Params("slug")), zap.Error(err))
		}
		return writeError(c, err)
	}
	return c.JSON(res)
}

func (h *RedirectHandler) renderStatus(c *fiber.Ctx, slug string, err error) error {
	status, body := statusFor(err)
	if status == fiber.StatusInternalServerError {
		h.logger.Error("failed to resolve link", zap.String("slug", slug), zap.Error(err))
	}

	data := view.StatusPageData{Status: status}
	switch {
	case errors.Is(err, apperror.ErrLinkDisabled):
		data.Heading = "This link has been disabled"
		data.Message = "The owner turned this short link off. It will not redirect."
	case errors.Is(err, apperror.ErrLinkExpired):
		data.Heading = "This link has expired"
		data.Message = "The short link reached its expiry date and no longer redirects."
	case errors.Is(err, apperror.ErrLinkNotFound):
		data.Heading = "Link not found"
		data.Message = "No short link exists at this address."
	default:
		data.Heading = "Something went wrong"
		data.Message = "The link could not be resolved right now. Please retry shortly."
	}

	var resErr *apperror.ResolutionError
	if errors.As(err, &resErr) && resErr.Link != nil {
		data.Slug = resErr.Link.Slug
		data.Title = resErr.Link.Title
		data.TargetURL = resErr.Link.OriginalURL
		if errors.Is(err, apperror.ErrLinkExpired) {
			data.ExpiresAt = resErr.Link.ExpiresAt
		}
	}

	if c.Accepts(fiber.MIMETextHTML, fiber.MIMEApplicationJSON) == fiber.MIMEApplicationJSON {
		payload := fiber.Map{"error": body.Error, "code": body.Code}
		if data.Slug != "" {
			payload["link"] = fiber.Map{
				"slug":       data.Slug,
				"title":      data.Title,
				"target_url": data.TargetURL,
				"expires_at": data.ExpiresAt,
			}
		}
		return c.Status(status).JSON(payload)
	}

	html, renderErr := view.RenderStatusPage(data)
	if renderErr != nil {
		h.logger.Error("failed to render status page", zap.Error(renderErr))
		return c.Status(status).JSON(body)
	}
	return c.Status(status).Type("html", "utf-8").SendString(html)
}

// clientContext copies everything the recorder needs out of the request.
// Fiber reuses request buffers once the handler returns.
func clientContext(c *fiber.Ctx) service.ClientContext {
	return service.ClientContext{
		EventID:    uuid.NewString(),
		IP:         utils.CopyString(c.IP()),
		UserAgent:  utils.CopyString(c.Get(fiber.HeaderUserAgent)),
		Referrer:   utils.CopyString(c.Get(fiber.HeaderReferer)),
		Country:    utils.CopyString(firstHeader(c, countryHeaders)),
		City:       utils.CopyString(firstHeader(c, cityHeaders)),
		OccurredAt: time.Now().UTC(),
	}
}

func firstHeader(c *fiber.Ctx, names []string) string {
	for _, name := range names {
		if v := strings.TrimSpace(c.Get(name)); v != "" {
			return v
		}
	}
	return ""
}
