package handler

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sifan077/linkpulse/internal/app/apperror"
	"github.com/sifan077/linkpulse/internal/app/model"
	"github.com/sifan077/linkpulse/internal/app/service"
	"github.com/sifan077/linkpulse/internal/http/middleware"
	"go.uber.org/zap"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Summarizer computes analytics for a link.
type Summarizer interface {
	Summarize(ctx context.Context, linkID string, opts service.SummaryOptions) (*service.Summary, error)
}

// APIDeps groups dependencies required by API handlers.
type APIDeps struct {
	Logger      *zap.Logger
	LinkService service.LinkService
	Analytics   Summarizer
}

// APIHandler implements the management API endpoints.
type APIHandler struct {
	logger      *zap.Logger
	linkService service.LinkService
	analytics   Summarizer
}

// NewAPIHandler creates an API handler with the provided dependencies.
func NewAPIHandler(deps APIDeps) *APIHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &APIHandler{
		logger:      logger,
		linkService: deps.LinkService,
		analytics:   deps.Analytics,
	}
}

// Register wires API routes onto the provided router.
func (h *APIHandler) Register(router fiber.Router) {
	api := router.Group("/api")
	{
		links := api.Group("/links", middleware.Owner())
		{
			links.Post("/", h.CreateLink)
			links.Get("/", h.ListLinks)
			links.Get("/:id", h.GetLink)
			links.Patch("/:id", h.UpdateLink)
			links.Delete("/:id", h.DeleteLink)
			links.Get("/:id/summary", h.Summary)
		}
	}
}

// CreateLinkRequest represents the request body for creating a link.
type CreateLinkRequest struct {
	OriginalURL string     `json:"original_url"`
	CustomSlug  string     `json:"custom_slug,omitempty"`
	Title       string     `json:"title,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

// LinkResponse is the public view of a link.
type LinkResponse struct {
	ID          string     `json:"id"`
	Slug        string     `json:"slug"`
	CustomSlug  *string    `json:"custom_slug,omitempty"`
	ShortURL    string     `json:"short_url"`
	OriginalURL string     `json:"original_url"`
	Title       string     `json:"title,omitempty"`
	IsActive    bool       `json:"is_active"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	ClickCount  int64      `json:"click_count"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func toLinkResponse(c *fiber.Ctx, link *model.Link) LinkResponse {
	return LinkResponse{
		ID:          link.ID,
		Slug:        link.Slug,
		CustomSlug:  link.CustomSlug,
		ShortURL:    c.BaseURL() + "/" + link.Slug,
		OriginalURL: link.OriginalURL,
		Title:       link.Title,
		IsActive:    link.IsActive,
		ExpiresAt:   link.ExpiresAt,
		ClickCount:  link.ClickCount,
		CreatedAt:   link.CreatedAt,
		UpdatedAt:   link.UpdatedAt,
	}
}

// CreateLink handles POST /api/links
func (h *APIHandler) CreateLink(c *fiber.Ctx) error {
	var req CreateLinkRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	link, err := h.linkService.CreateLink(c.UserContext(), service.CreateLinkInput{
		OwnerID:     middleware.OwnerID(c),
		OriginalURL: req.OriginalURL,
		CustomSlug:  req.CustomSlug,
		Title:       req.Title,
		ExpiresAt:   req.ExpiresAt,
	})
	if err != nil {
		h.logFailure("failed to create link", err)
		return writeError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(toLinkResponse(c, link))
}

// ListLinks handles GET /api/links
func (h *APIHandler) ListLinks(c *fiber.Ctx) error {
	limit := defaultPageSize
	offset := 0

	if c.Query("limit") != "" {
		if parsed := c.QueryInt("limit"); parsed > 0 && parsed <= maxPageSize {
			limit = parsed
		}
	}
	if c.Query("offset") != "" {
		if parsed := c.QueryInt("offset"); parsed >= 0 {
			offset = parsed
		}
	}

	links, err := h.linkService.ListLinks(c.UserContext(), middleware.OwnerID(c), limit, offset)
	if err != nil {
		h.logFailure("failed to list links", err)
		return writeError(c, err)
	}

	response := make([]LinkResponse, len(links))
	for i := range links {
		response[i] = toLinkResponse(c, &links[i])
	}

	return c.JSON(fiber.Map{
		"links":  response,
		"limit":  limit,
		"offset": offset,
		"count":  len(response),
	})
}

// GetLink handles GET /api/links/:id
func (h *APIHandler) GetLink(c *fiber.Ctx) error {
	id := c.Params("id")

	link, err := h.linkService.GetLink(c.UserContext(), middleware.OwnerID(c), id)
	if err != nil {
		h.logFailure("failed to get link", err, zap.String("link_id", id))
		return writeError(c, err)
	}

	return c.JSON(toLinkResponse(c, link))
}

// UpdateLinkRequest represents the request body for updating a link.
// Absent fields are left unchanged; an empty custom_slug removes the alias.
type UpdateLinkRequest struct {
	OriginalURL *string    `json:"original_url,omitempty"`
	Title       *string    `json:"title,omitempty"`
	Slug        *string    `json:"slug,omitempty"`
	CustomSlug  *string    `json:"custom_slug,omitempty"`
	IsActive    *bool      `json:"is_active,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	ClearExpiry bool       `json:"clear_expiry,omitempty"`
}

// UpdateLink handles PATCH /api/links/:id
func (h *APIHandler) UpdateLink(c *fiber.Ctx) error {
	id := c.Params("id")

	var req UpdateLinkRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	link, err := h.linkService.UpdateLink(c.UserContext(), middleware.OwnerID(c), id, service.UpdateLinkInput{
		URL:         req.OriginalURL,
		Title:       req.Title,
		Slug:        req.Slug,
		CustomSlug:  req.CustomSlug,
		Active:      req.IsActive,
		ExpiresAt:   req.ExpiresAt,
		ClearExpiry: req.ClearExpiry,
	})
	if err != nil {
		h.logFailure("failed to update link", err, zap.String("link_id", id))
		return writeError(c, err)
	}

	return c.JSON(toLinkResponse(c, link))
}

// DeleteLink handles DELETE /api/links/:id
func (h *APIHandler) DeleteLink(c *fiber.Ctx) error {
	id := c.Params("id")

	if err := h.linkService.DeleteLink(c.UserContext(), middleware.OwnerID(c), id); err != nil {
		h.logFailure("failed to delete link", err, zap.String("link_id", id))
		return writeError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Summary handles GET /api/links/:id/summary
func (h *APIHandler) Summary(c *fiber.Ctx) error {
	id := c.Params("id")

	opts, err := parseSummaryOptions(c)
	if err != nil {
		return writeError(c, err)
	}

	if _, err := h.linkService.GetLink(c.UserContext(), middleware.OwnerID(c), id); err != nil {
		h.logFailure("failed to load link for summary", err, zap.String("link_id", id))
		return writeError(c, err)
	}

	summary, err := h.analytics.Summarize(c.UserContext(), id, opts)
	if err != nil {
		h.logFailure("failed to summarize link", err, zap.String("link_id", id))
		return writeError(c, err)
	}
	return c.JSON(summary)
}

func parseSummaryOptions(c *fiber.Ctx) (service.SummaryOptions, error) {
	var opts service.SummaryOptions

	granularity, ok := service.ParseGranularity(c.Query("granularity"))
	if !ok {
		return opts, apperror.NewValidationError("granularity", "must be hour or day", apperror.ErrInvalidInput)
	}
	opts.Granularity = granularity

	for _, q := range []struct {
		name string
		dst  **time.Time
	}{{"from", &opts.From}, {"to", &opts.To}} {
		raw := c.Query(q.name)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return opts, apperror.NewValidationError(q.name, "must be an RFC 3339 timestamp", apperror.ErrInvalidInput)
		}
		*q.dst = &t
	}
	if opts.From != nil && opts.To != nil && !opts.From.Before(*opts.To) {
		return opts, apperror.NewValidationError("to", "must be after from", apperror.ErrInvalidInput)
	}

	if tz := c.Query("tz"); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return opts, apperror.NewValidationError("tz", "unknown time zone", apperror.ErrInvalidInput)
		}
		opts.Location = loc
	}
	return opts, nil
}

// logFailure logs server side failures; client errors are only traced at debug.
func (h *APIHandler) logFailure(msg string, err error, fields ...zap.Field) {
	fields = append(fields, zap.Error(err))
	status, _ := statusFor(err)
	switch {
	case errors.Is(err, apperror.ErrAllocationExhausted):
		h.logger.Warn(msg, fields...)
	case status >= fiber.StatusInternalServerError:
		h.logger.Error(msg, fields...)
	default:
		h.logger.Debug(msg, fields...)
	}
}
