package http

import (
	"context"
	"log/slog"

	"cv-generator/internal/adapter/notify"
	"cv-generator/internal/domain"
	"cv-generator/internal/usecase"

	"github.com/gofiber/fiber/v2"
)

// Service is the orchestrator surface exposed over HTTP.
type Service interface {
	Initiate(ctx context.Context, req usecase.InitiateRequest) (*usecase.InitiateResult, error)
	Generate(ctx context.Context, req usecase.InitiateRequest) (*usecase.GenerateResult, error)
	Status(ctx context.Context, jobID, userID string) (*usecase.StatusView, error)
	Retry(ctx context.Context, jobID, userID string) (*usecase.InitiateResult, error)
	Cancel(ctx context.Context, jobID, userID string) (*domain.Job, error)
}

type Subscriber interface {
	Subscribe(ctx context.Context, jobID string) (<-chan notify.Event, error)
}

type FileOpener interface {
	Open(ctx context.Context, path string) ([]byte, string, error)
}

type TokenVerifier interface {
	Verify(token string) (string, error)
}

type Handler struct {
	svc       Service
	events    Subscriber
	files     FileOpener
	verifier  TokenVerifier
	jwtSecret []byte
	logger    *slog.Logger
}

type HandlerDeps struct {
	Service   Service
	Events    Subscriber
	Files     FileOpener
	Verifier  TokenVerifier
	JWTSecret string
	Logger    *slog.Logger
}

func NewHandler(deps HandlerDeps) *Handler {
	h := &Handler{
		svc:       deps.Service,
		events:    deps.Events,
		files:     deps.Files,
		verifier:  deps.Verifier,
		jwtSecret: []byte(deps.JWTSecret),
		logger:    deps.Logger,
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	return h
}

// Register mounts every route on app.
func (h *Handler) Register(app *fiber.App) {
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/files/:token", h.ServeFile)

	jobs := app.Group("/jobs", RequireAuth(h.jwtSecret))
	jobs.Post("/:id/generation", h.InitiateGeneration)
	jobs.Post("/:id/generate", h.Generate)
	jobs.Get("/:id/status", h.Status)
	jobs.Post("/:id/retry", h.Retry)
	jobs.Post("/:id/cancel", h.Cancel)
	jobs.Get("/:id/events", h.Events)
}

type generationReq struct {
	TemplateID string            `json:"templateId"`
	Features   []string          `json:"features"`
	Options    map[string]string `json:"options"`
}

func (h *Handler) request(c *fiber.Ctx) (usecase.InitiateRequest, error) {
	var req generationReq
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return usecase.InitiateRequest{}, err
		}
	}
	return usecase.InitiateRequest{
		JobID:      c.Params("id"),
		UserID:     UserID(c),
		TemplateID: req.TemplateID,
		Features:   req.Features,
		Options:    req.Options,
	}, nil
}

func (h *Handler) InitiateGeneration(c *fiber.Ctx) error {
	req, err := h.request(c)
	if err != nil {
		return badRequest(c, "invalid payload")
	}
	res, err := h.svc.Initiate(c.UserContext(), req)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"success":          true,
		"jobId":            res.JobID,
		"status":           res.Status,
		"selectedFeatures": res.SelectedFeatures,
		"estimatedTime":    res.EstimatedTime,
		"message":          res.Message,
	})
}

func (h *Handler) Generate(c *fiber.Ctx) error {
	req, err := h.request(c)
	if err != nil {
		return badRequest(c, "invalid payload")
	}
	res, err := h.svc.Generate(c.UserContext(), req)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(res)
}

func (h *Handler) Status(c *fiber.Ctx) error {
	v, err := h.svc.Status(c.UserContext(), c.Params("id"), UserID(c))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": v})
}

func (h *Handler) Retry(c *fiber.Ctx) error {
	res, err := h.svc.Retry(c.UserContext(), c.Params("id"), UserID(c))
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"success":          true,
		"jobId":            res.JobID,
		"status":           res.Status,
		"selectedFeatures": res.SelectedFeatures,
		"estimatedTime":    res.EstimatedTime,
		"message":          res.Message,
	})
}

func (h *Handler) Cancel(c *fiber.Ctx) error {
	job, err := h.svc.Cancel(c.UserContext(), c.Params("id"), UserID(c))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "jobId": job.ID, "status": job.Status})
}
