// Package completeapi serves the completion operation directly over a fiber
// HTTP app: POST /v1/complete takes a request and answers with the text,
// usage and stop reason.
package completeapi

import (
	"errors"
	"strings"
	"time"

	"github.com/germanamz/claudeproxy/pkg/completion"
	"github.com/germanamz/claudeproxy/pkg/httpmw"
	"github.com/germanamz/claudeproxy/pkg/tools/calltool"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Response is the body of a successful POST /v1/complete.
type Response struct {
	Text       string                `json:"text"`
	Usage      completion.TokenCount `json:"usage"`
	StopReason string                `json:"stop_reason,omitempty"`
}

// Config configures the app.
type Config struct {
	Completer      completion.Completer
	Logger         zerolog.Logger
	AllowedOrigins []string
	// Metrics, when set, is served at GET /metrics.
	Metrics prometheus.Gatherer
}

// New builds the fiber app.
func New(cfg Config) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "claudeproxy",
		DisableStartupMessage: true,
		BodyLimit:             1 << 20,
		ErrorHandler:          errorHandler,
	})

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	app.Use(
		requestid.New(requestid.Config{
			Header:    httpmw.HeaderRequestID,
			Generator: uuid.NewString,
		}),
		accessLog(cfg.Logger),
		recover.New(),
		cors.New(cors.Config{
			AllowOrigins:  strings.Join(origins, ","),
			AllowHeaders:  "Content-Type, Authorization, " + httpmw.HeaderRequestID,
			ExposeHeaders: httpmw.HeaderRequestID,
		}),
	)

	h := &handler{completer: cfg.Completer, logger: cfg.Logger}

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Post("/v1/complete", h.complete)

	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(cfg.Metrics, promhttp.HandlerOpts{})))
	}

	return app
}

type handler struct {
	completer completion.Completer
	logger    zerolog.Logger
}

func (h *handler) complete(c *fiber.Ctx) error {
	req, err := calltool.Decode(c.Body())
	if err != nil {
		return writeError(c, err)
	}

	res, err := h.completer.Complete(c.UserContext(), req)
	if err != nil {
		h.logger.Warn().
			Err(err).
			Str("model", req.Model).
			Str("request_id", c.GetRespHeader(httpmw.HeaderRequestID)).
			Msg("completion failed")
		return writeError(c, err)
	}

	return c.JSON(Response{
		Text:       res.Text,
		Usage:      res.Usage,
		StopReason: res.StopReason,
	})
}

func writeError(c *fiber.Ctx, err error) error {
	status, body, retryAfter := httpmw.ErrorResponse(err)
	if retryAfter != "" {
		c.Set(fiber.HeaderRetryAfter, retryAfter)
	}

	return c.Status(status).JSON(body)
}

// errorHandler renders routing errors (404, 405, body too large) in the
// shared error shape.
func errorHandler(c *fiber.Ctx, err error) error {
	var ferr *fiber.Error
	if errors.As(err, &ferr) {
		return c.Status(ferr.Code).JSON(httpmw.ErrorBody{Error: ferr.Message})
	}

	return writeError(c, err)
}

func accessLog(logger zerolog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		var ferr *fiber.Error
		if errors.As(err, &ferr) {
			status = ferr.Code
		}

		logger.Info().
			Str("request_id", c.GetRespHeader(httpmw.HeaderRequestID)).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Msg("request")

		return err
	}
}
