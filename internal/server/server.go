// Package server assembles the fiber application: middleware, routes and the
// session websocket.
package server

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/tuneedit/api/internal/auth"
	"github.com/tuneedit/api/internal/config"
	"github.com/tuneedit/api/internal/handler"
	"github.com/tuneedit/api/internal/log"
	"github.com/tuneedit/api/internal/middleware"
	"github.com/tuneedit/api/internal/service"
	ws "github.com/tuneedit/api/internal/websocket"
	"github.com/tuneedit/api/pkg/response"
)

// bodyLimit leaves room for multipart overhead around one upload.
const bodyLimit = handler.MaxUploadSize + 1024*1024

// Deps are the collaborators the routes need.
type Deps struct {
	Config    *config.Config
	Redis     *redis.Client
	Hub       *ws.Hub
	Issuer    *auth.Issuer
	Sessions  *service.SessionService
	Submits   *service.SubmitService
	Validator *validator.Validate

	BackendConfigured bool
	R2Configured      bool
	// AccessLog enables the fiber request logger.
	AccessLog bool
}

// New builds the fiber app with every route registered.
func New(d Deps) *fiber.App {
	if d.Validator == nil {
		d.Validator = validator.New()
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    bodyLimit,
	})

	app.Use(recover.New())
	if d.AccessLog {
		app.Use(logger.New(logger.Config{
			Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
		}))
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: d.Config.Server.WebAppOrigin,
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	sessionHandler := handler.NewSessionHandler(d.Sessions, d.Validator)
	thumbnailHandler := handler.NewThumbnailHandler(d.Sessions)
	submitHandler := handler.NewSubmitHandler(d.Submits)

	authMiddleware := middleware.NewAuthMiddleware(d.Issuer)
	rateLimiter := middleware.NewRateLimiter(d.Redis)
	authenticate := authMiddleware.Authenticate()

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"timestamp": time.Now().Unix()})
	})
	app.Get("/health", func(c *fiber.Ctx) error {
		redisOK := d.Redis.Ping(c.Context()).Err() == nil
		status := "ok"
		if !redisOK {
			status = "degraded"
		}
		return c.JSON(fiber.Map{
			"status": status,
			"services": fiber.Map{
				"redis":   redisOK,
				"backend": d.BackendConfigured,
				"r2":      d.R2Configured,
			},
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// Session routes
	sessions := app.Group("/api/sessions")
	sessions.Post("/", rateLimiter.LaunchLimit(d.Config.RateLimit.LaunchPerMin), sessionHandler.Launch)
	sessions.Get("/:sessionId", authenticate, sessionHandler.Get)
	sessions.Put("/:sessionId/title", authenticate, sessionHandler.SetTitle)
	sessions.Put("/:sessionId/artist", authenticate, sessionHandler.SetArtist)
	sessions.Post("/:sessionId/thumbnail", authenticate,
		rateLimiter.ThumbnailLimit(d.Config.RateLimit.ThumbnailPerMin), thumbnailHandler.Upload)
	sessions.Delete("/:sessionId/thumbnail", authenticate, thumbnailHandler.Clear)
	sessions.Post("/:sessionId/submit", authenticate,
		rateLimiter.SubmitLimit(d.Config.RateLimit.SubmitPerHour), submitHandler.Submit)
	sessions.Get("/:sessionId/submission/:jobId", authenticate, submitHandler.Status)

	// WebSocket routes
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	wsLogger := log.WithComponent("ws")
	app.Get("/ws/sessions/:sessionId", authenticate, websocket.New(func(c *websocket.Conn) {
		sessionID := c.Params("sessionId")
		d.Hub.HandleConnection(c, sessionID, func() {
			if err := d.Sessions.Attach(context.Background(), sessionID); err != nil {
				wsLogger.Warn().Err(err).Str("session_id", sessionID).Msg("failed to expand host view")
			}
		})
	}))

	return app
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	errCode := response.CodeServiceError
	switch code {
	case fiber.StatusNotFound:
		errCode = response.CodeNotFound
	case fiber.StatusRequestEntityTooLarge:
		errCode = response.CodeValidationError
	}

	return response.Error(c, code, errCode, message, nil)
}
