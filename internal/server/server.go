// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"log"
	"net/http"
	"time"

	"mathgenie/internal/config"
	"mathgenie/internal/generate"
	"mathgenie/internal/middleware"
	"mathgenie/internal/models"
	"mathgenie/internal/notifications"
	"mathgenie/internal/repository"
	"mathgenie/internal/resolver"
	"mathgenie/internal/store"
	"mathgenie/internal/thumbnail"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/filesystem"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers.
type Server struct {
	config         *config.Config
	primaryDB      *gorm.DB // nil when the primary database was unreachable at boot
	localDB        *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc

	store      *store.Facade
	blobs      *store.BlobStore
	resolver   *resolver.Resolver
	generator  *generate.Service
	thumbnails *thumbnail.Service
	hub        *notifications.Hub
	bus        *notifications.Bus
}

// Deps carries the already-initialized dependencies a Server runs on.
// The bootstrap layer establishes them so tests can substitute fakes.
type Deps struct {
	PrimaryDB  *gorm.DB // optional
	LocalDB    *gorm.DB
	Redis      *redis.Client // optional
	Blobs      *store.BlobStore
	Model      generate.Model       // optional; nil disables generation
	Rasterizer thumbnail.Rasterizer // optional; nil disables captures
}

// NewServer assembles a Server from its dependencies.
func NewServer(cfg *config.Config, deps Deps) (*Server, error) {
	ctx, cancel := context.WithCancel(context.Background())

	var primary *store.Repos
	if deps.PrimaryDB != nil {
		primary = store.NewRepos(deps.PrimaryDB)
	}
	local := store.NewRepos(deps.LocalDB)
	seedHides := repository.NewSeedHideRepository(deps.LocalDB)
	facade := store.NewFacade(primary, local, seedHides)

	hub := notifications.NewHub()
	bus, err := notifications.NewBus(ctx, hub, deps.Redis)
	if err != nil {
		cancel()
		return nil, err
	}

	var generator *generate.Service
	if deps.Model != nil {
		generator = generate.NewService(deps.Model, cfg.AITimeout)
	}

	server := &Server{
		config:         cfg,
		primaryDB:      deps.PrimaryDB,
		localDB:        deps.LocalDB,
		redis:          deps.Redis,
		promMiddleware: middleware.InitMetrics("mathgenie-api"),
		shutdownCtx:    ctx,
		shutdownFn:     cancel,
		store:          facade,
		blobs:          deps.Blobs,
		resolver:       resolver.New(deps.Blobs, cfg.StorageHostSet()),
		generator:      generator,
		thumbnails:     thumbnail.NewService(deps.Rasterizer, deps.Blobs, cfg.CaptureTimeout),
		hub:            hub,
		bus:            bus,
	}
	return server, nil
}

// SetupMiddleware configures middleware for the Fiber app.
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	// Context Middleware to propagate Request ID and User ID
	app.Use(middleware.ContextMiddleware())

	// OpenTelemetry spans per request
	app.Use(middleware.TracingMiddleware())

	// Prometheus Metrics
	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Security headers
	app.Use(helmet.New())

	// Structured Logging middleware (after requestid and context middleware)
	app.Use(middleware.StructuredLogger())

	// CORS middleware should run before middlewares that can short-circuit (e.g. limiter)
	// so browser clients still receive CORS headers on error responses.
	corsConfig := cors.Config{
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}
	if s.config.AllowedOrigins != "" {
		corsConfig.AllowOrigins = s.config.AllowedOrigins
	} else {
		// Without an allow-list any origin may call the API. Credentialed
		// requests forbid the "*" wildcard, so reflect the caller instead.
		corsConfig.AllowOriginsFunc = func(string) bool { return true }
	}
	app.Use(cors.New(corsConfig))

	// Global rate limiting (300 requests per minute per IP; gallery
	// browsing is list-heavy)
	app.Use(limiter.New(limiter.Config{
		Max:        300,
		Expiration: 1 * time.Minute,
		// Never rate-limit preflight requests; they should be handled by CORS.
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application.
func (s *Server) SetupRoutes(app *fiber.App) {
	api := app.Group("/api")

	// Health checks
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	api.Get("/health", s.HealthCheck)

	// Metrics endpoint for Prometheus
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}
	api.Get("/metrics/dashboard", middleware.AuthRequired, middleware.AdminRequired,
		monitor.New(monitor.Config{
			Title: "Math Genie Backend Metrics Dashboard",
		}))

	// Stored HTML payloads and thumbnails
	if s.blobs != nil {
		app.Use("/media", filesystem.New(filesystem.Config{
			Root:   http.Dir(s.blobs.Root()),
			Browse: false,
			MaxAge: 3600,
		}))
	}

	// AI generation proxy
	api.Post("/generate", middleware.AuthRequired, middleware.RateLimit(
		s.redis, 10, 5*time.Minute, "generate"), s.GenerateContent)
	api.Post("/thumbnail", middleware.AuthRequired, middleware.RateLimit(
		s.redis, 20, 5*time.Minute, "thumbnail"), s.RenderThumbnail)

	// Profile routes
	users := api.Group("/users", middleware.AuthRequired)
	users.Get("/me", s.GetMyProfile)
	users.Get("/me/items", s.ListMyItems)
	users.Put("/me", s.UpdateMyProfile)
	users.Put("/me/nickname", s.UpdateMyProfile)

	// Gallery collections. Reads are public; per-user fields come from
	// an optional token. Writes require authentication.
	items := api.Group("/:collection/items", s.CollectionRequired)
	items.Get("/", middleware.OptionalAuth, s.ListItems)
	items.Post("/", middleware.AuthRequired, middleware.RateLimit(
		s.redis, 10, time.Minute, "create_item"), s.CreateItem)
	// Specific /:id/:resource routes BEFORE generic /:id routes
	items.Get("/:id/resolve", middleware.OptionalAuth, s.ResolveItem)
	items.Get("/:id/content", middleware.OptionalAuth, s.ServeItemContent)
	items.Post("/:id/like", middleware.AuthRequired, s.ToggleLike)
	items.Get("/:id/comments", s.ListComments)
	items.Post("/:id/comments", middleware.AuthRequired, middleware.RateLimit(
		s.redis, 10, time.Minute, "create_comment"), s.CreateComment)
	items.Delete("/:id/comments/:commentId", middleware.AuthRequired, s.DeleteComment)
	// Generic /:id routes must be last
	items.Get("/:id", middleware.OptionalAuth, s.GetItem)
	items.Put("/:id", middleware.AuthRequired, s.UpdateItem)
	items.Delete("/:id", middleware.AuthRequired, s.DeleteItem)

	// Live gallery updates. Anonymous viewers may connect; a token adds
	// identity for per-user connection limits.
	ws := api.Group("/ws", func(c *fiber.Ctx) error {
		if c.Query("token") != "" {
			return middleware.WebSocketAuthRequired(c)
		}
		return c.Next()
	})
	ws.Get("/", s.WebsocketHandler())
}

// HealthCheck reports API and AI proxy status the way gallery clients
// probe it before offering the generation UI.
func (s *Server) HealthCheck(c *fiber.Ctx) error {
	provider := "none"
	if s.generator != nil {
		provider = s.generator.Provider()
	}
	return c.JSON(fiber.Map{
		"status":       "ok",
		"aiConfigured": s.generator != nil,
		"aiProvider":   provider,
		"degraded":     s.store.Degraded(),
	})
}

// LivenessCheck handles liveness probe requests.
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests. The local store
// keeps the gallery serving through a primary outage, so only a dead
// local database makes the instance unready.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	primaryStatus := "healthy"
	if s.primaryDB == nil {
		primaryStatus = "unavailable"
	} else if sqlDB, err := s.primaryDB.DB(); err != nil {
		primaryStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		primaryStatus = "unhealthy"
	}

	localStatus := "healthy"
	if sqlDB, err := s.localDB.DB(); err != nil {
		localStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		localStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	} else {
		redisStatus = "unavailable"
	}

	status := fiber.StatusOK
	overall := "healthy"
	if localStatus != "healthy" {
		status = fiber.StatusServiceUnavailable
		overall = "unhealthy"
	} else if primaryStatus != "healthy" {
		overall = "degraded"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overall,
		"checks": fiber.Map{
			"primary_db": primaryStatus,
			"local_db":   localStatus,
			"redis":      redisStatus,
		},
		"time": time.Now(),
	})
}

// Start starts the server.
func (s *Server) Start() error {
	app := fiber.New(fiber.Config{
		AppName:   "Math Genie API",
		BodyLimit: 10 << 20, // generated HTML documents can be large
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Printf("Error: %v", err)
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		},
	})
	s.app = app

	s.SetupMiddleware(app)
	s.SetupRoutes(app)

	log.Printf("Server starting on port %s...", s.config.Port)
	return app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			log.Printf("error shutting down HTTP server: %v", err)
		}
	}

	if s.hub != nil {
		if err := s.hub.Shutdown(ctx); err != nil {
			log.Printf("error shutting down websocket hub: %v", err)
		}
	}

	if s.primaryDB != nil {
		if sqlDB, err := s.primaryDB.DB(); err == nil {
			if cerr := sqlDB.Close(); cerr != nil {
				log.Printf("error closing primary DB: %v", cerr)
			}
		}
	}
	if sqlDB, err := s.localDB.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			log.Printf("error closing local DB: %v", cerr)
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			log.Printf("error closing redis: %v", rerr)
		}
	}

	log.Println("Server shutdown complete")
	return nil
}
