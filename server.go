package main

import (
	"context"
	"log/slog"

	"coursebridge/config"
	coursewareControllers "coursebridge/controllers/courseware"
	progressControllers "coursebridge/controllers/progress"
	runtimeControllers "coursebridge/controllers/runtime"
	scheduleControllers "coursebridge/controllers/schedule"
	"coursebridge/middleware"
	"coursebridge/routers/coursewareRoutes"
	"coursebridge/routers/progressRoutes"
	"coursebridge/routers/runtimeRoutes"
	"coursebridge/routers/scheduleRoutes"
	"coursebridge/services/bridge"
	"coursebridge/services/catalog"
	"coursebridge/services/cmi"
	"coursebridge/services/ingest"
	"coursebridge/services/launch"
	"coursebridge/services/progress"
	"coursebridge/services/registration"
	"coursebridge/services/schedule"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

// server wires the services to the HTTP routes.
type server struct {
	app     *fiber.App
	pool    *ingest.Pool
	tracker *progress.Tracker
}

func newServer(cfg *config.Config, db *gorm.DB, log *slog.Logger) *server {
	shim := bridge.Options{RuntimeBasePath: cfg.RuntimeBasePath}

	tracker := progress.NewTracker(db, log)
	registrations := registration.NewManager(db, cmi.NewStore(db), tracker, log)
	schedules := schedule.NewService(db, tracker, log)
	cache := launch.NewPackageCache(cfg.PackageCacheSize, cfg.PackageCacheTTL)
	launcher := launch.NewResolver(db, registrations, cache, launch.Options{
		PublicPath: cfg.PackagePublicPath,
		Resume:     cfg.LaunchResume,
	}, log)
	ingestor := ingest.NewIngestor(db, cfg.UploadDir, shim, log)

	var pool *ingest.Pool
	if cfg.IngestAsync {
		pool = ingest.NewPool(ingestor, db, cfg.IngestWorkers, cfg.IngestQueue, log)
	}

	app := fiber.New(fiber.Config{
		BodyLimit: (cfg.MaxUploadMB + 1) << 20,
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE",        // Allowed HTTP methods
		AllowHeaders: "Content-Type,Authorization", // Allowed headers
	}))

	// Enable the built-in logger middleware to log all requests
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${ip} ${method} ${path} ${status} ${latency}\n",
	}))
	app.Use(middleware.Metrics())

	// Extracted packages, entry documents already carry the shim
	app.Static(cfg.PackagePublicPath, cfg.UploadDir)

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	app.Get("/health", func(c *fiber.Ctx) error {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.UserContext())
		}
		if err != nil {
			return middleware.JsonResponse(c, fiber.StatusServiceUnavailable, false, "Database unavailable!", nil)
		}
		return middleware.JsonResponse(c, fiber.StatusOK, true, "OK", nil)
	})

	coursewareRoutes.SetupPackageRoutes(app, &coursewareControllers.Handler{
		Ingestor:   ingestor,
		Pool:       pool,
		Catalog:    catalog.New(db, schedules, registrations, cfg.UploadDir, launcher, log),
		Launcher:   launcher,
		StagingDir: cfg.StagingDir,
	}, cfg.MaxUploadMB)
	runtimeRoutes.SetupRuntimeRoutes(app, cfg.RuntimeBasePath, &runtimeControllers.Handler{Registrations: registrations})
	scheduleRoutes.SetupScheduleRoutes(app, &scheduleControllers.Handler{Schedules: schedules})
	progressRoutes.SetupProgressRoutes(app, &progressControllers.Handler{Tracker: tracker})

	return &server{app: app, pool: pool, tracker: tracker}
}

// start launches the background ingest workers.
func (s *server) start(ctx context.Context) {
	if s.pool != nil {
		s.pool.Start(ctx)
	}
}

// stop waits for in-flight ingestion.
func (s *server) stop() {
	if s.pool != nil {
		s.pool.Stop()
	}
}
