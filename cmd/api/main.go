package main

import (
	"context"
	"fmt"
	"time"

	common_api "coprox/internal/common/api"
	"coprox/internal/config"
	"coprox/internal/database"
	"coprox/internal/email"
	"coprox/internal/features/audit"
	cron_feature "coprox/internal/features/cron"
	"coprox/internal/features/scheduler"
	"coprox/internal/features/script"
	"coprox/internal/features/system"
	"coprox/internal/lock"
	"coprox/internal/logger"
	"coprox/internal/metrics"
	"coprox/internal/middleware"
	"coprox/internal/runner"

	_ "coprox/docs" // Import swagger docs

	"github.com/gofiber/fiber/v2"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// NewFiberServer creates a new Fiber app instance
func NewFiberServer(cfg *config.Config) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	app.Use(middleware.MetricsMiddleware())
	app.Use(middleware.CORSMiddleware(cfg))
	app.Use(middleware.ActorMiddleware())

	return app
}

// AsRoute tags the constructor so Fx adds it to the "routes" group.
func AsRoute(f any) any {
	return fx.Annotate(
		f,
		fx.As(new(common_api.Route)),
		fx.ResultTags(`group:"routes"`),
	)
}

// RegisterAllRoutes calls Setup() on every member of the "routes" group.
func RegisterAllRoutes(app *fiber.App, routes []common_api.Route, log *zap.Logger) {
	log.Info("Registering routes", zap.Int("count", len(routes)))
	for _, route := range routes {
		log.Debug("Setting up route", zap.String("type", fmt.Sprintf("%T", route)))
		route.Setup(app)
	}
}

var RegisterAllRoutesWithAnnotation = fx.Annotate(
	RegisterAllRoutes,
	fx.ParamTags(``, `group:"routes"`, ``),
)

// StartServer starts Fiber in a goroutine and shuts it down when the app exits.
func StartServer(lc fx.Lifecycle, app *fiber.App, cfg *config.Config, log *zap.Logger, shutdowner fx.Shutdowner) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				port := fmt.Sprintf(":%s", cfg.Port)
				log.Info("Listening", zap.String("addr", port))
				if err := app.Listen(port); err != nil {
					log.Error("Server failed", zap.Error(err))
					_ = shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return app.ShutdownWithContext(ctx)
		},
	})
}

// InitializeIndexes ensures that necessary database indexes are created
func InitializeIndexes(lc fx.Lifecycle, cronRepo cron_feature.CronRepository, scriptRepo script.ScriptRepository, log *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()

			if err := cronRepo.EnsureIndexes(ctx); err != nil {
				return fmt.Errorf("cron config indexes: %w", err)
			}
			if err := scriptRepo.EnsureIndexes(ctx); err != nil {
				log.Error("Failed to ensure script indexes", zap.Error(err))
			}
			return nil
		},
	})
}

// StartScheduler runs after the indexes hook; fx starts hooks in order.
func StartScheduler(lc fx.Lifecycle, s *scheduler.Scheduler) {
	lc.Append(fx.Hook{
		OnStart: s.Start,
		OnStop:  s.Stop,
	})
}

// @title           Coprox API
// @version         1.0
// @description     Cron configuration and script execution service.

// @host            localhost:8080
// @BasePath        /
func main() {
	app := fx.New(
		fx.Provide(
			config.LoadConfig,
			database.NewDatabase,
			logger.NewLogger,
			NewFiberServer,
			lock.NewLocker,

			// Repositories
			audit.NewAuditRepository,
			cron_feature.NewCronRepository,
			script.NewScriptRepository,
			email.NewEmailRepository,

			// Services
			audit.NewAuditService,
			cron_feature.NewCronService,
			script.NewScriptService,
			email.NewEmailService,
			runner.NewScriptRunner,
			scheduler.NewScheduler,

			// Interface adapters to break circular dependencies and satisfy Fx
			func(s cron_feature.CronService) scheduler.ConfigSource { return s },
			func(s script.ScriptService) scheduler.ExecutionLog { return s },
			func(s email.EmailService) scheduler.Notifier { return s },
			func(h *system.WebSocketController) scheduler.Broadcaster { return h },
			func(r *runner.ScriptRunner) runner.Runner { return r },
			func(s *scheduler.Scheduler) cron_feature.Scheduler { return s },

			// Controllers
			audit.NewAuditController,
			cron_feature.NewCronController,
			script.NewScriptController,
			system.NewWebSocketController,

			// API Routes
			AsRoute(system.NewHealthApi),
			AsRoute(system.NewDocsApi),
			AsRoute(system.NewEventsApi),
			AsRoute(metrics.NewMetricsApi),
			AsRoute(audit.NewAuditApi),
			AsRoute(cron_feature.NewCronApi),
			AsRoute(script.NewScriptApi),
		),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
		fx.Invoke(
			runner.RegisterMaintenance,
			RegisterAllRoutesWithAnnotation,
			InitializeIndexes,
			StartScheduler,
			StartServer,
		),
	)

	app.Run()
}
