package main

import (
	"context"

	"coprox/internal/config"
	"coprox/internal/database"
	"coprox/internal/features/audit"
	cron_feature "coprox/internal/features/cron"
	"coprox/internal/lock"
	"coprox/internal/logger"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// Seed inserts the configs of SEED_FILE whose names are not stored yet.
func Seed(
	lc fx.Lifecycle,
	cfg *config.Config,
	cronRepo cron_feature.CronRepository,
	cronService cron_feature.CronService,
	logger *zap.Logger,
	shutdowner fx.Shutdowner,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				code := 0
				defer func() {
					if err := shutdowner.Shutdown(fx.ExitCode(code)); err != nil {
						logger.Error("Failed to shutdown", zap.Error(err))
					}
				}()

				logger.Info("Seeding cron configs", zap.String("file", cfg.SeedFile))

				inputs, err := cron_feature.LoadSeedFile(cfg.SeedFile)
				if err != nil {
					logger.Error("Failed to read seed file", zap.Error(err))
					code = 1
					return
				}

				ctx := context.Background()
				if err := cronRepo.EnsureIndexes(ctx); err != nil {
					logger.Error("Failed to ensure indexes", zap.Error(err))
					code = 1
					return
				}

				added, err := cronService.Seed(ctx, inputs)
				if err != nil {
					logger.Error("Seeding failed", zap.Error(err))
					code = 1
					return
				}
				logger.Info("Seeding finished",
					zap.Int("in_file", len(inputs)),
					zap.Int("added", len(added)),
					zap.Strings("configs", added),
				)
			}()
			return nil
		},
	})
}

func main() {
	app := fx.New(
		fx.Provide(
			config.LoadConfig,
			database.NewDatabase,
			logger.NewLogger,
			lock.NewLocker,
			audit.NewAuditRepository,
			audit.NewAuditService,
			cron_feature.NewCronRepository,
			cron_feature.NewCronService,
		),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
		fx.Invoke(Seed),
	)

	app.Run()
}
