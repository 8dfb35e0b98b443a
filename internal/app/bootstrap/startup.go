// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"

	"github.com/dalemusser/waffle/config"
	circlestore "github.com/mrlynn/dailyreflections-sub008/internal/app/store/circles"
	membershipstore "github.com/mrlynn/dailyreflections-sub008/internal/app/store/memberships"
	"github.com/mrlynn/dailyreflections-sub008/internal/app/system/timeouts"
	"github.com/mrlynn/dailyreflections-sub008/internal/app/system/workers"
	"go.uber.org/zap"
)

// reconcileWorker is started here and stopped in Shutdown.
var reconcileWorker *workers.CountReconcile

// Startup runs one-time application initialization after DB connections
// and schema setup are complete, but before the HTTP handler is built.
// It configures operation timeouts and starts the member-count
// reconciliation worker.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if n := timeouts.ConfigureFromEnv(); n > 0 {
		logger.Info("configured operation timeouts from environment", zap.Int("count", n))
	}

	if appCfg.CirclesEnabled {
		reconcileWorker = workers.NewCountReconcile(
			circlestore.New(deps.MongoDatabase),
			membershipstore.New(deps.MongoDatabase),
			logger,
			appCfg.ReconcileInterval,
		)
		reconcileWorker.Start()
	}

	return nil
}
