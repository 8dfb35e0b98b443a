// internal/app/features/circles/handler.go
package circles

import (
	"time"

	userstore "github.com/mrlynn/dailyreflections-sub008/internal/app/store/users"
	"github.com/mrlynn/dailyreflections-sub008/internal/app/system/featureflag"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler is the shared dependency container for the circles feature.
// It holds the membership engine, the feature-flag checker, and the user
// store (for the profile-completeness gate) so the per-operation handlers
// share the same core dependencies.
type Handler struct {
	Engine *Engine
	Flags  featureflag.Checker
	Users  *userstore.Store
	Log    *zap.Logger
}

// NewHandler constructs a new circles Handler. It is typically called
// from the bootstrap BuildHandler function, where the application's
// DB and logger are already initialized.
func NewHandler(db *mongo.Database, flags featureflag.Checker, inviteTTL time.Duration, logger *zap.Logger) *Handler {
	return &Handler{
		Engine: NewEngine(db, inviteTTL, logger),
		Flags:  flags,
		Users:  userstore.New(db),
		Log:    logger,
	}
}
