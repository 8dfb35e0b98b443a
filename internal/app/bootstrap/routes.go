// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"

	"github.com/dalemusser/waffle/config"
	circlesfeature "github.com/mrlynn/dailyreflections-sub008/internal/app/features/circles"
	healthfeature "github.com/mrlynn/dailyreflections-sub008/internal/app/features/health"
	loginfeature "github.com/mrlynn/dailyreflections-sub008/internal/app/features/login"
	"github.com/mrlynn/dailyreflections-sub008/internal/app/system/auth"
	"github.com/mrlynn/dailyreflections-sub008/internal/app/system/featureflag"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/securecookie"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup,
// and the Startup hook have completed. It initializes the session cookie
// store, applies the session-loading middleware, and mounts the feature
// routers: health, login/logout, and the circles API.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	// Secure cookies are enabled in production mode.
	secure := coreCfg.Env == "prod"
	sessionKey := appCfg.SessionKey
	if sessionKey == "" {
		// Dev convenience only; ValidateConfig rejects a blank key in prod.
		// Sessions do not survive a restart with a generated key.
		sessionKey = string(securecookie.GenerateRandomKey(64))
		logger.Warn("session_key not configured; generated an ephemeral key")
	}
	if err := auth.InitSessionStore(sessionKey, appCfg.SessionName, appCfg.SessionDomain, secure, logger); err != nil {
		logger.Error("session store init failed", zap.Error(err))
		return nil, err
	}

	var flags featureflag.Checker
	if appCfg.CirclesEnabled {
		flags = featureflag.NewStaticChecker(featureflag.Circles)
	} else {
		flags = featureflag.NewStaticChecker()
	}

	r := chi.NewRouter()

	// Global auth middleware: loads SessionUser into context if logged in.
	// This makes the current user available to all handlers via auth.CurrentUser(r).
	r.Use(auth.LoadSessionUser)

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.MongoClient, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	// Authentication (POST /login, POST /logout)
	loginHandler := loginfeature.NewHandler(deps.MongoDatabase, logger)
	r.Mount("/", loginfeature.Routes(loginHandler))

	// Circles API
	circlesHandler := circlesfeature.NewHandler(deps.MongoDatabase, flags, appCfg.InviteDefaultExpiry, logger)
	r.Mount("/api/circles", circlesfeature.Routes(circlesHandler))

	return r, nil
}
