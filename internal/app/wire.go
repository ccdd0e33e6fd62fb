package app

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yungbote/gmr-archive-backend/internal/data/aggregates"
	"github.com/yungbote/gmr-archive-backend/internal/data/repos"
	types "github.com/yungbote/gmr-archive-backend/internal/domain/archive"
	"github.com/yungbote/gmr-archive-backend/internal/http"
	httpH "github.com/yungbote/gmr-archive-backend/internal/http/handlers"
	httpMW "github.com/yungbote/gmr-archive-backend/internal/http/middleware"
	"github.com/yungbote/gmr-archive-backend/internal/observability"
	"github.com/yungbote/gmr-archive-backend/internal/pkg/logger"
	"github.com/yungbote/gmr-archive-backend/internal/platform/gcp"
	"github.com/yungbote/gmr-archive-backend/internal/services"
)

type Services struct {
	Aggregate types.SessionAggregate
	Auth      services.AuthService
	Sessions  services.SessionService
	Uploads   services.UploadService
}

type Middleware struct {
	Auth *httpMW.AuthMiddleware
}

type Handlers struct {
	Health  *httpH.HealthHandler
	Session *httpH.SessionHandler
	Upload  *httpH.UploadHandler
}

func wireServices(
	db *gorm.DB,
	log *logger.Logger,
	cfg Config,
	reposet repos.Set,
	bucket gcp.BucketService,
	metrics *observability.Metrics,
) Services {
	log.Info("Wiring services...")
	aggregate := aggregates.NewSessionAggregate(aggregates.SessionAggregateDeps{
		Base: aggregates.BaseDeps{
			DB:    db,
			Log:   log,
			Hooks: aggregates.NewObservabilityHooks(metrics),
		},
		Sessions:    reposet.Sessions,
		Versions:    reposet.AuthorityVersions,
		Derivatives: reposet.Derivatives,
		Delegations: reposet.Delegations,
	})
	return Services{
		Aggregate: aggregate,
		Auth:      services.NewAuthService(log, cfg.JWTSecretKey, cfg.JWTIssuer),
		Sessions:  services.NewSessionService(db, log, aggregate, reposet.Sessions, reposet.Delegations),
		Uploads:   services.NewUploadService(log, bucket, reposet.Sessions, aggregate, metrics, cfg.UploadMaxBytes),
	}
}

func wireHandlers(log *logger.Logger, db *gorm.DB, cfg Config, svc Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:  httpH.NewHealthHandler(db),
		Session: httpH.NewSessionHandler(log, svc.Sessions),
		Upload:  httpH.NewUploadHandler(log, svc.Uploads, cfg.UploadMaxBytes),
	}
}

func wireMiddleware(log *logger.Logger, svc Services) Middleware {
	log.Info("Wiring middleware...")
	return Middleware{
		Auth: httpMW.NewAuthMiddleware(log, svc.Auth),
	}
}

func wireRouter(log *logger.Logger, cfg Config, metrics *observability.Metrics, handlers Handlers, middleware Middleware) *gin.Engine {
	return http.NewRouter(http.RouterConfig{
		Log:            log,
		ServiceName:    "gmr-archive-api",
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Metrics:        metrics,
		TracingEnabled: cfg.OtelEnabled,
		AuthMiddleware: middleware.Auth,
		SessionHandler: handlers.Session,
		UploadHandler:  handlers.Upload,
		HealthHandler:  handlers.Health,
	})
}
