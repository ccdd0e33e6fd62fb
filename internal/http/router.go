package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/gmr-archive-backend/internal/http/handlers"
	httpMW "github.com/yungbote/gmr-archive-backend/internal/http/middleware"
	"github.com/yungbote/gmr-archive-backend/internal/observability"
	"github.com/yungbote/gmr-archive-backend/internal/pkg/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	ServiceName    string
	AllowedOrigins []string
	Metrics        *observability.Metrics
	TracingEnabled bool

	AuthMiddleware *httpMW.AuthMiddleware
	SessionHandler *httpH.SessionHandler
	UploadHandler  *httpH.UploadHandler
	HealthHandler  *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.TracingEnabled {
		name := cfg.ServiceName
		if name == "" {
			name = "gmr-archive-api"
		}
		r.Use(otelgin.Middleware(name))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.AllowedOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	protected := r.Group("/api")
	{
		if cfg.AuthMiddleware != nil {
			protected.Use(cfg.AuthMiddleware.RequireAuth())
		}

		// Sessions
		if h := cfg.SessionHandler; h != nil {
			protected.POST("/sessions", h.CreateSession)
			protected.GET("/sessions", h.ListSessions)
			protected.GET("/sessions/:id", h.GetSession)
			protected.PATCH("/sessions/:id", h.UpdateSession)
			protected.POST("/sessions/:id/deposit", h.DepositSession)
			protected.POST("/sessions/:id/review", h.RequestReview)
			protected.POST("/sessions/:id/review/resolve", h.ResolveReview)
			protected.POST("/sessions/:id/withdraw", h.WithdrawSession)

			// Authority ledger
			protected.GET("/sessions/:id/authority", h.ListAuthority)
			protected.POST("/sessions/:id/authority", h.AppendAuthority)
			protected.GET("/sessions/:id/authority/:version", h.GetAuthorityVersion)

			// Delegates
			protected.GET("/sessions/:id/delegates", h.ListDelegates)
			protected.POST("/sessions/:id/delegates", h.GrantDelegate)
			protected.DELETE("/sessions/:id/delegates/:delegateId", h.RevokeDelegate)

			// Derivatives
			protected.GET("/sessions/:id/derivatives", h.ListDerivatives)
			protected.POST("/sessions/:id/derivatives", h.RecordDerivative)

			// Archive
			protected.GET("/archive", h.BrowseArchive)
		}

		// Media
		if cfg.UploadHandler != nil {
			protected.POST("/upload", cfg.UploadHandler.UploadMedia)
		}
	}

	return r
}
