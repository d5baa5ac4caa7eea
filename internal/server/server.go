// Package server exposes proof generation over HTTP.
package server

import (
	"context"
	stderrors "errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ZanzyTHEbar/contribution-proof/docs"
	"github.com/ZanzyTHEbar/contribution-proof/internal/cache"
	"github.com/ZanzyTHEbar/contribution-proof/internal/config"
	"github.com/ZanzyTHEbar/contribution-proof/internal/database"
	"github.com/ZanzyTHEbar/contribution-proof/internal/errors"
	"github.com/ZanzyTHEbar/contribution-proof/internal/middleware"
	"github.com/ZanzyTHEbar/contribution-proof/internal/monitoring"
	"github.com/ZanzyTHEbar/contribution-proof/internal/proof"
	"github.com/ZanzyTHEbar/contribution-proof/internal/ratelimit"
	"github.com/ZanzyTHEbar/contribution-proof/internal/security"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Version is reported by the health endpoint
const Version = "1.0.0"

// Dependencies are the collaborators a Server is built from
type Dependencies struct {
	Config      *config.Config
	Generator   *proof.Generator
	History     *database.HistoryService
	DB          *database.DB
	Cache       *cache.Cache
	Limiter     *ratelimit.RateLimiter
	Auth        *security.Authenticator
	Compression *middleware.CompressionMiddleware
	Metrics     *monitoring.Metrics
	Logger      *monitoring.Logger
}

// Server serves the proof API
type Server struct {
	cfg       *config.Config
	generator *proof.Generator
	history   *database.HistoryService
	db        *database.DB
	cache     *cache.Cache
	limiter   *ratelimit.RateLimiter
	auth      *security.Authenticator
	gzip      *middleware.CompressionMiddleware
	metrics   *monitoring.Metrics
	logger    *monitoring.Logger
	router    *gin.Engine
}

// New builds a server and its routes. Missing optional collaborators get defaults.
func New(deps Dependencies) *Server {
	if deps.Config == nil {
		deps.Config = config.Default()
	}
	if deps.Logger == nil {
		deps.Logger = &monitoring.Logger{Logger: slog.Default()}
	}
	if deps.Metrics == nil {
		deps.Metrics = monitoring.NewMetrics()
	}
	if deps.Generator == nil {
		deps.Generator = proof.NewGenerator(deps.Logger.Logger)
	}
	if deps.Cache == nil {
		deps.Cache = cache.NewCache(deps.Config.Server.CacheTTL.Duration)
	}
	if deps.Auth == nil {
		deps.Auth = security.NewAuthenticator(deps.Config.Server.JWTSecret)
	}
	if deps.Compression == nil {
		deps.Compression = middleware.NewCompressionMiddleware(middleware.DefaultCompressionConfig())
	}

	s := &Server{
		cfg:       deps.Config,
		generator: deps.Generator,
		history:   deps.History,
		db:        deps.DB,
		cache:     deps.Cache,
		limiter:   deps.Limiter,
		auth:      deps.Auth,
		gzip:      deps.Compression,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
	}
	s.router = s.setupRouter()
	return s
}

// Router returns the HTTP handler
func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) setupRouter() *gin.Engine {
	r := gin.New()

	securityConfig := security.DefaultSecurityConfig()
	securityConfig.AllowedOrigins = s.cfg.Server.AllowedOrigins
	securityConfig.MaxUploadBytes = s.cfg.Server.MaxUploadBytes
	securityMiddleware := security.NewSecurityMiddleware(securityConfig)

	r.Use(errors.RecoveryHandler(s.logger.Logger))
	r.Use(monitoring.MonitoringMiddleware(s.metrics, s.logger))
	r.Use(errors.ErrorHandler(s.logger.Logger))
	r.Use(s.gzip.Handler())
	r.Use(securityMiddleware.CORSConfig())
	r.Use(security.SecurityHeadersMiddleware(false))

	r.GET("/health", s.handleHealth)

	docs.SwaggerInfo.Version = Version
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	v1 := r.Group("/v1")
	if s.limiter != nil {
		v1.Use(s.limiter.IPRateLimitMiddleware())
	}
	v1.Use(s.auth.Middleware())
	v1.Use(securityMiddleware.RequestTimeout)
	{
		v1.POST("/proofs",
			securityMiddleware.ValidateContentType,
			securityMiddleware.LimitUploadSize,
			s.handleCreateProof,
		)
		v1.GET("/proofs", s.handleListProofs)
		v1.GET("/proofs/:id", s.handleGetProof)
		v1.GET("/stats", s.handleStats)
	}

	return r
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.SystemLogger("server_start", "listening on "+addr)
		if err := srv.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	s.logger.SystemLogger("server_shutdown", "draining connections")
	return srv.Shutdown(shutdownCtx)
}
