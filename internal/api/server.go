// Package api assembles the HTTP server from its parts.
package api

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/archaur/archaur/internal/cache"
	"github.com/archaur/archaur/internal/config"
	"github.com/archaur/archaur/internal/handlers"
	"github.com/archaur/archaur/internal/health"
	"github.com/archaur/archaur/internal/importer"
	"github.com/archaur/archaur/internal/logger"
	"github.com/archaur/archaur/internal/middleware"
	"github.com/archaur/archaur/internal/repository"
	"github.com/archaur/archaur/internal/service"
	"github.com/archaur/archaur/internal/storage"
)

type Server struct {
	cfg     *config.Config
	db      *sql.DB
	router  *gin.Engine
	log     *logger.Logger
	http    *http.Server
	checker *health.Checker
}

// New wires repositories, blob storage, importer, cache, mail and the
// HTTP handlers into a ready-to-run server. The cache may be nil, in
// which case reads go straight to the database.
func New(cfg *config.Config, db *sql.DB, c *cache.Cache, log *logger.Logger) (*Server, error) {
	blobs, err := storage.NewFileStore(cfg.StoragePath, cfg.ErasureDataShards, cfg.ErasureParityShards)
	if err != nil {
		return nil, fmt.Errorf("failed to open blob store: %w", err)
	}

	packages := repository.NewPackageRepository(db)
	arches := repository.NewArchitectureRepository(db)
	community := repository.NewCommunityRepository(db)
	users := repository.NewUserRepository(db)

	imp := importer.New(packages, blobs, arches, log)
	email := service.NewEmailService(service.EmailConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUser,
		Password: cfg.SMTPPassword,
		From:     cfg.MailFrom,
	}, log)
	pkgService := service.NewPackageService(
		packages, community, imp, blobs, c, email,
		time.Duration(cfg.CacheTTLSeconds)*time.Second, log)

	auth := middleware.NewJWTAuth(cfg.JWTSecret)
	uploadLimiter := middleware.NewRateLimiter(cfg.UploadRate, cfg.UploadBurst)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(log))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	var pinger health.Pinger
	if c != nil {
		pinger = c
	}
	s := &Server{
		cfg:     cfg,
		db:      db,
		router:  router,
		log:     log,
		checker: health.NewChecker(db, pinger, cfg.StoragePath),
	}
	router.GET("/healthz", s.health)

	v1 := router.Group("/api/v1")
	handlers.NewAuthHandler(users, auth, time.Duration(cfg.TokenTTLHours)*time.Hour, log).RegisterRoutes(v1)
	handlers.NewPackageHandler(pkgService, auth, uploadLimiter, cfg.MaxUploadSize, log).RegisterRoutes(v1)
	handlers.NewMetaHandler(arches).RegisterRoutes(v1)

	s.http = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

func requestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithField("status", c.Writer.Status()).
			WithField("duration", time.Since(start).String()).
			Infof("%s %s", c.Request.Method, c.Request.URL.Path)
	}
}

func (s *Server) health(c *gin.Context) {
	status := s.checker.Check(c.Request.Context())
	code := http.StatusOK
	if status.Overall == "unhealthy" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, status)
}

// Run serves until the context is cancelled, then drains connections.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("listening on %s", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return s.http.Shutdown(shutdownCtx)
}
