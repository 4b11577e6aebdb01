package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/GollyTicker/PluralSync/internal/config"
	"github.com/GollyTicker/PluralSync/internal/db"
	"github.com/GollyTicker/PluralSync/internal/history"
	"github.com/GollyTicker/PluralSync/internal/redis"
	"github.com/GollyTicker/PluralSync/internal/updater"
)

type Server struct {
	log     *slog.Logger
	db      *db.DB
	redis   *redis.Client
	users   *db.UserStore
	history history.Store
	manager *updater.Manager
	service *updater.Service
	cfg     config.Config
	router  *gin.Engine
}

func NewServer(log *slog.Logger, dbConn *db.DB, redisClient *redis.Client, users *db.UserStore, historyStore history.Store, manager *updater.Manager, service *updater.Service, cfg config.Config) *Server {
	s := &Server{
		log:     log,
		db:      dbConn,
		redis:   redisClient,
		users:   users,
		history: historyStore,
		manager: manager,
		service: service,
		cfg:     cfg,
		router:  gin.New(),
	}

	gin.SetMode(gin.ReleaseMode)
	r := s.router
	r.Use(gin.Recovery())
	r.Use(s.corsMiddleware())
	r.Use(s.loggingMiddleware())
	r.Use(s.inputValidationMiddleware())
	r.Use(s.rateLimitMiddleware())

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		v1.GET("/user/:user_id/statuses", s.getStatuses)
		v1.GET("/user/:user_id/history", s.getHistory)
		v1.GET("/front/:url_name", s.getFrontPage)
		v1.GET("/health", s.health)

		// Admin routes
		admin := v1.Group("/admin")
		admin.Use(s.adminAuthMiddleware())
		{
			admin.GET("/updaters", s.listUpdaters)
			admin.POST("/updaters/:user_id/start", s.startUpdater)
			admin.POST("/updaters/:user_id/stop", s.stopUpdater)
			admin.POST("/updaters/:user_id/restart", s.restartUpdater)
			admin.DELETE("/users/:user_id", s.deleteUser)
		}
	}

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", func(c *gin.Context) { c.JSON(200, gin.H{"ok": true}) })

	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) ctx(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), 10*time.Second)
}
