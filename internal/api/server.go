// Package api wires the HTTP surface: router, middleware and the per-area
// handlers.
package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	accountsapi "github.com/carrotwars/carrotwars/internal/api/accounts"
	"github.com/carrotwars/carrotwars/internal/api/messaging"
	"github.com/carrotwars/carrotwars/internal/api/middleware"
	questsapi "github.com/carrotwars/carrotwars/internal/api/quests"
	relationsapi "github.com/carrotwars/carrotwars/internal/api/relations"
	rewardsapi "github.com/carrotwars/carrotwars/internal/api/rewards"
	"github.com/carrotwars/carrotwars/internal/api/sweep"
	"github.com/carrotwars/carrotwars/internal/config"
	"github.com/carrotwars/carrotwars/internal/service/accounts"
	"github.com/carrotwars/carrotwars/internal/service/quests"
	"github.com/carrotwars/carrotwars/internal/service/relations"
	"github.com/carrotwars/carrotwars/internal/service/rewards"
	"github.com/carrotwars/carrotwars/pkg/logger"
)

// Deps collects the services and stores the server exposes.
type Deps struct {
	Accounts  *accounts.Service
	Relations *relations.Service
	Quests    *quests.Service
	Rewards   *rewards.Service
	Messages  messaging.MessageStore
	Sweeper   sweep.SweepRunner
}

// Server holds the configured router.
type Server struct {
	Config *config.Config
	Router *gin.Engine
	log    *logger.Logger
}

// NewServer creates the HTTP server, mounting middleware and all handlers.
func NewServer(cfg *config.Config, deps Deps, log *logger.Logger) *Server {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()

	s := &Server{
		Config: cfg,
		Router: engine,
		log:    log,
	}

	s.MountMiddlewares()
	s.MountHandlers(deps)

	return s
}

// MountMiddlewares registers the global middleware chain.
func (s *Server) MountMiddlewares() {
	s.Router.Use(gin.Logger())
	s.Router.Use(gin.Recovery())
	s.Router.Use(requestid.New())

	corsConfig := cors.DefaultConfig()
	if len(s.Config.Server.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = s.Config.Server.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization")
	s.Router.Use(cors.New(corsConfig))
}

// MountHandlers registers all routes.
func (s *Server) MountHandlers(deps Deps) {
	const basePath = "/api/v1"

	accountsHandler := accountsapi.NewHandler(deps.Accounts, s.log)
	relationsHandler := relationsapi.NewHandler(deps.Relations, s.log)
	questsHandler := questsapi.NewHandler(deps.Quests, s.log)
	rewardsHandler := rewardsapi.NewHandler(deps.Rewards, s.log)
	messagingHandler := messaging.NewHandler(deps.Messages, s.log)
	sweepHandler := sweep.NewHandler(deps.Sweeper, s.log)

	public := s.Router.Group(basePath)
	{
		public.POST("/auth/signup", accountsHandler.Signup)
		public.POST("/auth/login", accountsHandler.Login)
	}

	authenticated := s.Router.Group(basePath,
		middleware.NewAuthenticator(s.Config.Auth.JWTSecret).VerifyJWT())
	{
		authenticated.GET("/me", accountsHandler.Me)
		authenticated.GET("/users", accountsHandler.ListUsers)
		authenticated.GET("/users/:id", accountsHandler.GetUser)

		authenticated.POST("/relations", relationsHandler.Propose)
		authenticated.GET("/relations", relationsHandler.List)
		authenticated.GET("/relations/overview", relationsHandler.Overview)
		authenticated.GET("/relations/:id", relationsHandler.Get)
		authenticated.POST("/relations/:id/accept", relationsHandler.Accept)
		authenticated.POST("/relations/:id/decline", relationsHandler.Decline)

		authenticated.POST("/quests", questsHandler.Propose)
		authenticated.GET("/quests", questsHandler.List)
		authenticated.GET("/quests/overview", questsHandler.Overview)
		authenticated.GET("/quests/:id", questsHandler.Get)
		authenticated.POST("/quests/:id/accept", questsHandler.Accept)
		authenticated.POST("/quests/:id/decline", questsHandler.Decline)
		authenticated.POST("/quests/:id/complete", questsHandler.Complete)
		authenticated.POST("/quests/:id/confirm", questsHandler.Confirm)
		authenticated.POST("/quests/:id/deny", questsHandler.Deny)

		authenticated.POST("/rewards", rewardsHandler.Propose)
		authenticated.GET("/rewards", rewardsHandler.List)
		authenticated.GET("/rewards/overview", rewardsHandler.Overview)
		authenticated.GET("/rewards/:id", rewardsHandler.Get)
		authenticated.POST("/rewards/:id/buy", rewardsHandler.Buy)

		authenticated.GET("/messages/inbox", messagingHandler.Inbox)
		authenticated.GET("/messages/outbox", messagingHandler.Outbox)
		authenticated.POST("/messages/:id/read", messagingHandler.MarkRead)

		authenticated.POST("/sweep/run", sweepHandler.Run)
	}

	s.Router.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// With a dedicated metrics port configured, main serves the exporter on
	// its own listener instead.
	if s.Config.Metrics.Enabled && s.Config.Metrics.Port == 0 {
		path := s.Config.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		s.Router.GET(path, gin.WrapH(promhttp.Handler()))
	}
}
