package server

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/emilythestrangee/threadvote/backend/internal/comments"
	"github.com/emilythestrangee/threadvote/backend/internal/config"
	"github.com/emilythestrangee/threadvote/backend/internal/database"
	"github.com/emilythestrangee/threadvote/backend/internal/handlers"
	"github.com/emilythestrangee/threadvote/backend/internal/logger"
	"github.com/emilythestrangee/threadvote/backend/internal/metrics"
	"github.com/emilythestrangee/threadvote/backend/internal/middleware"
	"github.com/emilythestrangee/threadvote/backend/internal/posts"
	"github.com/emilythestrangee/threadvote/backend/internal/votes"
)

type Server struct {
	cfg     *config.Config
	db      database.Service
	handler *handlers.Handler
	metrics *metrics.Collector
	log     *zap.Logger
}

// NewServer wires the services over db and returns the configured
// http.Server.
func NewServer(cfg *config.Config, db database.Service, log *zap.Logger) *http.Server {
	collector := metrics.NewCollector("threadvote")

	tr := &database.Transactor{
		DB:          db.GetDB(),
		MaxAttempts: cfg.TxMaxAttempts,
		Log:         log,
		Retries:     collector.TxRetries,
	}

	voteSvc := votes.NewService(
		votes.NewGormStore(tr),
		votes.Applier{SelfVoteKarma: cfg.SelfVoteKarma},
		log.Named("votes"),
		votes.WithCounter(collector.VotesCast),
	)
	commentSvc := comments.NewService(
		comments.NewGormStore(tr),
		voteSvc,
		cfg.CommentRenderDepth,
		log.Named("comments"),
		comments.WithCounters(collector.CommentsCreated, collector.CommentsDeleted),
	)
	postSvc := posts.NewService(db.GetDB(), voteSvc, log.Named("posts"))

	s := &Server{
		cfg: cfg,
		db:  db,
		handler: handlers.NewHandler(handlers.Deps{
			DB:        db.GetDB(),
			Votes:     voteSvc,
			Comments:  commentSvc,
			Posts:     postSvc,
			JWTSecret: []byte(cfg.JWTSecret),
			JWTTTL:    cfg.JWTTTL,
			Log:       log.Named("auth"),
		}),
		metrics: collector,
		log:     log,
	}

	return &http.Server{
		Addr:         "0.0.0.0:" + cfg.Port,
		Handler:      s.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// RegisterRoutes sets up all application routes
func (s *Server) RegisterRoutes() *gin.Engine {
	if s.cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(
		gin.Recovery(),
		middleware.RequestID(),
		logger.GinMiddleware(s.log),
		s.metrics.GinMiddleware(),
	)

	r.Use(cors.New(cors.Config{
		AllowOrigins:     s.cfg.Origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Accept", "Authorization", "Content-Type", "X-Requested-With", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: !allowsAny(s.cfg.Origins),
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", func(c *gin.Context) {
		stats := s.db.Health()
		status := http.StatusOK
		if stats["status"] != "up" {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, stats)
	})
	r.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	secret := []byte(s.cfg.JWTSecret)
	h := s.handler

	api := r.Group("/api")
	{
		// Auth routes (public)
		api.POST("/register", h.Auth.Register)
		api.POST("/login", h.Auth.Login)

		// Public reads; a token, when sent, fills in the caller's votes
		public := api.Group("", middleware.OptionalAuth(secret))
		{
			public.GET("/posts", h.Post.GetPosts)
			public.GET("/posts/:id", h.Post.GetPost)
			public.GET("/posts/:id/comments", h.Comment.GetComments)
			public.GET("/users/:id", h.User.GetUserProfile)
			public.GET("/users/:id/comments", h.User.GetUserComments)
		}

		// Protected routes (authentication required)
		protected := api.Group("", middleware.AuthMiddleware(secret))
		{
			protected.GET("/me", h.Auth.GetMe)
			protected.PUT("/users/:id", h.User.UpdateUserProfile)

			protected.POST("/posts", h.Post.CreatePost)
			protected.PUT("/posts/:id", h.Post.UpdatePost)
			protected.DELETE("/posts/:id", h.Post.DeletePost)

			protected.POST("/posts/:id/comments", h.Comment.CreateComment)
			protected.PUT("/comments/:commentId", h.Comment.UpdateComment)
			protected.DELETE("/comments/:commentId", h.Comment.DeleteComment)

			protected.POST("/votes", h.Vote.Vote)
		}
	}

	return r
}

func allowsAny(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
