// Package appview is the YuuZone HTTP API: the feed read endpoints,
// the CRUD glue around them, and the realtime websocket stream.
package appview

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	slogecho "github.com/samber/slog-echo"
	"gorm.io/gorm"

	"github.com/yuuzone/yuuzone/events"
	"github.com/yuuzone/yuuzone/feed"
	"github.com/yuuzone/yuuzone/models"
	"github.com/yuuzone/yuuzone/store"
)

type Config struct {
	JWTSecret []byte
	RedisURL  string

	// PopularThreadCount caps the thread set behind the /all feed.
	PopularThreadCount int

	// RateLimit is requests allowed per IP per second; zero disables
	// the limiter.
	RateLimit int64
}

type Server struct {
	db *gorm.DB

	assembler *feed.Assembler
	posts     *store.PostStore
	boosts    *store.BoostStore
	users     *store.UserStore
	vis       *store.VisibilityStore
	popular   *store.PopularThreads
	events    *events.EventManager

	echo      *echo.Echo
	jwtSecret []byte
	limiter   *RateLimiter

	log *slog.Logger
}

func NewServer(db *gorm.DB, cfg Config, log *slog.Logger) (*Server, error) {
	if log == nil {
		log = slog.Default()
	}
	if len(cfg.JWTSecret) == 0 {
		return nil, fmt.Errorf("jwt secret must be configured")
	}
	if cfg.PopularThreadCount <= 0 {
		cfg.PopularThreadCount = 25
	}

	if err := db.AutoMigrate(
		&models.User{}, &models.Subthread{}, &models.Post{}, &models.Comment{},
		&models.Vote{}, &models.Boost{}, &models.SubthreadBan{},
		&models.UserBlock{}, &models.Subscription{},
	); err != nil {
		return nil, fmt.Errorf("migrating schema: %w", err)
	}

	vis, err := store.NewVisibilityStore(db, log)
	if err != nil {
		return nil, err
	}

	popular, err := store.NewPopularThreads(db, cfg.RedisURL, cfg.PopularThreadCount)
	if err != nil {
		return nil, err
	}

	posts := store.NewPostStore(db)
	boosts := store.NewBoostStore(db)

	evtman := events.NewEventManager(log)
	go evtman.Run()

	s := &Server{
		db:        db,
		assembler: feed.NewAssembler(posts, boosts, vis, log),
		posts:     posts,
		boosts:    boosts,
		users:     store.NewUserStore(db),
		vis:       vis,
		popular:   popular,
		events:    evtman,
		jwtSecret: cfg.JWTSecret,
		log:       log.With("system", "appview"),
	}

	if cfg.RateLimit > 0 {
		s.limiter = NewRateLimiter(cfg.RateLimit)
	}

	return s, nil
}

// Events exposes the manager for wiring and tests.
func (s *Server) Events() *events.EventManager {
	return s.events
}

func (s *Server) RunAPI(addr string) error {
	e := s.buildEcho()
	s.echo = e
	s.log.Info("starting API server", "addr", addr)
	return e.Start(addr)
}

func (s *Server) buildEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(slogecho.New(s.log))
	e.Use(middleware.Recover())
	if s.limiter != nil {
		e.Use(s.limiter.Middleware())
	}
	e.Use(s.viewerMiddleware)

	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := "internal server error"
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			msg = fmt.Sprint(he.Message)
		}
		if code >= 500 {
			s.log.Error("request failed", "path", c.Path(), "err", err)
		}
		if !c.Response().Committed {
			c.JSON(code, map[string]string{"error": msg})
		}
	}

	e.GET("/_health", s.handleHealthCheck)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	e.GET("/api/feed/home", s.handleHomeFeed, s.requireViewer)
	e.GET("/api/feed/all", s.handleAllFeed)
	e.GET("/api/threads/:thread/posts", s.handleThreadFeed)
	e.GET("/api/users/:handle/posts", s.handleUserFeed)

	e.POST("/api/account", s.handleCreateAccount)
	e.POST("/api/session", s.handleCreateSession)
	e.GET("/api/session", s.handleGetSession, s.requireViewer)

	e.POST("/api/threads", s.handleCreateSubthread, s.requireViewer)
	e.POST("/api/threads/:thread/subscribe", s.handleSubscribe, s.requireViewer)
	e.DELETE("/api/threads/:thread/subscribe", s.handleUnsubscribe, s.requireViewer)

	e.POST("/api/posts", s.handleCreatePost, s.requireViewer)
	e.GET("/api/posts/:id", s.handleGetPost)
	e.DELETE("/api/posts/:id", s.handleDeletePost, s.requireViewer)
	e.POST("/api/posts/:id/vote", s.handleVote, s.requireViewer)
	e.POST("/api/posts/:id/boost", s.handleBoost, s.requireViewer)
	e.POST("/api/posts/:id/comments", s.handleAddComment, s.requireViewer)

	e.GET("/ws/events", s.handleEventStream)

	return e
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.events.Shutdown()
	if s.echo == nil {
		return nil
	}
	return s.echo.Shutdown(ctx)
}

func (s *Server) handleHealthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
