package appview

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bluesky-social/feedview/feeds"
	"github.com/bluesky-social/feedview/hydrator"
	"github.com/bluesky-social/feedview/labels"
	"github.com/bluesky-social/feedview/social"
	"github.com/bluesky-social/feedview/thread"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	slogecho "github.com/samber/slog-echo"
	"gorm.io/gorm"
)

type Server struct {
	fg     *FeedGenerator
	echo   *echo.Echo
	httpd  *http.Server
	logger *slog.Logger
}

type Config struct {
	Logger *slog.Logger
	Bind   string

	// ImageCDN is the base URL avatar and image links point at. Empty means
	// raw blob CIDs are returned.
	ImageCDN string

	TimelineWindow time.Duration
	HotThreshold   int64
	HotWindow      time.Duration
	DenyLabels     []string
	TeamDIDs       []string
	Lists          map[string][]string

	// HTTP metrics are registered here; nil means the default registry.
	Registerer prometheus.Registerer
}

func (c *Config) feedOptions() feeds.Options {
	return feeds.Options{
		TimelineWindow: c.TimelineWindow,
		HotThreshold:   c.HotThreshold,
		HotWindow:      c.HotWindow,
		DenyLabels:     c.DenyLabels,
		TeamDIDs:       c.TeamDIDs,
		Lists:          c.Lists,
	}
}

func NewServer(db *gorm.DB, config Config) (*Server, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}

	var images hydrator.ImageURLBuilder
	if config.ImageCDN != "" {
		images = &hydrator.CDNImages{Endpoint: config.ImageCDN}
	}

	hyd := hydrator.NewHydrator(db,
		social.NewGormDirectory(db),
		labels.NewGormStore(db),
		images,
		logger.With("system", "hydrator"),
	)
	threads := thread.NewComposer(thread.NewGormStore(db), hyd, logger.With("system", "thread"))
	registry := feeds.DefaultRegistry(db, config.feedOptions())

	e := echo.New()

	// httpd
	var (
		httpTimeout        = 1 * time.Minute
		httpMaxHeaderBytes = 1 * (1024 * 1024)
	)

	srv := &Server{
		fg:     NewFeedGenerator(db, registry, hyd, threads, logger.With("system", "appview")),
		echo:   e,
		logger: logger,
	}
	srv.httpd = &http.Server{
		Handler:        srv,
		Addr:           config.Bind,
		WriteTimeout:   httpTimeout,
		ReadTimeout:    httpTimeout,
		MaxHeaderBytes: httpMaxHeaderBytes,
	}

	e.HideBanner = true
	e.Use(slogecho.New(logger))
	e.Use(middleware.Recover())
	reg := config.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Subsystem:  "feedview",
		Registerer: reg,
	}))
	e.HTTPErrorHandler = srv.errorHandler
	e.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "SAMEORIGIN",
		HSTSMaxAge:         31536000, // 365 days
	}))

	e.GET("/_health", srv.HandleHealthCheck)
	e.GET("/xrpc/app.bsky.feed.getFeed", srv.GetFeed)
	e.GET("/xrpc/app.bsky.feed.getTimeline", srv.GetTimeline)
	e.GET("/xrpc/app.bsky.feed.getAuthorFeed", srv.GetAuthorFeed)
	e.GET("/xrpc/app.bsky.feed.getPostThread", srv.GetPostThread)

	return srv, nil
}

func (srv *Server) ServeHTTP(rw http.ResponseWriter, req *http.Request) {
	srv.echo.ServeHTTP(rw, req)
}

func (srv *Server) RunAPI() error {
	srv.logger.Info("starting server", "bind", srv.httpd.Addr)
	go func() {
		if err := srv.httpd.ListenAndServe(); err != nil {
			if !errors.Is(err, http.ErrServerClosed) {
				srv.logger.Error("HTTP server shutting down unexpectedly", "err", err)
			}
		}
	}()

	// Wait for a signal to exit.
	quit := make(chan struct{})
	exitSignals := make(chan os.Signal, 1)
	signal.Notify(exitSignals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-exitSignals
		srv.logger.Info("received OS exit signal", "signal", sig)

		if err := srv.Shutdown(); err != nil {
			srv.logger.Error("HTTP server shutdown error", "err", err)
		}

		close(quit)
	}()
	<-quit
	srv.logger.Info("graceful shutdown complete")
	return nil
}

func (srv *Server) RunMetrics(listen string) error {
	http.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(listen, nil)
}

func (srv *Server) Shutdown() error {
	srv.logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.httpd.Shutdown(ctx)
}
