package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/Skotchmaster/online_auction/internal/config"
	"github.com/Skotchmaster/online_auction/internal/events"
	"github.com/Skotchmaster/online_auction/internal/httpserver"
	"github.com/Skotchmaster/online_auction/internal/logging"
	authmw "github.com/Skotchmaster/online_auction/internal/middleware/auth"
	"github.com/Skotchmaster/online_auction/internal/middleware/csrf"
	loggingmw "github.com/Skotchmaster/online_auction/internal/middleware/logging"
	"github.com/Skotchmaster/online_auction/internal/repo"
	"github.com/Skotchmaster/online_auction/internal/search"
	"github.com/Skotchmaster/online_auction/internal/service"
	"github.com/Skotchmaster/online_auction/internal/storage"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFile).With("service", cfg.ServiceName)
	slog.SetDefault(logger)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	db, err := config.InitDB(ctx, cfg)
	if err != nil {
		cancel()
		log.Fatalf("db init: %v", err)
	}

	images, err := newImageStore(ctx, cfg)
	if err != nil {
		cancel()
		log.Fatalf("storage: %v", err)
	}
	pub := newPublisher(ctx, cfg, logger)
	index := newIndex(ctx, cfg, logger)
	cancel()

	r := repo.New(db)
	authSvc := &service.AuthService{
		Repo:          r,
		JWTSecret:     cfg.JWTAccessSecret,
		RefreshSecret: cfg.JWTRefreshSecret,
		Events:        pub,
	}
	userSvc := &service.UserService{Repo: r, Events: pub}
	auctionSvc := &service.AuctionService{Repo: r, Images: images, Index: index, Events: pub}
	biddingSvc := &service.BiddingService{Repo: r, Events: pub}

	e := echo.New()
	e.HideBanner = true
	e.Pre(echomw.RemoveTrailingSlash())
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(loggingmw.RequestLogger(logger))
	e.Use(echomw.BodyLimit("10M"))
	e.Use(csrf.Middleware(csrf.Config{
		Secure:            cfg.CookieSecure,
		EnforceSameOrigin: true,
		SkipPaths:         []string{"/health/live", "/health/ready"},
	}))

	if cfg.Storage == config.StorageLocal {
		e.Static("/uploads", cfg.UploadDir)
	}

	httpserver.Register(e, &httpserver.Deps{
		Auth: &httpserver.AuthHTTP{Svc: authSvc, CookieSecure: cfg.CookieSecure},
		Auctions: &httpserver.AuctionHTTP{
			Auctions: auctionSvc,
			Bidding:  biddingSvc,
			Users:    userSvc,
		},
		Users:  &httpserver.UserHTTP{Svc: userSvc},
		AuthMW: authmw.NewAutoRefreshMiddleware(cfg.JWTAccessSecret, authSvc, cfg.CookieSecure),
		Ready:  r.Ping,
	})

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.ServerPort),
		Handler:           e,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		ReadHeaderTimeout: 3 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("server_started", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("shutting_down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server_shutdown_error", "error", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			logger.Error("db_close_error", "error", err)
		}
	}
	if err := pub.Close(); err != nil {
		logger.Error("kafka_close_error", "error", err)
	}

	logger.Info("shutdown_complete")
}

func newImageStore(ctx context.Context, cfg config.Config) (storage.ImageStore, error) {
	if cfg.Storage == config.StorageMinIO {
		return storage.NewMinIOStore(ctx, storage.MinIOConfig{
			Endpoint:  cfg.MinIOEndpoint,
			AccessKey: cfg.MinIOAccessKey,
			SecretKey: cfg.MinIOSecretKey,
			Bucket:    cfg.MinIOBucket,
			UseSSL:    cfg.MinIOUseSSL,
			Region:    cfg.MinIORegion,
		})
	}
	return storage.NewLocalStore(cfg.UploadDir)
}

func newPublisher(ctx context.Context, cfg config.Config, l *slog.Logger) events.Publisher {
	if len(cfg.KafkaBrokers) == 0 {
		l.Info("kafka_disabled")
		return events.NopPublisher{}
	}
	if err := events.EnsureTopics(ctx, cfg.KafkaBrokers[0], events.Topics()...); err != nil {
		l.Warn("kafka_topics_error", "error", err)
	}
	p, err := events.NewKafkaPublisher(cfg.KafkaBrokers)
	if err != nil {
		l.Warn("kafka_disabled", "error", err)
		return events.NopPublisher{}
	}
	return p
}

func newIndex(ctx context.Context, cfg config.Config, l *slog.Logger) search.Index {
	if cfg.ESURL == "" {
		l.Info("search_index_disabled")
		return nil
	}
	client, err := search.NewClient(ctx, search.Config{URL: cfg.ESURL, User: cfg.ESUser, Password: cfg.ESPassword})
	if err != nil {
		l.Warn("search_index_disabled", "error", err)
		return nil
	}
	return search.NewESIndex(client, cfg.ESIndex)
}
