package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	nested "github.com/antonfisher/nested-logrus-formatter"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"tokgrab/chat"
	"tokgrab/config"
	"tokgrab/database"
	"tokgrab/downloader"
	"tokgrab/handlers"
	"tokgrab/media"
	"tokgrab/search"
	"tokgrab/sentry"
	"tokgrab/tiktok"
	"tokgrab/tikwm"
	"tokgrab/ytdlp"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debugf("no .env file loaded: %v", err)
	}
	config.NewConfig()
	setupLogging()

	sentry.Init()
	defer sentry.Flush()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatal(err)
	}
}

func setupLogging() {
	log.SetFormatter(&nested.Formatter{
		HideKeys:        true,
		FieldsOrder:     []string{"module"},
		TimestampFormat: time.RFC3339,
	})
	level, err := log.ParseLevel(config.Config.Options.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
}

func run(ctx context.Context) error {
	cfg := config.Config

	if err := os.MkdirAll(cfg.Options.TempDir, 0755); err != nil {
		return err
	}

	db, err := database.New(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	extractor := ytdlp.NewClient(
		ytdlp.NewExecRunner(cfg.Extractor.Binary),
		cfg.Extractor.MetadataTimeout,
		cfg.Extractor.DownloadTimeout,
	)
	tikwmClient := tikwm.NewClient(cfg.TikTok.TikwmURL, cfg.TikTok.UserAgent)
	expander := tiktok.NewExpander(cfg.TikTok.UserAgent, cfg.TikTok.ExpandHops)
	images := media.NewImageResolver(tikwmClient, cfg.TikTok.UserAgent)
	imageFetcher := downloader.NewImageDownloader(cfg.Options.TempDir, cfg.TikTok.UserAgent)

	service := media.NewService(expander, extractor, tikwmClient, images)
	mediaDownloader := media.NewDownloader(expander, extractor, images, imageFetcher, cfg.Options.TempDir)
	searcher := search.NewSearcher(extractor, cfg.TikTok.Cookie, cfg.TikTok.UserAgent)
	hub := chat.NewHub(db)

	if !cfg.TikTok.HasCookie() {
		log.Warn("TIKTOK_COOKIE is not set, keyword search will be unavailable")
	} else if !cfg.TikTok.CookieLooksValid() {
		log.Warn("TIKTOK_COOKIE looks truncated, keyword search will be refused")
	}

	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery(), sentry.GetSentryGin())
	handlers.NewManager(service, mediaDownloader, searcher, db, hub).Register(router)

	server := &http.Server{
		Addr:              ":" + cfg.Options.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("Starting server on :%s", cfg.Options.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
