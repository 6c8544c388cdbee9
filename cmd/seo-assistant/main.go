package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/contentlab/seo-assistant/internal/api"
	"github.com/contentlab/seo-assistant/internal/backend"
	"github.com/contentlab/seo-assistant/internal/chat"
	"github.com/contentlab/seo-assistant/internal/config"
	"github.com/contentlab/seo-assistant/internal/dashboard"
	"github.com/contentlab/seo-assistant/internal/notifications"
	"github.com/contentlab/seo-assistant/internal/poller"
	"github.com/contentlab/seo-assistant/internal/progress"
	"github.com/contentlab/seo-assistant/internal/scheduler"
	"github.com/contentlab/seo-assistant/internal/sessions"
	"github.com/contentlab/seo-assistant/internal/storage"
	"github.com/contentlab/seo-assistant/internal/theme"
	"github.com/contentlab/seo-assistant/internal/transcripts"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	// Load environment variables from .env file if it exists
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, using environment variables")
	}

	// Initialize configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Set up logging
	logrus.SetLevel(logrus.InfoLevel)
	if cfg.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
	logrus.SetFormatter(&logrus.JSONFormatter{})

	logrus.Infof("Starting SEO Assistant against %s", cfg.GraphQLURL())

	// Initialize persistence
	store, err := storage.New(cfg)
	if err != nil {
		logrus.Fatalf("Failed to initialize storage: %v", err)
	}
	if closer, ok := store.(io.Closer); ok {
		defer closer.Close()
	}

	themeStore := theme.NewStore(store, theme.Theme(cfg.DefaultTheme))
	unsubscribe := themeStore.Subscribe(func(t theme.Theme) {
		logrus.Infof("Theme changed to %s", t)
	})
	defer unsubscribe()

	sessionStore := sessions.NewStore(store)
	history := transcripts.NewHistory(store)

	// Initialize backend client and job plumbing
	client := backend.NewClient(cfg.SEOURL, cfg.RequestTimeout)
	jobPoller := poller.New(client, cfg.PollInterval, cfg.DetailedDataTimeout)
	simulator := progress.NewSimulator(cfg.ProgressDuration, cfg.ProgressTick)

	// Initialize notification services
	notificationService := notifications.NewService(cfg)

	orchestrator := chat.NewOrchestrator(chat.Dependencies{
		Backend:     client,
		Sessions:    sessionStore,
		Poller:      jobPoller,
		Progress:    simulator,
		Transcripts: history,
		Notifier:    notificationService,
	})
	defer orchestrator.Close()

	dashboardService := dashboard.NewService(sessionStore, client, orchestrator)

	// Seed the dashboard on first run
	initCtx, initCancel := context.WithTimeout(context.Background(), cfg.FetchTimeout)
	if err := client.CheckHealth(initCtx); err != nil {
		logrus.Warnf("SEO backend health check failed: %v", err)
	}
	if created, err := dashboardService.LoadInitial(initCtx); err != nil {
		logrus.Errorf("Error fetching initial dashboard data: %v", err)
	} else if created {
		logrus.Info("Initial dashboard session created")
	}
	initCancel()

	// Initialize scheduler
	schedulerService := scheduler.NewService(cfg, notificationService)

	// Start scheduler
	if err := schedulerService.Start(); err != nil {
		logrus.Fatalf("Failed to start scheduler: %v", err)
	}
	defer schedulerService.Stop()

	router := api.NewRouter(&api.Handler{
		Theme:     themeStore,
		Sessions:  sessionStore,
		Chat:      orchestrator,
		Dashboard: dashboardService,
		Servers:   schedulerService,
		Progress:  simulator,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start HTTP server in a goroutine
	go func() {
		logrus.Infof("HTTP server starting on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server failed: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")

	// Create a deadline for shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Shutdown HTTP server
	if err := server.Shutdown(ctx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}

	logrus.Info("Server exited")
}
