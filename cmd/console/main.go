package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aidso/geo-console/internal/api"
	"github.com/aidso/geo-console/internal/auth"
	"github.com/aidso/geo-console/internal/billing"
	"github.com/aidso/geo-console/internal/brand"
	"github.com/aidso/geo-console/internal/config"
	"github.com/aidso/geo-console/internal/models"
	"github.com/aidso/geo-console/internal/notifications"
	"github.com/aidso/geo-console/internal/scheduler"
	"github.com/aidso/geo-console/internal/storage"
	"github.com/aidso/geo-console/internal/tasks"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	// Load environment variables from .env file if it exists
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, using environment variables")
	}

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

	logrus.Info("Starting GEO console agent")

	stateStore, err := storage.NewLocalStorage(cfg.StateDir)
	if err != nil {
		logrus.Fatalf("Failed to initialize state storage: %v", err)
	}
	downloads, err := storage.NewLocalStorage(cfg.DownloadDir)
	if err != nil {
		logrus.Fatalf("Failed to initialize download storage: %v", err)
	}

	// Optional export archive
	var archive storage.StorageInterface
	if cfg.StorageAccount != "" {
		azure, err := storage.NewAzureStorage(cfg.StorageAccount, cfg.StorageContainer)
		if err != nil {
			logrus.Fatalf("Failed to initialize export archive: %v", err)
		}
		archive = azure
	}

	backend := api.New(cfg.APIBaseURL)

	notifier := notifications.NewService(cfg)

	registry := tasks.NewRegistry(backend)
	registry.SetTerminalListener(notifier)

	authStore := auth.NewStore(backend, stateStore)
	authStore.OnSessionChange(func(loggedIn bool) {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		registry.SessionChanged(ctx, loggedIn)
	})

	estimator := billing.NewEstimator(backend)
	brandView := brand.NewView(backend, downloads, archive)

	initCtx, cancelInit := context.WithTimeout(context.Background(), 30*time.Second)
	authStore.Init(initCtx)
	estimator.LoadPricing(initCtx)
	if site, err := backend.PublicConfig(initCtx); err != nil {
		logrus.Warnf("Failed to fetch public config: %v", err)
	} else {
		logrus.Infof("Connected to %s (%d models enabled)", site.SiteName, len(site.EnabledModels))
	}
	cancelInit()

	schedulerService := scheduler.NewService(cfg, registry)
	if err := schedulerService.Start(); err != nil {
		logrus.Fatalf("Failed to start scheduler: %v", err)
	}
	defer schedulerService.Stop()

	// Local control surface
	router := mux.NewRouter()
	router.HandleFunc("/health", healthCheckHandler).Methods("GET")
	router.HandleFunc("/api/state/tasks", tasksHandler(registry)).Methods("GET")
	router.HandleFunc("/api/state/session", sessionHandler(authStore)).Methods("GET")
	router.HandleFunc("/api/state/estimate", estimateHandler(estimator)).Methods("GET")
	router.HandleFunc("/api/state/brand-keywords", brandKeywordsHandler(brandView)).Methods("GET")
	router.HandleFunc("/trigger/refresh", refreshHandler(registry)).Methods("POST")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logrus.Infof("Control server starting on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("Control server failed: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}

	logrus.Info("Agent exited")
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy","timestamp":"` + time.Now().Format(time.RFC3339) + `"}`))
}

func tasksHandler(registry *tasks.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{
			"tasks":    registry.Tasks(),
			"activeId": registry.ActiveID(),
			"polling":  registry.PollingCount(),
		})
	}
}

func sessionHandler(store *auth.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{
			"loggedIn":  store.HasSession(),
			"user":      store.User(),
			"sessionId": store.SessionID(),
		})
	}
}

func estimateHandler(estimator *billing.Estimator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		modelKeys := strings.Split(r.URL.Query().Get("models"), ",")
		searchType := models.SearchType(r.URL.Query().Get("searchType"))
		if searchType == "" {
			searchType = models.SearchQuick
		}
		writeJSON(w, map[string]interface{}{
			"costUnits": estimator.Estimate(modelKeys, searchType),
		})
	}
}

func brandKeywordsHandler(view *brand.View) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := view.LoadKeywords(r.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		writeJSON(w, view.Keywords())
	}
}

func refreshHandler(registry *tasks.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := registry.Refresh(ctx); err != nil {
				logrus.Errorf("Manual task refresh failed: %v", err)
			}
		}()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"message":"Refresh triggered"}`))
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.Errorf("Failed to encode response: %v", err)
	}
}
