package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/jhilgenberg/go-e-report/config"
	"github.com/jhilgenberg/go-e-report/crypto"
	"github.com/jhilgenberg/go-e-report/handlers"
	"github.com/jhilgenberg/go-e-report/logging"
	"github.com/jhilgenberg/go-e-report/metrics"
	"github.com/jhilgenberg/go-e-report/middleware"
	"github.com/jhilgenberg/go-e-report/models"
	"github.com/jhilgenberg/go-e-report/services"
	"github.com/jhilgenberg/go-e-report/services/goe"
	"github.com/jhilgenberg/go-e-report/settings"
)

const usage = `usage: go-e-report [serve]
       go-e-report report -from dd.mm.yyyy -to dd.mm.yyyy
       go-e-report report -month yyyy-mm`

// app holds the components shared by both subcommands.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	store   *settings.Store
	reports *services.ReportService
	mqtt    *services.MQTTNotifier
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	a := newApp(cfg, logger)
	defer a.close()

	sub := "serve"
	var rest []string
	if len(os.Args) > 1 {
		sub = os.Args[1]
		rest = os.Args[2:]
	}

	switch sub {
	case "serve":
		err = a.serve()
	case "report":
		err = a.report(rest)
	case "-h", "--help", "help":
		fmt.Println(usage)
		return
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	if err != nil {
		logger.Error("exiting", zap.Error(err))
		os.Exit(1)
	}
}

func newApp(cfg *config.Config, logger *zap.Logger) *app {
	loc := cfg.Location()
	store := settings.NewStore(cfg.SettingsFile, crypto.KeyFromString(cfg.SettingsEncryptionKey), logger.Named("settings"))

	client := goe.NewClient(&http.Client{Timeout: cfg.HTTPTimeout}, goe.Options{
		PollInterval:    cfg.PollInterval,
		MaxPollAttempts: cfg.MaxPollAttempts,
		Location:        loc,
	}, logger.Named("goe"))

	renderer := services.NewPDFGenerator(services.PDFOptions{
		OutputDir: cfg.OutputDir,
		Prefix:    cfg.ReportPrefix,
		Language:  cfg.Language,
		Location:  loc,
	}, logger.Named("pdf"))

	var exporter services.SpreadsheetExporter
	if cfg.ExportXLSX {
		exporter = services.NewXLSXExporter(cfg.Language, logger.Named("xlsx"))
	}

	a := &app{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		reports: services.NewReportService(client, renderer, exporter, logger.Named("report")),
	}

	if cfg.MQTTBroker != "" {
		n, err := services.NewMQTTNotifier(services.MQTTOptions{
			Broker:   cfg.MQTTBroker,
			Topic:    cfg.MQTTTopic,
			Username: cfg.MQTTUsername,
			Password: cfg.MQTTPassword,
		}, logger.Named("mqtt"))
		if err != nil {
			logger.Warn("mqtt notifications disabled", zap.Error(err))
		} else {
			a.mqtt = n
		}
	}

	metrics.Init()
	return a
}

func (a *app) close() {
	if a.mqtt != nil {
		a.mqtt.Close()
	}
}

// notifiers returns the always-on notifiers plus extra.
func (a *app) notifiers(extra ...services.Notifier) services.MultiNotifier {
	n := services.MultiNotifier{services.NewLogNotifier(a.logger.Named("progress"))}
	if a.mqtt != nil {
		n = append(n, a.mqtt)
	}
	return append(n, extra...)
}

func (a *app) report(args []string) error {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	from := fs.String("from", "", "first day, dd.mm.yyyy")
	to := fs.String("to", "", "last day, dd.mm.yyyy")
	month := fs.String("month", "", "whole month, yyyy-mm")
	if err := fs.Parse(args); err != nil {
		return err
	}

	rng, err := reportRange(*from, *to, *month)
	if err != nil {
		return err
	}

	if !a.store.Exists() {
		a.logger.Warn("settings file not found, using defaults", zap.String("path", a.store.Path()))
	}
	s, err := a.store.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := a.reports.GenerateReport(ctx, s.Configuration(rng), a.notifiers())
	if err != nil {
		return err
	}

	fmt.Println(result.PDFPath)
	if result.XLSXPath != "" {
		fmt.Println(result.XLSXPath)
	}
	return nil
}

func reportRange(from, to, month string) (models.DateRange, error) {
	if month != "" {
		t, err := time.Parse("2006-01", strings.TrimSpace(month))
		if err != nil {
			return models.DateRange{}, models.Errorf(models.KindConfiguration, "invalid month %q, expected yyyy-mm", month)
		}
		return models.MonthRange(t.Year(), t.Month())
	}
	if from == "" || to == "" {
		return models.DateRange{}, models.Errorf(models.KindConfiguration, "either -month or both -from and -to are required")
	}
	start, err := models.ParseDate(from)
	if err != nil {
		return models.DateRange{}, err
	}
	end, err := models.ParseDate(to)
	if err != nil {
		return models.DateRange{}, err
	}
	return models.NewDateRange(start, end)
}

func (a *app) serve() error {
	cfg := a.cfg
	logger := a.logger

	hub := handlers.NewProgressHub(cfg.CORSOrigins, logger.Named("ws"))
	authHandler := handlers.NewAuthHandler(cfg.UIPasswordHash, cfg.JWTSecret)
	settingsHandler := handlers.NewSettingsHandler(a.store, logger.Named("settings"))
	reportHandler := handlers.NewReportHandler(a.reports, a.store, a.notifiers(hub), cfg.OutputDir, cfg.ReportPrefix, logger.Named("reports"))

	r := mux.NewRouter()

	r.Use(recoverMiddleware(logger))
	r.Use(loggingMiddleware(logger))

	r.HandleFunc("/api/auth/login", authHandler.Login).Methods("POST")
	r.HandleFunc("/api/health", healthCheck).Methods("GET")
	r.Handle("/metrics", metrics.Handler()).Methods("GET")

	requireAuth := middleware.AuthMiddleware(cfg.JWTSecret, authHandler.Enabled())
	r.Handle("/ws/progress", requireAuth(http.HandlerFunc(hub.ServeWS))).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.Use(requireAuth)

	api.HandleFunc("/settings", settingsHandler.Get).Methods("GET")
	api.HandleFunc("/settings", settingsHandler.Update).Methods("PUT")

	api.HandleFunc("/reports", reportHandler.Generate).Methods("POST")
	api.HandleFunc("/reports", reportHandler.List).Methods("GET")
	api.HandleFunc("/reports/{name}", reportHandler.Download).Methods("GET")

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
		Debug:            false,
	})

	// a report run polls the export for up to a minute
	server := &http.Server{
		Addr:         cfg.ServerAddress,
		Handler:      c.Handler(r),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 180 * time.Second,
		IdleTimeout:  180 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("addr", cfg.ServerAddress),
			zap.Bool("auth", authHandler.Enabled()),
			zap.String("settings", cfg.SettingsFile),
			zap.String("output_dir", cfg.OutputDir))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func recoverMiddleware(logger *zap.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("panic recovered",
						zap.Any("panic", err),
						zap.ByteString("stack", debug.Stack()))

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func loggingMiddleware(logger *zap.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("remote", r.RemoteAddr),
				zap.Duration("took", time.Since(start)))
		})
	}
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	})
}
