package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/medflow/shift-timer/internal/timer/consumers"
	"github.com/medflow/shift-timer/internal/timer/events"
	"github.com/medflow/shift-timer/internal/timer/handler"
	"github.com/medflow/shift-timer/internal/timer/service"
	"github.com/medflow/shift-timer/internal/timer/source"
	"github.com/medflow/shift-timer/pkg/config"
	"github.com/medflow/shift-timer/pkg/httputil"
	"github.com/medflow/shift-timer/pkg/logger"
	"github.com/medflow/shift-timer/pkg/messaging"
	"github.com/medflow/shift-timer/pkg/session"
)

func main() {
	// Load configuration with validation (fails fast in production if required config is missing)
	cfg, err := config.LoadWithValidation(events.ServiceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(events.ServiceName, cfg.Server.Environment)
	log.Info().
		Str("source", cfg.Timer.Source).
		Str("entry_range", cfg.Timer.EntryRange).
		Msg("starting Timer Service")

	backend, err := source.Open(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open timer source")
	}
	defer backend.Close()

	rmq, err := messaging.New(&cfg.RabbitMQ, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}
	defer rmq.Close()

	publisher, err := events.NewTimerEventPublisher(rmq, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create event publisher")
	}

	timers := service.NewTimerService(backend.Sources, publisher, service.OptionsFromConfig(&cfg.Timer), log)
	timerHandler := handler.NewTimerHandler(timers, cfg.Timer.DefaultTimezone, log)

	entryConsumer, err := consumers.NewEntryEventConsumer(rmq, timers, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create entry event consumer")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := entryConsumer.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start entry event consumer")
	}

	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(httputil.SessionMiddleware(session.NewValidator(&cfg.JWT))) // /health is exempt

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]interface{}{
			"status":   "healthy",
			"service":  events.ServiceName,
			"source":   backend.Health(r.Context()),
			"rabbitmq": rmq.Health(),
			"sessions": timers.Count(),
		})
	})

	r.Route("/api/v1/timer", timerHandler.Routes)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	// Stop every tick before the sources go away
	timers.CloseAll()

	log.Info().Msg("server stopped")
}
