package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/jcuenca6779/urbandrive/internal/api/handlers/http/game"
	"github.com/jcuenca6779/urbandrive/internal/api/handlers/http/reports"
	"github.com/jcuenca6779/urbandrive/internal/api/handlers/http/system"
	"github.com/jcuenca6779/urbandrive/internal/config"
	"github.com/jcuenca6779/urbandrive/internal/middleware"
	"github.com/jcuenca6779/urbandrive/internal/service"
)

type Server struct {
	logger *slog.Logger
	router *chi.Mux
	cfg    config.Config
}

func NewServer(cfg *config.Config, logger *slog.Logger, svc *service.Service) *Server {
	reportsHandler := reports.NewHandler(logger, svc.Incidents)
	gameHandler := game.NewHandler(logger, svc.Game)
	systemHandler := system.NewHandler(logger)

	r := InitRouter(reportsHandler, gameHandler, systemHandler, logger)

	return &Server{
		logger: logger,
		router: r,
		cfg:    *cfg,
	}
}

func InitRouter(reportsHandler *reports.Handler, gameHandler *game.Handler, systemHandler *system.Handler, logger *slog.Logger) *chi.Mux {
	r := chi.NewMux()

	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Logger)

	r.Route("/api/v1", func(api chi.Router) {
		// REPORTS
		api.Group(func(tr chi.Router) {
			tr.Use(middleware.Limit(10, 20, 5*time.Minute, logger))

			tr.Post("/reportar", reportsHandler.ReportCreate)

			tr.Route("/reportes", func(rr chi.Router) {
				rr.Get("/", reportsHandler.ReportList)
				rr.Get("/cercanos", reportsHandler.ReportNearby)
				rr.Post("/{id}/validar", reportsHandler.ReportValidate)
			})
		})

		// GAMIFICATION (read side)
		api.Group(func(gr chi.Router) {
			gr.Use(middleware.Limit(20, 40, 5*time.Minute, logger))

			gr.Get("/leaderboard", gameHandler.GameLeaderboard)
			gr.Get("/profile/{user_id}", gameHandler.GameProfile)
		})

		// SYSTEM
		api.Get("/health", systemHandler.SystemHealth)
	})

	return r
}

func (s *Server) Run(ctx context.Context) error {
	port := s.cfg.Http.Port
	if !strings.HasPrefix(port, ":") {
		port = ":" + port
	}

	srv := &http.Server{
		Addr:         port,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Http.ReadTimeout,
		WriteTimeout: s.cfg.Http.WriteTimeout,
		IdleTimeout:  30 * time.Second,
	}

	errChan := make(chan error, 1)

	go func() {
		s.logger.Info("starting HTTP server",
			slog.String("addr", srv.Addr),
			slog.Duration("read_timeout", s.cfg.Http.ReadTimeout),
			slog.Duration("write_timeout", s.cfg.Http.WriteTimeout),
		)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("ListenAndServe error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP server", slog.String("reason", ctx.Err().Error()))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Http.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("server shutdown failed", slog.Any("error", err))
			return err
		}
		return nil

	case err := <-errChan:
		return err
	}
}
