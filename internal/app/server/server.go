package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/exp/slog"
	"golang.org/x/sync/errgroup"

	"healthsync/internal/app/server/api"
	"healthsync/internal/app/server/config"
	"healthsync/internal/domain/ingest"
	"healthsync/internal/infrastructure/storage/postgres"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 15 * time.Second
)

// Server HTTP-сервер приема вебхуков
type Server struct {
	cfg     *config.Config
	log     *slog.Logger
	storage *postgres.Storage
	http    *http.Server
}

// New подключается к базе и собирает обработчики
func New(ctx context.Context, cfg *config.Config, log *slog.Logger) (*Server, error) {
	storage, err := postgres.New(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}

	mux := api.New(api.Deps{
		DB:           storage,
		Ingest:       ingest.NewService(storage.Ingest(), log),
		Clients:      ingest.NewClientService(storage.Clients(), log),
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
	}, log)

	return &Server{
		cfg:     cfg,
		log:     log,
		storage: storage,
		http: &http.Server{
			Addr:              cfg.Server.RunAddress,
			Handler:           mux,
			ReadHeaderTimeout: readHeaderTimeout,
		},
	}, nil
}

// Run обслуживает запросы до отмены ctx, затем корректно останавливается
func (s *Server) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.log.Info("server started", slog.String("addr", s.cfg.Server.RunAddress), slog.String("env", s.cfg.Env))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		s.log.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	if cerr := s.storage.Close(); cerr != nil {
		s.log.Error("close storage", slog.String("error", cerr.Error()))
	}
	return err
}

// Clients сервис ключей для административных команд
func (s *Server) Clients() *ingest.ClientService {
	return ingest.NewClientService(s.storage.Clients(), s.log)
}

func (s *Server) Close() error {
	return s.storage.Close()
}
