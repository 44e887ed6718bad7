package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"

	"healthsync/internal/domain/ingest"
)

const APIKeyHeader = "x-api-key"

type Auth struct {
	clients ingest.ClientServicer
	log     *slog.Logger
}

func New(clients ingest.ClientServicer, log *slog.Logger) *Auth {
	return &Auth{
		clients: clients,
		log:     log.With(slog.String("component", "auth_middleware")),
	}
}

type contextKey string

const ClientIDKey contextKey = "clientID"

// Middleware проверяет заголовок x-api-key и кладет ID клиента в контекст
func (a *Auth) Middleware() func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		key := ctx.Header(APIKeyHeader)
		if key == "" {
			a.log.Warn("missing api key", slog.String("remote_addr", ctx.RemoteAddr()))
			a.reject(ctx, http.StatusUnauthorized, "Unauthorized")
			return
		}

		client, err := a.clients.Authenticate(ctx.Context(), key)
		if err != nil {
			if errors.Is(err, ingest.ErrUnauthorized) {
				a.log.Warn("invalid api key", slog.String("remote_addr", ctx.RemoteAddr()))
				a.reject(ctx, http.StatusUnauthorized, "Unauthorized")
				return
			}
			a.log.Error("authenticate", slog.String("error", err.Error()))
			a.reject(ctx, http.StatusInternalServerError, "Internal Server Error")
			return
		}

		newCtx := context.WithValue(ctx.Context(), ClientIDKey, client.ID)
		next(huma.WithContext(ctx, newCtx))
	}
}

func (a *Auth) reject(ctx huma.Context, status int, msg string) {
	ctx.SetHeader("Content-Type", "application/json")
	ctx.SetStatus(status)

	if err := json.NewEncoder(ctx.BodyWriter()).Encode(map[string]string{"error": msg}); err != nil {
		a.log.Error("json encode", slog.String("error", err.Error()))
	}
}

func GetClientID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ClientIDKey).(string)
	return id, ok
}
