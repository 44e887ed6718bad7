package webhook

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"

	"healthsync/internal/app/server/api/http/middleware/auth"
	"healthsync/internal/domain/ingest"
)

type Handler struct {
	service      ingest.Servicer
	log          *slog.Logger
	middleware   huma.Middlewares
	maxBodyBytes int64
}

func NewHandler(service ingest.Servicer, log *slog.Logger, mws huma.Middlewares, maxBodyBytes int64) *Handler {
	return &Handler{
		service:      service,
		log:          log,
		middleware:   mws,
		maxBodyBytes: maxBodyBytes,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.receiveOp(), h.receive)
}

func (h *Handler) receive(ctx context.Context, input *receiveInput) (*receiveOutput, error) {
	clientID, ok := auth.GetClientID(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("Unauthorized")
	}

	res, err := h.service.Ingest(ctx, clientID, ingest.Envelope{
		UserID: input.Body.UserID,
		Data:   input.Body.Data,
		Hourly: input.Body.Hourly,
	})
	if err != nil {
		return nil, h.toStatus(err)
	}

	types := make([]string, 0, len(res.Types))
	for _, t := range res.Types {
		types = append(types, string(t))
	}

	return &receiveOutput{
		Body: receiveResponse{
			DeliveryID: res.DeliveryID.String(),
			Kind:       string(res.Kind),
			Types:      types,
			Samples:    res.Samples,
			Workouts:   res.Workouts,
		},
	}, nil
}

func (h *Handler) toStatus(err error) error {
	var de *ingest.DomainError
	if errors.As(err, &de) {
		switch de.Code {
		case "decode_error":
			return huma.Error422UnprocessableEntity(de.Message)
		case "invalid_input":
			return huma.Error400BadRequest(de.Message)
		}
	}

	h.log.Error("ingest failed", slog.String("error", err.Error()))
	return huma.Error500InternalServerError("failed to store delivery")
}
