package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/exp/slog"

	"healthsync/internal/domain/health"
)

type Servicer interface {
	Ingest(ctx context.Context, clientID string, env Envelope) (*Result, error)
}

type Service struct {
	repo Repository
	log  *slog.Logger
	now  func() time.Time
}

func NewService(repo Repository, log *slog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log.With(slog.String("component", "ingest")),
		now:  time.Now,
	}
}

// Ingest разбирает поле data и сохраняет пакет или отчет об ошибке.
// Повторно присланные отсчеты перезаписывают прежние значения.
func (s *Service) Ingest(ctx context.Context, clientID string, env Envelope) (*Result, error) {
	if env.UserID == "" {
		return nil, &DomainError{Err: ErrInvalidInput, Message: "metriportUserId is required", Code: "invalid_input"}
	}
	if env.Data == "" {
		return nil, &DomainError{Err: ErrInvalidInput, Message: "data is required", Code: "invalid_input"}
	}

	d := Delivery{
		ID:         uuid.New(),
		ClientID:   clientID,
		UserID:     env.UserID,
		Hourly:     env.Hourly,
		BodySize:   len(env.Data),
		ReceivedAt: s.now().UTC(),
	}

	if report, ok := parseErrorReport(env.Data); ok {
		d.Kind = KindError
		if err := s.repo.SaveError(ctx, d, report); err != nil {
			return nil, fmt.Errorf("save error report: %w", err)
		}

		s.log.Warn("client reported error",
			"delivery_id", d.ID,
			"user_id", d.UserID,
			"kind", report.Kind,
			"data_type", report.DataType,
			"error", report.Error,
		)
		return &Result{DeliveryID: d.ID, Kind: KindError, Types: []health.DataType{}}, nil
	}

	batch, err := health.DecodeBatch([]byte(env.Data))
	if err != nil {
		s.log.Debug("decode failed", "user_id", env.UserID, "error", err)
		return nil, &DomainError{Err: err, Message: err.Error(), Code: "decode_error"}
	}
	for _, t := range batch.Keys() {
		if err := t.Validate(); err != nil {
			derr := health.NewError(health.KindDecode, "decode batch", t, err)
			return nil, &DomainError{Err: derr, Message: derr.Error(), Code: "decode_error"}
		}
	}

	d.Kind = KindBatch
	d.Types = batch.Keys()

	samples, workouts := flatten(env.UserID, batch)
	if err := s.repo.SaveBatch(ctx, d, samples, workouts); err != nil {
		return nil, fmt.Errorf("save batch: %w", err)
	}

	s.log.Info("batch stored",
		"delivery_id", d.ID,
		"user_id", d.UserID,
		"types", len(d.Types),
		"samples", len(samples),
		"workouts", len(workouts),
	)

	return &Result{
		DeliveryID: d.ID,
		Kind:       KindBatch,
		Types:      d.Types,
		Samples:    len(samples),
		Workouts:   len(workouts),
	}, nil
}

// parseErrorReport распознает тело вида {"error": "..."}.
func parseErrorReport(data string) (ErrorReport, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(data), &fields); err != nil {
		return ErrorReport{}, false
	}
	raw, ok := fields["error"]
	if !ok {
		return ErrorReport{}, false
	}

	var msg string
	if err := json.Unmarshal(raw, &msg); err != nil {
		return ErrorReport{}, false
	}

	var report ErrorReport
	if err := json.Unmarshal([]byte(data), &report); err != nil {
		report = ErrorReport{}
	}
	report.Error = msg
	return report, true
}

func flatten(userID string, batch health.Batch) ([]SampleRow, []WorkoutRow) {
	samples := make([]SampleRow, 0)
	workouts := make([]WorkoutRow, 0)

	for _, t := range batch.Keys() {
		batch[t].Match(
			func(items []health.Sample) {
				for _, smp := range items {
					samples = append(samples, SampleRow{UserID: userID, DataType: t, Sample: smp})
				}
			},
			func(items []health.WorkoutSample) {
				for _, w := range items {
					workouts = append(workouts, WorkoutRow{UserID: userID, WorkoutSample: w})
				}
			},
		)
	}
	return samples, workouts
}
