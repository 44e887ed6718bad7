package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/exp/slog"

	"healthsync/internal/domain/health"
	"healthsync/internal/domain/ingest"
)

const (
	insertDelivery = `
		INSERT INTO deliveries (id, client_id, user_id, kind, hourly, data_types, body_size, received_at)
		VALUES ($1, $2::uuid, $3, $4, $5, $6, $7, $8)
	`

	// Повтор отсчета за ту же корзину заменяет значение
	upsertSample = `
		INSERT INTO samples (user_id, data_type, kind, ts, end_ts, value, source_id, source_name, delivery_id, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		ON CONFLICT (user_id, data_type, kind, ts) DO UPDATE SET
			end_ts = EXCLUDED.end_ts,
			value = EXCLUDED.value,
			source_id = EXCLUDED.source_id,
			source_name = EXCLUDED.source_name,
			delivery_id = EXCLUDED.delivery_id,
			updated_at = NOW()
	`

	upsertWorkout = `
		INSERT INTO workouts (user_id, source_id, start_ts, end_ts, activity_type, duration_seconds,
		                      source_name, kcal, distance_meters, delivery_id, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
		ON CONFLICT (user_id, source_id, start_ts, activity_type) DO UPDATE SET
			end_ts = EXCLUDED.end_ts,
			duration_seconds = EXCLUDED.duration_seconds,
			source_name = EXCLUDED.source_name,
			kcal = EXCLUDED.kcal,
			distance_meters = EXCLUDED.distance_meters,
			delivery_id = EXCLUDED.delivery_id,
			updated_at = NOW()
	`

	insertSDKError = `
		INSERT INTO sdk_errors (delivery_id, user_id, message, kind, op, data_type, context, received_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
)

// IngestRepository хранит принятые пакеты в PostgreSQL
type IngestRepository struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

func NewIngestRepository(pool *pgxpool.Pool, log *slog.Logger) *IngestRepository {
	return &IngestRepository{
		pool: pool,
		log:  log,
	}
}

// SaveBatch записывает доставку и все ее отсчеты в одной транзакции
func (r *IngestRepository) SaveBatch(ctx context.Context, d ingest.Delivery, samples []ingest.SampleRow, workouts []ingest.WorkoutRow) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := r.insertDelivery(ctx, tx, d); err != nil {
			return err
		}

		b := &pgx.Batch{}
		for _, s := range samples {
			b.Queue(upsertSample,
				s.UserID, string(s.DataType), s.Kind, s.Timestamp, s.EndTimestamp,
				s.Value, s.SourceID, s.SourceName, d.ID,
			)
		}
		for _, w := range workouts {
			b.Queue(upsertWorkout,
				w.UserID, w.SourceID, w.StartTimestamp, w.EndTimestamp, w.ActivityType,
				w.DurationSeconds, w.SourceName, w.Kcal, w.DistanceMeters, d.ID,
			)
		}
		if b.Len() == 0 {
			return nil
		}

		if err := tx.SendBatch(ctx, b).Close(); err != nil {
			return fmt.Errorf("upsert samples: %w", err)
		}
		return nil
	})
}

// SaveError записывает доставку с отчетом клиента об ошибке
func (r *IngestRepository) SaveError(ctx context.Context, d ingest.Delivery, report ingest.ErrorReport) error {
	ctxMap := report.Context
	if ctxMap == nil {
		ctxMap = map[string]string{}
	}

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := r.insertDelivery(ctx, tx, d); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, insertSDKError,
			d.ID, d.UserID, report.Error, report.Kind, report.Op, string(report.DataType), ctxMap, d.ReceivedAt)
		if err != nil {
			return fmt.Errorf("insert sdk error: %w", err)
		}
		return nil
	})
}

func (r *IngestRepository) insertDelivery(ctx context.Context, tx pgx.Tx, d ingest.Delivery) error {
	types := make([]string, 0, len(d.Types))
	for _, t := range d.Types {
		types = append(types, string(t))
	}

	_, err := tx.Exec(ctx, insertDelivery,
		d.ID, d.ClientID, d.UserID, string(d.Kind), d.Hourly, types, d.BodySize, d.ReceivedAt)
	if err != nil {
		return fmt.Errorf("insert delivery: %w", err)
	}
	return nil
}

// ListSamples возвращает сохраненные отсчеты пользователя по типу, по времени
func (r *IngestRepository) ListSamples(ctx context.Context, userID string, t health.DataType) ([]ingest.SampleRow, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT kind, ts, end_ts, value, source_id, source_name
		FROM samples
		WHERE user_id = $1 AND data_type = $2
		ORDER BY ts, kind
	`, userID, string(t))
	if err != nil {
		return nil, fmt.Errorf("select samples: %w", err)
	}
	defer rows.Close()

	out := make([]ingest.SampleRow, 0)
	for rows.Next() {
		row := ingest.SampleRow{UserID: userID, DataType: t}
		var end *time.Time
		if err := rows.Scan(&row.Kind, &row.Timestamp, &end, &row.Value, &row.SourceID, &row.SourceName); err != nil {
			return nil, fmt.Errorf("scan sample: %w", err)
		}
		row.EndTimestamp = end
		out = append(out, row)
	}
	return out, rows.Err()
}

// ListWorkouts возвращает тренировки пользователя по времени начала
func (r *IngestRepository) ListWorkouts(ctx context.Context, userID string) ([]ingest.WorkoutRow, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT source_id, start_ts, end_ts, activity_type, duration_seconds, source_name, kcal, distance_meters
		FROM workouts
		WHERE user_id = $1
		ORDER BY start_ts
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("select workouts: %w", err)
	}
	defer rows.Close()

	out := make([]ingest.WorkoutRow, 0)
	for rows.Next() {
		row := ingest.WorkoutRow{UserID: userID}
		if err := rows.Scan(&row.SourceID, &row.StartTimestamp, &row.EndTimestamp, &row.ActivityType,
			&row.DurationSeconds, &row.SourceName, &row.Kcal, &row.DistanceMeters); err != nil {
			return nil, fmt.Errorf("scan workout: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// CountErrors возвращает число отчетов об ошибках пользователя
func (r *IngestRepository) CountErrors(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM sdk_errors WHERE user_id = $1`, userID).Scan(&n)
	return n, err
}
