package transcode

import (
	"golang.org/x/exp/slog"

	"healthsync/internal/domain/health"
)

type WorkoutTranscoder struct {
	log   *slog.Logger
	stats bool
}

// NewWorkout создает транскодер тренировок. Калории и дистанция извлекаются,
// только если платформа отдает вложенную статистику тренировки.
func NewWorkout(log *slog.Logger, caps health.Capabilities) *WorkoutTranscoder {
	return &WorkoutTranscoder{
		log:   log.With(slog.String("component", "workout_transcoder")),
		stats: caps.WorkoutStatistics,
	}
}

func (w *WorkoutTranscoder) Transcode(raw []health.WorkoutRecord) []health.WorkoutSample {
	out := make([]health.WorkoutSample, 0, len(raw))

	for _, r := range raw {
		ws := health.WorkoutSample{
			StartTimestamp:  r.Start,
			EndTimestamp:    r.End,
			ActivityType:    r.ActivityType,
			DurationSeconds: int(r.Duration.Seconds()),
			SourceID:        r.Source.ID,
			SourceName:      r.Source.Name,
		}

		if w.stats && r.Statistics != nil {
			ws.Kcal = w.extract(r, health.ActiveEnergyBurned, health.Kilocalorie)
			ws.DistanceMeters = w.extract(r, health.DistanceWalkingRunning, health.Meter)
		}

		out = append(out, ws)
	}

	return out
}

func (w *WorkoutTranscoder) extract(r health.WorkoutRecord, t health.DataType, unit health.Unit) *float64 {
	q, ok := r.Statistics[t]
	if !ok {
		return nil
	}
	v, err := q.In(unit)
	if err != nil {
		w.log.Warn("Несовместимая единица статистики тренировки",
			"workout_id", r.ID,
			"data_type", t,
			"unit", q.Unit.String(),
		)
		return nil
	}
	v = health.Round3(v)
	return &v
}
