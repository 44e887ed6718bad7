// Package transcode переводит записи сна и тренировок платформы в канонические формы.
package transcode

import (
	"golang.org/x/exp/slog"

	"healthsync/internal/domain/health"
)

// Имена стадий сна в исходящем отсчете
const (
	StageInBed = "inBed"
	StageAwake = "awake"
	StageREM   = "rem"
	StageCore  = "core"
	StageDeep  = "deep"
)

var baseStages = map[health.SleepStage]string{
	health.SleepInBed: StageInBed,
	health.SleepAwake: StageAwake,
}

var detailedStages = map[health.SleepStage]string{
	health.SleepAsleepREM:  StageREM,
	health.SleepAsleepCore: StageCore,
	health.SleepAsleepDeep: StageDeep,
}

type SleepTranscoder struct {
	log    *slog.Logger
	stages bool
}

// NewSleep создает транскодер сна. Стадии REM/core/deep распознаются,
// только если платформа их поддерживает.
func NewSleep(log *slog.Logger, caps health.Capabilities) *SleepTranscoder {
	return &SleepTranscoder{
		log:    log.With(slog.String("component", "sleep_transcoder")),
		stages: caps.SleepStages,
	}
}

// Transcode возвращает отсчеты сна и число отброшенных записей.
func (s *SleepTranscoder) Transcode(raw []health.CategorySample) ([]health.Sample, int) {
	samples := make([]health.Sample, 0, len(raw))
	dropped := 0

	for _, r := range raw {
		kind, ok := s.stageName(r.Value)
		if !ok {
			dropped++
			continue
		}

		end := r.End
		samples = append(samples, health.Sample{
			Timestamp:    r.Start,
			Value:        float64(int64(r.End.Sub(r.Start).Seconds())),
			Kind:         kind,
			EndTimestamp: &end,
			SourceID:     r.Source.ID,
			SourceName:   r.Source.Name,
		})
	}

	if dropped > 0 {
		s.log.Warn("Нераспознанные стадии сна отброшены",
			"dropped", dropped,
			"total", len(raw),
			"stages_supported", s.stages,
		)
	}

	return samples, dropped
}

func (s *SleepTranscoder) stageName(code health.SleepStage) (string, bool) {
	if name, ok := baseStages[code]; ok {
		return name, true
	}
	if !s.stages {
		return "", false
	}
	name, ok := detailedStages[code]
	return name, ok
}
