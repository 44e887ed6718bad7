package healthstore

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"healthsync/internal/domain/health"
)

// Fixture набор данных для заполнения хранилища из файла
type Fixture struct {
	Capabilities *health.Capabilities                  `json:"capabilities,omitempty"`
	Quantities   map[health.DataType][]FixtureQuantity `json:"quantities"`
	Sleep        []health.CategorySample               `json:"sleep"`
	Workouts     []health.WorkoutRecord                `json:"workouts"`
}

// FixtureQuantity измерение в файле, единица задается символом
type FixtureQuantity struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Value float64   `json:"value"`
	Unit  string    `json:"unit"`
}

// LoadFixture читает JSON-файл с данными и добавляет их в хранилище.
func (s *Store) LoadFixture(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("ошибка чтения файла данных: %w", err)
	}

	var fx Fixture
	if err := json.Unmarshal(data, &fx); err != nil {
		return fmt.Errorf("ошибка разбора файла данных: %w", err)
	}

	return s.Apply(fx)
}

// Apply добавляет данные набора в хранилище.
func (s *Store) Apply(fx Fixture) error {
	if fx.Capabilities != nil {
		s.SetCapabilities(*fx.Capabilities)
	}

	total := 0
	for t, samples := range fx.Quantities {
		for i, q := range samples {
			unit, err := health.ParseUnit(q.Unit)
			if err != nil {
				return fmt.Errorf("%s[%d]: %w", t, i, err)
			}
			end := q.End
			if end.IsZero() {
				end = q.Start
			}
			err = s.AddQuantity(t, QuantitySample{
				Start: q.Start,
				End:   end,
				Value: health.Quantity{Value: q.Value, Unit: unit},
			})
			if err != nil {
				return fmt.Errorf("%s[%d]: %w", t, i, err)
			}
			total++
		}
	}

	for i, c := range fx.Sleep {
		if err := s.AddSleep(c); err != nil {
			return fmt.Errorf("sleep[%d]: %w", i, err)
		}
	}
	for i, w := range fx.Workouts {
		if err := s.AddWorkout(w); err != nil {
			return fmt.Errorf("workouts[%d]: %w", i, err)
		}
	}

	s.log.Debug("Данные загружены",
		"quantities", total,
		"sleep", len(fx.Sleep),
		"workouts", len(fx.Workouts),
	)
	return nil
}
