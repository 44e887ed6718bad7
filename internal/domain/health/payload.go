package health

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// PayloadKind тег варианта TypedPayload на проводе
type PayloadKind string

const (
	PayloadSample  PayloadKind = "sample"
	PayloadWorkout PayloadKind = "workout"
)

var errEmptyPayload = errors.New("payload kind is not set")

// TypedPayload размеченное объединение: либо отсчеты, либо тренировки.
// Поля закрыты, построить значение можно только через SamplePayload и WorkoutPayload.
type TypedPayload struct {
	kind     PayloadKind
	samples  []Sample
	workouts []WorkoutSample
}

// SamplePayload строит вариант с отсчетами.
func SamplePayload(items []Sample) TypedPayload {
	if items == nil {
		items = []Sample{}
	}
	return TypedPayload{kind: PayloadSample, samples: items}
}

// WorkoutPayload строит вариант с тренировками.
func WorkoutPayload(items []WorkoutSample) TypedPayload {
	if items == nil {
		items = []WorkoutSample{}
	}
	return TypedPayload{kind: PayloadWorkout, workouts: items}
}

// Kind возвращает тег варианта.
func (p TypedPayload) Kind() PayloadKind {
	return p.kind
}

// Len возвращает количество элементов варианта.
func (p TypedPayload) Len() int {
	switch p.kind {
	case PayloadSample:
		return len(p.samples)
	case PayloadWorkout:
		return len(p.workouts)
	}
	return 0
}

// Match вызывает обработчик, соответствующий варианту.
// Оба обработчика обязательны, так что новый вариант ломает компиляцию всех вызовов.
func (p TypedPayload) Match(onSample func([]Sample), onWorkout func([]WorkoutSample)) {
	switch p.kind {
	case PayloadSample:
		onSample(p.samples)
	case PayloadWorkout:
		onWorkout(p.workouts)
	}
}

type wirePayload struct {
	Kind  PayloadKind     `json:"kind"`
	Items json.RawMessage `json:"items"`
}

func (p TypedPayload) MarshalJSON() ([]byte, error) {
	var (
		items []byte
		err   error
	)
	switch p.kind {
	case PayloadSample:
		items, err = json.Marshal(p.samples)
	case PayloadWorkout:
		items, err = json.Marshal(p.workouts)
	default:
		return nil, errEmptyPayload
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(wirePayload{Kind: p.kind, Items: items})
}

// UnmarshalJSON разбирает вариант по тегу. Неизвестный или пустой тег дает ошибку KindDecode.
func (p *TypedPayload) UnmarshalJSON(data []byte) error {
	var w wirePayload
	if err := json.Unmarshal(data, &w); err != nil {
		return NewError(KindDecode, "decode payload", "", err)
	}

	items := []byte(w.Items)
	if len(items) == 0 || string(items) == "null" {
		items = []byte("[]")
	}

	switch w.Kind {
	case PayloadSample:
		var samples []Sample
		if err := json.Unmarshal(items, &samples); err != nil {
			return NewError(KindDecode, "decode payload", "", err).With("kind", w.Kind)
		}
		*p = SamplePayload(samples)
	case PayloadWorkout:
		var workouts []WorkoutSample
		if err := json.Unmarshal(items, &workouts); err != nil {
			return NewError(KindDecode, "decode payload", "", err).With("kind", w.Kind)
		}
		*p = WorkoutPayload(workouts)
	default:
		return NewError(KindDecode, "decode payload", "", fmt.Errorf("unknown payload kind %q", w.Kind)).
			With("kind", w.Kind)
	}
	return nil
}

// Batch исходящий пакет: тип данных -> вариант
type Batch map[DataType]TypedPayload

// Keys возвращает типы пакета в стабильном порядке.
func (b Batch) Keys() []DataType {
	keys := make([]DataType, 0, len(b))
	for k := range b {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// EncodeBatch сериализует пакет в JSON.
func EncodeBatch(b Batch) ([]byte, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("encode batch: %w", err)
	}
	return data, nil
}

// DecodeBatch разбирает пакет. Любая ошибка разбора имеет класс KindDecode.
func DecodeBatch(data []byte) (Batch, error) {
	var b Batch
	if err := json.Unmarshal(data, &b); err != nil {
		if _, ok := KindOf(err); ok {
			return nil, err
		}
		return nil, NewError(KindDecode, "decode batch", "", err)
	}
	if b == nil {
		return nil, NewError(KindDecode, "decode batch", "", errors.New("batch is null"))
	}
	return b, nil
}
