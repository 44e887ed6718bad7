// Package healthstore содержит хранилище данных здоровья в памяти.
// Оно повторяет поведение платформенного хранилища: статистику по корзинам,
// ленту изменений с курсорами и удалениями, разрешения и фоновую доставку.
package healthstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"golang.org/x/exp/slog"

	"healthsync/internal/domain/health"
)

var (
	ErrNotAuthorized = errors.New("нет разрешения на чтение типа")
	ErrBadAnchor     = errors.New("некорректный курсор ленты")
	ErrNotFound      = errors.New("запись не найдена")
)

// QuantitySample одно сырое измерение статистического типа
type QuantitySample struct {
	Start time.Time       `json:"start"`
	End   time.Time       `json:"end"`
	Value health.Quantity `json:"quantity"`
}

// entry запись ленты изменений с порядковым номером
type entry struct {
	seq      uint64
	category *health.CategorySample
	workout  *health.WorkoutRecord
}

func (e entry) id() string {
	if e.workout != nil {
		return e.workout.ID
	}
	return e.category.ID
}

func (e entry) start() time.Time {
	if e.workout != nil {
		return e.workout.Start
	}
	return e.category.Start
}

type tombstone struct {
	seq uint64
	id  string
}

// Store хранилище данных здоровья в памяти
type Store struct {
	log *slog.Logger

	mu         sync.RWMutex
	caps       health.Capabilities
	grant      bool
	authorized map[health.DataType]bool
	background map[health.DataType]bool
	units      map[health.DataType]health.Unit
	quantities map[health.DataType][]QuantitySample
	feed       map[health.DataType][]entry
	deleted    map[health.DataType][]tombstone
	seq        uint64
}

// New создает пустое хранилище. По умолчанию пользователь выдает разрешения.
func New(caps health.Capabilities, log *slog.Logger) *Store {
	return &Store{
		log:        log.With(slog.String("component", "healthstore")),
		caps:       caps,
		grant:      true,
		authorized: make(map[health.DataType]bool),
		background: make(map[health.DataType]bool),
		units:      make(map[health.DataType]health.Unit),
		quantities: make(map[health.DataType][]QuantitySample),
		feed:       make(map[health.DataType][]entry),
		deleted:    make(map[health.DataType][]tombstone),
	}
}

// SetGrant задает ответ пользователя на следующий запрос разрешений.
func (s *Store) SetGrant(grant bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grant = grant
}

// SetCapabilities меняет набор возможностей платформы.
func (s *Store) SetCapabilities(caps health.Capabilities) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.caps = caps
}

func (s *Store) Capabilities() health.Capabilities {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.caps
}

// RequestPermission запрашивает чтение типов. Отказ пользователя не является
// ошибкой и возвращается как false.
func (s *Store) RequestPermission(_ context.Context, types []health.DataType) (bool, error) {
	for _, t := range types {
		if err := t.Validate(); err != nil {
			return false, health.NewError(health.KindPermission, "request permission", t, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.grant {
		s.log.Info("Пользователь отклонил запрос разрешений", "types", len(types))
		return false, nil
	}
	for _, t := range types {
		s.authorized[t] = true
	}
	return true, nil
}

// EnableBackgroundDelivery регистрирует тип для фоновых уведомлений.
func (s *Store) EnableBackgroundDelivery(_ context.Context, t health.DataType) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.authorized[t] {
		return health.NewError(health.KindPermission, "enable background delivery", t, ErrNotAuthorized)
	}
	s.background[t] = true
	return nil
}

// BackgroundTypes возвращает типы с включенной фоновой доставкой.
func (s *Store) BackgroundTypes() []health.DataType {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]health.DataType, 0, len(s.background))
	for t := range s.background {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// AddQuantity добавляет сырое измерение. Первое измерение типа задает его единицу,
// последующие переводятся в нее.
func (s *Store) AddQuantity(t health.DataType, sample QuantitySample) error {
	if t.IsChangeFeed() {
		return fmt.Errorf("%w: %s не статистический тип", health.ErrUnsupportedType, t)
	}
	if err := t.Validate(); err != nil {
		return err
	}
	if sample.End.Before(sample.Start) {
		return fmt.Errorf("конец измерения раньше начала: %s", t)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	unit, ok := s.units[t]
	if !ok {
		s.units[t] = sample.Value.Unit
		unit = sample.Value.Unit
	}

	v, err := sample.Value.In(unit)
	if err != nil {
		var he *health.Error
		if errors.As(err, &he) {
			he.DataType = t
		}
		return err
	}
	sample.Value = health.Quantity{Value: v, Unit: unit}

	s.quantities[t] = append(s.quantities[t], sample)
	return nil
}

// AddSleep добавляет интервал стадии сна в ленту изменений.
func (s *Store) AddSleep(sample health.CategorySample) error {
	if sample.ID == "" {
		return errors.New("у записи сна нет идентификатора")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	s.feed[health.SleepAnalysis] = append(s.feed[health.SleepAnalysis], entry{seq: s.seq, category: &sample})
	return nil
}

// AddWorkout добавляет тренировку в ленту изменений.
func (s *Store) AddWorkout(w health.WorkoutRecord) error {
	if w.ID == "" {
		return errors.New("у тренировки нет идентификатора")
	}
	if w.Duration == 0 {
		w.Duration = w.End.Sub(w.Start)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	s.feed[health.Workout] = append(s.feed[health.Workout], entry{seq: s.seq, workout: &w})
	return nil
}

// Delete удаляет запись ленты изменений и оставляет отметку об удалении.
func (s *Store) Delete(t health.DataType, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.feed[t]
	for i, e := range entries {
		if e.id() != id {
			continue
		}
		s.feed[t] = append(entries[:i:i], entries[i+1:]...)
		s.seq++
		s.deleted[t] = append(s.deleted[t], tombstone{seq: s.seq, id: id})
		return nil
	}
	return fmt.Errorf("%w: %s %s", ErrNotFound, t, id)
}

// QueryStatistics считает сумму или среднее по корзинам сетки, выровненной
// по AnchorDate. Корзины без измерений в ответ не попадают.
func (s *Store) QueryStatistics(ctx context.Context, q health.StatisticsQuery) ([]health.BucketResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, health.NewError(health.KindQuery, "query statistics", q.Type, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.authorized[q.Type] {
		return nil, health.NewError(health.KindPermission, "query statistics", q.Type, ErrNotAuthorized)
	}
	if !q.End.After(q.Start) {
		return []health.BucketResult{}, nil
	}

	loc := q.AnchorDate.Location()
	if q.AnchorDate.IsZero() {
		loc = q.Start.Location()
	}

	type acc struct {
		start time.Time
		sum   float64
		n     int
	}
	buckets := make(map[int64]*acc)
	for _, smp := range s.quantities[q.Type] {
		if smp.Start.Before(q.Start) || !smp.Start.Before(q.End) {
			continue
		}
		b := q.Bucket.Floor(smp.Start.In(loc))
		a, ok := buckets[b.Unix()]
		if !ok {
			a = &acc{start: b}
			buckets[b.Unix()] = a
		}
		a.sum += smp.Value.Value
		a.n++
	}

	unit := s.units[q.Type]
	out := make([]health.BucketResult, 0, len(buckets))
	for _, a := range buckets {
		res := health.BucketResult{Start: a.start, End: q.Bucket.Next(a.start)}
		switch q.Kind {
		case health.Sum:
			res.Sum = &health.Quantity{Value: a.sum, Unit: unit}
		case health.Average:
			res.Average = &health.Quantity{Value: a.sum / float64(a.n), Unit: unit}
		}
		out = append(out, res)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

// QueryChangeFeed возвращает записи после курсора. Без курсора возвращаются
// все живые записи, начавшиеся не раньше Since.
func (s *Store) QueryChangeFeed(ctx context.Context, q health.ChangeFeedQuery) (*health.ChangeFeedResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, health.NewError(health.KindQuery, "query change feed", q.Type, err)
	}
	if !q.Type.IsChangeFeed() {
		return nil, health.NewError(health.KindQuery, "query change feed", q.Type, health.ErrUnsupportedType)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.authorized[q.Type] {
		return nil, health.NewError(health.KindPermission, "query change feed", q.Type, ErrNotAuthorized)
	}

	var after uint64
	initial := len(q.Anchor) == 0
	if !initial {
		n, err := strconv.ParseUint(string(q.Anchor), 10, 64)
		if err != nil {
			return nil, health.NewError(health.KindQuery, "query change feed", q.Type, ErrBadAnchor).
				With("anchor", string(q.Anchor))
		}
		after = n
	}

	res := &health.ChangeFeedResult{
		Categories: []health.CategorySample{},
		Workouts:   []health.WorkoutRecord{},
		Deleted:    []string{},
		NewAnchor:  health.Anchor(strconv.FormatUint(s.seq, 10)),
	}

	for _, e := range s.feed[q.Type] {
		if e.seq <= after {
			continue
		}
		if initial && !q.Since.IsZero() && e.start().Before(q.Since) {
			continue
		}
		if e.workout != nil {
			w := *e.workout
			if !s.caps.WorkoutStatistics {
				w.Statistics = nil
			}
			res.Workouts = append(res.Workouts, w)
		} else {
			res.Categories = append(res.Categories, *e.category)
		}
	}

	if !initial {
		for _, ts := range s.deleted[q.Type] {
			if ts.seq > after {
				res.Deleted = append(res.Deleted, ts.id)
			}
		}
	}

	return res, nil
}
