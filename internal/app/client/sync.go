// internal/app/client/sync.go
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/exp/slog"
	"golang.org/x/sync/errgroup"

	"healthsync/internal/domain/aggregate"
	"healthsync/internal/domain/health"
	"healthsync/internal/domain/transcode"
)

const syncStatsKey = "syncStats"

var (
	ErrSyncInProgress = errors.New("синхронизация уже выполняется")
	ErrNoUser         = errors.New("пользователь не подключен")
)

// HealthStore хранилище данных здоровья платформы
type HealthStore interface {
	RequestPermission(ctx context.Context, types []health.DataType) (bool, error)
	QueryStatistics(ctx context.Context, q health.StatisticsQuery) ([]health.BucketResult, error)
	QueryChangeFeed(ctx context.Context, q health.ChangeFeedQuery) (*health.ChangeFeedResult, error)
	EnableBackgroundDelivery(ctx context.Context, t health.DataType) error
	Capabilities() health.Capabilities
}

// Sender отправляет пакет без возврата ошибки
type Sender interface {
	Send(ctx context.Context, userID string, batch health.Batch, hourly bool)
}

// ErrorReporter приемник ошибок синхронизации
type ErrorReporter interface {
	Report(ctx context.Context, userID string, err error)
}

// SyncService выполняет проходы синхронизации данных здоровья
type SyncService struct {
	store      HealthStore
	catalog    *health.Catalog
	cursors    *CursorStore
	sender     Sender
	reporter   ErrorReporter
	storage    Storage
	aggregator *aggregate.Aggregator
	sleep      *transcode.SleepTranscoder
	workouts   *transcode.WorkoutTranscoder
	log        *slog.Logger
	config     SyncConfig
	now        func() time.Time

	mu        sync.RWMutex
	lastSync  time.Time
	isSyncing bool
	stats     *SyncStats
}

// SyncConfig конфигурация синхронизации
type SyncConfig struct {
	BackfillDays int            `json:"backfill_days"`
	Location     *time.Location `json:"-"`
}

// SyncDeps зависимости сервиса синхронизации
type SyncDeps struct {
	Store    HealthStore
	Catalog  *health.Catalog
	Cursors  *CursorStore
	Sender   Sender
	Reporter ErrorReporter
	Storage  Storage
}

// SyncError ошибка одной операции прохода
type SyncError struct {
	DataType  health.DataType  `json:"data_type,omitempty"`
	Kind      health.ErrorKind `json:"kind,omitempty"`
	Operation string           `json:"operation"`
	Error     string           `json:"error"`
	Timestamp time.Time        `json:"timestamp"`
}

// SyncStats накопленная статистика проходов
type SyncStats struct {
	TotalSweeps      int       `json:"total_sweeps"`
	LastSuccessful   time.Time `json:"last_successful"`
	LastFailed       time.Time `json:"last_failed"`
	TotalBackfilled  int       `json:"total_backfilled"`
	TotalIncremental int       `json:"total_incremental"`
	TotalErrors      int       `json:"total_errors"`
	AvgSweepDuration float64   `json:"avg_sweep_duration"`
}

// SyncResult результат одного прохода
type SyncResult struct {
	ID          string            `json:"id"`
	Success     bool              `json:"success"`
	Backfilled  []health.DataType `json:"backfilled"`
	BatchTypes  []health.DataType `json:"batch_types"`
	Incremental int               `json:"incremental"`
	Dropped     int               `json:"dropped"`
	Errors      []SyncError       `json:"errors"`
	Duration    time.Duration     `json:"duration"`
	StartTime   time.Time         `json:"start_time"`
	EndTime     time.Time         `json:"end_time"`
}

// NewSyncService создает новый сервис синхронизации
func NewSyncService(deps SyncDeps, cfg SyncConfig, log *slog.Logger) *SyncService {
	if cfg.BackfillDays <= 0 {
		cfg.BackfillDays = 30
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}

	caps := deps.Store.Capabilities()
	log = log.With(slog.String("component", "sync"))

	s := &SyncService{
		store:      deps.Store,
		catalog:    deps.Catalog,
		cursors:    deps.Cursors,
		sender:     deps.Sender,
		reporter:   deps.Reporter,
		storage:    deps.Storage,
		aggregator: aggregate.New(log),
		sleep:      transcode.NewSleep(log, caps),
		workouts:   transcode.NewWorkout(log, caps),
		log:        log,
		config:     cfg,
		now:        time.Now,
		stats:      &SyncStats{},
	}

	if stats, err := s.loadStats(context.Background()); err == nil && stats != nil {
		s.stats = stats
	}

	return s
}

// sweep состояние одного прохода
type sweep struct {
	id     string
	userID string
	now    time.Time

	mu      sync.Mutex
	pending health.Batch
	result  *SyncResult
}

func (w *sweep) stash(t health.DataType, p health.TypedPayload) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending[t] = p
}

func (w *sweep) record(f func(r *SyncResult)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	f(w.result)
}

// operation одна запланированная операция по типу данных
type operation struct {
	dataType health.DataType
	run      func(ctx context.Context, w *sweep, t health.DataType)
}

// Sync выполняет один проход синхронизации для пользователя.
//
// Для каждого типа без курсора выполняется бэкфилл, для типа с курсором только
// инкрементальное обновление. Результаты бэкфилла собираются в один пакет и
// отправляются после завершения всех операций бэкфилла. Инкрементальные
// результаты отправляются сразу, каждый отдельным пакетом.
func (s *SyncService) Sync(ctx context.Context, userID string) (*SyncResult, error) {
	s.mu.Lock()
	if s.isSyncing {
		s.mu.Unlock()
		return nil, ErrSyncInProgress
	}

	s.isSyncing = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.isSyncing = false
		s.mu.Unlock()
	}()

	if userID == "" {
		return nil, ErrNoUser
	}

	w := &sweep{
		id:      uuid.NewString(),
		userID:  userID,
		now:     s.now().In(s.config.Location),
		pending: make(health.Batch),
		result: &SyncResult{
			StartTime:  s.now(),
			Backfilled: []health.DataType{},
			BatchTypes: []health.DataType{},
			Errors:     []SyncError{},
		},
	}
	w.result.ID = w.id
	log := s.log.With("sweep_id", w.id)

	log.Info("Начало синхронизации", "user_id", userID)

	// Планируем все операции до первого запроса
	backfills, live := s.plan(ctx, w)

	var barrier, updates errgroup.Group
	for _, op := range backfills {
		op := op
		barrier.Go(func() error {
			op.run(ctx, w, op.dataType)
			return nil
		})
	}
	for _, op := range live {
		op := op
		updates.Go(func() error {
			op.run(ctx, w, op.dataType)
			return nil
		})
	}

	_ = barrier.Wait()

	w.mu.Lock()
	batch := w.pending
	w.pending = make(health.Batch)
	w.mu.Unlock()

	if len(batch) > 0 {
		log.Info("Отправка пакета бэкфилла", "types", batch.Keys())
		s.sender.Send(ctx, userID, batch, false)
		w.record(func(r *SyncResult) { r.BatchTypes = batch.Keys() })
	}

	_ = updates.Wait()

	result := w.result
	result.EndTime = s.now()
	result.Duration = result.EndTime.Sub(result.StartTime)
	result.Success = len(result.Errors) == 0

	s.updateStats(ctx, result)

	if result.Success {
		log.Info("Синхронизация успешно завершена",
			"duration", result.Duration,
			"backfilled", len(result.Backfilled),
			"incremental", result.Incremental,
		)
	} else {
		log.Warn("Синхронизация завершена с ошибками",
			"duration", result.Duration,
			"errors", len(result.Errors),
		)
	}

	return result, nil
}

// plan читает курсоры и раскладывает типы по операциям бэкфилла и обновления.
// Тип, только что прошедший бэкфилл, в этом проходе не обновляется.
func (s *SyncService) plan(ctx context.Context, w *sweep) (backfills, live []operation) {
	for _, t := range s.catalog.StatisticsTypes() {
		cur, err := s.cursors.Get(ctx, t)
		if err != nil {
			s.fail(ctx, w, err)
			continue
		}
		if cur.State(t) == NeedsBackfill {
			backfills = append(backfills, operation{t, s.backfillStatistics})
		} else {
			live = append(live, operation{t, s.updateStatistics(*cur.LastSyncedAt)})
		}
	}

	for _, t := range s.catalog.ChangeFeedTypes() {
		cur, err := s.cursors.Get(ctx, t)
		if err != nil {
			s.fail(ctx, w, err)
			continue
		}
		if cur.State(t) == NeedsBackfill {
			backfills = append(backfills, operation{t, s.backfillChangeFeed})
		} else {
			live = append(live, operation{t, s.continueChangeFeed(cur.ChangeAnchor)})
		}
	}

	s.log.Debug("План прохода",
		"sweep_id", w.id,
		"backfill", len(backfills),
		"incremental", len(live),
	)
	return backfills, live
}

func (s *SyncService) backfillStatistics(ctx context.Context, w *sweep, t health.DataType) {
	kind := s.catalog.AggregationKindFor(t)
	anchor := health.StartOfDay(w.now)
	start := anchor.AddDate(0, 0, -(s.config.BackfillDays - 1))

	raw, err := s.store.QueryStatistics(ctx, health.StatisticsQuery{
		Type:       t,
		Bucket:     health.Day,
		Kind:       kind,
		AnchorDate: anchor,
		Start:      start,
		End:        w.now,
	})
	if err != nil {
		s.fail(ctx, w, queryError("backfill statistics", t, err).With("start", start).With("end", w.now))
		return
	}

	samples, _ := s.aggregator.Aggregate(t, raw, s.catalog.UnitFor(t),
		aggregate.Window{Start: start, End: w.now, Bucket: health.Day}, kind)

	if len(samples) > 0 {
		w.stash(t, health.SamplePayload(samples))
	}

	cursor := w.now
	if len(samples) > 0 {
		cursor = samples[len(samples)-1].Timestamp
	}
	if err := s.cursors.SetLastSyncedAt(ctx, t, cursor); err != nil {
		s.fail(ctx, w, err)
		return
	}

	w.record(func(r *SyncResult) { r.Backfilled = append(r.Backfilled, t) })
	s.log.Debug("Бэкфилл выполнен", "sweep_id", w.id, "data_type", t, "samples", len(samples))
}

func (s *SyncService) updateStatistics(lastSynced time.Time) func(context.Context, *sweep, health.DataType) {
	return func(ctx context.Context, w *sweep, t health.DataType) {
		kind := s.catalog.AggregationKindFor(t)
		start := lastSynced.In(s.config.Location)
		end := health.StartOfDay(w.now).AddDate(0, 0, 1)

		raw, err := s.store.QueryStatistics(ctx, health.StatisticsQuery{
			Type:       t,
			Bucket:     health.Hour,
			Kind:       kind,
			AnchorDate: health.StartOfDay(w.now),
			Start:      start,
			End:        end,
		})
		if err != nil {
			s.fail(ctx, w, queryError("update statistics", t, err).With("start", start).With("end", end))
			return
		}

		samples, _ := s.aggregator.Aggregate(t, raw, s.catalog.UnitFor(t),
			aggregate.Window{Start: start, End: end, Bucket: health.Hour}, kind)
		if len(samples) == 0 {
			return
		}

		// Последний часовой интервал запрашивается каждый проход.
		// Если он не изменился и новых интервалов нет, отправлять нечего.
		digest, err := hourlyDigest(samples)
		if err != nil {
			s.log.Warn("Не удалось вычислить отпечаток пакета", "data_type", t, "error", err)
		}
		if digest != "" {
			prev, err := s.cursors.GetHourlyDigest(ctx, t)
			if err != nil {
				s.fail(ctx, w, err)
				return
			}
			if prev == digest {
				s.log.Debug("Часовые данные не изменились", "sweep_id", w.id, "data_type", t)
				return
			}
		}

		s.sender.Send(ctx, w.userID, health.Batch{t: health.SamplePayload(samples)}, true)
		w.record(func(r *SyncResult) { r.Incremental++ })

		if err := s.cursors.SetLastSyncedAt(ctx, t, samples[len(samples)-1].Timestamp); err != nil {
			s.fail(ctx, w, err)
			return
		}
		if digest != "" {
			if err := s.cursors.SetHourlyDigest(ctx, t, digest); err != nil {
				s.fail(ctx, w, err)
			}
		}
	}
}

func (s *SyncService) backfillChangeFeed(ctx context.Context, w *sweep, t health.DataType) {
	since := w.now.AddDate(0, 0, -s.config.BackfillDays)

	res, err := s.store.QueryChangeFeed(ctx, health.ChangeFeedQuery{Type: t, Since: since})
	if err != nil {
		s.fail(ctx, w, queryError("backfill change feed", t, err).With("since", since))
		return
	}
	if res == nil || len(res.NewAnchor) == 0 {
		s.fail(ctx, w, queryError("backfill change feed", t, errors.New("no anchor returned")))
		return
	}

	payload := s.transcode(w, t, res)
	if payload.Len() > 0 {
		w.stash(t, payload)
	}

	if err := s.cursors.SetChangeAnchor(ctx, t, res.NewAnchor); err != nil {
		s.fail(ctx, w, err)
		return
	}

	w.record(func(r *SyncResult) { r.Backfilled = append(r.Backfilled, t) })
	s.log.Debug("Первичная выборка ленты выполнена", "sweep_id", w.id, "data_type", t, "items", payload.Len())
}

func (s *SyncService) continueChangeFeed(anchor health.Anchor) func(context.Context, *sweep, health.DataType) {
	return func(ctx context.Context, w *sweep, t health.DataType) {
		res, err := s.store.QueryChangeFeed(ctx, health.ChangeFeedQuery{Type: t, Anchor: anchor})
		if err != nil {
			s.fail(ctx, w, queryError("continue change feed", t, err))
			return
		}
		if res == nil {
			s.fail(ctx, w, queryError("continue change feed", t, errors.New("no result returned")))
			return
		}

		if len(res.Deleted) > 0 {
			s.log.Info("Удаленные записи в ленте изменений",
				"sweep_id", w.id,
				"data_type", t,
				"deleted", len(res.Deleted),
			)
		}

		payload := s.transcode(w, t, res)
		if payload.Len() > 0 {
			s.sender.Send(ctx, w.userID, health.Batch{t: payload}, true)
			w.record(func(r *SyncResult) { r.Incremental++ })
		}

		if err := s.cursors.SetChangeAnchor(ctx, t, res.NewAnchor); err != nil {
			s.fail(ctx, w, err)
		}
	}
}

func (s *SyncService) transcode(w *sweep, t health.DataType, res *health.ChangeFeedResult) health.TypedPayload {
	if t == health.Workout {
		return health.WorkoutPayload(s.workouts.Transcode(res.Workouts))
	}

	samples, dropped := s.sleep.Transcode(res.Categories)
	if dropped > 0 {
		w.record(func(r *SyncResult) { r.Dropped += dropped })
	}
	return health.SamplePayload(samples)
}

// fail фиксирует ошибку операции и отправляет ее в телеметрию
func (s *SyncService) fail(ctx context.Context, w *sweep, err error) {
	se := SyncError{
		Operation: "sync",
		Error:     err.Error(),
		Timestamp: s.now(),
	}
	var he *health.Error
	if errors.As(err, &he) {
		se.DataType = he.DataType
		se.Kind = he.Kind
		se.Operation = he.Op
	}

	w.record(func(r *SyncResult) { r.Errors = append(r.Errors, se) })
	s.reporter.Report(ctx, w.userID, err)
}

func queryError(op string, t health.DataType, err error) *health.Error {
	return health.NewError(health.KindQuery, op, t, err)
}

// updateStats обновляет статистику синхронизации
func (s *SyncService) updateStats(ctx context.Context, result *SyncResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stats.TotalSweeps++
	s.lastSync = result.EndTime

	if result.Success {
		s.stats.LastSuccessful = result.EndTime
	} else {
		s.stats.LastFailed = result.EndTime
	}

	s.stats.TotalBackfilled += len(result.Backfilled)
	s.stats.TotalIncremental += result.Incremental
	s.stats.TotalErrors += len(result.Errors)

	// Обновляем среднюю продолжительность
	if s.stats.AvgSweepDuration == 0 {
		s.stats.AvgSweepDuration = result.Duration.Seconds()
	} else {
		s.stats.AvgSweepDuration = (s.stats.AvgSweepDuration*float64(s.stats.TotalSweeps-1) +
			result.Duration.Seconds()) / float64(s.stats.TotalSweeps)
	}

	s.saveStats(ctx)
}

func (s *SyncService) loadStats(ctx context.Context) (*SyncStats, error) {
	raw, ok, err := s.storage.Get(ctx, syncStatsKey)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	var stats SyncStats
	if err := json.Unmarshal(raw, &stats); err != nil {
		return nil, fmt.Errorf("ошибка парсинга статистики: %w", err)
	}
	return &stats, nil
}

func (s *SyncService) saveStats(ctx context.Context) {
	data, err := json.Marshal(s.stats)
	if err != nil {
		s.log.Error("Ошибка сериализации статистики", "error", err)
		return
	}

	if err := s.storage.Set(ctx, syncStatsKey, data); err != nil {
		s.log.Error("Ошибка записи статистики", "error", err)
	}
}

// GetStats возвращает статистику синхронизации
func (s *SyncService) GetStats() *SyncStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Возвращаем копию статистики
	statsCopy := *s.stats
	return &statsCopy
}

// GetLastSyncTime возвращает время последней синхронизации
func (s *SyncService) GetLastSyncTime() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSync
}

// IsSyncing проверяет, выполняется ли синхронизация
func (s *SyncService) IsSyncing() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isSyncing
}

// ResetStats сбрасывает статистику синхронизации
func (s *SyncService) ResetStats(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stats = &SyncStats{}
	s.saveStats(ctx)
}
