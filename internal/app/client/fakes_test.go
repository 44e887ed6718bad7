package client

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"healthsync/internal/domain/health"
)

type statsKey struct {
	t      health.DataType
	bucket health.BucketSize
}

// fakeStore управляемая подмена хранилища здоровья
type fakeStore struct {
	mu sync.Mutex

	caps      health.Capabilities
	granted   bool
	grantErr  error
	stats     map[statsKey][]health.BucketResult
	statsErr  map[health.DataType]error
	initial   map[health.DataType]*health.ChangeFeedResult
	delta     map[health.DataType]*health.ChangeFeedResult
	gate      map[health.DataType]chan struct{}
	started   chan health.DataType
	anchorSeq int

	statsQueries []health.StatisticsQuery
	feedQueries  []health.ChangeFeedQuery
	background   []health.DataType
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		caps:     health.Capabilities{SleepStages: true, WorkoutStatistics: true},
		granted:  true,
		stats:    make(map[statsKey][]health.BucketResult),
		statsErr: make(map[health.DataType]error),
		initial:  make(map[health.DataType]*health.ChangeFeedResult),
		delta:    make(map[health.DataType]*health.ChangeFeedResult),
		gate:     make(map[health.DataType]chan struct{}),
	}
}

func (f *fakeStore) RequestPermission(_ context.Context, _ []health.DataType) (bool, error) {
	return f.granted, f.grantErr
}

func (f *fakeStore) QueryStatistics(_ context.Context, q health.StatisticsQuery) ([]health.BucketResult, error) {
	f.mu.Lock()
	f.statsQueries = append(f.statsQueries, q)
	gate := f.gate[q.Type]
	started := f.started
	err := f.statsErr[q.Type]
	res := f.stats[statsKey{q.Type, q.Bucket}]
	f.mu.Unlock()

	if started != nil {
		started <- q.Type
	}
	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (f *fakeStore) QueryChangeFeed(_ context.Context, q health.ChangeFeedQuery) (*health.ChangeFeedResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.feedQueries = append(f.feedQueries, q)
	f.anchorSeq++

	src := f.delta[q.Type]
	if len(q.Anchor) == 0 {
		src = f.initial[q.Type]
	}

	res := &health.ChangeFeedResult{}
	if src != nil {
		*res = *src
	}
	res.NewAnchor = health.Anchor(fmt.Sprintf("%s-%d", q.Type, f.anchorSeq))
	return res, nil
}

func (f *fakeStore) EnableBackgroundDelivery(_ context.Context, t health.DataType) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.background = append(f.background, t)
	return nil
}

func (f *fakeStore) Capabilities() health.Capabilities {
	return f.caps
}

func (f *fakeStore) queriesFor(bucket health.BucketSize) []health.StatisticsQuery {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []health.StatisticsQuery
	for _, q := range f.statsQueries {
		if q.Bucket == bucket {
			out = append(out, q)
		}
	}
	return out
}

func (f *fakeStore) initialFeedQueries() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for _, q := range f.feedQueries {
		if len(q.Anchor) == 0 {
			n++
		}
	}
	return n
}

type sentBatch struct {
	userID string
	batch  health.Batch
	hourly bool
}

// recordingSender запоминает отправленные пакеты
type recordingSender struct {
	mu    sync.Mutex
	sends []sentBatch
}

func (r *recordingSender) Send(_ context.Context, userID string, batch health.Batch, hourly bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sends = append(r.sends, sentBatch{userID: userID, batch: batch, hourly: hourly})
}

func (r *recordingSender) all() []sentBatch {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]sentBatch(nil), r.sends...)
}

// recordingReporter запоминает отчеты об ошибках
type recordingReporter struct {
	mu   sync.Mutex
	errs []error
}

func (r *recordingReporter) Report(_ context.Context, _ string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *recordingReporter) all() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errs...)
}

// failingStorage хранилище, отказывающее в записи ключей с заданным префиксом
type failingStorage struct {
	*MemoryStorage
	prefix string
}

func (f *failingStorage) Set(ctx context.Context, key string, value []byte) error {
	if strings.HasPrefix(key, f.prefix) {
		return errors.New("disk full")
	}
	return f.MemoryStorage.Set(ctx, key, value)
}

// fakeChannel канал доставки со сценарием ответов
type fakeChannel struct {
	mu      sync.Mutex
	bodies  []string
	results []error
}

func (f *fakeChannel) Post(_ context.Context, body []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.bodies = append(f.bodies, string(body))
	if len(f.results) == 0 {
		return nil
	}
	err := f.results[0]
	f.results = f.results[1:]
	return err
}

func (f *fakeChannel) posted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.bodies...)
}
