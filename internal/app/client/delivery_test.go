package client

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"healthsync/internal/domain/health"
)

func batchOf(value float64) health.Batch {
	ts := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	return health.Batch{health.StepCount: health.SamplePayload([]health.Sample{{Timestamp: ts, Value: value}})}
}

// valueOf достает значение первого отсчета из тела запроса
func valueOf(t *testing.T, body string) float64 {
	t.Helper()

	var env Envelope
	require.NoError(t, json.Unmarshal([]byte(body), &env))
	b, err := health.DecodeBatch([]byte(env.Data))
	require.NoError(t, err)

	var v float64
	b[health.StepCount].Match(
		func(s []health.Sample) { v = s[0].Value },
		func([]health.WorkoutSample) {},
	)
	return v
}

func TestDeliveryQueue_Envelope(t *testing.T) {
	ch := &fakeChannel{}
	q := NewDeliveryQueue(ch, NewMemoryStorage(), slog.Default())

	q.Send(context.Background(), "u1", batchOf(42), true)

	bodies := ch.posted()
	require.Len(t, bodies, 1)

	var env map[string]any
	require.NoError(t, json.Unmarshal([]byte(bodies[0]), &env))
	assert.Equal(t, "u1", env["metriportUserId"])
	assert.Equal(t, true, env["hourly"])
	assert.IsType(t, "", env["data"])
	assert.Equal(t, 42.0, valueOf(t, bodies[0]))
}

func TestDeliveryQueue_FailureIsQueued(t *testing.T) {
	ctx := context.Background()
	ch := &fakeChannel{results: []error{errors.New("503"), errors.New("timeout")}}
	q := NewDeliveryQueue(ch, NewMemoryStorage(), slog.Default())

	q.Send(ctx, "u1", batchOf(1), false)
	q.Send(ctx, "u1", batchOf(2), true)

	// Без немедленных повторов
	assert.Len(t, ch.posted(), 2)

	pending, err := q.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, 1.0, valueOf(t, pending[0].Body))
	assert.Equal(t, 2.0, valueOf(t, pending[1].Body))
	assert.NotEqual(t, pending[0].ID, pending[1].ID)
}

func TestDeliveryQueue_FlushOrdering(t *testing.T) {
	tests := []struct {
		name        string
		drain       []error
		wantPosted  []float64
		wantPending []float64
	}{
		{
			name:        "both redeliveries succeed",
			drain:       []error{nil, nil},
			wantPosted:  []float64{3, 1, 2},
			wantPending: nil,
		},
		{
			name:        "first redelivery fails",
			drain:       []error{errors.New("502")},
			wantPosted:  []float64{3, 1},
			wantPending: []float64{1, 2},
		},
		{
			name:        "second redelivery fails",
			drain:       []error{nil, errors.New("502")},
			wantPosted:  []float64{3, 1, 2},
			wantPending: []float64{2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()

			// Arrange: очередь [A, B]
			seed := &fakeChannel{results: []error{errors.New("x"), errors.New("x")}}
			storage := NewMemoryStorage()
			seedQueue := NewDeliveryQueue(seed, storage, slog.Default())
			seedQueue.Send(ctx, "u1", batchOf(1), false)
			seedQueue.Send(ctx, "u1", batchOf(2), false)

			// Act: успешная отправка C
			ch := &fakeChannel{results: append([]error{nil}, tt.drain...)}
			q := NewDeliveryQueue(ch, storage, slog.Default())
			q.Send(ctx, "u1", batchOf(3), true)

			// Assert
			var posted []float64
			for _, b := range ch.posted() {
				posted = append(posted, valueOf(t, b))
			}
			assert.Equal(t, tt.wantPosted, posted)

			pending, err := q.Pending(ctx)
			require.NoError(t, err)
			var left []float64
			for _, p := range pending {
				left = append(left, valueOf(t, p.Body))
			}
			assert.Equal(t, tt.wantPending, left)
		})
	}
}

func TestDeliveryQueue_DrainAndClear(t *testing.T) {
	ctx := context.Background()
	ch := &fakeChannel{results: []error{errors.New("x")}}
	q := NewDeliveryQueue(ch, NewMemoryStorage(), slog.Default())

	q.Send(ctx, "u1", batchOf(1), false)
	assert.Equal(t, 1, q.Drain(ctx))

	pending, err := q.Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	ch.results = []error{errors.New("x")}
	q.Send(ctx, "u1", batchOf(2), false)
	require.NoError(t, q.Clear(ctx))
	pending, err = q.Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestReporter(t *testing.T) {
	ctx := context.Background()
	ch := &fakeChannel{results: []error{errors.New("down")}}
	r := NewReporter(ch, slog.Default())

	err := health.NewError(health.KindQuery, "backfill statistics", health.StepCount, errors.New("boom")).
		With("bucket", "day")

	r.Report(ctx, "u1", err)
	r.Report(ctx, "", err)
	r.Report(ctx, "u1", nil)

	bodies := ch.posted()
	require.Len(t, bodies, 2)

	var env Envelope
	require.NoError(t, json.Unmarshal([]byte(bodies[0]), &env))
	assert.Equal(t, "u1", env.UserID)
	assert.Nil(t, env.Hourly)

	var report ErrorReport
	require.NoError(t, json.Unmarshal([]byte(env.Data), &report))
	assert.Equal(t, health.KindQuery, report.Kind)
	assert.Equal(t, health.StepCount, report.DataType)
	assert.Equal(t, "day", report.Context["bucket"])
	assert.Contains(t, report.Error, "boom")

	// Без пользователя отчет уходит с заглушкой
	require.NoError(t, json.Unmarshal([]byte(bodies[1]), &env))
	assert.Equal(t, unknownUserID, env.UserID)
}

func TestReporter_SetChannel(t *testing.T) {
	ctx := context.Background()
	first := &fakeChannel{}
	second := &fakeChannel{}
	r := NewReporter(first, slog.Default())

	r.Report(ctx, "u1", errors.New("one"))
	r.SetChannel(second)
	r.Report(ctx, "u1", errors.New("two"))

	assert.Len(t, first.posted(), 1)
	require.Len(t, second.posted(), 1)
	assert.Contains(t, second.posted()[0], "two")
}
