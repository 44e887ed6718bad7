package healthstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"healthsync/internal/domain/health"
)

func authorizedStore(t *testing.T) *Store {
	t.Helper()

	s := New(health.Capabilities{SleepStages: true, WorkoutStatistics: true}, slog.Default())
	ok, err := s.RequestPermission(context.Background(), health.DefaultCatalog().ReadTypes())
	require.NoError(t, err)
	require.True(t, ok)
	return s
}

func TestStore_Permission(t *testing.T) {
	ctx := context.Background()
	s := New(health.Capabilities{}, slog.Default())

	_, err := s.QueryStatistics(ctx, health.StatisticsQuery{Type: health.StepCount})
	assert.ErrorIs(t, err, health.ErrPermission)

	s.SetGrant(false)
	ok, err := s.RequestPermission(ctx, []health.DataType{health.StepCount})
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.RequestPermission(ctx, []health.DataType{"HKQuantityTypeIdentifierUnknown"})
	assert.ErrorIs(t, err, health.ErrPermission)

	s.SetGrant(true)
	ok, err = s.RequestPermission(ctx, []health.DataType{health.StepCount})
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.EnableBackgroundDelivery(ctx, health.StepCount))
	assert.ErrorIs(t, s.EnableBackgroundDelivery(ctx, health.HeartRate), health.ErrPermission)
	assert.Equal(t, []health.DataType{health.StepCount}, s.BackgroundTypes())
}

func TestStore_QueryStatistics(t *testing.T) {
	ctx := context.Background()
	s := authorizedStore(t)
	require.NoError(t, s.LoadFixture("testdata/fixture.json"))

	day := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		query health.StatisticsQuery
		want  []float64
		avg   bool
	}{
		{
			name: "daily sums",
			query: health.StatisticsQuery{
				Type: health.StepCount, Bucket: health.Day, Kind: health.Sum,
				AnchorDate: day, Start: day, End: day.AddDate(0, 0, 3),
			},
			want: []float64{750, 1200},
		},
		{
			name: "hourly sums",
			query: health.StatisticsQuery{
				Type: health.StepCount, Bucket: health.Hour, Kind: health.Sum,
				AnchorDate: day, Start: day, End: day.AddDate(0, 0, 1),
			},
			want: []float64{750},
		},
		{
			name: "window excludes later samples",
			query: health.StatisticsQuery{
				Type: health.StepCount, Bucket: health.Day, Kind: health.Sum,
				AnchorDate: day, Start: day.AddDate(0, 0, 1), End: day.AddDate(0, 0, 2),
			},
			want: []float64{1200},
		},
		{
			name: "average",
			query: health.StatisticsQuery{
				Type: health.HeartRate, Bucket: health.Day, Kind: health.Average,
				AnchorDate: day, Start: day, End: day.AddDate(0, 0, 1),
			},
			want: []float64{70},
			avg:  true,
		},
		{
			name: "empty window",
			query: health.StatisticsQuery{
				Type: health.StepCount, Bucket: health.Day, Kind: health.Sum,
				AnchorDate: day, Start: day, End: day,
			},
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := s.QueryStatistics(ctx, tt.query)
			require.NoError(t, err)
			require.Len(t, res, len(tt.want))

			for i, r := range res {
				q := r.Sum
				if tt.avg {
					q = r.Average
					assert.Nil(t, r.Sum)
				}
				require.NotNil(t, q)
				assert.Equal(t, tt.want[i], q.Value)
				assert.Equal(t, tt.query.Bucket.Next(r.Start), r.End)
			}
		})
	}
}

func TestStore_AddQuantityConvertsUnits(t *testing.T) {
	s := authorizedStore(t)
	ts := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

	require.NoError(t, s.AddQuantity(health.DistanceWalkingRunning, QuantitySample{
		Start: ts, End: ts, Value: health.Quantity{Value: 1, Unit: health.Kilometer},
	}))
	require.NoError(t, s.AddQuantity(health.DistanceWalkingRunning, QuantitySample{
		Start: ts, End: ts, Value: health.Quantity{Value: 500, Unit: health.Meter},
	}))

	err := s.AddQuantity(health.DistanceWalkingRunning, QuantitySample{
		Start: ts, End: ts, Value: health.Quantity{Value: 1, Unit: health.Kilogram},
	})
	assert.ErrorIs(t, err, health.ErrUnitMismatch)

	res, err := s.QueryStatistics(context.Background(), health.StatisticsQuery{
		Type: health.DistanceWalkingRunning, Bucket: health.Day, Kind: health.Sum,
		AnchorDate: ts, Start: ts.Add(-time.Hour), End: ts.Add(time.Hour),
	})
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, health.Kilometer, res[0].Sum.Unit)
	assert.InDelta(t, 1.5, res[0].Sum.Value, 1e-9)
}

func TestStore_ChangeFeed(t *testing.T) {
	ctx := context.Background()
	s := authorizedStore(t)
	require.NoError(t, s.LoadFixture("testdata/fixture.json"))

	// Первичная выборка
	first, err := s.QueryChangeFeed(ctx, health.ChangeFeedQuery{Type: health.SleepAnalysis})
	require.NoError(t, err)
	assert.Len(t, first.Categories, 2)
	assert.NotEmpty(t, first.NewAnchor)

	// Пустое продолжение
	next, err := s.QueryChangeFeed(ctx, health.ChangeFeedQuery{Type: health.SleepAnalysis, Anchor: first.NewAnchor})
	require.NoError(t, err)
	assert.Empty(t, next.Categories)
	assert.Empty(t, next.Deleted)

	// Новая запись и удаление
	require.NoError(t, s.AddSleep(health.CategorySample{
		ID:    "s3",
		Start: time.Date(2024, 6, 2, 1, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 6, 2, 2, 0, 0, 0, time.UTC),
		Value: health.SleepAsleepDeep,
	}))
	require.NoError(t, s.Delete(health.SleepAnalysis, "s1"))
	assert.ErrorIs(t, s.Delete(health.SleepAnalysis, "s1"), ErrNotFound)

	delta, err := s.QueryChangeFeed(ctx, health.ChangeFeedQuery{Type: health.SleepAnalysis, Anchor: next.NewAnchor})
	require.NoError(t, err)
	require.Len(t, delta.Categories, 1)
	assert.Equal(t, "s3", delta.Categories[0].ID)
	assert.Equal(t, []string{"s1"}, delta.Deleted)

	_, err = s.QueryChangeFeed(ctx, health.ChangeFeedQuery{Type: health.SleepAnalysis, Anchor: health.Anchor("garbage")})
	assert.ErrorIs(t, err, health.ErrQuery)
}

func TestStore_ChangeFeedSince(t *testing.T) {
	s := authorizedStore(t)
	require.NoError(t, s.LoadFixture("testdata/fixture.json"))

	res, err := s.QueryChangeFeed(context.Background(), health.ChangeFeedQuery{
		Type:  health.SleepAnalysis,
		Since: time.Date(2024, 6, 1, 23, 15, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, res.Categories, 1)
	assert.Equal(t, "s2", res.Categories[0].ID)
}

func TestStore_WorkoutCapabilities(t *testing.T) {
	s := authorizedStore(t)
	require.NoError(t, s.LoadFixture("testdata/fixture.json"))

	// Файл отключает вложенную статистику
	res, err := s.QueryChangeFeed(context.Background(), health.ChangeFeedQuery{Type: health.Workout})
	require.NoError(t, err)
	require.Len(t, res.Workouts, 1)
	assert.Nil(t, res.Workouts[0].Statistics)
	assert.Equal(t, 30*time.Minute, res.Workouts[0].Duration)

	s.SetCapabilities(health.Capabilities{SleepStages: true, WorkoutStatistics: true})
	res, err = s.QueryChangeFeed(context.Background(), health.ChangeFeedQuery{Type: health.Workout})
	require.NoError(t, err)
	assert.Equal(t, 310.5, res.Workouts[0].Statistics[health.ActiveEnergyBurned].Value)
}
