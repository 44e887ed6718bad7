package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"healthsync/internal/domain/health"
)

// MockRepository is a mock implementation of the Repository interface for testing
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) SaveBatch(ctx context.Context, d Delivery, samples []SampleRow, workouts []WorkoutRow) error {
	args := m.Called(ctx, d, samples, workouts)
	return args.Error(0)
}

func (m *MockRepository) SaveError(ctx context.Context, d Delivery, report ErrorReport) error {
	args := m.Called(ctx, d, report)
	return args.Error(0)
}

func encode(t *testing.T, b health.Batch) string {
	t.Helper()
	data, err := health.EncodeBatch(b)
	require.NoError(t, err)
	return string(data)
}

func TestService_Ingest_Batch(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo, slog.Default())

	ts := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	kcal := 250.0
	data := encode(t, health.Batch{
		health.StepCount: health.SamplePayload([]health.Sample{
			{Timestamp: ts, Value: 1000},
			{Timestamp: ts.AddDate(0, 0, 1), Value: 2000},
		}),
		health.Workout: health.WorkoutPayload([]health.WorkoutSample{
			{StartTimestamp: ts, EndTimestamp: ts.Add(time.Hour), ActivityType: 37, DurationSeconds: 3600, Kcal: &kcal},
		}),
	})

	hourly := false
	mockRepo.On("SaveBatch", mock.Anything,
		mock.MatchedBy(func(d Delivery) bool {
			return d.UserID == "u1" && d.ClientID == "c1" && d.Kind == KindBatch &&
				d.Hourly != nil && !*d.Hourly && len(d.Types) == 2
		}),
		mock.MatchedBy(func(rows []SampleRow) bool {
			return len(rows) == 2 && rows[0].DataType == health.StepCount && rows[1].Value == 2000
		}),
		mock.MatchedBy(func(rows []WorkoutRow) bool {
			return len(rows) == 1 && rows[0].UserID == "u1" && *rows[0].Kcal == 250
		}),
	).Return(nil)

	res, err := service.Ingest(context.Background(), "c1", Envelope{UserID: "u1", Data: data, Hourly: &hourly})
	require.NoError(t, err)
	assert.Equal(t, KindBatch, res.Kind)
	assert.Equal(t, 2, res.Samples)
	assert.Equal(t, 1, res.Workouts)
	assert.Equal(t, []health.DataType{health.StepCount, health.Workout}, res.Types)

	mockRepo.AssertExpectations(t)
}

func TestService_Ingest_ErrorReport(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo, slog.Default())

	mockRepo.On("SaveError", mock.Anything,
		mock.MatchedBy(func(d Delivery) bool { return d.Kind == KindError && d.Hourly == nil }),
		ErrorReport{
			Error:    "query: boom",
			Kind:     "query",
			DataType: health.StepCount,
			Context:  map[string]string{"bucket": "day"},
		},
	).Return(nil)

	data := `{"error":"query: boom","kind":"query","dataType":"HKQuantityTypeIdentifierStepCount","context":{"bucket":"day"}}`
	res, err := service.Ingest(context.Background(), "c1", Envelope{UserID: "u1", Data: data})
	require.NoError(t, err)
	assert.Equal(t, KindError, res.Kind)

	mockRepo.AssertExpectations(t)
}

func TestService_Ingest_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		env      Envelope
		wantErr  error
		wantCode string
	}{
		{
			name:     "missing user",
			env:      Envelope{Data: `{}`},
			wantErr:  ErrInvalidInput,
			wantCode: "invalid_input",
		},
		{
			name:     "missing data",
			env:      Envelope{UserID: "u1"},
			wantErr:  ErrInvalidInput,
			wantCode: "invalid_input",
		},
		{
			name:     "unknown payload kind",
			env:      Envelope{UserID: "u1", Data: `{"HKQuantityTypeIdentifierStepCount":{"kind":"nutrition","items":[]}}`},
			wantErr:  health.ErrDecode,
			wantCode: "decode_error",
		},
		{
			name:     "not json",
			env:      Envelope{UserID: "u1", Data: `steps=1000`},
			wantErr:  health.ErrDecode,
			wantCode: "decode_error",
		},
		{
			name:     "error field is not a string",
			env:      Envelope{UserID: "u1", Data: `{"error":{"kind":"sample"}}`},
			wantErr:  health.ErrDecode,
			wantCode: "decode_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := new(MockRepository)
			service := NewService(mockRepo, slog.Default())

			_, err := service.Ingest(context.Background(), "c1", tt.env)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)

			var de *DomainError
			require.True(t, errors.As(err, &de))
			assert.Equal(t, tt.wantCode, de.Code)

			mockRepo.AssertNotCalled(t, "SaveBatch", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestService_Ingest_RepositoryError(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo, slog.Default())

	mockRepo.On("SaveBatch", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("database error"))

	data := encode(t, health.Batch{health.StepCount: health.SamplePayload(nil)})
	_, err := service.Ingest(context.Background(), "c1", Envelope{UserID: "u1", Data: data})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "database error")
}
