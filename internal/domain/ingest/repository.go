package ingest

import (
	"context"
)

type Repository interface {
	SaveBatch(ctx context.Context, d Delivery, samples []SampleRow, workouts []WorkoutRow) error
	SaveError(ctx context.Context, d Delivery, report ErrorReport) error
}

type ClientRepository interface {
	CreateClient(ctx context.Context, c Client) error
	FindClient(ctx context.Context, id string) (Client, error)
}
