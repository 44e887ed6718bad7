package ingest

import (
	"time"

	"github.com/google/uuid"

	"healthsync/internal/domain/health"
)

// DeliveryKind содержимое поля data вебхука
type DeliveryKind string

const (
	KindBatch DeliveryKind = "batch"
	KindError DeliveryKind = "error"
)

// Envelope тело запроса вебхука
type Envelope struct {
	UserID string `json:"metriportUserId"`
	Data   string `json:"data"`
	Hourly *bool  `json:"hourly,omitempty"`
}

// Delivery один принятый запрос вебхука
type Delivery struct {
	ID         uuid.UUID
	ClientID   string
	UserID     string
	Kind       DeliveryKind
	Hourly     *bool
	Types      []health.DataType
	BodySize   int
	ReceivedAt time.Time
}

// SampleRow отсчет пакета, привязанный к пользователю и типу
type SampleRow struct {
	UserID   string
	DataType health.DataType
	health.Sample
}

// WorkoutRow тренировка пакета, привязанная к пользователю
type WorkoutRow struct {
	UserID string
	health.WorkoutSample
}

// ErrorReport отчет клиента об ошибке синхронизации
type ErrorReport struct {
	Error    string            `json:"error"`
	Kind     string            `json:"kind,omitempty"`
	Op       string            `json:"op,omitempty"`
	DataType health.DataType   `json:"dataType,omitempty"`
	Context  map[string]string `json:"context,omitempty"`
}

// Result итог обработки запроса
type Result struct {
	DeliveryID uuid.UUID
	Kind       DeliveryKind
	Types      []health.DataType
	Samples    int
	Workouts   int
}

// Client приложение-отправитель с ключом x-api-key
type Client struct {
	ID         string
	Name       string
	SecretHash string
	CreatedAt  time.Time
}
