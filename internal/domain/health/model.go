package health

import (
	"time"
)

// Sample одно агрегированное значение (день/час) или интервал стадии сна
type Sample struct {
	Timestamp    time.Time  `json:"timestamp"`
	Value        float64    `json:"value"`
	Kind         string     `json:"kind,omitempty"`
	EndTimestamp *time.Time `json:"endTimestamp,omitempty"`
	SourceID     string     `json:"sourceId,omitempty"`
	SourceName   string     `json:"sourceName,omitempty"`
}

// WorkoutSample одна завершенная тренировка.
// Kcal и DistanceMeters равны nil, если платформа не отдает вложенную статистику.
type WorkoutSample struct {
	StartTimestamp  time.Time `json:"startTimestamp"`
	EndTimestamp    time.Time `json:"endTimestamp"`
	ActivityType    int       `json:"activityType"`
	DurationSeconds int       `json:"durationSeconds"`
	SourceID        string    `json:"sourceId"`
	SourceName      string    `json:"sourceName"`
	Kcal            *float64  `json:"kcal,omitempty"`
	DistanceMeters  *float64  `json:"distanceMeters,omitempty"`
}

// ==================== Сырые данные платформы ====================

// SourceInfo происхождение записи (приложение или устройство)
type SourceInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// BucketResult статистика платформы за одну корзину.
// Sum или Average равны nil, если платформа не посчитала соответствующее значение.
type BucketResult struct {
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	Sum     *Quantity `json:"sum,omitempty"`
	Average *Quantity `json:"average,omitempty"`
}

// SleepStage код стадии сна платформы
type SleepStage int

const (
	SleepInBed             SleepStage = 0
	SleepAsleepUnspecified SleepStage = 1
	SleepAwake             SleepStage = 2
	SleepAsleepCore        SleepStage = 3
	SleepAsleepDeep        SleepStage = 4
	SleepAsleepREM         SleepStage = 5
)

// CategorySample запись категории (стадия сна)
type CategorySample struct {
	ID     string     `json:"id"`
	Start  time.Time  `json:"start"`
	End    time.Time  `json:"end"`
	Value  SleepStage `json:"value"`
	Source SourceInfo `json:"source"`
}

// WorkoutRecord тренировка в представлении платформы.
// Statistics равна nil, если платформа не поддерживает вложенную статистику.
type WorkoutRecord struct {
	ID           string                `json:"id"`
	Start        time.Time             `json:"start"`
	End          time.Time             `json:"end"`
	Duration     time.Duration         `json:"duration"`
	ActivityType int                   `json:"activityType"`
	Source       SourceInfo            `json:"source"`
	Statistics   map[DataType]Quantity `json:"statistics,omitempty"`
}

// Anchor непрозрачный курсор ленты изменений
type Anchor []byte

// Capabilities возможности платформы, зависящие от версии ОС
type Capabilities struct {
	// SleepStages разрешает стадии REM/core/deep
	SleepStages bool `json:"sleepStages"`
	// WorkoutStatistics разрешает вложенную статистику тренировок (ккал, дистанция)
	WorkoutStatistics bool `json:"workoutStatistics"`
}

// StatisticsQuery запрос статистики по корзинам
type StatisticsQuery struct {
	Type       DataType
	Bucket     BucketSize
	Kind       AggregationKind
	AnchorDate time.Time
	Start      time.Time
	End        time.Time
}

// ChangeFeedQuery запрос ленты изменений.
// Since ограничивает окно только для первичной выборки без курсора.
type ChangeFeedQuery struct {
	Type   DataType
	Anchor Anchor
	Since  time.Time
}

// ChangeFeedResult ответ ленты изменений
type ChangeFeedResult struct {
	Categories []CategorySample
	Workouts   []WorkoutRecord
	Deleted    []string
	NewAnchor  Anchor
}
