package health

import (
	"fmt"
	"time"
)

// DataType идентификатор типа данных платформы здоровья.
// Он же служит ключом курсора и ключом в исходящем пакете.
type DataType string

const (
	StepCount               DataType = "HKQuantityTypeIdentifierStepCount"
	DistanceWalkingRunning  DataType = "HKQuantityTypeIdentifierDistanceWalkingRunning"
	DistanceCycling         DataType = "HKQuantityTypeIdentifierDistanceCycling"
	ActiveEnergyBurned      DataType = "HKQuantityTypeIdentifierActiveEnergyBurned"
	BasalEnergyBurned       DataType = "HKQuantityTypeIdentifierBasalEnergyBurned"
	FlightsClimbed          DataType = "HKQuantityTypeIdentifierFlightsClimbed"
	AppleExerciseTime       DataType = "HKQuantityTypeIdentifierAppleExerciseTime"
	DietaryEnergyConsumed   DataType = "HKQuantityTypeIdentifierDietaryEnergyConsumed"
	DietaryWater            DataType = "HKQuantityTypeIdentifierDietaryWater"
	HeartRate               DataType = "HKQuantityTypeIdentifierHeartRate"
	RestingHeartRate        DataType = "HKQuantityTypeIdentifierRestingHeartRate"
	WalkingHeartRateAverage DataType = "HKQuantityTypeIdentifierWalkingHeartRateAverage"
	HeartRateVariability    DataType = "HKQuantityTypeIdentifierHeartRateVariabilitySDNN"
	OxygenSaturation        DataType = "HKQuantityTypeIdentifierOxygenSaturation"
	RespiratoryRate         DataType = "HKQuantityTypeIdentifierRespiratoryRate"
	BodyMass                DataType = "HKQuantityTypeIdentifierBodyMass"
	Height                  DataType = "HKQuantityTypeIdentifierHeight"
	BodyFatPercentage       DataType = "HKQuantityTypeIdentifierBodyFatPercentage"
	BloodPressureSystolic   DataType = "HKQuantityTypeIdentifierBloodPressureSystolic"
	BloodPressureDiastolic  DataType = "HKQuantityTypeIdentifierBloodPressureDiastolic"
	BloodGlucose            DataType = "HKQuantityTypeIdentifierBloodGlucose"
	BodyTemperature         DataType = "HKQuantityTypeIdentifierBodyTemperature"
	VO2Max                  DataType = "HKQuantityTypeIdentifierVO2Max"

	// Типы, которые читаются через ленту изменений, а не через статистику
	SleepAnalysis DataType = "HKCategoryValueSleepAnalysis"
	Workout       DataType = "HKWorkout"
)

// String возвращает строковое представление типа.
func (t DataType) String() string {
	return string(t)
}

// IsChangeFeed сообщает, читается ли тип через ленту изменений.
func (t DataType) IsChangeFeed() bool {
	return t == SleepAnalysis || t == Workout
}

// Validate проверяет, что тип известен каталогу по умолчанию или является типом ленты.
func (t DataType) Validate() error {
	if t.IsChangeFeed() {
		return nil
	}
	if _, ok := defaultEntries[t]; ok {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrUnsupportedType, t)
}

// AggregationKind способ агрегации значений в корзине.
type AggregationKind int

const (
	Sum AggregationKind = iota + 1
	Average
)

func (k AggregationKind) String() string {
	switch k {
	case Sum:
		return "sum"
	case Average:
		return "average"
	default:
		return "unknown"
	}
}

// BucketSize размер корзины агрегации.
type BucketSize int

const (
	Hour BucketSize = iota + 1
	Day
)

func (b BucketSize) String() string {
	switch b {
	case Hour:
		return "hour"
	case Day:
		return "day"
	default:
		return "unknown"
	}
}

// Next возвращает начало следующей корзины.
// Дни прибавляются календарно, чтобы переход на летнее время не сдвигал сетку.
func (b BucketSize) Next(t time.Time) time.Time {
	if b == Day {
		return t.AddDate(0, 0, 1)
	}
	return t.Add(time.Hour)
}

// Floor выравнивает момент вниз до границы корзины в зоне момента.
func (b BucketSize) Floor(t time.Time) time.Time {
	y, m, d := t.Date()
	if b == Day {
		return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
	}
	return time.Date(y, m, d, t.Hour(), 0, 0, 0, t.Location())
}

// StartOfDay возвращает полночь дня, которому принадлежит момент.
func StartOfDay(t time.Time) time.Time {
	return Day.Floor(t)
}
