package health

import (
	"fmt"
	"sort"
)

// CatalogEntry описание статистического типа данных
type CatalogEntry struct {
	Type DataType
	Kind AggregationKind
	Unit Unit
}

// Накопительные типы суммируются, дискретные усредняются.
var defaultEntries = map[DataType]CatalogEntry{
	StepCount:               {StepCount, Sum, Count},
	DistanceWalkingRunning:  {DistanceWalkingRunning, Sum, Meter},
	DistanceCycling:         {DistanceCycling, Sum, Meter},
	ActiveEnergyBurned:      {ActiveEnergyBurned, Sum, Kilocalorie},
	BasalEnergyBurned:       {BasalEnergyBurned, Sum, Kilocalorie},
	FlightsClimbed:          {FlightsClimbed, Sum, Count},
	AppleExerciseTime:       {AppleExerciseTime, Sum, Minute},
	DietaryEnergyConsumed:   {DietaryEnergyConsumed, Sum, Kilocalorie},
	DietaryWater:            {DietaryWater, Sum, Milliliter},
	HeartRate:               {HeartRate, Average, CountPerMinute},
	RestingHeartRate:        {RestingHeartRate, Average, CountPerMinute},
	WalkingHeartRateAverage: {WalkingHeartRateAverage, Average, CountPerMinute},
	HeartRateVariability:    {HeartRateVariability, Average, Millisecond},
	OxygenSaturation:        {OxygenSaturation, Average, Percent},
	RespiratoryRate:         {RespiratoryRate, Average, CountPerMinute},
	BodyMass:                {BodyMass, Average, Kilogram},
	Height:                  {Height, Average, Centimeter},
	BodyFatPercentage:       {BodyFatPercentage, Average, Percent},
	BloodPressureSystolic:   {BloodPressureSystolic, Average, MillimeterOfMercury},
	BloodPressureDiastolic:  {BloodPressureDiastolic, Average, MillimeterOfMercury},
	BloodGlucose:            {BloodGlucose, Average, MilligramPerDeciliter},
	BodyTemperature:         {BodyTemperature, Average, DegreeCelsius},
	VO2Max:                  {VO2Max, Average, MLPerKgMin},
}

// Catalog закрытый набор отслеживаемых статистических типов.
// Неподдерживаемый тип отсекается при построении каталога, поэтому
// AggregationKindFor и UnitFor не возвращают ошибок.
type Catalog struct {
	entries map[DataType]CatalogEntry
	order   []DataType
}

// DefaultCatalog возвращает каталог со всеми поддерживаемыми типами.
func DefaultCatalog() *Catalog {
	entries := make([]CatalogEntry, 0, len(defaultEntries))
	for _, e := range defaultEntries {
		entries = append(entries, e)
	}
	c, _ := NewCatalog(entries...)
	return c
}

// CatalogFor строит каталог из подмножества поддерживаемых типов.
// Пустой список означает все типы.
func CatalogFor(types []DataType) (*Catalog, error) {
	if len(types) == 0 {
		return DefaultCatalog(), nil
	}

	entries := make([]CatalogEntry, 0, len(types))
	for _, t := range types {
		e, ok := defaultEntries[t]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, t)
		}
		entries = append(entries, e)
	}
	return NewCatalog(entries...)
}

// NewCatalog строит каталог из произвольных записей.
func NewCatalog(entries ...CatalogEntry) (*Catalog, error) {
	c := &Catalog{entries: make(map[DataType]CatalogEntry, len(entries))}
	for _, e := range entries {
		if e.Type == "" || e.Type.IsChangeFeed() {
			return nil, fmt.Errorf("%w: %q is not a statistics type", ErrUnsupportedType, e.Type)
		}
		if e.Kind != Sum && e.Kind != Average {
			return nil, fmt.Errorf("%s: unknown aggregation kind", e.Type)
		}
		if e.Unit.IsZero() {
			return nil, fmt.Errorf("%s: unit is required", e.Type)
		}
		if _, dup := c.entries[e.Type]; dup {
			return nil, fmt.Errorf("%s: duplicate entry", e.Type)
		}
		c.entries[e.Type] = e
		c.order = append(c.order, e.Type)
	}
	sort.Slice(c.order, func(i, j int) bool { return c.order[i] < c.order[j] })
	return c, nil
}

// AggregationKindFor возвращает способ агрегации типа.
func (c *Catalog) AggregationKindFor(t DataType) AggregationKind {
	return c.entries[t].Kind
}

// UnitFor возвращает единицу измерения типа.
func (c *Catalog) UnitFor(t DataType) Unit {
	return c.entries[t].Unit
}

// Contains сообщает, отслеживается ли тип.
func (c *Catalog) Contains(t DataType) bool {
	_, ok := c.entries[t]
	return ok
}

// StatisticsTypes возвращает отслеживаемые статистические типы в стабильном порядке.
func (c *Catalog) StatisticsTypes() []DataType {
	out := make([]DataType, len(c.order))
	copy(out, c.order)
	return out
}

// ChangeFeedTypes возвращает типы, читаемые через ленту изменений.
func (c *Catalog) ChangeFeedTypes() []DataType {
	return []DataType{SleepAnalysis, Workout}
}

// ReadTypes возвращает все типы, на чтение которых запрашивается разрешение.
func (c *Catalog) ReadTypes() []DataType {
	return append(c.StatisticsTypes(), c.ChangeFeedTypes()...)
}
