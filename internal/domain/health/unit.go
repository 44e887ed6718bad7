package health

import (
	"fmt"
	"math"
)

// Dimension физическая размерность единицы измерения
type Dimension int

const (
	DimCount Dimension = iota + 1
	DimFrequency
	DimLength
	DimEnergy
	DimMass
	DimTime
	DimRatio
	DimPressure
	DimTemperature
	DimConcentration
	DimVolume
	DimOxygenUptake
)

// Unit единица измерения: символ, размерность и множитель к базовой единице размерности.
type Unit struct {
	symbol string
	dim    Dimension
	factor float64
}

var (
	Count          = Unit{"count", DimCount, 1}
	CountPerMinute = Unit{"count/min", DimFrequency, 1}
	CountPerSecond = Unit{"count/s", DimFrequency, 60}

	Meter      = Unit{"m", DimLength, 1}
	Centimeter = Unit{"cm", DimLength, 0.01}
	Kilometer  = Unit{"km", DimLength, 1000}
	Foot       = Unit{"ft", DimLength, 0.3048}
	Mile       = Unit{"mi", DimLength, 1609.344}

	Kilocalorie = Unit{"kcal", DimEnergy, 1}
	Kilojoule   = Unit{"kJ", DimEnergy, 1 / 4.184}

	Kilogram = Unit{"kg", DimMass, 1}
	Gram     = Unit{"g", DimMass, 0.001}
	Pound    = Unit{"lb", DimMass, 0.45359237}

	Second      = Unit{"s", DimTime, 1}
	Millisecond = Unit{"ms", DimTime, 0.001}
	Minute      = Unit{"min", DimTime, 60}
	HourUnit    = Unit{"hr", DimTime, 3600}

	// Percent хранит долю (0.97 означает 97%), как это делает платформа.
	Percent = Unit{"%", DimRatio, 1}

	MillimeterOfMercury = Unit{"mmHg", DimPressure, 1}
	Kilopascal          = Unit{"kPa", DimPressure, 7.500615758}

	DegreeCelsius = Unit{"degC", DimTemperature, 1}

	MilligramPerDeciliter = Unit{"mg/dL", DimConcentration, 1}

	Liter      = Unit{"L", DimVolume, 1}
	Milliliter = Unit{"mL", DimVolume, 0.001}
	FluidOunce = Unit{"fl_oz_us", DimVolume, 0.0295735295625}

	MLPerKgMin = Unit{"mL/(kg*min)", DimOxygenUptake, 1}
)

var unitsBySymbol = func() map[string]Unit {
	all := []Unit{
		Count, CountPerMinute, CountPerSecond,
		Meter, Centimeter, Kilometer, Foot, Mile,
		Kilocalorie, Kilojoule,
		Kilogram, Gram, Pound,
		Second, Millisecond, Minute, HourUnit,
		Percent,
		MillimeterOfMercury, Kilopascal,
		DegreeCelsius,
		MilligramPerDeciliter,
		Liter, Milliliter, FluidOunce,
		MLPerKgMin,
	}
	m := make(map[string]Unit, len(all))
	for _, u := range all {
		m[u.symbol] = u
	}
	return m
}()

// ParseUnit возвращает единицу по символу.
func ParseUnit(symbol string) (Unit, error) {
	u, ok := unitsBySymbol[symbol]
	if !ok {
		return Unit{}, fmt.Errorf("unknown unit %q", symbol)
	}
	return u, nil
}

func (u Unit) String() string {
	return u.symbol
}

// Dimension возвращает размерность единицы.
func (u Unit) Dimension() Dimension {
	return u.dim
}

// IsZero сообщает, что единица не задана.
func (u Unit) IsZero() bool {
	return u.dim == 0
}

// CompatibleWith сообщает, можно ли перевести значение из u в other.
func (u Unit) CompatibleWith(other Unit) bool {
	return !u.IsZero() && u.dim == other.dim
}

func (u Unit) MarshalText() ([]byte, error) {
	return []byte(u.symbol), nil
}

func (u *Unit) UnmarshalText(text []byte) error {
	parsed, err := ParseUnit(string(text))
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}

// Quantity значение с единицей измерения
type Quantity struct {
	Value float64 `json:"value"`
	Unit  Unit    `json:"unit"`
}

// In переводит величину в единицу target.
// Несовместимые единицы дают ошибку вида KindUnitMismatch.
func (q Quantity) In(target Unit) (float64, error) {
	if !q.Unit.CompatibleWith(target) {
		return 0, &Error{
			Kind: KindUnitMismatch,
			Op:   "convert",
			Err:  fmt.Errorf("cannot convert %s to %s", q.Unit, target),
		}
	}
	if q.Unit == target {
		return q.Value, nil
	}
	return q.Value * q.Unit.factor / target.factor, nil
}

// Round3 округляет значение до трех знаков после запятой.
func Round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
