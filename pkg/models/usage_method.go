package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ElectricityUsageMethod classifies how a usage record's energy was drawn or produced.
// The integer values are persisted and published; never renumber them.
type ElectricityUsageMethod int

const (
	Consumption                  ElectricityUsageMethod = 1
	Generation                   ElectricityUsageMethod = 2
	ConsumptionIntoStorage       ElectricityUsageMethod = 3
	OptimizedConsumptionIncrease ElectricityUsageMethod = 4
	OptimizedConsumptionDecrease ElectricityUsageMethod = 5
	GenerationFromStorage        ElectricityUsageMethod = 6
)

// ErrInvalidUsageMethod is matched by every error returned for a value outside the defined set
var ErrInvalidUsageMethod = errors.New("invalid electricity usage method")

// InvalidUsageMethodError reports the rejected input
type InvalidUsageMethodError struct {
	Value string
}

func (e *InvalidUsageMethodError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvalidUsageMethod, e.Value)
}

func (e *InvalidUsageMethodError) Is(target error) bool {
	return target == ErrInvalidUsageMethod
}

var usageMethodNames = map[ElectricityUsageMethod]string{
	Consumption:                  "Consumption",
	Generation:                   "Generation",
	ConsumptionIntoStorage:       "ConsumptionIntoStorage",
	OptimizedConsumptionIncrease: "OptimizedConsumptionIncrease",
	OptimizedConsumptionDecrease: "OptimizedConsumptionDecrease",
	GenerationFromStorage:        "GenerationFromStorage",
}

var usageMethodSlugs = map[ElectricityUsageMethod]string{
	Consumption:                  "consumption",
	Generation:                   "generation",
	ConsumptionIntoStorage:       "consumption_into_storage",
	OptimizedConsumptionIncrease: "optimized_consumption_increase",
	OptimizedConsumptionDecrease: "optimized_consumption_decrease",
	GenerationFromStorage:        "generation_from_storage",
}

// ElectricityUsageMethods returns every defined method in declaration order
func ElectricityUsageMethods() []ElectricityUsageMethod {
	return []ElectricityUsageMethod{
		Consumption,
		Generation,
		ConsumptionIntoStorage,
		OptimizedConsumptionIncrease,
		OptimizedConsumptionDecrease,
		GenerationFromStorage,
	}
}

// ElectricityUsageMethodFromInt converts a stored discriminant back into a method
func ElectricityUsageMethodFromInt(v int) (ElectricityUsageMethod, error) {
	m := ElectricityUsageMethod(v)
	if !m.IsValid() {
		return 0, &InvalidUsageMethodError{Value: strconv.Itoa(v)}
	}
	return m, nil
}

// ParseElectricityUsageMethod accepts the canonical name (any case) or the snake_case slug
func ParseElectricityUsageMethod(name string) (ElectricityUsageMethod, error) {
	s := strings.TrimSpace(name)
	for _, m := range ElectricityUsageMethods() {
		if strings.EqualFold(s, usageMethodNames[m]) || strings.EqualFold(s, usageMethodSlugs[m]) {
			return m, nil
		}
	}
	return 0, &InvalidUsageMethodError{Value: strconv.Quote(name)}
}

// ParseElectricityUsageMethodValue is like ParseElectricityUsageMethod but also accepts "1".."6"
func ParseElectricityUsageMethodValue(s string) (ElectricityUsageMethod, error) {
	if v, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
		return ElectricityUsageMethodFromInt(v)
	}
	return ParseElectricityUsageMethod(s)
}

// IsValid reports whether m is one of the six defined methods
func (m ElectricityUsageMethod) IsValid() bool {
	return m >= Consumption && m <= GenerationFromStorage
}

// Int returns the stable discriminant
func (m ElectricityUsageMethod) Int() int {
	return int(m)
}

func (m ElectricityUsageMethod) String() string {
	if name, ok := usageMethodNames[m]; ok {
		return name
	}
	return "ElectricityUsageMethod(" + strconv.Itoa(int(m)) + ")"
}

// Slug returns the snake_case form used in MQTT topics and config keys
func (m ElectricityUsageMethod) Slug() string {
	if slug, ok := usageMethodSlugs[m]; ok {
		return slug
	}
	return "unknown"
}

// IsStorage reports whether energy moved into or out of local storage
func (m ElectricityUsageMethod) IsStorage() bool {
	return m == ConsumptionIntoStorage || m == GenerationFromStorage
}

// IsOptimized reports whether the record is an optimizer-driven adjustment
func (m ElectricityUsageMethod) IsOptimized() bool {
	return m == OptimizedConsumptionIncrease || m == OptimizedConsumptionDecrease
}

// GridSign is +1 for methods that draw energy and -1 for methods that offset it.
// Invalid methods return 0.
func (m ElectricityUsageMethod) GridSign() int {
	switch m {
	case Consumption, ConsumptionIntoStorage, OptimizedConsumptionIncrease:
		return 1
	case Generation, OptimizedConsumptionDecrease, GenerationFromStorage:
		return -1
	default:
		return 0
	}
}

// MarshalJSON writes the integer discriminant
func (m ElectricityUsageMethod) MarshalJSON() ([]byte, error) {
	if !m.IsValid() {
		return nil, &InvalidUsageMethodError{Value: strconv.Itoa(int(m))}
	}
	return []byte(strconv.Itoa(int(m))), nil
}

// UnmarshalJSON accepts the integer discriminant or a name string
func (m *ElectricityUsageMethod) UnmarshalJSON(data []byte) error {
	var v int
	if err := json.Unmarshal(data, &v); err == nil {
		parsed, err := ElectricityUsageMethodFromInt(v)
		if err != nil {
			return err
		}
		*m = parsed
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return &InvalidUsageMethodError{Value: string(data)}
	}
	parsed, err := ParseElectricityUsageMethod(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

func (m ElectricityUsageMethod) MarshalText() ([]byte, error) {
	if !m.IsValid() {
		return nil, &InvalidUsageMethodError{Value: strconv.Itoa(int(m))}
	}
	return []byte(m.String()), nil
}

func (m *ElectricityUsageMethod) UnmarshalText(text []byte) error {
	parsed, err := ParseElectricityUsageMethodValue(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// MarshalYAML writes the canonical name so config files stay readable
func (m ElectricityUsageMethod) MarshalYAML() (interface{}, error) {
	if !m.IsValid() {
		return nil, &InvalidUsageMethodError{Value: strconv.Itoa(int(m))}
	}
	return m.String(), nil
}

func (m *ElectricityUsageMethod) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: usage method must be a scalar: %w", value.Line, ErrInvalidUsageMethod)
	}
	parsed, err := ParseElectricityUsageMethodValue(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*m = parsed
	return nil
}

// Value stores the discriminant as an INTEGER column
func (m ElectricityUsageMethod) Value() (driver.Value, error) {
	if !m.IsValid() {
		return nil, &InvalidUsageMethodError{Value: strconv.Itoa(int(m))}
	}
	return int64(m), nil
}

func (m *ElectricityUsageMethod) Scan(src interface{}) error {
	var v int64
	switch t := src.(type) {
	case int64:
		v = t
	case []byte:
		n, err := strconv.ParseInt(string(t), 10, 64)
		if err != nil {
			return &InvalidUsageMethodError{Value: strconv.Quote(string(t))}
		}
		v = n
	case string:
		n, err := strconv.ParseInt(t, 10, 64)
		if err != nil {
			return &InvalidUsageMethodError{Value: strconv.Quote(t)}
		}
		v = n
	case nil:
		return &InvalidUsageMethodError{Value: "NULL"}
	default:
		return &InvalidUsageMethodError{Value: fmt.Sprintf("%v", src)}
	}

	parsed, err := ElectricityUsageMethodFromInt(int(v))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
