package models

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestUsageMethodDiscriminants(t *testing.T) {
	want := map[ElectricityUsageMethod]int{
		Consumption:                  1,
		Generation:                   2,
		ConsumptionIntoStorage:       3,
		OptimizedConsumptionIncrease: 4,
		OptimizedConsumptionDecrease: 5,
		GenerationFromStorage:        6,
	}
	for m, v := range want {
		assert.Equal(t, v, m.Int(), m.String())
	}
}

func TestUsageMethodsAreClosed(t *testing.T) {
	methods := ElectricityUsageMethods()
	require.Len(t, methods, 6)

	seen := make(map[int]ElectricityUsageMethod)
	for _, m := range methods {
		_, dup := seen[m.Int()]
		assert.False(t, dup, "discriminant %d used twice", m.Int())
		seen[m.Int()] = m
	}
	for v := 1; v <= 6; v++ {
		assert.Contains(t, seen, v)
	}
}

func TestUsageMethodNameRoundTrip(t *testing.T) {
	for _, m := range ElectricityUsageMethods() {
		t.Run(m.String(), func(t *testing.T) {
			byName, err := ParseElectricityUsageMethod(m.String())
			require.NoError(t, err)

			byInt, err := ElectricityUsageMethodFromInt(byName.Int())
			require.NoError(t, err)
			assert.Equal(t, m.String(), byInt.String())

			bySlug, err := ParseElectricityUsageMethod(m.Slug())
			require.NoError(t, err)
			assert.Equal(t, m, bySlug)
		})
	}
}

func TestUsageMethodFromIntOutOfRange(t *testing.T) {
	for _, v := range []int{0, 7, -1, 100} {
		_, err := ElectricityUsageMethodFromInt(v)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidUsageMethod))

		var invalid *InvalidUsageMethodError
		require.True(t, errors.As(err, &invalid))
	}
}

func TestUsageMethodNameEqualsInt(t *testing.T) {
	byName, err := ParseElectricityUsageMethod("Consumption")
	require.NoError(t, err)
	byInt, err := ElectricityUsageMethodFromInt(1)
	require.NoError(t, err)
	assert.Equal(t, byName, byInt)
	assert.True(t, byName == Consumption)
}

func TestParseUsageMethod(t *testing.T) {
	tests := []struct {
		in      string
		want    ElectricityUsageMethod
		wantErr bool
	}{
		{in: "generation", want: Generation},
		{in: "  GenerationFromStorage ", want: GenerationFromStorage},
		{in: "OPTIMIZEDCONSUMPTIONDECREASE", want: OptimizedConsumptionDecrease},
		{in: "consumption_into_storage", want: ConsumptionIntoStorage},
		{in: "", wantErr: true},
		{in: "Discharge", wantErr: true},
		{in: "3", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseElectricityUsageMethod(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrInvalidUsageMethod, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	got, err := ParseElectricityUsageMethodValue("3")
	require.NoError(t, err)
	assert.Equal(t, ConsumptionIntoStorage, got)

	_, err = ParseElectricityUsageMethodValue("7")
	assert.ErrorIs(t, err, ErrInvalidUsageMethod)
}

func TestUsageMethodString(t *testing.T) {
	assert.Equal(t, "OptimizedConsumptionIncrease", OptimizedConsumptionIncrease.String())
	assert.Equal(t, "ElectricityUsageMethod(9)", ElectricityUsageMethod(9).String())
	assert.Equal(t, "unknown", ElectricityUsageMethod(0).Slug())
}

func TestUsageMethodClassification(t *testing.T) {
	assert.True(t, ConsumptionIntoStorage.IsStorage())
	assert.True(t, GenerationFromStorage.IsStorage())
	assert.False(t, Generation.IsStorage())

	assert.True(t, OptimizedConsumptionIncrease.IsOptimized())
	assert.True(t, OptimizedConsumptionDecrease.IsOptimized())
	assert.False(t, Consumption.IsOptimized())

	assert.Equal(t, 1, Consumption.GridSign())
	assert.Equal(t, 1, ConsumptionIntoStorage.GridSign())
	assert.Equal(t, 1, OptimizedConsumptionIncrease.GridSign())
	assert.Equal(t, -1, Generation.GridSign())
	assert.Equal(t, -1, OptimizedConsumptionDecrease.GridSign())
	assert.Equal(t, -1, GenerationFromStorage.GridSign())
	assert.Equal(t, 0, ElectricityUsageMethod(0).GridSign())
}

func TestUsageMethodJSON(t *testing.T) {
	data, err := json.Marshal(UsageData{KWh: 1.5, Method: GenerationFromStorage})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"method":6`)

	var decoded UsageData
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, GenerationFromStorage, decoded.Method)

	var byName UsageData
	require.NoError(t, json.Unmarshal([]byte(`{"method":"Generation"}`), &byName))
	assert.Equal(t, Generation, byName.Method)

	var bad UsageData
	for _, body := range []string{`{"method":7}`, `{"method":1.0}`, `{"method":7.5}`, `{"method":true}`, `{"method":[1]}`} {
		err = json.Unmarshal([]byte(body), &bad)
		assert.ErrorIs(t, err, ErrInvalidUsageMethod, body)
	}

	_, err = json.Marshal(UsageData{})
	assert.ErrorIs(t, err, ErrInvalidUsageMethod)
}

func TestUsageMethodYAML(t *testing.T) {
	type doc struct {
		Method   ElectricityUsageMethod            `yaml:"method"`
		Entities map[ElectricityUsageMethod]string `yaml:"entities"`
	}

	out, err := yaml.Marshal(doc{
		Method:   OptimizedConsumptionIncrease,
		Entities: map[ElectricityUsageMethod]string{Generation: "sensor.solar"},
	})
	require.NoError(t, err)
	assert.Contains(t, string(out), "method: OptimizedConsumptionIncrease")
	assert.Contains(t, string(out), "Generation: sensor.solar")

	var in doc
	require.NoError(t, yaml.Unmarshal([]byte("method: 5\nentities:\n  generation_from_storage: sensor.battery\n"), &in))
	assert.Equal(t, OptimizedConsumptionDecrease, in.Method)
	assert.Equal(t, "sensor.battery", in.Entities[GenerationFromStorage])

	err = yaml.Unmarshal([]byte("method: Discharge\n"), &in)
	assert.ErrorIs(t, err, ErrInvalidUsageMethod)
}

func TestUsageMethodSQL(t *testing.T) {
	v, err := ConsumptionIntoStorage.Value()
	require.NoError(t, err)
	assert.Equal(t, int64(3), v)

	_, err = ElectricityUsageMethod(0).Value()
	assert.ErrorIs(t, err, ErrInvalidUsageMethod)

	var m ElectricityUsageMethod
	require.NoError(t, m.Scan(int64(2)))
	assert.Equal(t, Generation, m)
	require.NoError(t, m.Scan([]byte("4")))
	assert.Equal(t, OptimizedConsumptionIncrease, m)

	assert.ErrorIs(t, m.Scan(int64(7)), ErrInvalidUsageMethod)
	assert.ErrorIs(t, m.Scan(nil), ErrInvalidUsageMethod)
	assert.ErrorIs(t, m.Scan(2.5), ErrInvalidUsageMethod)
}

func TestSummarize(t *testing.T) {
	s := Summarize([]UsageData{
		{KWh: 10, Method: Consumption},
		{KWh: 4, Method: Generation},
		{KWh: 2, Method: ConsumptionIntoStorage},
		{KWh: 1.5, Method: GenerationFromStorage},
		{KWh: 3, Method: Consumption},
		{KWh: 99},
	})

	assert.Equal(t, 6, s.Records)
	assert.InDelta(t, 13.0, s.Total(Consumption), 1e-9)
	assert.InDelta(t, 4.0, s.Total(Generation), 1e-9)
	assert.InDelta(t, 0.0, s.Total(OptimizedConsumptionIncrease), 1e-9)
	assert.InDelta(t, 13.0-4+2-1.5, s.Net, 1e-9)
}
