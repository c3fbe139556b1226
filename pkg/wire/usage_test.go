package wire

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jgoulah/gridmeter/pkg/models"
)

func TestUsageCBORRoundTrip(t *testing.T) {
	start := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	original := models.UsageData{
		Date:      time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC),
		StartTime: start,
		EndTime:   start.Add(time.Hour),
		KWh:       2.75,
		Service:   "nyseg",
		Method:    models.ConsumptionIntoStorage,
	}

	data, err := EncodeUsage(original)
	require.NoError(t, err)

	decoded, err := DecodeUsage(data)
	require.NoError(t, err)

	assert.True(t, decoded.Date.Equal(original.Date))
	assert.True(t, decoded.StartTime.Equal(original.StartTime))
	assert.True(t, decoded.EndTime.Equal(original.EndTime))
	assert.Equal(t, original.KWh, decoded.KWh)
	assert.Equal(t, original.Service, decoded.Service)
	assert.Equal(t, original.Method, decoded.Method)
}

func TestUsageCBORIsDeterministic(t *testing.T) {
	u := models.UsageData{
		Date:    time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC),
		KWh:     1,
		Service: "coned",
		Method:  models.Generation,
	}
	a, err := EncodeUsage(u)
	require.NoError(t, err)
	b, err := EncodeUsage(u)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestUsageCBORMethodIsInteger(t *testing.T) {
	data, err := EncodeUsage(models.UsageData{
		Date:   time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC),
		Method: models.GenerationFromStorage,
	})
	require.NoError(t, err)

	var raw map[int]interface{}
	require.NoError(t, cbor.Unmarshal(data, &raw))
	assert.Equal(t, uint64(6), raw[2])
}

func TestEncodeUsageRejectsInvalidMethod(t *testing.T) {
	_, err := EncodeUsage(models.UsageData{Date: time.Now()})
	assert.True(t, errors.Is(err, models.ErrInvalidUsageMethod))
}

func TestDecodeUsageRejectsInvalidMethod(t *testing.T) {
	for _, method := range []int{0, 7} {
		data, err := cbor.Marshal(UsageRecord{Service: "nyseg", Method: method, Date: "2026-01-02"})
		require.NoError(t, err)

		_, err = DecodeUsage(data)
		assert.ErrorIs(t, err, models.ErrInvalidUsageMethod)
	}
}

func TestDecodeUsageGarbage(t *testing.T) {
	_, err := DecodeUsage([]byte{0xff, 0x00})
	assert.Error(t, err)
}

func TestUsageStream(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)

	methods := models.ElectricityUsageMethods()
	for i, m := range methods {
		rec, err := FromUsage(models.UsageData{
			Date:    time.Date(2026, 2, 1+i, 0, 0, 0, 0, time.UTC),
			KWh:     float64(i),
			Service: "nyseg",
			Method:  m,
		})
		require.NoError(t, err)
		require.NoError(t, enc.Encode(rec))
	}

	dec := NewDecoder(&buf)
	var got []models.ElectricityUsageMethod
	for {
		var rec UsageRecord
		err := dec.Decode(&rec)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		u, err := rec.ToUsage()
		require.NoError(t, err)
		got = append(got, u.Method)
	}
	assert.Equal(t, methods, got)
}
