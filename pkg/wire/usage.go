package wire

import (
	"fmt"
	"io"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/jgoulah/gridmeter/pkg/models"
)

// usageEncMode is the CBOR encoder mode for usage records.
// Deterministic so the same record always produces the same bytes.
var usageEncMode cbor.EncMode

var usageDecMode cbor.DecMode

func init() {
	var err error

	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeRFC3339,
	}
	usageEncMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create usage CBOR encoder mode: %v", err))
	}

	decOpts := cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyEnforcedAPF,
		IndefLength: cbor.IndefLengthAllowed,
	}
	usageDecMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create usage CBOR decoder mode: %v", err))
	}
}

// UsageRecord is the on-the-wire form of a usage reading.
// Method carries the raw discriminant so decoding can reject unknown values.
type UsageRecord struct {
	Service   string    `cbor:"1,keyasint"`
	Method    int       `cbor:"2,keyasint"`
	KWh       float64   `cbor:"3,keyasint"`
	Date      string    `cbor:"4,keyasint"`
	StartTime time.Time `cbor:"5,keyasint"`
	EndTime   time.Time `cbor:"6,keyasint"`
}

// FromUsage converts a stored reading to its wire form
func FromUsage(u models.UsageData) (UsageRecord, error) {
	if !u.Method.IsValid() {
		return UsageRecord{}, &models.InvalidUsageMethodError{Value: fmt.Sprintf("%d", u.Method)}
	}
	return UsageRecord{
		Service:   u.Service,
		Method:    u.Method.Int(),
		KWh:       u.KWh,
		Date:      u.Date.Format("2006-01-02"),
		StartTime: u.StartTime,
		EndTime:   u.EndTime,
	}, nil
}

// ToUsage validates the method discriminant and converts back to a reading
func (r UsageRecord) ToUsage() (models.UsageData, error) {
	method, err := models.ElectricityUsageMethodFromInt(r.Method)
	if err != nil {
		return models.UsageData{}, err
	}

	date, err := time.Parse("2006-01-02", r.Date)
	if err != nil {
		return models.UsageData{}, fmt.Errorf("parsing date: %w", err)
	}

	return models.UsageData{
		Date:      date,
		StartTime: r.StartTime,
		EndTime:   r.EndTime,
		KWh:       r.KWh,
		Service:   r.Service,
		Method:    method,
	}, nil
}

// EncodeUsage encodes a reading to CBOR bytes using integer keys for compactness.
func EncodeUsage(u models.UsageData) ([]byte, error) {
	rec, err := FromUsage(u)
	if err != nil {
		return nil, err
	}
	return usageEncMode.Marshal(rec)
}

// DecodeUsage decodes CBOR bytes into a reading.
func DecodeUsage(data []byte) (models.UsageData, error) {
	var rec UsageRecord
	if err := usageDecMode.Unmarshal(data, &rec); err != nil {
		return models.UsageData{}, fmt.Errorf("decoding usage record: %w", err)
	}
	return rec.ToUsage()
}

// NewEncoder creates a CBOR encoder for usage records that writes to w.
func NewEncoder(w io.Writer) *cbor.Encoder {
	return usageEncMode.NewEncoder(w)
}

// NewDecoder creates a CBOR decoder for usage records that reads from r.
func NewDecoder(r io.Reader) *cbor.Decoder {
	return usageDecMode.NewDecoder(r)
}
