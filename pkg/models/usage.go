package models

import "time"

// UsageData represents a single electricity usage reading
type UsageData struct {
	ID        int                    `json:"id"`
	Date      time.Time              `json:"date"`       // Just the date (for querying)
	StartTime time.Time              `json:"start_time"` // Full timestamp
	EndTime   time.Time              `json:"end_time"`   // Full timestamp
	KWh       float64                `json:"kwh"`
	Service   string                 `json:"service"` // "nyseg" or "coned"
	Method    ElectricityUsageMethod `json:"method"`
}

// Summary aggregates usage records by method
type Summary struct {
	Records  int
	ByMethod map[ElectricityUsageMethod]float64
	// Net is drawn energy minus offset energy, in kWh
	Net float64
}

// Summarize totals kWh per method. Records with an invalid method are counted
// but contribute to neither the per-method totals nor Net.
func Summarize(records []UsageData) Summary {
	s := Summary{ByMethod: make(map[ElectricityUsageMethod]float64)}
	for _, r := range records {
		s.Records++
		if !r.Method.IsValid() {
			continue
		}
		s.ByMethod[r.Method] += r.KWh
		s.Net += float64(r.Method.GridSign()) * r.KWh
	}
	return s
}

// Total returns the kWh recorded for m
func (s Summary) Total(m ElectricityUsageMethod) float64 {
	return s.ByMethod[m]
}
