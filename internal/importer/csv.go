package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jgoulah/gridmeter/pkg/models"
)

// Options controls how CSV rows are turned into usage records
type Options struct {
	Service string
	// Method is applied to rows without a method column or with an empty cell
	Method models.ElectricityUsageMethod
	// Since drops rows dated before it when non-zero
	Since time.Time
}

// Result is the outcome of parsing one CSV export
type Result struct {
	Records []models.UsageData
	Skipped int
}

type columns struct {
	date      int
	startTime int
	endTime   int
	usage     int
	method    int
}

// ParseFile parses a utility CSV export from disk
func ParseFile(path string, opts Options) (*Result, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening CSV: %w", err)
	}
	defer file.Close()

	return Parse(file, opts)
}

// Parse reads a usage CSV. Required columns are a date and a usage column,
// found by header name; start time, end time and method are optional.
func Parse(r io.Reader, opts Options) (*Result, error) {
	if !opts.Method.IsValid() {
		return nil, fmt.Errorf("default method: %w", &models.InvalidUsageMethodError{Value: strconv.Itoa(opts.Method.Int())})
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}

	cols := findColumns(header)
	if cols.date == -1 || cols.usage == -1 {
		return nil, fmt.Errorf("could not find required columns (date and usage) in CSV. Header: %v", header)
	}

	result := &Result{}
	row := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		row++
		if err != nil {
			return nil, fmt.Errorf("reading CSV row %d: %w", row, err)
		}

		if len(record) <= cols.usage || len(record) <= cols.date {
			result.Skipped++
			continue
		}

		dateStr := strings.TrimSpace(record[cols.date])
		if dateStr == "" {
			result.Skipped++
			continue
		}

		date, err := ParseDate(dateStr)
		if err != nil {
			// Skip rows we can't parse
			result.Skipped++
			continue
		}
		date = time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)

		if !opts.Since.IsZero() && date.Before(opts.Since) {
			result.Skipped++
			continue
		}

		usage, err := ParseKWh(record[cols.usage])
		if err != nil || usage == 0 {
			result.Skipped++
			continue
		}

		method := opts.Method
		if cols.method != -1 && len(record) > cols.method {
			if cell := strings.TrimSpace(record[cols.method]); cell != "" {
				method, err = models.ParseElectricityUsageMethodValue(cell)
				if err != nil {
					return nil, fmt.Errorf("CSV row %d: %w", row, err)
				}
			}
		}

		result.Records = append(result.Records, models.UsageData{
			Date:      date,
			StartTime: optionalTime(record, cols.startTime),
			EndTime:   optionalTime(record, cols.endTime),
			KWh:       usage,
			Service:   opts.Service,
			Method:    method,
		})
	}

	return result, nil
}

func findColumns(header []string) columns {
	cols := columns{date: -1, startTime: -1, endTime: -1, usage: -1, method: -1}
	for i, col := range header {
		colLower := strings.ToLower(strings.TrimSpace(col))
		switch {
		case strings.Contains(colLower, "start time"):
			cols.startTime = i
		case strings.Contains(colLower, "end time"):
			cols.endTime = i
		case strings.Contains(colLower, "date") && !strings.Contains(colLower, "time"):
			cols.date = i
		case strings.Contains(colLower, "usage") && !strings.Contains(colLower, "method"):
			cols.usage = i
		case strings.Contains(colLower, "method"):
			cols.method = i
		}
	}
	return cols
}

func optionalTime(record []string, col int) time.Time {
	if col == -1 || len(record) <= col {
		return time.Time{}
	}
	s := strings.TrimSpace(record[col])
	if s == "" {
		return time.Time{}
	}
	t, err := ParseDate(s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

// ParseDate attempts the date and timestamp layouts utility exports use
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)

	formats := []string{
		"2006-01-02 15:04:05-07:00", // ISO 8601 with timezone (End Time column)
		"2006-01-02T15:04:05-07:00", // ISO 8601 variant
		time.RFC3339,
		"2006-01-02 15:04:05", // Datetime without timezone
		"2006-01-02 15:04",
		"1/2/2006",
		"01/02/2006",
		"2006-01-02",
		"1/2/06",
		"01/02/06",
		"Jan 2, 2006",
		"January 2, 2006",
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unable to parse date: %s", s)
}

// ParseKWh attempts to parse a kWh value from a string
func ParseKWh(s string) (float64, error) {
	// Remove common formatting characters
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ToLower(s)
	s = strings.TrimSuffix(s, "kwh")
	s = strings.TrimSpace(s)

	if s == "" {
		return 0, fmt.Errorf("empty string")
	}

	return strconv.ParseFloat(s, 64)
}
