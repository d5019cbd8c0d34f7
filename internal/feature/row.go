package feature

import (
	"math"
	"strconv"
	"strings"

	"github.com/spf13/cast"
)

const (
	// YearColumn is the manufacturing year of the motorcycle.
	YearColumn = "year"
	// KilometersColumn is the odometer reading.
	KilometersColumn = "km"
)

// Row is a single motorcycle listing: feature name to value.
// Values are numbers or strings as they arrive from a form, a JSON body or a CSV record.
type Row map[string]any

// Report describes what the cleaning policy did to a row.
// Nothing in it is an error: it exists so callers can audit data quality.
type Report struct {
	// Coerced lists numeric columns that were missing or not a number and were set to 0.
	Coerced []string `json:"coerced,omitempty"`
	// HeuristicFaults lists heuristic fields (year, km) that were missing or unparsable.
	HeuristicFaults []string `json:"heuristic_faults,omitempty"`
}

// Clean reports whether no value had to be substituted.
func (r Report) Clean() bool {
	return len(r.Coerced) == 0 && len(r.HeuristicFaults) == 0
}

// Clean returns a copy of row where every column in numericCols holds a float64.
// A value that is missing or cannot be read as a number becomes 0 and its column
// is recorded in the returned Report. Other columns are copied untouched.
// The input row is never modified.
func Clean(row Row, numericCols []string) (Row, Report) {
	cleaned := make(Row, len(row)+len(numericCols))
	for k, v := range row {
		cleaned[k] = v
	}

	var report Report
	for _, col := range numericCols {
		value, ok := ToNumber(row[col])
		if !ok {
			report.Coerced = append(report.Coerced, col)
		}
		cleaned[col] = value
	}

	return cleaned, report
}

// ToNumber converts v to a float64. It returns (0, false) for nil, blank strings,
// NaN and anything cast cannot convert.
func ToNumber(v any) (float64, bool) {
	if v == nil {
		return 0, false
	}
	if s, isString := v.(string); isString {
		s = strings.TrimSpace(s)
		if s == "" {
			return 0, false
		}
		v = s
	}

	f, err := cast.ToFloat64E(v)
	if err != nil || math.IsNaN(f) {
		return 0, false
	}

	return f, true
}

// Year returns the integer value of the year column.
// Strings must be integer literals; numbers are truncated toward zero
// and clamped to the int32 range.
func Year(row Row) (int, bool) {
	v, found := row[YearColumn]
	if !found || v == nil {
		return 0, false
	}

	if s, isString := v.(string); isString {
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return 0, false
		}
		return n, true
	}

	f, err := cast.ToFloat64E(v)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}

	// out of range floats would wrap on conversion
	f = math.Max(math.MinInt32, math.Min(math.MaxInt32, f))

	return int(f), true
}

// Kilometers returns the numeric value of the km column.
func Kilometers(row Row) (float64, bool) {
	v, found := row[KilometersColumn]
	if !found || v == nil {
		return 0, false
	}

	if s, isString := v.(string); isString {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}

	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, false
	}

	return f, true
}
