package feature

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClean_CoercesNumericColumns(t *testing.T) {
	row := Row{
		"year":      "2015",
		"km":        int32(42000),
		"engine_cc": "abc",
		"brand":     "honda",
	}

	cleaned, report := Clean(row, []string{"year", "km", "engine_cc"})

	assert.Equal(t, 2015.0, cleaned["year"])
	assert.Equal(t, 42000.0, cleaned["km"])
	assert.Equal(t, 0.0, cleaned["engine_cc"], "unparsable value should become 0")
	assert.Equal(t, "honda", cleaned["brand"], "categorical column should be copied untouched")
	assert.Equal(t, []string{"engine_cc"}, report.Coerced)
	assert.False(t, report.Clean())
}

func TestClean_MissingColumnBecomesZero(t *testing.T) {
	cleaned, report := Clean(Row{"brand": "yamaha"}, []string{"km"})

	assert.Equal(t, 0.0, cleaned["km"])
	assert.Equal(t, []string{"km"}, report.Coerced)
}

func TestClean_DoesNotMutateInput(t *testing.T) {
	row := Row{"km": "1000"}
	_, _ = Clean(row, []string{"km", "year"})

	assert.Equal(t, Row{"km": "1000"}, row, "input row should stay as it was")
}

func TestClean_NoNumericColumns(t *testing.T) {
	cleaned, report := Clean(Row{"brand": "honda"}, nil)

	assert.Equal(t, Row{"brand": "honda"}, cleaned)
	assert.True(t, report.Clean())
}

func TestToNumber(t *testing.T) {
	tests := []struct {
		name  string
		in    any
		want  float64
		valid bool
	}{
		{"float", 1.5, 1.5, true},
		{"int", 7, 7, true},
		{"padded string", "  12.5 ", 12.5, true},
		{"exponent string", "1e5", 100000, true},
		{"blank string", "   ", 0, false},
		{"garbage", "n/a", 0, false},
		{"nil", nil, 0, false},
		{"nan", math.NaN(), 0, false},
		{"struct", struct{}{}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ToNumber(tt.in)
			assert.Equal(t, tt.valid, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestYear(t *testing.T) {
	tests := []struct {
		name  string
		row   Row
		want  int
		valid bool
	}{
		{"float", Row{"year": 2014.0}, 2014, true},
		{"truncated float", Row{"year": 2014.9}, 2014, true},
		{"int", Row{"year": 2019}, 2019, true},
		{"string", Row{"year": " 2010 "}, 2010, true},
		{"decimal string", Row{"year": "2010.0"}, 0, false},
		{"garbage", Row{"year": "old"}, 0, false},
		{"missing", Row{}, 0, false},
		{"nil", Row{"year": nil}, 0, false},
		{"infinite", Row{"year": math.Inf(1)}, 0, false},
		{"far past", Row{"year": -1e300}, math.MinInt32, true},
		{"far future", Row{"year": 1e300}, math.MaxInt32, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Year(tt.row)
			assert.Equal(t, tt.valid, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestKilometers(t *testing.T) {
	tests := []struct {
		name  string
		row   Row
		want  float64
		valid bool
	}{
		{"float", Row{"km": 150000.5}, 150000.5, true},
		{"int", Row{"km": 90000}, 90000, true},
		{"string", Row{"km": "80000"}, 80000, true},
		{"garbage", Row{"km": "lots"}, 0, false},
		{"missing", Row{}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Kilometers(tt.row)
			assert.Equal(t, tt.valid, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
