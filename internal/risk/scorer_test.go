package risk

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"motorisk/internal/feature"
	"motorisk/internal/metadata"
	"motorisk/internal/model"
	"motorisk/internal/risk/rule"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const currentYear = 2026

func fixedClock() time.Time {
	return time.Date(currentYear, time.June, 1, 12, 0, 0, 0, time.UTC)
}

func ptr(v float64) *float64 {
	return &v
}

func residualMeta(mean, std float64) *metadata.Metadata {
	return &metadata.Metadata{ResidualMean: ptr(mean), ResidualStd: ptr(std)}
}

func fixedPrice(price float64) model.Predictor {
	return model.PredictorFunc(func(_ context.Context, rows []feature.Row) ([]float64, error) {
		return []float64{price}, nil
	})
}

func newTestScorer(opts ...Option) *Scorer {
	return NewScorer(append([]Option{WithClock(fixedClock)}, opts...)...)
}

func TestScore_ExactClaim(t *testing.T) {
	s := newTestScorer()

	a, err := s.Score(context.Background(), fixedPrice(20_000_000), residualMeta(0, 1_000_000), feature.Row{"brand": "honda"}, 20_000_000)

	require.NoError(t, err)
	assert.Equal(t, 20_000_000.0, a.PredictedPrice)
	require.NotNil(t, a.ClaimedPrice)
	require.NotNil(t, a.Residual)
	assert.Equal(t, 20_000_000.0, *a.ClaimedPrice)
	assert.Equal(t, 0.0, *a.Residual)
	assert.Equal(t, 0.0, a.RiskScore)
	assert.Equal(t, LevelLow, a.RiskLevel)
}

func TestScore_HugeUnderpricing(t *testing.T) {
	s := newTestScorer()

	a, err := s.Score(context.Background(), fixedPrice(20_000_000), residualMeta(0, 500_000), feature.Row{}, 10_000_000)

	require.NoError(t, err)
	assert.Equal(t, -10_000_000.0, *a.Residual)
	assert.Equal(t, 1.0, a.RiskScore)
	assert.Equal(t, LevelHigh, a.RiskLevel)
}

func TestScore_NoClaimOldHighMileage(t *testing.T) {
	s := newTestScorer()
	row := feature.Row{"year": float64(currentYear - 12), "km": 200_000.0}

	report, err := s.Evaluate(context.Background(), fixedPrice(8_000_000), nil, row, 0)

	require.NoError(t, err)
	a := report.Assessment
	assert.Nil(t, a.ClaimedPrice)
	assert.Nil(t, a.Residual)
	assert.InDelta(t, 0.6, a.RiskScore, 1e-9)
	assert.Equal(t, LevelMedium, a.RiskLevel)
	assert.Equal(t, Breakdown{Base: 0.2, Age: 0.2, Mileage: 0.2}, report.Breakdown)
}

func TestScore_ZeroClaimIsNoClaim(t *testing.T) {
	s := newTestScorer()
	row := feature.Row{"year": currentYear - 8, "km": 90_000}

	zero, err := s.Score(context.Background(), fixedPrice(5_000_000), residualMeta(0, 1), row, 0)
	require.NoError(t, err)
	negative, err := s.Score(context.Background(), fixedPrice(5_000_000), residualMeta(0, 1), row, -100)
	require.NoError(t, err)

	assert.Nil(t, zero.ClaimedPrice)
	assert.Nil(t, zero.Residual)
	assert.InDelta(t, 0.4, zero.RiskScore, 1e-9, "0.2 base + 0.1 age + 0.1 mileage")
	assert.Equal(t, zero, negative)
}

func TestScore_NoClaimBaseWithoutHeuristics(t *testing.T) {
	report, err := newTestScorer().Evaluate(context.Background(), fixedPrice(1), nil, feature.Row{}, 0)

	require.NoError(t, err)
	assert.Equal(t, 0.2, report.Breakdown.Base)
	assert.Equal(t, 0.2, report.Assessment.RiskScore)
	assert.Equal(t, LevelLow, report.Assessment.RiskLevel)
	assert.Equal(t, []string{"year", "km"}, report.DataQuality.HeuristicFaults)
}

func TestScore_AgeBands(t *testing.T) {
	tests := []struct {
		age  int
		want float64
	}{
		{0, 0}, {6, 0}, {7, 0.1}, {10, 0.1}, {11, 0.2}, {40, 0.2}, {-3, 0},
	}

	s := newTestScorer()
	for _, tt := range tests {
		report, err := s.Evaluate(context.Background(), fixedPrice(1), nil, feature.Row{"year": currentYear - tt.age}, 0)
		require.NoError(t, err)
		assert.Equal(t, tt.want, report.Breakdown.Age, "age %d", tt.age)
	}
}

func TestScore_AbsurdYearIsVeryOld(t *testing.T) {
	report, err := newTestScorer().Evaluate(context.Background(), fixedPrice(1), nil, feature.Row{"year": -1e300}, 0)

	require.NoError(t, err)
	assert.Equal(t, 0.2, report.Breakdown.Age)
	assert.NotContains(t, report.DataQuality.HeuristicFaults, feature.YearColumn)
}

func TestScore_MileageBands(t *testing.T) {
	tests := []struct {
		km   any
		want float64
	}{
		{0.0, 0}, {80_000, 0}, {80_001, 0.1}, {150_000.0, 0.1}, {"150001", 0.2}, {1e9, 0.2},
	}

	s := newTestScorer()
	for _, tt := range tests {
		report, err := s.Evaluate(context.Background(), fixedPrice(1), nil, feature.Row{"km": tt.km}, 0)
		require.NoError(t, err)
		assert.Equal(t, tt.want, report.Breakdown.Mileage, "km %v", tt.km)
	}
}

func TestScore_UnparsableHeuristicsContributeNothing(t *testing.T) {
	row := feature.Row{"year": "twenty-ten", "km": "far", "engine_cc": "?"}

	report, err := newTestScorer().Evaluate(context.Background(), fixedPrice(1), nil, row, 0)

	require.NoError(t, err)
	assert.Zero(t, report.Breakdown.Age)
	assert.Zero(t, report.Breakdown.Mileage)
	assert.Equal(t, []string{"year", "km", "engine_cc"}, report.DataQuality.Coerced)
	assert.Equal(t, []string{"year", "km"}, report.DataQuality.HeuristicFaults)
}

func TestScore_ModelSeesCleanedRow(t *testing.T) {
	var seen feature.Row
	predictor := model.PredictorFunc(func(_ context.Context, rows []feature.Row) ([]float64, error) {
		seen = rows[0]
		return []float64{1}, nil
	})
	meta := &metadata.Metadata{NumericCols: []string{"km", "engine_cc"}}
	row := feature.Row{"km": "12000", "brand": "honda"}

	_, err := newTestScorer().Score(context.Background(), predictor, meta, row, 0)

	require.NoError(t, err)
	assert.Equal(t, feature.Row{"km": 12000.0, "engine_cc": 0.0, "brand": "honda"}, seen)
	assert.Equal(t, feature.Row{"km": "12000", "brand": "honda"}, row, "input row must not be mutated")
}

func TestScore_PredictionErrorPropagates(t *testing.T) {
	original := model.NewPredictionError("unknown level", nil)
	predictor := model.PredictorFunc(func(context.Context, []feature.Row) ([]float64, error) {
		return nil, original
	})

	a, err := newTestScorer().Score(context.Background(), predictor, nil, feature.Row{}, 100)

	assert.Same(t, original, err)
	assert.Equal(t, Assessment{}, a, "no partial result")
}

func TestScore_PlainModelErrorBecomesPredictionError(t *testing.T) {
	cause := errors.New("shape mismatch")
	predictor := model.PredictorFunc(func(context.Context, []feature.Row) ([]float64, error) {
		return nil, cause
	})

	_, err := newTestScorer().Score(context.Background(), predictor, nil, feature.Row{}, 0)

	var pe *model.PredictionError
	require.ErrorAs(t, err, &pe)
	assert.ErrorIs(t, err, cause)
}

func TestScore_BadPredictionShape(t *testing.T) {
	tests := []struct {
		name   string
		prices []float64
	}{
		{"empty", nil},
		{"too many", []float64{1, 2}},
		{"nan", []float64{math.NaN()}},
		{"infinite", []float64{math.Inf(-1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			predictor := model.PredictorFunc(func(context.Context, []feature.Row) ([]float64, error) {
				return tt.prices, nil
			})
			_, err := newTestScorer().Score(context.Background(), predictor, nil, feature.Row{}, 0)

			var pe *model.PredictionError
			assert.ErrorAs(t, err, &pe)
		})
	}

	_, err := newTestScorer().Score(context.Background(), nil, nil, feature.Row{}, 0)
	var pe *model.PredictionError
	assert.ErrorAs(t, err, &pe, "nil predictor")
}

func TestScore_Idempotent(t *testing.T) {
	s := newTestScorer()
	row := feature.Row{"year": 2012, "km": "95000", "brand": "yamaha"}

	first, err := s.Score(context.Background(), fixedPrice(12_345_678), residualMeta(-1000, 750_000), row, 11_000_000)
	require.NoError(t, err)
	second, err := s.Score(context.Background(), fixedPrice(12_345_678), residualMeta(-1000, 750_000), row, 11_000_000)
	require.NoError(t, err)

	assert.Equal(t, first, second)

	firstJSON, err := json.Marshal(first)
	require.NoError(t, err)
	secondJSON, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, firstJSON, secondJSON)
}

func TestScore_JSONShape(t *testing.T) {
	a, err := newTestScorer().Score(context.Background(), fixedPrice(100), nil, feature.Row{}, 0)
	require.NoError(t, err)

	body, err := json.Marshal(a)
	require.NoError(t, err)
	assert.JSONEq(t, `{"predicted_price":100,"claimed_price":null,"residual":null,"risk_score":0.2,"risk_level":"Low"}`, string(body))
}

func TestScore_AlwaysInUnitRange(t *testing.T) {
	prices := []float64{-1e18, -1, 0, 1, 20_000_000, 1e18, math.MaxFloat64}
	claims := []float64{0, 1e-12, 1, 10_000_000, 1e18, math.MaxFloat64, math.Inf(1), math.NaN()}
	stats := []*metadata.Metadata{
		nil,
		residualMeta(0, 0),
		residualMeta(0, -1e-9),
		residualMeta(1e12, 1e-300),
		residualMeta(math.NaN(), math.NaN()),
		residualMeta(0, math.Inf(1)),
		residualMeta(-5e6, 5e5),
	}
	rows := []feature.Row{
		{},
		{"year": -99999, "km": 1e300},
		{"year": 3000, "km": -5},
		{"year": "garbage", "km": math.NaN()},
		{"year": math.MaxInt32, "km": math.Inf(1)},
	}
	negativeRules, err := rule.Parse([]byte("- when: \"true\"\n  then: -5\n"))
	require.NoError(t, err)
	scorers := []*Scorer{newTestScorer(), newTestScorer(WithRules(negativeRules))}

	for _, s := range scorers {
		for _, price := range prices {
			for _, claim := range claims {
				for _, meta := range stats {
					for _, row := range rows {
						a, err := s.Score(context.Background(), fixedPrice(price), meta, row, claim)
						require.NoError(t, err)
						assert.GreaterOrEqual(t, a.RiskScore, 0.0)
						assert.LessOrEqual(t, a.RiskScore, 1.0)
						assert.Equal(t, Classify(a.RiskScore), a.RiskLevel)
						assert.Equal(t, a.ClaimedPrice == nil, a.Residual == nil, "claim and residual are null together")
					}
				}
			}
		}
	}
}

func TestScore_WithRules(t *testing.T) {
	rules, err := rule.Parse([]byte(`
- name: half price
  when: has_claim && claimed_price < predicted_price * 0.5
  then: 0.3
- name: scooter
  when: row.brand == "vespa"
  then: 0.05
- name: broken
  when: row.missing == 1
  then: 1
`))
	require.NoError(t, err)
	s := newTestScorer(WithRules(rules))

	report, err := s.Evaluate(context.Background(), fixedPrice(10_000_000), residualMeta(0, 30_000_000), feature.Row{"brand": "honda"}, 4_000_000)

	require.NoError(t, err)
	assert.Equal(t, []RuleHit{{Rule: "half price", AddOn: 0.3}}, report.Breakdown.Rules)
	assert.InDelta(t, 6_000_000.0/30_000_000/3+0.3, report.Assessment.RiskScore, 1e-9)
	assert.Equal(t, LevelMedium, report.Assessment.RiskLevel)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		score float64
		want  Level
	}{
		{0, LevelLow},
		{0.2999999, LevelLow},
		{0.3, LevelMedium},
		{0.6999999, LevelMedium},
		{0.7, LevelHigh},
		{1, LevelHigh},
		{math.NaN(), LevelHigh},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.score), "score %v", tt.score)
	}
}

func TestScore_ExampleRulesLeavePriceGapToResidual(t *testing.T) {
	rules, err := rule.LoadFromFile(filepath.Join("..", "..", "configs", "rules.example.yaml"))
	require.NoError(t, err)
	plain := newTestScorer()
	withRules := newTestScorer(WithRules(rules))
	meta := residualMeta(0, 1_850_000)

	want, err := plain.Score(context.Background(), fixedPrice(3_000_000), meta, feature.Row{"brand": "honda"}, 1_400_000)
	require.NoError(t, err)
	got, err := withRules.Score(context.Background(), fixedPrice(3_000_000), meta, feature.Row{"brand": "honda"}, 1_400_000)
	require.NoError(t, err)

	assert.InDelta(t, 1_600_000.0/1_850_000/3, got.RiskScore, 1e-6)
	assert.Equal(t, want, got)
	assert.Equal(t, LevelLow, got.RiskLevel)

	report, err := withRules.Evaluate(context.Background(), fixedPrice(3_000_000), meta, feature.Row{"year": 2010, "km": 1000}, 0)
	require.NoError(t, err)
	assert.Equal(t, []RuleHit{{Rule: "odometer rolled back", AddOn: 0.1}}, report.Breakdown.Rules)
	assert.InDelta(t, 0.2+0.2+0.1, report.Assessment.RiskScore, 1e-9)
}
