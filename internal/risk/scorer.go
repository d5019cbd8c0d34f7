package risk

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"motorisk/internal/feature"
	"motorisk/internal/metadata"
	"motorisk/internal/model"
	"motorisk/internal/risk/rule"
)

const (
	// noClaimBase is the residual component when there is nothing to compare against.
	noClaimBase = 0.2
	// saturationZ is the z-score at which the residual component reaches 1.
	saturationZ = 3.0
)

// Scorer turns a model prediction and an optional claimed price into an Assessment.
// It holds no per-call state, so one Scorer can serve concurrent requests.
type Scorer struct {
	now   func() time.Time
	rules []rule.Rule
}

// Option configures a Scorer.
type Option func(*Scorer)

// WithClock sets the source of the current calendar year used for vehicle age.
func WithClock(now func() time.Time) Option {
	return func(s *Scorer) {
		s.now = now
	}
}

// WithRules adds compiled listing rules whose add-ons join the age and mileage factors.
func WithRules(rules []rule.Rule) Option {
	return func(s *Scorer) {
		s.rules = rules
	}
}

// NewScorer creates a Scorer. Without options it uses the wall clock and no extra rules.
func NewScorer(opts ...Option) *Scorer {
	s := &Scorer{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score predicts the price of row and classifies the risk of the claimed price.
// A claimed price of 0 or less means no claim was supplied.
// A nil meta falls back to metadata defaults.
//
// Only a prediction failure is an error; it is returned as a *model.PredictionError
// and no assessment is produced.
func (s *Scorer) Score(ctx context.Context, predictor model.Predictor, meta *metadata.Metadata, row feature.Row, claimed float64) (Assessment, error) {
	report, err := s.Evaluate(ctx, predictor, meta, row, claimed)
	if err != nil {
		return Assessment{}, err
	}
	return report.Assessment, nil
}

// Evaluate is Score with the data quality report and the score breakdown.
func (s *Scorer) Evaluate(ctx context.Context, predictor model.Predictor, meta *metadata.Metadata, row feature.Row, claimed float64) (Report, error) {
	cleaned, quality := feature.Clean(row, meta.Numeric())

	predicted, err := predictOne(ctx, predictor, cleaned)
	if err != nil {
		return Report{}, err
	}

	var (
		assessment = Assessment{PredictedPrice: predicted}
		breakdown  Breakdown
		hasClaim   = claimed > 0
	)

	if hasClaim {
		stats := meta.Residuals()
		residual := claimed - predicted
		z := math.Abs((residual - stats.Mean) / (stats.Std + metadata.Epsilon))
		breakdown.Base = unit(z / saturationZ)

		claimedCopy := claimed
		assessment.ClaimedPrice = &claimedCopy
		assessment.Residual = &residual
	} else {
		breakdown.Base = noClaimBase
	}

	// heuristics read the row as supplied: a year or km filled in by cleaning is not evidence
	year, hasYear := feature.Year(row)
	age := 0
	if hasYear {
		age = s.now().Year() - year
		breakdown.Age = ageAddOn(age)
	} else {
		quality.HeuristicFaults = append(quality.HeuristicFaults, feature.YearColumn)
	}

	km, hasKm := feature.Kilometers(row)
	if hasKm {
		breakdown.Mileage = mileageAddOn(km)
	} else {
		quality.HeuristicFaults = append(quality.HeuristicFaults, feature.KilometersColumn)
	}

	fscore := breakdown.Age + breakdown.Mileage

	if len(s.rules) > 0 {
		vars := rule.Vars{
			Row:            cleaned,
			Age:            int64(age),
			HasAge:         hasYear,
			Km:             km,
			HasKm:          hasKm,
			PredictedPrice: predicted,
			HasClaim:       hasClaim,
		}
		if hasClaim {
			vars.ClaimedPrice = claimed
		}
		for i := range s.rules {
			addOn, err := s.rules[i].Eval(vars)
			if err != nil {
				slog.Error("rule eval", "error", err, "rule", s.rules[i].Label())
				continue
			}
			if addOn != 0 {
				breakdown.Rules = append(breakdown.Rules, RuleHit{Rule: s.rules[i].Label(), AddOn: addOn})
				fscore += addOn
			}
		}
	}

	assessment.RiskScore = unit(breakdown.Base + fscore)
	assessment.RiskLevel = Classify(assessment.RiskScore)

	return Report{Assessment: assessment, DataQuality: quality, Breakdown: breakdown}, nil
}

func predictOne(ctx context.Context, predictor model.Predictor, row feature.Row) (float64, error) {
	if predictor == nil {
		return 0, model.NewPredictionError("no model loaded", nil)
	}

	prices, err := predictor.Predict(ctx, []feature.Row{row})
	if err != nil {
		return 0, model.AsPredictionError("predict", err)
	}
	if len(prices) != 1 {
		return 0, model.NewPredictionError(fmt.Sprintf("expected 1 prediction, got %d", len(prices)), nil)
	}
	if math.IsNaN(prices[0]) || math.IsInf(prices[0], 0) {
		return 0, model.NewPredictionError(fmt.Sprintf("model returned %v", prices[0]), nil)
	}

	return prices[0], nil
}

// unit clamps v to [0, 1]. NaN saturates to 1: an undefined deviation is treated as maximal.
func unit(v float64) float64 {
	switch {
	case math.IsNaN(v), v > 1.0:
		return 1.0
	case v < 0.0:
		return 0.0
	default:
		return v
	}
}
