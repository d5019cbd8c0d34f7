package rule

import (
	"errors"
	"fmt"

	"motorisk/internal/feature"

	"github.com/google/cel-go/cel"
)

// Rule is an extra red flag for a listing.
// The When field contains a CEL expression that defines the trigger condition.
// The Then field is the add-on contributed to the feature score if the condition is true.
// The CEL program is compiled when Init is called and used during evaluation.
type Rule struct {
	// Name — optional label used in logs and score breakdowns.
	Name string `yaml:"name"`
	// When — CEL expression defining the rule trigger condition.
	// Must return a boolean value.
	When string `yaml:"when"`
	// Then — add-on applied when the condition is true. May be negative.
	Then float64 `yaml:"then"`
	// program — compiled CEL program used to execute the condition.
	program cel.Program
}

// Vars is what a rule expression can see.
type Vars struct {
	Row            feature.Row
	Age            int64
	HasAge         bool
	Km             float64
	HasKm          bool
	PredictedPrice float64
	ClaimedPrice   float64
	HasClaim       bool
}

func (v Vars) activation() map[string]any {
	row := map[string]any(v.Row)
	if row == nil {
		row = map[string]any{}
	}
	return map[string]any{
		"row":             row,
		"age":             v.Age,
		"has_age":         v.HasAge,
		"km":              v.Km,
		"has_km":          v.HasKm,
		"predicted_price": v.PredictedPrice,
		"claimed_price":   v.ClaimedPrice,
		"has_claim":       v.HasClaim,
	}
}

// NewEnv declares the variables available to rule expressions.
func NewEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("row", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("age", cel.IntType),
		cel.Variable("has_age", cel.BoolType),
		cel.Variable("km", cel.DoubleType),
		cel.Variable("has_km", cel.BoolType),
		cel.Variable("predicted_price", cel.DoubleType),
		cel.Variable("claimed_price", cel.DoubleType),
		cel.Variable("has_claim", cel.BoolType),
	)
}

// Init compiles the string expression in the When field into an executable CEL program
// using the provided env environment.
// In case of syntax or semantic errors, or when the expression is not boolean,
// returns the corresponding error.
func (r *Rule) Init(env *cel.Env) error {
	if r.When == "" {
		return errors.New("rule: empty condition")
	}

	ast, iss := env.Parse(r.When)
	if iss.Err() != nil {
		return iss.Err()
	}

	checked, iss := env.Check(ast)
	if iss.Err() != nil {
		return iss.Err()
	}

	if !checked.OutputType().IsExactType(cel.BoolType) {
		return fmt.Errorf("rule %q: condition must be boolean, got %s", r.When, checked.OutputType())
	}

	var err error
	r.program, err = env.Program(checked)
	if err != nil {
		return err
	}

	return nil
}

// Eval executes the compiled rule. It returns Then when the condition holds and 0 otherwise.
// A runtime error, such as a missing row key, is returned with a 0 add-on so the caller
// can log it and carry on.
func (r *Rule) Eval(v Vars) (float64, error) {
	if r.program == nil {
		return 0, errors.New("rule: not initialized")
	}

	result, _, err := r.program.Eval(v.activation())
	if err != nil {
		return 0, err
	}

	if matched, ok := result.Value().(bool); ok && matched {
		return r.Then, nil
	}

	return 0, nil
}

// Label returns Name, or the condition when no name was given.
func (r *Rule) Label() string {
	if r.Name != "" {
		return r.Name
	}
	return r.When
}
