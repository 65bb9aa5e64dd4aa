package report

import (
	"fmt"
	"regexp"

	"github.com/google/cel-go/cel"

	"NarrativeScorer/internal/domain"
)

const (
	FlagNoScoredCategories      = "no_scored_categories"
	FlagIncompleteScoring       = "incomplete_scoring"
	FlagAuthenticityUnavailable = "authenticity_unavailable"
	FlagVoiceConcern            = "voice_concern"
)

var flagName = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// FlagRule raises the flag Name when the CEL expression Expr is true.
type FlagRule struct {
	Name string `yaml:"name" json:"name"`
	Expr string `yaml:"expr" json:"expr"`
}

type compiledRule struct {
	name    string
	program cel.Program
}

func newEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("overall_index", cel.DoubleType),
		cel.Variable("scored_count", cel.IntType),
		cel.Variable("unscored_count", cel.IntType),
		cel.Variable("unverified_count", cel.IntType),
		cel.Variable("scores", cel.MapType(cel.StringType, cel.DoubleType)),
		cel.Variable("has_authenticity", cel.BoolType),
		cel.Variable("authenticity_score", cel.DoubleType),
		cel.Variable("voice_type", cel.StringType),
		cel.Variable("red_flag_count", cel.IntType),
	)
}

func compileRules(rules []FlagRule) ([]compiledRule, error) {
	if len(rules) == 0 {
		return nil, nil
	}
	env, err := newEnv()
	if err != nil {
		return nil, fmt.Errorf("create flag environment: %w", err)
	}

	out := make([]compiledRule, 0, len(rules))
	for _, r := range rules {
		if !flagName.MatchString(r.Name) {
			return nil, fmt.Errorf("flag rule %q: name must be snake_case", r.Name)
		}
		ast, issues := env.Compile(r.Expr)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("flag rule %s: %w", r.Name, issues.Err())
		}
		if t := ast.OutputType(); !t.IsExactType(cel.BoolType) && !t.IsExactType(cel.DynType) {
			return nil, fmt.Errorf("flag rule %s: expression must be boolean, got %s", r.Name, t)
		}
		prg, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("flag rule %s: %w", r.Name, err)
		}
		out = append(out, compiledRule{name: r.Name, program: prg})
	}
	return out, nil
}

// ValidateRules compiles rules without keeping them. Config validation
// uses it so bad expressions fail at load time.
func ValidateRules(rules []FlagRule) error {
	_, err := compileRules(rules)
	return err
}

func activation(r domain.AnalysisReport) map[string]any {
	scores := make(map[string]float64, len(r.Categories))
	var unverified int64
	for _, c := range r.Categories {
		if c.HasScore() {
			scores[c.CategoryID] = c.Value()
		}
		if c.Status == domain.StatusUnverified {
			unverified++
		}
	}
	var authScore float64
	if r.Authenticity.Available() {
		authScore = *r.Authenticity.Score
	}
	return map[string]any{
		"overall_index":      r.OverallIndex,
		"scored_count":       int64(r.ScoredCount),
		"unscored_count":     int64(len(r.Categories) - r.ScoredCount),
		"unverified_count":   unverified,
		"scores":             scores,
		"has_authenticity":   r.Authenticity.Available(),
		"authenticity_score": authScore,
		"voice_type":         string(r.Authenticity.VoiceType),
		"red_flag_count":     int64(len(r.Authenticity.RedFlags)),
	}
}

// evaluate returns the names of rules that hold. Rules that fail to
// evaluate, for example on a missing map key, are skipped.
func evaluate(rules []compiledRule, r domain.AnalysisReport) []string {
	if len(rules) == 0 {
		return nil
	}
	vars := activation(r)
	var raised []string
	for _, rule := range rules {
		out, _, err := rule.program.Eval(vars)
		if err != nil {
			continue
		}
		if v, ok := out.Value().(bool); ok && v {
			raised = append(raised, rule.name)
		}
	}
	return raised
}
