package scoring

import "github.com/pitchside/contest/internal/domain"

// Rules holds the point values for the two scoring tiers. Values are
// sport-parameterizable through configuration; the defaults are the
// classic 3/1 football scheme.
type Rules struct {
	ExactPoints  int
	WinnerPoints int
}

// DefaultRules returns the standard 3-points-exact, 1-point-winner scheme.
func DefaultRules() Rules {
	return Rules{ExactPoints: 3, WinnerPoints: 1}
}

// Score assigns points to a prediction against a confirmed scoreline. It is
// a pure function: identical inputs always produce identical output.
//
// A prediction that carries only a winner can never reach the exact-score
// tier and earns at most WinnerPoints.
func (r Rules) Score(p *domain.Prediction, home, away int) (int, domain.RuleApplied) {
	if p.HasExactScore() && *p.PredictedHomeScore == home && *p.PredictedAwayScore == away {
		return r.ExactPoints, domain.RuleExactScore
	}

	predicted, ok := p.EffectiveWinner()
	if !ok {
		return 0, domain.RuleMiss
	}
	if predicted == domain.WinnerFromScores(home, away) {
		return r.WinnerPoints, domain.RuleWinnerOnly
	}
	return 0, domain.RuleMiss
}
