package judge

import "context"

// StubJudge is a deterministic judge for tests and dry runs. It selects a
// fixed provider when configured, otherwise the first candidate offered.
type StubJudge struct {
	// Prefer names the provider to pick when present among the candidates
	Prefer string
	// Score reported on every selection
	FixedScore *float64
	// Err, when set, is returned instead of a selection
	Err error
}

// Select implements Judge deterministically
func (s *StubJudge) Select(ctx context.Context, candidates []CandidateSummary) (*Selection, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	if len(candidates) == 0 {
		return nil, context.Canceled
	}

	pick := candidates[0]
	if s.Prefer != "" {
		for _, c := range candidates {
			if c.Provider == s.Prefer {
				pick = c
				break
			}
		}
	}

	return &Selection{
		Provider:  pick.Provider,
		Score:     s.FixedScore,
		Rationale: "stub selection",
		Model:     "stub",
	}, nil
}
