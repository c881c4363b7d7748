package domain

import "errors"

// Round and run failure conditions. Provider and evaluator failures are
// recorded as data (failed candidates, failing evaluations) and never
// surface as errors; these sentinels cover the conditions that do.
var (
	// ErrAllCandidatesFailed means every provider in a round failed
	ErrAllCandidatesFailed = errors.New("all candidates failed")

	// ErrJudge means the judge call failed even though candidates succeeded
	ErrJudge = errors.New("judge selection failed")

	// ErrRetriesExhausted means a phase failed evaluation on its final
	// allowed attempt; the run is terminally failed
	ErrRetriesExhausted = errors.New("phase retries exhausted")
)
