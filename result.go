package verifykit

import (
	"time"

	"github.com/leadsnipe/verifykit/types"
)

// Stats summarizes a batch of verification results.
type Stats struct {
	Total           int           `json:"total"`
	Deliverable     int           `json:"deliverable"`
	Undeliverable   int           `json:"undeliverable"`
	SyntaxInvalid   int           `json:"syntaxInvalid"`
	Disposable      int           `json:"disposable"`
	NoMailExchanger int           `json:"noMailExchanger"`
	CatchAll        int           `json:"catchAll"`
	Greylisted      int           `json:"greylisted"`
	Unknown         int           `json:"unknown"`
	Duration        time.Duration `json:"duration"`
}

// Summarize counts verdicts across a result set. The duration is the
// caller-measured wall time for the batch.
func Summarize(results []types.VerificationResult, duration time.Duration) Stats {
	s := Stats{Total: len(results), Duration: duration}
	for _, r := range results {
		switch r.Verdict {
		case types.VerdictDeliverable:
			s.Deliverable++
		case types.VerdictUndeliverable:
			s.Undeliverable++
		case types.VerdictSyntaxInvalid:
			s.SyntaxInvalid++
		case types.VerdictDisposable:
			s.Disposable++
		case types.VerdictNoMailExchanger:
			s.NoMailExchanger++
		case types.VerdictCatchAll:
			s.CatchAll++
		case types.VerdictGreylisted:
			s.Greylisted++
		default:
			s.Unknown++
		}
	}
	return s
}

// Usable filters a result set down to addresses worth sending to:
// confirmed deliverable plus those assumed valid by policy.
func Usable(results []types.VerificationResult) []types.VerificationResult {
	var out []types.VerificationResult
	for _, r := range results {
		if r.Deliverable() {
			out = append(out, r)
		}
	}
	return out
}
