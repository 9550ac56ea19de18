// Package types contains the shared types for verifykit.
// This package does not import anything from other verifykit packages
// to avoid circular imports.
package types

import "time"

// Verdict is the terminal classification of a verified address.
type Verdict = string

const (
	// VerdictDeliverable: the mail exchanger accepted RCPT TO for the address.
	VerdictDeliverable Verdict = "deliverable"
	// VerdictUndeliverable: the mail exchanger permanently rejected the address.
	VerdictUndeliverable Verdict = "undeliverable"
	// VerdictSyntaxInvalid: the address failed syntax validation and was never probed.
	VerdictSyntaxInvalid Verdict = "syntax_invalid"
	// VerdictDisposable: the domain is a known disposable provider, never probed.
	VerdictDisposable Verdict = "disposable"
	// VerdictNoMailExchanger: the domain has no MX records (or DNS lookup failed).
	VerdictNoMailExchanger Verdict = "no_mail_exchanger"
	// VerdictCatchAll: the domain accepts any address, so per-address probing
	// is uninformative. Reported as valid but unverifiable.
	VerdictCatchAll Verdict = "catch_all"
	// VerdictGreylisted: temporary rejections persisted through all retries.
	// Assumed valid after retry exhaustion.
	VerdictGreylisted Verdict = "greylisted"
	// VerdictUnknown: ambiguous response, connect failure or timeout.
	// Assumed valid to bias against false negatives.
	VerdictUnknown Verdict = "unknown"
)

// VerificationResult is the immutable per-address terminal record.
type VerificationResult struct {
	Email    string        `json:"email"`
	Verdict  Verdict       `json:"verdict"`
	Reason   string        `json:"reason,omitempty"`
	SMTPCode int           `json:"smtpCode,omitempty"`
	CatchAll bool          `json:"catchAll,omitempty"`
	Attempts int           `json:"attempts,omitempty"`
	Elapsed  time.Duration `json:"elapsed"`
	// AssumedValid marks verdicts that report the address as usable without
	// a confirming 250 (catch_all, greylisted, unknown).
	AssumedValid bool `json:"assumedValid,omitempty"`
}

// Deliverable reports whether the address can be used for sending:
// either confirmed by the mail exchanger or assumed valid by policy.
func (r VerificationResult) Deliverable() bool {
	return r.Verdict == VerdictDeliverable || r.AssumedValid
}
