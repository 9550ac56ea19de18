// Package verifykit determines, for batches of candidate email addresses,
// whether each is deliverable - without sending a message. It resolves the
// owning domain's mail exchangers, performs bounded SMTP handshake probes,
// detects catch-all domains and retries greylisted addresses, all under
// global and per-domain concurrency limits.
//
// Basic usage:
//
//	v, err := verifykit.New(verifykit.Options{
//	    HeloHostname: "verify.myapp.com",
//	    MailFrom:     "verify@myapp.com",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer v.Close()
//
//	results := v.VerifyBatch(ctx, []string{"user@example.com", "nobody@example.com"})
//
// Verdicts are deliberately biased against false negatives: ambiguous
// responses, timeouts and exhausted greylist retries report as "assumed
// valid" rather than invalid, because mail servers actively try to look
// ambiguous to deter probing.
package verifykit

import "github.com/leadsnipe/verifykit/types"

// VerificationResult is a re-export from the types package so that
// consumers don't need to import the types package directly.
type VerificationResult = types.VerificationResult

// Verdict is a re-export.
type Verdict = types.Verdict

// Verdict constants re-exported.
const (
	VerdictDeliverable     = types.VerdictDeliverable
	VerdictUndeliverable   = types.VerdictUndeliverable
	VerdictSyntaxInvalid   = types.VerdictSyntaxInvalid
	VerdictDisposable      = types.VerdictDisposable
	VerdictNoMailExchanger = types.VerdictNoMailExchanger
	VerdictCatchAll        = types.VerdictCatchAll
	VerdictGreylisted      = types.VerdictGreylisted
	VerdictUnknown         = types.VerdictUnknown
)
