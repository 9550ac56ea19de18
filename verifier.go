package verifykit

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/leadsnipe/verifykit/internal/admission"
	"github.com/leadsnipe/verifykit/internal/catchall"
	"github.com/leadsnipe/verifykit/internal/disposable"
	"github.com/leadsnipe/verifykit/internal/mxcache"
	"github.com/leadsnipe/verifykit/internal/parse"
	"github.com/leadsnipe/verifykit/internal/probe"
	"github.com/leadsnipe/verifykit/types"
)

// Verifier is the verification engine. It owns the MX cache, the
// catch-all cache and the admission limiter; construct one per process
// (or per tenant) and share it across batches so the caches pay off.
type Verifier struct {
	opts     Options
	log      logrus.FieldLogger
	mx       *mxcache.Cache
	prober   *probe.Prober
	limiter  *admission.Limiter
	catchAll *catchall.Detector
}

// ProgressFunc is invoked as each address in a batch completes.
// It must be fast; it runs under the batch's completion lock.
type ProgressFunc func(completed, total int)

// New constructs a Verifier. Configuration problems (invalid caps,
// malformed settings) are the only errors this engine ever returns;
// network failures during verification become per-address verdicts.
func New(opts Options) (*Verifier, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}

	v := &Verifier{
		opts: opts,
		log:  opts.Logger,
		mx: mxcache.New(mxcache.Config{
			TTL:           opts.MXCacheTTL,
			NegativeTTL:   opts.MXNegativeTTL,
			LookupTimeout: opts.OperationTimeout,
			Resolver:      opts.Resolver,
		}),
		prober: probe.New(probe.Config{
			HeloHostname:     opts.HeloHostname,
			MailFrom:         opts.MailFrom,
			Port:             opts.Port,
			ConnectTimeout:   opts.ConnectTimeout,
			OperationTimeout: opts.OperationTimeout,
			Dial:             opts.Dial,
		}),
		limiter: admission.New(opts.GlobalConcurrency, opts.PerDomainConcurrency),
	}
	// Detection probes go through the same admission limits as real probes.
	v.catchAll = catchall.New(catchall.Config{TTL: opts.CatchAllTTL}, v.admittedProbe)
	return v, nil
}

// Close releases the Verifier's cached state. Safe to call multiple times.
func (v *Verifier) Close() error {
	v.mx.Clear()
	v.catchAll.Clear()
	return nil
}

// Verify runs the full pipeline for a single address:
// syntax → disposable screen → MX resolution → catch-all check → SMTP
// probe with greylist retry. It never returns an error; every failure
// mode is expressed as a verdict.
func (v *Verifier) Verify(ctx context.Context, email string) types.VerificationResult {
	start := time.Now()
	r := v.verify(ctx, email)
	r.Elapsed = time.Since(start)
	return r
}

// VerifyBatch verifies many addresses concurrently, bounded by the
// admission limits. The result slice is keyed to input order and always
// has the same cardinality as the input; one address's failure or
// timeout never aborts the batch. An optional progress callback is
// invoked as each result completes.
func (v *Verifier) VerifyBatch(ctx context.Context, emails []string, progress ...ProgressFunc) []types.VerificationResult {
	if len(emails) == 0 {
		return nil
	}
	var cb ProgressFunc
	if len(progress) > 0 {
		cb = progress[0]
	}

	results := make([]types.VerificationResult, len(emails))
	var wg sync.WaitGroup
	var mu sync.Mutex
	completed := 0

	for i, email := range emails {
		wg.Add(1)
		go func(i int, email string) {
			defer wg.Done()
			results[i] = v.verifyGuarded(ctx, email)
			if cb != nil {
				mu.Lock()
				completed++
				cb(completed, len(emails))
				mu.Unlock()
			}
		}(i, email)
	}

	wg.Wait()
	return results
}

// verifyGuarded contains a panic so a single address can never take the
// whole batch down.
func (v *Verifier) verifyGuarded(ctx context.Context, email string) (r types.VerificationResult) {
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			v.log.WithField("email", email).Errorf("verification panicked: %v", rec)
			r = types.VerificationResult{
				Email:        email,
				Verdict:      types.VerdictUnknown,
				Reason:       fmt.Sprintf("internal error: %v", rec),
				AssumedValid: true,
				Elapsed:      time.Since(start),
			}
		}
	}()
	return v.Verify(ctx, email)
}

func (v *Verifier) verify(ctx context.Context, raw string) types.VerificationResult {
	addr, err := parse.Parse(raw)
	if err != nil {
		return types.VerificationResult{
			Email:   raw,
			Verdict: types.VerdictSyntaxInvalid,
			Reason:  err.Error(),
		}
	}

	if !v.opts.DisableDisposableCheck && disposable.IsDisposable(addr.Domain) {
		return types.VerificationResult{
			Email:   raw,
			Verdict: types.VerdictDisposable,
			Reason:  "disposable email domain",
		}
	}

	hosts := v.mx.Resolve(ctx, addr.Domain)
	if len(hosts) == 0 {
		v.log.WithField("domain", addr.Domain).Debug("no mail exchanger")
		return types.VerificationResult{
			Email:   raw,
			Verdict: types.VerdictNoMailExchanger,
			Reason:  "domain has no mail exchanger",
		}
	}

	if v.catchAll.IsCatchAll(ctx, addr.Domain, hosts) {
		return types.VerificationResult{
			Email:        raw,
			Verdict:      types.VerdictCatchAll,
			Reason:       "domain accepts any address; individual mailboxes cannot be verified",
			CatchAll:     true,
			AssumedValid: true,
		}
	}

	// Probe the canonical ASCII form against the primary exchanger.
	out, attempts := v.probeWithRetry(ctx, addr.Local+"@"+addr.Domain, hosts[0])
	return v.resultFor(raw, out, attempts)
}

// admittedProbe wraps one probe in acquire-before-probe /
// release-after-probe. Both real and catch-all detection probes use it,
// so the admission caps hold across everything that touches port 25.
func (v *Verifier) admittedProbe(ctx context.Context, email, mxHost string) probe.Outcome {
	release, err := v.limiter.Acquire(ctx, domainOf(email))
	if err != nil {
		return probe.Outcome{Class: probe.ClassUnknown, Err: err}
	}
	defer release()
	return v.prober.Probe(ctx, email, mxHost)
}

// resultFor converts a terminal probe outcome into a verdict.
// Ambiguous responses and failures report as assumed valid: SMTP probing
// is adversarial, and treating noise as "invalid" throws away far more
// good addresses than it catches bad ones.
func (v *Verifier) resultFor(raw string, out probe.Outcome, attempts int) types.VerificationResult {
	r := types.VerificationResult{
		Email:    raw,
		SMTPCode: out.Code,
		Attempts: attempts,
	}

	switch out.Class {
	case probe.ClassSuccess:
		r.Verdict = types.VerdictDeliverable
		r.Reason = "mailbox accepted by mail exchanger"
	case probe.ClassPermanentReject:
		r.Verdict = types.VerdictUndeliverable
		r.Reason = fmt.Sprintf("mailbox rejected: %d %s", out.Code, out.Message)
	case probe.ClassTransient:
		r.Verdict = types.VerdictGreylisted
		r.AssumedValid = true
		r.Reason = "greylisted; assumed valid after retry exhaustion"
	default:
		r.Verdict = types.VerdictUnknown
		r.AssumedValid = true
		switch {
		case out.Timeout():
			r.Reason = "probe timed out; assumed valid"
		case out.Err != nil:
			r.Reason = fmt.Sprintf("probe failed (%v); assumed valid", out.Err)
		default:
			r.Reason = fmt.Sprintf("ambiguous response %d; assumed valid", out.Code)
		}
	}
	return r
}

func domainOf(email string) string {
	if i := strings.LastIndex(email, "@"); i >= 0 {
		return strings.ToLower(email[i+1:])
	}
	return ""
}
