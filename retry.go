package verifykit

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/leadsnipe/verifykit/internal/probe"
)

// probeWithRetry probes an address, re-probing after a delay while the
// mail exchanger answers with a temporary rejection (greylisting).
//
// The admission slot is held only while a probe is on the wire: each
// attempt acquires and releases inside admittedProbe, so an address
// sleeping out a greylist delay never blocks capacity that other pending
// addresses need. Returns the final outcome and the attempt count.
func (v *Verifier) probeWithRetry(ctx context.Context, email, mxHost string) (probe.Outcome, int) {
	attempts := 0
	for {
		out := v.admittedProbe(ctx, email, mxHost)
		attempts++

		if out.Class != probe.ClassTransient {
			return out, attempts
		}
		if attempts > v.opts.GreylistMaxRetries {
			// Retries exhausted while still greylisted.
			return out, attempts
		}

		v.log.WithFields(logrus.Fields{
			"email":   email,
			"code":    out.Code,
			"attempt": attempts,
		}).Debug("greylisted, scheduling retry")

		select {
		case <-time.After(v.opts.GreylistRetryDelay):
		case <-ctx.Done():
			return out, attempts
		}
	}
}
