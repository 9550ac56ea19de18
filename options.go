package verifykit

import (
	"context"
	"io"
	"net"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Resolver is the DNS interface used for MX lookups.
// Injectable for testing or custom transports; defaults to net.DefaultResolver.
type Resolver interface {
	LookupMX(ctx context.Context, name string) ([]*net.MX, error)
}

// Options configures a Verifier. The zero value is usable: every unset
// field falls back to its documented default.
type Options struct {
	// GlobalConcurrency caps outstanding probes across all domains. Default: 50
	GlobalConcurrency int
	// PerDomainConcurrency caps outstanding probes per domain, so one
	// unresponsive mail host cannot starve the rest of a batch. Default: 5
	PerDomainConcurrency int

	// MXCacheTTL is how long a successful MX resolution is cached. Default: 1h
	MXCacheTTL time.Duration
	// MXNegativeTTL is how long a failed/empty MX resolution is cached,
	// so transient DNS issues can recover on a later batch. Default: 2m
	MXNegativeTTL time.Duration
	// CatchAllTTL is how long a catch-all verdict is cached. Default: 2h
	CatchAllTTL time.Duration

	// ConnectTimeout bounds the TCP connect of one probe. Default: 10s
	ConnectTimeout time.Duration
	// OperationTimeout bounds one whole probe, connect included. Default: 30s
	OperationTimeout time.Duration

	// GreylistRetryDelay is the wait before re-probing a temporarily
	// rejected address. Default: 45s
	GreylistRetryDelay time.Duration
	// GreylistMaxRetries is how many re-probes a temporarily rejected
	// address gets before being reported as greylisted. Default: 2
	// (0 means the default; retries cannot be disabled.)
	GreylistMaxRetries int

	// HeloHostname is sent in EHLO. Must be a qualified, non-localhost
	// name; defensive servers reject bare or loopback names.
	// Default: "verify.leadsnipe.io"
	HeloHostname string
	// MailFrom is the envelope sender. Empty sends the null sender
	// MAIL FROM:<>, which is what bounce probes conventionally use.
	MailFrom string
	// Port is the SMTP port to probe. Default: "25"
	Port string

	// DisableDisposableCheck skips the disposable-domain screen.
	DisableDisposableCheck bool

	// Logger receives debug-level engine events. Default: discard.
	Logger logrus.FieldLogger

	// Resolver is injectable for testing. Defaults to net.DefaultResolver.
	Resolver Resolver
	// Dial is injectable for testing. Defaults to net.DialTimeout.
	Dial func(network, address string, timeout time.Duration) (net.Conn, error)
}

// withDefaults validates the options and fills in defaults.
// Malformed settings are the only fatal errors in the engine; everything
// past construction is converted into per-address verdicts.
func (o Options) withDefaults() (Options, error) {
	if o.GlobalConcurrency < 0 || o.PerDomainConcurrency < 0 {
		return o, ErrInvalidConcurrency
	}
	if o.GlobalConcurrency == 0 {
		o.GlobalConcurrency = 50
	}
	if o.PerDomainConcurrency == 0 {
		o.PerDomainConcurrency = 5
		if o.PerDomainConcurrency > o.GlobalConcurrency {
			o.PerDomainConcurrency = o.GlobalConcurrency
		}
	}
	if o.PerDomainConcurrency > o.GlobalConcurrency {
		return o, ErrInvalidConcurrency
	}

	if o.MXCacheTTL < 0 || o.MXNegativeTTL < 0 || o.CatchAllTTL < 0 ||
		o.ConnectTimeout < 0 || o.OperationTimeout < 0 || o.GreylistRetryDelay < 0 {
		return o, ErrInvalidDuration
	}
	if o.MXCacheTTL == 0 {
		o.MXCacheTTL = time.Hour
	}
	if o.MXNegativeTTL == 0 {
		o.MXNegativeTTL = 2 * time.Minute
	}
	if o.CatchAllTTL == 0 {
		o.CatchAllTTL = 2 * time.Hour
	}
	if o.ConnectTimeout == 0 {
		o.ConnectTimeout = 10 * time.Second
	}
	if o.OperationTimeout == 0 {
		o.OperationTimeout = 30 * time.Second
	}
	if o.GreylistRetryDelay == 0 {
		o.GreylistRetryDelay = 45 * time.Second
	}

	if o.GreylistMaxRetries < 0 {
		return o, ErrInvalidRetryPolicy
	}
	if o.GreylistMaxRetries == 0 {
		o.GreylistMaxRetries = 2
	}

	if o.HeloHostname == "" {
		o.HeloHostname = "verify.leadsnipe.io"
	}
	if !validHeloHostname(o.HeloHostname) {
		return o, ErrInvalidHeloHostname
	}
	if o.Port == "" {
		o.Port = "25"
	}

	if o.Logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		o.Logger = l
	}
	return o, nil
}

// validHeloHostname rejects names that make probes look like abuse:
// unqualified hostnames, localhost and IP-ish loopback forms.
func validHeloHostname(name string) bool {
	name = strings.ToLower(name)
	if !strings.Contains(name, ".") {
		return false
	}
	if name == "localhost.localdomain" || strings.HasPrefix(name, "127.") || name == "::1" {
		return false
	}
	return true
}
