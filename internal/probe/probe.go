// Package probe performs a single bounded SMTP handshake against one mail
// host for one address and classifies the response. No message is ever
// sent: the handshake stops at RCPT TO and disconnects.
package probe

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// Class tags an SMTP response with its verification meaning.
type Class int

const (
	// ClassUnknown covers ambiguous codes, connect failures and timeouts.
	ClassUnknown Class = iota
	// ClassSuccess means RCPT TO was accepted (250).
	ClassSuccess
	// ClassPermanentReject means the mailbox was permanently rejected (550-554).
	ClassPermanentReject
	// ClassTransient means a temporary rejection (421/450/451), a retry candidate.
	ClassTransient
)

// String returns a short label for logging.
func (c Class) String() string {
	switch c {
	case ClassSuccess:
		return "success"
	case ClassPermanentReject:
		return "permanent_reject"
	case ClassTransient:
		return "transient"
	default:
		return "unknown"
	}
}

// Outcome is the result of one probe: the raw SMTP code and message
// (when a response was read) plus the classification. Err is set when
// the handshake failed before a usable RCPT response.
type Outcome struct {
	Class   Class
	Code    int
	Message string
	Err     error
}

// Timeout reports whether the probe failed on a network timeout.
func (o Outcome) Timeout() bool {
	var nerr net.Error
	return errors.As(o.Err, &nerr) && nerr.Timeout()
}

// Config configures the prober.
type Config struct {
	// HeloHostname is sent in EHLO. Must look like a real, resolvable,
	// non-localhost name or defensive servers will reject the session.
	HeloHostname string
	// MailFrom is the envelope sender. An empty string sends MAIL FROM:<>,
	// the null sender used for delivery status notifications.
	MailFrom string
	// Port is the SMTP port. Default: 25
	Port string
	// ConnectTimeout bounds the TCP connect. Default: 10s
	ConnectTimeout time.Duration
	// OperationTimeout bounds the whole probe, connect included. Default: 30s
	OperationTimeout time.Duration
	// Dial is injectable for testing. Defaults to net.DialTimeout.
	Dial func(network, address string, timeout time.Duration) (net.Conn, error)
}

// Prober runs SMTP handshake probes.
type Prober struct {
	cfg Config
}

// New creates a Prober, applying defaults for unset values.
func New(cfg Config) *Prober {
	if cfg.Port == "" {
		cfg.Port = "25"
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.OperationTimeout <= 0 {
		cfg.OperationTimeout = 30 * time.Second
	}
	if cfg.Dial == nil {
		cfg.Dial = net.DialTimeout
	}
	return &Prober{cfg: cfg}
}

// Probe runs one handshake: connect → banner → EHLO → MAIL FROM → RCPT TO.
// A graceful QUIT is always attempted; disconnect errors are swallowed.
// The whole operation is bounded by OperationTimeout (or the context
// deadline, whichever is sooner); exceeding it yields ClassUnknown.
func (p *Prober) Probe(ctx context.Context, email, mxHost string) Outcome {
	if err := ctx.Err(); err != nil {
		return Outcome{Class: ClassUnknown, Err: err}
	}

	deadline := time.Now().Add(p.cfg.OperationTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	connectTimeout := p.cfg.ConnectTimeout
	if remaining := time.Until(deadline); remaining < connectTimeout {
		connectTimeout = remaining
	}

	address := net.JoinHostPort(mxHost, p.cfg.Port)
	netConn, err := p.cfg.Dial("tcp", address, connectTimeout)
	if err != nil {
		return Outcome{Class: ClassUnknown, Err: fmt.Errorf("connect to %s: %w", address, err)}
	}
	defer func() { _ = netConn.Close() }()

	c := &conn{
		netConn: netConn,
		reader:  bufio.NewReader(netConn),
		writer:  bufio.NewWriter(netConn),
	}
	if err := netConn.SetDeadline(deadline); err != nil {
		return Outcome{Class: ClassUnknown, Err: fmt.Errorf("set deadline: %w", err)}
	}

	out := p.handshake(c, email)
	sendQuit(c)
	return out
}

// handshake walks the protocol up to the RCPT TO response.
func (p *Prober) handshake(c *conn, email string) Outcome {
	// Banner
	code, msg, err := readResponse(c.reader)
	if err != nil {
		return Outcome{Class: ClassUnknown, Err: fmt.Errorf("read banner: %w", err)}
	}
	if code >= 300 {
		return preRcptOutcome(code, msg, "banner")
	}

	// EHLO
	code, msg, err = command(c, fmt.Sprintf("EHLO %s\r\n", p.cfg.HeloHostname))
	if err != nil {
		return Outcome{Class: ClassUnknown, Err: fmt.Errorf("EHLO: %w", err)}
	}
	if code >= 300 {
		// Some legacy servers only speak HELO.
		code, msg, err = command(c, fmt.Sprintf("HELO %s\r\n", p.cfg.HeloHostname))
		if err != nil {
			return Outcome{Class: ClassUnknown, Err: fmt.Errorf("HELO: %w", err)}
		}
		if code >= 300 {
			return preRcptOutcome(code, msg, "greeting")
		}
	}

	// MAIL FROM (possibly the null sender)
	code, msg, err = command(c, fmt.Sprintf("MAIL FROM:<%s>\r\n", p.cfg.MailFrom))
	if err != nil {
		return Outcome{Class: ClassUnknown, Err: fmt.Errorf("MAIL FROM: %w", err)}
	}
	if code >= 300 {
		return preRcptOutcome(code, msg, "MAIL FROM")
	}

	// RCPT TO - this is the actual mailbox existence test.
	code, msg, err = command(c, fmt.Sprintf("RCPT TO:<%s>\r\n", email))
	if err != nil {
		return Outcome{Class: ClassUnknown, Err: fmt.Errorf("RCPT TO: %w", err)}
	}
	return Outcome{Class: classify(code), Code: code, Message: msg}
}

// classify maps an RCPT TO response code to its verification meaning.
// 250 confirms the mailbox. 550-554 are permanent mailbox rejections.
// 421/450/451 are temporary rejections (greylisting). Everything else is
// ambiguous and reported as unknown.
func classify(code int) Class {
	switch {
	case code == 250:
		return ClassSuccess
	case code >= 550 && code <= 554:
		return ClassPermanentReject
	case code == 421 || code == 450 || code == 451:
		return ClassTransient
	default:
		return ClassUnknown
	}
}

// preRcptOutcome classifies a failure that happened before RCPT TO.
// Temporary codes still count as transient (the server may be
// greylisting the whole session); everything else is unknown.
func preRcptOutcome(code int, msg, stage string) Outcome {
	class := ClassUnknown
	if code == 421 || code == 450 || code == 451 {
		class = ClassTransient
	}
	return Outcome{
		Class:   class,
		Code:    code,
		Message: msg,
		Err:     fmt.Errorf("%s rejected: %d %s", stage, code, msg),
	}
}

type conn struct {
	netConn net.Conn
	reader  *bufio.Reader
	writer  *bufio.Writer
}

// command sends an SMTP command and reads the response.
func command(c *conn, cmd string) (int, string, error) {
	if _, err := c.writer.WriteString(cmd); err != nil {
		return 0, "", err
	}
	if err := c.writer.Flush(); err != nil {
		return 0, "", err
	}
	return readResponse(c.reader)
}

// sendQuit sends a QUIT command (best-effort, ignores errors).
func sendQuit(c *conn) {
	_ = c.netConn.SetDeadline(time.Now().Add(2 * time.Second))
	_, _ = c.writer.WriteString("QUIT\r\n")
	_ = c.writer.Flush()
}

// readResponse reads a (possibly multi-line) SMTP response.
func readResponse(r *bufio.Reader) (code int, full string, err error) {
	var lines []string
	for {
		line, readErr := r.ReadString('\n')
		if readErr != nil {
			return 0, "", fmt.Errorf("read SMTP response: %w", readErr)
		}
		line = strings.TrimRight(line, "\r\n")
		if len(line) < 3 {
			return 0, "", errors.New("SMTP response line too short")
		}
		lines = append(lines, line)
		// If the 4th character is not '-', this is the last line.
		if len(line) < 4 || line[3] != '-' {
			break
		}
	}

	lastLine := lines[len(lines)-1]
	if _, err := fmt.Sscanf(lastLine[:3], "%d", &code); err != nil {
		return 0, "", fmt.Errorf("invalid SMTP response code %q: %w", lastLine[:3], err)
	}
	return code, strings.Join(lines, " | "), nil
}
