// Package parse turns raw candidate strings into validated email addresses.
// Parsing and syntax validation happen together: an address that comes out
// of Parse without error is safe to take to the network.
// Supports internationalized email addresses (RFC 6531 / EAI) and
// internationalized domain names (IDNA2008).
package parse

import (
	"errors"
	"net/mail"
	"strings"
	"unicode"

	"golang.org/x/net/idna"
)

// Email is a validated, decomposed email address.
type Email struct {
	Raw           string // the original, trimmed input
	Local         string // the part before @
	Domain        string // the part after @, ASCII/Punycode form (for DNS/SMTP)
	DomainUnicode string // the part after @, Unicode form (for display)
}

// asciiSpecial are the RFC 5321 special characters allowed in an
// unquoted local part besides alphanumerics.
const asciiSpecial = "!#$%&'*+/=?^_`{|}~-."

// Parse validates and decomposes a raw address string.
// The returned error text is suitable as a user-facing rejection reason.
func Parse(raw string) (Email, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Email{Raw: raw}, errors.New("empty email address")
	}
	if len(raw) > 254 {
		return Email{Raw: raw}, errors.New("email address exceeds 254 characters")
	}

	local, domain, err := split(raw)
	if err != nil {
		return Email{Raw: raw}, err
	}

	if len(local) > 64 {
		return Email{Raw: raw}, errors.New("local part exceeds 64 characters")
	}
	// net/mail strips quotes from quoted local parts, so quoted form is
	// detected on the raw input; all printable characters are allowed there.
	if !hasQuotedLocal(raw) {
		if err := validateLocal(local); err != nil {
			return Email{Raw: raw}, err
		}
	}

	asciiDomain, unicodeDomain, err := convertDomain(strings.ToLower(domain))
	if err != nil {
		return Email{Raw: raw}, err
	}
	if err := validateDomain(unicodeDomain); err != nil {
		return Email{Raw: raw}, err
	}

	return Email{
		Raw:           raw,
		Local:         local,
		Domain:        asciiDomain,
		DomainUnicode: unicodeDomain,
	}, nil
}

// split separates local part and domain. net/mail handles the common
// ASCII forms; Unicode local parts (RFC 6531 SMTPUTF8) that net/mail
// rejects fall back to a manual split on the last @.
func split(raw string) (local, domain string, err error) {
	addr, perr := mail.ParseAddress(raw)
	if perr != nil {
		addr, perr = mail.ParseAddress("<" + raw + ">")
	}
	if perr == nil {
		parts := strings.SplitN(addr.Address, "@", 2)
		if len(parts) == 2 && parts[0] != "" && parts[1] != "" {
			return parts[0], parts[1], nil
		}
		return "", "", errors.New("invalid email syntax")
	}

	atIdx := strings.LastIndex(raw, "@")
	if atIdx < 1 || atIdx >= len(raw)-1 {
		return "", "", errors.New("invalid email syntax")
	}
	return raw[:atIdx], raw[atIdx+1:], nil
}

// hasQuotedLocal checks if the raw address has a quoted local part.
func hasQuotedLocal(raw string) bool {
	atIdx := strings.LastIndex(raw, "@")
	if atIdx < 1 {
		return false
	}
	local := raw[:atIdx]
	return strings.HasPrefix(local, `"`) && strings.HasSuffix(local, `"`)
}

// validateLocal checks the local part against RFC 5321, allowing RFC 6531
// (SMTPUTF8) Unicode characters except controls.
func validateLocal(local string) error {
	for _, ch := range local {
		if ch > 127 {
			if unicode.IsControl(ch) {
				return errors.New("local part contains control character")
			}
			continue
		}
		if (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9') {
			continue
		}
		if !strings.ContainsRune(asciiSpecial, ch) {
			return errors.New("local part contains invalid character: " + string(ch))
		}
	}

	if strings.HasPrefix(local, ".") || strings.HasSuffix(local, ".") {
		return errors.New("local part cannot start or end with a dot")
	}
	if strings.Contains(local, "..") {
		return errors.New("local part cannot contain consecutive dots")
	}
	return nil
}

// validateDomain checks the domain labels (Unicode form).
func validateDomain(domain string) error {
	if domain == "" {
		return errors.New("domain is empty")
	}

	// IP literal: [127.0.0.1] - accept but don't validate deeply.
	if strings.HasPrefix(domain, "[") && strings.HasSuffix(domain, "]") {
		return nil
	}

	labels := strings.Split(domain, ".")
	if len(labels) < 2 {
		return errors.New("domain must have at least two labels")
	}

	for _, label := range labels {
		if label == "" {
			return errors.New("domain contains empty label (consecutive dots)")
		}
		if len(label) > 63 {
			return errors.New("domain label exceeds 63 characters")
		}
		if strings.HasPrefix(label, "-") || strings.HasSuffix(label, "-") {
			return errors.New("domain label cannot start or end with a hyphen")
		}
		for _, ch := range label {
			if !unicode.IsLetter(ch) && !unicode.IsDigit(ch) && ch != '-' {
				return errors.New("domain label contains invalid character: " + string(ch))
			}
		}
	}

	// TLD cannot be all digits.
	allDigits := true
	for _, ch := range labels[len(labels)-1] {
		if !unicode.IsDigit(ch) {
			allDigits = false
			break
		}
	}
	if allDigits {
		return errors.New("TLD cannot be all digits")
	}
	return nil
}

// convertDomain converts a domain to both ASCII/Punycode and Unicode forms.
func convertDomain(domain string) (ascii, unicode string, err error) {
	hasNonASCII := false
	for _, r := range domain {
		if r > 127 {
			hasNonASCII = true
			break
		}
	}

	if hasNonASCII {
		a, err := idna.Lookup.ToASCII(domain)
		if err != nil {
			return "", "", errors.New("domain fails IDNA validation")
		}
		return a, domain, nil
	}

	// Pure ASCII domain: recover the Unicode display form for existing
	// Punycode like xn--mnchen-3ya.de → münchen.de.
	u, uerr := idna.Display.ToUnicode(domain)
	if uerr != nil {
		u = domain
	}
	return domain, u, nil
}
