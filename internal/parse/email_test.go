package parse_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/leadsnipe/verifykit/internal/parse"
)

func TestParse_Valid(t *testing.T) {
	cases := []struct {
		input  string
		local  string
		domain string
	}{
		{"user@example.com", "user", "example.com"},
		{"  user@example.com  ", "user", "example.com"},
		{"first.last@sub.example.co.uk", "first.last", "sub.example.co.uk"},
		{"user+tag@example.com", "user+tag", "example.com"},
		{"o'brien@example.com", "o'brien", "example.com"},
		{`"quoted local"@example.com`, `quoted local`, "example.com"},
	}

	for _, c := range cases {
		e, err := parse.Parse(c.input)
		assert.NoError(t, err, c.input)
		assert.Equal(t, c.local, e.Local, c.input)
		assert.Equal(t, c.domain, e.Domain, c.input)
	}
}

func TestParse_Invalid(t *testing.T) {
	cases := []string{
		"",
		"no-at-sign",
		"@example.com",
		"user@",
		"user@localhost", // single label
		".user@example.com",
		"user.@example.com",
		"us..er@example.com",
		"user@-example.com",
		"user@example..com",
		"user@example.123",
	}

	for _, c := range cases {
		_, err := parse.Parse(c)
		assert.Error(t, err, c)
	}
}

func TestParse_IDN(t *testing.T) {
	// German IDN domain converts to Punycode for DNS/SMTP.
	e, err := parse.Parse("user@münchen.de")
	assert.NoError(t, err)
	assert.Equal(t, "xn--mnchen-3ya.de", e.Domain)
	assert.Equal(t, "münchen.de", e.DomainUnicode)

	// Existing Punycode keeps its ASCII form and gains a display form.
	e, err = parse.Parse("user@xn--mnchen-3ya.de")
	assert.NoError(t, err)
	assert.Equal(t, "xn--mnchen-3ya.de", e.Domain)
	assert.Equal(t, "münchen.de", e.DomainUnicode)
}

func TestParse_SMTPUTF8Local(t *testing.T) {
	// RFC 6531: Unicode local parts that net/mail rejects.
	e, err := parse.Parse("用户@example.com")
	assert.NoError(t, err)
	assert.Equal(t, "用户", e.Local)
	assert.Equal(t, "example.com", e.Domain)
}

func TestParse_LengthLimits(t *testing.T) {
	longLocal := make([]byte, 65)
	for i := range longLocal {
		longLocal[i] = 'a'
	}
	_, err := parse.Parse(string(longLocal) + "@example.com")
	assert.Error(t, err)

	longAddr := make([]byte, 250)
	for i := range longAddr {
		longAddr[i] = 'a'
	}
	_, err = parse.Parse(string(longAddr) + "@example.com")
	assert.Error(t, err)
}

func TestParse_DomainIsLowercased(t *testing.T) {
	e, err := parse.Parse("User@EXAMPLE.COM")
	assert.NoError(t, err)
	assert.Equal(t, "example.com", e.Domain)
	assert.Equal(t, "User", e.Local) // local part case is preserved
}
