// Package disposable flags domains of known throwaway email providers.
// Probing these is pointless: the mailbox may exist now and bounce tomorrow.
package disposable

import "strings"

// IsDisposable returns whether the given domain is a known disposable domain.
func IsDisposable(domain string) bool {
	_, ok := disposableSet[strings.ToLower(domain)]
	return ok
}
