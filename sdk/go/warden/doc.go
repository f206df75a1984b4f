// Package warden provides in-process call-stack access control for Go
// code, the live counterpart of the archive rewriter. A Restriction is
// compiled once into a Guard; every Guard.Ensure call captures the
// current call stack and verifies it against the restriction.
//
// Usage:
//
//	var secrets = warden.MustGuard(warden.Restriction{
//	    ProhibitArbitraryInvocation: true,
//	    PermittedSources:            []string{"vault.Service#*"},
//	})
//
//	func ReadSecret(name string) (string, error) {
//	    if err := secrets.Ensure(); err != nil {
//	        return "", err
//	    }
//	    // ...
//	}
//
// The SDK links directly against internal packages for zero-subprocess
// overhead. External users import github.com/stackwarden/stackwarden/sdk/go/warden.
package warden
