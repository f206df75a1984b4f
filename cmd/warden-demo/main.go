// warden-demo shows call-stack access control live: the same guarded
// function is reached through an approved path, an arbitrary path, and
// a path containing an explicitly banned frame.
package main

import (
	"fmt"
	"os"

	"github.com/stackwarden/stackwarden/sdk/go/warden"
)

const (
	green = "\033[0;32m"
	red   = "\033[0;31m"
	bold  = "\033[1m"
	reset = "\033[0m"
)

// vaultGuard protects readSecret: only billingJob may call it, and
// nothing reached through auditProbe ever may.
var vaultGuard = warden.MustGuard(warden.Restriction{
	ProhibitArbitraryInvocation: true,
	PermittedSources:            []string{"main#billingJob"},
	ProhibitedSources:           []string{"main#auditProbe"},
})

func readSecret() (string, error) {
	if err := vaultGuard.Ensure(); err != nil {
		return "", err
	}
	return "hunter2", nil
}

func billingJob() (string, error) {
	return readSecret()
}

func auditProbe() (string, error) {
	// Even going through the approved caller does not help when a
	// prohibited frame is anywhere on the stack.
	return billingJob()
}

func report(scenario string, secret string, err error) {
	if err != nil {
		fmt.Printf("%s%-40s%s %sDENIED%s  %v\n", bold, scenario, reset, red, reset, err)
		return
	}
	fmt.Printf("%s%-40s%s %sALLOWED%s secret=%q\n", bold, scenario, reset, green, reset, secret)
}

func main() {
	fmt.Println("stackwarden demo: one guarded function, three call paths")
	fmt.Println()

	secret, err := billingJob()
	report("approved caller (billingJob)", secret, err)
	if err != nil {
		os.Exit(1)
	}

	secret, err = readSecret()
	report("arbitrary caller (main)", secret, err)
	if err == nil {
		os.Exit(1)
	}

	secret, err = auditProbe()
	report("banned frame on stack (auditProbe)", secret, err)
	if err == nil {
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("exactly the approved path got through")
}
