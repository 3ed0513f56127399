// Command geoauth hosts the perimeter-gated session engine outside a device.
//
//	geoauth simulate --track day.yaml   replay a recorded day of fixes
//	geoauth serve --addr :8080          push fixes and drive logins over HTTP
//
// Configuration is read from --config (YAML), then GEOAUTH_* environment
// variables, then flags.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
