// Command orbitdockd is OrbitDock's server and operator CLI: a Cobra root
// exposing init, install-hooks, start, generate-token, install-service, and
// status, mirroring the teacher's flat main.go bootstrap-then-serve shape
// but fronted by the pack's cobra/pflag surface (telnet2-opencode/go-opencode)
// instead of a single flagless entrypoint.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeFor(err))
	}
}
