// Command ofagent runs the OpenFlow state manager core as a standalone
// agent process.
package main

import (
	"fmt"
	"os"

	"github.com/netrack/ofagent/cmd/ofagent/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
