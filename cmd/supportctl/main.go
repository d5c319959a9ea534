// Command supportctl runs maintenance tasks against the support database.
package main

import (
	"fmt"
	"os"

	"github.com/supportdesk/support-server-go/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
