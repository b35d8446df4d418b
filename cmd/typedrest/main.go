// typedrest CLI - dispatch declarative HTTP calls from an OpenAPI document.
package main

import (
	"fmt"
	"os"

	"github.com/typedrest/typedrest/pkg/cli"
)

// Build-time variables set via ldflags
var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := cli.Execute(Version, Commit); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
