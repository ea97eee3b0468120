// Command sequence validates, exercises and inspects the sequence
// accumulator backend.
package main

import (
	"fmt"
	"os"

	"github.com/louyanyang/tensorrt-inference-server/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
