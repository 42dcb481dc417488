// Command fuser runs the input fusion agent and inspects its cycle traces.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/fuser/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
