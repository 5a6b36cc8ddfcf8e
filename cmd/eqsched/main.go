// Command eqsched compiles rewrite rules and saturates expressions under a
// rule scheduling strategy.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/eqsched/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
