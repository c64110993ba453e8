// Command relfilter compiles query filters against a CUE model schema and
// dispatches them to the connector each model is bound to.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/relfilter/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
