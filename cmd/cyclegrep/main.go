// Command cyclegrep runs the search cycle engine as a one-shot CLI search,
// a long-running HTTP/gRPC service, or a benchmark harness against a
// scenario file.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "cyclegrep",
		Short: "A code-search agent that iterates discover/probe/escalate/disambiguate/verify cycles",
		Long: `cyclegrep wraps ripgrep, ripgrep-all, fd, and ast-grep behind a single search
cycle: it widens scope only as far as needed to confirm a symbol, scoring and
deduping hits as it goes.`,
	}

	root.AddCommand(newSearchCmd())
	root.AddCommand(newServeCmd())
	root.AddCommand(newBenchCmd())

	return root
}
