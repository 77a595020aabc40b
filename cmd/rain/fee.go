package main

import (
	"flag"
	"fmt"
	"io"

	"github.com/rain-protocol/rain/core/pkg/feepolicy"
)

// runFee evaluates a fee schedule expression, so operators can dry-run a
// schedule before feeding its result to the engine.
func runFee(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("fee", flag.ContinueOnError)
	fs.SetOutput(stderr)
	expr := fs.String("expr", feepolicy.DefaultExpression, "fee schedule expression")
	base := fs.Int64("base", 10, "base fee")
	actions := fs.Int64("actions", 0, "current action count")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	eval, err := feepolicy.New(*expr)
	if err != nil {
		fmt.Fprintf(stderr, "fee: %v\n", err)
		return 1
	}
	fee, err := eval.Fee(*base, *actions)
	if err != nil {
		fmt.Fprintf(stderr, "fee: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "%d\n", fee)
	return 0
}
