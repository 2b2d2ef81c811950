// reconcile is the operational CLI for the batch repair jobs: candidate
// id unification, re-ranking, incomplete-document cleanup, score sync,
// questionnaire backfill, and the end-of-day GitHub analysis pass.
//
// Every subcommand defaults to a dry run; pass --apply to write.
package main

import (
	"fmt"
	"os"

	"neunet-backend/cmd/tools/reconcile/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
