package main

import (
	"context"
	"fmt"

	"github.com/umoja/academy/storage/database/repair"
)

var repairPlan = repair.Default // mockable

// repair brings a database created by an older release up to the current schema.
func (cli *commandLine) repair(dryRun bool) error {
	rep, err := repairPlan().Run(context.Background(), cli.db, cli.logger, dryRun)
	if err != nil {
		return err
	}

	for _, c := range rep.Checks {
		line := fmt.Sprintf("%-40s %s", c.Name(), c.State)
		if c.Err != nil {
			line += ": " + c.Err.Error()
		}
		fmt.Fprintln(cli.out, line)
	}

	if dryRun {
		pending := rep.Pending()
		fmt.Fprintf(cli.out, "\n%d statement(s) pending\n", len(pending))
		for _, stmt := range pending {
			fmt.Fprintln(cli.out, "  "+stmt)
		}
		if rep.Diff != "" {
			fmt.Fprintln(cli.out)
			fmt.Fprint(cli.out, rep.Diff)
		}
		return nil
	}

	fmt.Fprintf(cli.out, "\n%d patched, %d failed; backfill: %s\n", rep.Patches(), rep.Failures(), rep.Backfill)
	if n := rep.Failures(); n > 0 {
		return fmt.Errorf("%d check(s) failed", n)
	}
	return nil
}
