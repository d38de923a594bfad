// Package repair brings a drifted school database back to the shape the
// application expects. It is meant for databases that were created before
// the versioned migrations existed; fresh installs only need migrations.
package repair

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/umoja/academy/core"
	"github.com/umoja/academy/storage/database"
)

// Result counts the outcome of a batch of statements.
type Result struct {
	Success int
	Errors  int
}

func (r Result) String() string {
	return fmt.Sprintf("%d succeeded, %d failed", r.Success, r.Errors)
}

// runStatement executes stmt, treating "already exists" errors as success.
func runStatement(ctx context.Context, exec core.DBExecutor, stmt string) error {
	if _, err := exec.ExecContext(ctx, stmt); err != nil && !database.IsAlreadyExists(err) {
		return errors.Wrap(err, "executing statement")
	}
	return nil
}

// RunStatements executes every statement independently. A failing statement
// is logged and counted; it never stops the batch.
func RunStatements(ctx context.Context, exec core.DBExecutor, logger core.Logger, stmts []string) Result {
	var res Result
	for i, stmt := range stmts {
		if err := runStatement(ctx, exec, stmt); err != nil {
			res.Errors++
			logger.Error(fmt.Sprintf("statement %d failed: %s", i+1, abbreviate(stmt)), err)
			continue
		}
		res.Success++
	}
	return res
}

func abbreviate(stmt string) string {
	const max = 80
	if len(stmt) <= max {
		return stmt
	}
	return stmt[:max] + "..."
}
