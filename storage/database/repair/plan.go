package repair

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/umoja/academy/core"
)

type State int

const (
	Unchecked State = iota
	Present
	Absent
	Patched
	Failed
)

func (s State) String() string {
	switch s {
	case Present:
		return "present"
	case Absent:
		return "absent"
	case Patched:
		return "patched"
	case Failed:
		return "failed"
	default:
		return "unchecked"
	}
}

type Kind int

const (
	TableCheck Kind = iota
	ColumnCheck
	RenameCheck
	IndexCheck
)

// Check is one schema expectation. Each check moves through its own states:
// Unchecked, then Present or Absent, then Patched or Failed when absent.
// Any check other than a table check stays Unchecked on a missing table.
type Check struct {
	Kind   Kind
	Table  string
	Column string
	// Definition is the CREATE TABLE statement for table checks, the
	// column type for column and rename checks and the key definition,
	// e.g. "UNIQUE KEY (a, b)", for index checks.
	Definition string
	After      string

	// rename checks only
	OldColumn     string
	AddDefinition string

	// index checks only
	Index string

	State     State
	Statement string
	Err       error
}

func (c Check) Name() string {
	switch c.Kind {
	case TableCheck:
		return c.Table
	case RenameCheck:
		return fmt.Sprintf("%s.%s (was %s)", c.Table, c.Column, c.OldColumn)
	case IndexCheck:
		return c.Table + "." + c.Index
	default:
		return c.Table + "." + c.Column
	}
}

// indexStatement names the key by splicing Index after the KEY keyword.
func (c Check) indexStatement() string {
	def := strings.Replace(c.Definition, "KEY ", fmt.Sprintf("KEY `%s` ", c.Index), 1)
	return fmt.Sprintf("ALTER TABLE `%s` ADD %s", c.Table, def)
}

func (c Check) addStatement(def string) string {
	stmt := fmt.Sprintf("ALTER TABLE `%s` ADD COLUMN `%s` %s", c.Table, c.Column, def)
	if c.After != "" {
		stmt += fmt.Sprintf(" AFTER `%s`", c.After)
	}
	return stmt
}

// Backfill is a best-effort data fix that runs only once Table.Column exists.
type Backfill struct {
	Table      string
	Column     string
	Statements []string
}

type Plan struct {
	Checks    []Check
	Backfills []Backfill
}

type Report struct {
	Checks   []Check
	Backfill Result
	DryRun   bool
	// Diff is the unified diff of actual against expected columns; dry runs only.
	Diff string
}

// Patches is the number of statements that changed the schema.
func (r Report) Patches() int {
	n := 0
	for _, c := range r.Checks {
		if c.State == Patched {
			n++
		}
	}
	return n
}

func (r Report) Failures() int {
	n := 0
	for _, c := range r.Checks {
		if c.State == Failed {
			n++
		}
	}
	return n
}

// Pending lists the statements a dry run would execute.
func (r Report) Pending() []string {
	var stmts []string
	for _, c := range r.Checks {
		if c.State == Absent && c.Statement != "" {
			stmts = append(stmts, c.Statement)
		}
	}
	return stmts
}

// Run inspects the schema and, unless dryRun is set, patches what is missing.
// Only inspection errors are returned; failed patches are reported per check.
func (p Plan) Run(ctx context.Context, exec core.DBExecutor, logger core.Logger, dryRun bool) (Report, error) {
	sch := newSchema(NewInspector(exec))
	rep := Report{Checks: make([]Check, len(p.Checks)), DryRun: dryRun}
	copy(rep.Checks, p.Checks)

	// tables first so that column checks see freshly created tables, and
	// indexes last so that their columns exist
	for _, kind := range []Kind{TableCheck, ColumnCheck, RenameCheck, IndexCheck} {
		for i := range rep.Checks {
			c := &rep.Checks[i]
			if c.Kind != kind {
				continue
			}
			c.State, c.Statement, c.Err = Unchecked, "", nil
			if err := inspect(ctx, sch, c); err != nil {
				return rep, err
			}
			if c.State != Absent {
				continue
			}
			if dryRun {
				if kind != TableCheck && kind != IndexCheck {
					apply(sch, c)
				}
				continue
			}
			if err := runStatement(ctx, exec, c.Statement); err != nil {
				c.State, c.Err = Failed, err
				logger.Error(fmt.Sprintf("repairing %s", c.Name()), err)
				continue
			}
			c.State = Patched
			apply(sch, c)
			logger.Info(fmt.Sprintf("repaired %s", c.Name()))
		}
	}

	if dryRun {
		diff, err := sch.diff()
		if err != nil {
			return rep, err
		}
		rep.Diff = diff
		return rep, nil
	}

	for _, bf := range p.Backfills {
		ok, err := sch.hasTable(ctx, bf.Table)
		if err == nil && ok {
			ok, err = sch.hasColumn(ctx, bf.Table, bf.Column)
		}
		if err != nil {
			return rep, err
		}
		if !ok {
			continue
		}
		res := RunStatements(ctx, exec, logger, bf.Statements)
		rep.Backfill.Success += res.Success
		rep.Backfill.Errors += res.Errors
	}
	return rep, nil
}

func inspect(ctx context.Context, sch *schema, c *Check) error {
	ok, err := sch.hasTable(ctx, c.Table)
	if err != nil {
		return err
	}
	if c.Kind == TableCheck {
		if ok {
			c.State = Present
		} else {
			c.State, c.Statement = Absent, c.Definition
		}
		return nil
	}
	if !ok {
		return nil
	}

	if c.Kind == IndexCheck {
		has, err := sch.in.IndexExists(ctx, c.Table, c.Index)
		if err != nil {
			return err
		}
		if has {
			c.State = Present
		} else {
			c.State, c.Statement = Absent, c.indexStatement()
		}
		return nil
	}

	hasNew, err := sch.hasColumn(ctx, c.Table, c.Column)
	if err != nil {
		return err
	}
	if hasNew {
		c.State = Present
		return nil
	}
	c.State = Absent
	if c.Kind == ColumnCheck {
		c.Statement = c.addStatement(c.Definition)
		return nil
	}

	hasOld, err := sch.hasColumn(ctx, c.Table, c.OldColumn)
	if err != nil {
		return err
	}
	if hasOld {
		c.Statement = fmt.Sprintf("ALTER TABLE `%s` CHANGE COLUMN `%s` `%s` %s", c.Table, c.OldColumn, c.Column, c.Definition)
	} else {
		c.Statement = c.addStatement(c.AddDefinition)
	}
	return nil
}

func apply(sch *schema, c *Check) {
	switch c.Kind {
	case TableCheck:
		sch.tables[c.Table] = true
	case IndexCheck:
	case RenameCheck:
		if !sch.renameColumn(c.Table, c.OldColumn, c.Column) {
			sch.addColumn(c.Table, c.Column, c.After)
		}
	default:
		sch.addColumn(c.Table, c.Column, c.After)
	}
}

func (s *schema) diff() (string, error) {
	var b strings.Builder
	for _, table := range s.order {
		text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
			A:        lines(s.actual[table]),
			B:        lines(s.columns[table]),
			FromFile: "actual/" + table,
			ToFile:   "expected/" + table,
			Context:  1,
		})
		if err != nil {
			return "", errors.Wrapf(err, "diffing %s", table)
		}
		b.WriteString(text)
	}
	return b.String(), nil
}

func lines(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c + "\n"
	}
	return out
}
