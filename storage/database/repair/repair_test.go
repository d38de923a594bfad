package repair

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umoja/academy/tests"
)

func mockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return sqlx.NewDb(db, "mysql"), mock
}

func expectTable(mock sqlmock.Sqlmock, table string, exists bool) {
	n := 0
	if exists {
		n = 1
	}
	mock.ExpectQuery(regexp.QuoteMeta("FROM information_schema.tables")).
		WithArgs(table).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(n))
}

func expectColumns(mock sqlmock.Sqlmock, table string, cols ...string) {
	rows := sqlmock.NewRows([]string{"column_name"})
	for _, c := range cols {
		rows.AddRow(c)
	}
	mock.ExpectQuery(regexp.QuoteMeta("FROM information_schema.columns")).WithArgs(table).WillReturnRows(rows)
}

func expectExec(mock sqlmock.Sqlmock, stmt string) *sqlmock.ExpectedExec {
	return mock.ExpectExec(regexp.QuoteMeta(stmt))
}

func feePlan() Plan {
	return Plan{
		Checks: []Check{
			{Kind: TableCheck, Table: "time_slots", Definition: "CREATE TABLE IF NOT EXISTS time_slots (slot_id INT)"},
			{Kind: ColumnCheck, Table: "fee_types", Column: "fee_category", Definition: "VARCHAR(20) DEFAULT 'Other'", After: "fee_name"},
			{
				Kind: RenameCheck, Table: "fee_types", Column: "base_amount", OldColumn: "amount",
				Definition: "DECIMAL(10,2) NOT NULL", AddDefinition: "DECIMAL(10,2) NOT NULL DEFAULT 0.00", After: "description",
			},
		},
		Backfills: []Backfill{{
			Table: "fee_types", Column: "fee_category",
			Statements: []string{"UPDATE `fee_types` SET `fee_category` = 'Tuition' WHERE `fee_name` LIKE '%Tuition%'"},
		}},
	}
}

func TestRunStatements(t *testing.T) {
	db, mock := mockDB(t)
	expectExec(mock, "CREATE INDEX a").WillReturnResult(sqlmock.NewResult(0, 0))
	expectExec(mock, "ALTER TABLE b").WillReturnError(&mysql.MySQLError{Number: 1060, Message: "Duplicate column name"})
	expectExec(mock, "ALTER TABLE c").WillReturnError(errors.New("syntax error"))
	expectExec(mock, "UPDATE d").WillReturnResult(sqlmock.NewResult(0, 3))
	expectExec(mock, "UPDATE e").WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})

	res := RunStatements(context.Background(), db, &testutil.NopLogger{}, []string{"CREATE INDEX a", "ALTER TABLE b", "ALTER TABLE c", "UPDATE d", "UPDATE e"})
	assert.Equal(t, Result{Success: 3, Errors: 2}, res)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlan_Run(t *testing.T) {
	ctx := context.Background()
	logger := &testutil.NopLogger{}

	t.Run("patches a drifted schema", func(t *testing.T) {
		db, mock := mockDB(t)
		expectTable(mock, "time_slots", false)
		expectExec(mock, "CREATE TABLE IF NOT EXISTS time_slots").WillReturnResult(sqlmock.NewResult(0, 0))
		expectTable(mock, "fee_types", true)
		expectColumns(mock, "fee_types", "fee_type_id", "fee_name", "description", "amount")
		expectExec(mock, "ALTER TABLE `fee_types` ADD COLUMN `fee_category` VARCHAR(20) DEFAULT 'Other' AFTER `fee_name`").
			WillReturnResult(sqlmock.NewResult(0, 0))
		expectExec(mock, "ALTER TABLE `fee_types` CHANGE COLUMN `amount` `base_amount` DECIMAL(10,2) NOT NULL").
			WillReturnResult(sqlmock.NewResult(0, 0))
		expectExec(mock, "UPDATE `fee_types` SET `fee_category` = 'Tuition'").WillReturnResult(sqlmock.NewResult(0, 1))

		rep, err := feePlan().Run(ctx, db, logger, false)
		require.NoError(t, err)
		for _, c := range rep.Checks {
			assert.Equal(t, Patched, c.State, c.Name())
		}
		assert.Equal(t, 3, rep.Patches())
		assert.Zero(t, rep.Failures())
		assert.Equal(t, Result{Success: 1}, rep.Backfill)
		assert.Empty(t, rep.Diff)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("repaired schema is left alone", func(t *testing.T) {
		db, mock := mockDB(t)
		expectTable(mock, "time_slots", true)
		expectTable(mock, "fee_types", true)
		expectColumns(mock, "fee_types", "fee_type_id", "fee_name", "fee_category", "description", "base_amount")
		expectExec(mock, "UPDATE `fee_types` SET `fee_category` = 'Tuition'").WillReturnResult(sqlmock.NewResult(0, 0))

		rep, err := feePlan().Run(ctx, db, logger, false)
		require.NoError(t, err)
		for _, c := range rep.Checks {
			assert.Equal(t, Present, c.State, c.Name())
			assert.Empty(t, c.Statement)
		}
		assert.Zero(t, rep.Patches())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("dry run", func(t *testing.T) {
		db, mock := mockDB(t)
		expectTable(mock, "time_slots", false)
		expectTable(mock, "fee_types", true)
		expectColumns(mock, "fee_types", "fee_type_id", "fee_name", "description", "amount")

		rep, err := feePlan().Run(ctx, db, logger, true)
		require.NoError(t, err)
		for _, c := range rep.Checks {
			assert.Equal(t, Absent, c.State, c.Name())
		}
		assert.Equal(t, []string{
			"CREATE TABLE IF NOT EXISTS time_slots (slot_id INT)",
			"ALTER TABLE `fee_types` ADD COLUMN `fee_category` VARCHAR(20) DEFAULT 'Other' AFTER `fee_name`",
			"ALTER TABLE `fee_types` CHANGE COLUMN `amount` `base_amount` DECIMAL(10,2) NOT NULL",
		}, rep.Pending())
		assert.Contains(t, rep.Diff, "--- actual/fee_types\n+++ expected/fee_types\n")
		assert.Contains(t, rep.Diff, " fee_name\n+fee_category\n description\n-amount\n+base_amount\n")
		assert.Zero(t, rep.Backfill)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("failures are independent", func(t *testing.T) {
		plan := feePlan()
		plan.Checks = append(plan.Checks, Check{Kind: ColumnCheck, Table: "timetable", Column: "term", Definition: "VARCHAR(10)"})

		db, mock := mockDB(t)
		expectTable(mock, "time_slots", true)
		expectTable(mock, "fee_types", true)
		expectColumns(mock, "fee_types", "fee_type_id", "fee_name", "description")
		expectExec(mock, "ADD COLUMN `fee_category`").WillReturnError(errors.New("lock wait timeout"))
		expectTable(mock, "timetable", false)
		expectExec(mock, "ADD COLUMN `base_amount` DECIMAL(10,2) NOT NULL DEFAULT 0.00 AFTER `description`").
			WillReturnResult(sqlmock.NewResult(0, 0))

		rep, err := plan.Run(ctx, db, logger, false)
		require.NoError(t, err)
		states := make([]State, len(rep.Checks))
		for i, c := range rep.Checks {
			states[i] = c.State
		}
		assert.Equal(t, []State{Present, Failed, Patched, Unchecked}, states)
		assert.Error(t, rep.Checks[1].Err)
		assert.Equal(t, 1, rep.Failures())
		// the backfill column never appeared
		assert.Zero(t, rep.Backfill)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("inspection error", func(t *testing.T) {
		db, mock := mockDB(t)
		mock.ExpectQuery(regexp.QuoteMeta("FROM information_schema.tables")).WillReturnError(errors.New("connection refused"))

		_, err := feePlan().Run(ctx, db, logger, false)
		assert.Error(t, err)
	})
}

func TestInspect_Rename(t *testing.T) {
	check := Default().Checks[5]
	require.Equal(t, RenameCheck, check.Kind)

	tests := []struct {
		name      string
		cols      []string
		wantState State
		wantStmt  string
	}{
		{
			name:      "renamed",
			cols:      []string{"fee_name", "description", "base_amount"},
			wantState: Present,
		},
		{
			name:      "old column",
			cols:      []string{"fee_name", "description", "amount"},
			wantState: Absent,
			wantStmt:  "ALTER TABLE `fee_types` CHANGE COLUMN `amount` `base_amount` DECIMAL(10,2) NOT NULL",
		},
		{
			name:      "neither",
			cols:      []string{"fee_name", "description"},
			wantState: Absent,
			wantStmt:  "ALTER TABLE `fee_types` ADD COLUMN `base_amount` DECIMAL(10,2) NOT NULL DEFAULT 0.00 AFTER `description`",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sch := newSchema(nil)
			sch.tables["fee_types"] = true
			sch.columns["fee_types"] = tt.cols

			c := check
			require.NoError(t, inspect(context.Background(), sch, &c))
			assert.Equal(t, tt.wantState, c.State)
			assert.Equal(t, tt.wantStmt, c.Statement)
		})
	}
}

func TestSchema_AddColumn(t *testing.T) {
	sch := newSchema(nil)
	sch.columns["student_fees"] = []string{"student_fee_id", "fee_type_id", "due_date"}

	sch.addColumn("student_fees", "amount_due", "fee_type_id")
	sch.addColumn("student_fees", "amount_paid", "amount_due")
	sch.addColumn("student_fees", "term", "missing")

	assert.Equal(t, []string{"student_fee_id", "fee_type_id", "amount_due", "amount_paid", "due_date", "term"}, sch.columns["student_fees"])
}

func TestInspect_Index(t *testing.T) {
	checks := Default().Checks
	check := checks[len(checks)-1]
	require.Equal(t, IndexCheck, check.Kind)

	expectIndex := func(mock sqlmock.Sqlmock, n int) {
		mock.ExpectQuery(regexp.QuoteMeta("FROM information_schema.statistics")).
			WithArgs("student_fees", "unique_student_fee_term").
			WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(n))
	}

	t.Run("present", func(t *testing.T) {
		db, mock := mockDB(t)
		expectIndex(mock, 4)
		sch := newSchema(NewInspector(db))
		sch.tables["student_fees"] = true

		c := check
		require.NoError(t, inspect(context.Background(), sch, &c))
		assert.Equal(t, Present, c.State)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("absent", func(t *testing.T) {
		db, mock := mockDB(t)
		expectIndex(mock, 0)
		sch := newSchema(NewInspector(db))
		sch.tables["student_fees"] = true

		c := check
		require.NoError(t, inspect(context.Background(), sch, &c))
		assert.Equal(t, Absent, c.State)
		assert.Equal(t, "ALTER TABLE `student_fees` ADD UNIQUE KEY `unique_student_fee_term` (student_id, fee_type_id, academic_year, term)", c.Statement)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate rows fail the patch", func(t *testing.T) {
		db, mock := mockDB(t)
		expectTable(mock, "student_fees", true)
		expectIndex(mock, 0)
		expectExec(mock, "ADD UNIQUE KEY `unique_student_fee_term`").
			WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry '1-1-2025-2026-Term 1'"})

		rep, err := Plan{Checks: []Check{check}}.Run(context.Background(), db, &testutil.NopLogger{}, false)
		require.NoError(t, err)
		assert.Equal(t, Failed, rep.Checks[0].State)
		assert.Equal(t, 1, rep.Failures())
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
