package sqlxrepos

import (
	"database/sql"

	"github.com/pkg/errors"

	"github.com/umoja/academy/core"
	"github.com/umoja/academy/storage/database"
)

// executor is embedded by every repository: calls run on the service's
// transaction when one is passed, else on the pool.
type executor struct {
	exec core.DBExecutor
}

func (e executor) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 && svcExec[0] != nil {
		return svcExec[0]
	}
	return e.exec
}

// trapNoRowsErr maps sql.ErrNoRows to notFound.
func trapNoRowsErr(err error, notFound error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

// trapConstraintErr turns unique and foreign key violations into validation errors.
func trapConstraintErr(err error, field string, duplicate, missingRef error, msg string) error {
	switch {
	case duplicate != nil && database.IsDuplicate(err):
		return core.NewValidationError(duplicate, core.FieldError{Field: field, Error: duplicate.Error()})
	case missingRef != nil && database.IsForeignKeyViolation(err):
		return core.NewValidationError(missingRef, core.FieldError{Field: field, Error: missingRef.Error()})
	}
	return errors.Wrap(err, msg)
}

func lastInsertID(res sql.Result) (int, error) {
	id, err := res.LastInsertId()
	if err != nil {
		return 0, errors.Wrap(err, "reading insert id")
	}
	return int(id), nil
}
