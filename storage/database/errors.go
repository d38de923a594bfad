package database

import (
	"github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
)

// MySQL server error numbers.
const (
	erTableExists   = 1050
	erDupFieldName  = 1060
	erDupKeyName    = 1061
	erDupEntry      = 1062
	erNoReferenced  = 1452
	erRowIsReferred = 1451
)

func mysqlNumber(err error) uint16 {
	var myErr *mysql.MySQLError
	if errors.As(errors.Cause(err), &myErr) {
		return myErr.Number
	}
	return 0
}

// IsDuplicate reports a unique key violation.
func IsDuplicate(err error) bool {
	return mysqlNumber(err) == erDupEntry
}

// IsForeignKeyViolation reports an insert or delete that breaks a foreign key.
func IsForeignKeyViolation(err error) bool {
	n := mysqlNumber(err)
	return n == erNoReferenced || n == erRowIsReferred
}

// IsAlreadyExists reports DDL errors caused by the object already being there.
func IsAlreadyExists(err error) bool {
	switch mysqlNumber(err) {
	case erTableExists, erDupFieldName, erDupKeyName:
		return true
	}
	return false
}
