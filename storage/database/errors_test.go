package database

import (
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantExists    bool
		wantDuplicate bool
		wantFK        bool
	}{
		{name: "table exists", err: &mysql.MySQLError{Number: 1050}, wantExists: true},
		{name: "duplicate column", err: &mysql.MySQLError{Number: 1060}, wantExists: true},
		{name: "duplicate key name", err: &mysql.MySQLError{Number: 1061}, wantExists: true},
		{name: "duplicate entry", err: errors.Wrap(&mysql.MySQLError{Number: 1062}, "updating subjects"), wantDuplicate: true},
		{name: "missing parent row", err: &mysql.MySQLError{Number: 1452}, wantFK: true},
		{name: "referenced row", err: &mysql.MySQLError{Number: 1451}, wantFK: true},
		{name: "not mysql", err: errors.New("connection refused")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantExists, IsAlreadyExists(tt.err))
			assert.Equal(t, tt.wantDuplicate, IsDuplicate(tt.err))
			assert.Equal(t, tt.wantFK, IsForeignKeyViolation(tt.err))
		})
	}
}
