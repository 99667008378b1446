package sqlutils

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	_ "modernc.org/sqlite"
)

// CreateSQLiteClient opens an embedded sqlite database. Used for local
// single-file setups and by tests (dsn ":memory:").
func CreateSQLiteClient(dsn string) (*bun.DB, error) {
	sqldb, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	// sqlite only supports one writer, and an in-memory db disappears when
	// its last connection closes
	sqldb.SetMaxOpenConns(1)

	err = sqldb.Ping()

	return bun.NewDB(sqldb, sqlitedialect.New()), err
}

// IsUniqueViolation reports whether err is a uniqueness constraint failure
// from either supported engine.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		return pgErr.IntegrityViolation()
	}

	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
