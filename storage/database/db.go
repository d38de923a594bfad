package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"

	"github.com/umoja/academy/core"
	"github.com/umoja/academy/fs"
)

const driverName = "mysql"

func dsn(dbName string, admin bool, conf *core.Config) string {
	cfg := mysql.NewConfig()
	cfg.User = conf.Database.User
	cfg.Passwd = conf.Database.Password
	if admin && conf.Database.AdminUser != "" {
		cfg.User = conf.Database.AdminUser
		cfg.Passwd = conf.Database.AdminPassword
	}
	cfg.Net = "tcp"
	cfg.Addr = conf.Database.Address()
	cfg.DBName = dbName
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.MultiStatements = false
	cfg.Params = map[string]string{"charset": "utf8mb4"}
	return cfg.FormatDSN()
}

func open(dbName string, admin bool, conf *core.Config) (*sqlx.DB, error) {
	db, err := sqlx.Open(driverName, dsn(dbName, admin, conf))
	if err != nil {
		return nil, err
	}
	if conf.Database.MaxOpenConns > 0 {
		db.SetMaxOpenConns(conf.Database.MaxOpenConns)
	}
	if conf.Database.MaxIdleConns > 0 {
		db.SetMaxIdleConns(conf.Database.MaxIdleConns)
	}
	if conf.Database.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(conf.Database.ConnMaxLifetime)
	}
	return db, nil
}

// Open returns a pooled handle on the application database and waits for it to answer.
func Open(conf *core.Config) (*sqlx.DB, error) {
	db, err := open(conf.Database.Name, false, conf)
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	if err = ping(db.DB); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// ping waits for the database to be ready. Waits 100ms longer between each attempt.
func ping(db *sql.DB) error {
	var err error
	maxAttempts := 30
	for attempts := 1; attempts <= maxAttempts; attempts++ {
		err = db.Ping()
		if err == nil {
			break
		}
		time.Sleep(time.Duration(attempts) * 100 * time.Millisecond)
	}

	if err != nil {
		return errors.Wrap(err, "DB ping timeout")
	}
	return nil
}

func quoteIdent(name string) string {
	return "`" + name + "`"
}

func createDB(db *sqlx.DB, name string) error {
	q := fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s CHARACTER SET utf8mb4 COLLATE utf8mb4_unicode_ci", quoteIdent(name))
	if _, err := db.Exec(q); err != nil {
		return errors.Wrap(err, "creating database")
	}
	return nil
}

func grantAppUser(db *sqlx.DB, conf *core.Config) error {
	if conf.Database.AdminUser == "" || conf.Database.User == "" || conf.Database.User == conf.Database.AdminUser {
		return nil
	}
	q := fmt.Sprintf("CREATE USER IF NOT EXISTS '%s'@'%%' IDENTIFIED BY '%s'", conf.Database.User, conf.Database.Password)
	if _, err := db.Exec(q); err != nil {
		return errors.Wrap(err, "creating app user")
	}
	q = fmt.Sprintf("GRANT ALL PRIVILEGES ON %s.* TO '%s'@'%%'", quoteIdent(conf.Database.Name), conf.Database.User)
	if _, err := db.Exec(q); err != nil {
		return errors.Wrap(err, "granting app user")
	}
	return nil
}

func withServer(conf *core.Config, fn func(db *sqlx.DB) error) error {
	// connect as admin, without selecting a database
	db, err := open("", true, conf)
	if err != nil {
		return errors.Wrap(err, "opening database server")
	}
	defer func() { _ = db.Close() }()

	if err = ping(db.DB); err != nil {
		return errors.Wrap(err, "pinging database server")
	}
	return fn(db)
}

// CreateIfNotExist creates the application database (and user, when an admin account is configured).
func CreateIfNotExist(conf *core.Config) error {
	return withServer(conf, func(db *sqlx.DB) error {
		if err := createDB(db, conf.Database.Name); err != nil {
			return err
		}
		return grantAppUser(db, conf)
	})
}

// Recreate drops and recreates the application database. Used by tests.
func Recreate(conf *core.Config) error {
	return withServer(conf, func(db *sqlx.DB) error {
		if _, err := db.Exec("DROP DATABASE IF EXISTS " + quoteIdent(conf.Database.Name)); err != nil {
			return errors.Wrap(err, "dropping database")
		}
		if err := createDB(db, conf.Database.Name); err != nil {
			return err
		}
		return grantAppUser(db, conf)
	})
}

// RunMigrations runs a goose command (up, down, status, version, redo, reset, ...)
// against the embedded migration chain.
func RunMigrations(db *sqlx.DB, command string, args ...string) error {
	goose.SetBaseFS(appfs.FS)
	if err := goose.SetDialect(driverName); err != nil {
		return errors.Wrap(err, "setting migration dialect")
	}
	if err := goose.Run(command, db.DB, "migrations", args...); err != nil {
		return errors.Wrapf(err, "running migrations: %s", command)
	}
	return nil
}

func Migrate(db *sqlx.DB) error {
	return RunMigrations(db, "up")
}
