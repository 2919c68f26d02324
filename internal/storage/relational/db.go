// Package relational maps each entity kind to a table through a GORM session.
// One DB (connection pool) is shared by the process; every unit of work gets
// its own Storage with a private scope of staged changes.
package relational

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"sync"
	"time"

	mysqldrv "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	_ "modernc.org/sqlite"

	"hbnb_api/internal/domain"
)

const backend = "db"

type Dialect string

const (
	DialectMySQL    Dialect = "mysql"
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

type Config struct {
	Dialect Dialect
	DSN     string
	// DropAll drops every table before migrating (HBNB_ENV=test).
	DropAll bool
}

type DB struct {
	gdb   *gorm.DB
	sqlDB *sql.DB

	closeOnce sync.Once
	closeErr  error
}

// MySQLDSN builds a DSN from the HBNB_MYSQL_* settings.
func MySQLDSN(user, pwd, host, dbName string) string {
	c := mysqldrv.NewConfig()
	c.User = user
	c.Passwd = pwd
	c.Net = "tcp"
	c.Addr = host
	if _, _, err := net.SplitHostPort(host); err != nil {
		c.Addr = net.JoinHostPort(host, "3306")
	}
	c.DBName = dbName
	c.ParseTime = true
	c.Loc = time.UTC
	c.Params = map[string]string{"charset": "utf8mb4"}
	return c.FormatDSN()
}

// SQLiteDSN enables foreign keys so the association table cascades.
func SQLiteDSN(path string) string {
	return path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

// Open connects, verifies the connection and creates missing tables.
func Open(ctx context.Context, cfg Config) (*DB, error) {
	sqlDB, dialector, err := dial(cfg)
	if err != nil {
		return nil, &domain.PersistenceError{Backend: backend, Op: "open", Err: err}
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, &domain.PersistenceError{Backend: backend, Op: "open", Err: err}
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 newGormLogger(log.Logger),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		_ = sqlDB.Close()
		return nil, &domain.PersistenceError{Backend: backend, Op: "open", Err: err}
	}

	d := &DB{gdb: gdb, sqlDB: sqlDB}
	if cfg.DropAll {
		if err := d.dropAll(ctx); err != nil {
			_ = d.Close()
			return nil, err
		}
	}
	if err := d.migrate(ctx); err != nil {
		_ = d.Close()
		return nil, err
	}
	log.Info().Str("dialect", string(cfg.Dialect)).Msg("relational storage ready")
	return d, nil
}

func dial(cfg Config) (*sql.DB, gorm.Dialector, error) {
	switch cfg.Dialect {
	case DialectMySQL, "":
		db, err := sql.Open("mysql", cfg.DSN)
		return db, mysql.New(mysql.Config{Conn: db}), err
	case DialectPostgres:
		db, err := sql.Open("pgx", cfg.DSN)
		return db, postgres.New(postgres.Config{Conn: db}), err
	case DialectSQLite:
		db, err := sql.Open("sqlite", cfg.DSN)
		if err == nil {
			// a single connection serialises writers instead of racing for the file lock
			db.SetMaxOpenConns(1)
		}
		return db, sqlite.Dialector{DriverName: "sqlite", Conn: db}, err
	}
	return nil, nil, fmt.Errorf("unsupported dialect %q", cfg.Dialect)
}

// tables lists the models in creation order; the association table last.
func tables() []any {
	return []any{
		&domain.State{}, &domain.Amenity{}, &domain.User{},
		&domain.City{}, &domain.Place{}, &domain.Review{},
		&placeAmenity{},
	}
}

func (d *DB) migrate(ctx context.Context) error {
	if err := d.gdb.WithContext(ctx).AutoMigrate(tables()...); err != nil {
		return &domain.PersistenceError{Backend: backend, Op: "migrate", Err: err}
	}
	return nil
}

func (d *DB) dropAll(ctx context.Context) error {
	ts := tables()
	for i, j := 0, len(ts)-1; i < j; i, j = i+1, j-1 {
		ts[i], ts[j] = ts[j], ts[i]
	}
	if err := d.gdb.WithContext(ctx).Migrator().DropTable(ts...); err != nil {
		return &domain.PersistenceError{Backend: backend, Op: "drop", Err: err}
	}
	log.Warn().Msg("relational storage: all tables dropped")
	return nil
}

// Open starts a new unit of work. It implements domain.Provider.
func (d *DB) Open(_ context.Context) (domain.Engine, error) {
	return NewStorage(d), nil
}

// Close shuts the connection pool down. Safe to call more than once.
func (d *DB) Close() error {
	d.closeOnce.Do(func() {
		d.closeErr = d.sqlDB.Close()
	})
	return d.closeErr
}

var _ domain.Provider = (*DB)(nil)
