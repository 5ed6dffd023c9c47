// Package store is the State Store (C3): sqlx/pgx-backed persistence and
// goose migrations for every entity in the data model, plus one repository
// per consumer-defined Store interface (pkg/discovery, pkg/jobcontroller,
// pkg/stream, pkg/analysis each declare the narrow slice they need; Store
// implements the union).
package store

import (
	"context"
	"embed"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Config holds the database connection settings validated at startup.
type Config struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string
}

func (c Config) dsn() string {
	sslmode := c.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.Host, c.Port, c.Database, c.User, c.Password, sslmode)
}

// Open connects via pgx's database/sql driver and wraps the connection in
// sqlx for named-parameter queries and struct scanning.
func Open(cfg Config) (*sqlx.DB, error) {
	db, err := sqlx.Connect("pgx", cfg.dsn())
	if err != nil {
		return nil, fmt.Errorf("connect to state store: %w", err)
	}
	return db, nil
}

// Migrate applies every pending migration under migrations/.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set migration dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db.DB, "migrations"); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Store implements every repository interface the controllers, stream
// emitter, and analysis orchestrator declare against their persistence
// needs.
type Store struct {
	db  *sqlx.DB
	log *logrus.Logger
}

func New(db *sqlx.DB, log *logrus.Logger) *Store {
	return &Store{db: db, log: log}
}

// Ping verifies the database connection is reachable, for the health
// endpoint's database_status check.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
