package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

// Config is bound with the DB prefix: DB_DSN, DB_DIAL_TIMEOUT, ...
type Config struct {
	DSN          string `envconfig:"DSN" required:"true"`
	DialTimeout  int    `split_words:"true" default:"5"`
	ReadTimeout  int    `split_words:"true" default:"60"`
	WriteTimeout int    `split_words:"true" default:"60"`
}

// New opens a bun.DB over pgdriver and verifies connectivity.
func (c *Config) New(ctx context.Context) (*bun.DB, error) {
	connector := pgdriver.NewConnector(
		pgdriver.WithDSN(c.DSN),
		pgdriver.WithDialTimeout(time.Duration(c.DialTimeout)*time.Second),
		pgdriver.WithReadTimeout(time.Duration(c.ReadTimeout)*time.Second),
		pgdriver.WithWriteTimeout(time.Duration(c.WriteTimeout)*time.Second),
	)
	sqldb := sql.OpenDB(connector)
	db := bun.NewDB(sqldb, pgdialect.New())

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
