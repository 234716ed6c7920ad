package lims

import (
	"context"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

type PostgresConnector struct {
	baseConnector
}

func newPostgresConnector(cfg ConnectionConfig) (*PostgresConnector, error) {
	if cfg.Port == 0 {
		cfg.Port = 5432
	}
	sslMode := strings.ToLower(strings.TrimSpace(cfg.SSLMode))
	if sslMode == "" {
		sslMode = "disable"
	}
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, sslMode)
	db, err := openDatabase("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}
	return &PostgresConnector{baseConnector{cfg: cfg, db: db}}, nil
}

func (c *PostgresConnector) TestConnection(ctx context.Context) error {
	if err := c.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

func (c *PostgresConnector) FetchResults(ctx context.Context, since time.Time) ([]LabResult, error) {
	return c.fetchSince(ctx, "$1", since)
}
