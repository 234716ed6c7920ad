package lims

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "github.com/microsoft/go-mssqldb"
)

type MSSQLConnector struct {
	baseConnector
}

func newMSSQLConnector(cfg ConnectionConfig) (*MSSQLConnector, error) {
	if cfg.Port == 0 {
		cfg.Port = 1433
	}
	user := url.QueryEscape(cfg.User)
	pass := url.QueryEscape(cfg.Password)
	sslMode := strings.ToLower(strings.TrimSpace(cfg.SSLMode))
	encrypt := "true"
	if sslMode == "disable" {
		encrypt = "disable"
	}
	dsn := fmt.Sprintf("sqlserver://%s:%s@%s:%d?database=%s&encrypt=%s",
		user, pass, cfg.Host, cfg.Port, cfg.Database, encrypt)
	db, err := openDatabase("sqlserver", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mssql connection: %w", err)
	}
	return &MSSQLConnector{baseConnector{cfg: cfg, db: db}}, nil
}

func (c *MSSQLConnector) TestConnection(ctx context.Context) error {
	if err := c.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping mssql: %w", err)
	}
	return nil
}

func (c *MSSQLConnector) FetchResults(ctx context.Context, since time.Time) ([]LabResult, error) {
	return c.fetchSince(ctx, "@p1", since)
}
