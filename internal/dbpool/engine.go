package dbpool

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgxpool"
)

// QueryResult is the shaped outcome of one statement.
type QueryResult struct {
	Rows            []map[string]interface{} `json:"rows"`
	RowCount        int                      `json:"rowCount"`
	Columns         []string                 `json:"columns"`
	ExecutionTimeMs int64                    `json:"executionTime"`
	HasMoreRows     bool                     `json:"hasMoreRows"`
}

// enginePool abstracts over the native pool of each supported engine.
type enginePool interface {
	// Version runs the engine's version query, validating the connection.
	Version(ctx context.Context) (string, error)
	// Query executes a statement and returns rows truncated to maxRows,
	// with the true total in RowCount.
	Query(ctx context.Context, sqlText string, maxRows int) (*QueryResult, error)
	// Close releases the pool.
	Close()
}

// rowCollector accumulates scanned rows, keeping only the first maxRows
// while counting everything.
type rowCollector struct {
	columns []string
	maxRows int
	rows    []map[string]interface{}
	total   int
}

func newRowCollector(columns []string, maxRows int) *rowCollector {
	return &rowCollector{columns: columns, maxRows: maxRows}
}

func (c *rowCollector) add(values []interface{}) {
	c.total++
	if len(c.rows) >= c.maxRows {
		return
	}

	row := make(map[string]interface{}, len(c.columns))
	for i, col := range c.columns {
		if i < len(values) {
			row[col] = normalizeValue(values[i])
		}
	}
	c.rows = append(c.rows, row)
}

func (c *rowCollector) result() *QueryResult {
	rows := c.rows
	if rows == nil {
		rows = []map[string]interface{}{}
	}
	return &QueryResult{
		Rows:        rows,
		RowCount:    c.total,
		Columns:     c.columns,
		HasMoreRows: c.total > c.maxRows,
	}
}

// normalizeValue makes driver values JSON-friendly.
func normalizeValue(v interface{}) interface{} {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

// postgresPool wraps a pgxpool.Pool.
type postgresPool struct {
	pool *pgxpool.Pool
}

func newPostgresPool(ctx context.Context, cfg Config, password string) (enginePool, error) {
	sslmode := "disable"
	if cfg.SSL {
		sslmode = "require"
	}
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(cfg.Username), url.QueryEscape(password),
		cfg.Host, cfg.Port, url.PathEscape(cfg.Database), sslmode)

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	poolCfg.MaxConns = 10

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, err
	}
	return &postgresPool{pool: pool}, nil
}

func (p *postgresPool) Version(ctx context.Context) (string, error) {
	var version string
	if err := p.pool.QueryRow(ctx, "SELECT version()").Scan(&version); err != nil {
		return "", err
	}
	return version, nil
}

func (p *postgresPool) Query(ctx context.Context, sqlText string, maxRows int) (*QueryResult, error) {
	rows, err := p.pool.Query(ctx, sqlText)
	if err != nil {
		return nil, err
	}
	// Close returns the connection to the pool on every path.
	defer rows.Close()

	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, f := range fields {
		columns[i] = f.Name
	}

	collector := newRowCollector(columns, maxRows)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		collector.add(values)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return collector.result(), nil
}

func (p *postgresPool) Close() {
	p.pool.Close()
}

// mysqlPool wraps a database/sql pool using the mysql driver.
type mysqlPool struct {
	db *sql.DB
}

func newMySQLPool(cfg Config, password string) (enginePool, error) {
	tls := "false"
	if cfg.SSL {
		tls = "skip-verify"
	}
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&tls=%s",
		cfg.Username, password, cfg.Host, cfg.Port, cfg.Database, tls)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	return &mysqlPool{db: db}, nil
}

func (p *mysqlPool) Version(ctx context.Context) (string, error) {
	var version string
	if err := p.db.QueryRowContext(ctx, "SELECT VERSION()").Scan(&version); err != nil {
		return "", err
	}
	return version, nil
}

func (p *mysqlPool) Query(ctx context.Context, sqlText string, maxRows int) (*QueryResult, error) {
	rows, err := p.db.QueryContext(ctx, sqlText)
	if err != nil {
		return nil, err
	}
	// Close releases the underlying connection on every path.
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	collector := newRowCollector(columns, maxRows)
	values := make([]interface{}, len(columns))
	ptrs := make([]interface{}, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		collector.add(values)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return collector.result(), nil
}

func (p *mysqlPool) Close() {
	p.db.Close()
}
