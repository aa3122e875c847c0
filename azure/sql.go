package azure

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"

	"github.com/microsoft/go-mssqldb/azuread"

	_ "github.com/microsoft/go-mssqldb" // sqlserver driver
)

// ErrNoSQLCredentials is returned when a user/password connection is
// requested without credentials.
var ErrNoSQLCredentials = errors.New("azure: no SQL username/password configured")

// SQLDatabase runs queries against one Azure SQL database.
type SQLDatabase struct {
	db *sql.DB
}

// NewSQLDatabase wraps an existing database handle.
func NewSQLDatabase(db *sql.DB) *SQLDatabase {
	return &SQLDatabase{db: db}
}

// sqlServerURL builds a sqlserver:// connection URL for the given server
// short name (without the .database.windows.net suffix) and database.
func sqlServerURL(server, database string, user *url.Userinfo, extra url.Values) string {
	query := url.Values{}
	query.Set("database", database)
	query.Set("encrypt", "true")
	query.Set("TrustServerCertificate", "false")
	for k, vs := range extra {
		for _, v := range vs {
			query.Add(k, v)
		}
	}

	u := &url.URL{
		Scheme:   "sqlserver",
		User:     user,
		Host:     fmt.Sprintf("%s.database.windows.net:1433", server),
		RawQuery: query.Encode(),
	}
	return u.String()
}

// OpenSQLDatabase connects with SQL authentication and verifies the
// connection with a ping.
func OpenSQLDatabase(ctx context.Context, server, database, username, password string) (*SQLDatabase, error) {
	if username == "" || password == "" {
		return nil, ErrNoSQLCredentials
	}

	connString := sqlServerURL(server, database, url.UserPassword(username, password), nil)
	db, err := sql.Open("sqlserver", connString)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	return &SQLDatabase{db: db}, nil
}

// OpenSQLDatabaseWithAzureAD connects with Azure AD federated
// authentication: the CLI identity for local runs, the default credential
// chain otherwise.
func OpenSQLDatabaseWithAzureAD(ctx context.Context, server, database string, localRun bool) (*SQLDatabase, error) {
	fedauth := azuread.ActiveDirectoryDefault
	if localRun {
		fedauth = azuread.ActiveDirectoryAzCli
	}

	extra := url.Values{}
	extra.Set("fedauth", fedauth)
	connString := sqlServerURL(server, database, nil, extra)

	db, err := sql.Open(azuread.DriverName, connString)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	return &SQLDatabase{db: db}, nil
}

// Query runs a statement that returns rows and materializes them as one
// map per row, keyed by column name.
func (d *SQLDatabase) Query(ctx context.Context, query string, args ...any) ([]map[string]any, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("running query: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading columns: %w", err)
	}

	results := make([]map[string]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		pointers := make([]any, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}

		row := make(map[string]any, len(columns))
		for i, column := range columns {
			row[column] = values[i]
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading rows: %w", err)
	}
	return results, nil
}

// Exec runs a statement with no result rows (DDL, INSERT, DELETE, GRANT).
func (d *SQLDatabase) Exec(ctx context.Context, query string, args ...any) error {
	if _, err := d.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("executing statement: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (d *SQLDatabase) Close() error {
	return d.db.Close()
}
