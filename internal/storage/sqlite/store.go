package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tjfontaine/polyglot-dispatch/internal/storage"
)

// Store is a SQLite implementation of storage.RouteStore.
type Store struct {
	db *sql.DB
}

var _ storage.RouteStore = (*Store)(nil)

// New opens (and if needed creates) the route database at dbPath.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS routes (
			id TEXT PRIMARY KEY,
			method TEXT NOT NULL,
			path TEXT NOT NULL,
			prefix INTEGER NOT NULL DEFAULT 0,
			endpoint TEXT NOT NULL,
			kind TEXT NOT NULL,
			target TEXT,
			status INTEGER NOT NULL DEFAULT 0,
			body TEXT,
			headers TEXT,
			block_private INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_routes_path ON routes(path)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}

const routeColumns = `id, method, path, prefix, endpoint, kind, target, status, body, headers, block_private, created_at, updated_at`

func (s *Store) PutRoute(ctx context.Context, route *storage.Route) error {
	if err := route.Validate(); err != nil {
		return err
	}
	if route.Method == "" {
		route.Method = storage.AnyMethod
	}
	route.Method = strings.ToUpper(route.Method)

	now := time.Now()
	if route.CreatedAt.IsZero() {
		route.CreatedAt = now
	}
	route.UpdatedAt = now

	headers, err := json.Marshal(route.Headers)
	if err != nil {
		return fmt.Errorf("failed to marshal headers: %w", err)
	}

	query := `INSERT INTO routes (` + routeColumns + `)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	          ON CONFLICT(id) DO UPDATE SET
	            method = excluded.method,
	            path = excluded.path,
	            prefix = excluded.prefix,
	            endpoint = excluded.endpoint,
	            kind = excluded.kind,
	            target = excluded.target,
	            status = excluded.status,
	            body = excluded.body,
	            headers = excluded.headers,
	            block_private = excluded.block_private,
	            updated_at = excluded.updated_at`

	_, err = s.db.ExecContext(ctx, query,
		route.ID, route.Method, route.Path, boolToInt(route.Prefix), route.Endpoint, route.Kind,
		route.Target, route.Status, route.Body, string(headers), boolToInt(route.BlockPrivate),
		route.CreatedAt, route.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to put route: %w", err)
	}
	return nil
}

// LookupRoute selects the best match in SQL with the same precedence as
// storage.Match.
func (s *Store) LookupRoute(ctx context.Context, method, path string) (*storage.Route, error) {
	query := `SELECT ` + routeColumns + ` FROM routes
	          WHERE (method = ? OR method = '*')
	            AND ((prefix = 0 AND path = ?) OR (prefix = 1 AND substr(?, 1, length(path)) = path))
	          ORDER BY prefix ASC, length(path) DESC, CASE WHEN method = '*' THEN 1 ELSE 0 END
	          LIMIT 1`

	route, err := scanRoute(s.db.QueryRowContext(ctx, query, strings.ToUpper(method), path, path))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lookup route: %w", err)
	}
	return route, nil
}

func (s *Store) ListRoutes(ctx context.Context) ([]*storage.Route, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+routeColumns+` FROM routes ORDER BY path, method`)
	if err != nil {
		return nil, fmt.Errorf("failed to list routes: %w", err)
	}
	defer rows.Close()

	var routes []*storage.Route
	for rows.Next() {
		route, err := scanRoute(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan route: %w", err)
		}
		routes = append(routes, route)
	}
	return routes, rows.Err()
}

func (s *Store) DeleteRoute(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM routes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete route: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete route: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRoute(row scanner) (*storage.Route, error) {
	var (
		route        storage.Route
		prefix       int
		blockPrivate int
		target       sql.NullString
		body         sql.NullString
		headers      sql.NullString
	)
	err := row.Scan(&route.ID, &route.Method, &route.Path, &prefix, &route.Endpoint, &route.Kind,
		&target, &route.Status, &body, &headers, &blockPrivate, &route.CreatedAt, &route.UpdatedAt)
	if err != nil {
		return nil, err
	}

	route.Prefix = prefix != 0
	route.BlockPrivate = blockPrivate != 0
	route.Target = target.String
	route.Body = body.String
	if headers.Valid && headers.String != "" && headers.String != "null" {
		if err := json.Unmarshal([]byte(headers.String), &route.Headers); err != nil {
			return nil, fmt.Errorf("failed to unmarshal headers: %w", err)
		}
	}
	return &route, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
