package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// WithDBName swaps the database of a postgres DSN. A DSN without scheme is
// treated as postgres://.
func WithDBName(dsn, database string) (string, error) {
	if dsn == "" {
		return "", errors.New("empty DSN")
	}
	if !strings.Contains(dsn, "://") {
		dsn = "postgres://" + dsn
	}
	u, err := url.Parse(dsn)
	if err != nil {
		return "", err
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return "", fmt.Errorf("unsupported DSN scheme %q", u.Scheme)
	}
	u.Path = "/" + strings.TrimPrefix(database, "/")
	return u.String(), nil
}

// ResolveLatestNetworkDB returns the newest network import database for a
// city from public.latest_successful_imports on the cluster's meta database.
func ResolveLatestNetworkDB(ctx context.Context, meta *sql.DB, city string) (string, error) {
	city = strings.TrimSpace(city)
	if city == "" {
		return "", errors.New("city is required")
	}
	q := `
SELECT db_name
FROM public.latest_successful_imports
WHERE db_name ILIKE '%' || $1 || '%'
ORDER BY imported_at DESC
LIMIT 1`
	var name sql.NullString
	if err := meta.QueryRowContext(ctx, q, city).Scan(&name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("no network database for city like %q", city)
		}
		return "", err
	}
	if !name.Valid || name.String == "" {
		return "", fmt.Errorf("empty db_name for city like %q", city)
	}
	return name.String, nil
}

// ResolveCity looks up the city's latest network database on a short-lived
// connection to the meta database behind baseDSN.
func ResolveCity(ctx context.Context, baseDSN, city string) (string, error) {
	if strings.TrimSpace(city) == "" {
		return "", errors.New("city is required")
	}
	rootDSN, err := WithDBName(baseDSN, "postgres")
	if err != nil {
		return "", fmt.Errorf("invalid base DSN: %w", err)
	}
	meta, err := Open(rootDSN)
	if err != nil {
		return "", fmt.Errorf("open meta db: %w", err)
	}
	defer meta.Close()
	if err := Ping(ctx, meta); err != nil {
		return "", fmt.Errorf("ping meta db: %w", err)
	}
	return ResolveLatestNetworkDB(ctx, meta, city)
}

// OpenCity resolves the city's latest network database and returns a pinged
// handle to it with its name.
func OpenCity(ctx context.Context, baseDSN, city string) (*sql.DB, string, error) {
	name, err := ResolveCity(ctx, baseDSN, city)
	if err != nil {
		return nil, "", err
	}
	cityDB, err := OpenNamed(ctx, baseDSN, name)
	if err != nil {
		return nil, "", err
	}
	return cityDB, name, nil
}

// OpenNamed opens and pings database name on the cluster behind baseDSN.
func OpenNamed(ctx context.Context, baseDSN, name string) (*sql.DB, error) {
	dsn, err := WithDBName(baseDSN, name)
	if err != nil {
		return nil, err
	}
	conn, err := Open(dsn)
	if err != nil {
		return nil, fmt.Errorf("open db %q: %w", name, err)
	}
	if err := Ping(ctx, conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping db %q: %w", name, err)
	}
	return conn, nil
}
