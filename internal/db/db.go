package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/paulmach/orb/encoding/wkt"

	"transit-scorer/internal/network"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

func Ping(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return db.PingContext(ctx)
}

// LoadEdges reads the whole transit edge table. Geometry comes either from a
// PostGIS column "geometry" or from WKT text in "geometry_wkt"; NULL becomes
// an empty line.
func LoadEdges(ctx context.Context, db *sql.DB) ([]network.Edge, error) {
	cols, err := hasColumns(ctx, db, "public", "edges", "geometry", "geometry_wkt", "walking_duration")
	if err != nil {
		return nil, fmt.Errorf("introspect edges columns: %w", err)
	}
	geomExpr := "NULL::text"
	switch {
	case cols["geometry"]:
		geomExpr = "ST_AsText(geometry)"
	case cols["geometry_wkt"]:
		geomExpr = "geometry_wkt"
	}
	walkExpr := "0"
	if cols["walking_duration"] {
		walkExpr = "COALESCE(walking_duration, 0)"
	}
	q := `SELECT eid, src, dst,
                 COALESCE(src_name, ''), COALESCE(dst_name, ''),
                 way_id,
                 COALESCE(duration, 0), ` + walkExpr + `,
                 COALESCE(distance, 0), COALESCE(speed, 0),
                 ` + geomExpr + `
          FROM edges ORDER BY eid`
	rows, err := db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query edges: %w", err)
	}
	defer rows.Close()

	var edges []network.Edge
	for rows.Next() {
		var e network.Edge
		var g sql.NullString
		if err := rows.Scan(&e.ID, &e.Src, &e.Dst, &e.SrcName, &e.DstName, &e.WayID,
			&e.Duration, &e.WalkingDuration, &e.Dist, &e.Speed, &g); err != nil {
			return nil, err
		}
		if g.Valid && g.String != "" {
			ls, err := wkt.UnmarshalLineString(g.String)
			if err != nil {
				return nil, fmt.Errorf("edge %d geometry: %w", e.ID, err)
			}
			e.Geometry = ls
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// hasColumns returns a map of requested column names to existence for the given table.
func hasColumns(ctx context.Context, db *sql.DB, schema, table string, cols ...string) (map[string]bool, error) {
	res := make(map[string]bool, len(cols))
	if len(cols) == 0 {
		return res, nil
	}
	q := `SELECT column_name FROM information_schema.columns
          WHERE table_schema = $1 AND table_name = $2 AND column_name = ANY($3)`
	rows, err := db.QueryContext(ctx, q, schema, table, cols)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		res[name] = true
	}
	return res, rows.Err()
}
