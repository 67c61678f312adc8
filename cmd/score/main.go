package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"time"

	"transit-scorer/internal/db"
	"transit-scorer/internal/network"
	"transit-scorer/internal/pipeline"
	"transit-scorer/internal/segment"
	"transit-scorer/internal/temporal"
	"transit-scorer/internal/traj"
)

func main() {
	edgesPath := flag.String("edges", "", "GeoJSON file with the transit edge table")
	dsn := flag.String("db", "", "Postgres DSN to load the edge table from (instead of -edges)")
	city := flag.String("city", "", "Resolve the city's latest network database on the -db cluster")
	matchPath := flag.String("match", "", "JSON file with the map-matching result (id, status, epath, step_0, step_n, probs)")
	trajPath := flag.String("traj", "", "CSV file with the cleaned trajectory (dt plus geometry or lon/lat)")
	eps := flag.Float64("eps", segment.DefaultTrimEps, "Drop an end edge covered by less than this share")
	factor := flag.Float64("factor", temporal.DefaultFactor, "Temporal kernel width factor")
	bias := flag.Float64("bias", temporal.DefaultBias, "Seconds added to the temporal kernel width")
	miss := flag.String("miss", "zero", "Missing first-station wait time: zero or error")
	strict := flag.Bool("strict", true, "Reject paths whose consecutive edges do not connect")
	multi := flag.Bool("multi", false, "Emit every ride geometry as a MultiLineString")
	flag.Parse()

	if *matchPath == "" || *trajPath == "" || (*edgesPath == "" && *dsn == "") {
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	edges, err := loadEdges(ctx, *edgesPath, *dsn, *city)
	if err != nil {
		log.Fatalf("load edges: %v", err)
	}

	b, err := os.ReadFile(*matchPath)
	if err != nil {
		log.Fatalf("read match: %v", err)
	}
	var m pipeline.Match
	if err := json.Unmarshal(b, &m); err != nil {
		log.Fatalf("decode match: %v", err)
	}
	tr, err := traj.ReadCSVFile(*trajPath, m.ID)
	if err != nil {
		log.Fatalf("read trajectory: %v", err)
	}

	policy, err := temporal.ParseMissPolicy(*miss)
	if err != nil {
		log.Fatalf("invalid -miss: %v", err)
	}
	opts := pipeline.DefaultOptions()
	opts.TrimEps = *eps
	opts.StrictContiguity = *strict
	opts.MultiLine = *multi
	opts.Scorer = temporal.Scorer{Factor: *factor, Bias: *bias, Miss: policy}

	res, runErr := pipeline.New(opts).Run(pipeline.NewNetwork(edges), m, tr)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		log.Fatalf("encode result: %v", err)
	}
	if runErr != nil {
		log.Printf("trajectory %s: %v", m.ID, runErr)
		os.Exit(1)
	}
}

func loadEdges(ctx context.Context, path, dsn, city string) ([]network.Edge, error) {
	if path != "" {
		return network.LoadGeoJSON(path)
	}
	if city != "" {
		conn, name, err := db.OpenCity(ctx, dsn, city)
		if err != nil {
			return nil, err
		}
		defer conn.Close()
		log.Printf("Using database %q for city %q", name, city)
		return db.LoadEdges(ctx, conn)
	}
	conn, err := db.Open(dsn)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	if err := db.Ping(ctx, conn); err != nil {
		return nil, err
	}
	return db.LoadEdges(ctx, conn)
}
