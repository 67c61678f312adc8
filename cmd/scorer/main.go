package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"transit-scorer/internal/config"
	"transit-scorer/internal/db"
	"transit-scorer/internal/metrics"
	"transit-scorer/internal/network"
	"transit-scorer/internal/pipeline"
	"transit-scorer/internal/service"
	"transit-scorer/internal/temporal"
	"transit-scorer/internal/transport"
)

func main() {
	// Load configuration from .env and environment
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	// Root context with cancellation on SIGINT/SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Metrics setup
	var mcol *metrics.Collector
	var metricsSrvCancel context.CancelFunc
	if cfg.MetricsAddr != "" {
		mcol = metrics.NewCollector(cfg.Workers)
		mctx, mcancel := context.WithCancel(ctx)
		metricsSrvCancel = mcancel
		srv := mcol.Serve(cfg.MetricsAddr)
		go func() {
			<-mctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	// Load the edge table
	var sqlDB *sql.DB
	var currentDBName string
	var net *pipeline.Network
	switch {
	case cfg.EdgesGeoJSON != "":
		edges, err := network.LoadGeoJSON(cfg.EdgesGeoJSON)
		if err != nil {
			log.Fatalf("load edges: %v", err)
		}
		net = pipeline.NewNetwork(edges)
		log.Printf("loaded %d edges from %s", net.Edges.Len(), cfg.EdgesGeoJSON)
	case cfg.City != "":
		sqlDB, currentDBName, err = db.OpenCity(ctx, cfg.DatabaseURL, cfg.City)
		if err != nil {
			log.Fatalf("open network db for city %q: %v", cfg.City, err)
		}
		log.Printf("Using database %q for city %q", currentDBName, cfg.City)
	default:
		sqlDB, err = db.Open(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("db open error: %v", err)
		}
		if err := db.Ping(ctx, sqlDB); err != nil {
			log.Fatalf("db ping error: %v", err)
		}
	}
	if sqlDB != nil {
		net, err = loadNetwork(ctx, sqlDB)
		if err != nil {
			log.Fatalf("load edges: %v", err)
		}
		log.Printf("loaded %d edges from database", net.Edges.Len())
	}

	// Initialize NATS transport
	tr, err := transport.Connect(cfg.NATSURL, cfg.ResultPrefix, cfg.LogNATSSubjects, wrapTransportMetrics(mcol))
	if err != nil {
		log.Fatalf("nats error: %v", err)
	}
	defer tr.Close()

	svc := service.New(pipeline.New(pipelineOptions(cfg)), tr, cfg.Workers, cfg.ResultCacheTTL, mcol)
	svc.SetNetwork(net)
	if err := tr.Subscribe(cfg.RequestSubject, cfg.QueueGroup, func(data []byte, reply string) {
		svc.Handle(ctx, data, reply)
	}); err != nil {
		log.Fatalf("nats subscribe error: %v", err)
	}

	// Periodic city DB watcher: reload the network when a newer import lands
	var done chan struct{}
	if cfg.City != "" && sqlDB != nil && cfg.NetworkRefresh > 0 {
		done = make(chan struct{})
		go func() {
			defer close(done)
			ticker := time.NewTicker(cfg.NetworkRefresh)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
				}

				// 1) Ping current DB; if it fails, force re-resolve
				needSwitch := false
				if err := db.Ping(ctx, sqlDB); err != nil {
					log.Printf("db ping failed: %v, re-resolving city DB", err)
					if mcol != nil {
						mcol.NetworkReloads.WithLabelValues("ping_failure").Inc()
					}
					needSwitch = true
				}

				// 2) Always re-resolve latest import, compare db_name
				newName, err := db.ResolveCity(ctx, cfg.DatabaseURL, cfg.City)
				if err != nil {
					log.Printf("resolve latest import error: %v", err)
					continue
				}
				if newName != currentDBName {
					log.Printf("Detected updated DB for city %q: %q -> %q", cfg.City, currentDBName, newName)
					if mcol != nil {
						mcol.NetworkReloads.WithLabelValues("update").Inc()
					}
					needSwitch = true
				}
				if !needSwitch {
					continue
				}

				newDB, err := db.OpenNamed(ctx, cfg.DatabaseURL, newName)
				if err != nil {
					log.Printf("open new DB error: %v", err)
					continue
				}
				newNet, err := loadNetwork(ctx, newDB)
				if err != nil {
					log.Printf("load edges from %q: %v", newName, err)
					newDB.Close()
					continue
				}

				// In-flight passes keep the snapshot they started with
				svc.SetNetwork(newNet)
				sqlDB.Close()
				sqlDB = newDB
				currentDBName = newName
				log.Printf("Switched to DB %q for city %q (%d edges)", currentDBName, cfg.City, newNet.Edges.Len())
			}
		}()
	}

	// Block until context cancelled
	<-ctx.Done()
	svc.Stop()
	if done != nil {
		<-done
	}
	if sqlDB != nil {
		sqlDB.Close()
	}
	if metricsSrvCancel != nil {
		metricsSrvCancel()
	}
	log.Println("shutdown complete")
}

func loadNetwork(ctx context.Context, sqlDB *sql.DB) (*pipeline.Network, error) {
	edges, err := db.LoadEdges(ctx, sqlDB)
	if err != nil {
		return nil, err
	}
	if len(edges) == 0 {
		return nil, fmt.Errorf("edges table is empty")
	}
	return pipeline.NewNetwork(edges), nil
}

func pipelineOptions(cfg *config.Config) pipeline.Options {
	opts := pipeline.DefaultOptions()
	opts.TrimEps = cfg.TrimEps
	opts.SpatialThreshold = cfg.SpatialThreshold
	opts.StrictContiguity = cfg.StrictContiguity
	opts.Scorer = temporal.Scorer{Factor: cfg.TemporalFactor, Bias: cfg.TemporalBias, Miss: cfg.WaitMissPolicy}
	return opts
}

// wrapTransportMetrics adapts our Collector to the transport.Metrics interface.
func wrapTransportMetrics(c *metrics.Collector) transport.Metrics {
	if c == nil {
		return nil
	}
	return &natsMetrics{c: c}
}

type natsMetrics struct{ c *metrics.Collector }

func (p *natsMetrics) NATSPublishedInc()  { p.c.NATSPublished.Inc() }
func (p *natsMetrics) NATSPublishErrInc() { p.c.NATSPublishErrs.Inc() }
func (p *natsMetrics) NATSSetConnected(b bool) {
	if b {
		p.c.NATSConnected.Set(1)
	} else {
		p.c.NATSConnected.Set(0)
	}
}
