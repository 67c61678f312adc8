package metrics

import (
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	reg *prometheus.Registry

	Requests   prometheus.Counter
	Scored     prometheus.Counter
	Failures   *prometheus.CounterVec // reason label: invalid|canceled|match_failed|unknown_edge|invalid_path|wait_lookup|other
	CacheHits  prometheus.Counter
	InFlight   prometheus.Gauge
	WaitMisses prometheus.Counter
	Impossible prometheus.Counter // actual duration below the feasible floor
	Inverted   prometheus.Counter // min duration above avg duration

	ScoreDuration prometheus.Histogram
	TemporalProb  prometheus.Histogram
	SpatialProb   prometheus.Histogram

	NATSPublished   prometheus.Counter
	NATSPublishErrs prometheus.Counter
	NATSConnected   prometheus.Gauge

	NetworkReloads *prometheus.CounterVec // reason label: update|ping_failure
	NetworkEdges   prometheus.Gauge

	Workers prometheus.Gauge
}

func NewCollector(workers int) *Collector {
	reg := prometheus.NewRegistry()
	probBuckets := prometheus.LinearBuckets(0, 0.1, 11)

	c := &Collector{
		reg: reg,
		Requests: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scorer_requests_total",
			Help: "Total scoring requests received.",
		}),
		Scored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scorer_scored_total",
			Help: "Total trajectories scored successfully.",
		}),
		Failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scorer_failures_total",
			Help: "Scoring requests that did not produce a score, by reason.",
		}, []string{"reason"}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scorer_cache_hits_total",
			Help: "Requests answered from the result cache.",
		}),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scorer_in_flight",
			Help: "Requests currently being scored.",
		}),
		WaitMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scorer_wait_time_misses_total",
			Help: "Scores computed without a first-station wait time for the first line.",
		}),
		Impossible: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scorer_impossible_durations_total",
			Help: "Trajectories faster than the minimum feasible duration.",
		}),
		Inverted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scorer_inverted_bounds_total",
			Help: "Scores where the minimum duration exceeded the average duration.",
		}),
		ScoreDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "scorer_score_duration_seconds",
			Help:    "Duration of one scoring pass.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 15),
		}),
		TemporalProb: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "scorer_temporal_probability",
			Help:    "Distribution of temporal plausibility scores.",
			Buckets: probBuckets,
		}),
		SpatialProb: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "scorer_spatial_probability",
			Help:    "Distribution of the share of points near the matched route.",
			Buckets: probBuckets,
		}),
		NATSPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scorer_nats_published_total",
			Help: "Total NATS messages published.",
		}),
		NATSPublishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scorer_nats_publish_errors_total",
			Help: "Total NATS publish errors.",
		}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scorer_nats_connected",
			Help: "1 if NATS connection is established, 0 otherwise.",
		}),
		NetworkReloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scorer_network_reloads_total",
			Help: "Number of network snapshot reloads.",
		}, []string{"reason"}),
		NetworkEdges: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scorer_network_edges",
			Help: "Edges in the loaded network snapshot.",
		}),
		Workers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scorer_workers",
			Help: "Configured scoring workers.",
		}),
	}

	reg.MustRegister(
		c.Requests, c.Scored, c.Failures, c.CacheHits, c.InFlight,
		c.WaitMisses, c.Impossible, c.Inverted,
		c.ScoreDuration, c.TemporalProb, c.SpatialProb,
		c.NATSPublished, c.NATSPublishErrs, c.NATSConnected,
		c.NetworkReloads, c.NetworkEdges, c.Workers,
	)

	c.Workers.Set(float64(workers))

	return c
}

func (c *Collector) Registry() *prometheus.Registry { return c.reg }

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// Serve starts an HTTP server exposing /metrics on the given address.
func (c *Collector) Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server error: %v", err)
		}
	}()
	log.Printf("metrics listening on %s", addr)
	return srv
}
