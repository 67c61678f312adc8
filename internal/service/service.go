// Package service scores requests arriving over the transport on a bounded
// worker pool and publishes one result per request.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	cache "github.com/patrickmn/go-cache"

	mmetrics "transit-scorer/internal/metrics"
	"transit-scorer/internal/network"
	"transit-scorer/internal/pipeline"
	"transit-scorer/internal/segment"
	"transit-scorer/internal/temporal"
)

var ErrNoNetwork = errors.New("network not loaded")

type Publisher interface {
	PublishResult(id string, payload []byte, reply string) error
}

// Response is the published form of a scoring pass. Error is set when the
// pass stopped early; Result then holds whatever was computed.
type Response struct {
	pipeline.Result
	Error string `json:"error,omitempty"`
}

type Service struct {
	pipe    *pipeline.Pipeline
	pub     Publisher
	metrics *mmetrics.Collector
	results *cache.Cache // request id -> Response
	net     atomic.Pointer[pipeline.Network]
	sem     chan struct{}

	mu      sync.Mutex
	running map[string]struct{} // request ids being scored
	stopped bool
	wg      sync.WaitGroup
}

func New(pipe *pipeline.Pipeline, pub Publisher, workers int, resultTTL time.Duration, metrics *mmetrics.Collector) *Service {
	if workers <= 0 {
		workers = 1
	}
	return &Service{
		pipe:    pipe,
		pub:     pub,
		metrics: metrics,
		results: cache.New(resultTTL, 2*resultTTL),
		sem:     make(chan struct{}, workers),
		running: make(map[string]struct{}),
	}
}

// SetNetwork swaps the network snapshot used by new passes. Cached results
// computed on the previous snapshot are dropped.
func (s *Service) SetNetwork(n *pipeline.Network) {
	s.net.Store(n)
	s.results.Flush()
	if s.metrics != nil && n != nil {
		s.metrics.NetworkEdges.Set(float64(n.Edges.Len()))
	}
}

func (s *Service) Network() *pipeline.Network { return s.net.Load() }

// Handle decodes one raw request and scores it asynchronously. Requests
// without an id get a random one. A request whose id is already being scored
// is dropped.
func (s *Service) Handle(ctx context.Context, data []byte, reply string) {
	if s.metrics != nil {
		s.metrics.Requests.Inc()
	}
	req, err := DecodeRequest(data)
	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	if err != nil {
		log.Printf("request %s rejected: %v", req.ID, err)
		s.fail("invalid")
		s.publish(Response{Result: pipeline.Result{ID: req.ID, Status: req.Status}, Error: err.Error()}, reply)
		return
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		log.Printf("request %s dropped: service stopped", req.ID)
		return
	}
	if _, dup := s.running[req.ID]; dup {
		s.mu.Unlock()
		log.Printf("request %s already in flight", req.ID)
		return
	}
	s.running[req.ID] = struct{}{}
	s.wg.Add(1)
	if s.metrics != nil {
		s.metrics.InFlight.Set(float64(len(s.running)))
	}
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.running, req.ID)
			if s.metrics != nil {
				s.metrics.InFlight.Set(float64(len(s.running)))
			}
			s.mu.Unlock()
		}()
		select {
		case s.sem <- struct{}{}:
		case <-ctx.Done():
			log.Printf("request %s not scored: %v", req.ID, ctx.Err())
			s.fail("canceled")
			s.publish(Response{Result: pipeline.Result{ID: req.ID, Status: req.Status}, Error: ctx.Err().Error()}, reply)
			return
		}
		resp := s.Score(req)
		<-s.sem
		s.publish(resp, reply)
	}()
}

// Score runs one pass synchronously. Results are memoized by request id so a
// redelivered request is answered without rescoring.
func (s *Service) Score(req Request) Response {
	if req.ID != "" {
		if v, ok := s.results.Get(req.ID); ok {
			if s.metrics != nil {
				s.metrics.CacheHits.Inc()
			}
			return v.(Response)
		}
	}
	net := s.net.Load()
	if net == nil {
		s.fail("other")
		return Response{Result: pipeline.Result{ID: req.ID, Status: req.Status}, Error: ErrNoNetwork.Error()}
	}

	start := time.Now()
	res, err := s.pipe.Run(net, req.Match(), req.Trajectory())
	resp := Response{Result: res}
	if err != nil {
		resp.Error = err.Error()
		log.Printf("trajectory %s: %v", req.ID, err)
		s.fail(failureReason(err))
	} else {
		if res.Temporal.Inverted {
			log.Printf("trajectory %s: min duration %.0fs above avg %.0fs", req.ID, res.Temporal.Min, res.Temporal.Avg)
		}
		s.record(res, time.Since(start))
	}
	if req.ID != "" {
		s.results.SetDefault(req.ID, resp)
	}
	return resp
}

// Stop rejects new requests and waits until every accepted one has published
// a response. Requests whose context ended before a worker was free publish
// the context error.
func (s *Service) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Service) publish(resp Response, reply string) {
	if s.pub == nil {
		return
	}
	b, err := json.Marshal(resp)
	if err != nil {
		log.Printf("encode result %s: %v", resp.ID, err)
		return
	}
	if err := s.pub.PublishResult(resp.ID, b, reply); err != nil {
		log.Printf("publish result %s: %v", resp.ID, err)
	}
}

func (s *Service) record(res pipeline.Result, took time.Duration) {
	if s.metrics == nil {
		return
	}
	m := s.metrics
	m.Scored.Inc()
	m.ScoreDuration.Observe(took.Seconds())
	m.TemporalProb.Observe(res.Probs[pipeline.ProbTemporal])
	m.SpatialProb.Observe(res.Probs[pipeline.ProbCellDistance])
	if res.Temporal.WaitTimeMissing {
		m.WaitMisses.Inc()
	}
	if len(segment.Rides(res.Path)) > 0 && res.Temporal.Min > res.Temporal.Actual {
		m.Impossible.Inc()
	}
	if res.Temporal.Inverted {
		m.Inverted.Inc()
	}
}

func (s *Service) fail(reason string) {
	if s.metrics != nil {
		s.metrics.Failures.WithLabelValues(reason).Inc()
	}
}

func failureReason(err error) string {
	var ue *network.UnknownEdgeError
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return "invalid"
	case errors.Is(err, pipeline.ErrMatchFailed):
		return "match_failed"
	case errors.As(err, &ue):
		return "unknown_edge"
	case errors.Is(err, segment.ErrInvalidPath):
		return "invalid_path"
	case errors.Is(err, temporal.ErrNoWaitTime):
		return "wait_lookup"
	}
	return "other"
}
