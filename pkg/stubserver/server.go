// Package stubserver serves contracts and stubs over HTTP.
//
// Requests are answered by the most recently added stub that accepts them,
// then by the first contract whose scenarios accept them. Callers can set
// facts for the next request with POST /_specmatic/state and add stubs at
// runtime with POST /_specmatic/expectations.
package stubserver

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/EmmanuelMendoza/specmatic"
	"github.com/EmmanuelMendoza/specmatic/pkg/stubfile"
	"github.com/EmmanuelMendoza/specmatic/value"
)

// Paths of the control endpoints.
const (
	StatePath        = "/_specmatic/state"
	ExpectationsPath = "/_specmatic/expectations"
	MetricsPath      = "/metrics"
)

// Config configures a Server.
type Config struct {
	// Strict answers 400 when no stub matches instead of falling back to the
	// contracts.
	Strict bool

	Logger specmatic.Logger
	// Registry receives the server's metrics (default: a private registry).
	Registry *prometheus.Registry
}

// Server answers HTTP requests from contracts and stubs.
type Server struct {
	features []*specmatic.Feature
	strict   bool
	log      specmatic.Logger
	metrics  *metrics
	engine   *gin.Engine

	mu    sync.Mutex
	stubs []*specmatic.StubData
	state specmatic.ServerState
}

// New returns a server over features. The gin mode is left to the caller.
func New(features []*specmatic.Feature, cfg Config) *Server {
	log := cfg.Logger
	if log == nil {
		log = specmatic.NopLogger()
	}
	reg := cfg.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	s := &Server{
		features: features,
		strict:   cfg.Strict,
		log:      log.With(map[string]any{"component": "stubserver"}),
		metrics:  newMetrics(reg),
	}

	engine := gin.New()
	engine.RedirectTrailingSlash = false
	engine.Use(gin.Recovery())
	engine.POST(StatePath, s.setState)
	engine.POST(ExpectationsPath, s.addExpectation)
	engine.GET(MetricsPath, gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	engine.NoRoute(s.serve)
	s.engine = engine
	return s
}

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler { return s.engine }

// AddStub checks stub against the contracts and serves it from now on.
func (s *Server) AddStub(stub specmatic.ScenarioStub) error {
	var reports []string
	for _, f := range s.features {
		data, err := f.MatchingStubFor(stub)
		if err != nil {
			var nomatch *specmatic.NoMatchingScenarioError
			if errors.As(err, &nomatch) {
				reports = append(reports, nomatch.Report)
				continue
			}
			return err
		}
		s.mu.Lock()
		s.stubs = append(s.stubs, data)
		s.mu.Unlock()
		s.log.Infof("stub %s %s registered against scenario %q", stub.Request.Method, stub.Request.Path, data.ScenarioName)
		return nil
	}
	if len(reports) == 0 {
		return errors.New("no contracts loaded")
	}
	return &specmatic.NoMatchingScenarioError{Report: strings.Join(reports, "\n\n")}
}

// Run serves on addr until ctx is done.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.engine, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.log.Infof("stub server listening on %s", addr)

	select {
	case err := <-errCh:
		return errors.Wrap(err, "listen")
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown")
	}
	return nil
}

// takeState returns the facts set for this request and clears them.
func (s *Server) takeState() specmatic.ServerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := s.state
	s.state = nil
	return state
}

func (s *Server) setState(c *gin.Context) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.String(http.StatusBadRequest, "read state: %v", err)
		return
	}
	v, err := value.ParseJSON(string(raw))
	if err != nil {
		c.String(http.StatusBadRequest, "state must be a JSON object: %v", err)
		return
	}
	obj, ok := v.(value.Object)
	if !ok {
		c.String(http.StatusBadRequest, "state must be a JSON object, got %s", v.TypeName())
		return
	}
	state := make(specmatic.ServerState, len(obj))
	for k, fact := range obj {
		state[k] = fact
	}
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
	c.Status(http.StatusOK)
}

func (s *Server) addExpectation(c *gin.Context) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.String(http.StatusBadRequest, "read expectation: %v", err)
		return
	}
	stub, err := stubfile.Parse(raw)
	if err != nil {
		c.String(http.StatusBadRequest, "%v", err)
		return
	}
	if err := s.AddStub(stub); err != nil {
		c.Header(specmatic.HeaderResult, "failure")
		c.String(http.StatusBadRequest, "%v", err)
		return
	}
	c.Status(http.StatusOK)
}

func (s *Server) serve(c *gin.Context) {
	start := time.Now()
	req, err := toRequest(c.Request)
	if err != nil {
		s.metrics.observe(outcomeError, start)
		c.String(http.StatusBadRequest, "%v", err)
		return
	}
	state := s.takeState()

	resp, outcome := s.respond(c.Request.Context(), req, state)
	s.log.Debugf("%s %s -> %d (%s)", req.Method, req.Path, resp.Status, outcome)
	s.metrics.observe(outcome, start)
	writeResponse(c, resp)
}

func (s *Server) respond(ctx context.Context, req specmatic.HTTPRequest, state specmatic.ServerState) (specmatic.HTTPResponse, string) {
	if stub := s.matchingStub(req); stub != nil {
		if stub.Delay > 0 {
			select {
			case <-time.After(stub.Delay):
			case <-ctx.Done():
				return specmatic.ErrorResponse("request cancelled"), outcomeError
			}
		}
		resp, err := stub.Serve()
		if err != nil {
			s.log.Errorf("serve stub for scenario %q: %v", stub.ScenarioName, err)
			return specmatic.ErrorResponse(err.Error()), outcomeError
		}
		return resp, outcomeStub
	}
	if s.strict {
		return specmatic.ErrorResponse("STRICT MODE ON\n\nNo stub matched " + req.String()), outcomeMismatch
	}
	if len(s.features) == 0 {
		return specmatic.ErrorResponse(specmatic.ErrEmptyContract.Error()), outcomeMismatch
	}

	var first *specmatic.HTTPResponse
	for _, f := range s.features {
		resp := f.StubResponse(req, state)
		if resp.Headers[specmatic.HeaderResult] != "failure" {
			return resp, outcomeContract
		}
		if first == nil {
			first = &resp
		}
	}
	return *first, outcomeMismatch
}

// matchingStub returns the most recently added stub that accepts req.
func (s *Server) matchingStub(req specmatic.HTTPRequest) *specmatic.StubData {
	s.mu.Lock()
	stubs := s.stubs
	s.mu.Unlock()
	for i := len(stubs) - 1; i >= 0; i-- {
		if stubs[i].Matches(req).IsSuccess() {
			return stubs[i]
		}
	}
	return nil
}
