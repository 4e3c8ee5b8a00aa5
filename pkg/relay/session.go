package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/nbd-wtf/go-nostr"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"
)

// ErrSessionClosed is returned for queries made after Close.
var ErrSessionClosed = errors.New("relay session closed")

// Options configures a Session.
type Options struct {
	RelayTimeout   time.Duration // bound on each endpoint call, including dialing
	ConnectTimeout time.Duration // bound on dialing one endpoint
	DialRetries    uint64        // extra dial attempts within ConnectTimeout
	MaxConcurrency int           // endpoint calls in flight per query
	Ingest         IngestOptions
}

// DefaultOptions returns the session defaults.
func DefaultOptions() Options {
	return Options{
		RelayTimeout:   8 * time.Second,
		ConnectTimeout: 5 * time.Second,
		DialRetries:    2,
		MaxConcurrency: 16,
	}
}

// Session is a short-lived set of relay connections owned by one resolution
// request. Connections are reused across the queries of that request and
// released by Close. Sessions never share results with each other.
//
// A Session is safe for concurrent use.
type Session struct {
	dialer Dialer
	opts   Options

	mu     sync.Mutex
	conns  map[string]Conn
	down   map[string]error // endpoints whose dial failed; skipped for the session
	closed bool
}

// NewSession creates a session. Caller must call Close when done.
func NewSession(dialer Dialer, opts Options) *Session {
	if opts.MaxConcurrency < 1 {
		opts.MaxConcurrency = 1
	}
	return &Session{
		dialer: dialer,
		opts:   opts,
		conns:  make(map[string]Conn),
		down:   make(map[string]error),
	}
}

// Query issues filter to every endpoint concurrently and folds the answers.
// Endpoint failures are recorded in Result.Failures and never returned as an
// error; a query against only failing endpoints yields an empty Result.
func (s *Session) Query(ctx context.Context, endpoints []string, filter Filter) *Result {
	nf := filter.nostrFilter()

	p := pool.NewWithResults[Outcome]().WithMaxGoroutines(s.opts.MaxConcurrency)
	for i, endpoint := range endpoints {
		i, endpoint := i, endpoint
		p.Go(func() Outcome {
			o := s.queryEndpoint(ctx, endpoint, nf)
			o.Index = i
			return o
		})
	}
	res := Fold(p.Wait())

	for _, f := range res.Failures {
		log.Debug().Str("relay", f.Endpoint).Err(f.Err).Msg("Relay excluded from query")
	}
	if res.AllFailed() {
		log.Warn().Int("relays", len(endpoints)).Msg("No relay answered query")
	}

	return res
}

func (s *Session) queryEndpoint(ctx context.Context, endpoint string, filter nostr.Filter) Outcome {
	callCtx, cancel := context.WithTimeout(ctx, s.opts.RelayTimeout)
	defer cancel()

	conn, err := s.conn(callCtx, endpoint)
	if err != nil {
		return Outcome{Endpoint: endpoint, Err: err}
	}

	raw, err := conn.Query(callCtx, filter)
	if err != nil {
		return Outcome{Endpoint: endpoint, Err: err}
	}

	messages := make([]Message, 0, len(raw))
	dropped := 0
	for _, ev := range raw {
		m, err := Ingest(ev, s.opts.Ingest)
		if err != nil {
			if !IsMalformed(err) {
				return Outcome{Endpoint: endpoint, Err: err}
			}
			dropped++
			log.Trace().Str("relay", endpoint).Err(err).Msg("Dropping malformed event")
			continue
		}
		messages = append(messages, m)
	}
	if dropped > 0 {
		log.Debug().Str("relay", endpoint).Int("dropped", dropped).Msg("Relay served malformed events")
	}

	return Outcome{Endpoint: endpoint, Messages: messages}
}

// conn returns the cached connection for endpoint, dialing with backoff if
// needed. A failed dial marks the endpoint down for the rest of the session
// unless the caller's context was cancelled.
func (s *Session) conn(ctx context.Context, endpoint string) (Conn, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	if c, ok := s.conns[endpoint]; ok {
		s.mu.Unlock()
		return c, nil
	}
	if err, ok := s.down[endpoint]; ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("relay down for this session: %w", err)
	}
	s.mu.Unlock()

	dialCtx, cancel := context.WithTimeout(ctx, s.opts.ConnectTimeout)
	defer cancel()

	var (
		c       Conn
		lastErr error
	)
	dial := func() error {
		var err error
		c, err = s.dialer.Dial(dialCtx, endpoint)
		if err != nil {
			lastErr = err
		}
		return err
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 100 * time.Millisecond
	bo.MaxElapsedTime = s.opts.ConnectTimeout
	if err := backoff.Retry(dial, backoff.WithContext(backoff.WithMaxRetries(bo, s.opts.DialRetries), dialCtx)); err != nil {
		// Report why the relay refused rather than the retry deadline
		if lastErr != nil {
			err = lastErr
		}
		if ctx.Err() == nil || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			s.mu.Lock()
			s.down[endpoint] = err
			s.mu.Unlock()
		}
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		c.Close()
		return nil, ErrSessionClosed
	}
	if existing, ok := s.conns[endpoint]; ok {
		// Lost a dial race; keep the first connection
		c.Close()
		return existing, nil
	}
	s.conns[endpoint] = c
	return c, nil
}

// ProbeResult reports whether one endpoint accepted a connection.
type ProbeResult struct {
	Endpoint string
	Latency  time.Duration
	Err      error
}

// Probe dials every endpoint concurrently and reports reachability.
// Successful connections are kept for later queries on this session.
func (s *Session) Probe(ctx context.Context, endpoints []string) []ProbeResult {
	p := pool.NewWithResults[ProbeResult]().WithMaxGoroutines(s.opts.MaxConcurrency)
	for _, endpoint := range endpoints {
		endpoint := endpoint
		p.Go(func() ProbeResult {
			callCtx, cancel := context.WithTimeout(ctx, s.opts.RelayTimeout)
			defer cancel()
			start := time.Now()
			_, err := s.conn(callCtx, endpoint)
			return ProbeResult{Endpoint: endpoint, Latency: time.Since(start), Err: err}
		})
	}
	results := p.Wait()

	byEndpoint := make(map[string]ProbeResult, len(results))
	for _, r := range results {
		byEndpoint[r.Endpoint] = r
	}
	ordered := make([]ProbeResult, 0, len(endpoints))
	for _, endpoint := range endpoints {
		if r, ok := byEndpoint[endpoint]; ok {
			ordered = append(ordered, r)
			delete(byEndpoint, endpoint)
		}
	}
	return ordered
}

// Close closes every connection opened by the session. Implements io.Closer.
// Safe to call multiple times.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	for endpoint, c := range s.conns {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close %s: %w", endpoint, err))
		}
	}
	s.conns = nil
	return errors.Join(errs...)
}

func (f Filter) nostrFilter() nostr.Filter {
	nf := nostr.Filter{
		Kinds: f.Kinds,
		Limit: f.Limit,
	}
	for _, id := range f.IDs {
		nf.IDs = append(nf.IDs, string(id))
	}
	for _, pk := range f.Authors {
		nf.Authors = append(nf.Authors, string(pk))
	}

	tags := nostr.TagMap{}
	if len(f.References) > 0 {
		values := make([]string, len(f.References))
		for i, id := range f.References {
			values[i] = string(id)
		}
		tags["e"] = values
	}
	if len(f.Addresses) > 0 {
		tags["a"] = f.Addresses
	}
	if len(f.Identifiers) > 0 {
		tags["d"] = f.Identifiers
	}
	if len(tags) > 0 {
		nf.Tags = tags
	}
	return nf
}
