package ingest

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/eslsoft/lexloop/internal/entity"
	"github.com/eslsoft/lexloop/internal/infrastructure/config"
)

// maxSourceBytes caps how much of one source response is read.
const maxSourceBytes = 8 << 20

var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64; rv:125.0) Gecko/20100101 Firefox/125.0",
}

// agentPool hands out a random user agent per request.
type agentPool struct {
	mu     sync.Mutex
	agents []string
	rng    *rand.Rand
}

func newAgentPool(agents []string) *agentPool {
	if len(agents) == 0 {
		agents = defaultUserAgents
	}
	return &agentPool{agents: agents, rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func (p *agentPool) pick() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.agents[p.rng.Intn(len(p.agents))]
}

// pacer sleeps a uniform random duration in [min, max] between requests to
// keep per-source request rates polite.
type pacer struct {
	mu       sync.Mutex
	min, max time.Duration
	rng      *rand.Rand
	sleep    func(ctx context.Context, d time.Duration) error
}

func newPacer(min, max time.Duration) *pacer {
	if min < 0 {
		min = 0
	}
	if max < min {
		max = min
	}
	return &pacer{min: min, max: max, rng: rand.New(rand.NewSource(time.Now().UnixNano())), sleep: sleepCtx}
}

func (p *pacer) wait(ctx context.Context) error {
	p.mu.Lock()
	d := p.min
	if span := p.max - p.min; span > 0 {
		d += time.Duration(p.rng.Int63n(int64(span) + 1))
	}
	p.mu.Unlock()
	if d <= 0 {
		return ctx.Err()
	}
	return p.sleep(ctx, d)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Fetcher downloads source payloads with pacing, UA rotation and retry on
// transient upstream failures. Pacing is tracked per source so one slow
// source does not throttle the others.
type Fetcher struct {
	client   *http.Client
	agents   *agentPool
	minDelay time.Duration
	maxDelay time.Duration
	timeout  time.Duration
	attempts int
	delay    time.Duration
	factor   float64
	logger   *logrus.Logger

	mu     sync.Mutex
	pacers map[string]*pacer
}

// NewFetcher builds a fetcher from config defaults and per-file overrides.
func NewFetcher(cfg config.IngestConfig, settings CrawlerSettings, logger *logrus.Logger) *Fetcher {
	timeout := cfg.RequestTimeout
	if settings.TimeoutMillis > 0 {
		timeout = time.Duration(settings.TimeoutMillis) * time.Millisecond
	}
	attempts := cfg.MaxAttempts
	if settings.MaxAttempts > 0 {
		attempts = settings.MaxAttempts
	}
	if attempts < 1 {
		attempts = 1
	}
	minDelay, maxDelay := cfg.MinDelay, cfg.MaxDelay
	if settings.MinDelayMillis > 0 {
		minDelay = time.Duration(settings.MinDelayMillis) * time.Millisecond
	}
	if settings.MaxDelayMillis > 0 {
		maxDelay = time.Duration(settings.MaxDelayMillis) * time.Millisecond
	}

	return &Fetcher{
		client:   &http.Client{Timeout: timeout},
		agents:   newAgentPool(settings.UserAgents),
		minDelay: minDelay,
		maxDelay: maxDelay,
		timeout:  timeout,
		attempts: attempts,
		delay:    cfg.RetryDelay,
		factor:   cfg.RetryFactor,
		logger:   logger,
		pacers:   make(map[string]*pacer),
	}
}

// pacerFor returns the pacer for one source, creating it on first use.
// Source delay bounds override the file/config defaults when set.
func (f *Fetcher) pacerFor(src Source) *pacer {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := src.Name()
	if p, ok := f.pacers[name]; ok {
		return p
	}
	min, max := f.minDelay, f.maxDelay
	if src.MinDelay > 0 || src.MaxDelay > 0 {
		min, max = src.MinDelay, src.MaxDelay
	}
	p := newPacer(min, max)
	f.pacers[name] = p
	return p
}

// Fetch downloads one source payload, returning the body and how many
// retries it took. Only transient and rate-limit failures are retried.
func (f *Fetcher) Fetch(ctx context.Context, src Source) ([]byte, int, error) {
	bo := backoff.NewExponentialBackOff()
	if f.delay > 0 {
		bo.InitialInterval = f.delay
	}
	if f.factor > 1 {
		bo.Multiplier = f.factor
	}

	url := src.URL
	pace := f.pacerFor(src)
	var payload []byte
	retries := 0
	operation := func() error {
		if err := pace.wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		data, err := f.fetchOnce(ctx, src)
		if err != nil {
			if !entity.Retryable(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		payload = data
		return nil
	}
	notify := func(err error, next time.Duration) {
		retries++
		f.logger.WithFields(logrus.Fields{
			"url":   url,
			"retry": retries,
			"in":    next,
		}).WithError(err).Warn("source fetch failed, retrying")
	}

	err := backoff.RetryNotify(operation,
		backoff.WithContext(backoff.WithMaxRetries(bo, uint64(f.attempts-1)), ctx),
		notify)
	if err != nil {
		return nil, retries, fmt.Errorf("fetch %s: %w", url, err)
	}
	return payload, retries, nil
}

func (f *Fetcher) fetchOnce(ctx context.Context, src Source) ([]byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, src.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", f.agents.pick())
	for k, v := range src.Headers {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: status %d", entity.ErrRateLimited, resp.StatusCode)
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: status %d", entity.ErrUnavailable, resp.StatusCode)
	default:
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSourceBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", entity.ErrUnavailable, err)
	}
	return data, nil
}
