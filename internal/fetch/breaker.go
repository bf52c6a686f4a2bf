package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"sync"
	"time"

	"github.com/cenk/backoff"
	circuit "github.com/rubyist/circuitbreaker"
)

// BreakerFetcher wraps a Getter with one circuit breaker per upstream host.
// A missing resource does not count as a failure.
type BreakerFetcher struct {
	getter    Getter
	threshold int64
	breakers  map[string]*circuit.Breaker
	mu        sync.RWMutex
}

// NewBreakerFetcher wraps g. Breakers trip after five consecutive failures.
func NewBreakerFetcher(g Getter) *BreakerFetcher {
	return &BreakerFetcher{
		getter:    g,
		threshold: 5,
		breakers:  make(map[string]*circuit.Breaker),
	}
}

func (b *BreakerFetcher) breaker(host string) *circuit.Breaker {
	b.mu.RLock()
	br, ok := b.breakers[host]
	b.mu.RUnlock()
	if ok {
		return br
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if br, ok := b.breakers[host]; ok {
		return br
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = 30 * time.Second
	expBackoff.MaxInterval = 5 * time.Minute
	expBackoff.Multiplier = 2.0
	expBackoff.Reset()

	br = circuit.NewBreakerWithOptions(&circuit.Options{
		BackOff:    expBackoff,
		ShouldTrip: circuit.ThresholdTripFunc(b.threshold),
	})
	b.breakers[host] = br
	return br
}

// Get fetches url unless the breaker for its host is open.
func (b *BreakerFetcher) Get(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	host := hostOf(rawURL)
	br := b.breaker(host)
	if !br.Ready() {
		return nil, fmt.Errorf("circuit breaker open for %s: %w", host, ErrUpstreamDown)
	}

	var (
		body    io.ReadCloser
		missing error
	)
	err := br.Call(func() error {
		var err error
		body, err = b.getter.Get(ctx, rawURL)
		if errors.Is(err, ErrNotFound) {
			missing = err
			return nil
		}
		return err
	}, 0)
	if missing != nil {
		return nil, missing
	}
	if err != nil {
		return nil, err
	}
	return body, nil
}

// States reports "open" or "closed" for every host seen so far.
func (b *BreakerFetcher) States() map[string]string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	states := make(map[string]string, len(b.breakers))
	for host, br := range b.breakers {
		if br.Tripped() {
			states[host] = "open"
		} else {
			states[host] = "closed"
		}
	}
	return states
}

func hostOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		if len(rawURL) > 50 {
			return rawURL[:50]
		}
		return rawURL
	}
	return parsed.Host
}
