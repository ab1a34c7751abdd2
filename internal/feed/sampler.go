// Package feed samples the external reference price and tracks the series
// market currently in play.
package feed

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/kalshibot/internal/domain"
)

// minBufferCap is the floor on the sample buffer capacity regardless of the
// momentum window and poll interval.
const minBufferCap = 200

// BufferCap returns the sample buffer capacity for the given longest momentum
// window and poll interval: enough samples to cover the window plus headroom.
func BufferCap(window, poll time.Duration) int {
	if poll <= 0 {
		return minBufferCap
	}
	n := int(window/poll) + 30
	if n < minBufferCap {
		return minBufferCap
	}
	return n
}

// PriceBuffer is a bounded, append-only ring of timestamped price samples.
// When full, appending evicts the oldest sample. Safe for concurrent use.
type PriceBuffer struct {
	mu      sync.RWMutex
	samples []domain.PricePoint
	start   int
	count   int
}

// NewPriceBuffer creates a buffer holding at most capacity samples.
func NewPriceBuffer(capacity int) *PriceBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &PriceBuffer{
		samples: make([]domain.PricePoint, capacity),
	}
}

// Append records a sample, evicting the oldest when the buffer is full.
func (b *PriceBuffer) Append(p domain.PricePoint) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count < len(b.samples) {
		b.samples[(b.start+b.count)%len(b.samples)] = p
		b.count++
		return
	}
	b.samples[b.start] = p
	b.start = (b.start + 1) % len(b.samples)
}

// Len returns the number of buffered samples.
func (b *PriceBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.count
}

// Latest returns the most recent sample, or false when the buffer is empty.
func (b *PriceBuffer) Latest() (domain.PricePoint, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.count == 0 {
		return domain.PricePoint{}, false
	}
	return b.at(b.count - 1), true
}

// AtOrBefore returns the newest sample whose timestamp is at or before
// cutoff, or false when no sample is that old. Samples are assumed to be
// appended in timestamp order.
func (b *PriceBuffer) AtOrBefore(cutoff time.Time) (domain.PricePoint, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for i := b.count - 1; i >= 0; i-- {
		p := b.at(i)
		if !p.Time.After(cutoff) {
			return p, true
		}
	}
	return domain.PricePoint{}, false
}

// at returns the i-th oldest sample. Caller must hold b.mu.
func (b *PriceBuffer) at(i int) domain.PricePoint {
	return b.samples[(b.start+i)%len(b.samples)]
}

// Sampler pulls the spot price from the feed once per cycle, appends it to
// the buffer, and optionally mirrors the latest sample to a cache for
// external consumers.
type Sampler struct {
	feed   domain.PriceFeed
	buffer *PriceBuffer
	cache  domain.SpotCache // optional
	pair   string
	logger *slog.Logger
}

// NewSampler creates a sampler. cache may be nil.
func NewSampler(feed domain.PriceFeed, buffer *PriceBuffer, cache domain.SpotCache, pair string, logger *slog.Logger) *Sampler {
	return &Sampler{
		feed:   feed,
		buffer: buffer,
		cache:  cache,
		pair:   pair,
		logger: logger.With(slog.String("component", "sampler")),
	}
}

// Buffer returns the underlying sample buffer.
func (s *Sampler) Buffer() *PriceBuffer {
	return s.buffer
}

// Sample fetches the current spot price, records it at now, and returns it.
// A cache mirror failure is logged but does not fail the sample.
func (s *Sampler) Sample(ctx context.Context, now time.Time) (float64, error) {
	price, err := s.feed.GetSpotPrice(ctx)
	if err != nil {
		return 0, err
	}

	s.buffer.Append(domain.PricePoint{Time: now, Price: price})

	if s.cache != nil {
		if err := s.cache.SetSpot(ctx, s.pair, price, now); err != nil {
			s.logger.Warn("spot cache mirror failed", slog.String("error", err.Error()))
		}
	}

	return price, nil
}
