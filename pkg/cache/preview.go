package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jordanlanch/rivalscope/pkg/domain"
	"github.com/jordanlanch/rivalscope/pkg/models"
	"github.com/redis/go-redis/v9"
)

const previewPrefix = "scrape:preview:"

// DefaultPreviewTTL is used when no TTL is configured
const DefaultPreviewTTL = 15 * time.Minute

// HitRecorder receives cache hit/miss events
type HitRecorder interface {
	CacheHit(cache string)
	CacheMiss(cache string)
}

// PreviewCache keeps recent ad-hoc scrape results so repeated previews of one URL
// do not refetch the page.
type PreviewCache struct {
	store    domain.CacheRepository
	ttl      time.Duration
	recorder HitRecorder
}

// NewPreviewCache creates a preview cache. recorder may be nil.
func NewPreviewCache(store domain.CacheRepository, ttl time.Duration, recorder HitRecorder) *PreviewCache {
	if ttl <= 0 {
		ttl = DefaultPreviewTTL
	}
	return &PreviewCache{store: store, ttl: ttl, recorder: recorder}
}

// PreviewKey derives the cache key of a URL
func PreviewKey(rawURL string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(rawURL)))
	return previewPrefix + hex.EncodeToString(sum[:])
}

// Get returns the cached scrape of rawURL; ok is false on a miss
func (p *PreviewCache) Get(ctx context.Context, rawURL string) (data *models.ScrapedData, ok bool, err error) {
	raw, err := p.store.Get(ctx, PreviewKey(rawURL))
	if errors.Is(err, redis.Nil) {
		p.miss()
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read preview cache: %w", err)
	}

	var out models.ScrapedData
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		// corrupt entry, treat as a miss and let the next Put overwrite it
		p.miss()
		return nil, false, nil
	}
	p.hit()
	return &out, true, nil
}

// Put stores a scrape result under rawURL for the configured TTL
func (p *PreviewCache) Put(ctx context.Context, rawURL string, data *models.ScrapedData) error {
	if data == nil {
		return nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode preview: %w", err)
	}
	if err := p.store.Set(ctx, PreviewKey(rawURL), raw, p.ttl); err != nil {
		return fmt.Errorf("failed to write preview cache: %w", err)
	}
	return nil
}

// Invalidate drops the cached scrape of rawURL
func (p *PreviewCache) Invalidate(ctx context.Context, rawURL string) error {
	return p.store.Delete(ctx, PreviewKey(rawURL))
}

func (p *PreviewCache) hit() {
	if p.recorder != nil {
		p.recorder.CacheHit("scrape_preview")
	}
}

func (p *PreviewCache) miss() {
	if p.recorder != nil {
		p.recorder.CacheMiss("scrape_preview")
	}
}
