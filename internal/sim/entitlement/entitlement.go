// Package entitlement answers content ownership questions through a TTL cache.
package entitlement

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/sirupsen/logrus"
)

const DefaultTTL = 5 * time.Minute

// Source is the authoritative ownership lookup, typically slow.
type Source interface {
	Owns(contentID string, identity uint64) (bool, error)
}

// Static is an in-memory Source keyed by identity.
type Static struct {
	mu    sync.RWMutex
	owned map[uint64]map[string]struct{}
}

func NewStatic() *Static {
	return &Static{owned: map[uint64]map[string]struct{}{}}
}

func (s *Static) Grant(identity uint64, contentIDs ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.owned[identity]
	if m == nil {
		m = map[string]struct{}{}
		s.owned[identity] = m
	}
	for _, id := range contentIDs {
		m[id] = struct{}{}
	}
}

func (s *Static) Owns(contentID string, identity uint64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.owned[identity][contentID]
	return ok, nil
}

// Checker implements host.Entitlements on top of a Source.
type Checker struct {
	src   Source
	ttl   time.Duration
	cache *ristretto.Cache[string, bool]
	log   logrus.FieldLogger
}

func New(src Source, ttl time.Duration, log logrus.FieldLogger) (*Checker, error) {
	if src == nil {
		return nil, fmt.Errorf("entitlement: nil source")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	cache, err := ristretto.NewCache[string, bool](&ristretto.Config[string, bool]{
		NumCounters:        10000,
		MaxCost:            1000,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("entitlement cache: %w", err)
	}
	return &Checker{src: src, ttl: ttl, cache: cache, log: log}, nil
}

func cacheKey(contentID string, identity uint64) string {
	return strconv.FormatUint(identity, 10) + "|" + contentID
}

// OwnsContent reports ownership. Lookup errors deny and are not cached.
func (c *Checker) OwnsContent(contentID string, identity uint64) bool {
	key := cacheKey(contentID, identity)
	if v, ok := c.cache.Get(key); ok {
		return v
	}
	owned, err := c.src.Owns(contentID, identity)
	if err != nil {
		c.log.WithError(err).WithFields(logrus.Fields{
			"content":  contentID,
			"identity": identity,
		}).Warn("entitlement lookup failed")
		return false
	}
	c.cache.SetWithTTL(key, owned, 1, c.ttl)
	c.cache.Wait()
	return owned
}

// Forget drops a cached answer, e.g. after a purchase.
func (c *Checker) Forget(contentID string, identity uint64) {
	c.cache.Del(cacheKey(contentID, identity))
}

func (c *Checker) Close() { c.cache.Close() }
