package repository

import (
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/charadev96/repguard/internal/bot/domain"
)

// CachePendingActionRepository holds one pending action per actor in
// process memory. A zero ttl keeps actions until they are consumed or
// overwritten.
type CachePendingActionRepository struct {
	cache *cache.Cache
}

func NewCachePendingActionRepository(ttl time.Duration) *CachePendingActionRepository {
	expiration := ttl
	cleanup := ttl
	if ttl <= 0 {
		expiration = cache.NoExpiration
		cleanup = 0
	}
	return &CachePendingActionRepository{
		cache: cache.New(expiration, cleanup),
	}
}

func (r *CachePendingActionRepository) Set(actor int64, tag domain.PendingTag) {
	r.cache.Set(pendingKey(actor), tag, cache.DefaultExpiration)
}

func (r *CachePendingActionRepository) Get(actor int64) (domain.PendingTag, bool) {
	v, ok := r.cache.Get(pendingKey(actor))
	if !ok {
		return "", false
	}
	tag, ok := v.(domain.PendingTag)
	return tag, ok
}

func (r *CachePendingActionRepository) Clear(actor int64) {
	r.cache.Delete(pendingKey(actor))
}

func pendingKey(actor int64) string {
	return strconv.FormatInt(actor, 10)
}
