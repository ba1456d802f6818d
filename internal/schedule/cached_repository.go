package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// CachedRepository serves GetForDay from an in-process cache. Availability
// listings read the same handful of templates over and over. Writes made
// through this type drop the affected key, but the cache is per process:
// another instance sees a change only once its entry expires. Booking
// admission must therefore read through the plain Repository.
type CachedRepository struct {
	Repository
	cache *cache.Cache
}

func NewCachedRepository(next Repository, ttl time.Duration) *CachedRepository {
	return &CachedRepository{
		Repository: next,
		cache:      cache.New(ttl, 2*ttl),
	}
}

func cacheKey(doctorID uuid.UUID, day time.Weekday) string {
	return fmt.Sprintf("%s:%d", doctorID, day)
}

func (r *CachedRepository) GetForDay(ctx context.Context, doctorID uuid.UUID, day time.Weekday) (*Template, error) {
	key := cacheKey(doctorID, day)
	if v, ok := r.cache.Get(key); ok {
		cp := v.(Template)
		return &cp, nil
	}

	t, err := r.Repository.GetForDay(ctx, doctorID, day)
	if err != nil {
		return nil, err
	}
	r.cache.SetDefault(key, *t)
	return t, nil
}

func (r *CachedRepository) Upsert(ctx context.Context, t *Template) error {
	defer r.cache.Delete(cacheKey(t.DoctorID, t.Day))
	return r.Repository.Upsert(ctx, t)
}

func (r *CachedRepository) SetActive(ctx context.Context, doctorID uuid.UUID, day time.Weekday, active bool) (*Template, error) {
	defer r.cache.Delete(cacheKey(doctorID, day))
	return r.Repository.SetActive(ctx, doctorID, day, active)
}
