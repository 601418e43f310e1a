package resolve

import (
	"context"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"tokenledger/internal/model"
	"tokenledger/internal/store"
)

// Resolver looks up profiles by on-chain address with a TTL cache in
// front of the store. Misses are cached too, so repeated events from
// unknown addresses do not hammer the database.
type Resolver struct {
	profiles store.ProfileStore
	cache    *gocache.Cache
	logger   *zap.Logger
}

// cachedMiss marks a negative cache entry.
type cachedMiss struct{}

func NewResolver(profiles store.ProfileStore, ttl time.Duration, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Resolver{
		profiles: profiles,
		cache:    gocache.New(ttl, 2*ttl),
		logger:   logger.Named("resolve"),
	}
}

// ByAddress returns the profile for the address, or nil when none
// matches. Absence is not an error.
func (r *Resolver) ByAddress(ctx context.Context, address string) (*model.Profile, error) {
	if address == "" {
		return nil, nil
	}
	key := strings.ToLower(address)

	if cached, ok := r.cache.Get(key); ok {
		if _, miss := cached.(cachedMiss); miss {
			return nil, nil
		}
		profile := cached.(model.Profile)
		return &profile, nil
	}

	profile, err := r.profiles.ByAddress(ctx, address)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		r.cache.Set(key, cachedMiss{}, gocache.DefaultExpiration)
		return nil, nil
	}

	r.cache.Set(key, *profile, gocache.DefaultExpiration)
	return profile, nil
}
