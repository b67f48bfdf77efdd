// Package resolver turns actor and unit identifiers into display names for
// timeline presentation, with a Redis read-through cache in front of the
// organisation directory.
package resolver

import (
	"context"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	id "deltaker/pkg/domain"
)

// DirectoryClient looks up display names in the organisation directory.
// Identifiers the directory does not know are absent from the result maps,
// not errors.
type DirectoryClient interface {
	HentNavn(ctx context.Context, identer []id.NavIdent) (map[id.NavIdent]string, error)
	HentEnhetsnavn(ctx context.Context, enheter []id.Enhetsnummer) (map[id.Enhetsnummer]string, error)
}

// CachedResolver caches directory answers in Redis. A nil cache client
// degrades to direct directory lookups, which keeps local development and
// tests free of a Redis dependency.
type CachedResolver struct {
	directory DirectoryClient
	cache     *goredis.Client
	ttl       time.Duration
	logger    *slog.Logger
}

func NewCachedResolver(directory DirectoryClient, cache *goredis.Client, ttl time.Duration, logger *slog.Logger) *CachedResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedResolver{directory: directory, cache: cache, ttl: ttl, logger: logger}
}

const (
	identKeyPrefix = "navn:ident:"
	enhetKeyPrefix = "navn:enhet:"
)

// ResolveNames resolves both identifier kinds in one call. Cache failures
// are logged and treated as misses; the directory stays authoritative.
func (r *CachedResolver) ResolveNames(ctx context.Context, identer []id.NavIdent, enheter []id.Enhetsnummer) (map[id.NavIdent]string, map[id.Enhetsnummer]string, error) {
	identNavn := make(map[id.NavIdent]string, len(identer))
	enhetNavn := make(map[id.Enhetsnummer]string, len(enheter))

	missIdenter := identer
	missEnheter := enheter
	if r.cache != nil {
		var err error
		missIdenter, err = fetchCached(ctx, r.cache, identer, identKeyPrefix, func(ident id.NavIdent, navn string) {
			identNavn[ident] = navn
		})
		if err != nil {
			r.logger.WarnContext(ctx, "name cache read failed", "error", err)
			missIdenter = identer
		}
		missEnheter, err = fetchCached(ctx, r.cache, enheter, enhetKeyPrefix, func(enhet id.Enhetsnummer, navn string) {
			enhetNavn[enhet] = navn
		})
		if err != nil {
			r.logger.WarnContext(ctx, "name cache read failed", "error", err)
			missEnheter = enheter
		}
	}

	if len(missIdenter) > 0 {
		fresh, err := r.directory.HentNavn(ctx, missIdenter)
		if err != nil {
			return nil, nil, err
		}
		for ident, navn := range fresh {
			identNavn[ident] = navn
			r.toCache(ctx, identKeyPrefix+string(ident), navn)
		}
	}
	if len(missEnheter) > 0 {
		fresh, err := r.directory.HentEnhetsnavn(ctx, missEnheter)
		if err != nil {
			return nil, nil, err
		}
		for enhet, navn := range fresh {
			enhetNavn[enhet] = navn
			r.toCache(ctx, enhetKeyPrefix+string(enhet), navn)
		}
	}
	return identNavn, enhetNavn, nil
}

func fetchCached[K ~string](ctx context.Context, cache *goredis.Client, keys []K, prefix string, hit func(K, string)) ([]K, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	redisKeys := make([]string, len(keys))
	for i, k := range keys {
		redisKeys[i] = prefix + string(k)
	}
	values, err := cache.MGet(ctx, redisKeys...).Result()
	if err != nil {
		return keys, err
	}
	var misses []K
	for i, v := range values {
		navn, ok := v.(string)
		if !ok || navn == "" {
			misses = append(misses, keys[i])
			continue
		}
		hit(keys[i], navn)
	}
	return misses, nil
}

func (r *CachedResolver) toCache(ctx context.Context, key, navn string) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Set(ctx, key, navn, r.ttl).Err(); err != nil {
		r.logger.WarnContext(ctx, "name cache write failed", "key", key, "error", err)
	}
}
