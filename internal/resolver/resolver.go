// Package resolver maps a cinema identifier to the regional backend domain
// that actually serves it. Backends shard cinemas across regional hosts with
// no public directory; a wrong domain turns every later call into a 404.
package resolver

import (
	"context"
	"sync"

	"github.com/cinetick/cinetick/internal/tenant"
	"github.com/cinetick/cinetick/pkg/logger"
)

// Prober issues the lightweight probe request against the tenant's default
// domain and reports the domain that answered for the cinema.
type Prober interface {
	Probe(ctx context.Context, tenantID, cinemaID string) (string, error)
}

// ProbeFunc adapts a function to the Prober interface.
type ProbeFunc func(ctx context.Context, tenantID, cinemaID string) (string, error)

func (f ProbeFunc) Probe(ctx context.Context, tenantID, cinemaID string) (string, error) {
	return f(ctx, tenantID, cinemaID)
}

// CinemaDomainResolver caches cinema_id → domain. Concurrent resolutions of a
// never-seen cinema may both probe; the duplicate probe is cheap and the cache
// write is last-writer-wins, so probes are deliberately not serialized.
type CinemaDomainResolver struct {
	registry *tenant.Registry
	prober   Prober
	cache    sync.Map // cinema_id → domain
	l        logger.Logger
}

func New(registry *tenant.Registry, prober Prober, l logger.Logger) *CinemaDomainResolver {
	return &CinemaDomainResolver{
		registry: registry,
		prober:   prober,
		l:        l,
	}
}

// Resolve returns the serving domain for a cinema. A cache miss triggers a
// probe against the tenant default domain; a failed probe falls back to the
// default domain without caching so the next call retries.
func (r *CinemaDomainResolver) Resolve(ctx context.Context, tenantID, cinemaID string) (string, error) {
	if v, ok := r.cache.Load(cinemaID); ok {
		return v.(string), nil
	}

	profile, err := r.registry.GetProfile(tenantID)
	if err != nil {
		return "", err
	}

	domain, err := r.prober.Probe(ctx, tenantID, cinemaID)
	if err != nil {
		r.l.Warnf(ctx, "domain probe failed for cinema %s, falling back to %s: %v",
			cinemaID, profile.DefaultDomain, err)
		return profile.DefaultDomain, nil
	}

	r.cache.Store(cinemaID, domain)
	r.l.Debugf(ctx, "resolved cinema %s to domain %s", cinemaID, domain)
	return domain, nil
}

// Invalidate drops the cached domain for a cinema so the next Resolve probes
// again. Meant for persistent failures against a previously cached domain.
func (r *CinemaDomainResolver) Invalidate(cinemaID string) {
	r.cache.Delete(cinemaID)
}

// Seed preloads cache entries, typically from a persisted snapshot.
func (r *CinemaDomainResolver) Seed(entries map[string]string) {
	for cinemaID, domain := range entries {
		if cinemaID == "" || domain == "" {
			continue
		}
		r.cache.Store(cinemaID, domain)
	}
}

// Snapshot copies the current cache for persistence by the caller.
func (r *CinemaDomainResolver) Snapshot() map[string]string {
	out := make(map[string]string)
	r.cache.Range(func(k, v any) bool {
		out[k.(string)] = v.(string)
		return true
	})
	return out
}
