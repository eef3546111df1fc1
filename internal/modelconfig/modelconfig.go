// Package modelconfig resolves and caches the LLM backend configuration of
// each tenant.
package modelconfig

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/advisorhub/mira/internal/store"
	"github.com/advisorhub/mira/pkg/models"
)

type entry struct {
	cfg      *models.TenantModelConfig
	loadedAt time.Time
}

// generation identifies the invalidation state a load started under.
type generation struct {
	epoch  uint64
	tenant uint64
}

// Service caches the preferred TenantModelConfig per tenant. The cache map
// is copy-on-write: readers load it without locking and writers replace it
// whole. A load only populates the cache if no invalidation for its tenant
// happened while it was in flight.
type Service struct {
	store store.TenantConfigStore
	ttl   time.Duration
	now   func() time.Time

	cache   atomic.Pointer[map[string]entry]
	group   singleflight.Group
	writeMu sync.Mutex
	epoch   uint64
	gens    map[string]uint64
	loading map[string]int
}

// Option configures a Service.
type Option func(*Service)

// WithTTL expires cached entries after d. Zero keeps entries until
// invalidated.
func WithTTL(d time.Duration) Option {
	return func(s *Service) { s.ttl = d }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a tenant config cache over st.
func NewService(st store.TenantConfigStore, opts ...Option) *Service {
	s := &Service{store: st, now: time.Now, gens: map[string]uint64{}, loading: map[string]int{}}
	for _, o := range opts {
		o(s)
	}
	empty := map[string]entry{}
	s.cache.Store(&empty)
	return s
}

// Get returns the tenant's lowest-priority config, or nil when the tenant
// has none. Concurrent misses for one tenant share a single store read.
func (s *Service) Get(ctx context.Context, tenantID string) (*models.TenantModelConfig, error) {
	if tenantID == "" {
		return nil, nil
	}
	if e, ok := (*s.cache.Load())[tenantID]; ok && !s.expired(e) {
		return e.cfg, nil
	}

	v, err, _ := s.group.Do(tenantID, func() (interface{}, error) {
		gen := s.begin(tenantID)
		configs, err := s.store.ListTenantModelConfigs(ctx, tenantID)
		if err != nil {
			s.finish(tenantID)
			return nil, fmt.Errorf("load model config for tenant %s: %w", tenantID, err)
		}
		var cfg *models.TenantModelConfig
		if len(configs) > 0 {
			c := configs[0]
			cfg = &c
		}
		s.put(tenantID, cfg, gen)
		return cfg, nil
	})
	if err != nil {
		return nil, err
	}
	cfg, _ := v.(*models.TenantModelConfig)
	if cfg != nil {
		log.Debug().Str("tenant", tenantID).Str("provider", cfg.Provider).Msg("Tenant model config resolved")
	}
	return cfg, nil
}

func (s *Service) expired(e entry) bool {
	return s.ttl > 0 && s.now().Sub(e.loadedAt) >= s.ttl
}

// begin marks a load for tenantID as in flight and returns the generation
// it runs under.
func (s *Service) begin(tenantID string) generation {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.loading[tenantID]++
	return generation{epoch: s.epoch, tenant: s.gens[tenantID]}
}

func (s *Service) finish(tenantID string) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.done(tenantID)
}

func (s *Service) done(tenantID string) {
	if s.loading[tenantID] <= 1 {
		delete(s.loading, tenantID)
		return
	}
	s.loading[tenantID]--
}

// put ends a load and caches cfg unless the tenant was invalidated after
// gen was taken.
func (s *Service) put(tenantID string, cfg *models.TenantModelConfig, gen generation) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.done(tenantID)
	if gen.epoch != s.epoch || gen.tenant != s.gens[tenantID] {
		log.Debug().Str("tenant", tenantID).Msg("Tenant model config invalidated during load, not caching")
		return
	}
	old := *s.cache.Load()
	next := make(map[string]entry, len(old)+1)
	for k, v := range old {
		next[k] = v
	}
	next[tenantID] = entry{cfg: cfg, loadedAt: s.now()}
	s.cache.Store(&next)
}

// Invalidate drops one tenant's cached config. An empty tenant id clears
// the whole cache. Loads already in flight for the affected tenants do not
// repopulate the cache, and later Gets start a fresh load.
func (s *Service) Invalidate(tenantID string) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if tenantID == "" {
		s.epoch++
		for id := range s.loading {
			s.group.Forget(id)
		}
		empty := map[string]entry{}
		s.cache.Store(&empty)
		return
	}
	s.gens[tenantID]++
	s.group.Forget(tenantID)
	old := *s.cache.Load()
	if _, ok := old[tenantID]; !ok {
		return
	}
	next := make(map[string]entry, len(old))
	for k, v := range old {
		if k != tenantID {
			next[k] = v
		}
	}
	s.cache.Store(&next)
}

// Len returns the number of cached tenants.
func (s *Service) Len() int {
	return len(*s.cache.Load())
}
