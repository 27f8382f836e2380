package auth

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"payrolladmin/internal/platform/querier"
)

var (
	permissionCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payroll_permission_cache_hits_total",
		Help: "Role permission lookups served from cache.",
	})
	permissionCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payroll_permission_cache_misses_total",
		Help: "Role permission lookups that hit the database.",
	})
)

type Store struct {
	DB    querier.Querier
	cache *expirable.LRU[string, bool]
}

func NewStore(db querier.Querier, cacheTTL time.Duration) *Store {
	if cacheTTL <= 0 {
		cacheTTL = time.Minute
	}
	return &Store{DB: db, cache: expirable.NewLRU[string, bool](512, nil, cacheTTL)}
}

func (s *Store) HasPermission(ctx context.Context, roleName, permission string) (bool, error) {
	key := roleName + "|" + permission
	if allowed, ok := s.cache.Get(key); ok {
		permissionCacheHits.Inc()
		return allowed, nil
	}
	permissionCacheMisses.Inc()

	var count int
	if err := s.DB.QueryRow(ctx, `
    SELECT COUNT(1)
    FROM role_permissions
    WHERE role_name = $1 AND permission_key = $2
  `, roleName, permission).Scan(&count); err != nil {
		return false, err
	}
	allowed := count > 0
	s.cache.Add(key, allowed)
	return allowed, nil
}

// StaticPermissions answers from RolePermissions without a database.
type StaticPermissions struct{}

func (StaticPermissions) HasPermission(_ context.Context, roleName, permission string) (bool, error) {
	for _, perm := range RolePermissions[roleName] {
		if perm == permission {
			return true, nil
		}
	}
	return false, nil
}
