package policy

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/wardenhq/warden/internal/cache"
	"github.com/wardenhq/warden/internal/domain"
)

// Bootstrap coordination constants. The marker throttles repeated runs
// across a rolling deploy; the lock serializes the run itself.
const (
	bootstrapLockName    = "lock:bootstrap"
	bootstrapLockTimeout = 20 * time.Second
	bootstrapMarkerKey   = "create_rules"
	bootstrapMarkerTTL   = 30 * time.Second
)

// Bootstrapper registers every route-declared permission and its field set
// in the catalog. Safe to run from every worker on every start: the catalog
// only grows, upserts ignore existing rows, and the marker plus lock keep
// concurrent starts down to one effective run per lease.
type Bootstrapper struct {
	cache    *cache.Redis
	registry *Registry
}

func NewBootstrapper(c *cache.Redis, registry *Registry) *Bootstrapper {
	return &Bootstrapper{cache: c, registry: registry}
}

// Run syncs the registry into the catalog through the given gateway. Rules
// removed from code are never deleted from the catalog.
func (b *Bootstrapper) Run(ctx context.Context, gw domain.Gateway) error {
	lock := b.cache.Lock(bootstrapLockName, bootstrapLockTimeout)
	if err := lock.Acquire(ctx); err != nil {
		return fmt.Errorf("bootstrap lock: %w", err)
	}
	defer func() { _ = lock.Release(ctx) }()

	done, err := b.cache.Exists(ctx, bootstrapMarkerKey)
	if err != nil {
		return fmt.Errorf("bootstrap marker: %w", err)
	}
	if done {
		slog.Debug("permission_bootstrap_skipped", "marker", bootstrapMarkerKey)
		return nil
	}
	if err := b.cache.Set(ctx, bootstrapMarkerKey, "1", bootstrapMarkerTTL); err != nil {
		return fmt.Errorf("bootstrap marker: %w", err)
	}

	rules := b.registry.All()
	err = gw.Manager().WithTransaction(ctx, func(ctx context.Context) error {
		for _, rule := range rules {
			spec := rule.Permission
			id, err := gw.RBAC().EnsurePermission(ctx, spec.Input()).Unwrap()
			if err != nil {
				return fmt.Errorf("permission %q: %w", spec.Key(), err)
			}
			if _, err := gw.RBAC().EnsurePermissionFields(ctx, id, spec.FieldInputs()).Unwrap(); err != nil {
				return fmt.Errorf("permission %q fields: %w", spec.Key(), err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	slog.Info("permission_bootstrap_completed", "rules", len(rules))
	return nil
}
