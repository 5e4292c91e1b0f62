package storage

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wardenhq/warden/internal/domain"
)

// Scope names the gateways register under in the dependency container.
// Command handlers resolve the master gateway, query handlers the replica.
const (
	GatewayMaster  = "gateway.master"
	GatewayReplica = "gateway.replica"
)

// Factory mints one gateway per request against its pool. Command buses get
// a factory bound to the master pool, query buses one bound to the replica.
type Factory struct {
	pool *pgxpool.Pool
}

func NewFactory(pool *pgxpool.Pool) *Factory {
	return &Factory{pool: pool}
}

// Gateway returns a fresh unit of work.
func (f *Factory) Gateway() *Gateway {
	return &Gateway{manager: NewManager(f.pool)}
}

// Gateway implements domain.Gateway. Repositories are built lazily and share
// the gateway's manager, so they all observe the same transaction.
type Gateway struct {
	manager *Manager
	user    *UserRepo
	rbac    *RBACRepo
}

var _ domain.Gateway = (*Gateway)(nil)

func (g *Gateway) Manager() domain.TxManager { return g.manager }

func (g *Gateway) User() domain.UserRepository {
	if g.user == nil {
		g.user = &UserRepo{m: g.manager}
	}
	return g.user
}

func (g *Gateway) RBAC() domain.RBACRepository {
	if g.rbac == nil {
		g.rbac = &RBACRepo{m: g.manager}
	}
	return g.rbac
}

// Release returns the gateway's connection state to the pool.
func (g *Gateway) Release(ctx context.Context) {
	g.manager.Release(ctx)
}
