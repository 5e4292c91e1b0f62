// Package storage owns the Postgres side of the system: connection pools,
// the per-request transaction manager, and the repositories behind the
// domain gateway.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wardenhq/warden/internal/config"
)

// Pools bundles the master pool with the read replica pool. Without a
// configured replica both fields point at the same pool.
type Pools struct {
	Master  *pgxpool.Pool
	Replica *pgxpool.Pool
}

// NewPools connects both pools with bounds derived from the worker split.
func NewPools(ctx context.Context, db config.DatabaseConfig, srv config.ServerConfig) (*Pools, error) {
	workers := int32(srv.Workers)

	master, err := newPool(ctx, db.MasterURL(),
		config.SizePool(db.MinConnections, db.MaxConnections, workers, srv.Strategy), db)
	if err != nil {
		return nil, fmt.Errorf("master pool: %w", err)
	}

	replica := master
	if db.HasReplica() {
		replica, err = newPool(ctx, db.ReplicaURL(),
			config.SizePool(db.MinConnections, db.ReplicaMaxConnections, workers, srv.Strategy), db)
		if err != nil {
			master.Close()
			return nil, fmt.Errorf("replica pool: %w", err)
		}
	}

	slog.Info("database_connected",
		"master_max_conns", master.Config().MaxConns,
		"replica", db.HasReplica(),
	)
	return &Pools{Master: master, Replica: replica}, nil
}

func newPool(ctx context.Context, url string, sizing config.PoolSizing, db config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}
	poolConfig.MinConns = sizing.MinConns
	poolConfig.MaxConns = sizing.MaxConns
	poolConfig.ConnConfig.ConnectTimeout = time.Duration(db.ConnectionTimeout) * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	if db.PingConnection {
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}
	}
	return pool, nil
}

// Close drains both pools.
func (p *Pools) Close() {
	p.Master.Close()
	if p.Replica != p.Master {
		p.Replica.Close()
	}
}
