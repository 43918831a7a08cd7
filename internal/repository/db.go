package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DB 数据库连接池封装
type DB struct {
	Pool *pgxpool.Pool
}

// New 创建数据库连接
func New(ctx context.Context, databaseURL string) (*DB, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	// 连接池配置
	config.MaxConns = 10
	config.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	// 测试连接
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Close 关闭连接池
func (db *DB) Close() {
	db.Pool.Close()
}

// Migrate 执行数据库迁移
func (db *DB) Migrate(ctx context.Context) error {
	return Migrate(ctx, db.Pool)
}

// Migrate 在给定连接上执行迁移
func Migrate(ctx context.Context, q Querier) error {
	migrations := []string{
		migrationCreateUsers,
		migrationCreateRuns,
		migrationIndexRunsUser,
	}

	for _, m := range migrations {
		if _, err := q.Exec(ctx, m); err != nil {
			return fmt.Errorf("execute migration: %w", err)
		}
	}

	return nil
}

// 数据库迁移 SQL
const migrationCreateUsers = `
CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    username VARCHAR(255),
    weight_kg DOUBLE PRECISION,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// runs 只追加，不更新
const migrationCreateRuns = `
CREATE TABLE IF NOT EXISTS runs (
    id UUID PRIMARY KEY,
    user_id TEXT NOT NULL,
    time_s INTEGER NOT NULL,
    distance_km DOUBLE PRECISION NOT NULL,
    pace VARCHAR(16) NOT NULL,
    route JSONB NOT NULL DEFAULT '[]',
    map_image TEXT,
    steps INTEGER NOT NULL DEFAULT 0,
    step_source VARCHAR(16) NOT NULL,
    average_speed_kmh DOUBLE PRECISION NOT NULL DEFAULT 0,
    elevation_gain_m DOUBLE PRECISION NOT NULL DEFAULT 0,
    calories INTEGER NOT NULL DEFAULT 0,
    created_at BIGINT NOT NULL,
    started_at BIGINT NOT NULL,
    ended_at BIGINT NOT NULL
);
`

const migrationIndexRunsUser = `
CREATE INDEX IF NOT EXISTS idx_runs_user_created ON runs(user_id, created_at DESC);
`
