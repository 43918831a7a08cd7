package repository

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/jackc/pgx/v5"

	"github.com/langchou/runtrack/internal/models"
)

// ErrUserNotFound 用户不存在
var ErrUserNotFound = errors.New("user not found")

// UserRepository 用户资料仓库
type UserRepository struct {
	db Querier
}

// NewUserRepository 创建用户仓库
func NewUserRepository(db Querier) *UserRepository {
	return &UserRepository{db: db}
}

// GetByID 获取用户资料
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT id, COALESCE(username, ''), weight_kg FROM users WHERE id = $1`

	user := &models.User{}
	err := r.db.QueryRow(ctx, query, id).Scan(&user.ID, &user.Username, &user.WeightKg)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// Weight 获取用户体重 (kg)，不存在或无效时 ok 为 false
func (r *UserRepository) Weight(ctx context.Context, userID string) (float64, bool, error) {
	user, err := r.GetByID(ctx, userID)
	if errors.Is(err, ErrUserNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get user weight: %w", err)
	}

	w := user.WeightKg
	if w == nil || math.IsNaN(*w) || math.IsInf(*w, 0) || *w <= 0 {
		return 0, false, nil
	}
	return *w, true, nil
}
