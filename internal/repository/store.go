package repository

import (
	"context"

	"github.com/langchou/runtrack/internal/models"
)

// Store 组合用户与跑步记录仓库，供跑步服务使用
type Store struct {
	users *UserRepository
	runs  *RunRepository
}

// NewStore 创建存储
func NewStore(users *UserRepository, runs *RunRepository) *Store {
	return &Store{users: users, runs: runs}
}

// UserWeight 用户体重
func (s *Store) UserWeight(ctx context.Context, userID string) (float64, bool, error) {
	return s.users.Weight(ctx, userID)
}

// AppendRun 保存跑步记录
func (s *Store) AppendRun(ctx context.Context, userID string, rec *models.RunRecord) (string, error) {
	return s.runs.Append(ctx, userID, rec)
}

// GetRun 读取跑步记录
func (s *Store) GetRun(ctx context.Context, id string) (*models.RunRecord, error) {
	return s.runs.GetByID(ctx, id)
}
