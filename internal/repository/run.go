package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/langchou/runtrack/internal/models"
)

// ErrRunNotFound 记录不存在
var ErrRunNotFound = errors.New("run not found")

// RunRepository 跑步记录仓库
type RunRepository struct {
	db Querier
}

// NewRunRepository 创建跑步记录仓库
func NewRunRepository(db Querier) *RunRepository {
	return &RunRepository{db: db}
}

// Append 追加一条跑步记录，ID 由服务端生成
func (r *RunRepository) Append(ctx context.Context, userID string, rec *models.RunRecord) (string, error) {
	query := `
		INSERT INTO runs (id, user_id, time_s, distance_km, pace, route, map_image, steps, step_source,
			average_speed_kmh, elevation_gain_m, calories, created_at, started_at, ended_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	id := uuid.NewString()

	route, err := rec.Route.Value()
	if err != nil {
		return "", fmt.Errorf("encode route: %w", err)
	}

	_, err = r.db.Exec(ctx, query,
		id,
		userID,
		rec.Time,
		rec.Distance,
		rec.Pace,
		route,
		rec.MapImage,
		rec.Steps,
		string(rec.StepSource),
		rec.AverageSpeedKmh,
		rec.ElevationGainM,
		rec.Calories,
		rec.CreatedAt,
		rec.StartedAt,
		rec.EndedAt,
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	return id, nil
}

// GetByID 获取跑步记录
func (r *RunRepository) GetByID(ctx context.Context, id string) (*models.RunRecord, error) {
	query := `
		SELECT id, user_id, time_s, distance_km, pace, route, map_image, steps, step_source,
			average_speed_kmh, elevation_gain_m, calories, created_at, started_at, ended_at
		FROM runs WHERE id = $1
	`
	rec := &models.RunRecord{}
	var route []byte
	var stepSource string
	err := r.db.QueryRow(ctx, query, id).Scan(
		&rec.ID,
		&rec.UserID,
		&rec.Time,
		&rec.Distance,
		&rec.Pace,
		&route,
		&rec.MapImage,
		&rec.Steps,
		&stepSource,
		&rec.AverageSpeedKmh,
		&rec.ElevationGainM,
		&rec.Calories,
		&rec.CreatedAt,
		&rec.StartedAt,
		&rec.EndedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}

	if err := rec.Route.Scan(route); err != nil {
		return nil, fmt.Errorf("decode route: %w", err)
	}
	rec.StepSource = models.StepSource(stepSource)
	return rec, nil
}
