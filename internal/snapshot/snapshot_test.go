package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/langchou/runtrack/internal/models"
)

func TestNop(t *testing.T) {
	var s Snapshotter = Nop{}
	assert.False(t, s.Enabled())
	_, err := s.Capture(context.Background(), models.Route{{Latitude: 1, Longitude: 1}})
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestArchive(t *testing.T) {
	src := filepath.Join(t.TempDir(), "tmp.jpg")
	require.NoError(t, os.WriteFile(src, []byte("jpeg"), 0o644))

	dir := filepath.Join(t.TempDir(), "maps")
	uri, err := Archive(src, dir, time.UnixMilli(1700000000123))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(uri, "file://"))
	assert.True(t, strings.HasSuffix(uri, "run-map-1700000000123.jpg"))

	data, err := os.ReadFile(filepath.Join(dir, "run-map-1700000000123.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", string(data))

	_, err = os.Stat(src)
	assert.True(t, os.IsNotExist(err))
}

func TestArchiveMissingSource(t *testing.T) {
	_, err := Archive(filepath.Join(t.TempDir(), "missing.jpg"), t.TempDir(), time.Now())
	assert.Error(t, err)
}

func TestPlotRendererCapture(t *testing.T) {
	dir := t.TempDir()
	r := NewPlotRenderer(zap.NewNop(), dir)
	r.now = func() time.Time { return time.UnixMilli(42) }

	route := models.Route{
		{Latitude: 18.7883, Longitude: 98.9853},
		{Latitude: 18.7890, Longitude: 98.9858},
		{Latitude: 18.7899, Longitude: 98.9861},
	}
	uri, err := r.Capture(context.Background(), route)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(uri, "run-map-42.jpg"))

	info, err := os.Stat(filepath.Join(dir, "run-map-42.jpg"))
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestPlotRendererEmptyRoute(t *testing.T) {
	r := NewPlotRenderer(zap.NewNop(), t.TempDir())
	_, err := r.Capture(context.Background(), nil)
	assert.Error(t, err)
}

func TestPlotRendererCancelled(t *testing.T) {
	r := NewPlotRenderer(zap.NewNop(), t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Capture(ctx, models.Route{{Latitude: 1, Longitude: 1}, {Latitude: 1.001, Longitude: 1}})
	// 已取消的上下文可能与渲染完成同时就绪
	if err != nil {
		assert.ErrorIs(t, err, context.Canceled)
	}
}
