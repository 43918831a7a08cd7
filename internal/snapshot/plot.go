package snapshot

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"os"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/langchou/runtrack/internal/models"
)

var errEmptyRoute = errors.New("snapshot: empty route")

var (
	routeColor  = color.RGBA{R: 0x1e, G: 0x88, B: 0xe5, A: 255}
	startColor  = color.RGBA{R: 0x2e, G: 0x7d, B: 0x32, A: 255}
	finishColor = color.RGBA{R: 0xc6, G: 0x28, B: 0x28, A: 255}
)

// PlotRenderer 使用 gonum/plot 绘制轨迹并归档为 JPEG
type PlotRenderer struct {
	logger *zap.Logger
	dir    string
	now    func() time.Time
}

// NewPlotRenderer 创建渲染器，dir 为快照归档目录
func NewPlotRenderer(logger *zap.Logger, dir string) *PlotRenderer {
	return &PlotRenderer{
		logger: logger,
		dir:    dir,
		now:    time.Now,
	}
}

// Enabled 始终为 true
func (r *PlotRenderer) Enabled() bool { return true }

type renderResult struct {
	path string
	err  error
}

// Capture 渲染轨迹并归档，返回 file:// URI
func (r *PlotRenderer) Capture(ctx context.Context, route models.Route) (string, error) {
	if len(route) == 0 {
		return "", errEmptyRoute
	}

	done := make(chan renderResult, 1)
	go func() {
		path, err := render(route)
		done <- renderResult{path: path, err: err}
	}()

	var res renderResult
	select {
	case res = <-done:
	case <-ctx.Done():
		// 渲染完成后清理临时文件
		go func() {
			if res := <-done; res.err == nil {
				os.Remove(res.path)
			}
		}()
		return "", fmt.Errorf("render map: %w", ctx.Err())
	}
	if res.err != nil {
		return "", res.err
	}

	uri, err := Archive(res.path, r.dir, r.now())
	if err != nil {
		os.Remove(res.path)
		return "", err
	}

	r.logger.Debug("Map snapshot archived",
		zap.String("uri", uri),
		zap.Int("points", len(route)))
	return uri, nil
}

// render 绘制轨迹到临时 JPEG 文件
func render(route models.Route) (string, error) {
	p := plot.New()
	p.Title.Text = "Run"
	p.X.Label.Text = "Longitude"
	p.Y.Label.Text = "Latitude"

	pts := make(plotter.XYs, len(route))
	for i, pt := range route {
		pts[i] = plotter.XY{X: pt.Longitude, Y: pt.Latitude}
	}

	line, err := plotter.NewLine(pts)
	if err != nil {
		return "", fmt.Errorf("create route line: %w", err)
	}
	line.Color = routeColor
	line.Width = vg.Points(2)
	p.Add(line)

	start, err := marker(pts[0], startColor)
	if err != nil {
		return "", err
	}
	finish, err := marker(pts[len(pts)-1], finishColor)
	if err != nil {
		return "", err
	}
	p.Add(start, finish)

	tmp, err := os.CreateTemp("", "run-map-*.jpg")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	path := tmp.Name()
	tmp.Close()

	if err := p.Save(6*vg.Inch, 6*vg.Inch, path); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("save map: %w", err)
	}
	return path, nil
}

func marker(pt plotter.XY, c color.Color) (*plotter.Scatter, error) {
	s, err := plotter.NewScatter(plotter.XYs{pt})
	if err != nil {
		return nil, fmt.Errorf("create marker: %w", err)
	}
	s.GlyphStyle.Color = c
	s.GlyphStyle.Radius = vg.Points(5)
	s.GlyphStyle.Shape = draw.CircleGlyph{}
	return s, nil
}
