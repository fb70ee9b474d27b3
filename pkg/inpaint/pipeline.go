// Package inpaint composites a negotiated layout into one image by running one
// masked edit per object, in layout order, each on top of the previous result.
package inpaint

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"time"

	"layoutpaint/pkg/agent/middleware/metrics"
	"layoutpaint/pkg/config"
	"layoutpaint/pkg/imagesvc"
	"layoutpaint/pkg/imaging"
	"layoutpaint/pkg/layout"
	"layoutpaint/pkg/logx"
	"layoutpaint/pkg/runerrors"
)

// Fetcher downloads an edit result.
type Fetcher interface {
	Fetch(ctx context.Context, r imagesvc.Result) ([]byte, error)
}

// Options configures a pipeline run.
type Options struct {
	Background     color.Color
	Model          string
	BackgroundPath string // step-0 canvas
	OutputDir      string // inpaint_{i}.png files
	MaskPath       string // edit mask, overwritten every step
	CanvasWidth    int
	CanvasHeight   int
}

// OptionsFromConfig maps the run configuration onto pipeline options.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	bg, err := config.ParseColor(cfg.BgrColor)
	if err != nil {
		return Options{}, runerrors.Wrap(runerrors.KindConfiguration, "inpaint.options", err, "bgr_color")
	}
	return Options{
		Background:     bg,
		Model:          cfg.InpaintModel,
		BackgroundPath: cfg.BgrPath,
		OutputDir:      cfg.InpaintPath,
		MaskPath:       cfg.MaskPath,
		CanvasWidth:    cfg.ImageWidth,
		CanvasHeight:   cfg.ImageHeight,
	}, nil
}

// StepResult describes one completed edit.
type StepResult struct {
	Object     layout.ObjectSpec
	InputPath  string
	OutputPath string
	Duration   time.Duration
	Index      int
}

// Result is a finished composite.
type Result struct {
	FinalPath string
	Steps     []StepResult
}

// Pipeline runs the sequential edits.
type Pipeline struct {
	editor   imagesvc.Editor
	fetcher  Fetcher
	recorder metrics.Recorder
	logger   *logx.Logger
	opts     Options
}

// NewPipeline creates a pipeline. A nil recorder disables metrics.
func NewPipeline(opts Options, editor imagesvc.Editor, fetcher Fetcher, recorder metrics.Recorder) *Pipeline {
	if recorder == nil {
		recorder = metrics.Nop()
	}
	return &Pipeline{
		editor:   editor,
		fetcher:  fetcher,
		recorder: recorder,
		logger:   logx.NewLogger("inpaint"),
		opts:     opts,
	}
}

// OutputPath returns the file written by step i.
func (p *Pipeline) OutputPath(i int) string {
	return filepath.Join(p.opts.OutputDir, fmt.Sprintf("inpaint_%d.png", i))
}

// Run validates the whole layout, draws the background and edits each object in
// order. The first failing step stops the run; earlier outputs stay on disk.
func (p *Pipeline) Run(ctx context.Context, l *layout.Layout) (*Result, error) {
	const op = "inpaint.run"

	if l == nil {
		return nil, runerrors.Wrap(runerrors.KindGeometry, op, layout.ErrInvalidLayout, "no layout to paint")
	}
	if err := l.Validate(p.opts.CanvasWidth, p.opts.CanvasHeight); err != nil {
		return nil, runerrors.Wrap(runerrors.KindGeometry, op, err, "layout rejected before any edit")
	}
	if err := p.clearOutputs(); err != nil {
		return nil, err
	}

	var canvas image.Image = imaging.NewBackground(p.opts.CanvasWidth, p.opts.CanvasHeight, p.opts.Background)
	if err := imaging.SavePNG(p.opts.BackgroundPath, canvas); err != nil {
		return nil, err
	}
	canvasPath := p.opts.BackgroundPath

	result := &Result{Steps: make([]StepResult, 0, l.NumObjects)}
	for i, obj := range l.Objects() {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("%s: canceled before step %d: %w", op, i, err)
		}

		start := time.Now()
		next, err := p.step(ctx, i, obj, canvas, canvasPath)
		if err != nil {
			p.logger.Error("Step %d (%s) failed: %v", i, obj.Name, err)
			return result, err
		}

		step := StepResult{
			Index:      i,
			Object:     obj,
			InputPath:  canvasPath,
			OutputPath: p.OutputPath(i),
			Duration:   time.Since(start),
		}
		result.Steps = append(result.Steps, step)
		result.FinalPath = step.OutputPath
		p.logger.Info("Step %d/%d: %s at %s -> %s (%.1fs)", i+1, l.NumObjects, obj.Name, obj.Position, step.OutputPath, step.Duration.Seconds())

		canvas, canvasPath = next, step.OutputPath
	}
	return result, nil
}

// step edits one object into canvas and returns the new canvas.
func (p *Pipeline) step(ctx context.Context, i int, obj layout.ObjectSpec, canvas image.Image, canvasPath string) (image.Image, error) {
	const op = "inpaint.step"

	mask := obj.Position.Mask(p.opts.CanvasWidth, p.opts.CanvasHeight)
	if err := imaging.WriteEditMask(p.opts.MaskPath, imaging.BuildEditMask(canvas, mask)); err != nil {
		return nil, err
	}

	req := imagesvc.EditRequest{
		Model:     p.opts.Model,
		ImagePath: canvasPath,
		MaskPath:  p.opts.MaskPath,
		Prompt:    fmt.Sprintf("inpaint %s on the mask", obj.Name),
		Size:      fmt.Sprintf("%dx%d", p.opts.CanvasWidth, p.opts.CanvasHeight),
		N:         1,
	}
	logx.Debug(ctx, "inpaint", "step %d prompt %q size %s", i, req.Prompt, req.Size)

	start := time.Now()
	resp, err := p.editor.Edit(ctx, req)
	p.recorder.ObserveImageEdit(p.opts.Model, err == nil && len(resp.Results) > 0, time.Since(start))
	if err != nil {
		return nil, runerrors.Wrap(runerrors.KindRemoteService, op, err, "step %d (%s): image edit failed", i, obj.Name)
	}
	if len(resp.Results) == 0 {
		return nil, runerrors.Wrap(runerrors.KindRemoteService, op, imagesvc.ErrNoResults, "step %d (%s)", i, obj.Name)
	}
	if len(resp.Results) > 1 {
		p.logger.Warn("Step %d: expected one result, got %d; using the first", i, len(resp.Results))
	}

	data, err := p.fetcher.Fetch(ctx, resp.Results[0])
	if err != nil {
		return nil, runerrors.Wrap(runerrors.KindRemoteService, op, err, "step %d (%s): fetch result", i, obj.Name)
	}
	img, _, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, runerrors.Wrap(runerrors.KindRemoteService, op, err, "step %d (%s): malformed result image", i, obj.Name)
	}

	if err := imaging.SavePNG(p.OutputPath(i), img); err != nil {
		return nil, err
	}
	return img, nil
}

// clearOutputs removes step files from an earlier run so only this run's steps exist.
func (p *Pipeline) clearOutputs() error {
	stale, err := filepath.Glob(filepath.Join(p.opts.OutputDir, "inpaint_*.png"))
	if err != nil {
		return runerrors.IO("inpaint.clear", err, "list %s", p.opts.OutputDir)
	}
	for _, path := range stale {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return runerrors.IO("inpaint.clear", err, "remove %s", path)
		}
	}
	return nil
}
