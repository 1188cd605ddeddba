// Package predictortest provides a deterministic in-process predictor.
//
// A positive point paints a 5x5 square centred on it, a negative point clears
// a 3x3 square. Propagation copies each object's latest mask to every frame
// from the most recently annotated one to the last extracted frame.
package predictortest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/lewtec/rotulador-video/internal/domain"
	"github.com/lewtec/rotulador-video/internal/predictor"
)

type Call struct {
	Op       string
	Frame    int
	ObjectID int
	Points   []predictor.Coordinate
	Labels   []domain.PointLabel
}

type Gateway struct {
	Width  int
	Height int

	// Set to make the next calls of that kind fail
	InitErr      error
	AddPointsErr error
	PropagateErr error

	mu     sync.Mutex
	calls  []Call
	states map[predictor.State]*inference
}

type inference struct {
	frames    int
	lastFrame int
	objects   map[int]*domain.Mask
}

func New(width, height int) *Gateway {
	return &Gateway{
		Width:  width,
		Height: height,
		states: map[predictor.State]*inference{},
	}
}

// Calls returns a copy of every call received so far
func (g *Gateway) Calls() []Call {
	g.mu.Lock()
	defer g.mu.Unlock()
	return slices.Clone(g.calls)
}

// CallCount counts calls of one operation
func (g *Gateway) CallCount(op string) int {
	n := 0
	for _, c := range g.Calls() {
		if c.Op == op {
			n++
		}
	}
	return n
}

func (g *Gateway) Initialize(ctx context.Context, frameDir string) (predictor.State, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, Call{Op: "initialize"})
	if g.InitErr != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrInitialization, g.InitErr)
	}
	entries, err := os.ReadDir(frameDir)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrInitialization, err)
	}
	frames := 0
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if !e.IsDir() && (ext == ".jpg" || ext == ".jpeg" || ext == ".png") {
			frames++
		}
	}
	if frames == 0 {
		return "", fmt.Errorf("%w: no frames in %s", domain.ErrInitialization, frameDir)
	}
	state := predictor.State(fmt.Sprintf("fake-%d", len(g.states)+1))
	g.states[state] = &inference{frames: frames, objects: map[int]*domain.Mask{}}
	return state, nil
}

// Paint renders the mask the fake predictor produces for a point set
func (g *Gateway) Paint(points []predictor.Coordinate, labels []domain.PointLabel) *domain.Mask {
	m := domain.NewMask(g.Width, g.Height)
	for i, p := range points {
		if labels[i] == domain.Positive {
			m.FillRect(domain.Rect{X: p.X - 2, Y: p.Y - 2, Width: 5, Height: 5})
		}
	}
	for i, p := range points {
		if labels[i] == domain.Negative {
			for y := p.Y - 1; y <= p.Y+1; y++ {
				for x := p.X - 1; x <= p.X+1; x++ {
					m.Set(x, y, false)
				}
			}
		}
	}
	return m
}

func (g *Gateway) AddPoints(ctx context.Context, state predictor.State, frame, objectID int, points []predictor.Coordinate, labels []domain.PointLabel) (*domain.Mask, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, Call{Op: "add_points", Frame: frame, ObjectID: objectID, Points: slices.Clone(points), Labels: slices.Clone(labels)})
	if g.AddPointsErr != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrPredictorCall, g.AddPointsErr)
	}
	inf, ok := g.states[state]
	if !ok {
		return nil, fmt.Errorf("%w: unknown state %q", domain.ErrPredictorCall, state)
	}
	if frame < 0 || frame >= inf.frames {
		return nil, fmt.Errorf("%w: frame %d outside %d frames", domain.ErrPredictorCall, frame, inf.frames)
	}
	if len(points) != len(labels) {
		return nil, fmt.Errorf("%w: %d points but %d labels", domain.ErrPredictorCall, len(points), len(labels))
	}
	m := g.Paint(points, labels)
	m.FrameIndex = frame
	m.ObjectID = objectID
	inf.objects[objectID] = m
	inf.lastFrame = frame
	out := *m
	out.Pixels = slices.Clone(m.Pixels)
	return &out, nil
}

func (g *Gateway) Propagate(ctx context.Context, state predictor.State) (predictor.Propagation, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, Call{Op: "propagate"})
	if g.PropagateErr != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrPredictorCall, g.PropagateErr)
	}
	inf, ok := g.states[state]
	if !ok {
		return nil, fmt.Errorf("%w: unknown state %q", domain.ErrPredictorCall, state)
	}
	out := predictor.Propagation{}
	for frame := inf.lastFrame; frame < inf.frames; frame++ {
		objs := map[int]*domain.Mask{}
		for id, src := range inf.objects {
			m := *src
			m.Pixels = slices.Clone(src.Pixels)
			m.FrameIndex = frame
			objs[id] = &m
		}
		out[frame] = objs
	}
	return out, nil
}

var _ predictor.Gateway = (*Gateway)(nil)
