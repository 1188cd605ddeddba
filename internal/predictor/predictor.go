// Package predictor is the boundary to the external segmentation model.
//
// Frame numbers crossing this boundary are always relative to the first
// extracted frame. A gateway keeps no memory the caller can rely on beyond
// the State handle it returns from Initialize.
package predictor

import (
	"context"
	"time"

	"github.com/lewtec/rotulador-video/internal/domain"
)

// State is an opaque handle to the predictor's per-video inference state
type State string

type Coordinate struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Propagation maps relative frame -> object id -> mask
type Propagation map[int]map[int]*domain.Mask

func (p Propagation) MaskCount() int {
	n := 0
	for _, objs := range p {
		n += len(objs)
	}
	return n
}

type Gateway interface {
	// Initialize loads the frames of frameDir, named by zero-padded relative index
	Initialize(ctx context.Context, frameDir string) (State, error)

	// AddPoints computes the mask of one object on one frame from the full set of
	// points for that object on that frame. It is not incremental.
	AddPoints(ctx context.Context, state State, frame, objectID int, points []Coordinate, labels []domain.PointLabel) (*domain.Mask, error)

	// Propagate runs the model from the most recently annotated frame to the last extracted frame
	Propagate(ctx context.Context, state State) (Propagation, error)
}

// Recorder receives timing for every gateway call
type Recorder interface {
	ObservePredictorCall(op string, elapsed time.Duration, err error)
	ObservePropagatedMasks(n int)
}

// Instrument wraps g so that every call is reported to rec
func Instrument(g Gateway, rec Recorder) Gateway {
	return &instrumented{next: g, rec: rec}
}

type instrumented struct {
	next Gateway
	rec  Recorder
}

func (i *instrumented) Initialize(ctx context.Context, frameDir string) (State, error) {
	start := time.Now()
	state, err := i.next.Initialize(ctx, frameDir)
	i.rec.ObservePredictorCall("initialize", time.Since(start), err)
	return state, err
}

func (i *instrumented) AddPoints(ctx context.Context, state State, frame, objectID int, points []Coordinate, labels []domain.PointLabel) (*domain.Mask, error) {
	start := time.Now()
	m, err := i.next.AddPoints(ctx, state, frame, objectID, points, labels)
	i.rec.ObservePredictorCall("add_points", time.Since(start), err)
	return m, err
}

func (i *instrumented) Propagate(ctx context.Context, state State) (Propagation, error) {
	start := time.Now()
	p, err := i.next.Propagate(ctx, state)
	i.rec.ObservePredictorCall("propagate", time.Since(start), err)
	if err == nil {
		i.rec.ObservePropagatedMasks(p.MaskCount())
	}
	return p, err
}
