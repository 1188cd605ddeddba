package predictor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/lewtec/rotulador-video/internal/domain"
)

// HTTPGateway talks JSON to a segmentation service exposing
// POST /init, POST /points and POST /propagate.
//
// No client timeout is set: a propagation over a long video may take minutes
// and the caller decides through ctx.
type HTTPGateway struct {
	BaseURL string
	Client  *http.Client
}

func NewHTTPGateway(baseURL string) (*HTTPGateway, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("while parsing predictor url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("predictor url %q must be http or https", baseURL)
	}
	return &HTTPGateway{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		Client:  &http.Client{},
	}, nil
}

type maskPayload struct {
	Width      int      `json:"width"`
	Height     int      `json:"height"`
	Counts     []int    `json:"counts"`
	Confidence *float64 `json:"confidence,omitempty"`
}

func (p maskPayload) toMask() (*domain.Mask, error) {
	m, err := domain.MaskFromCounts(p.Width, p.Height, p.Counts)
	if err != nil {
		return nil, err
	}
	if p.Confidence != nil {
		m.Confidence = *p.Confidence
	}
	return m, nil
}

type initRequest struct {
	FrameDir string `json:"frame_dir"`
}

type initResponse struct {
	State string `json:"state"`
}

type pointsRequest struct {
	State      string   `json:"state"`
	FrameIndex int      `json:"frame_index"`
	ObjectID   int      `json:"object_id"`
	Points     [][2]int `json:"points"`
	Labels     []int    `json:"labels"`
}

type pointsResponse struct {
	Mask maskPayload `json:"mask"`
}

type propagateRequest struct {
	State string `json:"state"`
}

type propagatedMask struct {
	FrameIndex int         `json:"frame_index"`
	ObjectID   int         `json:"object_id"`
	Mask       maskPayload `json:"mask"`
}

type propagateResponse struct {
	Masks []propagatedMask `json:"masks"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (g *HTTPGateway) Initialize(ctx context.Context, frameDir string) (State, error) {
	var resp initResponse
	if err := g.post(ctx, "/init", initRequest{FrameDir: frameDir}, &resp); err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrInitialization, err)
	}
	if resp.State == "" {
		return "", fmt.Errorf("%w: predictor returned an empty state", domain.ErrInitialization)
	}
	return State(resp.State), nil
}

func (g *HTTPGateway) AddPoints(ctx context.Context, state State, frame, objectID int, points []Coordinate, labels []domain.PointLabel) (*domain.Mask, error) {
	if len(points) != len(labels) {
		return nil, fmt.Errorf("%w: %d points but %d labels", domain.ErrPredictorCall, len(points), len(labels))
	}
	req := pointsRequest{
		State:      string(state),
		FrameIndex: frame,
		ObjectID:   objectID,
		Points:     make([][2]int, len(points)),
		Labels:     make([]int, len(labels)),
	}
	for i, p := range points {
		req.Points[i] = [2]int{p.X, p.Y}
		req.Labels[i] = int(labels[i])
	}
	var resp pointsResponse
	if err := g.post(ctx, "/points", req, &resp); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrPredictorCall, err)
	}
	m, err := resp.Mask.toMask()
	if err != nil {
		return nil, fmt.Errorf("%w: while decoding mask: %w", domain.ErrPredictorCall, err)
	}
	m.FrameIndex = frame
	m.ObjectID = objectID
	return m, nil
}

func (g *HTTPGateway) Propagate(ctx context.Context, state State) (Propagation, error) {
	var resp propagateResponse
	if err := g.post(ctx, "/propagate", propagateRequest{State: string(state)}, &resp); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrPredictorCall, err)
	}
	out := Propagation{}
	for _, pm := range resp.Masks {
		m, err := pm.Mask.toMask()
		if err != nil {
			return nil, fmt.Errorf("%w: while decoding mask for frame %d object %d: %w", domain.ErrPredictorCall, pm.FrameIndex, pm.ObjectID, err)
		}
		m.FrameIndex = pm.FrameIndex
		m.ObjectID = pm.ObjectID
		if out[pm.FrameIndex] == nil {
			out[pm.FrameIndex] = map[int]*domain.Mask{}
		}
		out[pm.FrameIndex][pm.ObjectID] = m
	}
	return out, nil
}

func (g *HTTPGateway) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := g.Client.Do(req)
	if err != nil {
		return fmt.Errorf("while calling %s: %w", path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("while reading %s response: %w", path, err)
	}
	if resp.StatusCode/100 != 2 {
		var e errorResponse
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			return fmt.Errorf("%s: %d %s", path, resp.StatusCode, e.Error)
		}
		return fmt.Errorf("%s: %d %s", path, resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("while decoding %s response: %w", path, err)
	}
	return nil
}

var _ Gateway = (*HTTPGateway)(nil)

// IsPredictorError reports whether err came from a gateway call
func IsPredictorError(err error) bool {
	return errors.Is(err, domain.ErrPredictorCall) || errors.Is(err, domain.ErrInitialization)
}
