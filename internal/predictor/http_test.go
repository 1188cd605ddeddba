package predictor

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lewtec/rotulador-video/internal/domain"
	"github.com/stretchr/testify/require"
)

// fakeService answers like a segmentation sidecar serving 2x2 masks
func fakeService(t *testing.T) (*httptest.Server, *[]pointsRequest) {
	t.Helper()
	var seen []pointsRequest
	mux := http.NewServeMux()
	mux.HandleFunc("POST /init", func(w http.ResponseWriter, r *http.Request) {
		var req initRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.FrameDir == "/missing" {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(errorResponse{Error: "no frames in /missing"})
			return
		}
		json.NewEncoder(w).Encode(initResponse{State: "state-1"})
	})
	mux.HandleFunc("POST /points", func(w http.ResponseWriter, r *http.Request) {
		var req pointsRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		seen = append(seen, req)
		conf := 0.75
		json.NewEncoder(w).Encode(pointsResponse{Mask: maskPayload{Width: 2, Height: 2, Counts: []int{1, 2, 1}, Confidence: &conf}})
	})
	mux.HandleFunc("POST /propagate", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(propagateResponse{Masks: []propagatedMask{
			{FrameIndex: 0, ObjectID: 1, Mask: maskPayload{Width: 2, Height: 2, Counts: []int{4}}},
			{FrameIndex: 1, ObjectID: 1, Mask: maskPayload{Width: 2, Height: 2, Counts: []int{0, 4}}},
			{FrameIndex: 1, ObjectID: 2, Mask: maskPayload{Width: 2, Height: 2, Counts: []int{3, 1}}},
		}})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &seen
}

func TestHTTPGateway(t *testing.T) {
	srv, seen := fakeService(t)
	g, err := NewHTTPGateway(srv.URL + "/")
	require.NoError(t, err)
	ctx := context.Background()

	state, err := g.Initialize(ctx, "/tmp/frames")
	require.NoError(t, err)
	require.Equal(t, State("state-1"), state)

	t.Run("add points sends the full point set", func(t *testing.T) {
		m, err := g.AddPoints(ctx, state, 3, 2,
			[]Coordinate{{X: 10, Y: 11}, {X: 12, Y: 13}},
			[]domain.PointLabel{domain.Positive, domain.Negative})
		require.NoError(t, err)
		require.Equal(t, 3, m.FrameIndex)
		require.Equal(t, 2, m.ObjectID)
		require.Equal(t, 0.75, m.Confidence)
		require.Equal(t, []bool{false, true, true, false}, m.Pixels)

		require.Len(t, *seen, 1)
		req := (*seen)[0]
		require.Equal(t, "state-1", req.State)
		require.Equal(t, [][2]int{{10, 11}, {12, 13}}, req.Points)
		require.Equal(t, []int{1, 0}, req.Labels)
	})

	t.Run("propagate groups masks by frame and object", func(t *testing.T) {
		p, err := g.Propagate(ctx, state)
		require.NoError(t, err)
		require.Equal(t, 3, p.MaskCount())
		require.Equal(t, 0, p[0][1].Count())
		require.Equal(t, 4, p[1][1].Count())
		require.Equal(t, 1, p[1][2].FrameIndex)
		require.Equal(t, 2, p[1][2].ObjectID)
	})

	t.Run("service errors become initialization errors", func(t *testing.T) {
		_, err := g.Initialize(ctx, "/missing")
		require.True(t, errors.Is(err, domain.ErrInitialization))
		require.Contains(t, err.Error(), "no frames in /missing")
	})

	t.Run("mismatched labels are rejected before calling", func(t *testing.T) {
		_, err := g.AddPoints(ctx, state, 0, 1, []Coordinate{{}}, nil)
		require.True(t, errors.Is(err, domain.ErrPredictorCall))
	})
}

func TestHTTPGateway_Unreachable(t *testing.T) {
	srv, _ := fakeService(t)
	g, err := NewHTTPGateway(srv.URL)
	require.NoError(t, err)
	srv.Close()

	_, err = g.Propagate(context.Background(), "state-1")
	require.True(t, errors.Is(err, domain.ErrPredictorCall))
	require.True(t, IsPredictorError(err))
}

func TestNewHTTPGateway_RejectsBadURL(t *testing.T) {
	_, err := NewHTTPGateway("ftp://example.com")
	require.Error(t, err)
}

type recorder struct {
	calls  map[string]int
	errors int
	masks  int
}

func (r *recorder) ObservePredictorCall(op string, elapsed time.Duration, err error) {
	r.calls[op]++
	if err != nil {
		r.errors++
	}
}

func (r *recorder) ObservePropagatedMasks(n int) {
	r.masks += n
}

func TestInstrument(t *testing.T) {
	srv, _ := fakeService(t)
	g, err := NewHTTPGateway(srv.URL)
	require.NoError(t, err)
	rec := &recorder{calls: map[string]int{}}
	ig := Instrument(g, rec)
	ctx := context.Background()

	state, err := ig.Initialize(ctx, "/tmp/frames")
	require.NoError(t, err)
	_, err = ig.Initialize(ctx, "/missing")
	require.Error(t, err)
	_, err = ig.AddPoints(ctx, state, 0, 1, []Coordinate{{X: 1, Y: 1}}, []domain.PointLabel{domain.Positive})
	require.NoError(t, err)
	_, err = ig.Propagate(ctx, state)
	require.NoError(t, err)

	require.Equal(t, map[string]int{"initialize": 2, "add_points": 1, "propagate": 1}, rec.calls)
	require.Equal(t, 1, rec.errors)
	require.Equal(t, 3, rec.masks)
}
