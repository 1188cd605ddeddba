package annotation

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/lewtec/rotulador-video/internal/domain"
	"github.com/lewtec/rotulador-video/internal/metrics"
)

func setupServer(t *testing.T, log logs.Log) (*httptest.Server, *fixture) {
	t.Helper()
	if log == nil {
		log = logs.NewTestingLog(t)
	}
	m := metrics.New()
	f := setupOrchestrator(t, 12, func(o *Options) {
		o.Observer = m
	})
	cfg := DefaultConfig()
	cfg.Meta.Description = "Blocks on a table"
	cfg.Classes = []string{"block"}
	app := &LabelerApp{Orchestrator: f.o, Config: cfg, Log: log, Metrics: m}
	srv := httptest.NewServer(app.GetHTTPHandler())
	t.Cleanup(srv.Close)
	return srv, f
}

func call(t *testing.T, srv *httptest.Server, method, path string, body any) (int, []byte) {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, srv.URL+path, r)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func TestLabelerApp_AnnotationFlow(t *testing.T) {
	srv, _ := setupServer(t, nil)

	code, _ := call(t, srv, http.MethodGet, "/api/session", nil)
	require.Equal(t, http.StatusBadRequest, code)

	code, body := call(t, srv, http.MethodPost, "/api/video", map[string]any{"path": testVideo})
	require.Equal(t, http.StatusOK, code, string(body))

	code, body = call(t, srv, http.MethodPost, "/api/objects", map[string]any{"name": "block"})
	require.Equal(t, http.StatusCreated, code, string(body))

	code, body = call(t, srv, http.MethodPost, "/api/objects", map[string]any{"name": "Block"})
	require.Equal(t, http.StatusBadRequest, code)
	var apiErr apiError
	require.NoError(t, json.Unmarshal(body, &apiErr))
	require.Equal(t, "validation", apiErr.Kind)

	code, body = call(t, srv, http.MethodPost, "/api/navigate", map[string]any{"frame": 2})
	require.Equal(t, http.StatusOK, code, string(body))

	code, body = call(t, srv, http.MethodPost, "/api/points", map[string]any{"x": 10, "y": 12, "label": "positive"})
	require.Equal(t, http.StatusOK, code, string(body))
	var mask maskView
	require.NoError(t, json.Unmarshal(body, &mask))
	require.Equal(t, 2, mask.FrameIndex)
	require.Equal(t, [4]int{8, 10, 5, 5}, mask.BBox)
	require.Equal(t, "#00ff00", mask.Color)

	code, body = call(t, srv, http.MethodPost, "/api/navigate", map[string]any{"delta": 1})
	require.Equal(t, http.StatusOK, code, string(body))
	require.JSONEq(t, `{"currentFrame": 3}`, string(body))

	code, body = call(t, srv, http.MethodGet, "/api/frames/11/masks", nil)
	require.Equal(t, http.StatusOK, code)
	var masks []maskView
	require.NoError(t, json.Unmarshal(body, &masks))
	require.Len(t, masks, 1)
	require.Equal(t, 64*48, sum(masks[0].Counts))

	code, _ = call(t, srv, http.MethodGet, "/api/frames/2/image", nil)
	require.Equal(t, http.StatusOK, code)
	code, _ = call(t, srv, http.MethodGet, "/api/frames/1/image", nil)
	require.Equal(t, http.StatusNotFound, code)

	code, body = call(t, srv, http.MethodGet, "/api/session", nil)
	require.Equal(t, http.StatusOK, code)
	var view SessionView
	require.NoError(t, json.Unmarshal(body, &view))
	require.Equal(t, 2, *view.StartFrame)
	require.Equal(t, 3, view.CurrentFrame)
	require.Len(t, view.Points, 1)
	require.Equal(t, 10, view.MaskCount)

	out := filepath.Join(t.TempDir(), "out.json")
	code, body = call(t, srv, http.MethodPost, "/api/export", map[string]any{"path": out, "endFrame": 5})
	require.Equal(t, http.StatusOK, code, string(body))
	var res ExportResult
	require.NoError(t, json.Unmarshal(body, &res))
	require.Equal(t, 4, res.Images)

	code, _ = call(t, srv, http.MethodPost, "/api/points/undo", nil)
	require.Equal(t, http.StatusOK, code)
	code, _ = call(t, srv, http.MethodPost, "/api/points/undo", nil)
	require.Equal(t, http.StatusBadRequest, code)

	code, body = call(t, srv, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, string(body), `rotulador_operations_total{op="add_point",status="ok"} 1`)
	require.Contains(t, string(body), `rotulador_exports_total{status="ok"} 1`)
}

func TestLabelerApp_MaskColors(t *testing.T) {
	srv, _ := setupServer(t, nil)

	code, body := call(t, srv, http.MethodPost, "/api/video", map[string]any{"path": testVideo})
	require.Equal(t, http.StatusOK, code, string(body))
	code, body = call(t, srv, http.MethodPost, "/api/objects", map[string]any{"name": "block"})
	require.Equal(t, http.StatusCreated, code, string(body))

	code, body = call(t, srv, http.MethodPost, "/api/points", map[string]any{"x": 10, "y": 12})
	require.Equal(t, http.StatusOK, code, string(body))
	code, body = call(t, srv, http.MethodPost, "/api/objects", map[string]any{"name": "cone"})
	require.Equal(t, http.StatusCreated, code, string(body))
	code, body = call(t, srv, http.MethodPost, "/api/objects/select", map[string]any{"name": "cone"})
	require.Equal(t, http.StatusOK, code, string(body))
	code, body = call(t, srv, http.MethodPost, "/api/points", map[string]any{"x": 40, "y": 30, "label": 2})
	require.Equal(t, http.StatusBadRequest, code, string(body))
	code, body = call(t, srv, http.MethodPost, "/api/points", map[string]any{"x": 40, "y": 30, "label": 1})
	require.Equal(t, http.StatusOK, code, string(body))

	code, body = call(t, srv, http.MethodGet, "/api/frames/0/masks", nil)
	require.Equal(t, http.StatusOK, code)
	var masks []maskView
	require.NoError(t, json.Unmarshal(body, &masks))
	require.Len(t, masks, 2)
	colors := map[int]string{}
	for _, m := range masks {
		colors[m.ObjectID] = m.Color
	}
	require.Equal(t, map[int]string{
		1: domain.PaletteColor(1).Hex(),
		2: domain.PaletteColor(2).Hex(),
	}, colors)
}

func sum(xs []int) int {
	n := 0
	for _, x := range xs {
		n += x
	}
	return n
}

func TestLabelerApp_ErrorStatus(t *testing.T) {
	srv, f := setupServer(t, nil)

	code, body := call(t, srv, http.MethodPost, "/api/video", map[string]any{"path": "/videos/missing.mp4"})
	require.Equal(t, http.StatusUnprocessableEntity, code, string(body))

	code, _ = call(t, srv, http.MethodPost, "/api/video", map[string]any{"path": testVideo})
	require.Equal(t, http.StatusOK, code)

	f.o.processing.Store(true)
	code, body = call(t, srv, http.MethodPost, "/api/propagate", nil)
	require.Equal(t, http.StatusConflict, code, string(body))
	f.o.processing.Store(false)

	code, _ = call(t, srv, http.MethodPost, "/api/objects", map[string]any{"name": "block"})
	require.Equal(t, http.StatusCreated, code)
	f.predictor.InitErr = io.ErrUnexpectedEOF
	code, body = call(t, srv, http.MethodPost, "/api/points", map[string]any{"x": 1, "y": 1})
	require.Equal(t, http.StatusBadGateway, code, string(body))

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/objects", strings.NewReader("{not json"))
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLabelerApp_Help(t *testing.T) {
	srv, _ := setupServer(t, nil)

	code, body := call(t, srv, http.MethodGet, "/help", nil)
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, string(body), "<h1>Video annotation help</h1>")
	require.Contains(t, string(body), "Blocks on a table")
	require.Contains(t, string(body), "<strong>block</strong>")

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/help", nil)
	require.NoError(t, err)
	req.Header.Set("Accept-Language", "pt-BR,pt;q=0.9")
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(data), "Ajuda da anota")
}

func TestLabelerApp_EventStream(t *testing.T) {
	// the pumps outlive the test, so they cannot log through t
	log, err := logs.NewLog()
	require.NoError(t, err)
	srv, f := setupServer(t, log)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		return f.o.Events() != nil && countClients(srv) == 1
	}, 2*time.Second, 10*time.Millisecond)

	code, _ := call(t, srv, http.MethodPost, "/api/video", map[string]any{"path": testVideo})
	require.Equal(t, http.StatusOK, code)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev struct {
		Event string          `json:"event"`
		Value json.RawMessage `json:"value"`
	}
	for {
		require.NoError(t, conn.ReadJSON(&ev))
		if ev.Event == string(EventVideoLoaded) {
			break
		}
	}
	var info struct {
		TotalFrames int `json:"totalFrames"`
	}
	require.NoError(t, json.Unmarshal(ev.Value, &info))
	require.Equal(t, 12, info.TotalFrames)
}

func TestLabelerApp_EventStreamSubscribesOnce(t *testing.T) {
	f := setupOrchestrator(t, 4, nil)
	bus := f.o.Events()
	before := bus.Subscribers()

	app := &LabelerApp{Orchestrator: f.o, Config: DefaultConfig(), Log: logs.NewTestingLog(t)}
	app.GetHTTPHandler()
	app.GetHTTPHandler()
	require.Equal(t, before+1, bus.Subscribers())
	require.Same(t, app.Events(), app.Events())

	app.Close()
	require.Equal(t, before, bus.Subscribers())
}

func countClients(srv *httptest.Server) int {
	_, body := callRaw(srv, "/metrics")
	for _, line := range strings.Split(body, "\n") {
		if strings.HasPrefix(line, "rotulador_event_clients ") {
			if strings.TrimPrefix(line, "rotulador_event_clients ") == "1" {
				return 1
			}
		}
	}
	return 0
}

func callRaw(srv *httptest.Server, path string) (int, string) {
	resp, err := srv.Client().Get(srv.URL + path)
	if err != nil {
		return 0, ""
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(data)
}
