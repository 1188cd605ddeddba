package annotation

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/cyclopcam/logs"

	"github.com/lewtec/rotulador-video/internal/domain"
	"github.com/lewtec/rotulador-video/internal/frameindex"
	"github.com/lewtec/rotulador-video/internal/metrics"
)

// LabelerApp is the HTTP operator surface over an Orchestrator
type LabelerApp struct {
	Orchestrator *Orchestrator
	Config       *Config
	Log          logs.Log
	Metrics      *metrics.Metrics

	eventsOnce sync.Once
	events     *EventStream
}

// Events returns the websocket stream of the app, subscribed to the
// orchestrator on first use
func (a *LabelerApp) Events() *EventStream {
	a.eventsOnce.Do(func() {
		a.events = NewEventStream(a.Log, a.Orchestrator.Events(), a.Metrics)
	})
	return a.events
}

// Close unsubscribes the event stream and disconnects its clients
func (a *LabelerApp) Close() {
	if a.events != nil {
		a.events.Close()
	}
}

func stringOr(str, or string) string {
	if str != "" {
		return str
	}
	return or
}

type apiError struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (a *LabelerApp) writeError(w http.ResponseWriter, err error) {
	writeJSON(w, HTTPStatus(err), apiError{Error: err.Error(), Kind: ErrorKind(err)})
}

func decodeBody(r *http.Request, v any) error {
	if r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid request body: %w", domain.ErrValidation, err)
	}
	return nil
}

type maskView struct {
	ObjectID   int     `json:"objectId"`
	FrameIndex int     `json:"frameIndex"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	Counts     []int   `json:"counts"`
	Confidence float64 `json:"confidence"`
	BBox       [4]int  `json:"bbox"`
	Color      string  `json:"color,omitempty"`
}

func (a *LabelerApp) GetHTTPHandler() http.Handler {
	o := a.Orchestrator
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/video", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Path            string `json:"path"`
			PreserveObjects bool   `json:"preserveObjects"`
		}
		if err := decodeBody(r, &req); err != nil {
			a.writeError(w, err)
			return
		}
		info, err := o.LoadVideo(r.Context(), req.Path, req.PreserveObjects)
		if err != nil {
			a.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, info)
	})

	mux.HandleFunc("POST /api/objects", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Name string `json:"name"`
		}
		if err := decodeBody(r, &req); err != nil {
			a.writeError(w, err)
			return
		}
		obj, err := o.AddObject(r.Context(), req.Name)
		if err != nil {
			a.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, obj)
	})

	mux.HandleFunc("POST /api/objects/select", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID   int    `json:"id"`
			Name string `json:"name"`
		}
		if err := decodeBody(r, &req); err != nil {
			a.writeError(w, err)
			return
		}
		var (
			obj domain.ObjectDefinition
			err error
		)
		if req.Name != "" {
			obj, err = o.SelectObjectByName(req.Name)
		} else {
			obj, err = o.SelectObject(req.ID)
		}
		if err != nil {
			a.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, obj)
	})

	mux.HandleFunc("POST /api/points", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			X     int               `json:"x"`
			Y     int               `json:"y"`
			Label domain.PointLabel `json:"label"`
		}
		req.Label = domain.Positive
		if err := decodeBody(r, &req); err != nil {
			a.writeError(w, err)
			return
		}
		mask, err := o.AddPoint(r.Context(), req.X, req.Y, req.Label)
		if err != nil {
			a.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, maskViewOf(mask, a.objectColors()))
	})

	mux.HandleFunc("POST /api/points/undo", func(w http.ResponseWriter, r *http.Request) {
		p, err := o.UndoPoint(r.Context())
		if err != nil {
			a.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	})

	mux.HandleFunc("POST /api/navigate", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Frame *int `json:"frame"`
			Delta int  `json:"delta"`
		}
		if err := decodeBody(r, &req); err != nil {
			a.writeError(w, err)
			return
		}
		var (
			frame int
			err   error
		)
		if req.Frame != nil {
			frame, err = o.Navigate(r.Context(), *req.Frame)
		} else {
			frame, err = o.Step(r.Context(), req.Delta)
		}
		if err != nil {
			a.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"currentFrame": frame})
	})

	mux.HandleFunc("POST /api/propagate", func(w http.ResponseWriter, r *http.Request) {
		n, err := o.Propagate(r.Context())
		if err != nil {
			a.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"masks": n})
	})

	mux.HandleFunc("POST /api/export", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Path     string `json:"path"`
			EndFrame *int   `json:"endFrame"`
		}
		if err := decodeBody(r, &req); err != nil {
			a.writeError(w, err)
			return
		}
		res, err := o.Export(r.Context(), req.Path, req.EndFrame)
		if err != nil {
			a.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	})

	mux.HandleFunc("GET /api/session", func(w http.ResponseWriter, r *http.Request) {
		view, ok := o.Snapshot()
		if !ok {
			a.writeError(w, domain.ErrNoVideo)
			return
		}
		writeJSON(w, http.StatusOK, view)
	})

	mux.HandleFunc("GET /api/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, o.Status())
	})

	mux.HandleFunc("GET /api/frames/{frame}/masks", func(w http.ResponseWriter, r *http.Request) {
		frame, err := strconv.Atoi(r.PathValue("frame"))
		if err != nil {
			a.writeError(w, fmt.Errorf("%w: frame %q", domain.ErrFrameOutOfRange, r.PathValue("frame")))
			return
		}
		masks, err := o.MasksOnFrame(frame)
		if err != nil {
			a.writeError(w, err)
			return
		}
		colors := a.objectColors()
		views := make([]maskView, 0, len(masks))
		for _, m := range masks {
			views = append(views, maskViewOf(m, colors))
		}
		writeJSON(w, http.StatusOK, views)
	})

	mux.HandleFunc("GET /api/frames/{frame}/points", func(w http.ResponseWriter, r *http.Request) {
		frame, err := strconv.Atoi(r.PathValue("frame"))
		if err != nil {
			a.writeError(w, fmt.Errorf("%w: frame %q", domain.ErrFrameOutOfRange, r.PathValue("frame")))
			return
		}
		points, err := o.PointsOnFrame(frame)
		if err != nil {
			a.writeError(w, err)
			return
		}
		if points == nil {
			points = []domain.Point{}
		}
		writeJSON(w, http.StatusOK, points)
	})

	mux.HandleFunc("GET /api/frames/{frame}/image", func(w http.ResponseWriter, r *http.Request) {
		frame, err := strconv.Atoi(r.PathValue("frame"))
		if err != nil {
			http.NotFoundHandler().ServeHTTP(w, r)
			return
		}
		path, err := o.FramePath(frame)
		if errors.Is(err, frameindex.ErrUnanchored) || errors.Is(err, frameindex.ErrNegativeFrame) || errors.Is(err, domain.ErrValidation) {
			http.NotFoundHandler().ServeHTTP(w, r)
			return
		}
		if err != nil {
			a.writeError(w, err)
			return
		}
		if _, err := os.Stat(path); err != nil {
			a.Log.Warnf("http: extracted frame %v is missing: %v", path, err)
			http.NotFoundHandler().ServeHTTP(w, r)
			return
		}
		http.ServeFile(w, r, path)
	})

	if a.Metrics != nil {
		mux.Handle("GET /metrics", a.Metrics.Handler())
	}
	mux.Handle("GET /events", a.Events())

	mux.HandleFunc("GET /help", a.serveHelp)
	mux.HandleFunc("GET /{$}", a.serveHelp)

	var handler http.Handler = mux
	handler = i18nMiddleware(a.Config.Language, handler)
	handler = HTTPLogger(a.Log, handler)
	return handler
}

// objectColors maps object ids to their display colors
func (a *LabelerApp) objectColors() map[int]string {
	objects := a.Orchestrator.Objects()
	colors := make(map[int]string, len(objects))
	for _, obj := range objects {
		colors[obj.ID] = obj.Color.Hex()
	}
	return colors
}

func maskViewOf(m *domain.Mask, colors map[int]string) maskView {
	box := m.BoundingBox()
	return maskView{
		ObjectID:   m.ObjectID,
		FrameIndex: m.FrameIndex,
		Width:      m.Width,
		Height:     m.Height,
		Counts:     m.Counts(),
		Confidence: m.Confidence,
		BBox:       [4]int{box.X, box.Y, box.Width, box.Height},
		Color:      colors[m.ObjectID],
	}
}

var apiRoutes = [][2]string{
	{"POST /api/video", "`{path, preserveObjects}`"},
	{"POST /api/objects", "`{name}`"},
	{"POST /api/objects/select", "`{id}` or `{name}`"},
	{"POST /api/points", "`{x, y, label}`, label is `positive`, `negative`, `1` or `0`"},
	{"POST /api/points/undo", ""},
	{"POST /api/navigate", "`{frame}` or `{delta}`"},
	{"POST /api/propagate", ""},
	{"POST /api/export", "`{path, endFrame}`"},
	{"GET /api/session", ""},
	{"GET /api/status", ""},
	{"GET /api/frames/{n}/masks", ""},
	{"GET /api/frames/{n}/points", ""},
	{"GET /api/frames/{n}/image", ""},
	{"GET /events", "websocket"},
	{"GET /metrics", "prometheus"},
}

func (a *LabelerApp) serveHelp(w http.ResponseWriter, r *http.Request) {
	localizer := GetLocalizerFromContext(r.Context(), NewLocalizer(a.Config.Language))
	t := func(id string) string { return Localize(localizer, id, nil) }

	var markdownBuilder strings.Builder
	fmt.Fprintf(&markdownBuilder, "# %s\n", t("help_heading"))
	fmt.Fprintf(&markdownBuilder, "## %s\n", t("help_description"))
	fmt.Fprintf(&markdownBuilder, "> %s\n\n", strings.ReplaceAll(stringOr(strings.TrimSpace(a.Config.Meta.Description), t("help_no_description")), "\n", "\n>"))
	fmt.Fprintf(&markdownBuilder, "## %s\n%s\n\n", t("help_workflow"), t("help_workflow_body"))
	if len(a.Config.Classes) > 0 {
		fmt.Fprintf(&markdownBuilder, "## %s\n", t("help_classes"))
		for i, name := range a.Config.Classes {
			fmt.Fprintf(&markdownBuilder, "- **%s** `%s`\n", name, domain.PaletteColor(i+1).Hex())
		}
		fmt.Fprintf(&markdownBuilder, "\n")
	}
	fmt.Fprintf(&markdownBuilder, "## %s\n\n", t("help_api"))
	fmt.Fprintf(&markdownBuilder, "| Route | Body |\n|---|---|\n")
	for _, route := range apiRoutes {
		fmt.Fprintf(&markdownBuilder, "| `%s` | %s |\n", route[0], route[1])
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := ExecTemplate(w, TemplateContent{Title: t("help_title"), Lang: a.Config.Language, Content: markdownBuilder.String()})
	if err != nil {
		a.Log.Errorf("http: while rendering help: %v", err)
	}
}
