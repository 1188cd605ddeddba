package annotation

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/google/uuid"
	"github.com/nicksnyder/go-i18n/v2/i18n"

	"github.com/lewtec/rotulador-video/internal/coco"
	"github.com/lewtec/rotulador-video/internal/domain"
	"github.com/lewtec/rotulador-video/internal/frameindex"
	"github.com/lewtec/rotulador-video/internal/predictor"
	"github.com/lewtec/rotulador-video/internal/session"
	"github.com/lewtec/rotulador-video/internal/video"
)

// Observer receives operation outcomes, usually *metrics.Metrics
type Observer interface {
	ObserveOperation(op string, err error)
	ObserveExport(err error)
	ObserveVideoLoaded()
	SetProcessing(active bool)
}

type nopObserver struct{}

func (nopObserver) ObserveOperation(string, error) {}
func (nopObserver) ObserveExport(error)            {}
func (nopObserver) ObserveVideoLoaded()            {}
func (nopObserver) SetProcessing(bool)             {}

type Options struct {
	Log       logs.Log
	Source    video.Source
	Extractor video.Extractor
	Predictor predictor.Gateway

	// Optional
	Classes  domain.ClassRepository
	Exports  domain.ExportRepository
	Observer Observer
	Events   *EventBus

	// Frames of a session are extracted to ScratchDir/<session id>
	ScratchDir    string
	PresetClasses []string

	ExportDescription string
	ExportVersion     string
	Language          string
	Now               func() time.Time
}

// Orchestrator runs one annotation session at a time. Operations are
// serialized by the processing flag: an operation issued while another is in
// flight fails with domain.ErrBusy.
type Orchestrator struct {
	log        logs.Log
	source     video.Source
	extractor  video.Extractor
	predictor  predictor.Gateway
	classes    domain.ClassRepository
	exports    domain.ExportRepository
	observer   Observer
	events     *EventBus
	localizer  *i18n.Localizer
	scratchDir string
	presets    []string
	exportDesc string
	exportVer  string
	now        func() time.Time

	processing atomic.Bool

	// mu guards the fields below against concurrent readers. Mutators are already serialized by processing.
	mu      sync.RWMutex
	session *session.Session
	video   video.Video
	state   predictor.State
	status  Status
}

func NewOrchestrator(opts Options) (*Orchestrator, error) {
	if opts.Log == nil {
		return nil, fmt.Errorf("orchestrator: a logger is required")
	}
	if opts.Source == nil || opts.Extractor == nil || opts.Predictor == nil {
		return nil, fmt.Errorf("orchestrator: video source, frame extractor and predictor are required")
	}
	o := &Orchestrator{
		log:        opts.Log,
		source:     opts.Source,
		extractor:  opts.Extractor,
		predictor:  opts.Predictor,
		classes:    opts.Classes,
		exports:    opts.Exports,
		observer:   opts.Observer,
		events:     opts.Events,
		scratchDir: opts.ScratchDir,
		presets:    opts.PresetClasses,
		exportDesc: opts.ExportDescription,
		exportVer:  opts.ExportVersion,
		now:        opts.Now,
	}
	if o.observer == nil {
		o.observer = nopObserver{}
	}
	if o.events == nil {
		o.events = NewEventBus()
	}
	if o.scratchDir == "" {
		o.scratchDir = "frames"
	}
	if o.now == nil {
		o.now = time.Now
	}
	lang := opts.Language
	if lang == "" {
		lang = "en"
	}
	o.localizer = NewLocalizer(lang)
	o.status = Status{Message: Localize(o.localizer, "status_ready", nil), Level: StatusInfo}
	return o, nil
}

func (o *Orchestrator) Events() *EventBus {
	return o.events
}

// Processing reports whether an operation is in flight. UIs disable input while it is true.
func (o *Orchestrator) Processing() bool {
	return o.processing.Load()
}

func (o *Orchestrator) Status() Status {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.status
}

// operation tracks one orchestrator call. Events queued on it are emitted
// once the processing flag is released.
type operation struct {
	o      *Orchestrator
	name   string
	msgID  string
	data   map[string]any
	events []Event
}

func (o *Orchestrator) start(name string) (*operation, error) {
	if !o.processing.CompareAndSwap(false, true) {
		o.log.Warnf("orchestrator: %v rejected: another operation is in progress", name)
		o.observer.ObserveOperation(name, domain.ErrBusy)
		o.publishStatus(StatusError, errorMessage(o.localizer, domain.ErrBusy))
		return nil, domain.ErrBusy
	}
	o.observer.SetProcessing(true)
	return &operation{o: o, name: name}, nil
}

func (op *operation) emit(name EventName, value any) {
	op.events = append(op.events, Event{Name: name, Value: value})
}

// info sets the status message published when the operation succeeds
func (op *operation) info(msgID string, data map[string]any) {
	op.msgID = msgID
	op.data = data
}

// progress publishes a status immediately, while the operation is still running
func (op *operation) progress(msgID string, data map[string]any) {
	op.o.publishStatus(StatusInfo, Localize(op.o.localizer, msgID, data))
}

func (op *operation) end(errp *error) {
	o := op.o
	err := *errp
	o.processing.Store(false)
	o.observer.SetProcessing(false)
	o.observer.ObserveOperation(op.name, err)
	if err != nil {
		if errors.Is(err, domain.ErrValidation) {
			o.log.Warnf("orchestrator: %v rejected: %v", op.name, err)
		} else {
			o.log.Errorf("orchestrator: %v failed (%v): %v", op.name, ErrorKind(err), err)
		}
		o.publishStatus(StatusError, errorMessage(o.localizer, err))
		return
	}
	for _, ev := range op.events {
		o.events.Emit(ev.Name, ev.Value)
	}
	if op.msgID != "" {
		msg := Localize(o.localizer, op.msgID, op.data)
		o.log.Infof("orchestrator: %v: %v", op.name, msg)
		o.publishStatus(StatusInfo, msg)
	}
}

func (o *Orchestrator) publishStatus(level StatusLevel, msg string) {
	o.mu.Lock()
	st := Status{Message: msg, Level: level, Processing: o.processing.Load()}
	if o.session != nil {
		st.CurrentFrame = o.session.CurrentFrame()
		st.NeedsPropagation = o.session.NeedsPropagation()
	}
	o.status = st
	o.mu.Unlock()
	o.events.Emit(EventStatusChanged, st)
}

func (o *Orchestrator) current() (*session.Session, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.session == nil {
		return nil, domain.ErrNoVideo
	}
	return o.session, nil
}

// asKind makes sure err matches kind with errors.Is
func asKind(kind, err error) error {
	if errors.Is(err, kind) {
		return err
	}
	return fmt.Errorf("%w: %w", kind, err)
}

// LoadVideo opens a video and starts a new session on it, replacing the
// current one. With preserveObjects the object classes of the current
// session carry over, otherwise the preset and catalog classes are seeded.
// On failure the current session is left untouched.
func (o *Orchestrator) LoadVideo(ctx context.Context, path string, preserveObjects bool) (info domain.VideoInfo, err error) {
	op, err := o.start("load_video")
	if err != nil {
		return info, err
	}
	defer op.end(&err)

	v, err := o.source.Open(ctx, path)
	if err != nil {
		return info, asKind(domain.ErrVideoLoad, err)
	}
	info = v.Info()

	o.mu.RLock()
	prev, old := o.session, o.video
	o.mu.RUnlock()

	id := uuid.NewString()
	var s *session.Session
	if preserveObjects && prev != nil {
		s = session.NewWithClasses(id, info, prev.Classes())
	} else {
		s = session.New(id, info)
		o.seedClasses(ctx, s)
	}

	if old != nil {
		if cerr := old.Close(); cerr != nil {
			o.log.Warnf("orchestrator: while releasing '%v': %v", old.Info().Path, cerr)
		}
	}
	o.mu.Lock()
	o.session = s
	o.video = v
	o.state = ""
	o.mu.Unlock()
	if prev != nil {
		o.dropFrames(prev.ID)
	}

	o.observer.ObserveVideoLoaded()
	o.log.Infof("orchestrator: session %v on '%v' (%vx%v, %v frames, %.2f fps)", id, path, info.Width, info.Height, info.TotalFrames, info.FPS)
	op.emit(EventVideoLoaded, info)
	for _, obj := range s.Objects() {
		op.emit(EventObjectAdded, obj)
	}
	if obj, ok := s.CurrentObject(); ok {
		op.emit(EventObjectSelected, obj)
	}
	op.info("status_video_loaded", map[string]any{
		"Name":   filepath.Base(path),
		"Frames": info.TotalFrames,
		"Width":  info.Width,
		"Height": info.Height,
	})
	return info, nil
}

func (o *Orchestrator) seedClasses(ctx context.Context, s *session.Session) {
	for _, name := range o.presets {
		if _, err := s.AddObject(name, nil); err != nil && !errors.Is(err, domain.ErrDuplicateObjectName) {
			o.log.Warnf("orchestrator: skipping preset class %q: %v", name, err)
		}
	}
	if o.classes == nil {
		return
	}
	catalog, err := o.classes.List(ctx)
	if err != nil {
		o.log.Warnf("orchestrator: while reading class catalog: %v", err)
		return
	}
	for _, class := range catalog {
		color := class.Color
		if _, err := s.AddObject(class.Name, &color); err != nil && !errors.Is(err, domain.ErrDuplicateObjectName) {
			o.log.Warnf("orchestrator: skipping catalog class %q: %v", class.Name, err)
		}
	}
}

// AddObject creates an object class in the current session and remembers it in the catalog
func (o *Orchestrator) AddObject(ctx context.Context, name string) (obj domain.ObjectDefinition, err error) {
	op, err := o.start("add_object")
	if err != nil {
		return obj, err
	}
	defer op.end(&err)

	s, err := o.current()
	if err != nil {
		return obj, err
	}
	o.mu.Lock()
	_, hadSelection := s.CurrentObject()
	obj, err = s.AddObject(name, nil)
	o.mu.Unlock()
	if err != nil {
		return obj, err
	}

	if o.classes != nil {
		if _, cerr := o.classes.Save(ctx, obj.Name, obj.Color); cerr != nil {
			o.log.Warnf("orchestrator: while saving class %q to the catalog: %v", obj.Name, cerr)
		}
	}
	op.emit(EventObjectAdded, obj)
	if !hadSelection {
		op.emit(EventObjectSelected, obj)
	}
	op.info("status_object_added", map[string]any{"Name": obj.Name})
	return obj, nil
}

func (o *Orchestrator) SelectObject(id int) (obj domain.ObjectDefinition, err error) {
	op, err := o.start("select_object")
	if err != nil {
		return obj, err
	}
	defer op.end(&err)

	s, err := o.current()
	if err != nil {
		return obj, err
	}
	o.mu.Lock()
	err = s.SelectObject(id)
	obj, _ = s.Object(id)
	o.mu.Unlock()
	if err != nil {
		return obj, err
	}
	op.emit(EventObjectSelected, obj)
	op.info("status_object_selected", map[string]any{"Name": obj.Name})
	return obj, nil
}

// SelectObjectByName selects by case-insensitive name
func (o *Orchestrator) SelectObjectByName(name string) (domain.ObjectDefinition, error) {
	s, err := o.current()
	if err != nil {
		return domain.ObjectDefinition{}, err
	}
	o.mu.RLock()
	obj, ok := s.ObjectByName(name)
	o.mu.RUnlock()
	if !ok {
		return domain.ObjectDefinition{}, fmt.Errorf("%w: %q", domain.ErrUnknownObject, name)
	}
	return o.SelectObject(obj.ID)
}

// AddPoint clicks a point for the selected object on the current frame and
// recomputes that object's mask on that frame from all of its points there.
// The first point of a session extracts the frames from the current frame on
// and initializes the predictor, anchoring the session at that frame.
func (o *Orchestrator) AddPoint(ctx context.Context, x, y int, label domain.PointLabel) (mask *domain.Mask, err error) {
	op, err := o.start("add_point")
	if err != nil {
		return nil, err
	}
	defer op.end(&err)

	s, err := o.current()
	if err != nil {
		return nil, err
	}
	o.mu.RLock()
	obj, selected := s.CurrentObject()
	frame := s.CurrentFrame()
	info := s.Video()
	initialized := s.Initialized()
	start := s.StartFrame()
	o.mu.RUnlock()

	if !selected {
		return nil, domain.ErrNoObjectSelected
	}
	if !label.Valid() {
		return nil, fmt.Errorf("%w: invalid point label %d", domain.ErrValidation, int(label))
	}
	if x < 0 || y < 0 || x >= info.Width || y >= info.Height {
		return nil, fmt.Errorf("%w: (%d, %d) in a %dx%d frame", domain.ErrPointOutsideFrame, x, y, info.Width, info.Height)
	}
	if initialized && frame < start.Frame {
		return nil, fmt.Errorf("%w: frame %d is before the annotation start frame %d", domain.ErrFrameOutOfRange, frame, start.Frame)
	}
	if !initialized {
		if err := o.initialize(ctx, op, s, frame); err != nil {
			return nil, err
		}
	}

	point := domain.Point{X: x, Y: y, Label: label, FrameIndex: frame, ObjectID: obj.ID}
	o.mu.Lock()
	err = s.AppendPoint(point)
	points := s.PointsFor(frame, obj.ID)
	state := o.state
	start = s.StartFrame()
	o.mu.Unlock()
	if err != nil {
		return nil, err
	}

	mask, err = o.predictPoints(ctx, state, start, frame, obj.ID, points)
	if err != nil {
		o.mu.Lock()
		s.PopPoint()
		// the first point anchors the session only once it is committed
		var uerr error
		if !initialized {
			if uerr = s.Uninitialize(); uerr == nil {
				o.state = ""
			}
		}
		o.mu.Unlock()
		if !initialized && uerr == nil {
			o.dropFrames(s.ID)
		}
		return nil, err
	}
	o.mu.Lock()
	s.SetMask(mask)
	s.SetNeedsPropagation(true)
	o.mu.Unlock()

	op.emit(EventAnnotationAdded, point)
	op.info("status_point_added", map[string]any{"Label": label.String(), "X": x, "Y": y, "Frame": frame})
	return mask, nil
}

func (o *Orchestrator) initialize(ctx context.Context, op *operation, s *session.Session, frame int) error {
	op.progress("status_initializing", map[string]any{"Frame": frame})
	dir := o.framesDir(s.ID)

	o.mu.RLock()
	v := o.video
	o.mu.RUnlock()

	names, err := o.extractor.ExtractFrames(ctx, v, frame, dir)
	if err != nil {
		o.dropFrames(s.ID)
		return asKind(domain.ErrInitialization, err)
	}
	state, err := o.predictor.Initialize(ctx, dir)
	if err != nil {
		o.dropFrames(s.ID)
		return asKind(domain.ErrInitialization, err)
	}

	o.mu.Lock()
	err = s.Initialize(frame, names)
	if err == nil {
		o.state = state
	}
	o.mu.Unlock()
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInitialization, err)
	}
	o.log.Infof("orchestrator: session %v starts at frame %v, %v frames extracted to %v", s.ID, frame, len(names), dir)
	return nil
}

func (o *Orchestrator) predictPoints(ctx context.Context, state predictor.State, start frameindex.Anchor, frame, objectID int, points []domain.Point) (*domain.Mask, error) {
	rel, err := frameindex.ToRelative(frame, start)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrFrameOutOfRange, err)
	}
	coords := make([]predictor.Coordinate, len(points))
	labels := make([]domain.PointLabel, len(points))
	for i, p := range points {
		coords[i] = predictor.Coordinate{X: p.X, Y: p.Y}
		labels[i] = p.Label
	}
	mask, err := o.predictor.AddPoints(ctx, state, rel, objectID, coords, labels)
	if err != nil {
		return nil, asKind(domain.ErrPredictorCall, err)
	}
	if mask == nil {
		return nil, fmt.Errorf("%w: predictor returned no mask for object %d on frame %d", domain.ErrPredictorCall, objectID, frame)
	}
	mask.FrameIndex = frame
	mask.ObjectID = objectID
	return mask, nil
}

// UndoPoint removes the most recent point and recomputes the mask of its
// (frame, object) pair from the points left there. When none are left the
// pair gets back the mask it had before the point was added, or none.
func (o *Orchestrator) UndoPoint(ctx context.Context) (point domain.Point, err error) {
	op, err := o.start("undo_point")
	if err != nil {
		return point, err
	}
	defer op.end(&err)

	s, err := o.current()
	if err != nil {
		return point, err
	}
	o.mu.RLock()
	points := s.Points()
	state := o.state
	start := s.StartFrame()
	o.mu.RUnlock()
	if len(points) == 0 {
		return point, domain.ErrNothingToUndo
	}

	point = points[len(points)-1]
	var remaining []domain.Point
	for _, p := range points[:len(points)-1] {
		if p.FrameIndex == point.FrameIndex && p.ObjectID == point.ObjectID {
			remaining = append(remaining, p)
		}
	}
	var mask *domain.Mask
	if len(remaining) > 0 {
		mask, err = o.predictPoints(ctx, state, start, point.FrameIndex, point.ObjectID, remaining)
		if err != nil {
			return point, err
		}
	}

	o.mu.Lock()
	_, replaced, _ := s.PopPoint()
	switch {
	case mask != nil:
		s.SetMask(mask)
	case replaced != nil:
		s.SetMask(replaced)
	default:
		s.DeleteMask(point.FrameIndex, point.ObjectID)
	}
	s.SetNeedsPropagation(true)
	o.mu.Unlock()

	op.emit(EventAnnotationRemoved, point)
	op.info("status_point_removed", map[string]any{"X": point.X, "Y": point.Y, "Frame": point.FrameIndex})
	return point, nil
}

// Navigate moves to target, clamped to the video. Pending points are
// propagated first; if that fails the frame does not change.
func (o *Orchestrator) Navigate(ctx context.Context, target int) (int, error) {
	return o.navigate(ctx, "navigate", func(int) int { return target })
}

// Step moves delta frames from the current one
func (o *Orchestrator) Step(ctx context.Context, delta int) (int, error) {
	return o.navigate(ctx, "step", func(cur int) int { return cur + delta })
}

func (o *Orchestrator) Next(ctx context.Context) (int, error) {
	return o.Step(ctx, 1)
}

func (o *Orchestrator) Previous(ctx context.Context) (int, error) {
	return o.Step(ctx, -1)
}

func (o *Orchestrator) navigate(ctx context.Context, name string, target func(cur int) int) (frame int, err error) {
	op, err := o.start(name)
	if err != nil {
		return 0, err
	}
	defer op.end(&err)

	s, err := o.current()
	if err != nil {
		return 0, err
	}
	o.mu.RLock()
	info := s.Video()
	cur := s.CurrentFrame()
	pending := s.NeedsPropagation() && s.Initialized()
	o.mu.RUnlock()

	frame = info.ClampFrame(target(cur))
	if frame == cur {
		return cur, nil
	}
	if pending {
		if _, err := o.propagate(ctx, op, s); err != nil {
			return cur, err
		}
	}
	o.mu.Lock()
	err = s.SetCurrentFrame(frame)
	o.mu.Unlock()
	if err != nil {
		return cur, err
	}
	op.info("status_frame", map[string]any{"Frame": frame, "Total": info.TotalFrames})
	return frame, nil
}

// Propagate forces a propagation run and returns the number of masks written
func (o *Orchestrator) Propagate(ctx context.Context) (n int, err error) {
	op, err := o.start("propagate")
	if err != nil {
		return 0, err
	}
	defer op.end(&err)

	s, err := o.current()
	if err != nil {
		return 0, err
	}
	o.mu.Lock()
	initialized := s.Initialized()
	if initialized {
		s.SetNeedsPropagation(true)
	}
	o.mu.Unlock()
	if !initialized {
		return 0, domain.ErrNotInitialized
	}
	return o.propagate(ctx, op, s)
}

// propagate stores every mask of a propagation run under its absolute frame.
// A result that does not fit the extracted frames is rejected whole.
func (o *Orchestrator) propagate(ctx context.Context, op *operation, s *session.Session) (int, error) {
	op.progress("status_propagating", nil)

	o.mu.RLock()
	state := o.state
	start := s.StartFrame()
	frames := len(s.FramePaths())
	o.mu.RUnlock()

	result, err := o.predictor.Propagate(ctx, state)
	if err != nil {
		return 0, asKind(domain.ErrPredictorCall, err)
	}

	masks := make([]*domain.Mask, 0, result.MaskCount())
	for rel, objs := range result {
		if rel >= frames {
			return 0, fmt.Errorf("%w: propagated frame %d is outside the %d extracted frames", domain.ErrPredictorCall, rel, frames)
		}
		abs, err := frameindex.ToAbsolute(rel, start)
		if err != nil {
			return 0, fmt.Errorf("%w: %w", domain.ErrPredictorCall, err)
		}
		for id, m := range objs {
			if m == nil {
				continue
			}
			if _, ok := s.Object(id); !ok {
				return 0, fmt.Errorf("%w: propagated mask for unknown object %d", domain.ErrPredictorCall, id)
			}
			m.FrameIndex = abs
			m.ObjectID = id
			masks = append(masks, m)
		}
	}

	o.mu.Lock()
	for _, m := range masks {
		s.SetMask(m)
	}
	s.SetNeedsPropagation(false)
	o.mu.Unlock()

	o.log.Infof("orchestrator: propagated %v masks over %v frames", len(masks), len(result))
	op.info("status_propagated", map[string]any{"Masks": len(masks)})
	return len(masks), nil
}

type ExportResult struct {
	Path        string               `json:"path"`
	Checksum    string               `json:"checksum"`
	Images      int                  `json:"images"`
	Annotations int                  `json:"annotations"`
	Categories  int                  `json:"categories"`
	Record      *domain.ExportRecord `json:"record,omitempty"`
}

// Export writes the session's masks as a detection dataset. With endFrame set
// only masks up to and including it are written. Nothing is written on failure.
func (o *Orchestrator) Export(ctx context.Context, path string, endFrame *int) (res *ExportResult, err error) {
	op, err := o.start("export")
	if err != nil {
		return nil, err
	}
	defer op.end(&err)
	defer func() { o.observer.ObserveExport(err) }()

	s, err := o.current()
	if err != nil {
		return nil, err
	}
	if path == "" {
		return nil, fmt.Errorf("%w: export path is empty", domain.ErrValidation)
	}

	o.mu.RLock()
	ds, err := coco.Build(s, coco.Options{
		EndFrame:    endFrame,
		Description: o.exportDesc,
		Version:     o.exportVer,
		Now:         o.now,
	})
	info := s.Video()
	o.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	checksum, err := ds.WriteFile(path)
	if err != nil {
		return nil, err
	}
	res = &ExportResult{
		Path:        path,
		Checksum:    checksum,
		Images:      len(ds.Images),
		Annotations: len(ds.Annotations),
		Categories:  len(ds.Categories),
	}
	if o.exports != nil {
		rec, rerr := o.exports.Create(ctx, &domain.ExportRecord{
			SessionID:   s.ID,
			VideoPath:   info.Path,
			OutputPath:  path,
			EndFrame:    endFrame,
			Images:      res.Images,
			Annotations: res.Annotations,
			Categories:  res.Categories,
			Checksum:    checksum,
			CreatedAt:   o.now(),
		})
		if rerr != nil {
			o.log.Errorf("orchestrator: export written to '%v' but not recorded in history: %v", path, rerr)
		} else {
			res.Record = rec
		}
	}
	op.info("status_exported", map[string]any{"Annotations": res.Annotations, "Images": res.Images, "Path": path})
	return res, nil
}

// SessionView is a read-only copy of the session state
type SessionView struct {
	ID               string                    `json:"id"`
	Video            domain.VideoInfo          `json:"video"`
	StartFrame       *int                      `json:"startFrame"`
	CurrentFrame     int                       `json:"currentFrame"`
	Initialized      bool                      `json:"initialized"`
	NeedsPropagation bool                      `json:"needsPropagation"`
	Processing       bool                      `json:"processing"`
	Objects          []domain.ObjectDefinition `json:"objects"`
	CurrentObjectID  *int                      `json:"currentObjectId"`
	Points           []domain.Point            `json:"points"`
	MaskFrames       []int                     `json:"maskFrames"`
	MaskCount        int                       `json:"maskCount"`
	HasAnnotations   bool                      `json:"hasAnnotations"`
	Status           Status                    `json:"status"`
}

// Snapshot returns the current session state, or false when no video is loaded
func (o *Orchestrator) Snapshot() (*SessionView, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	s := o.session
	if s == nil {
		return nil, false
	}
	view := &SessionView{
		ID:               s.ID,
		Video:            s.Video(),
		CurrentFrame:     s.CurrentFrame(),
		Initialized:      s.Initialized(),
		NeedsPropagation: s.NeedsPropagation(),
		Processing:       o.processing.Load(),
		Objects:          s.Objects(),
		Points:           s.Points(),
		MaskFrames:       s.MaskFrames(),
		MaskCount:        s.MaskCount(),
		HasAnnotations:   s.HasAnnotations(),
		Status:           o.status,
	}
	if start := s.StartFrame(); start.Valid {
		f := start.Frame
		view.StartFrame = &f
	}
	if obj, ok := s.CurrentObject(); ok {
		id := obj.ID
		view.CurrentObjectID = &id
	}
	if view.Points == nil {
		view.Points = []domain.Point{}
	}
	return view, true
}

// Objects lists the object classes of the current session
func (o *Orchestrator) Objects() []domain.ObjectDefinition {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.session == nil {
		return nil
	}
	return o.session.Objects()
}

func (o *Orchestrator) CurrentFrame() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.session == nil {
		return 0
	}
	return o.session.CurrentFrame()
}

// MasksOnFrame returns the masks of an absolute frame, ordered by object id
func (o *Orchestrator) MasksOnFrame(frame int) ([]*domain.Mask, error) {
	s, err := o.current()
	if err != nil {
		return nil, err
	}
	o.mu.RLock()
	defer o.mu.RUnlock()
	if frame < 0 || frame >= s.Video().TotalFrames {
		return nil, fmt.Errorf("%w: frame %d", domain.ErrFrameOutOfRange, frame)
	}
	return s.MasksOnFrame(frame), nil
}

func (o *Orchestrator) PointsOnFrame(frame int) ([]domain.Point, error) {
	s, err := o.current()
	if err != nil {
		return nil, err
	}
	o.mu.RLock()
	defer o.mu.RUnlock()
	return s.PointsOnFrame(frame), nil
}

// FramePath resolves the extracted image of an absolute frame
func (o *Orchestrator) FramePath(frame int) (string, error) {
	s, err := o.current()
	if err != nil {
		return "", err
	}
	o.mu.RLock()
	defer o.mu.RUnlock()
	name, err := s.FramePath(frame)
	if err != nil {
		return "", err
	}
	return filepath.Join(o.framesDir(s.ID), name), nil
}

// framesDir is the scratch directory owned by one session
func (o *Orchestrator) framesDir(sessionID string) string {
	return filepath.Join(o.scratchDir, sessionID)
}

// dropFrames removes the frames extracted for a session. Exports only name
// the files, so nothing written refers to them.
func (o *Orchestrator) dropFrames(sessionID string) {
	dir := o.framesDir(sessionID)
	if err := os.RemoveAll(dir); err != nil {
		o.log.Warnf("orchestrator: while removing frames in '%v': %v", dir, err)
	}
}

// Close releases the video and removes the current session's frames
func (o *Orchestrator) Close() error {
	o.mu.Lock()
	v := o.video
	o.video = nil
	var id string
	if o.session != nil {
		id = o.session.ID
	}
	o.mu.Unlock()
	if id != "" {
		o.dropFrames(id)
	}
	if v == nil {
		return nil
	}
	return v.Close()
}
