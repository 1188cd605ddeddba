// Package session holds the state of one video annotation session: object
// classes, operator points, per-frame masks and the frame bookkeeping that
// anchors relative predictor frames to absolute video frames.
//
// A Session is not safe for concurrent use; the orchestrator serializes access.
package session

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/lewtec/rotulador-video/internal/domain"
	"github.com/lewtec/rotulador-video/internal/frameindex"
)

var ErrAlreadyStarted = errors.New("session start frame is already set")

// Session is the annotation store for a single video
type Session struct {
	ID string

	video            domain.VideoInfo
	start            frameindex.Anchor
	currentFrame     int
	points           []domain.Point
	replaced         []*domain.Mask // parallel to points: the mask a point's key held before the point was added
	masks            map[int]map[int]*domain.Mask
	framePaths       []string
	initialized      bool
	needsPropagation bool

	objects         map[int]*domain.ObjectDefinition
	currentObjectID int // 0 when unset, ids start at 1
	nextObjectID    int
}

// Classes is the object bookkeeping an operator may carry from one video to the next
type Classes struct {
	Objects         []domain.ObjectDefinition
	CurrentObjectID int
	NextObjectID    int
}

func New(id string, video domain.VideoInfo) *Session {
	return &Session{
		ID:           id,
		video:        video,
		masks:        map[int]map[int]*domain.Mask{},
		objects:      map[int]*domain.ObjectDefinition{},
		nextObjectID: 1,
	}
}

// NewWithClasses starts a session that keeps the object classes of a previous one
func NewWithClasses(id string, video domain.VideoInfo, classes Classes) *Session {
	s := New(id, video)
	for _, obj := range classes.Objects {
		o := obj
		s.objects[o.ID] = &o
		s.nextObjectID = max(s.nextObjectID, o.ID+1)
	}
	s.nextObjectID = max(s.nextObjectID, classes.NextObjectID)
	if _, ok := s.objects[classes.CurrentObjectID]; ok {
		s.currentObjectID = classes.CurrentObjectID
	}
	return s
}

func (s *Session) Classes() Classes {
	return Classes{
		Objects:         s.Objects(),
		CurrentObjectID: s.currentObjectID,
		NextObjectID:    s.nextObjectID,
	}
}

func (s *Session) Video() domain.VideoInfo {
	return s.video
}

func (s *Session) StartFrame() frameindex.Anchor {
	return s.start
}

func (s *Session) CurrentFrame() int {
	return s.currentFrame
}

func (s *Session) SetCurrentFrame(frame int) error {
	if frame < 0 || frame >= s.video.TotalFrames {
		return fmt.Errorf("%w: frame %d not in [0, %d)", domain.ErrFrameOutOfRange, frame, s.video.TotalFrames)
	}
	s.currentFrame = frame
	return nil
}

func (s *Session) Initialized() bool {
	return s.initialized
}

// Initialize anchors the session at start, with framePaths[i] holding absolute frame start+i.
// It can only happen once per session.
func (s *Session) Initialize(start int, framePaths []string) error {
	if s.start.Valid || s.initialized {
		return ErrAlreadyStarted
	}
	if start < 0 || start >= s.video.TotalFrames {
		return fmt.Errorf("%w: start frame %d", domain.ErrFrameOutOfRange, start)
	}
	s.start = frameindex.At(start)
	s.framePaths = slices.Clone(framePaths)
	s.initialized = true
	return nil
}

// Uninitialize drops the anchor of a session that has no committed points yet,
// so the next first point can anchor it elsewhere.
func (s *Session) Uninitialize() error {
	if len(s.points) > 0 {
		return fmt.Errorf("%w: %d points committed", ErrAlreadyStarted, len(s.points))
	}
	s.start = frameindex.Anchor{}
	s.framePaths = nil
	s.initialized = false
	s.needsPropagation = false
	return nil
}

func (s *Session) FramePaths() []string {
	return slices.Clone(s.framePaths)
}

// FramePath resolves the extracted file name for an absolute frame
func (s *Session) FramePath(absolute int) (string, error) {
	rel, err := frameindex.ToRelative(absolute, s.start)
	if err != nil {
		return "", err
	}
	if rel >= len(s.framePaths) {
		return "", fmt.Errorf("%w: frame %d is past the %d extracted frames", domain.ErrFrameOutOfRange, absolute, len(s.framePaths))
	}
	return s.framePaths[rel], nil
}

func (s *Session) NeedsPropagation() bool {
	return s.needsPropagation
}

func (s *Session) SetNeedsPropagation(v bool) {
	s.needsPropagation = v
}

// AddObject creates an object class. A nil color picks one from the palette.
// The first object of a session becomes the selected one.
func (s *Session) AddObject(name string, color *domain.Color) (domain.ObjectDefinition, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.ObjectDefinition{}, domain.ErrEmptyObjectName
	}
	if existing, ok := s.ObjectByName(name); ok {
		return domain.ObjectDefinition{}, fmt.Errorf("%w: %q (id %d)", domain.ErrDuplicateObjectName, existing.Name, existing.ID)
	}
	obj := &domain.ObjectDefinition{ID: s.nextObjectID, Name: name}
	if color != nil {
		obj.Color = *color
	} else {
		obj.Color = domain.PaletteColor(obj.ID)
	}
	s.objects[obj.ID] = obj
	if s.currentObjectID == 0 {
		s.currentObjectID = obj.ID
	}
	s.nextObjectID++
	return *obj, nil
}

func (s *Session) SelectObject(id int) error {
	if _, ok := s.objects[id]; !ok {
		return fmt.Errorf("%w: id %d", domain.ErrUnknownObject, id)
	}
	s.currentObjectID = id
	return nil
}

func (s *Session) Object(id int) (domain.ObjectDefinition, bool) {
	obj, ok := s.objects[id]
	if !ok {
		return domain.ObjectDefinition{}, false
	}
	return *obj, true
}

func (s *Session) ObjectByName(name string) (domain.ObjectDefinition, bool) {
	key := domain.NameKey(name)
	for _, obj := range s.objects {
		if domain.NameKey(obj.Name) == key {
			return *obj, true
		}
	}
	return domain.ObjectDefinition{}, false
}

// Objects returns the object classes ordered by id
func (s *Session) Objects() []domain.ObjectDefinition {
	out := make([]domain.ObjectDefinition, 0, len(s.objects))
	for _, obj := range s.objects {
		out = append(out, *obj)
	}
	slices.SortFunc(out, func(a, b domain.ObjectDefinition) int { return a.ID - b.ID })
	return out
}

func (s *Session) CurrentObject() (domain.ObjectDefinition, bool) {
	if s.currentObjectID == 0 {
		return domain.ObjectDefinition{}, false
	}
	return s.Object(s.currentObjectID)
}

func (s *Session) NextObjectID() int {
	return s.nextObjectID
}

// AppendPoint records a click. The point's object must exist and its frame must be in the video.
func (s *Session) AppendPoint(p domain.Point) error {
	if _, ok := s.objects[p.ObjectID]; !ok {
		return fmt.Errorf("%w: id %d", domain.ErrUnknownObject, p.ObjectID)
	}
	if p.FrameIndex < 0 || p.FrameIndex >= s.video.TotalFrames {
		return fmt.Errorf("%w: frame %d", domain.ErrFrameOutOfRange, p.FrameIndex)
	}
	if !p.Label.Valid() {
		return fmt.Errorf("%w: invalid point label %d", domain.ErrValidation, int(p.Label))
	}
	s.points = append(s.points, p)
	s.replaced = append(s.replaced, s.Mask(p.FrameIndex, p.ObjectID))
	return nil
}

// PopPoint removes the most recent point. It also returns the mask that the
// point's key held before the point was added, which may be nil.
func (s *Session) PopPoint() (domain.Point, *domain.Mask, bool) {
	n := len(s.points)
	if n == 0 {
		return domain.Point{}, nil, false
	}
	p, prev := s.points[n-1], s.replaced[n-1]
	s.points = s.points[:n-1]
	s.replaced = s.replaced[:n-1]
	return p, prev, true
}

func (s *Session) Points() []domain.Point {
	return slices.Clone(s.points)
}

func (s *Session) PointCount() int {
	return len(s.points)
}

func (s *Session) PointsOnFrame(frame int) []domain.Point {
	var out []domain.Point
	for _, p := range s.points {
		if p.FrameIndex == frame {
			out = append(out, p)
		}
	}
	return out
}

// PointsFor returns, in click order, every point for one object on one frame
func (s *Session) PointsFor(frame, objectID int) []domain.Point {
	var out []domain.Point
	for _, p := range s.points {
		if p.FrameIndex == frame && p.ObjectID == objectID {
			out = append(out, p)
		}
	}
	return out
}

// SetMask stores m under (m.FrameIndex, m.ObjectID), replacing any earlier mask for that key
func (s *Session) SetMask(m *domain.Mask) {
	frame, ok := s.masks[m.FrameIndex]
	if !ok {
		frame = map[int]*domain.Mask{}
		s.masks[m.FrameIndex] = frame
	}
	frame[m.ObjectID] = m
}

func (s *Session) DeleteMask(frame, objectID int) {
	masks, ok := s.masks[frame]
	if !ok {
		return
	}
	delete(masks, objectID)
	if len(masks) == 0 {
		delete(s.masks, frame)
	}
}

func (s *Session) Mask(frame, objectID int) *domain.Mask {
	return s.masks[frame][objectID]
}

// MasksOnFrame returns the masks of a frame ordered by object id
func (s *Session) MasksOnFrame(frame int) []*domain.Mask {
	masks := s.masks[frame]
	out := make([]*domain.Mask, 0, len(masks))
	for _, m := range masks {
		out = append(out, m)
	}
	slices.SortFunc(out, func(a, b *domain.Mask) int { return a.ObjectID - b.ObjectID })
	return out
}

// MaskFrames returns the absolute frames that hold at least one mask, ascending
func (s *Session) MaskFrames() []int {
	out := make([]int, 0, len(s.masks))
	for frame := range s.masks {
		out = append(out, frame)
	}
	slices.Sort(out)
	return out
}

func (s *Session) MaskCount() int {
	n := 0
	for _, masks := range s.masks {
		n += len(masks)
	}
	return n
}

// MaskIndex copies the frame -> object -> mask index. Masks are shared, not copied.
func (s *Session) MaskIndex() map[int]map[int]*domain.Mask {
	out := make(map[int]map[int]*domain.Mask, len(s.masks))
	for frame, masks := range s.masks {
		inner := make(map[int]*domain.Mask, len(masks))
		for id, m := range masks {
			inner[id] = m
		}
		out[frame] = inner
	}
	return out
}

func (s *Session) HasAnnotations() bool {
	return len(s.points) > 0 || len(s.masks) > 0
}
