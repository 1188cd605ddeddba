package session

import (
	"errors"
	"testing"

	"github.com/lewtec/rotulador-video/internal/domain"
	"github.com/stretchr/testify/require"
)

func newTestSession(t *testing.T) *Session {
	t.Helper()
	return New("test", domain.VideoInfo{Path: "clip.mp4", Width: 32, Height: 24, FPS: 30, TotalFrames: 20})
}

func maskAt(frame, object int) *domain.Mask {
	m := domain.NewMask(4, 4)
	m.FrameIndex = frame
	m.ObjectID = object
	return m
}

func TestSession_AddObject(t *testing.T) {
	s := newTestSession(t)

	t.Run("assigns ids from 1 and selects the first object", func(t *testing.T) {
		obj, err := s.AddObject(" block ", nil)
		require.NoError(t, err)
		require.Equal(t, 1, obj.ID)
		require.Equal(t, "block", obj.Name)
		require.Equal(t, domain.PaletteColor(1), obj.Color)

		current, ok := s.CurrentObject()
		require.True(t, ok)
		require.Equal(t, 1, current.ID)
	})

	t.Run("rejects case-insensitive duplicates", func(t *testing.T) {
		_, err := s.AddObject("BLOCK", nil)
		require.True(t, errors.Is(err, domain.ErrDuplicateObjectName))
		require.True(t, errors.Is(err, domain.ErrValidation))
		require.Len(t, s.Objects(), 1)
	})

	t.Run("rejects empty names", func(t *testing.T) {
		_, err := s.AddObject("   ", nil)
		require.True(t, errors.Is(err, domain.ErrEmptyObjectName))
	})

	t.Run("does not change selection for later objects", func(t *testing.T) {
		red := domain.Color{R: 255}
		obj, err := s.AddObject("cup", &red)
		require.NoError(t, err)
		require.Equal(t, 2, obj.ID)
		require.Equal(t, red, obj.Color)
		current, _ := s.CurrentObject()
		require.Equal(t, 1, current.ID)
	})
}

func TestSession_SelectObject(t *testing.T) {
	s := newTestSession(t)
	_, err := s.AddObject("block", nil)
	require.NoError(t, err)
	_, err = s.AddObject("cup", nil)
	require.NoError(t, err)

	require.NoError(t, s.SelectObject(2))
	current, _ := s.CurrentObject()
	require.Equal(t, "cup", current.Name)

	err = s.SelectObject(9)
	require.True(t, errors.Is(err, domain.ErrUnknownObject))
	current, _ = s.CurrentObject()
	require.Equal(t, 2, current.ID)
}

func TestSession_Initialize(t *testing.T) {
	s := newTestSession(t)
	require.False(t, s.StartFrame().Valid)

	require.NoError(t, s.Initialize(5, []string{"00000.jpg", "00001.jpg"}))
	require.True(t, s.Initialized())
	require.Equal(t, 5, s.StartFrame().Frame)

	path, err := s.FramePath(6)
	require.NoError(t, err)
	require.Equal(t, "00001.jpg", path)

	_, err = s.FramePath(7)
	require.True(t, errors.Is(err, domain.ErrFrameOutOfRange))
	_, err = s.FramePath(4)
	require.Error(t, err)

	t.Run("start frame is set only once", func(t *testing.T) {
		err := s.Initialize(8, nil)
		require.True(t, errors.Is(err, ErrAlreadyStarted))
		require.Equal(t, 5, s.StartFrame().Frame)
	})
}

func TestSession_Uninitialize(t *testing.T) {
	s := newTestSession(t)
	_, err := s.AddObject("block", nil)
	require.NoError(t, err)
	require.NoError(t, s.Initialize(5, []string{"00000.jpg"}))

	require.NoError(t, s.Uninitialize())
	require.False(t, s.Initialized())
	require.False(t, s.StartFrame().Valid)
	require.Empty(t, s.FramePaths())

	t.Run("anchors again at another frame", func(t *testing.T) {
		require.NoError(t, s.Initialize(2, []string{"00000.jpg", "00001.jpg"}))
		require.Equal(t, 2, s.StartFrame().Frame)
	})

	t.Run("refused once a point is committed", func(t *testing.T) {
		require.NoError(t, s.AppendPoint(domain.Point{X: 1, Y: 1, Label: domain.Positive, FrameIndex: 2, ObjectID: 1}))
		err := s.Uninitialize()
		require.True(t, errors.Is(err, ErrAlreadyStarted))
		require.Equal(t, 2, s.StartFrame().Frame)
	})
}

func TestSession_Points(t *testing.T) {
	s := newTestSession(t)
	_, _ = s.AddObject("block", nil)
	_, _ = s.AddObject("cup", nil)

	require.NoError(t, s.AppendPoint(domain.Point{X: 1, Y: 1, Label: domain.Positive, FrameIndex: 3, ObjectID: 1}))
	require.NoError(t, s.AppendPoint(domain.Point{X: 2, Y: 2, Label: domain.Negative, FrameIndex: 3, ObjectID: 2}))
	require.NoError(t, s.AppendPoint(domain.Point{X: 3, Y: 3, Label: domain.Positive, FrameIndex: 3, ObjectID: 1}))
	require.NoError(t, s.AppendPoint(domain.Point{X: 4, Y: 4, Label: domain.Positive, FrameIndex: 4, ObjectID: 1}))

	require.Len(t, s.PointsOnFrame(3), 3)
	pts := s.PointsFor(3, 1)
	require.Len(t, pts, 2)
	require.Equal(t, 1, pts[0].X)
	require.Equal(t, 3, pts[1].X)

	t.Run("rejects unknown objects and frames", func(t *testing.T) {
		err := s.AppendPoint(domain.Point{FrameIndex: 3, ObjectID: 7})
		require.True(t, errors.Is(err, domain.ErrUnknownObject))
		err = s.AppendPoint(domain.Point{FrameIndex: 20, ObjectID: 1})
		require.True(t, errors.Is(err, domain.ErrFrameOutOfRange))
		require.Equal(t, 4, s.PointCount())
	})

	t.Run("pops in reverse order with the replaced mask", func(t *testing.T) {
		prior := maskAt(5, 1)
		s.SetMask(prior)
		require.NoError(t, s.AppendPoint(domain.Point{X: 9, Y: 9, FrameIndex: 5, ObjectID: 1, Label: domain.Positive}))

		p, replaced, ok := s.PopPoint()
		require.True(t, ok)
		require.Equal(t, 9, p.X)
		require.Same(t, prior, replaced)

		p, replaced, ok = s.PopPoint()
		require.True(t, ok)
		require.Equal(t, 4, p.X)
		require.Nil(t, replaced)
	})

	t.Run("pop on empty list", func(t *testing.T) {
		empty := newTestSession(t)
		_, _, ok := empty.PopPoint()
		require.False(t, ok)
	})
}

func TestSession_Masks(t *testing.T) {
	s := newTestSession(t)

	s.SetMask(maskAt(9, 2))
	s.SetMask(maskAt(9, 1))
	s.SetMask(maskAt(3, 1))
	require.Equal(t, []int{3, 9}, s.MaskFrames())
	require.Equal(t, 3, s.MaskCount())

	onFrame := s.MasksOnFrame(9)
	require.Len(t, onFrame, 2)
	require.Equal(t, 1, onFrame[0].ObjectID)
	require.Equal(t, 2, onFrame[1].ObjectID)

	t.Run("later writes overwrite", func(t *testing.T) {
		replacement := maskAt(9, 1)
		replacement.Confidence = 0.5
		s.SetMask(replacement)
		require.Same(t, replacement, s.Mask(9, 1))
		require.Equal(t, 3, s.MaskCount())
	})

	t.Run("delete drops empty frames", func(t *testing.T) {
		s.DeleteMask(3, 1)
		require.Equal(t, []int{9}, s.MaskFrames())
		s.DeleteMask(3, 1)
		require.Nil(t, s.Mask(3, 1))
	})

	t.Run("index is a copy", func(t *testing.T) {
		idx := s.MaskIndex()
		delete(idx[9], 1)
		require.NotNil(t, s.Mask(9, 1))
	})
}

func TestNewWithClasses(t *testing.T) {
	first := newTestSession(t)
	_, _ = first.AddObject("block", nil)
	_, _ = first.AddObject("cup", nil)
	require.NoError(t, first.SelectObject(2))

	second := NewWithClasses("next", domain.VideoInfo{TotalFrames: 5}, first.Classes())
	require.Len(t, second.Objects(), 2)
	current, ok := second.CurrentObject()
	require.True(t, ok)
	require.Equal(t, 2, current.ID)

	obj, err := second.AddObject("lid", nil)
	require.NoError(t, err)
	require.Equal(t, 3, obj.ID)
	require.False(t, second.Initialized())
	require.Zero(t, second.PointCount())
}
