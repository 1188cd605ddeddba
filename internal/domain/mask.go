package domain

import "fmt"

// Mask is a per-frame, per-object segmentation result. Pixels is a row-major
// boolean grid of Width*Height entries. Masks are replaced, never edited.
type Mask struct {
	ObjectID   int     `json:"objectId"`
	FrameIndex int     `json:"frameIndex"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	Pixels     []bool  `json:"-"`
	Confidence float64 `json:"confidence"`
}

func NewMask(width, height int) *Mask {
	return &Mask{
		Width:      width,
		Height:     height,
		Pixels:     make([]bool, width*height),
		Confidence: 1,
	}
}

func (m *Mask) At(x, y int) bool {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return false
	}
	return m.Pixels[y*m.Width+x]
}

func (m *Mask) Set(x, y int, v bool) {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return
	}
	m.Pixels[y*m.Width+x] = v
}

// FillRect sets every pixel of r that lies inside the mask
func (m *Mask) FillRect(r Rect) {
	for y := r.Y; y < r.Y+r.Height; y++ {
		for x := r.X; x < r.X+r.Width; x++ {
			m.Set(x, y, true)
		}
	}
}

func (m *Mask) Count() int {
	n := 0
	for _, p := range m.Pixels {
		if p {
			n++
		}
	}
	return n
}

// Rect is an axis-aligned pixel box
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (r Rect) Area() int {
	return r.Width * r.Height
}

// BoundingBox returns the tightest box containing every set pixel.
// An empty mask yields the zero Rect.
func (m *Mask) BoundingBox() Rect {
	minX, minY := m.Width, m.Height
	maxX, maxY := -1, -1
	for y := 0; y < m.Height; y++ {
		row := m.Pixels[y*m.Width : (y+1)*m.Width]
		for x, set := range row {
			if !set {
				continue
			}
			minX = min(minX, x)
			maxX = max(maxX, x)
			minY = min(minY, y)
			maxY = max(maxY, y)
		}
	}
	if maxX < 0 {
		return Rect{}
	}
	return Rect{X: minX, Y: minY, Width: maxX - minX + 1, Height: maxY - minY + 1}
}

// Equal compares dimensions, keys and pixels
func (m *Mask) Equal(b *Mask) bool {
	if m == nil || b == nil {
		return m == b
	}
	if m.ObjectID != b.ObjectID || m.FrameIndex != b.FrameIndex || m.Width != b.Width || m.Height != b.Height || m.Confidence != b.Confidence {
		return false
	}
	for i := range m.Pixels {
		if m.Pixels[i] != b.Pixels[i] {
			return false
		}
	}
	return true
}

// Counts run-length encodes the pixels in row-major order. The first run
// counts unset pixels and may be zero; runs then alternate.
func (m *Mask) Counts() []int {
	counts := []int{}
	current := false
	run := 0
	for _, p := range m.Pixels {
		if p != current {
			counts = append(counts, run)
			current = p
			run = 0
		}
		run++
	}
	return append(counts, run)
}

// MaskFromCounts is the inverse of Mask.Counts
func MaskFromCounts(width, height int, counts []int) (*Mask, error) {
	if width < 0 || height < 0 {
		return nil, fmt.Errorf("invalid mask size %dx%d", width, height)
	}
	m := NewMask(width, height)
	pos := 0
	value := false
	for i, c := range counts {
		if c < 0 {
			return nil, fmt.Errorf("negative run length at index %d", i)
		}
		if pos+c > len(m.Pixels) {
			return nil, fmt.Errorf("run lengths exceed mask size %dx%d", width, height)
		}
		if value {
			for j := pos; j < pos+c; j++ {
				m.Pixels[j] = true
			}
		}
		pos += c
		value = !value
	}
	if pos != len(m.Pixels) {
		return nil, fmt.Errorf("run lengths cover %d of %d pixels", pos, len(m.Pixels))
	}
	return m, nil
}
