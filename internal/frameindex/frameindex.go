// Package frameindex converts between video-absolute frame numbers and the
// annotation-relative numbers used by the predictor. Relative frame 0 is the
// frame the first point of a session was placed on.
package frameindex

import (
	"errors"
	"fmt"
)

var (
	ErrUnanchored    = errors.New("start frame is not set")
	ErrNegativeFrame = errors.New("frame index is negative")
)

// Anchor is the absolute frame that relative frame 0 maps to. The zero value is unset.
type Anchor struct {
	Frame int
	Valid bool
}

func At(frame int) Anchor {
	return Anchor{Frame: frame, Valid: true}
}

func (a Anchor) String() string {
	if !a.Valid {
		return "unset"
	}
	return fmt.Sprintf("%d", a.Frame)
}

func ToRelative(absolute int, start Anchor) (int, error) {
	if !start.Valid {
		return 0, ErrUnanchored
	}
	rel := absolute - start.Frame
	if rel < 0 {
		return 0, fmt.Errorf("%w: absolute frame %d is before start frame %d", ErrNegativeFrame, absolute, start.Frame)
	}
	return rel, nil
}

func ToAbsolute(relative int, start Anchor) (int, error) {
	if !start.Valid {
		return 0, ErrUnanchored
	}
	abs := relative + start.Frame
	if abs < 0 || relative < 0 {
		return 0, fmt.Errorf("%w: relative frame %d from start frame %d", ErrNegativeFrame, relative, start.Frame)
	}
	return abs, nil
}
