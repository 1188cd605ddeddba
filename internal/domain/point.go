package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// PointLabel marks a click as inside (positive) or outside (negative) the object.
// The numeric values are the ones segmentation predictors expect.
type PointLabel int

const (
	Negative PointLabel = 0
	Positive PointLabel = 1
)

func (l PointLabel) String() string {
	switch l {
	case Positive:
		return "positive"
	case Negative:
		return "negative"
	default:
		return fmt.Sprintf("PointLabel(%d)", int(l))
	}
}

func (l PointLabel) Valid() bool {
	return l == Positive || l == Negative
}

// ParsePointLabel accepts the spellings used by the operator console and the HTTP API
func ParsePointLabel(s string) (PointLabel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "+", "1", "pos", "positive":
		return Positive, nil
	case "-", "0", "neg", "negative":
		return Negative, nil
	}
	return Negative, fmt.Errorf("%w: unknown point label %q", ErrValidation, s)
}

func (l PointLabel) MarshalText() ([]byte, error) {
	if !l.Valid() {
		return nil, fmt.Errorf("invalid point label %d", int(l))
	}
	return []byte(l.String()), nil
}

func (l *PointLabel) UnmarshalText(text []byte) error {
	parsed, err := ParsePointLabel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// UnmarshalJSON takes the numeric label predictors use as well as the text forms
func (l *PointLabel) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		if !PointLabel(n).Valid() {
			return fmt.Errorf("%w: unknown point label %d", ErrValidation, n)
		}
		*l = PointLabel(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: point label must be a string or 0/1", ErrValidation)
	}
	return l.UnmarshalText([]byte(s))
}

// Point is a single operator click. FrameIndex is always video-absolute.
type Point struct {
	X          int        `json:"x"`
	Y          int        `json:"y"`
	Label      PointLabel `json:"label"`
	FrameIndex int        `json:"frameIndex"`
	ObjectID   int        `json:"objectId"`
}
