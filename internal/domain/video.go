package domain

import "time"

// VideoInfo describes a video opened by a session
type VideoInfo struct {
	Path        string  `json:"path"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	FPS         float64 `json:"fps"`
	TotalFrames int     `json:"totalFrames"`
}

func (v VideoInfo) Duration() time.Duration {
	if v.FPS <= 0 {
		return 0
	}
	return time.Duration(float64(v.TotalFrames) / v.FPS * float64(time.Second))
}

// FrameTime is the presentation time of a frame
func (v VideoInfo) FrameTime(frame int) time.Duration {
	if v.FPS <= 0 {
		return 0
	}
	return time.Duration(float64(frame) / v.FPS * float64(time.Second))
}

// ClampFrame limits a frame index to [0, TotalFrames-1]
func (v VideoInfo) ClampFrame(frame int) int {
	if frame >= v.TotalFrames {
		frame = v.TotalFrames - 1
	}
	if frame < 0 {
		frame = 0
	}
	return frame
}
