// Package videotest provides in-memory video sources for tests that do not have ffmpeg.
package videotest

import (
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"sync"

	"github.com/lewtec/rotulador-video/internal/domain"
	"github.com/lewtec/rotulador-video/internal/video"
)

// Source opens the videos registered in Videos by path
type Source struct {
	mu     sync.Mutex
	Videos map[string]domain.VideoInfo
	open   int
}

func NewSource() *Source {
	return &Source{Videos: map[string]domain.VideoInfo{}}
}

// Add registers a video and returns its path
func (s *Source) Add(path string, width, height, frames int) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Videos[path] = domain.VideoInfo{Path: path, Width: width, Height: height, FPS: 30, TotalFrames: frames}
	return path
}

func (s *Source) Open(ctx context.Context, path string) (video.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	info, ok := s.Videos[path]
	if !ok {
		return nil, fmt.Errorf("%w: no such video '%s'", domain.ErrVideoLoad, path)
	}
	s.open++
	return &fakeVideo{source: s, info: info}, nil
}

// OpenCount is the number of videos opened and not yet closed
func (s *Source) OpenCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

type fakeVideo struct {
	source *Source
	info   domain.VideoInfo
	closed bool
}

func (v *fakeVideo) Info() domain.VideoInfo {
	return v.info
}

func (v *fakeVideo) Close() error {
	v.source.mu.Lock()
	defer v.source.mu.Unlock()
	if !v.closed {
		v.closed = true
		v.source.open--
	}
	return nil
}

// Extractor writes small gray JPEG files in place of decoded frames
type Extractor struct {
	Err error

	mu    sync.Mutex
	calls []Extraction
}

type Extraction struct {
	FromFrame int
	Dir       string
}

func (e *Extractor) ExtractFrames(ctx context.Context, v video.Video, fromFrame int, dir string) ([]string, error) {
	e.mu.Lock()
	e.calls = append(e.calls, Extraction{FromFrame: fromFrame, Dir: dir})
	e.mu.Unlock()
	if e.Err != nil {
		return nil, e.Err
	}
	info := v.Info()
	if fromFrame < 0 || fromFrame >= info.TotalFrames {
		return nil, fmt.Errorf("%w: start frame %d outside video of %d frames", domain.ErrInitialization, fromFrame, info.TotalFrames)
	}
	if err := video.PrepareScratchDir(dir); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInitialization, err)
	}
	img := image.NewGray(image.Rect(0, 0, 4, 4))
	var names []string
	for i := 0; i < info.TotalFrames-fromFrame; i++ {
		name := video.FrameFileName(i)
		if err := writeFrame(filepath.Join(dir, name), img); err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrInitialization, err)
		}
		names = append(names, name)
	}
	return names, nil
}

func (e *Extractor) Calls() []Extraction {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Extraction(nil), e.calls...)
}

func writeFrame(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := jpeg.Encode(f, img, nil); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

var (
	_ video.Source    = (*Source)(nil)
	_ video.Extractor = (*Extractor)(nil)
)
