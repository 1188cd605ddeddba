// Package video opens videos and extracts their frames to image files for the predictor.
package video

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/lewtec/rotulador-video/internal/domain"
)

// Video is an opened video. It is owned by one session and released with Close.
type Video interface {
	Info() domain.VideoInfo
	Close() error
}

type Source interface {
	Open(ctx context.Context, path string) (Video, error)
}

// Extractor writes frames fromFrame..end of v into dir as FrameFileName(0), FrameFileName(1), ...
// replacing whatever dir held before, and returns the file names in order.
type Extractor interface {
	ExtractFrames(ctx context.Context, v Video, fromFrame int, dir string) ([]string, error)
}

const frameExt = ".jpg"

// FrameFileName is the name of the i-th extracted frame, relative to the extraction start
func FrameFileName(i int) string {
	return fmt.Sprintf("%05d%s", i, frameExt)
}

// PrepareScratchDir creates dir, or empties it if it exists
func PrepareScratchDir(dir string) error {
	if err := os.MkdirAll(dir, 0777); err != nil {
		return fmt.Errorf("while creating scratch directory '%s': %w", dir, err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("while listing scratch directory '%s': %w", dir, err)
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return fmt.Errorf("while clearing scratch directory '%s': %w", dir, err)
		}
	}
	return nil
}

// ListFrames returns the image files of dir sorted by name
func ListFrames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".jpg", ".jpeg", ".png":
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)
	return names, nil
}

// VerifyFrame checks that an extracted file decodes as an image
func VerifyFrame(path string) (image.Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return image.Config{}, err
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return image.Config{}, fmt.Errorf("while decoding '%s': %w", path, err)
	}
	return cfg, nil
}
