// Package coco maps an annotation session onto a COCO-style detection dataset.
package coco

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/lewtec/rotulador-video/internal/domain"
	"github.com/lewtec/rotulador-video/internal/frameindex"
)

const Supercategory = "object"

// Source is the read side of a session that the exporter needs
type Source interface {
	Video() domain.VideoInfo
	Objects() []domain.ObjectDefinition
	StartFrame() frameindex.Anchor
	FramePaths() []string
	MaskFrames() []int
	MasksOnFrame(frame int) []*domain.Mask
}

type Dataset struct {
	Info        Info         `json:"info"`
	Images      []Image      `json:"images"`
	Categories  []Category   `json:"categories"`
	Annotations []Annotation `json:"annotations"`
}

type Info struct {
	Description string `json:"description"`
	Version     string `json:"version"`
	CreatedAt   string `json:"createdAt"`
}

type Image struct {
	ID       int    `json:"id"`
	FileName string `json:"fileName"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

type Category struct {
	ID            int    `json:"id"`
	Name          string `json:"name"`
	Supercategory string `json:"supercategory"`
}

type Annotation struct {
	ID           int    `json:"id"`
	ImageID      int    `json:"imageId"`
	CategoryID   int    `json:"categoryId"`
	BBox         [4]int `json:"bbox"`
	Area         int    `json:"area"`
	IsCrowd      int    `json:"isCrowd"`
	Segmentation any    `json:"segmentation"`
}

type Options struct {
	// EndFrame limits the export to masks on frames up to and including it
	EndFrame    *int
	Description string
	Version     string
	Now         func() time.Time
}

// Build walks the masks in increasing frame order, then increasing object id.
// Image and annotation ids are assigned in emission order starting at 1.
func Build(src Source, opts Options) (*Dataset, error) {
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	version := opts.Version
	if version == "" {
		version = "1.0"
	}
	description := opts.Description
	if description == "" {
		description = DefaultDescription(src.Video().Path)
	}

	start := src.StartFrame()
	if opts.EndFrame != nil && start.Valid && *opts.EndFrame < start.Frame {
		return nil, fmt.Errorf("%w: end frame %d is before start frame %d", domain.ErrFrameOutOfRange, *opts.EndFrame, start.Frame)
	}

	ds := &Dataset{
		Info: Info{
			Description: description,
			Version:     version,
			CreatedAt:   now().Format(time.RFC3339),
		},
		Images:      []Image{},
		Categories:  []Category{},
		Annotations: []Annotation{},
	}
	for _, obj := range src.Objects() {
		ds.Categories = append(ds.Categories, Category{ID: obj.ID, Name: obj.Name, Supercategory: Supercategory})
	}

	video := src.Video()
	paths := src.FramePaths()
	imageIDs := map[string]int{}
	for _, frame := range src.MaskFrames() {
		if opts.EndFrame != nil && frame > *opts.EndFrame {
			break
		}
		rel, err := frameindex.ToRelative(frame, start)
		if err != nil {
			return nil, fmt.Errorf("%w: mask on frame %d: %w", domain.ErrExport, frame, err)
		}
		if rel >= len(paths) {
			return nil, fmt.Errorf("%w: mask on frame %d is outside the %d extracted frames", domain.ErrExport, frame, len(paths))
		}
		fileName := filepath.Base(paths[rel])
		for _, mask := range src.MasksOnFrame(frame) {
			imageID, ok := imageIDs[fileName]
			if !ok {
				width, height := mask.Width, mask.Height
				if width == 0 || height == 0 {
					width, height = video.Width, video.Height
				}
				imageID = len(ds.Images) + 1
				imageIDs[fileName] = imageID
				ds.Images = append(ds.Images, Image{ID: imageID, FileName: fileName, Width: width, Height: height})
			}
			box := mask.BoundingBox()
			ds.Annotations = append(ds.Annotations, Annotation{
				ID:         len(ds.Annotations) + 1,
				ImageID:    imageID,
				CategoryID: mask.ObjectID,
				BBox:       [4]int{box.X, box.Y, box.Width, box.Height},
				Area:       box.Area(),
			})
		}
	}
	return ds, nil
}

// DefaultDescription names a dataset after its video file
func DefaultDescription(videoPath string) string {
	if videoPath == "" {
		return "Video annotation dataset"
	}
	base := filepath.Base(videoPath)
	return fmt.Sprintf("%s annotations", base[:len(base)-len(filepath.Ext(base))])
}
