package video

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/lewtec/rotulador-video/internal/domain"
)

// FFmpeg probes videos with ffprobe and extracts frames with ffmpeg
type FFmpeg struct {
	FFmpegPath  string
	FFprobePath string
	JPEGQuality int // ffmpeg -q:v, 2 (best) to 31
}

func NewFFmpeg(ffmpegPath, ffprobePath string, quality int) *FFmpeg {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	if quality <= 0 {
		quality = 2
	}
	return &FFmpeg{FFmpegPath: ffmpegPath, FFprobePath: ffprobePath, JPEGQuality: quality}
}

type fileVideo struct {
	info domain.VideoInfo
	file *os.File
}

func (v *fileVideo) Info() domain.VideoInfo {
	return v.info
}

func (v *fileVideo) Close() error {
	if v.file == nil {
		return nil
	}
	err := v.file.Close()
	v.file = nil
	return err
}

// Open keeps a handle on the file until Close so it cannot be swapped underneath the session
func (f *FFmpeg) Open(ctx context.Context, path string) (Video, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrVideoLoad, err)
	}
	out, err := runApp(ctx, f.FFprobePath,
		"-v", "error",
		"-select_streams", "v:0",
		"-count_packets",
		"-show_entries", "stream=width,height,r_frame_rate,avg_frame_rate,nb_frames,nb_read_packets",
		"-of", "json",
		path,
	)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("%w: %w", domain.ErrVideoLoad, err)
	}
	info, err := parseProbe(out)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("%w: while probing '%s': %w", domain.ErrVideoLoad, path, err)
	}
	info.Path = path
	return &fileVideo{info: info, file: file}, nil
}

func (f *FFmpeg) ExtractFrames(ctx context.Context, v Video, fromFrame int, dir string) ([]string, error) {
	info := v.Info()
	if fromFrame < 0 || fromFrame >= info.TotalFrames {
		return nil, fmt.Errorf("%w: start frame %d outside video of %d frames", domain.ErrInitialization, fromFrame, info.TotalFrames)
	}
	if err := PrepareScratchDir(dir); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInitialization, err)
	}
	_, err := runApp(ctx, f.FFmpegPath,
		"-v", "error",
		"-i", info.Path,
		"-vf", fmt.Sprintf(`select=gte(n\,%d)`, fromFrame),
		"-vsync", "0",
		"-q:v", strconv.Itoa(f.JPEGQuality),
		"-start_number", "0",
		filepath.Join(dir, "%05d"+frameExt),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInitialization, err)
	}
	names, err := ListFrames(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInitialization, err)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: ffmpeg wrote no frames to '%s'", domain.ErrInitialization, dir)
	}
	if _, err := VerifyFrame(filepath.Join(dir, names[0])); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInitialization, err)
	}
	return names, nil
}

// runApp runs an executable and returns its stdout. Stderr is attached to the error.
func runApp(ctx context.Context, app string, args ...string) ([]byte, error) {
	appPath, err := exec.LookPath(app)
	if err != nil {
		return nil, fmt.Errorf("unable to find '%v' in your path (%w)", app, err)
	}
	cmd := exec.CommandContext(ctx, appPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%v execution failed: %w (%v)", app, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

type probeOutput struct {
	Streams []struct {
		Width         int    `json:"width"`
		Height        int    `json:"height"`
		RFrameRate    string `json:"r_frame_rate"`
		AvgFrameRate  string `json:"avg_frame_rate"`
		NbFrames      string `json:"nb_frames"`
		NbReadPackets string `json:"nb_read_packets"`
	} `json:"streams"`
}

func parseProbe(data []byte) (domain.VideoInfo, error) {
	var probe probeOutput
	if err := json.Unmarshal(data, &probe); err != nil {
		return domain.VideoInfo{}, err
	}
	if len(probe.Streams) == 0 {
		return domain.VideoInfo{}, fmt.Errorf("no video stream")
	}
	s := probe.Streams[0]
	info := domain.VideoInfo{Width: s.Width, Height: s.Height}
	if fps, err := parseRate(s.AvgFrameRate); err == nil && fps > 0 {
		info.FPS = fps
	} else if fps, err := parseRate(s.RFrameRate); err == nil {
		info.FPS = fps
	}
	if n, err := strconv.Atoi(s.NbFrames); err == nil && n > 0 {
		info.TotalFrames = n
	} else if n, err := strconv.Atoi(s.NbReadPackets); err == nil {
		info.TotalFrames = n
	}
	if info.Width <= 0 || info.Height <= 0 {
		return info, fmt.Errorf("invalid frame size %dx%d", info.Width, info.Height)
	}
	if info.TotalFrames <= 0 {
		return info, fmt.Errorf("video has no frames")
	}
	return info, nil
}

// parseRate parses ffprobe rationals such as "30000/1001"
func parseRate(s string) (float64, error) {
	num, den, found := strings.Cut(s, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, err
	}
	if !found {
		return n, nil
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil {
		return 0, err
	}
	if d == 0 {
		return 0, fmt.Errorf("zero denominator in rate %q", s)
	}
	return n / d, nil
}

var (
	_ Source    = (*FFmpeg)(nil)
	_ Extractor = (*FFmpeg)(nil)
)
