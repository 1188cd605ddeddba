package annotation

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/lewtec/rotulador-video/internal/domain"
)

type Config struct {
	Meta struct {
		Description string `yaml:"description"`
	} `yaml:"meta"`
	Video     ConfigVideo     `yaml:"video"`
	Predictor ConfigPredictor `yaml:"predictor"`
	Classes   []string        `yaml:"classes"`
	Export    ConfigExport    `yaml:"export"`
	Language  string          `yaml:"language"`
	Database  string          `yaml:"database"`
}

type ConfigVideo struct {
	FFmpeg      string `yaml:"ffmpeg"`
	FFprobe     string `yaml:"ffprobe"`
	ScratchDir  string `yaml:"scratch_dir"`
	JPEGQuality int    `yaml:"jpeg_quality"`
}

type ConfigPredictor struct {
	URL string `yaml:"url"`
}

type ConfigExport struct {
	Description string `yaml:"description"`
	Version     string `yaml:"version"`
}

// Environment overrides, applied after the file is read
const (
	EnvPredictorURL = "ROTULADOR_PREDICTOR_URL"
	EnvScratchDir   = "ROTULADOR_SCRATCH_DIR"
	EnvDatabase     = "ROTULADOR_DATABASE"
	EnvLanguage     = "ROTULADOR_LANGUAGE"
)

var SupportedLanguages = []string{"en", "pt-BR"}

func DefaultConfig() *Config {
	var c Config
	c.applyDefaults()
	return &c
}

// LoadConfig reads a YAML config. A .env file next to the current directory is loaded first when present.
func LoadConfig(filename string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("while loading .env: %w", err)
	}
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseConfig(f, filepath.Dir(filename))
}

// ParseConfig decodes a config. Relative paths are resolved against baseDir.
func ParseConfig(r io.Reader, baseDir string) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var ret Config
	if err := yaml.Unmarshal(data, &ret); err != nil {
		return nil, fmt.Errorf("while parsing config: %w", err)
	}
	ret.applyEnv()
	ret.applyDefaults()
	if baseDir != "" {
		ret.Video.ScratchDir = resolvePath(baseDir, ret.Video.ScratchDir)
		ret.Database = resolvePath(baseDir, ret.Database)
	}
	if err := ret.Validate(); err != nil {
		return nil, err
	}
	return &ret, nil
}

func resolvePath(baseDir, p string) string {
	if p == "" || p == ":memory:" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(baseDir, p)
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvPredictorURL); v != "" {
		c.Predictor.URL = v
	}
	if v := os.Getenv(EnvScratchDir); v != "" {
		c.Video.ScratchDir = v
	}
	if v := os.Getenv(EnvDatabase); v != "" {
		c.Database = v
	}
	if v := os.Getenv(EnvLanguage); v != "" {
		c.Language = v
	}
}

func (c *Config) applyDefaults() {
	if c.Video.FFmpeg == "" {
		c.Video.FFmpeg = "ffmpeg"
	}
	if c.Video.FFprobe == "" {
		c.Video.FFprobe = "ffprobe"
	}
	if c.Video.ScratchDir == "" {
		c.Video.ScratchDir = "frames"
	}
	if c.Video.JPEGQuality == 0 {
		c.Video.JPEGQuality = 2
	}
	if c.Predictor.URL == "" {
		c.Predictor.URL = "http://localhost:8000"
	}
	if c.Export.Version == "" {
		c.Export.Version = "1.0"
	}
	if c.Language == "" {
		c.Language = "en"
	}
	if c.Database == "" {
		c.Database = "annotations.db"
	}
}

func (c *Config) Validate() error {
	seen := map[string]bool{}
	for _, name := range c.Classes {
		key := domain.NameKey(name)
		if key == "" {
			return fmt.Errorf("config: class names cannot be empty")
		}
		if seen[key] {
			return fmt.Errorf("config: class %q is listed more than once", name)
		}
		seen[key] = true
	}
	supported := false
	for _, lang := range SupportedLanguages {
		if lang == c.Language {
			supported = true
		}
	}
	if !supported {
		return fmt.Errorf("config: unsupported language %q, expected one of %v", c.Language, SupportedLanguages)
	}
	u, err := url.Parse(c.Predictor.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("config: invalid predictor url %q", c.Predictor.URL)
	}
	if c.Video.JPEGQuality < 2 || c.Video.JPEGQuality > 31 {
		return fmt.Errorf("config: jpeg_quality must be between 2 and 31, got %d", c.Video.JPEGQuality)
	}
	return nil
}

const SampleConfig = `# rotulador-video configuration
meta:
  description: |
    Label every block the robot arm picks up.

video:
  ffmpeg: ffmpeg
  ffprobe: ffprobe
  # extracted frames go to <scratch_dir>/<session id>/00000.jpg ...
  scratch_dir: frames
  jpeg_quality: 2

predictor:
  # segmentation service exposing POST /init, /points and /propagate
  url: http://localhost:8000

# classes added to every new session
classes:
  - block

export:
  description: ""
  version: "1.0"

# en | pt-BR
language: en

# class catalog and export history
database: annotations.db
`
