package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/cyclopcam/logs"
	"github.com/spf13/cobra"

	"github.com/lewtec/rotulador-video/annotation"
	"github.com/lewtec/rotulador-video/internal/metrics"
	"github.com/lewtec/rotulador-video/internal/predictor"
	"github.com/lewtec/rotulador-video/internal/repository"
	"github.com/lewtec/rotulador-video/internal/video"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "rotulador-video",
	Short: "Label objects in videos with point prompts and export detection datasets",
	Long: strings.TrimSpace(`
Click a few points on an object, let the segmentation model follow it through the
rest of the video and export the masks as a COCO style dataset.
    `),
	SilenceUsage: true,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "config.yaml", "Config file of the project")
}

// The media and predictor backends are swapped out in tests
var (
	newMediaBackend = func(cfg *annotation.Config) (video.Source, video.Extractor) {
		ff := video.NewFFmpeg(cfg.Video.FFmpeg, cfg.Video.FFprobe, cfg.Video.JPEGQuality)
		return ff, ff
	}
	newPredictor = func(cfg *annotation.Config) (predictor.Gateway, error) {
		return predictor.NewHTTPGateway(cfg.Predictor.URL)
	}
	newLogger = func() (logs.Log, error) {
		return logs.NewLog()
	}
)

// project is everything a command needs to run an annotation session
type project struct {
	ConfigFile   string
	Config       *annotation.Config
	Log          logs.Log
	DB           *sql.DB
	Metrics      *metrics.Metrics
	Classes      *repository.ClassRepository
	Exports      *repository.ExportRepository
	Orchestrator *annotation.Orchestrator
}

func loadConfig(cmd *cobra.Command) (string, *annotation.Config, error) {
	configFile, err := cmd.Flags().GetString("config")
	if err != nil {
		return "", nil, err
	}
	config, err := annotation.LoadConfig(configFile)
	if err != nil {
		return "", nil, fmt.Errorf("failed to load config: %w", err)
	}
	return configFile, config, nil
}

// openStore loads the config and opens the database, without the session machinery
func openStore(cmd *cobra.Command) (*project, error) {
	configFile, config, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	log, err := newLogger()
	if err != nil {
		return nil, err
	}
	db, err := annotation.OpenDatabase(log, config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return &project{
		ConfigFile: configFile,
		Config:     config,
		Log:        log,
		DB:         db,
		Classes:    repository.NewClassRepository(db),
		Exports:    repository.NewExportRepository(db),
	}, nil
}

// openProject wires an orchestrator on top of openStore
func openProject(cmd *cobra.Command) (*project, error) {
	p, err := openStore(cmd)
	if err != nil {
		return nil, err
	}
	gateway, err := newPredictor(p.Config)
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to configure predictor: %w", err)
	}
	p.Metrics = metrics.New()
	source, extractor := newMediaBackend(p.Config)
	p.Orchestrator, err = annotation.NewOrchestrator(annotation.Options{
		Log:               p.Log,
		Source:            source,
		Extractor:         extractor,
		Predictor:         predictor.Instrument(gateway, p.Metrics),
		Classes:           p.Classes,
		Exports:           p.Exports,
		Observer:          p.Metrics,
		ScratchDir:        p.Config.Video.ScratchDir,
		PresetClasses:     p.Config.Classes,
		ExportDescription: p.Config.Export.Description,
		ExportVersion:     p.Config.Export.Version,
		Language:          p.Config.Language,
	})
	if err != nil {
		p.Close()
		return nil, err
	}
	return p, nil
}

func (p *project) Close() {
	if p.Orchestrator != nil {
		if err := p.Orchestrator.Close(); err != nil {
			p.Log.Warnf("while closing video: %v", err)
		}
	}
	p.DB.Close()
}
