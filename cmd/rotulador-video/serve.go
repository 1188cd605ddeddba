package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/lewtec/rotulador-video/annotation"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the labeling API, event stream and metrics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := openProject(cmd)
		if err != nil {
			return err
		}
		defer p.Close()

		app := &annotation.LabelerApp{
			Orchestrator: p.Orchestrator,
			Config:       p.Config,
			Log:          p.Log,
			Metrics:      p.Metrics,
		}
		defer app.Close()

		addr, _ := cmd.Flags().GetString("addr")
		p.Log.Infof("Configuration: %s", p.ConfigFile)
		p.Log.Infof("Database: %s", p.Config.Database)
		p.Log.Infof("Scratch: %s", p.Config.Video.ScratchDir)
		p.Log.Infof("Predictor: %s", p.Config.Predictor.URL)
		p.Log.Infof("Preset classes: %d", len(p.Config.Classes))
		for _, class := range p.Config.Classes {
			p.Log.Infof("  - %s", class)
		}

		if videoPath, _ := cmd.Flags().GetString("video"); videoPath != "" {
			if _, err := p.Orchestrator.LoadVideo(cmd.Context(), videoPath, false); err != nil {
				return fmt.Errorf("failed to load video: %w", err)
			}
		}

		srv := &http.Server{Addr: addr, Handler: app.GetHTTPHandler()}
		errc := make(chan error, 1)
		go func() {
			p.Log.Infof("Starting server on: %s", addr)
			errc <- srv.ListenAndServe()
		}()

		select {
		case err := <-errc:
			return err
		case <-cmd.Context().Done():
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			return err
		}
		if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("addr", "a", ":8080", "Address to bind the webserver")
	serveCmd.Flags().String("video", "", "Video to load on startup")
}
