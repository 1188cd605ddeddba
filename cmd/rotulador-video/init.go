package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/lewtec/rotulador-video/annotation"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init [folder]",
	Short: "Initialize a new labeling project",
	Long: `Initialize a new labeling project by creating:
- A sample configuration file (config.yaml)
- The class catalog and export history database (annotations.db)
- The scratch directory frames are extracted to

Example:
  rotulador-video init ./blocks
  rotulador-video init -c custom-config.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		configFile, _ := cmd.Flags().GetString("config")
		if len(args) == 1 {
			if err := os.MkdirAll(args[0], 0755); err != nil {
				return fmt.Errorf("failed to create project folder: %w", err)
			}
			configFile = filepath.Join(args[0], "config.yaml")
			cmd.Flags().Set("config", configFile)
		}

		if _, err := os.Stat(configFile); os.IsNotExist(err) {
			fmt.Fprintf(out, "Creating sample configuration file: %s\n", configFile)
			if err := os.WriteFile(configFile, []byte(annotation.SampleConfig), 0644); err != nil {
				return fmt.Errorf("failed to create config file: %w", err)
			}
		} else {
			fmt.Fprintf(out, "Configuration file already exists: %s\n", configFile)
		}

		p, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer p.Close()
		fmt.Fprintf(out, "Database ready: %s\n", p.Config.Database)

		if err := os.MkdirAll(p.Config.Video.ScratchDir, 0755); err != nil {
			return fmt.Errorf("failed to create scratch directory: %w", err)
		}
		fmt.Fprintf(out, "Frames will be extracted to: %s\n", p.Config.Video.ScratchDir)

		fmt.Fprintln(out, "\nNext steps:")
		fmt.Fprintln(out, "  1. Review and customize your config file:", configFile)
		fmt.Fprintln(out, "  2. Start the predictor service at", p.Config.Predictor.URL)
		fmt.Fprintf(out, "  3. rotulador-video serve -c %s\n", configFile)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
