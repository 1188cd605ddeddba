package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lewtec/rotulador-video/internal/domain"
)

var classesCmd = &cobra.Command{
	Use:   "classes",
	Short: "Manage the catalog of object classes offered to new sessions",
}

var classesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known classes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer p.Close()
		classes, err := p.Classes.List(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, c := range classes {
			fmt.Fprintf(out, "%d\t%s\t%s\n", c.ID, c.Name, c.Color.Hex())
		}
		return nil
	},
}

var classesAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a class, or change the color of an existing one",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer p.Close()
		name := strings.Join(args, " ")

		var color domain.Color
		if hex, _ := cmd.Flags().GetString("color"); hex != "" {
			if color, err = domain.ParseColor(hex); err != nil {
				return err
			}
		} else {
			existing, err := p.Classes.List(cmd.Context())
			if err != nil {
				return err
			}
			color = domain.PaletteColor(len(existing) + 1)
		}
		c, err := p.Classes.Save(cmd.Context(), name, color)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%s\n", c.ID, c.Name, c.Color.Hex())
		return nil
	},
}

var classesRmCmd = &cobra.Command{
	Use:   "rm <name>",
	Short: "Remove a class",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer p.Close()
		name := strings.Join(args, " ")
		if err := p.Classes.Delete(cmd.Context(), name); err != nil {
			return fmt.Errorf("failed to remove class '%s': %w", name, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", name)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(classesCmd)
	classesCmd.AddCommand(classesListCmd, classesAddCmd, classesRmCmd)
	classesAddCmd.Flags().String("color", "", "Color as #rrggbb, defaults to the palette")
}
