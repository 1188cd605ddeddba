package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lewtec/rotulador-video/annotation"
	"github.com/lewtec/rotulador-video/internal/domain"
)

var errQuit = errors.New("quit")

var labelCmd = &cobra.Command{
	Use:   "label [video]",
	Short: "Label a video from the terminal or a script",
	Long: `Runs an annotation session driven by one command per line, read from
--script or from stdin. Blank lines and lines starting with # are ignored.

Commands:
  video <path> [keep]     load a video, keep carries the objects over
  object <name>           add an object and select it if nothing is selected
  select <id|name>        select an object
  point <x> <y> [+|-]     add a positive (default) or negative point
  undo                    remove the last point
  next | prev             move one frame
  goto <frame>            move to a frame
  step <delta>            move by delta frames
  propagate               propagate pending points
  export <path> [end]     write the dataset, optionally up to frame end
  status | objects        show the session
  quit`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := openProject(cmd)
		if err != nil {
			return err
		}
		defer p.Close()

		in := cmd.InOrStdin()
		if script, _ := cmd.Flags().GetString("script"); script != "" {
			f, err := os.Open(script)
			if err != nil {
				return fmt.Errorf("failed to open script: %w", err)
			}
			defer f.Close()
			in = f
		}
		failFast, _ := cmd.Flags().GetBool("fail-fast")

		l := &labeler{o: p.Orchestrator, out: cmd.OutOrStdout()}
		if len(args) == 1 {
			if err := l.run(cmd.Context(), []string{"video", args[0]}); err != nil {
				return err
			}
		}
		return l.loop(cmd.Context(), in, failFast)
	},
}

func init() {
	rootCmd.AddCommand(labelCmd)
	labelCmd.Flags().StringP("script", "s", "", "File with one command per line")
	labelCmd.Flags().Bool("fail-fast", false, "Stop at the first failing command")
}

type labeler struct {
	o   *annotation.Orchestrator
	out io.Writer
}

func (l *labeler) loop(ctx context.Context, in io.Reader, failFast bool) error {
	scanner := bufio.NewScanner(in)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		err := l.run(ctx, strings.Fields(line))
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			fmt.Fprintf(l.out, "error: %v\n", err)
			if failFast {
				return fmt.Errorf("line %d: %w", lineNo, err)
			}
		}
	}
	return scanner.Err()
}

func (l *labeler) run(ctx context.Context, fields []string) error {
	o := l.o
	args := fields[1:]
	switch fields[0] {
	case "quit", "exit":
		return errQuit
	case "video":
		if len(args) < 1 {
			return usage("video <path> [keep]")
		}
		if _, err := o.LoadVideo(ctx, args[0], len(args) > 1 && args[1] == "keep"); err != nil {
			return err
		}
	case "object":
		if len(args) < 1 {
			return usage("object <name>")
		}
		if _, err := o.AddObject(ctx, strings.Join(args, " ")); err != nil {
			return err
		}
	case "select":
		if len(args) < 1 {
			return usage("select <id|name>")
		}
		var err error
		if id, perr := strconv.Atoi(args[0]); perr == nil {
			_, err = o.SelectObject(id)
		} else {
			_, err = o.SelectObjectByName(strings.Join(args, " "))
		}
		if err != nil {
			return err
		}
	case "point":
		if len(args) < 2 {
			return usage("point <x> <y> [+|-]")
		}
		x, xerr := strconv.Atoi(args[0])
		y, yerr := strconv.Atoi(args[1])
		if xerr != nil || yerr != nil {
			return usage("point <x> <y> [+|-]")
		}
		label := domain.Positive
		if len(args) > 2 {
			var err error
			if label, err = domain.ParsePointLabel(args[2]); err != nil {
				return err
			}
		}
		if _, err := o.AddPoint(ctx, x, y, label); err != nil {
			return err
		}
	case "undo":
		if _, err := o.UndoPoint(ctx); err != nil {
			return err
		}
	case "next", "prev", "goto", "step":
		frame, err := l.move(ctx, fields[0], args)
		if err != nil {
			return err
		}
		fmt.Fprintf(l.out, "frame %d\n", frame)
		return nil
	case "propagate":
		if _, err := o.Propagate(ctx); err != nil {
			return err
		}
	case "export":
		if len(args) < 1 {
			return usage("export <path> [end]")
		}
		var endFrame *int
		if len(args) > 1 {
			end, err := strconv.Atoi(args[1])
			if err != nil {
				return usage("export <path> [end]")
			}
			endFrame = &end
		}
		res, err := o.Export(ctx, args[0], endFrame)
		if err != nil {
			return err
		}
		fmt.Fprintf(l.out, "sha256 %s\n", res.Checksum)
	case "status":
		l.printStatus()
		return nil
	case "objects":
		l.printObjects()
		return nil
	default:
		return fmt.Errorf("%w: unknown command %q", domain.ErrValidation, fields[0])
	}
	fmt.Fprintln(l.out, o.Status().Message)
	return nil
}

func (l *labeler) move(ctx context.Context, name string, args []string) (int, error) {
	o := l.o
	switch name {
	case "next":
		return o.Next(ctx)
	case "prev":
		return o.Previous(ctx)
	}
	if len(args) < 1 {
		return 0, usage(name + " <n>")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, usage(name + " <n>")
	}
	if name == "goto" {
		return o.Navigate(ctx, n)
	}
	return o.Step(ctx, n)
}

func (l *labeler) printStatus() {
	view, ok := l.o.Snapshot()
	if !ok {
		fmt.Fprintln(l.out, l.o.Status().Message)
		return
	}
	fmt.Fprintf(l.out, "video:       %s (%dx%d, %d frames, %v)\n", view.Video.Path, view.Video.Width, view.Video.Height, view.Video.TotalFrames, view.Video.Duration())
	fmt.Fprintf(l.out, "frame:       %d (%v)\n", view.CurrentFrame, view.Video.FrameTime(view.CurrentFrame))
	for _, obj := range view.Objects {
		if view.CurrentObjectID != nil && obj.ID == *view.CurrentObjectID {
			fmt.Fprintf(l.out, "object:      %s\n", obj.Name)
		}
	}
	if view.StartFrame != nil {
		fmt.Fprintf(l.out, "start frame: %d\n", *view.StartFrame)
	}
	fmt.Fprintf(l.out, "points:      %d\n", len(view.Points))
	if view.HasAnnotations {
		fmt.Fprintf(l.out, "masks:       %d on %d frames\n", view.MaskCount, len(view.MaskFrames))
	}
	if view.NeedsPropagation {
		fmt.Fprintln(l.out, "propagation pending")
	}
	fmt.Fprintln(l.out, view.Status.Message)
}

func (l *labeler) printObjects() {
	view, ok := l.o.Snapshot()
	if !ok {
		fmt.Fprintln(l.out, l.o.Status().Message)
		return
	}
	for _, obj := range view.Objects {
		marker := " "
		if view.CurrentObjectID != nil && *view.CurrentObjectID == obj.ID {
			marker = "*"
		}
		fmt.Fprintf(l.out, "%s %d\t%s\t%s\n", marker, obj.ID, obj.Name, obj.Color.Hex())
	}
}

func usage(s string) error {
	return fmt.Errorf("%w: usage: %s", domain.ErrValidation, s)
}
