package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli"

	"github.com/arlojames/dmgcore/dmg"
	"github.com/arlojames/dmgcore/dmg/render"
)

func main() {
	app := cli.NewApp()
	app.Name = "dmgcore"
	app.Description = "A cycle-accurate Game Boy emulator core"
	app.Usage = "dmgcore [options] <ROM file>"
	app.Version = "1.0.0"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "rom",
			Usage: "Path to the ROM file",
		},
		cli.BoolFlag{
			Name:  "headless",
			Usage: "Run the emulator without a terminal display",
		},
		cli.IntFlag{
			Name:  "frames",
			Usage: "Number of frames to run in headless mode (required for headless)",
			Value: 0,
		},
		cli.IntFlag{
			Name:  "snapshot-interval",
			Usage: "Save a frame snapshot every N frames in headless mode (0 = disabled)",
			Value: 0,
		},
		cli.StringFlag{
			Name:  "snapshot-dir",
			Usage: "Directory to save frame snapshots (default: temp directory)",
		},
	}
	app.Action = runEmulator

	if err := app.Run(os.Args); err != nil {
		slog.Error("error running emulator", "error", err)
		os.Exit(1)
	}
}

func runEmulator(c *cli.Context) error {
	romPath := c.String("rom")
	if romPath == "" {
		if c.NArg() > 0 {
			romPath = c.Args().Get(0)
		} else {
			cli.ShowAppHelp(c)
			return errors.New("no ROM path provided")
		}
	}

	console, err := dmg.NewWithFile(romPath)
	if err != nil {
		return err
	}

	if c.Bool("headless") {
		return runHeadless(console, romPath, c.Int("frames"), c.Int("snapshot-interval"), c.String("snapshot-dir"))
	}

	renderer, err := render.NewTerminalRenderer(console)
	if err != nil {
		return err
	}
	return renderer.Run()
}

func runHeadless(console *dmg.Console, romPath string, frames, snapshotInterval int, snapshotDir string) error {
	if frames <= 0 {
		return errors.New("headless mode requires --frames option with a positive value")
	}

	if snapshotInterval > 0 {
		if snapshotDir == "" {
			tempDir, err := os.MkdirTemp("", "dmgcore-snapshots-*")
			if err != nil {
				return fmt.Errorf("failed to create snapshot directory: %w", err)
			}
			snapshotDir = tempDir
		} else if err := os.MkdirAll(snapshotDir, 0755); err != nil {
			return fmt.Errorf("failed to create snapshot directory: %w", err)
		}
	}

	romName := strings.TrimSuffix(filepath.Base(romPath), filepath.Ext(romPath))

	slog.Info("running headless", "frames", frames, "snapshot_interval", snapshotInterval)

	for i := 0; i < frames; i++ {
		console.RunUntilFrame()

		if snapshotInterval > 0 && (i+1)%snapshotInterval == 0 {
			snapshotPath := filepath.Join(snapshotDir, fmt.Sprintf("%s_frame_%d.txt", romName, i+1))
			if err := saveFrameSnapshot(console, snapshotPath); err != nil {
				slog.Error("failed to save snapshot", "frame", i+1, "error", err)
			}
		}

		if i%60 == 0 {
			slog.Info("frame progress", "completed", i+1, "total", frames)
		}
	}

	slog.Info("headless execution completed", "frames", frames)
	return nil
}

func saveFrameSnapshot(console *dmg.Console, path string) error {
	fb := console.GetCurrentFrame()

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	fmt.Fprintf(file, "# Game Boy frame snapshot\n")
	fmt.Fprintf(file, "# Frame: %d, Instructions: %d\n", console.GetFrameCount(), console.GetInstructionCount())
	fmt.Fprintf(file, "#\n")

	for _, line := range render.RenderFrameToHalfBlocks(fb.ToSlice(), 160, 144) {
		fmt.Fprintf(file, "%s\n", line)
	}

	return nil
}
