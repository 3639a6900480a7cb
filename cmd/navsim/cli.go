package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/tiltpilot/navsim/internal/config"
	"github.com/tiltpilot/navsim/internal/evaluator"
	"github.com/tiltpilot/navsim/internal/report"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

// flagKeys maps run flags onto the viper keys they override.
var flagKeys = map[string]string{
	"sensor":    "sensor.type",
	"port":      "sensor.port",
	"storage":   "storage.type",
	"log-level": "logLevel",
	"waypoints": "sim.totalWaypoints",
	"seed":      "sim.seed",
}

func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd, rest := splitCommand(args)
	switch cmd {
	case "run":
		return runCommand(ctx, rest, stdout, stderr)
	case "plot":
		return plotCommand(rest, stdout, stderr)
	case "version":
		fmt.Fprintf(stdout, "%s %s (built %s)\n", AppName, Version, BuildDate)
		return exitOK
	case "help":
		usage(stdout)
		return exitOK
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n", cmd)
		usage(stderr)
		return exitUsage
	}
}

// splitCommand returns the subcommand and its arguments. A missing command
// or a leading flag means run.
func splitCommand(args []string) (string, []string) {
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		return "run", args
	}
	return strings.ToLower(args[0]), args[1:]
}

func usage(w io.Writer) {
	fmt.Fprintf(w, `Usage:
  %[1]s [run] [flags]          fly a run until every waypoint is hit
  %[1]s plot <export> [flags]  render a recorded run to an image
  %[1]s version

Run flags:
%[2]s
Plot flags:
%[3]s`, AppName, newRunFlags().FlagUsages(), newPlotFlags().FlagUsages())
}

func newRunFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("run", pflag.ContinueOnError)
	fs.String("config", ".", "directory containing "+config.FileName)
	fs.String("sensor", "synthetic", "tilt source: synthetic or serial")
	fs.String("port", "/dev/ttyACM0", "serial device of the board")
	fs.String("storage", "memory", "telemetry backend: memory, sqlite, postgres, websocket or influx")
	fs.String("log-level", "info", "log level: debug, info, warn or error")
	fs.Int("waypoints", 1, "waypoints to hit before the run completes")
	fs.Uint64("seed", 0, "random seed for waypoints and the synthetic sensor, 0 picks one")
	return fs
}

func newPlotFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("plot", pflag.ContinueOnError)
	fs.String("config", ".", "directory containing "+config.FileName)
	fs.StringP("out", "o", "", "output image, defaults to the export name with .png")
	fs.String("run", "", "run UUID to plot from a sqlite dump, defaults to the latest")
	return fs
}

// loadConfig reads the config file in dir. A missing file keeps the defaults.
func loadConfig(dir string) error {
	err := config.Load(dir)
	var notFound viper.ConfigFileNotFoundError
	if err != nil && !errors.As(err, &notFound) {
		return err
	}
	return nil
}

// bindRunFlags lets explicitly set flags override the config file.
func bindRunFlags(fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		if err := viper.BindPFlag(key, fs.Lookup(name)); err != nil {
			return fmt.Errorf("bind --%s: %w", name, err)
		}
	}
	return nil
}

func runCommand(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := newRunFlags()
	fs.SetOutput(stderr)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(stderr, "unexpected arguments: %s\n", strings.Join(fs.Args(), " "))
		return exitUsage
	}

	configDir, _ := fs.GetString("config")
	if err := loadConfig(configDir); err != nil {
		fmt.Fprintf(stderr, "load config: %v\n", err)
		return exitError
	}
	if err := bindRunFlags(fs); err != nil {
		fmt.Fprintln(stderr, err)
		return exitError
	}

	a, err := newApp(ctx, stdout)
	if err != nil {
		fmt.Fprintf(stderr, "start up: %v\n", err)
		return exitError
	}
	defer a.close()

	summary, err := runSimulation(ctx, a)
	if err != nil && !isCancellation(ctx, err) {
		a.logger.Error("Run failed", "error", err, "ticks", summary.Ticks)
		return exitError
	}
	a.logger.Info("Run finished",
		"outcome", string(summary.Outcome),
		"ticks", summary.Ticks,
		"hits", summary.HitsCount,
		"remaining_m", summary.Remaining.Minutes,
		"remaining_s", summary.Remaining.Seconds,
	)
	return exitOK
}

func isCancellation(ctx context.Context, err error) bool {
	return ctx.Err() != nil && errors.Is(err, ctx.Err())
}

func plotCommand(args []string, stdout, stderr io.Writer) int {
	fs := newPlotFlags()
	fs.SetOutput(stderr)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "plot needs exactly one export file")
		return exitUsage
	}
	in := fs.Arg(0)
	out, _ := fs.GetString("out")
	if out == "" {
		out = plotFileName(in)
	}
	runUUID, _ := fs.GetString("run")

	configDir, _ := fs.GetString("config")
	if err := loadConfig(configDir); err != nil {
		fmt.Fprintf(stderr, "load config: %v\n", err)
		return exitError
	}

	track, err := report.Load(in, runUUID)
	if err != nil {
		fmt.Fprintf(stderr, "load %s: %v\n", in, err)
		return exitError
	}
	opts := report.DefaultOptions()
	opts.Bounds = evaluator.Bounds{Min: 0, Max: config.GetSimConfig().BoardSpan}
	if err := report.RenderTrack(track, out, opts); err != nil {
		fmt.Fprintf(stderr, "render: %v\n", err)
		return exitError
	}
	fmt.Fprintf(stdout, "wrote %s: %d points, %.0f units flown, %d waypoints\n",
		out, len(track.Points), track.Length(), len(track.Waypoints))
	return exitOK
}

// plotFileName swaps the export extensions for .png.
func plotFileName(in string) string {
	base := strings.TrimSuffix(in, ".gz")
	return strings.TrimSuffix(base, filepath.Ext(base)) + ".png"
}
