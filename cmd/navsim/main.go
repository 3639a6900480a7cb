// Command navsim flies a simulated vehicle through randomly placed waypoints
// using the tilt of an accelerometer board, or a synthetic tilt source, as
// the control input.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// Version and BuildDate can be set at build time via ldflags.
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
)

// AppName prefixes log files and default export names.
const AppName = "navsim"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
