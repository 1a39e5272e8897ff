// Command candyconnectd is the native orchestration core's daemon
// entrypoint: it bootstraps the per-application state directory, wires the
// command surface, and blocks until asked to shut down.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/peterbourgon/ff/v3"

	"github.com/candyconnect/candyconnectd/internal/appdir"
	"github.com/candyconnect/candyconnectd/internal/command"
	"github.com/candyconnect/candyconnectd/internal/platform"
	"github.com/candyconnect/candyconnectd/internal/settings"
	"github.com/candyconnect/candyconnectd/internal/xlog"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "candyconnectd:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("candyconnectd", flag.ContinueOnError)
	var (
		stateDir = fs.String("state-dir", "", "override the per-application state directory (default: OS user config dir)")
	)
	if err := ff.Parse(fs, args, ff.WithEnvVarPrefix("CANDYCONNECTD")); err != nil {
		return err
	}

	dir, err := appdir.New(*stateDir)
	if err != nil {
		return err
	}
	if err := dir.Bootstrap(settings.Defaults()); err != nil {
		return err
	}

	sink := xlog.New(dir.LogPath())
	sink.Logf("info", "candyconnectd starting, state dir %s", dir.Root())

	adapter := platform.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	surface := command.New(dir, sink, adapter, func(event string) {
		sink.Logf("info", "event: %s", event)
	})
	defer surface.Close()

	sink.Logf("info", "candyconnectd ready")
	<-ctx.Done()

	sink.Logf("info", "candyconnectd shutting down")
	_ = surface.StopVPN()
	return nil
}
