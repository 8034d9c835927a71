package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli/v3"

	"github.com/okian/auditdeck/pkg/logger"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Disable default Go metrics collection to avoid duplicate metrics
	// We collect our own custom system metrics instead
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := logger.Init(); err != nil {
		// Use fmt for initialization errors since logger isn't available yet
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return 1
	}
	defer func() { _ = logger.Sync() }()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newApp().Run(ctx, os.Args); err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		return 1
	}
	return 0
}

// newApp builds the command tree. Without a subcommand the dashboard server
// runs.
func newApp() *cli.Command {
	serve := serveCommand()
	return &cli.Command{
		Name:  "auditdeck",
		Usage: "Live dashboard and CLI for feature audit reports",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "api", Usage: "analysis API origin (overrides api_base_url)"},
			&cli.BoolFlag{Name: "json", Usage: "print raw JSON instead of a table"},
		},
		Commands: []*cli.Command{
			serve,
			featuresCommand(),
			sourcesCommand(),
			reportsCommand(),
		},
		Action: serve.Action,
	}
}
