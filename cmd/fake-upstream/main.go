// Command fake-upstream serves an in-memory analysis API with seeded data and
// optional simulated activity, for running the dashboard locally.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/urfave/cli/v3"

	"github.com/okian/auditdeck/internal/fakeupstream"
	"github.com/okian/auditdeck/pkg/logger"
)

// Default configuration constants.
const (
	defaultAddr     = ":8000"
	defaultReports  = 25
	defaultSchedule = "@every 5s"
)

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newCommand().Run(ctx, os.Args); err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		stop()
		os.Exit(1)
	}
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:  "fake-upstream",
		Usage: "Serve a fake analysis API with live streams",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Value: defaultAddr, Usage: "HTTP listen address"},
			&cli.IntFlag{Name: "reports", Value: defaultReports, Usage: "number of seeded audit reports"},
			&cli.StringFlag{Name: "simulate", Value: defaultSchedule, Usage: "cron spec of simulated changes; empty disables"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			log := logger.Get().Named("fake-upstream")
			srv := fakeupstream.New(fakeupstream.WithLogger(log))
			features, sources := srv.Seed(int(c.Int("reports")))
			log.Info(ctx, "seeded",
				logger.Int("features", features),
				logger.Int("sources", sources),
				logger.Int("reports", len(srv.AuditReports())))

			if spec := c.String("simulate"); spec != "" {
				if _, err := cron.ParseStandard(spec); err != nil {
					return err
				}
				go func() { _ = srv.Simulate(ctx, spec) }()
			}
			return srv.Run(ctx, c.String("addr"))
		},
	}
}
