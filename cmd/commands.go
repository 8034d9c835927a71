package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/okian/auditdeck/internal/adapters/remote"
	"github.com/okian/auditdeck/internal/domain/model"
	"github.com/okian/auditdeck/internal/domain/view"
	"github.com/okian/auditdeck/pkg/logger"
)

var errRemote = errors.New("request failed")

// remoteClient builds a one-shot API client from the config and flags.
func remoteClient(ctx context.Context, c *cli.Command) (*remote.Client, error) {
	cfg, err := loadConfig(ctx, c)
	if err != nil {
		return nil, err
	}
	return remote.New(cfg.APIBaseURL,
		remote.WithTimeout(cfg.HTTPTimeout()),
		remote.WithLogger(logger.Get()),
	), nil
}

func output(c *cli.Command) io.Writer {
	if w := c.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printTable writes rows under header, or v as JSON with --json.
func printTable(c *cli.Command, v any, header []string, rows [][]string) error {
	w := output(c)
	if c.Bool("json") {
		return printJSON(w, v)
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, r := range rows {
		fmt.Fprintln(tw, strings.Join(r, "\t"))
	}
	return tw.Flush()
}

func printCount(c *cli.Command, n int) error {
	if c.Bool("json") {
		return printJSON(output(c), map[string]int{"count": n})
	}
	_, err := fmt.Fprintln(output(c), n)
	return err
}

func featuresCommand() *cli.Command {
	return &cli.Command{
		Name:  "features",
		Usage: "Inspect features",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List features",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "query", Aliases: []string{"q"}, Usage: "match name, description or tags"},
					&cli.StringSliceFlag{Name: "status", Usage: "keep only these statuses"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					client, err := remoteClient(ctx, c)
					if err != nil {
						return err
					}
					statuses := make([]model.FeatureStatus, 0, len(c.StringSlice("status")))
					for _, s := range c.StringSlice("status") {
						statuses = append(statuses, model.FeatureStatus(strings.ToLower(s)))
					}
					items := view.FilterFeatures(client.Features.List(ctx), c.String("query"), statuses)
					rows := make([][]string, 0, len(items))
					for _, f := range items {
						rows = append(rows, []string{f.ID, f.Name, view.StatusLabel(f.Status), strings.Join(f.Tags, ",")})
					}
					return printTable(c, items, []string{"ID", "NAME", "STATUS", "TAGS"}, rows)
				},
			},
			{
				Name:  "count",
				Usage: "Count features",
				Action: func(ctx context.Context, c *cli.Command) error {
					client, err := remoteClient(ctx, c)
					if err != nil {
						return err
					}
					return printCount(c, client.Features.Count(ctx))
				},
			},
		},
	}
}

func sourcesCommand() *cli.Command {
	return &cli.Command{
		Name:  "sources",
		Usage: "Inspect and add sources",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List sources",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "query", Aliases: []string{"q"}, Usage: "match URL or tags"},
					&cli.StringSliceFlag{Name: "tag", Usage: "keep sources with any of these tags"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					client, err := remoteClient(ctx, c)
					if err != nil {
						return err
					}
					items := view.FilterSources(client.Sources.List(ctx), c.String("query"), c.StringSlice("tag"))
					rows := make([][]string, 0, len(items))
					for _, s := range items {
						rows = append(rows, []string{s.ID, s.SourceURL, strings.Join(s.Tags, ",")})
					}
					return printTable(c, items, []string{"ID", "URL", "TAGS"}, rows)
				},
			},
			{
				Name:  "count",
				Usage: "Count sources",
				Action: func(ctx context.Context, c *cli.Command) error {
					client, err := remoteClient(ctx, c)
					if err != nil {
						return err
					}
					return printCount(c, client.Sources.Count(ctx))
				},
			},
			{
				Name:      "add",
				Usage:     "Add one source",
				ArgsUsage: "URL",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{Name: "tag", Usage: "tag the new source"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					client, err := remoteClient(ctx, c)
					if err != nil {
						return err
					}
					res := client.Sources.Create(ctx, model.SourceFields{
						SourceURL: strings.TrimSpace(c.Args().First()),
						Tags:      c.StringSlice("tag"),
					})
					if !res.Success {
						return fmt.Errorf("%w: %s", errRemote, res.Error)
					}
					if c.Bool("json") {
						return printJSON(output(c), res)
					}
					_, err = fmt.Fprintf(output(c), "created source %s\n", res.ID)
					return err
				},
			},
			{
				Name:      "upload",
				Usage:     "Upload a CSV of sources",
				ArgsUsage: "FILE",
				Action: func(ctx context.Context, c *cli.Command) error {
					path := c.Args().First()
					if path == "" {
						return errors.New("a CSV file is required")
					}
					f, err := os.Open(path)
					if err != nil {
						return err
					}
					defer func() { _ = f.Close() }()

					client, err := remoteClient(ctx, c)
					if err != nil {
						return err
					}
					res := client.Sources.UploadCSV(ctx, filepath.Base(path), f)
					if !res.Success {
						return fmt.Errorf("%w: %s", errRemote, res.Error)
					}
					if c.Bool("json") {
						return printJSON(output(c), res)
					}
					_, err = fmt.Fprintf(output(c), "created %d sources\n", res.Created)
					return err
				},
			},
		},
	}
}

func reportsCommand() *cli.Command {
	resolve := func(verb string, fn func(*remote.Client) func(context.Context, string) error) *cli.Command {
		return &cli.Command{
			Name:      verb,
			Usage:     strings.ToUpper(verb[:1]) + verb[1:] + " an audit report",
			ArgsUsage: "REPORT_ID",
			Action: func(ctx context.Context, c *cli.Command) error {
				client, err := remoteClient(ctx, c)
				if err != nil {
					return err
				}
				id := c.Args().First()
				if err := fn(client)(ctx, id); err != nil {
					return err
				}
				_, err = fmt.Fprintf(output(c), "%s: %s\n", id, verb)
				return err
			},
		}
	}
	return &cli.Command{
		Name:  "reports",
		Usage: "Inspect and resolve audit reports",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List audit reports, newest first",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "source", Usage: "only reports citing this source id"},
					&cli.StringSliceFlag{Name: "status", Usage: "keep only these statuses"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					client, err := remoteClient(ctx, c)
					if err != nil {
						return err
					}
					var items []model.AuditReport
					if src := c.String("source"); src != "" {
						items = client.AuditReports.ListBySource(ctx, src)
					} else {
						items = client.AuditReports.List(ctx)
					}
					statuses := make([]model.AuditReportStatus, 0, len(c.StringSlice("status")))
					for _, s := range c.StringSlice("status") {
						statuses = append(statuses, model.AuditReportStatus(strings.ToLower(s)))
					}
					items = view.FilterAuditReports(items, statuses)
					rows := make([][]string, 0, len(items))
					for _, r := range items {
						rows = append(rows, []string{
							r.ID, r.FeatureID,
							view.StatusLabel(r.OriginalStatus) + " -> " + view.StatusLabel(r.StatusChangeTo),
							fmt.Sprintf("%d%%", r.ConfidencePercent()),
							string(r.Status),
						})
					}
					return printTable(c, items, []string{"ID", "FEATURE", "CHANGE", "CONFIDENCE", "STATUS"}, rows)
				},
			},
			resolve("verify", func(cl *remote.Client) func(context.Context, string) error { return cl.AuditReports.Verify }),
			resolve("dismiss", func(cl *remote.Client) func(context.Context, string) error { return cl.AuditReports.Dismiss }),
		},
	}
}
