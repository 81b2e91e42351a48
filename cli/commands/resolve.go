package commands

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/satishbabariya/prisma-go-relations/cli/internal/ui"
	"github.com/satishbabariya/prisma-go-relations/eagerload"
	"github.com/satishbabariya/prisma-go-relations/eagerload/withdsl"
	"github.com/satishbabariya/prisma-go-relations/internal/debug"
	"github.com/satishbabariya/prisma-go-relations/query"
	"github.com/satishbabariya/prisma-go-relations/query/sqlsource"
	"github.com/satishbabariya/prisma-go-relations/telemetry"
)

type resolveOptions struct {
	where   string
	orderBy string
	limit   int
	compact bool
	stats   bool
	metrics bool
}

func newResolveCommand(a *app) *cobra.Command {
	opts := &resolveOptions{}

	cmd := &cobra.Command{
		Use:   "resolve <table> <with-spec>",
		Short: "Load rows of a table with their relations and print them as JSON",
		Example: `  prisma-relations resolve posts 'author, tags' --where '{published: true}' --limit 20
  prisma-relations resolve users 'posts(order: "id desc", limit: 3){comments}' --stats`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.resolve(cmd, args[0], args[1], opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.where, "where", "", `filter for the parent rows, e.g. '{status: "live"}'`)
	flags.StringVar(&opts.orderBy, "order", "", `order of the parent rows, e.g. "created_at desc, id"`)
	flags.IntVar(&opts.limit, "limit", 0, "maximum number of parent rows (0 for all)")
	flags.BoolVar(&opts.compact, "compact", false, "print JSON on one line")
	flags.BoolVar(&opts.stats, "stats", false, "print per-relation query counts after the rows")
	flags.BoolVar(&opts.metrics, "metrics", false, "print the collected metrics")

	return cmd
}

func (a *app) resolve(cmd *cobra.Command, table, text string, opts *resolveOptions) error {
	ctx := cmd.Context()

	reg, _, err := a.registry(a.cfg.RelationsPath)
	if err != nil {
		return err
	}
	spec, err := withdsl.Parse(text)
	if err != nil {
		return err
	}
	parentFetch, err := opts.fetch(table)
	if err != nil {
		return err
	}

	sourceConfig, err := a.cfg.Source()
	if err != nil {
		return err
	}
	src, err := sqlsource.Open(ctx, sourceConfig)
	if err != nil {
		return err
	}
	defer src.Close(ctx)

	promRegistry := prometheus.NewRegistry()
	metrics, err := telemetry.NewMetrics(promRegistry)
	if err != nil {
		return err
	}
	resolver := eagerload.New(reg, src, append(a.cfg.ResolverOptions(),
		eagerload.WithMetrics(metrics),
		eagerload.WithLogger(debug.Logger()),
	)...)

	// Unknown relations fail here, before the parent query.
	if _, err := resolver.Plan(table, spec); err != nil {
		return err
	}

	parents, err := src.Fetch(ctx, parentFetch)
	if err != nil {
		return err
	}
	rows, stats, err := resolver.ResolveStats(ctx, table, parents, spec)
	if err != nil {
		return err
	}

	out := make([]map[string]any, len(rows))
	for i, r := range rows {
		out[i] = r.Map()
	}
	if err := writeJSON(cmd.OutOrStdout(), out, opts.compact); err != nil {
		return err
	}

	ui.PrintCount(table, len(rows))
	ui.PrintCount("queries", stats.Queries+1)
	if opts.stats {
		tableRows := make([][]string, len(stats.Nodes))
		for i, n := range stats.Nodes {
			tableRows[i] = []string{n.Path, ui.Kind(n.Kind), strconv.Itoa(n.Queries), strconv.Itoa(n.Rows)}
		}
		ui.FprintTable(cmd.ErrOrStderr(), []string{"Path", "Kind", "Queries", "Rows"}, tableRows)
	}
	if opts.metrics {
		return writeMetrics(cmd.ErrOrStderr(), promRegistry)
	}
	return nil
}

// fetch builds the parent query from the flags.
func (o *resolveOptions) fetch(table string) (*query.Fetch, error) {
	f := &query.Fetch{Table: table}
	if o.where != "" {
		where, err := withdsl.ParseFilter(o.where)
		if err != nil {
			return nil, fmt.Errorf("--where: %w", err)
		}
		f.Where = where
	}
	if o.orderBy != "" {
		orderBy, err := query.ParseOrderBy(o.orderBy)
		if err != nil {
			return nil, fmt.Errorf("--order: %w", err)
		}
		f.OrderBy = orderBy
	}
	if o.limit < 0 {
		return nil, fmt.Errorf("--limit must not be negative")
	}
	if o.limit > 0 {
		f.Limit = &o.limit
	}
	return f, nil
}

func writeJSON(w io.Writer, v any, compact bool) error {
	var (
		data []byte
		err  error
	)
	if compact {
		data, err = json.Marshal(v)
	} else {
		data, err = json.MarshalIndent(v, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to encode rows: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// writeMetrics prints counters and histogram counts as "name{labels} value".
func writeMetrics(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			labels := make([]string, 0, len(m.GetLabel()))
			for _, l := range m.GetLabel() {
				labels = append(labels, fmt.Sprintf("%s=%q", l.GetName(), l.GetValue()))
			}
			sort.Strings(labels)

			var value string
			switch {
			case m.GetCounter() != nil:
				value = strconv.FormatFloat(m.GetCounter().GetValue(), 'f', -1, 64)
			case m.GetHistogram() != nil:
				h := m.GetHistogram()
				value = fmt.Sprintf("count=%d sum=%g", h.GetSampleCount(), h.GetSampleSum())
			case m.GetGauge() != nil:
				value = strconv.FormatFloat(m.GetGauge().GetValue(), 'f', -1, 64)
			default:
				continue
			}
			fmt.Fprintf(w, "%s{%s} %s\n", mf.GetName(), strings.Join(labels, ","), value)
		}
	}
	return nil
}
