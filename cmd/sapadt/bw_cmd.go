package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"pkt.systems/sapadt/bw"
	"pkt.systems/sapadt/graph"
)

func newBWCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bw",
		Short: "Browse and analyse BW/4HANA modelling objects",
	}
	cmd.AddCommand(
		newBWDiscoverCommand(a),
		newBWSearchCommand(a),
		newBWXrefCommand(a),
		newBWReadCommand(a),
		newBWSaveCommand(a),
		newBWDeleteCommand(a),
		newBWActivateCommand(a),
		newBWDBInfoCommand(a),
		newBWNodesCommand(a),
		newBWLineageCommand(a),
		newBWExportCommand(a),
		newBWJobsCommand(a),
		newBWLocksCommand(a),
		newBWCollectCommand(a),
		newBWValueHelpCommand(a),
		newBWFoldersCommand(a),
		newBWVolumesCommand(a),
	)
	return cmd
}

func newBWSearchCommand(a *app) *cobra.Command {
	var opts bw.SearchOptions
	cmd := &cobra.Command{
		Use:   "search <term>",
		Short: "Search BW objects by name or description (* is a wildcard)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sess, err := a.bwSession(ctx)
			if err != nil {
				return err
			}
			opts.Query = args[0]
			res, err := bw.SearchObjects(ctx, sess, opts)
			if err != nil {
				return err
			}
			if a.out.json {
				return a.out.printJSON(res)
			}
			rows := make([][]string, 0, len(res.Items))
			for _, it := range res.Items {
				rows = append(rows, []string{it.Name, it.Type, it.Subtype, it.Version, it.Status, it.Description})
			}
			if err := a.out.table([]string{"NAME", "TYPE", "SUBTYPE", "VERSION", "STATUS", "DESCRIPTION"}, rows); err != nil {
				return err
			}
			if res.FeedIncomplete {
				fmt.Fprintln(a.out.stderr, a.out.paint(a.out.err.hint, "result truncated; raise --max or narrow the search"))
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.IntVar(&opts.MaxResults, "max", bw.DefaultSearchMax, "maximum number of results")
	f.StringVar(&opts.ObjectType, "type", "", "object type (ADSO, TRFN, DTPA, RSDS, IOBJ, ELEM, ...)")
	f.StringVar(&opts.ObjectSubType, "subtype", "", "object subtype")
	f.StringVar(&opts.ObjectStatus, "status", "", "object status (ACT, INA, OFF)")
	f.StringVar(&opts.ObjectVersion, "obj-version", "", "object version (A, M, D)")
	f.StringVar(&opts.ChangedBy, "changed-by", "", "last changed by user")
	f.StringVar(&opts.ChangedOnFrom, "changed-from", "", "changed on or after (YYYY-MM-DD)")
	f.StringVar(&opts.ChangedOnTo, "changed-to", "", "changed on or before (YYYY-MM-DD)")
	f.StringVar(&opts.CreatedBy, "created-by", "", "created by user")
	f.StringVar(&opts.CreatedOnFrom, "created-from", "", "created on or after (YYYY-MM-DD)")
	f.StringVar(&opts.CreatedOnTo, "created-to", "", "created on or before (YYYY-MM-DD)")
	f.StringVar(&opts.DependsOnObjectName, "depends-on-name", "", "only objects depending on this object")
	f.StringVar(&opts.DependsOnObjectType, "depends-on-type", "", "type of --depends-on-name")
	f.BoolVar(&opts.SearchInDescription, "search-desc", false, "also match descriptions")
	f.BoolVar(&opts.DescriptionOnly, "desc-only", false, "match descriptions only")
	return cmd
}

func newBWXrefCommand(a *app) *cobra.Command {
	var opts bw.XrefOptions
	cmd := &cobra.Command{
		Use:   "xref <type> <name>",
		Short: "List objects related to a BW object",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sess, err := a.session(ctx)
			if err != nil {
				return err
			}
			opts.ObjectType = strings.ToUpper(args[0])
			opts.ObjectName = strings.ToUpper(args[1])
			refs, err := bw.GetXref(ctx, sess, opts)
			if err != nil {
				return err
			}
			if a.out.json {
				return a.out.printJSON(refs)
			}
			rows := make([][]string, 0, len(refs))
			for _, r := range refs {
				assoc := r.AssociationLabel
				if assoc == "" {
					assoc = r.AssociationType
				}
				rows = append(rows, []string{r.Name, r.Type, assoc, r.Status, r.Description})
			}
			return a.out.table([]string{"NAME", "TYPE", "ASSOCIATION", "STATUS", "DESCRIPTION"}, rows)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.ObjectVersion, "version", bw.DefaultVersion, "object version")
	f.StringVar(&opts.Association, "association", "", "association code filter")
	f.StringVar(&opts.AssociatedObjectType, "associated-type", "", "associated object type filter")
	f.IntVar(&opts.MaxResults, "max", 0, "maximum number of results")
	return cmd
}

func newBWReadCommand(a *app) *cobra.Command {
	var (
		version      string
		sourceSystem string
		raw          bool
	)
	cmd := &cobra.Command{
		Use:   "read <type> <name>",
		Short: "Read a BW object; DTPA, TRFN, ADSO, RSDS, DMOD and query components are parsed",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sess, err := a.bwSession(ctx)
			if err != nil {
				return err
			}
			objectType := strings.ToUpper(args[0])
			name := strings.ToUpper(args[1])
			if raw {
				return a.printRaw(ctx, sess, objectType, name, version)
			}
			switch {
			case objectType == "DTPA":
				d, err := bw.ReadDTP(ctx, sess, name, version)
				if err != nil {
					return err
				}
				return a.out.emit(d, func(w io.Writer) error {
					return a.printPairs(w, [][2]string{
						{"DTP", d.Name},
						{"Description", d.Description},
						{"Source", d.SourceType + " " + d.SourceName},
						{"Source system", d.SourceSystem},
						{"Target", d.TargetType + " " + d.TargetName},
						{"Selection", d.RequestSelectionMode},
					})
				})
			case objectType == "TRFN":
				t, err := bw.ReadTransformation(ctx, sess, name, version)
				if err != nil {
					return err
				}
				return a.out.emit(t, func(w io.Writer) error {
					if err := a.printPairs(w, [][2]string{
						{"Transformation", t.Name},
						{"Description", t.Description},
						{"Source", t.SourceType + " " + t.SourceName},
						{"Target", t.TargetType + " " + t.TargetName},
						{"Start routine", t.StartRoutine},
						{"End routine", t.EndRoutine},
						{"Expert routine", t.ExpertRoutine},
					}); err != nil {
						return err
					}
					if len(t.Rules) == 0 {
						return nil
					}
					fmt.Fprintln(w)
					rows := make([][]string, 0, len(t.Rules))
					for _, r := range t.Rules {
						rows = append(rows, []string{strings.Join(r.SourceFields, ","), strings.Join(r.TargetFields, ","), r.Kind()})
					}
					return a.out.table([]string{"SOURCE", "TARGET", "RULE"}, rows)
				})
			case objectType == "ADSO":
				d, err := bw.ReadADSO(ctx, sess, name, version)
				if err != nil {
					return err
				}
				return a.out.emit(d, func(w io.Writer) error {
					if err := a.printPairs(w, [][2]string{{"ADSO", d.Name}, {"Description", d.Description}, {"Package", d.Package}}); err != nil {
						return err
					}
					fmt.Fprintln(w)
					rows := make([][]string, 0, len(d.Fields))
					for _, f := range d.Fields {
						rows = append(rows, []string{f.Name, keyMark(f.Key), f.DataType, lengthOf(f.Length, f.Decimals), f.InfoObject, f.Description})
					}
					return a.out.table([]string{"FIELD", "KEY", "TYPE", "LENGTH", "INFOOBJECT", "DESCRIPTION"}, rows)
				})
			case objectType == "RSDS":
				if sourceSystem == "" {
					return errors.New("--source-system is required for RSDS")
				}
				d, err := bw.ReadRSDS(ctx, sess, name, sourceSystem, version)
				if err != nil {
					return err
				}
				return a.out.emit(d, func(w io.Writer) error {
					if err := a.printPairs(w, [][2]string{{"DataSource", d.Name}, {"Source system", d.SourceSystem}, {"Description", d.Description}}); err != nil {
						return err
					}
					fmt.Fprintln(w)
					rows := make([][]string, 0, len(d.Fields))
					for _, f := range d.Fields {
						rows = append(rows, []string{f.Segment, f.Name, f.DataType, lengthOf(f.Length, f.Decimals), f.Description})
					}
					return a.out.table([]string{"SEGMENT", "FIELD", "TYPE", "LENGTH", "DESCRIPTION"}, rows)
				})
			case objectType == "DMOD":
				df, err := bw.ReadDataFlow(ctx, sess, name, version)
				if err != nil {
					return err
				}
				return a.out.emit(df, func(w io.Writer) error {
					if err := a.printPairs(w, [][2]string{{"DataFlow", df.Name}, {"Description", df.Description}}); err != nil {
						return err
					}
					fmt.Fprintln(w)
					rows := make([][]string, 0, len(df.Nodes))
					for _, n := range df.Nodes {
						rows = append(rows, []string{n.ID, n.Type, n.Name})
					}
					if err := a.out.table([]string{"NODE", "TYPE", "NAME"}, rows); err != nil {
						return err
					}
					if len(df.Connections) == 0 {
						return nil
					}
					fmt.Fprintln(w)
					rows = rows[:0]
					for _, c := range df.Connections {
						rows = append(rows, []string{c.From, c.To, c.Type})
					}
					return a.out.table([]string{"FROM", "TO", "TYPE"}, rows)
				})
			case bw.IsQueryComponentType(objectType):
				q, err := bw.ReadQueryComponent(ctx, sess, objectType, name, version)
				if err != nil {
					return err
				}
				return a.out.emit(q, func(w io.Writer) error {
					if err := a.printPairs(w, [][2]string{
						{q.Type, q.Name},
						{"Description", q.Description},
						{"InfoProvider", strings.TrimSpace(q.ProviderType + " " + q.InfoProvider)},
					}); err != nil {
						return err
					}
					if len(q.References) == 0 {
						return nil
					}
					fmt.Fprintln(w)
					rows := make([][]string, 0, len(q.References))
					for _, r := range q.References {
						rows = append(rows, []string{r.Name, r.Type, r.Role})
					}
					return a.out.table([]string{"NAME", "TYPE", "ROLE"}, rows)
				})
			}
			return a.printRaw(ctx, sess, objectType, name, version)
		},
	}
	cmd.Flags().StringVar(&version, "version", bw.DefaultVersion, "object version (a, m, d)")
	cmd.Flags().StringVar(&sourceSystem, "source-system", "", "source system of an RSDS DataSource")
	cmd.Flags().BoolVar(&raw, "raw", false, "print the XML as returned by the server")
	return cmd
}

func (a *app) printRaw(ctx context.Context, sess bw.Session, objectType, name, version string) error {
	data, err := bw.ReadObject(ctx, sess, objectType, name, version, "")
	if err != nil {
		return err
	}
	if a.out.json {
		return a.out.printJSON(map[string]any{"type": objectType, "name": name, "version": version, "xml": string(data)})
	}
	if _, err := a.out.stdout.Write(data); err != nil {
		return err
	}
	if len(data) > 0 && data[len(data)-1] != '\n' {
		_, err = io.WriteString(a.out.stdout, "\n")
	}
	return err
}

func (a *app) printPairs(w io.Writer, pairs [][2]string) error {
	width := 0
	for _, p := range pairs {
		if len(p[0]) > width {
			width = len(p[0])
		}
	}
	for _, p := range pairs {
		if strings.TrimSpace(p[1]) == "" {
			continue
		}
		if _, err := fmt.Fprintf(w, "%s %s\n", a.out.paint(a.out.out.bold, padRight(p[0]+":", width+1)), p[1]); err != nil {
			return err
		}
	}
	return nil
}

func keyMark(key bool) string {
	if key {
		return "X"
	}
	return ""
}

func lengthOf(length, decimals int) string {
	switch {
	case length == 0:
		return ""
	case decimals > 0:
		return strconv.Itoa(length) + "," + strconv.Itoa(decimals)
	}
	return strconv.Itoa(length)
}

func newBWNodesCommand(a *app) *cobra.Command {
	var datasource bool
	cmd := &cobra.Command{
		Use:   "nodes <type> <name>",
		Short: "List the child nodes of an InfoArea or other container",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sess, err := a.session(ctx)
			if err != nil {
				return err
			}
			nodes, err := bw.GetNodes(ctx, sess, strings.ToUpper(args[0]), strings.ToUpper(args[1]), datasource)
			if err != nil {
				return err
			}
			if a.out.json {
				return a.out.printJSON(nodes)
			}
			rows := make([][]string, 0, len(nodes))
			for _, n := range nodes {
				rows = append(rows, []string{n.Name, n.Type, n.Subtype, n.Status, n.Description})
			}
			return a.out.table([]string{"NAME", "TYPE", "SUBTYPE", "STATUS", "DESCRIPTION"}, rows)
		},
	}
	cmd.Flags().BoolVar(&datasource, "datasource", false, "list source system nodes (DataSources)")
	return cmd
}

// graphOutput prints a graph as JSON or, with --mermaid, as a flowchart.
type graphOutput struct {
	mermaid   bool
	direction string
}

func (o *graphOutput) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&o.mermaid, "mermaid", false, "print a Mermaid flowchart instead of JSON")
	cmd.Flags().StringVar(&o.direction, "direction", "TD", "Mermaid direction (TD or LR)")
}

func (o *graphOutput) print(a *app, g graph.Graph, v any) error {
	if o.mermaid && !a.out.json {
		_, err := io.WriteString(a.out.stdout, graph.Mermaid(g, graph.MermaidOptions{Direction: o.direction}))
		return err
	}
	if err := a.out.printJSON(v); err != nil {
		return err
	}
	a.warn(g.Warnings)
	return nil
}

func (a *app) warn(warnings []string) {
	if a.out.json || a.out.quiet {
		return
	}
	for _, w := range warnings {
		fmt.Fprintln(a.out.stderr, a.out.paint(a.out.err.hint, "warning: "+w))
	}
}

func newBWLineageCommand(a *app) *cobra.Command {
	var (
		opts   graph.LineageOptions
		noXref bool
		out    graphOutput
	)
	cmd := &cobra.Command{
		Use:   "lineage <dtp>",
		Short: "Trace the upstream data flow of a DTP",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sess, err := a.bwSession(ctx)
			if err != nil {
				return err
			}
			opts.DTP = strings.ToUpper(args[0])
			opts.IncludeXref = !noXref
			g, err := graph.Lineage(ctx, graph.NewAPI(sess), opts)
			if err != nil {
				return err
			}
			return out.print(a, g, g)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.Version, "version", bw.DefaultVersion, "object version")
	f.IntVar(&opts.MaxDepth, "max-depth", graph.DefaultMaxDepth, "upstream DTP hops to follow")
	f.StringVar(&opts.TRFN, "trfn", "", "transformation of the root DTP, skips the search")
	f.IntVar(&opts.MaxXref, "max-xref", graph.DefaultMaxXref, "cross reference results per object")
	f.BoolVar(&noXref, "no-xref", false, "do not follow ADSO sources through cross references")
	out.register(cmd)
	return cmd
}

func newBWExportCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export query graphs and InfoArea inventories",
	}

	var (
		qopts     graph.QueryExportOptions
		qout      graphOutput
		queryType string
	)
	query := &cobra.Command{
		Use:   "query <name>",
		Short: "Export the component graph of a query, optionally with upstream lineage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sess, err := a.bwSession(ctx)
			if err != nil {
				return err
			}
			qopts.Query.Name = strings.ToUpper(args[0])
			qopts.Query.Type = strings.ToUpper(queryType)
			res, err := graph.ExportQuery(ctx, graph.NewAPI(sess), qopts)
			if err != nil {
				return err
			}
			return qout.print(a, res.Graph, res)
		},
	}
	qf := query.Flags()
	qf.StringVar(&queryType, "type", "QUERY", "component type of the root")
	qf.StringVar(&qopts.Query.Version, "version", bw.DefaultVersion, "object version")
	qf.IntVar(&qopts.Query.MaxDepth, "max-depth", 0, "component reference depth")
	qf.StringVar(&qopts.Reduce.FocusRole, "focus-role", "", "role that is never collapsed")
	qf.IntVar(&qopts.Reduce.MaxNodesPerRole, "max-nodes-per-role", 0, "collapse crowded roles to this many nodes (0 keeps all)")
	qf.BoolVar(&qopts.Upstream, "upstream", false, "plan and merge the lineage feeding the InfoProvider")
	qf.IntVar(&qopts.LineageDepth, "lineage-depth", graph.DefaultMaxDepth, "upstream DTP hops for --upstream")
	qf.BoolVar(&qopts.IncludeXref, "xref", false, "follow cross references in the upstream lineage")
	qout.register(query)

	var (
		iopts     graph.ExportOptions
		types     []string
		mermaid   bool
		direction string
		noLineage bool
		noQueries bool
	)
	infoarea := &cobra.Command{
		Use:   "infoarea <name>",
		Short: "Export every object of an InfoArea with fields and data flow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sess, err := a.bwSession(ctx)
			if err != nil {
				return err
			}
			iopts.Types = types
			iopts.IncludeLineage = !noLineage
			iopts.IncludeQueries = !noQueries
			name := strings.ToUpper(args[0])
			exp, err := graph.ExportInfoarea(ctx, graph.NewAPI(sess), name, iopts)
			if err != nil {
				return err
			}
			if mermaid && !a.out.json {
				g := graph.Graph{Kind: graph.KindDataflow, Nodes: exp.DataflowNodes, Edges: exp.DataflowEdges}
				_, err := io.WriteString(a.out.stdout, graph.Mermaid(g, graph.MermaidOptions{Direction: direction}))
				return err
			}
			if err := a.out.printJSON(exp); err != nil {
				return err
			}
			if !a.out.json && !a.out.quiet {
				fmt.Fprintf(a.out.stderr, "%s: %s, %s, %s\n", name,
					humanCount(len(exp.Objects), "object"),
					humanCount(len(exp.DataflowNodes), "data flow node"),
					humanCount(len(exp.DataflowEdges), "edge"))
			}
			a.warn(exp.Warnings)
			return nil
		},
	}
	inf := infoarea.Flags()
	inf.StringVar(&iopts.Version, "version", bw.DefaultVersion, "object version")
	inf.IntVar(&iopts.MaxDepth, "max-depth", graph.DefaultExportDepth, "InfoArea nesting depth")
	inf.StringSliceVar(&types, "types", nil, "only these object types (comma separated)")
	inf.IntVar(&iopts.Concurrency, "concurrency", graph.DefaultExportConcurrency, "parallel object reads")
	inf.BoolVar(&noLineage, "no-lineage", false, "skip per-DTP lineage")
	inf.BoolVar(&noQueries, "no-queries", false, "skip query graphs")
	inf.BoolVar(&mermaid, "mermaid", false, "print the data flow as a Mermaid flowchart")
	inf.StringVar(&direction, "direction", "LR", "Mermaid direction (TD or LR)")

	cmd.AddCommand(query, infoarea)
	return cmd
}

func newBWJobsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and control BW background jobs",
	}
	list := &cobra.Command{
		Use:   "list",
		Short: "List jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			sess, err := a.session(ctx)
			if err != nil {
				return err
			}
			jobs, err := bw.ListJobs(ctx, sess)
			if err != nil {
				return err
			}
			if a.out.json {
				return a.out.printJSON(jobs)
			}
			rows := make([][]string, 0, len(jobs))
			for _, j := range jobs {
				rows = append(rows, []string{j.GUID, j.Status, j.JobType, j.Description})
			}
			return a.out.table([]string{"GUID", "STATUS", "TYPE", "DESCRIPTION"}, rows)
		},
	}
	show := &cobra.Command{
		Use:   "show <guid>",
		Short: "Show a job with progress and steps",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sess, err := a.session(ctx)
			if err != nil {
				return err
			}
			guid := args[0]
			job, err := bw.GetJob(ctx, sess, guid)
			if err != nil {
				return err
			}
			progress, err := bw.GetJobProgress(ctx, sess, guid)
			if err != nil {
				return err
			}
			steps, err := bw.GetJobSteps(ctx, sess, guid)
			if err != nil {
				return err
			}
			v := map[string]any{"job": job, "progress": progress, "steps": steps}
			return a.out.emit(v, func(w io.Writer) error {
				if err := a.printPairs(w, [][2]string{
					{"Job", job.GUID},
					{"Type", job.JobType},
					{"Status", job.Status},
					{"Description", job.Description},
					{"Progress", strconv.Itoa(progress.Percentage) + "% " + progress.Description},
				}); err != nil {
					return err
				}
				if len(steps) == 0 {
					return nil
				}
				fmt.Fprintln(w)
				rows := make([][]string, 0, len(steps))
				for _, s := range steps {
					rows = append(rows, []string{s.Name, s.Status, s.Description})
				}
				return a.out.table([]string{"STEP", "STATUS", "DESCRIPTION"}, rows)
			})
		},
	}
	status := &cobra.Command{
		Use:   "status <guid>",
		Short: "Print the status of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sess, err := a.session(ctx)
			if err != nil {
				return err
			}
			job, err := bw.GetJobStatus(ctx, sess, args[0])
			if err != nil {
				return err
			}
			return a.out.emit(job, func(w io.Writer) error {
				_, err := fmt.Fprintln(w, job.Status)
				return err
			})
		},
	}
	messages := &cobra.Command{
		Use:   "messages <guid>",
		Short: "Print the application log of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sess, err := a.session(ctx)
			if err != nil {
				return err
			}
			msgs, err := bw.GetJobMessages(ctx, sess, args[0])
			if err != nil {
				return err
			}
			if a.out.json {
				return a.out.printJSON(msgs)
			}
			rows := make([][]string, 0, len(msgs))
			for _, m := range msgs {
				rows = append(rows, []string{m.Severity, m.ObjectName, m.Text})
			}
			return a.out.table([]string{"SEVERITY", "OBJECT", "TEXT"}, rows)
		},
	}
	cmd.AddCommand(list, show, status, messages)

	control := []struct {
		use, short, verb string
		fn               func(*app, *cobra.Command, string) error
	}{
		{"interrupt", "Interrupt a running job", "interrupted", func(a *app, cmd *cobra.Command, guid string) error {
			sess, err := a.session(cmd.Context())
			if err != nil {
				return err
			}
			return bw.InterruptJob(cmd.Context(), sess, guid)
		}},
		{"restart", "Restart a failed job", "restarted", func(a *app, cmd *cobra.Command, guid string) error {
			sess, err := a.session(cmd.Context())
			if err != nil {
				return err
			}
			return bw.RestartJob(cmd.Context(), sess, guid)
		}},
		{"cleanup", "Remove the resources of a finished job", "cleaned up", func(a *app, cmd *cobra.Command, guid string) error {
			sess, err := a.session(cmd.Context())
			if err != nil {
				return err
			}
			return bw.CleanupJob(cmd.Context(), sess, guid)
		}},
	}
	for _, c := range control {
		cmd.AddCommand(&cobra.Command{
			Use:   c.use + " <guid>",
			Short: c.short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := c.fn(a, cmd, args[0]); err != nil {
					return err
				}
				return a.out.success(c.verb+" job "+args[0], map[string]any{"guid": args[0]})
			},
		})
	}
	return cmd
}

func newBWLocksCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "locks",
		Short: "List and delete BW lock table entries",
	}

	var (
		owner      string
		search     string
		maxResults int
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List lock table entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			sess, err := a.session(ctx)
			if err != nil {
				return err
			}
			locks, err := bw.ListLocks(ctx, sess, strings.ToUpper(owner), search, maxResults)
			if err != nil {
				return err
			}
			if a.out.json {
				return a.out.printJSON(locks)
			}
			rows := make([][]string, 0, len(locks))
			for _, l := range locks {
				rows = append(rows, []string{l.User, l.Object, l.Mode, l.TableName, l.Timestamp})
			}
			return a.out.table([]string{"USER", "OBJECT", "MODE", "TABLE", "TIMESTAMP"}, rows)
		},
	}
	list.Flags().StringVar(&owner, "lock-user", "", "only locks held by this user")
	list.Flags().StringVar(&search, "search", "", "search string")
	list.Flags().IntVar(&maxResults, "max", bw.DefaultLockResults, "maximum number of entries")

	var lock bw.Lock
	del := &cobra.Command{
		Use:   "delete",
		Short: "Delete a lock table entry identified by the fields of 'bw locks list --json'",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			switch {
			case lock.User == "":
				return errors.New("--lock-user is required")
			case lock.TableName == "":
				return errors.New("--table-name is required (from bw locks list)")
			case lock.Arg == "":
				return errors.New("--arg is required (from bw locks list)")
			}
			sess, err := a.session(ctx)
			if err != nil {
				return err
			}
			lock.User = strings.ToUpper(lock.User)
			if err := bw.DeleteLock(ctx, sess, lock); err != nil {
				return err
			}
			return a.out.success("deleted lock of "+lock.User+" on "+lock.TableName, map[string]any{"lock": lock})
		},
	}
	df := del.Flags()
	df.StringVar(&lock.User, "lock-user", "", "user holding the lock")
	df.StringVar(&lock.TableName, "table-name", "", "lock table name")
	df.StringVar(&lock.Arg, "arg", "", "lock argument")
	df.StringVar(&lock.Mode, "mode", "E", "lock mode")
	df.StringVar(&lock.Owner1, "owner1", "", "lock owner 1")
	df.StringVar(&lock.Owner2, "owner2", "", "lock owner 2")

	cmd.AddCommand(list, del)
	return cmd
}

func newBWCollectCommand(a *app) *cobra.Command {
	var mode, transport string
	cmd := &cobra.Command{
		Use:   "collect <type> <name>",
		Short: "Collect an object and its dependencies for a transport",
		Long: `collect asks the BW transport connection which objects belong with an object.
--mode is necessary, complete or dataflow. Without --transport the result is a
preview; with it the objects are written to that request.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			code, err := collectMode(mode)
			if err != nil {
				return err
			}
			sess, err := a.session(ctx)
			if err != nil {
				return err
			}
			res, err := bw.CollectTransport(ctx, sess, strings.ToUpper(args[1]), strings.ToUpper(args[0]), code, strings.ToUpper(transport))
			if err != nil {
				return err
			}
			return a.out.emit(res, func(w io.Writer) error {
				rows := make([][]string, 0, len(res.Details))
				for _, d := range res.Details {
					rows = append(rows, []string{d.Name, d.Type, d.Status, d.LastChangedBy, d.Description})
				}
				if err := a.out.table([]string{"NAME", "TYPE", "STATUS", "CHANGED BY", "DESCRIPTION"}, rows); err != nil {
					return err
				}
				if len(res.Dependencies) > 0 {
					fmt.Fprintln(w)
					deps := make([][]string, 0, len(res.Dependencies))
					for _, d := range res.Dependencies {
						deps = append(deps, []string{d.Name, d.Type, d.AssociationType, strings.TrimSpace(d.AssociatedType + " " + d.AssociatedName)})
					}
					if err := a.out.table([]string{"DEPENDENCY", "TYPE", "ASSOCIATION", "OF"}, deps); err != nil {
						return err
					}
				}
				for _, m := range res.Messages {
					fmt.Fprintln(w, m)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "necessary", "collection mode: necessary, complete or dataflow")
	cmd.Flags().StringVar(&transport, "transport", "", "write the collection to this request")
	return cmd
}

func collectMode(mode string) (string, error) {
	switch strings.ToLower(mode) {
	case "", "necessary", bw.CollectModeNecessary:
		return bw.CollectModeNecessary, nil
	case "complete", bw.CollectModeComplete:
		return bw.CollectModeComplete, nil
	case "dataflow", bw.CollectModeDataflow:
		return bw.CollectModeDataflow, nil
	}
	return "", fmt.Errorf("unknown --mode %q (want necessary, complete or dataflow)", mode)
}

func newBWValueHelpCommand(a *app) *cobra.Command {
	var filters map[string]string
	cmd := &cobra.Command{
		Use:   "valuehelp <domain>",
		Short: "Read a value help domain (infoareas, infoproviders, ...)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sess, err := a.session(ctx)
			if err != nil {
				return err
			}
			rows, err := bw.GetValueHelp(ctx, sess, args[0], filters)
			if err != nil {
				return err
			}
			return a.printRows(rows)
		},
	}
	cmd.Flags().StringToStringVar(&filters, "filter", nil, "query parameter as key=value (maxrows, pattern, objectType, infoprovider)")
	return cmd
}

func newBWFoldersCommand(a *app) *cobra.Command {
	var pkg, objectType, owner string
	cmd := &cobra.Command{
		Use:   "folders",
		Short: "List the virtual folders of a package",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			sess, err := a.session(ctx)
			if err != nil {
				return err
			}
			rows, err := bw.GetVirtualFolders(ctx, sess, strings.ToUpper(pkg), strings.ToUpper(objectType), strings.ToUpper(owner))
			if err != nil {
				return err
			}
			return a.printRows(rows)
		},
	}
	cmd.Flags().StringVar(&pkg, "package", "", "package")
	cmd.Flags().StringVar(&objectType, "type", "", "object type")
	cmd.Flags().StringVar(&owner, "owner", "", "responsible user")
	return cmd
}

func newBWVolumesCommand(a *app) *cobra.Command {
	var maxRows int
	cmd := &cobra.Command{
		Use:   "volumes <infoprovider>",
		Short: "Report the data volume of an InfoProvider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sess, err := a.session(ctx)
			if err != nil {
				return err
			}
			rows, err := bw.GetDataVolumes(ctx, sess, strings.ToUpper(args[0]), maxRows)
			if err != nil {
				return err
			}
			return a.printRows(rows)
		},
	}
	cmd.Flags().IntVar(&maxRows, "max", 0, "maximum number of rows")
	return cmd
}

// printRows renders generic attribute rows with one column per attribute
// seen in any row. The _element column comes first when present.
func (a *app) printRows(rows []bw.Row) error {
	if a.out.json {
		return a.out.printJSON(rows)
	}
	seen := map[string]bool{}
	var keys []string
	for _, r := range rows {
		for k := range r {
			if !seen[k] && k != "_element" && k != "_text" {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	sort.Strings(keys)
	hasText := false
	for _, r := range rows {
		if r["_text"] != "" {
			hasText = true
			break
		}
	}
	if hasText {
		keys = append(keys, "_text")
	}
	headers := make([]string, len(keys))
	for i, k := range keys {
		headers[i] = strings.ToUpper(strings.TrimPrefix(k, "_"))
	}
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		line := make([]string, len(keys))
		for i, k := range keys {
			line[i] = r[k]
		}
		out = append(out, line)
	}
	return a.out.table(headers, out)
}
