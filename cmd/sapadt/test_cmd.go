package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"pkt.systems/sapadt/adt"
	"pkt.systems/sapadt/adterr"
	"pkt.systems/sapadt/xmlcodec"
)

func newTestCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test",
		Short: "Run ABAP Unit tests and ATC checks",
	}
	cmd.AddCommand(newTestRunCommand(a), newTestATCCommand(a))
	return cmd
}

func newTestRunCommand(a *app) *cobra.Command {
	var (
		dangerous bool
		long      bool
	)
	cmd := &cobra.Command{
		Use:   "run <uri|name>",
		Short: "Run the ABAP Unit tests of an object or package",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sess, err := a.session(ctx)
			if err != nil {
				return err
			}
			uri, err := resolveObjectURI(ctx, sess, args[0])
			if err != nil {
				return err
			}
			opts := xmlcodec.DefaultUnitTestOptions()
			opts.Dangerous = dangerous
			opts.Critical = dangerous
			opts.Long = long
			res, err := adt.RunUnitTests(ctx, sess, uri, opts)
			if err != nil {
				return err
			}
			total, failed := res.Counts()
			err = a.out.emit(res, func(w io.Writer) error {
				return a.printUnitTests(w, res)
			})
			if err != nil {
				return err
			}
			if failed > 0 {
				return adterr.Newf("RunUnitTests", uri.String(), adterr.CheckError, "%d of %s failed", failed, humanCount(total, "test"))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dangerous, "dangerous", false, "include dangerous and critical risk levels")
	cmd.Flags().BoolVar(&long, "long", false, "include long running tests")
	return cmd
}

func (a *app) printUnitTests(w io.Writer, res adt.UnitTestResult) error {
	total, failed := res.Counts()
	for _, class := range res.Classes {
		fmt.Fprintln(w, a.out.paint(a.out.out.bold, class.Name))
		for _, alert := range class.Alerts {
			fmt.Fprintf(w, "  %s %s\n", a.out.paint(a.out.err.errLabel, "!"), alert.Title)
		}
		for _, m := range class.Methods {
			mark := a.out.paint(a.out.out.ok, "PASS")
			if !m.Passed() {
				mark = a.out.paint(a.out.err.errLabel, "FAIL")
			}
			fmt.Fprintf(w, "  %s %s %s\n", mark, m.Name, a.out.paint(a.out.out.dim, strconv.FormatFloat(m.ExecutionTime, 'f', 3, 64)+"s"))
			for _, alert := range m.Alerts {
				fmt.Fprintf(w, "       %s\n", alert.Title)
				for _, d := range alert.Details {
					fmt.Fprintf(w, "         %s\n", a.out.paint(a.out.out.dim, d))
				}
			}
		}
	}
	if total == 0 {
		_, err := fmt.Fprintln(w, "no tests found")
		return err
	}
	_, err := fmt.Fprintf(w, "%s, %d failed\n", humanCount(total, "test"), failed)
	return err
}

func newTestATCCommand(a *app) *cobra.Command {
	var (
		variant     string
		maxVerdicts int
	)
	cmd := &cobra.Command{
		Use:   "atc <uri|name>",
		Short: "Run an ATC check variant and list the findings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sess, err := a.session(ctx)
			if err != nil {
				return err
			}
			uri, err := resolveObjectURI(ctx, sess, args[0])
			if err != nil {
				return err
			}
			findings, err := adt.RunATC(ctx, sess, uri, variant, maxVerdicts)
			if err != nil {
				return err
			}
			if a.out.json {
				return a.out.printJSON(findings)
			}
			if len(findings) == 0 {
				return a.out.success("no ATC findings for "+uri.String(), nil)
			}
			rows := make([][]string, 0, len(findings))
			for _, f := range findings {
				text := f.MessageTitle
				if text == "" {
					text = f.Message
				}
				rows = append(rows, []string{strconv.Itoa(f.Priority), f.CheckTitle, text, strings.TrimPrefix(f.URI, "/sap/bc/adt")})
			}
			return a.out.table([]string{"PRIO", "CHECK", "MESSAGE", "LOCATION"}, rows)
		},
	}
	cmd.Flags().StringVar(&variant, "variant", "DEFAULT", "ATC check variant")
	cmd.Flags().IntVar(&maxVerdicts, "max", 100, "maximum number of verdicts")
	return cmd
}

func newTransportCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transport",
		Short: "List, create and release transport requests",
	}

	var owner string
	list := &cobra.Command{
		Use:   "list",
		Short: "List modifiable transport requests",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			sess, err := a.session(ctx)
			if err != nil {
				return err
			}
			trs, err := adt.ListTransports(ctx, sess, owner)
			if err != nil {
				return err
			}
			if a.out.json {
				return a.out.printJSON(trs)
			}
			var rows [][]string
			for _, tr := range trs {
				rows = append(rows, []string{tr.Number, tr.Owner, tr.Status, tr.Target, tr.Description})
				for _, task := range tr.Tasks {
					rows = append(rows, []string{"  " + task.Number, task.Owner, task.Status, "", task.Description})
				}
			}
			return a.out.table([]string{"NUMBER", "OWNER", "STATUS", "TARGET", "DESCRIPTION"}, rows)
		},
	}
	list.Flags().StringVar(&owner, "owner", "", "request owner (defaults to the logged in user)")

	var description, pkg string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a workbench request",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if strings.TrimSpace(description) == "" {
				return fmt.Errorf("--description is required")
			}
			sess, err := a.session(ctx)
			if err != nil {
				return err
			}
			number, err := adt.CreateTransport(ctx, sess, description, strings.ToUpper(pkg))
			if err != nil {
				return err
			}
			if a.out.quiet && !a.out.json {
				_, err := fmt.Fprintln(a.out.stdout, number)
				return err
			}
			return a.out.success("created transport "+number, map[string]any{"number": number})
		},
	}
	create.Flags().StringVar(&description, "description", "", "request description")
	create.Flags().StringVar(&pkg, "package", "", "package the request is for")

	release := &cobra.Command{
		Use:   "release <number>",
		Short: "Release a transport request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sess, err := a.session(ctx)
			if err != nil {
				return err
			}
			number := strings.ToUpper(args[0])
			if err := adt.ReleaseTransport(ctx, sess, number); err != nil {
				return err
			}
			return a.out.success("released "+number, map[string]any{"number": number})
		},
	}

	cmd.AddCommand(list, create, release)
	return cmd
}
