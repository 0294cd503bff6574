package main

import (
	"io"
	"strings"

	"github.com/spf13/cobra"

	"pkt.systems/sapadt/adt"
)

func newObjectTableCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "table <name>",
		Short: "Show the fields of a database table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sess, err := a.session(ctx)
			if err != nil {
				return err
			}
			info, err := adt.GetTableDefinition(ctx, sess, args[0])
			if err != nil {
				return err
			}
			return a.out.emit(info, func(w io.Writer) error {
				if err := a.printPairs(w, [][2]string{{"Table", info.Name}, {"Description", info.Description}, {"Delivery class", info.DeliveryClass}}); err != nil {
					return err
				}
				if _, err := io.WriteString(w, "\n"); err != nil {
					return err
				}
				rows := make([][]string, 0, len(info.Fields))
				for _, f := range info.Fields {
					rows = append(rows, []string{f.Name, keyMark(f.Key), f.Type, f.Description})
				}
				return a.out.table([]string{"FIELD", "KEY", "TYPE", "DESCRIPTION"}, rows)
			})
		},
	}
}

func newObjectCDSCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "cds <name>",
		Short: "Print the DDL source of a CDS view",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sess, err := a.session(ctx)
			if err != nil {
				return err
			}
			name := strings.ToUpper(args[0])
			src, err := adt.GetCDSSource(ctx, sess, name)
			if err != nil {
				return err
			}
			if a.out.json {
				return a.out.printJSON(map[string]any{"name": name, "source": src})
			}
			if _, err := io.WriteString(a.out.stdout, src); err != nil {
				return err
			}
			if !strings.HasSuffix(src, "\n") {
				_, err = io.WriteString(a.out.stdout, "\n")
			}
			return err
		},
	}
}

func newObjectRunCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run <class|uri>",
		Short: "Run a class implementing IF_OO_ADT_CLASSRUN and print its output",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sess, err := a.session(ctx)
			if err != nil {
				return err
			}
			res, err := adt.RunClass(ctx, sess, args[0])
			if err != nil {
				return err
			}
			if a.out.json {
				return a.out.printJSON(res)
			}
			_, err = io.WriteString(a.out.stdout, res.Output)
			return err
		},
	}
}
