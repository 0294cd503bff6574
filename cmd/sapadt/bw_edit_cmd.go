package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"pkt.systems/sapadt/adterr"
	"pkt.systems/sapadt/bw"
	"pkt.systems/sapadt/workflow"
)

// bwSession is the session for BW reads, resolved through the modelling
// service document when the system publishes one.
func (a *app) bwSession(ctx context.Context) (bw.Session, error) {
	sess, err := a.session(ctx)
	if err != nil {
		return nil, err
	}
	return bw.Discovered(ctx, sess), nil
}

func newBWDiscoverCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "discover",
		Short: "List the BW modelling services the system publishes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			sess, err := a.session(ctx)
			if err != nil {
				return err
			}
			d, err := bw.Discover(ctx, sess)
			if err != nil {
				return err
			}
			if a.out.json {
				return a.out.printJSON(d.Services)
			}
			rows := make([][]string, 0, len(d.Services))
			for _, svc := range d.Services {
				href := svc.Href
				if tmpl, err := bw.ResolveEndpoint(d, svc.Scheme, svc.Term); err == nil {
					href = tmpl
				}
				rows = append(rows, []string{svc.Term, svc.Scheme, href, strings.Join(svc.Accept, ",")})
			}
			return a.out.table([]string{"TERM", "SCHEME", "HREF", "ACCEPT"}, rows)
		},
	}
}

func newBWDBInfoCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "dbinfo",
		Short: "Show the database the BW system runs on",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			sess, err := a.session(ctx)
			if err != nil {
				return err
			}
			info, err := bw.GetDBInfo(ctx, sess)
			if err != nil {
				return err
			}
			return a.out.emit(info, func(w io.Writer) error {
				return a.printPairs(w, [][2]string{
					{"Host", info.Host},
					{"Port", info.Port},
					{"Instance", info.Instance},
					{"Schema", info.Schema},
					{"Database", strings.TrimSpace(info.DatabaseType + " " + info.DatabaseName)},
					{"User", info.User},
					{"Version", strings.TrimSpace(info.Version + " " + info.Patchlevel)},
				})
			})
		},
	}
}

func newBWSaveCommand(a *app) *cobra.Command {
	var opts bw.SaveOptions
	var file string
	cmd := &cobra.Command{
		Use:   "save <type> <name>",
		Short: "Lock a BW object, replace its XML and unlock it",
		Long: `save writes the XML of a modelling object, usually one read with
'bw read --raw --version m' and edited. The object stays inactive until
'bw activate'. --file - reads from stdin.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if file == "" {
				return errors.New("--file is required")
			}
			content, err := a.readInput(file)
			if err != nil {
				return err
			}
			sess, err := a.session(ctx)
			if err != nil {
				return err
			}
			opts.ObjectType = strings.ToUpper(args[0])
			opts.Name = strings.ToUpper(args[1])
			opts.Content = content
			if err := workflow.SaveBWObjectWithAutoLock(ctx, sess, opts); err != nil {
				return err
			}
			return a.out.success(fmt.Sprintf("saved %s %s (%s)", opts.ObjectType, opts.Name, humanBytes(len(content))),
				map[string]any{"type": opts.ObjectType, "name": opts.Name, "bytes": len(content)})
		},
	}
	f := cmd.Flags()
	f.StringVar(&file, "file", "", "file with the object XML (- for stdin)")
	f.StringVar(&opts.Transport, "transport", "", "transport request, defaults to the one of the lock")
	f.StringVar(&opts.ContentType, "content-type", "", "media type of the XML, defaults to the type's")
	return cmd
}

func newBWDeleteCommand(a *app) *cobra.Command {
	var transport string
	cmd := &cobra.Command{
		Use:   "delete <type> <name>",
		Short: "Lock and delete a BW object",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sess, err := a.session(ctx)
			if err != nil {
				return err
			}
			objectType, name := strings.ToUpper(args[0]), strings.ToUpper(args[1])
			if err := workflow.DeleteBWObjectWithAutoLock(ctx, sess, objectType, name, transport); err != nil {
				return err
			}
			return a.out.success("deleted "+objectType+" "+name, map[string]any{"type": objectType, "name": name})
		},
	}
	cmd.Flags().StringVar(&transport, "transport", "", "transport request")
	return cmd
}

// activationObjects pairs up <type> <name> arguments.
func activationObjects(args []string, version string) ([]bw.ActivationObject, error) {
	if len(args) == 0 || len(args)%2 != 0 {
		return nil, errors.New("expected <type> <name> pairs")
	}
	objs := make([]bw.ActivationObject, 0, len(args)/2)
	for i := 0; i < len(args); i += 2 {
		objs = append(objs, bw.ActivationObject{
			Type:    strings.ToUpper(args[i]),
			Name:    strings.ToUpper(args[i+1]),
			Version: strings.ToUpper(version),
		})
	}
	return objs, nil
}

func newBWActivateCommand(a *app) *cobra.Command {
	var (
		opts    bw.ActivateOptions
		mode    string
		version string
	)
	cmd := &cobra.Command{
		Use:   "activate <type> <name> [<type> <name>...]",
		Short: "Validate, simulate or activate BW objects",
		Long: `activate sends the objects to the BW mass activation. --mode is activate,
validate, simulate or background; a background run prints the job GUID to
follow with 'bw jobs status'.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			m, err := bw.ParseActivationMode(mode)
			if err != nil {
				return err
			}
			objs, err := activationObjects(args, version)
			if err != nil {
				return err
			}
			sess, err := a.session(ctx)
			if err != nil {
				return err
			}
			opts.Mode = m
			opts.Objects = objs
			res, err := bw.Activate(ctx, sess, opts)
			if err != nil {
				return err
			}
			if a.out.json {
				if err := a.out.printJSON(res); err != nil {
					return err
				}
			} else {
				if len(res.Messages) > 0 {
					rows := make([][]string, 0, len(res.Messages))
					for _, msg := range res.Messages {
						rows = append(rows, []string{msg.Severity, strings.TrimSpace(msg.ObjectType + " " + msg.ObjectName), msg.Text})
					}
					if err := a.out.table([]string{"SEVERITY", "OBJECT", "TEXT"}, rows); err != nil {
						return err
					}
				}
				if res.Success {
					msg := string(m) + " finished for " + humanCount(len(objs), "object")
					if res.JobGUID != "" {
						msg = "started background activation job " + res.JobGUID
					}
					if err := a.out.success(msg, nil); err != nil {
						return err
					}
				}
			}
			if errs := res.Errors(); len(errs) > 0 {
				msg := errs[0].Text
				if len(errs) > 1 {
					msg += fmt.Sprintf(" (and %d more)", len(errs)-1)
				}
				return adterr.New("BwActivateObjects", "", adterr.CheckError, msg)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&mode, "mode", string(bw.ModeActivate), "activate, validate, simulate or background")
	f.StringVar(&version, "version", "M", "object version to activate")
	f.StringVar(&opts.Transport, "transport", "", "transport request")
	f.BoolVar(&opts.Force, "force", false, "activate even with warnings")
	f.BoolVar(&opts.ExecChecks, "exec-checks", false, "run the object checks")
	f.BoolVar(&opts.WithCTO, "with-cto", false, "record the objects in the transport organizer")
	f.BoolVar(&opts.Sort, "sort", false, "validate: sort objects by dependency")
	f.BoolVar(&opts.OnlyInactive, "only-inactive", false, "validate: only inactive objects")
	return cmd
}
