package main

import (
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"pkt.systems/sapadt/adt"
	"pkt.systems/sapadt/ident"
	"pkt.systems/sapadt/workflow"
)

func newObjectCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "object",
		Short: "Create, delete, inspect, lock and run repository objects",
	}
	cmd.AddCommand(
		newObjectCreateCommand(a),
		newObjectDeleteCommand(a),
		newObjectStructureCommand(a),
		newObjectLockCommand(a),
		newObjectUnlockCommand(a),
		newObjectTableCommand(a),
		newObjectCDSCommand(a),
		newObjectRunCommand(a),
	)
	return cmd
}

func newObjectCreateCommand(a *app) *cobra.Command {
	var (
		objectType  string
		name        string
		pkg         string
		description string
		transport   string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a class, interface, program, include, function group or CDS view",
		Example: `  sapadt object create --type CLAS/OC --name ZCL_DEMO --package ZDEMO --description "Demo class"
  sapadt object create --type PROG/P --name ZDEMO_REPORT --package '$TMP'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if objectType == "" || name == "" || pkg == "" {
				return errors.New("--type, --name and --package are required")
			}
			if _, err := ident.NewObjectType(objectType); err != nil {
				return err
			}
			pkg = strings.ToUpper(pkg)
			if _, err := ident.NewPackageName(pkg); err != nil {
				return err
			}
			sess, err := a.session(ctx)
			if err != nil {
				return err
			}
			if description == "" {
				description = name
			}
			uri, err := adt.CreateObject(ctx, sess, adt.ObjectCreate{
				Type:        objectType,
				Name:        strings.ToUpper(name),
				Package:     pkg,
				Description: description,
			}, transport)
			if err != nil {
				return err
			}
			return a.out.success("created "+uri.String(), map[string]any{"uri": uri.String(), "type": objectType, "name": strings.ToUpper(name)})
		},
	}
	cmd.Flags().StringVar(&objectType, "type", "", "object type, for example CLAS/OC, INTF/OI, PROG/P, PROG/I, FUGR/F, DDLS/DF")
	cmd.Flags().StringVar(&name, "name", "", "object name")
	cmd.Flags().StringVar(&pkg, "package", "", "target package")
	cmd.Flags().StringVar(&description, "description", "", "short description (defaults to the name)")
	cmd.Flags().StringVar(&transport, "transport", "", "transport request")
	return cmd
}

func newObjectDeleteCommand(a *app) *cobra.Command {
	var transport string
	cmd := &cobra.Command{
		Use:   "delete <uri|name>",
		Short: "Lock and delete an object",
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
			if err := workflow.DeleteObjectWithAutoLock(ctx, sess, uri, transport); err != nil {
				return err
			}
			return a.out.success("deleted "+uri.String(), map[string]any{"uri": uri.String()})
		},
	}
	cmd.Flags().StringVar(&transport, "transport", "", "transport request")
	return cmd
}

func newObjectStructureCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "structure <uri|name>",
		Short: "Show object metadata and includes",
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
			st, err := adt.GetObjectStructure(ctx, sess, uri)
			if err != nil {
				return err
			}
			return a.out.emit(st, func(w io.Writer) error {
				fields := [][2]string{
					{"Name", st.Name},
					{"Type", st.Type},
					{"URI", st.URI},
					{"Description", st.Description},
					{"Source", st.SourceURI},
					{"Version", st.Version},
					{"Language", st.Language},
					{"Responsible", st.Responsible},
					{"Changed by", st.ChangedBy},
					{"Changed at", st.ChangedAt},
					{"Created at", st.CreatedAt},
				}
				for _, f := range fields {
					if f[1] == "" {
						continue
					}
					if _, err := io.WriteString(w, a.out.paint(a.out.out.bold, padRight(f[0]+":", 13))+f[1]+"\n"); err != nil {
						return err
					}
				}
				if len(st.Includes) == 0 {
					return nil
				}
				if _, err := io.WriteString(w, "\n"); err != nil {
					return err
				}
				rows := make([][]string, 0, len(st.Includes))
				for _, inc := range st.Includes {
					rows = append(rows, []string{inc.Name, inc.IncludeType, inc.SourceURI})
				}
				return a.out.table([]string{"INCLUDE", "KIND", "SOURCE"}, rows)
			})
		},
	}
}

func padRight(s string, n int) string {
	if len(s) >= n {
		return s + " "
	}
	return s + strings.Repeat(" ", n-len(s))
}

func newObjectLockCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "lock <uri|name>",
		Short: "Lock an object and print the lock handle",
		Long: `lock switches to a stateful session, locks the object and prints the lock
handle. The lock lives in the server session, so --session-file is required
and must be passed to the 'source write --handle' and 'object unlock' calls
that follow.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if a.sessionFile() == "" {
				return errors.New("object lock needs --session-file")
			}
			sess, err := a.session(ctx)
			if err != nil {
				return err
			}
			uri, err := resolveObjectURI(ctx, sess, args[0])
			if err != nil {
				return err
			}
			sess.SetStateful(true)
			lock, err := adt.LockObject(ctx, sess, uri)
			if err != nil {
				return err
			}
			return a.out.emit(map[string]any{"uri": uri.String(), "lock": lock}, func(w io.Writer) error {
				if a.out.quiet {
					_, err := io.WriteString(w, lock.Handle+"\n")
					return err
				}
				msg := "locked " + uri.String() + ", handle " + lock.Handle
				if lock.Transport != "" {
					msg += ", transport " + lock.Transport
				}
				return a.out.success(msg, nil)
			})
		},
	}
}

func newObjectUnlockCommand(a *app) *cobra.Command {
	var handle string
	cmd := &cobra.Command{
		Use:   "unlock <uri|name>",
		Short: "Release a lock taken with 'object lock'",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if handle == "" {
				return errors.New("--handle is required")
			}
			h, err := ident.NewLockHandle(handle)
			if err != nil {
				return err
			}
			sess, err := a.session(ctx)
			if err != nil {
				return err
			}
			uri, err := resolveObjectURI(ctx, sess, args[0])
			if err != nil {
				return err
			}
			sess.SetStateful(true)
			if err := adt.UnlockObject(ctx, sess, uri, h); err != nil {
				return err
			}
			a.dropSession = true
			return a.out.success("unlocked "+uri.String(), map[string]any{"uri": uri.String()})
		},
	}
	cmd.Flags().StringVar(&handle, "handle", "", "lock handle printed by 'object lock'")
	return cmd
}

func newSearchCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search the ABAP repository",
	}
	var (
		objectType string
		maxResults int
	)
	objects := &cobra.Command{
		Use:   "objects <query>",
		Short: "Quick search by name pattern (* is a wildcard)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sess, err := a.session(ctx)
			if err != nil {
				return err
			}
			hits, err := adt.SearchObjects(ctx, sess, args[0], objectType, maxResults)
			if err != nil {
				return err
			}
			if a.out.json {
				return a.out.printJSON(hits)
			}
			rows := make([][]string, 0, len(hits))
			for _, h := range hits {
				rows = append(rows, []string{h.Name, h.Type, h.Package, h.Description, h.URI})
			}
			return a.out.table([]string{"NAME", "TYPE", "PACKAGE", "DESCRIPTION", "URI"}, rows)
		},
	}
	objects.Flags().StringVar(&objectType, "type", "", "restrict to an object type")
	objects.Flags().IntVar(&maxResults, "max", 100, "maximum number of results")
	cmd.AddCommand(objects)
	return cmd
}

func newActivateCommand(a *app) *cobra.Command {
	var (
		uri        string
		objectType string
		name       string
	)
	cmd := &cobra.Command{
		Use:   "activate",
		Short: "Activate one object, or everything inactive when no --uri is given",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			sess, err := a.session(ctx)
			if err != nil {
				return err
			}
			var res adt.ActivationResult
			if uri != "" {
				objectURI, err := resolveObjectURI(ctx, sess, uri)
				if err != nil {
					return err
				}
				if name == "" {
					name = objectNameFromURI(objectURI)
				}
				res, err = adt.ActivateObject(ctx, sess, objectURI.String(), objectType, strings.ToUpper(name), a.pollTimeout())
				if err != nil {
					return err
				}
			} else {
				res, err = adt.ActivatePending(ctx, sess, a.pollTimeout())
				if err != nil {
					return err
				}
			}
			if a.out.json {
				if err := a.out.printJSON(res); err != nil {
					return err
				}
			} else {
				if len(res.Messages) > 0 {
					rows := make([][]string, 0, len(res.Messages))
					for _, m := range res.Messages {
						line := ""
						if m.Line > 0 {
							line = strconv.Itoa(m.Line)
						}
						rows = append(rows, []string{m.Type, m.URI, line, m.ShortText})
					}
					if err := a.out.table([]string{"TYPE", "URI", "LINE", "TEXT"}, rows); err != nil {
						return err
					}
				}
				if res.Total == 0 {
					if err := a.out.success("nothing to activate", nil); err != nil {
						return err
					}
				} else if res.Failed == 0 {
					if err := a.out.success("activated "+humanCount(res.Activated, "object"), nil); err != nil {
						return err
					}
				}
			}
			if errs := res.ErrorMessages(); len(errs) > 0 || res.Failed > 0 {
				if len(errs) == 0 {
					errs = []adt.ActivationMessage{{Type: "E", ShortText: humanCount(res.Failed, "object") + " failed to activate"}}
				}
				return activationError(errs)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&uri, "uri", "", "object URI or name")
	cmd.Flags().StringVar(&objectType, "type", "", "object type")
	cmd.Flags().StringVar(&name, "name", "", "object name (defaults to the last URI segment)")
	return cmd
}
