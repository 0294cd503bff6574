package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"pkt.systems/sapadt/adt"
	"pkt.systems/sapadt/adterr"
	"pkt.systems/sapadt/client"
	"pkt.systems/sapadt/ident"
	"pkt.systems/sapadt/workflow"
)

func newSourceCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "source",
		Short: "Read, write, edit and syntax-check ABAP source",
	}
	cmd.AddCommand(
		newSourceReadCommand(a),
		newSourceWriteCommand(a),
		newSourceEditCommand(a),
		newSourceCheckCommand(a),
	)
	return cmd
}

// sourceTarget resolves a URI or object name to a source URI.
func (a *app) sourceTarget(ctx context.Context, arg string) (*client.Session, ident.ObjectURI, error) {
	sess, err := a.session(ctx)
	if err != nil {
		return nil, ident.ObjectURI{}, err
	}
	uri, err := resolveObjectURI(ctx, sess, arg)
	if err != nil {
		return nil, ident.ObjectURI{}, err
	}
	src, err := sourceURIFor(uri)
	if err != nil {
		return nil, ident.ObjectURI{}, err
	}
	return sess, src, nil
}

func newSourceReadCommand(a *app) *cobra.Command {
	var version string
	cmd := &cobra.Command{
		Use:   "read <uri|name>",
		Short: "Print the source of an object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sess, uri, err := a.sourceTarget(ctx, args[0])
			if err != nil {
				return err
			}
			src, err := adt.ReadSource(ctx, sess, uri, version)
			if err != nil {
				return err
			}
			return a.out.emit(map[string]any{"uri": uri.String(), "version": version, "source": src}, func(w io.Writer) error {
				if _, err := io.WriteString(w, src); err != nil {
					return err
				}
				if !strings.HasSuffix(src, "\n") {
					_, err := io.WriteString(w, "\n")
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&version, "version", "active", "source version (active, inactive)")
	return cmd
}

func newSourceWriteCommand(a *app) *cobra.Command {
	var (
		file      string
		transport string
		handle    string
		activate  bool
	)
	cmd := &cobra.Command{
		Use:   "write <uri|name>",
		Short: "Replace the source of an object",
		Long: `write locks the object, stores the source and unlocks it again. With --handle
the lock taken by 'object lock' is reused and the object stays locked; this
needs the same --session-file as the lock. --file - reads from stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if file == "" {
				return errors.New("--file is required")
			}
			src, err := a.readInput(file)
			if err != nil {
				return err
			}
			sess, uri, err := a.sourceTarget(ctx, args[0])
			if err != nil {
				return err
			}
			if handle != "" {
				h, err := ident.NewLockHandle(handle)
				if err != nil {
					return err
				}
				if a.sessionFile() == "" {
					return errors.New("--handle needs --session-file")
				}
				sess.SetStateful(true)
				err = adt.WriteSource(ctx, sess, uri, src, h, transport)
			} else {
				err = workflow.WriteSourceWithAutoLock(ctx, sess, uri, src, transport)
			}
			if err != nil {
				return err
			}
			fields := map[string]any{"uri": uri.String(), "bytes": len(src)}
			msg := fmt.Sprintf("wrote %s to %s", humanBytes(len(src)), uri)
			if activate {
				res, err := a.activateSource(ctx, sess, uri)
				if err != nil {
					return err
				}
				fields["activation"] = res
				msg += ", activated"
			}
			return a.out.success(msg, fields)
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "file with the new source (- for stdin)")
	cmd.Flags().StringVar(&transport, "transport", "", "transport request for the change")
	cmd.Flags().StringVar(&handle, "handle", "", "lock handle from 'object lock'")
	cmd.Flags().BoolVar(&activate, "activate", false, "activate the object after writing")
	return cmd
}

func (a *app) readInput(file string) (string, error) {
	if file == "-" {
		data, err := io.ReadAll(a.stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", file, err)
	}
	return string(data), nil
}

// activateSource activates the object owning sourceURI. Activation errors
// are returned as a CheckError carrying the first message.
func (a *app) activateSource(ctx context.Context, s adt.Session, sourceURI ident.ObjectURI) (adt.ActivationResult, error) {
	objectURI, err := workflow.ObjectURIFromSource(sourceURI)
	if err != nil {
		return adt.ActivationResult{}, err
	}
	res, err := adt.ActivateObject(ctx, s, objectURI.String(), "", objectNameFromURI(objectURI), a.pollTimeout())
	if err != nil {
		return res, err
	}
	if errs := res.ErrorMessages(); len(errs) > 0 {
		return res, activationError(errs)
	}
	return res, nil
}

func activationError(errs []adt.ActivationMessage) error {
	first := errs[0]
	msg := first.ShortText
	if first.Line > 0 {
		msg = "line " + strconv.Itoa(first.Line) + ": " + msg
	}
	if len(errs) > 1 {
		msg += fmt.Sprintf(" (and %d more)", len(errs)-1)
	}
	return adterr.New("Activate", first.URI, adterr.CheckError, msg)
}

// objectNameFromURI returns the upper-cased last path segment.
func objectNameFromURI(uri ident.ObjectURI) string {
	base := path.Base(uri.String())
	if unescaped, err := url.PathUnescape(base); err == nil {
		base = unescaped
	}
	return strings.ToUpper(base)
}

func newSourceCheckCommand(a *app) *cobra.Command {
	var version string
	cmd := &cobra.Command{
		Use:   "check <uri|name>",
		Short: "Run the syntax check on an object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sess, uri, err := a.sourceTarget(ctx, args[0])
			if err != nil {
				return err
			}
			msgs, err := adt.CheckSyntax(ctx, sess, uri, version)
			if err != nil {
				return err
			}
			if len(msgs) == 0 {
				return a.out.success("no syntax errors in "+uri.String(), map[string]any{"uri": uri.String(), "messages": msgs})
			}
			if a.out.json {
				if err := a.out.printJSON(map[string]any{"uri": uri.String(), "messages": msgs}); err != nil {
					return err
				}
			} else {
				rows := make([][]string, 0, len(msgs))
				for _, m := range msgs {
					line := ""
					if m.Line > 0 {
						line = strconv.Itoa(m.Line)
					}
					rows = append(rows, []string{m.Type, line, m.Text})
				}
				if err := a.out.table([]string{"TYPE", "LINE", "TEXT"}, rows); err != nil {
					return err
				}
			}
			errorCount := 0
			for _, m := range msgs {
				if m.IsError() {
					errorCount++
				}
			}
			if errorCount > 0 {
				return adterr.Newf("CheckSyntax", uri.String(), adterr.CheckError, "%s found", humanCount(errorCount, "syntax error"))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&version, "version", "inactive", "source version to check")
	return cmd
}

func newSourceEditCommand(a *app) *cobra.Command {
	var (
		transport string
		watch     bool
		activate  bool
	)
	cmd := &cobra.Command{
		Use:   "edit <uri|name>",
		Short: "Edit source in $VISUAL or $EDITOR and write it back",
		Long: `edit downloads the inactive source to a temporary file and opens it in
$VISUAL, $EDITOR or vi. The file is written back when the editor exits and
differs from what was downloaded. With --watch every save is pushed while the
editor is still open.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sess, uri, err := a.sourceTarget(ctx, args[0])
			if err != nil {
				return err
			}
			original, err := adt.ReadSource(ctx, sess, uri, "inactive")
			if err != nil {
				return err
			}
			dir, err := os.MkdirTemp("", "sapadt-edit-")
			if err != nil {
				return err
			}
			defer os.RemoveAll(dir)
			file := filepath.Join(dir, strings.ToLower(objectNameFromSourceURI(uri))+".abap")
			if err := os.WriteFile(file, []byte(original), 0o600); err != nil {
				return err
			}

			last := original
			pushes := 0
			push := func(ctx context.Context, content string) error {
				if content == last {
					return nil
				}
				if err := workflow.WriteSourceWithAutoLock(ctx, sess, uri, content, transport); err != nil {
					return err
				}
				last = content
				pushes++
				a.logger.Info("cli.source.pushed", "uri", uri.String(), "bytes", len(content))
				return nil
			}

			if watch {
				err = a.editWatching(ctx, file, push)
			} else {
				err = a.runEditor(ctx, file)
			}
			if err != nil {
				return err
			}
			final, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			if err := push(ctx, string(final)); err != nil {
				return err
			}
			if pushes == 0 {
				return a.out.success("no changes to "+uri.String(), map[string]any{"uri": uri.String(), "changed": false})
			}
			fields := map[string]any{"uri": uri.String(), "changed": true, "writes": pushes}
			msg := fmt.Sprintf("saved %s (%s)", uri, humanCount(pushes, "write"))
			if activate {
				res, err := a.activateSource(ctx, sess, uri)
				if err != nil {
					return err
				}
				fields["activation"] = res
				msg += ", activated"
			}
			return a.out.success(msg, fields)
		},
	}
	cmd.Flags().StringVar(&transport, "transport", "", "transport request for the change")
	cmd.Flags().BoolVar(&watch, "watch", false, "push every save while the editor is open")
	cmd.Flags().BoolVar(&activate, "activate", false, "activate the object after the last write")
	return cmd
}

func objectNameFromSourceURI(uri ident.ObjectURI) string {
	if obj, err := workflow.ObjectURIFromSource(uri); err == nil {
		return objectNameFromURI(obj)
	}
	return objectNameFromURI(uri)
}

// editWatching runs the editor and a watcher side by side. The watcher stops
// when the editor exits; a failed push stops the watcher but leaves the
// editor open.
func (a *app) editWatching(ctx context.Context, file string, push func(context.Context, string) error) error {
	editorDone := make(chan struct{})
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(editorDone)
		return a.runEditor(gctx, file)
	})
	g.Go(func() error {
		return watchFile(gctx, file, editorDone, func(content string) error {
			return push(gctx, content)
		})
	})
	return g.Wait()
}

// watchFile calls onChange with the file's content after every write or
// rename into place, until done is closed or ctx ends. The directory is
// watched so editors that replace the file on save are followed.
func watchFile(ctx context.Context, file string, done <-chan struct{}, onChange func(string) error) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer w.Close()
	if err := w.Add(filepath.Dir(file)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(file), err)
	}
	name := filepath.Base(file)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-done:
			return nil
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watch: %w", err)
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != name || !(ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
				continue
			}
			data, err := os.ReadFile(file)
			if err != nil {
				if os.IsNotExist(err) {
					continue
				}
				return err
			}
			if err := onChange(string(data)); err != nil {
				return err
			}
		}
	}
}

func editorCommand() string {
	for _, key := range []string{"VISUAL", "EDITOR"} {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v
		}
	}
	return "vi"
}

// launchEditor runs the editor through the shell so $EDITOR may carry
// arguments.
func (a *app) launchEditor(ctx context.Context, file string) error {
	cmd := exec.CommandContext(ctx, "sh", "-c", editorCommand()+` "$1"`, "sh", file)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("editor %s: %w", editorCommand(), err)
	}
	return nil
}
