package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"pkt.systems/sapadt/adterr"
	"pkt.systems/sapadt/client"
	"pkt.systems/sapadt/deploy"
)

const defaultDeployFile = "sapadt-deploy.yaml"

// deployFlags are shared by every deploy subcommand. --config names the
// deployment file here; the CLI config file then only comes from
// SAPADT_CONFIG or the default location.
type deployFlags struct {
	config string
	repo   string
}

func (f *deployFlags) register(cmd *cobra.Command, withRepo bool) {
	cmd.Flags().StringVar(&f.config, "config", defaultDeployFile, "deployment YAML file")
	if withRepo {
		cmd.Flags().StringVar(&f.repo, "repo", "", "only this repository")
	}
}

func (f *deployFlags) load() (deploy.Config, error) {
	if strings.TrimSpace(f.config) == "" {
		return deploy.Config{}, errors.New("--config is required")
	}
	return deploy.Load(f.config)
}

func newDeployCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Deploy abapGit repositories described in a YAML file",
		Long: `deploy reads a YAML file listing abapGit repositories and their packages,
orders them by depends_on and runs package creation, clone or pull and
activation for each. The connection block of the file is used when --host is
not given.`,
		Example: `  # sapadt-deploy.yaml
  connection:
    host: vhcala4hci
    port: 50000
    client: "001"
    user: DEVELOPER
    password_env: SAP_PASSWORD
  fail_fast: false
  repos:
    - name: base
      url: https://github.com/example/base.git
      package: ZBASE
    - name: app
      url: https://github.com/example/app.git
      package: ZAPP
      depends_on: [base]

  sapadt deploy --config sapadt-deploy.yaml
  sapadt deploy status --config sapadt-deploy.yaml`,
	}
	cmd.AddCommand(
		newDeployRunCommand(a),
		newDeployStatusCommand(a),
		newDeployPullCommand(a),
		newDeployActivateCommand(a),
		newDeployDiscoverCommand(a),
	)
	return cmd
}

// deploySession prefers the deployment file's connection when the host was
// not given on the command line. Missing user, client or password fall back
// to the usual resolution.
func (a *app) deploySession(ctx context.Context, cfg deploy.Config) (*client.Session, error) {
	if a.sess != nil || cfg.Connection.Host == "" || a.v.IsSet(keyHost) {
		return a.session(ctx)
	}
	base, err := a.resolveConnection()
	if err != nil && !adterr.Is(err, adterr.Connection) {
		return nil, err
	}
	c := cfg.Connection
	conn := connection{
		Host:     c.Host,
		Port:     c.Port,
		HTTPS:    c.HTTPS,
		Insecure: c.Insecure,
		Client:   c.Client,
		User:     c.User,
		Password: c.ResolvePassword(),
	}
	if conn.Client == "" {
		conn.Client = base.Client
	}
	if conn.User == "" {
		conn.User = base.User
	}
	if conn.Password == "" {
		conn.Password = base.Password
	}
	sess, err := a.newSession(conn)
	if err != nil {
		return nil, err
	}
	if path := a.sessionFile(); path != "" {
		if err := sess.LoadSession(path); err != nil {
			return nil, err
		}
	}
	a.sess = sess
	a.logger.Debug("cli.deploy.connection", "url", conn.baseURL(), "user", conn.User)
	return sess, nil
}

func newDeployRunCommand(a *app) *cobra.Command {
	var (
		flags    deployFlags
		failFast bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Deploy every repository in dependency order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			sess, err := a.deploySession(ctx, cfg)
			if err != nil {
				return err
			}
			res, err := deploy.Run(ctx, sess, cfg, deploy.Options{FailFast: failFast})
			if err != nil {
				return err
			}
			if err := a.out.emit(res, func(w io.Writer) error {
				if err := a.printSteps(w, append([]deploy.RepoResult{{Name: "(system)", Steps: []deploy.StepResult{res.Discovery}}}, res.Repos...)); err != nil {
					return err
				}
				_, err := fmt.Fprintf(w, "%s in %s\n", res.Summary, humanDuration(res.Duration))
				return err
			}); err != nil {
				return err
			}
			if !res.Success {
				return adterr.New("Deploy", "", adterr.Internal, res.Summary)
			}
			return nil
		},
	}
	flags.register(cmd, false)
	cmd.Flags().BoolVar(&failFast, "fail-fast", false, "skip remaining repositories after the first failure")
	return cmd
}

func (a *app) printSteps(w io.Writer, repos []deploy.RepoResult) error {
	var rows [][]string
	for _, rr := range repos {
		for _, st := range rr.Steps {
			rows = append(rows, []string{rr.Name, st.Name, a.outcome(st.Outcome), humanDuration(st.Duration), st.Message})
		}
	}
	return a.out.table([]string{"REPO", "STEP", "OUTCOME", "DURATION", "MESSAGE"}, rows)
}

func (a *app) outcome(o deploy.Outcome) string {
	switch o {
	case deploy.Completed:
		return a.out.paint(a.out.out.ok, string(o))
	case deploy.Failed:
		return a.out.paint(a.out.err.errLabel, string(o))
	}
	return a.out.paint(a.out.out.dim, string(o))
}

// repoResults prints per-repo results and fails when any repo failed.
func (a *app) repoResults(op string, results []deploy.RepoResult) error {
	if err := a.out.emit(results, func(w io.Writer) error {
		return a.printSteps(w, results)
	}); err != nil {
		return err
	}
	failed := 0
	for _, rr := range results {
		if !rr.Success {
			failed++
		}
	}
	if failed > 0 {
		return adterr.Newf(op, "", adterr.Internal, "%d of %s failed", failed, humanCount(len(results), "repository"))
	}
	return nil
}

func newDeployStatusCommand(a *app) *cobra.Command {
	var flags deployFlags
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show whether each repository is linked on the system",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			sess, err := a.deploySession(ctx, cfg)
			if err != nil {
				return err
			}
			statuses, err := deploy.Status(ctx, sess, cfg, flags.repo)
			if err != nil {
				return err
			}
			if a.out.json {
				return a.out.printJSON(statuses)
			}
			rows := make([][]string, 0, len(statuses))
			for _, st := range statuses {
				linked := "no"
				if st.Linked {
					linked = "yes"
				}
				rows = append(rows, []string{st.Name, st.Package, linked, st.Status, st.Branch, st.URL})
			}
			return a.out.table([]string{"REPO", "PACKAGE", "LINKED", "STATUS", "BRANCH", "URL"}, rows)
		},
	}
	flags.register(cmd, true)
	return cmd
}

func newDeployPullCommand(a *app) *cobra.Command {
	var flags deployFlags
	cmd := &cobra.Command{
		Use:   "pull",
		Short: "Pull linked repositories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			sess, err := a.deploySession(ctx, cfg)
			if err != nil {
				return err
			}
			results, err := deploy.Pull(ctx, sess, cfg, flags.repo)
			if err != nil {
				return err
			}
			return a.repoResults("DeployPull", results)
		},
	}
	flags.register(cmd, true)
	return cmd
}

func newDeployActivateCommand(a *app) *cobra.Command {
	var flags deployFlags
	cmd := &cobra.Command{
		Use:   "activate",
		Short: "Activate pending objects for repositories with activation enabled",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			sess, err := a.deploySession(ctx, cfg)
			if err != nil {
				return err
			}
			results, err := deploy.Activate(ctx, sess, cfg, flags.repo)
			if err != nil {
				return err
			}
			return a.repoResults("DeployActivate", results)
		},
	}
	flags.register(cmd, true)
	return cmd
}

func newDeployDiscoverCommand(a *app) *cobra.Command {
	var flags deployFlags
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Check that the system supports abapGit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			var cfg deploy.Config
			if cmd.Flags().Changed("config") {
				loaded, err := flags.load()
				if err != nil {
					return err
				}
				cfg = loaded
			}
			sess, err := a.deploySession(ctx, cfg)
			if err != nil {
				return err
			}
			st := deploy.Discover(ctx, sess)
			if st.Outcome == deploy.Failed {
				if a.out.json {
					if err := a.out.printJSON(st); err != nil {
						return err
					}
				}
				return adterr.New("DeployDiscover", "", adterr.Internal, st.Message)
			}
			msg := st.Message
			if msg == "" {
				msg = "abapGit is available on " + sess.BaseURL()
			}
			return a.out.success(msg, map[string]any{"step": st})
		},
	}
	flags.register(cmd, false)
	return cmd
}
