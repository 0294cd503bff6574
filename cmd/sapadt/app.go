package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"pkt.systems/pslog"
	"pkt.systems/sapadt/adt"
	"pkt.systems/sapadt/adterr"
	"pkt.systems/sapadt/client"
	"pkt.systems/sapadt/internal/loggingutil"
	"pkt.systems/sapadt/internal/pathutil"
	"pkt.systems/sapadt/internal/router"
	"pkt.systems/sapadt/internal/telemetry"
)

const (
	appName        = "sapadt"
	configFileName = "config.yaml"
	logEnvPrefix   = "SAPADT_LOG_"
)

// Viper keys; each equals the flag name.
const (
	keyConfig          = "config"
	keyHost            = "host"
	keyPort            = "port"
	keyHTTPS           = "https"
	keyInsecure        = "insecure"
	keyClient          = "client"
	keyUser            = "user"
	keyPassword        = "password"
	keyPasswordEnv     = "password-env"
	keyJSON            = "json"
	keyColor           = "color"
	keyNoColor         = "no-color"
	keyVerbose         = "verbose"
	keyQuiet           = "quiet"
	keyTimeout         = "timeout"
	keyPollTimeout     = "poll-timeout"
	keySessionFile     = "session-file"
	keyCorrelationID   = "correlation-id"
	keyOTLPEndpoint    = "otlp-endpoint"
	keyMetricsTextfile = "metrics-textfile"
)

func submain(ctx context.Context) int {
	baseLogger := pslog.LoggerFromEnv(context.Background(),
		pslog.WithEnvPrefix(logEnvPrefix),
		pslog.WithEnvOptions(pslog.Options{Mode: pslog.ModeConsole, MinLevel: pslog.InfoLevel}),
		pslog.WithEnvWriter(os.Stderr),
	).With("app", appName)
	ctx = withSignalCancel(ctx)
	return run(ctx, newApp(baseLogger, os.Stdin, os.Stdout, os.Stderr), os.Args[1:])
}

// app carries the state shared by every command of one invocation.
type app struct {
	v      *viper.Viper
	logger pslog.Logger
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	out       *printer
	prepared  bool
	sess      *client.Session
	telemetry *telemetry.Bundle
	// dropSession removes the session file on close instead of saving it.
	dropSession bool
	// runEditor opens path in the user's editor and returns when it exits.
	runEditor func(ctx context.Context, path string) error
}

func newApp(logger pslog.Logger, stdin io.Reader, stdout, stderr io.Writer) *app {
	v := viper.New()
	v.SetEnvPrefix("SAPADT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	a := &app{
		v:      v,
		logger: loggingutil.EnsureLogger(logger),
		stdin:  stdin,
		stdout: stdout,
		stderr: stderr,
	}
	a.runEditor = a.launchEditor
	return a
}

// run builds the command tree and hands args to the router front door.
func run(ctx context.Context, a *app, args []string) int {
	root := newRootCommand(a)
	root.SetIn(a.stdin)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)
	return newFrontDoor(a, root).Run(ctx, args, a.stdout, a.stderr)
}

// newFrontDoor registers every cobra command with the router. Groups with
// subcommands register one action per subcommand; leaf commands register
// the empty action.
func newFrontDoor(a *app, root *cobra.Command) *router.Router {
	r := router.New(root.Name())
	h := a.cobraHandler(root)
	for _, group := range root.Commands() {
		if group.Hidden {
			continue
		}
		name := group.Name()
		r.Describe(name, "", group.Short)
		subs := group.Commands()
		if len(subs) == 0 {
			r.Register(name, "", h)
			continue
		}
		for _, sub := range subs {
			r.Register(name, sub.Name(), h)
			r.Describe(name, sub.Name(), sub.Short)
		}
	}
	r.SetDefault("source", "read")
	r.SetDefault("deploy", "run")
	r.AddBoolFlags(boolFlagNames(root)...)
	return r
}

// boolFlagNames lists every boolean flag in the tree so the router never
// lets one swallow a positional argument.
func boolFlagNames(root *cobra.Command) []string {
	var out []string
	var walk func(*cobra.Command)
	visit := func(f *pflag.Flag) {
		if f.Value.Type() == "bool" {
			out = append(out, f.Name)
		}
	}
	walk = func(c *cobra.Command) {
		c.PersistentFlags().VisitAll(visit)
		c.Flags().VisitAll(visit)
		for _, sub := range c.Commands() {
			walk(sub)
		}
	}
	walk(root)
	return out
}

func (a *app) cobraHandler(root *cobra.Command) router.Handler {
	return func(ctx context.Context, inv router.Invocation) int {
		args := []string{inv.Group}
		if inv.Action != "" {
			args = append(args, inv.Action)
		}
		args = append(args, inv.Positional...)
		args = append(args, inv.FlagArgs()...)
		if a.out == nil {
			a.out = newPrinter(a.stdout, a.stderr, inv.Bool(keyJSON), false, false)
		}
		return a.execute(ctx, root, args)
	}
}

func (a *app) execute(ctx context.Context, root *cobra.Command, args []string) int {
	root.SetArgs(args)
	_, err := root.ExecuteContextC(ctx)
	if cerr := a.close(context.WithoutCancel(ctx)); cerr != nil && err == nil {
		err = cerr
	}
	if err == nil {
		return adterr.ExitOK
	}
	if errors.Is(err, context.Canceled) {
		return adterr.ExitUsage
	}
	a.out.printError(err)
	return adterr.ExitCode(err)
}

func newRootCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:           appName,
		Short:         "SAP ABAP development and BW modeling over ADT",
		SilenceErrors: true,
		SilenceUsage:  true,
		Example: `
  # Save a connection, then read a class
  sapadt login --host sap.example.com --port 44300 --https --user DEVELOPER --client 100
  sapadt source /sap/bc/adt/oo/classes/zcl_demo/source/main

  # Upstream lineage of a DTP as a Mermaid flowchart
  sapadt bw lineage DTP_00O2TN3NK7QWX3AS1DD1T1W0O --mermaid

  # Deploy every repository in a deployment file
  sapadt deploy --config deploy.yaml --fail-fast
`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.prepare(cmd.Context()); err != nil {
				return err
			}
			cmd.SetContext(client.WithCorrelationID(cmd.Context(), a.correlationID()))
			return nil
		},
	}
	cmd.CompletionOptions.DisableDefaultCmd = true

	pf := cmd.PersistentFlags()
	pf.String(keyConfig, "", "path to YAML config file (default $HOME/.config/sapadt/"+configFileName+")")
	pf.String(keyHost, "localhost", "SAP application server host")
	pf.Int(keyPort, 50000, "ICM port")
	pf.Bool(keyHTTPS, false, "use HTTPS")
	pf.Bool(keyInsecure, false, "skip TLS certificate verification")
	pf.String(keyClient, "001", "SAP client")
	pf.String(keyUser, "DEVELOPER", "SAP user")
	pf.String(keyPassword, "", "SAP password")
	pf.String(keyPasswordEnv, "", "read the password from this environment variable")
	pf.Bool(keyJSON, false, "print results and errors as JSON")
	pf.Bool(keyColor, false, "force colored output")
	pf.Bool(keyNoColor, false, "disable colored output")
	pf.Bool(keyVerbose, false, "log HTTP traffic at debug level")
	pf.Bool(keyQuiet, false, "only log errors")
	pf.Duration(keyTimeout, client.DefaultHTTPTimeout, "HTTP request timeout")
	pf.Duration(keyPollTimeout, adt.DefaultPollTimeout, "maximum wait for asynchronous server operations")
	pf.String(keySessionFile, "", "load and save cookies, CSRF token and lock context in this file")
	pf.String(keyCorrelationID, "", "correlation id sent with every request (default generated)")
	pf.String(keyOTLPEndpoint, "", "OTLP trace endpoint (grpc://, http(s)://, or bare host:port)")
	pf.String(keyMetricsTextfile, "", "write Prometheus metrics to this file on exit")

	mustBindFlag(a.v, keyConfig, "SAPADT_CONFIG", pf.Lookup(keyConfig))
	mustBindFlag(a.v, keyHost, "SAPADT_HOST", pf.Lookup(keyHost))
	mustBindFlag(a.v, keyPort, "SAPADT_PORT", pf.Lookup(keyPort))
	mustBindFlag(a.v, keyHTTPS, "SAPADT_HTTPS", pf.Lookup(keyHTTPS))
	mustBindFlag(a.v, keyInsecure, "SAPADT_INSECURE", pf.Lookup(keyInsecure))
	mustBindFlag(a.v, keyClient, "SAPADT_CLIENT", pf.Lookup(keyClient))
	mustBindFlag(a.v, keyUser, "SAPADT_USER", pf.Lookup(keyUser))
	mustBindFlag(a.v, keyPassword, "SAPADT_PASSWORD", pf.Lookup(keyPassword))
	mustBindFlag(a.v, keyPasswordEnv, "", pf.Lookup(keyPasswordEnv))
	mustBindFlag(a.v, keyJSON, "SAPADT_JSON", pf.Lookup(keyJSON))
	mustBindFlag(a.v, keyColor, "", pf.Lookup(keyColor))
	mustBindFlag(a.v, keyNoColor, "", pf.Lookup(keyNoColor))
	mustBindFlag(a.v, keyVerbose, "", pf.Lookup(keyVerbose))
	mustBindFlag(a.v, keyQuiet, "", pf.Lookup(keyQuiet))
	mustBindFlag(a.v, keyTimeout, "SAPADT_TIMEOUT", pf.Lookup(keyTimeout))
	mustBindFlag(a.v, keyPollTimeout, "SAPADT_POLL_TIMEOUT", pf.Lookup(keyPollTimeout))
	mustBindFlag(a.v, keySessionFile, "SAPADT_SESSION_FILE", pf.Lookup(keySessionFile))
	mustBindFlag(a.v, keyCorrelationID, "", pf.Lookup(keyCorrelationID))
	mustBindFlag(a.v, keyOTLPEndpoint, "SAPADT_OTLP_ENDPOINT", pf.Lookup(keyOTLPEndpoint))
	mustBindFlag(a.v, keyMetricsTextfile, "SAPADT_METRICS_TEXTFILE", pf.Lookup(keyMetricsTextfile))

	cmd.AddCommand(
		newLoginCommand(a),
		newLogoutCommand(a),
		newSourceCommand(a),
		newObjectCommand(a),
		newSearchCommand(a),
		newActivateCommand(a),
		newTestCommand(a),
		newTransportCommand(a),
		newBWCommand(a),
		newDeployCommand(a),
		newMCPCommand(a),
		newVersionCommand(a),
	)
	return cmd
}

func mustBindFlag(v *viper.Viper, key, env string, flag *pflag.Flag) {
	if flag == nil {
		panic(fmt.Sprintf("flag for key %s not found", key))
	}
	if err := v.BindPFlag(key, flag); err != nil {
		panic(err)
	}
	if env != "" {
		if err := v.BindEnv(key, env); err != nil {
			panic(err)
		}
	}
}

// prepare loads the config file and sets up output, log level and
// telemetry. It runs once per invocation, before any command body.
func (a *app) prepare(ctx context.Context) error {
	if a.prepared {
		return nil
	}
	a.prepared = true
	configFile, err := loadConfigFile(a.v)
	if err != nil {
		return err
	}
	a.out = newPrinter(a.stdout, a.stderr, a.v.GetBool(keyJSON), a.colorEnabled(), a.v.GetBool(keyQuiet))
	a.applyLogLevel()
	if configFile != "" {
		loggingutil.WithSubsystem(a.logger, "cli.config").Debug("cli.config.loaded", "path", configFile)
	}
	bundle, err := telemetry.Setup(ctx, telemetry.Config{
		OTLPEndpoint:    a.v.GetString(keyOTLPEndpoint),
		MetricsTextfile: a.v.GetString(keyMetricsTextfile),
		ServiceName:     appName,
		RuntimeMetrics:  true,
	}, a.logger)
	if err != nil {
		return err
	}
	a.telemetry = bundle
	return nil
}

// applyLogLevel keeps CLI output readable: warnings only unless asked for
// more. An explicit SAPADT_LOG_LEVEL wins.
func (a *app) applyLogLevel() {
	if _, ok := os.LookupEnv(logEnvPrefix + "LEVEL"); ok {
		return
	}
	name := "warn"
	switch {
	case a.v.GetBool(keyVerbose):
		name = "debug"
	case a.v.GetBool(keyQuiet):
		name = "error"
	}
	if level, ok := pslog.ParseLevel(name); ok {
		a.logger = a.logger.LogLevel(level)
	}
}

func (a *app) correlationID() string {
	if id, ok := client.NormalizeCorrelationID(a.v.GetString(keyCorrelationID)); ok {
		return id
	}
	return client.GenerateCorrelationID()
}

// close persists the session file and flushes telemetry.
func (a *app) close(ctx context.Context) error {
	var errs []error
	if a.sess != nil {
		if path := a.sessionFile(); path != "" {
			if a.dropSession {
				if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
					errs = append(errs, err)
				}
			} else if err := a.sess.SaveSession(path); err != nil {
				errs = append(errs, err)
			}
		}
		errs = append(errs, a.sess.Close())
		a.sess = nil
	}
	if a.telemetry != nil {
		errs = append(errs, a.telemetry.Shutdown(ctx))
		a.telemetry = nil
	}
	return errors.Join(errs...)
}

func loadConfigFile(v *viper.Viper) (string, error) {
	cfgPath := strings.TrimSpace(v.GetString(keyConfig))
	explicit := cfgPath != ""
	if cfgPath == "" {
		candidate, err := pathutil.ConfigFile(configFileName)
		if err != nil {
			return "", nil
		}
		cfgPath = candidate
	}
	expanded, err := pathutil.ExpandUserAndEnv(cfgPath)
	if err != nil {
		return "", fmt.Errorf("expand config path %q: %w", cfgPath, err)
	}
	info, err := os.Stat(expanded)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return "", nil
		}
		return "", fmt.Errorf("config file %q: %w", expanded, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("config file %q is a directory", expanded)
	}
	v.SetConfigFile(expanded)
	if err := v.ReadInConfig(); err != nil {
		return "", fmt.Errorf("read config file %q: %w", expanded, err)
	}
	return expanded, nil
}

func withSignalCancel(ctx context.Context) context.Context {
	ctx, cancel := context.WithCancel(ctx)
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-signals:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(signals)
	}()
	return ctx
}
