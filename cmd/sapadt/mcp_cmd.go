package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"pkt.systems/sapadt/internal/version"
	"pkt.systems/sapadt/mcp"
)

func newMCPCommand(a *app) *cobra.Command {
	var deployConfig string
	cmd := &cobra.Command{
		Use:   "mcp-server",
		Short: "Serve the ADT and BW operations as MCP tools over stdio",
		Long: `mcp-server speaks the Model Context Protocol (JSON-RPC 2.0, one message per
line) on stdin and stdout. Logs go to stderr. The connection is resolved once
at start-up like any other command.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			sess, err := a.session(ctx)
			if err != nil {
				return err
			}
			srv, err := mcp.NewServer(mcp.NewServerRequest{
				Config: mcp.Config{
					Name:             appName,
					DeployConfigPath: deployConfig,
					PollTimeout:      a.pollTimeout(),
				},
				Session: sess,
				Logger:  a.logger,
			})
			if err != nil {
				return err
			}
			return srv.Serve(ctx, a.stdin, a.stdout)
		},
	}
	cmd.Flags().StringVar(&deployConfig, "deploy-config", "", "deployment YAML used by deploy_status when a call names none")
	return cmd
}

func newVersionCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := version.Read()
			return a.out.emit(info, func(w io.Writer) error {
				if _, err := fmt.Fprintf(w, "%s %s\n", info.Module, info.Version); err != nil {
					return err
				}
				if a.out.quiet {
					return nil
				}
				if info.Revision != "" {
					fmt.Fprintf(w, "  revision %s %s\n", info.Revision, info.Time)
				}
				_, err := fmt.Fprintf(w, "  %s %s\n", info.GoVersion, info.Platform)
				return err
			})
		},
	}
}
