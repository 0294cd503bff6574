package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"pkt.systems/sapadt/adt"
	"pkt.systems/sapadt/internal/credentials"
)

func newLoginCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Verify a connection and save it for later commands",
		Long: `login checks the connection by reading the ADT discovery document and then
saves host, port, client, user and password to ~/.config/sapadt/credentials.json
(mode 0600). Later commands use the saved values unless overridden by flags.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			conn, err := a.resolveConnection()
			if err != nil {
				return err
			}
			if conn.Password == "" {
				pw, err := a.promptPassword(conn.User)
				if err != nil {
					return err
				}
				conn.Password = pw
			}
			sess, err := a.newSession(conn)
			if err != nil {
				return err
			}
			a.sess = sess
			info, err := adt.Discover(ctx, sess)
			if err != nil {
				return err
			}
			path, err := credentials.DefaultPath()
			if err != nil {
				return err
			}
			if err := credentials.Save(path, credentials.Saved{
				Host:     conn.Host,
				Port:     conn.Port,
				HTTPS:    conn.HTTPS,
				Insecure: conn.Insecure,
				Client:   conn.Client,
				User:     conn.User,
				Password: conn.Password,
			}); err != nil {
				return err
			}
			return a.out.success(
				fmt.Sprintf("logged in to %s as %s (client %s), %s discovered; saved to %s",
					conn.baseURL(), conn.User, conn.Client, humanCount(len(info.Services), "service"), path),
				map[string]any{"url": conn.baseURL(), "user": conn.User, "client": conn.Client, "credentials": path, "discovery": info},
			)
		},
	}
}

// promptPassword reads a password from the terminal without echo.
func (a *app) promptPassword(user string) (string, error) {
	f, ok := a.stdin.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return "", fmt.Errorf("no password given; pass --password, --password-env or set %s", defaultPasswordEnv)
	}
	fmt.Fprintf(a.stderr, "Password for %s: ", user)
	pw, err := term.ReadPassword(int(f.Fd()))
	fmt.Fprintln(a.stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(string(pw), "\r\n"), nil
}

func newLogoutCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove saved credentials and the session file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := credentials.DefaultPath()
			if err != nil {
				return err
			}
			removed, err := credentials.Remove(path)
			if err != nil {
				return err
			}
			sessionRemoved := false
			if sf := a.sessionFile(); sf != "" {
				if err := os.Remove(sf); err == nil {
					sessionRemoved = true
				} else if !os.IsNotExist(err) {
					return fmt.Errorf("remove session file: %w", err)
				}
			}
			msg := "no saved credentials"
			if removed {
				msg = "removed " + path
			}
			return a.out.success(msg, map[string]any{"credentials_removed": removed, "session_removed": sessionRemoved})
		},
	}
}
