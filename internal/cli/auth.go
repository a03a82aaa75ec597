package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	apperrors "github.com/ag-tej/shiksha-setu/internal/errors"
)

func newLoginCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "login <email>",
		Short: "Authenticate and cache the session token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := promptPassword(cmd, "Password: ")
			if err != nil {
				return err
			}
			user, err := app.Identity.Login(cmd.Context(), args[0], password)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("Logged in as "+user.Name))
			return nil
		},
	}
}

func newSignupCmd(app *App) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "signup <email>",
		Short: "Create an account and log in",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := promptPassword(cmd, "Password: ")
			if err != nil {
				return err
			}
			confirm, err := promptPassword(cmd, "Confirm password: ")
			if err != nil {
				return err
			}
			if password != confirm {
				return apperrors.Precondition("passwords do not match")
			}
			user, err := app.Identity.Signup(cmd.Context(), args[0], password, name)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("Welcome, "+user.Name))
			return nil
		},
	}
	cmd.Flags().StringVarP(&name, "name", "n", "", "display name (defaults to the email's local part)")
	return cmd
}

func newLogoutCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Discard the identity and the cached token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app.Identity.Logout()
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func newWhoamiCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the authenticated user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := app.requireIdentity(cmd.Context()); err != nil {
				return err
			}
			user, _ := app.Identity.Current()
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", titleStyle.Render(user.Name), idStyle.Render("<"+user.Email+">"))
			return nil
		},
	}
}

// promptPassword reads without echo when stdin is a terminal, and falls back
// to a plain line read when it is not (pipes, tests).
func promptPassword(cmd *cobra.Command, prompt string) (string, error) {
	out := cmd.OutOrStdout()
	fmt.Fprint(out, prompt)

	if file, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(file.Fd())) {
		raw, err := term.ReadPassword(int(file.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(raw), nil
	}

	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
