package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	apperrors "github.com/ag-tej/shiksha-setu/internal/errors"
)

func newSessionsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Manage chat sessions",
	}
	cmd.AddCommand(
		newSessionsListCmd(app),
		newSessionsNewCmd(app),
		newSessionsShowCmd(app),
		newSessionsRenameCmd(app),
		newSessionsRmCmd(app),
	)
	return cmd
}

func newSessionsListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List sessions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if err := app.requireIdentity(ctx); err != nil {
				return err
			}
			if err := app.Store.Refresh(ctx); err != nil {
				return err
			}
			sessions := app.Store.Sessions()
			if len(sessions) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No sessions yet. Start one with: shiksha sessions new")
				return nil
			}
			fmt.Fprint(cmd.OutOrStdout(), renderSessionList(sessions))
			return nil
		},
	}
}

func newSessionsNewCmd(app *App) *cobra.Command {
	var title string
	cmd := &cobra.Command{
		Use:   "new",
		Short: "Create a session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if err := app.requireIdentity(ctx); err != nil {
				return err
			}
			session, err := app.Store.Create(ctx)
			if err != nil {
				return err
			}
			if strings.TrimSpace(title) != "" {
				if err := app.Store.Rename(ctx, session.ID, title); err != nil {
					return err
				}
				session.Title = title
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", successStyle.Render("Created"), renderSessionLine(session))
			return nil
		},
	}
	cmd.Flags().StringVarP(&title, "title", "t", "", "session title (default \"New Chat\")")
	return cmd
}

func newSessionsShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show [session-id]",
		Short: "Print a session's transcript (most recent session by default)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := app.requireIdentity(ctx); err != nil {
				return err
			}
			id := ""
			if len(args) == 1 {
				id = args[0]
			}
			if err := app.activeSession(ctx, id); err != nil {
				return err
			}
			session, _ := app.Store.Active()
			fmt.Fprint(cmd.OutOrStdout(), renderTranscript(session))
			return nil
		},
	}
}

func newSessionsRenameCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <session-id> <title>",
		Short: "Rename a session",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := app.requireIdentity(ctx); err != nil {
				return err
			}
			if err := app.Store.Rename(ctx, args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("Renamed"))
			return nil
		},
	}
}

func newSessionsRmCmd(app *App) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "rm <session-id>",
		Short: "Delete a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := app.requireIdentity(ctx); err != nil {
				return err
			}
			if !force {
				return apperrors.Precondition("deletion is permanent, re-run with --force")
			}
			if err := app.Store.Remove(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("Deleted"))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "skip the confirmation")
	return cmd
}
